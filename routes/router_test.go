package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	handlers "ridemate/internal/handlers/shared"
	"ridemate/internal/models"
	"ridemate/internal/repositories/memory"
	"ridemate/internal/services"
	"ridemate/pkg/identity"
	"ridemate/pkg/logger"
	"ridemate/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnvelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

type apiTest struct {
	t        *testing.T
	router   *gin.Engine
	verifier *identity.JWTVerifier
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	t.Cleanup(func() { store.Close() })

	log := logger.NewDiscard()
	policy := services.RetryPolicy{MaxRetries: 5, Backoff: time.Millisecond}
	rideRepo := memory.NewRideRepository(store)
	chatRepo := memory.NewChatRepository(store)
	userRepo := memory.NewUserRepository(store)

	files, err := storage.NewLocalStorage(t.TempDir(), "http://localhost/uploads")
	require.NoError(t, err)
	verifier, err := identity.NewJWTVerifier("test-secret", "ridemate", time.Hour)
	require.NoError(t, err)

	rideService := services.NewRideService(rideRepo, nil, 0, 100, log)
	chatService := services.NewChatService(store, chatRepo, userRepo, policy, log)
	membershipService := services.NewMembershipService(store, rideRepo, chatRepo, rideService, policy, log)
	profileService := services.NewProfileService(userRepo, files, services.ImageOptions{MaxSize: 1 << 20, MaxDimension: 128}, log)

	router := NewRouter(&RouterDeps{
		Verifier:       verifier,
		ProfileService: profileService,
		RideHandler:    handlers.NewRideHandler(rideService, membershipService, log),
		ChatHandler:    handlers.NewChatHandler(chatService, log),
		ProfileHandler: handlers.NewProfileHandler(profileService, log),
		AllowedOrigins: []string{"*"},
		Logger:         log,
	})
	return &apiTest{t: t, router: router, verifier: verifier}
}

func (a *apiTest) token(userID string) string {
	a.t.Helper()
	token, err := a.verifier.GenerateToken(userID, userID+"@example.com", "User "+userID)
	require.NoError(a.t, err)
	return token
}

func (a *apiTest) do(method, path, userID string, body interface{}) (int, *apiEnvelope) {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+a.token(userID))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env apiEnvelope
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, &env
}

func decode[T any](t *testing.T, env *apiEnvelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func (a *apiTest) registerDriver(userID string) {
	a.t.Helper()
	code, _ := a.do(http.MethodPut, "/api/v1/profile/driver", userID, map[string]string{
		"car_plate_number": "ab-123-cd",
		"car_model":        "Clio",
		"car_color":        "Blue",
	})
	require.Equal(a.t, http.StatusOK, code)
}

func (a *apiTest) createRide(driverID string, seats int) models.Ride {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/api/v1/rides", driverID, rideBody(seats))
	require.Equal(a.t, http.StatusCreated, code)
	return decode[models.Ride](a.t, env)
}

func rideBody(seats int) map[string]interface{} {
	return map[string]interface{}{
		"departure_point": "Lyon",
		"arrival_point":   "Paris",
		"price":           20,
		"date_time":       time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"ride_type":       "Carpool",
		"total_seats":     seats,
	}
}

func TestHealth(t *testing.T) {
	api := newAPITest(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAuthRequired(t *testing.T) {
	api := newAPITest(t)

	code, env := api.do(http.MethodGet, "/api/v1/rides", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rides", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileCreatedOnFirstRequest(t *testing.T) {
	api := newAPITest(t)

	code, env := api.do(http.MethodGet, "/api/v1/profile", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	user := decode[models.User](t, env)
	assert.Equal(t, "alice", user.ID)
	assert.Equal(t, "User alice", user.Name)
	assert.False(t, user.IsDriver)

	code, env = api.do(http.MethodPut, "/api/v1/profile", "alice", map[string]string{"name": "", "email": "nope"})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestCarpoolRequiresDriver(t *testing.T) {
	api := newAPITest(t)

	code, env := api.do(http.MethodPost, "/api/v1/rides", "alice", rideBody(3))
	assert.Equal(t, http.StatusForbidden, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "AUTHORIZATION_ERROR", env.Error.Code)
	assert.Equal(t, "Only registered drivers can offer carpool rides.", env.Error.Message)
}

func TestCreateRideValidation(t *testing.T) {
	api := newAPITest(t)
	api.registerDriver("driver")

	code, env := api.do(http.MethodPost, "/api/v1/rides", "driver", rideBody(0))
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Details, "total_seats")

	body := rideBody(2)
	body["arrival_point"] = " lyon "
	code, env = api.do(http.MethodPost, "/api/v1/rides", "driver", body)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Departure and arrival points cannot be the same.", env.Error.Message)
}

func TestRideMembershipFlow(t *testing.T) {
	api := newAPITest(t)
	api.registerDriver("driver")

	ride := api.createRide("driver", 1)
	require.NotNil(t, ride.ChatID)
	assert.Equal(t, 1, ride.AvailableSeats)
	path := "/api/v1/rides/" + ride.ID.Hex()

	code, env := api.do(http.MethodPost, path+"/join", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	joined := decode[models.Ride](t, env)
	assert.Equal(t, 0, joined.AvailableSeats)
	assert.Equal(t, []string{"alice"}, joined.Passengers)

	code, env = api.do(http.MethodPost, path+"/join", "alice", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	code, env = api.do(http.MethodPost, path+"/join", "bob", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CAPACITY", env.Error.Code)
	assert.Equal(t, "No available seats", env.Error.Message)

	code, env = api.do(http.MethodPost, path+"/leave", "bob", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Not a passenger", env.Error.Message)

	code, env = api.do(http.MethodPost, path+"/leave", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	left := decode[models.Ride](t, env)
	assert.Equal(t, 1, left.AvailableSeats)
	assert.Empty(t, left.Passengers)

	code, env = api.do(http.MethodGet, "/api/v1/chats/"+ride.ChatID.Hex()+"/messages", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	messages := decode[[]models.Message](t, env)
	require.Len(t, messages, 3)
	assert.Equal(t, "Ride from Lyon to Paris created by User driver.", messages[0].Content)
	assert.Equal(t, "User alice has joined the ride.", messages[1].Content)
	assert.Equal(t, "User alice has left the ride.", messages[2].Content)

	code, env = api.do(http.MethodGet, "/api/v1/rides/mine", "driver", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.Ride](t, env), 1)
}

func TestRideLookupErrors(t *testing.T) {
	api := newAPITest(t)

	code, _ := api.do(http.MethodGet, "/api/v1/rides/not-an-id", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := api.do(http.MethodGet, "/api/v1/rides/5f1d7f1e2b3c4d5e6f708192", "alice", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	code, _ = api.do(http.MethodGet, "/api/v1/rides?type=Bus", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListRidesFilters(t *testing.T) {
	api := newAPITest(t)
	api.registerDriver("driver")
	full := api.createRide("driver", 1)
	api.createRide("driver", 3)

	code, _ := api.do(http.MethodPost, "/api/v1/rides/"+full.ID.Hex()+"/join", "alice", nil)
	require.Equal(t, http.StatusOK, code)

	code, env := api.do(http.MethodGet, "/api/v1/rides", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.Ride](t, env), 2)

	code, env = api.do(http.MethodGet, "/api/v1/rides?available=true&search=par", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	rides := decode[[]models.Ride](t, env)
	require.Len(t, rides, 1)
	assert.Equal(t, 3, rides[0].AvailableSeats)
}

func TestChatEndpoints(t *testing.T) {
	api := newAPITest(t)

	// both users need a profile before a direct chat can be opened
	_, _ = api.do(http.MethodGet, "/api/v1/profile", "bob", nil)

	code, env := api.do(http.MethodPost, "/api/v1/chats/direct", "alice", map[string]string{"user_id": "bob"})
	require.Equal(t, http.StatusOK, code)
	chat := decode[models.Chat](t, env)
	chatPath := "/api/v1/chats/" + chat.ID.Hex()

	code, _ = api.do(http.MethodPost, "/api/v1/chats/direct", "alice", map[string]string{"user_id": "alice"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = api.do(http.MethodPost, chatPath+"/messages", "alice", map[string]string{"content": "hi bob"})
	require.Equal(t, http.StatusCreated, code)
	msg := decode[models.Message](t, env)
	assert.Equal(t, "User alice", msg.SenderName)

	code, env = api.do(http.MethodPost, chatPath+"/messages", "mallory", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "AUTHORIZATION_ERROR", env.Error.Code)

	code, env = api.do(http.MethodGet, chatPath+"/unread", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, decode[map[string]int](t, env)["unread_count"])

	code, _ = api.do(http.MethodGet, chatPath+"/unread?since=yesterday", "bob", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = api.do(http.MethodGet, "/api/v1/chats/unread", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, decode[models.UnreadSummary](t, env).Total)

	code, _ = api.do(http.MethodPost, chatPath+"/read", "bob", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = api.do(http.MethodGet, "/api/v1/chats", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	chats := decode[[]models.ChatSummary](t, env)
	require.Len(t, chats, 1)
	assert.Zero(t, chats[0].UnreadCount)
}

func TestCORSPreflight(t *testing.T) {
	api := newAPITest(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/rides", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
