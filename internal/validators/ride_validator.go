package validators

import (
	"strings"
	"time"

	"ridemate/internal/models"
)

type CreateRideRequest struct {
	DeparturePoint string    `json:"departure_point" validate:"required,not_blank,max=200"`
	ArrivalPoint   string    `json:"arrival_point" validate:"required,not_blank,max=200"`
	Price          float64   `json:"price" validate:"gte=0"`
	DateTime       time.Time `json:"date_time" validate:"required,future_date"`
	RideType       string    `json:"ride_type" validate:"required,ride_type"`
	TotalSeats     int       `json:"total_seats" validate:"gt=0"`
}

func (r *CreateRideRequest) ToSpec() *models.RideSpec {
	return &models.RideSpec{
		DeparturePoint: SanitizeInput(r.DeparturePoint),
		ArrivalPoint:   SanitizeInput(r.ArrivalPoint),
		Price:          r.Price,
		DateTime:       r.DateTime,
		RideType:       models.RideType(r.RideType),
		TotalSeats:     r.TotalSeats,
	}
}

func ValidateCreateRide(req *CreateRideRequest) ValidationErrors {
	errors := ValidateStruct(req)

	if samePoint(req.DeparturePoint, req.ArrivalPoint) {
		errors = append(errors, ValidationError{
			Field:   "arrival_point",
			Message: "Departure and arrival points cannot be the same.",
		})
	}

	return errors
}

// ValidateRideSpec applies the ride creation rules to an already decoded spec.
func ValidateRideSpec(spec *models.RideSpec, now time.Time) ValidationErrors {
	var errors ValidationErrors

	if strings.TrimSpace(spec.DeparturePoint) == "" {
		errors = append(errors, ValidationError{Field: "departure_point", Message: "Departure point is required."})
	}
	if strings.TrimSpace(spec.ArrivalPoint) == "" {
		errors = append(errors, ValidationError{Field: "arrival_point", Message: "Arrival point is required."})
	}
	if samePoint(spec.DeparturePoint, spec.ArrivalPoint) {
		errors = append(errors, ValidationError{
			Field:   "arrival_point",
			Message: "Departure and arrival points cannot be the same.",
		})
	}
	if !spec.DateTime.After(now) {
		errors = append(errors, ValidationError{Field: "date_time", Message: "Date and time must be in the future."})
	}
	if spec.TotalSeats <= 0 {
		errors = append(errors, ValidationError{Field: "total_seats", Message: "Available seats must be greater than 0."})
	}
	if spec.Price < 0 {
		errors = append(errors, ValidationError{Field: "price", Message: "Price cannot be negative."})
	}
	if !spec.RideType.IsValid() {
		errors = append(errors, ValidationError{Field: "ride_type", Message: "Ride type must be Carpool or Taxi"})
	}

	return errors
}

func samePoint(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
