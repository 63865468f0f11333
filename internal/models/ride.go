package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideType string

const (
	RideTypeCarpool RideType = "Carpool"
	RideTypeTaxi    RideType = "Taxi"
)

func (t RideType) IsValid() bool {
	return t == RideTypeCarpool || t == RideTypeTaxi
}

type Ride struct {
	ID             primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	DriverID       string              `json:"driver_id" bson:"driver_id"`
	DriverName     string              `json:"driver_name" bson:"driver_name"`
	DeparturePoint string              `json:"departure_point" bson:"departure_point"`
	ArrivalPoint   string              `json:"arrival_point" bson:"arrival_point"`
	Price          float64             `json:"price" bson:"price"`
	DateTime       time.Time           `json:"date_time" bson:"date_time"`
	RideType       RideType            `json:"ride_type" bson:"ride_type"`
	TotalSeats     int                 `json:"total_seats" bson:"total_seats"`
	AvailableSeats int                 `json:"available_seats" bson:"available_seats"`
	Passengers     []string            `json:"passengers" bson:"passengers"`
	PassengerNames []string            `json:"passenger_names" bson:"passenger_names"`
	ChatID         *primitive.ObjectID `json:"chat_id,omitempty" bson:"chat_id"`
	Version        int64               `json:"version" bson:"version"`
	CreatedAt      time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" bson:"updated_at"`
}

// RideSpec carries the caller supplied fields of a new ride.
type RideSpec struct {
	DeparturePoint string
	ArrivalPoint   string
	Price          float64
	DateTime       time.Time
	RideType       RideType
	TotalSeats     int
}

type RideFilter struct {
	RideType      RideType
	Search        string
	OnlyAvailable bool
	Limit         int
}

func (r *Ride) HasPassenger(userID string) bool {
	return indexOf(r.Passengers, userID) >= 0
}

// AddPassenger appends the user and takes one seat. Callers check capacity first.
func (r *Ride) AddPassenger(userID, name string) {
	r.Passengers = append(r.Passengers, userID)
	r.PassengerNames = append(r.PassengerNames, name)
	r.AvailableSeats--
}

// RemovePassenger drops the user and frees their seat. It reports whether the
// user was a passenger.
func (r *Ride) RemovePassenger(userID string) bool {
	i := indexOf(r.Passengers, userID)
	if i < 0 {
		return false
	}
	r.Passengers = append(r.Passengers[:i:i], r.Passengers[i+1:]...)
	if i < len(r.PassengerNames) {
		r.PassengerNames = append(r.PassengerNames[:i:i], r.PassengerNames[i+1:]...)
	}
	r.AvailableSeats++
	return true
}

// PassengerName returns the name recorded when userID joined, or "".
func (r *Ride) PassengerName(userID string) string {
	i := indexOf(r.Passengers, userID)
	if i < 0 || i >= len(r.PassengerNames) {
		return ""
	}
	return r.PassengerNames[i]
}

func (r *Ride) IsUpcoming(now time.Time) bool {
	return r.DateTime.After(now)
}

func (r *Ride) Clone() *Ride {
	if r == nil {
		return nil
	}
	c := *r
	c.Passengers = append([]string{}, r.Passengers...)
	c.PassengerNames = append([]string{}, r.PassengerNames...)
	if r.ChatID != nil {
		id := *r.ChatID
		c.ChatID = &id
	}
	return &c
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
