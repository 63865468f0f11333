package models

import (
	"time"
)

type User struct {
	ID              string               `json:"id" bson:"_id"`
	Email           string               `json:"email" bson:"email"`
	Name            string               `json:"name" bson:"name"`
	PhoneNumber     string               `json:"phone_number" bson:"phone_number"`
	Bio             string               `json:"bio" bson:"bio"`
	ProfileImageURL string               `json:"profile_image_url" bson:"profile_image_url"`
	IsDriver        bool                 `json:"is_driver" bson:"is_driver"`
	CarPlateNumber  string               `json:"car_plate_number" bson:"car_plate_number"`
	CarModel        string               `json:"car_model" bson:"car_model"`
	CarColor        string               `json:"car_color" bson:"car_color"`
	LastRead        map[string]time.Time `json:"last_read,omitempty" bson:"last_read,omitempty"`
	CreatedAt       time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at" bson:"updated_at"`
}

// Actor is the authenticated caller of a single request.
type Actor struct {
	ID             string
	Name           string
	IsDriver       bool
	CarPlateNumber string
	CarModel       string
	CarColor       string
}

func (u *User) Actor() Actor {
	return Actor{
		ID:             u.ID,
		Name:           u.DisplayName(),
		IsDriver:       u.IsDriver,
		CarPlateNumber: u.CarPlateNumber,
		CarModel:       u.CarModel,
		CarColor:       u.CarColor,
	}
}

// DisplayName falls back to the email when no name was set.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

func (a Actor) HasVehicleInfo() bool {
	return a.CarPlateNumber != "" && a.CarModel != "" && a.CarColor != ""
}

func (u *User) LastReadAt(chatID string) time.Time {
	if u.LastRead == nil {
		return time.Time{}
	}
	return u.LastRead[chatID]
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.LastRead != nil {
		c.LastRead = make(map[string]time.Time, len(u.LastRead))
		for k, v := range u.LastRead {
			c.LastRead[k] = v
		}
	}
	return &c
}
