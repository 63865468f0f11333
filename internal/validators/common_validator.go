package validators

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"ridemate/internal/models"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validate *validator.Validate

var (
	phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9\s\-()]{5,19}$`)
	plateRegex = regexp.MustCompile(`^[A-Z0-9\-\s]{2,12}$`)
	htmlRegex  = regexp.MustCompile(`<[^>]*>`)
)

func init() {
	validate = validator.New()

	// Report json field names instead of Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	validate.RegisterValidation("object_id", validateObjectID)
	validate.RegisterValidation("phone_number", validatePhoneNumber)
	validate.RegisterValidation("license_plate", validateLicensePlate)
	validate.RegisterValidation("future_date", validateFutureDate)
	validate.RegisterValidation("ride_type", validateRideType)
	validate.RegisterValidation("not_blank", validateNotBlank)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var messages []string
	for _, err := range v {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

// First returns the message of the first error, or "" when there is none.
func (v ValidationErrors) First() string {
	if len(v) == 0 {
		return ""
	}
	return v[0].Message
}

// ValidateStruct validates a struct and returns detailed errors
func ValidateStruct(s interface{}) ValidationErrors {
	var validationErrors ValidationErrors

	err := validate.Struct(s)
	if err != nil {
		fieldErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return ValidationErrors{{Field: "request", Message: err.Error()}}
		}
		for _, err := range fieldErrors {
			validationErrors = append(validationErrors, ValidationError{
				Field:   err.Field(),
				Tag:     err.Tag(),
				Value:   fmt.Sprintf("%v", err.Value()),
				Message: getErrorMessage(err),
			})
		}
	}

	return validationErrors
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required", "not_blank":
		return fmt.Sprintf("%s is required", err.Field())
	case "email":
		return "Invalid email format"
	case "min":
		if err.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
		}
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "max":
		if err.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		}
		return fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more", err.Field(), err.Param())
	case "object_id":
		return "Invalid ID format"
	case "phone_number":
		return "Invalid phone number format"
	case "license_plate":
		return "Invalid license plate format"
	case "future_date":
		return "Date and time must be in the future."
	case "ride_type":
		return "Ride type must be Carpool or Taxi"
	default:
		return fmt.Sprintf("Validation failed for %s", err.Field())
	}
}

func validateObjectID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let required tag handle empty values
	}
	_, err := primitive.ObjectIDFromHex(value)
	return err == nil
}

func validatePhoneNumber(fl validator.FieldLevel) bool {
	phone := fl.Field().String()
	if phone == "" {
		return true
	}
	return phoneRegex.MatchString(phone)
}

func validateLicensePlate(fl validator.FieldLevel) bool {
	plate := fl.Field().String()
	if plate == "" {
		return true
	}
	return plateRegex.MatchString(strings.ToUpper(strings.TrimSpace(plate)))
}

func validateFutureDate(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(time.Time)
	return ok && date.After(time.Now())
}

func validateRideType(fl validator.FieldLevel) bool {
	return models.RideType(fl.Field().String()).IsValid()
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// SanitizeInput strips HTML tags and surrounding whitespace.
func SanitizeInput(input string) string {
	return strings.TrimSpace(htmlRegex.ReplaceAllString(input, ""))
}
