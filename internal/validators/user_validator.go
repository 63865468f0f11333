package validators

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
)

var allowedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

type UpdateProfileRequest struct {
	Name        string `json:"name" validate:"required,not_blank,max=100"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,phone_number"`
	Bio         string `json:"bio" validate:"omitempty,max=500"`
}

type DriverInfoRequest struct {
	CarPlateNumber string `json:"car_plate_number" validate:"required,not_blank,license_plate"`
	CarModel       string `json:"car_model" validate:"required,not_blank,max=100"`
	CarColor       string `json:"car_color" validate:"required,not_blank,max=50"`
}

func ValidateUpdateProfile(req *UpdateProfileRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateDriverInfo(req *DriverInfoRequest) ValidationErrors {
	return ValidateStruct(req)
}

// ValidateImageUpload checks the extension, declared content type and size
// of an uploaded profile image.
func ValidateImageUpload(header *multipart.FileHeader, maxSize int64) ValidationErrors {
	var errors ValidationErrors

	_, known := allowedImageExtensions[strings.ToLower(filepath.Ext(header.Filename))]
	contentType := header.Header.Get("Content-Type")
	if !known || (contentType != "" && !strings.HasPrefix(contentType, "image/")) {
		errors = append(errors, ValidationError{Field: "image", Message: "Please select an image file (jpg, png or gif)"})
	}
	if header.Size > maxSize {
		errors = append(errors, ValidationError{
			Field:   "image",
			Message: fmt.Sprintf("Image must be smaller than %dMB", maxSize/(1024*1024)),
		})
	}

	return errors
}

// ImageContentType maps an upload file name to its content type.
func ImageContentType(filename string) (string, bool) {
	ct, ok := allowedImageExtensions[strings.ToLower(filepath.Ext(filename))]
	return ct, ok
}
