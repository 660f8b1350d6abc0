package auth

import (
	"chat-server/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type RegisterRequest struct {
	Name     string `validate:"max=40"`
	Handle   string `validate:"required,alphanum,min=3,max=20"`
	Password string `validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Handle   string `validate:"required"`
	Password string `validate:"required"`
}

// ValidateRegister maps struct-level failures to field-keyed messages so
// the client can correct each field independently.
func ValidateRegister(req RegisterRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	v := &errors.ValidationError{}
	for _, fieldErr := range err.(validator.ValidationErrors) {
		switch fieldErr.Field() {
		case "Name":
			v.Add("name", "40 characters maximum")
		case "Handle":
			v.Add("handle", "3 to 20 alphanumeric characters is required")
		case "Password":
			v.Add("password", "8 to 72 characters is required")
		}
	}
	return v
}

func ValidateLogin(req LoginRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	v := &errors.ValidationError{}
	for _, fieldErr := range err.(validator.ValidationErrors) {
		switch fieldErr.Field() {
		case "Handle":
			v.Add("handle", "this field is required")
		case "Password":
			v.Add("password", "this field is required")
		}
	}
	return v
}
