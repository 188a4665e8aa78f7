package auth

import (
	"strconv"

	"github.com/go-playground/validator/v10"
)

const (
	mfaCodeLength = 6
	minPinLength  = 4
)

// Validator checks caller input before anything reaches the network or the
// credential store.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

type credentialsInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type registrationInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
	Name     string `validate:"required"`
}

// ValidateCredentials validates sign-in input.
func (v *Validator) ValidateCredentials(email, password string) error {
	return v.structErr(v.validate.Struct(credentialsInput{Email: email, Password: password}))
}

// ValidateRegistration validates sign-up input.
func (v *Validator) ValidateRegistration(email, password, name string) error {
	return v.structErr(v.validate.Struct(registrationInput{Email: email, Password: password, Name: name}))
}

// ValidateMFACode requires exactly six ASCII digits.
func (v *Validator) ValidateMFACode(code string) error {
	if err := v.validate.Var(code, "len="+strconv.Itoa(mfaCodeLength)+",number"); err != nil {
		return InvalidMFACodeErr
	}
	return nil
}

// ValidatePin requires at least four ASCII digits.
func (v *Validator) ValidatePin(pin string) error {
	if err := v.validate.Var(pin, "min="+strconv.Itoa(minPinLength)+",number"); err != nil {
		return InvalidPinErr
	}
	return nil
}

// structErr maps the first failing field onto its sentinel.
func (v *Validator) structErr(err error) error {
	if err == nil {
		return nil
	}
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrs) == 0 {
		return err
	}
	switch validationErrs[0].Field() {
	case "Email":
		return InvalidEmailErr
	case "Password":
		return InvalidPasswordErr
	case "Name":
		return InvalidNameErr
	}
	return err
}
