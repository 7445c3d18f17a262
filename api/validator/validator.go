package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Validator is a struct that provides methods for struct validation using the underlying validator library.
type Validator struct {
	cli *validator.Validate
}

// ValidationError represents an error encountered during validation of a
// field. Field is the JSON name when the struct field has a json tag.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v *Validator) formatError(err error) []ValidationError {
	errors := make([]ValidationError, 0)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return append(errors, ValidationError{Message: err.Error()})
	}
	for _, err := range verrs {
		errors = append(errors, ValidationError{
			Field:   err.Field(),
			Message: message(err),
		})
	}

	return errors
}

func message(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	default:
		return err.Error()
	}
}

// ValidateStruct validates the provided struct using the underlying validator and returns a slice of validation errors.
func (v *Validator) ValidateStruct(s interface{}) []ValidationError {
	err := v.cli.Struct(s)
	if err != nil {
		return v.formatError(err)
	}
	return nil
}

// Validate checks the provided value against the specified validation tags and returns a slice of validation errors.
func (v *Validator) Validate(value interface{}, tag string) []ValidationError {
	err := v.cli.Var(value, tag)
	if err != nil {
		return v.formatError(err)
	}
	return nil
}

// New initializes and returns a new instance of the Validator
func New() *Validator {
	cli := validator.New(validator.WithRequiredStructEnabled())
	cli.RegisterTagNameFunc(jsonName)
	// notblank rejects whitespace-only strings, which required lets through.
	if err := cli.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return &Validator{
		cli: cli,
	}
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	default:
		return name
	}
}
