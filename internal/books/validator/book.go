package validator

import (
	"errors"
	"fmt"
	"strings"

	"libris/pkg/logger"
	"libris/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookValidator(log *logger.Logger) *BookValidator {
	v := validator.New()
	v.RegisterStructValidation(validateCopies, model.Book{})

	log.Info("Book validator initialized successfully")

	return &BookValidator{
		validate: v,
		logger:   log,
	}
}

// validateCopies keeps 0 <= copies_available <= copies_total on the struct
// itself, mirroring the collection schema.
func validateCopies(sl validator.StructLevel) {
	b := sl.Current().Interface().(model.Book)
	if b.CopiesAvailable < 0 || b.CopiesAvailable > b.CopiesTotal {
		sl.ReportError(b.CopiesAvailable, "copies_available", "CopiesAvailable", "copies_range", "")
	}
}

func (v *BookValidator) Validate(b *model.Book) error {
	return v.validateStruct(b)
}

func (v *BookValidator) ValidateUpdate(u *model.BookUpdate) error {
	return v.validateStruct(u)
}

func (v *BookValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "gte":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "lte":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "isbn":
			message = "isbn must be a valid ISBN-10 or ISBN-13"
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid ObjectID", err.Field())
		case "ltefield", "copies_range":
			message = "copies_available must be between 0 and copies_total"
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
