package validator

import (
	"errors"
	"fmt"
	"reflect"
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

// idRequest wraps a single path or body id so it goes through the same
// struct validation as the request bodies.
type idRequest struct {
	ID string `validate:"required,mongodb"`
}

type fineFilter struct {
	Status string `validate:"omitempty,fine_status"`
}

type LifecycleValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewLifecycleValidator(log *logger.Logger) *LifecycleValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	if err := v.RegisterValidation("fine_status", validateFineStatus); err != nil {
		log.Fatal("Failed to register 'fine_status' validator", "error", err)
	}

	return &LifecycleValidator{
		validate: v,
		logger:   log,
	}
}

// jsonFieldName reports fields by their JSON name so messages match the
// request body the client sent.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

func validateFineStatus(fl validator.FieldLevel) bool {
	return model.FineStatus(fl.Field().String()).IsValid()
}

func (v *LifecycleValidator) ValidateRent(req *model.RentRequest) error {
	return v.validateStruct(req)
}

func (v *LifecycleValidator) ValidateReturn(req *model.ReturnRequest) error {
	return v.validateStruct(req)
}

func (v *LifecycleValidator) ValidateReserve(req *model.ReserveRequest) error {
	return v.validateStruct(req)
}

// ValidateID checks that id is a hex ObjectID and reports it under name.
func (v *LifecycleValidator) ValidateID(name, id string) error {
	err := v.validateStruct(&idRequest{ID: id})
	var errs ValidationErrors
	if errors.As(err, &errs) {
		for i := range errs {
			errs[i].Field = name
			errs[i].Message = strings.Replace(errs[i].Message, "ID", name, 1)
		}
		return errs
	}
	return err
}

func (v *LifecycleValidator) ValidateFineStatus(status string) error {
	return v.validateStruct(&fineFilter{Status: status})
}

func (v *LifecycleValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *LifecycleValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "mongodb":
			message = fmt.Sprintf("%s must be a 24 character hex ObjectID", err.Field())
		case "fine_status":
			message = "status must be one of: pending, paid"
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
