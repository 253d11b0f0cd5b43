package validator

import (
	"errors"
	"fmt"
	"strings"

	"voltbook/pkg/logger"
	"voltbook/pkg/model"

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

type BookingValidator struct {
	validate       *validator.Validate
	logger         *logger.Logger
	minDurationMin int
	maxDurationMin int
}

func NewBookingValidator(log *logger.Logger, minDurationMin, maxDurationMin int) *BookingValidator {
	v := validator.New()

	log.Info("Booking validator initialized successfully",
		"min_duration_min", minDurationMin,
		"max_duration_min", maxDurationMin,
	)

	return &BookingValidator{
		validate:       v,
		logger:         log,
		minDurationMin: minDurationMin,
		maxDurationMin: maxDurationMin,
	}
}

func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := v.validate.Struct(booking); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	var errs ValidationErrors
	if booking.DurationMin < v.minDurationMin {
		errs = append(errs, ValidationError{
			Field:   "DurationMin",
			Message: fmt.Sprintf("duration must be at least %d minutes", v.minDurationMin),
		})
	}
	if booking.DurationMin > v.maxDurationMin {
		errs = append(errs, ValidationError{
			Field:   "DurationMin",
			Message: fmt.Sprintf("duration must be at most %d minutes", v.maxDurationMin),
		})
	}
	if !booking.EndTime.After(booking.StartTime) {
		errs = append(errs, ValidationError{
			Field:   "EndTime",
			Message: "end_time must be after start_time",
		})
	}
	if len(errs) > 0 {
		return errs
	}

	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "gte":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "len":
			message = fmt.Sprintf("%s must be exactly %s characters", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
