package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"voltbook/pkg/logger"
	"voltbook/pkg/model"

	"github.com/go-playground/validator/v10"
)

var (
	clockRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
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

type StationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewStationValidator(log *logger.Logger) *StationValidator {
	v := validator.New()

	if err := v.RegisterValidation("clock", validateClock); err != nil {
		log.Fatal("Failed to register 'clock' validator",
			"error", err,
		)
	}

	log.Info("Station validator initialized successfully")

	return &StationValidator{
		validate: v,
		logger:   log,
	}
}

func validateClock(fl validator.FieldLevel) bool {
	return clockRegex.MatchString(fl.Field().String())
}

func (v *StationValidator) Validate(station *model.Station) error {
	if err := v.validate.Struct(station); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	var errs ValidationErrors
	if !clockRegex.MatchString(station.OperatingHours.Open) {
		errs = append(errs, ValidationError{
			Field:   "OperatingHours.Open",
			Message: "open must be a 24h clock time (HH:MM)",
		})
	}
	if !clockRegex.MatchString(station.OperatingHours.Close) {
		errs = append(errs, ValidationError{
			Field:   "OperatingHours.Close",
			Message: "close must be a 24h clock time (HH:MM)",
		})
	}
	if station.AvailableSlots > station.TotalSlots {
		errs = append(errs, ValidationError{
			Field:   "AvailableSlots",
			Message: "available_slots cannot exceed total_slots",
		})
	}
	if len(errs) > 0 {
		return errs
	}

	return nil
}

func (v *StationValidator) ValidateUpdate(update *model.StationUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if update.OperatingHours != nil {
		var errs ValidationErrors
		if !clockRegex.MatchString(update.OperatingHours.Open) {
			errs = append(errs, ValidationError{
				Field:   "OperatingHours.Open",
				Message: "open must be a 24h clock time (HH:MM)",
			})
		}
		if !clockRegex.MatchString(update.OperatingHours.Close) {
			errs = append(errs, ValidationError{
				Field:   "OperatingHours.Close",
				Message: "close must be a 24h clock time (HH:MM)",
			})
		}
		if len(errs) > 0 {
			return errs
		}
	}

	return nil
}

func (v *StationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
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
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "gte":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "lte":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
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
