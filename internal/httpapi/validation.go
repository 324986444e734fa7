package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"dialer-platform/internal/appointments"
	"dialer-platform/internal/calls"
	"dialer-platform/internal/trash"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators installs the dialer's enum tags on gin's validator engine.
// Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("dialer_outcome", func(fl validator.FieldLevel) bool {
			return calls.Outcome(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("followup_priority", func(fl validator.FieldLevel) bool {
			return calls.Priority(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("trash_entity", func(fl validator.FieldLevel) bool {
			t := trash.EntityType(fl.Field().String())
			return t == trash.EntityLeads || t == trash.EntityAppointments
		})
		_ = v.RegisterValidation("appointment_outcome", func(fl validator.FieldLevel) bool {
			return appointments.Outcome(fl.Field().String()).Valid()
		})
	})
}

// bindMessage turns a binding failure into the message shown to the caller.
func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid json"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "dialer_outcome":
		return "Invalid outcome"
	case "followup_priority":
		return "Invalid follow-up priority"
	case "trash_entity":
		return "Invalid entity type"
	case "appointment_outcome":
		return "Invalid appointment outcome"
	case "required":
		return fmt.Sprintf("%s required", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
