package http

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"vetcare/backend/internal/calendar"
)

var (
	validatorsOnce sync.Once
	validatorsErr  error
)

// registerValidators adds the hhmm and isodate tags to gin's validator and
// makes field errors report JSON/form names instead of Go field names.
func registerValidators() error {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			validatorsErr = errors.New("gin binding validator is not go-playground/validator")
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
		if err := v.RegisterValidation("hhmm", validateHHMM); err != nil {
			validatorsErr = err
			return
		}
		validatorsErr = v.RegisterValidation("isodate", validateISODate)
	})
	return validatorsErr
}

func validateHHMM(fl validator.FieldLevel) bool {
	_, err := calendar.ParseTimeOfDay(fl.Field().String())
	return err == nil
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := calendar.ParseDate(fl.Field().String())
	return err == nil
}
