package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/weather-record-service/internal/models"
)

// ErrValidation is returned when a record or request body breaks the schema.
var ErrValidation = errors.New("weather validation failed")

// Temperature bounds enforced on every write.
const (
	MinTemperature = -100
	MaxTemperature = 100
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateRecord checks a record about to be written: every field present and
// temperature within [MinTemperature, MaxTemperature].
func ValidateRecord(r models.WeatherRecord) error {
	return check(r)
}

// ValidateInput checks that a create or full-update body carries all four fields.
func ValidateInput(in models.RecordInput) error {
	return check(in)
}

// ValidatePatch checks the fields a partial update sets. Unset fields are skipped.
func ValidatePatch(p models.RecordPatch) error {
	return check(p)
}

func check(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, ", "))
}

// describe renders one field error in the form "temperature: (150) is more than maximum allowed value (100)".
func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + ": path is required"
	case "min":
		return field + ": must not be empty"
	case "gte":
		return fmt.Sprintf("%s: (%v) is less than minimum allowed value (%s)", field, fe.Value(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s: (%v) is more than maximum allowed value (%s)", field, fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("%s: failed %s", field, fe.Tag())
	}
}
