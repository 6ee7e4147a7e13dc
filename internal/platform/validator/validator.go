// Package validator validates request structs with go-playground/validator and reports
// failures as a field-to-message map.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"otp-gateway/internal/otp"
	"otp-gateway/internal/otp/domain"
)

// ErrTranslatorNotFound indicates the requested translator is unavailable.
var ErrTranslatorNotFound = errors.New("translator not found")

// Validator validates structs.
type Validator interface {
	Validate(data any) error
}

// V10Validator implements Validator using go-playground/validator v10.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// ValidationError is a field-to-message map returned when validation fails.
// Keys are the fields' json names.
type ValidationError map[string]string

// Error implements the error interface.
func (vs ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}
	b, err := json.Marshal(vs)
	if err != nil {
		return fmt.Sprintf("validation error (failed to marshal: %v)", err)
	}
	return string(b)
}

// Values returns the field error map.
func (vs ValidationError) Values() map[string]string {
	return vs
}

// NewV10Validator constructs a V10Validator with English translations and the
// "purpose" and "otpcode" rules.
func NewV10Validator() (*V10Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	enTrans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}
	if err := enTranslations.RegisterDefaultTranslations(validate, enTrans); err != nil {
		return nil, err
	}
	if err := registerOTPRules(validate, enTrans); err != nil {
		return nil, err
	}
	return &V10Validator{validate: validate, translator: enTrans}, nil
}

// Validate validates a struct and returns a ValidationError on failure.
func (v *V10Validator) Validate(data any) error {
	if err := v.validate.Struct(data); err != nil {
		var validateErrs validator.ValidationErrors
		if !errors.As(err, &validateErrs) {
			return err
		}
		out := make(ValidationError, len(validateErrs))
		for _, fe := range validateErrs {
			out[fe.Field()] = fe.Translate(v.translator)
		}
		return out
	}
	return nil
}

func registerOTPRules(validate *validator.Validate, enTrans ut.Translator) error {
	rules := []struct {
		tag     string
		message string
		fn      validator.Func
	}{
		{"purpose", "{0} must be login or registration", func(fl validator.FieldLevel) bool {
			_, err := domain.ParsePurpose(fl.Field().String())
			return err == nil
		}},
		{"otpcode", "{0} must be exactly 6 digits", func(fl validator.FieldLevel) bool {
			return otp.WellFormed(fl.Field().String())
		}},
	}
	for _, r := range rules {
		if err := validate.RegisterValidation(r.tag, r.fn); err != nil {
			return err
		}
		message := r.message
		err := validate.RegisterTranslation(r.tag, enTrans,
			func(ut ut.Translator) error {
				return ut.Add(r.tag, message, false)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				t, err := ut.T(fe.Tag(), fe.Field())
				if err != nil {
					slog.Warn("error translating validation message", "tag", fe.Tag(), "error", err)
					return fe.Error()
				}
				return t
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}
