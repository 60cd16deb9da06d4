// Package validate checks request payloads field by field and reports every
// violated field at once.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// FieldError describes a single violated field.
type FieldError struct {
	Param string `json:"param"`
	Msg   string `json:"msg"`
	Value any    `json:"value,omitempty"`
}

// Errors is the list of violations for one payload.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Param+": "+fe.Msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether param is among the violated fields.
func (e Errors) Has(param string) bool {
	for _, fe := range e {
		if fe.Param == param {
			return true
		}
	}
	return false
}

// Genders is the accepted gender set, compared case-insensitively.
var Genders = []string{"male", "female", "other"}

var (
	mobileRe = regexp.MustCompile(`^\+?[1-9][0-9]{6,14}$`)
	phoneSep = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

	dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04:05.000Z07:00"}

	// values of these fields are never echoed back
	secretFields = map[string]bool{"password": true, "newPassword": true}
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	must(val.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return IsMobilePhone(fl.Field().String())
	}))
	must(val.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
		g := strings.ToLower(strings.TrimSpace(fl.Field().String()))
		for _, ok := range Genders {
			if g == ok {
				return true
			}
		}
		return false
	}))
	must(val.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	}))
	return val
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// IsMobilePhone accepts international numbers with an optional leading '+'
// and common separators.
func IsMobilePhone(s string) bool {
	return mobileRe.MatchString(phoneSep.Replace(strings.TrimSpace(s)))
}

// ParseDate parses an ISO 8601 date or date-time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// Struct validates s against its `validate` tags. It returns nil when s is
// valid and an Errors value listing every violation otherwise.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		e := FieldError{Param: fe.Field(), Msg: message(fe)}
		if !secretFields[fe.Field()] {
			e.Value = fe.Value()
		}
		out = append(out, e)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Field is required"
	case "min":
		return fmt.Sprintf("Must be at least %s characters long", fe.Param())
	case "email":
		return "Invalid email"
	case "mobile":
		return "Invalid phone number"
	case "gender":
		return "Invalid gender"
	case "isodate":
		return "Invalid date"
	}
	return "Invalid value"
}
