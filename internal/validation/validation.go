// Package validation runs declarative struct-tag rules (go-playground/validator)
// plus per-type cross-field rules, and reports failures as a field -> messages map.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	svcErr "github.com/oggyb/socialtinder/internal/errors"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Weekdays are the accepted values for days_valid style fields.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// Errors maps a field path (tags.0, ticket_types.1.name) to its messages.
type Errors map[string][]string

func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// Err returns nil when there are no failures.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return svcErr.Validation(e)
}

// Ruler is implemented by inputs with rules struct tags cannot express.
// Rules runs after tag validation, against the same value.
type Ruler interface {
	Rules(errs Errors)
}

// Patch applies a partial request body onto dst. Services build dst from the
// stored row first, so conditional rules see the merged values.
type Patch func(dst any) error

type Validator struct {
	v *validator.Validate
}

var hhmm = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(DateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmm.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		day := strings.ToLower(fl.Field().String())
		for _, w := range Weekdays {
			if w == day {
				return true
			}
		}
		return false
	})

	return &Validator{v: v}
}

// Validate runs tag rules, then Rules when s implements Ruler. A non-nil
// result is always a KindValidation *errors.Error.
func (v *Validator) Validate(s any) error {
	errs := Errors{}
	if err := v.Check(s, errs); err != nil {
		return err
	}
	return errs.Err()
}

// Check runs the same rules as Validate but records failures on errs, so
// callers can add upload and database checks before reporting. The returned
// error is only set when validation itself could not run.
func (v *Validator) Check(s any, errs Errors) error {
	if err := v.v.Struct(s); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		for _, fe := range ve {
			field := fieldPath(fe.Namespace())
			errs.Add(field, message(field, fe))
		}
	}
	if r, ok := s.(Ruler); ok {
		r.Rules(errs)
	}
	return nil
}

// fieldPath turns "CreateEventInput.ticket_types[0].name" into "ticket_types.0.name".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		ns = rest
	}
	ns = strings.ReplaceAll(ns, "[", ".")
	return strings.ReplaceAll(ns, "]", "")
}

// Label renders a field path for messages: "group_name" -> "group name".
func Label(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

func message(field string, fe validator.FieldError) string {
	label := Label(field)
	kind := fe.Kind()
	switch fe.Tag() {
	case "required", "required_if", "required_without", "required_unless", "required_with":
		return fmt.Sprintf("The %s field is required.", label)
	case "max", "lte":
		switch kind {
		case reflect.String:
			return fmt.Sprintf("The %s field must not be greater than %s characters.", label, fe.Param())
		case reflect.Slice, reflect.Map:
			return fmt.Sprintf("The %s field must not have more than %s items.", label, fe.Param())
		}
		return fmt.Sprintf("The %s field must not be greater than %s.", label, fe.Param())
	case "min", "gte":
		switch kind {
		case reflect.String:
			return fmt.Sprintf("The %s field must be at least %s characters.", label, fe.Param())
		case reflect.Slice, reflect.Map:
			return fmt.Sprintf("The %s field must have at least %s items.", label, fe.Param())
		}
		return fmt.Sprintf("The %s field must be at least %s.", label, fe.Param())
	case "oneof", "weekday":
		return fmt.Sprintf("The selected %s is invalid.", label)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", label)
	case "url":
		return fmt.Sprintf("The %s field must be a valid URL.", label)
	case "date":
		return fmt.Sprintf("The %s field must be a valid date (YYYY-MM-DD).", label)
	case "hhmm":
		return fmt.Sprintf("The %s field must match the format H:i.", label)
	case "latitude", "longitude":
		return fmt.Sprintf("The %s field must be a valid coordinate.", label)
	default:
		return fmt.Sprintf("The %s field is invalid.", label)
	}
}

// ParseDate parses a YYYY-MM-DD value already checked by the "date" tag.
func ParseDate(s string) time.Time {
	t, _ := time.Parse(DateLayout, s)
	return t
}
