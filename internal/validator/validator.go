package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_@.]+$`)

// Validator is a wrapper around the validator library with the app's custom rules:
//
//	docid     a usable Firestore document id
//	username  letters, digits and _ @ .
//	day       a yyyy-MM-dd date
type Validator struct {
	validate *validator.Validate
}

// New creates a new Validator instance.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// The rule names are fixed and the functions valid, so registration cannot fail.
	_ = v.RegisterValidation("docid", validDocID)
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("day", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})
	return &Validator{validate: v}
}

func validDocID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if id == "" || len(id) > 1500 || id == "." || id == ".." {
		return false
	}
	if strings.Contains(id, "/") {
		return false
	}
	return !(strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__"))
}

// ValidateStruct validates a struct based on its tags.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateVar validates a single value against a tag such as "docid".
func (v *Validator) ValidateVar(value interface{}, tag string) error {
	if err := v.validate.Var(value, tag); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// Describe turns a validation error into one readable line per failed field.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if field == "" {
			field = "value"
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "username":
			msgs = append(msgs, field+" may only contain letters, digits, _ @ and .")
		case "day":
			msgs = append(msgs, field+" must be a yyyy-MM-dd date")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
