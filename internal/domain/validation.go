package domain

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate runs struct tag validation on v and converts failures to a
// BAD_USER_INPUT error listing the offending fields.
func Validate(v any, what string) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return BadUserInput("invalid %s: %v", what, err)
	}
	seen := map[string]bool{}
	var fields []string
	for _, fe := range verrs {
		ns := fe.Namespace()
		// drop the root type name
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		if !seen[ns] {
			seen[ns] = true
			fields = append(fields, ns)
		}
	}
	sort.Strings(fields)
	return BadUserInput("%s is missing or has invalid fields: %s", what, strings.Join(fields, ", ")).
		WithCause(CauseMissingFields)
}

// ValidateForSubmit checks that the contract form is complete.
func (fd ContractFormData) ValidateForSubmit() error {
	return Validate(fd, "contract form data")
}

// ValidateForSubmit checks that the rate form is complete.
func (fd RateFormData) ValidateForSubmit() error {
	return Validate(fd, "rate form data")
}
