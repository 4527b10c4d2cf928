// Package model defines the SmartM records and their validation rules.
//
// Field names in JSON follow the persisted collection layout so existing
// stores decode unchanged. Dates are kept as strings (YYYY-MM-DD or
// ISO timestamps) and parsed on demand with ParseDate.
package model

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Entity is a record with a collection-unique integer id.
type Entity[T any] interface {
	GetID() int
	WithID(id int) T
}

// Normalizer is implemented by records that repair legacy values before
// validation.
type Normalizer interface {
	Normalize()
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// Registration only fails on an empty tag or nil func.
		_ = v.RegisterValidation("smartdate", isSmartDate)
		validate = v
	})
	return validate
}

func isSmartDate(fl validator.FieldLevel) bool {
	_, err := ParseDate(fl.Field().String())
	return err == nil
}

// ValidationError lists the fields of one record that failed validation.
type ValidationError struct {
	Fields []string
	err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return e.err }

// Validate checks v against its struct tags.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
	}
	return &ValidationError{Fields: fields, err: err}
}
