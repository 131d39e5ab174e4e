// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	ageGroupPattern = regexp.MustCompile(`^(\d{1,3}-\d{1,3}|\+\d{1,3})$`)
	periodPattern   = regexp.MustCompile(`^\d{4}-T[1-4]$`)
)

// ClusterChecker reports whether a geographic cluster code is known.
type ClusterChecker interface {
	IsKnownCluster(code string) bool
}

// Validator wraps the go-playground validator for structured validation.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator instance with the "agegroup" and "period"
// rules registered.
// The "cluster" rule needs a codebook and is added with RegisterClusterCheck.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("agegroup", func(fl validator.FieldLevel) bool {
		return ageGroupPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		return periodPattern.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

// RegisterClusterCheck adds the "cluster" rule. Empty values pass so the rule
// can be combined with omitempty or required.
func (val *Validator) RegisterClusterCheck(checker ClusterChecker) error {
	return val.v.RegisterValidation("cluster", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		return code == "" || checker.IsKnownCluster(code)
	})
}
