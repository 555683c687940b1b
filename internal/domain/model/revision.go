package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	sourcePattern      = regexp.MustCompile(`^(https://|git@)[A-Za-z0-9._:/-]+(\.git)?$`)
	refPattern         = regexp.MustCompile(`^[A-Za-z0-9._/-]{1,128}$`)
	serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.@-]{0,63}$`)
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the git_source, git_ref and
// service_name tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		mustRegister(v, "git_source", sourcePattern.MatchString)
		mustRegister(v, "git_ref", refPattern.MatchString)
		mustRegister(v, "service_name", IsValidServiceName)
		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, match func(string) bool) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return match(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// Revision identifies the source to release: a repository location and a
// branch or tag in it.
type Revision struct {
	Source string `validate:"required,git_source"`
	Ref    string `validate:"required,git_ref"`
}

// Validate checks Source and Ref against their grammars. The returned error
// matches ErrValidation.
func (r Revision) Validate() error {
	err := Validator().Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		switch fieldErrs[0].Field() {
		case "Source":
			return fmt.Errorf("%w: invalid repository %q", ErrValidation, r.Source)
		case "Ref":
			return fmt.Errorf("%w: invalid ref %q", ErrValidation, r.Ref)
		}
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func (r Revision) String() string {
	return r.Source + "@" + r.Ref
}

// IsValidServiceName reports whether name is safe to use as a unit name and
// as a path component.
func IsValidServiceName(name string) bool {
	return serviceNamePattern.MatchString(name) && !strings.Contains(name, "..")
}
