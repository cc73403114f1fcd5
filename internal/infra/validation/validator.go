package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"staybook/internal/app/middleware"
	"staybook/internal/domain/shared/domainerr"
)

var slotPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Validator checks struct tags of commands and queries with go-playground
// validator. Failures surface as domainerr.ValidationError on the first
// offending field.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("slot", func(fl validator.FieldLevel) bool {
		return slotPattern.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

func (v *Validator) Validate(ctx context.Context, message any) error {
	if message == nil {
		return nil
	}
	t := reflect.TypeOf(message)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	err := v.v.StructCtx(ctx, message)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domainerr.Validation(fe.Field(), describe(fe))
	}
	return domainerr.Validation("", err)
}

func describe(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return errors.New("is required")
	case "email":
		return errors.New("must be a valid email address")
	case "slot":
		return errors.New("must be formatted HH:MM")
	case "oneof":
		return fmt.Errorf("must be one of %s", fe.Param())
	case "len":
		return fmt.Errorf("must be %s characters long", fe.Param())
	case "max":
		return fmt.Errorf("must be at most %s", fe.Param())
	case "min", "gte":
		return fmt.Errorf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Errorf("must be at most %s", fe.Param())
	}
	return fmt.Errorf("failed %q validation", fe.Tag())
}

var _ middleware.Validator = (*Validator)(nil)
