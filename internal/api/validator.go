package api

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Sri Lankan mobile numbers, with or without the leading zero.
var phonePattern = regexp.MustCompile(`^(?:0)?(7[01245678]\d{7})$`)

type Validator struct {
	validate *validator.Validate
}

// NewValidator builds the echo validator with the "phone" and
// "institutional_email" rules. emailDomain is matched case-insensitively.
func NewValidator(emailDomain string) (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to register phone validation")
	}

	domain := strings.ToLower(strings.TrimSpace(emailDomain))
	if domain == "" {
		return nil, errors.New("institutional email domain is empty")
	}

	suffix := "@" + domain
	err = v.RegisterValidation("institutional_email", func(fl validator.FieldLevel) bool {
		email := strings.ToLower(strings.TrimSpace(fl.Field().String()))
		return len(email) > len(suffix) && strings.HasSuffix(email, suffix)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to register institutional_email validation")
	}

	return &Validator{validate: v}, nil
}

func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return errors.New(describe(fieldErrs[0]))
	}
	return err
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must have at least %s characters or items", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must have at most %s characters or items", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "phone":
		return field + " must be a valid mobile number"
	case "institutional_email":
		return field + " must be an institutional email address"
	default:
		return fmt.Sprintf("%s failed the %s rule", field, fe.Tag())
	}
}
