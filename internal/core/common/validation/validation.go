package validation

import (
	"fmt"
	"regexp"
	"strings"

	errors "github.com/frahmantamala/kit-checkout/internal"
)

// emailPattern is deliberately loose: something, an @, something, a dot, something.
var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

type ValidatorFunc func(interface{}) *errors.AppError

type FieldValidator struct {
	FieldName  string
	Value      interface{}
	Validators []ValidatorFunc
}

type ValidationBuilder struct {
	fields []FieldValidator
	errors []errors.ValidationError
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{
		fields: make([]FieldValidator, 0),
		errors: make([]errors.ValidationError, 0),
	}
}

func (v *ValidationBuilder) Field(name string, value interface{}) *FieldValidator {
	fv := FieldValidator{
		FieldName:  name,
		Value:      value,
		Validators: make([]ValidatorFunc, 0),
	}
	v.fields = append(v.fields, fv)
	return &v.fields[len(v.fields)-1]
}

// Required fails on empty values; message and code override the generic ones when set.
func (fv *FieldValidator) Required(opts ...Option) *FieldValidator {
	o := buildOptions(fmt.Sprintf("%s is required", fv.FieldName), errors.ErrCodeValidationFailed, opts)
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		switch v := value.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return errors.NewValidationFieldError(fv.FieldName, o.message, o.code)
			}
		case *string:
			if v == nil || strings.TrimSpace(*v) == "" {
				return errors.NewValidationFieldError(fv.FieldName, o.message, o.code)
			}
		case nil:
			return errors.NewValidationFieldError(fv.FieldName, o.message, o.code)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) Email(opts ...Option) *FieldValidator {
	o := buildOptions(fmt.Sprintf("%s must be a valid email address", fv.FieldName), errors.ErrCodeInvalidEmail, opts)
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok && v != "" {
			if !emailPattern.MatchString(v) {
				return errors.NewValidationFieldError(fv.FieldName, o.message, o.code)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MaxLength(max int) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok {
			if len(v) > max {
				message := fmt.Sprintf("%s must not exceed %d characters", fv.FieldName, max)
				return errors.NewValidationFieldError(fv.FieldName, message, errors.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) Custom(validator func(interface{}) *errors.AppError) *FieldValidator {
	fv.Validators = append(fv.Validators, validator)
	return fv
}

// Validate runs every field's validators and stops at the first failing one per field.
func (v *ValidationBuilder) Validate() *errors.AppError {
	var validationErrors []errors.ValidationError
	var first *errors.AppError

	for _, field := range v.fields {
		for _, validator := range field.Validators {
			appErr := validator(field.Value)
			if appErr == nil {
				continue
			}
			if first == nil {
				first = appErr
			}
			if details, ok := appErr.Details.(errors.ValidationErrors); ok {
				validationErrors = append(validationErrors, details.Errors...)
			} else {
				validationErrors = append(validationErrors, errors.ValidationError{
					Field:   field.FieldName,
					Message: appErr.Message,
					Code:    string(appErr.Code),
				})
			}
			break
		}
	}

	if len(validationErrors) == 0 {
		return nil
	}

	// a single failure keeps its own code so callers can branch on it
	if len(validationErrors) == 1 {
		return first
	}

	return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
		WithDetails(errors.ValidationErrors{Errors: validationErrors})
}

type Option func(*options)

type options struct {
	message string
	code    errors.ErrorCode
}

func WithMessage(message string) Option {
	return func(o *options) { o.message = message }
}

func WithCode(code errors.ErrorCode) Option {
	return func(o *options) { o.code = code }
}

func buildOptions(message string, code errors.ErrorCode, opts []Option) options {
	o := options{message: message, code: code}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ValidateEmail applies the checkout form rules to a buyer email.
func ValidateEmail(email string) *errors.AppError {
	validator := NewValidator()
	validator.Field("email", email).
		Required(WithMessage("O campo 'email' é obrigatório."), WithCode(errors.ErrCodeMissingEmail)).
		Email(WithMessage("Por favor, insira um endereço de e-mail válido."), WithCode(errors.ErrCodeInvalidEmail)).
		MaxLength(254)
	return validator.Validate()
}
