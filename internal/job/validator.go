package job

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/thoas/go-funk"
)

type ValidationRule struct {
	Rule func(v *validator.Validate)
}

// Validator checks a SubmitRequest before anything is sent to the server.
type Validator struct {
	validator       *validator.Validate
	annotationTypes []string
}

// NewValidator returns a validator accepting the given annotation types.
// With strictExtensions set, only .vcf and .csv files pass.
func NewValidator(annotationTypes []string, strictExtensions bool) *Validator {
	v := &Validator{
		validator:       validator.New(),
		annotationTypes: annotationTypes,
	}
	v.Register(
		ValidationRule{Rule: func(val *validator.Validate) {
			_ = val.RegisterValidation("annotation_type", v.annotationTypeValidator)
		}},
		ValidationRule{Rule: func(val *validator.Validate) {
			_ = val.RegisterValidation("variant_file", variantFileValidator(strictExtensions))
		}},
	)
	return v
}

func (v *Validator) Register(rules ...ValidationRule) {
	for _, validationRule := range rules {
		validationRule.Rule(v.validator)
	}
}

func (v *Validator) AnnotationTypes() []string {
	return v.annotationTypes
}

// Validate returns an *ErrValidation describing the first problem found.
func (v *Validator) Validate(req SubmitRequest) error {
	err := v.validator.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewErrValidation("invalid submission: %v", err)
	}

	fe := verrs[0]
	switch fe.Field() {
	case "FilePath":
		if fe.Tag() == "required" {
			return NewErrNoFile()
		}
		return NewErrInvalidFileType()
	case "AnnotationType":
		if fe.Tag() == "required" {
			return NewErrNoAnnotationType()
		}
		return NewErrValidation("Unsupported annotation type %q. Supported types: %s", req.AnnotationType, strings.Join(v.annotationTypes, ", "))
	default:
		return NewErrValidation("invalid submission: %v", fe)
	}
}

func (v *Validator) annotationTypeValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return funk.ContainsString(v.annotationTypes, val)
}

func variantFileValidator(strict bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		if !strict {
			return true
		}
		val, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return funk.ContainsString(allowedExtensions, Extension(val))
	}
}
