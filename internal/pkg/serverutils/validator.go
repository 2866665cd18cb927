package serverutils

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func ValidateRequest(req interface{}) error {
	return validate.Struct(req)
}

func validationMessages(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = "is required"
		case "max":
			out[fe.Field()] = "must be at most " + fe.Param()
		case "min":
			out[fe.Field()] = "must be at least " + fe.Param()
		case "oneof":
			out[fe.Field()] = "must be one of " + fe.Param()
		default:
			out[fe.Field()] = "failed " + fe.Tag()
		}
	}
	return out
}
