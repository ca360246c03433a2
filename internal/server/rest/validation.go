package rest

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerTagNames sync.Once

// useJSONFieldNames makes validation errors name fields the way clients
// send them.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	})
}

// translateValidationError turns binding errors into one readable line.
func translateValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return "invalid request body"
	}

	messages := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			messages = append(messages, field+" is required")
		case "email":
			messages = append(messages, "invalid email format")
		case "min":
			messages = append(messages, field+" must be at least "+fe.Param()+" characters")
		case "max":
			messages = append(messages, field+" must be at most "+fe.Param()+" characters")
		case "alphanum":
			messages = append(messages, field+" may contain only letters and digits")
		default:
			messages = append(messages, field+" is invalid")
		}
	}
	return strings.Join(messages, ", ")
}
