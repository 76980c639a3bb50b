package controllers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"constructlink/security"
)

// FieldErrors 以表单字段名为键
type FieldErrors map[string]string

// formErrorKey holds errors that belong to the whole form.
const formErrorKey = "_form"

func init() {
	// 校验错误使用 form 标签里的字段名
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// FieldErrorsFrom maps validator errors to one message per field.
func FieldErrorsFrom(err error) FieldErrors {
	errs := FieldErrors{}
	if err == nil {
		return errs
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		errs[formErrorKey] = "Invalid input."
		return errs
	}
	for _, fe := range ves {
		if _, seen := errs[fe.Field()]; seen {
			continue
		}
		errs[fe.Field()] = message(fe)
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Please enter a valid email address."
	case "url":
		return "Please enter a valid URL."
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters.", fe.Param())
	case "oneof":
		return "Please choose one of the listed options."
	case "alphanum":
		return "Only letters and digits are allowed."
	default:
		return "Invalid value."
	}
}

// bindForm fills form from the POST body, sanitizes its strings and runs the
// binding rules.
func bindForm(c *gin.Context, form any) FieldErrors {
	if err := c.Request.ParseForm(); err != nil {
		return FieldErrors{formErrorKey: "Invalid input."}
	}
	if err := binding.MapFormWithTag(form, c.Request.PostForm, "form"); err != nil {
		return FieldErrors{formErrorKey: "Invalid input."}
	}
	security.SanitizeStruct(form)
	return FieldErrorsFrom(binding.Validator.ValidateStruct(form))
}
