package errors

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/leebenson/conform"
)

var (
	validate *validator.Validate
	trans    ut.Translator
)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	english := en.New()
	uni := ut.New(english, english)
	trans, _ = uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	_ = validate.RegisterValidation("notblank", validators.NotBlank)
	_ = validate.RegisterTranslation("notblank", trans, func(tr ut.Translator) error {
		return tr.Add("notblank", "{0} must not be blank", true)
	}, func(tr ut.Translator, fe validator.FieldError) string {
		msg, _ := tr.T("notblank", fe.Field())
		return msg
	})
}

// ValidateStruct applies the conform tags of req and checks its validate tags.
// The returned error is nil or a Validation *Error with one FieldError per
// failed field.
func ValidateStruct(req interface{}) error {
	if err := conform.Strings(req); err != nil {
		return Internal("unable to normalise request", err)
	}
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return Validation(err.Error())
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, FieldError{Field: e.Field(), Message: e.Translate(trans)})
	}
	return Validation("invalid request", fields...)
}
