package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xcyber/portal/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and folds failures into one invalid error.
func validateStruct(what string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+":"+fe.Tag())
	}
	return newInvalidDetails("invalid "+what+": "+strings.Join(fields, ", "), fields)
}

// answerFormatTag maps a question type to the validator tag its answers must satisfy.
func answerFormatTag(t models.QuestionType) string {
	switch t {
	case models.QuestionEmail:
		return "email"
	case models.QuestionNumber:
		return "numeric"
	case models.QuestionDate:
		return "datetime=2006-01-02"
	}
	return ""
}

func checkAnswerFormat(t models.QuestionType, a models.Answer) bool {
	tag := answerFormatTag(t)
	if tag == "" || a.Empty() {
		return true
	}
	return validate.Var(strings.TrimSpace(a.Text()), tag) == nil
}

// normalizeOptions trims entries and drops blanks.
func normalizeOptions(opts []string) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
