package api

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	notBlankTag = "notblank"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && strings.TrimSpace(s) != ""
	})
	_ = validate.RegisterTranslation(notBlankTag, translator,
		func(ut.Translator) error { return nil },
		func(ut.Translator, validator.FieldError) string { return "this field cannot be blank" },
	)
}

// ─── Request shapes ─────────────────────────────────────────────────────────

type userRequest struct {
	UserID string `json:"user_id" validate:"notblank,max=254"`
	Track  string `json:"track" validate:"omitempty,oneof=eco xp"`
}

type refRequest struct {
	userRequest
	Ref string `json:"id" validate:"notblank,max=128"`
}

type quizRequest struct {
	refRequest
	// -1 marks an unanswered question.
	Answers []int `json:"answers" validate:"max=200,dive,gte=-1"`
}

type pageRequest struct {
	Limit int `json:"limit" validate:"gte=0,lte=100"`
}

type heatmapRequest struct {
	userRequest
	Weeks int `json:"weeks" validate:"gte=0,lte=53"`
}

// ─── Errors ─────────────────────────────────────────────────────────────────

// fieldErrors maps json field names to readable messages. ok is false when
// err is not a validation error.
func fieldErrors(err error) (map[string]string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Translate(translator)
	}
	return out, true
}
