// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/ja"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	ja_translations "github.com/go-playground/validator/v10/translations/ja"
	"github.com/hitoshi/careerboard/internal/middleware"
	"github.com/hitoshi/careerboard/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限サイズ。
const maxRequestBodyBytes = 1 << 20

// RequestValidator はリクエストボディのデコードと入力検証を行う。
// 検証エラーのメッセージは日本語に翻訳し、項目名にはjsonタグの名前を使う。
type RequestValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// NewRequestValidator はRequestValidatorを生成する。
func NewRequestValidator() (*RequestValidator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	locale := ja.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("ja")
	if err := ja_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("failed to register validator translations: %w", err)
	}
	if err := registerMaxBytes(validate, trans); err != nil {
		return nil, err
	}

	return &RequestValidator{validate: validate, trans: trans}, nil
}

// registerMaxBytes はUTF-8のバイト数で上限を検査するmaxbytesタグを登録する。
// bcryptのようにバイト数で制限される値に使う。maxは文字数を数えるため代わりにならない。
func registerMaxBytes(validate *validator.Validate, trans ut.Translator) error {
	err := validate.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	if err != nil {
		return fmt.Errorf("failed to register maxbytes validation: %w", err)
	}

	err = validate.RegisterTranslation("maxbytes", trans,
		func(tr ut.Translator) error {
			return tr.Add("maxbytes", "{0}は{1}バイト以下にしてください", false)
		},
		func(tr ut.Translator, fe validator.FieldError) string {
			msg, err := tr.T("maxbytes", fe.Field(), fe.Param())
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register maxbytes translation: %w", err)
	}
	return nil
}

// Decode はJSONボディをdstにデコードし、構造体タグに従って検証する。
// 失敗時は利用者向けメッセージを持つ*model.APIErrorを返す。
func (v *RequestValidator) Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		slog.Debug("failed to decode request body", slog.String("error", err.Error()))
		return model.NewValidationError("リクエストボディの解析に失敗しました。")
	}
	return v.Struct(dst)
}

// Struct は構造体タグに従って検証する。
func (v *RequestValidator) Struct(dst any) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return model.NewValidationError(verrs[0].Translate(v.trans))
	}
	return fmt.Errorf("failed to validate request: %w", err)
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// principalOrReject はガード済みのプリンシパルを取り出す。
// ガードの設定漏れでプリンシパルが無い場合は401を書き込んでfalseを返す。
func principalOrReject(w http.ResponseWriter, r *http.Request) (*model.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, model.NewNoTokenError())
		return nil, false
	}
	return p, true
}
