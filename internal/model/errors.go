// Package model はドメインモデルを定義する。
package model

import "fmt"

// エラーカテゴリ。HTTPステータスへの対応はハンドラー層で一元的に行う。
const (
	CategoryValidation     = "validation"     // 400
	CategoryAuthentication = "authentication" // 401
	CategoryAuthorization  = "authorization"  // 403
	CategoryConflict       = "conflict"       // 409
	CategoryNotFound       = "not_found"      // 404
	CategoryInternal       = "internal"       // 500
)

// APIError は統一エラーフォーマットを表す。
// Categoryはエラーの種別で、レスポンスのステータスコードを決定する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, authentication, authorization, conflict, not_found, internal
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodePasswordTooLong     = "PASSWORD_TOO_LONG"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeWrongAuthOrigin     = "WRONG_AUTH_ORIGIN"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeNoToken             = "NO_TOKEN"
	ErrCodeInvalidToken        = "INVALID_TOKEN"
	ErrCodeTokenExpired        = "TOKEN_EXPIRED"
	ErrCodeWrongKind           = "WRONG_PRINCIPAL_KIND"
	ErrCodeAccountGone         = "ACCOUNT_NOT_FOUND"
	ErrCodeAccountDisabled     = "ACCOUNT_DISABLED"
	ErrCodeAssertionMissing    = "ASSERTION_MISSING"
	ErrCodeAssertionRejected   = "ASSERTION_REJECTED"
	ErrCodeAlreadyApplied      = "ALREADY_APPLIED"
	ErrCodeJobNotFound         = "JOB_NOT_FOUND"
	ErrCodeProfileNotFound     = "PROFILE_NOT_FOUND"
	ErrCodeApplicationNotFound = "APPLICATION_NOT_FOUND"
	ErrCodeNotJobOwner         = "NOT_JOB_OWNER"
	ErrCodeInvalidURL          = "INVALID_URL"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewValidationError は入力値不正エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: CategoryValidation,
		Action:   "入力内容を確認してください。",
	}
}

// NewPasswordTooLongError はパスワードのバイト数超過エラーを生成する。
func NewPasswordTooLongError(maxBytes int) *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooLong,
		Message:  fmt.Sprintf("パスワードは%dバイト以内で入力してください。", maxBytes),
		Category: CategoryValidation,
		Action:   "全角文字は1文字あたり3バイトとして数えます。短いパスワードを設定してください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// メールアドレスの存在有無を推測されないよう、未登録とパスワード誤りで同じエラーを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: CategoryAuthentication,
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewWrongAuthOriginError は登録方法と異なる方法でログインしようとした場合のエラーを生成する。
func NewWrongAuthOriginError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeWrongAuthOrigin,
		Message:  message,
		Category: CategoryAuthorization,
		Action:   "登録時と同じ方法でログインしてください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: CategoryConflict,
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewNoTokenError はトークン未提示エラーを生成する。
func NewNoTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeNoToken,
		Message:  "認証が必要です。",
		Category: CategoryAuthentication,
		Action:   "ログインしてください。",
	}
}

// NewInvalidTokenError は署名不正・形式不正トークンのエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "認証トークンが無効です。",
		Category: CategoryAuthentication,
		Action:   "ログインし直してください。",
	}
}

// NewTokenExpiredError は有効期限切れトークンのエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "認証トークンの有効期限が切れています。",
		Category: CategoryAuthentication,
		Action:   "ログインし直してください。",
	}
}

// NewWrongKindError はルートが期待する種別と異なるトークンのエラーを生成する。
func NewWrongKindError(expected Kind) *APIError {
	return &APIError{
		Code:     ErrCodeWrongKind,
		Message:  fmt.Sprintf("この操作は%sアカウントのみ実行できます。", expected.Label()),
		Category: CategoryAuthorization,
		Action:   "適切なアカウントでログインしてください。",
	}
}

// NewAccountGoneError はトークンの主体が既に存在しない場合のエラーを生成する。
func NewAccountGoneError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountGone,
		Message:  "アカウントが見つかりません。",
		Category: CategoryAuthentication,
		Action:   "ログインし直してください。",
	}
}

// NewAccountDisabledError は無効化されたアカウントのエラーを生成する。
func NewAccountDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountDisabled,
		Message:  "このアカウントは無効化されています。",
		Category: CategoryAuthorization,
		Action:   "サポートにお問い合わせください。",
	}
}

// NewAssertionMissingError は外部IDトークン未指定エラーを生成する。
func NewAssertionMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeAssertionMissing,
		Message:  "IDトークンが指定されていません。",
		Category: CategoryValidation,
		Action:   "Googleでのサインインをやり直してください。",
	}
}

// NewAssertionRejectedError は外部IDトークン検証失敗エラーを生成する。
func NewAssertionRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeAssertionRejected,
		Message:  "IDトークンを検証できませんでした。",
		Category: CategoryAuthentication,
		Action:   "Googleでのサインインをやり直してください。",
	}
}

// NewAlreadyAppliedError は同一求人への重複応募エラーを生成する。
func NewAlreadyAppliedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyApplied,
		Message:  "この求人には既に応募済みです。",
		Category: CategoryConflict,
		Action:   "応募履歴から状況を確認してください。",
	}
}

// NewJobNotFoundError は求人未検出エラーを生成する。
// 募集終了（inactive）の求人も見つからない扱いとする。
func NewJobNotFoundError(jobID string) *APIError {
	return &APIError{
		Code:     ErrCodeJobNotFound,
		Message:  fmt.Sprintf("指定された求人が見つかりません: %s", jobID),
		Category: CategoryNotFound,
		Action:   "求人IDを確認してください。",
	}
}

// NewProfileNotFoundError は候補者プロフィール未検出エラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "プロフィールが見つかりません。",
		Category: CategoryNotFound,
		Action:   "ログインし直してください。",
	}
}

// NewApplicationNotFoundError は応募未検出エラーを生成する。
func NewApplicationNotFoundError(applicationID string) *APIError {
	return &APIError{
		Code:     ErrCodeApplicationNotFound,
		Message:  fmt.Sprintf("指定された応募が見つかりません: %s", applicationID),
		Category: CategoryNotFound,
		Action:   "応募IDを確認してください。",
	}
}

// NewNotJobOwnerError は他社の求人に対する操作エラーを生成する。
func NewNotJobOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotJobOwner,
		Message:  "この求人に対する権限がありません。",
		Category: CategoryAuthorization,
		Action:   "自社の求人のみ操作できます。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("%sのURLが無効です。", field),
		Category: CategoryValidation,
		Action:   "公開されているhttpsのURLを指定してください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: CategoryInternal,
		Action:   "しばらく待ってから再度お試しください。",
	}
}
