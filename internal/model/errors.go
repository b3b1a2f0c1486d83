package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, generation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeEmptyPrompt          = "EMPTY_PROMPT"
	ErrCodeInvalidOption        = "INVALID_OPTION"
	ErrCodeGenerationInProgress = "GENERATION_IN_PROGRESS"
	ErrCodeGenerationFailed     = "GENERATION_FAILED"
	ErrCodeResultNotFound       = "RESULT_NOT_FOUND"
	ErrCodeDownloadFailed       = "DOWNLOAD_FAILED"
	ErrCodeSSRFBlocked          = "SSRF_BLOCKED"
	ErrCodeCSRFInvalid          = "CSRF_INVALID"
	ErrCodeRateLimited          = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// MediaKind は生成対象の種別。通知文言の出し分けに使う。
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// NewEmptyPromptError はプロンプト未入力エラーを生成する。
func NewEmptyPromptError(kind MediaKind) *APIError {
	target := "images"
	if kind == MediaVideo {
		target = "a video"
	}
	return &APIError{
		Code:     ErrCodeEmptyPrompt,
		Message:  fmt.Sprintf("Please enter a prompt to generate %s", target),
		Category: "validation",
		Action:   "Describe what you want to create and try again.",
	}
}

// NewInvalidOptionError は選択肢に無い値が指定された場合のエラーを生成する。
func NewInvalidOptionError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOption,
		Message:  fmt.Sprintf("Invalid option: %s", reason),
		Category: "validation",
		Action:   "Choose one of the listed options.",
	}
}

// NewGenerationInProgressError は生成中に再送信された場合のエラーを生成する。
func NewGenerationInProgressError() *APIError {
	return &APIError{
		Code:     ErrCodeGenerationInProgress,
		Message:  "Generation is already in progress.",
		Category: "generation",
		Action:   "Wait for the current generation to finish.",
	}
}

// NewGenerationFailedError は生成バックエンドの失敗を表すエラーを生成する。
// 詳細はログにのみ記録し、ユーザーには一般的な文言を返す。
func NewGenerationFailedError(kind MediaKind) *APIError {
	target := "images"
	if kind == MediaVideo {
		target = "video"
	}
	return &APIError{
		Code:     ErrCodeGenerationFailed,
		Message:  fmt.Sprintf("Failed to generate %s. Please try again.", target),
		Category: "generation",
		Action:   "Wait a moment and try again.",
	}
}

// NewResultNotFoundError は指定された生成結果が存在しない場合のエラーを生成する。
func NewResultNotFoundError(ref string) *APIError {
	return &APIError{
		Code:     ErrCodeResultNotFound,
		Message:  fmt.Sprintf("Result not found: %s", ref),
		Category: "generation",
		Action:   "Generate again and pick a result from the current list.",
	}
}

// NewDownloadFailedError はダウンロード失敗エラーを生成する。
func NewDownloadFailedError(kind MediaKind) *APIError {
	return &APIError{
		Code:     ErrCodeDownloadFailed,
		Message:  fmt.Sprintf("Failed to download %s", kind),
		Category: "generation",
		Action:   "Try downloading again.",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "Access to the result URL was blocked by the security policy.",
		Category: "validation",
		Action:   "Only public http(s) result URLs can be downloaded.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Sign in to continue.",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Failed to parse the request body.",
		Category: "validation",
		Action:   "Send a valid JSON body.",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Wait a moment and try again.",
	}
}

// NewCSRFInvalidError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRF token validation failed.",
		Category: "auth",
		Action:   "Reload the page and try again.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}
