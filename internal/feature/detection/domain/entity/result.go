package entity

import (
	"encoding/json"
	"fmt"
)

// ErrorKind はプロバイダー呼び出し失敗の分類です。
type ErrorKind string

const (
	// ErrorKindNetwork は接続失敗またはタイムアウトです。
	ErrorKindNetwork ErrorKind = "network_error"
	// ErrorKindProviderHTTP はプロバイダーが2xx以外を返した場合です。
	ErrorKindProviderHTTP ErrorKind = "provider_http_error"
	// ErrorKindMalformedResponse は応答がJSONでない、またはpredictionsを含まない場合です。
	ErrorKindMalformedResponse ErrorKind = "malformed_response"
	// ErrorKindInvalidInput は空の画像や0以下のタイムアウトで呼び出された場合です。
	ErrorKindInvalidInput ErrorKind = "invalid_input"
	// ErrorKindUnconfigured は要求された種類にプロバイダーが登録されていない場合です。
	ErrorKindUnconfigured ErrorKind = "unconfigured"
)

// TimeoutMessage はタイムアウト時のProviderError.Messageです。
const TimeoutMessage = "timeout"

// ProviderError は1つのプロバイダー呼び出しの失敗を表します。
type ProviderError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int   // ErrorKindProviderHTTPのときのみ設定
	Cause      error // ログ用。呼び出し元には公開しない
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError はProviderErrorを生成します。
func NewProviderError(kind ErrorKind, message string, cause error) *ProviderError {
	return &ProviderError{Kind: kind, Message: message, Cause: cause}
}

// ProviderResult は1リクエスト内の1プロバイダーの結果です。SuccessかFailureのどちらかです。
type ProviderResult struct {
	Kind        ProviderKind
	Predictions []Prediction
	// Body はプロバイダーが返したJSONドキュメント全体です（singleモードでそのまま返します）。
	Body json.RawMessage
	Err  *ProviderError
}

// Success は成功結果を生成します。predictionsがnilの場合は空スライスにします。
func Success(kind ProviderKind, predictions []Prediction, body json.RawMessage) ProviderResult {
	if predictions == nil {
		predictions = []Prediction{}
	}
	return ProviderResult{Kind: kind, Predictions: predictions, Body: body}
}

// Failure は失敗結果を生成します。
func Failure(kind ProviderKind, err *ProviderError) ProviderResult {
	if err == nil {
		err = NewProviderError(ErrorKindNetwork, "unknown failure", nil)
	}
	return ProviderResult{Kind: kind, Err: err}
}

// OK は成功結果かどうかを返します。
func (r ProviderResult) OK() bool { return r.Err == nil }

// PredictionsOrEmpty は成功時は検出結果を、失敗時は空スライスを返します。
func (r ProviderResult) PredictionsOrEmpty() []Prediction {
	if !r.OK() || r.Predictions == nil {
		return []Prediction{}
	}
	return r.Predictions
}
