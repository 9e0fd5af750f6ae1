// Package api はHTTP応答で共有するJSONの型を定義します。
package api

// ErrorResponse は全エンドポイント共通のエラー応答です。
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse は本文を持たない成功応答です。
type MessageResponse struct {
	Message string `json:"message"`
}

// 外部クライアントが依存しているエラーメッセージです。変更しないでください。
const (
	MsgImageFileNotProvided = "Image file not provided"
	MsgImageNotProvided     = "Image not provided"
	MsgImageTooLarge        = "Image too large"
	MsgInternalServerError  = "Internal server error"
	MsgInvalidRequest       = "Invalid request"
	MsgUnauthorized         = "Unauthorized"
)
