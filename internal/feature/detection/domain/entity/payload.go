package entity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
)

// ImagePayload はアップロードされた画像のバイト列とContent-Typeのヒントです。
// 1リクエストの間だけ保持され、生成後は変更しません。複数のプロバイダー呼び出しが
// 同じバッファを同時に読むため、読み取りは必ずReaderを経由します。
type ImagePayload struct {
	data        []byte
	contentType string
}

// NewImagePayload はImagePayloadを生成します。
// contentTypeが空の場合はバイト列から推定します。呼び出し後にdataを書き換えてはいけません。
func NewImagePayload(data []byte, contentType string) ImagePayload {
	if contentType == "" && len(data) > 0 {
		contentType = http.DetectContentType(data)
	}
	return ImagePayload{data: data, contentType: contentType}
}

// Bytes は画像のバイト列を返します。読み取り専用として扱ってください。
func (p ImagePayload) Bytes() []byte { return p.data }

// ContentType はContent-Typeのヒントを返します。
func (p ImagePayload) ContentType() string { return p.contentType }

// Size は画像のバイト数を返します。
func (p ImagePayload) Size() int { return len(p.data) }

// Empty は画像が空かどうかを返します。
func (p ImagePayload) Empty() bool { return len(p.data) == 0 }

// Reader は呼び出しごとに独立した読み取り位置を持つReaderを返します。
func (p ImagePayload) Reader() *bytes.Reader { return bytes.NewReader(p.data) }

// SHA256 は画像内容のSHA-256を16進文字列で返します。
func (p ImagePayload) SHA256() string {
	sum := sha256.Sum256(p.data)
	return hex.EncodeToString(sum[:])
}
