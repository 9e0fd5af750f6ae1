package entity

import (
	"strings"
	"time"
)

// maxCameraSegment はオブジェクト名に使うカメラIDの最大長です。
const maxCameraSegment = 64

// Evidence は脅威が検出されたフレームの保存単位です。
type Evidence struct {
	CameraID   string
	Payload    ImagePayload
	Response   AggregateResponse
	DetectedAt time.Time
}

// CameraSegment はクライアントが送ったカメラIDを[A-Za-z0-9._-]に制限して返します。
// それ以外の文字は'_'に置き換え、空や"."/".."は"unknown"とします。
func (e Evidence) CameraSegment() string {
	var b strings.Builder
	for _, r := range e.CameraID {
		if b.Len() >= maxCameraSegment {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if strings.Trim(s, ".") == "" {
		return "unknown"
	}
	return s
}

// ObjectName は保存先のオブジェクト名を返します。
// 例: cam-01/20240102T030405Z-<sha256の先頭12文字>
func (e Evidence) ObjectName() string {
	return e.CameraSegment() + "/" + e.DetectedAt.UTC().Format("20060102T150405Z") + "-" + e.Payload.SHA256()[:12]
}
