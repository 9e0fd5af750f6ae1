package usecase

import "errors"

var (
	// ErrEmptyImage は画像が添付されていない、または0バイトの場合に返されます。
	ErrEmptyImage = errors.New("image is empty")
	// ErrImageTooLarge は画像がMaxImageSizeを超える場合に返されます。
	ErrImageTooLarge = errors.New("image too large")
	// ErrNoKinds はエンドポイントに検出種類が設定されていない場合に返されます。
	ErrNoKinds = errors.New("endpoint has no provider kinds")
)
