// Package archive は脅威検出時のフレームをAzure Blob Storageへ保存します。
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"surveillance_backend/internal/feature/detection/domain/entity"
	"surveillance_backend/internal/feature/detection/usecase"
)

// BlobUploader はazblob.Clientのうち使用する部分です。
type BlobUploader interface {
	UploadBuffer(ctx context.Context, containerName string, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// AzureArchiver は画像と検出結果JSONを同じ名前で保存します。
type AzureArchiver struct {
	uploader  BlobUploader
	container string
}

// AzureArchiverがEvidenceArchiverを実装していることをコンパイル時に検証します。
var _ usecase.EvidenceArchiver = (*AzureArchiver)(nil)

// NewAzureArchiver は接続文字列からAzureArchiverを生成します。
func NewAzureArchiver(connectionString, container string) (*AzureArchiver, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return NewAzureArchiverWithUploader(client, container), nil
}

// NewAzureArchiverWithSharedKey はアカウント名とキーからAzureArchiverを生成します。
func NewAzureArchiverWithSharedKey(accountName, accountKey, container string) (*AzureArchiver, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid storage credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return NewAzureArchiverWithUploader(client, container), nil
}

// NewAzureArchiverWithUploader は任意のBlobUploaderからAzureArchiverを生成します。
func NewAzureArchiverWithUploader(u BlobUploader, container string) *AzureArchiver {
	return &AzureArchiver{uploader: u, container: container}
}

// Archive は画像を<name>.<ext>、検出結果を<name>.jsonとして保存します。
func (a *AzureArchiver) Archive(ctx context.Context, ev entity.Evidence) error {
	name := ev.ObjectName()
	metadata := map[string]*string{
		"camera_id":   ptr(ev.CameraSegment()),
		"detections":  ptr(strconv.Itoa(ev.Response.DetectionCount())),
		"sha256":      ptr(ev.Payload.SHA256()),
		"detected_at": ptr(ev.DetectedAt.UTC().Format("2006-01-02T15:04:05Z")),
	}

	if _, err := a.uploader.UploadBuffer(ctx, a.container, name+extension(ev.Payload.ContentType()), ev.Payload.Bytes(), &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: ptr(ev.Payload.ContentType())},
		Metadata:    metadata,
	}); err != nil {
		return fmt.Errorf("upload image %s: %w", name, err)
	}

	doc, err := json.Marshal(ev.Response)
	if err != nil {
		return fmt.Errorf("encode detections %s: %w", name, err)
	}
	if _, err := a.uploader.UploadBuffer(ctx, a.container, name+".json", doc, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: ptr("application/json")},
		Metadata:    metadata,
	}); err != nil {
		return fmt.Errorf("upload detections %s: %w", name, err)
	}
	return nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".bin"
	}
}

func ptr(s string) *string { return &s }
