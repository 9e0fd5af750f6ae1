// Package handler はdetectionフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"surveillance_backend/internal/api"
	"surveillance_backend/internal/feature/detection/domain/entity"
	"surveillance_backend/internal/feature/detection/usecase"
)

// ImageFormField は画像を受け取るmultipartのフィールド名です。
const ImageFormField = "image"

// CameraFormField は証拠画像のタグに使う任意のフィールド名です。
const CameraFormField = "cameraId"

// multipartOverhead はMaxImageSizeに加えて許容するmultipartのヘッダー分です。
const multipartOverhead = 1 << 20

// DetectionUsecase は画像検出のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type DetectionUsecase interface {
	Detect(ctx context.Context, endpoint usecase.Endpoint, payload entity.ImagePayload, cameraID string) (entity.AggregateResponse, error)
}

// DetectionHandler は画像検出のHTTPリクエストを処理します。
type DetectionHandler struct {
	uc DetectionUsecase
}

// NewDetectionHandler はDetectionHandlerの新しいインスタンスを生成します。
func NewDetectionHandler(uc DetectionUsecase) *DetectionHandler {
	return &DetectionHandler{uc: uc}
}

// DetectMask はマスク着用を検出します。
//
// エンドポイント: POST /api/detection/detect-mask/
// Content-Type: multipart/form-data
// フィールド: image（画像ファイル、最大10MB）
func (h *DetectionHandler) DetectMask(c *gin.Context) {
	h.detect(c, usecase.EndpointMask, api.MsgImageFileNotProvided)
}

// DetectThreats はナイフと銃を並行に検出し、結果を結合します。
//
// エンドポイント: POST /api/detection/threats/
// フィールド: image（必須）、cameraId（任意）
func (h *DetectionHandler) DetectThreats(c *gin.Context) {
	h.detect(c, usecase.EndpointThreats, api.MsgImageNotProvided)
}

// DetectEmotion は表情を分類します。
//
// エンドポイント: POST /api/detection/emotion/
func (h *DetectionHandler) DetectEmotion(c *gin.Context) {
	h.detect(c, usecase.EndpointEmotion, api.MsgImageNotProvided)
}

// DetectObjects はCloud Visionで物体を検出します。
//
// エンドポイント: POST /api/detection/objects/
func (h *DetectionHandler) DetectObjects(c *gin.Context) {
	h.detect(c, usecase.EndpointObjects, api.MsgImageNotProvided)
}

// DetectScene はGeminiでシーンを評価します。
//
// エンドポイント: POST /api/detection/scene/
func (h *DetectionHandler) DetectScene(c *gin.Context) {
	h.detect(c, usecase.EndpointScene, api.MsgImageNotProvided)
}

func (h *DetectionHandler) detect(c *gin.Context, endpoint usecase.Endpoint, missingMsg string) {
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, usecase.MaxImageSize+multipartOverhead)
	}

	file, err := c.FormFile(ImageFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("リクエストサイズが上限を超過", "endpoint", endpoint.Name, "remote_addr", c.ClientIP())
			c.JSON(http.StatusRequestEntityTooLarge, api.ErrorResponse{Error: api.MsgImageTooLarge})
			return
		}
		slog.Warn("画像ファイルの取得に失敗", "error", err, "endpoint", endpoint.Name, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: missingMsg})
		return
	}
	if file.Size == 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: missingMsg})
		return
	}
	if file.Size > usecase.MaxImageSize {
		c.JSON(http.StatusRequestEntityTooLarge, api.ErrorResponse{Error: api.MsgImageTooLarge})
		return
	}

	f, err := file.Open()
	if err != nil {
		slog.Error("画像ファイルのオープンに失敗", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: api.MsgInternalServerError})
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("画像ファイルのクローズに失敗", "error", err)
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("画像データの読み取りに失敗", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: api.MsgInternalServerError})
		return
	}

	payload := entity.NewImagePayload(data, contentTypeHint(file.Header.Get("Content-Type")))
	cameraID := strings.TrimSpace(c.PostForm(CameraFormField))

	resp, err := h.uc.Detect(c.Request.Context(), endpoint, payload, cameraID)
	switch {
	case errors.Is(err, usecase.ErrEmptyImage):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: missingMsg})
		return
	case errors.Is(err, usecase.ErrImageTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, api.ErrorResponse{Error: api.MsgImageTooLarge})
		return
	case err != nil:
		slog.Error("検出処理に失敗", "error", err, "endpoint", endpoint.Name)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: api.MsgInternalServerError})
		return
	}

	if resp.Failure() {
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// contentTypeHint は汎用的なContent-Typeを空にしてバイト列からの推定に任せます。
func contentTypeHint(ct string) string {
	ct = strings.TrimSpace(strings.ToLower(ct))
	if ct == "" || ct == "application/octet-stream" || !strings.HasPrefix(ct, "image/") {
		return ""
	}
	return ct
}
