package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"

	"surveillance_backend/internal/api"
	"surveillance_backend/internal/feature/camera/domain/entity"
	"surveillance_backend/internal/feature/camera/transport/http/dto"
	"surveillance_backend/internal/feature/camera/usecase"
)

// CameraIDParam is the path parameter holding the camera identifier.
const CameraIDParam = "cam_id"

// Response messages that the dashboard depends on.
const (
	msgCameraAdded          = "Camera added"
	msgCameraRemoved        = "Camera removed"
	msgCameraAlreadyExists  = "Camera already exists"
	msgCameraNotFound       = "Camera not found"
	msgFailedToAddCamera    = "Failed to add camera"
	msgFailedToFetchCameras = "Failed to fetch cameras"
	msgFailedToDeleteCamera = "Failed to delete camera"
)

// CameraUsecase は監視カメラ登録に関するユースケースのインターフェースです。
// Following Go convention: interfaces are defined by the consumer (handler), not the provider (usecase).
type CameraUsecase interface {
	Add(ctx context.Context, in usecase.AddCameraInput) (*entity.Camera, error)
	List(ctx context.Context) ([]entity.Camera, error)
	Delete(ctx context.Context, cameraID string) error
}

// CameraHandler は監視カメラ登録に関するHTTPリクエストを処理します。
type CameraHandler struct {
	uc CameraUsecase
}

// NewCameraHandler は新しい CameraHandler を作成します。
func NewCameraHandler(uc CameraUsecase) *CameraHandler {
	return &CameraHandler{uc: uc}
}

// Add はカメラを登録するAPIです。
// 不正なJSONや必須項目の欠落は400、重複は409、ストアのエラーは500を返します。
func (h *CameraHandler) Add(c *gin.Context) {
	var req dto.AddCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("invalid add camera request", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: usecase.ErrCameraIDAndNameRequired.Error()})
		return
	}

	cam, err := h.uc.Add(c.Request.Context(), usecase.AddCameraInput{
		CameraID:   req.CameraID,
		CameraName: req.CameraName,
		People:     req.People,
		Threats:    req.Threats,
	})
	switch {
	case errors.Is(err, usecase.ErrCameraIDAndNameRequired), errors.Is(err, usecase.ErrInvalidCounter):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: sentinelMessage(err)})
		return
	case errors.Is(err, usecase.ErrCameraAlreadyExists):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: msgCameraAlreadyExists})
		return
	case err != nil:
		slog.Error("failed to add camera", "error", err, "camera_id", req.CameraID)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: msgFailedToAddCamera})
		return
	}

	c.JSON(http.StatusCreated, dto.AddCameraResponse{Message: msgCameraAdded, Camera: dto.FromEntity(*cam)})
}

// List は登録済みカメラの一覧を返すAPIです。
func (h *CameraHandler) List(c *gin.Context) {
	cams, err := h.uc.List(c.Request.Context())
	if err != nil {
		slog.Error("failed to fetch cameras", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: msgFailedToFetchCameras})
		return
	}
	out := make([]dto.CameraItem, 0, len(cams))
	for _, cam := range cams {
		out = append(out, dto.FromEntity(cam))
	}
	c.JSON(http.StatusOK, dto.CameraListResponse{Cameras: out})
}

// Delete はcameraIdでカメラを削除するAPIです。
func (h *CameraHandler) Delete(c *gin.Context) {
	var cameraID string
	if err := runtime.BindStyledParameterWithOptions("simple", CameraIDParam, c.Param(CameraIDParam), &cameraID, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	}); err != nil {
		slog.Warn("invalid camera id parameter", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: api.MsgInvalidRequest})
		return
	}

	err := h.uc.Delete(c.Request.Context(), cameraID)
	switch {
	case errors.Is(err, usecase.ErrCameraNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: msgCameraNotFound})
		return
	case err != nil:
		slog.Error("failed to delete camera", "error", err, "camera_id", cameraID)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: msgFailedToDeleteCamera})
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: msgCameraRemoved})
}

// sentinelMessage returns the message of the validation sentinel wrapped in err.
func sentinelMessage(err error) string {
	for _, s := range []error{usecase.ErrCameraIDAndNameRequired, usecase.ErrInvalidCounter} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return api.MsgInvalidRequest
}
