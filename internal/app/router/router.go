package router

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"surveillance_backend/internal/api"
	camerahandler "surveillance_backend/internal/feature/camera/transport/handler"
	detectionhandler "surveillance_backend/internal/feature/detection/transport/handler"
	platformhandler "surveillance_backend/internal/platform/http/handler"
	"surveillance_backend/internal/platform/http/middleware"
	jwtmw "surveillance_backend/internal/platform/jwt"
)

// Options はルーティングの切り替えです。
type Options struct {
	// JWTSecret が空でない場合、カメラの登録・削除にオペレーターのJWTを要求します。
	JWTSecret      string
	ObjectsEnabled bool
	SceneEnabled   bool
}

func NewRouter(detection *detectionhandler.DetectionHandler, cameras *camerahandler.CameraHandler,
	health *platformhandler.HealthHandler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	// panicの詳細はログのみに出す
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Error("panic recovered", "panic", recovered, "path", c.FullPath(), "request_id", middleware.GetRequestID(c))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{Error: api.MsgInternalServerError})
	}))

	// 許可されていないメソッドは400
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: api.MsgInvalidRequest})
	})

	// 導通確認用
	r.GET("/healthz", health.Health)
	r.HEAD("/healthz", health.Health)

	// 検出
	det := r.Group("/api/detection")
	{
		det.POST("/detect-mask/", detection.DetectMask)
		det.POST("/threats/", detection.DetectThreats)
		det.POST("/emotion/", detection.DetectEmotion)
		if opts.ObjectsEnabled {
			det.POST("/objects/", detection.DetectObjects)
		}
		if opts.SceneEnabled {
			det.POST("/scene/", detection.DetectScene)
		}
	}

	// カメラ登録
	cams := r.Group("/api/cameras")
	{
		cams.GET("/", cameras.List)
		cams.GET("/all/", cameras.List)

		// JWT_SECRETが設定されている場合のみ認証必須
		mutate := cams.Group("")
		if opts.JWTSecret != "" {
			mutate.Use(jwtmw.AuthRequired(opts.JWTSecret))
		}
		mutate.POST("/add/", cameras.Add)
		mutate.DELETE("/delete/:"+camerahandler.CameraIDParam+"/", cameras.Delete)
	}

	return r
}
