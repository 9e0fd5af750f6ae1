package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"surveillance_backend/internal/feature/detection/domain/entity"
)

const (
	// MaxImageSize は画像アップロードの最大サイズ（10MB）です。
	MaxImageSize = 10 * 1024 * 1024
	// DefaultRequestTimeout は1リクエスト全体の上限です。
	DefaultRequestTimeout = 30 * time.Second
	// archiveTimeout は証拠画像の保存1件あたりの上限です。
	archiveTimeout = 30 * time.Second
)

// Endpoint は公開エンドポイントと、呼び出す種類・結合方法の対応です。
type Endpoint struct {
	Name  string
	Kinds []entity.ProviderKind
	Mode  entity.MergeMode
}

var (
	EndpointMask    = Endpoint{Name: "mask", Kinds: []entity.ProviderKind{entity.KindMask}, Mode: entity.ModeSingle}
	EndpointThreats = Endpoint{Name: "threats", Kinds: []entity.ProviderKind{entity.KindKnife, entity.KindGun}, Mode: entity.ModeThreats}
	EndpointEmotion = Endpoint{Name: "emotion", Kinds: []entity.ProviderKind{entity.KindEmotion}, Mode: entity.ModeSingle}
	EndpointObjects = Endpoint{Name: "objects", Kinds: []entity.ProviderKind{entity.KindObjects}, Mode: entity.ModeSingle}
	EndpointScene   = Endpoint{Name: "scene", Kinds: []entity.ProviderKind{entity.KindScene}, Mode: entity.ModeSingle}
)

// Aggregator は種類ごとの結果を並行に集めます。*Dispatcherが実装します。
type Aggregator interface {
	Aggregate(ctx context.Context, kinds []entity.ProviderKind, payload entity.ImagePayload) map[entity.ProviderKind]entity.ProviderResult
}

// EvidenceArchiver は脅威が検出されたフレームを保存します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type EvidenceArchiver interface {
	Archive(ctx context.Context, ev entity.Evidence) error
}

var _ Aggregator = (*Dispatcher)(nil)

// DetectionUsecase は画像検出のビジネスロジックを提供します。
type DetectionUsecase struct {
	aggregator     Aggregator
	archiver       EvidenceArchiver
	requestTimeout time.Duration
	now            func() time.Time

	archives sync.WaitGroup
}

// NewDetectionUsecase はDetectionUsecaseを生成します。archiverはnilでも構いません。
func NewDetectionUsecase(agg Aggregator, archiver EvidenceArchiver, requestTimeout time.Duration) *DetectionUsecase {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &DetectionUsecase{
		aggregator:     agg,
		archiver:       archiver,
		requestTimeout: requestTimeout,
		now:            time.Now,
	}
}

// Detect は画像を検証したうえでエンドポイントの種類を並行に呼び出し、結果を結合します。
// 検証に失敗した場合、プロバイダーは1度も呼び出されません。
// cameraIDは証拠画像の保存時のタグにのみ使われます。
func (u *DetectionUsecase) Detect(ctx context.Context, endpoint Endpoint, payload entity.ImagePayload, cameraID string) (entity.AggregateResponse, error) {
	if payload.Empty() {
		return entity.AggregateResponse{}, ErrEmptyImage
	}
	if payload.Size() > MaxImageSize {
		return entity.AggregateResponse{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrImageTooLarge, payload.Size(), MaxImageSize)
	}
	if len(endpoint.Kinds) == 0 {
		return entity.AggregateResponse{}, fmt.Errorf("endpoint %q: %w", endpoint.Name, ErrNoKinds)
	}

	reqCtx, cancel := context.WithTimeout(ctx, u.requestTimeout)
	defer cancel()

	results := u.aggregator.Aggregate(reqCtx, endpoint.Kinds, payload)
	resp := Merge(results, endpoint.Mode, endpoint.Kinds)

	if failures := resp.Failures(); len(failures) > 0 {
		slog.Info("detection completed with failures", "endpoint", endpoint.Name, "failed", failures)
	}

	if endpoint.Mode == entity.ModeThreats && resp.DetectionCount() > 0 {
		u.archive(ctx, entity.Evidence{
			CameraID:   cameraID,
			Payload:    payload,
			Response:   resp,
			DetectedAt: u.now(),
		})
	}
	return resp, nil
}

// archive は応答を遅らせないよう非同期で保存します。失敗はログのみです。
func (u *DetectionUsecase) archive(ctx context.Context, ev entity.Evidence) {
	if u.archiver == nil {
		return
	}
	u.archives.Add(1)
	go func() {
		defer u.archives.Done()
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()
		if err := u.archiver.Archive(actx, ev); err != nil {
			slog.Warn("failed to archive evidence", "error", err, "camera_id", ev.CameraID, "detections", ev.Response.DetectionCount())
			return
		}
		slog.Info("evidence archived", "camera_id", ev.CameraID, "object", ev.ObjectName())
	}()
}

// WaitArchives は実行中の証拠保存が終わるか、ctxが終了するまで待ちます。
func (u *DetectionUsecase) WaitArchives(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		u.archives.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
