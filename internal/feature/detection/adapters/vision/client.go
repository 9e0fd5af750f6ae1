// Package vision はGoogle Cloud Vision APIの物体検出を使用したプロバイダーを提供します。
package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"surveillance_backend/internal/feature/detection/domain/entity"
	"surveillance_backend/internal/feature/detection/usecase"
)

// ImageAnnotator はVision APIクライアントのうち使用する部分です。
// *gvision.ImageAnnotatorClient が実装します。
type ImageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
}

// ObjectProvider はVision APIのOBJECT_LOCALIZATIONでobjects種類の検出を行います。
type ObjectProvider struct {
	annotator  ImageAnnotator
	closer     func() error
	maxResults int32
}

// ObjectProviderがProviderを実装していることをコンパイル時に検証します。
var _ usecase.Provider = (*ObjectProvider)(nil)

// NewObjectProvider はADCを使用してObjectProviderの新しいインスタンスを生成します。
func NewObjectProvider(ctx context.Context) (*ObjectProvider, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	p := NewObjectProviderWithAnnotator(client)
	p.closer = client.Close
	return p, nil
}

// NewObjectProviderWithAnnotator は任意のImageAnnotatorからObjectProviderを生成します。
func NewObjectProviderWithAnnotator(a ImageAnnotator) *ObjectProvider {
	return &ObjectProvider{annotator: a, maxResults: 50}
}

// Close はVision APIクライアントを解放します。
func (p *ObjectProvider) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

// Kind は担当する種類を返します。
func (p *ObjectProvider) Kind() entity.ProviderKind { return entity.KindObjects }

type vertex struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

type objectPrediction struct {
	Class        string   `json:"class"`
	Confidence   float32  `json:"confidence"`
	MID          string   `json:"mid,omitempty"`
	BoundingPoly []vertex `json:"bounding_poly"`
}

// Invoke は画像内の物体を検出し、{"predictions":[...]}形式の結果を返します。
func (p *ObjectProvider) Invoke(ctx context.Context, payload entity.ImagePayload, timeout time.Duration) entity.ProviderResult {
	if payload.Empty() {
		return fail(entity.ErrorKindInvalidInput, "image payload is empty", nil)
	}
	if timeout <= 0 {
		return fail(entity.ErrorKindInvalidInput, "timeout must be positive", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: payload.Bytes()},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_OBJECT_LOCALIZATION, MaxResults: p.maxResults},
				},
			},
		},
	}

	resp, err := p.annotator.BatchAnnotateImages(ctx, req)
	if err != nil {
		return classify(ctx, err)
	}

	preds := []entity.Prediction{}
	if len(resp.GetResponses()) > 0 {
		r := resp.GetResponses()[0]
		if r.GetError() != nil && r.GetError().GetCode() != int32(codes.OK) {
			return fail(entity.ErrorKindProviderHTTP, fmt.Sprintf("vision API error: %s", r.GetError().GetMessage()), nil)
		}
		for _, obj := range r.GetLocalizedObjectAnnotations() {
			pred, err := toPrediction(obj)
			if err != nil {
				return fail(entity.ErrorKindMalformedResponse, "failed to encode annotation", err)
			}
			preds = append(preds, pred)
		}
	}

	body, err := json.Marshal(map[string][]entity.Prediction{"predictions": preds})
	if err != nil {
		return fail(entity.ErrorKindMalformedResponse, "failed to encode predictions", err)
	}
	return entity.Success(entity.KindObjects, preds, body)
}

func toPrediction(obj *visionpb.LocalizedObjectAnnotation) (entity.Prediction, error) {
	out := objectPrediction{
		Class:        obj.GetName(),
		Confidence:   obj.GetScore(),
		MID:          obj.GetMid(),
		BoundingPoly: []vertex{},
	}
	for _, v := range obj.GetBoundingPoly().GetNormalizedVertices() {
		out.BoundingPoly = append(out.BoundingPoly, vertex{X: v.GetX(), Y: v.GetY()})
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return entity.Prediction{}, err
	}
	return entity.PredictionFromRaw(raw)
}

// classify はgRPCエラーをErrorKindに変換します。
func classify(ctx context.Context, err error) entity.ProviderResult {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fail(entity.ErrorKindNetwork, entity.TimeoutMessage, err)
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.DeadlineExceeded:
			return fail(entity.ErrorKindNetwork, entity.TimeoutMessage, err)
		case codes.Unavailable, codes.Canceled:
			return fail(entity.ErrorKindNetwork, "vision API unavailable", err)
		default:
			return fail(entity.ErrorKindProviderHTTP, fmt.Sprintf("vision API error: %s", st.Code()), err)
		}
	}
	return fail(entity.ErrorKindNetwork, "vision API request failed", err)
}

func fail(kind entity.ErrorKind, msg string, cause error) entity.ProviderResult {
	return entity.Failure(entity.KindObjects, entity.NewProviderError(kind, msg, cause))
}
