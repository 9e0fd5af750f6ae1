// Package gemini はGoogle Gemini APIを使用したシーン評価プロバイダーを提供します。
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"surveillance_backend/internal/feature/detection/adapters/predictionjson"
	"surveillance_backend/internal/feature/detection/domain/entity"
	"surveillance_backend/internal/feature/detection/usecase"
)

const (
	// DefaultModel はGemini APIのデフォルトモデルです。
	DefaultModel = "gemini-2.5-flash"
	// ScenePrompt は監視カメラ画像の評価プロンプトです。
	ScenePrompt = `You are assisting a security camera operator. Look at the image and list notable safety-relevant observations ` +
		`(for example: crowd, fight, fire, smoke, fallen_person, unattended_bag, weapon, empty_scene). ` +
		`Respond only with JSON of the form {"predictions":[{"class":"<snake_case label>","confidence":<0..1>,"reason":"<short text>"}]}. ` +
		`Return {"predictions":[]} when nothing is notable.`
)

// ContentGenerator はGemini APIクライアントのうち使用する部分です。
// genai.Client.Models が実装します。
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// SceneProvider は画像をGeminiに送り、scene種類の検出結果を返します。
type SceneProvider struct {
	generator ContentGenerator
	model     string
}

// SceneProviderがProviderを実装していることをコンパイル時に検証します。
var _ usecase.Provider = (*SceneProvider)(nil)

// NewSceneProvider はADCを使用してSceneProviderの新しいインスタンスを生成します。
// 環境変数 GOOGLE_GENAI_USE_VERTEXAI, GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION が必要です。
func NewSceneProvider(ctx context.Context, model string) (*SceneProvider, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return NewSceneProviderWithGenerator(client.Models, model), nil
}

// NewSceneProviderWithGenerator は任意のContentGeneratorからSceneProviderを生成します。
func NewSceneProviderWithGenerator(g ContentGenerator, model string) *SceneProvider {
	if model == "" {
		model = DefaultModel
	}
	return &SceneProvider{generator: g, model: model}
}

// Kind は担当する種類を返します。
func (p *SceneProvider) Kind() entity.ProviderKind { return entity.KindScene }

// Invoke は画像とプロンプトを送信し、JSON応答を検出結果に変換します。
func (p *SceneProvider) Invoke(ctx context.Context, payload entity.ImagePayload, timeout time.Duration) entity.ProviderResult {
	if payload.Empty() {
		return fail(entity.ErrorKindInvalidInput, "image payload is empty", nil)
	}
	if timeout <= 0 {
		return fail(entity.ErrorKindInvalidInput, "timeout must be positive", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(payload.Bytes(), payload.ContentType()),
			genai.NewPartFromText(ScenePrompt),
		}, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	resp, err := p.generator.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fail(entity.ErrorKindNetwork, entity.TimeoutMessage, err)
		}
		perr := entity.NewProviderError(entity.ErrorKindProviderHTTP, "gemini API request failed", err)
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			perr.StatusCode = apiErr.Code
			perr.Message = fmt.Sprintf("status %d: %s", apiErr.Code, apiErr.Message)
		}
		return entity.Failure(entity.KindScene, perr)
	}
	if resp == nil {
		return fail(entity.ErrorKindMalformedResponse, "empty response", nil)
	}

	preds, cleaned, err := predictionjson.ParseText(resp.Text())
	if err != nil {
		return fail(entity.ErrorKindMalformedResponse, err.Error(), err)
	}
	return entity.Success(entity.KindScene, preds, []byte(cleaned))
}

func fail(kind entity.ErrorKind, msg string, cause error) entity.ProviderResult {
	return entity.Failure(entity.KindScene, entity.NewProviderError(kind, msg, cause))
}
