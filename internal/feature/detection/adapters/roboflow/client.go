package roboflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"time"

	"surveillance_backend/internal/feature/detection/adapters/predictionjson"
	"surveillance_backend/internal/feature/detection/domain/entity"
	"surveillance_backend/internal/feature/detection/usecase"
	"surveillance_backend/internal/shared/ratelimiter"
)

const (
	// maxResponseBytes はプロバイダー応答として読み込む上限です。
	maxResponseBytes = 8 << 20
	// statusSnippetBytes はHTTPエラー時にメッセージへ含める本文の長さです。
	statusSnippetBytes = 256
)

// Client は1つのRoboflowモデルを呼び出すプロバイダーです。
type Client struct {
	kind      entity.ProviderKind
	endpoint  string
	fileField string
	http      *http.Client
	limiter   ratelimiter.RateLimiterInterface
}

// ClientがProviderを実装していることをコンパイル時に検証します。
var _ usecase.Provider = (*Client)(nil)

// NewClient は種類kindのClientを生成します。limiterはnilで無制限です。
func NewClient(kind entity.ProviderKind, cfg Config, model ModelConfig, httpClient *http.Client, limiter ratelimiter.RateLimiterInterface) *Client {
	q := url.Values{}
	q.Set("api_key", cfg.APIKey)
	return &Client{
		kind:      kind,
		endpoint:  fmt.Sprintf("%s/%s?%s", cfg.BaseURL, model.ModelID, q.Encode()),
		fileField: cfg.FileField,
		http:      httpClient,
		limiter:   limiter,
	}
}

// Kind は担当する種類を返します。
func (c *Client) Kind() entity.ProviderKind { return c.kind }

// Invoke は画像をmultipartで送信し、応答をProviderResultに変換します。再試行はしません。
func (c *Client) Invoke(ctx context.Context, payload entity.ImagePayload, timeout time.Duration) entity.ProviderResult {
	if payload.Empty() {
		return c.fail(entity.ErrorKindInvalidInput, "image payload is empty", nil)
	}
	if timeout <= 0 {
		return c.fail(entity.ErrorKindInvalidInput, "timeout must be positive", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.fail(entity.ErrorKindNetwork, entity.TimeoutMessage, err)
		}
	}

	body, contentType, err := c.encode(payload)
	if err != nil {
		return c.fail(entity.ErrorKindInvalidInput, "failed to encode multipart body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return c.fail(entity.ErrorKindInvalidInput, "failed to build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return c.fail(entity.ErrorKindNetwork, entity.TimeoutMessage, err)
		}
		return c.fail(entity.ErrorKindNetwork, "request failed", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes+1))
	if err != nil {
		if isTimeout(ctx, err) {
			return c.fail(entity.ErrorKindNetwork, entity.TimeoutMessage, err)
		}
		return c.fail(entity.ErrorKindNetwork, "failed to read response", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet := raw
		if len(snippet) > statusSnippetBytes {
			snippet = snippet[:statusSnippetBytes]
		}
		perr := entity.NewProviderError(entity.ErrorKindProviderHTTP, fmt.Sprintf("status %d: %s", res.StatusCode, snippet), nil)
		perr.StatusCode = res.StatusCode
		return entity.Failure(c.kind, perr)
	}

	if len(raw) > maxResponseBytes {
		return c.fail(entity.ErrorKindMalformedResponse, "response exceeds size limit", nil)
	}

	preds, err := predictionjson.Parse(raw)
	if err != nil {
		return c.fail(entity.ErrorKindMalformedResponse, err.Error(), err)
	}
	return entity.Success(c.kind, preds, bytes.TrimSpace(raw))
}

func (c *Client) encode(payload entity.ImagePayload) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile(c.fileField, "image"+extensionFor(payload.ContentType()))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, payload.Reader()); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func (c *Client) fail(kind entity.ErrorKind, msg string, cause error) entity.ProviderResult {
	return entity.Failure(c.kind, entity.NewProviderError(kind, msg, cause))
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
