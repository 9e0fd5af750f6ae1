package roboflow

import (
	"net/http"
	"time"

	"surveillance_backend/internal/shared/ratelimiter"
)

// NewProviders は有効な種類ごとにClientを生成します。APIキーが空の場合は何も返しません。
func NewProviders(cfg Config, httpClient *http.Client) []*Client {
	if cfg.APIKey == "" {
		return nil
	}
	out := make([]*Client, 0, len(roboflowKinds))
	for _, kind := range roboflowKinds {
		m, ok := cfg.Model(kind)
		if !ok || !m.Enabled {
			continue
		}
		var limiter ratelimiter.RateLimiterInterface
		if m.RatePerMinute > 0 {
			limiter = ratelimiter.NewRateLimiter(m.RatePerMinute, time.Minute)
		}
		out = append(out, NewClient(kind, cfg, m, httpClient, limiter))
	}
	return out
}
