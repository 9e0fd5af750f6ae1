// Package di provides dependency injection factories for creating application components.
package di

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"surveillance_backend/internal/app/config"
	"surveillance_backend/internal/feature/detection/adapters/archive"
	"surveillance_backend/internal/feature/detection/adapters/gemini"
	"surveillance_backend/internal/feature/detection/adapters/roboflow"
	"surveillance_backend/internal/feature/detection/adapters/vision"
	"surveillance_backend/internal/feature/detection/usecase"
	"surveillance_backend/internal/platform/cache"
	infrahttp "surveillance_backend/internal/platform/http"
)

// Providers holds every configured detection provider and the resources they own.
type Providers struct {
	List     []usecase.Provider
	dispatch usecase.DispatcherConfig
	closers  []func() error
}

// Close releases provider clients. It is safe to call more than once.
func (p *Providers) Close() {
	for _, c := range p.closers {
		if err := c(); err != nil {
			slog.Warn("failed to close provider client", "error", err)
		}
	}
	p.closers = nil
}

// NewProviders builds the Roboflow providers and, when enabled, the Cloud Vision and Gemini providers.
// Every provider is wrapped with the Redis result cache; a nil rdb disables caching.
func NewProviders(ctx context.Context, cfg *config.Config, rdb *redis.Client) (*Providers, error) {
	rfCfg, err := roboflow.LoadConfig(cfg.ProvidersConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load provider config: %w", err)
	}

	out := &Providers{
		dispatch: usecase.DispatcherConfig{
			Timeouts:       rfCfg.Timeouts(),
			DefaultTimeout: cfg.ProviderTimeout,
		},
	}

	// per-call deadlines come from the dispatcher; the client timeout is an outer bound
	httpClient := infrahttp.NewHTTPClient(cfg.RequestTimeout)
	var raw []usecase.Provider
	for _, c := range roboflow.NewProviders(rfCfg, httpClient) {
		raw = append(raw, c)
	}
	if rfCfg.APIKey == "" {
		slog.Warn("ROBOFLOW_API_KEY is not set; mask, threats and emotion providers are unconfigured")
	}

	if cfg.VisionEnabled {
		vp, err := vision.NewObjectProvider(ctx)
		if err != nil {
			out.Close()
			return nil, err
		}
		out.closers = append(out.closers, vp.Close)
		raw = append(raw, vp)
	}
	if cfg.GeminiEnabled {
		sp, err := gemini.NewSceneProvider(ctx, cfg.GeminiModel)
		if err != nil {
			out.Close()
			return nil, err
		}
		raw = append(raw, sp)
	}

	for _, p := range raw {
		out.List = append(out.List, cache.NewCachingProvider(rdb, cfg.CacheTTL, p, ""))
		slog.Info("detection provider registered", "kind", p.Kind(), "timeout", out.timeoutFor(p))
	}
	return out, nil
}

func (p *Providers) timeoutFor(pr usecase.Provider) time.Duration {
	if t, ok := p.dispatch.Timeouts[pr.Kind()]; ok {
		return t
	}
	return p.dispatch.DefaultTimeout
}

// NewDispatcher creates the dispatch coordinator over the configured providers.
func NewDispatcher(p *Providers) *usecase.Dispatcher {
	return usecase.NewDispatcher(p.dispatch, p.List...)
}

// NewEvidenceArchiver returns the Azure Blob archiver, or nil when no storage account is configured.
// A connection string takes precedence over an account name and key.
func NewEvidenceArchiver(cfg *config.Config) (usecase.EvidenceArchiver, error) {
	if !cfg.EvidenceEnabled() {
		return nil, nil
	}
	var (
		a   *archive.AzureArchiver
		err error
	)
	if cfg.EvidenceConnectionString != "" {
		a, err = archive.NewAzureArchiver(cfg.EvidenceConnectionString, cfg.EvidenceContainer)
	} else {
		a, err = archive.NewAzureArchiverWithSharedKey(cfg.EvidenceAccountName, cfg.EvidenceAccountKey, cfg.EvidenceContainer)
	}
	if err != nil {
		return nil, fmt.Errorf("create evidence archiver: %w", err)
	}
	return a, nil
}
