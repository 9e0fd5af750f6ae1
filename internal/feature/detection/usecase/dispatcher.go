// Package usecase はdetectionフィーチャーのビジネスロジックを実装します。
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"surveillance_backend/internal/feature/detection/domain/entity"
)

// DefaultProviderTimeout はTimeoutsに設定が無い種類のタイムアウトです。
const DefaultProviderTimeout = 10 * time.Second

// Provider は1種類の推論プロバイダーへの呼び出しです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
//
// Invokeは失敗を値として返し、panicやerrorを返しません。
// 空の画像や0以下のタイムアウトではネットワーク呼び出しを行わずinvalid_inputを返します。
type Provider interface {
	Kind() entity.ProviderKind
	Invoke(ctx context.Context, payload entity.ImagePayload, timeout time.Duration) entity.ProviderResult
}

// DispatcherConfig は種類ごとのタイムアウト設定です。
type DispatcherConfig struct {
	Timeouts       map[entity.ProviderKind]time.Duration
	DefaultTimeout time.Duration
}

// Dispatcher は複数のプロバイダーを並行に呼び出し、種類ごとに1件の結果を集めます。
type Dispatcher struct {
	providers map[entity.ProviderKind]Provider
	cfg       DispatcherConfig
}

// NewDispatcher はDispatcherを生成します。同じ種類が複数ある場合は後勝ちです。
func NewDispatcher(cfg DispatcherConfig, providers ...Provider) *Dispatcher {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultProviderTimeout
	}
	m := make(map[entity.ProviderKind]Provider, len(providers))
	for _, p := range providers {
		if p == nil {
			continue
		}
		m[p.Kind()] = p
	}
	return &Dispatcher{providers: m, cfg: cfg}
}

// Supports は種類にプロバイダーが登録されているかを返します。
func (d *Dispatcher) Supports(kind entity.ProviderKind) bool {
	_, ok := d.providers[kind]
	return ok
}

// TimeoutFor は種類ごとのタイムアウトを返します。
func (d *Dispatcher) TimeoutFor(kind entity.ProviderKind) time.Duration {
	if t, ok := d.cfg.Timeouts[kind]; ok && t > 0 {
		return t
	}
	return d.cfg.DefaultTimeout
}

type outcome struct {
	kind    entity.ProviderKind
	result  entity.ProviderResult
	elapsed time.Duration
}

// Aggregate は要求された全種類を並行に呼び出し、種類ごとにちょうど1件の結果を返します。
//
// 種類の重複は最初の1件にまとめます。1つの失敗が他の呼び出しを止めることはありません。
// ctxが先に終了した場合、未完了の種類はnetwork_error("timeout")として即座に返します。
// 遅れて完了したgoroutineはバッファ付きチャネルに書き込んで終了します。
func (d *Dispatcher) Aggregate(ctx context.Context, kinds []entity.ProviderKind, payload entity.ImagePayload) map[entity.ProviderKind]entity.ProviderResult {
	unique := dedupeKinds(kinds)
	results := make(map[entity.ProviderKind]entity.ProviderResult, len(unique))

	ch := make(chan outcome, len(unique))
	pending := make(map[entity.ProviderKind]struct{}, len(unique))
	var g errgroup.Group

	for _, kind := range unique {
		p, ok := d.providers[kind]
		if !ok {
			results[kind] = entity.Failure(kind, entity.NewProviderError(entity.ErrorKindUnconfigured,
				fmt.Sprintf("no provider configured for %q", kind), nil))
			slog.Warn("provider not configured", "kind", kind)
			continue
		}
		pending[kind] = struct{}{}
		timeout := d.TimeoutFor(kind)
		g.Go(func() error {
			start := time.Now()
			res := invokeSafely(ctx, p, kind, payload, timeout)
			ch <- outcome{kind: kind, result: res, elapsed: time.Since(start)}
			return nil
		})
	}

	for len(pending) > 0 {
		select {
		case o := <-ch:
			d.record(results, pending, o)
		case <-ctx.Done():
			// 既にチャネルに届いている結果は取りこぼさない
			for drained := false; !drained && len(pending) > 0; {
				select {
				case o := <-ch:
					d.record(results, pending, o)
				default:
					drained = true
				}
			}
			for kind := range pending {
				results[kind] = entity.Failure(kind, entity.NewProviderError(entity.ErrorKindNetwork, entity.TimeoutMessage, ctx.Err()))
				slog.Warn("provider did not finish before request deadline", "kind", kind, "error", ctx.Err())
			}
			return results
		}
	}

	// 全goroutineは結果を送信済みのため即座に戻る
	_ = g.Wait()
	return results
}

func (d *Dispatcher) record(results map[entity.ProviderKind]entity.ProviderResult, pending map[entity.ProviderKind]struct{}, o outcome) {
	if _, ok := pending[o.kind]; !ok {
		return
	}
	delete(pending, o.kind)
	results[o.kind] = o.result
	if o.result.OK() {
		slog.Debug("provider call succeeded", "kind", o.kind, "predictions", len(o.result.Predictions), "elapsed", o.elapsed)
		return
	}
	slog.Warn("provider call failed",
		"kind", o.kind,
		"error_kind", o.result.Err.Kind,
		"status", o.result.Err.StatusCode,
		"error", o.result.Err,
		"elapsed", o.elapsed,
	)
}

// invokeSafely は種類ごとのタイムアウト内でプロバイダーを呼び出します。
// ctxを無視して戻らないプロバイダーもタイムアウト時点でnetwork_error("timeout")とし、
// 遅れた結果は1件バッファのチャネルに書き込んで破棄します。
func invokeSafely(ctx context.Context, p Provider, kind entity.ProviderKind, payload entity.ImagePayload, timeout time.Duration) entity.ProviderResult {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan entity.ProviderResult, 1)
	go func() {
		done <- invokeRecovering(callCtx, p, kind, payload, timeout)
	}()

	select {
	case res := <-done:
		return res
	case <-callCtx.Done():
		return entity.Failure(kind, entity.NewProviderError(entity.ErrorKindNetwork, entity.TimeoutMessage, callCtx.Err()))
	}
}

// invokeRecovering はプロバイダーのpanicをnetwork_errorに変換します。
func invokeRecovering(ctx context.Context, p Provider, kind entity.ProviderKind, payload entity.ImagePayload, timeout time.Duration) (res entity.ProviderResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("provider panicked", "kind", kind, "panic", r)
			res = entity.Failure(kind, entity.NewProviderError(entity.ErrorKindNetwork, "provider panicked", fmt.Errorf("panic: %v", r)))
		}
	}()

	res = p.Invoke(ctx, payload, timeout)
	res.Kind = kind
	if !res.OK() {
		return res
	}
	if res.Predictions == nil {
		res.Predictions = []entity.Prediction{}
	}
	return res
}

func dedupeKinds(kinds []entity.ProviderKind) []entity.ProviderKind {
	seen := make(map[entity.ProviderKind]struct{}, len(kinds))
	out := make([]entity.ProviderKind, 0, len(kinds))
	for _, k := range kinds {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
