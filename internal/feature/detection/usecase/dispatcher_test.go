package usecase_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveillance_backend/internal/feature/detection/domain/entity"
	"surveillance_backend/internal/feature/detection/usecase"
)

// fakeProvider はProviderインターフェースのモック実装です。
type fakeProvider struct {
	kind       entity.ProviderKind
	InvokeFunc func(ctx context.Context, payload entity.ImagePayload, timeout time.Duration) entity.ProviderResult
	calls      atomic.Int32
}

func (f *fakeProvider) Kind() entity.ProviderKind { return f.kind }

func (f *fakeProvider) Invoke(ctx context.Context, payload entity.ImagePayload, timeout time.Duration) entity.ProviderResult {
	f.calls.Add(1)
	if f.InvokeFunc != nil {
		return f.InvokeFunc(ctx, payload, timeout)
	}
	return entity.Success(f.kind, nil, nil)
}

func (f *fakeProvider) Calls() int { return int(f.calls.Load()) }

func succeedWith(kind entity.ProviderKind, preds ...entity.Prediction) *fakeProvider {
	return &fakeProvider{
		kind: kind,
		InvokeFunc: func(context.Context, entity.ImagePayload, time.Duration) entity.ProviderResult {
			return entity.Success(kind, preds, nil)
		},
	}
}

func failWith(kind entity.ProviderKind, ek entity.ErrorKind) *fakeProvider {
	return &fakeProvider{
		kind: kind,
		InvokeFunc: func(context.Context, entity.ImagePayload, time.Duration) entity.ProviderResult {
			return entity.Failure(kind, entity.NewProviderError(ek, "boom", nil))
		},
	}
}

// blockUntilDone はctxが終了するまで戻らないプロバイダーです。
func blockUntilDone(kind entity.ProviderKind) *fakeProvider {
	return &fakeProvider{
		kind: kind,
		InvokeFunc: func(ctx context.Context, _ entity.ImagePayload, _ time.Duration) entity.ProviderResult {
			<-ctx.Done()
			return entity.Failure(kind, entity.NewProviderError(entity.ErrorKindNetwork, entity.TimeoutMessage, ctx.Err()))
		},
	}
}

var testImage = entity.NewImagePayload([]byte("fake-image"), "image/jpeg")

func TestDispatcher_Aggregate_Totality(t *testing.T) {
	t.Parallel()

	mask := succeedWith(entity.KindMask)
	knife := failWith(entity.KindKnife, entity.ErrorKindProviderHTTP)
	d := usecase.NewDispatcher(usecase.DispatcherConfig{}, mask, knife)

	testCases := []struct {
		name  string
		kinds []entity.ProviderKind
		want  map[entity.ProviderKind]bool // kind -> OK
		wantK map[entity.ProviderKind]entity.ErrorKind
	}{
		{
			name:  "empty input",
			kinds: nil,
			want:  map[entity.ProviderKind]bool{},
		},
		{
			name:  "duplicates collapse",
			kinds: []entity.ProviderKind{entity.KindMask, entity.KindMask, entity.KindKnife, entity.KindMask},
			want:  map[entity.ProviderKind]bool{entity.KindMask: true, entity.KindKnife: false},
			wantK: map[entity.ProviderKind]entity.ErrorKind{entity.KindKnife: entity.ErrorKindProviderHTTP},
		},
		{
			name:  "unconfigured kind",
			kinds: []entity.ProviderKind{entity.KindGun, entity.KindMask},
			want:  map[entity.ProviderKind]bool{entity.KindGun: false, entity.KindMask: true},
			wantK: map[entity.ProviderKind]entity.ErrorKind{entity.KindGun: entity.ErrorKindUnconfigured},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Aggregate(context.Background(), tt.kinds, testImage)
			require.Len(t, got, len(tt.want))
			for kind, ok := range tt.want {
				r, exists := got[kind]
				require.True(t, exists, "missing result for %s", kind)
				assert.Equal(t, kind, r.Kind)
				assert.Equal(t, ok, r.OK(), "kind %s", kind)
				if !ok {
					assert.Equal(t, tt.wantK[kind], r.Err.Kind)
				}
			}
		})
	}
}

func TestDispatcher_Aggregate_InvokesOncePerKind(t *testing.T) {
	t.Parallel()

	knife := succeedWith(entity.KindKnife)
	gun := succeedWith(entity.KindGun)
	d := usecase.NewDispatcher(usecase.DispatcherConfig{}, knife, gun)

	d.Aggregate(context.Background(), []entity.ProviderKind{entity.KindKnife, entity.KindGun, entity.KindKnife}, testImage)

	assert.Equal(t, 1, knife.Calls())
	assert.Equal(t, 1, gun.Calls())
}

func TestDispatcher_Aggregate_PanicBecomesFailure(t *testing.T) {
	t.Parallel()

	bad := &fakeProvider{
		kind: entity.KindEmotion,
		InvokeFunc: func(context.Context, entity.ImagePayload, time.Duration) entity.ProviderResult {
			panic("decoder exploded")
		},
	}
	good := succeedWith(entity.KindMask, entity.NewPrediction("mask", 0.9))
	d := usecase.NewDispatcher(usecase.DispatcherConfig{}, bad, good)

	got := d.Aggregate(context.Background(), []entity.ProviderKind{entity.KindEmotion, entity.KindMask}, testImage)

	require.False(t, got[entity.KindEmotion].OK())
	assert.Equal(t, entity.ErrorKindNetwork, got[entity.KindEmotion].Err.Kind)
	assert.True(t, got[entity.KindMask].OK())
	assert.Len(t, got[entity.KindMask].Predictions, 1)
}

func TestDispatcher_Aggregate_TimeoutIsolation(t *testing.T) {
	t.Parallel()

	slow := blockUntilDone(entity.KindKnife)
	fast := succeedWith(entity.KindGun, entity.NewPrediction("gun", 0.7))
	d := usecase.NewDispatcher(usecase.DispatcherConfig{
		Timeouts: map[entity.ProviderKind]time.Duration{entity.KindKnife: 50 * time.Millisecond},
	}, slow, fast)

	start := time.Now()
	got := d.Aggregate(context.Background(), []entity.ProviderKind{entity.KindKnife, entity.KindGun}, testImage)
	elapsed := time.Since(start)

	require.False(t, got[entity.KindKnife].OK())
	assert.Equal(t, entity.ErrorKindNetwork, got[entity.KindKnife].Err.Kind)
	assert.Equal(t, entity.TimeoutMessage, got[entity.KindKnife].Err.Message)
	assert.True(t, got[entity.KindGun].OK())
	assert.Less(t, elapsed, 2*time.Second)
}

func TestDispatcher_Aggregate_PerKindTimeoutWithoutContextSupport(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	// ctxを無視して成功を返すまで止まるプロバイダー
	stubborn := &fakeProvider{
		kind: entity.KindKnife,
		InvokeFunc: func(context.Context, entity.ImagePayload, time.Duration) entity.ProviderResult {
			<-release
			return entity.Success(entity.KindKnife, []entity.Prediction{entity.NewPrediction("knife", 0.9)}, nil)
		},
	}
	fast := succeedWith(entity.KindGun, entity.NewPrediction("gun", 0.7))
	d := usecase.NewDispatcher(usecase.DispatcherConfig{
		Timeouts: map[entity.ProviderKind]time.Duration{entity.KindKnife: 50 * time.Millisecond},
	}, stubborn, fast)

	start := time.Now()
	got := d.Aggregate(context.Background(), []entity.ProviderKind{entity.KindKnife, entity.KindGun}, testImage)
	elapsed := time.Since(start)

	require.Len(t, got, 2)
	require.False(t, got[entity.KindKnife].OK())
	assert.Equal(t, entity.ErrorKindNetwork, got[entity.KindKnife].Err.Kind)
	assert.Equal(t, entity.TimeoutMessage, got[entity.KindKnife].Err.Message)
	assert.True(t, got[entity.KindGun].OK())
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, 1, stubborn.Calls())
}

func TestDispatcher_Aggregate_RequestDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	// ctxを無視して止まり続けるプロバイダー
	stuck := &fakeProvider{
		kind: entity.KindGun,
		InvokeFunc: func(context.Context, entity.ImagePayload, time.Duration) entity.ProviderResult {
			<-release
			return entity.Success(entity.KindGun, nil, nil)
		},
	}
	fast := succeedWith(entity.KindKnife)
	d := usecase.NewDispatcher(usecase.DispatcherConfig{DefaultTimeout: time.Minute}, stuck, fast)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	got := d.Aggregate(ctx, []entity.ProviderKind{entity.KindKnife, entity.KindGun}, testImage)

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, got, 2)
	assert.True(t, got[entity.KindKnife].OK())
	require.False(t, got[entity.KindGun].OK())
	assert.Equal(t, entity.ErrorKindNetwork, got[entity.KindGun].Err.Kind)
	assert.Equal(t, entity.TimeoutMessage, got[entity.KindGun].Err.Message)
}

func TestDispatcher_TimeoutFor(t *testing.T) {
	t.Parallel()

	d := usecase.NewDispatcher(usecase.DispatcherConfig{
		Timeouts: map[entity.ProviderKind]time.Duration{entity.KindMask: 3 * time.Second},
	})
	assert.Equal(t, 3*time.Second, d.TimeoutFor(entity.KindMask))
	assert.Equal(t, usecase.DefaultProviderTimeout, d.TimeoutFor(entity.KindGun))
	assert.False(t, d.Supports(entity.KindMask))
}

func TestDispatcher_PassesTimeoutToProvider(t *testing.T) {
	t.Parallel()

	var seen time.Duration
	p := &fakeProvider{
		kind: entity.KindMask,
		InvokeFunc: func(ctx context.Context, _ entity.ImagePayload, timeout time.Duration) entity.ProviderResult {
			seen = timeout
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return entity.Success(entity.KindMask, nil, nil)
		},
	}
	d := usecase.NewDispatcher(usecase.DispatcherConfig{DefaultTimeout: 4 * time.Second}, p)
	got := d.Aggregate(context.Background(), []entity.ProviderKind{entity.KindMask}, testImage)

	assert.True(t, got[entity.KindMask].OK())
	assert.NotNil(t, got[entity.KindMask].Predictions)
	assert.Equal(t, 4*time.Second, seen)
}
