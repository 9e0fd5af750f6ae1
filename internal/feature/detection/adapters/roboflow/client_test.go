package roboflow

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveillance_backend/internal/feature/detection/domain/entity"
	"surveillance_backend/internal/shared/ratelimiter"
)

var jpeg = entity.NewImagePayload([]byte("\xff\xd8\xff\xe0fake-jpeg"), "")

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := Config{APIKey: "test-key", BaseURL: srv.URL, FileField: DefaultFileField}
	model := ModelConfig{ModelID: "knife-detection/3", Timeout: time.Second, Enabled: true}
	return NewClient(entity.KindKnife, cfg, model, srv.Client(), nil), &calls
}

func TestClient_Invoke(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantOK     bool
		wantKind   entity.ErrorKind
		wantStatus int
		wantMsg    string
		wantPreds  int
	}{
		{
			name: "success with predictions",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"time":0.1,"predictions":[{"class":"knife","confidence":0.93,"x":10}]}`)
			},
			wantOK:    true,
			wantPreds: 1,
		},
		{
			name: "success with empty predictions",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"predictions":[]}`)
			},
			wantOK: true,
		},
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				_, _ = io.WriteString(w, strings.Repeat("x", 1000))
			},
			wantKind:   entity.ErrorKindProviderHTTP,
			wantStatus: http.StatusForbidden,
			wantMsg:    "status 403: " + strings.Repeat("x", statusSnippetBytes),
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `<html>bad gateway</html>`)
			},
			wantKind: entity.ErrorKindMalformedResponse,
		},
		{
			name: "missing predictions",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"message":"Forbidden"}`)
			},
			wantKind: entity.ErrorKindMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := newTestClient(t, tt.handler)

			res := c.Invoke(context.Background(), jpeg, time.Second)

			assert.Equal(t, int32(1), calls.Load())
			assert.Equal(t, entity.KindKnife, res.Kind)
			if tt.wantOK {
				require.True(t, res.OK(), "unexpected failure: %v", res.Err)
				assert.Len(t, res.Predictions, tt.wantPreds)
				assert.NotNil(t, res.Predictions)
				return
			}
			require.False(t, res.OK())
			assert.Equal(t, tt.wantKind, res.Err.Kind)
			if tt.wantStatus != 0 {
				assert.Equal(t, tt.wantStatus, res.Err.StatusCode)
			}
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, res.Err.Message)
			}
		})
	}
}

func TestClient_Invoke_SendsMultipartToModelURL(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/knife-detection/3", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, jpeg.Bytes(), data)
		assert.Equal(t, "image.jpg", hdr.Filename)

		_, _ = io.WriteString(w, `{"predictions":[]}`)
	})

	res := c.Invoke(context.Background(), jpeg, time.Second)
	assert.True(t, res.OK())
}

func TestClient_Invoke_Timeout(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	start := time.Now()
	res := c.Invoke(context.Background(), jpeg, 50*time.Millisecond)

	assert.Less(t, time.Since(start), time.Second)
	require.False(t, res.OK())
	assert.Equal(t, entity.ErrorKindNetwork, res.Err.Kind)
	assert.Equal(t, entity.TimeoutMessage, res.Err.Message)
}

func TestClient_Invoke_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(entity.KindGun, Config{APIKey: "k", BaseURL: url, FileField: "file"}, ModelConfig{ModelID: "gun/1"}, http.DefaultClient, nil)
	res := c.Invoke(context.Background(), jpeg, time.Second)

	require.False(t, res.OK())
	assert.Equal(t, entity.ErrorKindNetwork, res.Err.Kind)
}

func TestClient_Invoke_InvalidInputMakesNoCall(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"predictions":[]}`)
	})

	empty := c.Invoke(context.Background(), entity.NewImagePayload(nil, ""), time.Second)
	zero := c.Invoke(context.Background(), jpeg, 0)

	assert.Equal(t, entity.ErrorKindInvalidInput, empty.Err.Kind)
	assert.Equal(t, entity.ErrorKindInvalidInput, zero.Err.Kind)
	assert.Equal(t, int32(0), calls.Load())
}

func TestClient_Invoke_RateLimitWaitHonoursDeadline(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"predictions":[]}`)
	}))
	defer srv.Close()

	limiter := ratelimiter.NewRateLimiter(1, time.Hour)
	c := NewClient(entity.KindMask, Config{APIKey: "k", BaseURL: srv.URL, FileField: "file"}, ModelConfig{ModelID: "mask/1"}, srv.Client(), limiter)

	first := c.Invoke(context.Background(), jpeg, time.Second)
	second := c.Invoke(context.Background(), jpeg, 30*time.Millisecond)

	assert.True(t, first.OK())
	require.False(t, second.OK())
	assert.Equal(t, entity.ErrorKindNetwork, second.Err.Kind)
	assert.Equal(t, entity.TimeoutMessage, second.Err.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewProviders(t *testing.T) {
	cfg := Config{
		APIKey:    "k",
		BaseURL:   DefaultBaseURL,
		FileField: DefaultFileField,
		Models: map[string]ModelConfig{
			"mask":    {ModelID: "m/1", Timeout: time.Second, Enabled: true},
			"knife":   {ModelID: "k/1", Timeout: time.Second, Enabled: true, RatePerMinute: 5},
			"gun":     {ModelID: "g/1", Timeout: time.Second, Enabled: false},
			"emotion": {ModelID: "e/1", Timeout: time.Second, Enabled: true},
		},
	}

	providers := NewProviders(cfg, http.DefaultClient)
	kinds := make([]entity.ProviderKind, 0, len(providers))
	for _, p := range providers {
		kinds = append(kinds, p.Kind())
	}
	assert.Equal(t, []entity.ProviderKind{entity.KindMask, entity.KindKnife, entity.KindEmotion}, kinds)

	cfg.APIKey = ""
	assert.Empty(t, NewProviders(cfg, http.DefaultClient))
}
