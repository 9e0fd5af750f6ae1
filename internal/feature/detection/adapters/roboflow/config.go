// Package roboflow はRoboflow形式のHTTP推論APIを呼び出すプロバイダーを提供します。
package roboflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"surveillance_backend/internal/feature/detection/domain/entity"
)

const (
	// DefaultBaseURL はRoboflowのホスト型推論APIです。
	DefaultBaseURL = "https://detect.roboflow.com"
	// DefaultFileField はmultipartで画像を送るフィールド名です。
	DefaultFileField = "file"
	// DefaultTimeout はモデル1件あたりのタイムアウトです。
	DefaultTimeout = 10 * time.Second
)

// roboflowKinds はこのパッケージが扱う種類です。
var roboflowKinds = []entity.ProviderKind{entity.KindMask, entity.KindKnife, entity.KindGun, entity.KindEmotion}

// defaultModelIDs はモデルIDの初期値です。環境変数かYAMLで上書きします。
var defaultModelIDs = map[entity.ProviderKind]string{
	entity.KindMask:    "face-mask-detection-2gpmy/1",
	entity.KindKnife:   "knife-detection-bdxyk/1",
	entity.KindGun:     "gun-detection-mqmqt/1",
	entity.KindEmotion: "human-face-emotions/1",
}

// ModelConfig は1つのモデルの設定です。
type ModelConfig struct {
	ModelID       string        `mapstructure:"model_id"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerMinute int           `mapstructure:"rate_per_minute"` // 0は無制限
	Enabled       bool          `mapstructure:"enabled"`
}

// Config はRoboflowクライアント全体の設定です。
type Config struct {
	APIKey    string                 `mapstructure:"api_key"`
	BaseURL   string                 `mapstructure:"base_url"`
	FileField string                 `mapstructure:"file_field"`
	Models    map[string]ModelConfig `mapstructure:"providers"`
}

// Model は種類ごとの設定を返します。
func (c Config) Model(kind entity.ProviderKind) (ModelConfig, bool) {
	m, ok := c.Models[kind.String()]
	return m, ok
}

// Timeouts はDispatcherConfig用の種類ごとのタイムアウトです。
func (c Config) Timeouts() map[entity.ProviderKind]time.Duration {
	out := make(map[entity.ProviderKind]time.Duration, len(c.Models))
	for _, kind := range roboflowKinds {
		if m, ok := c.Model(kind); ok && m.Timeout > 0 {
			out[kind] = m.Timeout
		}
	}
	return out
}

// LoadConfig はYAMLファイル（任意）と環境変数からプロバイダー設定を読み込みます。
//
// 優先順位は 環境変数 > YAML > 初期値 です。環境変数名はキーの "." を "_" にした大文字です
// （例: providers.knife.model_id -> PROVIDERS_KNIFE_MODEL_ID）。APIキーは ROBOFLOW_API_KEY です。
// pathが空の場合はファイルを読みません。
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("roboflow.api_key", "ROBOFLOW_API_KEY")
	_ = v.BindEnv("roboflow.base_url", "ROBOFLOW_BASE_URL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading providers config failed (%s): %w", path, err)
		}
	}

	cfg := Config{
		APIKey:    strings.TrimSpace(v.GetString("roboflow.api_key")),
		BaseURL:   strings.TrimRight(strings.TrimSpace(v.GetString("roboflow.base_url")), "/"),
		FileField: strings.TrimSpace(v.GetString("roboflow.file_field")),
		Models:    make(map[string]ModelConfig, len(roboflowKinds)),
	}
	for _, kind := range roboflowKinds {
		var m ModelConfig
		// AutomaticEnvの値を反映させるため、Subではなくキーを個別に読む
		raw := map[string]any{
			"model_id":        v.Get(modelKey(kind, "model_id")),
			"timeout":         v.Get(modelKey(kind, "timeout")),
			"rate_per_minute": v.Get(modelKey(kind, "rate_per_minute")),
			"enabled":         v.Get(modelKey(kind, "enabled")),
		}
		if err := decode(raw, &m); err != nil {
			return Config{}, fmt.Errorf("parsing providers.%s failed: %w", kind, err)
		}
		m.ModelID = strings.Trim(strings.TrimSpace(m.ModelID), "/")
		cfg.Models[kind.String()] = m
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("roboflow.api_key", "")
	v.SetDefault("roboflow.base_url", DefaultBaseURL)
	v.SetDefault("roboflow.file_field", DefaultFileField)
	for _, kind := range roboflowKinds {
		v.SetDefault(modelKey(kind, "model_id"), defaultModelIDs[kind])
		v.SetDefault(modelKey(kind, "timeout"), DefaultTimeout.String())
		v.SetDefault(modelKey(kind, "rate_per_minute"), 0)
		v.SetDefault(modelKey(kind, "enabled"), true)
	}
}

func modelKey(kind entity.ProviderKind, field string) string {
	return "providers." + kind.String() + "." + field
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func (c Config) validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("roboflow.base_url must not be empty"))
	}
	if c.FileField == "" {
		errs = append(errs, errors.New("roboflow.file_field must not be empty"))
	}
	for _, kind := range roboflowKinds {
		m := c.Models[kind.String()]
		if !m.Enabled {
			continue
		}
		if m.ModelID == "" {
			errs = append(errs, fmt.Errorf("providers.%s.model_id must not be empty", kind))
		}
		if m.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("providers.%s.timeout must be positive", kind))
		}
		if m.RatePerMinute < 0 {
			errs = append(errs, fmt.Errorf("providers.%s.rate_per_minute must not be negative", kind))
		}
	}
	return errors.Join(errs...)
}
