package entity

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Prediction はプロバイダーが返す1件の検出結果です。
// classとconfidenceは明示的に取り出し、元のオブジェクトはそのまま保持します。
// プロバイダーごとにスキーマが異なるため、未知のフィールドは失わずに再出力します。
type Prediction struct {
	Class      string
	Confidence float64
	raw        json.RawMessage
}

type predictionFields struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// NewPrediction は元のJSONオブジェクトを持たないPredictionを生成します。
func NewPrediction(class string, confidence float64) Prediction {
	return Prediction{Class: class, Confidence: confidence}
}

// PredictionFromRaw はJSONオブジェクトからPredictionを生成します。
// classやconfidenceが無い、または型が異なる場合はゼロ値のまま元のオブジェクトを保持します。
func PredictionFromRaw(raw []byte) (Prediction, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Prediction{}, errors.New("prediction must be a JSON object")
	}
	if !json.Valid(trimmed) {
		return Prediction{}, errors.New("prediction is not valid JSON")
	}
	p := Prediction{raw: append(json.RawMessage(nil), trimmed...)}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &generic); err != nil {
		return Prediction{}, err
	}
	if v, ok := generic["class"]; ok {
		_ = json.Unmarshal(v, &p.Class)
	}
	if v, ok := generic["confidence"]; ok {
		_ = json.Unmarshal(v, &p.Confidence)
	}
	return p, nil
}

// Raw は元のJSONオブジェクトを返します。無い場合はnilです。
func (p Prediction) Raw() json.RawMessage { return p.raw }

// Field は元のオブジェクトから任意のフィールドを取り出します。
func (p Prediction) Field(name string) (json.RawMessage, bool) {
	if p.raw == nil {
		return nil, false
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(p.raw, &generic); err != nil {
		return nil, false
	}
	v, ok := generic[name]
	return v, ok
}

// MarshalJSON は元のオブジェクトをそのまま出力します。
func (p Prediction) MarshalJSON() ([]byte, error) {
	if p.raw != nil {
		return p.raw, nil
	}
	return json.Marshal(predictionFields{Class: p.Class, Confidence: p.Confidence})
}

// UnmarshalJSON はオブジェクトを保持したまま既知のフィールドを取り出します。
func (p *Prediction) UnmarshalJSON(data []byte) error {
	parsed, err := PredictionFromRaw(data)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
