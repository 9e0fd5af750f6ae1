package entity

import (
	"bytes"
	"encoding/json"
)

// MergeMode はResponse Mergerの結合方法です。
type MergeMode int

const (
	// ModeSingle は1種類の結果をプロバイダーの形式のまま返します。
	ModeSingle MergeMode = iota
	// ModeThreats はknife/gunを結合し、total_detectionsを追加します。
	ModeThreats
)

func (m MergeMode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeThreats:
		return "threats"
	default:
		return "unknown"
	}
}

// ProviderFailureMessage はsingleモードで失敗を返すときのerrorメッセージです。
const ProviderFailureMessage = "Invalid response received"

// Group は結合後のグループ名と検出結果の組です。
type Group struct {
	Name        string
	Predictions []Prediction
}

// AggregateResponse は1リクエストの最終的な応答です。シリアライズ後は破棄されます。
type AggregateResponse struct {
	Mode MergeMode

	// singleモード
	Kind        ProviderKind
	Body        json.RawMessage
	Predictions []Prediction
	Err         *ProviderError

	// threatsモード（出力順を保持）
	Groups []Group

	failed []ProviderKind
}

type failureBody struct {
	Error     string       `json:"error"`
	ErrorKind ErrorKind    `json:"error_kind"`
	Provider  ProviderKind `json:"provider"`
}

// NewSingleResponse はsingleモードの応答を生成します。
func NewSingleResponse(r ProviderResult) AggregateResponse {
	out := AggregateResponse{Mode: ModeSingle, Kind: r.Kind, Body: r.Body, Predictions: r.PredictionsOrEmpty(), Err: r.Err}
	if !r.OK() {
		out.failed = []ProviderKind{r.Kind}
	}
	return out
}

// NewGroupedResponse はthreatsモードの応答を生成します。failedは失敗した種類です。
func NewGroupedResponse(groups []Group, failed []ProviderKind) AggregateResponse {
	return AggregateResponse{Mode: ModeThreats, Groups: groups, failed: failed}
}

// Failures は失敗した種類を返します（ログ用）。
func (a AggregateResponse) Failures() []ProviderKind { return a.failed }

// Failure はsingleモードで失敗した場合にtrueを返します。
func (a AggregateResponse) Failure() bool { return a.Mode == ModeSingle && a.Err != nil }

// Group は名前でグループを取り出します。
func (a AggregateResponse) Group(name string) ([]Prediction, bool) {
	for _, g := range a.Groups {
		if g.Name == name {
			return g.Predictions, true
		}
	}
	return nil, false
}

// TotalDetectionsGroup はthreatsモードで全件を連結したグループ名です。
const TotalDetectionsGroup = "total_detections"

// TotalDetections は応答に含まれる全ての検出結果です。
// threatsモードではtotal_detectionsグループ、無ければ各グループを順に連結します。
func (a AggregateResponse) TotalDetections() []Prediction {
	if a.Mode == ModeSingle {
		return a.Predictions
	}
	if total, ok := a.Group(TotalDetectionsGroup); ok {
		return total
	}
	out := []Prediction{}
	for _, g := range a.Groups {
		out = append(out, g.Predictions...)
	}
	return out
}

// DetectionCount は応答に含まれる検出件数です。
func (a AggregateResponse) DetectionCount() int { return len(a.TotalDetections()) }

// MarshalJSON はモードに応じた外部向けのJSONを出力します。
func (a AggregateResponse) MarshalJSON() ([]byte, error) {
	if a.Mode == ModeSingle {
		if a.Err != nil {
			return json.Marshal(failureBody{Error: ProviderFailureMessage, ErrorKind: a.Err.Kind, Provider: a.Kind})
		}
		if len(a.Body) > 0 {
			return a.Body, nil
		}
		return json.Marshal(map[string][]Prediction{"predictions": a.Predictions})
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, g := range a.Groups {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(g.Name)
		if err != nil {
			return nil, err
		}
		preds := g.Predictions
		if preds == nil {
			preds = []Prediction{}
		}
		value, err := json.Marshal(preds)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
