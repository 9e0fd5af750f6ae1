// Package predictionjson はプロバイダー応答から predictions を取り出す共通パーサーです。
package predictionjson

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"surveillance_backend/internal/feature/detection/domain/entity"
)

var (
	// ErrInvalidJSON は応答がJSONとして不正な場合です。
	ErrInvalidJSON = errors.New("response is not valid JSON")
	// ErrNotObject はルートがオブジェクトでない場合です。
	ErrNotObject = errors.New("response root must be a JSON object")
	// ErrMissingPredictions は predictions フィールドが無い場合です。
	ErrMissingPredictions = errors.New("response has no predictions field")
	// ErrInvalidPredictions は predictions の型が想定外の場合です。
	ErrInvalidPredictions = errors.New("predictions must be an array or a classification map")
)

// Parse はJSONオブジェクトの predictions を検出結果の列に変換します。
//
// predictions が配列の場合、各要素はオブジェクトでなければなりません。
// 分類モデルの {"label": {"confidence": n}} または {"label": n} 形式は、
// confidence降順・ラベル昇順の配列に正規化します。
func Parse(body []byte) ([]entity.Prediction, error) {
	raw := strings.TrimSpace(string(body))
	if raw == "" || !gjson.Valid(raw) {
		return nil, ErrInvalidJSON
	}
	root := gjson.Parse(raw)
	if !root.IsObject() {
		return nil, ErrNotObject
	}
	preds := root.Get("predictions")
	if !preds.Exists() {
		return nil, ErrMissingPredictions
	}

	switch {
	case preds.IsArray():
		return fromArray(preds)
	case preds.IsObject():
		return fromClassificationMap(preds)
	default:
		return nil, ErrInvalidPredictions
	}
}

// ParseText は生成モデルのテキスト出力を解析します。```json のコードフェンスは取り除きます。
func ParseText(text string) ([]entity.Prediction, string, error) {
	cleaned := StripCodeFence(text)
	preds, err := Parse([]byte(cleaned))
	return preds, cleaned, err
}

// StripCodeFence は前後のMarkdownコードフェンスを取り除きます。
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func fromArray(arr gjson.Result) ([]entity.Prediction, error) {
	items := arr.Array()
	out := make([]entity.Prediction, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrInvalidPredictions, i)
		}
		p, err := entity.PredictionFromRaw([]byte(item.Raw))
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrInvalidPredictions, i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func fromClassificationMap(m gjson.Result) ([]entity.Prediction, error) {
	out := make([]entity.Prediction, 0)
	var bad error
	m.ForEach(func(key, value gjson.Result) bool {
		label := key.String()
		switch {
		case value.Type == gjson.Number:
			out = append(out, entity.NewPrediction(label, value.Float()))
		case value.IsObject():
			conf := value.Get("confidence")
			if conf.Type != gjson.Number {
				bad = fmt.Errorf("%w: %q has no numeric confidence", ErrInvalidPredictions, label)
				return false
			}
			out = append(out, entity.NewPrediction(label, conf.Float()))
		default:
			bad = fmt.Errorf("%w: %q has unsupported value", ErrInvalidPredictions, label)
			return false
		}
		return true
	})
	if bad != nil {
		return nil, bad
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Class < out[j].Class
	})
	return out, nil
}
