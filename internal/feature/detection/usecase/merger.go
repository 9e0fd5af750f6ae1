package usecase

import (
	"fmt"

	"surveillance_backend/internal/feature/detection/domain/entity"
)

// Merge は種類ごとの結果を1つの応答にまとめます。副作用はありません。
//
// ModeSingleはkindsの先頭の結果をそのまま返します。
// ModeThreatsはkindsの順にグループを並べ、最後にtotal_detectionsを追加します。
// total_detectionsは完了順ではなくkindsの順に連結します。失敗した種類は空配列です。
func Merge(results map[entity.ProviderKind]entity.ProviderResult, mode entity.MergeMode, kinds []entity.ProviderKind) entity.AggregateResponse {
	if mode == entity.ModeSingle {
		if len(kinds) == 0 {
			return entity.NewSingleResponse(entity.Failure("", entity.NewProviderError(entity.ErrorKindInvalidInput, "no kind requested", nil)))
		}
		return entity.NewSingleResponse(resultFor(results, kinds[0]))
	}

	groups := make([]entity.Group, 0, len(kinds)+1)
	total := []entity.Prediction{}
	var failed []entity.ProviderKind
	for _, kind := range kinds {
		r := resultFor(results, kind)
		if !r.OK() {
			failed = append(failed, kind)
		}
		preds := r.PredictionsOrEmpty()
		groups = append(groups, entity.Group{Name: kind.String(), Predictions: preds})
		total = append(total, preds...)
	}
	groups = append(groups, entity.Group{Name: entity.TotalDetectionsGroup, Predictions: total})
	return entity.NewGroupedResponse(groups, failed)
}

func resultFor(results map[entity.ProviderKind]entity.ProviderResult, kind entity.ProviderKind) entity.ProviderResult {
	if r, ok := results[kind]; ok {
		return r
	}
	return entity.Failure(kind, entity.NewProviderError(entity.ErrorKindUnconfigured, fmt.Sprintf("no result for %q", kind), nil))
}
