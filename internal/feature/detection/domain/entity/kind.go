// Package entity はdetectionフィーチャーのドメインモデルを定義します。
package entity

import (
	"fmt"
	"strings"
)

// ProviderKind は外部推論プロバイダーに依頼する検出の種類です。
type ProviderKind string

const (
	KindMask    ProviderKind = "mask"
	KindKnife   ProviderKind = "knife"
	KindGun     ProviderKind = "gun"
	KindEmotion ProviderKind = "emotion"
	// KindObjects はGoogle Cloud Visionの物体検出です。
	KindObjects ProviderKind = "objects"
	// KindScene はGeminiによるシーン評価です。
	KindScene ProviderKind = "scene"
)

var allKinds = []ProviderKind{KindMask, KindKnife, KindGun, KindEmotion, KindObjects, KindScene}

// AllKinds は既知のProviderKindを定義順で返します。
func AllKinds() []ProviderKind {
	out := make([]ProviderKind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid は既知の種類かどうかを返します。
func (k ProviderKind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k ProviderKind) String() string { return string(k) }

// ParseProviderKind は文字列をProviderKindに変換します。大文字小文字と前後の空白は無視します。
func ParseProviderKind(s string) (ProviderKind, error) {
	k := ProviderKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown provider kind %q", s)
	}
	return k, nil
}
