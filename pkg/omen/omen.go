// Package omen recognises the special Zeilumara moments that surface a
// message in the clock face.
package omen

import (
	"math"

	"github.com/daviddao/zeilumara/pkg/model"
)

// Kind identifies an omen.
type Kind string

const (
	// Awakening: the first dreamday of an archive, at loop 6.
	Awakening Kind = "awakening"
	// Whisper: the visible beat is a multiple of WhisperPeriod.
	Whisper Kind = "whisper"
)

// WhisperPeriod is the visible-beat divisor that triggers a Whisper.
const WhisperPeriod = 77

const (
	AwakeningMessage = "🌌 Zeilumara 醒了：『你踏入了未命名之昼。』"
	WhisperMessage   = "✨ 女神轻语：『不要忘记你心里的时间。』"
)

// Omen is a matched pattern and its message.
type Omen struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Evaluate returns every omen s matches, Awakening first.
func Evaluate(s model.StructuredTime) []Omen {
	var out []Omen
	if s.Dreamday == 0 && s.Loop == 6 {
		out = append(out, Omen{Kind: Awakening, Message: AwakeningMessage})
	}
	if math.Mod(s.VisibleBeat, WhisperPeriod) == 0 {
		out = append(out, Omen{Kind: Whisper, Message: WhisperMessage})
	}
	return out
}

// First returns the highest-priority omen, for callers with room for a
// single message.
func First(s model.StructuredTime) (Omen, bool) {
	if o := Evaluate(s); len(o) > 0 {
		return o[0], true
	}
	return Omen{}, false
}
