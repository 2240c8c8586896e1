package model

import (
	"fmt"
	"math"
	"strconv"
)

// FormatCount renders an integral float64 counter (Era, VisibleBeat)
// without a fractional part. Magnitudes past 1e21 use exponent notation.
func FormatCount(v float64) string {
	if math.Abs(v) < 1e21 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'e', -1, 64)
}

// Compact is the one-line form used in event lists and trigger metadata.
func (s StructuredTime) Compact() string {
	return fmt.Sprintf("D%d R%d M%d L%d", s.Dreamday, s.Loop, s.Weave, s.Beat)
}

// Short mirrors an HH:MM:SS clock face: loop, weave, beat.
func (s StructuredTime) Short() string {
	return fmt.Sprintf("%02d:%02d:%04d", s.Loop, s.Weave, s.Beat)
}

// Roman renders the six named levels with romanized unit names.
func (s StructuredTime) Roman() string {
	return fmt.Sprintf("Yaogen %s | Yuxi %d | Dreamdiem %d\nReverloop %d | Mindlace %d | Lumibeat %d",
		FormatCount(s.Era), s.Archive, s.Dreamday, s.Loop, s.Weave, s.Beat)
}

// Chinese renders the six named levels with their original names.
func (s StructuredTime) Chinese() string {
	return fmt.Sprintf("曜元 %s | 幽曦 %d | 梦昼 %d\n幻环 %d | 思络 %d | 灵拍 %d",
		FormatCount(s.Era), s.Archive, s.Dreamday, s.Loop, s.Weave, s.Beat)
}

// Format picks the rendering for a display language.
func (s StructuredTime) Format(lang DisplayLanguage) string {
	switch lang {
	case LanguageChinese:
		return s.Chinese()
	case LanguageBoth:
		return s.Chinese() + "\n" + s.Roman()
	default:
		return s.Roman()
	}
}
