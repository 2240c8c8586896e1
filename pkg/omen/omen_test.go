package omen

import (
	"testing"

	"github.com/daviddao/zeilumara/pkg/model"
)

func TestFirst_Awakening(t *testing.T) {
	o, ok := First(model.StructuredTime{Loop: 6, VisibleBeat: 1})
	if !ok || o.Kind != Awakening {
		t.Fatalf("got %+v, %v; want awakening", o, ok)
	}
	if o.Message != AwakeningMessage {
		t.Fatalf("message = %q", o.Message)
	}
}

func TestFirst_Whisper(t *testing.T) {
	o, ok := First(model.StructuredTime{VisibleBeat: 77})
	if !ok || o.Kind != Whisper {
		t.Fatalf("got %+v, %v; want whisper", o, ok)
	}
}

func TestFirst_None(t *testing.T) {
	s := model.StructuredTime{Dreamday: 1, Loop: 3, Weave: 2, Beat: 45, VisibleBeat: 100}
	if o, ok := First(s); ok {
		t.Fatalf("got %+v, want no omen", o)
	}
}

func TestFirst_AwakeningNeedsFirstDreamday(t *testing.T) {
	if o, ok := First(model.StructuredTime{Dreamday: 2, Loop: 6, VisibleBeat: 5}); ok {
		t.Fatalf("got %+v, want no omen", o)
	}
}

func TestEvaluate_BothInPriorityOrder(t *testing.T) {
	got := Evaluate(model.StructuredTime{Loop: 6, VisibleBeat: 154})
	if len(got) != 2 {
		t.Fatalf("got %d omens, want 2", len(got))
	}
	if got[0].Kind != Awakening || got[1].Kind != Whisper {
		t.Fatalf("order = %s, %s", got[0].Kind, got[1].Kind)
	}
}

func TestEvaluate_WhisperMultiples(t *testing.T) {
	tests := []struct {
		vb   float64
		want bool
	}{
		{0, true},
		{77, true},
		{-77, true},
		{77 * 1e20, true},
		{76, false},
		{78, false},
	}
	for _, tt := range tests {
		got := len(Evaluate(model.StructuredTime{Dreamday: 1, VisibleBeat: tt.vb})) == 1
		if got != tt.want {
			t.Errorf("visible beat %v: whisper=%v, want %v", tt.vb, got, tt.want)
		}
	}
}
