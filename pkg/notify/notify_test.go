package notify

import "testing"

func TestRepeatID(t *testing.T) {
	if got := RepeatID("abc", 7); got != "abc_repeat_7" {
		t.Fatalf("RepeatID = %q", got)
	}
	if got := SeriesPrefix("abc"); got != "abc_repeat_" {
		t.Fatalf("SeriesPrefix = %q", got)
	}
}

func TestMemoryCenter(t *testing.T) {
	c := NewMemoryCenter()
	c.AddTrigger(Trigger{ID: "b", FireAt: 20})
	c.AddTrigger(Trigger{ID: "a", FireAt: 20})
	c.AddTrigger(Trigger{ID: "z", FireAt: 10})
	c.AddTrigger(Trigger{ID: "a", FireAt: 20, Title: "replaced"})

	p, _ := c.PendingTriggers()
	if len(p) != 3 {
		t.Fatalf("pending %d, want 3", len(p))
	}
	if p[0].ID != "z" || p[1].ID != "a" || p[2].ID != "b" {
		t.Fatalf("order = %v", ids(p))
	}
	if p[1].Title != "replaced" {
		t.Fatal("same ID should replace")
	}

	c.RemoveTriggers("z", "missing")
	c.AddTrigger(Trigger{ID: "a_repeat_1"})
	c.AddTrigger(Trigger{ID: "a_repeat_2"})
	c.RemoveTriggersWithPrefix("a_repeat_")
	p, _ = c.PendingTriggers()
	if len(p) != 2 {
		t.Fatalf("after removals = %v", ids(p))
	}

	c.RemoveAllTriggers()
	if p, _ = c.PendingTriggers(); len(p) != 0 {
		t.Fatalf("after clear = %v", ids(p))
	}
}
