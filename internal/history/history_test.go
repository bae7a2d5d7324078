package history

import "testing"

func TestNewDefaultsCapacity(t *testing.T) {
	r := New(0)
	for i := 0; i < 150; i++ {
		r.Insert(map[string]any{"n": i})
	}
	if r.Len() != 100 {
		t.Errorf("expected capacity to default to 100, got %d", r.Len())
	}
}

func TestInsertIsNewestFirst(t *testing.T) {
	r := New(10)
	r.Insert(map[string]any{"n": 1})
	r.Insert(map[string]any{"n": 2})
	r.Insert(map[string]any{"n": 3})

	entries := r.Recent(10)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Message["n"] != 3 || entries[1].Message["n"] != 2 || entries[2].Message["n"] != 1 {
		t.Errorf("expected newest-first order, got %#v", entries)
	}
}

func TestInsertTruncatesAtCapacity(t *testing.T) {
	r := New(2)
	r.Insert(map[string]any{"n": 1})
	r.Insert(map[string]any{"n": 2})
	r.Insert(map[string]any{"n": 3})

	if r.Len() != 2 {
		t.Fatalf("expected length capped at 2, got %d", r.Len())
	}
	entries := r.Recent(10)
	if entries[0].Message["n"] != 3 || entries[1].Message["n"] != 2 {
		t.Errorf("expected oldest entry evicted, got %#v", entries)
	}
}

func TestRecentLimit(t *testing.T) {
	r := New(10)
	for i := 0; i < 5; i++ {
		r.Insert(map[string]any{"n": i})
	}

	if got := len(r.Recent(2)); got != 2 {
		t.Errorf("expected limit 2 to return 2 entries, got %d", got)
	}
	if got := len(r.Recent(0)); got != 5 {
		t.Errorf("expected limit<=0 to return all entries, got %d", got)
	}
	if got := len(r.Recent(1000)); got != 5 {
		t.Errorf("expected limit beyond length to clamp to length, got %d", got)
	}
}

func TestEntryTimestampFormat(t *testing.T) {
	r := New(1)
	r.Insert(map[string]any{"n": 1})
	ts := r.Recent(1)[0].Timestamp

	if len(ts) != len("2006-01-02T15:04:05.000000") {
		t.Errorf("expected microsecond-precision local ISO-8601 timestamp, got %q", ts)
	}
}
