package ingest

import (
	"testing"

	"github.com/rexliu/n2kd/pkg/n2k"
)

type fakeSink struct {
	lines []string
}

func (f *fakeSink) Append(text string) { f.lines = append(f.lines, text) }

func TestValidate(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{`{"timestamp":"t","src":"1","dst":"255","pgn":"128267","fields":{"Depth":1}}`, true},
		{`{"timestamp":"t","src":"1","pgn":"128267","fields":{"Depth":1}`, false},        // missing trailing }}
		{`not json at all`, false},
		{`{"src":"1","dst":"255","pgn":"128267","fields":{"Depth":1}}`, false}, // doesn't start with {"timestamp
	}
	for _, c := range cases {
		if got := Validate(c.line); got != c.want {
			t.Errorf("Validate(%q) = %v, want %v", c.line, got, c.want)
		}
	}
}

func TestReassemblerFeedsCompleteLine(t *testing.T) {
	store := n2k.NewStore()
	sink := &fakeSink{}
	r := New(store, sink, nil)

	line := `{"timestamp":"t","src":"35","dst":"255","pgn":"128267","description":"Water Depth","fields":{"Depth":3.1}}`
	r.FeedBytes([]byte(line+"\n"), 1000)

	if len(sink.lines) != 1 {
		t.Fatalf("expected 1 broadcast line, got %d", len(sink.lines))
	}
	if sink.lines[0] != line+"\n" {
		t.Fatalf("broadcast line mismatch: %q", sink.lines[0])
	}
	snap := store.Snapshot(1000)
	if len(snap) == 0 {
		t.Fatalf("expected non-empty snapshot")
	}
}

func TestReassemblerRejectsMalformedLine(t *testing.T) {
	store := n2k.NewStore()
	sink := &fakeSink{}
	var rejected []string
	r := New(store, sink, func(line, reason string) { rejected = append(rejected, reason) })

	r.FeedBytes([]byte("{\"no fields here\"}\n"), 1000)

	if len(sink.lines) != 0 {
		t.Fatalf("expected no broadcast for malformed line")
	}
	if len(rejected) != 1 {
		t.Fatalf("expected one rejection callback, got %d", len(rejected))
	}
}

func TestReassemblerTruncatesOverlongLine(t *testing.T) {
	store := n2k.NewStore()
	sink := &fakeSink{}
	r := New(store, sink, nil)

	long := make([]byte, MaxLineLen+100)
	for i := range long {
		long[i] = 'a'
	}
	r.FeedBytes(long, 1000)
	if len(r.buf) != MaxLineLen {
		t.Fatalf("expected buffer truncated to %d bytes, got %d", MaxLineLen, len(r.buf))
	}
	r.Feed('\n', 1000)

	if len(r.buf) != 0 {
		t.Fatalf("expected buffer reset after newline")
	}
}
