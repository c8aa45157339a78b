package dedup

import (
	"testing"

	"github.com/josephgoksu/taskmail/internal/task"
)

func TestLevenshteinRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 100},
		{"picture day", "picture day", 100},
		{"abc", "xyz", 0},
		{"abcd", "abcf", 75},
	}
	for _, tt := range tests {
		if got := LevenshteinRatio(tt.a, tt.b); got != tt.want {
			t.Errorf("LevenshteinRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestIsDuplicate_Reflexive(t *testing.T) {
	d := New(0, nil)
	for _, title := range []string{"Permission slip", "Snacks", "Ü", "x"} {
		if !d.IsDuplicate(title, []task.Task{{Title: title}}) {
			t.Errorf("title %q should duplicate itself", title)
		}
	}
}

func TestIsDuplicate_PictureDay(t *testing.T) {
	d := New(DefaultThreshold, LevenshteinRatio)
	existing := []task.Task{{ID: 1, Title: "Picture Day"}}

	if !d.IsDuplicate("picture day forms", existing) {
		t.Fatal("expected \"picture day forms\" to duplicate \"Picture Day\"")
	}
	if d.IsDuplicate("Bake sale", existing) {
		t.Error("\"Bake sale\" should not duplicate \"Picture Day\"")
	}
}

func TestIsDuplicate_EmptyReference(t *testing.T) {
	if New(0, nil).IsDuplicate("Anything", nil) {
		t.Error("nothing can duplicate an empty set")
	}
}

func TestMatch_FirstMatchWins(t *testing.T) {
	d := New(50, nil)
	existing := []task.Task{
		{ID: 1, Title: "Field trip forms"},
		{ID: 2, Title: "Field trip permission"},
	}
	m, _, ok := d.Match("field trip permission", existing)
	if !ok || m.ID != 1 {
		t.Errorf("Match = (%d, %v), want first matching task 1", m.ID, ok)
	}
	best, score, _ := d.Best("field trip permission", existing)
	if best.ID != 2 || score != 100 {
		t.Errorf("Best = (%d, %v), want (2, 100)", best.ID, score)
	}
}

func TestMetricSwappable(t *testing.T) {
	calls := 0
	always := func(a, b string) float64 { calls++; return 100 }
	d := New(50, always)
	if !d.IsDuplicate("a", []task.Task{{Title: "b"}, {Title: "c"}}) {
		t.Error("custom metric should be used")
	}
	if calls != 1 {
		t.Errorf("expected short-circuit after first match, got %d calls", calls)
	}
}

func TestMetricByName(t *testing.T) {
	if _, err := MetricByName("levenshtein"); err != nil {
		t.Errorf("levenshtein: %v", err)
	}
	if _, err := MetricByName("cosine"); err == nil {
		t.Error("expected error for unknown metric")
	}
}
