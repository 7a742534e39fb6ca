package textnorm

import "testing"

func TestCleanHeading(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Introduction", "Introduction"},
		{"**Revised Plan**", "Revised Plan"},
		{"`config` Options", "config Options"},
		{"Overview ........ 4", "Overview"},
		{"Chapter 3", "Chapter 3"},
		{"Costs – “Summer” Edition…", `Costs - "Summer" Edition`},
		{"  Spaced    Out  ", "Spaced Out"},
		{"Eﬃcient ﬂows", "Efficient flows"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := CleanHeading(tt.in); got != tt.want {
				t.Errorf("CleanHeading(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanPassage(t *testing.T) {
	in := "• visit the **old town** and\n\n  the `harbour`\n"
	want := "- visit the old town and the harbour"
	if got := CleanPassage(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if got := CleanPassage("beaches are calm."); got != "Beaches are calm." {
		t.Errorf("expected capitalised first letter, got %q", got)
	}
}

func TestIsNoise(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"12", true},
		{"Page 3 of 10", true},
		{"page 7", true},
		{"-----", true},
		{"", true},
		{"Intro", false},
		{"3. Results", false},
	}
	for _, tt := range tests {
		if got := IsNoise(tt.in); got != tt.want {
			t.Errorf("IsNoise(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStartsLower(t *testing.T) {
	if !StartsLower("and then") {
		t.Error("expected lower-case start")
	}
	if StartsLower("Results") {
		t.Error("expected upper-case start")
	}
	if !StartsLower("(continued) text") {
		t.Error("leading punctuation should be skipped")
	}
	if StartsLower("2024 budget") {
		t.Error("leading digit is not a lower-case letter")
	}
}

func TestSnippet(t *testing.T) {
	s := "First sentence here. Second sentence is longer than the limit allows."
	if got := Snippet(s, 30); got != "First sentence here." {
		t.Errorf("got %q", got)
	}
	if got := Snippet("short", 30); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := Snippet("no sentence end at all here", 12); got != "no sentence" {
		t.Errorf("got %q", got)
	}
}
