package slug

import "testing"

// TestNormalize exercises route-slug normalisation with typical CMS slugs,
// percent-encoded Cyrillic, malformed input and boundary conditions.
func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		// --- Normal slugs ---
		{name: "simple", input: "kardiologia", want: "kardiologia", wantOK: true},
		{name: "with hyphens", input: "astma-pri-vazrastni", want: "astma-pri-vazrastni", wantOK: true},
		{name: "with digits", input: "faza-3-2026", want: "faza-3-2026", wantOK: true},
		{name: "uppercase folded", input: "Kardiologia", want: "kardiologia", wantOK: true},
		{name: "surrounding spaces", input: "  onkologia ", want: "onkologia", wantOK: true},

		// --- Cyrillic ---
		{name: "cyrillic", input: "кардиология", want: "кардиология", wantOK: true},
		{name: "cyrillic uppercase", input: "Астма", want: "астма", wantOK: true},
		{name: "percent-encoded cyrillic", input: "%D0%B0%D1%81%D1%82%D0%BC%D0%B0", want: "астма", wantOK: true},

		// --- Rejected ---
		{name: "empty", input: "", wantOK: false},
		{name: "only spaces", input: "   ", wantOK: false},
		{name: "leading hyphen", input: "-astma", wantOK: false},
		{name: "trailing hyphen", input: "astma-", wantOK: false},
		{name: "double hyphen", input: "astma--copd", wantOK: false},
		{name: "path traversal", input: "..%2Fadmin", wantOK: false},
		{name: "slash", input: "a/b", wantOK: false},
		{name: "query chars", input: "a?b=1", wantOK: false},
		{name: "underscore", input: "a_b", wantOK: false},
		{name: "bad escape", input: "%zz", wantOK: false},
		{name: "inner space", input: "astma copd", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("Normalize(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_TooLong(t *testing.T) {
	long := make([]byte, MaxLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, ok := Normalize(string(long)); ok {
		t.Error("expected an over-long slug to be rejected")
	}
	if _, ok := Normalize(string(long[:MaxLength])); !ok {
		t.Error("expected a slug of exactly MaxLength to be accepted")
	}
}

// TestNormalize_Idempotent verifies that a normalised slug normalises to
// itself.
func TestNormalize_Idempotent(t *testing.T) {
	for _, s := range []string{"kardiologia", "астма-при-деца", "a", "123"} {
		t.Run(s, func(t *testing.T) {
			got, ok := Normalize(s)
			if !ok || got != s {
				t.Errorf("Normalize(%q) = %q, %v, want %q, true", s, got, ok, s)
			}
		})
	}
}
