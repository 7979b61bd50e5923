package cli

import (
	"testing"
)

func TestMatchesFilter(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		label   string
		want    bool
	}{
		{"substring match", "prod", "prod-db", true},
		{"substring is case-insensitive", "PROD", "prod-db", true},
		{"substring miss", "staging", "prod-db", false},
		{"glob prefix", "prod-*", "prod-db", true},
		{"substring inside a word", "prod", "reproduction", true},
		{"glob anchored miss", "prod-*", "a-prod-db", false},
		{"single char wildcard", "db-?", "db-1", true},
		{"character class", "db-[12]", "db-2", true},
		{"character class miss", "db-[12]", "db-3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchesFilter(tt.pattern, tt.label)
			if err != nil {
				t.Fatalf("MatchesFilter failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("MatchesFilter(%q, %q) = %v, want %v", tt.pattern, tt.label, got, tt.want)
			}
		})
	}
}

func TestMatchesFilterInvalidPattern(t *testing.T) {
	if _, err := MatchesFilter("[unterminated", "label"); err == nil {
		t.Error("expected error for malformed pattern")
	}
}

func TestValidateFilter(t *testing.T) {
	if err := ValidateFilter("prod-*"); err != nil {
		t.Errorf("ValidateFilter(prod-*) failed: %v", err)
	}
	if err := ValidateFilter("[oops"); err == nil {
		t.Error("expected error for malformed pattern")
	}
}
