package server

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare number", "521234567890", "521234567890@c.us"},
		{"already suffixed", "521234567890@c.us", "521234567890@c.us"},
		{"internal spaces", "52 1234 567 890", "521234567890@c.us"},
		{"surrounding whitespace", "  521234567890\t", "521234567890@c.us"},
		{"suffixed with spaces", " 52123456 7890@c.us ", "521234567890@c.us"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePhone(tt.input); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePhone_Idempotent(t *testing.T) {
	once := NormalizePhone("52 1234 567 890")
	twice := NormalizePhone(once)
	if once != twice {
		t.Errorf("normalization not idempotent: %q != %q", once, twice)
	}
}
