package sanitize

import "testing"

func TestField(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "JANE ROE", "JANE ROE"},
		{"tags stripped", "<b>JANE</b> ROE", "JANE ROE"},
		{"script dropped", "JANE<script>alert(1)</script> ROE", "JANE ROE"},
		{"control chars", "JANE\x00\x07 ROE", "JANE ROE"},
		{"whitespace collapsed", "  JANE \t\n ROE  ", "JANE ROE"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Field(tt.in); got != tt.want {
				t.Fatalf("Field(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
