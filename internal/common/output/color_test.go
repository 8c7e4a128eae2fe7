package output

import (
	"testing"

	"github.com/fatih/color"
)

// TestStatusColorMapping tests that each translation status maps to its color
func TestStatusColorMapping(t *testing.T) {
	tests := []struct {
		status string
		want   *color.Color
	}{
		{"translated", Translated},
		{"applied", Applied},
		{"failed", Failed},
		{"skipped", Skipped},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := StatusColor(tt.status); got != tt.want {
				t.Errorf("StatusColor(%q) returned unexpected color", tt.status)
			}
		})
	}
}

// TestStatusColorUnknown tests that unknown statuses get a reset color
func TestStatusColorUnknown(t *testing.T) {
	c := StatusColor("bogus")
	if c == nil {
		t.Fatal("StatusColor should never return nil")
	}
}

// TestFormatStatus tests status formatting includes brackets
func TestFormatStatus(t *testing.T) {
	// Disable color so the output is predictable
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	got := FormatStatus("applied")
	if got != "[applied]" {
		t.Errorf("FormatStatus = %q, want %q", got, "[applied]")
	}
}

// TestFormatEntity tests entity formatting round-trips the ID
func TestFormatEntity(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	got := FormatEntity("update.core")
	if got != "update.core" {
		t.Errorf("FormatEntity = %q, want %q", got, "update.core")
	}
}

// TestNoColorDisablesColor tests the NoColor toggle
func TestNoColorDisablesColor(t *testing.T) {
	prev := color.NoColor
	defer func() { color.NoColor = prev }()

	NoColor()
	if !color.NoColor {
		t.Error("NoColor() should set color.NoColor to true")
	}

	ForceColor()
	if color.NoColor {
		t.Error("ForceColor() should set color.NoColor to false")
	}
}
