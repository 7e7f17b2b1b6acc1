package display

import (
	"os"
	"strings"
	"testing"
)

func TestColorSystem_Disabled(t *testing.T) {
	cs := NewColorSystem(DarkColorTheme(), false)
	if cs.IsColorSupported() {
		t.Error("Expected colors to be disabled")
	}
	if got := cs.Colorize("text", ColorError); got != "text" {
		t.Errorf("Expected plain text, got %q", got)
	}
}

func TestColorSystem_Enabled(t *testing.T) {
	cs := NewColorSystem(DarkColorTheme(), true)

	got := cs.Colorize("text", ColorSuccess)
	if !strings.Contains(got, "text") || !strings.HasPrefix(got, "\x1b[") {
		t.Errorf("Expected colored text, got %q", got)
	}
	if got := cs.Colorize("text", ColorNone); got != "text" {
		t.Errorf("Expected ColorNone to leave text unchanged, got %q", got)
	}
	if got := cs.Sprintf(ColorWarning, "%d items", 3); !strings.Contains(got, "3 items") {
		t.Errorf("Expected formatted text, got %q", got)
	}
}

func TestDetectColorSupport_NotATerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if DetectColorSupport(f) {
		t.Error("Expected no color support for a regular file")
	}
	if DetectColorSupport(nil) {
		t.Error("Expected no color support for nil")
	}
}
