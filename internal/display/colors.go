package display

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Color is a semantic color role
type Color int

const (
	ColorNone Color = iota
	ColorPrimary
	ColorSuccess
	ColorWarning
	ColorError
	ColorMuted
)

// ColorTheme maps color roles to terminal attributes
type ColorTheme struct {
	Primary color.Attribute
	Success color.Attribute
	Warning color.Attribute
	Error   color.Attribute
	Muted   color.Attribute
}

// DarkColorTheme returns a color theme optimized for dark terminals
func DarkColorTheme() ColorTheme {
	return ColorTheme{
		Primary: color.FgHiBlue,
		Success: color.FgHiGreen,
		Warning: color.FgHiYellow,
		Error:   color.FgHiRed,
		Muted:   color.FgWhite,
	}
}

// ColorSystem applies a theme to text when color output is enabled
type ColorSystem struct {
	enabled bool
	colors  map[Color]*color.Color
}

// NewColorSystem creates a color system. With enabled false every method
// returns its input unchanged.
func NewColorSystem(theme ColorTheme, enabled bool) *ColorSystem {
	cs := &ColorSystem{
		enabled: enabled,
		colors: map[Color]*color.Color{
			ColorPrimary: color.New(theme.Primary, color.Bold),
			ColorSuccess: color.New(theme.Success),
			ColorWarning: color.New(theme.Warning),
			ColorError:   color.New(theme.Error, color.Bold),
			ColorMuted:   color.New(theme.Muted),
		},
	}

	// fatih/color decides globally from stdout; the caller's choice wins here
	for _, c := range cs.colors {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return cs
}

// DetectColorSupport reports whether f is a terminal that wants color.
// NO_COLOR, CLICOLOR=0 and TERM=dumb disable it.
func DetectColorSupport(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}

// IsColorSupported returns whether colors are applied
func (cs *ColorSystem) IsColorSupported() bool {
	return cs.enabled
}

// Colorize applies clr to text
func (cs *ColorSystem) Colorize(text string, clr Color) string {
	if !cs.enabled || clr == ColorNone {
		return text
	}
	if c, ok := cs.colors[clr]; ok {
		return c.Sprint(text)
	}
	return text
}

// Sprintf formats text with color using format string
func (cs *ColorSystem) Sprintf(clr Color, format string, args ...interface{}) string {
	return cs.Colorize(fmt.Sprintf(format, args...), clr)
}
