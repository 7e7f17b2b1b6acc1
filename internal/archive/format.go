package archive

import (
	"fmt"
	"strings"
)

// Format represents the archive container and compression of an item archive
type Format string

const (
	Zip    Format = "zip"
	TarGz  Format = "tar.gz"
	TarZst Format = "tar.zst"
	TarLz4 Format = "tar.lz4"
)

var formats = []Format{Zip, TarGz, TarZst, TarLz4}

// Formats returns every supported format
func Formats() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	return out
}

// ParseFormat parses a configured format name. Empty means Zip.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return Zip, nil
	}
	for _, f := range formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid archive format: %q. Must be 'zip', 'tar.gz', 'tar.zst', or 'tar.lz4'", s)
}

// Extension returns the file extension including the leading dot
func (f Format) Extension() string {
	return "." + string(f)
}

func (f Format) String() string {
	return string(f)
}

// Level represents the desired trade-off between speed and size
type Level string

const (
	Fastest Level = "fastest"
	Default Level = "default"
	Best    Level = "best"
)

// ParseLevel parses a configured level. Empty means Default.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case "":
		return Default, nil
	case Fastest, Default, Best:
		return Level(s), nil
	}
	return "", fmt.Errorf("invalid compression level: %q. Must be 'fastest', 'default', or 'best'", s)
}

// Name returns the archive file name for an item. It depends only on the
// item id and the format, so a rerun finds the archive an earlier run made.
func Name(itemID string, f Format) string {
	return itemID + f.Extension()
}

// ItemID reverses Name. ok is false when name is not an archive of format f.
func ItemID(name string, f Format) (string, bool) {
	ext := f.Extension()
	if !strings.HasSuffix(name, ext) || len(name) == len(ext) {
		return "", false
	}
	return strings.TrimSuffix(name, ext), true
}
