// Package archive turns one backup item folder into a single compressed file.
//
// Archives are written to a hidden temporary file next to the target and
// renamed into place, so an archive that exists under its final name is
// always complete. Entries are rooted at the item folder name.
package archive

import (
	"archive/tar"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/pierrec/lz4/v4"
)

// TempPrefix starts the name of every in-progress archive
const TempPrefix = ".archive-"

const ioBufferSize = 256 * 1024

// Stats describes one created archive
type Stats struct {
	Files       int
	BytesRead   int64
	ArchiveSize int64
	Duration    time.Duration
}

// Archiver creates item archives in one format and level
type Archiver struct {
	format Format
	level  Level
}

// New creates an archiver from configured format and level names
func New(format, level string) (*Archiver, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return &Archiver{format: f, level: l}, nil
}

// Format returns the archive format
func (a *Archiver) Format() Format {
	return a.format
}

// Name returns the archive file name for itemID
func (a *Archiver) Name(itemID string) string {
	return Name(itemID, a.format)
}

// Create archives the folder srcDir into archivePath. On any error no file
// is left at archivePath and the temporary file is removed.
func (a *Archiver) Create(ctx context.Context, srcDir, archivePath string) (stats *Stats, retErr error) {
	start := time.Now()
	stats = &Stats{}

	info, err := os.Stat(srcDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source %s: %w", srcDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", srcDir)
	}

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), TempPrefix+filepath.Base(archivePath)+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp archive: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	bufWriter := bufio.NewWriterSize(tmp, ioBufferSize)
	if a.format == Zip {
		err = a.writeZip(ctx, srcDir, bufWriter, stats)
	} else {
		err = a.writeTar(ctx, srcDir, bufWriter, stats)
	}
	if err != nil {
		return nil, err
	}

	if err := bufWriter.Flush(); err != nil {
		return nil, fmt.Errorf("buffer flush failed: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync temp archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp archive: %w", err)
	}

	if err := os.Rename(tmpPath, archivePath); err != nil {
		return nil, fmt.Errorf("failed to rename temp archive to final path: %w", err)
	}

	if fi, err := os.Stat(archivePath); err == nil {
		stats.ArchiveSize = fi.Size()
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

// entry is one filesystem object below the item folder
type entry struct {
	absPath string
	name    string // slash-separated, rooted at the item folder name
	info    os.FileInfo
}

// walk visits srcDir and everything below it in lexical order
func walk(ctx context.Context, srcDir string, fn func(e entry) error) error {
	parent := filepath.Dir(srcDir)

	return filepath.Walk(srcDir, func(absPath string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(parent, absPath)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", absPath, err)
		}

		return fn(entry{absPath: absPath, name: filepath.ToSlash(rel), info: info})
	})
}

func (a *Archiver) writeZip(ctx context.Context, srcDir string, w io.Writer, stats *Stats) (retErr error) {
	zw := zip.NewWriter(w)

	lvl := flate.DefaultCompression
	switch a.level {
	case Fastest:
		lvl = flate.BestSpeed
	case Best:
		lvl = flate.BestCompression
	}
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, lvl)
	})

	defer func() {
		if err := zw.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("zip writer close failed: %w", err)
		}
	}()

	buf := make([]byte, ioBufferSize)
	return walk(ctx, srcDir, func(e entry) error {
		header, err := zip.FileInfoHeader(e.info)
		if err != nil {
			return fmt.Errorf("failed to create zip header for %s: %w", e.name, err)
		}
		header.Name = e.name

		switch {
		case e.info.IsDir():
			header.Name += "/"
			header.Method = zip.Store
			_, err := zw.CreateHeader(header)
			return err

		case e.info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(e.absPath)
			if err != nil {
				return fmt.Errorf("failed to read link %s: %w", e.absPath, err)
			}
			header.Method = zip.Store
			hw, err := zw.CreateHeader(header)
			if err != nil {
				return err
			}
			_, err = hw.Write([]byte(target))
			stats.Files++
			return err

		case !e.info.Mode().IsRegular():
			return nil
		}

		header.Method = zip.Deflate
		hw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to write zip header for %s: %w", e.name, err)
		}
		n, err := copyFile(hw, e.absPath, buf)
		stats.BytesRead += n
		stats.Files++
		return err
	})
}

func (a *Archiver) writeTar(ctx context.Context, srcDir string, w io.Writer, stats *Stats) (retErr error) {
	compressed, err := a.newCompressedWriter(w)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(compressed)

	defer func() {
		if err := tw.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("tar writer close failed: %w", err)
		}
		if err := compressed.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("compressed writer close failed: %w", err)
		}
	}()

	buf := make([]byte, ioBufferSize)
	return walk(ctx, srcDir, func(e entry) error {
		var link string
		if e.info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(e.absPath)
			if err != nil {
				return fmt.Errorf("failed to read link %s: %w", e.absPath, err)
			}
			link = target
		} else if !e.info.IsDir() && !e.info.Mode().IsRegular() {
			return nil
		}

		header, err := tar.FileInfoHeader(e.info, link)
		if err != nil {
			return fmt.Errorf("failed to create tar header for %s: %w", e.name, err)
		}
		header.Name = e.name
		if e.info.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header for %s: %w", e.name, err)
		}

		if !e.info.Mode().IsRegular() {
			if link != "" {
				stats.Files++
			}
			return nil
		}

		n, err := copyFile(tw, e.absPath, buf)
		stats.BytesRead += n
		stats.Files++
		if err == nil && n != e.info.Size() {
			err = fmt.Errorf("file %s changed size while archiving", e.absPath)
		}
		return err
	})
}

func (a *Archiver) newCompressedWriter(w io.Writer) (io.WriteCloser, error) {
	switch a.format {
	case TarGz:
		lvl := pgzip.DefaultCompression
		switch a.level {
		case Fastest:
			lvl = pgzip.BestSpeed
		case Best:
			lvl = pgzip.BestCompression
		}
		gz, err := pgzip.NewWriterLevel(w, lvl)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		return gz, nil

	case TarZst:
		encoderLevel := zstd.SpeedDefault
		switch a.level {
		case Fastest:
			encoderLevel = zstd.SpeedFastest
		case Best:
			encoderLevel = zstd.SpeedBestCompression
		}
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(encoderLevel))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zw, nil

	case TarLz4:
		lvl := lz4.Level5
		switch a.level {
		case Fastest:
			lvl = lz4.Fast
		case Best:
			lvl = lz4.Level9
		}
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(lvl)); err != nil {
			return nil, fmt.Errorf("failed to configure lz4 writer: %w", err)
		}
		return lw, nil
	}

	return nil, fmt.Errorf("unsupported tar format: %s", a.format)
}

func copyFile(w io.Writer, path string, buf []byte) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	n, err := io.CopyBuffer(w, f, buf)
	if err != nil {
		return n, fmt.Errorf("failed to archive file %s: %w", path, err)
	}
	return n, nil
}

// IsTemp reports whether name is an in-progress archive left by Create
func IsTemp(name string) bool {
	return strings.HasPrefix(name, TempPrefix)
}
