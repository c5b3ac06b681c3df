// Package logging provides n2kd's process logger: stdout by default, with
// an optional size-rolled file mirror configured via pkg/config. Rotation
// cycles through a bounded set of generation files rather than keeping a
// single shadow copy, the same reuse-the-oldest-slot discipline pkg/n2k
// applies to expired Message slots — and every rotation is reported through
// the same onRotate callback convention cmd/n2kd already uses to funnel
// netloop's reject/connection events into the diagnostic trace.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/rexliu/n2kd/pkg/config"
)

// Logger wraps the standard log.Logger.
type Logger struct {
	*log.Logger
}

// New returns a logger writing to stdout until Configure applies settings.
func New(prefix string) *Logger {
	return &Logger{Logger: log.New(os.Stdout, prefix+" ", log.LstdFlags)}
}

// RotateEvent is called after every log-file rotation with an
// operator-facing detail string (rotated path and generation index). It
// carries no protocol meaning; cmd/n2kd wires it to the diagnostic trace
// the same way it wires netloop's OnReject/OnConnection.
type RotateEvent func(detail string)

// Configure applies logging settings from config: level prefix and an
// optional rolling file mirror. onRotate may be nil.
func (l *Logger) Configure(cfg config.LoggingConfig, onRotate RotateEvent) error {
	if l == nil || l.Logger == nil {
		return nil
	}
	if cfg.Level != "" {
		l.SetPrefix(strings.ToUpper(cfg.Level) + " " + l.Prefix())
	}
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o700); err != nil {
			return err
		}
		generations := cfg.MaxGenerations
		if generations <= 0 {
			generations = 1
		}
		writer, err := newRollingFile(cfg.FilePath, cfg.FileMaxSizeMB, generations, onRotate)
		if err != nil {
			return err
		}
		l.SetOutput(io.MultiWriter(os.Stdout, writer))
	}
	return nil
}

// rollingFile mirrors writes to path, rotating into a fixed ring of
// generation files (path+".1" .. path+".<generations>") once the current
// file exceeds maxMB. The ring wraps rather than growing without bound: the
// next write past the last generation overwrites the oldest one, exactly
// the slot-reuse-by-expiry approach pkg/n2k.Store uses for Message slots,
// applied here to rotated files instead of stale PGN entries.
type rollingFile struct {
	path        string
	maxBytes    int64
	generations int
	nextGen     int
	file        *os.File
	onRotate    RotateEvent
}

func newRollingFile(path string, maxMB, generations int, onRotate RotateEvent) (*rollingFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	return &rollingFile{
		path:        path,
		maxBytes:    int64(maxMB) * 1024 * 1024,
		generations: generations,
		file:        f,
		onRotate:    onRotate,
	}, nil
}

func (r *rollingFile) Write(p []byte) (int, error) {
	if r.maxBytes > 0 {
		if info, err := r.file.Stat(); err == nil && info.Size()+int64(len(p)) > r.maxBytes {
			if err := r.rotate(); err != nil {
				return 0, err
			}
		}
	}
	return r.file.Write(p)
}

// rotate closes the current file, moves it into the next slot of the
// generation ring (overwriting whatever previously occupied that slot),
// and reopens a fresh file at r.path.
func (r *rollingFile) rotate() error {
	r.file.Close()

	gen := r.nextGen + 1
	target := fmt.Sprintf("%s.%d", r.path, gen)
	if err := os.Rename(r.path, target); err != nil {
		return err
	}
	r.nextGen = (r.nextGen + 1) % r.generations

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	r.file = f

	if r.onRotate != nil {
		r.onRotate(fmt.Sprintf("rotate path=%s generation=%d", target, gen))
	}
	return nil
}
