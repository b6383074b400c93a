package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileSource reads events from a JSON-lines file.
type FileSource struct {
	Path string
	// FromStart replays lines already in the file. Otherwise reading starts
	// at the current end.
	FromStart bool
	// Follow keeps watching the file for appended lines until the context is
	// cancelled. Without it Run returns at end of file.
	Follow bool
	Log    *zap.Logger
}

// Run implements Source.
func (s *FileSource) Run(ctx context.Context, out chan<- Event) error {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	path, err := filepath.Abs(s.Path)
	if err != nil {
		return fmt.Errorf("resolve events path: %w", err)
	}

	t := &tail{path: path, out: out, log: log}
	if err := t.open(!s.FromStart); err != nil {
		return err
	}
	defer t.close()

	if !s.Follow {
		if err := t.drain(ctx); err != nil {
			return stopped(ctx, err)
		}
		return stopped(ctx, t.flush(ctx))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so rotation (remove + create) is seen. The watch is
	// in place before the first drain so no append is missed.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	log.Info("following events file", zap.String("path", path))

	if err := t.drain(ctx); err != nil {
		return stopped(ctx, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			switch {
			case event.Has(fsnotify.Create):
				log.Info("events file recreated, reading from start", zap.String("path", path))
				t.close()
				if err := t.open(false); err != nil {
					log.Warn("failed to reopen events file", zap.Error(err))
					continue
				}
				if err := t.drain(ctx); err != nil {
					return stopped(ctx, err)
				}
			case event.Has(fsnotify.Write):
				if err := t.drain(ctx); err != nil {
					return stopped(ctx, err)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))
		}
	}
}

// stopped hides errors caused by cancellation.
func stopped(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// tail tracks the read position in the events file and the trailing
// partial line.
type tail struct {
	path    string
	f       *os.File
	offset  int64
	line    int
	pending []byte
	out     chan<- Event
	log     *zap.Logger
}

func (t *tail) open(atEnd bool) error {
	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("open events file: %w", err)
	}
	t.f, t.offset, t.line, t.pending = f, 0, 0, t.pending[:0]
	if atEnd {
		off, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			f.Close()
			return fmt.Errorf("seek events file: %w", err)
		}
		t.offset = off
	}
	return nil
}

func (t *tail) close() {
	if t.f != nil {
		t.f.Close()
		t.f = nil
	}
}

// drain reads everything currently available and emits complete lines.
func (t *tail) drain(ctx context.Context) error {
	if t.f == nil {
		return nil
	}
	if info, err := t.f.Stat(); err == nil && info.Size() < t.offset {
		t.log.Info("events file truncated, reading from start", zap.String("path", t.path))
		if _, err := t.f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("seek events file: %w", err)
		}
		t.offset, t.line, t.pending = 0, 0, t.pending[:0]
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := t.f.Read(buf)
		if n > 0 {
			t.offset += int64(n)
			t.pending = append(t.pending, buf[:n]...)
			if err := t.emit(ctx); err != nil {
				return err
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read events file: %w", err)
		}
	}
}

// flush emits a final line that has no trailing newline.
func (t *tail) flush(ctx context.Context) error {
	if len(bytes.TrimSpace(t.pending)) == 0 {
		return nil
	}
	t.pending = append(t.pending, '\n')
	return t.emit(ctx)
}

func (t *tail) emit(ctx context.Context) error {
	for {
		i := bytes.IndexByte(t.pending, '\n')
		if i < 0 {
			return nil
		}
		line := bytes.TrimSpace(t.pending[:i])
		t.line++
		lineNo := t.line

		blank := len(line) == 0
		var (
			ev        Event
			decodeErr error
		)
		if !blank {
			ev, decodeErr = decodeEvent(line)
		}
		t.pending = append(t.pending[:0], t.pending[i+1:]...)
		if blank {
			continue
		}
		if decodeErr != nil {
			t.log.Warn("skipping invalid event", zap.Error(&DecodeError{Line: lineNo, Err: decodeErr}))
			continue
		}

		select {
		case t.out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
