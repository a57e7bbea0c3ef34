package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/antigravity-labs/reflex-engine/internal/models"
)

// jsonData is the complete on-disk structure for the JSON sink.
type jsonData struct {
	LastUpdated time.Time               `json:"last_updated"`
	Trades      []models.TradeRecord    `json:"trades"`
	RiskEvents  []RiskEventRecord       `json:"risk_events"`
	Strategies  []models.ActiveStrategy `json:"strategies"`
}

// JSONSink is an append-only JSON-file-backed Sink. Every append re-serializes
// the whole file via a temp-file-then-rename swap so a crash mid-write never
// corrupts the previous contents.
type JSONSink struct {
	mu       sync.Mutex
	filepath string
	data     *jsonData
}

// NewJSONSink opens (or creates) a JSON sink at path.
func NewJSONSink(path string) (*JSONSink, error) {
	s := &JSONSink{filepath: path, data: &jsonData{}}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading storage file: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, s.data); err != nil {
				return nil, fmt.Errorf("parsing storage file: %w", err)
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat storage file: %w", err)
	}

	return s, nil
}

func (s *JSONSink) RecordTrade(_ context.Context, rec *models.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Trades = append(s.data.Trades, *rec)
	return s.saveUnsafe()
}

func (s *JSONSink) RecordRiskEvent(_ context.Context, rec RiskEventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.RiskEvents = append(s.data.RiskEvents, rec)
	return s.saveUnsafe()
}

func (s *JSONSink) RecordStrategy(_ context.Context, st *models.ActiveStrategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Strategies = append(s.data.Strategies, *st)
	return s.saveUnsafe()
}

func (s *JSONSink) Close() error { return nil }

// saveUnsafe writes s.data atomically: temp file in the same directory (to
// avoid a cross-device rename), fsync, rename, then fsync the parent
// directory so the rename itself survives a crash. Falls back to a copy when
// rename fails with EXDEV (temp dir on a different filesystem than the target).
func (s *JSONSink) saveUnsafe() error {
	s.data.LastUpdated = time.Now().UTC()

	dir := filepath.Dir(s.filepath)
	f, err := os.CreateTemp(dir, ".storage-*")
	if err != nil {
		return err
	}
	tmpFile := f.Name()
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmpFile)
	}()

	if err := f.Chmod(0o600); err != nil {
		return fmt.Errorf("set temp file permissions: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.data); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	dirSynced := false
	if err := os.Rename(tmpFile, s.filepath); err != nil {
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
			if copyErr := copyFile(tmpFile, s.filepath); copyErr != nil {
				return fmt.Errorf("copy temp file across devices: %w", copyErr)
			}
			dirSynced = true
		} else {
			return fmt.Errorf("rename temp file: %w", err)
		}
	}
	tmpFile = ""

	if !dirSynced {
		if dirHandle, err := os.Open(dir); err == nil {
			syncErr := dirHandle.Sync()
			_ = dirHandle.Close()
			if syncErr != nil {
				return fmt.Errorf("fsync parent directory: %w", syncErr)
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstDir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dstDir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(info.Mode()); err != nil {
		return err
	}

	buf := make([]byte, 32*1024)
	for {
		n, rerr := srcFile.Read(buf)
		if n > 0 {
			if _, werr := tmp.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return rerr
		}
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return err
	}
	tmpName = ""

	if dirHandle, err := os.Open(dstDir); err == nil {
		defer dirHandle.Close()
		return dirHandle.Sync()
	}
	return nil
}
