package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FSPublisher archives run reports under a local directory, mirroring
// the S3 key layout. For local deployments and development.
type FSPublisher struct {
	root string
	now  func() time.Time
}

// NewFSPublisher creates a publisher rooted at dir.
func NewFSPublisher(dir string) (*FSPublisher, error) {
	if dir == "" {
		return nil, errors.New("snapshot: directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create root: %w", err)
	}
	return &FSPublisher{root: dir, now: time.Now}, nil
}

// Publish implements Publisher.
func (p *FSPublisher) Publish(_ context.Context, report Report) error {
	if report.WrittenAt.IsZero() {
		report.WrittenAt = p.now().UTC()
	}
	body, err := Encode(report)
	if err != nil {
		return err
	}

	target := filepath.Join(p.root, filepath.FromSlash(Key(report.Run)))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("snapshot: create dir: %w", err)
	}
	// Write-then-rename so readers never see a partial report.
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("snapshot: rename %s: %w", target, err)
	}
	return nil
}

var _ Publisher = (*FSPublisher)(nil)
