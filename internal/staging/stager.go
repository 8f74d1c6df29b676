// Package staging writes uploaded images into the shared staging directory
// where the inference process can read them.
package staging

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aldr4GO/celebtwin/internal/domain"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600

	maxNameLen  = 64
	defaultName = "upload"
)

// Tracker receives every path before it is written, so a partially written
// file is still released.
type Tracker interface {
	Track(path string)
}

// Stager persists uploads under collision-free names in one directory.
// The directory is shared by concurrent requests; each staged name carries
// a random UUID so writers never collide.
type Stager struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

// New creates a Stager rooted at dir, creating the directory if needed.
func New(dir string, logger *zap.Logger) (*Stager, error) {
	if dir == "" {
		return nil, domain.NewDetailError(domain.ErrStaging, "staging directory is not configured")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, domain.Detailf(domain.ErrStaging, "resolve staging directory: %v", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, domain.Detailf(domain.ErrStaging, "create staging directory: %v", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stager{dir: abs, now: time.Now, logger: logger}, nil
}

// Dir returns the absolute staging directory.
func (s *Stager) Dir() string { return s.dir }

// Stage writes each asset to the staging directory and returns the staged
// files in the same order. On error, files written so far remain tracked by
// t and are not returned.
func (s *Stager) Stage(ctx context.Context, t Tracker, assets ...domain.UploadedAsset) ([]domain.StagedFile, error) {
	// The directory may have been removed by an operator since startup.
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return nil, domain.Detailf(domain.ErrStaging, "create staging directory: %v", err)
	}

	staged := make([]domain.StagedFile, 0, len(assets))
	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return nil, domain.Detailf(domain.ErrStaging, "staging aborted: %v", err)
		}

		created := s.now()
		path := filepath.Join(s.dir, stagedName(created, a.Name))
		t.Track(path)

		if err := writeExclusive(path, a.Data); err != nil {
			return nil, domain.Detailf(domain.ErrStaging, "write %s: %v", filepath.Base(path), err)
		}

		s.logger.Debug("Staged upload",
			zap.String("path", path),
			zap.String("declared_name", a.Name),
			zap.Int("bytes", len(a.Data)),
		)
		staged = append(staged, domain.StagedFile{Path: path, CreatedAt: created})
	}
	return staged, nil
}

// Writable reports whether a file can be created in the staging directory.
func (s *Stager) Writable(_ context.Context) error {
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return domain.Detailf(domain.ErrStaging, "create staging directory: %v", err)
	}
	f, err := os.CreateTemp(s.dir, ".probe-*")
	if err != nil {
		return domain.Detailf(domain.ErrStaging, "probe staging directory: %v", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// Sweep removes staged files older than maxAge. Only names produced by the
// stager are considered; anything else in the directory is left alone. It
// recovers files left behind by a process that was killed mid-request.
func (s *Stager) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, domain.Detailf(domain.ErrStaging, "read staging directory: %v", err)
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		created, ok := stagedAt(e.Name())
		if !ok || created.After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to sweep staged file", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm) //nolint:gosec // name built by stagedName
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// stagedName builds "<unix-millis>-<uuid>-<sanitized name>".
func stagedName(created time.Time, declared string) string {
	return strconv.FormatInt(created.UnixMilli(), 10) + "-" + uuid.NewString() + "-" + sanitizeName(declared)
}

// stagedAt recovers the creation time encoded by stagedName. Names that
// stagedName did not produce report false.
func stagedAt(name string) (time.Time, bool) {
	millis, rest, ok := strings.Cut(name, "-")
	if !ok || len(rest) < 37 || rest[36] != '-' {
		return time.Time{}, false
	}
	if _, err := uuid.Parse(rest[:36]); err != nil {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// sanitizeName reduces a client-declared file name to a safe base name.
func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	clean := strings.TrimLeft(b.String(), ".")
	if len(clean) > maxNameLen {
		clean = clean[len(clean)-maxNameLen:]
	}
	if clean == "" {
		return defaultName
	}
	return clean
}
