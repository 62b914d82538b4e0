// Package filestore reads the date-partitioned station telemetry tree and the
// station inventory, and writes daily snapshots, through an afero filesystem.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
	"github.com/couchcryptid/hydro-telemetry-service/internal/observability"
)

const (
	dataExt        = ".json"
	stationPrefix  = "codigoestacao_"
	snapshotPrefix = "estacoes_completas_"
)

// Options locates the data tree and bounds read parallelism.
type Options struct {
	Root          string
	InventoryPath string
	SnapshotDir   string
	Concurrency   int
}

// Store is the record store over an afero filesystem.
type Store struct {
	fs      afero.Fs
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Store. Use afero.NewOsFs() in production and
// afero.NewMemMapFs() in tests.
func New(fsys afero.Fs, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Store {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 16
	}
	return &Store{fs: fsys, opts: opts, logger: logger, metrics: metrics}
}

// StationFile returns the path of one (station, day) document.
func (s *Store) StationFile(code, day string) string {
	return filepath.Join(s.opts.Root, day[:4], day[5:7], day, stationPrefix+code+dataExt)
}

// SnapshotPath returns the path of the snapshot for day.
func (s *Store) SnapshotPath(day string) string {
	return filepath.Join(s.opts.SnapshotDir, snapshotPrefix+day+dataExt)
}

type fileRef struct {
	day  string
	path string
}

// ReadPartition loads every parseable station document for the requested
// days of one (year, month) partition. Failing to list the partition root
// returns ErrDirectoryUnavailable. A day directory that cannot be listed, or
// a file that cannot be read or parsed, is logged and skipped.
func (s *Store) ReadPartition(ctx context.Context, p domain.Partition) ([]domain.RawReading, error) {
	dir := filepath.Join(s.opts.Root, p.Year, p.Month)
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", domain.ErrDirectoryUnavailable, dir, err)
	}
	s.metrics.PartitionsRead.Inc()

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			present[e.Name()] = true
		}
	}

	var refs []fileRef
	for _, day := range p.Days {
		if !present[day] {
			s.logger.Debug("day directory absent", "partition", p.Dir(), "day", day)
			continue
		}
		dayDir := filepath.Join(dir, day)
		files, err := afero.ReadDir(s.fs, dayDir)
		if err != nil {
			s.metrics.FileErrors.WithLabelValues("list").Inc()
			s.logger.Warn("skipping unreadable day directory", "path", dayDir, "error", err)
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.EqualFold(path.Ext(f.Name()), dataExt) {
				continue
			}
			refs = append(refs, fileRef{day: day, path: filepath.Join(dayDir, f.Name())})
		}
	}

	docs := make([][]domain.RawReading, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := s.readDocument(ref.path)
			if err != nil {
				s.logger.Warn("skipping station file", "path", ref.path, "error", err)
				return nil
			}
			code := strings.TrimSpace(doc.CodigoEstacao.Text())
			if code == "" {
				code = codeFromFilename(ref.path)
			}
			readings := make([]domain.RawReading, 0, len(doc.Dados))
			for _, rec := range doc.Dados {
				readings = append(readings, domain.RawReading{Station: code, Day: ref.day, Record: rec})
			}
			docs[i] = readings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.RawReading
	for _, d := range docs {
		out = append(out, d...)
	}
	return out, nil
}

// LoadStationDay reads one (station, day) document. A missing file is
// reported with both ErrStationFileUnreadable and fs.ErrNotExist in the chain.
func (s *Store) LoadStationDay(ctx context.Context, code, day string) (*domain.StationDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.readDocument(s.StationFile(code, day))
}

func (s *Store) readDocument(p string) (*domain.StationDocument, error) {
	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.metrics.FileErrors.WithLabelValues("read").Inc()
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrStationFileUnreadable, p, err)
	}
	var doc domain.StationDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.metrics.FileErrors.WithLabelValues("parse").Inc()
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrStationFileUnparseable, p, err)
	}
	if doc.Dados == nil {
		s.metrics.FileErrors.WithLabelValues("parse").Inc()
		return nil, fmt.Errorf("%w: %s: missing dados array", domain.ErrStationFileUnparseable, p)
	}
	s.metrics.FilesRead.Inc()
	return &doc, nil
}

// LoadInventory reads the station inventory array.
func (s *Store) LoadInventory(ctx context.Context) ([]domain.StationInventory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, s.opts.InventoryPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInventoryUnavailable, err)
	}
	var inv []domain.StationInventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrInventoryUnavailable, s.opts.InventoryPath, err)
	}
	return inv, nil
}

// WriteSnapshot replaces the snapshot for day with stations, writing to a
// temporary file first and renaming it into place.
func (s *Store) WriteSnapshot(ctx context.Context, day string, stations []domain.SnapshotStation) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if stations == nil {
		stations = []domain.SnapshotStation{}
	}
	data, err := json.MarshalIndent(stations, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	dest := s.SnapshotPath(day)
	if err := s.writeAtomic(dest, data); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return dest, nil
}

// LoadSnapshot reads a previously written snapshot.
func (s *Store) LoadSnapshot(ctx context.Context, p string) ([]domain.SnapshotStation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var stations []domain.SnapshotStation
	if err := json.Unmarshal(data, &stations); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", p, err)
	}
	return stations, nil
}

// WriteStationDay stores one (station, day) document. Used to seed local
// data trees.
func (s *Store) WriteStationDay(ctx context.Context, code, day string, doc domain.StationDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode station %s day %s: %w", code, day, err)
	}
	return s.writeAtomic(s.StationFile(code, day), data)
}

// WriteInventory stores the inventory array.
func (s *Store) WriteInventory(ctx context.Context, inv []domain.StationInventory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return fmt.Errorf("encode inventory: %w", err)
	}
	return s.writeAtomic(s.opts.InventoryPath, data)
}

func (s *Store) writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := s.fs.Rename(tmpName, dest); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", dest, err)
	}
	return nil
}

func codeFromFilename(p string) string {
	base := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
	return strings.TrimPrefix(base, stationPrefix)
}
