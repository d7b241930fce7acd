// Package importer walks device result directories and loads every new
// measurement into the database.
package importer

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"path/filepath"

	"github.com/rs/zerolog"

	"mcr-analyzer/internal/grid"
	"mcr-analyzer/internal/measurement"
	"mcr-analyzer/internal/netpbm"
	"mcr-analyzer/internal/rslt"
	"mcr-analyzer/internal/store"
)

// State classifies the outcome of importing one result file.
type State int

const (
	StateImported State = iota
	StateDuplicate
	StateParseFailed
	StateImageFailed
)

func (s State) String() string {
	switch s {
	case StateImported:
		return "imported"
	case StateDuplicate:
		return "duplicate"
	case StateParseFailed:
		return "parse failed"
	case StateImageFailed:
		return "image failed"
	default:
		return "unknown"
	}
}

// Status reports what happened to one result file. Path is the result
// file path, or just the file name when parsing failed before a record
// existed.
type Status struct {
	Path  string
	State State
	Err   error

	// ID is the measurement ID for imported files, or the existing
	// record for duplicates.
	ID int
}

// Importer loads measurements from device result directories into a
// database. The caller saves the database afterwards.
type Importer struct {
	Store  *store.File
	Logger zerolog.Logger

	// Redetect reruns grid detection on each image instead of trusting
	// the geometry declared in the result file. Detection failures fall
	// back to the declared geometry.
	Redetect bool
}

// New creates an importer feeding the given database.
func New(db *store.File, logger zerolog.Logger) *Importer {
	return &Importer{Store: db, Logger: logger}
}

// ImportDir imports every result file under root. Images already in the
// database are skipped by checksum. The returned statuses cover every
// result file seen, including failures.
func (im *Importer) ImportDir(root string) ([]Status, error) {
	results, failed, err := rslt.ParseDir(root)
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(results)+len(failed))
	for _, name := range failed {
		im.Logger.Warn().Str("file", name).Msg("failed to parse result file")
		statuses = append(statuses, Status{Path: name, State: StateParseFailed})
	}
	for _, r := range results {
		statuses = append(statuses, im.importOne(root, r))
	}
	return statuses, nil
}

func (im *Importer) importOne(root string, r *rslt.Rslt) Status {
	imagePath := filepath.Join(r.Dir, r.ResultImagePGM)

	img, err := netpbm.ReadFile(imagePath)
	if err != nil {
		im.Logger.Error().Err(err).Str("file", imagePath).Msg("failed to read image")
		return Status{Path: r.Path, State: StateImageFailed, Err: err}
	}

	sum := ImageChecksum(img)
	if existing := im.Store.FindByChecksum(sum); existing != nil {
		im.Logger.Debug().
			Str("file", imagePath).
			Int("id", existing.ID).
			Msg("image already imported")
		return Status{Path: r.Path, State: StateDuplicate, ID: existing.ID}
	}

	corners := r.Corners
	dims := grid.Dimensions{Columns: r.ColumnCount, Rows: r.RowCount}
	if im.Redetect {
		if g, err := grid.DetectImage(img.Gray(), grid.DefaultParams()); err != nil {
			im.Logger.Warn().
				Err(err).
				Str("file", imagePath).
				Msg("grid detection failed, keeping declared geometry")
		} else {
			corners = g.Corners
			dims = g.Dims
		}
	}

	spots := measurement.Process(img, corners, dims, r.SpotSize)

	rel, err := filepath.Rel(root, imagePath)
	if err != nil {
		rel = imagePath
	}

	m := &store.Measurement{
		Timestamp:   r.DateTime,
		DeviceID:    r.DeviceID,
		ProbeID:     r.ProbeID,
		ChipID:      r.ChipID,
		Checksum:    sum,
		ImagePath:   filepath.ToSlash(rel),
		ImageWidth:  img.Width,
		ImageHeight: img.Height,
		RowCount:    dims.Rows,
		ColumnCount: dims.Columns,
		SpotSize:    r.SpotSize,
		Corners:     corners,
		Values:      spots.Values,
		Valid:       spots.Valid,
	}
	im.Store.Add(m)

	im.Logger.Info().
		Str("file", imagePath).
		Int("id", m.ID).
		Int("rows", dims.Rows).
		Int("columns", dims.Columns).
		Msg("imported measurement")
	return Status{Path: r.Path, State: StateImported, ID: m.ID}
}

// ImageChecksum hashes the raw samples in big-endian byte order, the
// byte order of the image files themselves.
func ImageChecksum(img *netpbm.Image) string {
	h := sha256.New()
	buf := make([]byte, 2)
	for _, s := range img.Pix {
		binary.BigEndian.PutUint16(buf, s)
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}
