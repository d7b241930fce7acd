// Package store provides measurement database handling and persistence.
package store

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"mcr-analyzer/internal/grid"
)

// Measurement is one imported measurement: identity fields from the
// device result file, the grid geometry and the computed spot results.
type Measurement struct {
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id,omitempty"`
	ProbeID   string    `json:"probe_id,omitempty"`
	ChipID    string    `json:"chip_id,omitempty"`

	// Checksum is the hex SHA-256 of the raw image samples; it keys
	// duplicate detection across imports.
	Checksum string `json:"checksum"`

	// Source image (path relative to the import root)
	ImagePath   string `json:"image_path,omitempty"`
	ImageWidth  int    `json:"image_width"`
	ImageHeight int    `json:"image_height"`

	// Grid geometry
	RowCount    int                  `json:"row_count"`
	ColumnCount int                  `json:"column_count"`
	SpotSize    int                  `json:"spot_size"`
	Corners     grid.CornerPositions `json:"corners"`

	Notes string `json:"notes,omitempty"`

	// Spot results, row-major
	Values [][]float64 `json:"values,omitempty"`
	Valid  [][]bool    `json:"valid,omitempty"`
}

// File represents a measurement database file (.mcrdb).
type File struct {
	Version      int            `json:"version"`
	Created      time.Time      `json:"created"`
	Modified     time.Time      `json:"modified"`
	NextID       int            `json:"next_id"`
	Measurements []*Measurement `json:"measurements"`
}

// New creates an empty measurement database.
func New() *File {
	now := time.Now()
	return &File{
		Version:  1,
		Created:  now,
		Modified: now,
		NextID:   1,
	}
}

// Load loads a database from a .mcrdb file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	return &f, nil
}

// LoadOrNew loads the database at path, or starts an empty one when the
// file does not exist yet.
func LoadOrNew(path string) (*File, error) {
	f, err := Load(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	return f, err
}

// Save saves the database to a file.
func (f *File) Save(path string) error {
	f.Modified = time.Now()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Add appends a measurement unless its checksum is already present. It
// assigns the record ID and reports whether the measurement was added.
func (f *File) Add(m *Measurement) bool {
	if m.Checksum != "" && f.FindByChecksum(m.Checksum) != nil {
		return false
	}

	if f.NextID < 1 {
		f.NextID = 1
	}
	m.ID = f.NextID
	f.NextID++
	f.Measurements = append(f.Measurements, m)
	return true
}

// Get returns the measurement with the given ID, or nil.
func (f *File) Get(id int) *Measurement {
	for _, m := range f.Measurements {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// FindByChecksum returns the measurement with the given image checksum,
// or nil.
func (f *File) FindByChecksum(sum string) *Measurement {
	for _, m := range f.Measurements {
		if m.Checksum == sum {
			return m
		}
	}
	return nil
}

// List returns the measurements ordered by timestamp, oldest first, with
// the ID breaking ties.
func (f *File) List() []*Measurement {
	list := append([]*Measurement(nil), f.Measurements...)
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Timestamp.Equal(list[j].Timestamp) {
			return list[i].Timestamp.Before(list[j].Timestamp)
		}
		return list[i].ID < list[j].ID
	})
	return list
}
