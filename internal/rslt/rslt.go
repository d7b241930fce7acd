// Package rslt parses the .rslt sidecar files the MCR device writes next
// to each measurement image: a fixed sequence of "Key: Value" header
// lines, the device-computed result table and the spot coordinate table
// the grid corners are derived from.
package rslt

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"mcr-analyzer/internal/grid"
	"mcr-analyzer/pkg/geometry"
)

// dateTimeLayout is the timestamp format of the Date/time header field.
const dateTimeLayout = "2006-01-02 15:04"

// darkFrameRetired is written by newer firmware instead of a dark frame
// file name.
const darkFrameRetired = "Do not store PGM file for dark frame any more"

// Header keys in file order.
const (
	keyDateTime       = "Date/time"
	keyDeviceID       = "Device ID"
	keyProbeID        = "Probe ID"
	keyChipID         = "Chip ID"
	keyResultImagePGM = "Result image PGM"
	keyResultImagePNG = "Result image PNG"
	keyDarkFramePGM   = "Dark frame image PGM"
	keyTemperatureOK  = "Temperature ok"
	keyCleanImage     = "Clean image"
	keyThresholds     = "Thresholds"
	keyColumnCount    = "X"
	keyRowCount       = "Y"
	keySpotSize       = "Spot size"
)

var (
	// keyValueRe splits a header line into key and value.
	keyValueRe = regexp.MustCompile(`^([^:]+): (.+)$`)

	// spotCellRe matches a spot coordinate cell like "X=100Y=52".
	spotCellRe = regexp.MustCompile(`X=(\d+)Y=(\d+)`)
)

// Rslt is one parsed result file.
type Rslt struct {
	// Path and Dir are set by ParseFile; empty when parsed from a reader.
	Path string
	Dir  string

	DateTime       time.Time
	DeviceID       string
	ProbeID        string
	ChipID         string
	ResultImagePGM string
	ResultImagePNG string

	// DarkFramePGM is empty when the firmware no longer stores one.
	DarkFramePGM string

	TemperatureOK bool
	CleanImage    bool
	Thresholds    []int

	ColumnCount int
	RowCount    int

	// Results is the device-computed value table, row-major.
	Results [][]int

	SpotSize int

	// Corners are the outermost spot centers: the declared top-left spot
	// coordinates shifted by half a spot size.
	Corners grid.CornerPositions
}

// Parse reads a single result file from r.
func Parse(r io.Reader) (*Rslt, error) {
	lr := &lineReader{scanner: bufio.NewScanner(r)}

	var rslt Rslt

	dateTime, err := lr.value(keyDateTime)
	if err != nil {
		return nil, err
	}
	rslt.DateTime, err = time.ParseInLocation(dateTimeLayout, dateTime, time.Local)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", keyDateTime, err)
	}

	if rslt.DeviceID, err = lr.value(keyDeviceID); err != nil {
		return nil, err
	}
	if rslt.ProbeID, err = lr.value(keyProbeID); err != nil {
		return nil, err
	}
	if rslt.ChipID, err = lr.value(keyChipID); err != nil {
		return nil, err
	}
	if rslt.ResultImagePGM, err = lr.value(keyResultImagePGM); err != nil {
		return nil, err
	}
	if rslt.ResultImagePNG, err = lr.value(keyResultImagePNG); err != nil {
		return nil, err
	}

	darkFrame, err := lr.value(keyDarkFramePGM)
	if err != nil {
		return nil, err
	}
	if darkFrame != darkFrameRetired {
		rslt.DarkFramePGM = darkFrame
	}

	temperatureOK, err := lr.value(keyTemperatureOK)
	if err != nil {
		return nil, err
	}
	rslt.TemperatureOK = temperatureOK == "yes"

	cleanImage, err := lr.value(keyCleanImage)
	if err != nil {
		return nil, err
	}
	rslt.CleanImage = cleanImage == "yes"

	thresholds, err := lr.value(keyThresholds)
	if err != nil {
		return nil, err
	}
	for _, field := range strings.Split(thresholds, ", ") {
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", keyThresholds, err)
		}
		rslt.Thresholds = append(rslt.Thresholds, v)
	}

	if err := lr.skip(1); err != nil {
		return nil, err
	}

	if rslt.ColumnCount, err = lr.intValue(keyColumnCount); err != nil {
		return nil, err
	}
	if rslt.RowCount, err = lr.intValue(keyRowCount); err != nil {
		return nil, err
	}
	if rslt.ColumnCount < 1 || rslt.RowCount < 1 {
		return nil, fmt.Errorf("grid size %dx%d out of range", rslt.ColumnCount, rslt.RowCount)
	}

	if err := lr.skip(1); err != nil {
		return nil, err
	}

	if rslt.Results, err = lr.intTable(rslt.RowCount, rslt.ColumnCount); err != nil {
		return nil, err
	}

	if err := lr.skip(2); err != nil {
		return nil, err
	}

	if rslt.SpotSize, err = lr.intValue(keySpotSize); err != nil {
		return nil, err
	}

	spots, err := lr.spotTable(rslt.RowCount, rslt.ColumnCount)
	if err != nil {
		return nil, err
	}

	// The table lists top-left spot coordinates; corners are spot centers.
	half := float64(rslt.SpotSize) / 2
	offset := geometry.Position{X: half, Y: half}
	rowMax, columnMax := rslt.RowCount-1, rslt.ColumnCount-1
	rslt.Corners = grid.CornerPositions{
		TopLeft:     spots[0][0].Add(offset),
		TopRight:    spots[0][columnMax].Add(offset),
		BottomRight: spots[rowMax][columnMax].Add(offset),
		BottomLeft:  spots[rowMax][0].Add(offset),
	}

	return &rslt, nil
}

// ParseFile parses the result file at path and records its location for
// resolving the referenced images.
func ParseFile(path string) (*Rslt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	r.Path = path
	r.Dir = filepath.Dir(path)
	return r, nil
}

// ParseDir collects every result file under root recursively. A
// multi-image measurement references a base PGM that does not exist;
// each sibling "<stem>-*.pgm" then becomes its own record, delayed by one
// second per extra image so timestamps stay unique. Files that fail to
// parse are reported by name instead of aborting the walk.
func ParseDir(root string) ([]*Rslt, []string, error) {
	var list []*Rslt
	var failed []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".rslt" {
			return nil
		}

		r, err := ParseFile(path)
		if err != nil {
			failed = append(failed, filepath.Base(path))
			return nil
		}

		if _, err := os.Stat(filepath.Join(r.Dir, r.ResultImagePGM)); err == nil {
			list = append(list, r)
			return nil
		}

		stem := strings.TrimSuffix(r.ResultImagePGM, filepath.Ext(r.ResultImagePGM))
		matches, err := filepath.Glob(filepath.Join(r.Dir, stem+"-*.pgm"))
		if err != nil {
			return err
		}
		sort.Strings(matches)

		for i, match := range matches {
			c := r.clone()
			c.ResultImagePGM = filepath.Base(match)
			c.DateTime = r.DateTime.Add(time.Duration(i) * time.Second)
			list = append(list, c)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return list, failed, nil
}

// clone copies the record including its tables so multi-image expansion
// does not share state.
func (r *Rslt) clone() *Rslt {
	c := *r
	c.Thresholds = append([]int(nil), r.Thresholds...)
	c.Results = make([][]int, len(r.Results))
	for i, row := range r.Results {
		c.Results[i] = append([]int(nil), row...)
	}
	return &c
}

// lineReader reads a result file line by line, tracking the position for
// error reporting.
type lineReader struct {
	scanner *bufio.Scanner
	line    int
}

func (lr *lineReader) next() (string, error) {
	if !lr.scanner.Scan() {
		if err := lr.scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("line %d: %w", lr.line+1, io.ErrUnexpectedEOF)
	}
	lr.line++
	return lr.scanner.Text(), nil
}

func (lr *lineReader) skip(n int) error {
	for i := 0; i < n; i++ {
		if _, err := lr.next(); err != nil {
			return err
		}
	}
	return nil
}

// value reads the next line and returns its value, requiring the key to
// match exactly.
func (lr *lineReader) value(key string) (string, error) {
	text, err := lr.next()
	if err != nil {
		return "", err
	}

	m := keyValueRe.FindStringSubmatch(text)
	if m == nil {
		return "", fmt.Errorf("line %d: malformed header line %q", lr.line, text)
	}
	if m[1] != key {
		return "", fmt.Errorf("line %d: key not matched: %q != %q", lr.line, m[1], key)
	}
	return m[2], nil
}

func (lr *lineReader) intValue(key string) (int, error) {
	text, err := lr.value(key)
	if err != nil {
		return 0, err
	}

	v, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

// intTable reads the device result table: one header row, then rowCount
// rows each led by a row label.
func (lr *lineReader) intTable(rowCount, columnCount int) ([][]int, error) {
	rows := make([][]int, 0, rowCount)

	if err := lr.skip(1); err != nil {
		return nil, err
	}
	for i := 0; i < rowCount; i++ {
		fields, err := lr.tableRow()
		if err != nil {
			return nil, err
		}

		row := make([]int, 0, len(fields))
		for _, field := range fields {
			v, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lr.line, err)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}

	if len(rows[0]) != columnCount {
		return nil, fmt.Errorf("table width not matched: %d != %d", columnCount, len(rows[0]))
	}
	return rows, nil
}

// spotTable reads the spot coordinate table of "X=..Y=.." cells.
func (lr *lineReader) spotTable(rowCount, columnCount int) ([][]geometry.Position, error) {
	rows := make([][]geometry.Position, 0, rowCount)

	if err := lr.skip(1); err != nil {
		return nil, err
	}
	for i := 0; i < rowCount; i++ {
		fields, err := lr.tableRow()
		if err != nil {
			return nil, err
		}

		row := make([]geometry.Position, 0, len(fields))
		for _, field := range fields {
			m := spotCellRe.FindStringSubmatch(field)
			if m == nil {
				return nil, fmt.Errorf("line %d: malformed spot cell %q", lr.line, field)
			}
			x, _ := strconv.Atoi(m[1])
			y, _ := strconv.Atoi(m[2])
			row = append(row, geometry.Position{X: float64(x), Y: float64(y)})
		}
		rows = append(rows, row)
	}

	if len(rows[0]) != columnCount {
		return nil, fmt.Errorf("table width not matched: %d != %d", columnCount, len(rows[0]))
	}
	return rows, nil
}

// tableRow reads one table line and strips the leading row label.
func (lr *lineReader) tableRow() ([]string, error) {
	text, err := lr.next()
	if err != nil {
		return nil, err
	}

	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil, fmt.Errorf("line %d: truncated table row %q", lr.line, text)
	}
	return fields[1:], nil
}
