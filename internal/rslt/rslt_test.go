package rslt

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"mcr-analyzer/internal/grid"
	"mcr-analyzer/pkg/geometry"
)

const sampleRslt = `Date/time: 2021-02-08 13:55
Device ID: DEV-7
Probe ID: PRB-001
Chip ID: CHP-42
Result image PGM: 00001.pgm
Result image PNG: 00001.png
Dark frame image PGM: Do not store PGM file for dark frame any more
Temperature ok: yes
Clean image: yes
Thresholds: 500, 600, 700

X: 4
Y: 3

	1	2	3	4
1	10	20	30	40
2	11	21	31	41
3	12	22	32	42


Spot size: 14
	1	2	3	4
1	X=100Y=50	X=130Y=50	X=160Y=50	X=190Y=50
2	X=100Y=80	X=130Y=80	X=160Y=80	X=190Y=80
3	X=100Y=110	X=130Y=110	X=160Y=110	X=190Y=110
`

func TestParse(t *testing.T) {
	r, err := Parse(strings.NewReader(sampleRslt))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, r.DateTime, test.ShouldResemble, time.Date(2021, 2, 8, 13, 55, 0, 0, time.Local))
	test.That(t, r.DeviceID, test.ShouldEqual, "DEV-7")
	test.That(t, r.ProbeID, test.ShouldEqual, "PRB-001")
	test.That(t, r.ChipID, test.ShouldEqual, "CHP-42")
	test.That(t, r.ResultImagePGM, test.ShouldEqual, "00001.pgm")
	test.That(t, r.ResultImagePNG, test.ShouldEqual, "00001.png")
	test.That(t, r.DarkFramePGM, test.ShouldEqual, "")
	test.That(t, r.TemperatureOK, test.ShouldBeTrue)
	test.That(t, r.CleanImage, test.ShouldBeTrue)
	test.That(t, r.Thresholds, test.ShouldResemble, []int{500, 600, 700})
	test.That(t, r.ColumnCount, test.ShouldEqual, 4)
	test.That(t, r.RowCount, test.ShouldEqual, 3)
	test.That(t, r.Results, test.ShouldResemble, [][]int{
		{10, 20, 30, 40},
		{11, 21, 31, 41},
		{12, 22, 32, 42},
	})
	test.That(t, r.SpotSize, test.ShouldEqual, 14)

	// Corner positions are spot centers: table coordinates plus half a
	// spot size.
	test.That(t, r.Corners, test.ShouldResemble, grid.CornerPositions{
		TopLeft:     geometry.Position{X: 107, Y: 57},
		TopRight:    geometry.Position{X: 197, Y: 57},
		BottomRight: geometry.Position{X: 197, Y: 117},
		BottomLeft:  geometry.Position{X: 107, Y: 117},
	})
}

func TestParseWindowsLineEndings(t *testing.T) {
	crlf := strings.ReplaceAll(sampleRslt, "\n", "\r\n")

	r, err := Parse(strings.NewReader(crlf))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.ChipID, test.ShouldEqual, "CHP-42")
	test.That(t, r.Results[2][3], test.ShouldEqual, 42)
}

func TestParseKeepsDarkFrameName(t *testing.T) {
	text := strings.Replace(sampleRslt,
		"Dark frame image PGM: Do not store PGM file for dark frame any more",
		"Dark frame image PGM: dark.pgm", 1)
	text = strings.Replace(text, "Temperature ok: yes", "Temperature ok: no", 1)

	r, err := Parse(strings.NewReader(text))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.DarkFramePGM, test.ShouldEqual, "dark.pgm")
	test.That(t, r.TemperatureOK, test.ShouldBeFalse)
}

func TestParseRejectsKeyMismatch(t *testing.T) {
	text := strings.Replace(sampleRslt, "Probe ID:", "Sample ID:", 1)

	_, err := Parse(strings.NewReader(text))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not matched")
	test.That(t, err.Error(), test.ShouldContainSubstring, "Sample ID")
}

func TestParseRejectsTruncatedFile(t *testing.T) {
	_, err := Parse(strings.NewReader("Date/time: 2021-02-08 13:55\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, io.ErrUnexpectedEOF), test.ShouldBeTrue)
}

func TestParseRejectsWrongTableWidth(t *testing.T) {
	text := strings.Replace(sampleRslt, "X: 4", "X: 5", 1)

	_, err := Parse(strings.NewReader(text))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not matched: 5 != 4")
}

func TestParseRejectsBadTimestamp(t *testing.T) {
	text := strings.Replace(sampleRslt, "2021-02-08 13:55", "yesterday", 1)

	_, err := Parse(strings.NewReader(text))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Date/time")
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.rslt")
	writeFile(t, path, sampleRslt)

	r, err := ParseFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Path, test.ShouldEqual, path)
	test.That(t, r.Dir, test.ShouldEqual, dir)
}

func TestParseFileNamesBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.rslt")
	writeFile(t, path, "not a result file\n")

	_, err := ParseFile(path)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "broken.rslt")
}

func TestParseDir(t *testing.T) {
	root := t.TempDir()

	// Single-image measurement with its PGM present.
	single := filepath.Join(root, "a")
	test.That(t, os.MkdirAll(single, 0755), test.ShouldBeNil)
	writeFile(t, filepath.Join(single, "scan1.rslt"), sampleRslt)
	writeFile(t, filepath.Join(single, "00001.pgm"), "P2\n1 1\n1\n0\n")

	// Multi-image measurement: the base PGM is missing, numbered
	// siblings stand in for it.
	multi := filepath.Join(root, "b")
	test.That(t, os.MkdirAll(multi, 0755), test.ShouldBeNil)
	writeFile(t, filepath.Join(multi, "scan2.rslt"),
		strings.ReplaceAll(sampleRslt, "00001", "00002"))
	for _, name := range []string{"00002-1.pgm", "00002-2.pgm", "00002-3.pgm"} {
		writeFile(t, filepath.Join(multi, name), "P2\n1 1\n1\n0\n")
	}
	writeFile(t, filepath.Join(multi, "broken.rslt"), "garbage\n")

	list, failed, err := ParseDir(root)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, failed, test.ShouldResemble, []string{"broken.rslt"})
	test.That(t, list, test.ShouldHaveLength, 4)

	test.That(t, list[0].ResultImagePGM, test.ShouldEqual, "00001.pgm")
	test.That(t, list[0].Dir, test.ShouldEqual, single)

	base := time.Date(2021, 2, 8, 13, 55, 0, 0, time.Local)
	for i, name := range []string{"00002-1.pgm", "00002-2.pgm", "00002-3.pgm"} {
		r := list[1+i]
		test.That(t, r.ResultImagePGM, test.ShouldEqual, name)
		test.That(t, r.DateTime.Equal(base.Add(time.Duration(i)*time.Second)), test.ShouldBeTrue)
	}

	// Expanded records must not share table storage.
	list[1].Results[0][0] = 999
	test.That(t, list[2].Results[0][0], test.ShouldEqual, 10)
}

func TestParseDirEmptyTree(t *testing.T) {
	list, failed, err := ParseDir(t.TempDir())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, list, test.ShouldHaveLength, 0)
	test.That(t, failed, test.ShouldHaveLength, 0)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	test.That(t, os.WriteFile(path, []byte(content), 0644), test.ShouldBeNil)
}
