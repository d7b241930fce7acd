// Package netpbm reads and writes the netpbm graymap formats produced by MCR
// devices. Result images are plain (ASCII) PGM files with 16-bit samples; the
// raw (binary) variant is accepted on read for completeness.
package netpbm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"
)

const (
	// Width and Height are the sensor dimensions of MCR result images.
	Width  = 696
	Height = 520

	// MaxVal is the largest sample value of a 16-bit graymap.
	MaxVal = 1<<16 - 1
)

// Encoding distinguishes the plain (ASCII) and raw (binary) graymap variants.
type Encoding int

const (
	// EncodingPlain is the human-readable ASCII format (magic "P2").
	EncodingPlain Encoding = iota
	// EncodingRaw is the binary format (magic "P5").
	EncodingRaw
)

// String implements fmt.Stringer.
func (e Encoding) String() string {
	switch e {
	case EncodingPlain:
		return "plain"
	case EncodingRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Image is a grayscale image with up to 16 bits per sample, stored row-major.
type Image struct {
	Width  int
	Height int
	MaxVal int
	Pix    []uint16
}

// New creates a zeroed 16-bit image of the given dimensions.
func New(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		MaxVal: MaxVal,
		Pix:    make([]uint16, width*height),
	}
}

// At returns the sample at pixel (x, y).
func (m *Image) At(x, y int) uint16 {
	return m.Pix[y*m.Width+x]
}

// Set stores a sample at pixel (x, y).
func (m *Image) Set(x, y int, v uint16) {
	m.Pix[y*m.Width+x] = v
}

// Gray converts the image to 8 bits by scaling against its brightest sample.
// An entirely black image stays black.
func (m *Image) Gray() *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	var max uint16
	for _, v := range m.Pix {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		return dst
	}
	for i, v := range m.Pix {
		dst.Pix[i] = uint8(float64(v) / float64(max) * 255)
	}
	return dst
}

// FromGray wraps an 8-bit grayscale image as a graymap with MaxVal 255.
func FromGray(g *image.Gray) *Image {
	b := g.Bounds()
	m := &Image{
		Width:  b.Dx(),
		Height: b.Dy(),
		MaxVal: 255,
		Pix:    make([]uint16, b.Dx()*b.Dy()),
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			m.Pix[i] = uint16(g.GrayAt(x, y).Y)
			i++
		}
	}
	return m
}

// Decode reads a PGM image from r. Both the plain ("P2") and raw ("P5")
// variants are supported; other netpbm types are rejected.
func Decode(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)

	magic, err := nextToken(br)
	if err != nil {
		return nil, fmt.Errorf("netpbm: reading magic number: %w", err)
	}

	var enc Encoding
	switch magic {
	case "P2":
		enc = EncodingPlain
	case "P5":
		enc = EncodingRaw
	default:
		return nil, fmt.Errorf("netpbm: not supported: magic number %q", magic)
	}

	width, err := headerInt(br, "width")
	if err != nil {
		return nil, err
	}
	height, err := headerInt(br, "height")
	if err != nil {
		return nil, err
	}
	maxVal, err := headerInt(br, "maxval")
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("netpbm: invalid dimensions %dx%d", width, height)
	}
	if maxVal <= 0 || maxVal > MaxVal {
		return nil, fmt.Errorf("netpbm: maxval %d out of range", maxVal)
	}

	m := &Image{
		Width:  width,
		Height: height,
		MaxVal: maxVal,
		Pix:    make([]uint16, width*height),
	}

	switch enc {
	case EncodingPlain:
		if err := decodePlain(br, m); err != nil {
			return nil, err
		}
	case EncodingRaw:
		if err := decodeRaw(br, m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ReadFile decodes the PGM file at path.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("netpbm: %w", err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("netpbm: decoding %s: %w", path, err)
	}
	return m, nil
}

// Encode writes the image to w as a plain (ASCII) graymap, one row per line
// with tab-separated samples.
func Encode(w io.Writer, m *Image) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "P2\n%d %d\n%d\n", m.Width, m.Height, m.MaxVal)
	for y := 0; y < m.Height; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			if x > 0 {
				if err := bw.WriteByte('\t'); err != nil {
					return fmt.Errorf("netpbm: %w", err)
				}
			}
			if _, err := bw.WriteString(strconv.Itoa(int(v))); err != nil {
				return fmt.Errorf("netpbm: %w", err)
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("netpbm: %w", err)
		}
	}

	return bw.Flush()
}

// WriteFile encodes the image to the plain PGM file at path.
func WriteFile(path string, m *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("netpbm: %w", err)
	}
	if err := Encode(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func decodePlain(br *bufio.Reader, m *Image) error {
	sc := bufio.NewScanner(br)
	sc.Split(bufio.ScanWords)
	for i := range m.Pix {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return fmt.Errorf("netpbm: reading samples: %w", err)
			}
			return fmt.Errorf("netpbm: truncated data: got %d of %d samples", i, len(m.Pix))
		}
		v, err := strconv.Atoi(sc.Text())
		if err != nil {
			return fmt.Errorf("netpbm: sample %d: %w", i, err)
		}
		if v < 0 || v > m.MaxVal {
			return fmt.Errorf("netpbm: sample %d out of range: %d", i, v)
		}
		m.Pix[i] = uint16(v)
	}
	return nil
}

func decodeRaw(br *bufio.Reader, m *Image) error {
	if m.MaxVal <= 255 {
		buf := make([]byte, len(m.Pix))
		if _, err := io.ReadFull(br, buf); err != nil {
			return fmt.Errorf("netpbm: reading samples: %w", err)
		}
		for i, b := range buf {
			m.Pix[i] = uint16(b)
		}
		return nil
	}

	// 16-bit raw samples are big-endian on the wire.
	buf := make([]byte, 2*len(m.Pix))
	if _, err := io.ReadFull(br, buf); err != nil {
		return fmt.Errorf("netpbm: reading samples: %w", err)
	}
	for i := range m.Pix {
		m.Pix[i] = binary.BigEndian.Uint16(buf[2*i:])
	}
	return nil
}

func headerInt(br *bufio.Reader, field string) (int, error) {
	tok, err := nextToken(br)
	if err != nil {
		return 0, fmt.Errorf("netpbm: reading %s: %w", field, err)
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("netpbm: parsing %s: %w", field, err)
	}
	return v, nil
}

// nextToken skips leading whitespace and returns the following run of
// non-whitespace bytes. It consumes exactly one trailing whitespace byte so
// raw sample data can follow immediately.
func nextToken(br *bufio.Reader) (string, error) {
	var tok []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF && len(tok) > 0 {
				return string(tok), nil
			}
			return "", err
		}
		if isSpace(b) {
			if len(tok) == 0 {
				continue
			}
			return string(tok), nil
		}
		tok = append(tok, b)
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}
