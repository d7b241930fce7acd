// Command gridtest runs grid detection on a measurement image and prints
// what it finds.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff"

	"mcr-analyzer/internal/grid"
	"mcr-analyzer/internal/netpbm"
)

func main() {
	noAdaptive := flag.Bool("no-adaptive", false, "Disable the adaptive threshold refinement")
	noSmoothing := flag.Bool("no-smoothing", false, "Disable frequency-domain smoothing")
	threshold := flag.Int("threshold", 0, "Fixed threshold value (0 = automatic)")
	diameter := flag.Int("diameter", 0, "Reference spot diameter override in pixels")
	triangle := flag.Bool("triangle", false, "Use the triangle strategy for the global threshold")
	noisy := flag.Bool("noisy", false, "Start from the noise-resistant parameter set")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("Usage: gridtest [options] <image (PGM, PNG, JPEG or TIFF)>")
		os.Exit(1)
	}
	path := flag.Arg(0)

	gray, err := loadGray(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}

	bounds := gray.Bounds()
	fmt.Printf("Loaded image: %dx%d pixels\n", bounds.Dx(), bounds.Dy())

	params := grid.DefaultParams()
	if *noisy {
		params = grid.NoiseResistantParams()
	}
	if *noAdaptive {
		params.WithAdaptiveThreshold = false
	}
	if *noSmoothing {
		params.WithMaximumFilter = false
	}
	if *triangle {
		params.GlobalStrategy = grid.StrategyTriangle
	}
	if *threshold > 0 {
		params = params.WithFixedThreshold(*threshold)
	}
	if *diameter > 0 {
		params = params.WithReferenceSpotDiameter(*diameter)
	}

	fmt.Printf("\nDetection parameters:\n")
	fmt.Printf("  Global strategy: %s\n", params.GlobalStrategy)
	fmt.Printf("  Adaptive threshold: %v\n", params.WithAdaptiveThreshold)
	fmt.Printf("  Maximum filter: %v\n", params.WithMaximumFilter)
	if params.ThresholdValue > 0 {
		fmt.Printf("  Fixed threshold: %d\n", params.ThresholdValue)
	}
	if params.ReferenceSpotDiameter > 0 {
		fmt.Printf("  Reference spot diameter: %d px\n", params.ReferenceSpotDiameter)
	}

	fmt.Printf("\nDetecting grid...\n")
	g, err := grid.DetectImage(gray, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Detection failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nDetected grid: %d columns x %d rows\n", g.Dims.Columns, g.Dims.Rows)
	fmt.Printf("Threshold value: %d\n", g.ThresholdValue)
	fmt.Printf("Reference radius: %d px\n", g.ReferenceRadius)

	fmt.Printf("\nCorners:\n")
	fmt.Printf("  %-13s %8s %8s\n", "", "X", "Y")
	fmt.Printf("  %-13s %8.1f %8.1f\n", "Top left", g.Corners.TopLeft.X, g.Corners.TopLeft.Y)
	fmt.Printf("  %-13s %8.1f %8.1f\n", "Top right", g.Corners.TopRight.X, g.Corners.TopRight.Y)
	fmt.Printf("  %-13s %8.1f %8.1f\n", "Bottom right", g.Corners.BottomRight.X, g.Corners.BottomRight.Y)
	fmt.Printf("  %-13s %8.1f %8.1f\n", "Bottom left", g.Corners.BottomLeft.X, g.Corners.BottomLeft.Y)
}

// loadGray reads a measurement image. Device PGM files go through the
// 16-bit netpbm decoder; anything else uses the standard image registry.
func loadGray(path string) (*image.Gray, error) {
	if strings.EqualFold(filepath.Ext(path), ".pgm") {
		img, err := netpbm.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return img.Gray(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoded, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return grayscale(decoded), nil
}

func grayscale(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}

	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}
