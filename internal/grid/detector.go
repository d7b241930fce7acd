package grid

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Detect locates the spot grid in a normalized 8-bit grayscale image.
//
// The image is segmented with the configured global strategy (Otsu by
// default) and, depending on params, refined with a fixed or adaptive
// threshold. Circle-like blobs
// become spot candidates, a robust reference radius is estimated, and the
// surviving centers are rendered as uniform disks whose Fourier magnitude
// carries the lattice spacing as five dominant peaks. When a peak search
// attempt fails, the drawn disk radius and the smoothing kernel are swept
// until a valid cross of peaks is found or every combination is exhausted.
//
// On success the computed threshold, the reference radius, the grid size
// and the four corner spot positions are returned. All failures are
// recoverable and carry the reason of the furthest stage reached.
func Detect(img gocv.Mat, params DetectionParams) (*Grid, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	// The global strategy handles spots with high contrast. For
	// low-contrast spots it misses many, which the adaptive refinement
	// below recovers.
	computedThresholdValue, thresholdImage := globalThreshold(img, params.GlobalStrategy)
	spots := spotCandidates(thresholdImage)
	if len(spots) == 0 {
		thresholdImage.Close()
		return nil, ErrEmptyCandidateSet
	}

	referenceRadius := referenceSpotRadius(spots)

	switch {
	case params.ThresholdValue > 0:
		thresholdImage.Close()
		computedThresholdValue, thresholdImage = fixedThreshold(img, params.ThresholdValue)
		spots = spotCandidates(thresholdImage)
	case params.WithAdaptiveThreshold:
		// The adaptive threshold finds low-contrast spots that Otsu
		// misses, at the price of noise false-positives.
		thresholdImage.Close()
		thresholdImage = adaptiveThreshold(img, referenceRadius)
		spots = spotCandidates(thresholdImage)
	}
	defer thresholdImage.Close()

	if len(spots) == 0 {
		return nil, ErrEmptyCandidateSet
	}

	referenceSpotDiameter := params.ReferenceSpotDiameter
	if referenceSpotDiameter <= 0 {
		referenceSpotDiameter = 2 * referenceRadius
	}

	if imageIsAlmostEmpty(thresholdImage) {
		return nil, ErrAlmostEmptyImage
	}

	filtered := filterRadiusOutliers(spots, referenceRadius)

	width, height := img.Cols(), img.Rows()

	rowFrequency := spatialFrequency(float64(height), float64(referenceSpotDiameter))
	columnFrequency := spatialFrequency(float64(width), float64(referenceSpotDiameter))
	frequencyBound := min(rowFrequency, columnFrequency)

	kernelMax := 1
	if params.WithMaximumFilter {
		kernelMax = max(1, min(maxSmoothingKernel, frequencyBound))
	}

	var deepest error

	for residual := 1; residual <= referenceRadius; residual++ {
		drawnRadius := referenceRadius - (residual - 1)

		canvas := drawDisks(thresholdImage, filtered, drawnRadius)
		magnitude := fourierMagnitude(canvas)
		canvas.Close()

		for kernel := 1; kernel <= kernelMax; kernel++ {
			smoothed := maximumFilter(magnitude, kernel)

			centroids, err := fivePeakCentroids(smoothed)
			smoothed.Close()
			if err != nil {
				deepest = deeper(deepest, err)
				continue
			}

			peaks, err := boundaryPeaks(centroids, width, height)
			if err != nil {
				deepest = deeper(deepest, err)
				continue
			}

			intervalColumn, intervalRow := intervalColumnAndRow(width, height, peaks)

			if !crossLikePosition(float64(referenceSpotDiameter), peaks, intervalColumn, intervalRow) {
				deepest = deeper(deepest, fmt.Errorf("%w: %v", ErrNonCrossGeometry, peaks.positions()))
				continue
			}

			cornerSpots, dims := gridPosition(spots, peaks, intervalColumn, intervalRow)

			magnitude.Close()
			return &Grid{
				ThresholdValue:  computedThresholdValue,
				ReferenceRadius: referenceRadius,
				Dims:            dims,
				Corners:         cornerSpots,
			}, nil
		}
		magnitude.Close()
	}

	if deepest == nil {
		return nil, ErrExhaustedSweep
	}
	return nil, fmt.Errorf("%w: %w", ErrExhaustedSweep, deepest)
}

// DetectImage runs Detect on a Go grayscale image.
func DetectImage(img *image.Gray, params DetectionParams) (*Grid, error) {
	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	return Detect(mat, params)
}

// deeper keeps the failure from the furthest pipeline stage, preferring the
// most recent attempt on ties.
func deeper(current, candidate error) error {
	if failureDepth(candidate) >= failureDepth(current) {
		return candidate
	}
	return current
}

func failureDepth(err error) int {
	switch {
	case err == nil:
		return -1
	case errors.Is(err, ErrNonCrossGeometry):
		return 3
	case errors.Is(err, ErrNonUniqueBoundaryPeaks):
		return 2
	case errors.Is(err, ErrPeakCountMismatch):
		return 1
	default:
		return 0
	}
}
