package grid

import "errors"

// Detection failures are recoverable by the caller, never fatal: retry with
// different parameters or surface the message to the user. Success is
// all-or-nothing per call, so a persisted grid geometry is never silently
// wrong. The first two messages are fixed strings that callers and tests
// match against.
var (
	// ErrEmptyCandidateSet means the roundness filter rejected every
	// contour: the image has no circle-like regions at the current
	// threshold.
	ErrEmptyCandidateSet = errors.New("Spot list by roundness is empty.")

	// ErrAlmostEmptyImage means thresholding produced so many contours
	// that the segmentation is dominated by noise rather than spots.
	ErrAlmostEmptyImage = errors.New("Image is almost empty.")

	// ErrPeakCountMismatch means no threshold level in the descending
	// sweep isolated exactly the expected number of frequency peaks.
	ErrPeakCountMismatch = errors.New("unexpected number of Fourier transform reference spots")

	// ErrNonUniqueBoundaryPeaks means two or more of the four boundary
	// peaks coincide, indicating insufficient resolution or a degenerate
	// grid.
	ErrNonUniqueBoundaryPeaks = errors.New("Fourier transform reference spots are not all unique")

	// ErrNonCrossGeometry means the frequency peaks do not form a
	// symmetric cross around the DC peak, indicating noise dominating the
	// periodicity signal.
	ErrNonCrossGeometry = errors.New("Fourier transform reference spots are not in an expected cross-like position")

	// ErrExhaustedSweep means every smoothing kernel size and drawn-disk
	// radius was tried without success.
	ErrExhaustedSweep = errors.New("grid not found after exhausting smoothing and radius sweeps")
)
