package grid

const (
	// expectedPeakCount is the number of blobs the Fourier peak search must
	// isolate: the four periodicity peaks plus the central DC peak.
	expectedPeakCount = 5

	// maxSmoothingKernel caps the maximum-filter kernel sweep.
	maxSmoothingKernel = 6

	// crossAllowedError is the tolerance in pixels for the midpoints of the
	// left/right and top/bottom peak pairs to coincide. Empirical; may need
	// recalibration for other sensor resolutions.
	crossAllowedError = 2.0

	// intervalRatioBound is the largest accepted ratio between the column
	// and row spacing. Empirical, like crossAllowedError.
	intervalRatioBound = 2.0

	// referenceRadiusQuantile picks an almost-maximal radius from the
	// candidate set while ignoring extreme outliers.
	referenceRadiusQuantile = 0.95

	// referenceRadiusResize widens the quantile radius so drawn disks fully
	// cover true spot footprints.
	referenceRadiusResize = 1.5

	// outlierRadiusFactor rejects candidates larger than this multiple of
	// the reference radius.
	outlierRadiusFactor = 2.0

	// almostEmptyContourLimit is the contour count above which a threshold
	// image is considered noise rather than spots. The largest supported
	// grid is 26x26, so anything beyond this is adaptive-threshold debris
	// from a near-empty image.
	almostEmptyContourLimit = 1000
)

// Roundness acceptance thresholds. Small rasterized circles approximate
// polygons poorly, so the cut is relaxed with decreasing area.
const (
	roundnessThresholdSmall  = 0.70
	roundnessThresholdMedium = 0.75
	roundnessThresholdLarge  = 0.80

	roundnessSmallAreaRadius  = 2.0
	roundnessMediumAreaRadius = 8.0
)

// ThresholdStrategy selects the global binarizer for the initial
// segmentation pass.
type ThresholdStrategy int

const (
	// StrategyOtsu maximizes inter-class variance. The default.
	StrategyOtsu ThresholdStrategy = iota

	// StrategyTriangle suits skewed histograms where one mode dominates.
	StrategyTriangle
)

func (s ThresholdStrategy) String() string {
	switch s {
	case StrategyTriangle:
		return "triangle"
	default:
		return "otsu"
	}
}

// DetectionParams holds parameters for grid detection.
type DetectionParams struct {
	// GlobalStrategy picks the initial global threshold algorithm.
	GlobalStrategy ThresholdStrategy

	// WithAdaptiveThreshold refines the global segmentation with a local
	// Gaussian threshold. This recovers low-contrast spots at the price of
	// more noise false-positives.
	WithAdaptiveThreshold bool

	// WithMaximumFilter smooths the Fourier magnitude with a maximum filter
	// before peak search, compensating peak smearing at low resolution.
	WithMaximumFilter bool

	// ThresholdValue fixes the global threshold instead of computing it.
	// Zero means automatic (Otsu, optionally refined adaptively).
	ThresholdValue int

	// ReferenceSpotDiameter overrides the automatically derived spot
	// diameter. Zero means automatic.
	ReferenceSpotDiameter int
}

// DefaultParams returns the sensitive operating mode: adaptive threshold
// refinement enabled, which detects low-contrast spots but is more prone to
// noise false-positives.
func DefaultParams() DetectionParams {
	return DetectionParams{
		WithAdaptiveThreshold: true,
		WithMaximumFilter:     true,
	}
}

// NoiseResistantParams returns the noise-resistant operating mode: the
// adaptive refinement is skipped and only the global Otsu segmentation is
// used.
func NoiseResistantParams() DetectionParams {
	p := DefaultParams()
	p.WithAdaptiveThreshold = false
	return p
}

// WithFixedThreshold returns a copy of params with a fixed global threshold,
// bypassing both Otsu and the adaptive refinement.
func (p DetectionParams) WithFixedThreshold(value int) DetectionParams {
	p.ThresholdValue = value
	return p
}

// WithReferenceSpotDiameter returns a copy of params with an explicit spot
// diameter in pixels, bypassing the automatic radius estimate.
func (p DetectionParams) WithReferenceSpotDiameter(diameter int) DetectionParams {
	p.ReferenceSpotDiameter = diameter
	return p
}
