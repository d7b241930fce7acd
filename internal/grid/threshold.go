package grid

import (
	"math"

	"gocv.io/x/gocv"
)

// maxPixelValue is the largest sample of an 8-bit image.
const maxPixelValue = 255

// fixedThreshold applies a fixed global cut: pixels above value become
// maxPixelValue, the rest zero. The caller owns the returned Mat.
func fixedThreshold(img gocv.Mat, value int) (int, gocv.Mat) {
	dst := gocv.NewMat()
	computed := gocv.Threshold(img, &dst, float32(value), maxPixelValue, gocv.ThresholdBinary)
	return int(math.Round(float64(computed))), dst
}

// otsuThreshold computes the global threshold maximizing inter-class
// variance and applies it. Works well for spots with high contrast; low
// contrast spots need the adaptive refinement.
func otsuThreshold(img gocv.Mat) (int, gocv.Mat) {
	dst := gocv.NewMat()
	computed := gocv.Threshold(img, &dst, 0, maxPixelValue, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	return int(math.Round(float64(computed))), dst
}

// triangleThreshold computes a global threshold with the triangle method,
// suited to strongly unimodal histograms.
func triangleThreshold(img gocv.Mat) (int, gocv.Mat) {
	dst := gocv.NewMat()
	computed := gocv.Threshold(img, &dst, 0, maxPixelValue, gocv.ThresholdBinary|gocv.ThresholdTriangle)
	return int(math.Round(float64(computed))), dst
}

// globalThreshold dispatches the initial segmentation to the configured
// strategy.
func globalThreshold(img gocv.Mat, strategy ThresholdStrategy) (int, gocv.Mat) {
	switch strategy {
	case StrategyTriangle:
		return triangleThreshold(img)
	default:
		return otsuThreshold(img)
	}
}

// adaptiveThreshold segments with a local Gaussian-weighted threshold whose
// window is sized from the reference spot radius. The image is inverted
// before and after so dark background with bright spots ends up with the
// same polarity as the global thresholds. Compensates uneven illumination
// that defeats a global cut on low-contrast spots.
func adaptiveThreshold(img gocv.Mat, radius int) gocv.Mat {
	inverted := invertImage(img)
	defer inverted.Close()

	blockSize := 2*radius + 1
	constantC := float32(blockSize)

	dst := gocv.NewMat()
	gocv.AdaptiveThreshold(inverted, &dst, maxPixelValue, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, blockSize, constantC)

	result := invertImage(dst)
	dst.Close()
	return result
}

// invertImage returns maxPixelValue minus every pixel.
func invertImage(img gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.BitwiseNot(img, &dst)
	return dst
}
