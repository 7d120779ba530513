package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Change detection constants
const (
	// changeBlurSize is the Gaussian kernel size applied before differencing.
	changeBlurSize = 11
	// changeDiffThreshold is the per-pixel intensity difference counted as changed.
	changeDiffThreshold = 25
	// changeSampleWidth and changeSampleHeight set the working resolution.
	changeSampleWidth  = 160
	changeSampleHeight = 120
)

// ChangeDetector reports whether the scene has changed since a reference frame
// was accepted. The AR session uses it to skip inference while the skin tone
// estimate is still current.
type ChangeDetector struct {
	threshold float64
	reference gocv.Mat
	hasRef    bool
	mu        sync.Mutex
}

// NewChangeDetector creates a ChangeDetector. threshold is the percentage of
// pixels that must differ from the reference for the scene to count as
// changed; 1.0 means 1%.
func NewChangeDetector(threshold float64) *ChangeDetector {
	if threshold <= 0 {
		threshold = 1.0
	}
	return &ChangeDetector{
		threshold: threshold,
		reference: gocv.NewMat(),
	}
}

// Changed compares frame with the reference and returns whether it differs
// by more than the threshold, along with the changed percentage. Without a
// reference every frame counts as changed.
func (d *ChangeDetector) Changed(frame *gocv.Mat) (bool, float64) {
	if frame == nil || frame.Empty() {
		return false, 0
	}

	sample := prepareSample(frame)
	defer sample.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasRef {
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(sample, d.reference, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, changeDiffThreshold, 255, gocv.ThresholdBinary)

	total := thresh.Rows() * thresh.Cols()
	if total == 0 {
		return false, 0
	}
	percent := float64(gocv.CountNonZero(thresh)) / float64(total) * 100.0

	return percent > d.threshold, percent
}

// Accept makes frame the new reference.
func (d *ChangeDetector) Accept(frame *gocv.Mat) {
	if frame == nil || frame.Empty() {
		return
	}

	sample := prepareSample(frame)
	defer sample.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	sample.CopyTo(&d.reference)
	d.hasRef = true
}

// Reset forgets the reference so the next frame counts as changed.
func (d *ChangeDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.hasRef = false
}

// Close releases resources used by the detector.
func (d *ChangeDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.reference.Close()
	d.reference = gocv.NewMat()
	d.hasRef = false
}

// prepareSample downsizes, greys and blurs a frame for differencing.
func prepareSample(frame *gocv.Mat) gocv.Mat {
	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(*frame, &small, image.Pt(changeSampleWidth, changeSampleHeight), 0, 0, gocv.InterpolationArea)

	gray := gocv.NewMat()
	defer gray.Close()
	if small.Channels() > 1 {
		gocv.CvtColor(small, &gray, gocv.ColorBGRToGray)
	} else {
		small.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(changeBlurSize, changeBlurSize), 0, 0, gocv.BorderDefault)
	return blurred
}
