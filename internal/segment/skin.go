package segment

import (
	"context"
	"image"

	"gocv.io/x/gocv"
)

// Skin bounds in YCrCb space.
var (
	skinLower = gocv.NewScalar(0, 133, 77, 0)
	skinUpper = gocv.NewScalar(255, 173, 127, 0)
)

// SkinSegmenter classifies skin pixels with a YCrCb colour range and
// averages the frame colour under the resulting mask. It runs in-process
// and needs no model files.
type SkinSegmenter struct {
	config Config
}

// NewSkinSegmenter creates a SkinSegmenter.
func NewSkinSegmenter(config Config) *SkinSegmenter {
	if config.MinCoverage <= 0 {
		config.MinCoverage = DefaultConfig().MinCoverage
	}
	return &SkinSegmenter{config: config}
}

// Segment implements Segmenter.
func (s *SkinSegmenter) Segment(ctx context.Context, frame *gocv.Mat) (*SkinTone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}

	mask := SkinMask(frame)
	defer mask.Close()

	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return nil, ErrEmptyFrame
	}
	coverage := float64(gocv.CountNonZero(mask)) / float64(total)
	if coverage < s.config.MinCoverage {
		return nil, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Scalar channels follow the frame's BGR order.
	mean := frame.MeanWithMask(mask)
	return &SkinTone{R: mean.Val3, G: mean.Val2, B: mean.Val1}, nil
}

// Close is a no-op.
func (s *SkinSegmenter) Close() error {
	return nil
}

// SkinMask returns a binary mask of skin-coloured pixels in a BGR frame.
// The caller must close the returned Mat.
func SkinMask(frame *gocv.Mat) gocv.Mat {
	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	gocv.CvtColor(*frame, &ycrcb, gocv.ColorBGRToYCrCb)

	raw := gocv.NewMat()
	defer raw.Close()
	gocv.InRangeWithScalar(ycrcb, skinLower, skinUpper, &raw)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(5, 5))
	defer kernel.Close()

	mask := gocv.NewMat()
	gocv.MorphologyEx(raw, &mask, gocv.MorphOpen, kernel)
	return mask
}
