// Package vision provides colour segmentation of video frames using GoCV (OpenCV).
package vision

import (
	"errors"
	"fmt"
	"math"

	"gocv.io/x/gocv"
)

// Band-pass defaults applied around a reference hue.
const (
	HueTolerance = 10
	MinSatValue  = 100
	MaxSatValue  = 255
	// MaxHue is the largest hue OpenCV produces for 8-bit images.
	MaxHue = 179
)

// HSV is a colour in OpenCV's 8-bit HSV space (H in 0..179, S and V in 0..255).
type HSV struct {
	H, S, V float64
}

// Scalar converts the colour to a gocv scalar for range thresholding.
func (c HSV) Scalar() gocv.Scalar {
	return gocv.NewScalar(c.H, c.S, c.V, 0)
}

// ColorProfile maps a colour name to its HSV band-pass bounds.
type ColorProfile struct {
	Name  string
	Lower HSV
	Upper HSV
}

// Validate checks that the bounds are ordered and inside the 8-bit HSV range.
func (p ColorProfile) Validate() error {
	if p.Name == "" {
		return errors.New("colour profile: name is required")
	}
	for _, c := range []HSV{p.Lower, p.Upper} {
		if c.H < 0 || c.H > MaxHue+1 || c.S < 0 || c.S > 255 || c.V < 0 || c.V > 255 {
			return fmt.Errorf("colour profile %q: bound %v out of range", p.Name, c)
		}
	}
	if p.Lower.H > p.Upper.H || p.Lower.S > p.Upper.S || p.Lower.V > p.Upper.V {
		return fmt.Errorf("colour profile %q: lower bound %v exceeds upper bound %v", p.Name, p.Lower, p.Upper)
	}
	return nil
}

// ProfileFromBGR derives a profile from a reference BGR colour: the reference
// hue plus or minus HueTolerance, with saturation and value from MinSatValue up.
func ProfileFromBGR(name string, b, g, r uint8) ColorProfile {
	hue := BGRToHSV(b, g, r).H
	return ColorProfile{
		Name:  name,
		Lower: HSV{H: math.Max(0, hue-HueTolerance), S: MinSatValue, V: MinSatValue},
		Upper: HSV{H: math.Min(MaxHue, hue+HueTolerance), S: MaxSatValue, V: MaxSatValue},
	}
}

// BGRToHSV converts an 8-bit BGR colour using OpenCV's COLOR_BGR2HSV rules.
func BGRToHSV(b, g, r uint8) HSV {
	bf, gf, rf := float64(b), float64(g), float64(r)
	v := math.Max(bf, math.Max(gf, rf))
	lo := math.Min(bf, math.Min(gf, rf))
	diff := v - lo

	var s float64
	if v > 0 {
		s = diff * 255 / v
	}

	var h float64
	if diff > 0 {
		switch v {
		case rf:
			h = 60 * (gf - bf) / diff
		case gf:
			h = 120 + 60*(bf-rf)/diff
		default:
			h = 240 + 60*(rf-gf)/diff
		}
		if h < 0 {
			h += 360
		}
	}

	hue := math.Round(h / 2)
	if hue > MaxHue {
		hue = 0
	}
	return HSV{H: hue, S: math.Round(s), V: v}
}
