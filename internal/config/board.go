package config

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/ayusman/boardsight/internal/vision"
	"github.com/ayusman/boardsight/internal/zone"
)

// Layout builds the zone layout from the [[zones]] entries.
func (c *Config) Layout() (zone.Layout, error) {
	rects := make([]image.Rectangle, len(c.Zones))
	for i, z := range c.Zones {
		rects[i] = image.Rect(z.X, z.Y, z.X+z.W, z.Y+z.H)
	}
	return zone.NewLayout(rects)
}

// Profiles builds the colour table from the [[colors]] entries.
func (c *Config) Profiles() ([]vision.ColorProfile, error) {
	out := make([]vision.ColorProfile, 0, len(c.Colors))
	for _, col := range c.Colors {
		p, err := col.Profile()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Profile converts the entry to HSV bounds. Explicit bounds take precedence over bgr.
func (col Color) Profile() (vision.ColorProfile, error) {
	switch {
	case len(col.Lower) > 0 || len(col.Upper) > 0:
		if len(col.Lower) != 3 || len(col.Upper) != 3 {
			return vision.ColorProfile{}, fmt.Errorf("colour %q: lower and upper need three values (h, s, v)", col.Name)
		}
		p := vision.ColorProfile{
			Name:  col.Name,
			Lower: vision.HSV{H: col.Lower[0], S: col.Lower[1], V: col.Lower[2]},
			Upper: vision.HSV{H: col.Upper[0], S: col.Upper[1], V: col.Upper[2]},
		}
		return p, p.Validate()

	case len(col.BGR) > 0:
		if len(col.BGR) != 3 {
			return vision.ColorProfile{}, fmt.Errorf("colour %q: bgr needs three values", col.Name)
		}
		for _, v := range col.BGR {
			if v < 0 || v > 255 {
				return vision.ColorProfile{}, fmt.Errorf("colour %q: bgr value %d out of range", col.Name, v)
			}
		}
		return vision.ProfileFromBGR(col.Name, uint8(col.BGR[0]), uint8(col.BGR[1]), uint8(col.BGR[2])), nil

	default:
		return vision.ColorProfile{}, errors.New("colour " + col.Name + ": bgr or lower/upper is required")
	}
}

// DisappearanceDuration returns cups.disappearance_threshold as a duration.
func (c Cups) DisappearanceDuration() time.Duration {
	return seconds(c.DisappearanceThreshold)
}

// StopDuration returns cups.stop_time as a duration.
func (c Cups) StopDuration() time.Duration {
	return seconds(c.StopTime)
}

// RequestTimeoutDuration returns camera.request_timeout as a duration.
func (c Camera) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
