// Package camera controls the remote camera's image settings through its
// HTTP /config endpoint. Games declare typed overrides that are pushed
// before a frame is processed.
package camera

import (
	"fmt"
	"net/url"
	"strconv"
)

// Settings is a set of optional camera settings. Nil fields are unset.
type Settings struct {
	FrameSize     *string `json:"framesize,omitempty"`
	Quality       *int    `json:"quality,omitempty"`
	Contrast      *int    `json:"contrast,omitempty"`
	Brightness    *int    `json:"brightness,omitempty"`
	Saturation    *int    `json:"saturation,omitempty"`
	GainCeiling   *int    `json:"gainceiling,omitempty"`
	ColorBar      *bool   `json:"colorbar,omitempty"`
	AWB           *bool   `json:"awb,omitempty"`
	AGC           *bool   `json:"agc,omitempty"`
	AEC           *bool   `json:"aec,omitempty"`
	HMirror       *bool   `json:"hmirror,omitempty"`
	VFlip         *bool   `json:"vflip,omitempty"`
	AWBGain       *int    `json:"awb_gain,omitempty"`
	AGCGain       *int    `json:"agc_gain,omitempty"`
	AECValue      *int    `json:"aec_value,omitempty"`
	AEC2          *int    `json:"aec2,omitempty"`
	DCW           *bool   `json:"dcw,omitempty"`
	BPC           *bool   `json:"bpc,omitempty"`
	WPC           *bool   `json:"wpc,omitempty"`
	RawGMA        *bool   `json:"raw_gma,omitempty"`
	LENC          *bool   `json:"lenc,omitempty"`
	SpecialEffect *string `json:"special_effect,omitempty"`
	WBMode        *string `json:"wb_mode,omitempty"`
	AELevel       *int    `json:"ae_level,omitempty"`
	LEDIntensity  *int    `json:"led_intensity,omitempty"`
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Clone returns a copy of s that shares no pointers with it.
func (s Settings) Clone() Settings {
	return Settings{
		FrameSize:     clonePtr(s.FrameSize),
		Quality:       clonePtr(s.Quality),
		Contrast:      clonePtr(s.Contrast),
		Brightness:    clonePtr(s.Brightness),
		Saturation:    clonePtr(s.Saturation),
		GainCeiling:   clonePtr(s.GainCeiling),
		ColorBar:      clonePtr(s.ColorBar),
		AWB:           clonePtr(s.AWB),
		AGC:           clonePtr(s.AGC),
		AEC:           clonePtr(s.AEC),
		HMirror:       clonePtr(s.HMirror),
		VFlip:         clonePtr(s.VFlip),
		AWBGain:       clonePtr(s.AWBGain),
		AGCGain:       clonePtr(s.AGCGain),
		AECValue:      clonePtr(s.AECValue),
		AEC2:          clonePtr(s.AEC2),
		DCW:           clonePtr(s.DCW),
		BPC:           clonePtr(s.BPC),
		WPC:           clonePtr(s.WPC),
		RawGMA:        clonePtr(s.RawGMA),
		LENC:          clonePtr(s.LENC),
		SpecialEffect: clonePtr(s.SpecialEffect),
		WBMode:        clonePtr(s.WBMode),
		AELevel:       clonePtr(s.AELevel),
		LEDIntensity:  clonePtr(s.LEDIntensity),
	}
}

// Defaults returns the settings the camera boots with.
func Defaults() Settings {
	return Settings{
		FrameSize:     String("QVGA"),
		Quality:       Int(10),
		Contrast:      Int(0),
		Brightness:    Int(0),
		Saturation:    Int(0),
		GainCeiling:   Int(0),
		ColorBar:      Bool(false),
		AWB:           Bool(true),
		AGC:           Bool(true),
		AEC:           Bool(true),
		HMirror:       Bool(false),
		VFlip:         Bool(false),
		AWBGain:       Int(0),
		AGCGain:       Int(0),
		AECValue:      Int(0),
		AEC2:          Int(0),
		DCW:           Bool(true),
		BPC:           Bool(true),
		WPC:           Bool(true),
		RawGMA:        Bool(false),
		LENC:          Bool(false),
		SpecialEffect: String("none"),
		WBMode:        String("auto"),
		AELevel:       Int(0),
		LEDIntensity:  Int(0),
	}
}

// field binds a query key to one Settings field.
type field struct {
	key string
	get func(*Settings) any
	set func(dst, src *Settings)
}

var fields = []field{
	{"framesize", func(s *Settings) any { return s.FrameSize }, func(d, s *Settings) { d.FrameSize = s.FrameSize }},
	{"quality", func(s *Settings) any { return s.Quality }, func(d, s *Settings) { d.Quality = s.Quality }},
	{"contrast", func(s *Settings) any { return s.Contrast }, func(d, s *Settings) { d.Contrast = s.Contrast }},
	{"brightness", func(s *Settings) any { return s.Brightness }, func(d, s *Settings) { d.Brightness = s.Brightness }},
	{"saturation", func(s *Settings) any { return s.Saturation }, func(d, s *Settings) { d.Saturation = s.Saturation }},
	{"gainceiling", func(s *Settings) any { return s.GainCeiling }, func(d, s *Settings) { d.GainCeiling = s.GainCeiling }},
	{"colorbar", func(s *Settings) any { return s.ColorBar }, func(d, s *Settings) { d.ColorBar = s.ColorBar }},
	{"awb", func(s *Settings) any { return s.AWB }, func(d, s *Settings) { d.AWB = s.AWB }},
	{"agc", func(s *Settings) any { return s.AGC }, func(d, s *Settings) { d.AGC = s.AGC }},
	{"aec", func(s *Settings) any { return s.AEC }, func(d, s *Settings) { d.AEC = s.AEC }},
	{"hmirror", func(s *Settings) any { return s.HMirror }, func(d, s *Settings) { d.HMirror = s.HMirror }},
	{"vflip", func(s *Settings) any { return s.VFlip }, func(d, s *Settings) { d.VFlip = s.VFlip }},
	{"awb_gain", func(s *Settings) any { return s.AWBGain }, func(d, s *Settings) { d.AWBGain = s.AWBGain }},
	{"agc_gain", func(s *Settings) any { return s.AGCGain }, func(d, s *Settings) { d.AGCGain = s.AGCGain }},
	{"aec_value", func(s *Settings) any { return s.AECValue }, func(d, s *Settings) { d.AECValue = s.AECValue }},
	{"aec2", func(s *Settings) any { return s.AEC2 }, func(d, s *Settings) { d.AEC2 = s.AEC2 }},
	{"dcw", func(s *Settings) any { return s.DCW }, func(d, s *Settings) { d.DCW = s.DCW }},
	{"bpc", func(s *Settings) any { return s.BPC }, func(d, s *Settings) { d.BPC = s.BPC }},
	{"wpc", func(s *Settings) any { return s.WPC }, func(d, s *Settings) { d.WPC = s.WPC }},
	{"raw_gma", func(s *Settings) any { return s.RawGMA }, func(d, s *Settings) { d.RawGMA = s.RawGMA }},
	{"lenc", func(s *Settings) any { return s.LENC }, func(d, s *Settings) { d.LENC = s.LENC }},
	{"special_effect", func(s *Settings) any { return s.SpecialEffect }, func(d, s *Settings) { d.SpecialEffect = s.SpecialEffect }},
	{"wb_mode", func(s *Settings) any { return s.WBMode }, func(d, s *Settings) { d.WBMode = s.WBMode }},
	{"ae_level", func(s *Settings) any { return s.AELevel }, func(d, s *Settings) { d.AELevel = s.AELevel }},
	{"led_intensity", func(s *Settings) any { return s.LEDIntensity }, func(d, s *Settings) { d.LEDIntensity = s.LEDIntensity }},
}

// format renders a field value the way the camera firmware expects it. ok is
// false for unset fields.
func format(v any) (string, bool) {
	switch p := v.(type) {
	case *int:
		if p == nil {
			return "", false
		}
		return strconv.Itoa(*p), true
	case *bool:
		if p == nil {
			return "", false
		}
		if *p {
			return "True", true
		}
		return "False", true
	case *string:
		if p == nil {
			return "", false
		}
		return *p, true
	}
	return "", false
}

// IsEmpty reports whether no field is set.
func (s Settings) IsEmpty() bool {
	for _, f := range fields {
		if _, ok := format(f.get(&s)); ok {
			return false
		}
	}
	return true
}

// Merge returns s with every field set in o applied on top.
func (s Settings) Merge(o Settings) Settings {
	out := s
	for _, f := range fields {
		if _, ok := format(f.get(&o)); ok {
			f.set(&out, &o)
		}
	}
	return out
}

// Diff returns the fields of s that are unset in current or hold a different value.
func (s Settings) Diff(current Settings) Settings {
	var out Settings
	for _, f := range fields {
		want, ok := format(f.get(&s))
		if !ok {
			continue
		}
		if have, set := format(f.get(&current)); set && have == want {
			continue
		}
		f.set(&out, &s)
	}
	return out
}

// Values returns the set fields as query parameters.
func (s Settings) Values() url.Values {
	v := url.Values{}
	for _, f := range fields {
		if val, ok := format(f.get(&s)); ok {
			v.Set(f.key, val)
		}
	}
	return v
}

// Query renders the set fields as a query string with keys sorted.
func (s Settings) Query() string {
	return s.Values().Encode()
}

// Validate checks the enumerated and bounded fields.
func (s Settings) Validate() error {
	if s.FrameSize != nil && !frameSizes[*s.FrameSize] {
		return fmt.Errorf("camera: unknown framesize %q", *s.FrameSize)
	}
	if s.Quality != nil && (*s.Quality < 0 || *s.Quality > 63) {
		return fmt.Errorf("camera: quality %d out of range 0..63", *s.Quality)
	}
	if s.SpecialEffect != nil && !specialEffects[*s.SpecialEffect] {
		return fmt.Errorf("camera: unknown special_effect %q", *s.SpecialEffect)
	}
	if s.WBMode != nil && !wbModes[*s.WBMode] {
		return fmt.Errorf("camera: unknown wb_mode %q", *s.WBMode)
	}
	if s.LEDIntensity != nil && (*s.LEDIntensity < 0 || *s.LEDIntensity > 255) {
		return fmt.Errorf("camera: led_intensity %d out of range 0..255", *s.LEDIntensity)
	}
	return nil
}

var frameSizes = map[string]bool{
	"96X96": true, "QQVGA": true, "QCIF": true, "HQVGA": true, "240X240": true,
	"QVGA": true, "CIF": true, "HVGA": true, "VGA": true, "SVGA": true,
	"XGA": true, "HD": true, "SXGA": true, "UXGA": true,
}

var specialEffects = map[string]bool{
	"none": true, "negative": true, "grayscale": true, "red": true,
	"green": true, "blue": true, "sepia": true,
}

var wbModes = map[string]bool{
	"auto": true, "sunny": true, "cloudy": true, "office": true, "home": true,
}
