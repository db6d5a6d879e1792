package domain

import "math"

// Dimensions is a complete physical profile for one cart line: weight in
// kilograms, length/width/height in centimetres. A value of this type is only
// meaningful when all four fields are strictly positive; use Valid or
// NewDimensions to enforce that.
type Dimensions struct {
	Weight float64 `json:"weight"`
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewDimensions builds a Dimensions value, rejecting non-positive or
// non-finite fields. All four must be present and valid or none at all — a
// partial set is never representable.
func NewDimensions(weight, length, width, height float64) (Dimensions, bool) {
	d := Dimensions{Weight: weight, Length: length, Width: width, Height: height}
	if !d.Valid() {
		return Dimensions{}, false
	}
	return d, true
}

// Valid reports whether every field is finite and strictly positive.
func (d Dimensions) Valid() bool {
	for _, v := range []float64{d.Weight, d.Length, d.Width, d.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return true
}
