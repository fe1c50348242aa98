// Package stick shapes raw joystick axis samples into control output.
package stick

import (
	"math"

	"groundlink.klederson.com/internal/config"
)

// Curve holds the response curve parameters.
type Curve struct {
	Scale    float64 // raw units per full deflection
	Expo     float64 // 0 = linear, 1 = pure cubic
	Deadband float64 // normalized half-width of the center dead zone
}

// DefaultCurve returns the curve used by the engine's reference dashboard.
func DefaultCurve() Curve {
	return Curve{
		Scale:    config.StickScale,
		Expo:     config.StickExpo,
		Deadband: config.StickDeadband,
	}
}

// FromConfig builds a Curve from resolved configuration.
func FromConfig(c config.StickConfig) Curve {
	return Curve{Scale: c.Scale, Expo: c.Expo, Deadband: c.Deadband}
}

// Normalize maps a raw sample onto [-1, 1].
func (c Curve) Normalize(raw float64) float64 {
	return math.Max(-1, math.Min(1, raw/c.Scale))
}

// Shape applies the deadband and the expo blend expo*x³ + (1-expo)*x.
// Samples inside the deadband return exactly 0.
func (c Curve) Shape(raw float64) float64 {
	x := c.Normalize(raw)
	if math.Abs(x) < c.Deadband {
		return 0
	}
	return c.Expo*x*x*x + (1-c.Expo)*x
}

// Shape applies the default curve.
func Shape(raw float64) float64 {
	return DefaultCurve().Shape(raw)
}
