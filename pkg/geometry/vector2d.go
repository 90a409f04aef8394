// Package geometry holds the 2D vector math shared by the spatial indexes,
// the steering behaviors and the orchestrator.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// Epsilon is the tolerance used by Eq and by Normalize to decide that a
// vector has no usable direction.
const Epsilon = 1e-9

// MaxMagnitude is the length Saturate and SaturatingMul cap at. Adding two
// saturated vectors never overflows.
const MaxMagnitude = math.MaxFloat64 / 4

// ErrDivideByZero is returned by Div when the scalar is zero.
var ErrDivideByZero = errors.New("vector cannot be divided by zero")

// Vector2D is a point or a displacement in the plane.
// Fields are exported so literals stay short: v := Vector2D{X: 1, Y: 2}.
type Vector2D struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Zero is the null vector.
var Zero = Vector2D{}

// NewVector creates a new Vector2D.
func NewVector(x, y float64) Vector2D {
	return Vector2D{X: x, Y: y}
}

// NewVectorPolar creates a vector from a length and an angle in radians.
func NewVectorPolar(radius, theta float64) Vector2D {
	x := radius * math.Cos(theta)
	y := radius * math.Sin(theta)
	if math.Abs(x) < Epsilon {
		x = 0
	}
	if math.Abs(y) < Epsilon {
		y = 0
	}
	return Vector2D{X: x, Y: y}
}

// String implements fmt.Stringer.
func (v Vector2D) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", v.X, v.Y)
}

// Add adds two vectors and returns the result.
func (v Vector2D) Add(other Vector2D) Vector2D {
	return Vector2D{v.X + other.X, v.Y + other.Y}
}

// Sub subtracts the other vector from the current vector.
func (v Vector2D) Sub(other Vector2D) Vector2D {
	return Vector2D{v.X - other.X, v.Y - other.Y}
}

// Mul scales the vector by a scalar value.
func (v Vector2D) Mul(scalar float64) Vector2D {
	return Vector2D{v.X * scalar, v.Y * scalar}
}

// Div scales the vector by 1/scalar.
// A zero scalar yields an infinite vector together with ErrDivideByZero.
func (v Vector2D) Div(scalar float64) (Vector2D, error) {
	if scalar == 0 {
		return Vector2D{math.Inf(1), math.Inf(1)}, ErrDivideByZero
	}
	return Vector2D{v.X / scalar, v.Y / scalar}, nil
}

// Dot calculates the dot product of two vectors.
func (v Vector2D) Dot(other Vector2D) float64 {
	return v.X*other.X + v.Y*other.Y
}

// Cross returns the z component of the 3D cross product.
func (v Vector2D) Cross(other Vector2D) float64 {
	return v.X*other.Y - v.Y*other.X
}

// LenSqr is the squared length. Use it for comparisons.
func (v Vector2D) LenSqr() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Len is the Euclidean length.
func (v Vector2D) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Normalize returns a unit vector in the same direction, or the zero vector
// when the length is below Epsilon.
func (v Vector2D) Normalize() Vector2D {
	l := v.Len()
	if l < Epsilon {
		return Zero
	}
	return v.Mul(1 / l)
}

// ClampLen rescales v so that its length never exceeds limit. The direction is
// preserved and a vector already within bounds is returned untouched.
// A non-positive limit collapses the vector to zero.
func (v Vector2D) ClampLen(limit float64) Vector2D {
	if limit <= 0 {
		return Zero
	}
	l := v.Len()
	if l <= limit || l == 0 {
		return v
	}
	return v.Mul(limit / l)
}

// IsFinite reports whether both components are neither NaN nor infinite.
func (v Vector2D) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// Sanitize returns v when it is finite and the zero vector otherwise.
func (v Vector2D) Sanitize() Vector2D {
	if v.IsFinite() {
		return v
	}
	return Zero
}

// Saturate caps the length of v at MaxMagnitude. Infinite components keep
// their sign, so an overflowed vector still points the right way. Only NaN
// collapses to the zero vector.
func (v Vector2D) Saturate() Vector2D {
	if math.IsNaN(v.X) || math.IsNaN(v.Y) {
		return Zero
	}
	if math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
		dir := Vector2D{X: infSign(v.X), Y: infSign(v.Y)}
		return dir.Normalize().Mul(MaxMagnitude)
	}
	return v.ClampLen(MaxMagnitude)
}

func infSign(f float64) float64 {
	switch {
	case math.IsInf(f, 1):
		return 1
	case math.IsInf(f, -1):
		return -1
	}
	return 0
}

// SaturatingMul is v.Mul(scalar).Saturate() computed without overflowing
// first: the direction of v survives any finite or infinite scalar.
func (v Vector2D) SaturatingMul(scalar float64) Vector2D {
	if math.IsNaN(scalar) || scalar == 0 {
		return Zero
	}
	v = v.Saturate()
	l := v.Len()
	if l == 0 {
		return Zero
	}
	dir := v.Mul(1 / l)
	if scalar < 0 {
		dir = dir.Mul(-1)
	}
	return dir.Mul(math.Min(l*math.Abs(scalar), MaxMagnitude))
}

// DistanceTo calculates the Euclidean distance to another vector.
func (v Vector2D) DistanceTo(other Vector2D) float64 {
	return v.Sub(other).Len()
}

// DistanceSquaredTo calculates the squared Euclidean distance to another vector.
func (v Vector2D) DistanceSquaredTo(other Vector2D) float64 {
	return v.Sub(other).LenSqr()
}

// Angle returns the heading of the vector in [-Pi, Pi].
func (v Vector2D) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// AngleTo returns the heading of the segment from v to other.
func (v Vector2D) AngleTo(other Vector2D) float64 {
	return math.Atan2(other.Y-v.Y, other.X-v.X)
}

// Rotate rotates the vector by angle (radians) around the origin.
func (v Vector2D) Rotate(angle float64) Vector2D {
	cosTheta := math.Cos(angle)
	sinTheta := math.Sin(angle)
	return Vector2D{
		X: v.X*cosTheta - v.Y*sinTheta,
		Y: v.X*sinTheta + v.Y*cosTheta,
	}
}

// Perp returns v rotated 90 degrees counter-clockwise.
func (v Vector2D) Perp() Vector2D {
	return Vector2D{X: -v.Y, Y: v.X}
}

// Lerp returns the point at fraction t of the way from v to target.
func (v Vector2D) Lerp(target Vector2D, t float64) Vector2D {
	return v.Add(target.Sub(v).Mul(t))
}

// Eq checks if two vectors are equal within Epsilon.
func (v Vector2D) Eq(other Vector2D) bool {
	return math.Abs(v.X-other.X) <= Epsilon && math.Abs(v.Y-other.Y) <= Epsilon
}

// Centroid returns the arithmetic mean of points, or Zero for an empty slice.
func Centroid(points []Vector2D) Vector2D {
	if len(points) == 0 {
		return Zero
	}
	var sum Vector2D
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(points)))
}
