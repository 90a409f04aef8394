package geometry

import (
	"errors"
	"math"
	"testing"
)

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}

func TestNewVectorPolar(t *testing.T) {
	tests := []struct {
		name   string
		radius float64
		theta  float64
		want   Vector2D
	}{
		{"Zero radius", 0, 0, Vector2D{0, 0}},
		{"Zero angle (X-axis)", 10, 0, Vector2D{10, 0}},
		{"90 degrees (Y-axis)", 10, math.Pi / 2, Vector2D{0, 10}},
		{"180 degrees (Negative X)", 10, math.Pi, Vector2D{-10, 0}},
		{"45 degrees", math.Sqrt(2), math.Pi / 4, Vector2D{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewVectorPolar(tt.radius, tt.theta)
			if !got.Eq(tt.want) {
				t.Errorf("NewVectorPolar(%v, %v) = %v; want %v", tt.radius, tt.theta, got, tt.want)
			}
		})
	}
}

func TestVector_String(t *testing.T) {
	v := Vector2D{1.234, 5.678}
	if got := v.String(); got != "(1.23, 5.68)" {
		t.Errorf("Vector2D.String() = %q; want %q", got, "(1.23, 5.68)")
	}
}

func TestVector_Arithmetic(t *testing.T) {
	v1 := Vector2D{1, 2}
	v2 := Vector2D{3, 4}

	t.Run("Add", func(t *testing.T) {
		if got := v1.Add(v2); !got.Eq(Vector2D{4, 6}) {
			t.Errorf("%v.Add(%v) = %v", v1, v2, got)
		}
	})

	t.Run("Sub", func(t *testing.T) {
		if got := v1.Sub(v2); !got.Eq(Vector2D{-2, -2}) {
			t.Errorf("%v.Sub(%v) = %v", v1, v2, got)
		}
	})

	t.Run("Mul", func(t *testing.T) {
		if got := v1.Mul(2); !got.Eq(Vector2D{2, 4}) {
			t.Errorf("%v.Mul(2) = %v", v1, got)
		}
	})

	t.Run("Div", func(t *testing.T) {
		got, err := v1.Div(2)
		if err != nil {
			t.Fatalf("%v.Div(2) returned error %v", v1, err)
		}
		if !got.Eq(Vector2D{0.5, 1}) {
			t.Errorf("%v.Div(2) = %v", v1, got)
		}
	})

	t.Run("DivByZero", func(t *testing.T) {
		got, err := v1.Div(0)
		if !errors.Is(err, ErrDivideByZero) {
			t.Errorf("%v.Div(0) error = %v; want ErrDivideByZero", v1, err)
		}
		if got.IsFinite() {
			t.Errorf("Div(0) should result in Inf coordinates, got %v", got)
		}
	})
}

func TestVector_Products(t *testing.T) {
	x := Vector2D{1, 0}
	y := Vector2D{0, 1}

	if got := x.Dot(y); got != 0 {
		t.Errorf("Dot orthogonal = %v; want 0", got)
	}
	if got := x.Cross(y); got != 1 {
		t.Errorf("Cross X,Y = %v; want 1", got)
	}
	if got := x.Perp(); !got.Eq(y) {
		t.Errorf("Perp(X) = %v; want %v", got, y)
	}
}

func TestVector_Normalize(t *testing.T) {
	v := Vector2D{3, 4}
	got := v.Normalize()
	if !got.Eq(Vector2D{0.6, 0.8}) {
		t.Errorf("Normalize = %v; want (0.6, 0.8)", got)
	}
	if !floatEquals(got.Len(), 1.0) {
		t.Errorf("Normalize length = %v; want 1", got.Len())
	}
	if got := Zero.Normalize(); got != Zero {
		t.Errorf("Normalize(0,0) = %v; want (0,0)", got)
	}
}

func TestVector_ClampLen(t *testing.T) {
	tests := []struct {
		name string
		v    Vector2D
		max  float64
		want Vector2D
	}{
		{"within bounds untouched", Vector2D{1, 1}, 5, Vector2D{1, 1}},
		{"exactly on bound", Vector2D{3, 4}, 5, Vector2D{3, 4}},
		{"rescaled keeps direction", Vector2D{30, 40}, 5, Vector2D{3, 4}},
		{"zero vector", Zero, 5, Zero},
		{"non-positive max", Vector2D{1, 0}, 0, Zero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.v.ClampLen(tt.max)
			if !got.Eq(tt.want) {
				t.Errorf("%v.ClampLen(%v) = %v; want %v", tt.v, tt.max, got, tt.want)
			}
		})
	}
}

func TestVector_Sanitize(t *testing.T) {
	if got := (Vector2D{math.NaN(), 1}).Sanitize(); got != Zero {
		t.Errorf("Sanitize(NaN) = %v; want zero", got)
	}
	if got := (Vector2D{1, math.Inf(-1)}).Sanitize(); got != Zero {
		t.Errorf("Sanitize(-Inf) = %v; want zero", got)
	}
	if got := (Vector2D{1, 2}).Sanitize(); got != (Vector2D{1, 2}) {
		t.Errorf("Sanitize(finite) = %v; want unchanged", got)
	}
}

func TestVector_Saturate(t *testing.T) {
	tests := []struct {
		name    string
		v       Vector2D
		wantDir Vector2D
	}{
		{"positive infinity", Vector2D{math.Inf(1), 3}, Vector2D{1, 0}},
		{"negative infinity", Vector2D{-7, math.Inf(-1)}, Vector2D{0, -1}},
		{"finite overflowed sum", Vector2D{math.MaxFloat64, 0}, Vector2D{1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.v.Saturate()
			if !got.IsFinite() {
				t.Fatalf("Saturate(%v) = %v; want finite", tt.v, got)
			}
			if !got.Normalize().Eq(tt.wantDir) {
				t.Errorf("Saturate(%v) points along %v; want %v", tt.v, got.Normalize(), tt.wantDir)
			}
			if got.Len() > MaxMagnitude*(1+Epsilon) {
				t.Errorf("Saturate(%v) length %g exceeds MaxMagnitude", tt.v, got.Len())
			}
		})
	}
	if got := (Vector2D{math.NaN(), 1}).Saturate(); got != Zero {
		t.Errorf("Saturate(NaN) = %v; want zero", got)
	}
	if got := (Vector2D{1, 2}).Saturate(); got != (Vector2D{1, 2}) {
		t.Errorf("Saturate(small) = %v; want unchanged", got)
	}
}

func TestVector_SaturatingMul(t *testing.T) {
	got := Vector2D{-0.1, 0}.SaturatingMul(1e308)
	if !got.IsFinite() || !got.Normalize().Eq(Vector2D{-1, 0}) {
		t.Errorf("SaturatingMul(1e308) = %v; want finite along (-1, 0)", got)
	}
	got = Vector2D{0, 2}.SaturatingMul(math.Inf(-1))
	if !got.IsFinite() || !got.Normalize().Eq(Vector2D{0, -1}) {
		t.Errorf("SaturatingMul(-Inf) = %v; want finite along (0, -1)", got)
	}
	if got := (Vector2D{3, 4}).SaturatingMul(2); !got.Eq(Vector2D{6, 8}) {
		t.Errorf("SaturatingMul(2) = %v; want (6, 8)", got)
	}
	if got := (Vector2D{3, 4}).SaturatingMul(math.NaN()); got != Zero {
		t.Errorf("SaturatingMul(NaN) = %v; want zero", got)
	}
}

func TestVector_Distance(t *testing.T) {
	v1 := Vector2D{1, 1}
	v2 := Vector2D{4, 5}

	if got := v1.DistanceTo(v2); got != 5 {
		t.Errorf("DistanceTo = %v; want 5", got)
	}
	if got := v1.DistanceSquaredTo(v2); got != 25 {
		t.Errorf("DistanceSquaredTo = %v; want 25", got)
	}
}

func TestVector_Rotate(t *testing.T) {
	got := Vector2D{1, 0}.Rotate(math.Pi / 2)
	if !got.Eq(Vector2D{0, 1}) {
		t.Errorf("Rotate(90) = %v; want (0, 1)", got)
	}
	if a := (Vector2D{0, -1}).Angle(); !floatEquals(a, -math.Pi/2) {
		t.Errorf("Angle = %v; want %v", a, -math.Pi/2)
	}
}

func TestCentroid(t *testing.T) {
	if got := Centroid(nil); got != Zero {
		t.Errorf("Centroid(nil) = %v; want zero", got)
	}
	got := Centroid([]Vector2D{{0, 0}, {2, 0}, {2, 2}, {0, 2}})
	if !got.Eq(Vector2D{1, 1}) {
		t.Errorf("Centroid(square) = %v; want (1, 1)", got)
	}
	if got := (Vector2D{0, 0}).Lerp(Vector2D{10, 10}, 0.5); !got.Eq(Vector2D{5, 5}) {
		t.Errorf("Lerp(0.5) = %v; want (5, 5)", got)
	}
}
