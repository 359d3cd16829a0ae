package geomath

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrDegeneratePlane is returned when the sample set cannot constrain a
// plane (fewer than three points, or all points collinear).
var ErrDegeneratePlane = errors.New("geomath: degenerate plane fit")

// FitPlane estimates the best-fit plane through the given world points by
// least squares (y = a·x + b·z + c, solved via QR) and returns its upward
// unit normal.
func FitPlane(points []Vec3) (Vec3, error) {
	if len(points) < 3 {
		return Vec3{}, ErrDegeneratePlane
	}

	a := mat.NewDense(len(points), 3, nil)
	b := mat.NewVecDense(len(points), nil)
	for i, p := range points {
		a.Set(i, 0, p.X)
		a.Set(i, 1, p.Z)
		a.Set(i, 2, 1)
		b.SetVec(i, p.Y)
	}

	var qr mat.QR
	qr.Factorize(a)

	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, b); err != nil {
		return Vec3{}, ErrDegeneratePlane
	}

	// Plane y = a·x + b·z + c has normal (-a, 1, -b).
	n := Vec3{X: -coef.AtVec(0), Y: 1, Z: -coef.AtVec(1)}.Normalized()
	if n.Len() == 0 {
		return Vec3{}, ErrDegeneratePlane
	}
	return n, nil
}

// SlopeDegrees returns the angle in degrees between the plane normal and
// the vertical axis. A horizontal plane yields 0.
func SlopeDegrees(normal Vec3) float64 {
	l := normal.Len()
	if l == 0 {
		return 90
	}
	cos := math.Abs(normal.Y) / l
	if cos > 1 {
		cos = 1
	}
	return math.Acos(cos) * 180 / math.Pi
}

// StdDev returns the population standard deviation of the samples.
func StdDev(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return stat.PopStdDev(samples, nil)
}
