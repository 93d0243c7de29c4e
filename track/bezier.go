package track

import "math"

const (
	easeEpsilon    = 1e-7
	newtonSteps    = 8
	bisectionSteps = 64
)

// Ease maps the linear key fraction u through the curve: it solves
// x(s) = u for s in [0,1] and returns y(s).
func Ease(c Curve, u float32) float32 {
	if u <= 0 {
		return 0
	}
	if u >= 1 {
		return 1
	}
	x0, x1 := clamp01(float64(c.X0)), clamp01(float64(c.X1))
	s := solveBezier(x0, x1, float64(u))
	return float32(bezier1D(float64(c.Y0), float64(c.Y1), s))
}

// bezier1D evaluates one coordinate of a cubic with end points 0 and 1.
func bezier1D(p1, p2, s float64) float64 {
	r := 1 - s
	return 3*r*r*s*p1 + 3*r*s*s*p2 + s*s*s
}

func bezier1DDerivative(p1, p2, s float64) float64 {
	r := 1 - s
	return 3*r*r*p1 + 6*r*s*(p2-p1) + 3*s*s*(1-p2)
}

func solveBezier(x0, x1, u float64) float64 {
	// Newton first, it converges in a few steps for well-behaved curves.
	s := u
	for i := 0; i < newtonSteps; i++ {
		d := bezier1D(x0, x1, s) - u
		if math.Abs(d) < easeEpsilon {
			return s
		}
		dx := bezier1DDerivative(x0, x1, s)
		if math.Abs(dx) < 1e-6 {
			break
		}
		s -= d / dx
		if s < 0 || s > 1 {
			break
		}
	}

	// x(s) is monotonic on [0,1] with clamped control points.
	lo, hi := 0.0, 1.0
	s = u
	for i := 0; i < bisectionSteps; i++ {
		x := bezier1D(x0, x1, s)
		if math.Abs(x-u) < easeEpsilon {
			break
		}
		if x < u {
			lo = s
		} else {
			hi = s
		}
		s = (lo + hi) / 2
	}
	return s
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
