package axis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TransformKind identifies a scale transform.
type TransformKind uint8

const (
	// Identity is the linear scale.
	Identity TransformKind = iota
	// Log is the base-10 logarithmic scale.
	Log
	// Sqrt is the square-root scale.
	Sqrt
	// Asinh is the inverse hyperbolic sine scale with a cofactor divisor.
	Asinh
	// Logistic is the four-parameter logistic scale.
	Logistic
)

// Transform is a monotonic scale transform. A nil *Transform behaves as the
// identity, so resolved ranges can carry nil for linear axes.
type Transform struct {
	Kind TransformKind

	// Cofactor divides the input of an Asinh transform.
	Cofactor float64

	// L, K, X0 and Y0 parameterize a Logistic transform as
	// y = Y0 + L/(1+exp(-K*(x-X0))).
	L  float64
	K  float64
	X0 float64
	Y0 float64
}

// UnknownTransformError indicates an unrecognized or malformed transform
// descriptor.
type UnknownTransformError struct {
	Desc string
}

func (e *UnknownTransformError) Error() string {
	return fmt.Sprintf("axis: unknown transform %q", e.Desc)
}

// ParseTransform parses a transform descriptor. Empty and "identity"
// descriptors yield nil, the linear transform.
//
// Recognized forms:
//
//	log
//	sqrt
//	asinh              (cofactor 1)
//	asinh(<cofactor>)
//	logistic(<l>,<k>,<x0>,<y0>)
func ParseTransform(desc string) (*Transform, error) {
	s := strings.TrimSpace(desc)
	switch s {
	case "", "identity":
		return nil, nil
	case "log":
		return &Transform{Kind: Log}, nil
	case "sqrt":
		return &Transform{Kind: Sqrt}, nil
	case "asinh":
		return &Transform{Kind: Asinh, Cofactor: 1}, nil
	}

	if args, ok := callArgs(s, "asinh"); ok {
		if len(args) != 1 {
			return nil, &UnknownTransformError{Desc: desc}
		}
		c, err := strconv.ParseFloat(args[0], 64)
		if err != nil || c <= 0 {
			return nil, &UnknownTransformError{Desc: desc}
		}
		return &Transform{Kind: Asinh, Cofactor: c}, nil
	}

	if args, ok := callArgs(s, "logistic"); ok {
		if len(args) != 4 {
			return nil, &UnknownTransformError{Desc: desc}
		}
		vals := make([]float64, 4)
		for i, a := range args {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return nil, &UnknownTransformError{Desc: desc}
			}
			vals[i] = v
		}
		if vals[0] <= 0 || vals[1] == 0 {
			return nil, &UnknownTransformError{Desc: desc}
		}
		return &Transform{Kind: Logistic, L: vals[0], K: vals[1], X0: vals[2], Y0: vals[3]}, nil
	}

	return nil, &UnknownTransformError{Desc: desc}
}

func callArgs(s, name string) ([]string, bool) {
	if !strings.HasPrefix(s, name+"(") || !strings.HasSuffix(s, ")") {
		return nil, false
	}
	inner := s[len(name)+1 : len(s)-1]
	parts := strings.Split(inner, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, true
}

// String returns the transform's descriptor. It round-trips through
// ParseTransform.
func (t *Transform) String() string {
	if t == nil {
		return "identity"
	}
	switch t.Kind {
	case Identity:
		return "identity"
	case Log:
		return "log"
	case Sqrt:
		return "sqrt"
	case Asinh:
		return fmt.Sprintf("asinh(%g)", t.Cofactor)
	case Logistic:
		return fmt.Sprintf("logistic(%g,%g,%g,%g)", t.L, t.K, t.X0, t.Y0)
	default:
		return fmt.Sprintf("TransformKind(%d)", uint8(t.Kind))
	}
}

// Apply maps a data-space value into transformed space.
func (t *Transform) Apply(x float64) float64 {
	if t == nil {
		return x
	}
	switch t.Kind {
	case Log:
		return math.Log10(x)
	case Sqrt:
		return math.Sqrt(x)
	case Asinh:
		return math.Asinh(x / t.Cofactor)
	case Logistic:
		return t.Y0 + t.L/(1+math.Exp(-t.K*(x-t.X0)))
	default:
		return x
	}
}

// Inverse maps a transformed-space value back into data space.
func (t *Transform) Inverse(y float64) float64 {
	if t == nil {
		return y
	}
	switch t.Kind {
	case Log:
		return math.Pow(10, y)
	case Sqrt:
		return y * y
	case Asinh:
		return math.Sinh(y) * t.Cofactor
	case Logistic:
		return t.X0 - math.Log(t.L/(y-t.Y0)-1)/t.K
	default:
		return y
	}
}

// check validates that a range starting at min lies inside the transform's
// domain. Ranges are ordered, so checking the lower bound covers both ends.
func (t *Transform) check(min float64) error {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case Log:
		if min <= 0 {
			return fmt.Errorf("axis: log transform needs a positive range, got min %v", min)
		}
	case Sqrt:
		if min < 0 {
			return fmt.Errorf("axis: sqrt transform needs a non-negative range, got min %v", min)
		}
	case Asinh:
		if t.Cofactor <= 0 {
			return fmt.Errorf("axis: asinh transform needs a positive cofactor, got %v", t.Cofactor)
		}
	case Logistic:
		if t.L <= 0 || t.K == 0 {
			return fmt.Errorf("axis: logistic transform needs l > 0 and k != 0")
		}
	}
	return nil
}
