// moving_average.go defines the MovingAverage interface and the estimator factory.

// Package indicator provides the moving averages used to estimate how often
// frames arrive from a source.
package indicator

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

type MovingAverage[T constraints.Integer | constraints.Float] interface {
	Update(v T) T
	InitPeriod() int64
	Valid() bool
}

type Type int

const (
	TypeUndefined = Type(iota)
	TypeEMA
	TypeMAMA
)

func (t Type) String() string {
	switch t {
	case TypeUndefined:
		return "<undefined>"
	case TypeEMA:
		return "ema"
	case TypeMAMA:
		return "mama"
	default:
		return fmt.Sprintf("<unknown:%d>", int(t))
	}
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "ema":
		*t = TypeEMA
	case "mama":
		*t = TypeMAMA
	default:
		return fmt.Errorf("unknown moving average type '%s'", string(b))
	}
	return nil
}

// New constructs a moving average of the given type over n measurements.
func New[T constraints.Integer | constraints.Float](t Type, n int) (MovingAverage[T], error) {
	switch t {
	case TypeUndefined, TypeEMA:
		return NewEMA[T](n), nil
	case TypeMAMA:
		if n < 2 {
			return nil, fmt.Errorf("MAMA requires at least 2 measurements, got %d", n)
		}
		return NewMAMADefault[T](n), nil
	default:
		return nil, fmt.Errorf("unknown moving average type: %v", t)
	}
}
