// ema.go implements the exponential moving average used for inter-arrival estimates.

package indicator

import (
	"sync"

	"golang.org/x/exp/constraints"
)

// EMA is an exponential moving average with smoothing factor 2/(N+1).
type EMA[T constraints.Integer | constraints.Float] struct {
	alpha             float64
	period            int64
	value             float64
	measurementsCount int64
	locker            sync.Mutex
}

var _ MovingAverage[int64] = (*EMA[int64])(nil)

func NewEMA[T constraints.Integer | constraints.Float](n int) *EMA[T] {
	if n < 1 {
		n = 1
	}
	return &EMA[T]{
		alpha:  2 / (float64(n) + 1),
		period: int64(n),
	}
}

func (m *EMA[T]) Update(v T) T {
	m.locker.Lock()
	defer m.locker.Unlock()

	m.measurementsCount++
	if m.measurementsCount == 1 {
		m.value = float64(v)
		return v
	}
	m.value += m.alpha * (float64(v) - m.value)
	return T(m.value)
}

// Value returns the current average without updating it.
func (m *EMA[T]) Value() T {
	m.locker.Lock()
	defer m.locker.Unlock()
	return T(m.value)
}

func (m *EMA[T]) InitPeriod() int64 {
	return m.period
}

func (m *EMA[T]) Valid() bool {
	m.locker.Lock()
	defer m.locker.Unlock()
	return m.measurementsCount >= m.period
}
