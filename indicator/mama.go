// mama.go implements the MESA Adaptive Moving Average (MAMA), an estimator that follows
// sudden changes of the arrival rate faster than an EMA does.

package indicator

import (
	"sync"

	indicators "github.com/lmpizarro/go_ehlers_indicators"
	"golang.org/x/exp/constraints"
)

type MAMA[T constraints.Integer | constraints.Float] struct {
	FastLimit float64
	SlowLimit float64

	window            []float64
	ordered           []float64
	curIdx            int
	measurementsCount int
	lastResult        T
	locker            sync.Mutex
}

var _ MovingAverage[int64] = (*MAMA[int64])(nil)

func NewMAMADefault[T constraints.Integer | constraints.Float](
	n int,
) *MAMA[T] {
	return NewMAMA[T](n, 0.5, 0.05)
}

func NewMAMA[T constraints.Integer | constraints.Float](
	n int,
	fastLimit float64,
	slowLimit float64,
) *MAMA[T] {
	return &MAMA[T]{
		FastLimit: fastLimit,
		SlowLimit: slowLimit,
		window:    make([]float64, n),
		ordered:   make([]float64, n),
	}
}

func (m *MAMA[T]) Update(v T) T {
	m.locker.Lock()
	defer m.locker.Unlock()

	m.window[m.curIdx] = float64(v)
	m.curIdx = (m.curIdx + 1) % len(m.window)
	m.measurementsCount++
	if m.measurementsCount < len(m.window) {
		m.lastResult = v
		return v
	}

	// window   3 4 5 6 7 0 1 2
	//                    ^ curIdx
	// ordered  0 1 2 3 4 5 6 7
	copy(m.ordered, m.window[m.curIdx:])
	copy(m.ordered[len(m.window)-m.curIdx:], m.window)

	result := indicators.MAMA(m.ordered, m.FastLimit, m.SlowLimit)
	m.lastResult = T(result[len(result)-1])
	return m.lastResult
}

// Value returns the result of the latest Update.
func (m *MAMA[T]) Value() T {
	m.locker.Lock()
	defer m.locker.Unlock()
	return m.lastResult
}

func (m *MAMA[T]) InitPeriod() int64 {
	return int64(len(m.window))
}

func (m *MAMA[T]) Valid() bool {
	m.locker.Lock()
	defer m.locker.Unlock()
	return m.measurementsCount >= len(m.window)
}
