package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMAMA(t *testing.T) {
	t.Run("flat-interval", func(t *testing.T) {
		m := NewMAMADefault[int64](50)
		for range 100 {
			require.Equal(t, int64(33), m.Update(33))
		}
		require.Equal(t, int64(33), m.Value())
	})

	t.Run("growing-interval", func(t *testing.T) {
		m := NewMAMA[int64](50, 0.3, 0.05)
		for i := int64(0); i <= 100; i++ {
			v := m.Update(i)
			require.True(t, i/2 <= v && v <= i, "%d: %d", i, v)
		}
	})

	t.Run("jittery-interval", func(t *testing.T) {
		m := NewMAMA[int64](50, 0.3, 0.05)
		for i := range 100 {
			v := m.Update(0)
			if i > 50 {
				require.True(t, 40 <= v && v <= 60, "%d: %d", i, v)
			}
			v = m.Update(100)
			if i > 50 {
				require.True(t, 40 <= v && v <= 60, "%d: %d", i, v)
			}
		}
	})
}
