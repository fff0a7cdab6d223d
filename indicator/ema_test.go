package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEMA(t *testing.T) {
	t.Run("flat", func(t *testing.T) {
		m := NewEMA[int64](8)
		for range 20 {
			require.Equal(t, int64(100), m.Update(100))
		}
		require.True(t, m.Valid())
	})

	t.Run("step", func(t *testing.T) {
		m := NewEMA[float64](3)
		require.Equal(t, 0.0, m.Update(0))
		require.Equal(t, 50.0, m.Update(100))
		require.Equal(t, 75.0, m.Update(100))
		require.Equal(t, 75.0, m.Value())
		require.True(t, m.Valid())
	})

	t.Run("valid-after-period", func(t *testing.T) {
		m := NewEMA[int64](4)
		for range 3 {
			m.Update(1)
			require.False(t, m.Valid())
		}
		m.Update(1)
		require.True(t, m.Valid())
	})
}

func TestNew(t *testing.T) {
	for _, tc := range []struct {
		name string
		typ  Type
		n    int
		err  bool
	}{
		{name: "ema", typ: TypeEMA, n: 16},
		{name: "default", typ: TypeUndefined, n: 16},
		{name: "mama", typ: TypeMAMA, n: 16},
		{name: "mama-too-short", typ: TypeMAMA, n: 1, err: true},
		{name: "unknown", typ: Type(100), n: 16, err: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, err := New[int64](tc.typ, tc.n)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, m)
		})
	}

	var typ Type
	require.NoError(t, typ.UnmarshalText([]byte("mama")))
	require.Equal(t, TypeMAMA, typ)
	require.Error(t, typ.UnmarshalText([]byte("sma")))
}
