package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPathFor(t *testing.T) {
	c := New("cache", time.Hour)

	parts := map[string]string{
		"interval":    "1day",
		"exchange":    "BCBA",
		"output_size": "30",
	}

	t.Run("deterministic", func(t *testing.T) {
		p := c.PathFor("GGAL", parts)
		require.Equal(t, filepath.Join("cache", "GGAL__exchange-BCBA__interval-1day__output_size-30__2e8b903ec4d9.csv"), p)
		require.Equal(t, p, c.PathFor("GGAL", map[string]string{
			"output_size": "30",
			"exchange":    "BCBA",
			"interval":    "1day",
		}))
	})

	t.Run("every part changes the path", func(t *testing.T) {
		base := c.PathFor("GGAL", parts)
		require.NotEqual(t, base, c.PathFor("YPF", parts))
		for k := range parts {
			changed := map[string]string{}
			for k2, v := range parts {
				changed[k2] = v
			}
			changed[k] = "other"
			require.NotEqual(t, base, c.PathFor("GGAL", changed), k)
		}

		withRange := map[string]string{"interval": "1day", "exchange": "BCBA", "start": "2024-01-01", "end": "2024-01-31"}
		require.NotEqual(t, base, c.PathFor("GGAL", withRange))
	})

	t.Run("sanitizes tokens", func(t *testing.T) {
		require.Equal(t,
			filepath.Join("cache", "BRK_B__exchange-none__b4523235b867.csv"),
			c.PathFor("BRK.B", map[string]string{"exchange": ""}),
		)
		require.Equal(t, filepath.Join("cache", "USD_ARS__a4ea3597c119.csv"), c.PathFor("USD/ARS", nil))
	})

	t.Run("sanitized lookalikes do not share an entry", func(t *testing.T) {
		require.NotEqual(t,
			FileName("BRK.B", map[string]string{"exchange": "", "interval": "1day"}, "csv"),
			FileName("BRK_B", map[string]string{"exchange": "none", "interval": "1day"}, "csv"),
		)
		require.NotEqual(t,
			FileName("USD/ARS", nil, "csv"),
			FileName("USD.ARS", nil, "csv"),
		)
	})
}

func TestFreshness(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, time.Hour)
	path := c.PathFor("AAPL", map[string]string{"interval": "1d"})

	require.False(t, c.IsFresh(path))

	require.NoError(t, c.Write(path, []byte("as_of_date,price\n")))
	require.True(t, c.IsFresh(path))

	content, err := c.Read(path)
	require.NoError(t, err)
	require.Equal(t, "as_of_date,price\n", string(content))

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	require.False(t, c.IsFresh(path))

	age, ok := c.Age(path)
	require.True(t, ok)
	require.Greater(t, age, time.Hour)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
