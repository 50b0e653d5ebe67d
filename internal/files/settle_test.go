package files

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitStable(t *testing.T) {
	dir := t.TempDir()

	t.Run("stable file", func(t *testing.T) {
		path := filepath.Join(dir, "stable.csv")
		require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0644))

		size, err := WaitStable(context.Background(), path, 3, 5*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, int64(8), size)
	})

	t.Run("empty file never settles", func(t *testing.T) {
		path := filepath.Join(dir, "empty.csv")
		require.NoError(t, os.WriteFile(path, nil, 0644))

		_, err := WaitStable(context.Background(), path, 2, 5*time.Millisecond)
		assert.True(t, errors.Is(err, ErrNotSettled), "got %v", err)
	})

	t.Run("missing file fails fast", func(t *testing.T) {
		start := time.Now()
		_, err := WaitStable(context.Background(), filepath.Join(dir, "missing.csv"), 10, time.Second)
		assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := WaitStable(context.Background(), dir, 3, 5*time.Millisecond)
		assert.Error(t, err)
	})

	t.Run("growing file settles once writes stop", func(t *testing.T) {
		path := filepath.Join(dir, "growing.csv")
		require.NoError(t, os.WriteFile(path, []byte("a\n"), 0644))

		done := make(chan struct{})
		go func() {
			defer close(done)
			f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				return
			}
			defer f.Close()
			for i := 0; i < 3; i++ {
				time.Sleep(5 * time.Millisecond)
				_, _ = f.WriteString("1\n")
			}
		}()

		size, err := WaitStable(context.Background(), path, 10, 100*time.Millisecond)
		<-done
		require.NoError(t, err)
		assert.Equal(t, int64(8), size)
	})
}
