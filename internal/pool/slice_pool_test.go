package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypedSlicePools(t *testing.T) {
	t.Run("int64", func(t *testing.T) {
		col, cleanup := GetInt64Slice(128)
		defer cleanup()
		require.Len(t, col, 128)
		require.GreaterOrEqual(t, cap(col), 128)
	})

	t.Run("float64", func(t *testing.T) {
		col, cleanup := GetFloat64Slice(128)
		defer cleanup()
		require.Len(t, col, 128)
		require.GreaterOrEqual(t, cap(col), 128)
	})

	t.Run("float32", func(t *testing.T) {
		col, cleanup := GetFloat32Slice(128)
		defer cleanup()
		require.Len(t, col, 128)
		require.GreaterOrEqual(t, cap(col), 128)
	})
}

// After cleanup, the next request of the same or smaller size must reuse
// the released backing array rather than allocating.
func TestSlicePool_ReusesBackingArray(t *testing.T) {
	first, cleanup := GetFloat64Slice(64)
	ptr := &first[0]
	cleanup()

	second, cleanup2 := GetFloat64Slice(64)
	defer cleanup2()
	require.Same(t, ptr, &second[0])
}

func TestSlicePool_GrowsWhenTooSmall(t *testing.T) {
	_, cleanup := GetInt64Slice(8)
	cleanup()

	// A larger request cannot reuse the 8-element array.
	col, cleanup2 := GetInt64Slice(4096)
	defer cleanup2()
	require.Len(t, col, 4096)
}

func TestSlicePool_ConcurrentColumnStaging(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				col, cleanup := GetFloat32Slice(256)
				for k := range col {
					col[k] = float32(k)
				}
				if col[255] != 255 {
					t.Error("column staging slice corrupted")
				}
				cleanup()
			}
		}()
	}
	wg.Wait()
}
