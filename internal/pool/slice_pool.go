package pool

import "sync"

// Typed slice pools for staging catalog columns during encoding. Each Get
// returns a slice of exactly the requested length plus a cleanup func that
// releases the backing array; call it (usually with defer) once the column
// has been flushed.
var (
	int64SlicePool = sync.Pool{
		New: func() any { return &[]int64{} },
	}
	float64SlicePool = sync.Pool{
		New: func() any { return &[]float64{} },
	}
	float32SlicePool = sync.Pool{
		New: func() any { return &[]float32{} },
	}
)

// GetInt64Slice retrieves an int64 slice of the given length.
//
// Example:
//
//	ids, cleanup := pool.GetInt64Slice(catalog.Len())
//	defer cleanup()
func GetInt64Slice(size int) ([]int64, func()) {
	ptr, _ := int64SlicePool.Get().(*[]int64)
	slice := resize(ptr, size)

	return slice, func() { int64SlicePool.Put(ptr) }
}

// GetFloat64Slice retrieves a float64 slice of the given length.
func GetFloat64Slice(size int) ([]float64, func()) {
	ptr, _ := float64SlicePool.Get().(*[]float64)
	slice := resize(ptr, size)

	return slice, func() { float64SlicePool.Put(ptr) }
}

// GetFloat32Slice retrieves a float32 slice of the given length.
func GetFloat32Slice(size int) ([]float32, func()) {
	ptr, _ := float32SlicePool.Get().(*[]float32)
	slice := resize(ptr, size)

	return slice, func() { float32SlicePool.Put(ptr) }
}

// resize relengths the pooled array to size, reallocating (and replacing
// the pooled pointer's target) when the capacity is too small. Reused
// elements keep their previous values; callers overwrite every slot.
func resize[T any](ptr *[]T, size int) []T {
	slice := (*ptr)[:0]
	if cap(slice) < size {
		slice = make([]T, size)
	} else {
		slice = slice[:size]
	}
	*ptr = slice

	return slice
}
