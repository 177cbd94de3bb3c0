package table

// ColumnView provides columnar access to a catalog: whole columns gathered
// into contiguous typed slices, ready for vectorized math or bulk encoding.
//
// The view is a snapshot: gathered slices do not alias record buffers, so
// later record mutation is not reflected and the slices may be modified
// freely by the caller.
type ColumnView struct {
	catalog *Catalog
}

// NewColumnView creates a view over the catalog's current records.
func NewColumnView(c *Catalog) *ColumnView {
	return &ColumnView{catalog: c}
}

// Len returns the number of rows in the view.
func (cv *ColumnView) Len() int { return cv.catalog.Len() }

// ColI32 gathers a TypeI32 column.
func (cv *ColumnView) ColI32(k Key) []int32 {
	out := make([]int32, cv.catalog.Len())
	for i, rec := range cv.catalog.records {
		out[i] = rec.GetI32(k)
	}

	return out
}

// ColI64 gathers a TypeI64 column.
func (cv *ColumnView) ColI64(k Key) []int64 {
	out := make([]int64, cv.catalog.Len())
	for i, rec := range cv.catalog.records {
		out[i] = rec.GetI64(k)
	}

	return out
}

// ColF32 gathers a TypeF32 column.
func (cv *ColumnView) ColF32(k Key) []float32 {
	out := make([]float32, cv.catalog.Len())
	for i, rec := range cv.catalog.records {
		out[i] = rec.GetF32(k)
	}

	return out
}

// ColF64 gathers a TypeF64 column.
func (cv *ColumnView) ColF64(k Key) []float64 {
	out := make([]float64, cv.catalog.Len())
	for i, rec := range cv.catalog.records {
		out[i] = rec.GetF64(k)
	}

	return out
}

// ColFlag gathers a TypeFlag column.
func (cv *ColumnView) ColFlag(k Key) []bool {
	out := make([]bool, cv.catalog.Len())
	for i, rec := range cv.catalog.records {
		out[i] = rec.GetFlag(k)
	}

	return out
}
