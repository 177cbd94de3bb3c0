package fits

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lumensky/starcat/endian"
	"github.com/lumensky/starcat/errs"
)

// engine is the byte order of all FITS payloads.
var engine = endian.GetBigEndianEngine()

// ColumnType describes one binary-table column: the element code, the
// repeat count, and whether the column is variable-length (stored through a
// heap descriptor).
//
// Supported element codes: L (logical), B (unsigned byte), I (16-bit int),
// J (32-bit int), K (64-bit int), E (float32), D (float64), A (character),
// U (unsigned 16-bit int, a common convention extension used only inside
// variable-length columns here).
type ColumnType struct {
	Code   byte
	Repeat int
	Var    bool
	// Wide marks a Q descriptor (64-bit count/offset pair); the writer always
	// emits P, but Q tables are accepted on read.
	Wide bool
}

// elemSizes maps element codes to their byte widths.
var elemSizes = map[byte]int{
	'L': 1, 'B': 1, 'A': 1, 'I': 2, 'U': 2, 'J': 4, 'E': 4, 'K': 8, 'D': 8,
}

// CellSize returns the fixed bytes the column occupies in one table row.
// Variable-length columns occupy one 8-byte (count, heap offset) descriptor.
func (ct ColumnType) CellSize() int {
	if ct.Var {
		if ct.Wide {
			return 16
		}

		return 8
	}

	return elemSizes[ct.Code] * ct.Repeat
}

// TForm renders the column's TFORM value, e.g. "J", "3E", "8A", "PE(0)".
func (ct ColumnType) TForm() string {
	if ct.Var {
		desc := byte('P')
		if ct.Wide {
			desc = 'Q'
		}

		return fmt.Sprintf("%c%c(%d)", desc, ct.Code, ct.Repeat)
	}
	if ct.Repeat == 1 {
		return string(ct.Code)
	}

	return fmt.Sprintf("%d%c", ct.Repeat, ct.Code)
}

// ParseTForm decodes a TFORM value. Both P (32-bit) and Q (64-bit)
// variable-length descriptors are accepted; the max-count hint in
// parentheses is optional.
func ParseTForm(s string) (ColumnType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ColumnType{}, fmt.Errorf("%w: empty TFORM", errs.ErrInvalidTForm)
	}

	repeat := 1
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 {
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return ColumnType{}, fmt.Errorf("%w: %q", errs.ErrInvalidTForm, s)
		}
		repeat = n
	}
	if i >= len(s) {
		return ColumnType{}, fmt.Errorf("%w: %q has no type code", errs.ErrInvalidTForm, s)
	}

	code := s[i]
	if code == 'P' || code == 'Q' {
		if i+1 >= len(s) {
			return ColumnType{}, fmt.Errorf("%w: %q has no element code", errs.ErrInvalidTForm, s)
		}
		elem := s[i+1]
		if _, ok := elemSizes[elem]; !ok {
			return ColumnType{}, fmt.Errorf("%w: %q has unknown element code %q", errs.ErrInvalidTForm, s, elem)
		}
		maxCount := 0
		if rest := s[i+2:]; strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
			if n, err := strconv.Atoi(rest[1 : len(rest)-1]); err == nil {
				maxCount = n
			}
		}

		return ColumnType{Code: elem, Repeat: maxCount, Var: true, Wide: code == 'Q'}, nil
	}

	if _, ok := elemSizes[code]; !ok {
		return ColumnType{}, fmt.Errorf("%w: %q has unknown type code %q", errs.ErrInvalidTForm, s, code)
	}

	return ColumnType{Code: code, Repeat: repeat}, nil
}

// Column is one binary-table column descriptor.
type Column struct {
	Name string
	Type ColumnType
	Unit string
	Doc  string
}

// BinTable is an in-memory binary table: fixed-width row data plus the heap
// holding variable-length cell payloads.
type BinTable struct {
	Cols []Column

	rowSize int
	offsets []int
	data    []byte
	heap    []byte
	nRows   int
}

// NewBinTable creates an empty table with the given columns.
func NewBinTable(cols []Column) *BinTable {
	t := &BinTable{Cols: cols, offsets: make([]int, len(cols))}
	for i, c := range cols {
		t.offsets[i] = t.rowSize
		t.rowSize += c.Type.CellSize()
	}

	return t
}

// NRows returns the number of rows.
func (t *BinTable) NRows() int { return t.nRows }

// RowSize returns the fixed bytes per row.
func (t *BinTable) RowSize() int { return t.rowSize }

// HeapSize returns the bytes in the variable-length heap.
func (t *BinTable) HeapSize() int { return len(t.heap) }

// AppendRow encodes one row. values must hold one entry per column:
// bool for L, uint8 for B, int16 for I, int32 for J, int64 for K, float32
// for E, float64 for D, string for A columns, and []int32 / []float32 /
// []float64 / []uint16 for variable-length columns. Fixed array columns
// (repeat > 1) take the matching slice type with exactly Repeat elements.
func (t *BinTable) AppendRow(values []any) error {
	if len(values) != len(t.Cols) {
		return fmt.Errorf("%w: %d values for %d columns", errs.ErrInvalidParameter, len(values), len(t.Cols))
	}

	row := make([]byte, 0, t.rowSize)
	for i, col := range t.Cols {
		enc, err := t.encodeCell(col, values[i])
		if err != nil {
			return fmt.Errorf("column %q: %w", col.Name, err)
		}
		row = append(row, enc...)
	}
	t.data = append(t.data, row...)
	t.nRows++

	return nil
}

func (t *BinTable) encodeCell(col Column, v any) ([]byte, error) {
	if col.Type.Var {
		return t.encodeVarCell(col, v)
	}

	buf := make([]byte, 0, col.Type.CellSize())
	switch col.Type.Code {
	case 'L':
		b, ok := v.(bool)
		if !ok {
			return nil, typeError(v, "bool")
		}
		if b {
			buf = append(buf, 'T')
		} else {
			buf = append(buf, 'F')
		}
	case 'B':
		b, ok := v.(uint8)
		if !ok {
			return nil, typeError(v, "uint8")
		}
		buf = append(buf, b)
	case 'I':
		n, ok := v.(int16)
		if !ok {
			return nil, typeError(v, "int16")
		}
		buf = engine.AppendUint16(buf, uint16(n))
	case 'J':
		switch n := v.(type) {
		case int32:
			buf = engine.AppendUint32(buf, uint32(n))
		case []int32:
			if len(n) != col.Type.Repeat {
				return nil, countError(len(n), col.Type.Repeat)
			}
			for _, e := range n {
				buf = engine.AppendUint32(buf, uint32(e))
			}
		default:
			return nil, typeError(v, "int32 or []int32")
		}
	case 'K':
		n, ok := v.(int64)
		if !ok {
			return nil, typeError(v, "int64")
		}
		buf = engine.AppendUint64(buf, uint64(n))
	case 'E':
		switch f := v.(type) {
		case float32:
			buf = engine.AppendUint32(buf, f32bits(f))
		case []float32:
			if len(f) != col.Type.Repeat {
				return nil, countError(len(f), col.Type.Repeat)
			}
			for _, e := range f {
				buf = engine.AppendUint32(buf, f32bits(e))
			}
		default:
			return nil, typeError(v, "float32 or []float32")
		}
	case 'D':
		switch f := v.(type) {
		case float64:
			buf = engine.AppendUint64(buf, f64bits(f))
		case []float64:
			if len(f) != col.Type.Repeat {
				return nil, countError(len(f), col.Type.Repeat)
			}
			for _, e := range f {
				buf = engine.AppendUint64(buf, f64bits(e))
			}
		default:
			return nil, typeError(v, "float64 or []float64")
		}
	case 'A':
		s, ok := v.(string)
		if !ok {
			return nil, typeError(v, "string")
		}
		if len(s) > col.Type.Repeat {
			return nil, countError(len(s), col.Type.Repeat)
		}
		buf = append(buf, s...)
		for len(buf) < col.Type.Repeat {
			buf = append(buf, 0)
		}
	default:
		return nil, fmt.Errorf("%w: code %q", errs.ErrInvalidTForm, col.Type.Code)
	}

	return buf, nil
}

// encodeVarCell appends the payload to the heap and encodes the (count,
// offset) P descriptor.
func (t *BinTable) encodeVarCell(col Column, v any) ([]byte, error) {
	count := 0
	offset := len(t.heap)

	switch col.Type.Code {
	case 'J':
		a, ok := v.([]int32)
		if !ok {
			return nil, typeError(v, "[]int32")
		}
		count = len(a)
		for _, e := range a {
			t.heap = engine.AppendUint32(t.heap, uint32(e))
		}
	case 'E':
		a, ok := v.([]float32)
		if !ok {
			return nil, typeError(v, "[]float32")
		}
		count = len(a)
		for _, e := range a {
			t.heap = engine.AppendUint32(t.heap, f32bits(e))
		}
	case 'D':
		a, ok := v.([]float64)
		if !ok {
			return nil, typeError(v, "[]float64")
		}
		count = len(a)
		for _, e := range a {
			t.heap = engine.AppendUint64(t.heap, f64bits(e))
		}
	case 'U':
		a, ok := v.([]uint16)
		if !ok {
			return nil, typeError(v, "[]uint16")
		}
		count = len(a)
		for _, e := range a {
			t.heap = engine.AppendUint16(t.heap, e)
		}
	default:
		return nil, fmt.Errorf("%w: variable-length element code %q", errs.ErrInvalidTForm, col.Type.Code)
	}

	var buf []byte
	buf = engine.AppendUint32(buf, uint32(count))
	buf = engine.AppendUint32(buf, uint32(offset))

	return buf, nil
}

// Cell decodes the value at (row, col); slices are returned for repeat > 1
// and variable-length columns, matching the types AppendRow accepts.
func (t *BinTable) Cell(row, col int) (any, error) {
	if row < 0 || row >= t.nRows {
		return nil, fmt.Errorf("%w: row %d of %d", errs.ErrInvalidParameter, row, t.nRows)
	}
	if col < 0 || col >= len(t.Cols) {
		return nil, fmt.Errorf("%w: column %d of %d", errs.ErrInvalidParameter, col, len(t.Cols))
	}

	c := t.Cols[col]
	cell := t.data[row*t.rowSize+t.offsets[col]:]
	if c.Type.Var {
		return t.decodeVarCell(c, cell)
	}

	return decodeFixedCell(c, cell)
}

func decodeFixedCell(c Column, cell []byte) (any, error) {
	switch c.Type.Code {
	case 'L':
		return cell[0] == 'T', nil
	case 'B':
		return cell[0], nil
	case 'I':
		return int16(engine.Uint16(cell)), nil
	case 'J':
		if c.Type.Repeat == 1 {
			return int32(engine.Uint32(cell)), nil
		}
		out := make([]int32, c.Type.Repeat)
		for i := range out {
			out[i] = int32(engine.Uint32(cell[4*i:]))
		}

		return out, nil
	case 'K':
		return int64(engine.Uint64(cell)), nil
	case 'E':
		if c.Type.Repeat == 1 {
			return f32frombits(engine.Uint32(cell)), nil
		}
		out := make([]float32, c.Type.Repeat)
		for i := range out {
			out[i] = f32frombits(engine.Uint32(cell[4*i:]))
		}

		return out, nil
	case 'D':
		if c.Type.Repeat == 1 {
			return f64frombits(engine.Uint64(cell)), nil
		}
		out := make([]float64, c.Type.Repeat)
		for i := range out {
			out[i] = f64frombits(engine.Uint64(cell[8*i:]))
		}

		return out, nil
	case 'A':
		raw := cell[:c.Type.Repeat]
		end := len(raw)
		for end > 0 && (raw[end-1] == 0 || raw[end-1] == ' ') {
			end--
		}

		return string(raw[:end]), nil
	default:
		return nil, fmt.Errorf("%w: code %q", errs.ErrInvalidTForm, c.Type.Code)
	}
}

func (t *BinTable) decodeVarCell(c Column, cell []byte) (any, error) {
	var count, offset int
	if c.Type.Wide {
		count = int(engine.Uint64(cell))
		offset = int(engine.Uint64(cell[8:]))
	} else {
		count = int(engine.Uint32(cell))
		offset = int(engine.Uint32(cell[4:]))
	}
	elem := elemSizes[c.Type.Code]
	end := offset + count*elem
	if end > len(t.heap) {
		return nil, fmt.Errorf("%w: heap descriptor (%d,%d) beyond heap of %d bytes",
			errs.ErrInvalidHeader, count, offset, len(t.heap))
	}
	payload := t.heap[offset:end]

	switch c.Type.Code {
	case 'J':
		out := make([]int32, count)
		for i := range out {
			out[i] = int32(engine.Uint32(payload[4*i:]))
		}

		return out, nil
	case 'E':
		out := make([]float32, count)
		for i := range out {
			out[i] = f32frombits(engine.Uint32(payload[4*i:]))
		}

		return out, nil
	case 'D':
		out := make([]float64, count)
		for i := range out {
			out[i] = f64frombits(engine.Uint64(payload[8*i:]))
		}

		return out, nil
	case 'U':
		out := make([]uint16, count)
		for i := range out {
			out[i] = engine.Uint16(payload[2*i:])
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: variable-length element code %q", errs.ErrInvalidTForm, c.Type.Code)
	}
}

// ColIndex returns the index of the named column, or -1.
func (t *BinTable) ColIndex(name string) int {
	for i, c := range t.Cols {
		if c.Name == name {
			return i
		}
	}

	return -1
}

func typeError(v any, want string) error {
	return fmt.Errorf("%w: got %T, want %s", errs.ErrKeyTypeMismatch, v, want)
}

func countError(got, want int) error {
	return fmt.Errorf("%w: %d elements, column holds %d", errs.ErrArraySizeMismatch, got, want)
}
