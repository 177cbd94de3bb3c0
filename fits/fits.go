// Package fits implements the subset of the FITS standard needed to
// persist catalog data: 2880-byte block framing, header cards, and binary
// table (BINTABLE) extensions including variable-length array columns.
//
// Payloads are big-endian per the standard. The package also reads and
// writes gzip-compressed streams (.fits.gz) transparently.
package fits

import (
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/gzip"

	"github.com/lumensky/starcat/errs"
	"github.com/lumensky/starcat/internal/pool"
)

func f32bits(f float32) uint32     { return math.Float32bits(f) }
func f32frombits(b uint32) float32 { return math.Float32frombits(b) }
func f64bits(f float64) uint64     { return math.Float64bits(f) }
func f64frombits(b uint64) float64 { return math.Float64frombits(b) }

// HDU is one header/data unit: the parsed header plus, for BINTABLE
// extensions, the decoded table.
type HDU struct {
	Header *Header
	Table  *BinTable
}

// WritePrimary writes a minimal dataless primary HDU carrying the given
// extra cards (which may be nil).
func WritePrimary(w io.Writer, extra *Header) error {
	h := NewHeader()
	h.Append("SIMPLE", true, "conforms to FITS standard")
	h.Append("BITPIX", int64(8), "array data type")
	h.Append("NAXIS", int64(0), "number of array dimensions")
	h.Append("EXTEND", true, "")
	if extra != nil {
		h.cards = append(h.cards, extra.cards...)
	}

	raw, err := h.Bytes()
	if err != nil {
		return err
	}
	_, err = w.Write(raw)

	return err
}

// WriteBinTable writes a BINTABLE extension HDU. Structural cards are
// generated from the table; extra cards (which may be nil) follow them.
func WriteBinTable(w io.Writer, t *BinTable, extra *Header) error {
	h := NewHeader()
	h.Append("XTENSION", "BINTABLE", "binary table extension")
	h.Append("BITPIX", int64(8), "array data type")
	h.Append("NAXIS", int64(2), "number of array dimensions")
	h.Append("NAXIS1", int64(t.rowSize), "length of dimension 1")
	h.Append("NAXIS2", int64(t.nRows), "length of dimension 2")
	h.Append("PCOUNT", int64(len(t.heap)), "number of group parameters")
	h.Append("GCOUNT", int64(1), "number of groups")
	h.Append("THEAP", int64(t.rowSize*t.nRows), "heap starts after table data")
	h.Append("TFIELDS", int64(len(t.Cols)), "number of table fields")
	for i, col := range t.Cols {
		n := i + 1
		h.Append(fmt.Sprintf("TTYPE%d", n), col.Name, col.Doc)
		h.Append(fmt.Sprintf("TFORM%d", n), col.Type.TForm(), "")
		if col.Unit != "" {
			h.Append(fmt.Sprintf("TUNIT%d", n), col.Unit, "")
		}
	}
	if extra != nil {
		h.cards = append(h.cards, extra.cards...)
	}

	raw, err := h.Bytes()
	if err != nil {
		return err
	}

	buf := pool.GetHDUBuffer()
	defer pool.PutHDUBuffer(buf)
	buf.Write(raw)
	buf.Write(t.data)
	buf.Write(t.heap)
	if pad := len(t.data) + len(t.heap); pad%BlockSize != 0 {
		buf.Write(make([]byte, BlockSize-pad%BlockSize))
	}
	_, err = w.Write(buf.Bytes())

	return err
}

// readBinTable decodes the data blocks of a BINTABLE extension described by
// its header.
func readBinTable(r io.Reader, h *Header) (*BinTable, error) {
	rowSize, ok := h.GetInt("NAXIS1")
	if !ok {
		return nil, fmt.Errorf("%w: BINTABLE without NAXIS1", errs.ErrInvalidHeader)
	}
	nRows, ok := h.GetInt("NAXIS2")
	if !ok {
		return nil, fmt.Errorf("%w: BINTABLE without NAXIS2", errs.ErrInvalidHeader)
	}
	heapSize, _ := h.GetInt("PCOUNT")
	nFields, ok := h.GetInt("TFIELDS")
	if !ok {
		return nil, fmt.Errorf("%w: BINTABLE without TFIELDS", errs.ErrInvalidHeader)
	}

	cols := make([]Column, nFields)
	for i := range cols {
		n := i + 1
		name, _ := h.GetString(fmt.Sprintf("TTYPE%d", n))
		tform, ok := h.GetString(fmt.Sprintf("TFORM%d", n))
		if !ok {
			return nil, fmt.Errorf("%w: missing TFORM%d", errs.ErrInvalidHeader, n)
		}
		ct, err := ParseTForm(tform)
		if err != nil {
			return nil, err
		}
		unit, _ := h.GetString(fmt.Sprintf("TUNIT%d", n))
		cols[i] = Column{Name: name, Type: ct, Unit: unit}
	}

	t := NewBinTable(cols)
	if t.rowSize != int(rowSize) {
		return nil, fmt.Errorf("%w: NAXIS1 %d does not match TFORM row size %d",
			errs.ErrInvalidHeader, rowSize, t.rowSize)
	}

	heapStart := int(rowSize) * int(nRows)
	if v, ok := h.GetInt("THEAP"); ok {
		heapStart = int(v)
	}
	total := heapStart + int(heapSize)
	nBlocks := (total + BlockSize - 1) / BlockSize
	raw := make([]byte, nBlocks*BlockSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: reading table data: %v", errs.ErrInvalidHeader, err)
	}

	t.data = raw[:int(rowSize)*int(nRows)]
	t.heap = raw[heapStart:total]
	t.nRows = int(nRows)

	return t, nil
}

// ReadAll parses every HDU from a FITS stream, gunzipping transparently.
func ReadAll(r io.Reader) ([]*HDU, error) {
	r, err := maybeGunzip(r)
	if err != nil {
		return nil, err
	}

	var hdus []*HDU
	for {
		h, err := ReadHeader(r)
		if err != nil {
			if len(hdus) > 0 && err == io.EOF {
				return hdus, nil
			}

			return nil, err
		}

		hdu := &HDU{Header: h}
		if xt, _ := h.GetString("XTENSION"); xt == "BINTABLE" {
			t, err := readBinTable(r, h)
			if err != nil {
				return nil, err
			}
			hdu.Table = t
		} else if err := skipData(r, h); err != nil {
			return nil, err
		}
		hdus = append(hdus, hdu)
	}
}

// skipData consumes the (padded) data section of a non-table HDU.
func skipData(r io.Reader, h *Header) error {
	bitpix, _ := h.GetInt("BITPIX")
	naxis, _ := h.GetInt("NAXIS")
	size := 1
	for i := int64(1); i <= naxis; i++ {
		n, ok := h.GetInt(fmt.Sprintf("NAXIS%d", i))
		if !ok {
			return fmt.Errorf("%w: missing NAXIS%d", errs.ErrInvalidHeader, i)
		}
		size *= int(n)
	}
	if naxis == 0 {
		size = 0
	}
	size *= int(abs64(bitpix)) / 8
	if size == 0 {
		return nil
	}
	nBlocks := (size + BlockSize - 1) / BlockSize
	_, err := io.CopyN(io.Discard, r, int64(nBlocks*BlockSize))

	return err
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}

	return v
}

// maybeGunzip sniffs the gzip magic and wraps the reader when present.
func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := newPeekReader(r)
	magic, err := br.peek(2)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidHeader, err)
	}
	if magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(br)
	}

	return br, nil
}

// GzipWriter wraps w for writing a .fits.gz stream; callers must Close it
// to flush the trailing gzip frame.
func GzipWriter(w io.Writer) *gzip.Writer {
	return gzip.NewWriter(w)
}

// peekReader is a minimal buffered reader supporting a 2-byte lookahead.
type peekReader struct {
	r   io.Reader
	buf []byte
}

func newPeekReader(r io.Reader) *peekReader { return &peekReader{r: r} }

func (p *peekReader) peek(n int) ([]byte, error) {
	for len(p.buf) < n {
		tmp := make([]byte, n-len(p.buf))
		m, err := io.ReadAtLeast(p.r, tmp, len(tmp))
		p.buf = append(p.buf, tmp[:m]...)
		if err != nil {
			return nil, err
		}
	}

	return p.buf[:n], nil
}

func (p *peekReader) Read(b []byte) (int, error) {
	if len(p.buf) > 0 {
		n := copy(b, p.buf)
		p.buf = p.buf[n:]

		return n, nil
	}

	return p.r.Read(b)
}
