package table

import (
	"fmt"
	"math"

	"github.com/lumensky/starcat/errs"
)

// RecordID is the type of unique record identifiers.
type RecordID = int64

// IdFactory generates unique ids for records in a table.
//
// Implementations are not safe for concurrent use; each table owns its
// factory.
type IdFactory interface {
	// Next returns the next unused id.
	Next() (RecordID, error)

	// Notify informs the factory that id has been used, e.g. when ingesting
	// externally numbered records, so future Next calls do not collide.
	Notify(id RecordID) error

	// Clone returns an independent copy with the same state.
	Clone() IdFactory
}

// simpleIdFactory hands out sequential ids starting at 1.
type simpleIdFactory struct {
	current RecordID
}

// NewSimpleIdFactory returns a factory producing 1, 2, 3, ...
func NewSimpleIdFactory() IdFactory {
	return &simpleIdFactory{}
}

func (f *simpleIdFactory) Next() (RecordID, error) {
	f.current++

	return f.current, nil
}

func (f *simpleIdFactory) Notify(id RecordID) error {
	f.current = id

	return nil
}

func (f *simpleIdFactory) Clone() IdFactory {
	cp := *f

	return &cp
}

// sourceIdFactory partitions the id space: the upper bits carry a fixed
// exposure id and the low `reserved` bits carry a per-record sequence.
type sourceIdFactory struct {
	upper     RecordID
	upperMask RecordID
	lower     RecordID
}

// NewSourceIdFactory returns a factory whose ids embed expID in the bits
// above the reserved low bits. It fails with errs.ErrInvalidParameter when
// expID does not fit in the unreserved bits.
func NewSourceIdFactory(expID RecordID, reserved int) (IdFactory, error) {
	if reserved <= 0 || reserved >= 64 {
		return nil, fmt.Errorf("%w: reserved bit count %d", errs.ErrInvalidParameter, reserved)
	}
	upper := expID << uint(reserved)
	if upper>>uint(reserved) != expID {
		return nil, fmt.Errorf("%w: exposure id %d is too large for %d reserved bits",
			errs.ErrInvalidParameter, expID, reserved)
	}

	return &sourceIdFactory{
		upper:     upper,
		upperMask: RecordID(uint64(math.MaxUint64) << uint(reserved)),
		lower:     0,
	}, nil
}

func (f *sourceIdFactory) Next() (RecordID, error) {
	f.lower++
	if f.lower&f.upperMask != 0 {
		f.lower--

		return 0, fmt.Errorf("%w: next id %d is too large for the number of reserved bits",
			errs.ErrIDOverflow, f.lower+1)
	}

	return f.upper | f.lower, nil
}

func (f *sourceIdFactory) Notify(id RecordID) error {
	lower := id &^ f.upper
	if lower&f.upperMask != 0 {
		return fmt.Errorf("%w: explicit id %d does not have the correct form",
			errs.ErrInvalidParameter, id)
	}
	f.lower = lower

	return nil
}

func (f *sourceIdFactory) Clone() IdFactory {
	cp := *f

	return &cp
}
