// Package image provides the pixel-plane collaborators of the detection
// layer: a generic flat-buffer Image, a bit-plane Mask with shared plane
// dictionaries, and the MaskedImage triple of image, mask and variance.
package image

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/lumensky/starcat/errs"
)

// MaxMaskPlanes is the number of bit planes a mask pixel can carry.
const MaxMaskPlanes = 32

// MaskDict maps symbolic mask-plane names to bit indices, with per-plane
// documentation.
//
// Dictionaries are shared between many masks. Adding a brand-new plane
// mutates the dictionary in place so every holder picks it up, which is what
// keeps independently constructed masks agreeing on bit assignments. Adding
// a plane whose name is already bound with a conflicting doc string instead
// returns a copy, so the holders of the original never observe the
// redefinition.
type MaskDict struct {
	mu     sync.Mutex
	planes map[string]int
	docs   map[string]string
}

// NewMaskDict creates an empty dictionary.
func NewMaskDict() *MaskDict {
	return &MaskDict{
		planes: make(map[string]int),
		docs:   make(map[string]string),
	}
}

var (
	defaultDictOnce sync.Once
	defaultDict     *MaskDict
)

// DefaultMaskDict returns the process-wide dictionary that newly created
// masks share. Planes added through it are visible to every mask that has
// not diverged via a conflicting redefinition.
func DefaultMaskDict() *MaskDict {
	defaultDictOnce.Do(func() {
		defaultDict = NewMaskDict()
		// Conventional planes present on every fresh mask.
		for _, p := range []struct{ name, doc string }{
			{"BAD", "pixel is physically bad (hardware defect)"},
			{"SAT", "pixel is saturated"},
			{"INTRP", "pixel has been interpolated over"},
			{"CR", "pixel is contaminated by a cosmic ray"},
			{"EDGE", "pixel is too close to the edge to be measured"},
			{"DETECTED", "pixel lies within a detection footprint"},
		} {
			defaultDict.planes[p.name] = len(defaultDict.planes)
			defaultDict.docs[p.name] = p.doc
		}
	})

	return defaultDict
}

// Add binds name to a bit plane and returns the dictionary holding the
// binding together with the bit index.
//
// Semantics:
//   - name already bound with the same doc (or an empty doc argument):
//     the existing binding is reused.
//   - name already bound with an empty stored doc: the doc is filled in
//     and the binding reused.
//   - name already bound with a different non-empty doc: a copy of the
//     dictionary with the new doc is returned; the receiver is untouched.
//   - name unbound: the lowest free bit is assigned in place, so every
//     holder of this dictionary sees the new plane.
func (d *MaskDict) Add(name, doc string) (*MaskDict, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if bit, ok := d.planes[name]; ok {
		existing := d.docs[name]
		switch {
		case doc == "" || existing == doc:
			return d, bit, nil
		case existing == "":
			d.docs[name] = doc

			return d, bit, nil
		default:
			cp := d.cloneLocked()
			cp.docs[name] = doc

			return cp, bit, nil
		}
	}

	bit, err := d.freeBitLocked()
	if err != nil {
		return nil, 0, err
	}
	d.planes[name] = bit
	d.docs[name] = doc

	return d, bit, nil
}

// Get returns the bit index bound to name.
func (d *MaskDict) Get(name string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	bit, ok := d.planes[name]
	if !ok {
		return 0, fmt.Errorf("%w: mask plane %q", errs.ErrMaskPlaneNotFound, name)
	}

	return bit, nil
}

// Bitmask returns the pixel bitmask selecting the named plane.
func (d *MaskDict) Bitmask(name string) (uint32, error) {
	bit, err := d.Get(name)
	if err != nil {
		return 0, err
	}

	return uint32(1) << uint(bit), nil
}

// Doc returns the documentation string of the named plane ("" if the plane
// does not exist or is undocumented).
func (d *MaskDict) Doc(name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.docs[name]
}

// Remove unbinds a plane, freeing its bit for reuse. The holder's pixels are
// not cleared; callers wanting that must clear the plane first.
func (d *MaskDict) Remove(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.planes[name]; !ok {
		return fmt.Errorf("%w: mask plane %q", errs.ErrMaskPlaneNotFound, name)
	}
	delete(d.planes, name)
	delete(d.docs, name)

	return nil
}

// Len returns the number of bound planes.
func (d *MaskDict) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.planes)
}

// Names returns the plane names ordered by bit index.
func (d *MaskDict) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.planes))
	for n := range d.planes {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return d.planes[names[i]] < d.planes[names[j]] })

	return names
}

// Hash returns a content hash over the name→bit→doc bindings; equal
// dictionaries hash equal regardless of insertion order.
func (d *MaskDict) Hash() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.planes))
	for n := range d.planes {
		names = append(names, n)
	}
	sort.Strings(names)

	h := xxhash.New()
	for _, n := range names {
		_, _ = h.WriteString(n)
		_, _ = h.Write([]byte{0, byte(d.planes[n])})
		_, _ = h.WriteString(d.docs[n])
		_, _ = h.Write([]byte{0xFF})
	}

	return h.Sum64()
}

// Equal reports whether two dictionaries carry identical bindings.
func (d *MaskDict) Equal(other *MaskDict) bool {
	if d == other {
		return true
	}

	return d.Hash() == other.Hash()
}

// Clone returns an independent copy sharing no state.
func (d *MaskDict) Clone() *MaskDict {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cloneLocked()
}

func (d *MaskDict) cloneLocked() *MaskDict {
	cp := NewMaskDict()
	for n, b := range d.planes {
		cp.planes[n] = b
	}
	for n, doc := range d.docs {
		cp.docs[n] = doc
	}

	return cp
}

// freeBitLocked finds the lowest bit index not bound by any plane.
func (d *MaskDict) freeBitLocked() (int, error) {
	var used uint32
	for _, b := range d.planes {
		used |= 1 << uint(b)
	}
	for bit := 0; bit < MaxMaskPlanes; bit++ {
		if used&(1<<uint(bit)) == 0 {
			return bit, nil
		}
	}

	return 0, fmt.Errorf("%w: all %d mask planes are in use", errs.ErrMaskPlaneConflict, MaxMaskPlanes)
}
