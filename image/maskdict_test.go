package image

import (
	"testing"

	"github.com/lumensky/starcat/errs"
	"github.com/stretchr/testify/require"
)

func TestMaskDict_Add(t *testing.T) {
	d := NewMaskDict()

	d2, bit, err := d.Add("BRIGHT", "bright object")
	require.NoError(t, err)
	require.Same(t, d, d2, "new planes are added in place")
	require.Equal(t, 0, bit)

	d3, bit2, err := d.Add("FAINT", "faint object")
	require.NoError(t, err)
	require.Same(t, d, d3)
	require.Equal(t, 1, bit2)
}

func TestMaskDict_AddReuse(t *testing.T) {
	d := NewMaskDict()
	_, bit, err := d.Add("BRIGHT", "bright object")
	require.NoError(t, err)

	t.Run("Same doc reuses binding", func(t *testing.T) {
		d2, bit2, err := d.Add("BRIGHT", "bright object")
		require.NoError(t, err)
		require.Same(t, d, d2)
		require.Equal(t, bit, bit2)
	})

	t.Run("Empty doc argument reuses binding", func(t *testing.T) {
		d2, bit2, err := d.Add("BRIGHT", "")
		require.NoError(t, err)
		require.Same(t, d, d2)
		require.Equal(t, bit, bit2)
	})

	t.Run("Fill-in of empty stored doc", func(t *testing.T) {
		dd := NewMaskDict()
		_, _, err := dd.Add("PLANE", "")
		require.NoError(t, err)
		d2, _, err := dd.Add("PLANE", "now documented")
		require.NoError(t, err)
		require.Same(t, dd, d2)
		require.Equal(t, "now documented", dd.Doc("PLANE"))
	})
}

func TestMaskDict_ConflictCopies(t *testing.T) {
	d := NewMaskDict()
	_, bit, err := d.Add("BRIGHT", "original doc")
	require.NoError(t, err)

	d2, bit2, err := d.Add("BRIGHT", "different doc")
	require.NoError(t, err)
	require.NotSame(t, d, d2, "conflicting doc must not mutate shared state")
	require.Equal(t, bit, bit2, "the bit assignment survives the copy")
	require.Equal(t, "original doc", d.Doc("BRIGHT"))
	require.Equal(t, "different doc", d2.Doc("BRIGHT"))
}

func TestMaskDict_BitReuseAfterRemove(t *testing.T) {
	d := NewMaskDict()
	_, _, err := d.Add("A", "")
	require.NoError(t, err)
	_, bitB, err := d.Add("B", "")
	require.NoError(t, err)

	require.NoError(t, d.Remove("A"))
	_, bitC, err := d.Add("C", "")
	require.NoError(t, err)
	require.Equal(t, 0, bitC, "the freed bit is reused")
	require.Equal(t, 1, bitB)

	require.ErrorIs(t, d.Remove("A"), errs.ErrMaskPlaneNotFound)
}

func TestMaskDict_Exhaustion(t *testing.T) {
	d := NewMaskDict()
	for i := 0; i < MaxMaskPlanes; i++ {
		_, _, err := d.Add(planeName(i), "")
		require.NoError(t, err)
	}

	_, _, err := d.Add("ONEMORE", "")
	require.ErrorIs(t, err, errs.ErrMaskPlaneConflict)
}

func planeName(i int) string {
	return "P" + string(rune('A'+i/26)) + string(rune('A'+i%26))
}

func TestMaskDict_HashAndEqual(t *testing.T) {
	a := NewMaskDict()
	b := NewMaskDict()
	for _, d := range []*MaskDict{a, b} {
		_, _, err := d.Add("X", "xdoc")
		require.NoError(t, err)
		_, _, err = d.Add("Y", "ydoc")
		require.NoError(t, err)
	}
	require.True(t, a.Equal(b))
	require.Equal(t, a.Hash(), b.Hash())

	_, _, err := b.Add("Z", "")
	require.NoError(t, err)
	require.False(t, a.Equal(b))
}

func TestMaskDict_Names(t *testing.T) {
	d := NewMaskDict()
	for _, n := range []string{"FIRST", "SECOND", "THIRD"} {
		_, _, err := d.Add(n, "")
		require.NoError(t, err)
	}
	require.Equal(t, []string{"FIRST", "SECOND", "THIRD"}, d.Names())
}

func TestDefaultMaskDict_Propagation(t *testing.T) {
	m1 := NewMask(boxForTest())
	m2 := NewMask(boxForTest())

	// Both masks share the process-wide dictionary: a plane added through
	// one is visible to the other.
	bit, err := m1.AddMaskPlane("SHAREDPLANE", "propagation probe")
	require.NoError(t, err)

	got, err := m2.Dict().Get("SHAREDPLANE")
	require.NoError(t, err)
	require.Equal(t, bit, got)

	// A conflicting redefinition diverges only the redefining mask.
	_, err = m2.AddMaskPlane("SHAREDPLANE", "conflicting doc")
	require.NoError(t, err)
	require.NotSame(t, m1.Dict(), m2.Dict())
	require.Equal(t, "propagation probe", m1.Dict().Doc("SHAREDPLANE"))
	require.Equal(t, "conflicting doc", m2.Dict().Doc("SHAREDPLANE"))
}
