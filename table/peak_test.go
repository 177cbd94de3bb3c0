package table

import (
	"testing"

	"github.com/lumensky/starcat/errs"
	"github.com/stretchr/testify/require"
)

func TestPeakMinimalSchema(t *testing.T) {
	s := PeakMinimalSchema()

	for _, name := range []string{"id", "i.x", "i.y", "f.x", "f.y", "peakValue"} {
		_, err := s.Find(name)
		require.NoError(t, err, "minimal schema must define %q", name)
	}
	require.True(t, CheckPeakSchema(s))

	// Extending a copy keeps it a valid peak schema.
	_, err := s.AddField("significance", TypeF32, "", "")
	require.NoError(t, err)
	require.True(t, CheckPeakSchema(s))
}

func TestMakePeakTable_RejectsNonPeakSchema(t *testing.T) {
	s := NewSchema()
	_, err := s.AddField("x", TypeF64, "", "")
	require.NoError(t, err)

	_, err = MakePeakTable(s, false)
	require.ErrorIs(t, err, errs.ErrSchemaMismatch)
}

func TestMakePeakTable_Cache(t *testing.T) {
	s := PeakMinimalSchema()
	_, err := s.AddField("extra.cache.probe", TypeF32, "", "")
	require.NoError(t, err)

	t1, err := MakePeakTable(s, false)
	require.NoError(t, err)
	t2, err := MakePeakTable(s.Clone(), false)
	require.NoError(t, err)
	require.Same(t, t1, t2, "equal schemas share one cached table")

	t3, err := MakePeakTable(s.Clone(), true)
	require.NoError(t, err)
	require.NotSame(t, t1, t3, "forceNew bypasses the cache")
}

func TestPeakCatalog_AddNew(t *testing.T) {
	pc := NewMinimalPeakCatalog()

	p1 := pc.AddNew()
	p1.SetIx(3)
	p1.SetIy(4)
	p1.SetFx(3.0)
	p1.SetFy(4.0)
	p1.SetPeakValue(10.5)

	p2 := pc.AddNew()
	p2.SetPeakValue(20.5)

	require.Equal(t, 2, pc.Len())
	require.Greater(t, p2.GetId(), p1.GetId(), "ids are assigned in increasing order")

	got := pc.PeakAt(0)
	require.Equal(t, 3, got.GetIx())
	require.Equal(t, 4, got.GetIy())
	require.Equal(t, float32(10.5), got.GetPeakValue())
}
