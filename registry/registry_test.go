package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conceptual-Machines/musicflow/models"
)

func testContent(name string, revision int) *models.TrackContent {
	content := models.NewTrackContent(name, 120, 4, 4, []models.Note{
		{MidiNoteNumber: 36, Velocity: 100, StartBeats: 0, DurationBeats: 1},
	}, "test prompt")
	content.Revision = revision
	return content
}

func TestPutAndContent(t *testing.T) {
	reg := New()

	assert.False(t, reg.Has("drums"))
	_, ok := reg.Content("drums")
	assert.False(t, ok)

	reg.Put(testContent("drums", 1))

	require.True(t, reg.Has("drums"))
	content, ok := reg.Content("drums")
	require.True(t, ok)
	assert.Equal(t, "drums", content.TrackName)
	assert.Equal(t, 1, content.Revision)
	assert.Equal(t, 1, reg.Len())
}

func TestContent_ReturnsCopy(t *testing.T) {
	reg := New()
	reg.Put(testContent("bass", 1))

	content, ok := reg.Content("bass")
	require.True(t, ok)
	content.Notes[0].MidiNoteNumber = 99

	again, _ := reg.Content("bass")
	assert.Equal(t, 36, again.Notes[0].MidiNoteNumber)
}

func TestPut_BoundBindingGoesStale(t *testing.T) {
	reg := New()
	reg.Put(testContent("drums", 1))
	require.NoError(t, reg.Bind("drums", ClipBinding{
		TrackIndex:         0,
		ClipIndex:          0,
		LastSyncedRevision: 1,
		State:              StateBound,
	}))

	reg.Put(testContent("drums", 2))

	entry, ok := reg.Get("drums")
	require.True(t, ok)
	assert.Equal(t, StateStale, entry.State())
	// The binding itself survives, only its state changes
	assert.Equal(t, 0, entry.Binding.TrackIndex)
	assert.Equal(t, 1, entry.Binding.LastSyncedRevision)
}

func TestPut_ManualBindingStaysManual(t *testing.T) {
	reg := New()
	reg.Put(testContent("lead", 1))
	require.NoError(t, reg.Bind("lead", ClipBinding{
		TrackIndex:         2,
		LastSyncedRevision: 1,
		State:              StateBoundManual,
	}))

	reg.Put(testContent("lead", 2))

	entry, _ := reg.Get("lead")
	assert.Equal(t, StateBoundManual, entry.State())
}

func TestBind_UnknownTrack(t *testing.T) {
	reg := New()
	err := reg.Bind("ghost", ClipBinding{State: StateBound})
	assert.Error(t, err)
}

func TestEntryState_DerivesUnbound(t *testing.T) {
	reg := New()
	reg.Put(testContent("pad", 1))

	entry, ok := reg.Get("pad")
	require.True(t, ok)
	assert.Equal(t, StateUnbound, entry.State())
}

func TestList_Sorted(t *testing.T) {
	reg := New()
	reg.Put(testContent("lead", 1))
	reg.Put(testContent("bass", 1))
	reg.Put(testContent("drums", 1))

	assert.Equal(t, []string{"bass", "drums", "lead"}, reg.List())
}

func TestNextTrackIndex_FirstUnused(t *testing.T) {
	reg := New()
	assert.Equal(t, 0, reg.NextTrackIndex())

	reg.Put(testContent("drums", 1))
	require.NoError(t, reg.Bind("drums", ClipBinding{TrackIndex: 0, State: StateBound}))
	assert.Equal(t, 1, reg.NextTrackIndex())

	reg.Put(testContent("bass", 1))
	require.NoError(t, reg.Bind("bass", ClipBinding{TrackIndex: 1, State: StateBound}))
	assert.Equal(t, 2, reg.NextTrackIndex())

	// Removing a middle entry frees its index for the next binding
	reg.Remove("drums")
	assert.Equal(t, 0, reg.NextTrackIndex())
}

func TestNextTrackIndex_IgnoresUnboundEntries(t *testing.T) {
	reg := New()
	reg.Put(testContent("drums", 1))
	reg.Put(testContent("bass", 1))

	assert.Equal(t, 0, reg.NextTrackIndex())
}

func TestRemove(t *testing.T) {
	reg := New()
	reg.Put(testContent("drums", 1))
	reg.Remove("drums")

	assert.False(t, reg.Has("drums"))
	assert.Equal(t, 0, reg.Len())
}
