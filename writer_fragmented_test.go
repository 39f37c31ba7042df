package bmff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWriteFragmentComputesSapDeltaTimeFromEarliestPTS exercises a fragment
// whose decode-order first sample is NOT the one with the earliest
// presentation time (it carries a negative composition offset pushing a
// later sample's PTS earlier), and whose earliest-PTS sample is not itself
// a sync sample. sap_delta_time must reflect the gap to the first sync
// sample's PTS at or after that earliest PTS, not simply be zero.
func TestWriteFragmentComputesSapDeltaTimeFromEarliestPTS(t *testing.T) {
	sink := NewMemorySink()
	store := NewStore(sink, 0)
	store.AddTrack(1, 90000)

	samples := []StoredSample{
		{TrackId: 1, Size: 1, Duration: 1000, CompositionOffset: 2000, IsSync: false},
		{TrackId: 1, Size: 1, Duration: 1000, CompositionOffset: -1500, IsSync: false},
		{TrackId: 1, Size: 1, Duration: 1000, CompositionOffset: 0, IsSync: true},
	}
	for i, s := range samples {
		require.NoError(t, store.AddSample(1, []byte{byte(i)}, s.Duration, s.CompositionOffset, s.IsSync, 0, SampleGroup{}))
	}
	for i := range samples {
		samples[i].Offset = int64(i)
	}

	out := NewMemoryOutput()
	info, err := WriteFragment(out, 1, []FragmentTrackBuild{{TrackId: 1, Samples: samples}}, store)
	require.NoError(t, err)

	// Decode order DTS: 0, 1000, 2000. PTS = DTS+CompositionOffset:
	// sample0 PTS=2000, sample1 PTS=-500 (earliest), sample2 PTS=2000 (sync).
	// Earliest-PTS sample (sample1) is not sync, so the fragment does not
	// start with SAP; sap_delta_time is the gap from that earliest PTS to
	// the first sync sample's PTS: 2000 - (-500) = 2500.
	assert.False(t, info.StartsWithSAP)
	assert.Equal(t, uint32(2500), info.SAPDeltaTime)
}

func TestWriteFragmentStartingWithSapHasZeroDelta(t *testing.T) {
	sink := NewMemorySink()
	store := NewStore(sink, 0)
	store.AddTrack(1, 90000)

	samples := []StoredSample{
		{TrackId: 1, Size: 1, Duration: 1000, IsSync: true},
		{TrackId: 1, Size: 1, Duration: 1000, IsSync: false},
	}
	for i, s := range samples {
		require.NoError(t, store.AddSample(1, []byte{byte(i)}, s.Duration, s.CompositionOffset, s.IsSync, 0, SampleGroup{}))
	}

	out := NewMemoryOutput()
	info, err := WriteFragment(out, 1, []FragmentTrackBuild{{TrackId: 1, Samples: samples}}, store)
	require.NoError(t, err)

	assert.True(t, info.StartsWithSAP)
	assert.Equal(t, uint32(0), info.SAPDeltaTime)
}

func TestBuildSidxThreadsSapDeltaTimeIntoReferences(t *testing.T) {
	segments := []FragmentInfo{
		{Size: 1000, Duration: 90000, StartsWithSAP: false, SAPType: 1, SAPDeltaTime: 2500},
	}
	sidxBox := BuildSidx(1, 90000, 0, 0, segments)
	require.NotNil(t, sidxBox.Sidx)
	require.Len(t, sidxBox.Sidx.References, 1)
	assert.Equal(t, uint32(2500), sidxBox.Sidx.References[0].SAPDeltaTime)

	size := EncodingLength(sidxBox)
	buf := make([]byte, size)
	_, err := EncodeBox(sidxBox, buf, 0)
	require.NoError(t, err)

	decoded, err := Decode(buf, 0, len(buf))
	require.NoError(t, err)
	require.Len(t, decoded.Sidx.References, 1)
	assert.Equal(t, uint32(2500), decoded.Sidx.References[0].SAPDeltaTime)
	assert.False(t, decoded.Sidx.References[0].StartsWithSAP)
	assert.Equal(t, byte(1), decoded.Sidx.References[0].SAPType)
}
