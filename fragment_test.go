package bmff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTrexMap(t *testing.T) {
	moov := &Box{Type: TypeMoov}
	mvex := &Box{Type: TypeMvex}
	mvex.AddChild(&Box{Type: TypeTrex, Trex: &Trex{TrackId: 1, DefaultSampleDuration: 512}})
	mvex.AddChild(&Box{Type: TypeTrex, Trex: &Trex{TrackId: 2, DefaultSampleDuration: 1024}})
	moov.AddChild(mvex)

	trex := BuildTrexMap(moov)
	require.Len(t, trex, 2)
	assert.Equal(t, uint32(512), trex[1].DefaultSampleDuration)
	assert.Equal(t, uint32(1024), trex[2].DefaultSampleDuration)
}

func TestDecodeFragmentResolvesDefaultBaseIsMoof(t *testing.T) {
	trex := map[uint32]*Trex{
		1: {TrackId: 1, DefaultSampleDuration: 512, DefaultSampleSize: 1000, DefaultSampleFlags: sampleFlagIsNonSync},
	}

	moof := &Box{Type: TypeMoof}
	moof.AddChild(&Box{Type: TypeMfhd, Mfhd: &Mfhd{SequenceNumber: 7}})

	traf := &Box{Type: TypeTraf}
	traf.AddChild(&Box{Type: TypeTfhd, Flags: TfhdDefaultBaseIsMoof, Tfhd: &Tfhd{TrackId: 1}})
	traf.AddChild(&Box{Type: TypeTfdt, Version: 1, Tfdt: &Tfdt{BaseMediaDecodeTime: 90000}})
	traf.AddChild(&Box{
		Type:  TypeTrun,
		Flags: TrunDataOffsetPresent | TrunSampleFlagsPresent,
		Trun: &Trun{
			DataOffset: 200,
			Entries: []TrunEntry{
				{SampleFlags: 0}, // overrides default flags: sync
				{SampleFlags: sampleFlagIsNonSync},
				{SampleFlags: sampleFlagIsNonSync},
			},
		},
	})
	moof.AddChild(traf)

	const moofStart int64 = 1000
	out, err := DecodeFragment(moof, moofStart, trex)
	require.NoError(t, err)

	samples := out[1]
	require.Len(t, samples, 3)

	assert.Equal(t, moofStart+200, samples[0].Offset)
	assert.Equal(t, moofStart+200+1000, samples[1].Offset)
	assert.Equal(t, moofStart+200+2000, samples[2].Offset)

	assert.Equal(t, int64(90000), samples[0].DTS)
	assert.Equal(t, int64(90512), samples[1].DTS)
	assert.Equal(t, int64(91024), samples[2].DTS)

	assert.True(t, samples[0].IsSync)
	assert.False(t, samples[1].IsSync)
	assert.False(t, samples[2].IsSync)

	for _, s := range samples {
		assert.Equal(t, uint32(512), s.Duration, "duration falls back to trex default")
		assert.Equal(t, uint32(1000), s.Size, "size falls back to trex default")
		assert.Equal(t, uint32(7), s.FragmentNumber)
	}
}

func TestDecodeFragmentMissingMfhdIsError(t *testing.T) {
	moof := &Box{Type: TypeMoof}
	_, err := DecodeFragment(moof, 0, map[uint32]*Trex{})
	require.Error(t, err)
}
