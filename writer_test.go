package bmff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isomBrand() (brand [4]byte, version uint32, compatible [][4]byte) {
	return [4]byte{'i', 's', 'o', 'm'}, 0, [][4]byte{{'i', 's', 'o', 'm'}, {'m', 'p', '4', '1'}}
}

func TestMovieWriterRoundTripsThroughOpenMovie(t *testing.T) {
	sink := NewMemorySink()
	brand, ver, compat := isomBrand()
	w := NewMovieWriter(brand, ver, compat, 90000, sink, 0)

	trackId := w.AddTrack(TrackConfig{
		TrackId:        1,
		HandlerType:    HandlerVideo,
		HandlerName:    "VideoHandler",
		MediaTimescale: 90000,
		Width:          1920 << 16,
		Height:         1080 << 16,
	})

	payloads := [][]byte{
		{0x01, 0x02, 0x03},
		{0x04, 0x05, 0x06, 0x07},
		{0x08},
	}
	for i, p := range payloads {
		require.NoError(t, w.AddSample(trackId, p, 3000, 0, i == 0, SampleGroup{}))
	}

	w.AddEditListEntry(trackId, ElstEntry{TrackDuration: 9000, MediaTime: 0, MediaRate: [4]byte{0, 1, 0, 0}})

	out := NewMemoryOutput()
	require.NoError(t, w.Serialize(out))

	input := NewMemoryInput(out.Bytes())
	movie, err := OpenMovie(input)
	require.NoError(t, err)
	require.Len(t, movie.Tracks, 1)

	track := movie.Track(1)
	require.NotNil(t, track)
	assert.Equal(t, HandlerVideo, track.HandlerType)
	assert.Equal(t, uint32(90000), track.MediaTimescale)
	require.Equal(t, len(payloads), track.Len())

	for i, want := range payloads {
		sample, payload, err := track.SampleAt(i)
		require.NoError(t, err)
		assert.Equal(t, want, payload, "sample %d payload", i)
		assert.Equal(t, uint32(3000), sample.Duration)
		assert.Equal(t, i == 0, sample.IsSync)
	}

	info := movie.Info()
	assert.Equal(t, uint32(90000), info.Timescale)
	assert.Equal(t, uint32(2), info.NextTrackId)

	elstBox := movie.Moov.FindPath(TypeTrak, TypeEdts, TypeElst)
	require.NotNil(t, elstBox)
	require.Len(t, elstBox.Elst.Entries, 1)
	assert.Equal(t, int64(9000), elstBox.Elst.Entries[0].TrackDuration)
}

func TestMovieWriterAddUserData(t *testing.T) {
	sink := NewMemorySink()
	brand, ver, compat := isomBrand()
	w := NewMovieWriter(brand, ver, compat, 90000, sink, 0)
	trackId := w.AddTrack(TrackConfig{TrackId: 1, HandlerType: HandlerSound, MediaTimescale: 48000})
	require.NoError(t, w.AddSample(trackId, []byte{1}, 1024, 0, true, SampleGroup{}))

	w.AddUserData(0, &Box{Type: TypeMeta})

	out := NewMemoryOutput()
	require.NoError(t, w.Serialize(out))

	input := NewMemoryInput(out.Bytes())
	movie, err := OpenMovie(input)
	require.NoError(t, err)

	udta := movie.Moov.Child(TypeUdta)
	require.NotNil(t, udta, "movie-level udta must be attached directly under moov")
	meta := udta.Child(TypeMeta)
	require.NotNil(t, meta)
}

func TestFragmentedMovieWriterRoundTripsThroughFeedFragment(t *testing.T) {
	sink := NewMemorySink()
	brand, ver, compat := isomBrand()
	w := NewFragmentedMovieWriter(brand, ver, compat, 90000, sink)

	trackId := w.AddTrack(TrackConfig{
		TrackId:        1,
		HandlerType:    HandlerVideo,
		HandlerName:    "VideoHandler",
		MediaTimescale: 90000,
	})

	out := NewMemoryOutput()
	ftyp, moov := w.BuildInitSegment()
	require.NoError(t, WriteInitSegment(out, ftyp, moov))

	firstFragment := [][]byte{{0xAA, 0xBB}, {0xCC}}
	for _, p := range firstFragment {
		require.NoError(t, w.AddSample(trackId, p, 3000, 0, true, SampleGroup{}, 0))
	}
	_, err := w.FlushFragment(out)
	require.NoError(t, err)

	secondFragment := [][]byte{{0xDD, 0xEE, 0xFF}}
	for _, p := range secondFragment {
		require.NoError(t, w.AddSample(trackId, p, 3000, 0, true, SampleGroup{}, 0))
	}
	_, err = w.FlushFragment(out)
	require.NoError(t, err)

	input := NewMemoryInput(out.Bytes())
	movie, err := OpenMovie(input)
	require.NoError(t, err)
	require.Len(t, movie.Tracks, 1)

	sc := NewScanner(input)
	for sc.Next() {
		e := sc.Entry()
		if e.Type != TypeMoof {
			continue
		}
		_, err := movie.FeedFragment(e)
		require.NoError(t, err)
	}
	require.NoError(t, sc.Err())

	track := movie.Track(1)
	require.NotNil(t, track)
	want := append(append([][]byte{}, firstFragment...), secondFragment...)
	require.Equal(t, len(want), track.Len())
	for i, w := range want {
		_, payload, err := track.SampleAt(i)
		require.NoError(t, err)
		assert.Equal(t, w, payload, "fragment sample %d payload", i)
	}
}
