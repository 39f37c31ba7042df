package bmff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMvhdVersion0RoundTrip(t *testing.T) {
	box := &Box{Type: TypeMvhd, Mvhd: &Mvhd{
		TimeScale:     600,
		Duration:      12000,
		PreferredRate: [4]byte{0, 1, 0, 0},
		NextTrackId:   3,
	}}

	size := EncodingLength(box)
	assert.Equal(t, int64(8+4+96), size, "v0 mvhd: 8-byte header + 4-byte FullBox header + 96-byte payload")
	buf := make([]byte, size)
	_, err := EncodeBox(box, buf, 0)
	require.NoError(t, err)

	decoded, err := Decode(buf, 0, len(buf))
	require.NoError(t, err)
	require.NotNil(t, decoded.Mvhd)
	assert.False(t, decoded.Mvhd.V1)
	assert.Equal(t, uint32(600), decoded.Mvhd.TimeScale)
	assert.Equal(t, uint64(12000), decoded.Mvhd.Duration)
	assert.Equal(t, uint32(3), decoded.Mvhd.NextTrackId)
}

func TestEncodeDecodeMvhdVersion1RoundTrip(t *testing.T) {
	box := &Box{Type: TypeMvhd, Version: 1, Mvhd: &Mvhd{
		V1:          true,
		TimeScale:   90000,
		Duration:    1<<32 + 7, // exceeds 32 bits, the reason a v1 mvhd is needed
		NextTrackId: 2,
	}}

	size := EncodingLength(box)
	assert.Equal(t, int64(8+4+108), size, "v1 mvhd: 8-byte header + 4-byte FullBox header + 108-byte payload")
	buf := make([]byte, size)
	_, err := EncodeBox(box, buf, 0)
	require.NoError(t, err)

	decoded, err := Decode(buf, 0, len(buf))
	require.NoError(t, err)
	require.NotNil(t, decoded.Mvhd)
	assert.True(t, decoded.Mvhd.V1)
	assert.Equal(t, uint64(1<<32+7), decoded.Mvhd.Duration)
	assert.Equal(t, uint32(2), decoded.Mvhd.NextTrackId)
}

func TestEncodeDecodeTkhdVersion0RoundTrip(t *testing.T) {
	box := &Box{Type: TypeTkhd, Tkhd: &Tkhd{
		TrackId:     1,
		Duration:    5000,
		Layer:       1,
		TrackWidth:  1920 << 16,
		TrackHeight: 1080 << 16,
	}}

	size := EncodingLength(box)
	assert.Equal(t, int64(8+4+80), size)
	buf := make([]byte, size)
	_, err := EncodeBox(box, buf, 0)
	require.NoError(t, err)

	decoded, err := Decode(buf, 0, len(buf))
	require.NoError(t, err)
	require.NotNil(t, decoded.Tkhd)
	assert.False(t, decoded.Tkhd.V1)
	assert.Equal(t, uint32(1), decoded.Tkhd.TrackId)
	assert.Equal(t, uint64(5000), decoded.Tkhd.Duration)
}

func TestEncodeDecodeTkhdVersion1RoundTrip(t *testing.T) {
	box := &Box{Type: TypeTkhd, Version: 1, Tkhd: &Tkhd{
		V1:       true,
		TrackId:  4,
		Duration: 1<<32 + 99,
	}}

	size := EncodingLength(box)
	assert.Equal(t, int64(8+4+92), size)
	buf := make([]byte, size)
	_, err := EncodeBox(box, buf, 0)
	require.NoError(t, err)

	decoded, err := Decode(buf, 0, len(buf))
	require.NoError(t, err)
	require.NotNil(t, decoded.Tkhd)
	assert.True(t, decoded.Tkhd.V1)
	assert.Equal(t, uint32(4), decoded.Tkhd.TrackId)
	assert.Equal(t, uint64(1<<32+99), decoded.Tkhd.Duration)
}
