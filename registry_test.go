package bmff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFtypRoundTrip(t *testing.T) {
	box := &Box{Type: TypeFtyp, Ftyp: &Ftyp{
		Brand:            [4]byte{'i', 's', 'o', 'm'},
		BrandVersion:     512,
		CompatibleBrands: [][4]byte{{'i', 's', 'o', 'm'}, {'m', 'p', '4', '1'}},
	}}

	size := EncodingLength(box)
	buf := make([]byte, size)
	n, err := EncodeBox(box, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int(size), n)

	decoded, err := Decode(buf, 0, len(buf))
	require.NoError(t, err)
	require.NotNil(t, decoded.Ftyp)
	assert.Equal(t, box.Ftyp.Brand, decoded.Ftyp.Brand)
	assert.Equal(t, box.Ftyp.BrandVersion, decoded.Ftyp.BrandVersion)
	assert.Equal(t, box.Ftyp.CompatibleBrands, decoded.Ftyp.CompatibleBrands)
}

func TestDecodeBoxSizeZeroExtendsToBufferEnd(t *testing.T) {
	buf := make([]byte, 24)
	be.PutUint32(buf[0:4], 0) // size == 0: extends to end of containing structure
	copy(buf[4:8], TypeMdat[:])

	box, err := Decode(buf, 0, len(buf))
	require.NoError(t, err)
	assert.Equal(t, int64(len(buf)), box.Size)
}

func TestDecodeBoxExtendedSize(t *testing.T) {
	buf := make([]byte, 24)
	be.PutUint32(buf[0:4], 1) // size == 1: 64-bit extended size follows
	copy(buf[4:8], TypeMdat[:])
	be.PutUint64(buf[8:16], 24)

	box, err := Decode(buf, 0, len(buf))
	require.NoError(t, err)
	assert.Equal(t, int64(24), box.Size)
}

func TestDecodeTruncatedHeaderIsError(t *testing.T) {
	_, err := Decode([]byte{0, 0, 0}, 0, 3)
	require.Error(t, err)
}

func TestDecodeUnknownBoxTypePreservesRawBytes(t *testing.T) {
	buf := make([]byte, 12)
	be.PutUint32(buf[0:4], 12)
	copy(buf[4:8], []byte("zzzz"))
	copy(buf[8:12], []byte("data"))

	box, err := Decode(buf, 0, len(buf))
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), box.Unknown)
}
