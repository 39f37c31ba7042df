package bmff

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSampleTableFusesChunksDurationsAndSync(t *testing.T) {
	stbl := &Box{Type: TypeStbl}
	stbl.Stsz = &Stsz{Entries: []uint32{10, 20, 30, 40}}
	stbl.Stsc = &Stsc{Entries: []STSCEntry{
		{FirstChunk: 1, SamplesPerChunk: 2, SampleDescriptionId: 1},
		{FirstChunk: 2, SamplesPerChunk: 1, SampleDescriptionId: 1},
	}}
	stbl.Stco = &Stco{Entries: []uint32{1000, 2000, 2100}}
	stbl.Stts = &Stts{Entries: []STTSEntry{{Count: 4, Duration: 1000}}}
	stbl.Stss = &Stss{SampleNumbers: []uint32{1, 3}}

	samples, err := DecodeSampleTable(stbl)
	require.NoError(t, err)
	require.Len(t, samples, 4)

	assert.Equal(t, int64(1000), samples[0].Offset)
	assert.Equal(t, int64(1010), samples[1].Offset)
	assert.Equal(t, int64(2000), samples[2].Offset)
	assert.Equal(t, int64(2100), samples[3].Offset)

	assert.Equal(t, int64(0), samples[0].DTS)
	assert.Equal(t, int64(1000), samples[1].DTS)
	assert.Equal(t, int64(2000), samples[2].DTS)
	assert.Equal(t, int64(3000), samples[3].DTS)

	assert.True(t, samples[0].IsSync)
	assert.False(t, samples[1].IsSync)
	assert.True(t, samples[2].IsSync)
	assert.False(t, samples[3].IsSync)
}

func TestSampleTableRoundTripsThroughEncode(t *testing.T) {
	original := []Sample{
		{Offset: 0, Size: 100, Duration: 512, DTS: 0, IsSync: true},
		{Offset: 100, Size: 120, Duration: 512, DTS: 512, CompositionOffset: 512, IsSync: false},
		{Offset: 220, Size: 110, Duration: 512, DTS: 1024, CompositionOffset: -256, IsSync: false},
		{Offset: 5_000_000_330, Size: 90, Duration: 512, DTS: 1536, IsSync: true},
	}

	tables := EncodeSampleTable(original, 1)
	require.NotNil(t, tables.Co64, "an offset beyond uint32 range must promote to co64")
	require.Nil(t, tables.Stco)
	require.NotNil(t, tables.Ctts, "non-zero composition offsets require ctts")
	assert.True(t, tables.Ctts.V1, "a negative composition offset requires ctts version 1")

	stbl := &Box{Type: TypeStbl}
	stbl.Stsz = tables.Stsz
	stbl.Stsc = tables.Stsc
	stbl.Stts = tables.Stts
	stbl.Co64 = tables.Co64
	stbl.Stss = tables.Stss
	if tables.Ctts != nil {
		stbl.Ctts = tables.Ctts
	}

	fused, err := DecodeSampleTable(stbl)
	require.NoError(t, err)
	require.Len(t, fused, len(original))

	if diff := cmp.Diff(original, fused); diff != "" {
		t.Errorf("fused sample table mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeSampleGroupsRoundTrips(t *testing.T) {
	samples := []Sample{
		{Group: SampleGroup{Kind: SampleGroupRoll, RollDistance: -2}},
		{Group: SampleGroup{Kind: SampleGroupRoll, RollDistance: -2}},
		{Group: SampleGroup{Kind: SampleGroupNone}},
		{Group: SampleGroup{Kind: SampleGroupNone}},
	}

	grouped := EncodeSampleGroups(samples)
	require.Len(t, grouped, 1, "only the roll grouping_type is present across these samples")

	// Wire the synthesized sbgp/sgpd into an stbl and re-fuse; samples 2
	// and 3 exercise the "not mapped" group_description_index 0 path.
	stbl := &Box{Type: TypeStbl}
	stbl.Stsz = &Stsz{Entries: []uint32{1, 1, 1, 1}}
	stbl.Stsc = &Stsc{Entries: []STSCEntry{{FirstChunk: 1, SamplesPerChunk: 4, SampleDescriptionId: 1}}}
	stbl.Stco = &Stco{Entries: []uint32{0}}
	stbl.Stts = &Stts{Entries: []STTSEntry{{Count: 4, Duration: 1}}}
	for _, g := range grouped {
		stbl.AddChild(&Box{Type: TypeSbgp, Sbgp: g.Sbgp})
		stbl.AddChild(&Box{Type: TypeSgpd, Sgpd: g.Sgpd})
	}

	fused, err := DecodeSampleTable(stbl)
	require.NoError(t, err)
	require.Len(t, fused, 4)

	assert.Equal(t, SampleGroupRoll, fused[0].Group.Kind)
	assert.Equal(t, int16(-2), fused[0].Group.RollDistance)
	assert.Equal(t, SampleGroupRoll, fused[1].Group.Kind)
	assert.Equal(t, SampleGroupKind(SampleGroupNone), fused[2].Group.Kind)
	assert.Equal(t, SampleGroupKind(SampleGroupNone), fused[3].Group.Kind)
}

func TestSampleGroupSapPayloadUsesLowNibble(t *testing.T) {
	// ISO/IEC 14496-12 SAPEntry: dependent_flag:1, reserved:3, SAP_type:4 —
	// SAP_type occupies the low nibble of the byte, not bits 4-6.
	payload := encodeSampleGroupPayload(SampleGroup{Kind: SampleGroupSap, SapType: 0x0D})
	require.Len(t, payload, 1)
	assert.Equal(t, byte(0x0D), payload[0])

	decoded := decodeSampleGroupPayload(SampleGroupSap, payload)
	assert.Equal(t, uint8(0x0D), decoded.SapType)
}

func TestCollectSampleStats(t *testing.T) {
	samples := []Sample{
		{Size: 10, Duration: 100},
		{Size: 30, Duration: 100},
		{Size: 20, Duration: 100},
	}
	stats := CollectSampleStats(samples)
	assert.Equal(t, 3, stats.SampleCount)
	assert.Equal(t, uint32(30), stats.MaxSampleSize)
	assert.Equal(t, uint64(300), stats.TotalDuration)
}
