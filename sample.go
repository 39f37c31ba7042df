package bmff

// sample.go fuses a track's sample table (stts/ctts/stsc/stsz/stco-or-co64/
// stss/sbgp-sgpd) into a linear per-sample sequence, and provides the
// inverse: collapsing such a sequence back into run-length-coalesced
// tables for the non-fragmented writer.

// SampleGroupKind identifies which grouping_type a sample's group
// membership belongs to. Only the groupings this module interprets by
// name get a structured kind; any other grouping_type present in the
// tree is left out of the fused sample view entirely.
type SampleGroupKind int

const (
	SampleGroupNone SampleGroupKind = iota
	SampleGroupRoll
	SampleGroupProl
	SampleGroupSap
)

var (
	groupingTypeRoll = [4]byte{'r', 'o', 'l', 'l'}
	groupingTypeProl = [4]byte{'p', 'r', 'o', 'l'}
	groupingTypeSap  = [4]byte{'s', 'a', 'p', ' '}
)

// SampleGroup carries a sample's membership in a named grouping plus the
// group-description fields this module interprets.
type SampleGroup struct {
	Kind         SampleGroupKind
	RollDistance int16
	SapType      uint8
}

// Sample is one fused entry of a track's sample table: position, size,
// timing, sync flag, and sample-group membership. FragmentNumber is 0 for
// samples fused from a plain file's stbl and mfhd.sequence_number for
// samples fused from a moof/traf run.
type Sample struct {
	Offset            int64
	Size              uint32
	Duration          uint32
	DTS               int64
	CompositionOffset int32
	IsSync            bool
	FragmentNumber    uint32
	Group             SampleGroup
}

// TrackSampleStats aggregates a fused sample sequence for trackinfo fill-in.
type TrackSampleStats struct {
	SampleCount   int
	MaxSampleSize uint32
	TotalDuration uint64
}

// CollectSampleStats computes aggregate statistics over a fused sample
// sequence.
func CollectSampleStats(samples []Sample) TrackSampleStats {
	var s TrackSampleStats
	s.SampleCount = len(samples)
	for _, sm := range samples {
		if sm.Size > s.MaxSampleSize {
			s.MaxSampleSize = sm.Size
		}
		s.TotalDuration += uint64(sm.Duration)
	}
	return s
}

// DecodeSampleTable fuses an stbl box's children into a linear per-sample
// sequence, per ISO/IEC 14496-12 §8.7: stsc is expanded run-length over
// every chunk implied by stco/co64, stsz gives per-sample sizes, stts
// gives per-sample durations whose prefix sum is dts, ctts (if present)
// gives per-sample composition offsets, and stss (if present) gives the
// 1-based sync sample index list.
func DecodeSampleTable(stbl *Box) ([]Sample, error) {
	stsz := stbl.Stsz
	stsc := stbl.Stsc
	stts := stbl.Stts
	if stsz == nil && stsc == nil && stts == nil && stbl.Stco == nil && stbl.Co64 == nil {
		// A fragmented movie's init-segment stbl carries only stsd; every
		// actual sample run arrives later via moof/traf.
		return nil, nil
	}
	if stsz == nil || stsc == nil || stts == nil {
		return nil, &Error{Kind: StructuralViolation, BoxType: TypeStbl, Msg: "missing stsz, stsc, or stts"}
	}
	if len(stsc.Entries) == 0 {
		return nil, &Error{Kind: StructuralViolation, BoxType: TypeStsc, Msg: "empty stsc table"}
	}

	numSamples := len(stsz.Entries)
	samples := make([]Sample, numSamples)
	if numSamples == 0 {
		return samples, nil
	}

	if len(stts.Entries) == 0 {
		return nil, &Error{Kind: StructuralViolation, BoxType: TypeStts, Msg: "empty stts table"}
	}

	var chunkOffsets []int64
	switch {
	case stbl.Co64 != nil:
		chunkOffsets = make([]int64, len(stbl.Co64.Entries))
		for i, v := range stbl.Co64.Entries {
			chunkOffsets[i] = int64(v)
		}
	case stbl.Stco != nil:
		chunkOffsets = make([]int64, len(stbl.Stco.Entries))
		for i, v := range stbl.Stco.Entries {
			chunkOffsets[i] = int64(v)
		}
	default:
		return nil, &Error{Kind: StructuralViolation, BoxType: TypeStbl, Msg: "missing stco or co64"}
	}

	groups := expandSampleGroups(stbl, numSamples)
	syncSet := sampleSyncSet(stbl.Stss)
	ctts := stbl.Ctts

	stscI := 0
	curStsc := stsc.Entries[0]
	hasNextStsc := len(stsc.Entries) > 1

	sttsI := 0
	curStts := stts.Entries[0]
	sttsRemaining := int(curStts.Count)

	cttsI := 0
	var curCtts CTTSEntry
	cttsRemaining := 0
	if ctts != nil && len(ctts.Entries) > 0 {
		curCtts = ctts.Entries[0]
		cttsRemaining = int(curCtts.Count)
	}

	var chunkOffset int64
	if len(chunkOffsets) > 0 {
		chunkOffset = chunkOffsets[0]
	}
	chunkIdx := uint32(1)
	sampleInChunk := uint32(0)
	var offsetInChunk int64
	var dts int64

	for i := 0; i < numSamples; i++ {
		size := stsz.Entries[i]

		var compOffset int32
		if ctts != nil && cttsRemaining > 0 {
			compOffset = curCtts.CompositionOffset
		}

		isSync := syncSet == nil || syncSet[uint32(i+1)]

		samples[i] = Sample{
			Offset:            chunkOffset + offsetInChunk,
			Size:              size,
			Duration:          curStts.Duration,
			DTS:               dts,
			CompositionOffset: compOffset,
			IsSync:            isSync,
			Group:             groups[i],
		}

		if i+1 >= numSamples {
			break
		}

		sampleInChunk++
		offsetInChunk += int64(size)
		if sampleInChunk >= curStsc.SamplesPerChunk {
			sampleInChunk = 0
			offsetInChunk = 0
			chunkIdx++
			if int(chunkIdx)-1 < len(chunkOffsets) {
				chunkOffset = chunkOffsets[chunkIdx-1]
			}
			if hasNextStsc && chunkIdx >= stsc.Entries[stscI+1].FirstChunk {
				stscI++
				curStsc = stsc.Entries[stscI]
				hasNextStsc = stscI+1 < len(stsc.Entries)
			}
		}

		dts += int64(curStts.Duration)
		sttsRemaining--
		if sttsRemaining <= 0 && sttsI+1 < len(stts.Entries) {
			sttsI++
			curStts = stts.Entries[sttsI]
			sttsRemaining = int(curStts.Count)
		}

		if ctts != nil {
			cttsRemaining--
			if cttsRemaining <= 0 && cttsI+1 < len(ctts.Entries) {
				cttsI++
				curCtts = ctts.Entries[cttsI]
				cttsRemaining = int(curCtts.Count)
			}
		}
	}

	return samples, nil
}

func sampleSyncSet(stss *Stss) map[uint32]bool {
	if stss == nil {
		return nil
	}
	set := make(map[uint32]bool, len(stss.SampleNumbers))
	for _, n := range stss.SampleNumbers {
		set[n] = true
	}
	return set
}

// expandSampleGroups walks every matching (sbgp, sgpd) pair under stbl,
// keyed by grouping_type, and expands each pair's run-length entries into
// a per-sample group slice.
func expandSampleGroups(stbl *Box, numSamples int) []SampleGroup {
	groups := make([]SampleGroup, numSamples)
	for _, sbgpBox := range stbl.ChildList(TypeSbgp) {
		sbgp := sbgpBox.Sbgp
		if sbgp == nil {
			continue
		}
		kind := sampleGroupKindFor(sbgp.GroupingType)
		if kind == SampleGroupNone {
			continue
		}
		var sgpd *Sgpd
		for _, sgpdBox := range stbl.ChildList(TypeSgpd) {
			if sgpdBox.Sgpd != nil && sgpdBox.Sgpd.GroupingType == sbgp.GroupingType {
				sgpd = sgpdBox.Sgpd
				break
			}
		}
		if sgpd == nil {
			continue
		}
		sampleIdx := 0
		for _, e := range sbgp.Entries {
			for c := uint32(0); c < e.SampleCount && sampleIdx < numSamples; c++ {
				if e.GroupDescriptionIndex != 0 && int(e.GroupDescriptionIndex) <= len(sgpd.Entries) {
					entry := sgpd.Entries[e.GroupDescriptionIndex-1]
					groups[sampleIdx] = decodeSampleGroupPayload(kind, entry.Payload)
				}
				sampleIdx++
			}
		}
	}
	return groups
}

func sampleGroupKindFor(t [4]byte) SampleGroupKind {
	switch t {
	case groupingTypeRoll:
		return SampleGroupRoll
	case groupingTypeProl:
		return SampleGroupProl
	case groupingTypeSap:
		return SampleGroupSap
	}
	return SampleGroupNone
}

func groupingTypeFor(kind SampleGroupKind) [4]byte {
	switch kind {
	case SampleGroupRoll:
		return groupingTypeRoll
	case SampleGroupProl:
		return groupingTypeProl
	case SampleGroupSap:
		return groupingTypeSap
	}
	return [4]byte{}
}

func decodeSampleGroupPayload(kind SampleGroupKind, payload []byte) SampleGroup {
	switch kind {
	case SampleGroupRoll, SampleGroupProl:
		if len(payload) < 2 {
			return SampleGroup{Kind: kind}
		}
		return SampleGroup{Kind: kind, RollDistance: int16(be.Uint16(payload[0:2]))}
	case SampleGroupSap:
		if len(payload) < 1 {
			return SampleGroup{Kind: kind}
		}
		return SampleGroup{Kind: kind, SapType: payload[0] & 0x0F}
	}
	return SampleGroup{Kind: kind}
}

func encodeSampleGroupPayload(g SampleGroup) []byte {
	switch g.Kind {
	case SampleGroupRoll, SampleGroupProl:
		b := make([]byte, 2)
		be.PutUint16(b, uint16(g.RollDistance))
		return b
	case SampleGroupSap:
		return []byte{g.SapType & 0x0F}
	}
	return nil
}

// SampleTableBoxes holds a track's synthesized sample table, ready to be
// wrapped into Box nodes (with Type/Version/Flags set) and appended as
// children of an stbl container.
type SampleTableBoxes struct {
	Stts *Stts
	Ctts *Ctts // nil when every sample has a zero composition offset
	Stsc *Stsc
	Stsz *Stsz
	Stco *Stco // nil when Co64 is used instead
	Co64 *Co64 // nil unless any chunk offset exceeds uint32 range
	Stss *Stss // nil when every sample is sync
}

// GroupedSamples is one synthesized (sbgp, sgpd) pair for a single
// grouping_type.
type GroupedSamples struct {
	GroupingType [4]byte
	Sbgp         *Sbgp
	Sgpd         *Sgpd
}

// EncodeSampleTable collapses a track's ordered sample sequence back into
// the stts/ctts/stsc/stsz/stco-or-co64/stss family, coalescing runs the
// same way the on-wire tables do. Chunk boundaries are inferred directly
// from the sample offsets: a new chunk starts wherever a sample's offset
// is not contiguous with the one before it.
func EncodeSampleTable(samples []Sample, sampleDescriptionIndex uint32) *SampleTableBoxes {
	out := &SampleTableBoxes{
		Stts: buildSttsTable(samples),
		Stsz: buildStszTable(samples),
		Stss: buildStssTable(samples),
	}
	if hasNonZeroCompositionOffset(samples) {
		out.Ctts = buildCttsTable(samples)
	}
	stsc, chunkOffsets := buildStscAndChunks(samples, sampleDescriptionIndex)
	out.Stsc = stsc
	if anyChunkOffsetExceedsUint32(chunkOffsets) {
		out.Co64 = &Co64{Entries: chunkOffsets}
		return out
	}
	entries := make([]uint32, len(chunkOffsets))
	for i, v := range chunkOffsets {
		entries[i] = uint32(v)
	}
	out.Stco = &Stco{Entries: entries}
	return out
}

func buildSttsTable(samples []Sample) *Stts {
	var entries []STTSEntry
	for _, s := range samples {
		if n := len(entries); n > 0 && entries[n-1].Duration == s.Duration {
			entries[n-1].Count++
			continue
		}
		entries = append(entries, STTSEntry{Count: 1, Duration: s.Duration})
	}
	return &Stts{Entries: entries}
}

func hasNonZeroCompositionOffset(samples []Sample) bool {
	for _, s := range samples {
		if s.CompositionOffset != 0 {
			return true
		}
	}
	return false
}

func buildCttsTable(samples []Sample) *Ctts {
	v1 := false
	for _, s := range samples {
		if s.CompositionOffset < 0 {
			v1 = true
			break
		}
	}
	var entries []CTTSEntry
	for _, s := range samples {
		if n := len(entries); n > 0 && entries[n-1].CompositionOffset == s.CompositionOffset {
			entries[n-1].Count++
			continue
		}
		entries = append(entries, CTTSEntry{Count: 1, CompositionOffset: s.CompositionOffset})
	}
	return &Ctts{V1: v1, Entries: entries}
}

func buildStszTable(samples []Sample) *Stsz {
	entries := make([]uint32, len(samples))
	constant := len(samples) > 0
	for i, s := range samples {
		entries[i] = s.Size
		if i > 0 && s.Size != entries[0] {
			constant = false
		}
	}
	if constant && entries[0] != 0 {
		return &Stsz{SampleSize: entries[0], Entries: entries}
	}
	return &Stsz{Entries: entries}
}

func buildStssTable(samples []Sample) *Stss {
	for _, s := range samples {
		if !s.IsSync {
			var nums []uint32
			for i, s2 := range samples {
				if s2.IsSync {
					nums = append(nums, uint32(i+1))
				}
			}
			return &Stss{SampleNumbers: nums}
		}
	}
	return nil
}

func buildStscAndChunks(samples []Sample, sampleDescriptionIndex uint32) (*Stsc, []uint64) {
	var chunkOffsets []uint64
	var perChunkCount []uint32

	for i, s := range samples {
		if i == 0 || s.Offset != samples[i-1].Offset+int64(samples[i-1].Size) {
			chunkOffsets = append(chunkOffsets, uint64(s.Offset))
			perChunkCount = append(perChunkCount, 0)
		}
		perChunkCount[len(perChunkCount)-1]++
	}

	var entries []STSCEntry
	for i, count := range perChunkCount {
		if i == 0 || count != perChunkCount[i-1] {
			entries = append(entries, STSCEntry{
				FirstChunk:          uint32(i + 1),
				SamplesPerChunk:     count,
				SampleDescriptionId: sampleDescriptionIndex,
			})
		}
	}
	return &Stsc{Entries: entries}, chunkOffsets
}

func anyChunkOffsetExceedsUint32(offsets []uint64) bool {
	for _, o := range offsets {
		if o > 0xffffffff {
			return true
		}
	}
	return false
}

// EncodeSampleGroups collapses per-sample group membership back into
// sbgp/sgpd pairs, one pair per distinct grouping_type present in
// samples. A sample whose Group.Kind does not match the pair's grouping
// type contributes a run with group_description_index 0, meaning "not
// mapped to any group description" per ISO/IEC 14496-12 §8.9.2.
func EncodeSampleGroups(samples []Sample) []GroupedSamples {
	type entryKey struct {
		kind SampleGroupKind
		roll int16
		sap  uint8
	}

	var kinds []SampleGroupKind
	seenKind := make(map[SampleGroupKind]bool)
	entryIndex := make(map[entryKey]uint32)
	payloads := make(map[SampleGroupKind][][]byte)
	indices := make([]uint32, len(samples))

	for i, s := range samples {
		if s.Group.Kind == SampleGroupNone {
			continue
		}
		if !seenKind[s.Group.Kind] {
			seenKind[s.Group.Kind] = true
			kinds = append(kinds, s.Group.Kind)
		}
		k := entryKey{kind: s.Group.Kind, roll: s.Group.RollDistance, sap: s.Group.SapType}
		idx, ok := entryIndex[k]
		if !ok {
			payloads[s.Group.Kind] = append(payloads[s.Group.Kind], encodeSampleGroupPayload(s.Group))
			idx = uint32(len(payloads[s.Group.Kind]))
			entryIndex[k] = idx
		}
		indices[i] = idx
	}

	var out []GroupedSamples
	for _, kind := range kinds {
		gt := groupingTypeFor(kind)

		sgpd := &Sgpd{GroupingType: gt}
		for _, p := range payloads[kind] {
			sgpd.Entries = append(sgpd.Entries, SgpdEntry{Payload: p})
		}

		sbgp := &Sbgp{GroupingType: gt}
		var runIdx, runCount uint32
		for i, s := range samples {
			var idx uint32
			if s.Group.Kind == kind {
				idx = indices[i]
			}
			if i == 0 {
				runIdx, runCount = idx, 1
				continue
			}
			if idx == runIdx {
				runCount++
				continue
			}
			sbgp.Entries = append(sbgp.Entries, SbgpEntry{SampleCount: runCount, GroupDescriptionIndex: runIdx})
			runIdx, runCount = idx, 1
		}
		if runCount > 0 {
			sbgp.Entries = append(sbgp.Entries, SbgpEntry{SampleCount: runCount, GroupDescriptionIndex: runIdx})
		}

		out = append(out, GroupedSamples{GroupingType: gt, Sbgp: sbgp, Sgpd: sgpd})
	}
	return out
}
