package bmff

// writer_fragmented.go implements the fragmented writer (§4.12): an
// initialization segment (ftyp + moov with mvex/trex), followed by one
// moof+mdat pair per fragment whose trun.data_offset is back-patched once
// the moof's final size is known, optionally wrapped per segment in styp
// framing (with an "lmsg" compatible brand on the last segment), and an
// optional sidx built once every referenced segment's size is known.

// FragmentTrackBuild is everything WriteFragment needs for one track
// within a single fragment: its samples, in decode order, as already
// queued in the Store.
type FragmentTrackBuild struct {
	TrackId             uint32
	Samples             []StoredSample
	BaseMediaDecodeTime uint64
}

// WriteInitSegment serializes a fragmented movie's initialization
// segment: ftyp followed by moov (already containing mvex/trex and one
// trak per track with an stsd-only stbl).
func WriteInitSegment(out Output, ftyp *Box, moov *Box) error {
	if err := writeBox(out, ftyp); err != nil {
		return err
	}
	return writeBox(out, moov)
}

// FragmentInfo summarizes one written fragment, enough to build a sidx
// reference entry for it.
type FragmentInfo struct {
	Size          int64
	Duration      uint32
	StartsWithSAP bool
	SAPType       byte
	SAPDeltaTime  uint32
}

// WriteFragment serializes one moof+mdat pair at the current position of
// out: one traf per track, with trun.data_offset resolved against
// default_base_is_moof and back-patched once the moof's encoded size is
// known.
func WriteFragment(out Output, sequenceNumber uint32, tracks []FragmentTrackBuild, store *Store) (FragmentInfo, error) {
	moof := &Box{Type: TypeMoof}
	moof.AddChild(&Box{Type: TypeMfhd, Mfhd: &Mfhd{SequenceNumber: sequenceNumber}})

	var totalPayload int64
	var fragDuration uint32
	var fragSAP bool
	var fragSAPType byte
	var fragSAPDelta uint32
	trafBoxes := make([]*Box, 0, len(tracks))

	for ti, tb := range tracks {
		baseOffset := totalPayload
		samples := make([]Sample, len(tb.Samples))
		var dts int64
		for i, s := range tb.Samples {
			samples[i] = Sample{
				Offset:            totalPayload,
				Size:              s.Size,
				Duration:          s.Duration,
				DTS:               dts,
				CompositionOffset: s.CompositionOffset,
				IsSync:            s.IsSync,
				Group:             s.Group,
			}
			dts += int64(s.Duration)
			totalPayload += int64(s.Size)
			fragDuration += s.Duration
		}
		if ti == 0 && len(samples) > 0 {
			fragSAP, fragSAPType, fragSAPDelta = leadingSAPInfo(samples)
		}
		traf := buildTraf(tb, samples, baseOffset)
		moof.AddChild(traf)
		trafBoxes = append(trafBoxes, traf)
	}

	moofSize := int(EncodingLength(moof))
	mdatHdrSize := int(mdatHeaderSizeFor(totalPayload))
	delta := int32(moofSize + mdatHdrSize)

	buf, trunOffsets := encodeMoofCapturingTrunOffsets(moof, trafBoxes, moofSize)
	for i, absStart := range trunOffsets {
		trunBox := trafBoxes[i].Child(TypeTrun)
		patchOff := TrunDataOffsetPatchOffset(trunBox)
		if patchOff < 0 {
			continue
		}
		fieldOff := absStart + patchOff
		cur := int32(be.Uint32(buf[fieldOff:]))
		be.PutUint32(buf[fieldOff:], uint32(cur+delta))
	}

	if err := out.Write(buf); err != nil {
		return FragmentInfo{}, err
	}
	if err := writeMdatHeader(out, totalPayload); err != nil {
		return FragmentInfo{}, err
	}
	for _, tb := range tracks {
		for _, s := range tb.Samples {
			payload, err := store.Payload(s)
			if err != nil {
				return FragmentInfo{}, err
			}
			if err := out.Write(payload); err != nil {
				return FragmentInfo{}, err
			}
		}
	}

	return FragmentInfo{
		Size:          int64(moofSize) + int64(mdatHdrSize) + totalPayload,
		Duration:      fragDuration,
		StartsWithSAP: fragSAP,
		SAPType:       fragSAPType,
		SAPDeltaTime:  fragSAPDelta,
	}, nil
}

// leadingSAPInfo locates the sample with the earliest presentation time
// (DTS+CompositionOffset, not decode order) in a fragment's reference
// track and reports whether that sample is itself a sync sample. If not,
// it reports the SAP_type and PTS delta of the first sync sample at or
// after the fragment's earliest PTS, matching the sidx sap_delta_time
// definition (ISO/IEC 14496-12 §8.16.3): the gap between the earliest
// presentation time in the subsegment and the first SAP's PTS.
func leadingSAPInfo(samples []Sample) (startsWithSAP bool, sapType byte, sapDeltaTime uint32) {
	if len(samples) == 0 {
		return false, 0, 0
	}
	earliestIdx := 0
	earliestPTS := samples[0].DTS + int64(samples[0].CompositionOffset)
	for i, s := range samples {
		pts := s.DTS + int64(s.CompositionOffset)
		if pts < earliestPTS {
			earliestPTS = pts
			earliestIdx = i
		}
	}
	if samples[earliestIdx].IsSync {
		return true, samples[earliestIdx].Group.SapType, 0
	}

	found := false
	var firstSapPTS int64
	var firstSapType byte
	for _, s := range samples {
		if !s.IsSync {
			continue
		}
		pts := s.DTS + int64(s.CompositionOffset)
		if !found || pts < firstSapPTS {
			found = true
			firstSapPTS = pts
			firstSapType = s.Group.SapType
		}
	}
	if !found {
		return false, 0, 0
	}
	return false, firstSapType, uint32(firstSapPTS - earliestPTS)
}

// buildTraf assembles one traf: tfhd (default_base_is_moof, no other
// overrides — trex supplies everything this writer omits), tfdt, trun
// (all per-sample fields explicit, data_offset pre-seeded with this
// track's offset relative to the fragment's own mdat payload and later
// shifted by WriteFragment once the moof's size is known), and any
// sample-grouping pairs.
func buildTraf(tb FragmentTrackBuild, samples []Sample, baseOffset int64) *Box {
	traf := &Box{Type: TypeTraf}

	traf.AddChild(&Box{
		Type:  TypeTfhd,
		Flags: TfhdDefaultBaseIsMoof,
		Tfhd:  &Tfhd{TrackId: tb.TrackId},
	})

	var tfdtVersion uint8
	if tb.BaseMediaDecodeTime > 0xffffffff {
		tfdtVersion = 1
	}
	traf.AddChild(&Box{
		Type:    TypeTfdt,
		Version: tfdtVersion,
		Tfdt:    &Tfdt{BaseMediaDecodeTime: tb.BaseMediaDecodeTime},
	})

	trunFlags := uint32(TrunDataOffsetPresent | TrunSampleDurationPresent | TrunSampleSizePresent | TrunSampleFlagsPresent)
	if hasNonZeroCompositionOffset(samples) {
		trunFlags |= TrunSampleCompositionTimeOffsetPresent
	}
	entries := make([]TrunEntry, len(samples))
	for i, s := range samples {
		entries[i] = TrunEntry{
			SampleDuration:              s.Duration,
			SampleSize:                  s.Size,
			SampleFlags:                 packSampleFlags(s.IsSync),
			SampleCompositionTimeOffset: s.CompositionOffset,
		}
	}
	traf.AddChild(&Box{
		Type:  TypeTrun,
		Flags: trunFlags,
		Trun:  &Trun{DataOffset: int32(baseOffset), Entries: entries},
	})

	for _, g := range EncodeSampleGroups(samples) {
		traf.AddChild(&Box{Type: TypeSbgp, Sbgp: g.Sbgp})
		traf.AddChild(&Box{Type: TypeSgpd, Version: 1, Sgpd: g.Sgpd})
	}
	return traf
}

func packSampleFlags(isSync bool) uint32 {
	if isSync {
		return 0
	}
	return sampleFlagIsNonSync
}

// encodeMoofCapturingTrunOffsets serializes moof (mfhd, then trafBoxes in
// the given order) into a single buffer, bypassing the generic container
// codec so sibling order — and therefore each trun's absolute byte
// offset within the buffer — is exactly what was asked for, rather than
// the map-iteration order EncodeBox otherwise uses for same-level
// siblings of distinct types.
func encodeMoofCapturingTrunOffsets(moof *Box, trafBoxes []*Box, moofSize int) (buf []byte, trunAbsOffsets []int) {
	buf = make([]byte, moofSize)
	be.PutUint32(buf[0:4], uint32(moofSize))
	copy(buf[4:8], TypeMoof[:])
	ptr := boxHeaderSize

	mfhdBox := moof.Child(TypeMfhd)
	n, _ := EncodeBox(mfhdBox, buf, ptr)
	ptr += n

	for _, traf := range trafBoxes {
		trafSize := int(EncodingLength(traf))
		trafStart := ptr
		be.PutUint32(buf[trafStart:trafStart+4], uint32(trafSize))
		copy(buf[trafStart+4:trafStart+8], TypeTraf[:])
		cptr := trafStart + boxHeaderSize

		if tfhdBox := traf.Child(TypeTfhd); tfhdBox != nil {
			n, _ := EncodeBox(tfhdBox, buf, cptr)
			cptr += n
		}
		if tfdtBox := traf.Child(TypeTfdt); tfdtBox != nil {
			n, _ := EncodeBox(tfdtBox, buf, cptr)
			cptr += n
		}
		if trunBox := traf.Child(TypeTrun); trunBox != nil {
			trunAbsOffsets = append(trunAbsOffsets, cptr)
			n, _ := EncodeBox(trunBox, buf, cptr)
			cptr += n
		}
		sbgpList, sgpdList := traf.ChildList(TypeSbgp), traf.ChildList(TypeSgpd)
		for i, sbgpBox := range sbgpList {
			n, _ := EncodeBox(sbgpBox, buf, cptr)
			cptr += n
			if i < len(sgpdList) {
				n, _ := EncodeBox(sgpdList[i], buf, cptr)
				cptr += n
			}
		}
		ptr = trafStart + trafSize
	}
	return buf, trunAbsOffsets
}

// lmsgBrand marks a styp (segment type box) as belonging to the last
// segment of a representation.
var lmsgBrand = [4]byte{'l', 'm', 's', 'g'}

func addCompatibleBrand(ftyp *Box, brand [4]byte) {
	if ftyp.Ftyp == nil {
		return
	}
	for _, b := range ftyp.Ftyp.CompatibleBrands {
		if b == brand {
			return
		}
	}
	ftyp.Ftyp.CompatibleBrands = append(ftyp.Ftyp.CompatibleBrands, brand)
}

// WriteSegment serializes one DASH/CMAF media segment: an optional styp
// (segment type), then the fragment's moof+mdat. isLast adds the "lmsg"
// compatible brand to styp, signaling the last segment of the
// representation.
func WriteSegment(out Output, styp *Box, sequenceNumber uint32, tracks []FragmentTrackBuild, store *Store, isLast bool) (FragmentInfo, error) {
	if styp != nil {
		if isLast {
			addCompatibleBrand(styp, lmsgBrand)
		}
		if err := writeBox(out, styp); err != nil {
			return FragmentInfo{}, err
		}
	}
	return WriteFragment(out, sequenceNumber, tracks, store)
}

// BuildSidx constructs a segment index box summarizing a run of
// already-written segments. Callers needing accurate reference sizes
// must spool segment bytes to a temporary Output (see TeeOutput) until
// every segment in the run has been written, then write this box ahead
// of the spooled bytes.
func BuildSidx(referenceId uint32, timescale uint32, earliestPresentationTime uint64, firstOffset uint64, segments []FragmentInfo) *Box {
	refs := make([]SidxReference, len(segments))
	for i, seg := range segments {
		refs[i] = SidxReference{
			ReferencedSize:     uint32(seg.Size),
			SubsegmentDuration: seg.Duration,
			StartsWithSAP:      seg.StartsWithSAP,
			SAPType:            seg.SAPType,
			SAPDeltaTime:       seg.SAPDeltaTime,
		}
	}
	var version uint8
	if earliestPresentationTime > 0xffffffff || firstOffset > 0xffffffff {
		version = 1
	}
	return &Box{
		Type:    TypeSidx,
		Version: version,
		Sidx: &Sidx{
			ReferenceID:              referenceId,
			Timescale:                timescale,
			EarliestPresentationTime: earliestPresentationTime,
			FirstOffset:              firstOffset,
			References:               refs,
		},
	}
}
