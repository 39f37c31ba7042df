package bmff

// fragment.go fuses a movie fragment's moof/traf/trun runs into samples,
// per ISO/IEC 14496-12 §8.8, resolving per-sample fields absent from a
// trun entry against tfhd then trex defaults.

// sampleFlagIsNonSync is the bit position of sample_is_non_sync_sample
// within a packed sample_flags u32 (ISO/IEC 14496-12 §8.8.3.1): 16 bits of
// sample_degradation_priority occupy the low end, followed immediately by
// this single bit.
const sampleFlagIsNonSync = 1 << 16

func sampleIsSync(flags uint32) bool {
	return flags&sampleFlagIsNonSync == 0
}

// fragmentDefaults resolves the per-sample fields a trun entry may omit.
type fragmentDefaults struct {
	SampleDuration uint32
	SampleSize     uint32
	SampleFlags    uint32
}

// resolveTfhdDefaults merges a tfhd's flag-gated overrides onto a trex's
// per-track defaults; either may be nil.
func resolveTfhdDefaults(tfhd *Tfhd, tfhdFlags uint32, trex *Trex) fragmentDefaults {
	var d fragmentDefaults
	if trex != nil {
		d.SampleDuration = trex.DefaultSampleDuration
		d.SampleSize = trex.DefaultSampleSize
		d.SampleFlags = trex.DefaultSampleFlags
	}
	if tfhd == nil {
		return d
	}
	if tfhdFlags&TfhdDefaultSampleDurationPresent != 0 {
		d.SampleDuration = tfhd.DefaultSampleDuration
	}
	if tfhdFlags&TfhdDefaultSampleSizePresent != 0 {
		d.SampleSize = tfhd.DefaultSampleSize
	}
	if tfhdFlags&TfhdDefaultSampleFlagsPresent != 0 {
		d.SampleFlags = tfhd.DefaultSampleFlags
	}
	return d
}

// BuildTrexMap collects a movie's per-track extends defaults from its mvex
// box, keyed by track id, for use by DecodeFragment.
func BuildTrexMap(moov *Box) map[uint32]*Trex {
	out := make(map[uint32]*Trex)
	mvex := moov.Child(TypeMvex)
	if mvex == nil {
		return out
	}
	for _, trexBox := range mvex.ChildList(TypeTrex) {
		if trexBox.Trex != nil {
			out[trexBox.Trex.TrackId] = trexBox.Trex
		}
	}
	return out
}

// DecodeFragment fuses one moof's traf/trun runs into samples keyed by
// track id, carrying fragment_number = mfhd.sequence_number and dts
// continuing from each traf's tfdt.base_media_decode_time. moofStart is
// the absolute byte offset of the moof box within the enclosing file or
// stream, needed to resolve default_base_is_moof sample offsets.
func DecodeFragment(moof *Box, moofStart int64, trex map[uint32]*Trex) (map[uint32][]Sample, error) {
	mfhdBox := moof.Child(TypeMfhd)
	if mfhdBox == nil || mfhdBox.Mfhd == nil {
		return nil, &Error{Kind: StructuralViolation, BoxType: TypeMoof, Msg: "missing mfhd"}
	}
	fragmentNumber := mfhdBox.Mfhd.SequenceNumber

	out := make(map[uint32][]Sample)
	for _, trafBox := range moof.ChildList(TypeTraf) {
		tfhdBox := trafBox.Child(TypeTfhd)
		if tfhdBox == nil || tfhdBox.Tfhd == nil {
			return nil, &Error{Kind: StructuralViolation, BoxType: TypeTraf, Msg: "missing tfhd"}
		}
		tfhd := tfhdBox.Tfhd
		trackId := tfhd.TrackId

		var baseMediaDecodeTime uint64
		if tfdtBox := trafBox.Child(TypeTfdt); tfdtBox != nil && tfdtBox.Tfdt != nil {
			baseMediaDecodeTime = tfdtBox.Tfdt.BaseMediaDecodeTime
		}

		defaults := resolveTfhdDefaults(tfhd, tfhdBox.Flags, trex[trackId])
		defaultBaseIsMoof := tfhdBox.Flags&TfhdDefaultBaseIsMoof != 0

		dts := int64(baseMediaDecodeTime)
		var cursor int64

		for _, trunBox := range trafBox.ChildList(TypeTrun) {
			trun := trunBox.Trun
			if trun == nil {
				continue
			}

			if trunBox.Flags&TrunDataOffsetPresent != 0 {
				if defaultBaseIsMoof || tfhdBox.Flags&TfhdBaseDataOffsetPresent == 0 {
					cursor = moofStart + int64(trun.DataOffset)
				} else {
					cursor = int64(tfhd.BaseDataOffset) + int64(trun.DataOffset)
				}
			}

			firstSampleFlags := defaults.SampleFlags
			if trunBox.Flags&TrunFirstSampleFlagsPresent != 0 {
				firstSampleFlags = trun.FirstSampleFlags
			}

			samples := make([]Sample, len(trun.Entries))
			for i, e := range trun.Entries {
				duration := defaults.SampleDuration
				if trunBox.Flags&TrunSampleDurationPresent != 0 {
					duration = e.SampleDuration
				}
				size := defaults.SampleSize
				if trunBox.Flags&TrunSampleSizePresent != 0 {
					size = e.SampleSize
				}
				flags := defaults.SampleFlags
				if i == 0 {
					flags = firstSampleFlags
				}
				if trunBox.Flags&TrunSampleFlagsPresent != 0 {
					flags = e.SampleFlags
				}
				var cto int32
				if trunBox.Flags&TrunSampleCompositionTimeOffsetPresent != 0 {
					cto = e.SampleCompositionTimeOffset
				}

				samples[i] = Sample{
					Offset:            cursor,
					Size:              size,
					Duration:          duration,
					DTS:               dts,
					CompositionOffset: cto,
					IsSync:            sampleIsSync(flags),
					FragmentNumber:    fragmentNumber,
				}

				cursor += int64(size)
				dts += int64(duration)
			}
			out[trackId] = append(out[trackId], samples...)
		}
	}
	return out, nil
}
