package bmff

// Mehd represents the movie extends header box.
type Mehd struct {
	FragmentDuration int64
}

// Trex represents the track extends box (per-track defaults applied when a
// trun/tfhd entry omits a field).
type Trex struct {
	TrackId                       uint32
	DefaultSampleDescriptionIndex uint32
	DefaultSampleDuration         uint32
	DefaultSampleSize             uint32
	DefaultSampleFlags            uint32
}

// Mfhd represents the movie fragment header box.
type Mfhd struct {
	SequenceNumber uint32
}

// Track fragment header flag bits (ISO/IEC 14496-12 §8.8.7).
const (
	TfhdBaseDataOffsetPresent         = 0x000001
	TfhdSampleDescriptionIndexPresent = 0x000002
	TfhdDefaultSampleDurationPresent  = 0x000008
	TfhdDefaultSampleSizePresent      = 0x000010
	TfhdDefaultSampleFlagsPresent     = 0x000020
	TfhdDurationIsEmpty               = 0x010000
	TfhdDefaultBaseIsMoof              = 0x020000
)

// Tfhd represents the track fragment header box.
type Tfhd struct {
	TrackId                       uint32
	BaseDataOffset                uint64
	SampleDescriptionIndex        uint32
	DefaultSampleDuration         uint32
	DefaultSampleSize             uint32
	DefaultSampleFlags            uint32
}

// Tfdt represents the track fragment decode time box, widened to 64 bits
// regardless of the on-wire version so arithmetic never silently wraps.
type Tfdt struct {
	BaseMediaDecodeTime uint64
}

// Track run flag bits (ISO/IEC 14496-12 §8.8.8).
const (
	TrunDataOffsetPresent                  = 0x000001
	TrunFirstSampleFlagsPresent             = 0x000004
	TrunSampleDurationPresent               = 0x000100
	TrunSampleSizePresent                   = 0x000200
	TrunSampleFlagsPresent                  = 0x000400
	TrunSampleCompositionTimeOffsetPresent  = 0x000800
)

// TrunEntry is a single per-sample record in a track run; fields the run's
// flags did not carry are left zero and must be resolved against
// tfhd/trex defaults by the caller (see fragment.go).
type TrunEntry struct {
	SampleDuration              uint32
	SampleSize                  uint32
	SampleFlags                 uint32
	SampleCompositionTimeOffset int32
}

// Trun represents the track run box.
type Trun struct {
	DataOffset       int32 // meaningful only if DataOffsetPresent
	FirstSampleFlags uint32
	Entries          []TrunEntry
}

func init() {
	RegisterBox(TypeMehd, boxCodec{decodeMehd, encodeMehd, encodingLengthMehd})
	RegisterBox(TypeTrex, boxCodec{decodeTrex, encodeTrex, encodingLengthTrex})
	RegisterBox(TypeMfhd, boxCodec{decodeMfhd, encodeMfhd, encodingLengthMfhd})
	RegisterBox(TypeTfhd, boxCodec{decodeTfhd, encodeTfhd, encodingLengthTfhd})
	RegisterBox(TypeTfdt, boxCodec{decodeTfdt, encodeTfdt, encodingLengthTfdt})
	RegisterBox(TypeTrun, boxCodec{decodeTrun, encodeTrun, encodingLengthTrun})
}

// --- mehd ---

func decodeMehd(box *Box, buf []byte, start, _ int) error {
	if box.Version == 1 {
		box.Mehd = &Mehd{FragmentDuration: int64(be.Uint64(buf[start:]))}
	} else {
		box.Mehd = &Mehd{FragmentDuration: int64(be.Uint32(buf[start:]))}
	}
	return nil
}

func encodeMehd(box *Box, buf []byte, offset int) int {
	if box.Version == 1 {
		be.PutUint64(buf[offset:], uint64(box.Mehd.FragmentDuration))
		return 8
	}
	be.PutUint32(buf[offset:], uint32(box.Mehd.FragmentDuration))
	return 4
}

func encodingLengthMehd(box *Box) int {
	if box.Version == 1 {
		return 8
	}
	return 4
}

// --- trex ---

func decodeTrex(box *Box, buf []byte, start, _ int) error {
	b := buf[start:]
	box.Trex = &Trex{
		TrackId:                       be.Uint32(b[0:4]),
		DefaultSampleDescriptionIndex: be.Uint32(b[4:8]),
		DefaultSampleDuration:         be.Uint32(b[8:12]),
		DefaultSampleSize:             be.Uint32(b[12:16]),
		DefaultSampleFlags:            be.Uint32(b[16:20]),
	}
	return nil
}

func encodeTrex(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	t := box.Trex
	be.PutUint32(b[0:4], t.TrackId)
	be.PutUint32(b[4:8], t.DefaultSampleDescriptionIndex)
	be.PutUint32(b[8:12], t.DefaultSampleDuration)
	be.PutUint32(b[12:16], t.DefaultSampleSize)
	be.PutUint32(b[16:20], t.DefaultSampleFlags)
	return 20
}

func encodingLengthTrex(_ *Box) int { return 20 }

// --- mfhd ---

func decodeMfhd(box *Box, buf []byte, start, _ int) error {
	box.Mfhd = &Mfhd{SequenceNumber: be.Uint32(buf[start:])}
	return nil
}

func encodeMfhd(box *Box, buf []byte, offset int) int {
	be.PutUint32(buf[offset:], box.Mfhd.SequenceNumber)
	return 4
}

func encodingLengthMfhd(_ *Box) int { return 4 }

// --- tfhd ---

func decodeTfhd(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	t := &Tfhd{TrackId: be.Uint32(b[0:4])}
	ptr := 4
	flags := box.Flags
	if flags&TfhdBaseDataOffsetPresent != 0 {
		t.BaseDataOffset = be.Uint64(b[ptr:])
		ptr += 8
	}
	if flags&TfhdSampleDescriptionIndexPresent != 0 {
		t.SampleDescriptionIndex = be.Uint32(b[ptr:])
		ptr += 4
	}
	if flags&TfhdDefaultSampleDurationPresent != 0 {
		t.DefaultSampleDuration = be.Uint32(b[ptr:])
		ptr += 4
	}
	if flags&TfhdDefaultSampleSizePresent != 0 {
		t.DefaultSampleSize = be.Uint32(b[ptr:])
		ptr += 4
	}
	if flags&TfhdDefaultSampleFlagsPresent != 0 {
		t.DefaultSampleFlags = be.Uint32(b[ptr:])
		ptr += 4
	}
	box.Tfhd = t
	return nil
}

func encodeTfhd(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	t := box.Tfhd
	flags := box.Flags
	be.PutUint32(b[0:4], t.TrackId)
	ptr := 4
	if flags&TfhdBaseDataOffsetPresent != 0 {
		be.PutUint64(b[ptr:], t.BaseDataOffset)
		ptr += 8
	}
	if flags&TfhdSampleDescriptionIndexPresent != 0 {
		be.PutUint32(b[ptr:], t.SampleDescriptionIndex)
		ptr += 4
	}
	if flags&TfhdDefaultSampleDurationPresent != 0 {
		be.PutUint32(b[ptr:], t.DefaultSampleDuration)
		ptr += 4
	}
	if flags&TfhdDefaultSampleSizePresent != 0 {
		be.PutUint32(b[ptr:], t.DefaultSampleSize)
		ptr += 4
	}
	if flags&TfhdDefaultSampleFlagsPresent != 0 {
		be.PutUint32(b[ptr:], t.DefaultSampleFlags)
		ptr += 4
	}
	return ptr
}

func encodingLengthTfhd(box *Box) int {
	n := 4
	flags := box.Flags
	if flags&TfhdBaseDataOffsetPresent != 0 {
		n += 8
	}
	if flags&TfhdSampleDescriptionIndexPresent != 0 {
		n += 4
	}
	if flags&TfhdDefaultSampleDurationPresent != 0 {
		n += 4
	}
	if flags&TfhdDefaultSampleSizePresent != 0 {
		n += 4
	}
	if flags&TfhdDefaultSampleFlagsPresent != 0 {
		n += 4
	}
	return n
}

// --- tfdt ---

func decodeTfdt(box *Box, buf []byte, start, _ int) error {
	if box.Version == 1 {
		box.Tfdt = &Tfdt{BaseMediaDecodeTime: be.Uint64(buf[start:])}
	} else {
		box.Tfdt = &Tfdt{BaseMediaDecodeTime: uint64(be.Uint32(buf[start:]))}
	}
	return nil
}

func encodeTfdt(box *Box, buf []byte, offset int) int {
	if box.Version == 1 {
		be.PutUint64(buf[offset:], box.Tfdt.BaseMediaDecodeTime)
		return 8
	}
	be.PutUint32(buf[offset:], uint32(box.Tfdt.BaseMediaDecodeTime))
	return 4
}

func encodingLengthTfdt(box *Box) int {
	if box.Version == 1 {
		return 8
	}
	return 4
}

// --- trun ---

func decodeTrun(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	flags := box.Flags
	num := int(be.Uint32(b[0:4]))
	t := &Trun{Entries: make([]TrunEntry, num)}
	ptr := 4
	if flags&TrunDataOffsetPresent != 0 {
		t.DataOffset = int32(be.Uint32(b[ptr:]))
		ptr += 4
	}
	if flags&TrunFirstSampleFlagsPresent != 0 {
		t.FirstSampleFlags = be.Uint32(b[ptr:])
		ptr += 4
	}
	for i := 0; i < num; i++ {
		var e TrunEntry
		if flags&TrunSampleDurationPresent != 0 {
			e.SampleDuration = be.Uint32(b[ptr:])
			ptr += 4
		}
		if flags&TrunSampleSizePresent != 0 {
			e.SampleSize = be.Uint32(b[ptr:])
			ptr += 4
		}
		if flags&TrunSampleFlagsPresent != 0 {
			e.SampleFlags = be.Uint32(b[ptr:])
			ptr += 4
		}
		if flags&TrunSampleCompositionTimeOffsetPresent != 0 {
			e.SampleCompositionTimeOffset = int32(be.Uint32(b[ptr:]))
			ptr += 4
		}
		t.Entries[i] = e
	}
	box.Trun = t
	return nil
}

func encodeTrun(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	t := box.Trun
	flags := box.Flags
	be.PutUint32(b[0:4], uint32(len(t.Entries)))
	ptr := 4
	if flags&TrunDataOffsetPresent != 0 {
		be.PutUint32(b[ptr:], uint32(t.DataOffset))
		ptr += 4
	}
	if flags&TrunFirstSampleFlagsPresent != 0 {
		be.PutUint32(b[ptr:], t.FirstSampleFlags)
		ptr += 4
	}
	for _, e := range t.Entries {
		if flags&TrunSampleDurationPresent != 0 {
			be.PutUint32(b[ptr:], e.SampleDuration)
			ptr += 4
		}
		if flags&TrunSampleSizePresent != 0 {
			be.PutUint32(b[ptr:], e.SampleSize)
			ptr += 4
		}
		if flags&TrunSampleFlagsPresent != 0 {
			be.PutUint32(b[ptr:], e.SampleFlags)
			ptr += 4
		}
		if flags&TrunSampleCompositionTimeOffsetPresent != 0 {
			be.PutUint32(b[ptr:], uint32(e.SampleCompositionTimeOffset))
			ptr += 4
		}
	}
	return ptr
}

func encodingLengthTrun(box *Box) int {
	t := box.Trun
	flags := box.Flags
	n := 4
	if flags&TrunDataOffsetPresent != 0 {
		n += 4
	}
	if flags&TrunFirstSampleFlagsPresent != 0 {
		n += 4
	}
	perSample := 0
	if flags&TrunSampleDurationPresent != 0 {
		perSample += 4
	}
	if flags&TrunSampleSizePresent != 0 {
		perSample += 4
	}
	if flags&TrunSampleFlagsPresent != 0 {
		perSample += 4
	}
	if flags&TrunSampleCompositionTimeOffsetPresent != 0 {
		perSample += 4
	}
	return n + perSample*len(t.Entries)
}

// TrunDataOffsetPatchOffset returns the byte offset, relative to the start
// of the trun box's serialized bytes, of the data_offset field — used by
// the fragmented writer to back-patch it once the moof's total size (and
// therefore the mdat start) is known. Returns -1 if the run carries no
// data_offset field at all.
func TrunDataOffsetPatchOffset(box *Box) int {
	if box.Flags&TrunDataOffsetPresent == 0 {
		return -1
	}
	return boxHeaderSize + fullBoxExtra + 4 // header + version/flags + sample_count
}
