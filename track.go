package bmff

// track.go implements the reader-side track cursor (§4.9): a linear
// next-sample cursor and random access over a track's fused sample list
// (stbl for plain movies, trun/tfhd/tfdt runs appended for fragments),
// plus per-codec decoder-config-record, coding-name, and NALU-split
// access.

// Track fuses one track's sample table and any fragment runs belonging to
// it into a single ordered sample list, and reads sample payload bytes on
// demand from the movie's Input.
type Track struct {
	TrackId        uint32
	HandlerType    [4]byte
	MediaTimescale uint32
	SampleEntry    *Box // the stsd entry (avc1/mp4a/...) describing the codec

	samples []Sample
	input   Input
	cursor  int
	buf     []byte
}

// NewTrack builds a Track from a trak box's sample table; fragment runs,
// if any, are appended afterward with AppendFragmentSamples.
func NewTrack(trak *Box, input Input) (*Track, error) {
	tkhd := trak.Child(TypeTkhd)
	mdia := trak.Child(TypeMdia)
	if tkhd == nil || tkhd.Tkhd == nil || mdia == nil {
		return nil, &Error{Kind: StructuralViolation, BoxType: TypeTrak, Msg: "missing tkhd or mdia"}
	}
	mdhd := mdia.Child(TypeMdhd)
	hdlr := mdia.Child(TypeHdlr)
	minf := mdia.Child(TypeMinf)
	if mdhd == nil || mdhd.Mdhd == nil || hdlr == nil || hdlr.Hdlr == nil || minf == nil {
		return nil, &Error{Kind: StructuralViolation, BoxType: TypeMdia, Msg: "missing mdhd, hdlr or minf"}
	}
	stbl := minf.Child(TypeStbl)
	if stbl == nil {
		return nil, &Error{Kind: StructuralViolation, BoxType: TypeMinf, Msg: "missing stbl"}
	}
	samples, err := DecodeSampleTable(stbl)
	if err != nil {
		return nil, err
	}
	var sampleEntry *Box
	if stsd := stbl.Child(TypeStsd); stsd != nil && stsd.Stsd != nil && len(stsd.Stsd.Entries) > 0 {
		sampleEntry = stsd.Stsd.Entries[0]
	}
	return &Track{
		TrackId:        tkhd.Tkhd.TrackId,
		HandlerType:    hdlr.Hdlr.HandlerType,
		MediaTimescale: mdhd.Mdhd.TimeScale,
		SampleEntry:    sampleEntry,
		samples:        samples,
		input:          input,
	}, nil
}

// AppendFragmentSamples extends the track's sample list with samples
// fused from a movie fragment. Fragments must be appended in ascending
// fragment_number order.
func (t *Track) AppendFragmentSamples(samples []Sample) {
	t.samples = append(t.samples, samples...)
}

// Len returns the total number of samples in the track.
func (t *Track) Len() int { return len(t.samples) }

// Next returns the next sample in decode order and its payload. The
// payload slice is reused across calls; callers that need to retain it
// past the next Next/SampleAt call must copy it. ok is false once the
// cursor is exhausted; no error is raised in that case.
func (t *Track) Next() (sample Sample, payload []byte, ok bool, err error) {
	if t.cursor >= len(t.samples) {
		return Sample{}, nil, false, nil
	}
	s := t.samples[t.cursor]
	t.cursor++
	payload, err = t.readSample(s)
	return s, payload, true, err
}

// Seek repositions the cursor so the next Next() call returns sample n.
func (t *Track) Seek(n int) { t.cursor = n }

// SampleAt returns sample n and its payload without moving the cursor,
// for O(1) random access.
func (t *Track) SampleAt(n int) (Sample, []byte, error) {
	if n < 0 || n >= len(t.samples) {
		return Sample{}, nil, &Error{Kind: ArgumentViolation, Msg: "sample index out of range"}
	}
	s := t.samples[n]
	payload, err := t.readSample(s)
	return s, payload, err
}

func (t *Track) readSample(s Sample) ([]byte, error) {
	if uint32(cap(t.buf)) < s.Size {
		t.buf = make([]byte, s.Size)
	}
	t.buf = t.buf[:s.Size]
	if err := t.input.ReadAt(t.buf, s.Offset); err != nil {
		return nil, err
	}
	return t.buf, nil
}

// CodingName returns the sample entry's box type (e.g. avc1, mp4a).
func (t *Track) CodingName() BoxType {
	if t.SampleEntry == nil {
		return BoxType{}
	}
	return t.SampleEntry.Type
}

// sampleEntryChildren returns the auxiliary boxes nested inside the
// track's sample entry, regardless of whether it is visual or audio.
func (t *Track) sampleEntryChildren() []*Box {
	if t.SampleEntry == nil {
		return nil
	}
	if t.SampleEntry.Visual != nil {
		return t.SampleEntry.Visual.Children
	}
	if t.SampleEntry.Audio != nil {
		return t.SampleEntry.Audio.Children
	}
	return nil
}

// DecoderConfigRecord returns the raw bytes of the track's decoder
// configuration record (the avcC/hvcC/vvcC box payload, or for esds the
// DecoderSpecificInfo nested under its DecoderConfigDescriptor), or nil
// if the sample entry carries none of these.
func (t *Track) DecoderConfigRecord() []byte {
	for _, child := range t.sampleEntryChildren() {
		switch {
		case child.AvcC != nil:
			return child.AvcC.Buffer
		case child.HvcC != nil:
			return child.HvcC.Buffer
		case child.VvcC != nil:
			return child.VvcC.Buffer
		case child.Esds != nil:
			return child.Esds.DecoderSpecificInfo()
		}
	}
	return nil
}

// naluLengthSize returns the length-prefix width (in bytes) this track's
// NALU stream uses, derived from the codec record's length_size_minus_one,
// or 0 if the track is not a NALU-based video codec.
func (t *Track) naluLengthSize() int {
	for _, child := range t.sampleEntryChildren() {
		switch {
		case child.AvcC != nil:
			return int(child.AvcC.LengthSizeMinusOne) + 1
		case child.HvcC != nil:
			return int(child.HvcC.LengthSizeMinusOne) + 1
		case child.VvcC != nil:
			return int(child.VvcC.LengthSizeMinusOne) + 1
		}
	}
	return 0
}

// SplitNALUs cuts a H.264/H.265/H.266 sample payload into its length-
// prefixed NAL units. It returns an ArgumentViolation error if the track's
// codec record carries no NALU length size, and a Truncation error if
// payload is truncated mid-NALU.
func (t *Track) SplitNALUs(payload []byte) ([][]byte, error) {
	n := t.naluLengthSize()
	if n == 0 {
		return nil, &Error{Kind: ArgumentViolation, Msg: "track is not a NALU-based codec"}
	}
	var nalus [][]byte
	for off := 0; off < len(payload); {
		if off+n > len(payload) {
			return nil, &Error{Kind: Truncation, Msg: "truncated NALU length prefix"}
		}
		var length int
		for i := 0; i < n; i++ {
			length = length<<8 | int(payload[off+i])
		}
		off += n
		if off+length > len(payload) {
			return nil, &Error{Kind: Truncation, Msg: "truncated NALU payload"}
		}
		nalus = append(nalus, payload[off:off+length])
		off += length
	}
	return nalus, nil
}

// SampleRate returns the audio sample entry's sample rate, or 0 if the
// track is not audio.
func (t *Track) SampleRate() uint32 {
	if t.SampleEntry == nil || t.SampleEntry.Audio == nil {
		return 0
	}
	return t.SampleEntry.Audio.SampleRate
}

// ChannelCount returns the audio sample entry's channel count, or 0 if
// the track is not audio.
func (t *Track) ChannelCount() uint16 {
	if t.SampleEntry == nil || t.SampleEntry.Audio == nil {
		return 0
	}
	return t.SampleEntry.Audio.ChannelCount
}
