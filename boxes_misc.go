package bmff

// Mdat represents the media data box. A writer-built Mdat may carry either
// an in-memory Buffer or, when streaming from an external source, only a
// ContentLength (the bytes are written directly by the caller).
type Mdat struct {
	Buffer        []byte
	ContentLength int
}

// Iods represents the initial object descriptor box (MPEG-4 systems). Its
// payload is the same tag+variable-length-size descriptor chain as esds,
// so decoding is delegated to the shared descriptor walker.
type Iods struct {
	ObjectDescriptor *Descriptor
	Buffer           []byte
}

// LoudnessBox represents a track (tlou) or album (alou) loudness info box.
// Kept as an opaque blob with accessor helpers, matching the treatment
// given to codec decoder config records: the format's loudness fields are
// a deeply nested set of optional sub-boxes this module does not need to
// interpret field-by-field to move the container around intact.
type LoudnessBox struct {
	Buffer []byte
}

func init() {
	RegisterBox(TypeMdat, boxCodec{decodeMdat, encodeMdat, encodingLengthMdat})
	RegisterBox(TypeIods, boxCodec{decodeIods, encodeIods, encodingLengthIods})
	loudness := boxCodec{decodeLoudness, encodeLoudness, encodingLengthLoudness}
	RegisterBox(TypeTlou, loudness)
	RegisterBox(TypeAlou, loudness)
}

// --- mdat ---

func decodeMdat(box *Box, buf []byte, start, end int) error {
	b := make([]byte, end-start)
	copy(b, buf[start:end])
	box.Mdat = &Mdat{Buffer: b}
	return nil
}

func encodeMdat(box *Box, buf []byte, offset int) int {
	m := box.Mdat
	if m.Buffer != nil {
		copy(buf[offset:], m.Buffer)
		return len(m.Buffer)
	}
	return m.ContentLength
}

func encodingLengthMdat(box *Box) int {
	m := box.Mdat
	if m.Buffer != nil {
		return len(m.Buffer)
	}
	return m.ContentLength
}

// --- iods ---

func decodeIods(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	box.Iods = &Iods{
		ObjectDescriptor: decodeDescriptor(b, 0, len(b)),
		Buffer:           append([]byte(nil), b...),
	}
	return nil
}

func encodeIods(box *Box, buf []byte, offset int) int {
	copy(buf[offset:], box.Iods.Buffer)
	return len(box.Iods.Buffer)
}

func encodingLengthIods(box *Box) int { return len(box.Iods.Buffer) }

// --- tlou / alou ---

func decodeLoudness(box *Box, buf []byte, start, end int) error {
	b := append([]byte(nil), buf[start:end]...)
	loud := &LoudnessBox{Buffer: b}
	if box.Type == TypeTlou {
		box.Tlou = loud
	} else {
		box.Alou = loud
	}
	return nil
}

func encodeLoudness(box *Box, buf []byte, offset int) int {
	loud := box.Tlou
	if box.Type == TypeAlou {
		loud = box.Alou
	}
	copy(buf[offset:], loud.Buffer)
	return len(loud.Buffer)
}

func encodingLengthLoudness(box *Box) int {
	loud := box.Tlou
	if box.Type == TypeAlou {
		loud = box.Alou
	}
	return len(loud.Buffer)
}
