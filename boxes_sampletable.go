package bmff

// Stsd represents the sample description box; its entries are full boxes
// (sample entries) rather than plain records, so they go through the
// generic Decode/EncodeBox path.
type Stsd struct {
	Entries []*Box
}

// Stts is a run-length encoded decoding time-to-sample table.
type STTSEntry struct {
	Count    uint32
	Duration uint32
}

type Stts struct {
	Entries []STTSEntry
}

// Ctts is a run-length encoded composition time offset table.
type CTTSEntry struct {
	Count             uint32
	CompositionOffset int32
}

type Ctts struct {
	V1      bool
	Entries []CTTSEntry
}

// Stsc is a run-length encoded sample-to-chunk table.
type STSCEntry struct {
	FirstChunk          uint32
	SamplesPerChunk     uint32
	SampleDescriptionId uint32
}

type Stsc struct {
	Entries []STSCEntry
}

// Stsz is the sample size table (uniform or per-sample).
type Stsz struct {
	SampleSize uint32
	Entries    []uint32
}

// Stco is the 32-bit chunk offset table.
type Stco struct {
	Entries []uint32
}

// Co64 is the 64-bit chunk offset table.
type Co64 struct {
	Entries []uint64
}

// Stss is the sync sample (keyframe) table; absence of this box means every
// sample is a sync sample.
type Stss struct {
	SampleNumbers []uint32
}

// Sdtp carries per-sample dependency flags parallel to the sample table.
type Sdtp struct {
	Entries []byte
}

// Cslg maps the composition timeline onto the decoding timeline.
type Cslg struct {
	CompositionToDtsShift       int64
	LeastDecodeToDisplayDelta   int64
	GreatestDecodeToDisplayDelta int64
	CompositionStartTime        int64
	CompositionEndTime          int64
}

func init() {
	RegisterBox(TypeStsd, boxCodec{decodeStsd, encodeStsd, encodingLengthStsd})
	RegisterBox(TypeStts, boxCodec{decodeStts, encodeStts, encodingLengthStts})
	RegisterBox(TypeCtts, boxCodec{decodeCtts, encodeCtts, encodingLengthCtts})
	RegisterBox(TypeStsc, boxCodec{decodeStsc, encodeStsc, encodingLengthStsc})
	RegisterBox(TypeStsz, boxCodec{decodeStsz, encodeStsz, encodingLengthStsz})
	RegisterBox(TypeStco, boxCodec{decodeStco, encodeStco, encodingLengthStco})
	RegisterBox(TypeCo64, boxCodec{decodeCo64, encodeCo64, encodingLengthCo64})
	RegisterBox(TypeStss, boxCodec{decodeStss, encodeStss, encodingLengthStss})
	RegisterBox(TypeSdtp, boxCodec{decodeSdtp, encodeSdtp, encodingLengthSdtp})
	RegisterBox(TypeCslg, boxCodec{decodeCslg, encodeCslg, encodingLengthCslg})
}

// --- stsd ---

func decodeStsd(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	num := int(be.Uint32(b[0:4]))
	s := &Stsd{Entries: make([]*Box, 0, num)}
	ptr := 4
	for i := 0; i < num; i++ {
		entry, err := Decode(buf, start+ptr, end)
		if err != nil {
			return err
		}
		s.Entries = append(s.Entries, entry)
		ptr += int(entry.Size)
	}
	box.Stsd = s
	return nil
}

func encodeStsd(box *Box, buf []byte, offset int) int {
	s := box.Stsd
	be.PutUint32(buf[offset:], uint32(len(s.Entries)))
	ptr := offset + 4
	for _, entry := range s.Entries {
		n, _ := EncodeBox(entry, buf, ptr)
		ptr += n
	}
	return ptr - offset
}

func encodingLengthStsd(box *Box) int {
	total := 4
	for _, entry := range box.Stsd.Entries {
		total += int(EncodingLength(entry))
	}
	return total
}

// --- stts ---

func decodeStts(box *Box, buf []byte, start, _ int) error {
	b := buf[start:]
	num := int(be.Uint32(b[0:4]))
	entries := make([]STTSEntry, num)
	for i := 0; i < num; i++ {
		ptr := 4 + i*8
		entries[i] = STTSEntry{Count: be.Uint32(b[ptr:]), Duration: be.Uint32(b[ptr+4:])}
	}
	box.Stts = &Stts{Entries: entries}
	return nil
}

func encodeStts(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	s := box.Stts
	be.PutUint32(b[0:4], uint32(len(s.Entries)))
	for i, e := range s.Entries {
		ptr := 4 + i*8
		be.PutUint32(b[ptr:], e.Count)
		be.PutUint32(b[ptr+4:], e.Duration)
	}
	return 4 + len(s.Entries)*8
}

func encodingLengthStts(box *Box) int { return 4 + len(box.Stts.Entries)*8 }

// --- ctts ---

func decodeCtts(box *Box, buf []byte, start, _ int) error {
	b := buf[start:]
	num := int(be.Uint32(b[0:4]))
	entries := make([]CTTSEntry, num)
	for i := 0; i < num; i++ {
		ptr := 4 + i*8
		entries[i] = CTTSEntry{Count: be.Uint32(b[ptr:]), CompositionOffset: int32(be.Uint32(b[ptr+4:]))}
	}
	box.Ctts = &Ctts{V1: box.Version == 1, Entries: entries}
	return nil
}

func encodeCtts(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	s := box.Ctts
	be.PutUint32(b[0:4], uint32(len(s.Entries)))
	for i, e := range s.Entries {
		ptr := 4 + i*8
		be.PutUint32(b[ptr:], e.Count)
		be.PutUint32(b[ptr+4:], uint32(e.CompositionOffset))
	}
	return 4 + len(s.Entries)*8
}

func encodingLengthCtts(box *Box) int { return 4 + len(box.Ctts.Entries)*8 }

// --- stsc ---

func decodeStsc(box *Box, buf []byte, start, _ int) error {
	b := buf[start:]
	num := int(be.Uint32(b[0:4]))
	entries := make([]STSCEntry, num)
	for i := 0; i < num; i++ {
		ptr := 4 + i*12
		entries[i] = STSCEntry{
			FirstChunk:          be.Uint32(b[ptr:]),
			SamplesPerChunk:     be.Uint32(b[ptr+4:]),
			SampleDescriptionId: be.Uint32(b[ptr+8:]),
		}
	}
	box.Stsc = &Stsc{Entries: entries}
	return nil
}

func encodeStsc(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	s := box.Stsc
	be.PutUint32(b[0:4], uint32(len(s.Entries)))
	for i, e := range s.Entries {
		ptr := 4 + i*12
		be.PutUint32(b[ptr:], e.FirstChunk)
		be.PutUint32(b[ptr+4:], e.SamplesPerChunk)
		be.PutUint32(b[ptr+8:], e.SampleDescriptionId)
	}
	return 4 + len(s.Entries)*12
}

func encodingLengthStsc(box *Box) int { return 4 + len(box.Stsc.Entries)*12 }

// --- stsz ---

func decodeStsz(box *Box, buf []byte, start, _ int) error {
	b := buf[start:]
	sampleSize := be.Uint32(b[0:4])
	num := int(be.Uint32(b[4:8]))
	entries := make([]uint32, num)
	for i := 0; i < num; i++ {
		if sampleSize == 0 {
			entries[i] = be.Uint32(b[8+i*4:])
		} else {
			entries[i] = sampleSize
		}
	}
	box.Stsz = &Stsz{SampleSize: sampleSize, Entries: entries}
	return nil
}

func encodeStsz(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	s := box.Stsz
	be.PutUint32(b[0:4], s.SampleSize)
	be.PutUint32(b[4:8], uint32(len(s.Entries)))
	if s.SampleSize != 0 {
		return 8
	}
	for i, e := range s.Entries {
		be.PutUint32(b[8+i*4:], e)
	}
	return 8 + len(s.Entries)*4
}

func encodingLengthStsz(box *Box) int {
	if box.Stsz.SampleSize != 0 {
		return 8
	}
	return 8 + len(box.Stsz.Entries)*4
}

// --- stco ---

func decodeStco(box *Box, buf []byte, start, _ int) error {
	b := buf[start:]
	num := int(be.Uint32(b[0:4]))
	entries := make([]uint32, num)
	for i := 0; i < num; i++ {
		entries[i] = be.Uint32(b[4+i*4:])
	}
	box.Stco = &Stco{Entries: entries}
	return nil
}

func encodeStco(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	s := box.Stco
	be.PutUint32(b[0:4], uint32(len(s.Entries)))
	for i, e := range s.Entries {
		be.PutUint32(b[4+i*4:], e)
	}
	return 4 + len(s.Entries)*4
}

func encodingLengthStco(box *Box) int { return 4 + len(box.Stco.Entries)*4 }

// --- co64 ---

func decodeCo64(box *Box, buf []byte, start, _ int) error {
	b := buf[start:]
	num := int(be.Uint32(b[0:4]))
	entries := make([]uint64, num)
	for i := 0; i < num; i++ {
		entries[i] = be.Uint64(b[4+i*8:])
	}
	box.Co64 = &Co64{Entries: entries}
	return nil
}

func encodeCo64(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	s := box.Co64
	be.PutUint32(b[0:4], uint32(len(s.Entries)))
	for i, e := range s.Entries {
		be.PutUint64(b[4+i*8:], e)
	}
	return 4 + len(s.Entries)*8
}

func encodingLengthCo64(box *Box) int { return 4 + len(box.Co64.Entries)*8 }

// --- stss ---

func decodeStss(box *Box, buf []byte, start, _ int) error {
	b := buf[start:]
	num := int(be.Uint32(b[0:4]))
	entries := make([]uint32, num)
	for i := 0; i < num; i++ {
		entries[i] = be.Uint32(b[4+i*4:])
	}
	box.Stss = &Stss{SampleNumbers: entries}
	return nil
}

func encodeStss(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	s := box.Stss
	be.PutUint32(b[0:4], uint32(len(s.SampleNumbers)))
	for i, e := range s.SampleNumbers {
		be.PutUint32(b[4+i*4:], e)
	}
	return 4 + len(s.SampleNumbers)*4
}

func encodingLengthStss(box *Box) int { return 4 + len(box.Stss.SampleNumbers)*4 }

// --- sdtp ---

func decodeSdtp(box *Box, buf []byte, start, end int) error {
	b := make([]byte, end-start)
	copy(b, buf[start:end])
	box.Sdtp = &Sdtp{Entries: b}
	return nil
}

func encodeSdtp(box *Box, buf []byte, offset int) int {
	copy(buf[offset:], box.Sdtp.Entries)
	return len(box.Sdtp.Entries)
}

func encodingLengthSdtp(box *Box) int { return len(box.Sdtp.Entries) }

// --- cslg ---

func decodeCslg(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	c := &Cslg{}
	if box.Version == 1 {
		c.CompositionToDtsShift = int64(int64(be.Uint64(b[0:8])))
		c.LeastDecodeToDisplayDelta = int64(be.Uint64(b[8:16]))
		c.GreatestDecodeToDisplayDelta = int64(be.Uint64(b[16:24]))
		c.CompositionStartTime = int64(be.Uint64(b[24:32]))
		c.CompositionEndTime = int64(be.Uint64(b[32:40]))
	} else {
		c.CompositionToDtsShift = int64(int32(be.Uint32(b[0:4])))
		c.LeastDecodeToDisplayDelta = int64(int32(be.Uint32(b[4:8])))
		c.GreatestDecodeToDisplayDelta = int64(int32(be.Uint32(b[8:12])))
		c.CompositionStartTime = int64(int32(be.Uint32(b[12:16])))
		c.CompositionEndTime = int64(int32(be.Uint32(b[16:20])))
	}
	box.Cslg = c
	return nil
}

func encodeCslg(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	c := box.Cslg
	if box.Version == 1 {
		be.PutUint64(b[0:8], uint64(c.CompositionToDtsShift))
		be.PutUint64(b[8:16], uint64(c.LeastDecodeToDisplayDelta))
		be.PutUint64(b[16:24], uint64(c.GreatestDecodeToDisplayDelta))
		be.PutUint64(b[24:32], uint64(c.CompositionStartTime))
		be.PutUint64(b[32:40], uint64(c.CompositionEndTime))
		return 40
	}
	be.PutUint32(b[0:4], uint32(int32(c.CompositionToDtsShift)))
	be.PutUint32(b[4:8], uint32(int32(c.LeastDecodeToDisplayDelta)))
	be.PutUint32(b[8:12], uint32(int32(c.GreatestDecodeToDisplayDelta)))
	be.PutUint32(b[12:16], uint32(int32(c.CompositionStartTime)))
	be.PutUint32(b[16:20], uint32(int32(c.CompositionEndTime)))
	return 20
}

func encodingLengthCslg(box *Box) int {
	if box.Version == 1 {
		return 40
	}
	return 20
}
