package bmff

// SbgpEntry maps a run of samples to a sample group description index.
type SbgpEntry struct {
	SampleCount         uint32
	GroupDescriptionIndex uint32
}

// Sbgp represents the sample-to-group box.
type Sbgp struct {
	GroupingType          [4]byte
	GroupingTypeParameter uint32 // only meaningful when Version == 1
	Entries               []SbgpEntry
}

// SgpdEntry is one raw group description record; its internal shape
// depends on GroupingType and is left opaque here, matching the treatment
// given to codec decoder config records.
type SgpdEntry struct {
	Payload []byte
}

// Sgpd represents the sample group description box.
type Sgpd struct {
	GroupingType                 [4]byte
	DefaultLength                uint32 // Version >= 1
	DefaultSampleDescriptionIndex uint32 // Version == 2
	Entries                      []SgpdEntry
}

// Saiz represents the sample auxiliary information sizes box.
type Saiz struct {
	AuxInfoType         [4]byte // only present when flags & 1
	AuxInfoTypeParameter uint32
	DefaultSampleInfoSize byte
	SampleInfoSizes      []byte // only populated when DefaultSampleInfoSize == 0
}

// Saio represents the sample auxiliary information offsets box.
type Saio struct {
	AuxInfoType          [4]byte
	AuxInfoTypeParameter uint32
	Offsets              []int64 // widened regardless of version's on-wire size
}

func init() {
	RegisterBox(TypeSbgp, boxCodec{decodeSbgp, encodeSbgp, encodingLengthSbgp})
	RegisterBox(TypeSgpd, boxCodec{decodeSgpd, encodeSgpd, encodingLengthSgpd})
	RegisterBox(TypeSaiz, boxCodec{decodeSaiz, encodeSaiz, encodingLengthSaiz})
	RegisterBox(TypeSaio, boxCodec{decodeSaio, encodeSaio, encodingLengthSaio})
}

// --- sbgp ---

func decodeSbgp(box *Box, buf []byte, start, _ int) error {
	b := buf[start:]
	s := &Sbgp{}
	copy(s.GroupingType[:], b[0:4])
	ptr := 4
	if box.Version == 1 {
		s.GroupingTypeParameter = be.Uint32(b[ptr:])
		ptr += 4
	}
	num := int(be.Uint32(b[ptr:]))
	ptr += 4
	s.Entries = make([]SbgpEntry, num)
	for i := 0; i < num; i++ {
		s.Entries[i] = SbgpEntry{SampleCount: be.Uint32(b[ptr:]), GroupDescriptionIndex: be.Uint32(b[ptr+4:])}
		ptr += 8
	}
	box.Sbgp = s
	return nil
}

func encodeSbgp(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	s := box.Sbgp
	copy(b[0:4], s.GroupingType[:])
	ptr := 4
	if box.Version == 1 {
		be.PutUint32(b[ptr:], s.GroupingTypeParameter)
		ptr += 4
	}
	be.PutUint32(b[ptr:], uint32(len(s.Entries)))
	ptr += 4
	for _, e := range s.Entries {
		be.PutUint32(b[ptr:], e.SampleCount)
		be.PutUint32(b[ptr+4:], e.GroupDescriptionIndex)
		ptr += 8
	}
	return ptr
}

func encodingLengthSbgp(box *Box) int {
	n := 8 + len(box.Sbgp.Entries)*8
	if box.Version == 1 {
		n += 4
	}
	return n
}

// --- sgpd ---

func decodeSgpd(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	s := &Sgpd{}
	copy(s.GroupingType[:], b[0:4])
	ptr := 4
	if box.Version >= 1 {
		s.DefaultLength = be.Uint32(b[ptr:])
		ptr += 4
	}
	if box.Version == 2 {
		s.DefaultSampleDescriptionIndex = be.Uint32(b[ptr:])
		ptr += 4
	}
	num := int(be.Uint32(b[ptr:]))
	ptr += 4
	s.Entries = make([]SgpdEntry, num)
	for i := 0; i < num; i++ {
		length := int(s.DefaultLength)
		if box.Version >= 1 && length == 0 {
			length = int(be.Uint32(b[ptr:]))
			ptr += 4
		}
		if box.Version == 0 {
			length = int(be.Uint32(b[ptr:]))
			ptr += 4
		}
		payload := make([]byte, length)
		copy(payload, b[ptr:ptr+length])
		s.Entries[i] = SgpdEntry{Payload: payload}
		ptr += length
	}
	box.Sgpd = s
	return nil
}

func encodeSgpd(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	s := box.Sgpd
	copy(b[0:4], s.GroupingType[:])
	ptr := 4
	if box.Version >= 1 {
		be.PutUint32(b[ptr:], s.DefaultLength)
		ptr += 4
	}
	if box.Version == 2 {
		be.PutUint32(b[ptr:], s.DefaultSampleDescriptionIndex)
		ptr += 4
	}
	be.PutUint32(b[ptr:], uint32(len(s.Entries)))
	ptr += 4
	for _, e := range s.Entries {
		if box.Version == 0 || (box.Version >= 1 && s.DefaultLength == 0) {
			be.PutUint32(b[ptr:], uint32(len(e.Payload)))
			ptr += 4
		}
		copy(b[ptr:], e.Payload)
		ptr += len(e.Payload)
	}
	return ptr
}

func encodingLengthSgpd(box *Box) int {
	s := box.Sgpd
	n := 8
	if box.Version >= 1 {
		n += 4
	}
	if box.Version == 2 {
		n += 4
	}
	for _, e := range s.Entries {
		if box.Version == 0 || (box.Version >= 1 && s.DefaultLength == 0) {
			n += 4
		}
		n += len(e.Payload)
	}
	return n
}

// --- saiz ---

func decodeSaiz(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	s := &Saiz{}
	ptr := 0
	if box.Flags&1 != 0 {
		copy(s.AuxInfoType[:], b[0:4])
		s.AuxInfoTypeParameter = be.Uint32(b[4:8])
		ptr = 8
	}
	s.DefaultSampleInfoSize = b[ptr]
	ptr++
	count := int(be.Uint32(b[ptr:]))
	ptr += 4
	if s.DefaultSampleInfoSize == 0 {
		s.SampleInfoSizes = make([]byte, count)
		copy(s.SampleInfoSizes, b[ptr:ptr+count])
	}
	box.Saiz = s
	return nil
}

func encodeSaiz(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	s := box.Saiz
	ptr := 0
	if box.Flags&1 != 0 {
		copy(b[0:4], s.AuxInfoType[:])
		be.PutUint32(b[4:8], s.AuxInfoTypeParameter)
		ptr = 8
	}
	b[ptr] = s.DefaultSampleInfoSize
	ptr++
	be.PutUint32(b[ptr:], uint32(len(s.SampleInfoSizes)))
	ptr += 4
	if s.DefaultSampleInfoSize == 0 {
		copy(b[ptr:], s.SampleInfoSizes)
		ptr += len(s.SampleInfoSizes)
	}
	return ptr
}

func encodingLengthSaiz(box *Box) int {
	s := box.Saiz
	n := 5
	if box.Flags&1 != 0 {
		n += 8
	}
	if s.DefaultSampleInfoSize == 0 {
		n += len(s.SampleInfoSizes)
	}
	return n
}

// --- saio ---

func decodeSaio(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	s := &Saio{}
	ptr := 0
	if box.Flags&1 != 0 {
		copy(s.AuxInfoType[:], b[0:4])
		s.AuxInfoTypeParameter = be.Uint32(b[4:8])
		ptr = 8
	}
	count := int(be.Uint32(b[ptr:]))
	ptr += 4
	s.Offsets = make([]int64, count)
	for i := 0; i < count; i++ {
		if box.Version == 1 {
			s.Offsets[i] = int64(be.Uint64(b[ptr:]))
			ptr += 8
		} else {
			s.Offsets[i] = int64(be.Uint32(b[ptr:]))
			ptr += 4
		}
	}
	box.Saio = s
	return nil
}

func encodeSaio(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	s := box.Saio
	ptr := 0
	if box.Flags&1 != 0 {
		copy(b[0:4], s.AuxInfoType[:])
		be.PutUint32(b[4:8], s.AuxInfoTypeParameter)
		ptr = 8
	}
	be.PutUint32(b[ptr:], uint32(len(s.Offsets)))
	ptr += 4
	for _, o := range s.Offsets {
		if box.Version == 1 {
			be.PutUint64(b[ptr:], uint64(o))
			ptr += 8
		} else {
			be.PutUint32(b[ptr:], uint32(o))
			ptr += 4
		}
	}
	return ptr
}

func encodingLengthSaio(box *Box) int {
	s := box.Saio
	n := 4
	if box.Flags&1 != 0 {
		n += 8
	}
	if box.Version == 1 {
		n += len(s.Offsets) * 8
	} else {
		n += len(s.Offsets) * 4
	}
	return n
}
