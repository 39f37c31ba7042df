package bmff

// SidxReference is one reference entry of a segment index box.
type SidxReference struct {
	ReferenceType      bool // true: reference points at another sidx
	ReferencedSize     uint32
	SubsegmentDuration uint32
	StartsWithSAP      bool
	SAPType            byte
	SAPDeltaTime       uint32
}

// Sidx represents the segment index box.
type Sidx struct {
	ReferenceID                uint32
	Timescale                  uint32
	EarliestPresentationTime   uint64
	FirstOffset                uint64
	References                 []SidxReference
}

// Emsg represents the event message box (DASH inband events).
type Emsg struct {
	SchemeIdUri   string
	Value         string
	Timescale     uint32
	PresentationTimeDelta uint32
	PresentationTime      uint64 // version 1 only
	EventDuration uint32
	Id            uint32
	MessageData   []byte
}

// Leva represents the level assignment box.
type Leva struct {
	Buffer []byte
}

func init() {
	RegisterBox(TypeSidx, boxCodec{decodeSidx, encodeSidx, encodingLengthSidx})
	RegisterBox(TypeEmsg, boxCodec{decodeEmsg, encodeEmsg, encodingLengthEmsg})
	RegisterBox(TypeLeva, boxCodec{decodeLeva, encodeLeva, encodingLengthLeva})
}

// --- sidx ---

func decodeSidx(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	s := &Sidx{}
	s.ReferenceID = be.Uint32(b[0:4])
	s.Timescale = be.Uint32(b[4:8])
	ptr := 8
	if box.Version == 0 {
		s.EarliestPresentationTime = uint64(be.Uint32(b[ptr:]))
		s.FirstOffset = uint64(be.Uint32(b[ptr+4:]))
		ptr += 8
	} else {
		s.EarliestPresentationTime = be.Uint64(b[ptr:])
		s.FirstOffset = be.Uint64(b[ptr+8:])
		ptr += 16
	}
	ptr += 2 // reserved
	count := int(be.Uint16(b[ptr:]))
	ptr += 2
	s.References = make([]SidxReference, count)
	for i := 0; i < count; i++ {
		w1 := be.Uint32(b[ptr:])
		dur := be.Uint32(b[ptr+4:])
		w2 := be.Uint32(b[ptr+8:])
		s.References[i] = SidxReference{
			ReferenceType:      w1&0x80000000 != 0,
			ReferencedSize:     w1 & 0x7fffffff,
			SubsegmentDuration: dur,
			StartsWithSAP:      w2&0x80000000 != 0,
			SAPType:            byte((w2 >> 28) & 0x07),
			SAPDeltaTime:       w2 & 0x0fffffff,
		}
		ptr += 12
	}
	box.Sidx = s
	return nil
}

func encodeSidx(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	s := box.Sidx
	be.PutUint32(b[0:4], s.ReferenceID)
	be.PutUint32(b[4:8], s.Timescale)
	ptr := 8
	if box.Version == 0 {
		be.PutUint32(b[ptr:], uint32(s.EarliestPresentationTime))
		be.PutUint32(b[ptr+4:], uint32(s.FirstOffset))
		ptr += 8
	} else {
		be.PutUint64(b[ptr:], s.EarliestPresentationTime)
		be.PutUint64(b[ptr+8:], s.FirstOffset)
		ptr += 16
	}
	be.PutUint16(b[ptr:], 0)
	ptr += 2
	be.PutUint16(b[ptr:], uint16(len(s.References)))
	ptr += 2
	for _, r := range s.References {
		w1 := r.ReferencedSize & 0x7fffffff
		if r.ReferenceType {
			w1 |= 0x80000000
		}
		be.PutUint32(b[ptr:], w1)
		be.PutUint32(b[ptr+4:], r.SubsegmentDuration)
		w2 := r.SAPDeltaTime&0x0fffffff | (uint32(r.SAPType&0x07) << 28)
		if r.StartsWithSAP {
			w2 |= 0x80000000
		}
		be.PutUint32(b[ptr+8:], w2)
		ptr += 12
	}
	return ptr
}

func encodingLengthSidx(box *Box) int {
	s := box.Sidx
	n := 12
	if box.Version == 0 {
		n += 8
	} else {
		n += 16
	}
	return n + len(s.References)*12
}

// --- emsg ---

func decodeEmsg(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	e := &Emsg{}
	ptr := 0
	if box.Version == 0 {
		e.SchemeIdUri = readString(b, 0, len(b))
		ptr = len(e.SchemeIdUri) + 1
		e.Value = readString(b, ptr, len(b))
		ptr += len(e.Value) + 1
		e.Timescale = be.Uint32(b[ptr:])
		e.PresentationTimeDelta = be.Uint32(b[ptr+4:])
		e.EventDuration = be.Uint32(b[ptr+8:])
		e.Id = be.Uint32(b[ptr+12:])
		ptr += 16
	} else {
		e.Timescale = be.Uint32(b[ptr:])
		e.PresentationTime = be.Uint64(b[ptr+4:])
		e.EventDuration = be.Uint32(b[ptr+12:])
		e.Id = be.Uint32(b[ptr+16:])
		ptr += 20
		e.SchemeIdUri = readString(b, ptr, len(b))
		ptr += len(e.SchemeIdUri) + 1
		e.Value = readString(b, ptr, len(b))
		ptr += len(e.Value) + 1
	}
	e.MessageData = append([]byte(nil), b[ptr:]...)
	box.Emsg = e
	return nil
}

func encodeEmsg(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	e := box.Emsg
	ptr := 0
	if box.Version == 0 {
		ptr += copy(b[ptr:], e.SchemeIdUri)
		b[ptr] = 0
		ptr++
		ptr += copy(b[ptr:], e.Value)
		b[ptr] = 0
		ptr++
		be.PutUint32(b[ptr:], e.Timescale)
		be.PutUint32(b[ptr+4:], e.PresentationTimeDelta)
		be.PutUint32(b[ptr+8:], e.EventDuration)
		be.PutUint32(b[ptr+12:], e.Id)
		ptr += 16
	} else {
		be.PutUint32(b[ptr:], e.Timescale)
		be.PutUint64(b[ptr+4:], e.PresentationTime)
		be.PutUint32(b[ptr+12:], e.EventDuration)
		be.PutUint32(b[ptr+16:], e.Id)
		ptr += 20
		ptr += copy(b[ptr:], e.SchemeIdUri)
		b[ptr] = 0
		ptr++
		ptr += copy(b[ptr:], e.Value)
		b[ptr] = 0
		ptr++
	}
	ptr += copy(b[ptr:], e.MessageData)
	return ptr
}

func encodingLengthEmsg(box *Box) int {
	e := box.Emsg
	if box.Version == 0 {
		return len(e.SchemeIdUri) + 1 + len(e.Value) + 1 + 16 + len(e.MessageData)
	}
	return 20 + len(e.SchemeIdUri) + 1 + len(e.Value) + 1 + len(e.MessageData)
}

// --- leva ---

func decodeLeva(box *Box, buf []byte, start, end int) error {
	box.Leva = &Leva{Buffer: append([]byte(nil), buf[start:end]...)}
	return nil
}

func encodeLeva(box *Box, buf []byte, offset int) int {
	copy(buf[offset:], box.Leva.Buffer)
	return len(box.Leva.Buffer)
}

func encodingLengthLeva(box *Box) int { return len(box.Leva.Buffer) }
