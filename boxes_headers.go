package bmff

import "fmt"

// Ftyp represents the file type (or segment type, for styp) box.
type Ftyp struct {
	Brand            [4]byte
	BrandVersion     uint32
	CompatibleBrands [][4]byte
}

// Styp is structurally identical to Ftyp; it additionally signals an
// "lmsg" compatible brand meaning "last segment of the representation".
type Styp = Ftyp

// IsLastSegment reports whether f carries the lmsg compatible brand.
func (f *Ftyp) IsLastSegment() bool {
	for _, b := range f.CompatibleBrands {
		if b == [4]byte{'l', 'm', 's', 'g'} {
			return true
		}
	}
	return false
}

// Mvhd represents the movie header box.
type Mvhd struct {
	V1                bool
	CTime             [8]byte
	MTime             [8]byte
	TimeScale         uint32
	Duration          uint64
	PreferredRate     [4]byte
	PreferredVolume   [2]byte
	Matrix            [36]byte
	PreviewTime       uint32
	PreviewDuration   uint32
	PosterTime        uint32
	SelectionTime     uint32
	SelectionDuration uint32
	CurrentTime       uint32
	NextTrackId       uint32
}

// Tkhd represents the track header box.
type Tkhd struct {
	V1             bool
	CTime          [8]byte
	MTime          [8]byte
	TrackId        uint32
	Duration       uint64
	Layer          uint16
	AlternateGroup uint16
	Volume         uint16
	Matrix         [36]byte
	TrackWidth     uint32
	TrackHeight    uint32
}

// Mdhd represents the media header box.
type Mdhd struct {
	CTime     [8]byte
	MTime     [8]byte
	TimeScale uint32
	Duration  uint64
	Language  uint16
	Quality   uint16
	V1        bool
}

// Hdlr represents the handler reference box.
type Hdlr struct {
	HandlerType [4]byte
	Name        string
}

// Vmhd represents the video media header box.
type Vmhd struct {
	GraphicsMode uint16
	Opcolor      [3]uint16
}

// Smhd represents the sound media header box.
type Smhd struct {
	Balance uint16
}

// DrefEntry is a single data reference entry (url/urn/other).
type DrefEntry struct {
	Type [4]byte
	Buf  []byte
}

// DrefBox represents the data reference box.
type DrefBox struct {
	Entries []DrefEntry
}

// ElstEntry is an edit list entry.
type ElstEntry struct {
	TrackDuration int64
	MediaTime     int64
	MediaRate     [4]byte
}

// Elst represents the edit list box.
type Elst struct {
	V1      bool
	Entries []ElstEntry
}

func init() {
	RegisterBox(TypeFtyp, boxCodec{decodeFtyp, encodeFtyp, encodingLengthFtyp})
	RegisterBox(TypeStyp, boxCodec{decodeFtyp, encodeFtyp, encodingLengthFtyp})
	RegisterBox(TypeMvhd, boxCodec{decodeMvhd, encodeMvhd, encodingLengthMvhd})
	RegisterBox(TypeTkhd, boxCodec{decodeTkhd, encodeTkhd, encodingLengthTkhd})
	RegisterBox(TypeMdhd, boxCodec{decodeMdhd, encodeMdhd, encodingLengthMdhd})
	RegisterBox(TypeHdlr, boxCodec{decodeHdlr, encodeHdlr, encodingLengthHdlr})
	RegisterBox(TypeVmhd, boxCodec{decodeVmhd, encodeVmhd, encodingLengthVmhd})
	RegisterBox(TypeSmhd, boxCodec{decodeSmhd, encodeSmhd, encodingLengthSmhd})
	RegisterBox(TypeDref, boxCodec{decodeDref, encodeDref, encodingLengthDref})
	RegisterBox(TypeElst, boxCodec{decodeElst, encodeElst, encodingLengthElst})
}

// --- ftyp / styp ---

func decodeFtyp(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	if len(b) < 8 {
		return fmt.Errorf("ftyp too short")
	}
	f := &Ftyp{}
	copy(f.Brand[:], b[0:4])
	f.BrandVersion = be.Uint32(b[4:8])
	for i := 8; i+4 <= len(b); i += 4 {
		var brand [4]byte
		copy(brand[:], b[i:i+4])
		f.CompatibleBrands = append(f.CompatibleBrands, brand)
	}
	box.Ftyp = f
	return nil
}

func encodeFtyp(box *Box, buf []byte, offset int) int {
	f := box.Ftyp
	b := buf[offset:]
	copy(b[0:4], f.Brand[:])
	be.PutUint32(b[4:8], f.BrandVersion)
	for i, brand := range f.CompatibleBrands {
		copy(b[8+i*4:], brand[:])
	}
	return 8 + len(f.CompatibleBrands)*4
}

func encodingLengthFtyp(box *Box) int {
	return 8 + len(box.Ftyp.CompatibleBrands)*4
}

// --- mvhd ---

func decodeMvhd(box *Box, buf []byte, start, _ int) error {
	b := buf[start:]
	m := &Mvhd{V1: box.Version == 1}
	ptr := 0
	if m.V1 {
		copy(m.CTime[:], b[0:8])
		copy(m.MTime[:], b[8:16])
		ptr = 16
		m.TimeScale = be.Uint32(b[ptr : ptr+4])
		m.Duration = be.Uint64(b[ptr+4 : ptr+12])
		ptr += 12
	} else {
		copy(m.CTime[:4], b[0:4])
		copy(m.MTime[:4], b[4:8])
		ptr = 8
		m.TimeScale = be.Uint32(b[ptr : ptr+4])
		m.Duration = uint64(be.Uint32(b[ptr+4 : ptr+8]))
		ptr += 8
	}
	copy(m.PreferredRate[:], b[ptr:ptr+4])
	copy(m.PreferredVolume[:], b[ptr+4:ptr+6])
	ptr += 16 // rate(4) + volume(2) + reserved(2) + reserved(8)
	copy(m.Matrix[:], b[ptr:ptr+36])
	ptr += 36
	m.PreviewTime = be.Uint32(b[ptr : ptr+4])
	m.PreviewDuration = be.Uint32(b[ptr+4 : ptr+8])
	m.PosterTime = be.Uint32(b[ptr+8 : ptr+12])
	m.SelectionTime = be.Uint32(b[ptr+12 : ptr+16])
	m.SelectionDuration = be.Uint32(b[ptr+16 : ptr+20])
	m.CurrentTime = be.Uint32(b[ptr+20 : ptr+24])
	m.NextTrackId = be.Uint32(b[ptr+24 : ptr+28])
	box.Mvhd = m
	return nil
}

func encodeMvhd(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	m := box.Mvhd
	ptr := 0
	if m.V1 {
		copy(b[0:8], m.CTime[:])
		copy(b[8:16], m.MTime[:])
		ptr = 16
		be.PutUint32(b[ptr:ptr+4], m.TimeScale)
		be.PutUint64(b[ptr+4:ptr+12], m.Duration)
		ptr += 12
	} else {
		copy(b[0:4], m.CTime[:4])
		copy(b[4:8], m.MTime[:4])
		ptr = 8
		be.PutUint32(b[ptr:ptr+4], m.TimeScale)
		be.PutUint32(b[ptr+4:ptr+8], uint32(m.Duration))
		ptr += 8
	}
	copy(b[ptr:ptr+4], m.PreferredRate[:])
	copy(b[ptr+4:ptr+6], m.PreferredVolume[:])
	clearBytes(b, ptr+6, ptr+16)
	ptr += 16
	copy(b[ptr:ptr+36], m.Matrix[:])
	ptr += 36
	be.PutUint32(b[ptr:ptr+4], m.PreviewTime)
	be.PutUint32(b[ptr+4:ptr+8], m.PreviewDuration)
	be.PutUint32(b[ptr+8:ptr+12], m.PosterTime)
	be.PutUint32(b[ptr+12:ptr+16], m.SelectionTime)
	be.PutUint32(b[ptr+16:ptr+20], m.SelectionDuration)
	be.PutUint32(b[ptr+20:ptr+24], m.CurrentTime)
	be.PutUint32(b[ptr+24:ptr+28], m.NextTrackId)
	ptr += 28
	return ptr
}

func encodingLengthMvhd(box *Box) int {
	if box.Mvhd.V1 {
		return 108
	}
	return 96
}

// --- tkhd ---

func decodeTkhd(box *Box, buf []byte, start, _ int) error {
	b := buf[start:]
	t := &Tkhd{V1: box.Version == 1}
	ptr := 0
	if t.V1 {
		copy(t.CTime[:], b[0:8])
		copy(t.MTime[:], b[8:16])
		t.TrackId = be.Uint32(b[16:20])
		t.Duration = be.Uint64(b[24:32])
		ptr = 32
	} else {
		copy(t.CTime[:4], b[0:4])
		copy(t.MTime[:4], b[4:8])
		t.TrackId = be.Uint32(b[8:12])
		t.Duration = uint64(be.Uint32(b[16:20]))
		ptr = 20
	}
	ptr += 8 // reserved(8)
	t.Layer = be.Uint16(b[ptr : ptr+2])
	t.AlternateGroup = be.Uint16(b[ptr+2 : ptr+4])
	t.Volume = be.Uint16(b[ptr+4 : ptr+6])
	ptr += 8 // layer(2) + alternate_group(2) + volume(2) + reserved(2)
	copy(t.Matrix[:], b[ptr:ptr+36])
	ptr += 36
	t.TrackWidth = be.Uint32(b[ptr : ptr+4])
	t.TrackHeight = be.Uint32(b[ptr+4 : ptr+8])
	box.Tkhd = t
	return nil
}

func encodeTkhd(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	t := box.Tkhd
	ptr := 0
	if t.V1 {
		copy(b[0:8], t.CTime[:])
		copy(b[8:16], t.MTime[:])
		be.PutUint32(b[16:20], t.TrackId)
		clearBytes(b, 20, 24)
		be.PutUint64(b[24:32], t.Duration)
		ptr = 32
	} else {
		copy(b[0:4], t.CTime[:4])
		copy(b[4:8], t.MTime[:4])
		be.PutUint32(b[8:12], t.TrackId)
		clearBytes(b, 12, 16)
		be.PutUint32(b[16:20], uint32(t.Duration))
		ptr = 20
	}
	clearBytes(b, ptr, ptr+8)
	ptr += 8
	be.PutUint16(b[ptr:ptr+2], t.Layer)
	be.PutUint16(b[ptr+2:ptr+4], t.AlternateGroup)
	be.PutUint16(b[ptr+4:ptr+6], t.Volume)
	clearBytes(b, ptr+6, ptr+8)
	ptr += 8
	copy(b[ptr:ptr+36], t.Matrix[:])
	ptr += 36
	be.PutUint32(b[ptr:ptr+4], t.TrackWidth)
	be.PutUint32(b[ptr+4:ptr+8], t.TrackHeight)
	ptr += 8
	return ptr
}

func encodingLengthTkhd(box *Box) int {
	if box.Tkhd.V1 {
		return 92
	}
	return 80
}

// --- mdhd ---

func decodeMdhd(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	m := &Mdhd{}
	contentLen := end - start

	if contentLen != 20 {
		m.V1 = true
		copy(m.CTime[:], b[0:8])
		copy(m.MTime[:], b[8:16])
		m.TimeScale = be.Uint32(b[16:20])
		m.Duration = be.Uint64(b[20:28])
		m.Language = be.Uint16(b[28:30])
		m.Quality = be.Uint16(b[30:32])
	} else {
		copy(m.CTime[:4], b[0:4])
		copy(m.MTime[:4], b[4:8])
		m.TimeScale = be.Uint32(b[8:12])
		m.Duration = uint64(be.Uint32(b[12:16]))
		m.Language = be.Uint16(b[16:18])
		m.Quality = be.Uint16(b[18:20])
	}
	box.Mdhd = m
	return nil
}

func encodeMdhd(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	m := box.Mdhd

	if m.V1 {
		copy(b[0:8], m.CTime[:])
		copy(b[8:16], m.MTime[:])
		be.PutUint32(b[16:20], m.TimeScale)
		be.PutUint64(b[20:28], m.Duration)
		be.PutUint16(b[28:30], m.Language)
		be.PutUint16(b[30:32], m.Quality)
		return 32
	}

	copy(b[0:4], m.CTime[:4])
	copy(b[4:8], m.MTime[:4])
	be.PutUint32(b[8:12], m.TimeScale)
	be.PutUint32(b[12:16], uint32(m.Duration))
	be.PutUint16(b[16:18], m.Language)
	be.PutUint16(b[18:20], m.Quality)
	return 20
}

func encodingLengthMdhd(box *Box) int {
	if box.Mdhd.V1 {
		return 32
	}
	return 20
}

// --- hdlr ---

func decodeHdlr(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	h := &Hdlr{}
	copy(h.HandlerType[:], b[4:8])
	h.Name = readString(b, 20, end-start)
	box.Hdlr = h
	return nil
}

func encodeHdlr(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	h := box.Hdlr
	nameLen := len(h.Name)
	total := 21 + nameLen
	clearBytes(b, 0, total)
	copy(b[4:8], h.HandlerType[:])
	copy(b[20:], h.Name)
	b[20+nameLen] = 0
	return total
}

func encodingLengthHdlr(box *Box) int {
	return 21 + len(box.Hdlr.Name)
}

// --- vmhd ---

func decodeVmhd(box *Box, buf []byte, start, _ int) error {
	b := buf[start:]
	box.Vmhd = &Vmhd{
		GraphicsMode: be.Uint16(b[0:2]),
		Opcolor:      [3]uint16{be.Uint16(b[2:4]), be.Uint16(b[4:6]), be.Uint16(b[6:8])},
	}
	return nil
}

func encodeVmhd(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	v := box.Vmhd
	be.PutUint16(b[0:2], v.GraphicsMode)
	be.PutUint16(b[2:4], v.Opcolor[0])
	be.PutUint16(b[4:6], v.Opcolor[1])
	be.PutUint16(b[6:8], v.Opcolor[2])
	return 8
}

func encodingLengthVmhd(_ *Box) int { return 8 }

// --- smhd ---

func decodeSmhd(box *Box, buf []byte, start, _ int) error {
	box.Smhd = &Smhd{Balance: be.Uint16(buf[start:])}
	return nil
}

func encodeSmhd(box *Box, buf []byte, offset int) int {
	be.PutUint16(buf[offset:], box.Smhd.Balance)
	clearBytes(buf, offset+2, offset+4)
	return 4
}

func encodingLengthSmhd(_ *Box) int { return 4 }

// --- dref ---

func decodeDref(box *Box, buf []byte, start, _ int) error {
	b := buf[start:]
	num := int(be.Uint32(b[0:4]))
	entries := make([]DrefEntry, num)
	ptr := 4
	for i := 0; i < num; i++ {
		size := int(be.Uint32(b[ptr:]))
		var t [4]byte
		copy(t[:], b[ptr+4:ptr+8])
		dataBuf := make([]byte, size-8)
		copy(dataBuf, b[ptr+8:ptr+size])
		entries[i] = DrefEntry{Type: t, Buf: dataBuf}
		ptr += size
	}
	box.Dref = &DrefBox{Entries: entries}
	return nil
}

func encodeDref(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	d := box.Dref
	be.PutUint32(b[0:4], uint32(len(d.Entries)))
	ptr := 4
	for _, e := range d.Entries {
		size := 8 + len(e.Buf)
		be.PutUint32(b[ptr:], uint32(size))
		copy(b[ptr+4:], e.Type[:])
		copy(b[ptr+8:], e.Buf)
		ptr += size
	}
	return ptr
}

func encodingLengthDref(box *Box) int {
	total := 4
	for _, e := range box.Dref.Entries {
		total += 8 + len(e.Buf)
	}
	return total
}

// --- elst ---

func decodeElst(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	v1 := box.Version == 1
	stride := 12
	if v1 {
		stride = 20
	}
	num := int(be.Uint32(b[0:4]))
	entries := make([]ElstEntry, num)
	ptr := 4
	for i := 0; i < num; i++ {
		var dur, mt int64
		var mr [4]byte
		if v1 {
			dur = int64(be.Uint64(b[ptr : ptr+8]))
			mt = int64(be.Uint64(b[ptr+8 : ptr+16]))
			copy(mr[:], b[ptr+16:ptr+20])
		} else {
			dur = int64(be.Uint32(b[ptr : ptr+4]))
			mt = int64(int32(be.Uint32(b[ptr+4 : ptr+8])))
			copy(mr[:], b[ptr+8:ptr+12])
		}
		entries[i] = ElstEntry{TrackDuration: dur, MediaTime: mt, MediaRate: mr}
		ptr += stride
	}
	box.Elst = &Elst{V1: v1, Entries: entries}
	return nil
}

func encodeElst(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	s := box.Elst
	be.PutUint32(b[0:4], uint32(len(s.Entries)))
	ptr := 4
	for _, e := range s.Entries {
		if s.V1 {
			be.PutUint64(b[ptr:ptr+8], uint64(e.TrackDuration))
			be.PutUint64(b[ptr+8:ptr+16], uint64(e.MediaTime))
			copy(b[ptr+16:ptr+20], e.MediaRate[:])
			ptr += 20
		} else {
			be.PutUint32(b[ptr:ptr+4], uint32(e.TrackDuration))
			be.PutUint32(b[ptr+4:ptr+8], uint32(int32(e.MediaTime)))
			copy(b[ptr+8:ptr+12], e.MediaRate[:])
			ptr += 12
		}
	}
	return ptr
}

func encodingLengthElst(box *Box) int {
	if box.Elst.V1 {
		return 4 + len(box.Elst.Entries)*20
	}
	return 4 + len(box.Elst.Entries)*12
}
