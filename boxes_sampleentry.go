package bmff

// VisualSampleEntry represents a video sample entry (avc1/avc3/hvc1/hev1/
// vvc1/vvi1/jxsm/...); its decoder configuration record and any auxiliary
// boxes (btrt, colr, pasp) live under Children.
type VisualSampleEntry struct {
	DataReferenceIndex uint16
	Width              uint16
	Height             uint16
	HResolution        uint32
	VResolution        uint32
	FrameCount         uint16
	CompressorName     string
	Depth              uint16
	Children           []*Box
}

// AudioSampleEntry represents an audio sample entry (mp4a/mha1/mha2/mhm1/
// mhm2/...).
type AudioSampleEntry struct {
	DataReferenceIndex uint16
	ChannelCount       uint16
	SampleSize         uint16
	SampleRate         uint32
	Children           []*Box
}

// Pasp represents the pixel aspect ratio box.
type Pasp struct {
	HSpacing uint32
	VSpacing uint32
}

func init() {
	visual := boxCodec{decodeVisual, encodeVisual, encodingLengthVisual}
	for _, t := range []BoxType{TypeAvc1, TypeAvc3, TypeHvc1, TypeHev1, TypeVvc1, TypeVvi1, TypeJxsm} {
		RegisterBox(t, visual)
	}
	audio := boxCodec{decodeAudio, encodeAudio, encodingLengthAudio}
	for _, t := range []BoxType{TypeMp4a, TypeMha1, TypeMha2, TypeMhm1, TypeMhm2} {
		RegisterBox(t, audio)
	}
	RegisterBox(TypePasp, boxCodec{decodePasp, encodePasp, encodingLengthPasp})
}

// --- visual sample entry ---

func decodeVisual(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	length := end - start
	nameLen := int(b[42])
	if nameLen > 31 {
		nameLen = 31
	}
	v := &VisualSampleEntry{
		DataReferenceIndex: be.Uint16(b[6:8]),
		Width:              be.Uint16(b[24:26]),
		Height:             be.Uint16(b[26:28]),
		HResolution:        be.Uint32(b[28:32]),
		VResolution:        be.Uint32(b[32:36]),
		FrameCount:         be.Uint16(b[40:42]),
		CompressorName:     string(b[43 : 43+nameLen]),
		Depth:              be.Uint16(b[74:76]),
	}

	ptr := 78
	for length-ptr >= 8 {
		child, err := Decode(buf, start+ptr, end)
		if err != nil {
			return err
		}
		v.Children = append(v.Children, child)
		ptr += int(child.Size)
	}
	box.Visual = v
	return nil
}

func encodeVisual(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	v := box.Visual
	clearBytes(b, 0, 6)
	be.PutUint16(b[6:8], v.DataReferenceIndex)
	clearBytes(b, 8, 24)
	be.PutUint16(b[24:26], v.Width)
	be.PutUint16(b[26:28], v.Height)
	hRes := v.HResolution
	if hRes == 0 {
		hRes = 0x480000
	}
	be.PutUint32(b[28:32], hRes)
	vRes := v.VResolution
	if vRes == 0 {
		vRes = 0x480000
	}
	be.PutUint32(b[32:36], vRes)
	clearBytes(b, 36, 40)
	fc := v.FrameCount
	if fc == 0 {
		fc = 1
	}
	be.PutUint16(b[40:42], fc)
	nameLen := len(v.CompressorName)
	if nameLen > 31 {
		nameLen = 31
	}
	b[42] = byte(nameLen)
	copy(b[43:], v.CompressorName[:nameLen])
	clearBytes(b, 43+nameLen, 74)
	depth := v.Depth
	if depth == 0 {
		depth = 0x18
	}
	be.PutUint16(b[74:76], depth)
	be.PutUint16(b[76:78], 0xffff)

	ptr := 78
	for _, child := range v.Children {
		n, _ := EncodeBox(child, buf, offset+ptr)
		ptr += n
	}
	return ptr
}

func encodingLengthVisual(box *Box) int {
	n := 78
	for _, child := range box.Visual.Children {
		n += int(EncodingLength(child))
	}
	return n
}

// --- audio sample entry ---

func decodeAudio(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	length := end - start
	a := &AudioSampleEntry{
		DataReferenceIndex: be.Uint16(b[6:8]),
		ChannelCount:       be.Uint16(b[16:18]),
		SampleSize:         be.Uint16(b[18:20]),
		SampleRate:         be.Uint32(b[24:28]),
	}

	ptr := 28
	for length-ptr >= 8 {
		child, err := Decode(buf, start+ptr, end)
		if err != nil {
			return err
		}
		a.Children = append(a.Children, child)
		ptr += int(child.Size)
	}
	box.Audio = a
	return nil
}

func encodeAudio(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	a := box.Audio
	clearBytes(b, 0, 6)
	be.PutUint16(b[6:8], a.DataReferenceIndex)
	clearBytes(b, 8, 16)
	cc := a.ChannelCount
	if cc == 0 {
		cc = 2
	}
	be.PutUint16(b[16:18], cc)
	ss := a.SampleSize
	if ss == 0 {
		ss = 16
	}
	be.PutUint16(b[18:20], ss)
	clearBytes(b, 20, 24)
	be.PutUint32(b[24:28], a.SampleRate)

	ptr := 28
	for _, child := range a.Children {
		n, _ := EncodeBox(child, buf, offset+ptr)
		ptr += n
	}
	return ptr
}

func encodingLengthAudio(box *Box) int {
	n := 28
	for _, child := range box.Audio.Children {
		n += int(EncodingLength(child))
	}
	return n
}

// --- pasp ---

func decodePasp(box *Box, buf []byte, start, _ int) error {
	box.Pasp = &Pasp{HSpacing: be.Uint32(buf[start:]), VSpacing: be.Uint32(buf[start+4:])}
	return nil
}

func encodePasp(box *Box, buf []byte, offset int) int {
	be.PutUint32(buf[offset:], box.Pasp.HSpacing)
	be.PutUint32(buf[offset+4:], box.Pasp.VSpacing)
	return 8
}

func encodingLengthPasp(_ *Box) int { return 8 }
