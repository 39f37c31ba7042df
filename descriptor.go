package bmff

// descriptor.go implements MPEG-4 systems descriptor parsing (ISO/IEC
// 14496-1 8.3), shared by esds (elementary stream descriptor) and iods
// (initial object descriptor) boxes. Every descriptor starts with a one
// byte tag followed by a variable-length size field: a run of 7-bit
// payload bytes, each carrying a continuation flag in its high bit.

// Descriptor tag values this module interprets by name; any other tag is
// kept with an empty TagName and its raw bytes in Buffer.
const (
	TagESDescriptor            = 0x03
	TagDecoderConfigDescriptor = 0x04
	TagDecoderSpecificInfo     = 0x05
	TagSLConfigDescriptor      = 0x06
)

var tagToName = map[byte]string{
	TagESDescriptor:            "ESDescriptor",
	TagDecoderConfigDescriptor: "DecoderConfigDescriptor",
	TagDecoderSpecificInfo:     "DecoderSpecificInfo",
	TagSLConfigDescriptor:      "SLConfigDescriptor",
}

// Descriptor is one parsed node of the tag+length descriptor chain.
type Descriptor struct {
	Tag      byte
	TagName  string
	Length   int // total encoded length, header included
	Oti      byte
	Buffer   []byte
	Children map[string]*Descriptor
}

func decodeDescriptor(buf []byte, start, end int) *Descriptor {
	if start >= end {
		return nil
	}
	tag := buf[start]
	ptr := start + 1
	length := 0
	for ptr < end {
		lenByte := buf[ptr]
		ptr++
		length = (length << 7) | int(lenByte&0x7f)
		if lenByte&0x80 == 0 {
			break
		}
	}

	tagName := tagToName[tag]
	d := &Descriptor{
		Tag:      tag,
		TagName:  tagName,
		Length:   (ptr - start) + length,
		Children: make(map[string]*Descriptor),
	}

	switch tagName {
	case "ESDescriptor":
		decodeESDescriptor(d, buf, ptr, end)
	case "DecoderConfigDescriptor":
		decodeDecoderConfigDescriptor(d, buf, ptr, end)
	case "DecoderSpecificInfo":
		dEnd := ptr + length
		if dEnd > end {
			dEnd = end
		}
		d.Buffer = buf[ptr:dEnd]
	default:
		dEnd := min(ptr+length, end)
		d.Buffer = buf[ptr:dEnd]
	}

	return d
}

func decodeDescriptorArray(buf []byte, start, end int) map[string]*Descriptor {
	m := make(map[string]*Descriptor)
	ptr := start
	for ptr+2 <= end {
		desc := decodeDescriptor(buf, ptr, end)
		if desc == nil || desc.Length <= 0 {
			break
		}
		ptr += desc.Length
		if desc.TagName == "" {
			continue
		}
		m[desc.TagName] = desc
	}
	return m
}

func decodeESDescriptor(d *Descriptor, buf []byte, start, end int) {
	if start+3 > end {
		return
	}
	flags := buf[start+2]
	ptr := start + 3
	if flags&0x80 != 0 { // streamDependenceFlag
		ptr += 2
	}
	if flags&0x40 != 0 { // URL_Flag
		if ptr >= end {
			return
		}
		l := int(buf[ptr])
		ptr += l + 1
	}
	if flags&0x20 != 0 { // OCRstreamFlag
		ptr += 2
	}
	d.Children = decodeDescriptorArray(buf, ptr, end)
}

func decodeDecoderConfigDescriptor(d *Descriptor, buf []byte, start, end int) {
	if start >= end {
		return
	}
	d.Oti = buf[start]
	if start+13 <= end {
		d.Children = decodeDescriptorArray(buf, start+13, end)
	}
}

// encodeDescriptorSize writes n using the 7-bit continuation encoding used
// throughout the descriptor chain and returns the byte count written.
func encodeDescriptorSize(buf []byte, n int) int {
	var tmp [5]byte
	i := 0
	tmp[i] = byte(n & 0x7f)
	n >>= 7
	for n > 0 {
		i++
		tmp[i] = byte(n&0x7f) | 0x80
		n >>= 7
	}
	k := 0
	for j := i; j >= 0; j-- {
		buf[k] = tmp[j]
		k++
	}
	return i + 1
}

func descriptorSizeLength(n int) int {
	l := 1
	for n >= 0x80 {
		n >>= 7
		l++
	}
	return l
}

// Esds represents the elementary stream descriptor box. Its payload is a
// single ES_Descriptor; DecoderSpecificInfo (e.g. AudioSpecificConfig for
// AAC) is reachable via DecoderSpecificInfo for callers that need raw
// codec-init bytes without re-walking the descriptor tree.
type Esds struct {
	ES     *Descriptor
	Buffer []byte
}

// DecoderSpecificInfo returns the raw DecoderSpecificInfo payload (e.g.
// AudioSpecificConfig) nested under the ES_Descriptor's
// DecoderConfigDescriptor, or nil if absent.
func (e *Esds) DecoderSpecificInfo() []byte {
	if e.ES == nil {
		return nil
	}
	dc := e.ES.Children["DecoderConfigDescriptor"]
	if dc == nil {
		return nil
	}
	if dsi := dc.Children["DecoderSpecificInfo"]; dsi != nil {
		return dsi.Buffer
	}
	return nil
}

// ObjectTypeIndication returns the MPEG-4 object type indication from the
// nested DecoderConfigDescriptor, or 0 if absent.
func (e *Esds) ObjectTypeIndication() byte {
	if e.ES == nil {
		return 0
	}
	if dc := e.ES.Children["DecoderConfigDescriptor"]; dc != nil {
		return dc.Oti
	}
	return 0
}

func init() {
	RegisterBox(TypeEsds, boxCodec{decodeEsds, encodeEsds, encodingLengthEsds})
}

func decodeEsds(box *Box, buf []byte, start, end int) error {
	b := append([]byte(nil), buf[start:end]...)
	box.Esds = &Esds{
		ES:     decodeDescriptor(b, 0, len(b)),
		Buffer: b,
	}
	return nil
}

func encodeEsds(box *Box, buf []byte, offset int) int {
	copy(buf[offset:], box.Esds.Buffer)
	return len(box.Esds.Buffer)
}

func encodingLengthEsds(box *Box) int { return len(box.Esds.Buffer) }
