package bmff

import "fmt"

// boxCodec is the decode/encode/encodingLength triad for one box type,
// mirroring how every leaf box in this package serializes itself.
type boxCodec struct {
	decode         func(box *Box, buf []byte, start, end int) error
	encode         func(box *Box, buf []byte, offset int) int
	encodingLength func(box *Box) int
}

var registry = map[BoxType]*boxCodec{}

// RegisterBox installs the codec for a box type. It panics on a duplicate
// registration, since two codecs for one fourcc is always a programming
// error rather than a runtime condition.
func RegisterBox(t BoxType, c boxCodec) {
	if _, ok := registry[t]; ok {
		panic(fmt.Sprintf("bmff: box type %q already registered", t))
	}
	registry[t] = &c
}

func getCodec(t BoxType) *boxCodec {
	return registry[t]
}

// header sizes
const (
	boxHeaderSize  = 8  // size(4) + type(4)
	largeSizeExtra = 8  // extra bytes when size == 1 (64-bit size follows)
	fullBoxExtra   = 4  // version(1) + flags(3) for FullBox
)

// Decode parses a single box (and, for container types, its full subtree)
// from buf[start:end], returning the box; its exclusive end offset is
// implied by Box.Size. An unrecognized fourcc produces an UnknownBox-shaped
// Box (Unknown set), and a decode error from a recognized fourcc produces an
// Invalid-shaped Box (Invalid set) — both keep their raw bytes for
// byte-exact reserialization. A truncated header or an out-of-range size is
// returned as an error instead, and an error on any child of a container
// fails the whole container's decode; no partial tree is returned.
func Decode(buf []byte, start, end int) (*Box, error) {
	if end-start < boxHeaderSize {
		return nil, &Error{Kind: Truncation, Msg: "box header truncated"}
	}

	size64 := int64(be.Uint32(buf[start : start+4]))
	var boxType BoxType
	copy(boxType[:], buf[start+4:start+8])

	hdr := boxHeaderSize
	switch size64 {
	case 0:
		size64 = int64(end - start)
	case 1:
		if end-start < boxHeaderSize+largeSizeExtra {
			return nil, &Error{Kind: Truncation, Msg: "extended box size truncated"}
		}
		size64 = int64(be.Uint64(buf[start+8 : start+16]))
		hdr += largeSizeExtra
	}

	if size64 < int64(hdr) || start+int(size64) > end {
		return nil, &Error{Kind: StructuralViolation, BoxType: boxType, Msg: "box size out of range"}
	}

	boxEnd := start + int(size64)
	payloadStart := start + hdr

	box := &Box{Type: boxType, Size: size64}

	if IsFullBox(boxType) {
		if payloadStart+fullBoxExtra > boxEnd {
			return nil, &Error{Kind: Truncation, BoxType: boxType, Msg: "full box header truncated"}
		}
		box.Version = buf[payloadStart]
		box.Flags = be.Uint32(buf[payloadStart:payloadStart+4]) & 0x00ffffff
		payloadStart += fullBoxExtra
	}

	if IsContainerBox(boxType) {
		if err := decodeContainerChildren(box, buf, payloadStart, boxEnd); err != nil {
			return nil, err
		}
		return box, nil
	}

	c := getCodec(boxType)
	if c == nil {
		box.Unknown = cloneRange(buf, payloadStart, boxEnd)
		return box, nil
	}

	if err := c.decode(box, buf, payloadStart, boxEnd); err != nil {
		box.Invalid = cloneRange(buf, payloadStart, boxEnd)
		clearTypedPayload(box)
		return box, nil
	}
	return box, nil
}

func decodeContainerChildren(box *Box, buf []byte, start, end int) error {
	ptr := start
	for ptr < end {
		child, err := Decode(buf, ptr, end)
		if err != nil {
			return err
		}
		box.AddChild(child)
		ptr += int(child.Size)
	}
	return nil
}

func cloneRange(buf []byte, start, end int) []byte {
	if start > end {
		start = end
	}
	out := make([]byte, end-start)
	copy(out, buf[start:end])
	return out
}

// clearTypedPayload resets any payload field a decoder may have partially
// populated before failing, so Invalid is the sole source of truth.
func clearTypedPayload(box *Box) {
	ty := box.Type
	*box = Box{Type: ty, Size: box.Size, Version: box.Version, Flags: box.Flags, Invalid: box.Invalid}
}

// EncodeBox serializes box (header, version/flags, payload, and children)
// into buf at offset, returning the number of bytes written. buf must have
// enough room for EncodingLength(box) bytes starting at offset.
func EncodeBox(box *Box, buf []byte, offset int) (int, error) {
	size := EncodingLength(box)
	if offset+size > len(buf) {
		return 0, &Error{Kind: Limit, BoxType: box.Type, Msg: "encode buffer too small"}
	}

	ptr := offset + boxHeaderSize
	if size > 0xffffffff {
		be.PutUint32(buf[offset:offset+4], 1)
		copy(buf[offset+4:offset+8], box.Type[:])
		be.PutUint64(buf[offset+8:offset+16], uint64(size))
		ptr += largeSizeExtra
	} else {
		be.PutUint32(buf[offset:offset+4], uint32(size))
		copy(buf[offset+4:offset+8], box.Type[:])
	}

	if IsFullBox(box.Type) {
		be.PutUint32(buf[ptr:ptr+4], uint32(box.Flags)&0x00ffffff)
		buf[ptr] = box.Version
		ptr += fullBoxExtra
	}

	if box.Unknown != nil {
		copy(buf[ptr:], box.Unknown)
		return size, nil
	}
	if box.Invalid != nil {
		copy(buf[ptr:], box.Invalid)
		return size, nil
	}

	if IsContainerBox(box.Type) {
		for _, t := range orderedChildTypes(box.Children) {
			for _, c := range box.Children[t] {
				n, err := EncodeBox(c, buf, ptr)
				if err != nil {
					return 0, err
				}
				ptr += n
			}
		}
		return size, nil
	}

	c := getCodec(box.Type)
	if c == nil {
		return size, nil
	}
	c.encode(box, buf, ptr)
	return size, nil
}

// EncodingLength returns the total serialized size of box, including its
// header and, for containers, every descendant — recomputed bottom-up so a
// mutated tree always serializes with correct sizes.
func EncodingLength(box *Box) int64 {
	n := boxHeaderSize
	if IsFullBox(box.Type) {
		n += fullBoxExtra
	}

	switch {
	case box.Unknown != nil:
		n += len(box.Unknown)
	case box.Invalid != nil:
		n += len(box.Invalid)
	case IsContainerBox(box.Type):
		for _, t := range orderedChildTypes(box.Children) {
			for _, c := range box.Children[t] {
				n += int(EncodingLength(c))
			}
		}
	default:
		if c := getCodec(box.Type); c != nil {
			n += c.encodingLength(box)
		}
	}

	if n > 0xffffffff {
		n += largeSizeExtra
	}
	return int64(n)
}
