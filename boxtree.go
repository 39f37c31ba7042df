package bmff

import "encoding/binary"

var be = binary.BigEndian

// Box is a single node in the parsed box tree: a header plus, depending on
// its Type, exactly one populated typed payload field below and/or a set of
// child boxes. Boxes whose type the registry does not recognize carry their
// raw bytes in Unknown; boxes whose decoder returned an error carry their
// raw bytes in Invalid instead of failing the parse of their siblings.
type Box struct {
	Type    BoxType
	Size    int64
	Version uint8
	Flags   uint32

	// Children holds every parsed child box keyed by type, in document
	// order within each slice. Container boxes populate this; leaf boxes
	// with a typed sub-structure (stsd entries, sample entries) keep their
	// children on the typed payload instead.
	Children map[BoxType][]*Box

	Unknown []byte // raw payload of a box with no registered codec
	Invalid []byte // raw payload of a box whose decoder returned an error

	// Typed payloads: exactly one is non-nil for a successfully decoded,
	// non-container leaf or sample-entry box.
	Ftyp  *Ftyp
	Mvhd  *Mvhd
	Tkhd  *Tkhd
	Mdhd  *Mdhd
	Hdlr  *Hdlr
	Vmhd  *Vmhd
	Smhd  *Smhd
	Stsd  *Stsd
	Visual *VisualSampleEntry
	Audio  *AudioSampleEntry
	AvcC  *AvcC
	HvcC  *HvcC
	VvcC  *VvcC
	Esds  *Esds
	MhaC  *MhaC
	Stsz  *Stsz
	Stco  *Stco
	Co64  *Co64
	Stts  *Stts
	Ctts  *Ctts
	Stsc  *Stsc
	Stss  *Stss
	Sdtp  *Sdtp
	Dref  *DrefBox
	Elst  *Elst
	Cslg  *Cslg
	Mehd  *Mehd
	Trex  *Trex
	Mfhd  *Mfhd
	Tfhd  *Tfhd
	Tfdt  *Tfdt
	Trun  *Trun
	Sbgp  *Sbgp
	Sgpd  *Sgpd
	Saiz  *Saiz
	Saio  *Saio
	Sidx  *Sidx
	Emsg  *Emsg
	Leva  *Leva
	Btrt  *Btrt
	Colr  *Colr
	Pasp  *Pasp
	Jpvi  *Jpvi
	Jxpl  *Jxpl
	JxsH  *JxsH
	Iods  *Iods
	Tlou  *LoudnessBox
	Alou  *LoudnessBox
	Mdat  *Mdat
}

// AddChild appends a fully built child box, matching the order boxes were
// parsed or constructed in.
func (b *Box) AddChild(c *Box) {
	if b.Children == nil {
		b.Children = make(map[BoxType][]*Box)
	}
	b.Children[c.Type] = append(b.Children[c.Type], c)
}

// Child returns the first child of the given type, or nil.
func (b *Box) Child(t BoxType) *Box {
	if cs := b.Children[t]; len(cs) > 0 {
		return cs[0]
	}
	return nil
}

// ChildList returns every child of the given type, in document order.
func (b *Box) ChildList(t BoxType) []*Box {
	return b.Children[t]
}

// Find walks the tree in pre-order and returns the first box of type t.
func (b *Box) Find(t BoxType) *Box {
	var found *Box
	b.Walk(func(n *Box) bool {
		if found != nil {
			return false
		}
		if n.Type == t {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindAll walks the tree in pre-order and returns every box of type t.
func (b *Box) FindAll(t BoxType) []*Box {
	var out []*Box
	b.Walk(func(n *Box) bool {
		if n.Type == t {
			out = append(out, n)
		}
		return true
	})
	return out
}

// FindPath descends the given chain of types, returning the first box that
// satisfies the whole path, or nil.
func (b *Box) FindPath(path ...BoxType) *Box {
	cur := b
	for _, t := range path {
		cur = cur.Child(t)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Walk visits b and its descendants in pre-order, stopping a branch's
// descent (but not its siblings) when visit returns false.
func (b *Box) Walk(visit func(*Box) bool) {
	if !visit(b) {
		return
	}
	for _, t := range orderedChildTypes(b.Children) {
		for _, c := range b.Children[t] {
			c.Walk(visit)
		}
	}
	for _, c := range boxEntryChildren(b) {
		c.Walk(visit)
	}
}

// orderedChildTypes is deliberately insertion-order-agnostic: Go map
// iteration order is randomized, but sibling order within a single
// BoxType's slice is preserved, which is what the format's structural
// invariants depend on. Cross-type ordering among distinct sibling types is
// not semantically significant for any box kind this module handles.
func orderedChildTypes(m map[BoxType][]*Box) []BoxType {
	out := make([]BoxType, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	return out
}

// boxEntryChildren returns the children folded into a typed payload instead
// of the generic Children map (stsd entries, sample-entry codec configs).
func boxEntryChildren(b *Box) []*Box {
	switch {
	case b.Stsd != nil:
		return b.Stsd.Entries
	case b.Visual != nil:
		return b.Visual.Children
	case b.Audio != nil:
		return b.Audio.Children
	}
	return nil
}

func clearBytes(buf []byte, start, end int) {
	for i := start; i < end && i < len(buf); i++ {
		buf[i] = 0
	}
}

func readString(buf []byte, start, end int) string {
	i := start
	for i < end && i < len(buf) && buf[i] != 0 {
		i++
	}
	return string(buf[start:i])
}
