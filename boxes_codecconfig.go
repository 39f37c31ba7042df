package bmff

import (
	"bytes"
	"fmt"

	"github.com/icza/bitio"
)

// AvcC represents the AVC decoder configuration record (ISO/IEC 14496-15
// §5.3.3.1). Treated as an opaque blob shaped by a handful of structural
// fields, like the rest of this module's decoder config records.
type AvcC struct {
	ConfigurationVersion byte
	Profile              byte
	ProfileCompatibility byte
	Level                byte
	LengthSizeMinusOne   byte
	MimeCodec            string
	Buffer               []byte
}

// HvcC represents the HEVC decoder configuration record.
type HvcC struct {
	GeneralProfileSpace byte
	GeneralProfileIdc   byte
	GeneralLevelIdc     byte
	LengthSizeMinusOne  byte
	MimeCodec           string
	Buffer              []byte
}

// Btrt represents the bit rate box.
type Btrt struct {
	BufferSizeDB uint32
	MaxBitrate   uint32
	AvgBitrate   uint32
}

// Colr represents the colour information box (nclx form).
type Colr struct {
	ColourType           [4]byte
	ColourPrimaries      uint16
	TransferCharacteristics uint16
	MatrixCoefficients   uint16
	FullRangeFlag        bool
	Buffer               []byte // raw payload, including unrecognized colour types
}

// Jpvi represents the JPEG-XS video information box.
type Jpvi struct {
	Buffer []byte
}

// Jxpl represents the JPEG-XS profile/level box.
type Jxpl struct {
	Buffer []byte
}

// JxsH represents the JPEG-XS decoder configuration record.
type JxsH struct {
	Buffer []byte
}

// MhaC represents the MPEG-H audio decoder configuration record.
type MhaC struct {
	ConfigurationVersion byte
	MhaProfileLevel      byte
	Buffer               []byte
}

func init() {
	RegisterBox(TypeAvcC, boxCodec{decodeAvcC, encodeAvcC, encodingLengthAvcC})
	RegisterBox(TypeHvcC, boxCodec{decodeHvcC, encodeHvcC, encodingLengthHvcC})
	RegisterBox(TypeVvcC, boxCodec{decodeVvcC, encodeVvcC, encodingLengthVvcC})
	RegisterBox(TypeBtrt, boxCodec{decodeBtrt, encodeBtrt, encodingLengthBtrt})
	RegisterBox(TypeColr, boxCodec{decodeColr, encodeColr, encodingLengthColr})
	RegisterBox(TypeJpvi, boxCodec{decodeRawJpvi, encodeRawJpvi, encodingLengthRawJpvi})
	RegisterBox(TypeJxpl, boxCodec{decodeRawJxpl, encodeRawJxpl, encodingLengthRawJxpl})
	RegisterBox(TypeJxsH, boxCodec{decodeRawJxsH, encodeRawJxsH, encodingLengthRawJxsH})
	RegisterBox(TypeMhaC, boxCodec{decodeMhaC, encodeMhaC, encodingLengthMhaC})
}

// --- avcC ---

func decodeAvcC(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	a := &AvcC{Buffer: append([]byte(nil), b...)}
	if len(b) >= 4 {
		a.ConfigurationVersion = b[0]
		a.Profile = b[1]
		a.ProfileCompatibility = b[2]
		a.Level = b[3]
		a.MimeCodec = fmt.Sprintf("avc1.%02x%02x%02x", b[1], b[2], b[3])
	}
	if len(b) >= 5 {
		a.LengthSizeMinusOne = b[4] & 0x03
	}
	box.AvcC = a
	return nil
}

func encodeAvcC(box *Box, buf []byte, offset int) int {
	copy(buf[offset:], box.AvcC.Buffer)
	return len(box.AvcC.Buffer)
}

func encodingLengthAvcC(box *Box) int { return len(box.AvcC.Buffer) }

// --- hvcC ---

func decodeHvcC(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	h := &HvcC{Buffer: append([]byte(nil), b...)}
	if len(b) >= 13 {
		h.GeneralProfileSpace = b[1] >> 6
		h.GeneralProfileIdc = b[1] & 0x1f
		h.GeneralLevelIdc = b[12]
		h.MimeCodec = fmt.Sprintf("hvc1.%d.%d.L%d", h.GeneralProfileSpace, h.GeneralProfileIdc, h.GeneralLevelIdc)
	}
	if len(b) >= 22 {
		h.LengthSizeMinusOne = b[21] & 0x03
	}
	box.HvcC = h
	return nil
}

func encodeHvcC(box *Box, buf []byte, offset int) int {
	copy(buf[offset:], box.HvcC.Buffer)
	return len(box.HvcC.Buffer)
}

func encodingLengthHvcC(box *Box) int { return len(box.HvcC.Buffer) }

// --- vvcC ---
//
// The VVC decoder configuration record's Profile-Tier-Level subrecord
// (ISO/IEC 14496-15 §11.2.4.1.3) packs general_constraint_info as a chain
// of sub-byte flags; VvcPTL.GeneralConstraintInfo is decoded/encoded
// through a bit-level reader/writer instead of hand-rolled shifting.

// VvcPTL is the VVC Profile-Tier-Level subrecord.
type VvcPTL struct {
	NumBytesConstraintInfo byte
	GeneralProfileIdc      byte
	GeneralTierFlag        bool
	GeneralLevelIdc        byte
	GeneralConstraintInfo  []byte // packed bits, raw form; see GCIPresent/GCIFlags
	GCIPresent             bool
	GCIFlags               []bool
}

// VvcC represents the VVC decoder configuration record.
type VvcC struct {
	LengthSizeMinusOne byte
	PTLPresent         bool
	PTL                VvcPTL
	MimeCodec          string
	Buffer             []byte
}

// DecodeGeneralConstraintInfo unpacks the gci_present_flag-gated chain of
// single-bit constraint flags per ISO/IEC 14496-15 §11.2.4.1.3. When the
// leading present bit is set, flags holds one entry per remaining bit of
// buf, in order (trailing padding bits of the last byte included), so no
// flag is dropped; otherwise it returns false and nil flags.
func DecodeGeneralConstraintInfo(buf []byte) (present bool, flags []bool, err error) {
	if len(buf) == 0 {
		return false, nil, nil
	}
	r := bitio.NewReader(bytes.NewReader(buf))
	gciPresent, err := r.ReadBool()
	if err != nil {
		return false, nil, err
	}
	if !gciPresent {
		return false, nil, nil
	}
	flags = make([]bool, 0, len(buf)*8)
	for {
		bit, rerr := r.ReadBool()
		if rerr != nil {
			break
		}
		flags = append(flags, bit)
	}
	return true, flags, nil
}

// EncodeGeneralConstraintInfo packs present and flags back into the same
// bit layout DecodeGeneralConstraintInfo reads, padded to a whole number of
// bytes with zero bits.
func EncodeGeneralConstraintInfo(present bool, flags []bool) []byte {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	_ = w.WriteBool(present)
	if present {
		for _, f := range flags {
			_ = w.WriteBool(f)
		}
	}
	_ = w.Close()
	return buf.Bytes()
}

func decodeVvcC(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	v := &VvcC{Buffer: append([]byte(nil), b...)}
	if len(b) < 4 {
		box.VvcC = v
		return nil
	}
	v.LengthSizeMinusOne = (b[3] >> 1) & 0x03
	v.PTLPresent = b[3]&0x01 != 0
	ptr := 4
	if v.PTLPresent && len(b) > ptr+2 {
		v.PTL.NumBytesConstraintInfo = b[ptr] & 0x3f
		v.PTL.GeneralProfileIdc = ((b[ptr] & 0x01) << 6) | (b[ptr+1] >> 2)
		v.PTL.GeneralTierFlag = b[ptr+1]&0x02 != 0
		ptr += 2
		if len(b) > ptr {
			v.PTL.GeneralLevelIdc = b[ptr]
			ptr++
		}
		n := int(v.PTL.NumBytesConstraintInfo)
		if n > 0 && len(b) >= ptr+n {
			v.PTL.GeneralConstraintInfo = append([]byte(nil), b[ptr:ptr+n]...)
			present, flags, gciErr := DecodeGeneralConstraintInfo(v.PTL.GeneralConstraintInfo)
			if gciErr == nil {
				v.PTL.GCIPresent = present
				v.PTL.GCIFlags = flags
			}
		}
	}
	v.MimeCodec = fmt.Sprintf("vvc1.%d.L%d", v.PTL.GeneralProfileIdc, v.PTL.GeneralLevelIdc)
	box.VvcC = v
	return nil
}

func encodeVvcC(box *Box, buf []byte, offset int) int {
	copy(buf[offset:], box.VvcC.Buffer)
	return len(box.VvcC.Buffer)
}

func encodingLengthVvcC(box *Box) int { return len(box.VvcC.Buffer) }

// --- btrt ---

func decodeBtrt(box *Box, buf []byte, start, _ int) error {
	b := buf[start:]
	box.Btrt = &Btrt{
		BufferSizeDB: be.Uint32(b[0:4]),
		MaxBitrate:   be.Uint32(b[4:8]),
		AvgBitrate:   be.Uint32(b[8:12]),
	}
	return nil
}

func encodeBtrt(box *Box, buf []byte, offset int) int {
	b := buf[offset:]
	t := box.Btrt
	be.PutUint32(b[0:4], t.BufferSizeDB)
	be.PutUint32(b[4:8], t.MaxBitrate)
	be.PutUint32(b[8:12], t.AvgBitrate)
	return 12
}

func encodingLengthBtrt(_ *Box) int { return 12 }

// --- colr ---

func decodeColr(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	c := &Colr{Buffer: append([]byte(nil), b...)}
	copy(c.ColourType[:], b[0:4])
	if c.ColourType == [4]byte{'n', 'c', 'l', 'x'} && len(b) >= 11 {
		c.ColourPrimaries = be.Uint16(b[4:6])
		c.TransferCharacteristics = be.Uint16(b[6:8])
		c.MatrixCoefficients = be.Uint16(b[8:10])
		c.FullRangeFlag = b[10]&0x80 != 0
	}
	box.Colr = c
	return nil
}

func encodeColr(box *Box, buf []byte, offset int) int {
	copy(buf[offset:], box.Colr.Buffer)
	return len(box.Colr.Buffer)
}

func encodingLengthColr(box *Box) int { return len(box.Colr.Buffer) }

// --- jpvi / jxpl / jxsH: raw blobs, opaque structure ---

func decodeRawJpvi(box *Box, buf []byte, start, end int) error {
	box.Jpvi = &Jpvi{Buffer: append([]byte(nil), buf[start:end]...)}
	return nil
}
func encodeRawJpvi(box *Box, buf []byte, offset int) int {
	copy(buf[offset:], box.Jpvi.Buffer)
	return len(box.Jpvi.Buffer)
}
func encodingLengthRawJpvi(box *Box) int { return len(box.Jpvi.Buffer) }

func decodeRawJxpl(box *Box, buf []byte, start, end int) error {
	box.Jxpl = &Jxpl{Buffer: append([]byte(nil), buf[start:end]...)}
	return nil
}
func encodeRawJxpl(box *Box, buf []byte, offset int) int {
	copy(buf[offset:], box.Jxpl.Buffer)
	return len(box.Jxpl.Buffer)
}
func encodingLengthRawJxpl(box *Box) int { return len(box.Jxpl.Buffer) }

func decodeRawJxsH(box *Box, buf []byte, start, end int) error {
	box.JxsH = &JxsH{Buffer: append([]byte(nil), buf[start:end]...)}
	return nil
}
func encodeRawJxsH(box *Box, buf []byte, offset int) int {
	copy(buf[offset:], box.JxsH.Buffer)
	return len(box.JxsH.Buffer)
}
func encodingLengthRawJxsH(box *Box) int { return len(box.JxsH.Buffer) }

// --- mhaC ---

func decodeMhaC(box *Box, buf []byte, start, end int) error {
	b := buf[start:end]
	m := &MhaC{Buffer: append([]byte(nil), b...)}
	if len(b) >= 2 {
		m.ConfigurationVersion = b[0]
		m.MhaProfileLevel = b[1]
	}
	box.MhaC = m
	return nil
}

func encodeMhaC(box *Box, buf []byte, offset int) int {
	copy(buf[offset:], box.MhaC.Buffer)
	return len(box.MhaC.Buffer)
}

func encodingLengthMhaC(box *Box) int { return len(box.MhaC.Buffer) }
