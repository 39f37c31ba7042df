package bmff

// specificboxinfo.go aggregates box-tree data that is awkward to read
// directly from the tree because it is either scattered across several
// boxes or needs bit-level interpretation of an opaque payload: DASH
// segment-index info, MPEG-D DRC loudness data, and the IOD audio
// profile level indication. MMTP transport info is intentionally left
// unsupported — see BuildMmtpInfo.

// --- DASH ---

// SidxReferenceInfo mirrors one sidx reference entry.
type SidxReferenceInfo struct {
	ReferenceType      bool
	ReferencedSize     uint32
	SubsegmentDuration uint32
	StartsWithSAP      bool
	SAPType            byte
	SAPDeltaTime       uint32
}

// SidxInfo summarizes a segment index box.
type SidxInfo struct {
	ReferenceID              uint32
	Timescale                uint32
	EarliestPresentationTime uint64
	FirstOffset              uint64
	References               []SidxReferenceInfo
}

// DashSidxInfo extracts SidxInfo from moov's top-level sidx box, or nil
// if it carries none. This information is available as soon as the
// initialization segment has been read, ahead of any media segment.
func DashSidxInfo(moov *Box) *SidxInfo {
	sidxBox := moov.Child(TypeSidx)
	if sidxBox == nil || sidxBox.Sidx == nil {
		return nil
	}
	s := sidxBox.Sidx
	refs := make([]SidxReferenceInfo, len(s.References))
	for i, r := range s.References {
		refs[i] = SidxReferenceInfo{
			ReferenceType:      r.ReferenceType,
			ReferencedSize:     r.ReferencedSize,
			SubsegmentDuration: r.SubsegmentDuration,
			StartsWithSAP:      r.StartsWithSAP,
			SAPType:            r.SAPType,
			SAPDeltaTime:       r.SAPDeltaTime,
		}
	}
	return &SidxInfo{
		ReferenceID:              s.ReferenceID,
		Timescale:                s.Timescale,
		EarliestPresentationTime: s.EarliestPresentationTime,
		FirstOffset:              s.FirstOffset,
		References:               refs,
	}
}

// DashTfdtTimes returns the base_media_decode_time of every traf within
// moof, in document order. A caller accumulates these across every
// fragment fed to it to build up the base_media_decode_time history a
// player uses during tune-in or seeking.
func DashTfdtTimes(moof *Box) []uint64 {
	var out []uint64
	for _, traf := range moof.ChildList(TypeTraf) {
		if tfdtBox := traf.Child(TypeTfdt); tfdtBox != nil && tfdtBox.Tfdt != nil {
			out = append(out, tfdtBox.Tfdt.BaseMediaDecodeTime)
		}
	}
	return out
}

// --- MMTP ---

// MmtpInfo documents MMTP (MPEG Media Transport) support status. This
// module reads and writes plain ISOBMFF and DASH/CMAF fragmented
// delivery only, never the MPU/MFU multiplexing layer MMTP wraps boxes
// in, so there is no per-fragment transport info to extract.
type MmtpInfo struct {
	Supported bool
	Reason    string
}

// BuildMmtpInfo always reports MMTP as unsupported; it exists so a
// caller's specific_box_info dispatch has a uniform case across kinds
// instead of a separate error path for this one.
func BuildMmtpInfo() MmtpInfo {
	return MmtpInfo{Reason: "MMTP multiplexing is out of scope for this module"}
}

// --- MPEG-D DRC ---

// DrcRawData returns the concatenated serialized bytes of every tlou/alou
// box nested under root's udta/ludt container (a trak's udta for global
// per-track data, or a traf's udta for a fragment update), each still
// framed as size+fourcc+version+flags+payload — the shape a decoder
// expects to be fed one entry at a time. This module treats loudness
// boxes as opaque blobs (see LoudnessBox), so no field-level parse is
// offered beyond this raw extraction.
func DrcRawData(root *Box) []byte {
	ludt := root.FindPath(TypeUdta, TypeLudt)
	if ludt == nil {
		return nil
	}
	var out []byte
	for _, t := range [2]BoxType{TypeTlou, TypeAlou} {
		for _, box := range ludt.ChildList(t) {
			size := EncodingLength(box)
			buf := make([]byte, size)
			if _, err := EncodeBox(box, buf, 0); err == nil {
				out = append(out, buf...)
			}
		}
	}
	return out
}

// DrcHasLudtUpdates reports whether root (typically a traf) carries a
// ludt container at all.
func DrcHasLudtUpdates(root *Box) bool {
	return root.FindPath(TypeUdta, TypeLudt) != nil
}

// --- IOD ---

// IodsAvailable reports whether moov carries an iods box.
func IodsAvailable(moov *Box) bool {
	return moov.Child(TypeIods) != nil
}

// IodsAudioProfileLevelIndication extracts audioProfileLevelIndication
// from moov's iods box (ISO/IEC 14496-1 §7.2.6.3), or 0 if absent or the
// descriptor uses a URL reference (which carries no profile-level bytes
// at all).
func IodsAudioProfileLevelIndication(moov *Box) byte {
	iodsBox := moov.Child(TypeIods)
	if iodsBox == nil || iodsBox.Iods == nil || iodsBox.Iods.ObjectDescriptor == nil {
		return 0
	}
	b := iodsBox.Iods.ObjectDescriptor.Buffer
	if len(b) < 2 {
		return 0
	}
	urlFlag := b[1]&0x20 != 0
	if urlFlag || len(b) < 5 {
		return 0
	}
	return b[4]
}
