package bmff

// reader.go implements the movie-level reading surface (§6): a Scanner
// that walks top-level boxes by header alone (mirroring the teacher's
// mp4dump Scanner/Entry/ReadBody shape), and a Movie that uses it to
// assemble ftyp/moov plus one Track per trak, then folds in fragment
// runs one moof at a time as a caller feeds them.

// TopLevelEntry is one top-level box's header, as found by a Scanner,
// without its body materialized.
type TopLevelEntry struct {
	Type       BoxType
	Offset     int64 // absolute offset of the box header within the Input
	HeaderSize int64 // 8, or 16 for a box using the 64-bit extended size
	Size       int64 // total box size (header + payload), including HeaderSize
}

// DataOffset returns the absolute offset of the box's payload, following
// its header.
func (e TopLevelEntry) DataOffset() int64 { return e.Offset + e.HeaderSize }

// DataSize returns the box's payload size, excluding its header.
func (e TopLevelEntry) DataSize() int64 { return e.Size - e.HeaderSize }

// Scanner walks an Input's top-level boxes one header at a time, without
// loading any payload until the caller asks for it.
type Scanner struct {
	input Input
	pos   int64
	end   int64
	entry TopLevelEntry
	err   error
}

// NewScanner returns a Scanner positioned at the start of input.
func NewScanner(input Input) *Scanner {
	return &Scanner{input: input, end: input.Size()}
}

// Next advances to the next top-level box and reports whether one was
// found. It returns false at end of input or on a malformed header; Err
// distinguishes the two.
func (sc *Scanner) Next() bool {
	if sc.err != nil || sc.pos >= sc.end {
		return false
	}
	hdr := make([]byte, boxHeaderSize)
	if err := sc.input.ReadAt(hdr, sc.pos); err != nil {
		sc.err = err
		return false
	}
	size64 := int64(be.Uint32(hdr[0:4]))
	var t BoxType
	copy(t[:], hdr[4:8])

	headerSize := int64(boxHeaderSize)
	switch size64 {
	case 0:
		size64 = sc.end - sc.pos
	case 1:
		ext := make([]byte, largeSizeExtra)
		if err := sc.input.ReadAt(ext, sc.pos+boxHeaderSize); err != nil {
			sc.err = err
			return false
		}
		size64 = int64(be.Uint64(ext))
		headerSize += largeSizeExtra
	}
	if size64 < headerSize || sc.pos+size64 > sc.end {
		sc.err = &Error{Kind: StructuralViolation, BoxType: t, Msg: "top-level box size out of range"}
		return false
	}

	sc.entry = TopLevelEntry{Type: t, Offset: sc.pos, HeaderSize: headerSize, Size: size64}
	sc.pos += size64
	return true
}

// Entry returns the box found by the most recent successful Next call.
func (sc *Scanner) Entry() TopLevelEntry { return sc.entry }

// Err returns the error that stopped iteration, if any.
func (sc *Scanner) Err() error { return sc.err }

// ReadBody reads e's full bytes (header included) into a freshly
// allocated buffer suitable for passing to Decode.
func (sc *Scanner) ReadBody(e TopLevelEntry) ([]byte, error) {
	buf := make([]byte, e.Size)
	if err := sc.input.ReadAt(buf, e.Offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// Movie is the parsed result of reading a movie's initialization data:
// its ftyp/moov boxes and one Track per trak, ready to accept fragment
// runs via FeedFragment for a fragmented file.
type Movie struct {
	Ftyp   *Box
	Moov   *Box
	Tracks []*Track

	input Input
	trex  map[uint32]*Trex
}

// OpenMovie scans input's top-level boxes, decodes ftyp and moov, and
// builds one Track per trak. For a fragmented movie, moov's stbl carries
// only stsd; FeedFragment appends the actual sample runs afterward.
func OpenMovie(input Input) (*Movie, error) {
	m := &Movie{input: input}
	sc := NewScanner(input)
	for sc.Next() {
		e := sc.Entry()
		switch e.Type {
		case TypeFtyp:
			buf, err := sc.ReadBody(e)
			if err != nil {
				return nil, err
			}
			box, err := Decode(buf, 0, len(buf))
			if err != nil {
				return nil, err
			}
			m.Ftyp = box
		case TypeMoov:
			buf, err := sc.ReadBody(e)
			if err != nil {
				return nil, err
			}
			box, err := Decode(buf, 0, len(buf))
			if err != nil {
				return nil, err
			}
			m.Moov = box
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if m.Moov == nil {
		return nil, &Error{Kind: StructuralViolation, Msg: "no moov box found"}
	}

	m.trex = BuildTrexMap(m.Moov)
	for _, trak := range m.Moov.ChildList(TypeTrak) {
		t, err := NewTrack(trak, input)
		if err != nil {
			return nil, err
		}
		m.Tracks = append(m.Tracks, t)
	}
	return m, nil
}

// Track returns the track with the given track_id, or nil.
func (m *Movie) Track(trackId uint32) *Track {
	for _, t := range m.Tracks {
		if t.TrackId == trackId {
			return t
		}
	}
	return nil
}

// TracksByHandler returns every track whose handler type matches (e.g.
// "vide" for video, "soun" for audio), in trak document order.
func (m *Movie) TracksByHandler(handlerType [4]byte) []*Track {
	var out []*Track
	for _, t := range m.Tracks {
		if t.HandlerType == handlerType {
			out = append(out, t)
		}
	}
	return out
}

// FeedFragment decodes the moof at e (as found by a Scanner walking the
// same Input this Movie was opened from) and appends its fused sample
// runs to each matching track. Fragments must be fed in ascending
// sequence-number order. It returns the decoded moof box, useful for
// specific_box_info queries over that fragment.
func (m *Movie) FeedFragment(e TopLevelEntry) (*Box, error) {
	buf := make([]byte, e.Size)
	if err := m.input.ReadAt(buf, e.Offset); err != nil {
		return nil, err
	}
	moofBox, err := Decode(buf, 0, len(buf))
	if err != nil {
		return nil, err
	}
	fused, err := DecodeFragment(moofBox, e.Offset, m.trex)
	if err != nil {
		return nil, err
	}
	for _, t := range m.Tracks {
		if samples, ok := fused[t.TrackId]; ok {
			t.AppendFragmentSamples(samples)
		}
	}
	return moofBox, nil
}

// MovieInfo aggregates movie-wide metadata for a caller that does not
// want to walk Moov directly.
type MovieInfo struct {
	Timescale   uint32
	Duration    uint64
	NextTrackId uint32
}

// Info summarizes the movie's mvhd.
func (m *Movie) Info() MovieInfo {
	mvhdBox := m.Moov.Child(TypeMvhd)
	if mvhdBox == nil || mvhdBox.Mvhd == nil {
		return MovieInfo{}
	}
	return MovieInfo{
		Timescale:   mvhdBox.Mvhd.TimeScale,
		Duration:    uint64(mvhdBox.Mvhd.Duration),
		NextTrackId: mvhdBox.Mvhd.NextTrackId,
	}
}

// TrackInfo aggregates per-track metadata for a caller that does not
// want to walk the track's boxes or fused sample list directly.
type TrackInfo struct {
	TrackId     uint32
	HandlerType [4]byte
	Timescale   uint32
	CodingName  BoxType
	SampleStats TrackSampleStats
}

// TrackInfos summarizes every track currently attached to the movie.
func (m *Movie) TrackInfos() []TrackInfo {
	out := make([]TrackInfo, len(m.Tracks))
	for i, t := range m.Tracks {
		out[i] = TrackInfo{
			TrackId:     t.TrackId,
			HandlerType: t.HandlerType,
			Timescale:   t.MediaTimescale,
			CodingName:  t.CodingName(),
			SampleStats: CollectSampleStats(t.samples),
		}
	}
	return out
}
