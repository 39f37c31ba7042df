package bmff

// writer.go implements the movie-level writing surface (§6): a small
// per-track configuration that builds a skeleton trak, a MovieWriter that
// queues samples through a Store and serializes a non-fragmented movie,
// and a FragmentedMovieWriter that does the same for an initialization
// segment followed by a stream of moof+mdat fragments or DASH segments.

// TrackConfig configures one track's skeleton boxes. SampleEntry is a
// fully built sample entry box (avc1, hvc1, mp4a, ...); when it is nil the
// track's stsd is written with no entries.
type TrackConfig struct {
	TrackId                uint32
	HandlerType            [4]byte // HandlerVideo or HandlerSound
	HandlerName            string
	MediaTimescale         uint32
	Language               uint16
	Width, Height          uint32 // 16.16 fixed-point track dimensions, video only
	Volume                 uint16 // 8.8 fixed-point, audio only; 0 for video
	SampleEntry            *Box
	SampleDescriptionIndex uint32
}

// Handler type constants for TrackConfig.HandlerType.
var (
	HandlerVideo = [4]byte{'v', 'i', 'd', 'e'}
	HandlerSound = [4]byte{'s', 'o', 'u', 'n'}
)

func identityMatrix() [36]byte {
	var m [36]byte
	be.PutUint32(m[0:4], 0x00010000)
	be.PutUint32(m[20:24], 0x00010000)
	be.PutUint32(m[32:36], 0x40000000)
	return m
}

// buildTrakSkeleton assembles a trak box with tkhd/mdia (mdhd/hdlr/minf)
// already populated and an stbl holding only stsd; WritePlainMovie or the
// fragmented writer's mvex-backed tracks fill in the sample tables later.
func buildTrakSkeleton(cfg TrackConfig) *Box {
	trak := &Box{Type: TypeTrak}
	trak.AddChild(&Box{
		Type:  TypeTkhd,
		Flags: 0x000007, // track enabled, in movie, in preview
		Tkhd: &Tkhd{
			TrackId:     cfg.TrackId,
			Matrix:      identityMatrix(),
			TrackWidth:  cfg.Width,
			TrackHeight: cfg.Height,
			Volume:      cfg.Volume,
		},
	})

	mdia := &Box{Type: TypeMdia}
	mdia.AddChild(&Box{Type: TypeMdhd, Mdhd: &Mdhd{TimeScale: cfg.MediaTimescale, Language: cfg.Language}})
	mdia.AddChild(&Box{Type: TypeHdlr, Hdlr: &Hdlr{HandlerType: cfg.HandlerType, Name: cfg.HandlerName}})

	minf := &Box{Type: TypeMinf}
	if cfg.HandlerType == HandlerVideo {
		minf.AddChild(&Box{Type: TypeVmhd, Flags: 1, Vmhd: &Vmhd{}})
	} else {
		minf.AddChild(&Box{Type: TypeSmhd, Smhd: &Smhd{}})
	}

	dinf := &Box{Type: TypeDinf}
	dinf.AddChild(&Box{
		Type: TypeDref,
		Dref: &DrefBox{Entries: []DrefEntry{{Type: [4]byte{'u', 'r', 'l', ' '}, Buf: []byte{0, 0, 0, 1}}}},
	})
	minf.AddChild(dinf)

	stbl := &Box{Type: TypeStbl}
	stsd := &Stsd{}
	if cfg.SampleEntry != nil {
		stsd.Entries = []*Box{cfg.SampleEntry}
	}
	stbl.AddChild(&Box{Type: TypeStsd, Stsd: stsd})
	minf.AddChild(stbl)

	mdia.AddChild(minf)
	trak.AddChild(mdia)
	return trak
}

func ensureEdtsElst(trak *Box) *Box {
	edts := trak.Child(TypeEdts)
	if edts == nil {
		edts = &Box{Type: TypeEdts}
		trak.AddChild(edts)
	}
	elstBox := edts.Child(TypeElst)
	if elstBox == nil {
		elstBox = &Box{Type: TypeElst, Elst: &Elst{}}
		edts.AddChild(elstBox)
	}
	return elstBox
}

func addEditListEntry(trak *Box, entry ElstEntry) {
	elstBox := ensureEdtsElst(trak)
	if entry.TrackDuration > 0xffffffff || entry.MediaTime > 0x7fffffff {
		elstBox.Version = 1
		elstBox.Elst.V1 = true
	}
	elstBox.Elst.Entries = append(elstBox.Elst.Entries, entry)
}

func addUserData(parent *Box, child *Box) *Box {
	udta := parent.Child(TypeUdta)
	if udta == nil {
		udta = &Box{Type: TypeUdta}
		parent.AddChild(udta)
	}
	udta.AddChild(child)
	return parent
}

// MovieWriter assembles a non-fragmented movie (§4.11) from a Store of
// queued samples and one skeleton trak per track.
type MovieWriter struct {
	ftyp   *Box
	mvhd   *Box
	moovUd *Box
	tracks []TrackBuild
	store  *Store
}

// NewMovieWriter starts a non-fragmented movie with the given major brand,
// minor version, and compatible brands, at the given movie timescale.
// Sample payloads are appended to sink as AddSample is called.
// chunkByteBudget is passed to the store's interleaver, which marks chunk
// boundaries in Drain; WritePlainMovie derives chunks from offset
// contiguity alone, so a written chunk ends only where another track's
// samples follow, and the budget does not split one track's run.
func NewMovieWriter(brand [4]byte, brandVersion uint32, compatibleBrands [][4]byte, movieTimescale uint32, sink Sink, chunkByteBudget int64) *MovieWriter {
	return &MovieWriter{
		ftyp: &Box{Type: TypeFtyp, Ftyp: &Ftyp{Brand: brand, BrandVersion: brandVersion, CompatibleBrands: compatibleBrands}},
		mvhd: &Box{Type: TypeMvhd, Mvhd: &Mvhd{
			TimeScale:       movieTimescale,
			PreferredRate:   [4]byte{0, 1, 0, 0},
			PreferredVolume: [2]byte{1, 0},
			Matrix:          identityMatrix(),
			NextTrackId:     1,
		}},
		store: NewStore(sink, chunkByteBudget),
	}
}

// AddTrack registers a new track and returns its trackId for convenience.
func (w *MovieWriter) AddTrack(cfg TrackConfig) uint32 {
	w.tracks = append(w.tracks, TrackBuild{
		Trak:                   buildTrakSkeleton(cfg),
		TrackId:                cfg.TrackId,
		SampleDescriptionIndex: cfg.SampleDescriptionIndex,
	})
	w.store.AddTrack(cfg.TrackId, cfg.MediaTimescale)
	if cfg.TrackId >= w.mvhd.Mvhd.NextTrackId {
		w.mvhd.Mvhd.NextTrackId = cfg.TrackId + 1
	}
	return cfg.TrackId
}

func (w *MovieWriter) trak(trackId uint32) *Box {
	for i := range w.tracks {
		if w.tracks[i].TrackId == trackId {
			return w.tracks[i].Trak
		}
	}
	return nil
}

// AddSample queues one sample's payload and timing for trackId, in decode
// order. duration and compositionOffset are in that track's own media
// timescale.
func (w *MovieWriter) AddSample(trackId uint32, payload []byte, duration uint32, compositionOffset int32, isSync bool, group SampleGroup) error {
	return w.store.AddSample(trackId, payload, duration, compositionOffset, isSync, 0, group)
}

// AddEditListEntry appends one edit list entry to trackId's edts/elst,
// promoting it to version 1 if entry's fields need the wider range.
func (w *MovieWriter) AddEditListEntry(trackId uint32, entry ElstEntry) {
	if trak := w.trak(trackId); trak != nil {
		addEditListEntry(trak, entry)
	}
}

// AddUserData attaches child under a udta box. trackId == 0 attaches it
// at the movie level (moov/udta); otherwise it attaches under the named
// track (trak/udta).
func (w *MovieWriter) AddUserData(trackId uint32, child *Box) {
	if trackId == 0 {
		if w.moovUd == nil {
			w.moovUd = &Box{Type: TypeUdta}
		}
		w.moovUd.AddChild(child)
		return
	}
	if trak := w.trak(trackId); trak != nil {
		addUserData(trak, child)
	}
}

// Serialize finalizes every track's sample tables from the samples queued
// so far and streams the complete movie to out.
func (w *MovieWriter) Serialize(out Output) error {
	var extras []*Box
	if w.moovUd != nil {
		extras = append(extras, w.moovUd)
	}
	return WritePlainMovie(out, w.ftyp, w.mvhd, w.tracks, w.store, extras...)
}

// FragmentedMovieWriter assembles an initialization segment plus a stream
// of fragments or DASH segments (§4.12). Unlike MovieWriter it does not
// use a Store's cross-track interleaver: each fragment's samples are
// already contiguous per track by construction, so outgoing tracks are
// buffered per trackId and flushed together on FlushFragment.
type FragmentedMovieWriter struct {
	ftyp          *Box
	mvhd          *Box
	trackOrder    []uint32
	trackConfig   map[uint32]TrackConfig
	sink          Sink
	pending       map[uint32][]StoredSample
	baseDecode    map[uint32]uint64
	sequence      uint32
	referenceId   uint32
	segments      []FragmentInfo
}

// NewFragmentedMovieWriter starts a fragmented movie at the given movie
// timescale. Sample payloads passed to AddSample are appended directly to
// sink; each flushed fragment's trun entries reference them by offset.
func NewFragmentedMovieWriter(brand [4]byte, brandVersion uint32, compatibleBrands [][4]byte, movieTimescale uint32, sink Sink) *FragmentedMovieWriter {
	return &FragmentedMovieWriter{
		ftyp: &Box{Type: TypeFtyp, Ftyp: &Ftyp{Brand: brand, BrandVersion: brandVersion, CompatibleBrands: compatibleBrands}},
		mvhd: &Box{Type: TypeMvhd, Mvhd: &Mvhd{
			TimeScale:       movieTimescale,
			PreferredRate:   [4]byte{0, 1, 0, 0},
			PreferredVolume: [2]byte{1, 0},
			Matrix:          identityMatrix(),
			NextTrackId:     1,
		}},
		trackConfig: make(map[uint32]TrackConfig),
		sink:        sink,
		pending:     make(map[uint32][]StoredSample),
		baseDecode:  make(map[uint32]uint64),
	}
}

// AddTrack registers a new track, to be carried in the initialization
// segment's moov with an mvex/trex entry supplying this track's fragment
// defaults.
func (w *FragmentedMovieWriter) AddTrack(cfg TrackConfig) uint32 {
	w.trackOrder = append(w.trackOrder, cfg.TrackId)
	w.trackConfig[cfg.TrackId] = cfg
	if cfg.TrackId >= w.mvhd.Mvhd.NextTrackId {
		w.mvhd.Mvhd.NextTrackId = cfg.TrackId + 1
	}
	return cfg.TrackId
}

// BuildInitSegment assembles the ftyp+moov pair (mvex/trex included) for
// this movie's tracks and returns it ready for WriteInitSegment.
func (w *FragmentedMovieWriter) BuildInitSegment() (ftyp *Box, moov *Box) {
	moov = &Box{Type: TypeMoov}
	moov.AddChild(w.mvhd)

	mvex := &Box{Type: TypeMvex}
	for _, trackId := range w.trackOrder {
		cfg := w.trackConfig[trackId]
		trak := buildTrakSkeleton(cfg)
		moov.AddChild(trak)
		mvex.AddChild(&Box{Type: TypeTrex, Trex: &Trex{
			TrackId:                       trackId,
			DefaultSampleDescriptionIndex: 1,
		}})
	}
	moov.AddChild(mvex)
	return w.ftyp, moov
}

// AddSample appends payload to the sink and queues it for trackId's next
// fragment. baseMediaDecodeTime, in the track's own media timescale, is
// used only with the track's first sample, as its starting base media
// decode time; each flush then advances it by the flushed samples'
// durations, and the value passed with later samples is ignored.
func (w *FragmentedMovieWriter) AddSample(trackId uint32, payload []byte, duration uint32, compositionOffset int32, isSync bool, group SampleGroup, baseMediaDecodeTime uint64) error {
	off, err := w.sink.Append(payload)
	if err != nil {
		return err
	}
	w.pending[trackId] = append(w.pending[trackId], StoredSample{
		TrackId:           trackId,
		Offset:            off,
		Size:              uint32(len(payload)),
		Duration:          duration,
		CompositionOffset: compositionOffset,
		IsSync:            isSync,
		Group:             group,
	})
	if _, ok := w.baseDecode[trackId]; !ok {
		w.baseDecode[trackId] = baseMediaDecodeTime
	}
	return nil
}

// payloadStore adapts w.sink so WriteFragment's store.Payload calls can
// read back sample bytes already appended via AddSample.
func (w *FragmentedMovieWriter) payloadStore() *Store {
	return &Store{sink: w.sink}
}

// FlushFragment serializes every track's pending samples as one moof+mdat
// fragment (bare, with no styp framing) and clears the pending buffers.
func (w *FragmentedMovieWriter) FlushFragment(out Output) (FragmentInfo, error) {
	info, err := w.flush(out, nil, false)
	if err != nil {
		return FragmentInfo{}, err
	}
	return info, nil
}

// FlushSegment is FlushFragment with styp segment-type framing, as used
// for DASH/CMAF media segments. isLast marks the representation's final
// segment with the lmsg compatible brand.
func (w *FragmentedMovieWriter) FlushSegment(out Output, styp *Box, isLast bool) (FragmentInfo, error) {
	info, err := w.flush(out, styp, isLast)
	if err != nil {
		return FragmentInfo{}, err
	}
	w.segments = append(w.segments, info)
	return info, nil
}

func (w *FragmentedMovieWriter) flush(out Output, styp *Box, isLast bool) (FragmentInfo, error) {
	w.sequence++
	tracks := make([]FragmentTrackBuild, 0, len(w.trackOrder))
	for _, trackId := range w.trackOrder {
		samples := w.pending[trackId]
		tracks = append(tracks, FragmentTrackBuild{
			TrackId:             trackId,
			Samples:             samples,
			BaseMediaDecodeTime: w.baseDecode[trackId],
		})
	}
	store := w.payloadStore()
	info, err := WriteSegment(out, styp, w.sequence, tracks, store, isLast)
	if err != nil {
		return FragmentInfo{}, err
	}
	for _, trackId := range w.trackOrder {
		w.baseDecode[trackId] += fragmentDuration(w.pending[trackId])
		w.pending[trackId] = nil
	}
	return info, nil
}

func fragmentDuration(samples []StoredSample) uint64 {
	var total uint64
	for _, s := range samples {
		total += uint64(s.Duration)
	}
	return total
}

// Segments returns every FragmentInfo recorded via FlushSegment so far,
// in emission order, suitable for BuildSidx.
func (w *FragmentedMovieWriter) Segments() []FragmentInfo { return w.segments }

// SetReferenceId sets the reference_ID a later BuildSidx call should use
// for this movie's segment index; it defaults to the first track's ID.
func (w *FragmentedMovieWriter) SetReferenceId(id uint32) { w.referenceId = id }

// BuildSidx constructs a sidx box summarizing every segment flushed via
// FlushSegment so far, using earliestPresentationTime and firstOffset as
// supplied by the caller (firstOffset is the byte distance from the end
// of the sidx box to the first referenced segment; a caller spooling
// segments to a TeeOutput before writing the sidx ahead of them knows
// this once every segment is written).
func (w *FragmentedMovieWriter) BuildSidx(timescale uint32, earliestPresentationTime uint64, firstOffset uint64) *Box {
	refId := w.referenceId
	if refId == 0 && len(w.trackOrder) > 0 {
		refId = w.trackOrder[0]
	}
	return BuildSidx(refId, timescale, earliestPresentationTime, firstOffset, w.segments)
}
