package bmff

import (
	"os"
	"time"
)

// store.go implements the writer-side sample store (§4.10): a Sink that
// accumulates sample payload bytes, and an Interleaver that reorders the
// per-track sample streams a caller pushes into a single time-aligned
// presentation order.

// Sink accumulates sample payload bytes and hands them back on demand.
type Sink interface {
	// Append writes b and returns the offset it was written at.
	Append(b []byte) (int64, error)
	// ReadAt returns the n bytes written at the given offset.
	ReadAt(off int64, n uint32) ([]byte, error)
	// Len returns the total number of bytes appended so far.
	Len() int64
}

// MemorySink is a Sink backed by a single growable in-memory buffer.
type MemorySink struct {
	buf []byte
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Append(b []byte) (int64, error) {
	off := int64(len(s.buf))
	s.buf = append(s.buf, b...)
	return off, nil
}

func (s *MemorySink) ReadAt(off int64, n uint32) ([]byte, error) {
	if off < 0 || off+int64(n) > int64(len(s.buf)) {
		return nil, &Error{Kind: IoFailure, Msg: "read past end of memory sink"}
	}
	return s.buf[off : off+int64(n)], nil
}

func (s *MemorySink) Len() int64 { return int64(len(s.buf)) }

// FileSink is a Sink that spills sample bytes to a temp file, for writes
// too large to hold entirely in memory.
type FileSink struct {
	f   *os.File
	len int64
}

// NewFileSink creates a temp file to spill sample bytes into.
func NewFileSink() (*FileSink, error) {
	f, err := os.CreateTemp("", "bmff-sink-*")
	if err != nil {
		return nil, &Error{Kind: IoFailure, Msg: "create spill file", Err: err}
	}
	return &FileSink{f: f}, nil
}

func (s *FileSink) Append(b []byte) (int64, error) {
	off := s.len
	n, err := s.f.WriteAt(b, off)
	s.len += int64(n)
	if err != nil {
		return off, &Error{Kind: IoFailure, Msg: "write to spill file", Err: err}
	}
	return off, nil
}

func (s *FileSink) ReadAt(off int64, n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := s.f.ReadAt(buf, off); err != nil {
		return nil, &Error{Kind: IoFailure, Msg: "read from spill file", Err: err}
	}
	return buf, nil
}

func (s *FileSink) Len() int64 { return s.len }

// Close removes the temp file. Deletion is retried with backoff on a
// transient permission error, since a locked temp file on some platforms
// clears itself within a few retries.
func (s *FileSink) Close() error {
	path := s.f.Name()
	s.f.Close()
	delay := 10 * time.Millisecond
	var err error
	for i := 0; i < 5; i++ {
		if err = os.Remove(path); err == nil || !os.IsPermission(err) {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

// StoredSample is one sample as tracked by the sample store: its position
// and size within the Sink, timing, sync/group membership, and the
// fragment number the caller supplied (0 for a non-fragmented write).
type StoredSample struct {
	TrackId           uint32
	Offset            int64
	Size              uint32
	Duration          uint32
	CompositionOffset int32
	IsSync            bool
	FragmentNumber    uint32
	Group             SampleGroup
}

type pendingEntry struct {
	sample  StoredSample
	endTime int64 // dts + duration, in this track's own media timescale
}

type trackStream struct {
	trackId   uint32
	timescale uint32
	pending   []pendingEntry
	dtsCursor int64
}

// Interleaver reorders per-track sample streams into a single
// presentation order: the track whose next sample's end time is minimum
// is selected next, compared across tracks via cross-multiplication (no
// floating point) to account for differing media timescales; ties break
// by ascending trackId.
type Interleaver struct {
	streams         map[uint32]*trackStream
	order           []uint32
	chunkByteBudget int64
}

// NewInterleaver returns an Interleaver that starts a new chunk whenever
// chunkByteBudget bytes have accumulated in the current one; 0 disables
// the byte-budget boundary (only track changes start new chunks).
func NewInterleaver(chunkByteBudget int64) *Interleaver {
	return &Interleaver{streams: make(map[uint32]*trackStream), chunkByteBudget: chunkByteBudget}
}

// AddTrack registers a track's media timescale; a second call for the
// same trackId is a no-op.
func (il *Interleaver) AddTrack(trackId uint32, timescale uint32) {
	if _, ok := il.streams[trackId]; ok {
		return
	}
	il.streams[trackId] = &trackStream{trackId: trackId, timescale: timescale}
	il.order = append(il.order, trackId)
}

// Push queues one sample for trackId; Duration is in that track's own
// media timescale and dts is derived from the running per-track cursor.
func (il *Interleaver) Push(trackId uint32, s StoredSample) {
	st := il.streams[trackId]
	dts := st.dtsCursor
	st.dtsCursor += int64(s.Duration)
	st.pending = append(st.pending, pendingEntry{sample: s, endTime: dts + int64(s.Duration)})
}

// Next selects and removes the next sample to flush per the time-aligned
// policy. Returns ok == false once every stream is drained.
func (il *Interleaver) Next() (trackId uint32, sample StoredSample, ok bool) {
	var best *trackStream
	var bestEntry pendingEntry
	for _, tid := range il.order {
		st := il.streams[tid]
		if len(st.pending) == 0 {
			continue
		}
		e := st.pending[0]
		if best == nil {
			best, bestEntry = st, e
			continue
		}
		less := e.endTime*int64(best.timescale) < bestEntry.endTime*int64(st.timescale)
		equal := e.endTime*int64(best.timescale) == bestEntry.endTime*int64(st.timescale)
		if less || (equal && tid < best.trackId) {
			best, bestEntry = st, e
		}
	}
	if best == nil {
		return 0, StoredSample{}, false
	}
	best.pending = best.pending[1:]
	return best.trackId, bestEntry.sample, true
}

// QueuedSample is one interleaved sample ready for the writer, tagged
// with whether it starts a new chunk.
type QueuedSample struct {
	TrackId  uint32
	Sample   StoredSample
	NewChunk bool
}

// Drain consumes every pending sample across all tracks in time-aligned
// presentation order, marking chunk boundaries on a track change or once
// chunkByteBudget bytes have accumulated in the current chunk.
func (il *Interleaver) Drain() []QueuedSample {
	var out []QueuedSample
	var lastTrack uint32
	haveLast := false
	var chunkBytes int64
	for {
		tid, s, ok := il.Next()
		if !ok {
			break
		}
		newChunk := !haveLast || tid != lastTrack
		if il.chunkByteBudget > 0 && chunkBytes+int64(s.Size) > il.chunkByteBudget {
			newChunk = true
		}
		if newChunk {
			chunkBytes = 0
		}
		chunkBytes += int64(s.Size)
		out = append(out, QueuedSample{TrackId: tid, Sample: s, NewChunk: newChunk})
		lastTrack, haveLast = tid, true
	}
	return out
}

// Store is the writer-side sample store: an Interleaver fed by a Sink
// that holds the actual payload bytes.
type Store struct {
	sink        Sink
	interleaver *Interleaver
}

// NewStore pairs a Sink with a chunk-byte-budget-bounded Interleaver.
func NewStore(sink Sink, chunkByteBudget int64) *Store {
	return &Store{sink: sink, interleaver: NewInterleaver(chunkByteBudget)}
}

// AddTrack registers a track's media timescale with the store's
// interleaver.
func (s *Store) AddTrack(trackId uint32, timescale uint32) {
	s.interleaver.AddTrack(trackId, timescale)
}

// AddSample appends payload to the sink and queues its metadata for
// interleaving.
func (s *Store) AddSample(trackId uint32, payload []byte, duration uint32, compositionOffset int32, isSync bool, fragmentNumber uint32, group SampleGroup) error {
	off, err := s.sink.Append(payload)
	if err != nil {
		return err
	}
	s.interleaver.Push(trackId, StoredSample{
		TrackId:           trackId,
		Offset:            off,
		Size:              uint32(len(payload)),
		Duration:          duration,
		CompositionOffset: compositionOffset,
		IsSync:            isSync,
		FragmentNumber:    fragmentNumber,
		Group:             group,
	})
	return nil
}

// Drain returns every queued sample in presentation order, with chunk
// boundaries marked.
func (s *Store) Drain() []QueuedSample { return s.interleaver.Drain() }

// Payload returns the payload bytes previously stored for sample.
func (s *Store) Payload(sample StoredSample) ([]byte, error) {
	return s.sink.ReadAt(sample.Offset, sample.Size)
}
