package bmff_test

import (
	"testing"

	"github.com/tetsuo/mmtbmff"
)

func buildBenchMovie(b *testing.B, sampleCount int) []byte {
	b.Helper()
	sink := bmff.NewMemorySink()
	w := bmff.NewMovieWriter(
		[4]byte{'i', 's', 'o', '5'}, 0,
		[][4]byte{{'i', 's', 'o', '5'}, {'a', 'v', 'c', '1'}},
		30000, sink, 0,
	)
	trackId := w.AddTrack(bmff.TrackConfig{
		TrackId:        1,
		HandlerType:    bmff.HandlerVideo,
		HandlerName:    "VideoHandler",
		MediaTimescale: 30000,
		Width:          1920 << 16,
		Height:         1080 << 16,
	})
	payload := make([]byte, 512)
	for i := 0; i < sampleCount; i++ {
		if err := w.AddSample(trackId, payload, 1000, 0, i%30 == 0, bmff.SampleGroup{}); err != nil {
			b.Fatal(err)
		}
	}
	out := bmff.NewMemoryOutput()
	if err := w.Serialize(out); err != nil {
		b.Fatal(err)
	}
	return out.Bytes()
}

func BenchmarkScannerParse(b *testing.B) {
	data := buildBenchMovie(b, 1000)
	b.SetBytes(int64(len(data)))

	for b.Loop() {
		input := bmff.NewMemoryInput(data)
		sc := bmff.NewScanner(input)
		for sc.Next() {
			e := sc.Entry()
			if e.Type != bmff.TypeMoov {
				continue
			}
			buf, err := sc.ReadBody(e)
			if err != nil {
				b.Fatal(err)
			}
			if _, err := bmff.Decode(buf, 0, len(buf)); err != nil {
				b.Fatal(err)
			}
		}
		if err := sc.Err(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkOpenMovie(b *testing.B) {
	data := buildBenchMovie(b, 1000)
	b.SetBytes(int64(len(data)))

	for b.Loop() {
		if _, err := bmff.OpenMovie(bmff.NewMemoryInput(data)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeSampleTable(b *testing.B) {
	data := buildBenchMovie(b, 5000)
	movie, err := bmff.OpenMovie(bmff.NewMemoryInput(data))
	if err != nil {
		b.Fatal(err)
	}
	stbl := movie.Moov.FindPath(bmff.TypeTrak, bmff.TypeMdia, bmff.TypeMinf, bmff.TypeStbl)
	if stbl == nil {
		b.Fatal("no stbl in synthesized movie")
	}
	b.ResetTimer()

	for b.Loop() {
		if _, err := bmff.DecodeSampleTable(stbl); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMovieWriterSerialize(b *testing.B) {
	payload := make([]byte, 512)
	b.ResetTimer()

	for b.Loop() {
		sink := bmff.NewMemorySink()
		w := bmff.NewMovieWriter(
			[4]byte{'i', 's', 'o', '5'}, 0,
			[][4]byte{{'i', 's', 'o', '5'}, {'a', 'v', 'c', '1'}},
			30000, sink, 0,
		)
		trackId := w.AddTrack(bmff.TrackConfig{
			TrackId:        1,
			HandlerType:    bmff.HandlerVideo,
			HandlerName:    "VideoHandler",
			MediaTimescale: 30000,
			Width:          1920 << 16,
			Height:         1080 << 16,
		})
		for i := 0; i < 1000; i++ {
			if err := w.AddSample(trackId, payload, 1000, 0, i%30 == 0, bmff.SampleGroup{}); err != nil {
				b.Fatal(err)
			}
		}
		out := bmff.NewMemoryOutput()
		if err := w.Serialize(out); err != nil {
			b.Fatal(err)
		}
	}
}
