// Command mp4probe gathers information about tracks and keyframe
// distribution from an MP4 file.
package main

import (
	"fmt"
	"os"

	"github.com/tetsuo/mmtbmff"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <file.mp4>\n", os.Args[0])
		os.Exit(1)
	}

	input, err := bmff.NewFileInput(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	movie, err := bmff.OpenMovie(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	sc := bmff.NewScanner(input)
	for sc.Next() {
		e := sc.Entry()
		if e.Type != bmff.TypeMoof {
			continue
		}
		if _, err := movie.FeedFragment(e); err != nil {
			fmt.Fprintf(os.Stderr, "error feeding fragment at %d: %v\n", e.Offset, err)
			os.Exit(1)
		}
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "scan error: %v\n", err)
		os.Exit(1)
	}

	for i, track := range movie.Tracks {
		fmt.Printf("Track %d: trackId=%d codec=%s handler=%s\n",
			i, track.TrackId, track.CodingName(), string(track.HandlerType[:]))
		fmt.Printf("  Total samples: %d\n", track.Len())
		fmt.Printf("  TimeScale: %d\n\n", track.MediaTimescale)

		keyframes := 0
		var prevKfTime float64
		var intervals []float64
		var dts int64

		fmt.Println("  Keyframes:")
		for j := 0; j < track.Len(); j++ {
			s, _, err := track.SampleAt(j)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error reading sample %d: %v\n", j, err)
				os.Exit(1)
			}
			if s.IsSync {
				pts := float64(dts+int64(s.CompositionOffset)) / float64(track.MediaTimescale)
				fmt.Printf("    [%5d] %.3fs", j, pts)
				if keyframes > 0 {
					interval := pts - prevKfTime
					intervals = append(intervals, interval)
					fmt.Printf(" (%.3fs since last)", interval)
				}
				fmt.Println()
				prevKfTime = pts
				keyframes++
				if keyframes >= 20 {
					fmt.Printf("    ... (%d more keyframes)\n", countRemainingKeyframes(track, j+1))
					break
				}
			}
			dts += int64(s.Duration)
		}

		fmt.Printf("\n  Total keyframes: %d\n", countTotalKeyframes(track))
		if len(intervals) > 0 {
			fmt.Printf("  Keyframe interval: avg=%.3fs min=%.3fs max=%.3fs\n",
				average(intervals), minimum(intervals), maximum(intervals))
		}
		fmt.Println()
	}
}

func countRemainingKeyframes(track *bmff.Track, from int) int {
	count := 0
	for j := from; j < track.Len(); j++ {
		s, _, err := track.SampleAt(j)
		if err == nil && s.IsSync {
			count++
		}
	}
	return count
}

func countTotalKeyframes(track *bmff.Track) int {
	count := 0
	for j := 0; j < track.Len(); j++ {
		s, _, err := track.SampleAt(j)
		if err == nil && s.IsSync {
			count++
		}
	}
	return count
}

func average(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func minimum(vals []float64) float64 {
	min := vals[0]
	for _, v := range vals {
		if v < min {
			min = v
		}
	}
	return min
}

func maximum(vals []float64) float64 {
	max := vals[0]
	for _, v := range vals {
		if v > max {
			max = v
		}
	}
	return max
}
