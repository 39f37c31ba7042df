// Command mp4dump reads an MP4 file and prints its box structure.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tetsuo/mmtbmff"
)

// Format specifies the output format.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// BoxNode is a box in the tree structure, suitable for text or JSON output.
type BoxNode struct {
	Type     string         `json:"type"`
	Size     int64          `json:"size"`
	Version  *uint8         `json:"version,omitempty"`
	Flags    *uint32        `json:"flags,omitempty"`
	Info     map[string]any `json:"info,omitempty"`
	Children []BoxNode      `json:"children,omitempty"`
}

func main() {
	formatFlag := flag.String("format", "text", "output format: text (default), json")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [--format=text|json] <file.mp4>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	format := FormatText
	switch strings.ToLower(*formatFlag) {
	case "json":
		format = FormatJSON
	case "text":
		format = FormatText
	default:
		fmt.Fprintf(os.Stderr, "unknown format: %s\n", *formatFlag)
		os.Exit(1)
	}

	input, err := bmff.NewFileInput(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening file: %v\n", err)
		os.Exit(1)
	}

	var root []BoxNode
	sc := bmff.NewScanner(input)
	for sc.Next() {
		e := sc.Entry()
		node := BoxNode{Type: e.Type.String(), Size: e.Size}

		switch e.Type {
		case bmff.TypeMoov, bmff.TypeMoof, bmff.TypeFtyp, bmff.TypeStyp:
			buf, err := sc.ReadBody(e)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error reading %s: %v\n", e.Type, err)
				continue
			}
			box, err := bmff.Decode(buf, 0, len(buf))
			if err != nil {
				fmt.Fprintf(os.Stderr, "error decoding %s: %v\n", e.Type, err)
				continue
			}
			node.Version = versionPtr(box)
			node.Flags = flagsPtr(box)
			node.Info = collectBoxInfo(box)
			node.Children = buildChildren(box)
		case bmff.TypeMdat:
			node.Info = map[string]any{"dataLength": e.DataSize()}
		}

		root = append(root, node)
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "scan error: %v\n", err)
		os.Exit(1)
	}

	printTree(root, format)
}

func versionPtr(box *bmff.Box) *uint8 {
	if !bmff.IsFullBox(box.Type) {
		return nil
	}
	v := box.Version
	return &v
}

func flagsPtr(box *bmff.Box) *uint32 {
	if !bmff.IsFullBox(box.Type) {
		return nil
	}
	f := box.Flags
	return &f
}

func buildChildren(box *bmff.Box) []BoxNode {
	var nodes []BoxNode
	for _, c := range directChildren(box) {
		node := BoxNode{Type: c.Type.String(), Size: c.Size}
		node.Version = versionPtr(c)
		node.Flags = flagsPtr(c)
		node.Info = collectBoxInfo(c)
		node.Children = buildChildren(c)
		nodes = append(nodes, node)
	}
	return nodes
}

// directChildren returns box's immediate children regardless of whether
// they live in the generic Children map or a typed payload's own slice
// (stsd entries, sample-entry codec configs).
func directChildren(box *bmff.Box) []*bmff.Box {
	var out []*bmff.Box
	for _, list := range box.Children {
		out = append(out, list...)
	}
	if box.Stsd != nil {
		out = append(out, box.Stsd.Entries...)
	}
	if box.Visual != nil {
		out = append(out, box.Visual.Children...)
	}
	if box.Audio != nil {
		out = append(out, box.Audio.Children...)
	}
	return out
}

func collectBoxInfo(box *bmff.Box) map[string]any {
	info := make(map[string]any)
	switch {
	case box.Ftyp != nil:
		info["brand"] = string(box.Ftyp.Brand[:])
		info["version"] = box.Ftyp.BrandVersion
		if len(box.Ftyp.CompatibleBrands) > 0 {
			compat := make([]string, len(box.Ftyp.CompatibleBrands))
			for i, c := range box.Ftyp.CompatibleBrands {
				compat[i] = string(c[:])
			}
			info["compatible"] = compat
		}
	case box.Mvhd != nil:
		info["timescale"] = box.Mvhd.TimeScale
		info["duration"] = box.Mvhd.Duration
		info["nextTrackId"] = box.Mvhd.NextTrackId
	case box.Tkhd != nil:
		info["trackId"] = box.Tkhd.TrackId
		info["duration"] = box.Tkhd.Duration
		info["width"] = box.Tkhd.TrackWidth >> 16
		info["height"] = box.Tkhd.TrackHeight >> 16
	case box.Mdhd != nil:
		info["timescale"] = box.Mdhd.TimeScale
		info["duration"] = box.Mdhd.Duration
		info["language"] = box.Mdhd.Language
	case box.Hdlr != nil:
		info["handlerType"] = string(box.Hdlr.HandlerType[:])
		info["name"] = box.Hdlr.Name
	case box.Stsd != nil:
		info["entries"] = len(box.Stsd.Entries)
	case box.Stsz != nil:
		info["entries"] = len(box.Stsz.Entries)
	case box.Stco != nil:
		info["entries"] = len(box.Stco.Entries)
	case box.Co64 != nil:
		info["entries"] = len(box.Co64.Entries)
	case box.Stss != nil:
		info["entries"] = len(box.Stss.SampleNumbers)
	case box.Stts != nil:
		info["entries"] = len(box.Stts.Entries)
	case box.Ctts != nil:
		info["entries"] = len(box.Ctts.Entries)
	case box.Stsc != nil:
		info["entries"] = len(box.Stsc.Entries)
	case box.Elst != nil:
		info["entries"] = len(box.Elst.Entries)
	case box.Dref != nil:
		info["entries"] = len(box.Dref.Entries)
	case box.Mehd != nil:
		info["fragmentDuration"] = box.Mehd.FragmentDuration
	case box.Trex != nil:
		info["trackId"] = box.Trex.TrackId
	case box.Mfhd != nil:
		info["sequence"] = box.Mfhd.SequenceNumber
	case box.Tfhd != nil:
		info["trackId"] = box.Tfhd.TrackId
	case box.Tfdt != nil:
		info["baseMediaDecodeTime"] = box.Tfdt.BaseMediaDecodeTime
	case box.Trun != nil:
		info["entries"] = len(box.Trun.Entries)
		if box.Flags&bmff.TrunDataOffsetPresent != 0 {
			info["dataOffset"] = box.Trun.DataOffset
		}
	case box.Sidx != nil:
		info["referenceId"] = box.Sidx.ReferenceID
		info["entries"] = len(box.Sidx.References)
	case box.Visual != nil:
		info["width"] = box.Visual.Width
		info["height"] = box.Visual.Height
		info["compressor"] = box.Visual.CompressorName
	case box.Audio != nil:
		info["channelCount"] = box.Audio.ChannelCount
		info["sampleSize"] = box.Audio.SampleSize
		info["sampleRate"] = box.Audio.SampleRate >> 16
	}
	return info
}

func printTree(nodes []BoxNode, format Format) {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(nodes); err != nil {
			fmt.Fprintf(os.Stderr, "error encoding JSON: %v\n", err)
		}
	case FormatText:
		for _, node := range nodes {
			printNodeText(node, 0)
		}
	}
}

func printNodeText(node BoxNode, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s[%s] size=%d", indent, node.Type, node.Size)
	if node.Version != nil {
		fmt.Printf(" v=%d", *node.Version)
	}
	if node.Flags != nil {
		fmt.Printf(" flags=0x%06x", *node.Flags)
	}
	for key, val := range node.Info {
		fmt.Printf(" %s=%v", key, val)
	}
	fmt.Println()
	for _, child := range node.Children {
		printNodeText(child, depth+1)
	}
}
