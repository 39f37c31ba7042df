package bmff

// writer_plain.go implements the non-fragmented writer (§4.11): given a
// movie's ftyp, mvhd, and one trak skeleton per track (tkhd/mdia/minf/stbl
// with only the stsd populated), it synthesizes each track's sample
// tables from the samples queued in a Store, appends one mdat holding
// every sample's payload in the store's interleaved order, and streams
// the whole file through an Output.

// TrackBuild is everything WritePlainMovie needs for one track besides
// its samples, which it reads from the Store.
type TrackBuild struct {
	Trak                   *Box
	TrackId                uint32
	SampleDescriptionIndex uint32
}

// WritePlainMovie serializes a non-fragmented movie. moovExtras are added
// as additional moov children (e.g. a movie-level udta); EncodeBox writes
// moov's children of different types in map order, so their position
// relative to mvhd and the trak boxes in the output is not fixed.
func WritePlainMovie(out Output, ftyp *Box, mvhd *Box, tracks []TrackBuild, store *Store, moovExtras ...*Box) error {
	queued := store.Drain()

	byTrack := make(map[uint32][]Sample)
	var relOffset int64
	for _, qs := range queued {
		byTrack[qs.TrackId] = append(byTrack[qs.TrackId], Sample{
			Offset:            relOffset,
			Size:              qs.Sample.Size,
			Duration:          qs.Sample.Duration,
			CompositionOffset: qs.Sample.CompositionOffset,
			IsSync:            qs.Sample.IsSync,
			Group:             qs.Sample.Group,
		})
		relOffset += int64(qs.Sample.Size)
	}
	totalPayload := relOffset

	buildMoov := func(prefix int64) (*Box, error) {
		moov := &Box{Type: TypeMoov}
		moov.AddChild(mvhd)
		for i := range tracks {
			tb := &tracks[i]
			if err := populateStbl(tb, byTrack[tb.TrackId], prefix); err != nil {
				return nil, err
			}
			moov.AddChild(tb.Trak)
		}
		for _, extra := range moovExtras {
			moov.AddChild(extra)
		}
		return moov, nil
	}

	moov, err := buildMoov(0)
	if err != nil {
		return err
	}
	prefix := EncodingLength(ftyp) + EncodingLength(moov) + mdatHeaderSizeFor(totalPayload)
	for i := 0; i < 4; i++ {
		if moov, err = buildMoov(prefix); err != nil {
			return err
		}
		next := EncodingLength(ftyp) + EncodingLength(moov) + mdatHeaderSizeFor(totalPayload)
		if next == prefix {
			break
		}
		prefix = next
	}

	if err := writeBox(out, ftyp); err != nil {
		return err
	}
	if err := writeBox(out, moov); err != nil {
		return err
	}
	if err := writeMdatHeader(out, totalPayload); err != nil {
		return err
	}
	for _, qs := range queued {
		payload, err := store.Payload(qs.Sample)
		if err != nil {
			return err
		}
		if err := out.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// populateStbl synthesizes samples's run-length-coalesced tables and
// grouping boxes (shifting every sample offset by prefix, the byte count
// preceding the mdat payload) and installs them under tb.Trak's stbl,
// replacing whatever placeholder tables a previous call left there.
func populateStbl(tb *TrackBuild, samples []Sample, prefix int64) error {
	stbl := tb.Trak.FindPath(TypeMdia, TypeMinf, TypeStbl)
	if stbl == nil {
		return &Error{Kind: StructuralViolation, BoxType: TypeTrak, Msg: "missing stbl"}
	}
	shifted := make([]Sample, len(samples))
	copy(shifted, samples)
	for i := range shifted {
		shifted[i].Offset += prefix
	}

	tables := EncodeSampleTable(shifted, tb.SampleDescriptionIndex)
	groups := EncodeSampleGroups(shifted)

	ensureChildren(stbl)
	setChild(stbl, TypeStts, &Box{Type: TypeStts, Stts: tables.Stts})
	if tables.Ctts != nil {
		var v uint8
		if tables.Ctts.V1 {
			v = 1
		}
		setChild(stbl, TypeCtts, &Box{Type: TypeCtts, Version: v, Ctts: tables.Ctts})
	} else {
		clearChild(stbl, TypeCtts)
	}
	setChild(stbl, TypeStsc, &Box{Type: TypeStsc, Stsc: tables.Stsc})
	setChild(stbl, TypeStsz, &Box{Type: TypeStsz, Stsz: tables.Stsz})
	if tables.Co64 != nil {
		setChild(stbl, TypeCo64, &Box{Type: TypeCo64, Co64: tables.Co64})
		clearChild(stbl, TypeStco)
	} else {
		setChild(stbl, TypeStco, &Box{Type: TypeStco, Stco: tables.Stco})
		clearChild(stbl, TypeCo64)
	}
	if tables.Stss != nil {
		setChild(stbl, TypeStss, &Box{Type: TypeStss, Stss: tables.Stss})
	} else {
		clearChild(stbl, TypeStss)
	}

	clearChild(stbl, TypeSbgp)
	clearChild(stbl, TypeSgpd)
	for _, g := range groups {
		stbl.AddChild(&Box{Type: TypeSbgp, Sbgp: g.Sbgp})
		stbl.AddChild(&Box{Type: TypeSgpd, Version: 1, Sgpd: g.Sgpd})
	}
	return nil
}

func ensureChildren(box *Box) {
	if box.Children == nil {
		box.Children = make(map[BoxType][]*Box)
	}
}

func setChild(box *Box, t BoxType, child *Box) {
	ensureChildren(box)
	box.Children[t] = []*Box{child}
}

func clearChild(box *Box, t BoxType) {
	if box.Children != nil {
		delete(box.Children, t)
	}
}

// writeBox serializes box into a freshly sized buffer and writes it in
// one call.
func writeBox(out Output, box *Box) error {
	size := EncodingLength(box)
	buf := make([]byte, size)
	if _, err := EncodeBox(box, buf, 0); err != nil {
		return err
	}
	return out.Write(buf)
}

// mdatHeaderSizeFor returns the byte width of an mdat box header holding
// payloadSize bytes: 8 normally, or 16 once the total box size needs the
// 64-bit extended size field.
func mdatHeaderSizeFor(payloadSize int64) int64 {
	if payloadSize+boxHeaderSize > 0xffffffff {
		return boxHeaderSize + largeSizeExtra
	}
	return boxHeaderSize
}

// writeMdatHeader writes an mdat box header (without payload) sized for
// payloadSize bytes to follow.
func writeMdatHeader(out Output, payloadSize int64) error {
	size := payloadSize + mdatHeaderSizeFor(payloadSize)
	if mdatHeaderSizeFor(payloadSize) == boxHeaderSize+largeSizeExtra {
		hdr := make([]byte, boxHeaderSize+largeSizeExtra)
		be.PutUint32(hdr[0:4], 1)
		copy(hdr[4:8], TypeMdat[:])
		be.PutUint64(hdr[8:16], uint64(size))
		return out.Write(hdr)
	}
	hdr := make([]byte, boxHeaderSize)
	be.PutUint32(hdr[0:4], uint32(size))
	copy(hdr[4:8], TypeMdat[:])
	return out.Write(hdr)
}
