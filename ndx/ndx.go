// Package ndx implements the .NDX index codec: a flat run of 4-byte
// MSBIN floats, one per message, each holding a 1-based record offset
// into MESSAGES.DAT. The indexer regenerates these files from a
// MESSAGES.DAT byte stream; the parser reads them back with bounds
// validation against that file's size.
package ndx

import (
	"fmt"
	"io"

	"github.com/stlalpha/oqwk/binrec"
	"github.com/stlalpha/oqwk/qwkmsg"
	"github.com/stlalpha/oqwk/validate"
)

// Entry is one surviving .NDX slot: a 1-based message number assigned
// sequentially among surviving entries, the record offset it decoded
// to, and the original 4 raw bytes (preserved so an unmodified index
// can be rewritten byte-identical to its source).
type Entry struct {
	MessageNumber int
	RecordOffset  int64 // in 128-byte records, 1-based
	Raw           [4]byte
}

// File is the parsed contents of one conference's .NDX file.
type File struct {
	ConferenceNumber uint16
	Entries          []Entry
	Valid            bool // false if any entry triggered a warning
}

// Parse reads a .NDX byte stream. messagesDatSize, when >= 0, bounds
// each entry's byte offset (recordOffset*128) against the MESSAGES.DAT
// size it was generated from; entries at or beyond that size are
// skipped with a warning. Pass a negative size to skip the bounds
// check entirely (e.g. when MESSAGES.DAT itself is unavailable).
//
// Message numbers are assigned sequentially, 1-based, to surviving
// entries only, so numbering stays gap-free even when invalid entries
// are skipped. The file is marked invalid if any warning or error was
// recorded for it, even though surviving entries are still returned —
// this is intentional and must not be "fixed" to ignore warnings.
func Parse(r io.Reader, conference uint16, messagesDatSize int64, vc *validate.Context) (*File, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ndx: read: %w", err)
	}

	loc := validate.Location{File: fmt.Sprintf("%d.NDX", conference)}

	valid := true
	if len(raw)%4 != 0 {
		vc.Warnf(loc, "file size %d is not a multiple of 4, truncating trailing %d bytes", len(raw), len(raw)%4)
		if vc.Mode == validate.Strict {
			return nil, fmt.Errorf("ndx: file size %d not a multiple of 4", len(raw))
		}
		raw = raw[:len(raw)-len(raw)%4]
		valid = false
	}

	f := &File{ConferenceNumber: conference, Valid: valid}
	slotCount := len(raw) / 4

	nextNumber := 1
	for i := 0; i < slotCount; i++ {
		var b [4]byte
		copy(b[:], raw[i*4:i*4+4])

		offset := binrec.MSBINToFloat64(b)
		recordOffset := int64(offset)

		if recordOffset < 0 {
			vc.Warnf(loc, "entry %d: negative record offset %d, skipped", i, recordOffset)
			f.Valid = false
			continue
		}

		if messagesDatSize >= 0 {
			byteOffset := recordOffset * binrec.MessageRecordSize
			if byteOffset >= messagesDatSize {
				vc.Warnf(loc, "entry %d: record offset %d (byte %d) is at or beyond MESSAGES.DAT size %d, skipped", i, recordOffset, byteOffset, messagesDatSize)
				f.Valid = false
				continue
			}
		}

		f.Entries = append(f.Entries, Entry{
			MessageNumber: nextNumber,
			RecordOffset:  recordOffset,
			Raw:           b,
		})
		nextNumber++
	}

	return f, nil
}

// Encode serialises f's entries back to raw .NDX bytes, in order,
// using each entry's preserved MSBIN bytes rather than re-deriving
// them from RecordOffset — this is what keeps an unmodified round trip
// byte-identical to the source file.
func Encode(w io.Writer, f *File) error {
	for _, e := range f.Entries {
		if _, err := w.Write(e.Raw[:]); err != nil {
			return fmt.Errorf("ndx: write entry %d: %w", e.MessageNumber, err)
		}
	}
	return nil
}

// BuildEntry constructs a fresh Entry from a record offset, encoding
// its MSBIN bytes. Used by the indexer when generating a new .NDX
// rather than round-tripping an existing one.
func BuildEntry(messageNumber int, recordOffset int64) Entry {
	b := binrec.Float64ToMSBINBytes(float64(recordOffset))
	return Entry{MessageNumber: messageNumber, RecordOffset: recordOffset, Raw: b}
}

// Index regenerates one File per conference found in a MESSAGES.DAT
// byte stream. It skips the leading 128-byte copyright block, then
// walks each subsequent header, parsing it with qwkmsg.ParseHeader to
// recover the conference number, and assigns a per-conference 1-based message
// number as headers are discovered. Body blocks are skipped over using
// the header's own block-count field without full decoding, since the
// index only needs offsets.
func Index(r io.ReadSeeker, vc *validate.Context) (map[uint16]*File, error) {
	if _, err := r.Seek(binrec.MessageRecordSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("ndx: seek past copyright block: %w", err)
	}

	files := map[uint16]*File{}
	counters := map[uint16]int{}

	block := make([]byte, binrec.MessageRecordSize)

	for {
		pos, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("ndx: tell: %w", err)
		}
		recordOffset := pos / binrec.MessageRecordSize

		n, err := io.ReadFull(r, block)
		if err == io.EOF {
			break
		}
		if err != nil && n < binrec.MessageRecordSize {
			vc.Warnf(validate.Location{File: "MESSAGES.DAT", Offset: pos}, "short read building index, stopping: %v", err)
			break
		}

		if !qwkmsg.IsDiscriminatorCandidate(block) {
			vc.Warnf(validate.Location{File: "MESSAGES.DAT", Offset: pos}, "block at offset %d rejected by discriminator while indexing", pos)
			continue
		}

		hdr, err := qwkmsg.ParseHeader(block)
		if err != nil {
			continue
		}

		f := files[hdr.Conference]
		if f == nil {
			f = &File{ConferenceNumber: hdr.Conference, Valid: true}
			files[hdr.Conference] = f
		}
		counters[hdr.Conference]++
		f.Entries = append(f.Entries, BuildEntry(counters[hdr.Conference], recordOffset))

		bodyBlocks := hdr.BlockCount - 1
		if bodyBlocks < 0 {
			bodyBlocks = 0
		}
		if _, err := r.Seek(int64(bodyBlocks)*binrec.MessageRecordSize, io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("ndx: seek past body: %w", err)
		}
	}

	return files, nil
}
