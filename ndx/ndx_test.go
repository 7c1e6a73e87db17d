package ndx

import (
	"bytes"
	"testing"

	"github.com/stlalpha/oqwk/binrec"
	"github.com/stlalpha/oqwk/qwkmsg"
	"github.com/stlalpha/oqwk/validate"
)

func ndxBytesFor(offsets ...float64) []byte {
	var buf bytes.Buffer
	for _, o := range offsets {
		b := binrec.Float64ToMSBINBytes(o)
		buf.Write(b[:])
	}
	return buf.Bytes()
}

// TestParseBoundsValidation checks that offsets 1, 2, 10000 against a
// 5000-byte MESSAGES.DAT yield two valid entries and one skip.
func TestParseBoundsValidation(t *testing.T) {
	vc := validate.New(validate.Lenient)
	f, err := Parse(bytes.NewReader(ndxBytesFor(1, 2, 10000)), 1, 5000, vc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(f.Entries))
	}
	if f.Entries[0].MessageNumber != 1 || f.Entries[1].MessageNumber != 2 {
		t.Errorf("message numbers = %d, %d, want 1, 2", f.Entries[0].MessageNumber, f.Entries[1].MessageNumber)
	}
	if f.Valid {
		t.Error("Valid = true, want false (one entry was skipped)")
	}
	if len(vc.Report().Warnings) != 1 {
		t.Errorf("warnings = %d, want 1", len(vc.Report().Warnings))
	}
}

// TestEncodeUnmodifiedRoundTrip is universal invariant 4: an .NDX file
// with no validation warnings round-trips byte-identical.
func TestEncodeUnmodifiedRoundTrip(t *testing.T) {
	original := ndxBytesFor(1, 2, 3)
	vc := validate.New(validate.Lenient)
	f, err := Parse(bytes.NewReader(original), 1, -1, vc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !f.Valid {
		t.Fatal("Valid = false, want true for a clean file")
	}

	var out bytes.Buffer
	if err := Encode(&out, f); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(out.Bytes(), original) {
		t.Errorf("round trip mismatch: got %x, want %x", out.Bytes(), original)
	}
}

func TestParseRejectsNonMultipleOfFourInStrict(t *testing.T) {
	vc := validate.New(validate.Strict)
	_, err := Parse(bytes.NewReader(make([]byte, 6)), 1, -1, vc)
	if err == nil {
		t.Error("expected error for a non-multiple-of-4 file in Strict mode")
	}
}

func TestParseTruncatesNonMultipleOfFourInLenient(t *testing.T) {
	vc := validate.New(validate.Lenient)
	f, err := Parse(bytes.NewReader(append(ndxBytesFor(1), 0xFF, 0xFF)), 1, -1, vc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Entries) != 1 {
		t.Errorf("len(Entries) = %d, want 1", len(f.Entries))
	}
}

func TestIndexBuildsPerConferenceFiles(t *testing.T) {
	copyrightBlock := make([]byte, binrec.MessageRecordSize)

	headerA := make([]byte, binrec.MessageRecordSize)
	for i := range headerA {
		headerA[i] = ' '
	}
	headerA[0] = '-'
	copy(headerA[8:16], "01-01-91")
	copy(headerA[16:21], "12:00")
	copy(headerA[116:122], "     1")
	headerA[122] = qwkmsg.AliveLive
	headerA[123], headerA[124] = 1, 0

	headerB := make([]byte, binrec.MessageRecordSize)
	copy(headerB, headerA)
	headerB[123], headerB[124] = 2, 0

	var messagesDat bytes.Buffer
	messagesDat.Write(copyrightBlock)
	messagesDat.Write(headerA)
	messagesDat.Write(headerB)

	vc := validate.New(validate.Lenient)
	files, err := Index(bytes.NewReader(messagesDat.Bytes()), vc)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("len(files) = %d, want 2 conferences", len(files))
	}
	if files[1].Entries[0].RecordOffset != 1 {
		t.Errorf("conference 1 entry RecordOffset = %d, want 1", files[1].Entries[0].RecordOffset)
	}
	if files[2].Entries[0].RecordOffset != 2 {
		t.Errorf("conference 2 entry RecordOffset = %d, want 2", files[2].Entries[0].RecordOffset)
	}
}
