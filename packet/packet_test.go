package packet

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stlalpha/oqwk/archive"
	"github.com/stlalpha/oqwk/binrec"
	"github.com/stlalpha/oqwk/control"
	"github.com/stlalpha/oqwk/qwkmsg"
	"github.com/stlalpha/oqwk/validate"
)

func sampleControlDat() string {
	lines := []string{
		"Test BBS",
		"Anytown",
		"555-1234",
		"The Sysop",
		"1234,TESTBBS",
		"01-01-91,12:00:00",
		"A User",
		"MENU",
		"0",
		"2",
		"0",
		"1",
		"General",
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

func makeHeaderBlock(status byte, date, timeStr string, alive byte, conference uint16) []byte {
	b := make([]byte, binrec.MessageRecordSize)
	for i := range b {
		b[i] = ' '
	}
	b[0] = status
	copy(b[8:16], date)
	copy(b[16:21], timeStr)
	b[122] = alive
	b[123] = byte(conference)
	b[124] = byte(conference >> 8)
	copy(b[116:122], "     1")
	return b
}

func buildTestArchive(t *testing.T, messagesDat []byte, includeControl bool) []byte {
	t.Helper()
	w := archive.NewZIPWriter()
	if includeControl {
		if err := w.AddFile("CONTROL.DAT", strings.NewReader(sampleControlDat())); err != nil {
			t.Fatalf("AddFile CONTROL.DAT: %v", err)
		}
	}
	if messagesDat != nil {
		if err := w.AddFile("MESSAGES.DAT", bytes.NewReader(messagesDat)); err != nil {
			t.Fatalf("AddFile MESSAGES.DAT: %v", err)
		}
	}
	var out bytes.Buffer
	if err := w.Save(&out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return out.Bytes()
}

func openTestPacket(t *testing.T, data []byte, mode validate.Mode) *Packet {
	t.Helper()
	ar, err := archive.OpenBytes(data, 0)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	p, err := OpenReader(ar, Options{Mode: mode})
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	return p
}

func TestOpenEndToEnd(t *testing.T) {
	header := makeHeaderBlock('-', "01-01-91", "12:00", qwkmsg.AliveLive, 1)
	copy(header[21:46], "Jane")
	copy(header[71:96], "Hello")

	var messagesDat bytes.Buffer
	messagesDat.Write(make([]byte, binrec.MessageRecordSize)) // copyright block
	messagesDat.Write(header)

	data := buildTestArchive(t, messagesDat.Bytes(), true)
	p := openTestPacket(t, data, validate.Lenient)
	defer p.Close()

	if p.Control.BBSName != "Test BBS" {
		t.Errorf("BBSName = %q, want \"Test BBS\"", p.Control.BBSName)
	}
	if len(p.Conferences) != 1 || p.Conferences[0].Name != "General" {
		t.Errorf("Conferences = %+v", p.Conferences)
	}
	if len(p.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(p.Messages))
	}
	if p.Messages[0].To != "Jane" || p.Messages[0].Subject != "Hello" {
		t.Errorf("Messages[0] = %+v", p.Messages[0])
	}
	if !p.Report.IsValid() {
		t.Errorf("Report = %+v, want valid", p.Report)
	}
}

func TestOpenStrictFailsOnMissingControl(t *testing.T) {
	data := buildTestArchive(t, nil, false)
	ar, err := archive.OpenBytes(data, 0)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	_, err = OpenReader(ar, Options{Mode: validate.Strict})
	if err == nil {
		t.Error("expected error in Strict mode for missing CONTROL.DAT")
	}
}

func TestOpenLenientSubstitutesMinimalControl(t *testing.T) {
	data := buildTestArchive(t, nil, false)
	p := openTestPacket(t, data, validate.Lenient)
	defer p.Close()

	if p.Control.BBSName != "Unknown BBS" {
		t.Errorf("BBSName = %q, want \"Unknown BBS\"", p.Control.BBSName)
	}
	if p.Report.IsValid() {
		t.Error("Report.IsValid() = true, want false (missing CONTROL.DAT is an error)")
	}
}

// TestHeaderDiscriminatorRecovery checks recovery from a corrupt
// block-count field (too low), which leaves a stray body block behind
// when the real message boundary is elsewhere. The outer read loop
// advances one block at a
// time until the discriminator accepts again, recovering every
// genuine header downstream.
func TestHeaderDiscriminatorRecovery(t *testing.T) {
	good1 := makeHeaderBlock('-', "01-01-91", "12:00", qwkmsg.AliveLive, 1)
	copy(good1[116:122], "     2") // claims 1 body block; 2 actually follow before the next header

	good2 := makeHeaderBlock('-', "01-02-91", "13:00", qwkmsg.AliveLive, 1)
	copy(good2[21:46], "Second")

	var messagesDat bytes.Buffer
	messagesDat.Write(make([]byte, binrec.MessageRecordSize)) // copyright
	messagesDat.Write(good1)
	messagesDat.Write(bytes.Repeat([]byte{0x41}, binrec.MessageRecordSize)) // consumed as good1's declared body block
	messagesDat.Write(make([]byte, binrec.MessageRecordSize))              // stray block the discriminator must reject and skip
	messagesDat.Write(good2)

	data := buildTestArchive(t, messagesDat.Bytes(), true)
	p := openTestPacket(t, data, validate.Lenient)
	defer p.Close()

	var sawSecond bool
	for _, m := range p.Messages {
		if m.To == "Second" {
			sawSecond = true
		}
	}
	if !sawSecond {
		t.Errorf("expected the second genuine header to be recovered, got %+v", p.Messages)
	}
	if len(p.Report.Warnings) == 0 {
		t.Error("expected at least one warning from the resynchronisation")
	}
}

func TestOptionalFileCaching(t *testing.T) {
	w := archive.NewZIPWriter()
	w.AddFile("CONTROL.DAT", strings.NewReader(sampleControlDat()))
	w.AddFile("WELCOME", strings.NewReader("hi there"))
	var out bytes.Buffer
	w.Save(&out)

	p := openTestPacket(t, out.Bytes(), validate.Lenient)
	defer p.Close()

	content, ok, err := p.OptionalFile("welcome")
	if err != nil || !ok || content != "hi there" {
		t.Fatalf("OptionalFile = %q, %v, %v", content, ok, err)
	}

	hash, ok, err := p.OptionalFileHash("WELCOME")
	if err != nil || !ok || hash == 0 {
		t.Errorf("OptionalFileHash = %d, %v, %v", hash, ok, err)
	}

	_, ok, err = p.OptionalFile("GOODBYE")
	if err != nil || ok {
		t.Errorf("OptionalFile(absent) = %v, %v, want false, nil", ok, err)
	}
	// Second lookup of the same absent name must hit the cache, not the
	// archive, and still report absent.
	_, ok, err = p.OptionalFile("goodbye")
	if err != nil || ok {
		t.Errorf("cached OptionalFile(absent) = %v, %v, want false, nil", ok, err)
	}
}

// TestWriterReadBackRoundTrip is invariant 3: reading a REP packet
// produced from a message list yields a message list of the same
// length with matching conference numbers and body text.
func TestWriterReadBackRoundTrip(t *testing.T) {
	vc := validate.New(validate.Strict)
	rec, err := control.Parse(strings.NewReader(sampleControlDat()), vc)
	if err != nil {
		t.Fatalf("control.Parse: %v", err)
	}

	w := NewWriter(rec)
	if err := w.AddMessage(OutgoingMessage{
		Conference: 1,
		To:         "Jane",
		From:       "Bob",
		Subject:    "Re: Hi",
		Date:       "01-01-91",
		Time:       "12:00",
		Lines:      []string{"Hello", "World"},
	}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if err := w.AddMessage(OutgoingMessage{
		Conference: 2,
		To:         "Bob",
		From:       "Jane",
		Subject:    "Re: Re: Hi",
		Date:       "01-02-91",
		Time:       "13:00",
		Lines:      []string{"Second message"},
	}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	aw := archive.NewZIPWriter()
	result, err := w.Save(aw)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if result.MessagesWritten != 2 {
		t.Errorf("result.MessagesWritten = %d, want 2", result.MessagesWritten)
	}
	if len(result.IndexFiles) != 2 || result.IndexFiles[0] != "1.NDX" || result.IndexFiles[1] != "2.NDX" {
		t.Errorf("result.IndexFiles = %v, want [1.NDX 2.NDX]", result.IndexFiles)
	}
	if result.BytesWritten <= 0 {
		t.Errorf("result.BytesWritten = %d, want > 0", result.BytesWritten)
	}
	var out bytes.Buffer
	if err := aw.Save(&out); err != nil {
		t.Fatalf("archive Save: %v", err)
	}

	p := openTestPacket(t, out.Bytes(), validate.Strict)
	defer p.Close()

	if len(p.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(p.Messages))
	}
	if p.Messages[0].Conference != 1 || p.Messages[1].Conference != 2 {
		t.Errorf("conference numbers = %d, %d", p.Messages[0].Conference, p.Messages[1].Conference)
	}
	if strings.Join(p.Messages[0].Body.Lines, "\n") != "Hello\nWorld" {
		t.Errorf("Messages[0].Body.Lines = %#v", p.Messages[0].Body.Lines)
	}
	if strings.Join(p.Messages[1].Body.Lines, "\n") != "Second message" {
		t.Errorf("Messages[1].Body.Lines = %#v", p.Messages[1].Body.Lines)
	}

	names, err := p.ar.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	var hasIdx1, hasIdx2 bool
	for _, n := range names {
		if n == "1.NDX" {
			hasIdx1 = true
		}
		if n == "2.NDX" {
			hasIdx2 = true
		}
	}
	if !hasIdx1 || !hasIdx2 {
		t.Errorf("ListFiles = %v, want 1.NDX and 2.NDX present", names)
	}
}

func TestWriterRejectsAddAfterSave(t *testing.T) {
	rec := &control.Record{BBSName: "X", RawLines: []string{"X"}}
	w := NewWriter(rec)
	aw := archive.NewZIPWriter()
	if _, err := w.Save(aw); err != nil {
		t.Fatalf("Save: %v", err)
	}
	err := w.AddMessage(OutgoingMessage{})
	if err == nil {
		t.Error("expected error adding a message after Save")
	}
	if !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("err = %v, want wrapping ErrInvalidUsage", err)
	}
	if _, err := w.Save(aw); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("second Save err = %v, want wrapping ErrInvalidUsage", err)
	}
}

func TestWriteREP(t *testing.T) {
	rec := &control.Record{BBSName: "X", RawLines: []string{"X"}}
	aw := archive.NewZIPWriter()
	result, err := WriteREP(rec, []OutgoingMessage{
		{Conference: 1, To: "A", From: "B", Date: "01-01-91", Time: "00:00", Lines: []string{"hi"}},
	}, aw)
	if err != nil {
		t.Fatalf("WriteREP: %v", err)
	}
	if result.MessagesWritten != 1 {
		t.Errorf("result.MessagesWritten = %d, want 1", result.MessagesWritten)
	}
	if len(result.IndexFiles) != 1 || result.IndexFiles[0] != "1.NDX" {
		t.Errorf("result.IndexFiles = %v, want [1.NDX]", result.IndexFiles)
	}
}

// TestLenientMessageCountBound is invariant 6: a packet opened in
// Lenient mode never reports more messages than the block-count bound
// on MESSAGES.DAT allows, even when every block in the file is
// corrupt and none of them decode as a message.
func TestLenientMessageCountBound(t *testing.T) {
	var messagesDat bytes.Buffer
	messagesDat.Write(make([]byte, binrec.MessageRecordSize)) // copyright
	for i := 0; i < 5; i++ {
		messagesDat.Write(bytes.Repeat([]byte{0x00}, binrec.MessageRecordSize))
	}

	data := buildTestArchive(t, messagesDat.Bytes(), true)
	p := openTestPacket(t, data, validate.Lenient)
	defer p.Close()

	bound := 1 + (int64(messagesDat.Len())-int64(binrec.MessageRecordSize))/int64(binrec.MessageRecordSize)
	if int64(len(p.Messages)) > bound {
		t.Errorf("len(Messages) = %d, exceeds bound %d", len(p.Messages), bound)
	}
	if len(p.Messages) != 0 {
		t.Errorf("len(Messages) = %d, want 0 (every block is all-zero and rejected)", len(p.Messages))
	}
	if len(p.Report.Warnings) != 5 {
		t.Errorf("len(Report.Warnings) = %d, want 5 (one per rejected block)", len(p.Report.Warnings))
	}
}
