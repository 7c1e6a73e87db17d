package qwkmsg

import (
	"io"
	"strconv"
	"time"

	"github.com/stlalpha/oqwk/binrec"
	"github.com/stlalpha/oqwk/validate"
)

// Message is one fully parsed, self-contained QWK message. Its
// contents are materialised eagerly — nothing in Message borrows from
// the archive it was read from.
type Message struct {
	Number      int // 1-based within the packet
	Conference  uint16
	From        string
	To          string
	Subject     string
	Timestamp   time.Time
	HasTimestamp bool
	Reference   int
	Password    string
	Body        Body
	Status      StatusFlag
	Kludges     []Kludge
	Header      Header
}

// ReadMessage reads one header block (already confirmed to pass
// IsDiscriminatorCandidate by the caller) plus its body blocks from r,
// assigning it sequence number number within the packet.
func ReadMessage(headerBlock []byte, r io.Reader, number int, vc *validate.Context) (Message, error) {
	loc := validate.Location{File: "MESSAGES.DAT", Offset: int64(number)}

	hdr, err := ParseHeader(headerBlock)
	if err != nil {
		return Message{}, err
	}

	body, err := ReadBody(r, hdr, vc, loc)
	if err != nil {
		return Message{}, err
	}

	kludges, bodyLines := ExtractKludges(body.Lines)
	body.Lines = bodyLines

	msg := Message{
		Number:     number,
		Conference: hdr.Conference,
		From:       hdr.From,
		To:         hdr.To,
		Subject:    hdr.Subject,
		Password:   hdr.Password,
		Body:       body,
		Status:     DecodeStatus(hdr.Status),
		Kludges:    kludges,
		Header:     hdr,
	}

	if ref, err := strconv.Atoi(hdr.Reference); err == nil {
		msg.Reference = ref
	}

	if ts, ok := parseHeaderTimestamp(hdr.Date, hdr.Time); ok {
		msg.Timestamp = ts
		msg.HasTimestamp = true
	} else {
		vc.Warnf(loc, "header date/time %q %q unparseable", hdr.Date, hdr.Time)
	}

	return msg, nil
}

// parseHeaderTimestamp tries the common QWK header date layouts:
// MM-DD-YY, MM/DD/YY, MM-DD-YYYY, or MM/DD/YYYY, followed by an HH:MM
// time. Two-digit years follow time.Parse's rule (69-99 map to the
// 1900s, 00-68 to the 2000s), not CONTROL.DAT's 50 pivot.
func parseHeaderTimestamp(date, clock string) (time.Time, bool) {
	for _, layout := range []string{"01-02-06 15:04", "01/02/06 15:04", "01-02-2006 15:04", "01/02/2006 15:04"} {
		if t, err := time.ParseInLocation(layout, date+" "+clock, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CopyrightBlockSize is the size, in bytes, of the leading MESSAGES.DAT
// block that every real packet reserves for a copyright notice and
// that the reader must skip before scanning for message headers.
const CopyrightBlockSize = binrec.MessageRecordSize
