package packet

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/stlalpha/oqwk/archive"
	"github.com/stlalpha/oqwk/control"
	"github.com/stlalpha/oqwk/ndx"
	"github.com/stlalpha/oqwk/qwkmsg"
)

// ErrInvalidUsage is returned (wrapped) for builder misuse: an
// AddMessage call after Save, or a second Save call on the same Writer.
var ErrInvalidUsage = errors.New("packet: invalid writer usage")

// OutgoingMessage is one message queued on a Writer, in the shape a
// caller building a reply packet actually has on hand: plain fields
// plus body lines, rather than a parsed Header.
type OutgoingMessage struct {
	Conference uint16
	To         string
	From       string
	Subject    string
	Date       string // 8-char field, written as-is
	Time       string // 5-char field, written as-is
	Password   string
	Reference  string
	Status     byte // 0x20 (space) if unset
	Alive      byte // qwkmsg.AliveLive if unset
	Lines      []string
}

// RepBuildResult summarises a completed Save call, the same
// at-a-glance shape internal/tosser.TossResult gives its callers:
// counts instead of a bare error, so a host application can log or
// report on a REP build without re-deriving them from the archive.
type RepBuildResult struct {
	MessagesWritten int
	BytesWritten    int64
	IndexFiles      []string // e.g. "1.NDX", "2.NDX", ascending conference order
}

// Writer builds a REP packet's MESSAGES.DAT and per-conference .NDX
// files from a control record and a sequence of messages, then hands
// the result to an archive.Writer. It is a builder: AddMessage calls
// must not be interleaved with Save from another goroutine, matching
// the single-threaded-for-its-lifetime contract the rest of this
// codec's concurrency model requires of it.
type Writer struct {
	control  *control.Record
	messages []OutgoingMessage
	saved    bool
}

// NewWriter starts a REP build from rec, which is copied so later
// mutation of the caller's record cannot affect the packet being
// written.
func NewWriter(rec *control.Record) *Writer {
	cp := *rec
	cp.Conferences = append([]control.ConferenceInfo(nil), rec.Conferences...)
	cp.RawLines = append([]string(nil), rec.RawLines...)
	return &Writer{control: &cp}
}

// AddMessage queues msg for inclusion. Returns an error if Save has
// already been called.
func (w *Writer) AddMessage(msg OutgoingMessage) error {
	if w.saved {
		return fmt.Errorf("packet: AddMessage after Save: %w", ErrInvalidUsage)
	}
	w.messages = append(w.messages, msg)
	return nil
}

// Save builds MESSAGES.DAT and one .NDX per conference with messages,
// writes CONTROL.DAT back out from the copied record's raw lines, and
// finalises aw. No further AddMessage calls are permitted after Save
// returns, successfully or not.
func (w *Writer) Save(aw archive.Writer) (RepBuildResult, error) {
	if w.saved {
		return RepBuildResult{}, fmt.Errorf("packet: Save called twice: %w", ErrInvalidUsage)
	}
	w.saved = true

	messagesDat, perConference, err := w.buildMessagesDat()
	if err != nil {
		return RepBuildResult{}, err
	}

	if err := aw.AddFile("MESSAGES.DAT", bytes.NewReader(messagesDat)); err != nil {
		return RepBuildResult{}, fmt.Errorf("packet: add MESSAGES.DAT: %w", err)
	}
	result := RepBuildResult{
		MessagesWritten: len(w.messages),
		BytesWritten:    int64(len(messagesDat)),
	}

	confNumbers := make([]uint16, 0, len(perConference))
	for conf := range perConference {
		confNumbers = append(confNumbers, conf)
	}
	sort.Slice(confNumbers, func(i, j int) bool { return confNumbers[i] < confNumbers[j] })

	for _, conf := range confNumbers {
		var idxBuf bytes.Buffer
		if err := ndx.Encode(&idxBuf, perConference[conf]); err != nil {
			return RepBuildResult{}, fmt.Errorf("packet: encode %d.NDX: %w", conf, err)
		}
		name := fmt.Sprintf("%d.NDX", conf)
		if err := aw.AddFile(name, bytes.NewReader(idxBuf.Bytes())); err != nil {
			return RepBuildResult{}, fmt.Errorf("packet: add %s: %w", name, err)
		}
		result.BytesWritten += int64(idxBuf.Len())
		result.IndexFiles = append(result.IndexFiles, name)
	}

	var controlBuf bytes.Buffer
	if err := control.WriteRawLines(&controlBuf, w.control); err != nil {
		return RepBuildResult{}, fmt.Errorf("packet: write CONTROL.DAT: %w", err)
	}
	if err := aw.AddFile("CONTROL.DAT", bytes.NewReader(controlBuf.Bytes())); err != nil {
		return RepBuildResult{}, fmt.Errorf("packet: add CONTROL.DAT: %w", err)
	}
	result.BytesWritten += int64(controlBuf.Len())

	return result, nil
}

// WriteREP is a one-shot convenience wrapper around Writer for callers
// who already have a complete message list in hand and don't need the
// incremental AddMessage builder.
func WriteREP(rec *control.Record, messages []OutgoingMessage, aw archive.Writer) (RepBuildResult, error) {
	w := NewWriter(rec)
	for i, msg := range messages {
		if err := w.AddMessage(msg); err != nil {
			return RepBuildResult{}, fmt.Errorf("packet: queue message %d: %w", i+1, err)
		}
	}
	return w.Save(aw)
}

// buildMessagesDat assembles the copyright block, each message's
// header and body blocks, and the per-conference index entries that
// point at them. Block-count fields equal 1 + body_block_count.
func (w *Writer) buildMessagesDat() ([]byte, map[uint16]*ndx.File, error) {
	buf := make([]byte, qwkmsg.CopyrightBlockSize)
	perConference := map[uint16]*ndx.File{}
	perConferenceCounter := map[uint16]int{}

	for i, msg := range w.messages {
		bodyData, bodyBlocks, err := qwkmsg.EncodeBody(msg.Lines)
		if err != nil {
			return nil, nil, fmt.Errorf("packet: encode message %d body: %w", i+1, err)
		}

		status := msg.Status
		if status == 0 {
			status = ' '
		}
		alive := msg.Alive
		if alive == 0 {
			alive = qwkmsg.AliveLive
		}

		header, err := qwkmsg.EncodeHeader(qwkmsg.WriteParams{
			Status:        status,
			MessageNumber: i + 1,
			Date:          msg.Date,
			Time:          msg.Time,
			To:            msg.To,
			From:          msg.From,
			Subject:       msg.Subject,
			Password:      msg.Password,
			Reference:     msg.Reference,
			BlockCount:    1 + bodyBlocks,
			Alive:         alive,
			Conference:    msg.Conference,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("packet: encode message %d header: %w", i+1, err)
		}

		recordOffset := int64(len(buf)) / qwkmsg.CopyrightBlockSize
		buf = append(buf, header[:]...)
		buf = append(buf, bodyData...)

		f := perConference[msg.Conference]
		if f == nil {
			f = &ndx.File{ConferenceNumber: msg.Conference, Valid: true}
			perConference[msg.Conference] = f
		}
		perConferenceCounter[msg.Conference]++
		f.Entries = append(f.Entries, ndx.BuildEntry(perConferenceCounter[msg.Conference], recordOffset))
	}

	return buf, perConference, nil
}

// SaveToFile finalises the build as a ZIP and writes it to path
// atomically: the archive is first written to a sibling temp file
// carrying a random uuid suffix so two concurrent writers targeting
// the same path can never observe a half-written file, then renamed
// into place.
func (w *Writer) SaveToFile(path string) (result RepBuildResult, retErr error) {
	tmpPath := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))

	f, err := os.Create(tmpPath)
	if err != nil {
		return RepBuildResult{}, fmt.Errorf("packet: create temp file: %w", err)
	}
	defer func() {
		f.Close()
		if retErr != nil {
			os.Remove(tmpPath)
		}
	}()

	aw := archive.NewZIPWriter()
	result, err = w.Save(aw)
	if err != nil {
		return RepBuildResult{}, err
	}
	if err := aw.Save(f); err != nil {
		return RepBuildResult{}, fmt.Errorf("packet: finalise archive: %w", err)
	}
	if err := f.Sync(); err != nil {
		return RepBuildResult{}, fmt.Errorf("packet: sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return RepBuildResult{}, fmt.Errorf("packet: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return RepBuildResult{}, fmt.Errorf("packet: rename into place: %w", err)
	}
	return result, nil
}
