// Package packet implements the read-side facade: it drives the
// archive, control, and qwkmsg packages against one container and returns a single immutable value describing everything
// that container held, plus a validation report describing everything
// that went wrong along the way.
package packet

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/stlalpha/oqwk/archive"
	"github.com/stlalpha/oqwk/control"
	"github.com/stlalpha/oqwk/cp437"
	"github.com/stlalpha/oqwk/internal/logging"
	"github.com/stlalpha/oqwk/qwkmsg"
	"github.com/stlalpha/oqwk/validate"
)

// ErrMissingControlFile is returned (wrapped) by Open in Strict mode
// when the archive has no CONTROL.DAT.
var ErrMissingControlFile = errors.New("packet: archive has no CONTROL.DAT")

// ConferenceInfo is the conference list surfaced on a Packet, identical
// in shape to control.ConferenceInfo since it is derived straight from
// the parsed CONTROL.DAT record.
type ConferenceInfo = control.ConferenceInfo

// Options configures how a packet is opened.
type Options struct {
	Mode validate.Mode

	// MaxEntrySizeMB bounds the archive's per-entry decompressed size.
	// Zero defers to MessageSizeMB, then to archive.DefaultMaxEntrySizeMB.
	MaxEntrySizeMB int

	// MessageSizeMB, when MaxEntrySizeMB is unset, derives the archive
	// limit via archive.MaxEntrySizeForMessageMB.
	MessageSizeMB int
}

func (o Options) resolveEntryLimitMB() int {
	if o.MaxEntrySizeMB > 0 {
		return o.MaxEntrySizeMB
	}
	if o.MessageSizeMB > 0 {
		return archive.MaxEntrySizeForMessageMB(o.MessageSizeMB)
	}
	return archive.DefaultMaxEntrySizeMB
}

// Packet is the fully parsed, immutable (apart from its optional-file
// cache) view of one QWK/REP container.
type Packet struct {
	Control     *control.Record
	Messages    []qwkmsg.Message
	Conferences []ConferenceInfo
	DoorID      *qwkmsg.DoorID
	Report      validate.Report

	ar archive.Reader

	cacheMu sync.Mutex
	cache   map[string]*cachedFile
}

// cachedFile holds a read-through result: Content is nil exactly when
// the file was looked up and found absent, distinguishing "not yet
// looked up" (no map entry) from "looked up, does not exist" (entry
// present, Content nil).
type cachedFile struct {
	Content *string
	Hash    uint64 // xxhash64 of the raw bytes, valid only when Content != nil
}

// Open reads path from disk and opens it as a Packet. path's format is
// recognised by magic bytes against the archive registry, not by
// extension — QWK and REP packets are both plain ZIP containers.
func Open(path string, opts Options) (*Packet, error) {
	ar, err := archive.Open(path, opts.resolveEntryLimitMB())
	if err != nil {
		return nil, fmt.Errorf("packet: %w", err)
	}
	p, err := OpenReader(ar, opts)
	if err != nil {
		ar.Close()
		return nil, err
	}
	return p, nil
}

// OpenReader drives the read orchestration against an already-open
// archive.Reader, taking ownership of it on success: Close on the
// returned Packet releases it. On an error return OpenReader leaves ar
// open and the caller still owns it.
func OpenReader(ar archive.Reader, opts Options) (*Packet, error) {
	vc := validate.New(opts.Mode)

	p := &Packet{ar: ar, cache: map[string]*cachedFile{}}

	if err := p.loadControl(vc); err != nil {
		return nil, err
	}
	p.Conferences = p.Control.Conferences
	logging.Info("loaded %d conference definitions from CONTROL.DAT", len(p.Conferences))

	if err := p.loadDoorID(vc); err != nil {
		return nil, err
	}

	if err := p.loadMessages(vc); err != nil {
		return nil, err
	}
	logging.Info("read %d messages from MESSAGES.DAT", len(p.Messages))

	p.Report = vc.Report()
	if opts.Mode == validate.Strict {
		if issue := vc.FirstError(); issue != nil {
			return nil, fmt.Errorf("packet: %s", issue)
		}
	}

	return p, nil
}

func minimalControlRecord() *control.Record {
	return &control.Record{
		BBSName: "Unknown BBS",
		Created: time.Unix(0, 0).UTC(),
	}
}

// loadControl implements step 2 of the read orchestration: require
// CONTROL.DAT, substituting a minimal record outside Strict mode when
// it is missing or unparseable.
func (p *Packet) loadControl(vc *validate.Context) error {
	const name = "CONTROL.DAT"
	loc := validate.Location{File: name}

	exists, err := p.ar.FileExists(name)
	if err != nil {
		return fmt.Errorf("packet: check %s: %w", name, err)
	}
	if !exists {
		vc.Errorf(loc, "%s is missing from the archive", name)
		if vc.Mode == validate.Strict {
			return fmt.Errorf("%w", ErrMissingControlFile)
		}
		p.Control = minimalControlRecord()
		return nil
	}

	rc, err := p.ar.Open(name)
	if err != nil {
		return fmt.Errorf("packet: open %s: %w", name, err)
	}
	defer rc.Close()

	rec, err := control.Parse(rc, vc)
	if err != nil {
		if vc.Mode != validate.Strict {
			p.Control = minimalControlRecord()
			return nil
		}
		return fmt.Errorf("packet: parse %s: %w", name, err)
	}
	p.Control = rec
	return nil
}

// loadDoorID implements step 3: DOOR.ID is always optional, in every mode.
func (p *Packet) loadDoorID(vc *validate.Context) error {
	const name = "DOOR.ID"
	exists, err := p.ar.FileExists(name)
	if err != nil {
		return fmt.Errorf("packet: check %s: %w", name, err)
	}
	if !exists {
		return nil
	}

	rc, err := p.ar.Open(name)
	if err != nil {
		vc.Warnf(validate.Location{File: name}, "failed to open: %v", err)
		return nil
	}
	defer rc.Close()

	doorID, err := qwkmsg.ParseDoorID(rc)
	if err != nil {
		vc.Warnf(validate.Location{File: name}, "failed to parse: %v", err)
		return nil
	}
	p.DoorID = doorID
	return nil
}

// loadMessages implements step 4: skip the copyright block, then walk
// MESSAGES.DAT one 128-byte block at a time, resynchronising on the
// discriminator whenever a block fails to look like a header.
func (p *Packet) loadMessages(vc *validate.Context) error {
	const name = "MESSAGES.DAT"
	loc := validate.Location{File: name}

	exists, err := p.ar.FileExists(name)
	if err != nil {
		return fmt.Errorf("packet: check %s: %w", name, err)
	}
	if !exists {
		return nil
	}

	rc, err := p.ar.Open(name)
	if err != nil {
		return fmt.Errorf("packet: open %s: %w", name, err)
	}
	defer rc.Close()

	copyrightBlock := make([]byte, qwkmsg.CopyrightBlockSize)
	if _, err := io.ReadFull(rc, copyrightBlock); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			vc.Warnf(loc, "file is shorter than the leading copyright block, no messages read")
			return nil
		}
		return fmt.Errorf("packet: read %s copyright block: %w", name, err)
	}

	offset := int64(qwkmsg.CopyrightBlockSize)
	nextNumber := 1
	block := make([]byte, qwkmsg.CopyrightBlockSize)

	for {
		n, err := io.ReadFull(rc, block)
		if err == io.EOF {
			break
		}
		if err != nil && n < len(block) {
			vc.Warnf(validate.Location{File: name, Offset: offset}, "short read (%d of %d bytes), stopping", n, len(block))
			break
		}

		if !qwkmsg.IsDiscriminatorCandidate(block) {
			vc.Warnf(validate.Location{File: name, Offset: offset}, "block rejected by header discriminator, resynchronising")
			logging.Debug("skipped corrupt block at offset %d in %s", offset, name)
			offset += int64(len(block))
			continue
		}

		msg, err := qwkmsg.ReadMessage(block, rc, nextNumber, vc)
		if err != nil {
			vc.Warnf(validate.Location{File: name, Offset: offset}, "failed to read message: %v", err)
			offset += int64(len(block))
			continue
		}

		p.Messages = append(p.Messages, msg)
		bodyBlocks := msg.Header.BlockCount - 1
		if bodyBlocks < 0 {
			bodyBlocks = 0
		}
		offset += int64(len(block)) + int64(bodyBlocks)*int64(len(block))
		nextNumber++
	}

	return nil
}

// OptionalFile reads an arbitrary member of the archive (welcome/news
// files, TOREADER.EXT, etc.) with read-through caching: the first
// lookup for a name hits the archive and caches the CP437-decoded
// result (or its absence); every subsequent lookup for the same name
// is served from the cache under the same lock. ok is false when the
// file does not exist in the archive.
func (p *Packet) OptionalFile(name string) (content string, ok bool, err error) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()

	key := strings.ToLower(name)
	if cached, hit := p.cache[key]; hit {
		if cached.Content == nil {
			return "", false, nil
		}
		return *cached.Content, true, nil
	}

	exists, err := p.ar.FileExists(name)
	if err != nil {
		return "", false, fmt.Errorf("packet: check %s: %w", name, err)
	}
	if !exists {
		p.cache[key] = &cachedFile{}
		return "", false, nil
	}

	rc, err := p.ar.Open(name)
	if err != nil {
		return "", false, fmt.Errorf("packet: open %s: %w", name, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", false, fmt.Errorf("packet: read %s: %w", name, err)
	}

	decoded := decodeOptionalFile(raw)
	hash := xxhash.Sum64(raw)
	logging.Debug("optional file %s: %d bytes, xxh64=%x", name, len(raw), hash)
	p.cache[key] = &cachedFile{Content: &decoded, Hash: hash}
	return decoded, true, nil
}

// OptionalFileHash returns the xxhash64 of an optional file's raw
// bytes, going through the same read-through cache as OptionalFile —
// calling both for the same name only touches the archive once. Useful
// for callers that want to detect whether a file changed across two
// packets without comparing full contents.
func (p *Packet) OptionalFileHash(name string) (hash uint64, ok bool, err error) {
	if _, found, err := p.OptionalFile(name); err != nil || !found {
		return 0, false, err
	}
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	cached := p.cache[strings.ToLower(name)]
	return cached.Hash, true, nil
}

// Close releases the underlying archive. A Packet must not be used
// afterward.
func (p *Packet) Close() error {
	return p.ar.Close()
}

// decodeOptionalFile best-effort CP437-decodes an arbitrary text
// member (welcome/news/goodbye files and similar). Unlike CONTROL.DAT
// and MESSAGES.DAT, these have no documented encoding-failure policy,
// so the codec never fails the packet open over one.
func decodeOptionalFile(raw []byte) string {
	decoded, err := cp437.Decode(raw, cp437.DecodeBestEffort)
	if err != nil {
		return string(raw)
	}
	return decoded
}
