package stream

import (
	"bytes"
	"strings"
)

const (
	dataPrefix    = "data: "
	doneSentinel  = "[DONE]"
	commentPrefix = ":"
)

// Parser decodes an SSE byte stream into discrete frame payload strings.
//
// Chunks are appended to an internal byte buffer and only complete,
// newline-terminated lines are extracted, so multi-byte UTF-8 sequences split
// across network reads are handled by construction: a '\n' byte can never
// occur inside a multi-byte sequence.
//
// A payload whose JSON turns out to be truncated can be pushed back with
// Unread; the parser then stops yielding until the next Feed supplies more
// bytes, giving the truncated frame a chance to complete.
type Parser struct {
	buf     []byte
	done    bool
	blocked bool
}

func NewParser() *Parser {
	return &Parser{}
}

// Feed appends a raw network chunk to the buffer and unblocks the parser
// after an Unread.
func (p *Parser) Feed(chunk []byte) {
	p.buf = append(p.buf, chunk...)
	p.blocked = false
}

// Next extracts the next actionable frame payload. It returns false when no
// complete line is buffered, when the parser is blocked waiting for more
// bytes after an Unread, or once the [DONE] terminator has been seen.
//
// Comment lines, blank lines and lines without the "data: " prefix are
// skipped silently.
func (p *Parser) Next() (string, bool) {
	if p.done || p.blocked {
		return "", false
	}
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			return "", false
		}
		line := string(p.buf[:i])
		p.buf = p.buf[i+1:]

		line = strings.TrimSuffix(line, "\r")
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimSpace(line[len(dataPrefix):])
		if payload == doneSentinel {
			p.done = true
			return "", false
		}
		return payload, true
	}
}

// Unread pushes a payload back onto the front of the buffer, reconstructing
// its frame line, and blocks the parser until the next Feed. Used when the
// payload failed to parse as JSON: the provider may have split a single JSON
// object across two network packets.
func (p *Parser) Unread(payload string) {
	line := append([]byte(dataPrefix+payload), '\n')
	p.buf = append(line, p.buf...)
	p.blocked = true
}

// Done reports whether the [DONE] terminator has been received.
func (p *Parser) Done() bool { return p.done }

// Drain performs the end-of-stream pass: it applies the same line-extraction
// rules to whatever is still buffered and returns the payloads of any
// trailing, newline-terminated frames. Genuinely unparseable leftovers are
// the caller's to drop.
func (p *Parser) Drain() []string {
	p.blocked = false
	var payloads []string
	for {
		payload, ok := p.Next()
		if !ok {
			return payloads
		}
		payloads = append(payloads, payload)
	}
}
