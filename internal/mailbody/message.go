// Package mailbody parses RFC 5322 / MIME messages and resolves them to one
// canonical plain-text body suitable for task extraction.
package mailbody

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"
)

var (
	// ErrInvalidEmail is returned when the raw bytes cannot be parsed as a message.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrNoContent is returned when a message carries no decodable text body.
	ErrNoContent = errors.New("email has no text content")
)

// maxDepth bounds multipart nesting.
const maxDepth = 16

// Part is one node of the MIME tree. Leaves hold transfer-decoded bytes in
// Body; multipart containers hold their children in Parts.
type Part struct {
	MediaType   string // lowercased, e.g. "text/plain"
	Charset     string
	Disposition string // "inline", "attachment" or empty
	Body        []byte
	Parts       []*Part
}

// IsMultipart reports whether p is a container.
func (p *Part) IsMultipart() bool {
	return strings.HasPrefix(p.MediaType, "multipart/")
}

// Walk visits p and every descendant depth first.
func (p *Part) Walk(fn func(*Part)) {
	fn(p)
	for _, c := range p.Parts {
		c.Walk(fn)
	}
}

// Message is a parsed email with decoded envelope headers.
type Message struct {
	MessageID string
	From      string
	To        string
	Subject   string
	Date      time.Time // zero when absent or unparseable
	Root      *Part
}

// Parse reads raw message bytes into a Message.
func Parse(raw []byte) (*Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidEmail)
	}
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}
	if len(m.Header) == 0 {
		return nil, fmt.Errorf("%w: no headers", ErrInvalidEmail)
	}

	body, err := io.ReadAll(m.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrInvalidEmail, err)
	}

	root, err := parsePart(textproto.MIMEHeader(m.Header), body, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}

	msg := &Message{
		MessageID: strings.Trim(strings.TrimSpace(m.Header.Get("Message-Id")), "<>"),
		From:      decodeHeader(m.Header.Get("From")),
		To:        decodeHeader(m.Header.Get("To")),
		Subject:   decodeHeader(m.Header.Get("Subject")),
		Root:      root,
	}
	if d, err := m.Header.Date(); err == nil {
		msg.Date = d
	}
	return msg, nil
}

func parsePart(h textproto.MIMEHeader, body []byte, depth int) (*Part, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("multipart nesting deeper than %d", maxDepth)
	}

	mediaType, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		// RFC 2045 default for missing or broken Content-Type.
		mediaType, params = "text/plain", map[string]string{}
	}
	p := &Part{
		MediaType: strings.ToLower(mediaType),
		Charset:   params["charset"],
	}
	if disp, _, err := mime.ParseMediaType(h.Get("Content-Disposition")); err == nil {
		p.Disposition = strings.ToLower(disp)
	}

	if !p.IsMultipart() {
		p.Body = decodeTransfer(h.Get("Content-Transfer-Encoding"), body)
		return p, nil
	}

	boundary := params["boundary"]
	if boundary == "" {
		return nil, fmt.Errorf("%s without boundary", p.MediaType)
	}
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		raw, err := mr.NextRawPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Truncated trailing parts still leave the earlier ones usable.
			if len(p.Parts) > 0 {
				break
			}
			return nil, fmt.Errorf("read multipart: %w", err)
		}
		childBody, err := io.ReadAll(raw)
		if err != nil && len(childBody) == 0 {
			return nil, fmt.Errorf("read part: %w", err)
		}
		child, err := parsePart(raw.Header, childBody, depth+1)
		if err != nil {
			return nil, err
		}
		p.Parts = append(p.Parts, child)
	}
	return p, nil
}

// decodeTransfer undoes Content-Transfer-Encoding. Undecodable payloads are
// returned as-is.
func decodeTransfer(encoding string, body []byte) []byte {
	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, bytes.NewReader(bytes.TrimSpace(body)))
	case "quoted-printable":
		r = quotedprintable.NewReader(bytes.NewReader(body))
	default:
		return body
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return out
}

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

func decodeHeader(v string) string {
	out, err := wordDecoder.DecodeHeader(v)
	if err != nil {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(out)
}
