package mailbody

import (
	"strings"
	"unicode/utf8"
)

// PlainTextMinRatio is the default share of the HTML text length that the
// plain-text alternative must reach to be preferred.
const PlainTextMinRatio = 0.5

// Resolver picks one canonical body from a parsed message.
type Resolver struct {
	// PlainTextMinRatio overrides the package default when > 0.
	PlainTextMinRatio float64
}

// Resolve uses the default ratio.
func Resolve(msg *Message) (string, error) {
	return Resolver{}.Resolve(msg)
}

// ResolveRaw parses raw bytes and resolves the body in one step.
func (r Resolver) ResolveRaw(raw []byte) (*Message, string, error) {
	msg, err := Parse(raw)
	if err != nil {
		return nil, "", err
	}
	text, err := r.Resolve(msg)
	if err != nil {
		return msg, "", err
	}
	return msg, text, nil
}

// Resolve returns the trimmed body text of msg.
//
// Single-part messages are decoded and, when HTML, converted to text. For
// multipart messages the first text/plain and first text/html leaves (skipping
// attachments) compete: plain wins when its length is at least the ratio times
// the converted HTML length. When only one of them exists it is used.
func (r Resolver) Resolve(msg *Message) (string, error) {
	if msg == nil || msg.Root == nil {
		return "", ErrNoContent
	}
	ratio := r.PlainTextMinRatio
	if ratio <= 0 {
		ratio = PlainTextMinRatio
	}

	root := msg.Root
	if !root.IsMultipart() {
		text, ok := leafText(root)
		if !ok {
			return "", ErrNoContent
		}
		return finish(text)
	}

	var plain, htmlText *string
	root.Walk(func(p *Part) {
		if p.IsMultipart() || p.Disposition == "attachment" {
			return
		}
		switch p.MediaType {
		case "text/plain":
			if plain == nil {
				s := DecodeCharset(p.Body, p.Charset)
				plain = &s
			}
		case "text/html":
			if htmlText == nil {
				s := HTMLToText(DecodeCharset(p.Body, p.Charset))
				htmlText = &s
			}
		}
	})

	switch {
	case plain != nil && htmlText != nil:
		if float64(utf8.RuneCountInString(*plain)) >= ratio*float64(utf8.RuneCountInString(*htmlText)) {
			return finish(*plain)
		}
		return finish(*htmlText)
	case plain != nil:
		return finish(*plain)
	case htmlText != nil:
		return finish(*htmlText)
	default:
		return "", ErrNoContent
	}
}

func leafText(p *Part) (string, bool) {
	switch {
	case p.MediaType == "text/html":
		return HTMLToText(DecodeCharset(p.Body, p.Charset)), true
	case strings.HasPrefix(p.MediaType, "text/"):
		return DecodeCharset(p.Body, p.Charset), true
	default:
		return "", false
	}
}

func finish(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}
