// Package markup turns raw markup text into a pull-based stream of lexical
// events (start tags, end tags, character data, and the rest), each carrying
// the exact byte span it occupies in the source.
//
// The decoder runs in a namespace-unaware mode: a prefixed name such as
// kvg:element is reported with Prefix "kvg" and Local "element", and no
// prefix is ever resolved to a namespace URI.
package markup

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind identifies the type of a lexical event.
type Kind int

const (
	StartTag Kind = iota
	EndTag
	CharData
	Comment
	ProcInst
	Directive
)

func (k Kind) String() string {
	switch k {
	case StartTag:
		return "start tag"
	case EndTag:
		return "end tag"
	case CharData:
		return "characters"
	case Comment:
		return "comment"
	case ProcInst:
		return "processing instruction"
	case Directive:
		return "directive"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Attr is a single attribute of a start tag.
type Attr struct {
	Prefix string
	Local  string
	Value  string
}

// QName returns the attribute name as written, e.g. "kvg:element".
func (a Attr) QName() string {
	return qualify(a.Prefix, a.Local)
}

// Event is one unit of tokenizer output. Start and End delimit the bytes
// of the source the event was read from: for a tag that is the opening '<'
// through the closing '>' (or '/>'). The synthesized end event of a
// self-closing tag has an empty span at the end of its start tag.
type Event struct {
	Kind   Kind
	Prefix string // tags only
	Local  string // tags only
	Attrs  []Attr // start tags only
	Text   string // character data, comments, directives, processing instructions
	Start  int64
	End    int64
}

// QName returns the tag name as written, e.g. "svg" or "kvg:g".
func (e Event) QName() string {
	return qualify(e.Prefix, e.Local)
}

// IsSpace reports whether the event is a whitespace-only character run.
func (e Event) IsSpace() bool {
	return e.Kind == CharData && strings.TrimSpace(e.Text) == ""
}

// Attr returns the value of the first attribute whose local name is local,
// regardless of its prefix.
func (e Event) Attr(local string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

func (e Event) String() string {
	switch e.Kind {
	case StartTag:
		var b strings.Builder
		b.WriteString("<")
		b.WriteString(e.QName())
		for _, a := range e.Attrs {
			fmt.Fprintf(&b, " %s=%q", a.QName(), a.Value)
		}
		b.WriteString(">")
		return b.String()
	case EndTag:
		return "</" + e.QName() + ">"
	case CharData:
		if e.IsSpace() {
			return "[whitespace]"
		}
		return "[characters:'" + escapeWS(e.Text) + "']"
	}
	return "[" + e.Kind.String() + "]"
}

// Source is a pull-based sequence of lexical events. Next returns io.EOF
// after the last event.
type Source interface {
	Next() (Event, error)
}

// SyntaxError is returned by a Decoder when the input is not well-formed
// enough to tokenize.
type SyntaxError struct {
	Offset int64
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("markup syntax error at byte %d: %s", e.Offset, e.Msg)
}

// Decoder is a Source backed by encoding/xml in raw-token mode.
type Decoder struct {
	d *xml.Decoder
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{d: xml.NewDecoder(r)}
}

// NewBytesDecoder returns a Decoder reading from data.
func NewBytesDecoder(data []byte) *Decoder {
	return NewDecoder(bytes.NewReader(data))
}

// Next returns the next event.
func (dec *Decoder) Next() (Event, error) {
	start := dec.d.InputOffset()
	tok, err := dec.d.RawToken()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Event{}, io.EOF
		}
		var se *xml.SyntaxError
		if errors.As(err, &se) {
			return Event{}, &SyntaxError{Offset: dec.d.InputOffset(), Msg: se.Msg}
		}
		return Event{}, fmt.Errorf("reading markup: %w", err)
	}
	end := dec.d.InputOffset()

	ev := Event{Start: start, End: end}
	switch t := tok.(type) {
	case xml.StartElement:
		ev.Kind = StartTag
		ev.Prefix, ev.Local = t.Name.Space, t.Name.Local
		ev.Attrs = make([]Attr, 0, len(t.Attr))
		for _, a := range t.Attr {
			ev.Attrs = append(ev.Attrs, Attr{Prefix: a.Name.Space, Local: a.Name.Local, Value: a.Value})
		}
	case xml.EndElement:
		ev.Kind = EndTag
		ev.Prefix, ev.Local = t.Name.Space, t.Name.Local
		if end == start {
			// self-closing tag: RawToken synthesizes the end element
			// without consuming input
			ev.Start = end
		}
	case xml.CharData:
		ev.Kind = CharData
		ev.Text = string(t)
	case xml.Comment:
		ev.Kind = Comment
		ev.Text = string(t)
	case xml.ProcInst:
		ev.Kind = ProcInst
		ev.Prefix = t.Target
		ev.Text = string(t.Inst)
	case xml.Directive:
		ev.Kind = Directive
		ev.Text = string(t)
	default:
		return Event{}, fmt.Errorf("unexpected token type %T", tok)
	}
	return ev, nil
}

func qualify(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

func escapeWS(s string) string {
	return strings.NewReplacer("\n", `\n`, "\r", `\r`, "\t", `\t`).Replace(s)
}
