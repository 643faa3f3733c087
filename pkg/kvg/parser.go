package kvg

import (
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/adammathes/kvgverify/pkg/markup"
)

// Tag names of the dialect.
const (
	tagSVG   = "svg"
	tagGroup = "g"
	tagPath  = "path"
	tagText  = "text"
)

// Attribute local names. Prefixed attributes (kvg:element etc.) are matched
// by local name only.
const (
	attrID          = "id"
	attrWidth       = "width"
	attrHeight      = "height"
	attrViewBox     = "viewBox"
	attrStyle       = "style"
	attrTransform   = "transform"
	attrPathData    = "d"
	attrType        = "type"
	attrElement     = "element"
	attrOriginal    = "original"
	attrPosition    = "position"
	attrVariant     = "variant"
	attrPartial     = "partial"
	attrPart        = "part"
	attrNumber      = "number"
	attrRadical     = "radical"
	attrPhon        = "phon"
	attrTradForm    = "tradForm"
	attrRadicalForm = "radicalForm"
)

// rootAttrs is the allow-list for the root tag.
var rootAttrs = []string{"xmlns", "xmlns:kvg", attrWidth, attrHeight, attrViewBox}

var (
	listSeparator = regexp.MustCompile(`[,\s]+`)
	matrixCall    = regexp.MustCompile(`^matrix\((.*)\)$`)
	number        = regexp.MustCompile(`^` + numberPattern + `$`)
)

// childParsers dispatches the children of a stroke group by tag name.
var childParsers map[string]func(*parser) (Node, error)

func init() {
	childParsers = map[string]func(*parser) (Node, error){
		tagGroup: func(p *parser) (Node, error) { return p.group() },
		tagPath:  func(p *parser) (Node, error) { return p.stroke() },
	}
}

// Parse reads a document from src. Any failure is returned as a
// *ParseError.
func Parse(src markup.Source) (*Document, error) {
	p := &parser{src: src}
	doc, err := p.document()
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseBytes parses a document from raw markup.
func ParseBytes(data []byte) (*Document, error) {
	return Parse(markup.NewBytesDecoder(data))
}

type parser struct {
	src    markup.Source
	buf    markup.Event
	peeked bool
}

// peek returns the next event without consuming it.
func (p *parser) peek() (markup.Event, error) {
	if p.peeked {
		return p.buf, nil
	}
	ev, err := p.src.Next()
	if err != nil {
		return markup.Event{}, sourceError(err)
	}
	p.buf, p.peeked = ev, true
	return ev, nil
}

func (p *parser) next() (markup.Event, error) {
	ev, err := p.peek()
	if err != nil {
		return ev, err
	}
	p.peeked = false
	return ev, nil
}

func sourceError(err error) error {
	if errors.Is(err, io.EOF) {
		return &ParseError{Kind: ErrUnexpectedEOF, Offset: -1}
	}
	var se *markup.SyntaxError
	if errors.As(err, &se) {
		return &ParseError{Kind: ErrSyntax, Offset: se.Offset, Details: se.Msg}
	}
	return &ParseError{Kind: ErrSyntax, Offset: -1, Details: err.Error()}
}

// skipWhile consumes events for which skip returns true. Reaching the end
// of input is not an error here; the next required read reports it.
func (p *parser) skipWhile(skip func(markup.Event) bool) error {
	for {
		ev, err := p.peek()
		if errors.Is(err, ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if !skip(ev) {
			return nil
		}
		p.peeked = false
	}
}

func (p *parser) skipSpace() error {
	return p.skipWhile(markup.Event.IsSpace)
}

// skipMisc skips what may surround the root element: declarations,
// comments, doctype and whitespace.
func (p *parser) skipMisc() error {
	return p.skipWhile(func(ev markup.Event) bool {
		switch ev.Kind {
		case markup.ProcInst, markup.Comment, markup.Directive:
			return true
		}
		return ev.IsSpace()
	})
}

// expectEOF makes sure nothing but whitespace, comments and declarations
// follow the root element.
func (p *parser) expectEOF() error {
	if err := p.skipMisc(); err != nil {
		return err
	}
	ev, err := p.peek()
	if errors.Is(err, ErrUnexpectedEOF) {
		return nil
	}
	if err != nil {
		return err
	}
	return &ParseError{Kind: ErrUnexpectedEvent, Offset: ev.Start,
		Expected: "end of document", Context: "after root tag", Got: ev.String()}
}

// open reads the opening tag name, skipping whitespace around it.
func (p *parser) open(name, context string) (markup.Event, error) {
	if err := p.skipSpace(); err != nil {
		return markup.Event{}, err
	}
	ev, err := p.next()
	if err != nil {
		return ev, expecting(err, "opening tag <"+name+">")
	}
	if ev.Kind != markup.StartTag {
		return ev, &ParseError{Kind: ErrUnexpectedEvent, Offset: ev.Start,
			Expected: "opening tag <" + name + ">", Context: context, Got: ev.String()}
	}
	if ev.Local != name {
		return ev, &ParseError{Kind: ErrUnexpectedOpenTag, Offset: ev.Start,
			Expected: "<" + name + ">", Context: context, Got: ev.String()}
	}
	return ev, p.skipSpace()
}

// close reads the closing tag name, skipping whitespace before it.
func (p *parser) close(name, context string) error {
	if err := p.skipSpace(); err != nil {
		return err
	}
	ev, err := p.next()
	if err != nil {
		return expecting(err, "closing tag </"+name+">")
	}
	if ev.Kind != markup.EndTag {
		return &ParseError{Kind: ErrUnexpectedEvent, Offset: ev.Start,
			Expected: "closing tag </" + name + ">", Context: context, Got: ev.String()}
	}
	if ev.Local != name {
		return &ParseError{Kind: ErrUnexpectedCloseTag, Offset: ev.Start,
			Expected: "</" + name + ">", Context: context, Got: ev.String()}
	}
	return nil
}

// expecting annotates an end-of-input error with what was being read.
func expecting(err error, what string) error {
	var pe *ParseError
	if errors.As(err, &pe) && pe.Kind == ErrUnexpectedEOF {
		pe.Expected = what
	}
	return err
}

func (p *parser) document() (*Document, error) {
	if err := p.skipMisc(); err != nil {
		return nil, err
	}
	const context = "root tag"
	tag, err := p.open(tagSVG, context)
	if err != nil {
		return nil, err
	}
	if err := allowedAttrs(tag, rootAttrs); err != nil {
		return nil, err
	}

	doc := &Document{}
	if doc.Width, err = requiredInt(tag, attrWidth); err != nil {
		return nil, err
	}
	if doc.Height, err = requiredInt(tag, attrHeight); err != nil {
		return nil, err
	}
	if doc.ViewBox, err = viewBox(tag); err != nil {
		return nil, err
	}
	if doc.StrokePaths, err = p.strokeContainer(); err != nil {
		return nil, err
	}
	if doc.StrokeNumbers, err = p.numberContainer(); err != nil {
		return nil, err
	}
	if err := p.close(tagSVG, context); err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *parser) strokeContainer() (StrokeContainer, error) {
	const context = "stroke paths group"
	var c StrokeContainer
	tag, err := p.open(tagGroup, context)
	if err != nil {
		return c, err
	}
	if c.ID, err = required(tag, attrID); err != nil {
		return c, err
	}
	if c.Style, err = style(tag); err != nil {
		return c, err
	}
	if c.Root, err = p.group(); err != nil {
		return c, err
	}
	return c, p.close(tagGroup, context)
}

func (p *parser) group() (*Group, error) {
	const context = "stroke group"
	tag, err := p.open(tagGroup, context)
	if err != nil {
		return nil, err
	}
	g := &Group{}
	if g.ID, err = required(tag, attrID); err != nil {
		return nil, err
	}
	g.Element = optString(tag, attrElement)
	g.Original = optString(tag, attrOriginal)
	g.Phon = optString(tag, attrPhon)
	g.TradForm = optString(tag, attrTradForm)
	g.RadicalForm = optString(tag, attrRadicalForm)
	if g.Position, err = optEnum(tag, attrPosition, positions); err != nil {
		return nil, err
	}
	if g.Radical, err = optEnum(tag, attrRadical, radicals); err != nil {
		return nil, err
	}
	if g.Variant, err = optBool(tag, attrVariant); err != nil {
		return nil, err
	}
	if g.Partial, err = optBool(tag, attrPartial); err != nil {
		return nil, err
	}
	if g.Part, err = optInt(tag, attrPart); err != nil {
		return nil, err
	}
	if g.Number, err = optInt(tag, attrNumber); err != nil {
		return nil, err
	}

	for {
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		ev, err := p.peek()
		if err != nil {
			return nil, expecting(err, "closing tag </g>")
		}
		if ev.Kind == markup.EndTag {
			break
		}
		if ev.Kind != markup.StartTag {
			return nil, &ParseError{Kind: ErrUnexpectedEvent, Offset: ev.Start,
				Expected: "closing parent tag or opening child tag", Context: context, Got: ev.String()}
		}
		parse, ok := childParsers[ev.Local]
		if !ok {
			return nil, &ParseError{Kind: ErrUnexpectedOpenTag, Offset: ev.Start,
				Expected: "<g> or <path>", Context: "child of " + context, Got: ev.String()}
		}
		child, err := parse(p)
		if err != nil {
			return nil, err
		}
		g.Children = append(g.Children, child)
	}
	return g, p.close(tagGroup, context)
}

func (p *parser) stroke() (*Stroke, error) {
	const context = "stroke"
	tag, err := p.open(tagPath, context)
	if err != nil {
		return nil, err
	}
	s := &Stroke{}
	if s.ID, err = required(tag, attrID); err != nil {
		return nil, err
	}
	if s.Path, err = required(tag, attrPathData); err != nil {
		return nil, err
	}
	s.Type = optString(tag, attrType)
	return s, p.close(tagPath, context)
}

func (p *parser) numberContainer() (NumberContainer, error) {
	const context = "stroke numbers group"
	var c NumberContainer
	tag, err := p.open(tagGroup, context)
	if err != nil {
		return c, err
	}
	if c.ID, err = required(tag, attrID); err != nil {
		return c, err
	}
	if c.Style, err = style(tag); err != nil {
		return c, err
	}

	for {
		if err := p.skipSpace(); err != nil {
			return c, err
		}
		ev, err := p.peek()
		if err != nil {
			return c, expecting(err, "closing tag </g>")
		}
		if ev.Kind == markup.EndTag {
			break
		}
		if ev.Kind != markup.StartTag {
			return c, &ParseError{Kind: ErrUnexpectedEvent, Offset: ev.Start,
				Expected: "closing parent tag or opening child tag", Context: context, Got: ev.String()}
		}
		if ev.Local != tagText {
			return c, &ParseError{Kind: ErrUnexpectedOpenTag, Offset: ev.Start,
				Expected: "<text>", Context: "child of " + context, Got: ev.String()}
		}
		label, err := p.label()
		if err != nil {
			return c, err
		}
		c.Labels = append(c.Labels, label)
	}
	if len(c.Labels) == 0 {
		return c, &ParseError{Kind: ErrEmptyChildren, Offset: tag.Start,
			Tag: tag.String(), Expected: "<text>"}
	}
	return c, p.close(tagGroup, context)
}

func (p *parser) label() (Label, error) {
	const context = "stroke number"
	var l Label
	tag, err := p.next()
	if err != nil {
		return l, err
	}
	if l.Transform, err = transform(tag); err != nil {
		return l, err
	}

	// No whitespace skipping: the payload is the character data itself.
	ev, err := p.next()
	if err != nil {
		return l, expecting(err, "characters inside <text>")
	}
	if ev.Kind != markup.CharData || ev.IsSpace() {
		return l, &ParseError{Kind: ErrMissingCharacters, Offset: ev.Start,
			Tag: tag.String(), Got: ev.String()}
	}
	if l.Value, err = strconv.Atoi(strings.TrimSpace(ev.Text)); err != nil {
		return l, &ParseError{Kind: ErrInvalidCharacters, Offset: ev.Start,
			Tag: tag.String(), Value: ev.Text, Expected: "an integer"}
	}
	return l, p.close(tagText, context)
}

// Attribute access and conversion.

func lookup(tag markup.Event, name string) (string, bool) {
	return tag.Attr(name)
}

func required(tag markup.Event, name string) (string, error) {
	v, ok := lookup(tag, name)
	if !ok {
		return "", &ParseError{Kind: ErrMissingAttribute, Offset: tag.Start, Tag: tag.String(), Attr: name}
	}
	return v, nil
}

func invalid(tag markup.Event, name, value, expected, details string) *ParseError {
	return &ParseError{Kind: ErrInvalidAttribute, Offset: tag.Start, Tag: tag.String(),
		Attr: name, Value: value, Expected: expected, Details: details}
}

func requiredInt(tag markup.Event, name string) (int, error) {
	v, err := required(tag, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalid(tag, name, v, "integer", "")
	}
	return n, nil
}

func optString(tag markup.Event, name string) *string {
	v, ok := lookup(tag, name)
	if !ok {
		return nil
	}
	return &v
}

func optInt(tag markup.Event, name string) (*int, error) {
	v, ok := lookup(tag, name)
	if !ok {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, invalid(tag, name, v, "integer", "")
	}
	return &n, nil
}

func optBool(tag markup.Event, name string) (*bool, error) {
	v, ok := lookup(tag, name)
	if !ok {
		return nil, nil
	}
	var b bool
	switch strings.ToLower(v) {
	case "true":
		b = true
	case "false":
		b = false
	default:
		return nil, invalid(tag, name, v, "boolean", "")
	}
	return &b, nil
}

func optEnum[E ~string](tag markup.Event, name string, values []E) (*E, error) {
	v, ok := lookup(tag, name)
	if !ok {
		return nil, nil
	}
	for _, e := range values {
		if string(e) == v {
			return &e, nil
		}
	}
	names := make([]string, len(values))
	for i, e := range values {
		names[i] = string(e)
	}
	return nil, invalid(tag, name, v, "one of ["+strings.Join(names, ", ")+"]", "")
}

// allowedAttrs rejects attributes outside allowed, compared by name as
// written. Allowed attributes are not required to be present.
func allowedAttrs(tag markup.Event, allowed []string) error {
	var prohibited []string
	for _, a := range tag.Attrs {
		ok := false
		for _, name := range allowed {
			if a.QName() == name {
				ok = true
				break
			}
		}
		if !ok {
			prohibited = append(prohibited, a.QName())
		}
	}
	if len(prohibited) > 0 {
		return &ParseError{Kind: ErrProhibitedAttributes, Offset: tag.Start, Tag: tag.String(),
			Names: prohibited, Allowed: allowed}
	}
	return nil
}

func viewBox(tag markup.Event) (ViewBox, error) {
	v, err := required(tag, attrViewBox)
	if err != nil {
		return ViewBox{}, err
	}
	const expected = "4 integers separated by commas and/or whitespace"
	parts := listSeparator.Split(strings.TrimSpace(v), -1)
	if len(parts) != 4 {
		return ViewBox{}, invalid(tag, attrViewBox, v, expected, "")
	}
	var n [4]int
	for i, part := range parts {
		if n[i], err = strconv.Atoi(part); err != nil {
			return ViewBox{}, invalid(tag, attrViewBox, v, expected, "'"+part+"' is not an integer")
		}
	}
	if n[2] < 0 {
		return ViewBox{}, invalid(tag, attrViewBox, v, expected, "width (3rd element) cannot be less than 0")
	}
	if n[3] < 0 {
		return ViewBox{}, invalid(tag, attrViewBox, v, expected, "height (4th element) cannot be less than 0")
	}
	return ViewBox{X: n[0], Y: n[1], Width: n[2], Height: n[3]}, nil
}

func style(tag markup.Event) (Style, error) {
	v, err := required(tag, attrStyle)
	if err != nil {
		return nil, err
	}
	s := Style{}
	for _, part := range strings.Split(v, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, ":")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" || strings.ContainsAny(key, " \t\r\n") {
			return nil, invalid(tag, attrStyle, v, "'key:value' pairs separated by ';'",
				"the '"+part+"' part must have a format of 'key:value'")
		}
		s[key] = value
	}
	return s, nil
}

func transform(tag markup.Event) (Matrix, error) {
	var m Matrix
	v, err := required(tag, attrTransform)
	if err != nil {
		return m, err
	}
	const expected = "matrix(a,b,c,d,e,f)"
	call := matrixCall.FindStringSubmatch(strings.TrimSpace(v))
	if call == nil {
		return m, invalid(tag, attrTransform, v, expected, "")
	}
	parts := listSeparator.Split(strings.TrimSpace(call[1]), -1)
	if len(parts) != 6 {
		return m, invalid(tag, attrTransform, v, expected, "expected exactly 6 elements inside 'matrix(...)'")
	}
	for i, part := range parts {
		if !number.MatchString(part) {
			return m, invalid(tag, attrTransform, v, expected, "expected only numeric values inside 'matrix(...)'")
		}
		if m[i], err = strconv.ParseFloat(part, 64); err != nil {
			return m, invalid(tag, attrTransform, v, expected, err.Error())
		}
	}
	return m, nil
}
