package kvg

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a parse failure.
type ErrorKind int

const (
	// ErrUnexpectedEOF: the input ended before the document was complete.
	ErrUnexpectedEOF ErrorKind = iota + 1
	// ErrSyntax: the event source could not tokenize the input.
	ErrSyntax
	// ErrUnexpectedEvent: a tag open, tag close or characters was required
	// and something else was found.
	ErrUnexpectedEvent
	// ErrUnexpectedOpenTag: an opening tag had the wrong name.
	ErrUnexpectedOpenTag
	// ErrUnexpectedCloseTag: a closing tag did not match its opening tag.
	ErrUnexpectedCloseTag
	// ErrMissingAttribute: a required attribute is absent.
	ErrMissingAttribute
	// ErrInvalidAttribute: an attribute is present but cannot be converted.
	ErrInvalidAttribute
	// ErrProhibitedAttributes: a tag carries attributes outside its allowed set.
	ErrProhibitedAttributes
	// ErrEmptyChildren: a tag requiring at least one child has none.
	ErrEmptyChildren
	// ErrMissingCharacters: character data was required but missing or blank.
	ErrMissingCharacters
	// ErrInvalidCharacters: character data is present but malformed.
	ErrInvalidCharacters
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnexpectedEOF:
		return "unexpected end of document"
	case ErrSyntax:
		return "syntax error"
	case ErrUnexpectedEvent:
		return "unexpected event"
	case ErrUnexpectedOpenTag:
		return "unexpected opening tag"
	case ErrUnexpectedCloseTag:
		return "unexpected closing tag"
	case ErrMissingAttribute:
		return "missing required attribute"
	case ErrInvalidAttribute:
		return "invalid attribute format"
	case ErrProhibitedAttributes:
		return "prohibited attributes"
	case ErrEmptyChildren:
		return "empty children list"
	case ErrMissingCharacters:
		return "missing characters"
	case ErrInvalidCharacters:
		return "invalid characters format"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error makes ErrorKind usable as an errors.Is target:
// errors.Is(err, kvg.ErrMissingAttribute).
func (k ErrorKind) Error() string {
	return k.String()
}

// ParseError is a structured parse failure. Which payload fields are set
// depends on Kind.
type ParseError struct {
	Kind   ErrorKind
	Offset int64 // byte offset of the offending event, -1 if unknown

	Context  string   // what was being parsed, e.g. "stroke group"
	Tag      string   // the tag being parsed, as written
	Expected string   // expected tag, event kind or target type
	Got      string   // what was found instead
	Attr     string   // attribute name
	Value    string   // raw attribute value or character data
	Names    []string // prohibited attribute names
	Allowed  []string // allowed attribute names
	Details  string
}

func (e *ParseError) Error() string {
	var msg string
	switch e.Kind {
	case ErrUnexpectedEOF:
		msg = "unexpected end of document"
		if e.Expected != "" {
			msg += ", expected " + e.Expected
		}
	case ErrSyntax:
		msg = "malformed markup: " + e.Details
	case ErrUnexpectedEvent:
		msg = fmt.Sprintf("expected %s (%s), got %s", e.Expected, e.Context, e.Got)
	case ErrUnexpectedOpenTag:
		msg = fmt.Sprintf("expected opening tag %s (%s), got %s", e.Expected, e.Context, e.Got)
	case ErrUnexpectedCloseTag:
		msg = fmt.Sprintf("expected closing tag %s (%s), got %s", e.Expected, e.Context, e.Got)
	case ErrMissingAttribute:
		msg = fmt.Sprintf("missing required attribute [%s] in tag %s", e.Attr, e.Tag)
	case ErrInvalidAttribute:
		msg = fmt.Sprintf("invalid format of attribute [%s=%q] in tag %s: expected %s", e.Attr, e.Value, e.Tag, e.Expected)
		if e.Details != "" {
			msg += ": " + e.Details
		}
	case ErrProhibitedAttributes:
		msg = fmt.Sprintf("prohibited attributes [%s] in tag %s, allowed attributes are [%s]",
			strings.Join(e.Names, ", "), e.Tag, strings.Join(e.Allowed, ", "))
	case ErrEmptyChildren:
		msg = fmt.Sprintf("expected at least one child tag %s in tag %s", e.Expected, e.Tag)
	case ErrMissingCharacters:
		msg = fmt.Sprintf("expected characters inside %s, got %s", e.Tag, e.Got)
	case ErrInvalidCharacters:
		msg = fmt.Sprintf("invalid format of text %q in tag %s: expected %s", e.Value, e.Tag, e.Expected)
	default:
		msg = e.Kind.String()
	}
	if e.Offset >= 0 {
		return fmt.Sprintf("%s (at byte %d)", msg, e.Offset)
	}
	return msg
}

// Is reports whether target is the ErrorKind of e.
func (e *ParseError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}
