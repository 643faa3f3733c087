package markup

import (
	"errors"
	"io"
	"testing"
)

func drain(t *testing.T, src string) []Event {
	t.Helper()
	dec := NewBytesDecoder([]byte(src))
	var events []Event
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		events = append(events, ev)
	}
}

func TestSpansCoverTags(t *testing.T) {
	src := `<?xml version="1.0"?>
<svg width="109"><g id="a">
  <path id="p" d="M1,2"/>
</g></svg>`
	events := drain(t, src)

	for _, ev := range events {
		span := src[ev.Start:ev.End]
		switch ev.Kind {
		case StartTag:
			if span[0] != '<' || span[len(span)-1] != '>' {
				t.Errorf("start tag %s has span %q", ev.QName(), span)
			}
		case CharData:
			if span != ev.Text {
				t.Errorf("char data span %q, text %q", span, ev.Text)
			}
		}
	}
}

func TestSelfClosingEndHasEmptySpan(t *testing.T) {
	src := `<g><path id="p"/></g>`
	events := drain(t, src)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	start, end := events[1], events[2]
	if start.Kind != StartTag || end.Kind != EndTag || end.Local != "path" {
		t.Fatalf("unexpected events: %v %v", start, end)
	}
	if got := src[start.Start:start.End]; got != `<path id="p"/>` {
		t.Errorf("start span = %q", got)
	}
	if end.Start != end.End || end.Start != start.End {
		t.Errorf("end span = [%d,%d), want empty at %d", end.Start, end.End, start.End)
	}
}

func TestPrefixedNamesAreNotResolved(t *testing.T) {
	src := `<g kvg:element="一" id="x"></g>`
	events := drain(t, src)
	attrs := events[0].Attrs
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attrs, got %d", len(attrs))
	}
	if attrs[0].Prefix != "kvg" || attrs[0].Local != "element" || attrs[0].QName() != "kvg:element" {
		t.Errorf("unexpected attr %+v", attrs[0])
	}
	if v, ok := events[0].Attr("element"); !ok || v != "一" {
		t.Errorf("Attr(element) = %q, %v", v, ok)
	}
}

func TestMultiByteOffsets(t *testing.T) {
	src := `<g a="一二"><path/></g>`
	events := drain(t, src)
	if got := src[events[1].Start:events[1].End]; got != "<path/>" {
		t.Errorf("span = %q", got)
	}
}

func TestSyntaxError(t *testing.T) {
	dec := NewBytesDecoder([]byte(`<g id="a></g>`))
	var err error
	for err == nil {
		_, err = dec.Next()
	}
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("expected SyntaxError, got %v", err)
	}
}
