package doctor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/adammathes/kvgverify/pkg/kvg"
	"github.com/adammathes/kvgverify/pkg/markup"
	"github.com/adammathes/kvgverify/pkg/validate"
)

// idRules are the rules whose failures RepairIDs can fix.
var idRules = []validate.Rule{
	validate.StrokeRootID,
	validate.NumberRootID,
	validate.GroupIDs,
	validate.StrokeIDs,
}

var idEngine = func() *validate.Engine {
	opts := validate.DefaultOptions()
	opts.Rules = idRules
	e, err := validate.NewEngine(opts)
	if err != nil {
		panic(err)
	}
	return e
}()

// Needs records which id rules failed for a document.
type Needs struct {
	StrokeRootID bool
	NumberRootID bool
	GroupIDs     bool
	StrokeIDs    bool
}

// Any reports whether at least one id needs repair.
func (n Needs) Any() bool {
	return n.StrokeRootID || n.NumberRootID || n.GroupIDs || n.StrokeIDs
}

// Diagnose evaluates the id rules against doc.
func Diagnose(fileID string, doc *kvg.Document) Needs {
	var n Needs
	for _, res := range idEngine.Validate(fileID, doc) {
		failed := !res.Outcome.Passed()
		switch res.Rule {
		case validate.StrokeRootID:
			n.StrokeRootID = failed
		case validate.NumberRootID:
			n.NumberRootID = failed
		case validate.GroupIDs:
			n.GroupIDs = failed
		case validate.StrokeIDs:
			n.StrokeIDs = failed
		}
	}
	return n
}

// RepairIDs rewrites the mismatched id attribute values of text, the
// source doc was parsed from. Every byte outside the replaced values is
// preserved. When no id rule fails, text is returned as is and no second
// pass is made.
func RepairIDs(fileID string, doc *kvg.Document, text []byte) ([]byte, []Fix, error) {
	needs := Diagnose(fileID, doc)
	if !needs.Any() {
		return text, nil, nil
	}
	rw := &rewriter{fileID: fileID, needs: needs, buf: bytes.Clone(text)}
	if err := rw.run(markup.NewBytesDecoder(text)); err != nil {
		return nil, nil, err
	}
	return rw.buf, rw.fixes, nil
}

type tagKind int

const (
	kindOther tagKind = iota
	kindRoot
	kindStrokeRoot
	kindNumberRoot
	kindGroup
	kindStroke
)

// shadowNode is an open or closed tag of the rescanned document. Nodes
// live in a flat arena and refer to their parent by index.
type shadowNode struct {
	kind     tagKind
	parent   int // -1 for the document element
	children int // child tags seen so far
}

type rewriter struct {
	fileID string
	needs  Needs

	buf   []byte
	drift int64 // length change of buf relative to the original text

	nodes []shadowNode
	open  []int // arena indexes of the currently open tags

	groups  int // nested groups classified so far; the root group is 0
	strokes int
	fixes   []Fix
}

func (rw *rewriter) run(src markup.Source) error {
	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("rescanning: %w", err)
		}
		switch ev.Kind {
		case markup.StartTag:
			if err := rw.start(ev); err != nil {
				return err
			}
		case markup.EndTag:
			if n := len(rw.open); n > 0 {
				rw.open = rw.open[:n-1]
			}
		}
	}
}

func (rw *rewriter) start(ev markup.Event) error {
	parent, ordinal := -1, 0
	if n := len(rw.open); n > 0 {
		parent = rw.open[n-1]
		ordinal = rw.nodes[parent].children
		rw.nodes[parent].children++
	}
	kind := rw.classify(ev.Local, parent, ordinal)
	rw.nodes = append(rw.nodes, shadowNode{kind: kind, parent: parent})
	rw.open = append(rw.open, len(rw.nodes)-1)

	var rule validate.Rule
	var want string
	switch kind {
	case kindStrokeRoot:
		rule, want = validate.StrokeRootID, kvg.StrokeRootID(rw.fileID)
		if !rw.needs.StrokeRootID {
			return nil
		}
	case kindNumberRoot:
		rule, want = validate.NumberRootID, kvg.NumberRootID(rw.fileID)
		if !rw.needs.NumberRootID {
			return nil
		}
	case kindGroup:
		rule, want = validate.GroupIDs, kvg.GroupID(rw.fileID, rw.groups)
		rw.groups++
		if !rw.needs.GroupIDs {
			return nil
		}
	case kindStroke:
		rw.strokes++
		rule, want = validate.StrokeIDs, kvg.StrokeID(rw.fileID, rw.strokes)
		if !rw.needs.StrokeIDs {
			return nil
		}
	default:
		return nil
	}

	got, ok := ev.Attr("id")
	if !ok {
		return fmt.Errorf("tag %s at byte %d has no id attribute", ev, ev.Start)
	}
	if got == want {
		return nil
	}
	return rw.replace(ev, rule, got, want)
}

// classify mirrors the positions the id rules number: the first two
// groups of the root are the stroke and number containers, and groups
// and paths below the stroke container are stroke groups and strokes.
func (rw *rewriter) classify(local string, parent, ordinal int) tagKind {
	if parent < 0 {
		if local == "svg" {
			return kindRoot
		}
		return kindOther
	}
	switch rw.nodes[parent].kind {
	case kindRoot:
		if local == "g" {
			switch ordinal {
			case 0:
				return kindStrokeRoot
			case 1:
				return kindNumberRoot
			}
		}
	case kindStrokeRoot, kindGroup:
		switch local {
		case "g":
			return kindGroup
		case "path":
			return kindStroke
		}
	}
	return kindOther
}

// replace swaps the id value inside the tag ev. The tag span reported
// against the original text is shifted by the drift of earlier edits.
func (rw *rewriter) replace(ev markup.Event, rule validate.Rule, got, want string) error {
	start, end := ev.Start+rw.drift, ev.End+rw.drift
	tag := rw.buf[start:end]
	vs, ve, quote, ok := idValue(tag)
	if !ok {
		return fmt.Errorf("cannot locate id=%q in tag at byte %d", got, ev.Start)
	}
	if raw := string(tag[vs:ve]); raw != got && !strings.Contains(raw, "&") {
		return fmt.Errorf("id attribute %q at byte %d does not match parsed value %q", raw, ev.Start, got)
	}

	repl := escapeAttr(want, quote)
	at := start + int64(vs)
	rw.buf = slices.Concat(rw.buf[:at], []byte(repl), rw.buf[at+int64(ve-vs):])
	rw.drift += int64(len(repl) - (ve - vs))

	info, _ := validate.Lookup(rule)
	rw.fixes = append(rw.fixes, Fix{
		CheckID:     info.CheckID,
		Description: fmt.Sprintf("changed id %q to %q", got, want),
		Offset:      ev.Start,
		Drift:       rw.drift,
	})
	return nil
}

func escapeAttr(s string, quote byte) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;")
	s = r.Replace(s)
	if quote == '"' {
		return strings.ReplaceAll(s, `"`, "&quot;")
	}
	return strings.ReplaceAll(s, "'", "&apos;")
}

// idValue returns the bounds of the id attribute value in tag, the bytes
// of one start tag, and the quote around it. Attributes are walked in
// order so that text inside other quoted values is never matched.
func idValue(tag []byte) (start, end int, quote byte, ok bool) {
	i := 1
	for i < len(tag) && !isSpace(tag[i]) && tag[i] != '>' && tag[i] != '/' {
		i++
	}
	skipSpace := func() {
		for i < len(tag) && isSpace(tag[i]) {
			i++
		}
	}
	for {
		skipSpace()
		if i >= len(tag) || tag[i] == '>' || tag[i] == '/' {
			return 0, 0, 0, false
		}
		name := i
		for i < len(tag) && tag[i] != '=' && !isSpace(tag[i]) && tag[i] != '>' && tag[i] != '/' {
			i++
		}
		attr := string(tag[name:i])
		skipSpace()
		if i >= len(tag) || tag[i] != '=' {
			return 0, 0, 0, false
		}
		i++
		skipSpace()
		if i >= len(tag) || (tag[i] != '"' && tag[i] != '\'') {
			return 0, 0, 0, false
		}
		q := tag[i]
		i++
		n := bytes.IndexByte(tag[i:], q)
		if n < 0 {
			return 0, 0, 0, false
		}
		if attr == "id" {
			return i, i + n, q, true
		}
		i += n + 1
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
