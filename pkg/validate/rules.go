package validate

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/adammathes/kvgverify/pkg/kvg"
)

// Rule identifies a validation rule.
type Rule string

const (
	CanvasSize        Rule = "canvas-size"
	ViewBox           Rule = "view-box"
	StrokeRootID      Rule = "stroke-root-id"
	NumberRootID      Rule = "number-root-id"
	StrokeRootStyle   Rule = "stroke-root-style"
	NumberRootStyle   Rule = "number-root-style"
	GroupIDs          Rule = "group-ids"
	StrokeIDs         Rule = "stroke-ids"
	StrokeNumberCount Rule = "stroke-number-count"
	NumberOrder       Rule = "number-order"
	NumberPosition    Rule = "number-position"

	// All selects every rule in an enabled-rule list.
	All Rule = "all"
)

// RuleInfo describes a rule for listings and reports.
type RuleInfo struct {
	Rule        Rule
	CheckID     string
	Description string
}

// catalog is the canonical rule order.
var catalog = []RuleInfo{
	{CanvasSize, "KVG-001", "width and height equal the canvas size"},
	{ViewBox, "KVG-002", "viewBox is 0 0 <size> <size>"},
	{StrokeRootID, "KVG-003", "stroke paths group id is kvg:StrokePaths_<file id>"},
	{NumberRootID, "KVG-004", "stroke numbers group id is kvg:StrokeNumbers_<file id>"},
	{StrokeRootStyle, "KVG-005", "stroke paths group has exactly the required style"},
	{NumberRootStyle, "KVG-006", "stroke numbers group has exactly the required style"},
	{GroupIDs, "KVG-007", "stroke groups are numbered kvg:<file id>, -g1, -g2... in depth-first order"},
	{StrokeIDs, "KVG-008", "strokes are numbered -s1, -s2... in depth-first order"},
	{StrokeNumberCount, "KVG-009", "there is one stroke number per stroke"},
	{NumberOrder, "KVG-010", "stroke numbers read 1, 2, ..., N in document order"},
	{NumberPosition, "KVG-011", "each stroke number is placed near the start of its stroke"},
}

// Catalog returns every rule in canonical order.
func Catalog() []RuleInfo {
	return slices.Clone(catalog)
}

// Lookup returns the catalog entry of r.
func Lookup(r Rule) (RuleInfo, bool) {
	for _, info := range catalog {
		if info.Rule == r {
			return info, true
		}
	}
	return RuleInfo{}, false
}

// Status is the kind of a rule outcome.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	// StatusError means the rule could not be evaluated for the document.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Outcome is the result of one rule. Reason is empty when it passed.
type Outcome struct {
	Status Status
	Reason string
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return o.Status.String()
	}
	return o.Status.String() + ": " + o.Reason
}

// Passed reports whether the outcome is a pass.
func (o Outcome) Passed() bool { return o.Status == StatusPassed }

// Result pairs a rule with its outcome.
type Result struct {
	Rule    Rule
	Outcome Outcome
}

func passed() Outcome { return Outcome{Status: StatusPassed} }

func failed(format string, args ...any) Outcome {
	return Outcome{Status: StatusFailed, Reason: fmt.Sprintf(format, args...)}
}

func failedWith(problems []string) Outcome {
	if len(problems) == 0 {
		return passed()
	}
	return Outcome{Status: StatusFailed, Reason: strings.Join(problems, "; ")}
}

type check func(e *Engine, fileID string, doc *kvg.Document) Outcome

var checks = map[Rule]check{
	CanvasSize:        checkCanvasSize,
	ViewBox:           checkViewBox,
	StrokeRootID:      checkStrokeRootID,
	NumberRootID:      checkNumberRootID,
	StrokeRootStyle:   checkStrokeRootStyle,
	NumberRootStyle:   checkNumberRootStyle,
	GroupIDs:          checkGroupIDs,
	StrokeIDs:         checkStrokeIDs,
	StrokeNumberCount: checkStrokeNumberCount,
	NumberOrder:       checkNumberOrder,
	NumberPosition:    checkNumberPosition,
}

func checkCanvasSize(e *Engine, _ string, doc *kvg.Document) Outcome {
	size := e.opts.CanvasSize
	var problems []string
	if doc.Width != size {
		problems = append(problems, fmt.Sprintf("width is %d, expected %d", doc.Width, size))
	}
	if doc.Height != size {
		problems = append(problems, fmt.Sprintf("height is %d, expected %d", doc.Height, size))
	}
	return failedWith(problems)
}

func checkViewBox(e *Engine, _ string, doc *kvg.Document) Outcome {
	size := e.opts.CanvasSize
	want := kvg.ViewBox{Width: size, Height: size}
	if doc.ViewBox == want {
		return passed()
	}
	vb := doc.ViewBox
	return failed("viewBox is \"%d %d %d %d\", expected \"0 0 %d %d\"", vb.X, vb.Y, vb.Width, vb.Height, size, size)
}

func checkStrokeRootID(_ *Engine, fileID string, doc *kvg.Document) Outcome {
	return checkID("stroke paths group", doc.StrokePaths.ID, kvg.StrokeRootID(fileID))
}

func checkNumberRootID(_ *Engine, fileID string, doc *kvg.Document) Outcome {
	return checkID("stroke numbers group", doc.StrokeNumbers.ID, kvg.NumberRootID(fileID))
}

func checkID(what, got, want string) Outcome {
	if got == want {
		return passed()
	}
	return failed("%s id is %q, expected %q", what, got, want)
}

func checkStrokeRootStyle(e *Engine, _ string, doc *kvg.Document) Outcome {
	return checkStyle(doc.StrokePaths.Style, e.opts.StrokeRootStyle)
}

func checkNumberRootStyle(e *Engine, _ string, doc *kvg.Document) Outcome {
	return checkStyle(doc.StrokeNumbers.Style, e.opts.NumberRootStyle)
}

// checkStyle reports missing, wrong-valued and extra properties together.
func checkStyle(got kvg.Style, want map[string]string) Outcome {
	var missing, wrong, extra []string
	for _, key := range sortedKeys(want) {
		v, ok := got[key]
		switch {
		case !ok:
			missing = append(missing, key)
		case v != want[key]:
			wrong = append(wrong, fmt.Sprintf("%s is %q, expected %q", key, v, want[key]))
		}
	}
	for _, key := range sortedKeys(got) {
		if _, ok := want[key]; !ok {
			extra = append(extra, key)
		}
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing keys ["+strings.Join(missing, ", ")+"]")
	}
	if len(wrong) > 0 {
		problems = append(problems, "wrong values ["+strings.Join(wrong, ", ")+"]")
	}
	if len(extra) > 0 {
		problems = append(problems, "extra keys ["+strings.Join(extra, ", ")+"]")
	}
	return failedWith(problems)
}

func sortedKeys[M ~map[string]string](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func checkGroupIDs(_ *Engine, fileID string, doc *kvg.Document) Outcome {
	var problems []string
	for i, g := range doc.Groups() {
		if want := kvg.GroupID(fileID, i); g.ID != want {
			problems = append(problems, fmt.Sprintf("group %q should be %q", g.ID, want))
		}
	}
	return failedWith(problems)
}

func checkStrokeIDs(_ *Engine, fileID string, doc *kvg.Document) Outcome {
	var problems []string
	for i, s := range doc.Strokes() {
		if want := kvg.StrokeID(fileID, i+1); s.ID != want {
			problems = append(problems, fmt.Sprintf("stroke %q should be %q", s.ID, want))
		}
	}
	return failedWith(problems)
}

func checkStrokeNumberCount(_ *Engine, _ string, doc *kvg.Document) Outcome {
	strokes, numbers := len(doc.Strokes()), len(doc.StrokeNumbers.Labels)
	if strokes == numbers {
		return passed()
	}
	return failed("%d strokes but %d stroke numbers", strokes, numbers)
}

func checkNumberOrder(_ *Engine, _ string, doc *kvg.Document) Outcome {
	labels := doc.StrokeNumbers.Labels
	got := make([]int, len(labels))
	want := make([]int, len(labels))
	for i, l := range labels {
		got[i] = l.Value
		want[i] = i + 1
	}
	if slices.Equal(got, want) {
		return passed()
	}
	return failed("stroke numbers are %v, expected %v", got, want)
}

// checkNumberPosition pairs strokes with labels by index. Surplus strokes
// or labels are left to the count rule.
func checkNumberPosition(e *Engine, _ string, doc *kvg.Document) Outcome {
	strokes, labels := doc.Strokes(), doc.StrokeNumbers.Labels
	limit := e.opts.MaxNumberDistance
	var problems []string
	for i := 0; i < len(strokes) && i < len(labels); i++ {
		start, err := strokes[i].Start()
		if err != nil {
			return Outcome{Status: StatusError, Reason: fmt.Sprintf("stroke %q: %v", strokes[i].ID, err)}
		}
		if d := start.Distance(labels[i].Transform.Translation()); d > limit {
			problems = append(problems, fmt.Sprintf("number %d is %.2f away from the start of stroke %q (max %.2f)",
				labels[i].Value, d, strokes[i].ID, limit))
		}
	}
	return failedWith(problems)
}
