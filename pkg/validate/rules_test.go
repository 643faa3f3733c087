package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adammathes/kvgverify/pkg/kvg"
	"github.com/adammathes/kvgverify/pkg/report"
)

// testdataDir returns the path to the testdata directory in the repo root.
func testdataDir(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "testdata")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repo root (no go.mod)")
		}
		dir = parent
	}
}

func defaultEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return e
}

// validDoc returns a correct two-stroke document for file id "x".
func validDoc() *kvg.Document {
	opts := DefaultOptions()
	return &kvg.Document{
		Width:   109,
		Height:  109,
		ViewBox: kvg.ViewBox{Width: 109, Height: 109},
		StrokePaths: kvg.StrokeContainer{
			ID:    "kvg:StrokePaths_x",
			Style: kvg.Style(clone(opts.StrokeRootStyle)),
			Root: &kvg.Group{
				ID: "kvg:x",
				Children: []kvg.Node{
					&kvg.Stroke{ID: "kvg:x-s1", Path: "M10,10c1,1"},
					&kvg.Group{ID: "kvg:x-g1", Children: []kvg.Node{
						&kvg.Stroke{ID: "kvg:x-s2", Path: "M50,50"},
					}},
				},
			},
		},
		StrokeNumbers: kvg.NumberContainer{
			ID:    "kvg:StrokeNumbers_x",
			Style: kvg.Style(clone(opts.NumberRootStyle)),
			Labels: []kvg.Label{
				{Value: 1, Transform: kvg.Matrix{1, 0, 0, 1, 12, 8}},
				{Value: 2, Transform: kvg.Matrix{1, 0, 0, 1, 45, 52}},
			},
		},
	}
}

func clone(m map[string]string) map[string]string {
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func outcome(t *testing.T, e *Engine, doc *kvg.Document, rule Rule) Outcome {
	t.Helper()
	for _, res := range e.Validate("x", doc) {
		if res.Rule == rule {
			return res.Outcome
		}
	}
	t.Fatalf("rule %s did not run", rule)
	return Outcome{}
}

func TestValidDocumentPassesEveryRule(t *testing.T) {
	results := defaultEngine(t).Validate("x", validDoc())
	if len(results) != len(Catalog()) {
		t.Fatalf("got %d results, want %d", len(results), len(Catalog()))
	}
	for i, res := range results {
		if res.Rule != catalog[i].Rule {
			t.Errorf("result %d is %s, want canonical order %s", i, res.Rule, catalog[i].Rule)
		}
		if !res.Outcome.Passed() {
			t.Errorf("%s: %v", res.Rule, res.Outcome)
		}
	}
	if got := Summary(results); got != "all validations passed" {
		t.Errorf("summary = %q", got)
	}
}

func TestCanvasSize(t *testing.T) {
	e := defaultEngine(t)
	doc := validDoc()
	doc.Width = 110
	o := outcome(t, e, doc, CanvasSize)
	if o.Status != StatusFailed || !strings.Contains(o.Reason, "110") {
		t.Errorf("outcome = %v", o)
	}
	if strings.Contains(o.Reason, "height") {
		t.Errorf("height should not be reported: %v", o)
	}

	doc.Height = 1
	o = outcome(t, e, doc, CanvasSize)
	if !strings.Contains(o.Reason, "width is 110") || !strings.Contains(o.Reason, "height is 1") {
		t.Errorf("both dimensions should be reported: %v", o)
	}
}

func TestViewBox(t *testing.T) {
	doc := validDoc()
	doc.ViewBox.X = 1
	o := outcome(t, defaultEngine(t), doc, ViewBox)
	if o.Status != StatusFailed || !strings.Contains(o.Reason, `"1 0 109 109"`) {
		t.Errorf("outcome = %v", o)
	}
}

func TestRootIDs(t *testing.T) {
	doc := validDoc()
	doc.StrokePaths.ID = "kvg:StrokePaths_y"
	doc.StrokeNumbers.ID = "StrokeNumbers_x"
	e := defaultEngine(t)
	if o := outcome(t, e, doc, StrokeRootID); o.Status != StatusFailed || !strings.Contains(o.Reason, "kvg:StrokePaths_x") {
		t.Errorf("stroke root: %v", o)
	}
	if o := outcome(t, e, doc, NumberRootID); o.Status != StatusFailed || !strings.Contains(o.Reason, "kvg:StrokeNumbers_x") {
		t.Errorf("number root: %v", o)
	}
}

func TestStyleReportsAllCategories(t *testing.T) {
	doc := validDoc()
	delete(doc.StrokePaths.Style, "stroke-linecap")
	doc.StrokePaths.Style["stroke-width"] = "2"
	doc.StrokePaths.Style["opacity"] = "0.5"

	o := outcome(t, defaultEngine(t), doc, StrokeRootStyle)
	if o.Status != StatusFailed {
		t.Fatalf("outcome = %v", o)
	}
	for _, want := range []string{
		"missing keys [stroke-linecap]",
		`wrong values [stroke-width is "2", expected "3"]`,
		"extra keys [opacity]",
	} {
		if !strings.Contains(o.Reason, want) {
			t.Errorf("reason %q does not contain %q", o.Reason, want)
		}
	}
}

func TestNumberRootStyleIsConfigurable(t *testing.T) {
	opts := DefaultOptions()
	opts.NumberRootStyle = map[string]string{"font-size": "8", "fill": "#808080", "font-family": "serif"}
	e, err := NewEngine(opts)
	if err != nil {
		t.Fatal(err)
	}
	o := outcome(t, e, validDoc(), NumberRootStyle)
	if o.Status != StatusFailed || !strings.Contains(o.Reason, "missing keys [font-family]") {
		t.Errorf("outcome = %v", o)
	}
}

func TestGroupIDsReportEveryMismatch(t *testing.T) {
	doc := validDoc()
	doc.StrokePaths.Root.ID = "kvg:x-g0"
	doc.StrokePaths.Root.Children[1].(*kvg.Group).ID = "kvg:x-g7"
	o := outcome(t, defaultEngine(t), doc, GroupIDs)
	if o.Status != StatusFailed {
		t.Fatalf("outcome = %v", o)
	}
	if !strings.Contains(o.Reason, `"kvg:x-g0" should be "kvg:x"`) || !strings.Contains(o.Reason, `"kvg:x-g7" should be "kvg:x-g1"`) {
		t.Errorf("reason = %q", o.Reason)
	}
}

func TestStrokeIDs(t *testing.T) {
	doc := validDoc()
	doc.StrokePaths.Root.Children[0].(*kvg.Stroke).ID = "s1"
	o := outcome(t, defaultEngine(t), doc, StrokeIDs)
	if o.Status != StatusFailed || !strings.Contains(o.Reason, `"s1" should be "kvg:x-s1"`) {
		t.Errorf("outcome = %v", o)
	}
}

func TestStrokeNumberCount(t *testing.T) {
	doc := validDoc()
	doc.StrokeNumbers.Labels = doc.StrokeNumbers.Labels[:1]
	o := outcome(t, defaultEngine(t), doc, StrokeNumberCount)
	if o.Status != StatusFailed || o.Reason != "2 strokes but 1 stroke numbers" {
		t.Errorf("outcome = %v", o)
	}
}

func TestNumberOrder(t *testing.T) {
	tests := []struct {
		values []int
		pass   bool
	}{
		{[]int{1, 2, 3}, true},
		{[]int{1, 3, 2}, false},
		{[]int{2, 3, 4}, false},
		{[]int{1, 2, 2}, false},
	}
	e := defaultEngine(t)
	for _, tt := range tests {
		doc := validDoc()
		doc.StrokeNumbers.Labels = nil
		for _, v := range tt.values {
			doc.StrokeNumbers.Labels = append(doc.StrokeNumbers.Labels, kvg.Label{Value: v})
		}
		if o := outcome(t, e, doc, NumberOrder); o.Passed() != tt.pass {
			t.Errorf("%v: outcome = %v", tt.values, o)
		}
	}
}

func TestNumberPosition(t *testing.T) {
	e := defaultEngine(t)
	doc := validDoc()
	doc.StrokePaths.Root.Children = []kvg.Node{&kvg.Stroke{ID: "kvg:x-s1", Path: "M0,0l1,1"}}
	doc.StrokeNumbers.Labels = []kvg.Label{{Value: 1, Transform: kvg.Matrix{1, 0, 0, 1, 0, 0}}}
	if o := outcome(t, e, doc, NumberPosition); !o.Passed() {
		t.Errorf("distance 0: %v", o)
	}

	zero := DefaultOptions()
	zero.MaxNumberDistance = 0
	ze, err := NewEngine(zero)
	if err != nil {
		t.Fatal(err)
	}
	if o := outcome(t, ze, doc, NumberPosition); !o.Passed() {
		t.Errorf("distance 0 with zero threshold: %v", o)
	}

	doc.StrokeNumbers.Labels[0].Transform = kvg.Matrix{1, 0, 0, 1, 1000, 1000}
	o := outcome(t, e, doc, NumberPosition)
	if o.Status != StatusFailed || !strings.Contains(o.Reason, "1414.21") {
		t.Errorf("far label: %v", o)
	}
}

func TestNumberPositionUnparsablePath(t *testing.T) {
	doc := validDoc()
	doc.StrokePaths.Root.Children[0].(*kvg.Stroke).Path = "L1,1"
	results := defaultEngine(t).Validate("x", doc)
	for _, res := range results {
		switch res.Rule {
		case NumberPosition:
			if res.Outcome.Status != StatusError {
				t.Errorf("outcome = %v, want error", res.Outcome)
			}
		default:
			if !res.Outcome.Passed() {
				t.Errorf("%s: %v", res.Rule, res.Outcome)
			}
		}
	}
}

func TestEngineRuleSelection(t *testing.T) {
	opts := DefaultOptions()
	opts.Rules = []Rule{NumberOrder, CanvasSize}
	e, err := NewEngine(opts)
	if err != nil {
		t.Fatal(err)
	}
	rules := e.Rules()
	if len(rules) != 2 || rules[0] != CanvasSize || rules[1] != NumberOrder {
		t.Errorf("rules = %v, want canonical order", rules)
	}

	opts.Rules = []Rule{All}
	if e, err = NewEngine(opts); err != nil {
		t.Fatal(err)
	}
	if len(e.Rules()) != len(catalog) {
		t.Errorf("all: rules = %v", e.Rules())
	}

	opts.Rules = []Rule{"stroke-colour"}
	if _, err := NewEngine(opts); err == nil {
		t.Error("expected error for unknown rule")
	}

	opts = DefaultOptions()
	opts.CanvasSize = 0
	if _, err := NewEngine(opts); err == nil {
		t.Error("expected error for zero canvas size")
	}
}

func TestValidateFileFixtures(t *testing.T) {
	td := testdataDir(t)
	e := defaultEngine(t)

	r, err := e.ValidateFile(filepath.Join(td, "fixtures/valid/04f11.svg"))
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsValid() || len(r.Messages) != 0 {
		t.Error("expected valid diagram")
		for _, m := range r.Messages {
			t.Logf("  %s", m)
		}
	}

	r, err = e.ValidateFile(filepath.Join(td, "fixtures/invalid/04f11.svg"))
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"KVG-001", "KVG-009", "KVG-011"} {
		if !r.HasCheck(id) {
			t.Errorf("expected %s to be reported", id)
		}
	}
	if r.HasCheck("KVG-007") {
		t.Error("group ids are correct in the invalid fixture")
	}
}

func TestValidateBytesParseFailure(t *testing.T) {
	r, doc := defaultEngine(t).ValidateBytes("x.svg", []byte(`<svg width="109">`))
	if doc != nil {
		t.Error("expected no document")
	}
	if r.FatalCount() != 1 || r.Messages[0].CheckID != ParseCheckID {
		t.Errorf("messages = %v", r.Messages)
	}
}

func TestAdvisoryRulesAreWarnings(t *testing.T) {
	opts := DefaultOptions()
	opts.Advisory = []Rule{NumberPosition}
	e, err := NewEngine(opts)
	if err != nil {
		t.Fatal(err)
	}
	doc := validDoc()
	doc.StrokeNumbers.Labels[0].Transform = kvg.Matrix{1, 0, 0, 1, 100, 100}
	r := report.NewReport()
	e.Report(r, "x.svg", e.Validate("x", doc))
	if !r.IsValid() || r.WarningCount() != 1 {
		t.Errorf("messages = %v", r.Messages)
	}
}
