package validate

import (
	"fmt"
	"os"
	"strings"

	"github.com/adammathes/kvgverify/pkg/kvg"
	"github.com/adammathes/kvgverify/pkg/report"
)

// ParseCheckID is the report check id of a file that could not be parsed.
const ParseCheckID = "KVG-000"

// Options configures the rule engine.
type Options struct {
	// Rules lists the enabled rules. Empty, or a list containing "all",
	// enables every rule. Rules always run in canonical order.
	Rules []Rule

	// Advisory rules are reported as warnings instead of errors.
	Advisory []Rule

	// CanvasSize is the required width and height of the diagram and its
	// viewBox.
	CanvasSize int

	// MaxNumberDistance is the largest allowed distance between a stroke's
	// starting point and the translation of its stroke number.
	MaxNumberDistance float64

	// Required style properties of the two top-level groups.
	StrokeRootStyle map[string]string
	NumberRootStyle map[string]string
}

// DefaultOptions returns options enabling every rule with the canonical
// dataset constants.
func DefaultOptions() Options {
	return Options{
		CanvasSize:        109,
		MaxNumberDistance: 20,
		StrokeRootStyle: map[string]string{
			"fill":            "none",
			"stroke":          "#000000",
			"stroke-width":    "3",
			"stroke-linecap":  "round",
			"stroke-linejoin": "round",
		},
		NumberRootStyle: map[string]string{
			"font-size": "8",
			"fill":      "#808080",
		},
	}
}

// Engine evaluates a configured set of rules over parsed documents. It
// holds no mutable state and is safe for concurrent use.
type Engine struct {
	opts     Options
	rules    []Rule
	advisory map[Rule]bool
}

// NewEngine checks opts and returns an engine for it.
func NewEngine(opts Options) (*Engine, error) {
	if opts.CanvasSize <= 0 {
		return nil, fmt.Errorf("canvas size must be positive, got %d", opts.CanvasSize)
	}
	if opts.MaxNumberDistance < 0 {
		return nil, fmt.Errorf("max number distance cannot be negative, got %g", opts.MaxNumberDistance)
	}

	enabled := map[Rule]bool{}
	all := len(opts.Rules) == 0
	for _, r := range opts.Rules {
		if r == All {
			all = true
			continue
		}
		if _, ok := Lookup(r); !ok {
			return nil, fmt.Errorf("unknown validation rule %q", r)
		}
		enabled[r] = true
	}

	e := &Engine{opts: opts, advisory: map[Rule]bool{}}
	for _, info := range catalog {
		if all || enabled[info.Rule] {
			e.rules = append(e.rules, info.Rule)
		}
	}
	for _, r := range opts.Advisory {
		if _, ok := Lookup(r); !ok {
			return nil, fmt.Errorf("unknown advisory rule %q", r)
		}
		e.advisory[r] = true
	}
	return e, nil
}

// Rules returns the enabled rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Validate evaluates every enabled rule against doc. Every rule runs; a
// failing rule never prevents the others from being evaluated.
func (e *Engine) Validate(fileID string, doc *kvg.Document) []Result {
	results := make([]Result, 0, len(e.rules))
	for _, r := range e.rules {
		results = append(results, Result{Rule: r, Outcome: checks[r](e, fileID, doc)})
	}
	return results
}

// ValidateFile reads, parses and validates the diagram at path. Only I/O
// failures are returned as errors; parse failures are reported as FATAL
// messages.
func (e *Engine) ValidateFile(path string) (*report.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	r, _ := e.ValidateBytes(path, data)
	return r, nil
}

// ValidateBytes parses and validates data read from path. The parsed
// document is returned alongside the report, or nil when parsing failed.
func (e *Engine) ValidateBytes(path string, data []byte) (*report.Report, *kvg.Document) {
	c := e.Check(path, data)
	return c.Report, c.Doc
}

// Checked is the complete outcome of checking one file.
type Checked struct {
	Doc      *kvg.Document // nil when parsing failed
	ParseErr error
	Results  []Result
	Report   *report.Report
}

// Check parses and validates data read from path, keeping the individual
// rule results next to the report built from them.
func (e *Engine) Check(path string, data []byte) Checked {
	c := Checked{Report: report.NewReport()}
	c.Doc, c.ParseErr = kvg.ParseBytes(data)
	if c.ParseErr != nil {
		c.Doc = nil
		c.Report.AddWithLocation(report.Fatal, ParseCheckID, c.ParseErr.Error(), path)
		return c
	}
	c.Results = e.Validate(kvg.FileID(path), c.Doc)
	e.Report(c.Report, path, c.Results)
	return c
}

// Report adds a message for every non-passing result to r.
func (e *Engine) Report(r *report.Report, path string, results []Result) {
	advisory := map[string]bool{}
	for _, res := range results {
		info, _ := Lookup(res.Rule)
		switch res.Outcome.Status {
		case StatusFailed:
			r.AddWithLocation(report.Error, info.CheckID, string(res.Rule)+": "+res.Outcome.Reason, path)
			if e.advisory[res.Rule] {
				advisory[info.CheckID] = true
			}
		case StatusError:
			r.AddWithLocation(report.Fatal, info.CheckID, string(res.Rule)+": "+res.Outcome.Reason, path)
		}
	}
	r.Downgrade(advisory, report.Error, report.Warning)
}

// Failed returns the rules of results that did not pass.
func Failed(results []Result) []Rule {
	var rules []Rule
	for _, res := range results {
		if res.Outcome.Status != StatusPassed {
			rules = append(rules, res.Rule)
		}
	}
	return rules
}

// Summary is a one-line description of results, e.g. for logging.
func Summary(results []Result) string {
	failed := Failed(results)
	if len(failed) == 0 {
		return "all validations passed"
	}
	names := make([]string, len(failed))
	for i, r := range failed {
		names[i] = string(r)
	}
	return "failed validations: " + strings.Join(names, ", ")
}
