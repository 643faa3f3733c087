// Command kvgfuzz generates randomized synthetic stroke order diagrams with
// injected faults and checks that kvgverify reports exactly what was
// injected.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adammathes/kvgverify/pkg/doctor"
	"github.com/adammathes/kvgverify/pkg/kvg"
	"github.com/adammathes/kvgverify/pkg/validate"
)

// Fault describes a single mutation applied to a generated diagram.
type Fault struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Expect      []string `json:"expect"` // check ids that must be reported
}

// DiagramSpec describes the parameters used to generate a diagram.
type DiagramSpec struct {
	ID         int     `json:"id"`
	FileID     string  `json:"file_id"`
	Filename   string  `json:"filename"`
	Groups     int     `json:"groups"`
	Strokes    int     `json:"strokes"`
	Faults     []Fault `json:"faults"`
	Repairable bool    `json:"repairable"`
}

// faultFunc is a function that mutates a diagram builder to inject a fault.
type faultFunc struct {
	name        string
	description string
	expect      []string
	parse       bool // the file no longer parses
	repairable  bool
	weight      int // relative probability weight
	apply       func(b *diagramBuilder, rng *rand.Rand)
}

var allFaults = []faultFunc{
	// === Canvas ===
	{
		name: "wrong_size", description: "Use a width or height other than 109",
		expect: []string{"KVG-001"}, weight: 2,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			if rng.Intn(2) == 0 {
				b.width = 100 + rng.Intn(8)
			} else {
				b.height = 110 + rng.Intn(20)
			}
		},
	},
	{
		name: "wrong_viewbox", description: "Use a viewBox that does not cover the canvas",
		expect: []string{"KVG-002"}, weight: 2,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			options := []string{"0 0 100 100", "1 0 109 109", "0,0,109,108", "0 0 218 218"}
			b.viewBox = options[rng.Intn(len(options))]
		},
	},
	// === Ids ===
	{
		name: "wrong_stroke_root_id", description: "Misname the stroke paths group",
		expect: []string{"KVG-003"}, repairable: true, weight: 3,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			options := []string{"StrokePaths", "kvg:StrokePaths_" + strings.TrimLeft(b.fileID, "0"), "kvg:strokepaths_" + b.fileID}
			b.strokeRootID = options[rng.Intn(len(options))]
		},
	},
	{
		name: "wrong_number_root_id", description: "Misname the stroke numbers group",
		expect: []string{"KVG-004"}, repairable: true, weight: 3,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			options := []string{"StrokeNumbers", "kvg:StrokeNumbers_" + b.fileID + "a", "kvg:StrokeNumbers-" + b.fileID}
			b.numberRootID = options[rng.Intn(len(options))]
		},
	},
	{
		name: "wrong_group_id", description: "Misnumber a stroke group",
		expect: []string{"KVG-007"}, repairable: true, weight: 3,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			g := b.groups[rng.Intn(len(b.groups))]
			g.id += "-g" + fmt.Sprint(10+rng.Intn(90))
		},
	},
	{
		name: "wrong_stroke_id", description: "Misnumber a stroke",
		expect: []string{"KVG-008"}, repairable: true, weight: 3,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			s := b.strokes[rng.Intn(len(b.strokes))]
			options := []string{"s1", s.id + "0", "kvg:" + b.fileID + "-s" + fmt.Sprint(len(b.strokes)+1+rng.Intn(5))}
			s.id = options[rng.Intn(len(options))]
		},
	},
	// === Styles ===
	{
		name: "missing_stroke_style_key", description: "Drop a required stroke style property",
		expect: []string{"KVG-005"}, weight: 2,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			options := []string{"stroke-linecap:round;", "stroke-width:3;", "fill:none;"}
			b.strokeStyle = strings.Replace(b.strokeStyle, options[rng.Intn(len(options))], "", 1)
		},
	},
	{
		name: "wrong_number_style", description: "Change a stroke number style value",
		expect: []string{"KVG-006"}, weight: 2,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			options := []string{"font-size:8;fill:#000000", "font-size:10;fill:#808080", "font-size:8;fill:#808080;stroke:none"}
			b.numberStyle = options[rng.Intn(len(options))]
		},
	},
	// === Stroke numbers ===
	{
		name: "missing_label", description: "Remove the last stroke number",
		expect: []string{"KVG-009"}, weight: 2,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			if len(b.labels) > 1 {
				b.labels = b.labels[:len(b.labels)-1]
			}
		},
	},
	{
		name: "swapped_labels", description: "Swap the values of two stroke numbers",
		expect: []string{"KVG-010"}, weight: 2,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			i := rng.Intn(len(b.labels) - 1)
			b.labels[i].value, b.labels[i+1].value = b.labels[i+1].value, b.labels[i].value
		},
	},
	{
		name: "displaced_label", description: "Move a stroke number far from its stroke",
		expect: []string{"KVG-011"}, weight: 2,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			// never the last label, which missing_label may drop
			i := rng.Intn(len(b.labels) - 1)
			b.labels[i].x += 30 + rng.Float64()*20
		},
	},
	{
		name: "bad_path_start", description: "Start a stroke path without a move-to command",
		expect: []string{"KVG-011"}, weight: 1,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			// the last stroke may lose its label to missing_label
			s := b.strokes[rng.Intn(len(b.strokes)-1)]
			s.path = "L" + s.path[1:]
		},
	},
	// === Structure ===
	{
		name: "truncated", description: "Cut the file in half",
		expect: []string{validate.ParseCheckID}, parse: true, weight: 1,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			b.truncate = true
		},
	},
	{
		name: "unknown_root_attribute", description: "Add an attribute outside the root allow-list",
		expect: []string{validate.ParseCheckID}, parse: true, weight: 1,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			options := []string{` version="1.1"`, ` id="root"`, ` kvg:element="x"`}
			b.extraRootAttr = options[rng.Intn(len(options))]
		},
	},
	{
		name: "bad_matrix", description: "Use a malformed stroke number transform",
		expect: []string{validate.ParseCheckID}, parse: true, weight: 1,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			options := []string{"matrix(1 0 0 1 5)", "translate(5 5)", "matrix(1 0 0 1 a b)"}
			b.labels[rng.Intn(len(b.labels))].transform = options[rng.Intn(len(options))]
		},
	},
	{
		name: "non_numeric_label", description: "Use a stroke number that is not an integer",
		expect: []string{validate.ParseCheckID}, parse: true, weight: 1,
		apply: func(b *diagramBuilder, rng *rand.Rand) {
			options := []string{"a", "1.5", "一"}
			b.labels[rng.Intn(len(b.labels))].value = options[rng.Intn(len(options))]
		},
	},
}

type group struct {
	id       string
	element  string
	children []any // *group or *stroke
}

type stroke struct {
	id   string
	typ  string
	path string
}

type label struct {
	value     string
	x, y      float64
	transform string // overrides the matrix built from x and y
}

// diagramBuilder holds a diagram in a form faults can mutate before it is
// rendered.
type diagramBuilder struct {
	fileID        string
	width, height int
	viewBox       string
	extraRootAttr string
	strokeRootID  string
	numberRootID  string
	strokeStyle   string
	numberStyle   string
	root          *group
	groups        []*group  // depth first
	strokes       []*stroke // depth first
	labels        []label
	truncate      bool
}

var strokeTypes = []string{"㇐", "㇑", "㇒", "㇏", "㇔", "㇕", "㇆", "㇚"}

func newBuilder(fileID string, rng *rand.Rand) *diagramBuilder {
	b := &diagramBuilder{
		fileID:       fileID,
		width:        109,
		height:       109,
		viewBox:      "0 0 109 109",
		strokeRootID: kvg.StrokeRootID(fileID),
		numberRootID: kvg.NumberRootID(fileID),
		strokeStyle:  "fill:none;stroke:#000000;stroke-width:3;stroke-linecap:round;stroke-linejoin:round;",
		numberStyle:  "font-size:8;fill:#808080",
	}
	b.root = &group{element: string(rune(0x4e00 + rng.Intn(0x5000)))}
	if parts := rng.Intn(4); parts == 0 {
		b.addStrokes(b.root, 2+rng.Intn(4), rng)
	} else {
		for range parts {
			sub := &group{element: string(rune(0x4e00 + rng.Intn(0x5000)))}
			if rng.Intn(4) == 0 {
				inner := &group{element: string(rune(0x4e00 + rng.Intn(0x5000)))}
				b.addStrokes(inner, 1+rng.Intn(2), rng)
				sub.children = append(sub.children, inner)
			}
			b.addStrokes(sub, 1+rng.Intn(3), rng)
			b.root.children = append(b.root.children, sub)
		}
	}
	// label faults need two strokes
	if len(b.labels) < 2 {
		b.addStrokes(b.root, 1, rng)
	}
	b.number(b.root)
	return b
}

func (b *diagramBuilder) addStrokes(g *group, n int, rng *rand.Rand) {
	for range n {
		x, y := 10+rng.Float64()*85, 10+rng.Float64()*85
		path := fmt.Sprintf("M%.2f,%.2f c%.2f,%.2f %.2f,%.2f %.2f,%.2f", x, y,
			rng.Float64()*4, rng.Float64()*4, rng.Float64()*20, rng.Float64()*20, rng.Float64()*30, rng.Float64()*30)
		g.children = append(g.children, &stroke{typ: strokeTypes[rng.Intn(len(strokeTypes))], path: path})
		b.labels = append(b.labels, label{x: x + rng.Float64()*12 - 6, y: y + rng.Float64()*12 - 6})
	}
}

// number assigns the canonical ids depth first and records the order.
func (b *diagramBuilder) number(g *group) {
	g.id = kvg.GroupID(b.fileID, len(b.groups))
	b.groups = append(b.groups, g)
	for _, c := range g.children {
		switch c := c.(type) {
		case *group:
			b.number(c)
		case *stroke:
			b.strokes = append(b.strokes, c)
			c.id = kvg.StrokeID(b.fileID, len(b.strokes))
			b.labels[len(b.strokes)-1].value = fmt.Sprint(len(b.strokes))
		}
	}
}

func (b *diagramBuilder) render() []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="%s"%s>`+"\n",
		b.width, b.height, b.viewBox, b.extraRootAttr)
	fmt.Fprintf(&sb, `<g id="%s" style="%s">`+"\n", b.strokeRootID, b.strokeStyle)
	b.renderGroup(&sb, b.root, 0)
	sb.WriteString("</g>\n")
	fmt.Fprintf(&sb, `<g id="%s" style="%s">`+"\n", b.numberRootID, b.numberStyle)
	for _, l := range b.labels {
		transform := l.transform
		if transform == "" {
			transform = fmt.Sprintf("matrix(1 0 0 1 %.2f %.2f)", l.x, l.y)
		}
		fmt.Fprintf(&sb, "\t<text transform=\"%s\">%s</text>\n", transform, l.value)
	}
	sb.WriteString("</g>\n</svg>\n")

	out := sb.String()
	if b.truncate {
		out = out[:len(out)/2]
	}
	return []byte(out)
}

func (b *diagramBuilder) renderGroup(sb *strings.Builder, g *group, depth int) {
	indent := strings.Repeat("\t", depth)
	fmt.Fprintf(sb, "%s<g id=\"%s\" kvg:element=\"%s\">\n", indent, g.id, g.element)
	for _, c := range g.children {
		switch c := c.(type) {
		case *group:
			b.renderGroup(sb, c, depth+1)
		case *stroke:
			fmt.Fprintf(sb, "%s\t<path id=\"%s\" kvg:type=\"%s\" d=\"%s\"/>\n", indent, c.id, c.typ, c.path)
		}
	}
	fmt.Fprintf(sb, "%s</g>\n", indent)
}

// pickFaults chooses up to n distinct faults by weight. At most one of
// them breaks parsing, and then it is the only one.
func pickFaults(n int, rng *rand.Rand) []faultFunc {
	total := 0
	for _, f := range allFaults {
		total += f.weight
	}
	var picked []faultFunc
	for range n {
		r := rng.Intn(total)
		for _, f := range allFaults {
			if r < f.weight {
				if !slices.ContainsFunc(picked, func(p faultFunc) bool { return p.name == f.name }) {
					picked = append(picked, f)
				}
				break
			}
			r -= f.weight
		}
	}
	for _, f := range picked {
		if f.parse {
			return []faultFunc{f}
		}
	}
	return picked
}

func generateDiagram(id int, rng *rand.Rand) (*DiagramSpec, []byte) {
	fileID := fmt.Sprintf("%05x", 0x4e00+id)
	b := newBuilder(fileID, rng)
	spec := &DiagramSpec{
		ID:       id,
		FileID:   fileID,
		Filename: fileID + ".svg",
		Groups:   len(b.groups),
		Strokes:  len(b.strokes),
	}

	// roughly a fifth of the diagrams stay valid
	var faults []faultFunc
	if rng.Intn(5) != 0 {
		faults = pickFaults(1+rng.Intn(3), rng)
	}
	spec.Repairable = len(faults) > 0
	for _, f := range faults {
		f.apply(b, rng)
		spec.Faults = append(spec.Faults, Fault{Name: f.name, Description: f.description, Expect: f.expect})
		spec.Repairable = spec.Repairable && f.repairable
	}
	return spec, b.render()
}

func generate(outDir string, count int, seed int64, stdout io.Writer) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(seed))

	var specs []DiagramSpec
	for i := 1; i <= count; i++ {
		spec, data := generateDiagram(i, rng)
		path := filepath.Join(outDir, spec.Filename)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		specs = append(specs, *spec)

		faultNames := make([]string, len(spec.Faults))
		for j, f := range spec.Faults {
			faultNames[j] = f.Name
		}
		faultStr := "valid (no faults)"
		if len(faultNames) > 0 {
			faultStr = strings.Join(faultNames, ", ")
		}
		fmt.Fprintf(stdout, "[%3d] %s %dg %ds: %s\n", i, spec.Filename, spec.Groups, spec.Strokes, faultStr)
	}

	manifestPath := filepath.Join(outDir, "manifest.json")
	manifestData, err := json.MarshalIndent(specs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(manifestPath, manifestData, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	fmt.Fprintf(stdout, "\nGenerated %d diagrams in %s\n", count, outDir)
	fmt.Fprintf(stdout, "Manifest: %s\n", manifestPath)
	return nil
}

// check validates every generated diagram against its manifest entry.
// Every expected check id must be reported, valid diagrams must report
// nothing, and repairable diagrams must come out of a dry-run repair
// valid.
func check(outDir string, stdout io.Writer) (mismatches int, err error) {
	data, err := os.ReadFile(filepath.Join(outDir, "manifest.json"))
	if err != nil {
		return 0, err
	}
	var specs []DiagramSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return 0, fmt.Errorf("decoding manifest: %w", err)
	}

	engine, err := validate.NewEngine(validate.DefaultOptions())
	if err != nil {
		return 0, err
	}
	dr := doctor.New(engine, doctor.Options{
		DryRun: true,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	for _, spec := range specs {
		path := filepath.Join(outDir, spec.Filename)
		r, err := engine.ValidateFile(path)
		if err != nil {
			return mismatches, err
		}
		var problems []string
		for _, f := range spec.Faults {
			for _, id := range f.Expect {
				if !r.HasCheck(id) {
					problems = append(problems, fmt.Sprintf("%s: %s not reported", f.Name, id))
				}
			}
		}
		if len(spec.Faults) == 0 && len(r.Messages) > 0 {
			problems = append(problems, fmt.Sprintf("valid diagram reported %s", r.Messages[0]))
		}
		if spec.Repairable {
			res, err := dr.Repair(path)
			if err != nil {
				return mismatches, err
			}
			if !res.AfterReport.IsValid() {
				problems = append(problems, fmt.Sprintf("still invalid after repair: %s", res.AfterReport.Messages[0]))
			}
		}
		if len(problems) > 0 {
			mismatches++
			fmt.Fprintf(stdout, "MISMATCH %s: %s\n", spec.Filename, strings.Join(problems, "; "))
		}
	}
	fmt.Fprintf(stdout, "Checked %d diagrams, %d mismatches\n", len(specs), mismatches)
	return mismatches, nil
}

func main() {
	var (
		count    int
		seed     int64
		runCheck bool
	)
	cmd := &cobra.Command{
		Use:           "kvgfuzz [out-dir]",
		Short:         "Generate synthetic diagrams with injected faults",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir := "testdata/synthetic"
			if len(args) > 0 {
				outDir = args[0]
			}
			if runCheck {
				n, err := check(outDir, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				if n > 0 {
					os.Exit(1)
				}
				return nil
			}
			return generate(outDir, count, seed, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&count, "count", 100, "number of diagrams to generate")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	cmd.Flags().BoolVar(&runCheck, "check", false, "validate a generated directory against its manifest")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "kvgfuzz: %v\n", err)
		os.Exit(2)
	}
}
