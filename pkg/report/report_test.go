package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func sample() *Report {
	r := NewReport()
	r.AddWithLocation(Error, "KVG-001", "canvas-size: width is 110, expected 109", "04f11.svg")
	r.AddWithLocation(Error, "KVG-011", "number-position: number 4 is 21.00 away", "04f11.svg")
	return r
}

func TestDowngrade(t *testing.T) {
	r := sample()
	r.Downgrade(map[string]bool{"KVG-011": true}, Error, Warning)
	if r.ErrorCount() != 1 || r.WarningCount() != 1 {
		t.Fatalf("errors=%d warnings=%d", r.ErrorCount(), r.WarningCount())
	}
	if r.IsValid() {
		t.Error("report with an error should be invalid")
	}

	r.Downgrade(map[string]bool{"KVG-001": true}, Error, Warning)
	if !r.IsValid() {
		t.Error("report with only warnings should be valid")
	}
}

func TestMergeCountsFiles(t *testing.T) {
	total := NewReport()
	total.Merge(sample())
	total.Merge(NewReport())
	total.Merge(nil)
	if total.Files != 2 {
		t.Errorf("files = %d, want 2", total.Files)
	}
	if len(total.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(total.Messages))
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	sample().WriteText(&buf)
	out := buf.String()
	if !strings.Contains(out, "ERROR(KVG-001): canvas-size: width is 110, expected 109 [04f11.svg]") {
		t.Errorf("missing message line:\n%s", out)
	}
	if !strings.Contains(out, "Check finished. Errors: 2, Warnings: 0, Fatal: 0") {
		t.Errorf("missing summary:\n%s", out)
	}

	buf.Reset()
	NewReport().WriteText(&buf)
	if buf.String() != "No errors or warnings detected.\n" {
		t.Errorf("empty report text = %q", buf.String())
	}
}

func TestWriteColorTextWithoutTerminal(t *testing.T) {
	var plain, color bytes.Buffer
	sample().WriteText(&plain)
	sample().WriteColorText(&color)
	if plain.String() != color.String() {
		t.Errorf("colors should be dropped for a non-terminal writer:\n%q\n%q", plain.String(), color.String())
	}
}

func TestWriteJSON(t *testing.T) {
	r := sample()
	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}
	var out JSONOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.RunID == "" || out.RunID != r.RunID {
		t.Errorf("run id = %q, report run id = %q", out.RunID, r.RunID)
	}
	if out.Valid || out.ErrorCount != 2 {
		t.Errorf("valid=%v errors=%d", out.Valid, out.ErrorCount)
	}

	buf.Reset()
	if err := NewReport().WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"messages": []`) {
		t.Errorf("empty report should have an empty messages list:\n%s", buf.String())
	}
}
