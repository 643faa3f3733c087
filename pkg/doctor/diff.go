package doctor

import (
	"bytes"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

const diffContext = 3

// UnifiedDiff renders the line changes between before and after as a
// unified diff of the file name. It returns "" when the texts are equal.
func UnifiedDiff(name string, before, after []byte) (string, error) {
	if bytes.Equal(before, after) {
		return "", nil
	}
	a, b := splitLines(before), splitLines(after)
	m := difflib.NewMatcher(a, b)

	fd := &diff.FileDiff{OrigName: "a/" + name, NewName: "b/" + name}
	for _, group := range m.GetGroupedOpCodes(diffContext) {
		fd.Hunks = append(fd.Hunks, hunk(a, b, group))
	}
	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func hunk(a, b []string, group []difflib.OpCode) *diff.Hunk {
	first, last := group[0], group[len(group)-1]
	h := &diff.Hunk{
		OrigStartLine: hunkStart(first.I1, last.I2),
		OrigLines:     int32(last.I2 - first.I1),
		NewStartLine:  hunkStart(first.J1, last.J2),
		NewLines:      int32(last.J2 - first.J1),
	}
	var body bytes.Buffer
	for _, op := range group {
		if op.Tag == 'e' {
			for _, line := range a[op.I1:op.I2] {
				writeLine(&body, ' ', line)
			}
			continue
		}
		if op.Tag == 'r' || op.Tag == 'd' {
			for _, line := range a[op.I1:op.I2] {
				if writeLine(&body, '-', line) {
					h.OrigNoNewlineAt = int32(body.Len())
				}
			}
		}
		if op.Tag == 'r' || op.Tag == 'i' {
			for _, line := range b[op.J1:op.J2] {
				writeLine(&body, '+', line)
			}
		}
	}
	h.Body = body.Bytes()
	return h
}

// hunkStart is the 1-based first line of a range, or the line before an
// empty range.
func hunkStart(lo, hi int) int32 {
	if hi == lo {
		return int32(lo)
	}
	return int32(lo + 1)
}

// writeLine appends a prefixed body line. A removed final line without a
// newline is terminated anyway and reported so the caller can mark it;
// other unterminated lines are left for PrintHunks to mark.
func writeLine(buf *bytes.Buffer, prefix byte, line string) (missingNewline bool) {
	buf.WriteByte(prefix)
	buf.WriteString(line)
	if prefix == '-' && line[len(line)-1] != '\n' {
		buf.WriteByte('\n')
		return true
	}
	return false
}

func splitLines(data []byte) []string {
	parts := bytes.SplitAfter(data, []byte("\n"))
	if len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	lines := make([]string, len(parts))
	for i, p := range parts {
		lines[i] = string(p)
	}
	return lines
}
