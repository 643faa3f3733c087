package kvg

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FileID returns the identifier of a diagram file: its base name without
// extension, e.g. "04e00" for "kanji/04e00.svg".
func FileID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// StrokeRootID returns the expected id of the stroke container.
func StrokeRootID(fileID string) string {
	return "kvg:StrokePaths_" + fileID
}

// NumberRootID returns the expected id of the number container.
func NumberRootID(fileID string) string {
	return "kvg:StrokeNumbers_" + fileID
}

// GroupID returns the expected id of the n-th stroke group in pre-order.
// The root stroke group is n = 0.
func GroupID(fileID string, n int) string {
	if n == 0 {
		return "kvg:" + fileID
	}
	return fmt.Sprintf("kvg:%s-g%d", fileID, n)
}

// StrokeID returns the expected id of the n-th stroke in pre-order,
// counting from 1.
func StrokeID(fileID string, n int) string {
	return fmt.Sprintf("kvg:%s-s%d", fileID, n)
}
