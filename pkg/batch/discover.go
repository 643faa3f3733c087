// Package batch finds diagram files and processes them in parallel.
package batch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/adammathes/kvgverify/pkg/kvg"
)

// Filter selects files by id with '*' wildcard patterns. A file matches
// when its whole id matches an included pattern and no excluded one.
type Filter struct {
	included []*regexp.Regexp
	excluded []*regexp.Regexp
}

// NewFilter compiles the wildcard patterns. Everything except '*' matches
// literally.
func NewFilter(included, excluded []string) Filter {
	return Filter{included: compile(included), excluded: compile(excluded)}
}

func compile(patterns []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		parts := strings.Split(p, "*")
		for i := range parts {
			parts[i] = regexp.QuoteMeta(parts[i])
		}
		res = append(res, regexp.MustCompile("^"+strings.Join(parts, ".*")+"$"))
	}
	return res
}

// Match reports whether fileID passes the filter.
func (f Filter) Match(fileID string) bool {
	in := false
	for _, re := range f.included {
		if re.MatchString(fileID) {
			in = true
			break
		}
	}
	if !in {
		return false
	}
	for _, re := range f.excluded {
		if re.MatchString(fileID) {
			return false
		}
	}
	return true
}

// Discover walks dir and returns the regular .svg files accepted by f,
// sorted by path.
func Discover(dir string, f Filter) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || !strings.EqualFold(filepath.Ext(path), ".svg") {
			return nil
		}
		if f.Match(kvg.FileID(path)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
