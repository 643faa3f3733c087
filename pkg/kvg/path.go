package kvg

import (
	"fmt"
	"regexp"
	"strconv"
)

const numberPattern = `[-+]?(?:[0-9]*\.)?[0-9]+(?:[eE][-+]?[0-9]+)?`

var pathStart = regexp.MustCompile(`^\s*[Mm]\s*(` + numberPattern + `)[\s,]*(` + numberPattern + `)`)

// Start returns the coordinate of the leading move-to command of the
// stroke's path data.
func (s *Stroke) Start() (Point, error) {
	return MoveTo(s.Path)
}

// MoveTo parses the leading move-to coordinate of SVG path data.
func MoveTo(path string) (Point, error) {
	m := pathStart.FindStringSubmatch(path)
	if m == nil {
		return Point{}, fmt.Errorf("path %q has invalid starting segment: must start with a move-to command", path)
	}
	x, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Point{}, fmt.Errorf("path %q: %w", path, err)
	}
	y, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Point{}, fmt.Errorf("path %q: %w", path, err)
	}
	return Point{X: x, Y: y}, nil
}
