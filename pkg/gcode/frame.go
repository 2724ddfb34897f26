package gcode

import (
	"strings"

	"github.com/pkg/errors"
)

// Frame markers.
const (
	Begin     = "<"
	Delimiter = ">"
	End       = "</"
	Terminate = "/>"
)

// ErrBadFrame is returned by ParseFrame for lines not shaped as a frame.
var ErrBadFrame = errors.New("malformed frame")

// Ack frames a single-line response, like <G5/>. Error frames use it
// with a descriptive header.
func Ack(header string) string {
	return Begin + header + Terminate
}

// Report frames a multi-line response.
func Report(name string, lines ...string) []string {
	out := make([]string, 0, len(lines)+2)
	out = append(out, Begin+name+Delimiter)
	out = append(out, lines...)
	return append(out, End+name+Delimiter)
}

// ParseFrame parses the first frame in lines and returns its name, its
// body and the number of lines consumed.
func ParseFrame(lines []string) (name string, body []string, n int, err error) {
	if len(lines) == 0 {
		return "", nil, 0, ErrBadFrame
	}
	head := lines[0]
	switch {
	case strings.HasPrefix(head, End) || !strings.HasPrefix(head, Begin):
		return "", nil, 0, errors.Wrapf(ErrBadFrame, "%q", head)
	case strings.HasSuffix(head, Terminate):
		return head[len(Begin) : len(head)-len(Terminate)], nil, 1, nil
	case !strings.HasSuffix(head, Delimiter):
		return "", nil, 0, errors.Wrapf(ErrBadFrame, "%q", head)
	}
	name = head[len(Begin) : len(head)-len(Delimiter)]
	closing := End + name + Delimiter
	for i := 1; i < len(lines); i++ {
		if lines[i] == closing {
			return name, lines[1:i], i + 1, nil
		}
	}
	return "", nil, 0, errors.Wrapf(ErrBadFrame, "%s not closed", name)
}

// SplitFrames parses every frame in lines.
func SplitFrames(lines []string) ([]string, [][]string, error) {
	var names []string
	var bodies [][]string
	for len(lines) > 0 {
		name, body, n, err := ParseFrame(lines)
		if err != nil {
			return names, bodies, err
		}
		names, bodies = append(names, name), append(bodies, body)
		lines = lines[n:]
	}
	return names, bodies, nil
}
