// Package gcode tokenizes G/M command lines and frames responses.
package gcode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CodeError reports a first token that is not a G or M code.
type CodeError struct {
	Token string
}

// Error implements error.
func (e *CodeError) Error() string {
	return "Unknown code " + e.Token
}

// Param is one letter-prefixed parameter token.
type Param struct {
	Letter byte
	Value  string
}

// Line is a tokenized command line.
type Line struct {
	Family byte
	Code   int
	Params []Param
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// Parse tokenizes s. Blank lines and comments give a nil Line and no error.
func Parse(s string) (*Line, error) {
	if pos := strings.IndexByte(s, ';'); pos >= 0 {
		s = s[:pos]
	}
	s = strings.TrimSpace(s)
	if s == "" || s[0] == '#' {
		return nil, nil
	}
	fields := strings.Fields(s)
	head := fields[0]
	family := upper(head[0])
	if family != 'G' && family != 'M' {
		return nil, &CodeError{Token: head}
	}
	code, err := strconv.ParseFloat(head[1:], 64)
	if err != nil || code < 0 {
		return nil, &CodeError{Token: head}
	}
	l := &Line{Family: family, Code: int(code)}
	for _, tok := range fields[1:] {
		l.Params = append(l.Params, Param{Letter: upper(tok[0]), Value: tok[1:]})
	}
	return l, nil
}

// Name is the canonical opcode, like G5 or M798.
func (l *Line) Name() string {
	return fmt.Sprintf("%c%d", l.Family, l.Code)
}

func (l *Line) String() string {
	var sb strings.Builder
	sb.WriteString(l.Name())
	for _, p := range l.Params {
		sb.WriteByte(' ')
		sb.WriteByte(p.Letter)
		sb.WriteString(p.Value)
	}
	return sb.String()
}

func (l *Line) find(letter byte) (string, bool) {
	letter = upper(letter)
	for _, p := range l.Params {
		if p.Letter == letter {
			return p.Value, true
		}
	}
	return "", false
}

// Seen tells if the parameter is present. The first occurrence wins.
func (l *Line) Seen(letter byte) bool {
	_, ok := l.find(letter)
	return ok
}

// Float gets a parameter as a number. A present parameter without a
// parsable value, or with NaN, reads as 0.
func (l *Line) Float(letter byte) (float64, bool) {
	s, ok := l.find(letter)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, true
	}
	return v, true
}

// Int gets a parameter truncated to an integer, saturated to the int32
// range so the sign of out of range values survives.
func (l *Line) Int(letter byte) (int, bool) {
	v, ok := l.Float(letter)
	switch {
	case v >= math.MaxInt32:
		return math.MaxInt32, ok
	case v <= math.MinInt32:
		return math.MinInt32, ok
	}
	return int(v), ok
}

// IntOr gets a parameter or def when absent.
func (l *Line) IntOr(letter byte, def int) int {
	if v, ok := l.Int(letter); ok {
		return v
	}
	return def
}
