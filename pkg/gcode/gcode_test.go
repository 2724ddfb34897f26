package gcode

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		line   string
		name   string
		params []Param
		empty  bool
		err    bool
	}{
		{line: "", empty: true},
		{line: "   \r\n", empty: true},
		{line: "; comment", empty: true},
		{line: "# comment", empty: true},
		{line: "G5 Z0 C1 P500", name: "G5", params: []Param{{'Z', "0"}, {'C', "1"}, {'P', "500"}}},
		{line: "g5 z0 c1 p-500 ; reverse", name: "G5", params: []Param{{'Z', "0"}, {'C', "1"}, {'P', "-500"}}},
		{line: "M798", name: "M798"},
		{line: "M81 X", name: "M81", params: []Param{{'X', ""}}},
		{line: "G1.0", name: "G1"},
		{line: "N10 G5", err: true},
		{line: "T0", err: true},
		{line: "Gx", err: true},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			l, err := Parse(tc.line)
			if tc.err {
				require.IsType(t, &CodeError{}, err)
				return
			}
			require.NoError(t, err)
			if tc.empty {
				require.Nil(t, l)
				return
			}
			require.Equal(t, tc.name, l.Name())
			require.Equal(t, tc.params, l.Params)
		})
	}
}

func TestParams(t *testing.T) {
	l, err := Parse("M33 Z2 P9 D30.5 E1 P10 S")
	require.NoError(t, err)
	require.True(t, l.Seen('p'))
	require.False(t, l.Seen('C'))

	v, ok := l.Int('P')
	require.True(t, ok)
	require.Equal(t, 9, v)

	f, ok := l.Float('D')
	require.True(t, ok)
	require.Equal(t, 30.5, f)
	v, _ = l.Int('D')
	require.Equal(t, 30, v)

	v, ok = l.Int('S')
	require.True(t, ok)
	require.Equal(t, 0, v)

	require.Equal(t, 1, l.IntOr('C', 1))
	require.Equal(t, 2, l.IntOr('Z', 0))
	require.Equal(t, "M33 Z2 P9 D30.5 E1 P10 S", l.String())
}

func TestIntRange(t *testing.T) {
	cases := []struct {
		value  string
		expect int
	}{
		{"1e20", math.MaxInt32},
		{"-1e20", math.MinInt32},
		{"Inf", math.MaxInt32},
		{"-Inf", math.MinInt32},
		{"NaN", 0},
		{"-12.9", -12},
	}
	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			l, err := Parse("G5 P" + tc.value)
			require.NoError(t, err)
			v, ok := l.Int('P')
			require.True(t, ok)
			require.Equal(t, tc.expect, v)
		})
	}
}

func TestFrames(t *testing.T) {
	require.Equal(t, "<G5/>", Ack("G5"))
	require.Equal(t, []string{"<motorfault>", "1 Overheat", "</motorfault>"}, Report("motorfault", "1 Overheat"))

	lines := append([]string{Ack("G5")}, Report("M798", "Z0 HBridge", "C1 power=0")...)
	lines = append(lines, Report("M704")...)
	names, bodies, err := SplitFrames(lines)
	require.NoError(t, err)
	require.Equal(t, []string{"G5", "M798", "M704"}, names)
	require.Equal(t, [][]string{nil, {"Z0 HBridge", "C1 power=0"}, {}}, bodies)
}

func TestBadFrames(t *testing.T) {
	for _, lines := range [][]string{
		nil,
		{"G5"},
		{"</G5>"},
		{"<M798>", "Z0"},
		{"<M798"},
	} {
		_, _, _, err := ParseFrame(lines)
		require.Equal(t, ErrBadFrame, errors.Cause(err))
	}
}
