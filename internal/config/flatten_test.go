package config

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) Value {
	t.Helper()
	v, err := Parse([]byte(src), "test.yaml")
	require.NoError(t, err)
	return v
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []Pair
	}{
		{
			name: "plain pairs keep order",
			src: `
conf:
  - [MACHINE, qemux86-64]
  - [DISTRO, poky]
`,
			want: []Pair{{"MACHINE", "qemux86-64"}, {"DISTRO", "poky"}},
		},
		{
			name: "group is unwrapped in place",
			src: `
conf:
  - [A, "1"]
  - [[B, "2"], [C, "3"]]
  - [D, "4"]
`,
			want: []Pair{{"A", "1"}, {"B", "2"}, {"C", "3"}, {"D", "4"}},
		},
		{
			name: "aliased group",
			src: `
common: &common
  - [MACHINE, h3ulcb]
  - [DISTRO, poky]
conf:
  - *common
  - [IMAGE_FSTYPES, ext4]
`,
			want: []Pair{{"MACHINE", "h3ulcb"}, {"DISTRO", "poky"}, {"IMAGE_FSTYPES", "ext4"}},
		},
		{
			name: "duplicates are preserved",
			src: `
conf:
  - [A, x]
  - [A, y]
`,
			want: []Pair{{"A", "x"}, {"A", "y"}},
		},
		{
			name: "empty list",
			src:  `conf: []`,
			want: []Pair{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, ok := mustParse(t, tt.src).Get("conf")
			require.True(t, ok)

			got, err := Flatten(conf)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Flatten() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFlattenErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
		line    int
	}{
		{
			name:    "scalar entry",
			src:     "conf:\n  - [A, b]\n  - oops\n",
			wantMsg: `expected array on "conf[1]" node`,
			line:    3,
		},
		{
			name:    "mapping entry inside group",
			src:     "conf:\n  - [[A, b], {x: y}]\n",
			wantMsg: `expected array on "conf[0][1]" node`,
			line:    2,
		},
		{
			name:    "nested too deep",
			src:     "conf:\n  - [[[A, b]]]\n",
			wantMsg: "too deeply nested entry",
			line:    2,
		},
		{
			name:    "three elements",
			src:     "conf:\n  - [A, b, c]\n",
			wantMsg: "got 3 elements",
			line:    2,
		},
		{
			name:    "empty entry",
			src:     "conf:\n  - []\n",
			wantMsg: "empty entry",
			line:    2,
		},
		{
			name:    "not a list",
			src:     "conf: {A: b}\n",
			wantMsg: "expected an array",
			line:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, ok := mustParse(t, tt.src).Get("conf")
			require.True(t, ok)

			_, err := Flatten(conf)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			var cerr *Error
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, "test.yaml", cerr.Mark.File)
			assert.Equal(t, tt.line, cerr.Mark.Line)
		})
	}
}
