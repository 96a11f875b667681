package cmdline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"q", []string{"q"}},
		{"q hdb.q -p 15005", []string{"q", "hdb.q", "-p", "15005"}},
		{"  spaced\tout  ", []string{"spaced", "out"}},
		{`cmd "a b" c`, []string{"cmd", `"a b"`, "c"}},
		{`cmd 'a b'`, []string{"cmd", `'a b'`}},
		{`C:\q\w64\q.exe hdb.q`, []string{`C:\q\w64\q.exe`, "hdb.q"}},
		{`cmd "unterminated rest`, []string{"cmd", `"unterminated rest`}},
		{`q -libs "libA libB"`, []string{"q", "-libs", `"libA libB"`}},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, Split(c.in), "input: %q", c.in)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Split("q hdb.q -p 5000"), Split("q  hdb.q  -p 5000")))
	assert.False(t, Equal(Split("q hdb.q"), Split("q rdb.q")))
	assert.False(t, Equal(Split("q hdb.q"), Split("q hdb.q -p 5000")))
	assert.True(t, Equal(nil, nil))
}
