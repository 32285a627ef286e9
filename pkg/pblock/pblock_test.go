package pblock

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindValFirstMatchWins(t *testing.T) {
	b := FromPairs("fn", "steeze_Service", "x", "1", "x", "2")

	v, ok := b.FindVal("x")
	require.True(t, ok)
	require.Equal(t, "1", v)

	_, ok = b.FindVal("missing")
	require.False(t, ok)
}

func TestRemove(t *testing.T) {
	b := FromPairs("a", "1", "b", "2", "a", "3")

	p := b.Remove("a")
	require.NotNil(t, p)
	require.Equal(t, "1", p.Value)
	p.Free()
	require.True(t, p.Freed())

	v, ok := b.FindVal("a")
	require.True(t, ok)
	require.Equal(t, "3", v)
	require.Equal(t, 2, b.Len())

	require.Nil(t, b.Remove("zzz"))
	require.Equal(t, 2, b.Len())
}

func TestString(t *testing.T) {
	cases := []struct {
		name string
		in   *Block
		want string
	}{
		{"empty", New(), ""},
		{"single", FromPairs("module", "steeze"), `module="steeze"`},
		{"ordered", FromPairs("b", "2", "a", "1"), `b="2" a="1"`},
		{"quoted", FromPairs("q", `say "hi"`), `q="say \"hi\""`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.in.String())
		})
	}
}

func TestFromHeader(t *testing.T) {
	h := http.Header{}
	h.Add("Accept", "text/html")
	h.Add("X-Multi", "one")
	h.Add("X-Multi", "two")

	b := FromHeader(h)
	require.Equal(t, []Param{
		{Name: "accept", Value: "text/html"},
		{Name: "x-multi", Value: "one"},
		{Name: "x-multi", Value: "two"},
	}, b.Params())
}

func TestSet(t *testing.T) {
	b := FromPairs("content-type", "text/plain")
	b.Set("content-type", "text/html")
	b.Set("location", "/x")

	require.Equal(t, `content-type="text/html" location="/x"`, b.String())
}
