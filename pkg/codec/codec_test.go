package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `json:"name"`
	HTML string `json:"html"`
}

func TestJSONStrictKeepsHTMLAndTrimsNewline(t *testing.T) {
	b, err := JSONStrict.Marshal(sample{Name: "x", HTML: "<b>"})
	require.NoError(t, err)
	require.Equal(t, `{"name":"x","html":"<b>"}`, string(b))
}

func TestJSONStrictRejects(t *testing.T) {
	var s sample
	require.ErrorContains(t, JSONStrict.Unmarshal([]byte(`{"name":"x","extra":1}`), &s), "json decode")
	require.ErrorContains(t, JSONStrict.Unmarshal([]byte(`{"name":"x"} {}`), &s), "trailing")
	require.NoError(t, JSONStrict.Unmarshal([]byte(`{"name":"x"}`), &s))
	require.Equal(t, "x", s.Name)
}
