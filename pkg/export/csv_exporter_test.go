package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeCSV(t *testing.T) {
	cases := map[string]string{
		"plain":              "plain",
		"":                   "",
		" leading space":     " leading space",
		"a,b":                `"a,b"`,
		"Hello, \"world\"\n": "\"Hello, \"\"world\"\"\n\"",
		"line\nbreak":        "\"line\nbreak\"",
		"carriage\rreturn":   "carriage\rreturn",
	}
	for in, want := range cases {
		assert.Equal(t, want, EscapeCSV(in), "input %q", in)
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"a", "b"},
		Rows: []map[string]string{
			{"a": "1", "b": "x,y"},
			{"a": "2"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\"x,y\"\n2,", string(out))
}

func TestCSVExporterHeaderOnly(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{Headers: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "a,b", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}
