package assistant

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigComplete(t *testing.T) {
	c := DefaultConfig()
	assert.Contains(t, c.Template, "{{.Message}}")
	for name, v := range map[string]string{
		"no_response":  c.Messages.NoResponse,
		"unavailable":  c.Messages.Unavailable,
		"no_tables":    c.Messages.NoTables,
		"rejected":     c.Messages.Rejected,
		"confirmed":    c.Messages.Confirmed,
		"retry":        c.Messages.Retry,
		"email_failed": c.Messages.EmailFailed,
		"unknown_slot": c.Messages.UnknownSlot,
		"past_date":    c.Messages.PastDate,
		"fallback":     c.Parser.Fallback,
		"invalid_time": c.Parser.InvalidTime,
	} {
		assert.NotEmpty(t, v, name)
	}
}

func TestLoadConfigOverridesSomeKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
messages:
  retry: "Try again later."
parser:
  invalid_date: "Bad date {value}"
`), 0o600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	def := DefaultConfig()
	assert.Equal(t, "Try again later.", c.Messages.Retry)
	assert.Equal(t, def.Messages.Confirmed, c.Messages.Confirmed)
	assert.Equal(t, "Bad date {value}", c.Parser.InvalidDate)
	assert.Equal(t, def.Template, c.Template)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("messages: [unclosed"), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestFill(t *testing.T) {
	assert.Equal(t, "Reserva #4 el 2025-10-04", fill("Reserva #{id} el {date}", "id", "4", "date", "2025-10-04"))
	assert.Equal(t, "sin {cambios}", fill("sin {cambios}"))
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"hola":                                      "hola",
		"<script>alert(1)</script>reserva":          "reserva",
		"<SCRIPT src=x>\nalert(1)\n</script > mesa": "mesa",
		`<img src=x onerror="alert(1)">`:            `<img src=x>`,
		`<b onclick='x()' onmouseover=y>hola</b>`:   `<b>hola</b>`,
		"<script>sin cierre":                        "sin cierre",
	}
	for in, want := range cases {
		assert.Equal(t, want, Sanitize(in), in)
	}

	long := make([]rune, MaxMessageLen+50)
	for i := range long {
		long[i] = 'ñ'
	}
	assert.Len(t, []rune(Sanitize(string(long))), MaxMessageLen)
}
