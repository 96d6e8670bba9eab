package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"serve", "check", "version"} {
		found, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, found.Name())
	}
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("env-file"))
}

func TestRootHelp(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	require.Contains(t, out, "serve")
	require.Contains(t, out, "check")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "speechgate ")
}

func TestCheckCommand(t *testing.T) {
	path := writeConfig(t, `
name: speechgate
server:
  port: 9100
scheduler:
  workers: 3
transcription:
  api_prefix: /api/v1
  backend: whisper
  backends:
    whisper:
      url: http://localhost:9000
`)

	out, err := run(t, "check", "--config", path)
	require.NoError(t, err)
	require.Contains(t, out, "configuration ok")
	require.Contains(t, out, ":9100")
	require.Contains(t, out, "POST /api/v1/audio/transcriptions")
	require.Contains(t, out, "backend:  whisper")
	require.Contains(t, out, "workers:  3")
}

func TestCheckCommandRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"negative workers", "scheduler:\n  workers: -2\n", "scheduler"},
		{"unknown backend", "transcription:\n  backend: parakeet\n", "parakeet"},
		{"bad body size", "server:\n  max_body_size: huge\n", "server"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "check", "--config", writeConfig(t, tt.body))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestServeRejectsExtraArgs(t *testing.T) {
	_, err := run(t, "serve", "now")
	require.Error(t, err)
}
