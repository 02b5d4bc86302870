package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sandlib "github.com/AnishMulay/sandblock/clients/library"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	content := fmt.Sprintf(`
mode: embedded
logging:
  path: %s
dummy_server:
  enabled: false
embedded:
  chunk_size: 65536
  root_password: secret
  metadata:
    type: badger
    badger:
      dir: %s
  chunk:
    type: localdisc
    localdisc:
      dir: %s
`, t.TempDir(), t.TempDir(), t.TempDir())
	p := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := GetRootCmd()
	resetFlags(cmd.PersistentFlags())
	for _, sub := range cmd.Commands() {
		resetFlags(sub.Flags())
	}

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// resetFlags undoes the previous Execute, which leaves values and Changed set.
func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func TestCommands_Namespace(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "--config", cfg, "-u", "alice", "mkdir", "/vol")
	require.NoError(t, err)
	_, err = run(t, "--config", cfg, "-u", "alice", "create", "/vol/disk", "--size", "1048576")
	require.NoError(t, err)

	out, err := run(t, "--config", cfg, "-u", "alice", "ls", "/vol")
	require.NoError(t, err)
	assert.Contains(t, out, "disk")
	assert.Contains(t, out, "1048576")
	assert.Contains(t, out, "alice")

	_, err = run(t, "--config", cfg, "-u", "alice", "extend", "/vol/disk", "2097152")
	require.NoError(t, err)
	out, err = run(t, "--config", cfg, "-u", "alice", "stat", "/vol/disk")
	require.NoError(t, err)
	assert.Contains(t, out, "2097152")

	_, err = run(t, "--config", cfg, "-u", "bob", "chown", "/vol/disk", "bob")
	assert.Equal(t, sandlib.CodeAuthFail, sandlib.CodeOf(err))
	_, err = run(t, "--config", cfg, "-u", "root", "--password", "secret", "chown", "/vol/disk", "bob")
	require.NoError(t, err)

	_, err = run(t, "--config", cfg, "-u", "alice", "rmdir", "/vol")
	assert.Equal(t, sandlib.CodeNotEmpty, sandlib.CodeOf(err))

	_, err = run(t, "--config", cfg, "-u", "bob", "rm", "/vol/disk")
	require.NoError(t, err)
	_, err = run(t, "--config", cfg, "-u", "alice", "rmdir", "/vol")
	require.NoError(t, err)
}

func TestCommands_PutGet(t *testing.T) {
	cfg := writeConfig(t)

	local := filepath.Join(t.TempDir(), "in.bin")
	data := bytes.Repeat([]byte("sandblock"), 1000)
	require.NoError(t, os.WriteFile(local, data, 0o644))

	out, err := run(t, "--config", cfg, "-u", "alice", "put", "--create", local, "/img")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 12288 bytes")

	dst := filepath.Join(t.TempDir(), "out.bin")
	_, err = run(t, "--config", cfg, "-u", "alice", "get", "/img", "-o", dst)
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Len(t, got, 12288)
	assert.Equal(t, data, got[:len(data)])
	assert.Equal(t, make([]byte, 12288-len(data)), got[len(data):])

	_, err = run(t, "--config", cfg, "-u", "alice", "mv", "/img", "/img2")
	require.NoError(t, err)
	_, err = run(t, "--config", cfg, "-u", "alice", "stat", "/img")
	assert.Equal(t, sandlib.CodeNotExist, sandlib.CodeOf(err))
}

func TestCommands_Args(t *testing.T) {
	_, err := run(t, "create", "/x")
	assert.Error(t, err)

	_, err = run(t, "extend", "/x", "big")
	assert.ErrorContains(t, err, "invalid size")

	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "ls", "/")
	assert.Error(t, err)
}
