package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/server/httpapi"
	"github.com/dmitrijs2005/gophxfer/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelay(t *testing.T) string {
	t.Helper()
	return newRelayWithSecret(t, []byte("cli-test-secret"))
}

func newRelayWithSecret(t *testing.T, deleteSecret []byte) string {
	t.Helper()
	dir := t.TempDir()

	blobs, err := storage.NewFSBlobStore(dir)
	require.NoError(t, err)
	index, err := storage.NewSidecarIndex(dir)
	require.NoError(t, err)
	e, err := storage.New(storage.Options{
		DataDir: dir,
		MaxSize: 1 << 20,
		TTL:     time.Hour,
		Blobs:   blobs,
		Index:   index,
	})
	require.NoError(t, err)
	require.NoError(t, e.Restore(context.Background()))

	srv := httptest.NewServer(httpapi.NewServer(httpapi.Options{
		Store:             e,
		DeleteTokenSecret: deleteSecret,
	}).Handler())
	t.Cleanup(srv.Close)

	t.Setenv("XFER_CLIENT_RETRIES", "0")
	return srv.URL
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

var (
	keyRe   = regexp.MustCompile(`download (\S+) -o`)
	tokenRe = regexp.MustCompile(`--token (\S+)`)
)

func upload(t *testing.T, server, content string) (key, token string) {
	t.Helper()
	src := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(src, []byte(content), 0o600))

	out, _, err := run(t, "", "upload", src, "-y", "-s", server)
	require.NoError(t, err)
	assert.Contains(t, out, "Created transfer for 'hello.txt'")
	assert.Contains(t, out, "-s "+server)
	assert.Contains(t, out, "This transfer will expire")

	m := keyRe.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	tm := tokenRe.FindStringSubmatch(out)
	require.Len(t, tm, 2, out)
	return m[1], tm[1]
}

func TestUploadDownload(t *testing.T) {
	server := newRelay(t)
	key, _ := upload(t, server, "hello recipient")

	dest := t.TempDir()
	out, _, err := run(t, "", "download", key, "-o", dest, "-y", "-s", server)
	require.NoError(t, err)
	assert.Contains(t, out, "Downloaded hello.txt")

	b, err := os.ReadFile(filepath.Join(dest, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello recipient", string(b))
}

func TestDownload_PromptsForSecretAndConfirmation(t *testing.T) {
	stubTerminal(t, false, "", nil)
	server := newRelay(t)
	key, _ := upload(t, server, "prompted")
	id, secret, ok := strings.Cut(key, "/")
	require.True(t, ok)

	dest := t.TempDir()
	out, errOut, err := run(t, secret+"\ny\n", "download", id, "-o", dest, "-s", server)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Enter transfer secret")
	assert.Contains(t, errOut, "[y/N]")
	assert.Contains(t, out, "Downloaded hello.txt")
}

func TestDownload_Declined(t *testing.T) {
	server := newRelay(t)
	key, _ := upload(t, server, "not now")

	dest := t.TempDir()
	out, _, err := run(t, "n\n", "download", key, "-o", dest, "-s", server)
	require.NoError(t, err)
	assert.Empty(t, out)

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownload_UsesConfiguredDirectory(t *testing.T) {
	server := newRelay(t)
	key, _ := upload(t, server, "env dir")

	dest := t.TempDir()
	t.Setenv("XFER_CLIENT_DOWNLOAD_DIRECTORY", dest)
	t.Setenv("XFER_CLIENT_NOCONFIRM", "true")
	_, _, err := run(t, "", "download", key, "-s", server)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dest, "hello.txt"))
}

func TestDownload_Errors(t *testing.T) {
	server := newRelay(t)

	_, _, err := run(t, "", "download", "some-key", "-s", server)
	assert.ErrorContains(t, err, "output directory is required")

	_, _, err = run(t, "", "download", "Not/Valid", "-o", t.TempDir(), "-s", server)
	assert.Error(t, err)

	_, _, err = run(t, "", "download", "a-b-c/secret", "-o", filepath.Join(t.TempDir(), "missing"), "-s", server)
	assert.Error(t, err)
}

func TestUpload_Declined(t *testing.T) {
	server := newRelay(t)
	src := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	out, errOut, err := run(t, "no\n", "upload", src, "-s", server)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "Upload '"+src+"'?")
}

func TestInfoAndDelete(t *testing.T) {
	server := newRelay(t)
	key, token := upload(t, server, "short lived")
	id, _, _ := strings.Cut(key, "/")

	out, _, err := run(t, "", "info", id, "-s", server)
	require.NoError(t, err)
	assert.Contains(t, out, "Transfer: "+id)
	assert.Contains(t, out, "Expires:")

	_, _, err = run(t, "", "delete", id, "-s", server)
	assert.Error(t, err, "token flag is required")

	_, _, err = run(t, "", "delete", id, "--token", "forged", "-s", server)
	assert.Error(t, err)

	out, _, err = run(t, "", "delete", id, "--token", token, "-s", server)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted transfer "+id)

	_, _, err = run(t, "", "info", id, "-s", server)
	assert.ErrorContains(t, err, "not found")
}

func TestConfigCommand(t *testing.T) {
	server := newRelay(t)
	out, _, err := run(t, "", "config", "-s", server)
	require.NoError(t, err)
	assert.Contains(t, out, "Max size:     1.0 MB")
	assert.Contains(t, out, "Expire after: 1h0m0s")
}

func TestVersionCommand(t *testing.T) {
	t.Setenv("XFER_CLIENT_RELAY_SERVER", "not a url")
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Build version:")
}

func TestBadServer(t *testing.T) {
	_, _, err := run(t, "", "config", "-s", "ftp://example.org")
	assert.Error(t, err)
}

func TestUpload_NoDeleteHintWithoutToken(t *testing.T) {
	server := newRelayWithSecret(t, nil)
	src := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	out, _, err := run(t, "", "upload", src, "-y", "-s", server)
	require.NoError(t, err)
	assert.Contains(t, out, "Created transfer for 'f.txt'")
	assert.NotContains(t, out, "--token")
}
