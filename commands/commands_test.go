package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aethersecure/config"
	"aethersecure/crypto"
	"aethersecure/discovery"
	"aethersecure/storage"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := NewRootCommand("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeCover(t *testing.T, path string, width, height int) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 0x40, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestTextEncryptDecrypt(t *testing.T) {
	out, err := runCLI(t, "", "text", "encrypt", "--shift", "3", "--key", "k", "HELLO")
	require.NoError(t, err)
	require.Equal(t, "ICMkJDk=\n", out)

	out, err = runCLI(t, "ICMkJDk=\n", "text", "decrypt", "-s", "3", "-k", "k")
	require.NoError(t, err)
	require.Equal(t, "HELLO\n", out)

	_, err = runCLI(t, "", "text", "encrypt", "--shift", "0", "--key", "k", "HELLO")
	require.ErrorIs(t, err, crypto.ErrInvalidKey)

	_, err = runCLI(t, "", "text", "encrypt", "--shift", "3", "HELLO")
	require.Error(t, err)
}

func TestFileEncryptDecrypt(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(input, []byte("quarterly numbers"), 0o600))

	_, err := runCLI(t, "", "file", "encrypt", "--password", "pw", input)
	require.NoError(t, err)
	encrypted := filepath.Join(dir, "report.pdf.enc")
	blob, err := os.ReadFile(encrypted)
	require.NoError(t, err)
	require.Len(t, blob, crypto.HeaderSize+len("quarterly numbers"))

	require.NoError(t, os.Remove(input))
	t.Setenv(filePasswordEnv, "pw")
	_, err = runCLI(t, "", "file", "decrypt", encrypted)
	require.NoError(t, err)
	restored, err := os.ReadFile(input)
	require.NoError(t, err)
	require.Equal(t, "quarterly numbers", string(restored))

	out, err := runCLI(t, "", "file", "decrypt", "--out", "-", encrypted)
	require.NoError(t, err)
	require.Equal(t, "quarterly numbers", out)

	_, err = runCLI(t, "", "file", "decrypt", "--password", "wrong", "--out", "-", encrypted)
	require.ErrorIs(t, err, crypto.ErrDecryptionFailed)
}

func TestFileEncryptRequiresPassword(t *testing.T) {
	t.Setenv(filePasswordEnv, "")
	input := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(input, []byte("a"), 0o600))

	_, err := runCLI(t, "", "file", "encrypt", input)
	require.ErrorContains(t, err, "password is required")
}

func TestStegoCommands(t *testing.T) {
	dir := t.TempDir()
	cover := filepath.Join(dir, "holiday.png")
	writeCover(t, cover, 10, 10)

	out, err := runCLI(t, "", "stego", "capacity", cover)
	require.NoError(t, err)
	require.Equal(t, "30\n", out)

	_, err = runCLI(t, "", "stego", "hide", "--message", "café at 9", cover)
	require.NoError(t, err)

	out, err = runCLI(t, "", "stego", "extract", filepath.Join(dir, "stego_holiday.png"))
	require.NoError(t, err)
	require.Equal(t, "café at 9\n", out)

	_, err = runCLI(t, "", "stego", "hide", "--message", strings.Repeat("x", 31), cover)
	require.Error(t, err)
}

func TestFaceCompare(t *testing.T) {
	probe := filepath.Join(t.TempDir(), "probe.json")
	require.NoError(t, os.WriteFile(probe, []byte("[0.9, 0.1, 0]\n"), 0o600))

	out, err := runCLI(t, "", "face", "compare", "[1,0,0]", probe)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(out, "match=true\n"), out)

	out, err = runCLI(t, "", "face", "compare", "[1,0,0]", "[0,1,0]")
	require.NoError(t, err)
	require.Equal(t, "similarity=0.0000 match=false\n", out)

	_, err = runCLI(t, "", "face", "compare", "[1,0]", "[1,0,0]")
	require.Error(t, err)
}

func TestDiscoverPrintsInstances(t *testing.T) {
	previous := browseInstances
	t.Cleanup(func() { browseInstances = previous })

	var gotTimeout time.Duration
	browseInstances = func(ctx context.Context, cfg discovery.Config) ([]discovery.Instance, error) {
		gotTimeout = cfg.ScanTimeout
		return []discovery.Instance{{
			InstanceID: "id-1",
			Name:       "Attic",
			Port:       8000,
			Addresses:  []string{"10.0.0.2"},
			Version:    1,
			ScanOrder:  discovery.ScanOrderRecord(),
		}}, nil
	}

	out, err := runCLI(t, "", "discover", "--timeout", "250ms")
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, gotTimeout)
	require.Contains(t, out, "Attic")
	require.Contains(t, out, "http://10.0.0.2:8000")

	out, err = runCLI(t, "", "discover", "--json")
	require.NoError(t, err)
	var decoded []discovery.Instance
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 1)
	require.Equal(t, "id-1", decoded[0].InstanceID)
}

func TestNewLoggerOverrides(t *testing.T) {
	cfg := &config.VaultConfig{LogLevel: "info", LogFormat: config.LogFormatText}

	logger, err := newLogger(cfg, &globalOptions{logLevel: "debug", logFormat: "json"}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, logrus.DebugLevel, logger.GetLevel())
	require.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	_, err = newLogger(cfg, &globalOptions{logLevel: "loud"}, io.Discard)
	require.Error(t, err)
	_, err = newLogger(cfg, &globalOptions{logFormat: "xml"}, io.Discard)
	require.Error(t, err)
}

func TestServeStartsAndShutsDown(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(config.DataDirEnv, dataDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, &globalOptions{logLevel: "error"}, serveOptions{
			listenAddress: "127.0.0.1:0",
			noMDNS:        true,
			ready:         func(addr net.Addr) { ready <- addr },
		}, io.Discard)
	}()

	var addr net.Addr
	select {
	case addr = <-ready:
	case err := <-done:
		require.FailNow(t, "serve exited early", "%v", err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "serve did not become ready")
	}

	resp, err := http.Get("http://" + addr.String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "serve did not shut down")
	}

	require.FileExists(t, filepath.Join(dataDir, "vault.db"))
	require.FileExists(t, filepath.Join(dataDir, "keys", "token_signing_private.pem"))
	require.FileExists(t, config.ConfigPath(dataDir))
}

func TestEventsListsSecurityEvents(t *testing.T) {
	dataDir := t.TempDir()
	// --data-dir exports the override; t.Setenv restores it afterwards.
	t.Setenv(config.DataDirEnv, "")
	store, _, err := storage.Open(dataDir)
	require.NoError(t, err)
	account := "mallory"
	require.NoError(t, store.LogSecurityEvent(storage.SecurityEvent{
		EventType: storage.SecurityEventLoginFailed,
		Account:   &account,
		Details:   `{"reason":"bad_password"}`,
		Severity:  storage.SecuritySeverityWarning,
	}))
	require.NoError(t, store.Close())

	out, err := runCLI(t, "", "--data-dir", dataDir, "events", "--account", "mallory")
	require.NoError(t, err)
	require.Contains(t, out, storage.SecurityEventLoginFailed)
	require.Contains(t, out, "mallory")

	out, err = runCLI(t, "", "--data-dir", dataDir, "events", "--account", "alice")
	require.NoError(t, err)
	require.NotContains(t, out, "mallory")
}
