package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
	"github.com/gdamore/tcell/v2"
	toml "github.com/pelletier/go-toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/btkeyboard/apitypes"
	"github.com/Alia5/btkeyboard/client"
	"github.com/Alia5/btkeyboard/device/keyboard"
	"github.com/Alia5/btkeyboard/internal/log"
	"github.com/Alia5/btkeyboard/internal/server"
)

var quiet = slog.New(slog.DiscardHandler)

func hexSink() SinkConfig { return SinkConfig{Kind: "hex", Packing: "combined"} }

// syncBuffer is written by server goroutines and read by the test.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestType(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Type
		stdin   string
		piped   bool
		want    string
		wantErr string
	}{
		{
			name: "arguments",
			cmd:  Type{Sink: hexSink(), Text: []string{"H", "i"}},
			want: "02 00 0b 00 00 00 00 00  Shift+H\n" +
				"00 00 00 00 00 00 00 00  release\n" +
				"00 00 2c 00 00 00 00 00  Space\n" +
				"00 00 00 00 00 00 00 00  release\n" +
				"00 00 0c 00 00 00 00 00  I\n" +
				"00 00 00 00 00 00 00 00  release\n",
		},
		{
			name:  "piped stdin",
			cmd:   Type{Sink: hexSink()},
			stdin: "1\r\n",
			piped: true,
			want: "00 00 1e 00 00 00 00 00  1\n" +
				"00 00 00 00 00 00 00 00  release\n" +
				"00 00 28 00 00 00 00 00  Enter\n" +
				"00 00 00 00 00 00 00 00  release\n",
		},
		{
			name:    "nothing to type",
			cmd:     Type{Sink: hexSink()},
			wantErr: "nothing to type",
		},
		{
			name:    "bad packing",
			cmd:     Type{Sink: SinkConfig{Kind: "null", Packing: "zigzag"}, Text: []string{"a"}},
			wantErr: "unknown packing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := tt.cmd.run(context.Background(), quiet, log.NewRaw(nil), strings.NewReader(tt.stdin), tt.piped, &out)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestSend(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "unlock.txt")
	require.NoError(t, os.WriteFile(script, []byte("# unlock\nchord Ctrl+Alt+Del\n\nkey Enter\n"), 0o644))

	var out bytes.Buffer
	s := Send{Sink: hexSink(), Events: []string{"mod Win", "char r"}, Script: script}
	require.NoError(t, s.run(context.Background(), quiet, log.NewRaw(nil), nil, &out))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "08 00 15 00 00 00 00 00  Win+R", lines[0])
	assert.Equal(t, "05 00 4c 00 00 00 00 00  Ctrl+Alt+Delete", lines[2])
	assert.Equal(t, "00 00 28 00 00 00 00 00  Enter", lines[4])

	out.Reset()
	s = Send{Sink: SinkConfig{Kind: "hex", Packing: "legacy"}, Script: "-"}
	require.NoError(t, s.run(context.Background(), quiet, log.NewRaw(nil), strings.NewReader("chord Ctrl+Alt+Del\n"), &out))
	assert.True(t, strings.HasPrefix(out.String(), "01 00 04 4c 00 00 00 00  "), out.String())

	err := (&Send{Sink: hexSink(), Events: []string{"press x"}}).run(context.Background(), quiet, log.NewRaw(nil), nil, io.Discard)
	assert.Error(t, err)

	err = (&Send{Sink: hexSink()}).run(context.Background(), quiet, log.NewRaw(nil), nil, io.Discard)
	assert.ErrorContains(t, err, "no events")
}

func TestSinkConfigOpen(t *testing.T) {
	_, err := SinkConfig{Kind: "ezkey"}.Open(quiet, nil, nil, io.Discard)
	assert.ErrorContains(t, err, "--sink.device")

	_, err = SinkConfig{Kind: "bogus"}.Open(quiet, nil, nil, io.Discard)
	assert.Error(t, err)

	_, err = SinkConfig{Kind: "hidg", Device: filepath.Join(t.TempDir(), "missing", "hidg0")}.Open(quiet, nil, nil, io.Discard)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "dump.txt")
	var raw bytes.Buffer
	out, err := SinkConfig{Kind: "hex", Output: path}.Open(quiet, log.NewRaw(&raw), nil, io.Discard)
	require.NoError(t, err)
	opts, err := SinkConfig{}.EngineOptions(quiet)
	require.NoError(t, err)
	keyboard.New(out, opts...).SendCharacter('a')
	require.NoError(t, out.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "00 00 04 00 00 00 00 00  A\n00 00 00 00 00 00 00 00  release\n", string(b))
	assert.Contains(t, raw.String(), "down 8 bytes: 00 00 04 00 00 00 00 00")
}

func TestKeys(t *testing.T) {
	tables := BuildKeyTables()
	assert.Len(t, tables.Chars, 48)
	assert.Len(t, tables.ShiftedChars, 47)
	assert.NotEmpty(t, tables.NamedKeys)

	var out bytes.Buffer
	require.NoError(t, (&Keys{Format: "json"}).run(&out))
	var fromJSON KeyTables
	require.NoError(t, json.Unmarshal(out.Bytes(), &fromJSON))
	assert.Equal(t, tables, fromJSON)

	out.Reset()
	require.NoError(t, (&Keys{Format: "yaml"}).run(&out))
	var fromYAML KeyTables
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &fromYAML))
	assert.Equal(t, tables, fromYAML)

	out.Reset()
	require.NoError(t, (&Keys{Format: "toml"}).run(&out))
	assert.Contains(t, out.String(), "[[namedKeys]]")

	out.Reset()
	require.NoError(t, (&Keys{Format: "text"}).run(&out))
	assert.Contains(t, out.String(), "named keys")
	assert.Contains(t, out.String(), "space")
}

// configTestCLI mirrors the root command line for the config scaffolding.
type configTestCLI struct {
	Config    string        `help:"Path to a config file" type:"path"`
	Log       log.Config    `embed:"" prefix:"log."`
	Type      Type          `cmd:""`
	Serve     Serve         `cmd:""`
	ConfigCmd ConfigCommand `cmd:"" name:"config"`
}

func newConfigTestApp(t *testing.T, cli *configTestCLI, opts ...kong.Option) *kong.Kong {
	t.Helper()
	opts = append([]kong.Option{kong.Name("btkeyboard"), kong.Exit(func(int) { t.Fatal("kong exited") })}, opts...)
	k, err := kong.New(cli, opts...)
	require.NoError(t, err)
	return k
}

func TestConfigInit(t *testing.T) {
	loaders := map[string]kong.ConfigurationLoader{
		"json": kong.JSON,
		"yaml": kongyaml.Loader,
		"toml": kongtoml.Loader,
	}
	dir := t.TempDir()
	for _, format := range []string{"json", "yaml", "toml"} {
		t.Run(format, func(t *testing.T) {
			k := newConfigTestApp(t, &configTestCLI{})
			dest := filepath.Join(dir, "serve."+format)
			c := ConfigInit{Command: "serve", Format: format, Output: dest}
			require.NoError(t, c.Run(k))

			data, err := os.ReadFile(dest)
			require.NoError(t, err)
			switch format {
			case "json":
				var root map[string]any
				require.NoError(t, json.Unmarshal(data, &root))
				srv := root["server"].(map[string]any)
				assert.Equal(t, "127.0.0.1:3250", srv["addr"])
				assert.Equal(t, "5m", srv["connection_timeout"])
				assert.Equal(t, false, srv["require_auth"])
				assert.NotContains(t, srv, "key_file")
				assert.Equal(t, "hex", root["sink"].(map[string]any)["kind"])
				assert.Equal(t, 9600.0, root["sink"].(map[string]any)["baud"])
				assert.Equal(t, "info", root["log"].(map[string]any)["level"])
				assert.NotContains(t, root, "config")
			case "yaml":
				var root map[string]any
				require.NoError(t, yaml.Unmarshal(data, &root))
				assert.Equal(t, "info", root["log.level"])
				serve := root["serve"].(map[string]any)
				assert.Equal(t, "127.0.0.1:3250", serve["server.addr"])
				assert.Equal(t, "combined", serve["sink.packing"])
				assert.Contains(t, string(data), "# How several latched modifiers are packed into a report (one of: combined, legacy)")
			case "toml":
				tree, err := toml.LoadBytes(data)
				require.NoError(t, err)
				root := tree.ToMap()
				assert.Equal(t, "127.0.0.1:3250", root["server.addr"])
				assert.Equal(t, int64(9600), root["sink.baud"])
				assert.Equal(t, "text", root["log.format"])
				assert.Contains(t, string(data), "one of: hex, hidg, ezkey, null")
			}

			assert.Error(t, c.Run(k), "refuses to overwrite without --force")
			c.Force = true
			require.NoError(t, c.Run(k))

			// The file must load back through the loader for its format.
			edited := strings.ReplaceAll(string(data), "127.0.0.1:3250", "127.0.0.1:4000")
			edited = strings.ReplaceAll(edited, "9600", "19200")
			edited = strings.ReplaceAll(edited, "combined", "legacy")
			require.NoError(t, os.WriteFile(dest, []byte(edited), 0o644))

			var cli configTestCLI
			loaded := newConfigTestApp(t, &cli, kong.Configuration(loaders[format], dest))
			_, err = loaded.Parse([]string{"serve"})
			require.NoError(t, err)
			assert.Equal(t, "127.0.0.1:4000", cli.Serve.ServerConfig.Addr)
			assert.Equal(t, 5*time.Minute, cli.Serve.ServerConfig.ConnectionTimeout)
			assert.Equal(t, 19200, cli.Serve.Sink.Baud)
			assert.Equal(t, "legacy", cli.Serve.Sink.Packing)
			assert.Equal(t, "info", cli.Log.Level)
		})
	}

	k := newConfigTestApp(t, &configTestCLI{})
	dest := filepath.Join(dir, "type.json")
	require.NoError(t, (&ConfigInit{Command: "type", Format: "json", Output: dest}).Run(k))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"text"`)
	assert.NotContains(t, string(data), `"server"`)

	assert.ErrorContains(t, (&ConfigInit{Command: "send", Format: "json", Output: dest, Force: true}).Run(k), "unknown command")
	assert.ErrorContains(t, (&ConfigInit{Command: "serve", Format: "ini"}).Run(k), "unsupported format")
}

func TestServeStartServer(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "key.txt")
	s := Serve{
		ServerConfig:  server.ServerConfig{Addr: "127.0.0.1:0", KeyFile: keyFile},
		Sink:          hexSink(),
		MetricsConfig: MetricsConfig{Addr: "127.0.0.1:0"},
	}
	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer
	ready := make(chan *server.Server, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- s.StartServer(ctx, quiet, log.NewRaw(nil), &out, ready) }()

	var srv *server.Server
	select {
	case srv = <-ready:
	case err := <-errCh:
		t.Fatalf("server failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server not ready")
	}

	pw, err := os.ReadFile(keyFile)
	require.NoError(t, err)
	assert.Len(t, string(pw), 16)
	assert.Equal(t, string(pw), s.ServerConfig.Password)

	c, err := client.New(ctx, srv.Addr().String())
	require.NoError(t, err)
	resp, err := c.Chord(ctx, "Ctrl", "c")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Sent)
	require.NoError(t, c.Close())

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, "01 00 06 00 00 00 00 00  Ctrl+C\n00 00 00 00 00 00 00 00  release\n", out.String())
}

func TestServeRequireAuth(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "key.txt")
	require.NoError(t, os.WriteFile(keyFile, []byte("hunter2\n"), 0o600))
	s := Serve{
		ServerConfig: server.ServerConfig{Addr: "127.0.0.1:0", KeyFile: keyFile, RequireAuth: true},
		Sink:         SinkConfig{Kind: "null"},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan *server.Server, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- s.StartServer(ctx, quiet, log.NewRaw(nil), io.Discard, ready) }()
	srv := <-ready

	c, err := client.NewWithConfig(ctx, srv.Addr().String(), &client.Config{Password: "hunter2"})
	require.NoError(t, err)
	resp, err := c.Key(ctx, "Enter")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Sent)
	require.NoError(t, c.Close())

	plain, err := client.New(ctx, srv.Addr().String())
	require.NoError(t, err)
	_, err = plain.Ping(ctx)
	var apiErr *apitypes.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	require.NoError(t, plain.Close())

	cancel()
	require.NoError(t, <-errCh)
}

func TestServeMetricsEndpoint(t *testing.T) {
	s := Serve{
		ServerConfig:  server.ServerConfig{Addr: "127.0.0.1:0", Password: "metrics"},
		Sink:          SinkConfig{Kind: "null"},
		MetricsConfig: MetricsConfig{Addr: freeAddr(t)},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan *server.Server, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- s.StartServer(ctx, quiet, log.NewRaw(nil), io.Discard, ready) }()
	<-ready

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + s.MetricsConfig.Addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, body, "btkeyboard_connections")

	cancel()
	require.NoError(t, <-errCh)
}

func TestTermRun(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	defer screen.Fini()

	require.NoError(t, screen.PostEvent(tcell.NewEventKey(tcell.KeyRune, '$', tcell.ModNone)))
	require.NoError(t, screen.PostEvent(tcell.NewEventKey(tcell.KeyCtrlQ, 0, tcell.ModCtrl)))

	var out bytes.Buffer
	term := Term{Sink: hexSink()}
	require.NoError(t, term.run(context.Background(), screen, quiet, log.NewRaw(nil), &out))
	assert.Equal(t, "02 00 21 00 00 00 00 00  Shift+4\n00 00 00 00 00 00 00 00  release\n", out.String())
}
