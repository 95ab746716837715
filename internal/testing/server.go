package testing

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Alia5/btkeyboard/internal/server"
	"github.com/Alia5/btkeyboard/sink"
)

// StartEventServer runs an event server on a loopback port that records every
// report. It is closed when the test ends.
func StartEventServer(t *testing.T, cfg server.ServerConfig, opts ...server.Option) (*server.Server, *sink.Recorder) {
	t.Helper()
	rec := sink.NewRecorder()
	cfg.Addr = "127.0.0.1:0"
	srv := server.New(cfg, sink.NewShared(rec), slog.New(slog.DiscardHandler), opts...)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		t.Fatalf("event server failed: %v", err)
	case <-srv.Ready():
	}
	t.Cleanup(func() {
		require.NoError(t, srv.Close())
		require.NoError(t, <-errCh)
	})
	return srv, rec
}
