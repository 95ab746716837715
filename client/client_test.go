package client_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/btkeyboard/apitypes"
	"github.com/Alia5/btkeyboard/client"
	"github.com/Alia5/btkeyboard/device/keyboard"
	"github.com/Alia5/btkeyboard/internal/server"
	th "github.com/Alia5/btkeyboard/internal/testing"
)

func TestMockTransport(t *testing.T) {
	var lines []string
	tr := client.NewMockTransport(func(line string) (string, error) {
		lines = append(lines, line)
		switch {
		case line == "ping":
			return `{"server":"btkeyboard","version":"1.0"}`, nil
		case line == "key Bogus":
			return `{"sent":0,"dropped":1,"latched":[]}`, nil
		case line == "char ab":
			return `{"status":400,"title":"Bad Request","detail":"syntax error"}`, nil
		}
		return `{"sent":1,"dropped":0,"latched":[]}`, nil
	})
	c := client.WithTransport(tr)
	ctx := context.Background()

	ping, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.0", ping.Version)

	resp, err := c.Key(ctx, "Bogus")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Dropped)

	_, err = c.Raw(ctx, "char ab")
	var apiErr *apitypes.ApiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Status)

	_, err = c.Text(ctx, "a\\b\nc\td")
	require.NoError(t, err)
	_, err = c.Chord(ctx, "Ctrl", "+")
	require.NoError(t, err)

	assert.Equal(t, []string{"ping", "key Bogus", "char ab", `text a\\b\nc\td`, "chord Ctrl++"}, lines)

	_, err = c.Chord(ctx)
	assert.Error(t, err)
	_, err = c.Raw(ctx, "char a\nchar b")
	assert.Error(t, err)
}

func TestClientAgainstServer(t *testing.T) {
	srv, rec := th.StartEventServer(t, server.ServerConfig{})

	ctx := context.Background()
	c, err := client.New(ctx, srv.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Mod(ctx, "Win")
	require.NoError(t, err)
	st, err := c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Win"}, st.Latched)

	resp, err := c.Char(ctx, 'r')
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Sent)
	assert.Empty(t, resp.Latched)

	resp, err = c.Text(ctx, "a\tb€")
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Sent)
	assert.Equal(t, 1, resp.Dropped)

	_, err = c.Raw(ctx, "bogus line")
	var apiErr *apitypes.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)

	reports := rec.Reports()
	require.Len(t, reports, 8)
	assert.Equal(t, uint8(keyboard.ModLeftGUI), reports[0].Modifiers)
	assert.Equal(t, uint8(keyboard.KeyR), reports[0].Keys[0])
	assert.Equal(t, uint8(keyboard.KeyTab), reports[4].Keys[0])
}

func TestClientPassword(t *testing.T) {
	srv, rec := th.StartEventServer(t, server.ServerConfig{Password: "s3cret", RequireAuth: true})
	ctx := context.Background()
	addr := srv.Addr().String()

	c, err := client.NewWithConfig(ctx, addr, &client.Config{Password: "s3cret"})
	require.NoError(t, err)
	defer c.Close()
	resp, err := c.Chord(ctx, "Ctrl", "Alt", "Del")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Sent)
	require.Equal(t, 2, rec.Len())

	_, err = client.NewWithConfig(ctx, addr, &client.Config{Password: "nope"})
	var apiErr *apitypes.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)

	plain, err := client.New(ctx, addr)
	require.NoError(t, err)
	defer plain.Close()
	_, err = plain.Ping(ctx)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, 2, rec.Len())
}
