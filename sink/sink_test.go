package sink_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/btkeyboard/device/keyboard"
	"github.com/Alia5/btkeyboard/internal/log"
	"github.com/Alia5/btkeyboard/sink"
)

type fakePort struct {
	bytes.Buffer
	writes int
	err    error
	closed bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.writes++
	if p.err != nil {
		return 0, p.err
	}
	return p.Buffer.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func typeDollar(s keyboard.Sink) {
	keyboard.New(s).SendCharacter('$')
}

func TestWriter(t *testing.T) {
	port := &fakePort{}
	w := sink.NewWriter(port, slog.Default())
	typeDollar(w)

	assert.Equal(t, 2, port.writes)
	assert.Equal(t, []byte{
		0x02, 0x00, 0x21, 0, 0, 0, 0, 0,
		0x00, 0x00, 0x00, 0, 0, 0, 0, 0,
	}, port.Bytes())
	require.NoError(t, w.Close())
	assert.True(t, port.closed)
}

func TestWriter_ErrorIsLoggedNotPropagated(t *testing.T) {
	var logs bytes.Buffer
	port := &fakePort{err: errors.New("endpoint shutdown")}
	w := sink.NewWriter(port, slog.New(slog.NewTextHandler(&logs, nil)))

	assert.NotPanics(t, func() { typeDollar(w) })
	assert.Equal(t, 2, port.writes)
	assert.Equal(t, 2, strings.Count(logs.String(), "endpoint shutdown"))
}

func TestOpenHIDGadget_MissingDevice(t *testing.T) {
	_, err := sink.OpenHIDGadget(t.TempDir()+"/hidg9", nil)
	assert.Error(t, err)
}

func TestEZKeyFraming(t *testing.T) {
	port := &fakePort{}
	k := sink.NewEZKey(port, nil)

	e := keyboard.New(k)
	e.ToggleModifier("Ctrl")
	e.SendCharWithModifiers('c')

	assert.Equal(t, []byte{
		0xFD, 0x01, 0x00, 0x06, 0, 0, 0, 0, 0,
		0xFD, 0x00, 0x00, 0x00, 0, 0, 0, 0, 0,
	}, port.Bytes())
	require.NoError(t, k.Close())
	assert.True(t, port.closed)
}

func TestHex(t *testing.T) {
	var out bytes.Buffer
	typeDollar(sink.NewHex(&out))
	assert.Equal(t,
		"02 00 21 00 00 00 00 00  Shift+4\n"+
			"00 00 00 00 00 00 00 00  release\n",
		out.String())
}

func TestHexLegacyPacking(t *testing.T) {
	var out bytes.Buffer
	h := sink.NewHex(&out).WithPacking(keyboard.PackingLegacy)
	e := keyboard.New(h, keyboard.WithPacking(keyboard.PackingLegacy))
	e.ToggleModifier("Ctrl")
	e.ToggleModifier("Alt")
	e.SendKeyWithModifiers("Del")
	assert.Equal(t,
		"01 00 04 4c 00 00 00 00  Ctrl+0x04+Delete\n"+
			"00 00 00 00 00 00 00 00  release\n",
		out.String())
}

func TestRawAndMulti(t *testing.T) {
	var dump bytes.Buffer
	a, b := sink.NewRecorder(), sink.NewRecorder()
	s := sink.NewRaw(sink.Multi{a, b}, log.NewRaw(&dump))

	keyboard.New(s).SendSpecialKey("Enter")

	assert.Equal(t, a.Reports(), b.Reports())
	assert.Equal(t, 2, a.Len())
	assert.Contains(t, dump.String(), "down 8 bytes: 00 00 28 00 00 00 00 00")
	assert.Contains(t, dump.String(), "up   8 bytes: 00 00 00 00 00 00 00 00")
}

func TestCounting(t *testing.T) {
	reports := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "reports_total"}, []string{"kind"})
	s := sink.NewCounting(sink.Discard, reports)
	e := keyboard.New(s)
	e.SendCharacter('a')
	e.SendCharacter('b')
	e.SendCharacter('\x00')

	assert.Equal(t, 2.0, testutil.ToFloat64(reports.WithLabelValues("down")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reports.WithLabelValues("up")))
}

func TestSharedKeepsPairsAdjacent(t *testing.T) {
	rec := sink.NewRecorder()
	shared := sink.NewShared(rec)

	var wg sync.WaitGroup
	for _, ch := range "abcdefgh" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := keyboard.New(shared)
			for range 20 {
				shared.Run(func() { e.SendCharacter(ch) })
			}
		}()
	}
	wg.Wait()

	reports := rec.Reports()
	require.Len(t, reports, 8*20*2)
	for i := 0; i < len(reports); i += 2 {
		assert.False(t, reports[i].IsRelease())
		assert.True(t, reports[i+1].IsRelease())
	}
}

func TestRecorderReset(t *testing.T) {
	rec := sink.NewRecorder()
	keyboard.New(rec).SendCharacter('z')
	assert.Len(t, rec.Bytes(), 2)
	rec.Reset()
	assert.Zero(t, rec.Len())
}
