package serialmux

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ericbrian/track-me-sub001/internal/gps"
	"github.com/ericbrian/track-me-sub001/internal/monitoring"
)

const fixLine = `{"lat":51.5007,"lon":-0.1246,"alt":12,"hacc":4,"vacc":6,"course":90,"speed":1.2,"time":"2024-05-01T10:00:00Z"}`

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		require.True(t, ok, "channel closed")
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
		return ""
	}
}

func TestSendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	require.NoError(t, mux.SendCommand("O=JSON"))
	require.NoError(t, mux.SendCommand("T=UTC\n"))
	assert.Equal(t, "O=JSON\nT=UTC\n", port.WrittenData())

	port.WriteError = errors.New("boom")
	assert.EqualError(t, mux.SendCommand("X"), "boom")

	port.ShortWrite = true
	assert.ErrorIs(t, mux.SendCommand("X"), ErrWriteFailed)
}

func TestInitializeAndSetInterval(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	require.NoError(t, mux.Initialize(time.Second))
	require.NoError(t, mux.SetInterval(2500*time.Millisecond))
	assert.Equal(t, "O=JSON\nT=UTC\nI=1000\nI=2500\n", port.WrittenData())

	assert.Error(t, mux.SetInterval(0))
	assert.Equal(t, "I=30000", IntervalCommand(30*time.Second))
}

func TestMonitor_FansOutToEverySubscriber(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	_, a := mux.Subscribe()
	idB, b := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.AddReadData("first\r\n\nsecond\n")
	assert.Equal(t, "first", receive(t, a))
	assert.Equal(t, "second", receive(t, a))
	assert.Equal(t, "first", receive(t, b))
	assert.Equal(t, "second", receive(t, b))

	mux.Unsubscribe(idB)
	_, ok := <-b
	assert.False(t, ok, "unsubscribed channel is closed")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMonitor_ReturnsAtEOF(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	port.AddReadData("only\n")
	port.Close()

	require.NoError(t, mux.Monitor(context.Background()))
}

func TestClose_ClosesSubscribers(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Close())
	_, ok := <-ch
	assert.False(t, ok)
	assert.Error(t, mux.SendCommand("X"), "port is closed")
}

func TestClassifyPayload(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{fixLine, EventTypeFix},
		{`{"status":"no fix","sats":3}`, EventTypeStatus},
		{"$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47", EventTypeNMEA},
		{"ok", EventTypeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyPayload(tt.line), tt.line)
	}
}

func TestDecodeFixes(t *testing.T) {
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) { logged = append(logged, format) })
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	lines := make(chan string, 5)
	lines <- "$GPRMC,ignored"
	lines <- `{"status":"acquiring"}`
	lines <- `{"lat":1,"lon":2}`
	lines <- fixLine
	lines <- "I=1000"
	close(lines)

	var fixes []gps.Fix
	for f := range DecodeFixes(context.Background(), lines) {
		fixes = append(fixes, f)
	}
	require.Len(t, fixes, 1)
	assert.Equal(t, 51.5007, fixes[0].Latitude)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), fixes[0].Timestamp)
	assert.Len(t, logged, 1, "fix without a time is logged and dropped")
}

func TestDecodeFixes_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	lines := make(chan string, 1)
	lines <- fixLine
	out := DecodeFixes(ctx, lines)
	cancel()

	// the pending fix may or may not be delivered; the channel must close
	for range out {
	}
}

func TestReplayPort(t *testing.T) {
	port := NewReplayPort(strings.NewReader(fixLine+"\n"+fixLine+"\n"), 0)
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	assert.Equal(t, fixLine, receive(t, ch))
	assert.Equal(t, fixLine, receive(t, ch))
	require.NoError(t, <-done)

	n, err := port.Write([]byte("I=1000\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	require.NoError(t, port.Close())
	require.NoError(t, port.Close())

	_, err = port.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestDisabledSerialMux(t *testing.T) {
	d := NewDisabledSerialMux()
	var _ SerialMuxInterface = d

	id, ch := d.Subscribe()
	assert.NoError(t, d.SendCommand("I=1000"))
	assert.NoError(t, d.SetInterval(time.Second))
	d.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)

	_, ch = d.Subscribe()
	require.NoError(t, d.Close())
	_, ok = <-ch
	assert.False(t, ok)
	require.NoError(t, d.Close())

	_, ch = d.Subscribe()
	_, ok = <-ch
	assert.False(t, ok, "subscribing after close yields a closed channel")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Monitor(ctx), context.Canceled)
}

func TestAdminRoutes(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	var _ SerialMuxInterface = mux

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)
	srv := httptest.NewServer(httpMux)
	defer srv.Close()

	resp, err := http.PostForm(srv.URL+"/debug/send-command-api", url.Values{"command": {"I=5000"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "I=5000\n", port.WrittenData())

	resp, err = http.PostForm(srv.URL+"/debug/send-command-api", url.Values{})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/debug/send-command-api")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/debug/tail.js")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "application/javascript", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "EventSource")
}

func TestTailStreamsEvents(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)
	srv := httptest.NewServer(httpMux)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/debug/tail", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// the subscription exists once the ping has been flushed
	buf := make([]byte, len(": ping\n\n"))
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)

	port.AddReadData(fixLine + "\n")
	want := "event: fix\ndata: " + fixLine + "\n\n"
	got := make([]byte, len(want))
	_, err = io.ReadFull(resp.Body, got)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
}
