package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeServer answers requests on the far end of a pipe.
type fakeServer struct {
	conn net.Conn
	in   *bufio.Scanner
}

func newPipe(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	a, b := net.Pipe()
	c := NewClient(a, discardLogger())
	t.Cleanup(func() {
		c.Close()
		b.Close()
	})
	return c, &fakeServer{conn: b, in: bufio.NewScanner(b)}
}

func (s *fakeServer) next(t *testing.T) request {
	t.Helper()
	require.True(t, s.in.Scan(), "expected a request")
	var req request
	require.NoError(t, json.Unmarshal(s.in.Bytes(), &req))
	return req
}

func (s *fakeServer) send(t *testing.T, v any) {
	t.Helper()
	line, err := json.Marshal(v)
	require.NoError(t, err)
	_, err = s.conn.Write(append(line, '\n'))
	require.NoError(t, err)
}

type cmdResult struct {
	data json.RawMessage
	err  error
}

func TestClient_Command_success(t *testing.T) {
	c, srv := newPipe(t)

	res := make(chan cmdResult, 1)
	go func() {
		data, err := c.Command(context.Background(), "get_property", "duration")
		res <- cmdResult{data, err}
	}()

	req := srv.next(t)
	require.Equal(t, []any{"get_property", "duration"}, req.Command)
	srv.send(t, map[string]any{"error": "success", "data": 123.5, "request_id": req.RequestID})

	r := <-res
	require.NoError(t, r.err)
	require.JSONEq(t, "123.5", string(r.data))
}

func TestClient_Command_error_reply(t *testing.T) {
	c, srv := newPipe(t)

	res := make(chan cmdResult, 1)
	go func() {
		_, err := c.Command(context.Background(), "get_property", "nope")
		res <- cmdResult{err: err}
	}()

	req := srv.next(t)
	srv.send(t, map[string]any{"error": "property not found", "request_id": req.RequestID})

	err := (<-res).err
	require.ErrorIs(t, err, ErrCommand)
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	require.Equal(t, "get_property", cmdErr.Command)
	require.Equal(t, "property not found", cmdErr.Reason)
}

func TestClient_replies_matched_by_request_id(t *testing.T) {
	c, srv := newPipe(t)

	first := make(chan cmdResult, 1)
	second := make(chan cmdResult, 1)
	go func() {
		data, err := c.Command(context.Background(), "get_property", "speed")
		first <- cmdResult{data, err}
	}()
	req1 := srv.next(t)
	go func() {
		data, err := c.Command(context.Background(), "get_property", "pause")
		second <- cmdResult{data, err}
	}()
	req2 := srv.next(t)

	srv.send(t, map[string]any{"error": "success", "data": true, "request_id": req2.RequestID})
	srv.send(t, map[string]any{"error": "success", "data": 1.5, "request_id": req1.RequestID})

	r1, r2 := <-first, <-second
	require.NoError(t, r1.err)
	require.NoError(t, r2.err)
	require.JSONEq(t, "1.5", string(r1.data))
	require.JSONEq(t, "true", string(r2.data))
}

func TestClient_Events(t *testing.T) {
	c, srv := newPipe(t)

	go srv.conn.Write([]byte(`{"event":"property-change","id":3,"name":"speed","data":2}` + "\n"))

	select {
	case ev := <-c.Events():
		require.Equal(t, "property-change", ev.Event)
		require.Equal(t, int64(3), ev.ID)
		require.Equal(t, "speed", ev.Name)
		require.JSONEq(t, "2", string(ev.Data))
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestClient_Command_context_cancelled(t *testing.T) {
	c, srv := newPipe(t)
	go func() {
		for srv.in.Scan() {
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Command(ctx, "get_property", "path")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Close_fails_pending(t *testing.T) {
	c, srv := newPipe(t)

	res := make(chan cmdResult, 1)
	go func() {
		_, err := c.Command(context.Background(), "get_property", "path")
		res <- cmdResult{err: err}
	}()
	srv.next(t)

	require.NoError(t, c.Close())
	require.ErrorIs(t, (<-res).err, ErrClosed)

	_, err := c.Command(context.Background(), "get_property", "path")
	require.True(t, errors.Is(err, ErrClosed))

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed")
	}
}
