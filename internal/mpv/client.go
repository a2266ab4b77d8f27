// Package mpv talks to a running mpv player over its JSON IPC socket and
// exposes the loaded file as a media.Handle.
package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
)

var (
	ErrClosed  = errors.New("mpv connection closed")
	ErrCommand = errors.New("mpv command failed")
)

// CommandError is an error reply from mpv.
type CommandError struct {
	Command string
	Reason  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("mpv %s: %s", e.Command, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return ErrCommand
}

// Event is an asynchronous message from mpv.
type Event struct {
	Event  string          `json:"event"`
	ID     int64           `json:"id,omitempty"`
	Name   string          `json:"name,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// message is any line mpv writes: a reply carries request_id and error,
// an event carries event.
type message struct {
	Event
	RequestID int64  `json:"request_id"`
	Error     string `json:"error"`
}

type reply struct {
	data json.RawMessage
	err  string
}

const (
	eventBuffer = 256
	maxLineSize = 1 << 20
)

// Client is a connection to one mpv instance. It is safe for concurrent use.
type Client struct {
	conn io.ReadWriteCloser
	log  *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan reply
	closed  bool

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the mpv IPC socket at path.
func Dial(ctx context.Context, path string, log *slog.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial mpv socket %s: %w", path, err)
	}
	return NewClient(conn, log), nil
}

// NewClient starts reading from conn. The client owns conn.
func NewClient(conn io.ReadWriteCloser, log *slog.Logger) *Client {
	c := &Client{
		conn:    conn,
		log:     log,
		pending: make(map[int64]chan reply),
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Events delivers mpv events. The channel is closed when the connection ends.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed once the connection has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close ends the connection. Pending commands fail with ErrClosed.
func (c *Client) Close() error {
	err := c.conn.Close()
	c.shutdown()
	return err
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Client) readLoop() {
	defer close(c.events)
	defer c.shutdown()

	sc := bufio.NewScanner(c.conn)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		var msg message
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			c.log.Warn("malformed mpv message", slog.String("error", err.Error()))
			continue
		}
		if msg.Event.Event != "" {
			select {
			case c.events <- msg.Event:
			case <-c.done:
				return
			}
			continue
		}
		c.resolve(msg.RequestID, reply{data: msg.Data, err: msg.Error})
	}
	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.log.Error("mpv connection read failed", slog.String("error", err.Error()))
	}
}

func (c *Client) resolve(id int64, r reply) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		c.log.Debug("reply for unknown request", slog.Int64("request_id", id))
		return
	}
	ch <- r
}

// Command sends args as an mpv command and waits for its reply.
func (c *Client) Command(ctx context.Context, args ...any) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, errors.New("mpv: empty command")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan reply, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	line, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("encode mpv command: %w", err)
	}
	line = append(line, '\n')

	c.writeMu.Lock()
	_, err = c.conn.Write(line)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("write mpv command: %w", err)
	}

	select {
	case r, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if r.err != "success" {
			return nil, &CommandError{Command: fmt.Sprint(args[0]), Reason: r.err}
		}
		return r.data, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// GetProperty reads name into out.
func (c *Client) GetProperty(ctx context.Context, name string, out any) error {
	data, err := c.Command(ctx, "get_property", name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode property %s: %w", name, err)
	}
	return nil
}

// SetProperty writes value to name.
func (c *Client) SetProperty(ctx context.Context, name string, value any) error {
	_, err := c.Command(ctx, "set_property", name, value)
	return err
}

// ObserveProperty asks mpv to send property-change events for name,
// tagged with id.
func (c *Client) ObserveProperty(ctx context.Context, id int64, name string) error {
	_, err := c.Command(ctx, "observe_property", id, name)
	return err
}
