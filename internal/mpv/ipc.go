package mpv

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"m3uplay/internal/engine"
)

const requestTimeout = 5 * time.Second

type request struct {
	Command   []interface{} `json:"command"`
	RequestID int64         `json:"request_id"`
}

// message is either a reply (RequestID set, Event empty) or an event.
type message struct {
	RequestID int64           `json:"request_id"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Event     string          `json:"event,omitempty"`
	ID        int64           `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	FileError string          `json:"file_error,omitempty"`
}

// ipcClient speaks mpv's newline-delimited JSON protocol. Replies are routed
// to the waiting caller by request_id; everything else goes to onEvent on
// the reader goroutine.
type ipcClient struct {
	conn    net.Conn
	wmu     sync.Mutex
	enc     *json.Encoder
	nextID  atomic.Int64
	closing atomic.Bool
	onEvent func(message)
	onClose func(error)

	mu      sync.Mutex
	pending map[int64]chan message
	closed  bool
	done    chan struct{}
}

func newIPCClient(conn net.Conn, onEvent func(message), onClose func(error)) *ipcClient {
	c := &ipcClient{
		conn:    conn,
		enc:     json.NewEncoder(conn),
		onEvent: onEvent,
		onClose: onClose,
		pending: map[int64]chan message{},
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *ipcClient) command(args ...interface{}) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan message, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, engine.ErrEngineGone
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.wmu.Lock()
	err := c.enc.Encode(request{Command: args, RequestID: id})
	c.wmu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("mpv ipc write failed: %w", err)
	}

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()
	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, engine.ErrEngineGone
		}
		if msg.Error != "" && msg.Error != "success" {
			return nil, fmt.Errorf("mpv %v: %s", args[0], msg.Error)
		}
		return msg.Data, nil
	case <-timer.C:
		c.forget(id)
		return nil, fmt.Errorf("mpv %v: no reply within %s", args[0], requestTimeout)
	}
}

func (c *ipcClient) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *ipcClient) readLoop() {
	defer close(c.done)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		if msg.Event != "" {
			c.onEvent(msg)
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[msg.RequestID]
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}

	c.mu.Lock()
	wasClosed := c.closed
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !wasClosed && !c.closing.Load() && c.onClose != nil {
		err := scanner.Err()
		if err == nil {
			err = engine.ErrEngineGone
		}
		c.onClose(err)
	}
}

// expectClose marks a peer hang-up as intentional, e.g. after "quit".
func (c *ipcClient) expectClose() {
	c.closing.Store(true)
}

// close shuts the connection and waits for the reader to finish.
func (c *ipcClient) close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}
