package copilot

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
)

// The CLI server speaks newline-delimited JSON-RPC 2.0 on stdio. Requests we
// send carry an id; server notifications (session events) carry none.

type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// rpcConn multiplexes calls and notifications over a single pipe pair.
type rpcConn struct {
	w  io.Writer
	r  io.Reader
	wc io.Closer

	writeMu sync.Mutex
	nextID  atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan *rpcMessage

	// notify receives server-initiated messages (no id). Set before start.
	notify func(method string, params json.RawMessage)

	closeOnce sync.Once
	done      chan struct{}
}

func newRPCConn(w io.WriteCloser, r io.Reader) *rpcConn {
	return &rpcConn{
		w:       w,
		r:       r,
		wc:      w,
		pending: make(map[int64]chan *rpcMessage),
		done:    make(chan struct{}),
	}
}

func (c *rpcConn) start() {
	go c.readLoop()
}

func (c *rpcConn) readLoop() {
	scanner := bufio.NewScanner(c.r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg rpcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			log.WithError(err).Warn("discarding unparseable server message")
			continue
		}

		if msg.ID == nil {
			if c.notify != nil {
				c.notify(msg.Method, msg.Params)
			}
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[*msg.ID]
		if ok {
			delete(c.pending, *msg.ID)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- &msg
		}
	}

	c.failPending()
	c.closeOnce.Do(func() { close(c.done) })
}

// failPending unblocks callers waiting on a connection that went away.
func (c *rpcConn) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- nil
	}
}

// call sends a request and waits for its response or ctx expiry.
func (c *rpcConn) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	id := c.nextID.Add(1)
	msg := rpcMessage{JSONRPC: "2.0", ID: &id, Method: method, Params: raw}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	ch := make(chan *rpcMessage, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	_, err = c.w.Write(append(payload, '\n'))
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeUnavailable).
			WithMsg("write to copilot server failed").
			WithCause(err)
	}

	select {
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, ctx.Err()
	case resp := <-ch:
		if resp == nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeUnavailable).
				WithMsg("copilot server connection closed")
		}
		if resp.Error != nil {
			return nil, errbuilder.New().
				WithCode(codeForRPCError(resp.Error)).
				WithMsg(resp.Error.Message).
				WithCause(resp.Error)
		}
		return resp.Result, nil
	}
}

func (c *rpcConn) close() {
	c.closeOnce.Do(func() { close(c.done) })
	if c.wc != nil {
		c.wc.Close()
	}
	c.failPending()
}
