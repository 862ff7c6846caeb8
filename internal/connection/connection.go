package connection

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/DoBuiThao/hoxchess/pkg/protocol"
	"github.com/pkg/errors"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultQueueSize = 64
)

var (
	ErrClosed    = errors.New("connection is closed")
	ErrQueueFull = errors.New("request queue is full")
)

// Connection queues requests and delivers one response per accepted request on
// Responses, in request order. Requests still queued at Close are dropped.
type Connection interface {
	AddRequest(req protocol.Request) error
	Responses() <-chan protocol.Response
	Close() error
}

// roundTripper performs one blocking exchange with the server.
type roundTripper interface {
	roundTrip(ctx context.Context, req protocol.Request) (string, error)
	close() error
}

// Conn runs a single background worker so the caller never blocks on I/O.
type Conn struct {
	rt        roundTripper
	timeout   time.Duration
	queue     chan protocol.Request
	responses chan protocol.Response

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newConn(rt roundTripper, timeout time.Duration) *Conn {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Conn{
		rt:        rt,
		timeout:   timeout,
		queue:     make(chan protocol.Request, DefaultQueueSize),
		responses: make(chan protocol.Response, DefaultQueueSize),
		done:      make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.wg.Add(1)
	go c.processRequests()
	return c
}

func (c *Conn) AddRequest(req protocol.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.queue <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *Conn) Responses() <-chan protocol.Response {
	return c.responses
}

// Close stops the worker and closes the responses channel.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.cancel()
	c.mu.Unlock()

	err := c.rt.close()
	c.wg.Wait()
	close(c.responses)
	return err
}

func (c *Conn) processRequests() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case req := <-c.queue:
			ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
			content, err := c.rt.roundTrip(ctx, req)
			cancel()
			select {
			case <-c.done:
				return
			default:
			}
			if err != nil {
				log.Printf("Request %s failed: %v", req.Type, err)
				content = ""
			}
			select {
			case c.responses <- protocol.Response{Type: req.Type, Content: content, Query: req.Content, Err: err}:
			case <-c.done:
				return
			}
		}
	}
}
