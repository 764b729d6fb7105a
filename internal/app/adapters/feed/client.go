package feed

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
	sendBuffer    = 32
)

// client owns all writes to one websocket connection.
type client struct {
	conn     *websocket.Conn
	clock    clockwork.Clock
	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newClient(conn *websocket.Conn, clock clockwork.Clock) *client {
	c := &client{
		conn:  conn,
		clock: clock,
		send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
	}

	_ = conn.SetReadDeadline(clock.Now().Add(pongDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(clock.Now().Add(pongDeadline))
	})

	c.wg.Add(1)
	go c.run()
	return c
}

func (c *client) run() {
	defer c.wg.Done()

	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-ticker.Chan():
			_ = c.conn.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// offer queues msg without blocking; a full buffer drops it.
func (c *client) offer(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()

		_ = c.conn.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_ = c.conn.Close()
	})
}
