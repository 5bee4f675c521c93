package subscribe

import (
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

type (
	// Conn is the minimal duplex message connection the transport is
	// written against. WriteMessage must be safe for concurrent use or
	// wrapped so it is; WSConn and Pipe both qualify.
	Conn interface {
		// ReadMessage blocks for the next inbound message.
		ReadMessage() ([]byte, error)
		// WriteMessage sends one outbound message.
		WriteMessage(data []byte) error
		// Close tears the connection down; pending reads fail.
		Close() error
	}

	// WSConn adapts a gorilla websocket connection. Writes are
	// serialized because gorilla permits only one concurrent writer.
	WSConn struct {
		conn    *websocket.Conn
		writeMu sync.Mutex
	}

	// pipeConn is one end of an in-memory duplex pair used by tests and
	// in-process clients.
	pipeConn struct {
		in        <-chan []byte
		out       chan<- []byte
		closed    chan struct{}
		peerGone  <-chan struct{}
		closeOnce sync.Once
	}
)

// NewWSConn wraps a websocket connection.
func NewWSConn(conn *websocket.Conn) *WSConn { return &WSConn{conn: conn} }

// ReadMessage implements Conn.
func (c *WSConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// WriteMessage implements Conn.
func (c *WSConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close implements Conn.
func (c *WSConn) Close() error { return c.conn.Close() }

// Upgrader is the websocket upgrader used by Handler. Override
// CheckOrigin before serving when cross-origin clients are expected.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Handler returns an http.Handler that upgrades each request to a
// websocket and serves the subscription protocol on it.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := NewWSConn(ws)
		defer conn.Close()
		_ = s.ServeConn(r.Context(), conn)
	})
}

// Pipe returns an in-memory connected pair. Messages written on one end
// are read from the other. Closing either end fails both ends' reads.
func Pipe() (Conn, Conn) {
	a := make(chan []byte, 16)
	b := make(chan []byte, 16)
	ca := &pipeConn{in: a, out: b, closed: make(chan struct{})}
	cb := &pipeConn{in: b, out: a, closed: make(chan struct{})}
	ca.peerGone = cb.closed
	cb.peerGone = ca.closed
	return ca, cb
}

// ReadMessage implements Conn.
func (c *pipeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	case <-c.peerGone:
		// Drain anything the peer wrote before closing.
		select {
		case data := <-c.in:
			return data, nil
		default:
			return nil, io.EOF
		}
	}
}

// WriteMessage implements Conn.
func (c *pipeConn) WriteMessage(data []byte) error {
	select {
	case c.out <- data:
		return nil
	case <-c.closed:
		return errors.New("pipe: closed")
	case <-c.peerGone:
		return errors.New("pipe: peer closed")
	}
}

// Close implements Conn.
func (c *pipeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
