// network/connection.go
package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrMalformedMessage marks a frame that arrived but could not be decoded
// as a control message. The connection itself is still healthy; callers
// drop the frame and keep reading.
var ErrMalformedMessage = errors.New("malformed control message")

// writeWait bounds a single frame write. A peer that stops draining its
// socket surfaces as a write error instead of blocking the sender and,
// through it, the whole room.
var writeWait = 10 * time.Second

type Connection interface {
	SendJSON(v interface{}) error
	ReadMessage() (*ClientMessage, error)
	ReadText(timeout time.Duration) (string, error)
	Close() error
	RemoteAddr() net.Addr
}

type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

// SendJSON writes one JSON frame. Writes are serialized; failures are the
// caller's to swallow, a room broadcast never depends on them.
func (c *WSConnection) SendJSON(v interface{}) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *WSConnection) ReadMessage() (*ClientMessage, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return &msg, nil
}

// ReadText reads one raw text frame, used for the bearer-token handshake
// right after the upgrade.
func (c *WSConnection) ReadText(timeout time.Duration) (string, error) {
	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
