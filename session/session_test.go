package session

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/wfunc/footgame/models"
	"github.com/wfunc/footgame/network"
)

type MockConnection struct {
	Sent   []interface{}
	Closed bool
}

func (m *MockConnection) SendJSON(v interface{}) error {
	m.Sent = append(m.Sent, v)
	return nil
}

func (m *MockConnection) ReadMessage() (*network.ClientMessage, error) {
	return nil, errors.New("not implemented")
}

func (m *MockConnection) ReadText(timeout time.Duration) (string, error) {
	return "", errors.New("not implemented")
}

func (m *MockConnection) Close() error {
	m.Closed = true
	return nil
}

func (m *MockConnection) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func testUser(id int64, name string) models.User {
	return models.User{ID: id, Username: name, DisplayName: name}
}

func TestSession_SendJSONTouchesActivity(t *testing.T) {
	conn := &MockConnection{}
	sess := NewSession("s1", conn, testUser(1, "A"))

	before := sess.LastActive
	time.Sleep(time.Millisecond)
	if err := sess.SendJSON(network.Info("hello")); err != nil {
		t.Fatal(err)
	}

	if len(conn.Sent) != 1 {
		t.Fatalf("Expected one sent message, got %d", len(conn.Sent))
	}
	if !sess.LastActive.After(before) {
		t.Error("SendJSON should refresh LastActive")
	}
}

func TestSession_Close(t *testing.T) {
	conn := &MockConnection{}
	sess := NewSession("s1", conn, testUser(1, "A"))

	sess.Close()
	if !conn.Closed {
		t.Error("Close should reach the connection")
	}
}

func TestManager_AddGetRemove(t *testing.T) {
	m := NewManager()
	sess := NewSession("s1", &MockConnection{}, testUser(1, "A"))

	m.Add(sess)
	if m.Count() != 1 {
		t.Fatalf("Expected 1 session, got %d", m.Count())
	}

	got, exists := m.Get("s1")
	if !exists || got != sess {
		t.Error("Get should return the stored session")
	}

	m.Remove("s1")
	if _, exists := m.Get("s1"); exists {
		t.Error("Removed session should be gone")
	}
	if m.Count() != 0 {
		t.Errorf("Expected 0 sessions, got %d", m.Count())
	}
}

func TestManager_GetByUserID(t *testing.T) {
	m := NewManager()
	m.Add(NewSession("s1", &MockConnection{}, testUser(1, "A")))
	m.Add(NewSession("s2", &MockConnection{}, testUser(1, "A")))
	m.Add(NewSession("s3", &MockConnection{}, testUser(2, "B")))

	if got := m.GetByUserID(1); len(got) != 2 {
		t.Errorf("Expected 2 sessions for user 1, got %d", len(got))
	}
	if got := m.GetByUserID(2); len(got) != 1 {
		t.Errorf("Expected 1 session for user 2, got %d", len(got))
	}
	if got := m.GetByUserID(99); len(got) != 0 {
		t.Errorf("Expected no sessions for unknown user, got %d", len(got))
	}
}
