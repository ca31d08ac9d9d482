package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	writes []Message
	closed chan struct{}
	once   sync.Once
	block  chan struct{} // when set, WriteMessage waits on it
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (c *fakeConn) SetReadLimit(int64) {}
func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *fakeConn) WriteMessage(kind int, data []byte) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := TextMessage
	switch kind {
	case websocket.BinaryMessage:
		t = BinaryMessage
	case websocket.CloseMessage, websocket.PingMessage:
		return nil
	}
	c.writes = append(c.writes, Message{Type: t, Data: data})
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.writes))
	for _, m := range c.writes {
		out = append(out, string(m.Data))
	}
	return out
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	t.Cleanup(cancel)
	return h, cancel
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	h, _ := startHub(t)

	conns := []*fakeConn{newFakeConn(), newFakeConn()}
	for _, conn := range conns {
		c, err := h.Subscribe(conn)
		require.NoError(t, err)
		go c.Serve()
	}
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, h.BroadcastJSON(map[string]string{"kind": "alert"}))
	h.Broadcast(NewTextMessage([]byte(`{"kind":"answer"}`)))

	for _, conn := range conns {
		assert.Eventually(t, func() bool { return len(conn.texts()) == 2 }, time.Second, time.Millisecond)
		assert.Equal(t, []string{`{"kind":"alert"}`, `{"kind":"answer"}`}, conn.texts())
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	h, _ := startHub(t)

	conn := newFakeConn()
	c, err := h.Subscribe(conn)
	require.NoError(t, err)

	served := make(chan struct{})
	go func() {
		c.Serve()
		close(served)
	}()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	conn.Close()
	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after close")
	}
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHub_DropsSlowClient(t *testing.T) {
	h, _ := startHub(t)

	slow := newFakeConn()
	slow.block = make(chan struct{})
	defer close(slow.block)

	c, err := h.Subscribe(slow)
	require.NoError(t, err)
	go c.writePump()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	// One message is held by the blocked writer, sendBuffer more fill the
	// queue, and the next overflows it.
	for i := 0; i < sendBuffer+8; i++ {
		h.Broadcast(NewTextMessage([]byte("x")))
		time.Sleep(100 * time.Microsecond)
	}
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHub_StopClosesClientsAndRejectsSubscribers(t *testing.T) {
	h, cancel := startHub(t)

	conn := newFakeConn()
	c, err := h.Subscribe(conn)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return !h.IsRunning() }, time.Second, time.Millisecond)

	_, ok := <-c.send
	assert.False(t, ok, "send channel closed on stop")
	assert.Zero(t, h.ClientCount())

	_, err = h.Subscribe(newFakeConn())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := New("idle", nil) // not running

	for i := 0; i < cap(h.broadcast); i++ {
		require.True(t, h.Broadcast(NewBinaryMessage([]byte{1})))
	}
	assert.False(t, h.Broadcast(NewBinaryMessage([]byte{1})))
	assert.Equal(t, uint64(1), h.Dropped())
}
