package router

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontipilat22/logcompany1/internal/shared/logger"
	"github.com/pontipilat22/logcompany1/internal/shared/metrics"
	"github.com/pontipilat22/logcompany1/internal/tracking/registry"
)

// registryHandle — реестр + шорткат для подключения fake-подписчиков
type registryHandle struct {
	reg *registry.Registry
}

func newRegistry() *registryHandle {
	return &registryHandle{reg: registry.New()}
}

func (h *registryHandle) connect(t *testing.T, id string, topics ...string) *fakeSender {
	t.Helper()
	s := &fakeSender{}
	h.reg.Register(id, s)
	for _, topic := range topics {
		require.NoError(t, h.reg.Subscribe(id, topic))
	}
	return s
}

type fakeSender struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	sendErr  error
}

func (s *fakeSender) Send(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.messages = append(s.messages, message)
	return nil
}

func (s *fakeSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSender) Messages() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *fakeSender) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newTestRouter(t *testing.T) (*Router, *registryHandle) {
	t.Helper()
	reg := newRegistry()
	return New(reg.reg, logger.NewNop(), metrics.NewNop()), reg
}

func TestRouter_PublishToSubscribersOnly(t *testing.T) {
	r, reg := newTestRouter(t)

	sub := reg.connect(t, "sub", "order:o1")
	other := reg.connect(t, "other", "order:o2")
	silent := reg.connect(t, "silent")

	r.Publish("order:o1", "gps:position", map[string]string{"driver_id": "d1"})

	require.Len(t, sub.Messages(), 1)
	assert.Empty(t, other.Messages())
	assert.Empty(t, silent.Messages())

	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(sub.Messages()[0], &env))
	assert.Equal(t, "gps:position", env.Type)
	assert.JSONEq(t, `{"driver_id":"d1"}`, string(env.Data))
}

func TestRouter_PublishPreservesOrder(t *testing.T) {
	r, reg := newTestRouter(t)
	sub := reg.connect(t, "sub", "driver:d1")

	for i := 0; i < 5; i++ {
		r.Publish("driver:d1", "gps:position", map[string]int{"seq": i})
	}

	msgs := sub.Messages()
	require.Len(t, msgs, 5)
	for i, msg := range msgs {
		var env struct {
			Data struct {
				Seq int `json:"seq"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &env))
		assert.Equal(t, i, env.Data.Seq)
	}
}

func TestRouter_FailedSenderIsEvicted(t *testing.T) {
	r, reg := newTestRouter(t)

	dead := reg.connect(t, "dead", "order:o1")
	dead.sendErr = errors.New("send buffer full")
	alive := reg.connect(t, "alive", "order:o1")

	r.Publish("order:o1", "gps:position", map[string]string{"driver_id": "d1"})

	// Живой подписчик получил событие, мертвый вычищен из реестра
	require.Len(t, alive.Messages(), 1)
	assert.True(t, dead.Closed())
	assert.ElementsMatch(t, []string{"alive"}, r.reg.SubscribersOf("order:o1"))

	// Следующая публикация уходит только живым
	r.Publish("order:o1", "gps:position", map[string]string{"driver_id": "d1"})
	assert.Len(t, alive.Messages(), 2)
	assert.Empty(t, dead.Messages())
}

func TestRouter_NoDeliveryAfterUnregister(t *testing.T) {
	r, reg := newTestRouter(t)
	sub := reg.connect(t, "sub", "driver:d1")

	r.reg.Unregister("sub")
	r.Publish("driver:d1", "gps:position", map[string]string{"driver_id": "d1"})

	assert.Empty(t, sub.Messages())
}

func TestRouter_PublishToEmptyTopic(t *testing.T) {
	r, _ := newTestRouter(t)

	// Не должно паниковать и что-либо доставлять
	r.Publish("driver:nobody", "gps:position", map[string]string{"driver_id": "d1"})
}
