package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
)

// fakeSender собирает отправленные сообщения; потокобезопасен
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

func TestRegistry_RegisterIdempotent(t *testing.T) {
	r := New()
	sender := &fakeSender{}

	conn := r.Register("c1", sender)
	require.NoError(t, r.Subscribe("c1", "driver:d1"))

	// Повторная регистрация не сбрасывает подписки
	again := r.Register("c1", &fakeSender{})
	assert.Same(t, conn, again)
	assert.ElementsMatch(t, []string{"driver:d1"}, r.Topics("c1"))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_SubscribeUnknownConnection(t *testing.T) {
	r := New()

	err := r.Subscribe("ghost", "driver:d1")
	assert.ErrorIs(t, err, domain.ErrUnknownConnection)

	err = r.Unsubscribe("ghost", "driver:d1")
	assert.ErrorIs(t, err, domain.ErrUnknownConnection)
}

func TestRegistry_SubscribeAfterUnregister(t *testing.T) {
	r := New()
	r.Register("c1", &fakeSender{})
	r.Unregister("c1")

	err := r.Subscribe("c1", "driver:d1")
	assert.ErrorIs(t, err, domain.ErrUnknownConnection)
	assert.Empty(t, r.SubscribersOf("driver:d1"))
}

func TestRegistry_SubscribeIsIdempotent(t *testing.T) {
	r := New()
	r.Register("c1", &fakeSender{})

	require.NoError(t, r.Subscribe("c1", "order:o1"))
	require.NoError(t, r.Subscribe("c1", "order:o1"))

	assert.ElementsMatch(t, []string{"c1"}, r.SubscribersOf("order:o1"))
	assert.ElementsMatch(t, []string{"order:o1"}, r.Topics("c1"))
}

func TestRegistry_Unsubscribe(t *testing.T) {
	r := New()
	r.Register("c1", &fakeSender{})
	require.NoError(t, r.Subscribe("c1", "driver:d1"))
	require.NoError(t, r.Subscribe("c1", "order:o1"))

	require.NoError(t, r.Unsubscribe("c1", "driver:d1"))
	assert.Empty(t, r.SubscribersOf("driver:d1"))
	assert.ElementsMatch(t, []string{"order:o1"}, r.Topics("c1"))

	// Отписка от топика без подписки — не ошибка
	require.NoError(t, r.Unsubscribe("c1", "driver:never"))
}

func TestRegistry_UnregisterCleansAllTopics(t *testing.T) {
	r := New()
	r.Register("c1", &fakeSender{})
	r.Register("c2", &fakeSender{})
	require.NoError(t, r.Subscribe("c1", "driver:d1"))
	require.NoError(t, r.Subscribe("c1", "order:o1"))
	require.NoError(t, r.Subscribe("c2", "driver:d1"))

	r.Unregister("c1")

	assert.Equal(t, 1, r.Len())
	assert.ElementsMatch(t, []string{"c2"}, r.SubscribersOf("driver:d1"))
	assert.Empty(t, r.SubscribersOf("order:o1"))
	assert.Nil(t, r.Topics("c1"))

	_, ok := r.Sender("c1")
	assert.False(t, ok)

	// Повторный Unregister безопасен
	r.Unregister("c1")
}

func TestRegistry_SubscribersOfSnapshot(t *testing.T) {
	r := New()
	r.Register("c1", &fakeSender{})
	require.NoError(t, r.Subscribe("c1", "driver:d1"))

	snap := r.SubscribersOf("driver:d1")
	r.Unregister("c1")

	// Снимок не меняется после cleanup
	assert.ElementsMatch(t, []string{"c1"}, snap)
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", n)
			topic := fmt.Sprintf("driver:d%d", n%5)

			r.Register(id, &fakeSender{})
			_ = r.Subscribe(id, topic)
			r.SubscribersOf(topic)
			if n%2 == 0 {
				r.Unregister(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, r.Len())
	for n := 0; n < 5; n++ {
		for _, id := range r.SubscribersOf(fmt.Sprintf("driver:d%d", n)) {
			_, ok := r.Sender(id)
			assert.True(t, ok, "subscriber %s must still be registered", id)
		}
	}
}
