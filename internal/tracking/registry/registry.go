// Package registry ведет учет живых duplex-соединений и их подписок на топики.
// Это обобщение socket.io-комнат: членство, liveness и cleanup тестируются
// независимо от транспорта. Registry — единственный мутатор подписок.
package registry

import (
	"hash/fnv"
	"sync"

	"github.com/pontipilat22/logcompany1/internal/tracking/domain"
)

// Sender — транспортная сторона соединения. Send обязан быть неблокирующим
// (очередь с отбрасыванием при переполнении); Close рвет транспорт.
type Sender interface {
	Send(message []byte) error
	Close()
}

// Число шардов для map topic → connections. Блокировка на шард, а не одна
// глобальная: подписки разных топиков не конкурируют между собой.
const shardCount = 32

type topicShard struct {
	mu   sync.RWMutex
	subs map[string]map[string]struct{} // topic → set of connection ids
}

// Connection — одно зарегистрированное соединение
type Connection struct {
	id     string
	sender Sender

	// mu сериализует мутации подписок одного соединения
	mu     sync.Mutex
	topics map[string]struct{}
	closed bool
}

// ID возвращает идентификатор соединения
func (c *Connection) ID() string { return c.id }

// Registry — потокобезопасный учет соединений и подписок.
// Держит прямой map (topic → connections) в шардах и обратный
// (connection → topics) в самом Connection для O(1) cleanup при disconnect.
type Registry struct {
	shards [shardCount]topicShard

	mu    sync.RWMutex
	conns map[string]*Connection
}

// New создает пустой реестр
func New() *Registry {
	r := &Registry{
		conns: make(map[string]*Connection),
	}
	for i := range r.shards {
		r.shards[i].subs = make(map[string]map[string]struct{})
	}
	return r
}

func (r *Registry) shardFor(topic string) *topicShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	return &r.shards[h.Sum32()%shardCount]
}

// Register создает соединение с пустым набором подписок.
// Идемпотентен: повторный вызов для того же id возвращает существующее
// соединение, не сбрасывая подписки.
func (r *Registry) Register(id string, sender Sender) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.conns[id]; ok {
		return existing
	}

	conn := &Connection{
		id:     id,
		sender: sender,
		topics: make(map[string]struct{}),
	}
	r.conns[id] = conn
	return conn
}

// Subscribe добавляет топик в набор подписок соединения.
// ErrUnknownConnection — если соединение уже отключилось (гонка, не сбой).
func (r *Registry) Subscribe(id, topic string) error {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrUnknownConnection
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return domain.ErrUnknownConnection
	}
	conn.topics[topic] = struct{}{}

	shard := r.shardFor(topic)
	shard.mu.Lock()
	set, ok := shard.subs[topic]
	if !ok {
		set = make(map[string]struct{})
		shard.subs[topic] = set
	}
	set[id] = struct{}{}
	shard.mu.Unlock()

	return nil
}

// Unsubscribe убирает топик из подписок; отсутствие подписки — не ошибка
func (r *Registry) Unsubscribe(id, topic string) error {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrUnknownConnection
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return domain.ErrUnknownConnection
	}
	delete(conn.topics, topic)

	r.removeFromShard(id, topic)
	return nil
}

// Unregister удаляет соединение и все его подписки.
// Безопасен при повторном вызове и при нуле подписок.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	conn, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	conn.mu.Lock()
	conn.closed = true
	topics := make([]string, 0, len(conn.topics))
	for t := range conn.topics {
		topics = append(topics, t)
	}
	conn.topics = nil
	conn.mu.Unlock()

	for _, t := range topics {
		r.removeFromShard(id, t)
	}
}

func (r *Registry) removeFromShard(id, topic string) {
	shard := r.shardFor(topic)
	shard.mu.Lock()
	if set, ok := shard.subs[topic]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(shard.subs, topic)
		}
	}
	shard.mu.Unlock()
}

// SubscribersOf возвращает snapshot-копию подписчиков топика
func (r *Registry) SubscribersOf(topic string) []string {
	shard := r.shardFor(topic)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	set, ok := shard.subs[topic]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// Sender возвращает транспорт соединения, если оно зарегистрировано
func (r *Registry) Sender(id string) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return conn.sender, true
}

// Topics возвращает snapshot-копию подписок соединения
func (r *Registry) Topics(id string) []string {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	topics := make([]string, 0, len(conn.topics))
	for t := range conn.topics {
		topics = append(topics, t)
	}
	return topics
}

// Len возвращает число зарегистрированных соединений
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
