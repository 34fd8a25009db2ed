package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/screenscape/sync-server-go/internal/metrics"
	redisclient "github.com/screenscape/sync-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
	clientBufferSize  = 32
	subscribeTimeout  = 5 * time.Second
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func NewEvent(eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: raw}, nil
}

// Client is one open event stream. Done is closed when the broker drops it.
type Client struct {
	GuestID string
	Events  chan Event
	Done    chan struct{}
}

// topic is the set of streams of one guest. With Redis it also owns the
// Pub/Sub subscription, cancelled when the last stream leaves. ready is
// closed once the subscription is confirmed by the server.
type topic struct {
	clients map[*Client]struct{}
	cancel  context.CancelFunc
	ready   chan struct{}
}

// Broker fans user data events out to the SSE clients of each guest. With a
// Redis client events travel over Pub/Sub so every instance sees them;
// without one they are delivered in-process only.
type Broker struct {
	redis *redisclient.Client

	mu     sync.RWMutex
	topics map[string]*topic
	closed bool
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	return &Broker{
		redis:  redisClient,
		topics: make(map[string]*topic),
	}
}

// Subscribe opens a stream for guestID. With Redis it returns only after the
// guest's channel subscription is confirmed, so a Publish issued afterwards
// reaches the stream.
func (b *Broker) Subscribe(guestID string) *Client {
	client := &Client{
		GuestID: guestID,
		Events:  make(chan Event, clientBufferSize),
		Done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(client.Done)
		return client
	}

	t, ok := b.topics[guestID]
	var ctx context.Context
	if !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(context.Background())
		t = &topic{clients: make(map[*Client]struct{}), cancel: cancel, ready: make(chan struct{})}
		b.topics[guestID] = t
	}
	t.clients[client] = struct{}{}
	clientCount := len(t.clients)
	b.mu.Unlock()

	metrics.EventStreams.Inc()
	log.Info().Str("guestId", guestID).Int("clientCount", clientCount).Msg("sse client subscribed")

	if !ok {
		b.listen(ctx, guestID, t)
	}
	<-t.ready
	return client
}

// listen subscribes to the guest's Redis channel, waits for the server's
// confirmation and starts the relay. Without Redis the topic is ready at once.
func (b *Broker) listen(ctx context.Context, guestID string, t *topic) {
	defer close(t.ready)
	if b.redis == nil {
		return
	}

	channel := redisclient.UserDataChannel(guestID)
	pubsub := b.redis.Subscribe(ctx, channel)

	confirmCtx, cancel := context.WithTimeout(ctx, subscribeTimeout)
	defer cancel()
	if _, err := pubsub.Receive(confirmCtx); err != nil {
		// go-redis resubscribes on reconnect; the relay still runs.
		log.Warn().Err(err).Str("channel", channel).Msg("redis pubsub subscription not confirmed")
	} else {
		log.Debug().Str("channel", channel).Msg("redis pubsub subscribed")
	}

	go b.relay(ctx, pubsub, guestID)
}

// Unsubscribe is safe to call more than once and after Close.
func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[client.GuestID]
	if !ok {
		return
	}
	if _, present := t.clients[client]; !present {
		return
	}

	delete(t.clients, client)
	close(client.Done)
	metrics.EventStreams.Dec()

	if len(t.clients) == 0 {
		t.cancel()
		delete(b.topics, client.GuestID)
	}

	log.Info().Str("guestId", client.GuestID).Int("clientCount", len(t.clients)).Msg("sse client unsubscribed")
}

func (b *Broker) Publish(ctx context.Context, guestID string, event Event) error {
	if b.redis == nil {
		b.deliver(guestID, event)
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, redisclient.UserDataChannel(guestID), payload).Err()
}

// relay forwards Pub/Sub messages for guestID until ctx is cancelled.
func (b *Broker) relay(ctx context.Context, pubsub *redis.PubSub, guestID string) {
	defer pubsub.Close()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Str("channel", msg.Channel).Msg("failed to decode event")
				continue
			}
			b.deliver(guestID, event)
		}
	}
}

// deliver never blocks; a client whose buffer is full misses the event.
func (b *Broker) deliver(guestID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.topics[guestID]
	if !ok {
		return
	}
	for client := range t.clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().Str("guestId", guestID).Msg("client event buffer full, dropping event")
		}
	}
}

// Close ends every stream. Later subscriptions are closed immediately.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for guestID, t := range b.topics {
		t.cancel()
		for client := range t.clients {
			close(client.Done)
			metrics.EventStreams.Dec()
		}
		delete(b.topics, guestID)
	}
	b.closed = true
}

func (b *Broker) ClientCount(guestID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if t, ok := b.topics[guestID]; ok {
		return len(t.clients)
	}
	return 0
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, t := range b.topics {
		total += len(t.clients)
	}
	return total
}
