package analytics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
)

// BatchPublisher sends events in one write. *kafka.Producer satisfies it.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector forwards search events to Kafka from a background goroutine so
// the request path never waits on the broker. Events are sent in batches of
// up to batchSize, or whatever has accumulated after flushInterval. When
// the buffer is full new events are dropped.
type Collector struct {
	publisher     BatchPublisher
	eventCh       chan SearchEvent
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
	dropped       atomic.Int64
}

func NewCollector(publisher BatchPublisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		publisher:     publisher,
		eventCh:       make(chan SearchEvent, bufferSize),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := c.publisher.PublishBatch(ctx, batch); err != nil {
			c.logger.Error("failed to publish analytics batch", "count", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.flushFinal(flush)
				return
			}
			batch = append(batch, kafka.Event{Key: string(event.Type), Value: event})
			if len(batch) >= c.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			c.drainRemaining(&batch)
			c.flushFinal(flush)
			return
		}
	}
}

// flushFinal sends what is left with a fresh deadline, since the run
// context may already be cancelled.
func (c *Collector) flushFinal(flush func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	flush(ctx)
}

func (c *Collector) drainRemaining(batch *[]kafka.Event) {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			*batch = append(*batch, kafka.Event{Key: string(event.Type), Value: event})
		default:
			return
		}
	}
}

// Track queues event without blocking.
func (c *Collector) Track(event SearchEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.dropped.Add(1)
		c.logger.Warn("analytics event dropped (buffer full)", "query", event.Query)
	}
}

// Dropped returns how many events Track discarded.
func (c *Collector) Dropped() int64 { return c.dropped.Load() }

// Close stops accepting events and waits for the buffered ones to be sent.
// Track must not be called after Close.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}
