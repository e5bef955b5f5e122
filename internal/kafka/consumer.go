package kafka

import (
	"context"
	"github.com/segmentio/kafka-go"
	"log"
	"sync"
	"time"
)

// Handler must return nil only when the message may be committed. A non-nil
// error is retried with backoff; the partition does not advance meanwhile.
type Handler func(ctx context.Context, m kafka.Message) error

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       MessageReader
	workers int

	RetryBase time.Duration
	RetryMax  time.Duration
}

// NewConsumer reads several topics in one consumer group.
func NewConsumer(brokers []string, group string, topics []string, workers int) *Consumer {
	return NewConsumerWithReader(kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	}), workers)
}

func NewConsumerWithReader(r MessageReader, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, RetryBase: 200 * time.Millisecond, RetryMax: 10 * time.Second}
}

// Start fetches until ctx is done. Each partition is pinned to one worker so
// its messages are handled and committed in offset order; a commit never
// passes a message that has not been handled.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if !c.handle(ctx, h, m) {
					return
				}
			}
		}(jobs[i])
	}
	defer func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
		if err := c.r.Close(); err != nil {
			log.Printf("kafka: close reader: %v", err)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle runs h until it succeeds, then commits. It returns false when ctx is
// done before the message could be handled.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) bool {
	wait := c.RetryBase
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		log.Printf("kafka: handler error topic=%s partition=%d offset=%d attempt=%d: %v", m.Topic, m.Partition, m.Offset, attempt, err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
		if wait *= 2; wait > c.RetryMax {
			wait = c.RetryMax
		}
	}
	if err := c.r.CommitMessages(ctx, m); err != nil {
		log.Printf("kafka: commit topic=%s offset=%d: %v", m.Topic, m.Offset, err)
	}
	return true
}
