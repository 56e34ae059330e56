package store

import (
	"context"
	"time"

	"github.com/Conflux-Chain/go-conflux-util/ctxutil"
	"github.com/Conflux-Chain/go-conflux-util/health"
)

type WriteOption struct {
	RetryInterval time.Duration `default:"3s"`

	Health health.TimedCounterConfig
}

// Writer writes items into store, and retries until succeeded or context done.
type Writer[T any] struct {
	option WriteOption
	store  Writable[T]
	health *health.TimedCounter
}

func NewWriter[T any](store Writable[T], option WriteOption) *Writer[T] {
	return &Writer[T]{
		option: option,
		store:  store,
		health: health.NewTimedCounter(option.Health),
	}
}

// Process writes the given items, and returns false if context done before written.
func (writer *Writer[T]) Process(ctx context.Context, data ...T) bool {
	return writer.write(ctx, data...)
}

func (writer *Writer[T]) write(ctx context.Context, data ...T) bool {
	for {
		err := writer.store.Write(data...)

		writer.health.LogOnError(err, "Write store")

		if err == nil {
			return true
		}

		if err = ctxutil.Sleep(ctx, writer.option.RetryInterval); err != nil {
			return false
		}
	}
}
