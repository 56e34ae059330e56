package store

import (
	"context"
	"time"
)

type BatchWriteOption struct {
	WriteOption `mapstructure:",squash"`

	BatchSize    int           `default:"100"`
	BatchTimeout time.Duration `default:"3s"`
}

// BatchWriter buffers items and writes them in batches.
type BatchWriter[T any] struct {
	option BatchWriteOption

	inner *Writer[T]

	buf           []T
	lastBatchTime time.Time
}

func NewBatchWriter[T any](store Writable[T], option BatchWriteOption) *BatchWriter[T] {
	return &BatchWriter[T]{
		option:        option,
		inner:         NewWriter(store, option.WriteOption),
		buf:           make([]T, 0, option.BatchSize),
		lastBatchTime: time.Now(),
	}
}

// Process buffers the given item, and flushes if batch is full or timed out.
func (writer *BatchWriter[T]) Process(ctx context.Context, data T) {
	writer.buf = append(writer.buf, data)

	if len(writer.buf) >= writer.option.BatchSize ||
		time.Since(writer.lastBatchTime) >= writer.option.BatchTimeout {
		writer.write(ctx)
	}
}

// Close flushes the buffered items.
func (writer *BatchWriter[T]) Close(ctx context.Context) {
	if len(writer.buf) > 0 {
		writer.write(ctx)
	}
}

// Len returns the number of buffered items.
func (writer *BatchWriter[T]) Len() int {
	return len(writer.buf)
}

func (writer *BatchWriter[T]) write(ctx context.Context) {
	if writer.inner.write(ctx, writer.buf...) {
		writer.buf = writer.buf[:0]
		writer.lastBatchTime = time.Now()
	}
}
