package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/stretchr/testify/assert"
)

type flakyStore struct {
	failures int
	written  [][]int
}

func (s *flakyStore) Write(data ...int) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("disk full")
	}

	s.written = append(s.written, append([]int(nil), data...))

	return nil
}

func newTestWriteOption() WriteOption {
	var option WriteOption
	defaults.SetDefaults(&option)
	option.RetryInterval = time.Millisecond
	return option
}

func TestWriterRetry(t *testing.T) {
	store := flakyStore{failures: 2}
	writer := NewWriter[int](&store, newTestWriteOption())

	assert.True(t, writer.Process(context.Background(), 1, 2))
	assert.Equal(t, [][]int{{1, 2}}, store.written)
}

func TestWriterContextDone(t *testing.T) {
	store := flakyStore{failures: 1000}
	writer := NewWriter[int](&store, newTestWriteOption())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.False(t, writer.Process(ctx, 1))
	assert.Empty(t, store.written)
}

func TestBatchWriter(t *testing.T) {
	store := flakyStore{}
	writer := NewBatchWriter[int](&store, BatchWriteOption{
		WriteOption:  newTestWriteOption(),
		BatchSize:    3,
		BatchTimeout: time.Hour,
	})

	ctx := context.Background()
	for i := 0; i < 7; i++ {
		writer.Process(ctx, i)
	}

	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}}, store.written)
	assert.Equal(t, 1, writer.Len())

	writer.Close(ctx)
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}, {6}}, store.written)
	assert.Equal(t, 0, writer.Len())
}
