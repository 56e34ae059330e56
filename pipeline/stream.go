package pipeline

import (
	"bufio"
	"bytes"
	"io"

	"github.com/peerquery/peerquery/parse"
	"github.com/peerquery/peerquery/types"
	"github.com/pkg/errors"
)

// Opener opens a fresh read of a newline delimited hex transaction log.
type Opener func() (io.ReadCloser, error)

// Factory opens an independent traversal of a persisted transaction log.
//
// Records are yielded one by one if chunk size not specified or non-positive,
// otherwise in batches of at most chunk size records.
type Factory func(chunkSize ...int) (*Stream, error)

// Factory returns a restartable stream factory over the log opened by open.
func (p *Pipeline) Factory(open Opener, blk *types.BlockMeta) Factory {
	return func(chunkSize ...int) (*Stream, error) {
		reader, err := open()
		if err != nil {
			return nil, errors.WithMessage(err, "Failed to open transaction log")
		}

		chunk := 1
		if len(chunkSize) > 0 && chunkSize[0] > 0 {
			chunk = chunkSize[0]
		}

		return &Stream{
			pipeline: p,
			blk:      blk,
			closer:   reader,
			reader:   bufio.NewReaderSize(reader, 64*1024),
			chunk:    chunk,
		}, nil
	}
}

// Stream iterates over a transaction log in batches of records.
//
// Call Next to advance to the next batch, then Records to retrieve it:
//
//	for stream.Next() {
//		records := stream.Records()
//	}
//	err := stream.Err()
type Stream struct {
	pipeline *Pipeline
	blk      *types.BlockMeta

	closer io.Closer
	reader *bufio.Reader
	chunk  int
	line   int

	batch []types.Record
	err   error
	done  bool
}

// Next reads the next batch, and returns false if the log is exhausted or any error occurred.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}

	s.batch = make([]types.Record, 0, s.chunk)

	for len(s.batch) < s.chunk {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			s.fail(errors.WithMessage(err, "Failed to read transaction log"))
			return false
		}

		if line = bytes.TrimSpace(line); len(line) > 0 {
			s.line++

			if perr := s.apply(line); perr != nil {
				s.fail(perr)
				return false
			}
		}

		if err == io.EOF {
			s.done = true
			break
		}
	}

	return len(s.batch) > 0
}

func (s *Stream) apply(line []byte) error {
	tx, err := parse.DecodeTx(string(line))
	if err != nil {
		return errors.WithMessagef(ErrParse, "line = %v, error = %v", s.line, err)
	}

	record, ok, err := s.pipeline.Apply(tx, s.blk)
	if err != nil {
		return errors.WithMessagef(err, "line = %v", s.line)
	}

	if ok {
		s.batch = append(s.batch, record)
	}

	return nil
}

func (s *Stream) fail(err error) {
	s.err = err
	s.done = true
	s.batch = nil
}

// Records returns the current batch.
func (s *Stream) Records() []types.Record {
	return s.batch
}

// Err returns the error, if any, that stopped the iteration.
func (s *Stream) Err() error {
	return s.err
}

// Close closes the underlying log reader.
func (s *Stream) Close() error {
	s.done = true
	return s.closer.Close()
}

// Collect reads all the remaining records and closes the stream.
func (s *Stream) Collect() ([]types.Record, error) {
	defer s.Close()

	var result []types.Record
	for s.Next() {
		result = append(result, s.Records()...)
	}

	return result, s.Err()
}
