// Package streamer chunks a byte stream through the cauchy codec: the
// input is split into groups of dataShards chunks, each group is encoded
// and every shard chunk is appended to its shard stream. Shard streams are
// padded to whole chunks; the original length is the caller's to keep.
package streamer

import (
	"io"

	"github.com/journeymidnight/erasure/cauchy"
	"github.com/pkg/errors"
)

type StreamCodec interface {
	Encode(input io.Reader, output []io.Writer, chunkSize int, fSize int64) error
	Reconstruct(input []io.Reader, output []io.Writer, chunkSize int, fSize int64) error
}

type Streamer struct {
	codec *cauchy.Codec
}

func New(dataShards, parityShards int) (*Streamer, error) {
	codec, err := cauchy.New(dataShards, parityShards)
	if err != nil {
		return nil, err
	}
	return &Streamer{codec: codec}, nil
}

// Encode reads fSize bytes from input and writes one shard stream to each
// writer in output. output must hold TotalShards writers; a nil writer
// discards that shard's stream. chunkSize must be a power of two.
func (s *Streamer) Encode(input io.Reader, output []io.Writer, chunkSize int, fSize int64) error {
	d := s.codec.DataShards()
	total := s.codec.TotalShards()
	if len(output) != total {
		return errors.Errorf("%d+%d != len(output) [%d]",
			d, s.codec.ParityShards(), len(output))
	}
	if chunkSize <= 0 || chunkSize&(chunkSize-1) != 0 {
		return errors.Errorf("chunkSize %d is not a power of two", chunkSize)
	}
	if fSize < 0 {
		return errors.Errorf("negative size %d", fSize)
	}
	if fSize == 0 {
		return nil
	}

	shards := make([][]byte, total)
	for i := range shards {
		shards[i] = make([]byte, chunkSize)
	}

	limited := io.LimitReader(input, fSize)
	groupSize := int64(d) * int64(chunkSize)

	for off := int64(0); off < fSize; off += groupSize {
		for i := 0; i < d; i++ {
			buf := shards[i]
			for j := range buf {
				buf[j] = 0
			}
			if _, err := io.ReadFull(limited, buf); err != nil &&
				err != io.EOF && err != io.ErrUnexpectedEOF {
				return errors.WithStack(err)
			}
		}
		if err := s.codec.Encode(shards); err != nil {
			return err
		}
		for i, w := range output {
			if w == nil {
				continue
			}
			if _, err := w.Write(shards[i]); err != nil {
				return errors.WithStack(err)
			}
		}
	}
	return nil
}

// Reconstruct rebuilds missing shard streams chunk group by chunk group.
// input holds TotalShards readers with nil marking a missing stream; at
// least DataShards must be non-nil. Rebuilt chunks are written to the
// non-nil writers in output. chunkSize and fSize must match the Encode
// call that produced the streams.
func (s *Streamer) Reconstruct(input []io.Reader, output []io.Writer, chunkSize int, fSize int64) error {
	d := s.codec.DataShards()
	total := s.codec.TotalShards()
	if len(input) != total {
		return errors.Errorf("%d+%d != len(input) [%d]",
			d, s.codec.ParityShards(), len(input))
	}
	if len(output) != total {
		return errors.Errorf("%d+%d != len(output) [%d]",
			d, s.codec.ParityShards(), len(output))
	}
	if chunkSize <= 0 || chunkSize&(chunkSize-1) != 0 {
		return errors.Errorf("chunkSize %d is not a power of two", chunkSize)
	}

	groupSize := int64(d) * int64(chunkSize)
	shards := make([][]byte, total)

	for off := int64(0); off < fSize; off += groupSize {
		for i, r := range input {
			if r == nil {
				shards[i] = nil
				continue
			}
			if shards[i] == nil {
				shards[i] = make([]byte, chunkSize)
			}
			if _, err := io.ReadFull(r, shards[i]); err != nil {
				return errors.WithStack(err)
			}
		}
		if err := s.codec.Reconstruct(shards); err != nil {
			return err
		}
		for i, w := range output {
			if w == nil {
				continue
			}
			if _, err := w.Write(shards[i]); err != nil {
				return errors.WithStack(err)
			}
		}
		// slots filled for a missing stream must not leak into the next
		// group as "present" input
		for i, r := range input {
			if r == nil {
				shards[i] = nil
			}
		}
	}
	return nil
}
