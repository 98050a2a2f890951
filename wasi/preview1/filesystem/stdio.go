package filesystem

import (
	"errors"
	"io"
	"strings"
)

// Sink receives bytes written to an output stream.
type Sink interface {
	Drain(p []byte) (int, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(p []byte) (int, error)

func (f SinkFunc) Drain(p []byte) (int, error) { return f(p) }

// Source supplies bytes for an input stream. An empty chunk means no more
// input is available right now.
type Source interface {
	Pull() ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() ([]byte, error)

func (f SourceFunc) Pull() ([]byte, error) { return f() }

// WriterSink drains raw bytes into w.
func WriterSink(w io.Writer) Sink {
	return SinkFunc(w.Write)
}

// TextSink decodes each write as UTF-8, replacing invalid sequences with
// U+FFFD, and hands the text to fn. It always reports the whole write as
// consumed.
func TextSink(fn func(string)) Sink {
	return SinkFunc(func(p []byte) (int, error) {
		fn(strings.ToValidUTF8(string(p), "�"))
		return len(p), nil
	})
}

// Discard is a sink that drops everything.
var Discard Sink = SinkFunc(func(p []byte) (int, error) { return len(p), nil })

// Empty is a source with no input.
var Empty Source = SourceFunc(func() ([]byte, error) { return nil, nil })

const pullSize = 4096

// ReaderSource pulls up to 4 KiB per call from r. io.EOF becomes an empty
// chunk.
func ReaderSource(r io.Reader) Source {
	return SourceFunc(func() ([]byte, error) {
		buf := make([]byte, pullSize)
		n, err := r.Read(buf)
		if errors.Is(err, io.EOF) {
			err = nil
		}
		return buf[:n], err
	})
}

// Stream is a stdio descriptor.
type Stream interface {
	Readv(bufs [][]byte) (int, error)
	Writev(bufs [][]byte) (int, error)
	Close() error
}

// Writable is an output stream. Reads return nothing.
type Writable struct {
	sink Sink
}

// NewWritable returns a stream draining into sink. A nil sink discards.
func NewWritable(sink Sink) *Writable {
	if sink == nil {
		sink = Discard
	}
	return &Writable{sink: sink}
}

// Writev concatenates bufs and drains them in one call.
func (w *Writable) Writev(bufs [][]byte) (int, error) {
	var total int
	for _, b := range bufs {
		total += len(b)
	}
	joined := make([]byte, 0, total)
	for _, b := range bufs {
		joined = append(joined, b...)
	}
	return w.sink.Drain(joined)
}

func (w *Writable) Readv([][]byte) (int, error) { return 0, nil }

func (w *Writable) Close() error { return nil }

// Readable is an input stream. Bytes pulled beyond what the caller asked
// for are kept for the next read.
type Readable struct {
	source  Source
	pending []byte
}

// NewReadable returns a stream pulling from source. A nil source is empty.
func NewReadable(source Source) *Readable {
	if source == nil {
		source = Empty
	}
	return &Readable{source: source}
}

// Readv fills bufs in order, first from the pending fragment and then from
// the source, until the buffers are full or the source returns an empty
// chunk.
func (r *Readable) Readv(bufs [][]byte) (int, error) {
	var read int
	for _, buf := range bufs {
		filled := 0
		if len(r.pending) > 0 {
			n := copy(buf, r.pending)
			r.pending = r.pending[n:]
			filled += n
		}
		for filled < len(buf) {
			chunk, err := r.source.Pull()
			if err != nil {
				return read + filled, err
			}
			if len(chunk) == 0 {
				return read + filled, nil
			}
			n := copy(buf[filled:], chunk)
			if n < len(chunk) {
				r.pending = append(r.pending[:0:0], chunk[n:]...)
			}
			filled += n
		}
		read += filled
	}
	return read, nil
}

func (r *Readable) Writev([][]byte) (int, error) { return 0, nil }

func (r *Readable) Close() error { return nil }
