package pipeline

import (
	"io"
	"sync"
)

type chunkEvent struct {
	text string
	err  error
}

// AnswerStream is the ordered chunk sequence handed to the transport
// layer. Recv returns io.EOF after the final chunk; Close abandons
// consumption (the already-forwarded prefix is still persisted).
type AnswerStream struct {
	ch        chan chunkEvent
	done      chan struct{}
	closeOnce sync.Once
}

func newAnswerStream() *AnswerStream {
	return &AnswerStream{
		ch:   make(chan chunkEvent),
		done: make(chan struct{}),
	}
}

func (s *AnswerStream) Recv() (string, error) {
	ev, ok := <-s.ch
	if !ok {
		return "", io.EOF
	}
	if ev.err != nil {
		return "", ev.err
	}
	return ev.text, nil
}

func (s *AnswerStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// emit forwards one chunk to the consumer. It reports false when the
// consumer has gone away.
func (s *AnswerStream) emit(text string) bool {
	select {
	case s.ch <- chunkEvent{text: text}:
		return true
	case <-s.done:
		return false
	}
}

func (s *AnswerStream) finish() {
	close(s.ch)
}
