package orchestrator

import (
	"errors"
	"sync"

	"github.com/valyala/bytebufferpool"

	"chatcore/pkg/models"
)

// ErrQueueFull is returned by Submit when a conversation's queue is at
// capacity.
var ErrQueueFull = errors.New("conversation queue full")

// maxPooledBuffer caps the buffer size returned to the pool so a single
// huge payload cannot pin memory.
const maxPooledBuffer = 256 * 1024

// submission is one queued turn. Content bytes live in a pooled buffer;
// the worker must call release exactly once after copying them out.
type submission struct {
	sender   string
	kind     models.Kind
	content  []byte
	fileURL  string
	fileName string
	replyTo  string

	handle *Turn
	buf    *bytebufferpool.ByteBuffer
	once   sync.Once
}

func newSubmission(sender string, kind models.Kind, content, fileURL, fileName, replyTo string, h *Turn) *submission {
	s := &submission{
		sender:   sender,
		kind:     kind,
		fileURL:  fileURL,
		fileName: fileName,
		replyTo:  replyTo,
		handle:   h,
	}
	if content != "" {
		bb := bytebufferpool.Get()
		bb.B = append(bb.B[:0], content...)
		s.buf = bb
		s.content = bb.B
	}
	return s
}

func (s *submission) text() string { return string(s.content) }

func (s *submission) release() {
	s.once.Do(func() {
		if s.buf != nil {
			if cap(s.buf.B) <= maxPooledBuffer {
				bytebufferpool.Put(s.buf)
			}
			s.buf = nil
		}
		s.content = nil
	})
}

// convQueue is the bounded per-conversation FIFO feeding one worker
// goroutine. Producers never block: a full queue rejects the turn.
type convQueue struct {
	ch chan *submission
}

func newConvQueue(capacity int) *convQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &convQueue{ch: make(chan *submission, capacity)}
}

func (q *convQueue) tryEnqueue(s *submission) error {
	select {
	case q.ch <- s:
		return nil
	default:
		s.release()
		return ErrQueueFull
	}
}
