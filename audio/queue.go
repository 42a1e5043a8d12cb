package audio

import (
	"errors"
	"sync"
)

// ErrQueueClosed is returned by FrameQueue.Pop once the queue has been
// closed and drained.
var ErrQueueClosed = errors.New("audio: frame queue closed")

// FrameQueue is a thread-safe FIFO of audio Frames. The producer pushes
// frames without ever blocking; the single consumer (the playback loop)
// pops them, blocking while the queue is empty. The queue is unbounded -
// a slow consumer causes unbounded growth.
type FrameQueue struct {
	mu            sync.Mutex
	cond          *sync.Cond
	frames        []*Frame
	queuedSamples int
	closed        bool
}

// NewFrameQueue returns an empty FrameQueue.
func NewFrameQueue() *FrameQueue {
	q := &FrameQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a frame to the tail of the queue and wakes up a blocked
// consumer. Frames pushed after Close are discarded.
func (q *FrameQueue) Push(f *Frame) {
	if f == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.frames = append(q.frames, f)
	q.queuedSamples += f.SampleCount
	q.cond.Signal()
}

// Pop removes and returns the head of the queue. It blocks while the
// queue is empty. Once the queue has been closed and all remaining
// frames have been popped, Pop returns ErrQueueClosed.
func (q *FrameQueue) Pop() (*Frame, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.frames) == 0 {
		if q.closed {
			return nil, ErrQueueClosed
		}
		q.cond.Wait()
	}

	f := q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	q.queuedSamples -= f.SampleCount

	return f, nil
}

// QueuedSamples returns the sum of SampleCount over all queued frames.
func (q *FrameQueue) QueuedSamples() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queuedSamples
}

// Len returns the amount of queued frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Close marks the queue as closed and wakes up all blocked consumers.
// Frames still in the queue can be popped; further pushes are discarded.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
