package audio

import (
	"log"
	"math"
)

// DefaultChunkSize is the amount of samples accumulated before a Frame
// is flushed to the queue.
const DefaultChunkSize = 1024

// Prebuffer accumulates individual samples into fixed size chunks. Once
// the chunk size is reached the accumulated samples are flushed as a
// Frame onto the FrameQueue. Prebuffer is not thread-safe; it is meant
// to be used from a single producer goroutine.
type Prebuffer struct {
	queue      *FrameQueue
	buf        []int16
	chunkSize  int
	samplerate int
	channels   int
}

// NewPrebuffer returns a Prebuffer which flushes frames with the given
// format onto the provided queue.
func NewPrebuffer(queue *FrameQueue, chunkSize, samplerate, channels int) *Prebuffer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Prebuffer{
		queue:      queue,
		buf:        make([]int16, 0, chunkSize*channels),
		chunkSize:  chunkSize,
		samplerate: samplerate,
		channels:   channels,
	}
}

// FeedSample converts a normalized sample into 16 bit PCM and appends it
// to the internal buffer. Samples outside of [-1.0, 1.0] are clamped.
// When the buffer reaches the chunk size it is flushed as a new Frame
// onto the queue.
func (p *Prebuffer) FeedSample(sample float64) {
	if sample > 1.0 {
		sample = 1.0
	} else if sample < -1.0 {
		sample = -1.0
	}
	p.buf = append(p.buf, int16(math.Round(sample*32767)))

	if len(p.buf) == p.chunkSize*p.channels {
		p.Flush()
	}
}

// Flush pushes the accumulated samples as a Frame onto the queue, even
// if the chunk size has not been reached yet, and clears the buffer.
func (p *Prebuffer) Flush() {
	if len(p.buf) == 0 {
		return
	}
	frame, err := NewFrame(p.buf, p.samplerate, p.channels)
	if err != nil {
		// can only happen on an incomplete interleaved chunk
		log.Println("prebuffer:", err)
		p.buf = p.buf[:0]
		return
	}
	p.queue.Push(frame)
	p.buf = p.buf[:0]
}

// Buffered returns the amount of samples accumulated but not yet flushed.
func (p *Prebuffer) Buffered() int {
	return len(p.buf)
}
