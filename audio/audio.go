package audio

import "fmt"

// Frame contains one chunk of interleaved 16 bit PCM audio together with
// its format metadata. A Frame is created on the producer side, handed
// over to the FrameQueue and consumed exactly once by the playback loop.
type Frame struct {
	SampleCount int     // samples per channel
	Samplerate  int     // in Hz, e.g. 44100
	Channels    int     // 1 (mono) or 2 (stereo)
	Samples     []int16 // interleaved, len == SampleCount * Channels
}

// NewFrame copies the provided samples into a new Frame. The length of
// the sample slice must match sampleCount * channels.
func NewFrame(samples []int16, samplerate, channels int) (*Frame, error) {
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("audio: unsupported amount of channels: %d", channels)
	}
	if samplerate <= 0 {
		return nil, fmt.Errorf("audio: invalid samplerate: %d", samplerate)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("audio: sample count %d is not a multiple of %d channels",
			len(samples), channels)
	}
	buf := make([]int16, len(samples))
	copy(buf, samples)

	f := &Frame{
		SampleCount: len(samples) / channels,
		Samplerate:  samplerate,
		Channels:    channels,
		Samples:     buf,
	}
	return f, nil
}

// Seconds returns the playback duration of the frame.
func (f *Frame) Seconds() float32 {
	return float32(f.SampleCount) / float32(f.Samplerate)
}

// BufferID is the handle of one device buffer slot.
type BufferID uint32

// SourceID is the handle of a playback source on the device.
type SourceID uint32

// SourceState describes the playback state of a source.
type SourceState int

const (
	Initial SourceState = iota
	Playing
	Paused
	Stopped
)

func (s SourceState) String() string {
	switch s {
	case Initial:
		return "initial"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// BufferInfo holds the properties of the PCM data last submitted into a
// device buffer, as reported by the device.
type BufferInfo struct {
	Size      int // in bytes
	Channels  int
	Bits      int // bits per sample
	Frequency int // samplerate in Hz
}

// Samples returns the amount of samples (per channel) held by the buffer.
func (b BufferInfo) Samples() int {
	if b.Channels == 0 || b.Bits == 0 {
		return 0
	}
	return b.Size * 8 / (b.Channels * b.Bits)
}

// Device is the interface which has to be implemented by an audio output
// device binding. The interface is modelled after streaming playback APIs
// (e.g. OpenAL) which only offer a polling completion query: the device
// reports how many queued buffers have been processed, but provides no
// completion event. All methods are called exclusively from the playback
// loop, except Open/Close and SetGain.
type Device interface {
	// Open opens the output device and performs the one-time setup
	// (context creation, listener gain, distance model). Failures are
	// fatal for the pipeline.
	Open() error
	// Close stops playback and releases all device resources.
	Close() error
	// SetGain sets the output gain (volume) between 0 and 1.
	SetGain(gain float32) error
	// GenBuffers allocates n device buffers.
	GenBuffers(n int) ([]BufferID, error)
	// GenSource allocates a playback source.
	GenSource() (SourceID, error)
	// BufferData submits interleaved 16 bit PCM data into a buffer which
	// must not be queued on a source.
	BufferData(b BufferID, channels int, samples []int16, samplerate int) error
	// QueueBuffer appends a filled buffer to the source's playback queue.
	QueueBuffer(src SourceID, b BufferID) error
	// ProcessedBuffers returns the amount of buffers the source has
	// finished playing and which can be unqueued.
	ProcessedBuffers(src SourceID) (int, error)
	// UnqueueBuffer removes the oldest processed buffer from the source.
	UnqueueBuffer(src SourceID) (BufferID, error)
	// BufferInfo queries the device for the properties of the PCM data
	// last submitted into the buffer.
	BufferInfo(b BufferID) (BufferInfo, error)
	// Play starts (or resumes after an underrun) playback of the queued
	// buffers.
	Play(src SourceID) error
	// Stop halts playback.
	Stop(src SourceID) error
	// State returns the current playback state of the source.
	State(src SourceID) (SourceState, error)
	// ClearBuffers detaches all queued and processed buffers from the
	// source. The source must be stopped.
	ClearBuffers(src SourceID) error
}
