package player

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dh1tw/pcmPlayer/audio"
	"github.com/dh1tw/pcmPlayer/events"
)

// Player is the playback pipeline. It owns a FrameQueue fed by the
// producer, a fixed set of device buffers and a background playback loop
// which moves frames from the queue into the output device. The loop
// detects mid-stream format changes (samplerate / channel count) and
// buffer underruns and recovers from both without dropping frames.
type Player struct {
	sync.Mutex // guards bufferedSamples, secondsPlayed, volume, started
	options    Options
	device     audio.Device
	queue      *audio.FrameQueue
	prebuf     *audio.Prebuffer
	buffers    []audio.BufferID
	source     audio.SourceID

	// samples resident in buffers queued on the device
	bufferedSamples int
	secondsPlayed   float32
	volume          float32

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPlayer returns a playback pipeline for the given output device. The
// pipeline has to be started with Start before any samples can be fed.
func NewPlayer(device audio.Device, opts ...Option) (*Player, error) {

	if device == nil {
		return nil, fmt.Errorf("player: no device provided")
	}

	p := &Player{
		options: Options{
			NumBuffers:   5,
			ChunkSize:    audio.DefaultChunkSize,
			Samplerate:   44100,
			Channels:     1,
			PollInterval: time.Microsecond * 100,
			CloseTimeout: time.Second * 2,
		},
		device: device,
		queue:  audio.NewFrameQueue(),
		volume: 1.0,
	}

	for _, option := range opts {
		option(&p.options)
	}

	if p.options.NumBuffers < 2 {
		return nil, fmt.Errorf("player: at least 2 device buffers required")
	}

	p.prebuf = audio.NewPrebuffer(p.queue, p.options.ChunkSize,
		p.options.Samplerate, p.options.Channels)

	return p, nil
}

// Start opens the output device, allocates the device buffers and the
// playback source and launches the playback loop. Any device failure at
// this point is fatal and returned; the pipeline does not start.
func (p *Player) Start() error {
	p.Lock()
	defer p.Unlock()

	if p.started {
		return nil
	}

	if err := p.device.Open(); err != nil {
		return fmt.Errorf("player: unable to open device: %w", err)
	}

	if err := p.device.SetGain(p.volume); err != nil {
		p.device.Close()
		return fmt.Errorf("player: unable to set gain: %w", err)
	}

	buffers, err := p.device.GenBuffers(p.options.NumBuffers)
	if err != nil {
		p.device.Close()
		return fmt.Errorf("player: unable to allocate buffers: %w", err)
	}
	p.buffers = buffers

	source, err := p.device.GenSource()
	if err != nil {
		p.device.Close()
		return fmt.Errorf("player: unable to allocate source: %w", err)
	}
	p.source = source

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.started = true

	go p.playLoop(ctx)

	return nil
}

// Close shuts down the playback pipeline: the playback loop is signalled
// at both of its suspension points (queue wait and device poll), joined
// with a bounded timeout and the device resources are released. Samples
// still in flight are discarded.
func (p *Player) Close() error {
	p.Lock()
	if !p.started {
		p.Unlock()
		return nil
	}
	p.started = false
	cancel := p.cancel
	done := p.done
	p.Unlock()

	p.queue.Close()
	cancel()

	select {
	case <-done:
	case <-time.After(p.options.CloseTimeout):
		log.Println("player: playback loop did not terminate in time")
	}

	if err := p.device.Stop(p.source); err != nil {
		log.Println("player:", err)
	}
	if err := p.device.ClearBuffers(p.source); err != nil {
		log.Println("player:", err)
	}

	return p.device.Close()
}

// FeedSample accepts one normalized sample from the producer. Samples
// are batched into frames of the configured chunk size and format. Must
// only be called from a single producer goroutine.
func (p *Player) FeedSample(sample float64) {
	p.prebuf.FeedSample(sample)
}

// Flush enqueues the samples accumulated through FeedSample as a frame
// even if the chunk size has not been reached yet. Meant to be called
// by the producer at the end of a finite stream.
func (p *Player) Flush() {
	p.prebuf.Flush()
}

// PushFrame copies the provided interleaved 16 bit PCM samples into a
// frame and enqueues it for playback. In contrast to FeedSample, frames
// of any format can be pushed; a format differing from the previously
// pushed frame will make the playback loop drain and reconfigure the
// device.
func (p *Player) PushFrame(samples []int16, samplerate, channels int) error {
	frame, err := audio.NewFrame(samples, samplerate, channels)
	if err != nil {
		return err
	}
	p.queue.Push(frame)
	return nil
}

// BufferSize returns the total amount of samples currently in flight
// between the producer and the output device (queued + buffered). It can
// be used by the producer to throttle its production rate.
func (p *Player) BufferSize() int {
	p.Lock()
	buffered := p.bufferedSamples
	p.Unlock()
	return p.queue.QueuedSamples() + buffered
}

// SecondsPlayed returns the cumulative seconds of audio submitted to the
// device since the last reset.
func (p *Player) SecondsPlayed() float32 {
	p.Lock()
	defer p.Unlock()
	return p.secondsPlayed
}

// ResetSecondsPlayed resets the playback clock to zero. Samples already
// resident in device buffers but not yet rendered have been counted as
// played; subtracting them might give more accuracy, but it is unclear
// if this precision is really needed.
func (p *Player) ResetSecondsPlayed() {
	p.Lock()
	defer p.Unlock()
	p.secondsPlayed = 0
}

// SetVolume sets the output gain for all upcoming audio frames.
func (p *Player) SetVolume(v float32) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	p.Lock()
	p.volume = v
	started := p.started
	p.Unlock()
	if !started {
		return
	}
	if err := p.device.SetGain(v); err != nil {
		log.Println("player:", err)
	}
}

// Volume returns the current output gain.
func (p *Player) Volume() float32 {
	p.Lock()
	defer p.Unlock()
	return p.volume
}

// Sleep is a pass-through delay primitive for producers which throttle
// their production rate against BufferSize.
func (p *Player) Sleep(seconds float64) {
	time.Sleep(time.Duration(seconds * float64(time.Second)))
}

// playLoop is the playback state machine. It prebuffers all device
// slots, then cycles frames through the device until a format change
// requires draining and reconfiguring, and starts over. The loop only
// terminates on shutdown.
func (p *Player) playLoop(ctx context.Context) {
	defer close(p.done)
	defer p.publishState(audio.Stopped)

	// prebuffering: fill all device slots before playback starts
	for _, buf := range p.buffers {
		frame, err := p.queue.Pop()
		if err != nil {
			return
		}
		p.consumeFrame(buf, frame)
	}

	for {
		if err := p.device.Play(p.source); err != nil {
			log.Println("player:", err)
		}
		p.publishState(audio.Playing)

		carried, ok := p.playUntilFormatChange(ctx)
		if !ok {
			return
		}

		// the upstream format has changed: stop the source, detach all
		// buffers and start a new cycle with the carried frame in the
		// first slot. The remaining slots are backfilled from the queue
		// in order, so no frame is lost across the boundary.
		if err := p.device.Stop(p.source); err != nil {
			log.Println("player:", err)
		}
		if err := p.device.ClearBuffers(p.source); err != nil {
			log.Println("player:", err)
		}

		// all buffers are detached now, nothing is resident anymore
		p.Lock()
		p.bufferedSamples = 0
		p.Unlock()

		p.consumeFrame(p.buffers[0], carried)

		for i := 1; i < len(p.buffers); i++ {
			frame, err := p.queue.Pop()
			if err != nil {
				return
			}
			p.consumeFrame(p.buffers[i], frame)
		}
	}
}

// playUntilFormatChange reclaims processed buffers and refills them from
// the queue until either the next frame's format differs from the format
// the device is currently playing, or the pipeline shuts down. On a
// format change the already popped frame is returned so it can be
// carried over into the new cycle.
func (p *Player) playUntilFormatChange(ctx context.Context) (*audio.Frame, bool) {
	for {
		buf, err := p.waitForProcessedBuffer(ctx)
		if err != nil {
			return nil, false
		}

		frame, err := p.queue.Pop()
		if err != nil {
			return nil, false
		}

		// the device reports the format of the data it played last from
		// this buffer
		info, err := p.device.BufferInfo(buf)
		if err != nil {
			log.Println("player:", err)
		} else if info.Frequency != frame.Samplerate || info.Channels != frame.Channels {
			if p.options.EventBus != nil {
				p.options.EventBus.Pub(fmt.Sprintf("%dHz/%dch -> %dHz/%dch",
					info.Frequency, info.Channels, frame.Samplerate, frame.Channels),
					events.FormatChange)
			}
			return frame, true
		}

		p.consumeFrame(buf, frame)

		// restart the source if it is not playing anymore; this occurs
		// when the device ran dry (buffer underrun) before the refill
		state, err := p.device.State(p.source)
		if err != nil {
			log.Println("player:", err)
			continue
		}
		if state != audio.Playing {
			if p.options.EventBus != nil {
				p.options.EventBus.Pub(time.Now().UnixNano(), events.PlaybackUnderrun)
			}
			if err := p.device.Play(p.source); err != nil {
				log.Println("player:", err)
			}
		}
	}
}

// waitForProcessedBuffer polls the device until a processed buffer can
// be reclaimed. The device binding only exposes a polling completion
// query, so this is a spin wait with a short sleep. The context makes
// the wait interruptible on shutdown.
func (p *Player) waitForProcessedBuffer(ctx context.Context) (audio.BufferID, error) {
	for {
		for {
			processed, err := p.device.ProcessedBuffers(p.source)
			if err != nil {
				log.Println("player:", err)
			}
			if processed > 0 {
				break
			}
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(p.options.PollInterval):
			}
		}

		buf, err := p.device.UnqueueBuffer(p.source)
		if err != nil {
			// transient; the buffer stays processed and will be picked
			// up on the next iteration
			log.Println("player:", err)
			continue
		}

		info, err := p.device.BufferInfo(buf)
		if err != nil {
			log.Println("player:", err)
		} else {
			p.Lock()
			p.bufferedSamples -= info.Samples()
			p.Unlock()
		}

		return buf, nil
	}
}

// consumeFrame submits the frame's PCM data into the given device buffer,
// queues the buffer on the source and updates the playback accounting.
// Device errors here are transient and only logged.
func (p *Player) consumeFrame(buf audio.BufferID, frame *audio.Frame) {
	if err := p.device.BufferData(buf, frame.Channels, frame.Samples, frame.Samplerate); err != nil {
		log.Println("player:", err)
	}
	if err := p.device.QueueBuffer(p.source, buf); err != nil {
		log.Println("player:", err)
	}

	p.Lock()
	p.bufferedSamples += frame.SampleCount
	p.secondsPlayed += frame.Seconds()
	p.Unlock()
}

func (p *Player) publishState(s audio.SourceState) {
	if p.options.EventBus == nil {
		return
	}
	p.options.EventBus.Pub(s.String(), events.PlaybackState)
}
