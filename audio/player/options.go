package player

import (
	"time"

	"github.com/cskr/pubsub"
)

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for initializing a Player.
type Options struct {
	NumBuffers   int
	ChunkSize    int
	Samplerate   int
	Channels     int
	PollInterval time.Duration
	CloseTimeout time.Duration
	EventBus     *pubsub.PubSub
}

// NumBuffers is a functional option to set the amount of device buffers
// cycling between the device and the playback loop.
func NumBuffers(n int) Option {
	return func(args *Options) {
		args.NumBuffers = n
	}
}

// ChunkSize is a functional option to set the amount of samples which
// are accumulated before they are flushed as a Frame into the queue.
// This only applies to samples provided through FeedSample.
func ChunkSize(size int) Option {
	return func(args *Options) {
		args.ChunkSize = size
	}
}

// Samplerate is a functional option to set the samplerate of the frames
// generated from samples provided through FeedSample.
func Samplerate(s int) Option {
	return func(args *Options) {
		args.Samplerate = s
	}
}

// Channels is a functional option to set the amount of channels of the
// frames generated from samples provided through FeedSample.
func Channels(chs int) Option {
	return func(args *Options) {
		args.Channels = chs
	}
}

// PollInterval is a functional option to set the sleep interval between
// two queries for a processed device buffer. The device binding only
// offers a polling completion query, hence the playback loop has to poll.
func PollInterval(d time.Duration) Option {
	return func(args *Options) {
		args.PollInterval = d
	}
}

// CloseTimeout is a functional option to set the maximum amount of time
// Close will wait for the playback loop to terminate.
func CloseTimeout(d time.Duration) Option {
	return func(args *Options) {
		args.CloseTimeout = d
	}
}

// EventBus is a functional option to provide a pubsub event bus on which
// the player will publish playback events (underruns, format changes,
// state changes).
func EventBus(ps *pubsub.PubSub) Option {
	return func(args *Options) {
		args.EventBus = ps
	}
}
