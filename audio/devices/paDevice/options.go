package paDevice

import "time"

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for initializing a portaudio output
// device.
type Options struct {
	HostAPI         string
	DeviceName      string
	FramesPerBuffer int
	Latency         time.Duration
}

// HostAPI is a functional option to enforce the usage of a particular
// audio host API
func HostAPI(hostAPI string) Option {
	return func(args *Options) {
		args.HostAPI = hostAPI
	}
}

// DeviceName is a functional option to specify the name of the
// Audio device
func DeviceName(name string) Option {
	return func(args *Options) {
		args.DeviceName = name
	}
}

// FramesPerBuffer is a functional option which sets the amount of sample
// frames written to the sound card in one blocking write. Smaller values
// reduce latency at the cost of more write calls.
func FramesPerBuffer(s int) Option {
	return func(args *Options) {
		args.FramesPerBuffer = s
	}
}

// Latency is a functional option to set the latency of the audio device.
func Latency(t time.Duration) Option {
	return func(args *Options) {
		args.Latency = t
	}
}
