package events

import (
	"os"
	"os/signal"

	"github.com/cskr/pubsub"
)

// Event channel names used for event Pubsub

// published by the playback pipeline
const (
	PlaybackUnderrun = "playbackUnderrun" // int64 (unix nano timestamp)
	FormatChange     = "formatChange"     // string ("44100Hz/1ch -> 48000Hz/2ch")
	PlaybackState    = "playbackState"    // string
	SetVolume        = "setVolume"        // float32
)

// internal
const (
	Shutdown = "shutdown" // bool
	OsExit   = "osExit"   // bool
)

// WatchSystemEvents publishes an OsExit event when the process receives
// an os.Interrupt (CTRL-C) signal.
func WatchSystemEvents(evPS *pubsub.PubSub) {

	// Channel to handle OS signals
	osSignals := make(chan os.Signal, 1)

	//subscribe to os.Interrupt (CTRL-C signal)
	signal.Notify(osSignals, os.Interrupt)

	osSignal := <-osSignals
	if osSignal == os.Interrupt {
		evPS.Pub(true, OsExit)
	}
}
