// Copyright © 2016 Tobias Wellnitz, DH1TW <Tobias.Wellnitz@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/chewxy/math32"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dh1tw/pcmPlayer/events"
)

// toneCmd represents the tone command
var toneCmd = &cobra.Command{
	Use:   "tone",
	Short: "Play a sine tone",
	Long: `Play a sine tone on the local sound card

The tone is synthesized sample by sample and fed through the playback
pipeline (44100 Hz, mono). The generator throttles itself against the
pipeline's buffer size.
`,
	Run: playTone,
}

func init() {
	RootCmd.AddCommand(toneCmd)
	registerPlaybackFlags(toneCmd)
	toneCmd.Flags().Float64P("frequency", "f", 440, "Tone frequency in Hz")
	toneCmd.Flags().Float64P("duration", "d", 5, "Tone duration in seconds")
}

func playTone(cmd *cobra.Command, args []string) {

	readConfig()

	bindPlaybackFlags(cmd)
	viper.BindPFlag("tone.frequency", cmd.Flags().Lookup("frequency"))
	viper.BindPFlag("tone.duration", cmd.Flags().Lookup("duration"))

	checkPlaybackSettings()

	frequency := viper.GetFloat64("tone.frequency")
	duration := viper.GetFloat64("tone.duration")

	p, evPS, err := newPlaybackPipeline()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer p.Close()
	defer evPS.Pub(true, events.Shutdown)

	osExit := evPS.Sub(events.OsExit)

	const samplerate = 44100

	// keep at most half a second of audio in flight
	maxBuffered := samplerate / 2

	samples := int(duration * samplerate)
	phaseStep := 2 * math32.Pi * float32(frequency) / samplerate

	var phase float32

	for i := 0; i < samples; i++ {
		select {
		case <-osExit:
			return
		default:
		}

		p.FeedSample(float64(math32.Sin(phase)) * 0.8)
		phase += phaseStep
		if phase > 2*math32.Pi {
			phase -= 2 * math32.Pi
		}

		for p.BufferSize() > maxBuffered {
			p.Sleep(0.01)
		}
	}

	p.Flush()
	drain(p, osExit)

	log.Printf("played %.2fs\n", p.SecondsPlayed())
}
