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
	"errors"
	"fmt"
	"log"
	"os"

	ga "github.com/go-audio/audio"
	wav "github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/dh1tw/pcmPlayer/audio"
	"github.com/dh1tw/pcmPlayer/audio/player"
	"github.com/dh1tw/pcmPlayer/events"
)

// wavCmd represents the wav command
var wavCmd = &cobra.Command{
	Use:   "wav <file> [file...]",
	Short: "Play one or more wav files",
	Long: `Play one or more wav files on the local sound card

The files are played back to back. Files with different formats
(samplerate / channels) are supported; the playback pipeline drains and
reconfigures the output device at each format boundary.
`,
	Args: cobra.MinimumNArgs(1),
	Run:  playWavFiles,
}

func init() {
	RootCmd.AddCommand(wavCmd)
	registerPlaybackFlags(wavCmd)
}

func playWavFiles(cmd *cobra.Command, args []string) {

	readConfig()
	bindPlaybackFlags(cmd)
	checkPlaybackSettings()

	p, evPS, err := newPlaybackPipeline()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer p.Close()
	defer evPS.Pub(true, events.Shutdown)

	osExit := evPS.Sub(events.OsExit)

	for _, file := range args {
		if err := playWav(p, file, osExit); err != nil {
			if err == errAborted {
				return
			}
			fmt.Fprintf(os.Stderr, "%s: %v\n", file, err)
			os.Exit(1)
		}
	}

	drain(p, osExit)

	log.Printf("played %.2fs\n", p.SecondsPlayed())
}

var errAborted = errors.New("aborted")

// playWav decodes the wav file chunk by chunk and pushes the frames into
// the playback pipeline, throttled against the pipeline's buffer size.
func playWav(p *player.Player, file string, abort <-chan interface{}) error {

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)

	if !dec.IsValidFile() {
		return errors.New("invalid WAV file")
	}

	buf := &ga.IntBuffer{
		Data:   make([]int, audio.DefaultChunkSize),
		Format: dec.Format(),
	}

	samplerate := buf.Format.SampleRate
	channels := buf.Format.NumChannels
	bitDepth := int(dec.BitDepth)

	// keep at most half a second of audio in flight
	maxBuffered := samplerate / 2

	for {
		select {
		case <-abort:
			return errAborted
		default:
		}

		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}

		samples := intsToPCM16(buf.Data[:n], bitDepth)
		if err := p.PushFrame(samples, samplerate, channels); err != nil {
			return err
		}

		for p.BufferSize() > maxBuffered {
			p.Sleep(0.01)
		}
	}

	return nil
}

// intsToPCM16 converts decoded samples of the given bit depth into
// 16 bit PCM.
func intsToPCM16(data []int, bitDepth int) []int16 {
	samples := make([]int16, len(data))
	for i, s := range data {
		switch bitDepth {
		case 8: // 8 bit wav is unsigned
			samples[i] = int16((s - 128) << 8)
		case 24:
			samples[i] = int16(s >> 8)
		case 32:
			samples[i] = int16(s >> 16)
		default: // 16 bit
			samples[i] = int16(s)
		}
	}
	return samples
}
