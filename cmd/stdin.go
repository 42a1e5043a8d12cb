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
	"bufio"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dh1tw/pcmPlayer/audio/player"
	"github.com/dh1tw/pcmPlayer/events"
	"github.com/dh1tw/pcmPlayer/utils"
)

// stdinCmd represents the stdin command
var stdinCmd = &cobra.Command{
	Use:   "stdin",
	Short: "Play raw float32 PCM read from stdin",
	Long: `Play raw float32 PCM read from stdin

The input must be a stream of 32 bit little endian floats with
interleaved channels, e.g. as produced by:

  sox music.mp3 -t raw -e float -b 32 -L - | pcmPlayer stdin -s 44100 -c 2
`,
	Run: playStdin,
}

func init() {
	RootCmd.AddCommand(stdinCmd)
	registerPlaybackFlags(stdinCmd)
	stdinCmd.Flags().IntP("samplerate", "s", 44100, "Samplerate of the input in Hz")
	stdinCmd.Flags().IntP("channels", "c", 1, "Amount of interleaved channels")
}

func playStdin(cmd *cobra.Command, args []string) {

	readConfig()

	bindPlaybackFlags(cmd)
	viper.BindPFlag("stdin.samplerate", cmd.Flags().Lookup("samplerate"))
	viper.BindPFlag("stdin.channels", cmd.Flags().Lookup("channels"))

	checkPlaybackSettings()

	samplerate := viper.GetInt("stdin.samplerate")
	channels := viper.GetInt("stdin.channels")

	if samplerate <= 0 {
		fmt.Println("samplerate must be > 0")
		os.Exit(-1)
	}
	if channels < 1 || channels > 2 {
		fmt.Println("channels must be 1 or 2")
		os.Exit(-1)
	}

	p, evPS, err := newPlaybackPipeline(
		player.Samplerate(samplerate),
		player.Channels(channels),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer p.Close()
	defer evPS.Pub(true, events.Shutdown)

	osExit := evPS.Sub(events.OsExit)

	// keep at most half a second of audio in flight
	maxBuffered := samplerate / 2

	in := bufio.NewReader(os.Stdin)
	var raw [4]byte

	for {
		select {
		case <-osExit:
			return
		default:
		}

		if _, err := io.ReadFull(in, raw[:]); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			break
		}

		sample := utils.UnpackFloat32(raw[0], raw[1], raw[2], raw[3])
		p.FeedSample(float64(sample))

		for p.BufferSize() > maxBuffered {
			p.Sleep(0.01)
		}
	}

	p.Flush()
	drain(p, osExit)

	log.Printf("played %.2fs\n", p.SecondsPlayed())
}
