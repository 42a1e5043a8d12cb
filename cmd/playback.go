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
	"os"
	"strings"
	"time"

	"github.com/cskr/pubsub"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dh1tw/pcmPlayer/audio/devices/paDevice"
	"github.com/dh1tw/pcmPlayer/audio/player"
	"github.com/dh1tw/pcmPlayer/events"
	"github.com/dh1tw/pcmPlayer/utils"
	"github.com/dh1tw/pcmPlayer/webserver"
)

// registerPlaybackFlags adds the flags shared by all playback commands.
func registerPlaybackFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output-device-name", "o", "default", "Output device")
	cmd.Flags().String("output-device-hostapi", "default", "Output device host API")
	cmd.Flags().Duration("output-device-latency", time.Millisecond*10, "Output latency")
	cmd.Flags().Int("frames-per-buffer", 512, "Frames written to the sound card per write")
	cmd.Flags().IntP("num-buffers", "n", 5, "Amount of device buffers")
	cmd.Flags().IntP("volume", "V", 100, "Playback volume in percent")
	cmd.Flags().BoolP("web", "w", false, "Enable the web monitor")
	cmd.Flags().String("web-address", "localhost", "Address of the web monitor")
	cmd.Flags().Int("web-port", 8080, "Port of the web monitor")
}

// bindPlaybackFlags binds the shared playback flags to viper settings.
func bindPlaybackFlags(cmd *cobra.Command) {
	viper.BindPFlag("output-device.device-name", cmd.Flags().Lookup("output-device-name"))
	viper.BindPFlag("output-device.hostapi", cmd.Flags().Lookup("output-device-hostapi"))
	viper.BindPFlag("output-device.latency", cmd.Flags().Lookup("output-device-latency"))
	viper.BindPFlag("output-device.frames-per-buffer", cmd.Flags().Lookup("frames-per-buffer"))
	viper.BindPFlag("player.num-buffers", cmd.Flags().Lookup("num-buffers"))
	viper.BindPFlag("player.volume", cmd.Flags().Lookup("volume"))
	viper.BindPFlag("web.enabled", cmd.Flags().Lookup("web"))
	viper.BindPFlag("web.address", cmd.Flags().Lookup("web-address"))
	viper.BindPFlag("web.port", cmd.Flags().Lookup("web-port"))
}

// readConfig tries to load the config file; flag values take precedence.
func readConfig() {
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	} else {
		if strings.Contains(err.Error(), "Not Found in") {
			fmt.Println("no config file found")
		} else {
			fmt.Fprintf(os.Stderr, "Error parsing config file %v: %v\n",
				viper.ConfigFileUsed(), err)
			os.Exit(1)
		}
	}
}

var hostAPIs = []string{
	"default",
	"directsound",
	"mme",
	"asio",
	"soundmanager",
	"coreaudio",
	"oss",
	"alsa",
	"al",
	"beos",
	"wdmks",
	"jack",
	"wasapi",
	"audiosciencehpi",
}

// checkPlaybackSettings verifies the viper settings common to all
// playback commands and terminates on invalid values.
func checkPlaybackSettings() {

	hostAPI := strings.ToLower(viper.GetString("output-device.hostapi"))
	if !utils.StringInSlice(hostAPI, hostAPIs) {
		fmt.Println("unknown host api:", hostAPI)
		fmt.Println("supported host apis:", strings.Join(hostAPIs, ", "))
		os.Exit(-1)
	}

	numBuffers := viper.GetInt("player.num-buffers")
	if numBuffers < 2 {
		fmt.Println("num-buffers must be >= 2")
		os.Exit(-1)
	}

	volume := viper.GetInt("player.volume")
	if volume < 0 || volume > 100 {
		fmt.Println("volume must be between 0 and 100 percent")
		os.Exit(-1)
	}
}

// newPlaybackPipeline assembles the playback pipeline from the viper
// settings: a portaudio output device, the player on top of it and, if
// enabled, the web monitor. The returned pubsub carries the playback
// events; the caller should watch events.OsExit for CTRL-C.
func newPlaybackPipeline(opts ...player.Option) (*player.Player, *pubsub.PubSub, error) {

	evPS := pubsub.New(10)

	dev := paDevice.New(
		paDevice.DeviceName(viper.GetString("output-device.device-name")),
		paDevice.HostAPI(viper.GetString("output-device.hostapi")),
		paDevice.Latency(viper.GetDuration("output-device.latency")),
		paDevice.FramesPerBuffer(viper.GetInt("output-device.frames-per-buffer")),
	)

	playerOpts := append([]player.Option{
		player.NumBuffers(viper.GetInt("player.num-buffers")),
		player.EventBus(evPS),
	}, opts...)

	p, err := player.NewPlayer(dev, playerOpts...)
	if err != nil {
		return nil, nil, err
	}

	p.SetVolume(float32(viper.GetInt("player.volume")) / 100)

	if err := p.Start(); err != nil {
		return nil, nil, err
	}

	// apply volume changes requested through the web interface
	go func() {
		volumeCh := evPS.Sub(events.SetVolume)
		shutdownCh := evPS.Sub(events.Shutdown)
		for {
			select {
			case ev := <-volumeCh:
				p.SetVolume(ev.(float32))
			case <-shutdownCh:
				return
			}
		}
	}()

	if viper.GetBool("web.enabled") {
		web, err := webserver.NewWebServer(viper.GetString("web.address"),
			viper.GetInt("web.port"), p, evPS)
		if err != nil {
			p.Close()
			return nil, nil, err
		}
		go web.Start()
	}

	go events.WatchSystemEvents(evPS)

	return p, evPS, nil
}

// drain waits until all enqueued samples have been handed to the sound
// card, or the user aborts.
func drain(p *player.Player, abort <-chan interface{}) {
	for p.BufferSize() > 0 {
		select {
		case <-abort:
			return
		default:
		}
		p.Sleep(0.1)
	}
	// grant the device buffers some time to play out
	p.Sleep(0.2)
}
