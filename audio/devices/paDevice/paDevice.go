// Package paDevice provides an implementation of the audio.Device
// interface on top of portaudio. Since portaudio itself has no notion of
// queueable buffers, the buffer/source model is emulated: submitted
// buffers are held in a FIFO from which a pump goroutine performs
// blocking writes to the sound card; fully written buffers become
// "processed" and can be reclaimed through the polling queries.
package paDevice

import (
	"fmt"
	"log"
	"runtime"
	"strings"
	"sync"
	"time"

	ringBuffer "github.com/dh1tw/golang-ring"
	"github.com/dh1tw/pcmPlayer/audio"
	pa "github.com/gordonklaus/portaudio"
)

// PaDevice implements the audio.Device interface for a local sound card
// output device (e.g. speakers). Only a single playback source is
// supported.
type PaDevice struct {
	sync.Mutex
	options    Options
	deviceInfo *pa.DeviceInfo
	stream     *pa.Stream
	out        []int16

	// format of the currently opened stream
	streamRate     int
	streamChannels int

	buffers   map[audio.BufferID]*buffer
	nextID    audio.BufferID
	hasSource bool

	pending   []audio.BufferID // queued for playback, in order
	processed ringBuffer.Ring  // BufferIDs finished playing
	state     audio.SourceState
	gain      float32

	// write performs the blocking writes to the sound card; replaceable
	// in tests
	write func(stream *pa.Stream, out, samples []int16, gain float32) error

	pumpRunning bool
	pumpParked  *sync.Cond
	opened      bool
	closed      bool
}

// buffer holds the PCM data and format last submitted with BufferData.
type buffer struct {
	samples    []int16
	channels   int
	samplerate int
}

// New returns a portaudio backed output device.
func New(opts ...Option) *PaDevice {

	d := &PaDevice{
		options: Options{
			HostAPI:         "default",
			DeviceName:      "default",
			FramesPerBuffer: 512,
			Latency:         time.Millisecond * 10,
		},
		buffers: make(map[audio.BufferID]*buffer),
		state:   audio.Initial,
		gain:    1.0,
		write:   writeBuffer,
	}
	d.pumpParked = sync.NewCond(&d.Mutex)

	for _, option := range opts {
		option(&d.options)
	}

	return d
}

// Open initializes portaudio and looks up the configured output device.
// The actual stream is opened lazily on Play, once the audio format is
// known from the first queued buffer.
func (d *PaDevice) Open() error {
	d.Lock()
	defer d.Unlock()

	if d.opened {
		return nil
	}

	if err := pa.Initialize(); err != nil {
		return err
	}

	var hostAPI *pa.HostApiInfo

	if d.options.HostAPI == "default" {
		switch runtime.GOOS {
		case "windows":
			// try to use WASAPI since it provides lower latency than the
			// other windows audio apis
			ha, err := pa.HostApi(pa.WASAPI)
			if err != nil {
				// try to fallback to the default API
				ha, err = pa.DefaultHostApi()
				if err != nil {
					return fmt.Errorf("unable to determine the default host api - please provide a specific host api")
				}
			}
			hostAPI = ha
		default:
			// all other OS
			ha, err := pa.DefaultHostApi()
			if err != nil {
				return fmt.Errorf("unable to determine the default host api - please provide a specific host api")
			}
			hostAPI = ha
		}
	} else {
		ha, err := getHostAPI(d.options.HostAPI)
		if err != nil {
			return err
		}
		hostAPI = ha
	}

	if d.options.DeviceName == "default" {
		d.deviceInfo = hostAPI.DefaultOutputDevice
	} else {
		dev, err := getPaDevice(d.options.DeviceName, hostAPI)
		if err != nil {
			return err
		}
		d.deviceInfo = dev
	}

	if d.deviceInfo == nil {
		return fmt.Errorf("no output device available")
	}

	d.opened = true
	log.Printf("output sound device: %s, HostAPI: %s\n",
		d.deviceInfo.Name, d.deviceInfo.HostApi.Name)

	return nil
}

// Close stops playback, closes the stream and terminates portaudio.
func (d *PaDevice) Close() error {
	d.Lock()
	defer d.Unlock()

	if !d.opened {
		return nil
	}

	d.closed = true
	d.state = audio.Stopped
	d.waitPumpParked()

	if d.stream != nil {
		d.stream.Abort()
		d.stream.Stop()
		d.stream.Close()
		d.stream = nil
	}
	d.opened = false

	return pa.Terminate()
}

// SetGain sets the output gain. Since portaudio has no master gain, the
// gain is applied to the samples when they are written to the stream.
func (d *PaDevice) SetGain(gain float32) error {
	if gain < 0 || gain > 1 {
		return fmt.Errorf("gain out of range: %f", gain)
	}
	d.Lock()
	defer d.Unlock()
	d.gain = gain
	return nil
}

// GenBuffers allocates n buffers.
func (d *PaDevice) GenBuffers(n int) ([]audio.BufferID, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid amount of buffers: %d", n)
	}
	d.Lock()
	defer d.Unlock()

	ids := make([]audio.BufferID, 0, n)
	for i := 0; i < n; i++ {
		d.nextID++
		d.buffers[d.nextID] = &buffer{}
		ids = append(ids, d.nextID)
	}

	// the processed FIFO never holds more entries than buffers exist
	d.processed.SetCapacity(len(d.buffers))

	return ids, nil
}

// GenSource allocates the playback source. Only one source is supported.
func (d *PaDevice) GenSource() (audio.SourceID, error) {
	d.Lock()
	defer d.Unlock()

	if d.hasSource {
		return 0, fmt.Errorf("only one playback source supported")
	}
	d.hasSource = true
	return audio.SourceID(1), nil
}

// BufferData stores the PCM data and format in the given buffer.
func (d *PaDevice) BufferData(b audio.BufferID, channels int, samples []int16, samplerate int) error {
	d.Lock()
	defer d.Unlock()

	buf, ok := d.buffers[b]
	if !ok {
		return fmt.Errorf("unknown buffer %d", b)
	}

	data := make([]int16, len(samples))
	copy(data, samples)

	buf.samples = data
	buf.channels = channels
	buf.samplerate = samplerate

	return nil
}

// QueueBuffer appends the buffer to the source's playback FIFO.
func (d *PaDevice) QueueBuffer(src audio.SourceID, b audio.BufferID) error {
	d.Lock()
	defer d.Unlock()

	if err := d.checkSource(src); err != nil {
		return err
	}
	if _, ok := d.buffers[b]; !ok {
		return fmt.Errorf("unknown buffer %d", b)
	}
	d.pending = append(d.pending, b)
	return nil
}

// ProcessedBuffers returns the amount of buffers which have been fully
// written to the sound card and can be unqueued.
func (d *PaDevice) ProcessedBuffers(src audio.SourceID) (int, error) {
	d.Lock()
	defer d.Unlock()

	if err := d.checkSource(src); err != nil {
		return 0, err
	}
	return d.processed.Length(), nil
}

// UnqueueBuffer removes and returns the oldest processed buffer.
func (d *PaDevice) UnqueueBuffer(src audio.SourceID) (audio.BufferID, error) {
	d.Lock()
	defer d.Unlock()

	if err := d.checkSource(src); err != nil {
		return 0, err
	}
	head := d.processed.Dequeue()
	if head == nil {
		return 0, fmt.Errorf("no processed buffer available")
	}
	return head.(audio.BufferID), nil
}

// BufferInfo returns the properties of the PCM data last submitted into
// the buffer.
func (d *PaDevice) BufferInfo(b audio.BufferID) (audio.BufferInfo, error) {
	d.Lock()
	defer d.Unlock()

	buf, ok := d.buffers[b]
	if !ok {
		return audio.BufferInfo{}, fmt.Errorf("unknown buffer %d", b)
	}

	info := audio.BufferInfo{
		Size:      len(buf.samples) * 2,
		Channels:  buf.channels,
		Bits:      16,
		Frequency: buf.samplerate,
	}
	return info, nil
}

// Play starts (or resumes) playback of the queued buffers. If the format
// of the next queued buffer differs from the currently opened stream,
// the stream is reopened with the new format.
func (d *PaDevice) Play(src audio.SourceID) error {
	d.Lock()
	defer d.Unlock()

	if err := d.checkSource(src); err != nil {
		return err
	}
	if !d.opened {
		return fmt.Errorf("device not opened")
	}

	// reconfigure the stream only while the source is not playing; the
	// pump must be parked before the stream can be touched
	if d.state != audio.Playing {
		d.waitPumpParked()

		// determine the playback format from the head of the FIFO
		if len(d.pending) > 0 {
			buf := d.buffers[d.pending[0]]
			if err := d.ensureStream(buf.samplerate, buf.channels); err != nil {
				return err
			}
		}
	}

	d.state = audio.Playing

	if !d.pumpRunning {
		d.pumpRunning = true
		go d.pump()
	}

	return nil
}

// Stop halts playback. It blocks until the pump has finished the write
// in progress and parked, so callers may safely detach buffers or
// reconfigure the stream afterwards.
func (d *PaDevice) Stop(src audio.SourceID) error {
	d.Lock()
	defer d.Unlock()

	if err := d.checkSource(src); err != nil {
		return err
	}
	if d.state == audio.Playing {
		d.state = audio.Stopped
	}
	d.waitPumpParked()
	return nil
}

// State returns the current playback state of the source.
func (d *PaDevice) State(src audio.SourceID) (audio.SourceState, error) {
	d.Lock()
	defer d.Unlock()

	if err := d.checkSource(src); err != nil {
		return audio.Initial, err
	}
	return d.state, nil
}

// ClearBuffers detaches all queued and processed buffers from the
// source. The source must be stopped.
func (d *PaDevice) ClearBuffers(src audio.SourceID) error {
	d.Lock()
	defer d.Unlock()

	if err := d.checkSource(src); err != nil {
		return err
	}
	if d.state == audio.Playing {
		return fmt.Errorf("unable to clear buffers while playing")
	}
	d.waitPumpParked()

	d.pending = d.pending[:0]
	d.processed = ringBuffer.Ring{}
	d.processed.SetCapacity(len(d.buffers))

	return nil
}

// checkSource must be called with the mutex held.
func (d *PaDevice) checkSource(src audio.SourceID) error {
	if !d.hasSource || src != audio.SourceID(1) {
		return fmt.Errorf("unknown source %d", src)
	}
	return nil
}

// pump writes pending buffers to the sound card until the FIFO runs dry
// or playback is stopped. When the FIFO runs dry the source transitions
// to Stopped - this is the underrun the playback loop recovers from by
// calling Play again.
func (d *PaDevice) pump() {
	for {
		d.Lock()
		if d.closed || d.state != audio.Playing {
			d.park()
			d.Unlock()
			return
		}

		if len(d.pending) == 0 {
			// ran dry
			d.state = audio.Stopped
			d.park()
			d.Unlock()
			return
		}
		id := d.pending[0]
		d.pending = d.pending[1:]
		buf := d.buffers[id]
		stream := d.stream
		out := d.out
		gain := d.gain
		d.Unlock()

		err := d.write(stream, out, buf.samples, gain)

		d.Lock()
		if err != nil {
			// nothing reached the sound card; put the buffer back at
			// the head and park so the frame is not lost
			log.Println("paDevice:", err)
			d.pending = append([]audio.BufferID{id}, d.pending...)
			d.state = audio.Stopped
			d.park()
			d.Unlock()
			return
		}
		d.processed.Enqueue(id)
		d.Unlock()
	}
}

// park must be called with the mutex held.
func (d *PaDevice) park() {
	d.pumpRunning = false
	d.pumpParked.Broadcast()
}

// waitPumpParked blocks until the pump goroutine has parked. Must be
// called with the mutex held and with the state set to something other
// than Playing, otherwise the pump keeps running.
func (d *PaDevice) waitPumpParked() {
	for d.pumpRunning {
		d.pumpParked.Wait()
	}
}

// writeBuffer writes the samples in chunks of len(out) to the sound
// card. The final partial chunk is padded with silence.
func writeBuffer(stream *pa.Stream, out []int16, samples []int16, gain float32) error {
	if stream == nil || len(out) == 0 {
		return fmt.Errorf("stream not opened")
	}

	for len(samples) > 0 {
		n := copy(out, samples)
		samples = samples[n:]
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
		if gain != 1.0 {
			applyGain(out[:n], gain)
		}
		if err := stream.Write(); err != nil {
			// typically an output underflow; the write went through
			log.Println("paDevice:", err)
		}
	}

	return nil
}

func applyGain(samples []int16, gain float32) {
	for i, s := range samples {
		samples[i] = int16(float32(s) * gain)
	}
}

// ensureStream (re)opens the portaudio stream for the given format. Must
// be called with the mutex held and the pump parked.
func (d *PaDevice) ensureStream(samplerate, channels int) error {
	if d.stream != nil && d.streamRate == samplerate && d.streamChannels == channels {
		return nil
	}

	if d.stream != nil {
		d.stream.Stop()
		d.stream.Close()
		d.stream = nil
	}

	streamDeviceParam := pa.StreamDeviceParameters{
		Device:   d.deviceInfo,
		Channels: channels,
		Latency:  d.options.Latency,
	}

	streamParm := pa.StreamParameters{
		FramesPerBuffer: d.options.FramesPerBuffer,
		Output:          streamDeviceParam,
		SampleRate:      float64(samplerate),
	}

	d.out = make([]int16, d.options.FramesPerBuffer*channels)

	stream, err := pa.OpenStream(streamParm, &d.out)
	if err != nil {
		return fmt.Errorf("unable to open playback audio stream on device %s: %s",
			d.options.DeviceName, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("unable to start playback audio stream: %s", err)
	}

	d.stream = stream
	d.streamRate = samplerate
	d.streamChannels = channels

	return nil
}

// getHostAPI takes the name of a supported portaudio host api and returns
// the corresponding portaudio hostApiInfo object
func getHostAPI(name string) (*pa.HostApiInfo, error) {

	var hostAPIType pa.HostApiType

	switch strings.ToLower(name) {
	case "indevelopment":
		hostAPIType = pa.InDevelopment
	case "directsound":
		hostAPIType = pa.DirectSound
	case "mme":
		hostAPIType = pa.MME
	case "asio":
		hostAPIType = pa.ASIO
	case "soundmanager":
		hostAPIType = pa.SoundManager
	case "coreaudio":
		hostAPIType = pa.CoreAudio
	case "oss":
		hostAPIType = pa.OSS
	case "alsa":
		hostAPIType = pa.ALSA
	case "al":
		hostAPIType = pa.AL
	case "beos":
		hostAPIType = pa.BeOS
	case "wdmks":
		hostAPIType = pa.WDMkS
	case "jack":
		hostAPIType = pa.JACK
	case "wasapi":
		hostAPIType = pa.WASAPI
	case "audiosciencehpi":
		hostAPIType = pa.AudioScienceHPI
	default:
		return nil, fmt.Errorf("unknown host api type: %s", name)
	}

	hostAPIInfo, err := pa.HostApi(hostAPIType)
	if err != nil {
		return nil, fmt.Errorf("unable to load host api %s: %s", name, err.Error())
	}

	return hostAPIInfo, nil

}

// getPaDevice checks if the Audio Devices actually exist and
// then returns it
func getPaDevice(name string, hostAPI *pa.HostApiInfo) (*pa.DeviceInfo, error) {
	for _, device := range hostAPI.Devices {
		if strings.EqualFold(device.Name, name) {
			return device, nil
		}
	}
	return nil, fmt.Errorf("unknown audio device '%s'", name)
}
