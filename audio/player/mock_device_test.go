package player

import (
	"fmt"
	"sync"

	"github.com/dh1tw/pcmPlayer/audio"
)

// mockDevice is an in-memory implementation of the audio.Device
// interface. Tests drive buffer completion explicitly through complete.
type mockDevice struct {
	sync.Mutex
	opened    bool
	closed    bool
	gain      float32
	buffers   map[audio.BufferID]mockBuffer
	nextID    audio.BufferID
	hasSource bool

	queued    []audio.BufferID // queued on the source, not yet processed
	processed []audio.BufferID
	state     audio.SourceState

	playCalls  int
	stopCalls  int
	clearCalls int

	// BufferData calls in order of submission
	submissions []submission
}

type mockBuffer struct {
	samples    []int16
	channels   int
	samplerate int
}

type submission struct {
	buf        audio.BufferID
	samplerate int
	channels   int
	first      int16 // first sample, used to verify ordering
}

func newMockDevice() *mockDevice {
	return &mockDevice{
		buffers: make(map[audio.BufferID]mockBuffer),
	}
}

func (m *mockDevice) Open() error {
	m.Lock()
	defer m.Unlock()
	m.opened = true
	return nil
}

func (m *mockDevice) Close() error {
	m.Lock()
	defer m.Unlock()
	m.closed = true
	return nil
}

func (m *mockDevice) SetGain(gain float32) error {
	m.Lock()
	defer m.Unlock()
	m.gain = gain
	return nil
}

func (m *mockDevice) GenBuffers(n int) ([]audio.BufferID, error) {
	m.Lock()
	defer m.Unlock()
	ids := make([]audio.BufferID, 0, n)
	for i := 0; i < n; i++ {
		m.nextID++
		m.buffers[m.nextID] = mockBuffer{}
		ids = append(ids, m.nextID)
	}
	return ids, nil
}

func (m *mockDevice) GenSource() (audio.SourceID, error) {
	m.Lock()
	defer m.Unlock()
	if m.hasSource {
		return 0, fmt.Errorf("source already allocated")
	}
	m.hasSource = true
	return audio.SourceID(1), nil
}

func (m *mockDevice) BufferData(b audio.BufferID, channels int, samples []int16, samplerate int) error {
	m.Lock()
	defer m.Unlock()
	if _, ok := m.buffers[b]; !ok {
		return fmt.Errorf("unknown buffer %d", b)
	}
	data := make([]int16, len(samples))
	copy(data, samples)
	m.buffers[b] = mockBuffer{samples: data, channels: channels, samplerate: samplerate}

	var first int16
	if len(samples) > 0 {
		first = samples[0]
	}
	m.submissions = append(m.submissions, submission{
		buf:        b,
		samplerate: samplerate,
		channels:   channels,
		first:      first,
	})
	return nil
}

func (m *mockDevice) QueueBuffer(src audio.SourceID, b audio.BufferID) error {
	m.Lock()
	defer m.Unlock()
	m.queued = append(m.queued, b)
	return nil
}

func (m *mockDevice) ProcessedBuffers(src audio.SourceID) (int, error) {
	m.Lock()
	defer m.Unlock()
	return len(m.processed), nil
}

func (m *mockDevice) UnqueueBuffer(src audio.SourceID) (audio.BufferID, error) {
	m.Lock()
	defer m.Unlock()
	if len(m.processed) == 0 {
		return 0, fmt.Errorf("no processed buffer")
	}
	b := m.processed[0]
	m.processed = m.processed[1:]
	return b, nil
}

func (m *mockDevice) BufferInfo(b audio.BufferID) (audio.BufferInfo, error) {
	m.Lock()
	defer m.Unlock()
	buf, ok := m.buffers[b]
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

func (m *mockDevice) Play(src audio.SourceID) error {
	m.Lock()
	defer m.Unlock()
	m.state = audio.Playing
	m.playCalls++
	return nil
}

func (m *mockDevice) Stop(src audio.SourceID) error {
	m.Lock()
	defer m.Unlock()
	m.state = audio.Stopped
	m.stopCalls++
	return nil
}

func (m *mockDevice) State(src audio.SourceID) (audio.SourceState, error) {
	m.Lock()
	defer m.Unlock()
	return m.state, nil
}

func (m *mockDevice) ClearBuffers(src audio.SourceID) error {
	m.Lock()
	defer m.Unlock()
	if m.state == audio.Playing {
		return fmt.Errorf("source is playing")
	}
	m.clearCalls++
	m.queued = nil
	m.processed = nil
	return nil
}

// complete marks the n oldest queued buffers as processed, simulating
// the device having finished playing them.
func (m *mockDevice) complete(n int) {
	m.Lock()
	defer m.Unlock()
	for i := 0; i < n && len(m.queued) > 0; i++ {
		m.processed = append(m.processed, m.queued[0])
		m.queued = m.queued[1:]
	}
}

// ranDry simulates a buffer underrun: all queued buffers are processed
// and the source stops.
func (m *mockDevice) ranDry() {
	m.Lock()
	defer m.Unlock()
	m.processed = append(m.processed, m.queued...)
	m.queued = nil
	m.state = audio.Stopped
}

func (m *mockDevice) numQueued() int {
	m.Lock()
	defer m.Unlock()
	return len(m.queued)
}

func (m *mockDevice) numPlayCalls() int {
	m.Lock()
	defer m.Unlock()
	return m.playCalls
}

func (m *mockDevice) numStopCalls() int {
	m.Lock()
	defer m.Unlock()
	return m.stopCalls
}

func (m *mockDevice) numClearCalls() int {
	m.Lock()
	defer m.Unlock()
	return m.clearCalls
}

func (m *mockDevice) numSubmissions() int {
	m.Lock()
	defer m.Unlock()
	return len(m.submissions)
}

func (m *mockDevice) submissionList() []submission {
	m.Lock()
	defer m.Unlock()
	subs := make([]submission, len(m.submissions))
	copy(subs, m.submissions)
	return subs
}

func (m *mockDevice) isClosed() bool {
	m.Lock()
	defer m.Unlock()
	return m.closed
}
