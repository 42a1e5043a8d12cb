package audio

import "testing"

func TestNewFrame(t *testing.T) {

	f, err := NewFrame(make([]int16, 2048), 48000, 2)
	if err != nil {
		t.Fatal(err)
	}
	if f.SampleCount != 1024 {
		t.Fatalf("expected 1024 samples per channel, got %d", f.SampleCount)
	}
	if len(f.Samples) != f.SampleCount*f.Channels {
		t.Fatal("sample slice length does not match sampleCount * channels")
	}
}

func TestNewFrameCopies(t *testing.T) {

	samples := []int16{1, 2, 3, 4}
	f, err := NewFrame(samples, 44100, 1)
	if err != nil {
		t.Fatal(err)
	}

	samples[0] = 99
	if f.Samples[0] != 1 {
		t.Fatal("frame shares memory with the caller's slice")
	}
}

func TestNewFrameInvalid(t *testing.T) {

	if _, err := NewFrame(make([]int16, 4), 44100, 3); err == nil {
		t.Fatal("expected error for 3 channels")
	}
	if _, err := NewFrame(make([]int16, 4), 0, 1); err == nil {
		t.Fatal("expected error for samplerate 0")
	}
	if _, err := NewFrame(make([]int16, 5), 44100, 2); err == nil {
		t.Fatal("expected error for odd stereo sample count")
	}
}

func TestFrameSeconds(t *testing.T) {

	f, err := NewFrame(make([]int16, 44100), 44100, 1)
	if err != nil {
		t.Fatal(err)
	}
	if f.Seconds() != 1.0 {
		t.Fatalf("expected 1.0s, got %f", f.Seconds())
	}
}

func TestBufferInfoSamples(t *testing.T) {

	info := BufferInfo{
		Size:      4096, // bytes
		Channels:  2,
		Bits:      16,
		Frequency: 48000,
	}
	if info.Samples() != 1024 {
		t.Fatalf("expected 1024 samples, got %d", info.Samples())
	}

	var empty BufferInfo
	if empty.Samples() != 0 {
		t.Fatal("expected 0 samples for an empty buffer info")
	}
}
