package audio

import (
	"math/rand"
	"sync"
	"testing"
	"time"
)

func testFrame(t *testing.T, sampleCount int, samplerate, channels int) *Frame {
	t.Helper()
	f, err := NewFrame(make([]int16, sampleCount*channels), samplerate, channels)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestQueueFIFO(t *testing.T) {

	q := NewFrameQueue()

	pushed := []*Frame{}
	for i := 0; i < 50; i++ {
		f := testFrame(t, rand.Intn(2000)+1, 44100, 1)
		f.Samples[0] = int16(i)
		q.Push(f)
		pushed = append(pushed, f)
	}

	for i, want := range pushed {
		got, err := q.Pop()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("frame %d popped out of order", i)
		}
	}
}

func TestQueuedSamples(t *testing.T) {

	q := NewFrameQueue()

	sizes := []int{512, 1024, 13, 2048, 7}
	total := 0
	for _, s := range sizes {
		q.Push(testFrame(t, s, 44100, 1))
		total += s
	}

	if q.QueuedSamples() != total {
		t.Fatalf("expected %d queued samples, got %d", total, q.QueuedSamples())
	}

	// pop two frames
	for i := 0; i < 2; i++ {
		f, err := q.Pop()
		if err != nil {
			t.Fatal(err)
		}
		total -= f.SampleCount
	}

	if q.QueuedSamples() != total {
		t.Fatalf("expected %d queued samples after pops, got %d", total, q.QueuedSamples())
	}
}

func TestQueueConcurrentPushPop(t *testing.T) {

	q := NewFrameQueue()

	const pushers = 8
	const framesPerPusher = 200

	var wg sync.WaitGroup
	wg.Add(pushers)
	for i := 0; i < pushers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < framesPerPusher; j++ {
				q.Push(testFrame(t, 64, 44100, 1))
			}
		}()
	}

	popped := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for popped < pushers*framesPerPusher {
			if _, err := q.Pop(); err != nil {
				t.Error(err)
				return
			}
			popped++
		}
	}()

	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the queue in time")
	}

	if q.QueuedSamples() != 0 {
		t.Fatalf("expected empty queue, got %d queued samples", q.QueuedSamples())
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d frames", q.Len())
	}
}

func TestQueuePopBlocks(t *testing.T) {

	q := NewFrameQueue()

	got := make(chan *Frame)
	go func() {
		f, err := q.Pop()
		if err != nil {
			t.Error(err)
		}
		got <- f
	}()

	select {
	case <-got:
		t.Fatal("pop returned on an empty queue")
	case <-time.After(50 * time.Millisecond):
	}

	want := testFrame(t, 128, 44100, 1)
	q.Push(want)

	select {
	case f := <-got:
		if f != want {
			t.Fatal("popped unexpected frame")
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not return after push")
	}
}

func TestQueueClose(t *testing.T) {

	q := NewFrameQueue()
	q.Push(testFrame(t, 100, 44100, 1))
	q.Close()

	// frames still in the queue can be popped
	if _, err := q.Pop(); err != nil {
		t.Fatal(err)
	}

	if _, err := q.Pop(); err != ErrQueueClosed {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}

	// pushes after close are discarded
	q.Push(testFrame(t, 100, 44100, 1))
	if q.Len() != 0 {
		t.Fatal("push after close was not discarded")
	}
}

func TestQueueCloseUnblocksPop(t *testing.T) {

	q := NewFrameQueue()

	errCh := make(chan error)
	go func() {
		_, err := q.Pop()
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		if err != ErrQueueClosed {
			t.Fatalf("expected ErrQueueClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("close did not unblock pop")
	}
}
