package runners

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/seaquell/outpost/internal/gesture"
	"github.com/seaquell/outpost/internal/platform"
	"github.com/seaquell/outpost/pkg/protocol"
)

// recorder captures emitted frames for assertions.
type recorder struct {
	mu     sync.Mutex
	frames []any
}

func (r *recorder) Send(frame any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *recorder) all() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.frames))
	copy(out, r.frames)
	return out
}

func (r *recorder) progressValues() []int {
	var vals []int
	for _, f := range r.all() {
		if p, ok := f.(protocol.ProgressFrame); ok {
			vals = append(vals, p.Progress)
		}
	}
	return vals
}

func (r *recorder) results() []protocol.ResultFrame {
	var res []protocol.ResultFrame
	for _, f := range r.all() {
		if rf, ok := f.(protocol.ResultFrame); ok {
			res = append(res, rf)
		}
	}
	return res
}

// waitResult polls until a result frame appears.
func (r *recorder) waitResult(t *testing.T, timeout time.Duration) protocol.ResultFrame {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if res := r.results(); len(res) > 0 {
			return res[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no result frame emitted")
	return protocol.ResultFrame{}
}

// checkWellFormed asserts the per-id frame contract: zero or more
// progress frames, then exactly one result, then nothing.
func (r *recorder) checkWellFormed(t *testing.T, taskID string) {
	t.Helper()
	frames := r.all()
	resultSeen := false
	for i, f := range frames {
		switch fr := f.(type) {
		case protocol.ProgressFrame:
			if fr.TaskID != taskID {
				t.Errorf("frame %d: taskId = %q, want %q", i, fr.TaskID, taskID)
			}
			if resultSeen {
				t.Errorf("frame %d: progress after result", i)
			}
			if fr.Progress < 0 || fr.Progress > 100 {
				t.Errorf("frame %d: progress %d out of range", i, fr.Progress)
			}
		case protocol.ResultFrame:
			if fr.TaskID != taskID {
				t.Errorf("frame %d: taskId = %q, want %q", i, fr.TaskID, taskID)
			}
			if resultSeen {
				t.Errorf("frame %d: second result frame", i)
			}
			resultSeen = true
		}
	}
	if !resultSeen {
		t.Error("no result frame emitted")
	}
}

type nopPrompter struct{}

func (nopPrompter) Show(string) {}
func (nopPrompter) Hide()       {}

// newAutoGate returns a gate whose prompts are confirmed as soon as
// they appear, until the test ends.
func newAutoGate(t *testing.T) *gesture.Gate {
	g := gesture.New(nopPrompter{})
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			if !g.Confirm() {
				time.Sleep(2 * time.Millisecond)
			}
		}
	}()
	return g
}

// newSilentGate returns a gate that is never confirmed.
func newSilentGate() *gesture.Gate {
	return gesture.New(nopPrompter{})
}

// --- platform fakes ---

type fakeLocation struct {
	pos    platform.Position
	err    error
	block  bool // CurrentPosition waits out ctx
	watch  *fakeWatch
	werr   error
}

func (f *fakeLocation) CurrentPosition(ctx context.Context, _ platform.LocationOptions) (platform.Position, error) {
	if f.block {
		<-ctx.Done()
		return platform.Position{}, ctx.Err()
	}
	return f.pos, f.err
}

func (f *fakeLocation) Watch(ctx context.Context, _ platform.LocationOptions) (platform.LocationWatch, error) {
	if f.werr != nil {
		return nil, f.werr
	}
	return f.watch, nil
}

type fakeWatch struct {
	updates   chan platform.Position
	errs      chan error
	stopOnce  sync.Once
	stopCount int
}

func newFakeWatch() *fakeWatch {
	return &fakeWatch{
		updates: make(chan platform.Position, 16),
		errs:    make(chan error, 1),
	}
}

func (w *fakeWatch) Updates() <-chan platform.Position { return w.updates }
func (w *fakeWatch) Errs() <-chan error                { return w.errs }
func (w *fakeWatch) Stop() {
	w.stopOnce.Do(func() {
		w.stopCount++
		close(w.updates)
		close(w.errs)
	})
}

type fakeCamera struct {
	openErr error
	stream  *fakeCameraStream
}

func (f *fakeCamera) Open(ctx context.Context, facing string) (platform.CameraStream, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.stream.facing = facing
	return f.stream, nil
}

type fakeCameraStream struct {
	frame  image.Image
	facing string

	mu     sync.Mutex
	closed int
}

func newFakeCameraStream() *fakeCameraStream {
	return &fakeCameraStream{frame: image.NewRGBA(image.Rect(0, 0, 1280, 720))}
}

// NextFrame paces delivery like a rendering loop would.
func (s *fakeCameraStream) NextFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return s.frame, nil
	}
}

func (s *fakeCameraStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeCameraStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// staticDetector decodes after a fixed number of frames.
type staticDetector struct {
	afterFrames int
	value       string

	mu   sync.Mutex
	seen int
}

func (d *staticDetector) Detect(_ image.Image) (string, string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen++
	if d.seen >= d.afterFrames {
		return d.value, "qr_code", true
	}
	return "", "", false
}

type fakeMic struct {
	openErr error
	stream  *fakeAudioStream
}

func (f *fakeMic) Open(ctx context.Context) (platform.AudioStream, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

type fakeAudioStream struct {
	rate    int
	samples chan []int16

	mu     sync.Mutex
	closed int
}

func newFakeAudioStream(rate int) *fakeAudioStream {
	return &fakeAudioStream{rate: rate, samples: make(chan []int16, 64)}
}

func (s *fakeAudioStream) Samples() <-chan []int16 { return s.samples }
func (s *fakeAudioStream) SampleRate() int         { return s.rate }

func (s *fakeAudioStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeAudioStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeLister struct {
	devices []platform.DeviceInfo
	err     error
}

func (f *fakeLister) Devices(ctx context.Context) ([]platform.DeviceInfo, error) {
	return f.devices, f.err
}
