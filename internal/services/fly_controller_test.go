package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"trip-route-engine/internal/domain"
)

// fakeView fires move-end after a per-target delay; a negative delay never fires.
type fakeView struct {
	mu        sync.Mutex
	zoom      float64
	ops       []string
	flights   []domain.Coordinates
	listeners map[int]func()
	nextID    int
	delay     func(domain.Coordinates) time.Duration
	flyErr    func(domain.Coordinates) error
	panicOn   *domain.Coordinates
}

func newFakeView(zoom float64) *fakeView {
	return &fakeView{
		zoom:      zoom,
		listeners: map[int]func(){},
		delay:     func(domain.Coordinates) time.Duration { return time.Millisecond },
	}
}

func (v *fakeView) record(op string) {
	v.mu.Lock()
	v.ops = append(v.ops, op)
	v.mu.Unlock()
}

func (v *fakeView) SetView(_ domain.Coordinates, zoom float64) error {
	v.record("set-view")
	v.mu.Lock()
	v.zoom = zoom
	v.mu.Unlock()
	return nil
}

func (v *fakeView) FlyTo(center domain.Coordinates, zoom float64) error {
	v.record("fly-to")
	v.mu.Lock()
	v.flights = append(v.flights, center)
	v.zoom = zoom
	flyErr, panicOn, delay := v.flyErr, v.panicOn, v.delay(center)
	v.mu.Unlock()

	if panicOn != nil && *panicOn == center {
		panic("map container gone")
	}
	if flyErr != nil {
		if err := flyErr(center); err != nil {
			return err
		}
	}
	if delay >= 0 {
		time.AfterFunc(delay, v.fireMoveEnd)
	}
	return nil
}

func (v *fakeView) Bounds() domain.Bounds { return domain.Bounds{} }

func (v *fakeView) Zoom() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoom
}

func (v *fakeView) OnMoveEnd(fn func()) func() {
	v.record("on-move-end")
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		delete(v.listeners, id)
		v.mu.Unlock()
	}
}

func (v *fakeView) InvalidateSize() { v.record("invalidate") }

func (v *fakeView) fireMoveEnd() {
	v.mu.Lock()
	fns := make([]func(), 0, len(v.listeners))
	for _, fn := range v.listeners {
		fns = append(fns, fn)
	}
	v.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func startController(t *testing.T, opts ...FlyOption) (*FlyController, context.CancelFunc) {
	t.Helper()
	opts = append([]FlyOption{WithFlyTick(2 * time.Millisecond)}, opts...)
	c := NewFlyController(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c, cancel
}

func waitFlight(t *testing.T, f *Flight) (domain.FlyResult, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	res, err := f.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("flight %s did not finish", f.Request().TargetID)
	}
	return res, err
}

func TestFlyControllerFIFO(t *testing.T) {
	a := domain.Coordinates{Lat: 1, Lng: 1}
	view := newFakeView(10)
	// A settles slowest; B would finish first if moves overlapped.
	view.delay = func(c domain.Coordinates) time.Duration {
		if c == a {
			return 80 * time.Millisecond
		}
		return 20 * time.Millisecond
	}

	c, _ := startController(t, WithFlyTimeout(time.Second))
	c.Attach(view)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup
	for i, id := range []string{"A", "B", "C"} {
		n := float64(i + 1)
		f := c.Request(domain.FlyRequest{TargetID: id, Lat: n, Lng: n})
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.Wait(ctx)
			if err != nil || !res.OK || res.TimedOut {
				t.Errorf("flight %s = %+v, %v", id, res, err)
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(order) != 3 || order[0] != "A" || order[1] != "B" || order[2] != "C" {
		t.Fatalf("resolution order = %v, want [A B C]", order)
	}
	view.mu.Lock()
	defer view.mu.Unlock()
	if len(view.flights) != 3 || view.flights[0] != a {
		t.Fatalf("fly order = %+v", view.flights)
	}
}

func TestFlyControllerProcessingOrder(t *testing.T) {
	view := newFakeView(10)
	c, _ := startController(t)
	c.Attach(view)

	if _, err := waitFlight(t, c.Request(domain.FlyRequest{TargetID: "x", Lat: 5, Lng: 5})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"invalidate", "set-view", "on-move-end", "fly-to"}
	view.mu.Lock()
	defer view.mu.Unlock()
	if len(view.ops) != len(want) {
		t.Fatalf("ops = %v, want %v", view.ops, want)
	}
	for i := range want {
		if view.ops[i] != want[i] {
			t.Fatalf("ops = %v, want %v", view.ops, want)
		}
	}
	if len(view.listeners) != 0 {
		t.Fatalf("move-end listener not removed")
	}
}

func TestFlyControllerZoomFloor(t *testing.T) {
	c, _ := startController(t, WithMinZoomByType(map[domain.StopType]float64{domain.StopEnroute: 12}))
	view := newFakeView(8)
	c.Attach(view)

	res, err := waitFlight(t, c.Request(domain.FlyRequest{TargetID: "e", StopType: domain.StopEnroute, Lat: 1, Lng: 1}))
	if err != nil || res.Zoom < 12 {
		t.Fatalf("enroute zoom = %v (%v), want >= 12", res.Zoom, err)
	}

	view.mu.Lock()
	view.zoom = 8
	view.mu.Unlock()
	res, _ = waitFlight(t, c.Request(domain.FlyRequest{TargetID: "r", StopType: domain.StopRoofed, Lat: 1, Lng: 1}))
	if res.Zoom != 8 {
		t.Fatalf("roofed zoom = %v, want current zoom 8", res.Zoom)
	}

	explicit := 6.0
	res, _ = waitFlight(t, c.Request(domain.FlyRequest{TargetID: "z", StopType: domain.StopEnroute, Lat: 1, Lng: 1, Zoom: &explicit}))
	if res.Zoom != 6 {
		t.Fatalf("explicit zoom = %v, want 6", res.Zoom)
	}
}

func TestFlyControllerTimeoutIsSoftSuccess(t *testing.T) {
	view := newFakeView(10)
	view.delay = func(domain.Coordinates) time.Duration { return -1 }

	c, _ := startController(t, WithFlyTimeout(30*time.Millisecond))
	c.Attach(view)

	f := c.Request(domain.FlyRequest{TargetID: "slow", Lat: 1, Lng: 2})
	res, err := waitFlight(t, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK || !res.TimedOut || res.Lat != 1 || res.Lng != 2 {
		t.Fatalf("result = %+v, want timed-out success", res)
	}
	if f.State() != domain.FlyTimedOut {
		t.Fatalf("state = %q, want %q", f.State(), domain.FlyTimedOut)
	}
}

func TestFlyControllerRejectsAndKeepsDraining(t *testing.T) {
	bad := domain.Coordinates{Lat: 1, Lng: 1}
	boom := domain.Coordinates{Lat: 2, Lng: 2}
	view := newFakeView(10)
	view.flyErr = func(c domain.Coordinates) error {
		if c == bad {
			return errors.New("map not ready")
		}
		return nil
	}
	view.panicOn = &boom

	c, _ := startController(t)
	c.Attach(view)

	f1 := c.Request(domain.FlyRequest{TargetID: "bad", Lat: bad.Lat, Lng: bad.Lng})
	f2 := c.Request(domain.FlyRequest{TargetID: "boom", Lat: boom.Lat, Lng: boom.Lng})
	f3 := c.Request(domain.FlyRequest{TargetID: "nan", Lat: 91, Lng: 0})
	f4 := c.Request(domain.FlyRequest{TargetID: "ok", Lat: 3, Lng: 3})

	for _, f := range []*Flight{f1, f2, f3} {
		if _, err := waitFlight(t, f); err == nil {
			t.Fatalf("flight %s resolved, want rejection", f.Request().TargetID)
		}
		if f.State() != domain.FlyRejected {
			t.Fatalf("flight %s state = %q", f.Request().TargetID, f.State())
		}
	}
	if _, err := waitFlight(t, f3); !errors.Is(err, ErrInvalidCoordinates) {
		t.Fatalf("invalid target err = %v", err)
	}

	res, err := waitFlight(t, f4)
	if err != nil || !res.OK {
		t.Fatalf("queue stalled after failures: %+v %v", res, err)
	}
}

func TestFlyControllerWaitsForView(t *testing.T) {
	c, _ := startController(t)
	f := c.Request(domain.FlyRequest{TargetID: "a", Lat: 1, Lng: 1})

	time.Sleep(20 * time.Millisecond)
	if f.State() != domain.FlyQueued {
		t.Fatalf("state = %q before attach, want queued", f.State())
	}

	c.Attach(newFakeView(10))
	if _, err := waitFlight(t, f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFlyControllerShutdownRejectsQueued(t *testing.T) {
	c, cancel := startController(t)
	f := c.Request(domain.FlyRequest{TargetID: "a", Lat: 1, Lng: 1})

	cancel()
	if _, err := waitFlight(t, f); !errors.Is(err, ErrControllerClosed) {
		t.Fatalf("err = %v, want ErrControllerClosed", err)
	}

	late := c.Request(domain.FlyRequest{TargetID: "b", Lat: 1, Lng: 1})
	if _, err := waitFlight(t, late); !errors.Is(err, ErrControllerClosed) {
		t.Fatalf("late err = %v, want ErrControllerClosed", err)
	}
}

// Drives the controller by hand, without Run, to check that the started queue
// head is the only in-flight record.
func TestFlyStartedHeadIsOnlyInFlightRecord(t *testing.T) {
	view := newFakeView(8)
	view.delay = func(domain.Coordinates) time.Duration { return -1 }

	c := NewFlyController(WithFlyTimeout(time.Second))
	c.Attach(view)
	first := c.Request(domain.FlyRequest{TargetID: "a", Lat: 45, Lng: 6})
	second := c.Request(domain.FlyRequest{TargetID: "b", Lat: 46, Lng: 7})

	now := time.Now()
	c.step(now)
	if c.inFlight() != first {
		t.Fatalf("in flight = %v, want first", c.inFlight())
	}
	if second.launch != nil || second.State() != domain.FlyQueued {
		t.Fatalf("second started while first in flight")
	}

	c.step(now.Add(10 * time.Millisecond))
	if c.inFlight() != first || second.launch != nil {
		t.Fatalf("a later tick started another flight")
	}

	c.onSettled(first.launch.token)
	if first.State() != domain.FlyResolved {
		t.Fatalf("first state = %s, want resolved", first.State())
	}
	if first.launch != nil || c.inFlight() != nil {
		t.Fatalf("resolved flight still recorded as in flight")
	}

	c.step(now.Add(20 * time.Millisecond))
	if c.inFlight() != second {
		t.Fatalf("in flight = %v, want second", c.inFlight())
	}

	c.step(now.Add(2 * time.Second))
	if second.State() != domain.FlyTimedOut || c.inFlight() != nil || len(c.queue) != 0 {
		t.Fatalf("second state = %s queue = %d, want timed out and empty", second.State(), len(c.queue))
	}
}
