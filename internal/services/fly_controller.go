package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/platform/metrics"
	"trip-route-engine/internal/ports"

	"github.com/rs/zerolog/log"
)

var (
	ErrControllerClosed   = errors.New("fly controller closed")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Flight is a queued fly request. Wait blocks until it resolves or is rejected.
type Flight struct {
	req  domain.FlyRequest
	done chan struct{}

	mu     sync.Mutex
	state  domain.FlyState
	result domain.FlyResult
	err    error

	// Set by the Run goroutine while this flight is the started queue head.
	launch *launch
}

func newFlight(req domain.FlyRequest) *Flight {
	return &Flight{req: req, done: make(chan struct{}), state: domain.FlyQueued}
}

func (f *Flight) Request() domain.FlyRequest { return f.req }

func (f *Flight) State() domain.FlyState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Done is closed once the flight reaches a terminal state.
func (f *Flight) Done() <-chan struct{} { return f.done }

func (f *Flight) Wait(ctx context.Context) (domain.FlyResult, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.result, f.err
	case <-ctx.Done():
		return domain.FlyResult{}, ctx.Err()
	}
}

func (f *Flight) setState(s domain.FlyState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Flight) finish(state domain.FlyState, res domain.FlyResult, err error) {
	f.mu.Lock()
	f.state, f.result, f.err = state, res, err
	f.mu.Unlock()
	close(f.done)
	metrics.FlyRequests.WithLabelValues(string(state)).Inc()
}

type launch struct {
	token       uint64
	center      domain.Coordinates
	zoom        float64
	deadline    time.Time
	unsubscribe func()
}

// FlyController serializes view moves against a single map view.
//
// Requests are drained in FIFO order by Run on a fixed tick, and only while a
// view is attached. The head of the queue is the only in-flight request; the
// next one is not started until it resolves on move-end or on timeout.
// The queue is the only record of what is in flight: a started head.
type FlyController struct {
	tick          time.Duration
	timeout       time.Duration
	minZoomByType map[domain.StopType]float64

	mu      sync.Mutex
	inbox   []*Flight
	view    ports.MapView
	closed  bool
	running bool

	settled chan uint64

	// Owned by the Run goroutine.
	queue  []*Flight
	tokens uint64
}

type FlyOption func(*FlyController)

func WithFlyTick(d time.Duration) FlyOption {
	return func(c *FlyController) {
		if d > 0 {
			c.tick = d
		}
	}
}

func WithFlyTimeout(d time.Duration) FlyOption {
	return func(c *FlyController) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMinZoomByType sets the zoom floor applied per stop type when a request
// has no explicit zoom.
func WithMinZoomByType(m map[domain.StopType]float64) FlyOption {
	return func(c *FlyController) {
		c.minZoomByType = make(map[domain.StopType]float64, len(m))
		for k, v := range m {
			c.minZoomByType[k] = v
		}
	}
}

func NewFlyController(opts ...FlyOption) *FlyController {
	c := &FlyController{
		tick:          50 * time.Millisecond,
		timeout:       2 * time.Second,
		minZoomByType: map[domain.StopType]float64{domain.StopEnroute: 12},
		settled:       make(chan uint64, 16),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach hands the controller the live map view.
func (c *FlyController) Attach(view ports.MapView) {
	c.mu.Lock()
	c.view = view
	c.mu.Unlock()
}

// Detach pauses draining until a view is attached again.
func (c *FlyController) Detach() {
	c.mu.Lock()
	c.view = nil
	c.mu.Unlock()
}

// Request queues a move to the target. It never blocks; after shutdown the
// returned flight is already rejected with ErrControllerClosed.
func (c *FlyController) Request(req domain.FlyRequest) *Flight {
	f := newFlight(req)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		f.finish(domain.FlyRejected, domain.FlyResult{TargetID: req.TargetID}, ErrControllerClosed)
		return f
	}
	c.inbox = append(c.inbox, f)
	c.mu.Unlock()

	metrics.FlyQueueDepth.Inc()
	return f
}

// Run drains the queue until ctx is cancelled, then rejects every flight
// still waiting or in flight.
func (c *FlyController) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running || c.closed {
		c.mu.Unlock()
		return errors.New("fly controller: already running or closed")
	}
	c.running = true
	c.mu.Unlock()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case token := <-c.settled:
			c.onSettled(token)
		case now := <-ticker.C:
			c.step(now)
		}
	}
}

func (c *FlyController) step(now time.Time) {
	c.mu.Lock()
	c.queue = append(c.queue, c.inbox...)
	c.inbox = nil
	view := c.view
	c.mu.Unlock()

	if head := c.inFlight(); head != nil {
		if !now.Before(head.launch.deadline) {
			log.Debug().Str("target", head.req.TargetID).Msg("fly move-end not observed, resolving on timeout")
			c.resolveHead(true)
		}
		return
	}

	if view == nil || len(c.queue) == 0 {
		return
	}

	head := c.queue[0]
	if err := c.start(head, view, now); err != nil {
		c.queue = c.queue[1:]
		metrics.FlyQueueDepth.Dec()
		log.Warn().Err(err).Str("target", head.req.TargetID).Msg("fly request rejected")
		head.finish(domain.FlyRejected, domain.FlyResult{TargetID: head.req.TargetID}, err)
	}
}

func (c *FlyController) start(f *Flight, view ports.MapView, now time.Time) (err error) {
	center := domain.Coordinates{Lat: f.req.Lat, Lng: f.req.Lng}
	if !center.Valid() {
		return fmt.Errorf("fly %s: %w", f.req.TargetID, ErrInvalidCoordinates)
	}

	c.tokens++
	token := c.tokens
	var once sync.Once
	var unsubscribe func()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fly %s: map view panicked: %v", f.req.TargetID, r)
		}
		if err == nil {
			return
		}
		f.launch = nil
		if unsubscribe != nil {
			unsubscribe()
		}
	}()

	view.InvalidateSize()
	zoom := c.targetZoom(f.req, view.Zoom())

	if err := view.SetView(center, zoom); err != nil {
		return fmt.Errorf("fly %s: set view: %w", f.req.TargetID, err)
	}

	unsubscribe = view.OnMoveEnd(func() {
		once.Do(func() {
			select {
			case c.settled <- token:
			default:
			}
		})
	})

	f.setState(domain.FlyInFlight)
	f.launch = &launch{
		token:       token,
		center:      center,
		zoom:        zoom,
		deadline:    now.Add(c.timeout),
		unsubscribe: unsubscribe,
	}

	if err := view.FlyTo(center, zoom); err != nil {
		return fmt.Errorf("fly %s: fly to: %w", f.req.TargetID, err)
	}
	return nil
}

// targetZoom keeps an explicit zoom; otherwise the current zoom is raised to
// the stop type's floor.
func (c *FlyController) targetZoom(req domain.FlyRequest, current float64) float64 {
	if req.Zoom != nil {
		return *req.Zoom
	}
	if floor, ok := c.minZoomByType[req.StopType]; ok && current < floor {
		return floor
	}
	return current
}

// inFlight returns the queue head once it has been started, or nil.
func (c *FlyController) inFlight() *Flight {
	if len(c.queue) == 0 || c.queue[0].launch == nil {
		return nil
	}
	return c.queue[0]
}

func (c *FlyController) onSettled(token uint64) {
	head := c.inFlight()
	if head == nil || head.launch.token != token {
		return
	}
	c.resolveHead(false)
}

func (c *FlyController) resolveHead(timedOut bool) {
	f := c.queue[0]
	a := f.launch
	f.launch = nil
	c.queue = c.queue[1:]
	metrics.FlyQueueDepth.Dec()

	if a.unsubscribe != nil {
		a.unsubscribe()
	}

	state := domain.FlyResolved
	if timedOut {
		state = domain.FlyTimedOut
	}
	f.finish(state, domain.FlyResult{
		OK:       true,
		TargetID: f.req.TargetID,
		Lat:      a.center.Lat,
		Lng:      a.center.Lng,
		Zoom:     a.zoom,
		TimedOut: timedOut,
	}, nil)
}

func (c *FlyController) shutdown() {
	c.mu.Lock()
	c.closed = true
	c.queue = append(c.queue, c.inbox...)
	c.inbox = nil
	c.mu.Unlock()

	if head := c.inFlight(); head != nil {
		if head.launch.unsubscribe != nil {
			head.launch.unsubscribe()
		}
		head.launch = nil
	}

	for _, f := range c.queue {
		metrics.FlyQueueDepth.Dec()
		f.finish(domain.FlyRejected, domain.FlyResult{TargetID: f.req.TargetID}, ErrControllerClosed)
	}
	if n := len(c.queue); n > 0 {
		log.Info().Int("rejected", n).Msg("fly controller stopped")
	}
	c.queue = nil
}
