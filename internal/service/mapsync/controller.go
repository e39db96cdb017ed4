// internal/service/mapsync/controller.go

package mapsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"slonstudy/internal/domain/mapview"
	"slonstudy/internal/domain/spot"
)

var (
	ErrMarkerNotFound     = errors.New("marker not found")
	ErrSuggestionNotFound = errors.New("suggestion not found")
	ErrBoundsNotSupported = errors.New("surface does not accept explicit bounds")
	ErrStopped            = errors.New("controller stopped")
)

// Config contains configuration for the map sync controller
type Config struct {
	// FocusZoomThreshold is the zoom below which a marker tap also zooms in
	FocusZoomThreshold float64
	// FocusZoom is the zoom applied by a marker tap below the threshold
	FocusZoom       float64
	SuggestionLimit int
	FetchTimeout    time.Duration
	QueueSize       int
}

// DefaultConfig returns the default controller configuration
func DefaultConfig() Config {
	return Config{
		FocusZoomThreshold: 16.5,
		FocusZoom:          17.0,
		SuggestionLimit:    5,
		FetchTimeout:       30 * time.Second,
		QueueSize:          64,
	}
}

// boundsPinner is implemented by surfaces that accept a client-reported
// viewport
type boundsPinner interface {
	SetBounds(bbox spot.BoundingBox)
}

type result struct {
	view View
	err  error
}

type envelope struct {
	event Event
	reply chan result
}

// Controller keeps the markers on a surface in step with the store and the
// search text. All state is owned by the goroutine running Run; everything
// else talks to it through the event queue.
type Controller struct {
	fetcher spot.Fetcher
	store   spot.Store
	surface mapview.Surface
	config  Config

	events chan envelope
	done   chan struct{}
	runCtx context.Context

	// loop-owned state
	searchText string
	selected   *spot.StudySpot
	generation uint64
	requested  uint64
	loading    bool
	lastErr    error
	view       View

	observers  map[int]func(View)
	nextObsID  int
	observerMu sync.Mutex
}

// NewController creates a controller. Run must be called for it to process
// events.
func NewController(
	fetcher spot.Fetcher,
	store spot.Store,
	surface mapview.Surface,
	config Config,
) *Controller {
	defaults := DefaultConfig()
	if config.FocusZoom <= 0 {
		config.FocusZoom = defaults.FocusZoom
		config.FocusZoomThreshold = defaults.FocusZoomThreshold
	}
	if config.SuggestionLimit <= 0 {
		config.SuggestionLimit = defaults.SuggestionLimit
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaults.FetchTimeout
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}

	c := &Controller{
		fetcher:   fetcher,
		store:     store,
		surface:   surface,
		config:    config,
		events:    make(chan envelope, config.QueueSize),
		done:      make(chan struct{}),
		observers: make(map[int]func(View)),
	}

	c.view = c.buildView()
	surface.ReplaceMarkers(c.view.Markers)

	return c
}

// Run processes events until ctx is canceled. It must be called once.
func (c *Controller) Run(ctx context.Context) error {
	c.runCtx = ctx
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env := <-c.events:
			changed, err := env.event.apply(c)
			if changed {
				c.render()
			}
			if env.reply != nil {
				env.reply <- result{view: c.view, err: err}
			}
		}
	}
}

// Dispatch queues an event and waits until it has been applied. It returns
// the View as rendered after the event.
func (c *Controller) Dispatch(ctx context.Context, event Event) (View, error) {
	reply := make(chan result, 1)

	select {
	case c.events <- envelope{event: event, reply: reply}:
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-c.done:
		return View{}, ErrStopped
	}

	select {
	case r := <-reply:
		return r.view, r.err
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-c.done:
		return View{}, ErrStopped
	}
}

// LoadViewport fetches spots for the visible region, optionally pinning the
// region first. The fetch runs in the background; the returned View shows
// Loading until its result arrives.
func (c *Controller) LoadViewport(ctx context.Context, bounds *spot.BoundingBox) (View, error) {
	return c.Dispatch(ctx, ViewportReady{Bounds: bounds})
}

// SetSearchText replaces the search text
func (c *Controller) SetSearchText(ctx context.Context, text string) (View, error) {
	return c.Dispatch(ctx, SearchChanged{Text: text})
}

// TapMarker handles a tap on a drawn marker
func (c *Controller) TapMarker(ctx context.Context, markerID string) (View, error) {
	return c.Dispatch(ctx, MarkerTapped{MarkerID: markerID})
}

// TapMap handles a tap on empty map area
func (c *Controller) TapMap(ctx context.Context) (View, error) {
	return c.Dispatch(ctx, MapTapped{})
}

// Touch handles a raw touch at a coordinate
func (c *Controller) Touch(ctx context.Context, at spot.Location) (View, error) {
	return c.Dispatch(ctx, MapTouched{At: at})
}

// SelectSuggestion picks an entry from the current suggestion list
func (c *Controller) SelectSuggestion(ctx context.Context, index int) (View, error) {
	return c.Dispatch(ctx, SuggestionSelected{Index: index})
}

// Snapshot returns the current View
func (c *Controller) Snapshot(ctx context.Context) (View, error) {
	return c.Dispatch(ctx, snapshot{})
}

// Subscribe registers an observer called with every rendered View. It runs
// on the controller loop and must not block. The returned func unsubscribes.
func (c *Controller) Subscribe(observer func(View)) func() {
	c.observerMu.Lock()
	defer c.observerMu.Unlock()

	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = observer

	return func() {
		c.observerMu.Lock()
		defer c.observerMu.Unlock()
		delete(c.observers, id)
	}
}

// startFetch issues a fetch off the loop and posts the result back
func (c *Controller) startFetch(bbox spot.BoundingBox) {
	c.requested++
	request := c.requested
	c.loading = true

	ctx := c.runCtx
	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, c.config.FetchTimeout)
		defer cancel()

		spots, err := c.fetcher.FetchStudySpots(fetchCtx, bbox)

		select {
		case c.events <- envelope{event: spotsLoaded{request: request, spots: spots, err: err}}:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) selectMarkerSpot(s spot.StudySpot, position spot.Location) {
	c.selected = &s

	c.surface.AnimateTo(position)
	if c.surface.Zoom() < c.config.FocusZoomThreshold {
		c.surface.SetZoom(c.config.FocusZoom)
	}
}

func (c *Controller) buildView() View {
	return Render(RenderInput{
		SearchText:      c.searchText,
		Spots:           c.store.All(),
		Generation:      c.generation,
		Selected:        c.selected,
		Camera:          c.surface.Camera(),
		SuggestionLimit: c.config.SuggestionLimit,
		Loading:         c.loading,
		LastError:       c.lastErr,
	})
}

// render rebuilds the View, redraws every marker and notifies observers
func (c *Controller) render() {
	c.view = c.buildView()
	c.surface.ReplaceMarkers(c.view.Markers)
	c.notify(c.view)
}

func (c *Controller) notify(view View) {
	c.observerMu.Lock()
	observers := make([]func(View), 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.observerMu.Unlock()

	for _, o := range observers {
		o(view)
	}
}
