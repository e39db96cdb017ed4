package mapsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slonstudy/internal/domain/spot"
	mapviewService "slonstudy/internal/service/mapview"
	spotService "slonstudy/internal/service/spot"
)

var (
	backyardCafe = spot.StudySpot{
		Name:              "Backyard Cafe",
		Location:          spot.Location{Latitude: 35.2800, Longitude: -120.6600},
		Address:           "Higuera St",
		AmenityKind:       spot.AmenityCafe,
		HasWifi:           true,
		HasOutdoorSeating: true,
	}
	cityLibrary = spot.StudySpot{
		Name:        "City Library",
		Location:    spot.Location{Latitude: 35.2850, Longitude: -120.6550},
		AmenityKind: spot.AmenityLibrary,
		HasPower:    true,
	}
)

// stubFetcher returns canned results and counts calls
type stubFetcher struct {
	calls atomic.Int32
	mu    sync.Mutex
	spots []spot.StudySpot
	err   error
}

func (f *stubFetcher) set(spots []spot.StudySpot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spots, f.err = spots, err
}

func (f *stubFetcher) FetchStudySpots(ctx context.Context, bbox spot.BoundingBox) ([]spot.StudySpot, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spots, f.err
}

type harness struct {
	ctx        context.Context
	controller *Controller
	surface    *mapviewService.HeadlessSurface
	store      *spotService.MemoryStore
}

func newHarness(t *testing.T, fetcher spot.Fetcher) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	surface := mapviewService.NewHeadlessSurface(mapviewService.HeadlessConfig{
		Center: spot.Location{Latitude: 35.2828, Longitude: -120.6596},
		Zoom:   14.0,
	})
	store := spotService.NewMemoryStore()
	controller := NewController(fetcher, store, surface, DefaultConfig())

	go controller.Run(ctx)

	return &harness{ctx: ctx, controller: controller, surface: surface, store: store}
}

// load triggers a fetch and waits for the store generation to reach gen
func (h *harness) load(t *testing.T, gen uint64) View {
	t.Helper()

	_, err := h.controller.LoadViewport(h.ctx, nil)
	require.NoError(t, err)

	var view View
	require.Eventually(t, func() bool {
		v, err := h.controller.Snapshot(h.ctx)
		if err != nil {
			return false
		}
		view = v
		return !v.Loading && v.Generation >= gen
	}, time.Second, 5*time.Millisecond)

	return view
}

func markerTitles(v View) []string {
	titles := make([]string, 0, len(v.Markers))
	for _, m := range v.Markers {
		titles = append(titles, m.Title)
	}
	return titles
}

func TestViewportReadyFetchesOnceAndDrawsMarkers(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set([]spot.StudySpot{backyardCafe, cityLibrary}, nil)
	h := newHarness(t, fetcher)

	view := h.load(t, 1)
	assert.Equal(t, []string{"Backyard Cafe", "City Library"}, markerTitles(view))
	assert.Equal(t, 2, view.SpotCount)
	assert.Len(t, h.surface.Markers(), 2)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	// Re-rendering on search never goes back to the network
	view, err := h.controller.SetSearchText(h.ctx, "cafe")
	require.NoError(t, err)
	assert.Equal(t, []string{"Backyard Cafe"}, markerTitles(view))
	require.Len(t, view.Suggestions, 1)
	assert.Equal(t, "Backyard Cafe", view.Suggestions[0].Name)
	assert.Equal(t, "cafe", view.Suggestions[0].AmenityKind)
	assert.Len(t, h.surface.Markers(), 1)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestMarkersPositionedAndLabeled(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set([]spot.StudySpot{cityLibrary}, nil)
	h := newHarness(t, fetcher)

	view := h.load(t, 1)
	require.Len(t, view.Markers, 1)
	assert.Equal(t, cityLibrary.Location, view.Markers[0].Position)
	assert.Equal(t, "City Library", view.Markers[0].Title)
	assert.Equal(t, cityLibrary, view.Markers[0].Spot)
}

func TestMarkerSyncIsIdempotent(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set([]spot.StudySpot{backyardCafe, cityLibrary}, nil)
	h := newHarness(t, fetcher)
	h.load(t, 1)

	first, err := h.controller.SetSearchText(h.ctx, "")
	require.NoError(t, err)
	drawnFirst := h.surface.Markers()

	second, err := h.controller.SetSearchText(h.ctx, "")
	require.NoError(t, err)

	assert.Equal(t, first.Markers, second.Markers)
	assert.Equal(t, drawnFirst, h.surface.Markers())
	assert.Len(t, h.surface.Markers(), 2)
}

func TestZeroMatchesRendersEmpty(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set([]spot.StudySpot{backyardCafe}, nil)
	h := newHarness(t, fetcher)
	h.load(t, 1)

	view, err := h.controller.SetSearchText(h.ctx, "bakery")
	require.NoError(t, err)
	assert.Empty(t, view.Markers)
	assert.Empty(t, view.Suggestions)
	assert.Nil(t, view.Card)
	assert.Empty(t, h.surface.Markers())
}

func TestMarkerTapBelowThresholdZoomsIn(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set([]spot.StudySpot{backyardCafe}, nil)
	h := newHarness(t, fetcher)
	view := h.load(t, 1)
	require.Equal(t, 14.0, h.surface.Zoom())

	view, err := h.controller.TapMarker(h.ctx, view.Markers[0].ID)
	require.NoError(t, err)

	assert.Equal(t, 17.0, h.surface.Zoom())
	assert.Equal(t, 1, h.surface.Animations())
	assert.Equal(t, backyardCafe.Location, h.surface.Camera().Center)
	require.NotNil(t, view.Selected)
	assert.Equal(t, backyardCafe, *view.Selected)
	require.NotNil(t, view.Card)
	assert.Equal(t, "Higuera St", view.Card.Address)
	assert.Equal(t, []string{spot.FeatureWifi, spot.FeatureOutdoorSeating}, view.Card.Features)
	assert.Equal(t, 17.0, view.Camera.Zoom)
}

func TestMarkerTapAtOrAboveThresholdKeepsZoom(t *testing.T) {
	for _, zoom := range []float64{16.5, 17.0, 18.2} {
		fetcher := &stubFetcher{}
		fetcher.set([]spot.StudySpot{cityLibrary}, nil)
		h := newHarness(t, fetcher)
		view := h.load(t, 1)

		h.surface.SetZoom(zoom)
		_, err := h.controller.TapMarker(h.ctx, view.Markers[0].ID)
		require.NoError(t, err)

		assert.Equal(t, zoom, h.surface.Zoom(), "zoom %v", zoom)
		assert.Equal(t, 1, h.surface.Animations())
		assert.Equal(t, cityLibrary.Location, h.surface.Camera().Center)
	}
}

func TestTapUnknownMarker(t *testing.T) {
	h := newHarness(t, &stubFetcher{})

	_, err := h.controller.TapMarker(h.ctx, "9-9")
	assert.ErrorIs(t, err, ErrMarkerNotFound)
	assert.Equal(t, 0, h.surface.Animations())
}

func TestMapTapClearsSelection(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set([]spot.StudySpot{backyardCafe}, nil)
	h := newHarness(t, fetcher)
	view := h.load(t, 1)

	// Nothing selected yet
	view, err := h.controller.TapMap(h.ctx)
	require.NoError(t, err)
	assert.Nil(t, view.Selected)

	_, err = h.controller.TapMarker(h.ctx, view.Markers[0].ID)
	require.NoError(t, err)

	view, err = h.controller.TapMap(h.ctx)
	require.NoError(t, err)
	assert.Nil(t, view.Selected)
	assert.Nil(t, view.Card)
	assert.Len(t, view.Markers, 1)
}

func TestTouchResolvesToMarkerOrMap(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set([]spot.StudySpot{backyardCafe, cityLibrary}, nil)
	h := newHarness(t, fetcher)
	h.load(t, 1)

	view, err := h.controller.Touch(h.ctx, cityLibrary.Location)
	require.NoError(t, err)
	require.NotNil(t, view.Selected)
	assert.Equal(t, "City Library", view.Selected.Name)

	view, err = h.controller.Touch(h.ctx, spot.Location{Latitude: 35.0, Longitude: -120.0})
	require.NoError(t, err)
	assert.Nil(t, view.Selected)
}

func TestSearchClearsSelection(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set([]spot.StudySpot{backyardCafe, cityLibrary}, nil)
	h := newHarness(t, fetcher)
	view := h.load(t, 1)

	_, err := h.controller.TapMarker(h.ctx, view.Markers[1].ID)
	require.NoError(t, err)

	view, err = h.controller.SetSearchText(h.ctx, "c")
	require.NoError(t, err)
	assert.Nil(t, view.Selected)
}

func TestSelectSuggestion(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set([]spot.StudySpot{backyardCafe, cityLibrary}, nil)
	h := newHarness(t, fetcher)
	h.load(t, 1)

	view, err := h.controller.SetSearchText(h.ctx, "LIB")
	require.NoError(t, err)
	require.Len(t, view.Suggestions, 1)

	view, err = h.controller.SelectSuggestion(h.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "City Library", view.SearchText)
	require.NotNil(t, view.Selected)
	assert.Equal(t, cityLibrary, *view.Selected)
	assert.Equal(t, []string{"City Library"}, markerTitles(view))

	_, err = h.controller.SelectSuggestion(h.ctx, 3)
	assert.ErrorIs(t, err, ErrSuggestionNotFound)
}

func TestFetchFailureKeepsPreviousSpots(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set([]spot.StudySpot{backyardCafe, cityLibrary}, nil)
	h := newHarness(t, fetcher)
	h.load(t, 1)

	fetcher.set(nil, errors.New("overpass unreachable"))
	_, err := h.controller.LoadViewport(h.ctx, nil)
	require.NoError(t, err)

	var view View
	require.Eventually(t, func() bool {
		v, err := h.controller.Snapshot(h.ctx)
		view = v
		return err == nil && !v.Loading
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "overpass unreachable", view.LastError)
	assert.Equal(t, uint64(1), view.Generation)
	assert.Equal(t, 2, h.store.Len())
	assert.Len(t, view.Markers, 2)
}

func TestViewportBoundsArePinned(t *testing.T) {
	var got spot.BoundingBox
	var mu sync.Mutex
	fetcher := fetcherFunc(func(ctx context.Context, bbox spot.BoundingBox) ([]spot.StudySpot, error) {
		mu.Lock()
		defer mu.Unlock()
		got = bbox
		return nil, nil
	})
	h := newHarness(t, fetcher)

	box := spot.BoundingBox{South: 35.27, West: -120.67, North: 35.29, East: -120.65}
	_, err := h.controller.LoadViewport(h.ctx, &box)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got == box
	}, time.Second, 5*time.Millisecond)
}

type fetcherFunc func(ctx context.Context, bbox spot.BoundingBox) ([]spot.StudySpot, error)

func (f fetcherFunc) FetchStudySpots(ctx context.Context, bbox spot.BoundingBox) ([]spot.StudySpot, error) {
	return f(ctx, bbox)
}

// gatedFetcher holds every call until the test answers it
type gatedFetcher struct {
	calls chan gatedCall
}

type gatedCall struct {
	bbox  spot.BoundingBox
	reply chan []spot.StudySpot
}

func (g *gatedFetcher) FetchStudySpots(ctx context.Context, bbox spot.BoundingBox) ([]spot.StudySpot, error) {
	call := gatedCall{bbox: bbox, reply: make(chan []spot.StudySpot, 1)}
	g.calls <- call

	select {
	case spots := <-call.reply:
		return spots, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestLatestRequestWins(t *testing.T) {
	fetcher := &gatedFetcher{calls: make(chan gatedCall, 2)}
	h := newHarness(t, fetcher)

	older := spot.BoundingBox{South: 1, West: 1, North: 2, East: 2}
	newer := spot.BoundingBox{South: 3, West: 3, North: 4, East: 4}

	_, err := h.controller.LoadViewport(h.ctx, &older)
	require.NoError(t, err)
	_, err = h.controller.LoadViewport(h.ctx, &newer)
	require.NoError(t, err)

	calls := map[spot.BoundingBox]gatedCall{}
	for i := 0; i < 2; i++ {
		select {
		case c := <-fetcher.calls:
			calls[c.bbox] = c
		case <-time.After(time.Second):
			t.Fatal("fetch was not issued")
		}
	}

	calls[newer].reply <- []spot.StudySpot{cityLibrary}
	require.Eventually(t, func() bool {
		v, err := h.controller.Snapshot(h.ctx)
		return err == nil && v.Generation == 1 && !v.Loading
	}, time.Second, 5*time.Millisecond)

	// The older result arrives late and must be ignored
	calls[older].reply <- []spot.StudySpot{backyardCafe}
	assert.Never(t, func() bool {
		v, err := h.controller.Snapshot(h.ctx)
		return err == nil && (v.Generation != 1 || len(v.Markers) != 1 || v.Markers[0].Title != "City Library")
	}, 150*time.Millisecond, 10*time.Millisecond)
}

func TestSubscribeReceivesRenderedViews(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set([]spot.StudySpot{backyardCafe}, nil)
	h := newHarness(t, fetcher)

	views := make(chan View, 16)
	unsubscribe := h.controller.Subscribe(func(v View) {
		select {
		case views <- v:
		default:
		}
	})

	_, err := h.controller.SetSearchText(h.ctx, "back")
	require.NoError(t, err)

	select {
	case v := <-views:
		assert.Equal(t, "back", v.SearchText)
	case <-time.After(time.Second):
		t.Fatal("no view published")
	}

	unsubscribe()
	_, err = h.controller.SetSearchText(h.ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestDispatchAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	surface := mapviewService.NewHeadlessSurface(mapviewService.HeadlessConfig{Zoom: 14})
	c := NewController(&stubFetcher{}, spotService.NewMemoryStore(), surface, DefaultConfig())

	stopped := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	_, err := c.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}
