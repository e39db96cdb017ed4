package overpass

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slonstudy/internal/domain/spot"
)

var sloBox = spot.BoundingBox{South: 35.27, West: -120.67, North: 35.29, East: -120.65}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(sloBox)

	assert.True(t, strings.HasPrefix(q, "[out:json];"))
	assert.Contains(t, q, `node["amenity"="cafe"](35.27,-120.67,35.29,-120.65);`)
	assert.Contains(t, q, `node["amenity"="library"](35.27,-120.67,35.29,-120.65);`)
	assert.True(t, strings.HasSuffix(q, "out;"))
}

func TestParseResponseJavaJones(t *testing.T) {
	body := `{"elements":[
		{"type":"node","id":1,"lat":35.28,"lon":-120.66,"tags":{"name":"Java Jones","amenity":"cafe","internet_access":"yes"}},
		{"type":"node","id":2,"lat":35.281,"lon":-120.661,"tags":{"amenity":"library"}}
	]}`

	spots, err := ParseResponse(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, spots, 1)

	s := spots[0]
	assert.Equal(t, "Java Jones", s.Name)
	assert.Equal(t, 35.28, s.Location.Latitude)
	assert.Equal(t, -120.66, s.Location.Longitude)
	assert.Equal(t, "cafe", s.AmenityKind)
	assert.True(t, s.HasWifi)
	assert.False(t, s.HasPower)
	assert.False(t, s.HasOutdoorSeating)
	assert.Empty(t, s.Address)
}

func TestParseResponseSkipsUnusableElements(t *testing.T) {
	body := `{"elements":[
		{"lat":1,"lon":1},
		{"lat":2,"lon":2,"tags":{"amenity":"cafe"}},
		{"lat":3,"lon":3,"tags":{"name":""}},
		{"lon":4,"tags":{"name":"No Lat"}},
		{"lat":5,"tags":{"name":"No Lon"}},
		{"lat":"six","lon":6,"tags":{"name":"Bad Lat"}},
		"not an object",
		{"lat":7,"lon":7,"tags":{"name":"Kept","addr:street":"Higuera St"}}
	]}`

	spots, err := ParseResponse(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.Equal(t, "Kept", spots[0].Name)
	assert.Equal(t, "Higuera St", spots[0].Address)
}

func TestParseResponsePreservesOrder(t *testing.T) {
	body := `{"elements":[
		{"lat":1,"lon":1,"tags":{"name":"Zeta"}},
		{"lat":2,"lon":2,"tags":{"name":"Alpha"}},
		{"lat":3,"lon":3,"tags":{"name":"Mid"}}
	]}`

	spots, err := ParseResponse(strings.NewReader(body))
	require.NoError(t, err)

	names := make([]string, 0, len(spots))
	for _, s := range spots {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Zeta", "Alpha", "Mid"}, names)
}

func TestParseResponseMalformedBody(t *testing.T) {
	for _, body := range []string{
		``,
		`not json`,
		`[]`,
		`{"version":0.6}`,
		`{"elements":{"lat":1}}`,
	} {
		_, err := ParseResponse(strings.NewReader(body))
		assert.ErrorIs(t, err, ErrMalformedBody, "body %q", body)
	}
}

func TestFetchStudySpotsIssuesOneRequest(t *testing.T) {
	var calls atomic.Int32
	var gotQuery, gotAgent string

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotQuery = r.URL.Query().Get("data")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"elements":[{"lat":35.28,"lon":-120.66,"tags":{"name":"Kreuzberg","amenity":"cafe","socket":"yes","outdoor_seating":"yes"}}]}`))
	}))
	defer upstream.Close()

	client := NewClient(Config{Endpoint: upstream.URL, UserAgent: "dev.slonstudy", Timeout: time.Second})

	spots, err := client.FetchStudySpots(context.Background(), sloBox)
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.True(t, spots[0].HasPower)
	assert.True(t, spots[0].HasOutdoorSeating)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, BuildQuery(sloBox), gotQuery)
	assert.Equal(t, "dev.slonstudy", gotAgent)

	// No caching: a repeat call queries upstream again
	_, err = client.FetchStudySpots(context.Background(), sloBox)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchStudySpotsNonSuccessStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer upstream.Close()

	client := NewClient(Config{Endpoint: upstream.URL})

	spots, err := client.FetchStudySpots(context.Background(), sloBox)
	assert.Nil(t, spots)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
}

func TestFetchStudySpotsUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := upstream.URL
	upstream.Close()

	client := NewClient(Config{Endpoint: endpoint, Timeout: time.Second})

	_, err := client.FetchStudySpots(context.Background(), sloBox)
	assert.Error(t, err)
}
