package metno

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	soar "github.com/BlastBlastBlast/soar-sub000"
	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

const (
	// DefaultGridURL is the isobaric grid endpoint.
	DefaultGridURL = "https://api.met.no/weatherapi/isobaricgrib/1.0"
	// DefaultMaxOffset is the largest accepted distance between the requested and the available time.
	DefaultMaxOffset = 3 * time.Hour
)

// GridDecoder decodes a downloaded dataset into a grid.
type GridDecoder interface {
	Decode(r io.Reader) (*soar.Grid, error)
}

// GridClient retrieves the isobaric dataset nearest to a time. It implements soar.GridSource.
type GridClient struct {
	client
	baseURL   string
	decoder   GridDecoder
	MaxOffset time.Duration
}

// NewGridClient returns a new client. A nil decoder uses JSONGridDecoder with the default resolution.
func NewGridClient(baseURL, userAgent string, decoder GridDecoder, timeout time.Duration, logger kitlog.Logger) *GridClient {
	if baseURL == "" {
		baseURL = DefaultGridURL
	}
	if decoder == nil {
		decoder = JSONGridDecoder{}
	}
	c := newClient(userAgent, timeout, logger)
	c.logger = kitlog.With(c.logger, "subsys", "isobaric")
	return &GridClient{client: c, baseURL: baseURL, decoder: decoder, MaxOffset: DefaultMaxOffset}
}

// Available is an entry of the availability listing.
type Available struct {
	URI  string
	Time time.Time
}

// Available returns the datasets currently served.
func (c *GridClient) Available(ctx context.Context) ([]Available, error) {
	const op = "availability"
	body, err := c.get(ctx, op, c.baseURL+"/available.json")
	if err != nil {
		var se statusError
		if errors.As(err, &se) {
			if se.code == http.StatusNotFound || se.code == http.StatusNoContent {
				return nil, soar.NewError(soar.AvailabilityError, op, se)
			}
			return nil, soar.NewError(soar.FetchError, op, se)
		}
		return nil, err
	}
	var entries []struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, soar.NewError(soar.ParsingError, op, fmt.Errorf("decoding availability: %w", err))
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return nil, soar.NewError(soar.FetchError, op, err)
	}
	avail := make([]Available, 0, len(entries))
	for _, e := range entries {
		u, err := url.Parse(e.URI)
		if err != nil {
			level.Warn(c.logger).Log("op", op, "uri", e.URI, "err", err)
			continue
		}
		// Relative entries are served by the listing host.
		u = base.ResolveReference(u)
		t, err := time.Parse(time.RFC3339, u.Query().Get("time"))
		if err != nil {
			level.Warn(c.logger).Log("op", op, "uri", e.URI, "err", "no time parameter")
			continue
		}
		avail = append(avail, Available{URI: u.String(), Time: t.UTC()})
	}
	return avail, nil
}

// Nearest returns the entry nearest to t, if any is within maxOffset.
func Nearest(avail []Available, t time.Time, maxOffset time.Duration) (Available, bool) {
	var (
		best  Available
		found bool
		dist  time.Duration
	)
	for _, a := range avail {
		d := a.Time.Sub(t)
		if d < 0 {
			d = -d
		}
		if d > maxOffset {
			continue
		}
		// Ties go to the earlier dataset.
		if !found || d < dist || (d == dist && a.Time.Before(best.Time)) {
			best, dist, found = a, d, true
		}
	}
	return best, found
}

// Grid implements soar.GridSource.
func (c *GridClient) Grid(ctx context.Context, t time.Time) (*soar.Grid, error) {
	const op = "grid"
	avail, err := c.Available(ctx)
	if err != nil {
		return nil, err
	}
	entry, ok := Nearest(avail, t, c.MaxOffset)
	if !ok {
		return nil, soar.Errorf(soar.AvailabilityError, op, "no dataset within %s of %s (%d available)", c.MaxOffset, t.Format(time.RFC3339), len(avail))
	}
	body, err := c.get(ctx, op, entry.URI)
	if err != nil {
		var se statusError
		if errors.As(err, &se) {
			return nil, soar.NewError(soar.FetchError, op, se)
		}
		return nil, err
	}
	grid, err := c.decoder.Decode(bytes.NewReader(body))
	if err != nil {
		if soar.KindOf(err) == soar.ParsingError {
			return nil, err
		}
		return nil, soar.NewError(soar.ParsingError, op, err)
	}
	level.Debug(c.logger).Log("requested", t, "valid", grid.ValidTime, "cells", grid.Len())
	return grid, nil
}

// JSONGridDecoder reads the JSON rendition of an isobaric dataset.
type JSONGridDecoder struct{}

type jsonGrid struct {
	Time       time.Time `json:"time"`
	Resolution struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"resolution"`
	Points []struct {
		Lat    float64 `json:"lat"`
		Lon    float64 `json:"lon"`
		Levels []struct {
			Pressure    int     `json:"pressure"`
			U           float64 `json:"u"`
			V           float64 `json:"v"`
			Temperature float64 `json:"temperature"`
		} `json:"levels"`
	} `json:"points"`
}

// Decode implements GridDecoder.
func (JSONGridDecoder) Decode(r io.Reader) (*soar.Grid, error) {
	const op = "decode"
	var jg jsonGrid
	if err := json.NewDecoder(r).Decode(&jg); err != nil {
		return nil, soar.NewError(soar.ParsingError, op, err)
	}
	if jg.Time.IsZero() {
		return nil, soar.Errorf(soar.ParsingError, op, "dataset has no valid time")
	}
	res := soar.Resolution{Lat: jg.Resolution.Lat, Lon: jg.Resolution.Lon}
	if res.Lat <= 0 || res.Lon <= 0 {
		res = soar.DefaultResolution
	}
	grid := soar.NewGrid(jg.Time, res)
	for _, p := range jg.Points {
		cell := make(soar.GridCell, len(p.Levels))
		for _, l := range p.Levels {
			cell[l.Pressure] = soar.GridValue{UWind: l.U, VWind: l.V, Temperature: l.Temperature}
		}
		grid.Set(p.Lat, p.Lon, cell)
	}
	return grid, nil
}
