// Package geo wraps a mapy.cz style geocoding HTTP API: forward
// geocode a free text query to coordinates, then reverse geocode the
// coordinates to a structured address.
package geo

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"clubops-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("lib/geo")

const defaultBaseURL = "https://api.mapy.cz"

const userAgent = "clubops-backend (+https://junior.guru)"

// address item types as the API reports them
var addressTypes = map[string]string{
	// mapy.cz
	"muni": "place",
	"regi": "region",
	"coun": "country",

	// OpenStreetMaps
	"osmm": "place",
	"osmr": "region",
	"osmc": "country",
}

type Address struct {
	Place   string
	Region  string
	Country string
}

type Client struct {
	http  *resty.Client
	cache *expirable.LRU[string, cachedAddress]
}

type cachedAddress struct {
	address Address
	found   bool
}

type ClientOptions struct {
	// BaseURL overrides the API root, used by tests.
	BaseURL string
}

func NewClient(opts ClientOptions) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("User-Agent", userAgent)
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "lib/geo")

	return &Client{
		http:  client,
		cache: expirable.NewLRU[string, cachedAddress](1024, nil, time.Hour),
	}
}

type xmlItem struct {
	attrs map[string]string
}

// collects every <item> element regardless of nesting, the way an
// //item xpath would
func parseItems(body []byte) ([]xmlItem, error) {
	var items []xmlItem
	decoder := xml.NewDecoder(strings.NewReader(string(body)))
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, err
		}
		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "item" {
			continue
		}
		attrs := make(map[string]string, len(start.Attr))
		for _, a := range start.Attr {
			attrs[a.Name.Local] = a.Value
		}
		items = append(items, xmlItem{attrs: attrs})
	}
}

// Locate geocodes a raw location string. found=false means the API
// had no match, which is not an error.
func (c *Client) Locate(ctx context.Context, locationRaw string) (address Address, found bool, err error) {
	ctx, span := tracer.Start(ctx, "Locate")
	defer span.End()

	if cached, hit := c.cache.Get(locationRaw); hit {
		return cached.address, cached.found, nil
	}

	address, found, err = c.locate(ctx, locationRaw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocoding failed")
		return Address{}, false, err
	}
	c.cache.Add(locationRaw, cachedAddress{address: address, found: found})
	return address, found, nil
}

func (c *Client) locate(ctx context.Context, locationRaw string) (Address, bool, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("query", locationRaw).
		Get("/geocode")
	if err != nil {
		return Address{}, false, fmt.Errorf("unable to geocode %q: %w", locationRaw, err)
	}
	if res.IsError() {
		return Address{}, false, fmt.Errorf("unable to geocode %q: %s", locationRaw, res.Status())
	}

	items, err := parseItems(res.Body())
	if err != nil {
		return Address{}, false, fmt.Errorf("unable to geocode %q: %w", locationRaw, err)
	}
	if len(items) == 0 {
		return Address{}, false, nil
	}

	title := items[0].attrs["title"]
	lat := items[0].attrs["y"]
	lng := items[0].attrs["x"]

	res, err = c.http.R().
		SetContext(ctx).
		SetQueryParam("lat", lat).
		SetQueryParam("lon", lng).
		Get("/rgeocode")
	if err != nil {
		return Address{}, false, fmt.Errorf(
			"unable to reverse geocode %q (lat: %s lng: %s): %w", title, lat, lng, err)
	}
	if res.IsError() {
		return Address{}, false, fmt.Errorf(
			"unable to reverse geocode %q (lat: %s lng: %s): %s", title, lat, lng, res.Status())
	}

	items, err = parseItems(res.Body())
	if err != nil {
		return Address{}, false, fmt.Errorf("unable to reverse geocode %q: %w", title, err)
	}
	if len(items) == 0 {
		return Address{}, false, fmt.Errorf("no items in the reverse geocode response for %q", title)
	}

	var address Address
	for _, item := range items {
		field, relevant := addressTypes[item.attrs["type"]]
		if !relevant {
			continue
		}
		switch field {
		case "place":
			address.Place = item.attrs["name"]
		case "region":
			address.Region = item.attrs["name"]
		case "country":
			address.Country = item.attrs["name"]
		}
	}
	return address, true, nil
}
