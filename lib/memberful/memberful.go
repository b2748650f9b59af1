// Package memberful is a client for the billing platform's GraphQL
// API and its CSV exports. Responses are cached on disk because the
// exports are slow and the syncs re-run often.
package memberful

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"clubops-backend/lib/fetchcache"
	"clubops-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("lib/memberful")

const cacheTag = "memberful"

const defaultBaseURL = "https://clubops.memberful.com"

type Client struct {
	http     *resty.Client
	cache    fetchcache.Cache
	cacheTTL time.Duration
	// delay between paginated requests, be nice to the API
	delay time.Duration
}

type ClientOptions struct {
	APIKey string
	Cache  fetchcache.Cache
	// BaseURL overrides the API root, used by tests.
	BaseURL string
	// CacheTTL defaults to an hour.
	CacheTTL time.Duration
	// Delay between paginated requests, defaults to 200ms.
	Delay time.Duration
}

func NewClient(opts ClientOptions) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	cacheTTL := opts.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Hour
	}
	delay := opts.Delay
	if delay == 0 {
		delay = 200 * time.Millisecond
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetAuthToken(opts.APIKey)
	client.SetTimeout(time.Second * 60)

	telemetry.InstrumentResty(client, "lib/memberful")

	return &Client{
		http:     client,
		cache:    opts.Cache,
		cacheTTL: cacheTTL,
		delay:    delay,
	}
}

// ClearCache drops everything previously fetched from the API.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.cache.PurgeTag(ctx, cacheTag)
}

// ExpireCache deletes cached responses past their TTL.
func (c *Client) ExpireCache(ctx context.Context) error {
	return c.cache.Expire(ctx)
}

func cacheKey(parts ...string) string {
	digest := sha256.Sum224([]byte(strings.Join(parts, "\x00")))
	return "memberful:" + hex.EncodeToString(digest[:])
}

func (c *Client) fetch(ctx context.Context, key string, fn func() ([]byte, error)) ([]byte, error) {
	cached, hit, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if hit {
		return cached, nil
	}
	body, err := fn()
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, body, cacheTag, c.cacheTTL); err != nil {
		return nil, err
	}
	return body, nil
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type connection struct {
	PageInfo pageInfo          `json:"pageInfo"`
	Nodes    []json.RawMessage `json:"nodes"`
}

type graphqlEnvelope struct {
	Data   map[string]connection `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Nodes runs a GraphQL query shaped like the API's connection
// convention (pageInfo + nodes, $cursor variable) and walks every
// page. The raw node documents are returned for the caller to decode.
func (c *Client) Nodes(ctx context.Context, query string, variables map[string]any) ([]json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "Nodes")
	defer span.End()

	var nodes []json.RawMessage
	cursor := ""
	for {
		vars := map[string]any{}
		for k, v := range variables {
			vars[k] = v
		}
		if cursor != "" {
			vars["cursor"] = cursor
		}

		body, err := c.query(ctx, query, vars)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "graphql query failed")
			return nil, err
		}

		var envelope graphqlEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to parse graphql response")
			return nil, err
		}
		if len(envelope.Errors) > 0 {
			err := fmt.Errorf("graphql: %s", envelope.Errors[0].Message)
			span.RecordError(err)
			span.SetStatus(codes.Error, "graphql error response")
			return nil, err
		}

		// the query has a single root connection
		var conn connection
		for _, conn = range envelope.Data {
			break
		}
		nodes = append(nodes, conn.Nodes...)

		if !conn.PageInfo.HasNextPage {
			span.SetAttributes(attribute.Int("nodes", len(nodes)))
			return nodes, nil
		}
		cursor = conn.PageInfo.EndCursor
		time.Sleep(c.delay)
	}
}

func (c *Client) query(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	serializedVars, err := json.Marshal(variables)
	if err != nil {
		return nil, err
	}
	key := cacheKey("graphql", query, string(serializedVars))

	return c.fetch(ctx, key, func() ([]byte, error) {
		res, err := c.http.R().
			SetContext(ctx).
			SetHeader("content-type", "application/json").
			SetBody(map[string]any{
				"query":     query,
				"variables": variables,
			}).
			Post("/api/graphql")
		if err != nil {
			return nil, err
		}
		if res.IsError() {
			return nil, fmt.Errorf("memberful: %s: %s", res.Status(), res.String())
		}
		return res.Body(), nil
	})
}

// DownloadCSV fetches an admin CSV export and parses it into rows of
// header→value maps.
func (c *Client) DownloadCSV(ctx context.Context, params map[string]string) ([]map[string]string, error) {
	ctx, span := tracer.Start(ctx, "DownloadCSV")
	defer span.End()

	keyParts := make([]string, 0, len(params))
	for k, v := range params {
		keyParts = append(keyParts, k+"="+v)
	}
	sort.Strings(keyParts)
	key := cacheKey(append([]string{"csv"}, keyParts...)...)

	body, err := c.fetch(ctx, key, func() ([]byte, error) {
		res, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get("/admin/csv_exports/download")
		if err != nil {
			return nil, err
		}
		if res.IsError() {
			return nil, fmt.Errorf("memberful: %s: %s", res.Status(), res.String())
		}
		return res.Body(), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "csv export failed")
		return nil, err
	}

	return ParseCSV(strings.NewReader(string(body)))
}

// ParseCSV turns a CSV document with a header row into maps.
func ParseCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(header))
		for i, column := range header {
			if i < len(record) {
				row[column] = record[i]
			}
		}
		rows = append(rows, row)
	}
}
