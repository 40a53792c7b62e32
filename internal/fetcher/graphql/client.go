// Package graphql fetches dining-hall menus from the campus menu GraphQL API.
package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/dining-menu-sync/internal/menu"
	"github.com/JakeFAU/dining-menu-sync/internal/metrics"
)

// Defaults for the public menu API.
const (
	DefaultEndpoint  = "https://api.hfs.purdue.edu/menus/v3/GraphQL"
	DefaultOrigin    = "https://dining.purdue.edu"
	DefaultReferer   = "https://dining.purdue.edu/"
	DefaultUserAgent = "Mozilla/5.0"
	DefaultTimeout   = 10 * time.Second
)

const operationName = "getLocationMenu"

// Query requests meals, stations and item names for one hall and date.
const Query = `query getLocationMenu($name: String!, $date: Date!) {
  diningCourtByName(name: $name) {
    name
    dailyMenu(date: $date) {
      meals {
        name
        startTime
        endTime
        stations {
          name
          items {
            item {
              name
            }
          }
        }
      }
    }
  }
}`

// Config controls the HTTP client.
type Config struct {
	Endpoint  string
	Origin    string
	Referer   string
	UserAgent string
	Timeout   time.Duration
}

// Client implements menu.Source.
type Client struct {
	http     *resty.Client
	endpoint string
	logger   *zap.Logger
}

type request struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

type gqlError struct {
	Message string `json:"message"`
}

type envelope struct {
	menu.Payload
	Errors []gqlError `json:"errors"`
}

// New builds a Client, filling unset fields with the defaults above.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Origin == "" {
		cfg.Origin = DefaultOrigin
	}
	if cfg.Referer == "" {
		cfg.Referer = DefaultReferer
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Origin", cfg.Origin).
		SetHeader("Referer", cfg.Referer).
		SetHeader("User-Agent", cfg.UserAgent)
	return &Client{http: client, endpoint: cfg.Endpoint, logger: logger}
}

// FetchMenu posts the menu query for location on date (YYYY-MM-DD) and
// returns the decoded payload plus the raw response body. A hall with no
// menu decodes to a payload whose nested pointers are nil.
func (c *Client) FetchMenu(ctx context.Context, location, date string) (menu.Payload, []byte, error) {
	payload, raw, err := c.fetch(ctx, location, date)
	metrics.ObserveFetch("graphql", err == nil)
	if err != nil {
		c.logger.Warn("menu fetch failed", zap.String("location", location), zap.String("date", date), zap.Error(err))
	}
	return payload, raw, err
}

func (c *Client) fetch(ctx context.Context, location, date string) (menu.Payload, []byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(request{
			OperationName: operationName,
			Variables:     map[string]any{"name": location, "date": date},
			Query:         Query,
		}).
		Post(c.endpoint)
	if err != nil {
		return menu.Payload{}, nil, fmt.Errorf("post menu query for %s: %w", location, err)
	}
	raw := res.Body()
	if res.IsError() {
		return menu.Payload{}, raw, fmt.Errorf("menu query for %s: unexpected status %d", location, res.StatusCode())
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return menu.Payload{}, raw, fmt.Errorf("decode menu for %s: %w", location, err)
	}
	if len(env.Errors) > 0 && env.Data == nil {
		msgs := make([]error, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, errors.New(e.Message))
		}
		return menu.Payload{}, raw, fmt.Errorf("menu query for %s: %w", location, errors.Join(msgs...))
	}
	return env.Payload, raw, nil
}
