// Package tracker records events from Go programs the same way the
// browser script does.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultTimeout = 5 * time.Second
	eventsPath     = "/api/events"
)

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	onError func(error)
}

// Event is the recorded event returned by Record.
type Event struct {
	ID                      int64     `json:"id"`
	Name                    string    `json:"name"`
	RegisteredApplicationID int64     `json:"registeredApplicationId"`
	CreatedAt               time.Time `json:"createdAt"`
}

type recordRequest struct {
	Event eventParams `json:"event"`
}

type eventParams struct {
	Name         string `json:"name"`
	TrackingCode string `json:"trackingCode"`
}

func DefaultClientOptions() []Option {
	defaults := []Option{WithBaseURL(defaultBaseURL)}
	if v, ok := os.LookupEnv("CHEAHLYTICS_BASE_URL"); ok {
		defaults = append(defaults, WithBaseURL(v))
	}
	return defaults
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    http.DefaultClient,
		timeout: defaultTimeout,
		onError: func(error) {},
	}
	for _, opt := range append(DefaultClientOptions(), opts...) {
		opt(c)
	}
	return c
}

// Record posts one event and waits for the server's answer.
func (c *Client) Record(ctx context.Context, trackingCode, eventName string) (*Event, error) {
	if trackingCode == "" {
		return nil, ErrMissingTrackingCode
	}
	if eventName == "" {
		return nil, ErrMissingEventName
	}

	body, err := json.Marshal(recordRequest{Event: eventParams{Name: eventName, TrackingCode: trackingCode}})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+eventsPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cheahlytics: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusCreated {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(payload))}
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("cheahlytics: decode response: %w", err)
	}
	return &ev, nil
}

// Go records in the background and never blocks the caller.
func (c *Client) Go(trackingCode, eventName string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		if _, err := c.Record(ctx, trackingCode, eventName); err != nil {
			c.onError(err)
		}
	}()
}
