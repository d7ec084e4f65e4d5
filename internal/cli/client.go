// Package cli implements petctl, a command line client for the pet API.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/okian/couplepet/internal/domain/petstate"
	"github.com/okian/couplepet/internal/domain/types"
)

// Client talks to a running pet service.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reply is a pet returned by a mutating call.
type Reply struct {
	Pet    petstate.PetState
	Replay bool
}

// ProfileUpdate carries the names to change. Nil fields are left as is.
type ProfileUpdate struct {
	Name         *string `json:"name,omitempty"`
	Species      *string `json:"species,omitempty"`
	Partner1Name *string `json:"partner1_name,omitempty"`
	Partner2Name *string `json:"partner2_name,omitempty"`
}

type actionBody struct {
	Partner        string `json:"partner"`
	Action         string `json:"action"`
	CoupleActivity bool   `json:"couple_activity"`
}

type coupleBody struct {
	Activity string `json:"activity"`
}

type historyBody struct {
	Count   int                  `json:"count"`
	History []types.HistoryEntry `json:"history"`
}

// Pet fetches the current pet.
func (c *Client) Pet(ctx context.Context) (petstate.PetState, error) {
	r, err := c.pet(ctx, http.MethodGet, "/api/pet", nil, "")
	return r.Pet, err
}

// UpdateProfile renames the pet or the partners.
func (c *Client) UpdateProfile(ctx context.Context, p ProfileUpdate) (petstate.PetState, error) {
	r, err := c.pet(ctx, http.MethodPost, "/api/pet", p, "")
	return r.Pet, err
}

// Act applies a partner's care action. A non-empty key makes the call
// idempotent.
func (c *Client) Act(ctx context.Context, partner, action string, couple bool, key string) (Reply, error) {
	return c.pet(ctx, http.MethodPost, "/api/action", actionBody{Partner: partner, Action: action, CoupleActivity: couple}, key)
}

// CoupleActivity applies a joint activity.
func (c *Client) CoupleActivity(ctx context.Context, activity, key string) (Reply, error) {
	return c.pet(ctx, http.MethodPost, "/api/couple-activity", coupleBody{Activity: activity}, key)
}

// Reset starts over with a new pet.
func (c *Client) Reset(ctx context.Context, key string) (Reply, error) {
	return c.pet(ctx, http.MethodPost, "/api/reset", nil, key)
}

// History lists recent actions, newest first. limit <= 0 lists all.
func (c *Client) History(ctx context.Context, limit int) ([]types.HistoryEntry, error) {
	path := "/api/history"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var out historyBody
	if _, err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

// Stats fetches the service statistics.
func (c *Client) Stats(ctx context.Context) (types.Stats, error) {
	var out types.Stats
	_, err := c.do(ctx, http.MethodGet, "/stats", nil, "", &out)
	return out, err
}

func (c *Client) pet(ctx context.Context, method, path string, body any, key string) (Reply, error) {
	var r Reply
	hdr, err := c.do(ctx, method, path, body, key, &r.Pet)
	if err != nil {
		return Reply{}, err
	}
	r.Replay = hdr.Get("Idempotent-Replay") == "true"
	return r, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, key string, out any) (http.Header, error) {
	var rdr io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &e) == nil {
			apiErr.Code, apiErr.Message = e.Code, e.Message
		}
		return nil, apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnexpectedResponse, method, path, err)
	}
	return resp.Header, nil
}
