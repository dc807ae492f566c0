/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package icebreaker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Backend is the game server the player talks to.
type Backend interface {
	GameState(ctx context.Context) (GameState, error)
	Card(ctx context.Context, userID string) (*Card, error)
	Participants(ctx context.Context) ([]User, error)
	CreateAnswer(ctx context.Context, req CreateAnswerRequest) error
	UpdateAnswer(ctx context.Context, req UpdateAnswerRequest) error
	DeleteAnswer(ctx context.Context, req DeleteAnswerRequest) error
}

type CreateAnswerRequest struct {
	CardID         string `json:"cardId"`
	QuestionNumber int    `json:"questionNumber"`
	GiverID        string `json:"giverId"`
	ReceiverID     string `json:"receiverId"`
}

type UpdateAnswerRequest struct {
	CardID         string `json:"cardId"`
	QuestionNumber int    `json:"questionNumber"`
	GiverID        string `json:"giverId"`
	NewReceiverID  string `json:"newReceiverId"`
}

type DeleteAnswerRequest struct {
	CardID         string `json:"cardId"`
	QuestionNumber int    `json:"questionNumber"`
	GiverID        string `json:"giverId"`
}

const (
	gameStatePath = "/api/admin/game-state"
	cardPath      = "/api/icebreaker/card"
	answersPath   = "/api/icebreaker/answers"

	maxBodySize = 1 << 20
)

// Client is the HTTP implementation of Backend.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
}

// NewClient returns a client for the backend rooted at baseURL. A zero
// timeout leaves requests bounded only by their context.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		base:    u,
		http:    httpClient,
		timeout: timeout,
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	return u.String()
}

func (c *Client) GameState(ctx context.Context) (GameState, error) {
	var state GameState
	if err := c.get(ctx, c.endpoint(gameStatePath, nil), &state); err != nil {
		return GameState{}, err
	}

	return state, nil
}

func (c *Client) Card(ctx context.Context, userID string) (*Card, error) {
	var card Card
	if err := c.get(ctx, c.endpoint(cardPath, url.Values{"userId": {userID}}), &card); err != nil {
		return nil, err
	}
	if card.Answers == nil {
		card.Answers = map[int]User{}
	}

	return &card, nil
}

func (c *Client) Participants(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.get(ctx, c.endpoint(answersPath, nil), &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}

	return users, nil
}

func (c *Client) CreateAnswer(ctx context.Context, req CreateAnswerRequest) error {
	return c.send(ctx, http.MethodPost, req)
}

func (c *Client) UpdateAnswer(ctx context.Context, req UpdateAnswerRequest) error {
	return c.send(ctx, http.MethodPut, req)
}

func (c *Client) DeleteAnswer(ctx context.Context, req DeleteAnswerRequest) error {
	return c.send(ctx, http.MethodDelete, req)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.timeout)
}

// get decodes a JSON body; any non-2xx status is an error without a
// server message.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

		return &APIError{Status: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}

	return nil
}

// send issues a mutation against the answers endpoint. A failed mutation
// reports the body's "error" field when there is one.
func (c *Client) send(ctx context.Context, method string, body any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(answersPath, nil), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode}

	var data struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&data); err == nil {
		apiErr.Message = data.Error
	}

	return apiErr
}
