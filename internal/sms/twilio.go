// Package sms talks to the Twilio REST API for outbound messages and
// call status lookups.
package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.twilio.com"

// ErrNotConfigured is returned when Twilio credentials are missing.
var ErrNotConfigured = errors.New("twilio not configured")

// Config holds Twilio account credentials and the tenant's sending number.
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

// Client is a minimal Twilio REST client covering the message and call
// resources the portal uses.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a Twilio client. BaseURL defaults to the public API.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: 15 * time.Second},
	}
}

// IsConfigured returns true if account credentials are present.
func (c *Client) IsConfigured() bool {
	return c.config.AccountSID != "" && c.config.AuthToken != "" && c.config.FromNumber != ""
}

// Message is the subset of Twilio's message resource the portal reads.
type Message struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
	Body   string `json:"body"`
}

// Call is the subset of Twilio's call resource used by reconciliation.
type Call struct {
	SID      string `json:"sid"`
	Status   string `json:"status"`
	Duration string `json:"duration"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendSMS sends a text message from the configured number and returns the
// provider message SID.
func (c *Client) SendSMS(ctx context.Context, to, body string) (Message, error) {
	if !c.IsConfigured() {
		return Message{}, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.config.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.config.BaseURL, c.config.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Message{}, fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.config.AccountSID, c.config.AuthToken)

	var msg Message
	if err := c.do(req, &msg); err != nil {
		return Message{}, fmt.Errorf("send sms: %w", err)
	}
	return msg, nil
}

// GetCall fetches the current state of a call resource.
func (c *Client) GetCall(ctx context.Context, callSID string) (Call, error) {
	if !c.IsConfigured() {
		return Call{}, ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls/%s.json", c.config.BaseURL, c.config.AccountSID, url.PathEscape(callSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Call{}, fmt.Errorf("build call request: %w", err)
	}
	req.SetBasicAuth(c.config.AccountSID, c.config.AuthToken)

	var call Call
	if err := c.do(req, &call); err != nil {
		return Call{}, fmt.Errorf("get call: %w", err)
	}
	return call, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("twilio %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("twilio status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
