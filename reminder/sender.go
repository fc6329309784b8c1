// Package reminder delivers task reminder emails through the EmailJS REST API.
package reminder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"deadline-tasks/domain"
)

// DefaultEndpoint is the EmailJS send API.
const DefaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

const maxErrorBody = 4 * 1024

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = errors.New("reminder provider not configured")

// Config holds the EmailJS account values. PrivateKey is optional and is sent
// as the access token when present.
type Config struct {
	Endpoint   string
	ServiceID  string
	TemplateID string
	PublicKey  string
	PrivateKey string
	Location   *time.Location
	Timeout    time.Duration
}

// Configured reports whether enough values are present to send email.
func (c Config) Configured() bool {
	return c.ServiceID != "" && c.TemplateID != "" && c.PublicKey != ""
}

// SendError describes a failed delivery attempt. StatusCode is zero when the
// request never reached the provider.
type SendError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("send reminder: %v", e.Err)
	}
	return fmt.Sprintf("send reminder: provider returned %d: %s", e.StatusCode, e.Body)
}

func (e *SendError) Unwrap() error { return e.Err }

type templateParams struct {
	ToEmail      string `json:"to_email"`
	TaskTitle    string `json:"task_title"`
	TaskDeadline string `json:"task_deadline"`
}

type sendRequest struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	AccessToken    string         `json:"accessToken,omitempty"`
	TemplateParams templateParams `json:"template_params"`
}

// EmailJS sends templated reminder emails.
type EmailJS struct {
	cfg    Config
	client *http.Client
}

// NewEmailJS returns a sender for cfg. A nil client gets one with cfg.Timeout.
func NewEmailJS(cfg Config, client *http.Client) *EmailJS {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &EmailJS{cfg: cfg, client: client}
}

// Send submits one reminder for the task. It makes a single attempt.
func (s *EmailJS) Send(ctx context.Context, email, title string, deadline time.Time) error {
	payload, err := sonic.Marshal(sendRequest{
		ServiceID:   s.cfg.ServiceID,
		TemplateID:  s.cfg.TemplateID,
		UserID:      s.cfg.PublicKey,
		AccessToken: s.cfg.PrivateKey,
		TemplateParams: templateParams{
			ToEmail:      email,
			TaskTitle:    title,
			TaskDeadline: domain.FormatDeadline(deadline, s.cfg.Location),
		},
	})
	if err != nil {
		return &SendError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return &SendError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &SendError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &SendError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Disabled is used when no provider is configured. Every send fails.
type Disabled struct{}

func (Disabled) Send(context.Context, string, string, time.Time) error {
	return &SendError{Err: ErrNotConfigured}
}
