// Package ticket creates and reads tickets in Freshservice through its v2
// REST API.
package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

var (
	ErrInvalidInput  = errors.New("invalid ticket request")
	ErrNotConfigured = errors.New("Freshservice not configured. Set FRESHSERVICE_DOMAIN and FRESHSERVICE_API_KEY")
)

const (
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
	PriorityUrgent = 4

	statusOpen   = 2
	sourcePortal = 2
)

// APIError is returned when Freshservice answers with an unexpected status.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Error: %d", e.StatusCode)
}

type Request struct {
	Email       string `json:"email"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	// Priority ranges from PriorityLow to PriorityUrgent; zero means medium.
	Priority int `json:"priority"`
}

type Ticket struct {
	ID          int64     `json:"id"`
	Subject     string    `json:"subject"`
	Description string    `json:"description_text"`
	Status      int       `json:"status"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ticketEnvelope struct {
	Ticket Ticket `json:"ticket"`
}

type createPayload struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Email       string `json:"email"`
	Priority    int    `json:"priority"`
	Status      int    `json:"status"`
	Source      int    `json:"source"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *log.Logger
}

// NewClient returns a client for the given Freshservice domain
// (e.g. acme.freshservice.com). A domain with an explicit scheme is used
// as-is.
func NewClient(domain, apiKey string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	base := ""
	if domain != "" {
		if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
			domain = "https://" + domain
		}
		base = domain + "/api/v2"
	}

	return &Client{
		baseURL: base,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Enabled reports whether both domain and API key are set.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

// Validate checks required fields and fills in the default priority.
func (r *Request) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.Subject = strings.TrimSpace(r.Subject)
	r.Description = strings.TrimSpace(r.Description)

	var missing []string
	if r.Email == "" {
		missing = append(missing, "email")
	}
	if r.Subject == "" {
		missing = append(missing, "subject")
	}
	if r.Description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrInvalidInput, strings.Join(missing, ", "))
	}

	if r.Priority == 0 {
		r.Priority = PriorityMedium
	}
	if r.Priority < PriorityLow || r.Priority > PriorityUrgent {
		return fmt.Errorf("%w: priority must be between %d and %d", ErrInvalidInput, PriorityLow, PriorityUrgent)
	}
	return nil
}

// CreateTicket opens a ticket and returns its Freshservice id. The call is
// attempted once.
func (c *Client) CreateTicket(ctx context.Context, req Request) (int64, error) {
	if !c.Enabled() {
		return 0, ErrNotConfigured
	}
	if err := req.Validate(); err != nil {
		return 0, err
	}

	payload := createPayload{
		Subject:     req.Subject,
		Description: req.Description,
		Email:       req.Email,
		Priority:    req.Priority,
		Status:      statusOpen,
		Source:      sourcePortal,
	}

	var created ticketEnvelope
	if err := c.do(ctx, http.MethodPost, "/tickets", payload, http.StatusCreated, &created); err != nil {
		return 0, err
	}
	c.logger.Printf("created freshservice ticket %d for %s", created.Ticket.ID, req.Email)
	return created.Ticket.ID, nil
}

func (c *Client) GetTicket(ctx context.Context, id int64) (Ticket, error) {
	if !c.Enabled() {
		return Ticket{}, ErrNotConfigured
	}
	if id <= 0 {
		return Ticket{}, fmt.Errorf("%w: ticket id must be positive", ErrInvalidInput)
	}

	var found ticketEnvelope
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tickets/%d", id), nil, http.StatusOK, &found); err != nil {
		return Ticket{}, err
	}
	return found.Ticket, nil
}

// AddNote attaches a note to an existing ticket.
func (c *Client) AddNote(ctx context.Context, id int64, body string, private bool) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: note body is required", ErrInvalidInput)
	}

	payload := map[string]any{"body": body, "private": private}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/tickets/%d/notes", id), payload, http.StatusCreated, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, want int, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal freshservice request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create freshservice request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "X")
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call freshservice API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Printf("freshservice %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
		return &APIError{StatusCode: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode freshservice response: %w", err)
	}
	return nil
}
