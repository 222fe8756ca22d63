package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "secret-key", log.New(io.Discard, "", 0))
}

func TestCreateTicketDefaultsPriority(t *testing.T) {
	var got createPayload
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/tickets", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "secret-key", user)
		assert.Equal(t, "X", pass)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ticket":{"id":4242,"subject":"Gateway down"}}`))
	})

	id, err := client.CreateTicket(context.Background(), Request{
		Email:       " user@example.com ",
		Subject:     "Gateway down",
		Description: "The gateway stopped syncing.",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4242), id)
	assert.Equal(t, PriorityMedium, got.Priority)
	assert.Equal(t, 2, got.Status)
	assert.Equal(t, 2, got.Source)
	assert.Equal(t, "user@example.com", got.Email)
}

func TestCreateTicketReportsStatus(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"description":"boom"}`, http.StatusInternalServerError)
	})

	_, err := client.CreateTicket(context.Background(), Request{Email: "a@b.c", Subject: "s", Description: "d", Priority: PriorityHigh})
	require.Error(t, err)
	assert.Equal(t, "API Error: 500", err.Error())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestCreateTicketValidatesBeforeCalling(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	cases := map[string]Request{
		"missing email":  {Subject: "s", Description: "d"},
		"blank subject":  {Email: "a@b.c", Subject: "  ", Description: "d"},
		"priority high":  {Email: "a@b.c", Subject: "s", Description: "d", Priority: 5},
		"priority low":   {Email: "a@b.c", Subject: "s", Description: "d", Priority: -1},
		"no description": {Email: "a@b.c", Subject: "s"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := client.CreateTicket(context.Background(), req)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Zero(t, calls)
}

func TestClientWithoutCredentialsIsDisabled(t *testing.T) {
	client := NewClient("", "", nil)
	assert.False(t, client.Enabled())

	_, err := client.CreateTicket(context.Background(), Request{Email: "a@b.c", Subject: "s", Description: "d"})
	require.ErrorIs(t, err, ErrNotConfigured)

	assert.False(t, NewClient("acme.freshservice.com", "", nil).Enabled())
	assert.Equal(t, "https://acme.freshservice.com/api/v2", NewClient("acme.freshservice.com/", "k", nil).baseURL)
}

func TestGetTicket(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.URL.Path != "/api/v2/tickets/7" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"ticket":{"id":7,"subject":"Login","description_text":"cannot log in","status":2,"priority":3}}`))
	})

	tk, err := client.GetTicket(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), tk.ID)
	assert.Equal(t, "cannot log in", tk.Description)
	assert.Equal(t, PriorityHigh, tk.Priority)

	_, err = client.GetTicket(context.Background(), 8)
	assert.EqualError(t, err, "API Error: 404")

	_, err = client.GetTicket(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddNote(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/tickets/7/notes", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, client.AddNote(context.Background(), 7, "Suggested fix attached.", true))
	assert.Equal(t, "Suggested fix attached.", body["body"])
	assert.Equal(t, true, body["private"])
}
