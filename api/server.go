// Package api is the HTTP façade over the support agent: chat, article
// search, ticket creation, triage and health.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/fabfab/support-agent/chat"
	"github.com/fabfab/support-agent/ingestion"
	"github.com/fabfab/support-agent/keyword"
	"github.com/fabfab/support-agent/ticket"
	"github.com/fabfab/support-agent/triage"
)

const requestTimeout = 2 * time.Minute

type Answerer interface {
	Ready() bool
	Answer(ctx context.Context, q chat.Question) (chat.Response, error)
}

type ArticleSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]keyword.Result, error)
	Available() bool
	ArticleCount() int
}

type TicketService interface {
	Enabled() bool
	CreateTicket(ctx context.Context, req ticket.Request) (int64, error)
	GetTicket(ctx context.Context, id int64) (ticket.Ticket, error)
	AddNote(ctx context.Context, id int64, body string, private bool) error
}

type Triager interface {
	Handle(ctx context.Context, ticketText string) (triage.Result, error)
}

type Ingester interface {
	IngestDirectory(ctx context.Context, dir string) (ingestion.Summary, error)
}

// Clearer wipes ingested knowledge (vector store and graph).
type Clearer interface {
	Clear(ctx context.Context) error
}

type EventEmitter interface {
	Emit(ctx context.Context, eventType string, payload any)
}

// SemanticIndex reports whether the embedding index is usable and how much
// it holds.
type SemanticIndex interface {
	Available() bool
	ChunkCount(ctx context.Context) (int, error)
}

// Dependencies are the components the handlers call. Any of them may be nil;
// the matching endpoints then report the component as unavailable.
type Dependencies struct {
	Chat     Answerer
	Articles ArticleSearcher
	Tickets  TicketService
	Triage   Triager
	Ingest   Ingester
	Clear    Clearer
	Events   EventEmitter

	Semantic      SemanticIndex
	SemanticStore string
	DataDir       string
}

type Options struct {
	AllowedOrigins []string
}

type Server struct {
	deps    Dependencies
	logger  *log.Logger
	handler http.Handler
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func New(deps Dependencies, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{deps: deps, logger: logger}
	s.handler = s.routes(opts)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes(opts Options) http.Handler {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.logger, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler)

	r.Get("/health", s.handleHealth)
	r.Post("/chat", s.handleChat)
	r.Post("/search", s.handleSearch)
	r.Post("/create-ticket", s.handleCreateTicket)
	r.Post("/handle-ticket", s.handleTicket)
	r.Get("/tickets/{id}", s.handleGetTicket)
	r.Post("/ingest", s.handleIngest)
	r.Post("/clear", s.handleClear)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed on %s", r.Method, r.URL.Path))
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no route for %s", r.URL.Path))
	})
	return r
}

func (s *Server) emit(ctx context.Context, eventType string, payload any) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.Emit(context.WithoutCancel(ctx), eventType, payload)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("api error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, message string) {
	s.logger.Printf("api error (%d): %s", http.StatusBadRequest, message)
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}

// writeInternal logs the cause and returns a generic 500 body.
func (s *Server) writeInternal(w http.ResponseWriter, err error, message string) {
	s.logger.Printf("api error (%d): %v", http.StatusInternalServerError, err)
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   "internal error",
		Message: message,
	})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}
