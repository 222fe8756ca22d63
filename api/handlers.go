package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fabfab/support-agent/chat"
	"github.com/fabfab/support-agent/events"
	"github.com/fabfab/support-agent/keyword"
	"github.com/fabfab/support-agent/ticket"
	"github.com/fabfab/support-agent/triage"
)

const defaultSearchResults = 5

type chatRequest struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type chatResponse struct {
	Answer            string   `json:"answer"`
	Sources           []string `json:"sources"`
	SuggestTicket     bool     `json:"suggest_ticket"`
	SearchMethodsUsed []string `json:"search_methods_used"`
	TotalMethods      int      `json:"total_methods"`
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Success    bool             `json:"success"`
	Query      string           `json:"query"`
	Results    []keyword.Result `json:"results"`
	TotalFound int              `json:"total_found"`
}

type ticketResponse struct {
	Success  bool   `json:"success"`
	TicketID int64  `json:"ticket_id,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

type handleTicketRequest struct {
	TicketText string `json:"ticket_text"`
	// TicketID, when set, receives the immediate solution as a private note.
	TicketID int64 `json:"ticket_id,omitempty"`
}

type handleTicketResponse struct {
	triage.Result
	NoteAdded bool `json:"note_added,omitempty"`
}

type ingestRequest struct {
	Dir string `json:"dir"`
}

type clearRequest struct {
	Confirm bool `json:"confirm"`
}

type healthResponse struct {
	Status          string          `json:"status"`
	LLM             string          `json:"llm"`
	SearchMethods   healthSearch    `json:"search_methods"`
	Ticketing       healthComponent `json:"ticketing"`
	Recommendations []string        `json:"recommendations"`
}

type healthSearch struct {
	KeywordSearch  healthKeyword  `json:"keyword_search"`
	SemanticSearch healthSemantic `json:"semantic_search"`
}

type healthKeyword struct {
	Enabled       bool `json:"enabled"`
	ArticlesCount int  `json:"articles_count"`
}

type healthSemantic struct {
	Enabled    bool   `json:"enabled"`
	Store      string `json:"store,omitempty"`
	ChunkCount *int   `json:"chunk_count,omitempty"`
}

type healthComponent struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	llmReady := s.deps.Chat != nil && s.deps.Chat.Ready()
	keywordReady := s.deps.Articles != nil && s.deps.Articles.Available()
	semanticReady := s.deps.Semantic != nil && s.deps.Semantic.Available()
	ticketsReady := s.deps.Tickets != nil && s.deps.Tickets.Enabled()

	resp := healthResponse{
		Status: "healthy",
		LLM:    "not initialized",
		SearchMethods: healthSearch{
			KeywordSearch:  healthKeyword{Enabled: keywordReady},
			SemanticSearch: healthSemantic{Enabled: semanticReady, Store: s.deps.SemanticStore},
		},
		Ticketing:       healthComponent{Enabled: ticketsReady},
		Recommendations: []string{},
	}
	if keywordReady {
		resp.SearchMethods.KeywordSearch.ArticlesCount = s.deps.Articles.ArticleCount()
	}
	semanticEmpty := false
	if semanticReady {
		if count, err := s.deps.Semantic.ChunkCount(r.Context()); err != nil {
			s.logger.Printf("count semantic chunks: %v", err)
		} else {
			resp.SearchMethods.SemanticSearch.ChunkCount = &count
			semanticEmpty = count == 0
			resp.SearchMethods.SemanticSearch.Enabled = !semanticEmpty
		}
	}

	if llmReady {
		resp.LLM = "initialized"
	} else {
		resp.Recommendations = append(resp.Recommendations, "Set GROQ_API_KEY (or configure LLM_PROVIDER) to enable chat")
	}
	if !keywordReady {
		resp.Recommendations = append(resp.Recommendations, "Run the scrape command to build the help-center article store")
	}
	switch {
	case !semanticReady:
		resp.Recommendations = append(resp.Recommendations, "Run the ingest command and check the vector store connection to enable semantic search")
	case semanticEmpty:
		resp.Recommendations = append(resp.Recommendations, "Run the ingest command to populate the empty vector store")
	}
	if !ticketsReady {
		resp.Recommendations = append(resp.Recommendations, "Set FRESHSERVICE_DOMAIN and FRESHSERVICE_API_KEY to enable ticket creation")
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if s.deps.Chat == nil {
		s.writeError(w, http.StatusBadRequest, chat.ErrServiceUnavailable)
		return
	}

	resp, err := s.deps.Chat.Answer(r.Context(), chat.Question{Text: req.Question, Context: req.Context})
	switch {
	case errors.Is(err, chat.ErrServiceUnavailable):
		s.writeError(w, http.StatusBadRequest, chat.ErrServiceUnavailable)
		return
	case errors.Is(err, chat.ErrInvalidInput):
		s.badRequest(w, "No question provided")
		return
	case err != nil:
		s.writeInternal(w, err, "Error processing chat request")
		return
	}

	if resp.SuggestTicket {
		s.emit(r.Context(), events.TypeEscalationSuggested, map[string]any{
			"question": strings.TrimSpace(req.Question),
			"answer":   resp.Answer,
			"methods":  resp.Methods,
		})
	}

	s.writeJSON(w, http.StatusOK, chatResponse{
		Answer:            resp.Answer,
		Sources:           nonNil(resp.Sources),
		SuggestTicket:     resp.SuggestTicket,
		SearchMethodsUsed: nonNil(resp.Methods),
		TotalMethods:      len(resp.Methods),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		s.badRequest(w, "No query provided")
		return
	}
	if s.deps.Articles == nil || !s.deps.Articles.Available() {
		s.writeError(w, http.StatusBadRequest, keyword.ErrNoIndex)
		return
	}

	limit := req.MaxResults
	if limit <= 0 {
		limit = defaultSearchResults
	}

	results, err := s.deps.Articles.Search(r.Context(), query, limit)
	if errors.Is(err, keyword.ErrNoIndex) {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		s.writeInternal(w, err, "Error searching articles")
		return
	}

	s.writeJSON(w, http.StatusOK, searchResponse{
		Success:    true,
		Query:      query,
		Results:    nonNil(results),
		TotalFound: len(results),
	})
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req ticket.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ticketResponse{Error: fmt.Sprintf("decode request: %v", err)})
		return
	}
	if s.deps.Tickets == nil {
		s.writeJSON(w, http.StatusBadRequest, ticketResponse{Error: ticket.ErrNotConfigured.Error()})
		return
	}

	id, err := s.deps.Tickets.CreateTicket(r.Context(), req)
	if err != nil {
		status, message := ticketErrorStatus(err)
		s.logger.Printf("create ticket failed (%d): %v", status, err)
		s.writeJSON(w, status, ticketResponse{Error: message})
		return
	}

	s.emit(r.Context(), events.TypeTicketCreated, map[string]any{
		"ticket_id": id,
		"email":     strings.TrimSpace(req.Email),
		"subject":   strings.TrimSpace(req.Subject),
		"priority":  req.Priority,
	})

	s.writeJSON(w, http.StatusOK, ticketResponse{
		Success:  true,
		TicketID: id,
		Message:  fmt.Sprintf("Ticket #%d created successfully", id),
	})
}

func ticketErrorStatus(err error) (int, string) {
	var apiErr *ticket.APIError
	switch {
	case errors.Is(err, ticket.ErrInvalidInput), errors.Is(err, ticket.ErrNotConfigured):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &apiErr):
		return http.StatusInternalServerError, apiErr.Error()
	default:
		return http.StatusInternalServerError, "Failed to create ticket"
	}
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("ticket id must be a positive integer"))
		return
	}
	if s.deps.Tickets == nil || !s.deps.Tickets.Enabled() {
		s.writeError(w, http.StatusBadRequest, ticket.ErrNotConfigured)
		return
	}

	t, err := s.deps.Tickets.GetTicket(r.Context(), id)
	var apiErr *ticket.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("ticket %d not found", id))
		return
	}
	if err != nil {
		s.writeInternal(w, err, "Error fetching ticket")
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTicket(w http.ResponseWriter, r *http.Request) {
	var req handleTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if s.deps.Triage == nil {
		s.writeError(w, http.StatusBadRequest, chat.ErrServiceUnavailable)
		return
	}

	result, err := s.deps.Triage.Handle(r.Context(), req.TicketText)
	switch {
	case errors.Is(err, chat.ErrServiceUnavailable):
		s.writeError(w, http.StatusBadRequest, chat.ErrServiceUnavailable)
		return
	case errors.Is(err, chat.ErrInvalidInput):
		s.badRequest(w, "No ticket text provided")
		return
	case err != nil:
		s.writeInternal(w, err, "Error processing ticket")
		return
	}

	payload := map[string]any{"redirected": result.Redirected}
	if result.Redirected {
		payload["redirect_category"] = result.RedirectCategory
	}
	if result.Classification != nil {
		payload["severity"] = result.Classification.Severity
		payload["ticket_type"] = result.Classification.TicketType
	}
	s.emit(r.Context(), events.TypeTicketTriaged, payload)

	resp := handleTicketResponse{Result: result}
	if req.TicketID > 0 && result.ImmediateSolution != nil {
		resp.NoteAdded = s.attachSolution(r.Context(), req.TicketID, result.ImmediateSolution)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// attachSolution posts the suggested solution as a private agent note. A
// failure is logged; the triage result is still returned.
func (s *Server) attachSolution(ctx context.Context, id int64, solution *triage.Solution) bool {
	if s.deps.Tickets == nil || !s.deps.Tickets.Enabled() {
		return false
	}
	if err := s.deps.Tickets.AddNote(ctx, id, solutionNote(solution), true); err != nil {
		s.logger.Printf("add solution note to ticket %d: %v", id, err)
		return false
	}
	return true
}

func solutionNote(solution *triage.Solution) string {
	var sb strings.Builder
	sb.WriteString("Suggested solution:\n\n")
	sb.WriteString(solution.Solution)
	if len(solution.Sources) > 0 {
		sb.WriteString("\n\nSources:\n")
		for _, src := range solution.Sources {
			sb.WriteString("- " + src + "\n")
		}
	}
	return sb.String()
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if s.deps.Ingest == nil {
		s.writeError(w, http.StatusBadRequest, errors.New("semantic index is not configured"))
		return
	}

	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		dir = s.deps.DataDir
	}

	summary, err := s.deps.Ingest.IngestDirectory(r.Context(), dir)
	if err != nil {
		s.writeInternal(w, err, "Error ingesting documents")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":   "ingestion complete",
		"ingested":  summary.Ingested,
		"unchanged": summary.Unchanged,
		"failed":    summary.Failed,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if !req.Confirm {
		s.writeError(w, http.StatusBadRequest, errors.New("confirm must be true to clear data"))
		return
	}
	if s.deps.Clear == nil {
		s.writeError(w, http.StatusBadRequest, errors.New("semantic index is not configured"))
		return
	}

	if err := s.deps.Clear.Clear(r.Context()); err != nil {
		s.writeInternal(w, err, "Error clearing knowledge data")
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "knowledge data cleared"})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
