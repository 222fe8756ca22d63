// Package triage classifies incoming support tickets, drafts an
// acknowledgment and, where the knowledge base allows, an immediate
// solution.
package triage

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/fabfab/support-agent/chat"
	"github.com/fabfab/support-agent/config"
)

// Composer is the part of the answer composer triage relies on.
type Composer interface {
	Ready() bool
	Generate(ctx context.Context, prompt string) (string, error)
	SearchKnowledge(ctx context.Context, text string) chat.Knowledge
}

type Classification struct {
	Severity              Severity `json:"severity"`
	SeverityName          string   `json:"severity_name"`
	TicketType            Type     `json:"ticket_type"`
	TicketTypeDescription string   `json:"ticket_type_description"`
	Reasoning             string   `json:"reasoning"`
}

type SLA struct {
	ResponseTime   string `json:"response_time"`
	ResolutionTime string `json:"resolution_time"`
}

type Solution struct {
	Solution      string   `json:"solution"`
	Sources       []string `json:"sources"`
	SearchMethods []string `json:"search_methods"`
}

// Result is the outcome of handling one ticket. Redirected tickets only
// carry the redirect fields.
type Result struct {
	Success           bool            `json:"success"`
	Redirected        bool            `json:"redirected"`
	RedirectCategory  string          `json:"redirect_category,omitempty"`
	RedirectEmail     string          `json:"redirect_email,omitempty"`
	Message           string          `json:"message,omitempty"`
	Classification    *Classification `json:"classification,omitempty"`
	SimpleExplanation string          `json:"simple_explanation,omitempty"`
	Acknowledgment    string          `json:"acknowledgment,omitempty"`
	SLA               *SLA            `json:"sla,omitempty"`
	Timestamp         string          `json:"timestamp,omitempty"`
	ImmediateSolution *Solution       `json:"immediate_solution,omitempty"`
	FRSummary         string          `json:"fr_summary,omitempty"`
}

var (
	severityPattern  = regexp.MustCompile(`(?i)SEVERITY:\s*(S[123])`)
	typePattern      = regexp.MustCompile(`(?i)TYPE:\s*(BUG|ENHANCEMENT|QUESTION|REQUEST)`)
	reasoningPattern = regexp.MustCompile(`REASONING:\s*(.+?)(?:\n|$)`)

	empatheticPhrases = []string{
		"i understand", "i can imagine", "it must be", "i know",
		"must be frustrating", "must be difficult", "i appreciate",
		"thank you for", "i'm sorry",
	}
)

type Service struct {
	composer  Composer
	redirects []config.RedirectCategory
	product   string
	now       func() time.Time
	logger    *log.Logger
}

func NewService(composer Composer, redirects []config.RedirectCategory, product string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		composer:  composer,
		redirects: redirects,
		product:   product,
		now:       time.Now,
		logger:    logger,
	}
}

// Handle triages a ticket. Only missing input or a missing language model
// produce an error; individual generation failures fall back to defaults.
func (s *Service) Handle(ctx context.Context, ticketText string) (Result, error) {
	if s.composer == nil || !s.composer.Ready() {
		return Result{}, chat.ErrServiceUnavailable
	}
	ticketText = strings.TrimSpace(ticketText)
	if ticketText == "" {
		return Result{}, fmt.Errorf("%w: no ticket text provided", chat.ErrInvalidInput)
	}

	if category, ok := s.redirect(ticketText); ok {
		s.logger.Printf("ticket redirected to %s", category.Name)
		return Result{
			Success:          true,
			Redirected:       true,
			RedirectCategory: category.Name,
			RedirectEmail:    category.Email,
			Message:          redirectMessage(s.product, category.Name, category.Email),
		}, nil
	}

	classification := s.classify(ctx, ticketText)
	explanation := s.explain(ctx, ticketText)
	now := s.now()
	cfg := severityConfigs[classification.Severity]

	result := Result{
		Success:           true,
		Classification:    &classification,
		SimpleExplanation: explanation,
		Acknowledgment:    acknowledgment(s.product, classification.Severity, classification.TicketType, explanation, now.Format(time.DateTime)),
		SLA:               &SLA{ResponseTime: cfg.SLAResponse, ResolutionTime: cfg.SLAResolution},
		Timestamp:         now.Format(time.RFC3339),
	}

	if wantsSolution(classification.TicketType) {
		result.ImmediateSolution = s.solve(ctx, ticketText, classification.Severity)
	}
	if classification.TicketType == TypeEnhancement {
		summary, err := s.composer.Generate(ctx, featureRequestPrompt(ticketText))
		if err != nil {
			s.logger.Printf("feature request summary failed: %v", err)
		} else {
			result.FRSummary = summary
		}
	}

	s.logger.Printf("ticket triaged as %s %s", classification.Severity, classification.TicketType)
	return result, nil
}

func (s *Service) redirect(ticketText string) (config.RedirectCategory, bool) {
	lower := strings.ToLower(ticketText)
	for _, category := range s.redirects {
		for _, kw := range category.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(lower, kw) {
				return category, true
			}
		}
	}
	return config.RedirectCategory{}, false
}

func (s *Service) classify(ctx context.Context, ticketText string) Classification {
	analysis, err := s.composer.Generate(ctx, classificationPrompt(s.product, ticketText))
	if err != nil {
		s.logger.Printf("severity analysis failed: %v", err)
		return newClassification(SeverityRegular, TypeQuestion, "Default classification due to error")
	}
	severity, ticketType, reasoning := ParseClassification(analysis)
	return newClassification(severity, ticketType, reasoning)
}

// ParseClassification extracts severity, type and reasoning from a model
// reply, defaulting to S3 and QUESTION.
func ParseClassification(analysis string) (Severity, Type, string) {
	severity := SeverityRegular
	if m := severityPattern.FindStringSubmatch(analysis); m != nil {
		severity = Severity(strings.ToUpper(m[1]))
	}
	ticketType := TypeQuestion
	if m := typePattern.FindStringSubmatch(analysis); m != nil {
		ticketType = Type(strings.ToUpper(m[1]))
	}
	reasoning := "Standard classification"
	if m := reasoningPattern.FindStringSubmatch(analysis); m != nil {
		reasoning = strings.TrimSpace(m[1])
	}
	return severity, ticketType, reasoning
}

func newClassification(severity Severity, ticketType Type, reasoning string) Classification {
	return Classification{
		Severity:              severity,
		SeverityName:          severityConfigs[severity].Name,
		TicketType:            ticketType,
		TicketTypeDescription: typeDescriptions[ticketType],
		Reasoning:             reasoning,
	}
}

func (s *Service) explain(ctx context.Context, ticketText string) string {
	explanation, err := s.composer.Generate(ctx, explanationPrompt(s.product, ticketText))
	if err != nil {
		s.logger.Printf("explanation generation failed: %v", err)
		return fmt.Sprintf("The customer has submitted a support request regarding %s product functionality.", s.product)
	}
	return StripEmpathy(explanation)
}

// StripEmpathy trims quotes and, when the text contains empathetic phrasing,
// keeps only its first sentence.
func StripEmpathy(explanation string) string {
	explanation = strings.Trim(strings.TrimSpace(explanation), `"'`)
	lower := strings.ToLower(explanation)
	for _, phrase := range empatheticPhrases {
		if strings.Contains(lower, phrase) {
			first, _, _ := strings.Cut(explanation, ".")
			return first + "."
		}
	}
	return explanation
}

func (s *Service) solve(ctx context.Context, ticketText string, severity Severity) *Solution {
	knowledge := s.composer.SearchKnowledge(ctx, ticketText)
	if knowledge.Empty() {
		return nil
	}

	solution, err := s.composer.Generate(ctx, solutionPrompt(s.product, ticketText, severity, chat.FormatKnowledge(knowledge.Blocks)))
	if err != nil {
		s.logger.Printf("solution generation failed: %v", err)
		return nil
	}

	sources := knowledge.Sources
	if len(sources) == 0 {
		sources = []string{chat.SourceKnowledgeBase}
	}
	return &Solution{
		Solution:      solution,
		Sources:       sources,
		SearchMethods: knowledge.Methods,
	}
}
