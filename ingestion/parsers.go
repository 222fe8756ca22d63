package ingestion

import (
	"bytes"
	"cmp"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

type DocumentParser interface {
	Parse(ctx context.Context, payload DocumentPayload) (*ParsedDocument, error)
}

type ParsedDocument struct {
	Title     string
	Fragments []ChunkFragment
	Sections  []SectionMeta
	Topics    []TopicMeta
}

func baseTitle(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

type markdownParser struct{}

func (markdownParser) Parse(_ context.Context, payload DocumentPayload) (*ParsedDocument, error) {
	content := string(payload.Data)
	title := ExtractTitle(content, baseTitle(payload.Path))

	fragments, sections, topics := ChunkMarkdown(content, defaultChunkSize, defaultChunkOverlap)

	return &ParsedDocument{
		Title:     title,
		Fragments: fragments,
		Sections:  sections,
		Topics:    topics,
	}, nil
}

type textParser struct{}

func (textParser) Parse(_ context.Context, payload DocumentPayload) (*ParsedDocument, error) {
	content := normalizePlainText(string(payload.Data))
	title := baseTitle(payload.Path)
	fragments, sections := ChunkPlainText(content, title, defaultChunkSize, defaultChunkOverlap)
	return &ParsedDocument{Title: title, Fragments: fragments, Sections: sections}, nil
}

// jsonParser understands the scraper's article export and chat transcripts
// ([{sender, content}] or [{role, content}]). Anything else is indexed as
// indented JSON text.
type jsonParser struct{}

type jsonRecord struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Content   string `json:"content"`
	ScrapedAt string `json:"scraped_at"`
	Sender    string `json:"sender"`
	Role      string `json:"role"`
	Message   string `json:"message"`
}

func (jsonParser) Parse(_ context.Context, payload DocumentPayload) (*ParsedDocument, error) {
	title := baseTitle(payload.Path)

	var records []jsonRecord
	if err := json.Unmarshal(payload.Data, &records); err == nil && len(records) > 0 {
		if isArticleExport(records) {
			return parseArticleExport(title, records), nil
		}
		if transcript := formatTranscript(records); transcript != "" {
			fragments, sections := ChunkPlainText(transcript, title, defaultChunkSize, defaultChunkOverlap)
			return &ParsedDocument{Title: title, Fragments: fragments, Sections: sections}, nil
		}
	}

	var raw any
	if err := json.Unmarshal(payload.Data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	pretty, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("format json: %w", err)
	}
	fragments, sections := ChunkPlainText(string(pretty), title, defaultChunkSize, defaultChunkOverlap)
	return &ParsedDocument{Title: title, Fragments: fragments, Sections: sections}, nil
}

func isArticleExport(records []jsonRecord) bool {
	for _, r := range records {
		if r.Title == "" || r.Content == "" {
			return false
		}
	}
	return true
}

func parseArticleExport(title string, records []jsonRecord) *ParsedDocument {
	sections := make([]SectionMeta, 0, len(records))
	var paragraphs []paragraphWithSection
	for i, r := range records {
		section := SectionMeta{ID: uuid.NewString(), Title: r.Title, Level: 1, Order: i}
		sections = append(sections, section)

		header := fmt.Sprintf("ARTICLE: %s\nSOURCE: %s\n%s", r.Title, r.URL, strings.Repeat("=", 80))
		paragraphs = append(paragraphs, paragraphWithSection{Text: header, Section: section})
		for _, p := range splitParagraphs(r.Content) {
			paragraphs = append(paragraphs, paragraphWithSection{Text: p, Section: section})
		}
	}
	return &ParsedDocument{
		Title:     title,
		Fragments: chunkParagraphs(paragraphs, defaultChunkSize, defaultChunkOverlap),
		Sections:  sections,
	}
}

func formatTranscript(records []jsonRecord) string {
	var b strings.Builder
	for _, r := range records {
		speaker := cmp.Or(r.Sender, r.Role)
		text := cmp.Or(r.Content, r.Message)
		if speaker == "" || text == "" {
			return ""
		}
		fmt.Fprintf(&b, "%s: %s\n\n", speaker, strings.TrimSpace(text))
	}
	return b.String()
}

type pdfParser struct{}

func (pdfParser) Parse(_ context.Context, payload DocumentPayload) (*ParsedDocument, error) {
	reader := bytes.NewReader(payload.Data)
	doc, err := pdf.NewReader(reader, int64(len(payload.Data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}

	content := normalizePlainText(buf.String())
	title := firstNonEmptyLine(content)
	if title == "" {
		title = baseTitle(payload.Path)
	}

	fragments, sections := ChunkPlainText(content, title, defaultChunkSize, defaultChunkOverlap)

	return &ParsedDocument{
		Title:     title,
		Fragments: fragments,
		Sections:  sections,
		Topics:    nil,
	}, nil
}

type csvParser struct{}

func (csvParser) Parse(_ context.Context, payload DocumentPayload) (*ParsedDocument, error) {
	reader := csv.NewReader(bytes.NewReader(payload.Data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	title := baseTitle(payload.Path)
	if len(records) == 0 {
		return &ParsedDocument{Title: title}, nil
	}

	headers := records[0]
	rows := records[1:]

	section := SectionMeta{ID: uuid.NewString(), Title: title, Level: 1}
	sections := []SectionMeta{section}

	topics := make([]TopicMeta, 0, len(headers))
	for _, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			continue
		}
		topics = append(topics, TopicMeta{Name: header})
	}

	paragraphs := make([]paragraphWithSection, 0, len(rows))
	for idx, row := range rows {
		paragraphs = append(paragraphs, paragraphWithSection{
			Text:    formatCSVRow(headers, row, idx),
			Section: section,
		})
	}

	fragments := chunkParagraphs(paragraphs, defaultChunkSize, defaultChunkOverlap)

	return &ParsedDocument{
		Title:     title,
		Fragments: fragments,
		Sections:  sections,
		Topics:    topics,
	}, nil
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

func firstNonEmptyLine(content string) string {
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func formatCSVRow(headers, row []string, idx int) string {
	lines := []string{fmt.Sprintf("Row %d", idx+1)}
	for i, value := range row {
		label := fmt.Sprintf("Extra %d", i+1)
		if i < len(headers) {
			label = strings.TrimSpace(headers[i])
			if label == "" {
				label = fmt.Sprintf("Column %d", i+1)
			}
		}
		lines = append(lines, label+": "+strings.TrimSpace(value))
	}
	return strings.Join(lines, "\n")
}
