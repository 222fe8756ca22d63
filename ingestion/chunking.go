package ingestion

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// DocumentPayload is a raw document handed to a parser.
type DocumentPayload struct {
	Path string
	Data []byte
}

// ChunkFragment is one embeddable piece of a document.
type ChunkFragment struct {
	Text         string
	SectionID    string
	SectionTitle string
}

type SectionMeta struct {
	ID    string
	Title string
	Level int
	Order int
}

type TopicMeta struct {
	Name string
}

type paragraphWithSection struct {
	Text    string
	Section SectionMeta
}

// ChunkMarkdown splits markdown into fragments of roughly target runes.
// Headings open sections; level-2 headings are also reported as topics.
func ChunkMarkdown(content string, target, overlap int) ([]ChunkFragment, []SectionMeta, []TopicMeta) {
	var (
		sections   []SectionMeta
		topics     []TopicMeta
		paragraphs []paragraphWithSection
		current    SectionMeta
		seenTopics = make(map[string]bool)
	)

	for _, p := range splitParagraphs(content) {
		if level, title := headingOf(p); level > 0 {
			current = SectionMeta{
				ID:    uuid.NewString(),
				Title: title,
				Level: level,
				Order: len(sections),
			}
			sections = append(sections, current)
			if level == 2 && title != "" && !seenTopics[title] {
				seenTopics[title] = true
				topics = append(topics, TopicMeta{Name: title})
			}
		}
		paragraphs = append(paragraphs, paragraphWithSection{Text: p, Section: current})
	}

	return chunkParagraphs(paragraphs, target, overlap), sections, topics
}

// ChunkPlainText chunks text without structure under a single section.
func ChunkPlainText(content, title string, target, overlap int) ([]ChunkFragment, []SectionMeta) {
	parts := splitParagraphs(content)
	if len(parts) == 0 {
		return nil, nil
	}

	section := SectionMeta{ID: uuid.NewString(), Title: title, Level: 1}
	paragraphs := make([]paragraphWithSection, 0, len(parts))
	for _, p := range parts {
		paragraphs = append(paragraphs, paragraphWithSection{Text: p, Section: section})
	}
	return chunkParagraphs(paragraphs, target, overlap), []SectionMeta{section}
}

func splitParagraphs(content string) []string {
	clean := strings.ReplaceAll(content, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(clean, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func headingOf(paragraph string) (int, string) {
	line, _, _ := strings.Cut(paragraph, "\n")
	if !strings.HasPrefix(line, "#") {
		return 0, ""
	}
	level := len(line) - len(strings.TrimLeft(line, "#"))
	if level > 6 {
		return 0, ""
	}
	return level, strings.TrimSpace(line[level:])
}

// chunkParagraphs packs paragraphs into fragments. Trailing paragraphs that
// fit inside overlap are repeated at the start of the next fragment.
func chunkParagraphs(paragraphs []paragraphWithSection, target, overlap int) []ChunkFragment {
	if target <= 0 {
		target = defaultChunkSize
	}
	if overlap < 0 || overlap >= target {
		overlap = 0
	}

	var (
		fragments  []ChunkFragment
		current    []paragraphWithSection
		currentLen int
	)

	for _, p := range splitOversized(paragraphs, target, overlap) {
		size := utf8.RuneCountInString(p.Text)
		if currentLen+size > target && len(current) > 0 {
			fragments = append(fragments, buildFragment(current))
			current, currentLen = carryOver(current, overlap)
		}
		current = append(current, p)
		currentLen += size
	}

	if len(current) > 0 {
		fragments = append(fragments, buildFragment(current))
	}
	return fragments
}

func carryOver(current []paragraphWithSection, overlap int) ([]paragraphWithSection, int) {
	if overlap == 0 {
		return nil, 0
	}
	total := 0
	start := len(current)
	for i := len(current) - 1; i >= 0; i-- {
		size := utf8.RuneCountInString(current[i].Text)
		if total+size > overlap {
			break
		}
		total += size
		start = i
	}
	kept := make([]paragraphWithSection, len(current)-start)
	copy(kept, current[start:])
	return kept, total
}

func splitOversized(paragraphs []paragraphWithSection, target, overlap int) []paragraphWithSection {
	out := make([]paragraphWithSection, 0, len(paragraphs))
	step := target - overlap
	for _, p := range paragraphs {
		runes := []rune(p.Text)
		if len(runes) <= target {
			out = append(out, p)
			continue
		}
		for start := 0; start < len(runes); start += step {
			end := min(start+target, len(runes))
			out = append(out, paragraphWithSection{
				Text:    strings.TrimSpace(string(runes[start:end])),
				Section: p.Section,
			})
			if end == len(runes) {
				break
			}
		}
	}
	return out
}

func buildFragment(paragraphs []paragraphWithSection) ChunkFragment {
	texts := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		texts = append(texts, p.Text)
	}
	return ChunkFragment{
		Text:         strings.Join(texts, "\n\n"),
		SectionID:    paragraphs[0].Section.ID,
		SectionTitle: paragraphs[0].Section.Title,
	}
}

// ExtractTitle returns the first markdown heading, or fallback.
func ExtractTitle(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return fallback
}
