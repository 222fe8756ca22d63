// Package ingestion parses support documents, chunks and embeds them, and
// writes them to the vector store and the knowledge graph.
package ingestion

import (
	"path/filepath"
	"strings"
)

type DocumentFormat string

const (
	FormatUnknown  DocumentFormat = ""
	FormatMarkdown DocumentFormat = "markdown"
	FormatText     DocumentFormat = "text"
	// FormatJSON covers scraped article exports and chat transcripts.
	FormatJSON DocumentFormat = "json"
	FormatPDF  DocumentFormat = "pdf"
	FormatCSV  DocumentFormat = "csv"
)

// DetectFormat infers a document format from the path's extension.
func DetectFormat(path string) DocumentFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".txt", ".text":
		return FormatText
	case ".json":
		return FormatJSON
	case ".pdf":
		return FormatPDF
	case ".csv":
		return FormatCSV
	default:
		return FormatUnknown
	}
}

func parserFor(format DocumentFormat) (DocumentParser, bool) {
	switch format {
	case FormatMarkdown:
		return markdownParser{}, true
	case FormatText:
		return textParser{}, true
	case FormatJSON:
		return jsonParser{}, true
	case FormatPDF:
		return pdfParser{}, true
	case FormatCSV:
		return csvParser{}, true
	default:
		return nil, false
	}
}
