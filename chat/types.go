package chat

import "time"

type ChunkResult struct {
	ChunkID    string
	DocumentID string
	Title      string
	Path       string
	Content    string
	Score      float64
}

type DocumentInsight struct {
	ChunkCount       int
	Folders          []string
	RelatedDocuments []RelatedDocument
	Sections         []SectionInfo
	Topics           []string
}

type RelatedDocument struct {
	ID    string
	Title string
	Path  string
}

type SectionInfo struct {
	Title string
	Level int
	Order int
}

// Document is a semantic search hit handed to the composer.
type Document struct {
	ID      string
	Title   string
	Source  string
	Content string
	Score   float64
	Insight DocumentInsight
}

// ContextBlock is retrieved text tagged with the method that produced it.
type ContextBlock struct {
	Method  string
	Content string
}

type Question struct {
	Text string
	// Context is optional background such as the original ticket text.
	Context string
}

type Response struct {
	Answer        string
	Sources       []string
	SuggestTicket bool
	Methods       []string
}

// Knowledge is the merged output of the search stage.
type Knowledge struct {
	Blocks  []ContextBlock
	Sources []string
	Methods []string
}

func (k Knowledge) Empty() bool {
	return len(k.Blocks) == 0
}

// StoredDocument is what ingestion persists into a vector store.
type StoredDocument struct {
	ID        string
	Path      string
	Title     string
	SHA       string
	UpdatedAt time.Time
	Chunks    []StoredChunk
}

type StoredChunk struct {
	ID        string
	Index     int
	Section   string
	Content   string
	Embedding []float32
}
