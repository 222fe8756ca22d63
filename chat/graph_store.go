package chat

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type GraphStore interface {
	DocumentInsights(ctx context.Context, docIDs []string) (map[string]DocumentInsight, error)
}

// Neo4jGraphStore reads the knowledge graph written during ingestion.
// Related documents share a folder (the help-center section for scraped
// articles) or a topic; those sharing more topics rank first.
type Neo4jGraphStore struct {
	driver       neo4j.DriverWithContext
	relatedLimit int
}

func NewNeo4jGraphStore(driver neo4j.DriverWithContext) *Neo4jGraphStore {
	return &Neo4jGraphStore{driver: driver, relatedLimit: 3}
}

const insightsQuery = `
	MATCH (d:Document) WHERE d.id IN $ids
	CALL {
		WITH d
		OPTIONAL MATCH (d)-[:HAS_CHUNK]->(c:Chunk)
		RETURN count(DISTINCT c) AS chunkCount
	}
	CALL {
		WITH d
		OPTIONAL MATCH (d)-[:IN_FOLDER]->(f:Folder)
		RETURN [name IN collect(DISTINCT f.name) WHERE name IS NOT NULL AND name <> ''] AS folders
	}
	CALL {
		WITH d
		OPTIONAL MATCH (d)-[:HAS_TOPIC]->(t:Topic)
		RETURN [name IN collect(DISTINCT t.name) WHERE name IS NOT NULL] AS topics
	}
	CALL {
		WITH d
		OPTIONAL MATCH (d)-[:HAS_SECTION]->(s:Section)
		WITH s ORDER BY s.order
		RETURN [x IN collect(s) | {title: x.title, level: x.level, order: x.order}] AS sections
	}
	CALL {
		WITH d
		OPTIONAL MATCH (d)-[:IN_FOLDER|HAS_TOPIC]->(shared)<-[:IN_FOLDER|HAS_TOPIC]-(r:Document)
		WHERE r.id <> d.id
		WITH r, count(DISTINCT shared) AS overlap
		ORDER BY overlap DESC, r.title
		RETURN [x IN collect(r) WHERE x IS NOT NULL | {id: x.id, title: x.title, path: x.path}][0..$related] AS related
	}
	RETURN d.id AS id, chunkCount, folders, topics, sections, related`

func (s *Neo4jGraphStore) DocumentInsights(ctx context.Context, docIDs []string) (map[string]DocumentInsight, error) {
	if s.driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if len(docIDs) == 0 {
		return map[string]DocumentInsight{}, nil
	}

	result, err := neo4j.ExecuteQuery(ctx, s.driver, insightsQuery,
		map[string]any{"ids": docIDs, "related": s.relatedLimit},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, fmt.Errorf("run neo4j insights query: %w", err)
	}

	insights := make(map[string]DocumentInsight, len(result.Records))
	for _, record := range result.Records {
		values := record.AsMap()
		docID, ok := values["id"].(string)
		if !ok {
			continue
		}
		chunkCount, _ := toInt(values["chunkCount"])
		insights[docID] = DocumentInsight{
			ChunkCount:       chunkCount,
			Folders:          stringsOf(values["folders"]),
			Topics:           stringsOf(values["topics"]),
			Sections:         sectionsOf(values["sections"]),
			RelatedDocuments: relatedOf(values["related"]),
		}
	}
	return insights, nil
}

var _ GraphStore = (*Neo4jGraphStore)(nil)

func stringsOf(value any) []string {
	raw, _ := value.([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func sectionsOf(value any) []SectionInfo {
	raw, _ := value.([]any)
	out := make([]SectionInfo, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		title, _ := m["title"].(string)
		level, _ := toInt(m["level"])
		order, _ := toInt(m["order"])
		out = append(out, SectionInfo{Title: title, Level: level, Order: order})
	}
	slices.SortStableFunc(out, func(a, b SectionInfo) int { return cmp.Compare(a.Order, b.Order) })
	return out
}

func relatedOf(value any) []RelatedDocument {
	raw, _ := value.([]any)
	out := make([]RelatedDocument, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		if id == "" {
			continue
		}
		title, _ := m["title"].(string)
		path, _ := m["path"].(string)
		out = append(out, RelatedDocument{ID: id, Title: title, Path: path})
	}
	return out
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int64:
		return int(v), true
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
