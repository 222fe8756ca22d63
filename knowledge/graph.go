// Package knowledge mirrors ingested documents into Neo4j: documents, their
// help-center folder, sections, topics and chunks.
package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Document struct {
	ID       string
	Path     string
	Title    string
	SHA      string
	Folder   string
	Chunks   []Chunk
	Sections []Section
	Topics   []Topic
}

type Chunk struct {
	ID        string
	Index     int
	Text      string
	SectionID string
}

type Section struct {
	ID    string
	Title string
	Level int
	Order int
}

type Topic struct {
	Name string
}

// Graph binds the sync and clear operations to one driver.
type Graph struct {
	driver neo4j.DriverWithContext
}

func NewGraph(driver neo4j.DriverWithContext) *Graph {
	return &Graph{driver: driver}
}

func (g *Graph) SyncDocument(ctx context.Context, doc Document) error {
	return SyncDocument(ctx, g.driver, doc)
}

// Clear removes every node written by SyncDocument.
func (g *Graph) Clear(ctx context.Context) error {
	if g.driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MATCH (n)
			WHERE n:Document OR n:Chunk OR n:Section OR n:Topic OR n:Folder
			DETACH DELETE n
		`, nil)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("clear knowledge graph: %w", err)
	}
	return nil
}

// SyncDocument replaces the graph neighbourhood of doc inside one write
// transaction, then drops topics no document points at.
func SyncDocument(ctx context.Context, driver neo4j.DriverWithContext, doc Document) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		steps := []func(context.Context, neo4j.ManagedTransaction, Document) error{
			upsertDocumentNode,
			syncFolder,
			syncSections,
			syncTopics,
			syncChunks,
		}
		for _, step := range steps {
			if err := step(ctx, tx, doc); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	if _, err := session.Run(ctx, `
		MATCH (t:Topic)
		WHERE NOT (t)<-[:HAS_TOPIC]-(:Document)
		DELETE t
	`, nil); err != nil {
		return fmt.Errorf("prune orphan topics: %w", err)
	}
	return nil
}

func upsertDocumentNode(ctx context.Context, tx neo4j.ManagedTransaction, doc Document) error {
	_, err := tx.Run(ctx, `
		MERGE (d:Document {id: $id})
		SET d.path = $path,
		    d.title = $title,
		    d.sha256 = $sha,
		    d.updated_at = datetime()
	`, map[string]any{"id": doc.ID, "path": doc.Path, "title": doc.Title, "sha": doc.SHA})
	if err != nil {
		return fmt.Errorf("upsert document node: %w", err)
	}
	return nil
}

func syncFolder(ctx context.Context, tx neo4j.ManagedTransaction, doc Document) error {
	params := map[string]any{"id": doc.ID, "folder": doc.Folder}

	if _, err := tx.Run(ctx, `
		MATCH (d:Document {id: $id})-[r:IN_FOLDER]->(f:Folder)
		DELETE r
		WITH f
		WHERE NOT (f)<-[:IN_FOLDER]-(:Document)
		DETACH DELETE f
	`, params); err != nil {
		return fmt.Errorf("remove stale folder relation: %w", err)
	}
	if doc.Folder == "" {
		return nil
	}

	if _, err := tx.Run(ctx, `
		MATCH (d:Document {id: $id})
		MERGE (f:Folder {name: $folder})
		MERGE (d)-[:IN_FOLDER]->(f)
	`, params); err != nil {
		return fmt.Errorf("upsert folder relation: %w", err)
	}
	return nil
}

func syncSections(ctx context.Context, tx neo4j.ManagedTransaction, doc Document) error {
	if _, err := tx.Run(ctx, `
		MATCH (d:Document {id: $id})-[:HAS_SECTION]->(s:Section)
		DETACH DELETE s
	`, map[string]any{"id": doc.ID}); err != nil {
		return fmt.Errorf("clear existing sections: %w", err)
	}

	for _, section := range doc.Sections {
		if section.ID == "" {
			continue
		}
		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $doc_id})
			MERGE (s:Section {id: $section_id})
			SET s.title = $title,
			    s.level = $level,
			    s.order = $order
			MERGE (d)-[:HAS_SECTION {order: $order}]->(s)
		`, map[string]any{
			"doc_id":     doc.ID,
			"section_id": section.ID,
			"title":      section.Title,
			"level":      section.Level,
			"order":      section.Order,
		}); err != nil {
			return fmt.Errorf("upsert section %q: %w", section.Title, err)
		}
	}
	return nil
}

func syncTopics(ctx context.Context, tx neo4j.ManagedTransaction, doc Document) error {
	if _, err := tx.Run(ctx, `
		MATCH (d:Document {id: $id})-[r:HAS_TOPIC]->(:Topic)
		DELETE r
	`, map[string]any{"id": doc.ID}); err != nil {
		return fmt.Errorf("clear existing topics: %w", err)
	}

	for _, topic := range doc.Topics {
		if topic.Name == "" {
			continue
		}
		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $doc_id})
			MERGE (t:Topic {name: $name})
			MERGE (d)-[:HAS_TOPIC]->(t)
		`, map[string]any{"doc_id": doc.ID, "name": topic.Name}); err != nil {
			return fmt.Errorf("upsert topic %q: %w", topic.Name, err)
		}
	}
	return nil
}

func syncChunks(ctx context.Context, tx neo4j.ManagedTransaction, doc Document) error {
	if _, err := tx.Run(ctx, `
		MATCH (d:Document {id: $id})-[:HAS_CHUNK]->(c:Chunk)
		DETACH DELETE c
	`, map[string]any{"id": doc.ID}); err != nil {
		return fmt.Errorf("clear existing chunk nodes: %w", err)
	}

	for _, chunk := range doc.Chunks {
		params := map[string]any{
			"doc_id":     doc.ID,
			"chunk_id":   chunk.ID,
			"index":      chunk.Index,
			"text":       chunk.Text,
			"section_id": chunk.SectionID,
		}
		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $doc_id})
			MERGE (c:Chunk {id: $chunk_id})
			SET c.index = $index,
			    c.text = $text
			MERGE (d)-[:HAS_CHUNK {order: $index}]->(c)
		`, params); err != nil {
			return fmt.Errorf("upsert chunk %d: %w", chunk.Index, err)
		}

		if chunk.SectionID == "" {
			continue
		}
		if _, err := tx.Run(ctx, `
			MATCH (s:Section {id: $section_id}), (c:Chunk {id: $chunk_id})
			MERGE (s)-[:HAS_CHUNK {order: $index}]->(c)
		`, params); err != nil {
			return fmt.Errorf("link chunk %d to section: %w", chunk.Index, err)
		}
	}
	return nil
}
