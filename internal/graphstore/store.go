package graphstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Document is a graph node for one ingested file.
type Document struct {
	ID      string
	Title   string
	Preview string // first part of the content, for browsing
}

// Chunk is a graph node for one text chunk, linked to its Document by a
// CONTAINS edge.
type Chunk struct {
	ID        string
	Index     int
	Content   string
	Embedding []float32
}

// ScoredChunk is a similarity search hit.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// DocumentID derives the stable document id from a filename: the base name
// without its extension. Re-ingesting the same filename targets the same
// Document node.
func DocumentID(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ChunkID builds the id for the chunk at index within a document.
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s_c%d", docID, index)
}

// previewLen caps the content preview stored on Document nodes.
const previewLen = 500

// Preview returns the document preview for content.
func Preview(content string) string {
	if len(content) <= previewLen {
		return content
	}
	return content[:previewLen]
}

// UpsertDocument creates or updates the Document node. MERGE by id keeps
// re-ingestion idempotent.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (d:Document {id: $id})
SET d.title = $title, d.content = $preview
`, map[string]any{"id": doc.ID, "title": doc.Title, "preview": doc.Preview})
		if err != nil {
			return nil, err
		}
		return nil, consumeErr(ctx, res)
	})
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// UpsertChunks writes a batch of chunks with their embeddings and links each
// to its document. Existing chunks with the same id get their content and
// embedding overwritten, never duplicated.
func (s *Store) UpsertChunks(ctx context.Context, docID string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, map[string]any{
			"id":        c.ID,
			"index":     c.Index,
			"content":   c.Content,
			"embedding": toFloat64(c.Embedding),
		})
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $chunks AS row
MERGE (c:Chunk {id: row.id})
SET c.index = row.index, c.content = row.content, c.embedding = row.embedding
WITH c
MATCH (d:Document {id: $doc_id})
MERGE (d)-[:CONTAINS]->(c)
`, map[string]any{"chunks": rows, "doc_id": docID})
		if err != nil {
			return nil, err
		}
		return nil, consumeErr(ctx, res)
	})
	if err != nil {
		return fmt.Errorf("upsert %d chunks for %s: %w", len(chunks), docID, err)
	}
	return nil
}

// SimilaritySearch returns the topK chunks nearest to the query vector using
// the chunk vector index.
func (s *Store) SimilaritySearch(ctx context.Context, vector []float32, topK int) ([]ScoredChunk, error) {
	if topK <= 0 {
		topK = 5
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
CALL db.index.vector.queryNodes('chunk_embedding_index', $top_k, $vector)
YIELD node, score
RETURN node.id AS id, node.index AS index, node.content AS content, score
`, map[string]any{"top_k": topK, "vector": toFloat64(vector)})
		if err != nil {
			return nil, err
		}
		var hits []ScoredChunk
		for res.Next(ctx) {
			rec := res.Record()
			hits = append(hits, ScoredChunk{
				Chunk: Chunk{
					ID:      stringValue(rec, "id"),
					Index:   intValue(rec, "index"),
					Content: stringValue(rec, "content"),
				},
				Score: floatValue(rec, "score"),
			})
		}
		return hits, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return result.([]ScoredChunk), nil
}

// ChunksMissingEmbedding returns chunks whose embedding property is unset,
// up to limit. Used by the backfill command.
func (s *Store) ChunksMissingEmbedding(ctx context.Context, limit int) ([]Chunk, error) {
	if limit <= 0 {
		limit = 500
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Chunk)
WHERE c.embedding IS NULL
RETURN c.id AS id, c.index AS index, c.content AS content
LIMIT $limit
`, map[string]any{"limit": limit})
		if err != nil {
			return nil, err
		}
		var chunks []Chunk
		for res.Next(ctx) {
			rec := res.Record()
			chunks = append(chunks, Chunk{
				ID:      stringValue(rec, "id"),
				Index:   intValue(rec, "index"),
				Content: stringValue(rec, "content"),
			})
		}
		return chunks, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query chunks missing embedding: %w", err)
	}
	return result.([]Chunk), nil
}

// SetChunkEmbeddings writes embeddings onto existing chunks by id.
func (s *Store) SetChunkEmbeddings(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, map[string]any{"id": c.ID, "embedding": toFloat64(c.Embedding)})
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $rows AS row
MATCH (c:Chunk {id: row.id})
SET c.embedding = row.embedding
`, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		return nil, consumeErr(ctx, res)
	})
	if err != nil {
		return fmt.Errorf("set %d chunk embeddings: %w", len(chunks), err)
	}
	return nil
}

// ChunkCount returns how many chunks a document contains.
func (s *Store) ChunkCount(ctx context.Context, docID string) (int, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (:Document {id: $doc_id})-[:CONTAINS]->(c:Chunk)
RETURN count(c) AS n
`, map[string]any{"doc_id": docID})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		return intValue(rec, "n"), nil
	})
	if err != nil {
		return 0, fmt.Errorf("count chunks for %s: %w", docID, err)
	}
	return result.(int), nil
}

// RunQuery executes an arbitrary read query and returns rows as maps. Used
// by the graph-QA assistant with LLM-generated Cypher.
func (s *Store) RunQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		var rows []map[string]any
		for res.Next(ctx) {
			rec := res.Record()
			row := make(map[string]any, len(rec.Keys))
			for _, key := range rec.Keys {
				val, _ := rec.Get(key)
				row[key] = val
			}
			rows = append(rows, row)
		}
		return rows, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	return result.([]map[string]any), nil
}

func consumeErr(ctx context.Context, res neo4j.ResultWithContext) error {
	_, err := res.Consume(ctx)
	return err
}

func toFloat64(v []float32) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func stringValue(rec *neo4j.Record, key string) string {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return ""
	}
	s, _ := val.(string)
	return s
}

func intValue(rec *neo4j.Record, key string) int {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return 0
	}
	n, _ := val.(int64)
	return int(n)
}

func floatValue(rec *neo4j.Record, key string) float64 {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return 0
	}
	f, _ := val.(float64)
	return f
}
