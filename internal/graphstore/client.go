// Package graphstore persists the document graph in Neo4j: Document and
// Chunk nodes, CONTAINS edges, per-chunk embeddings and a vector index.
package graphstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds Neo4j connection configuration.
type Config struct {
	URI      string
	User     string
	Password string
	Database string // empty for the server default

	// EmbeddingDimension is the vector index dimension; it must match the
	// embedding provider's output.
	EmbeddingDimension int
}

// Store wraps the Neo4j driver with the graph operations the pipeline and
// assistants need.
type Store struct {
	driver    neo4j.DriverWithContext
	database  string
	dimension int
	log       *slog.Logger
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = 50
		c.SocketConnectTimeout = 10 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("init neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	log.Info("neo4j connection established", "uri", cfg.URI, "database", cfg.Database)
	return &Store{
		driver:    driver,
		database:  cfg.Database,
		dimension: cfg.EmbeddingDimension,
		log:       log,
	}, nil
}

// Close shuts down the driver and its connection pool.
func (s *Store) Close(ctx context.Context) error {
	s.log.Info("closing neo4j connection")
	return s.driver.Close(ctx)
}

// Ping reports whether the database is reachable. Used by the health
// endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *Store) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
}

func (s *Store) readSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
}

// EnsureSchema creates uniqueness constraints and the chunk vector index.
// Index options cannot be parameterized, so the dimension is interpolated.
func (s *Store) EnsureSchema(ctx context.Context) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`,
		`CREATE CONSTRAINT chunk_id_unique IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE`,
		fmt.Sprintf(`CREATE VECTOR INDEX chunk_embedding_index IF NOT EXISTS
FOR (c:Chunk) ON (c.embedding)
OPTIONS {indexConfig: {`+"`vector.dimensions`"+`: %d, `+"`vector.similarity_function`"+`: 'cosine'}}`, s.dimension),
	}
	for _, q := range stmts {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	s.log.Info("graph schema ensured", "vector_dimensions", s.dimension)
	return nil
}
