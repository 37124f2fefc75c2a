// Package qdrant is a rag.VectorStore backed by a Qdrant instance over gRPC.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/civic-go/internal/rag"
	"github.com/54b3r/civic-go/internal/vectorstore"
)

// Payload keys that are not part of the flattened metadata.
const (
	payloadID      = "id"
	payloadContent = "content"
)

// maxTitleChunks bounds the ids returned for one title.
const maxTitleChunks = 10000

// Config holds connection parameters for a Qdrant vector store instance.
type Config struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name (default: civic).
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Store implements rag.VectorStore backed by Qdrant.
type Store struct {
	client *qdrant.Client
	cfg    *Config
}

// New creates a Store, ensuring the target collection exists.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "civic"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	s := &Store{client: client, cfg: cfg}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}
	return nil
}

// PointID maps a chunk id onto the deterministic UUID Qdrant requires.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

// Upsert implements rag.VectorStore.
func (s *Store) Upsert(ctx context.Context, chunks []rag.Chunk, embeddings [][]float32) error {
	if err := vectorstore.CheckBatch(chunks, embeddings, int(s.cfg.VectorSize)); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, ch := range chunks {
		payload := map[string]any{
			payloadID:      ch.ID,
			payloadContent: ch.Content,
		}
		for k, v := range ch.Metadata.Fields() {
			payload[k] = v
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(ch.ID)),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Search implements rag.VectorStore. Qdrant returns cosine similarity,
// which is converted to distance.
func (s *Store) Search(ctx context.Context, query []float32, topK int) ([]rag.SearchResult, error) {
	if topK <= 0 {
		return []rag.SearchResult{}, nil
	}
	limit := uint64(topK)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	results := make([]rag.SearchResult, 0, len(points))
	for _, p := range points {
		fields := make(map[string]string, len(p.Payload))
		var res rag.SearchResult
		for k, v := range p.Payload {
			switch k {
			case payloadID:
				res.ID = v.GetStringValue()
			case payloadContent:
				res.Content = v.GetStringValue()
			default:
				fields[k] = v.GetStringValue()
			}
		}
		res.Metadata = rag.MetadataFromFields(fields)
		res.Distance = rag.Distance(float64(p.Score))
		results = append(results, res)
	}
	return results, nil
}

// Count implements rag.VectorStore.
func (s *Store) Count(ctx context.Context) (int, error) {
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil
}

// Delete implements rag.VectorStore.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(PointID(id)))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}
	return nil
}

// IDsByTitle implements rag.VectorStore by scrolling points whose title
// payload matches. At most maxTitleChunks ids are returned.
func (s *Store) IDsByTitle(ctx context.Context, title string) ([]string, error) {
	limit := uint32(maxTitleChunks)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.cfg.Collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(rag.FieldTitle, title)},
		},
		Limit:       &limit,
		WithPayload: qdrant.NewWithPayloadInclude(payloadID),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: scroll %q: %w", title, err)
	}
	ids := make([]string, 0, len(points))
	for _, p := range points {
		if v, ok := p.Payload[payloadID]; ok {
			ids = append(ids, v.GetStringValue())
		}
	}
	return ids, nil
}

// Ping checks that the Qdrant server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}
