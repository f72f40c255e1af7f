// Package storage provides vector storage implementations for document segments.
package storage

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"

	"docchat/internal/models"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // Import sqlite3 driver
)

func init() {
	sqlite_vec.Auto()
}

// SQLiteVectorStore implements a SQLite-based vector storage system using
// sqlite-vec. Segments are partitioned by namespace via a vec0 partition
// key so KNN search never crosses document boundaries.
type SQLiteVectorStore struct {
	db              *sql.DB
	embeddingLength int
}

// NewSQLiteVectorStore creates a new SQLite-based vector store with sqlite-vec support
func NewSQLiteVectorStore(dsn string) (*SQLiteVectorStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteVectorStore{db: db}

	if err := store.initDB(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initDB creates the metadata table. The vec0 virtual table is created
// lazily on first insert, when the embedding dimension is known.
func (s *SQLiteVectorStore) initDB() error {
	metadataQuery := `
	CREATE TABLE IF NOT EXISTS segments (
		id TEXT PRIMARY KEY,
		namespace TEXT NOT NULL,
		idx INTEGER NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_segments_namespace ON segments(namespace);
	`

	if _, err := s.db.Exec(metadataQuery); err != nil {
		return fmt.Errorf("failed to create segments table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteVectorStore) Close() error {
	return s.db.Close()
}

// serializeFloat32Vector converts a float32 slice to the byte format expected by sqlite-vec
func serializeFloat32Vector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(v))
	}
	return buf
}

// AddSegments stores all segments and vectors under the namespace in a
// single transaction, so a namespace becomes queryable only as a whole.
func (s *SQLiteVectorStore) AddSegments(namespace string, segs []models.Segment, vectors [][]float32) error {
	if len(segs) != len(vectors) {
		return fmt.Errorf("segment/vector count mismatch: %d vs %d", len(segs), len(vectors))
	}
	if len(segs) == 0 {
		return nil
	}

	if err := s.ensureVecTableExists(len(vectors[0])); err != nil {
		return fmt.Errorf("failed to ensure vec table exists: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	metaStmt, err := tx.Prepare(`INSERT INTO segments (id, namespace, idx, content, metadata) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare segment insert: %w", err)
	}
	defer func() { _ = metaStmt.Close() }()

	vecStmt, err := tx.Prepare(`INSERT INTO vec_segments (id, namespace, embedding) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare vector insert: %w", err)
	}
	defer func() { _ = vecStmt.Close() }()

	for i := range segs {
		if segs[i].ID == "" {
			segs[i].ID = uuid.New().String()
		}
		segs[i].Namespace = namespace

		metadataJSON, err := marshalMetadata(segs[i].Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode segment metadata: %w", err)
		}
		if _, err := metaStmt.Exec(segs[i].ID, namespace, segs[i].Index, segs[i].Content, metadataJSON); err != nil {
			return fmt.Errorf("failed to insert segment metadata: %w", err)
		}

		if len(vectors[i]) != s.embeddingLength {
			return fmt.Errorf("embedding length %d does not match store dimension %d", len(vectors[i]), s.embeddingLength)
		}
		if _, err := vecStmt.Exec(segs[i].ID, namespace, serializeFloat32Vector(vectors[i])); err != nil {
			return fmt.Errorf("failed to insert segment vector: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ensureVecTableExists creates the vec_segments table if it doesn't exist
func (s *SQLiteVectorStore) ensureVecTableExists(embeddingLen int) error {
	if s.embeddingLength != 0 && s.embeddingLength != embeddingLen {
		return fmt.Errorf("cannot change embedding length from %d to %d", s.embeddingLength, embeddingLen)
	}

	var tableExists int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='vec_segments'").Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("failed to check vec_segments existence: %w", err)
	}

	if tableExists == 0 {
		vecQuery := fmt.Sprintf(`
			CREATE VIRTUAL TABLE vec_segments USING vec0(
				id TEXT PRIMARY KEY,
				namespace TEXT PARTITION KEY,
				embedding FLOAT[%d]
			)
		`, embeddingLen)

		if _, err := s.db.Exec(vecQuery); err != nil {
			return fmt.Errorf("failed to create vec_segments table: %w", err)
		}
	}

	s.embeddingLength = embeddingLen
	return nil
}

// SearchNamespace performs KNN vector search using sqlite-vec, scoped to
// one namespace via the partition key. Results come back ordered by
// distance, nearest first. An unknown namespace yields an empty slice.
func (s *SQLiteVectorStore) SearchNamespace(namespace string, vector []float32, topK int) ([]models.Segment, error) {
	var tableExists int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='vec_segments'").Scan(&tableExists)
	if err != nil {
		return nil, fmt.Errorf("failed to check vec_segments existence: %w", err)
	}
	if tableExists == 0 {
		// Nothing ingested yet anywhere.
		return []models.Segment{}, nil
	}

	// Note: sqlite-vec requires the k parameter to be passed as part of
	// the MATCH expression.
	query := `
		SELECT
			seg.id,
			seg.idx,
			seg.content,
			seg.metadata,
			v.distance
		FROM vec_segments v
		JOIN segments seg ON seg.id = v.id
		WHERE v.namespace = ? AND v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`

	rows, err := s.db.Query(query, namespace, serializeFloat32Vector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to perform vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []models.Segment{}
	for rows.Next() {
		var id, content string
		var idx int
		var metadataJSON sql.NullString
		var distance float32

		if err := rows.Scan(&id, &idx, &content, &metadataJSON, &distance); err != nil {
			log.Printf("Error scanning row: %v", err)
			continue
		}

		metadata, err := unmarshalMetadata(metadataJSON)
		if err != nil {
			log.Printf("Error decoding segment metadata: %v", err)
			continue
		}
		metadata["distance"] = distance

		results = append(results, models.Segment{
			ID:        id,
			Namespace: namespace,
			Index:     idx,
			Content:   content,
			Metadata:  metadata,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

// DeleteNamespace removes every segment belonging to the namespace from
// both tables. vec0 rows are deleted by primary key, collected first
// from the metadata table.
func (s *SQLiteVectorStore) DeleteNamespace(namespace string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(`SELECT id FROM segments WHERE namespace = ?`, namespace)
	if err != nil {
		return 0, fmt.Errorf("failed to list namespace segments: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan segment id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("error iterating segment ids: %w", err)
	}
	_ = rows.Close()

	if len(ids) == 0 {
		return 0, nil
	}

	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM vec_segments WHERE id = ?`, id); err != nil {
			return 0, fmt.Errorf("failed to delete segment vector: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM segments WHERE namespace = ?`, namespace); err != nil {
		return 0, fmt.Errorf("failed to delete segment metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(ids), nil
}

func marshalMetadata(metadata map[string]interface{}) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(encoded), Valid: true}, nil
}

func unmarshalMetadata(metadataJSON sql.NullString) (map[string]interface{}, error) {
	metadata := map[string]interface{}{}
	if !metadataJSON.Valid {
		return metadata, nil
	}
	if err := json.Unmarshal([]byte(metadataJSON.String), &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}
