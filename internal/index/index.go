// Package index persists case chunk embeddings in SQLite and serves
// similarity queries over them. Builds are staged: a new generation of
// chunks is written inside one transaction and only becomes visible when
// the collection pointer flips to it, so readers never observe a partial
// build and a failed rebuild leaves the previous generation untouched.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"accidentadvisor/internal/embedding"
	"accidentadvisor/internal/logging"
)

// ErrCollectionNotFound reports a query against a collection that has never
// been built. Callers degrade to keyword matching rather than failing.
var ErrCollectionNotFound = errors.New("collection not found")

// Document is one chunk ready for indexing, carrying the source metadata
// that later surfaces in retrieval hits.
type Document struct {
	CaseID     string
	Seq        int
	Offset     int
	Text       string
	FaultRatio string
}

// Hit is one similarity search result.
type Hit struct {
	CaseID     string
	Seq        int
	Text       string
	FaultRatio string
	Similarity float64
}

// CollectionInfo describes a built collection.
type CollectionInfo struct {
	Name       string
	Generation int64
	ChunkCount int
	Engine     string
	Dimensions int
}

// Index is the persistent embedding index. Safe for concurrent use.
type Index struct {
	db        *sql.DB
	mu        sync.RWMutex
	dbPath    string
	engine    embedding.Engine
	vectorExt bool // sqlite-vec loaded into the driver
}

// embedBatchSize bounds how many chunks go to the embedding API per call.
const embedBatchSize = 32

// Open initializes the index database at the given path.
func Open(path string, engine embedding.Engine) (*Index, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "Open")
	defer timer.Stop()

	logging.Index("Opening index at %s", path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.IndexDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.IndexDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.IndexDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	idx := &Index{db: db, dbPath: path, engine: engine}
	if err := idx.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	idx.detectVecExtension()
	if idx.vectorExt {
		logging.Index("sqlite-vec extension detected")
	} else {
		logging.IndexDebug("sqlite-vec extension not available; using in-process cosine scan")
	}

	return idx, nil
}

// initialize creates the schema.
func (x *Index) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		active_generation INTEGER,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS generations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'staging',
		engine TEXT,
		dimensions INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_generations_collection ON generations(collection);

	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		generation INTEGER NOT NULL,
		case_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		chunk_offset INTEGER NOT NULL,
		content TEXT NOT NULL,
		fault_ratio TEXT,
		embedding TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_generation ON chunks(generation);
	CREATE INDEX IF NOT EXISTS idx_chunks_case ON chunks(case_id);
	`
	if _, err := x.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create index schema: %w", err)
	}
	return nil
}

// detectVecExtension probes for the sqlite-vec virtual table module.
func (x *Index) detectVecExtension() {
	if _, err := x.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		x.vectorExt = true
		_, _ = x.db.Exec("DROP TABLE IF EXISTS vec_probe")
	}
}

// Build embeds the documents and installs them as the new active generation
// of the collection. The previous generation stays visible until the new one
// commits; on any failure the collection is left exactly as it was.
// Rebuilding with identical input is idempotent from the reader's view.
func (x *Index) Build(ctx context.Context, collection string, docs []Document) error {
	timer := logging.StartTimer(logging.CategoryIndex, "Build")
	defer timer.StopWithInfo("collection=%s chunks=%d", collection, len(docs))

	if collection == "" {
		return fmt.Errorf("collection name is required")
	}

	logging.Index("Building collection %q with %d chunks", collection, len(docs))

	// Embed everything up front, outside the transaction, so an embedding
	// failure never touches the database.
	vectors := make([][]float32, 0, len(docs))
	for i := 0; i < len(docs); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		texts := make([]string, end-i)
		for j := i; j < end; j++ {
			texts[j-i] = docs[j].Text
		}
		batch, err := x.engine.EmbedBatch(ctx, texts)
		if err != nil {
			logging.IndexError("Batch embed failed at chunk %d: %v", i, err)
			return fmt.Errorf("failed to embed chunk batch starting at %d: %w", i, err)
		}
		if len(batch) != len(texts) {
			return fmt.Errorf("embedding engine returned %d vectors for %d texts", len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	tx, err := x.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin build transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO generations (collection, state, engine, dimensions) VALUES (?, 'staging', ?, ?)",
		collection, x.engine.Name(), x.engine.Dimensions(),
	)
	if err != nil {
		return fmt.Errorf("failed to create generation: %w", err)
	}
	gen, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read generation id: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO chunks (generation, case_id, seq, chunk_offset, content, fault_ratio, embedding) VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, doc := range docs {
		embJSON, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("failed to serialize embedding %d: %w", i, err)
		}
		if _, err := stmt.Exec(gen, doc.CaseID, doc.Seq, doc.Offset, doc.Text, doc.FaultRatio, string(embJSON)); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}

	// Flip the collection pointer. This is the only point where the new
	// generation becomes visible.
	if _, err := tx.Exec(
		"UPDATE generations SET state = 'retired' WHERE collection = ? AND state = 'active'", collection,
	); err != nil {
		return fmt.Errorf("failed to retire previous generation: %w", err)
	}
	if _, err := tx.Exec(
		"UPDATE generations SET state = 'active' WHERE id = ?", gen,
	); err != nil {
		return fmt.Errorf("failed to activate generation: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO collections (name, active_generation, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET active_generation = excluded.active_generation, updated_at = CURRENT_TIMESTAMP`,
		collection, gen,
	); err != nil {
		return fmt.Errorf("failed to update collection pointer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit build: %w", err)
	}

	// Best-effort cleanup of retired generations. The active data is already
	// committed, so failures here only leave garbage rows.
	if err := x.pruneRetired(collection); err != nil {
		logging.Get(logging.CategoryIndex).Warn("Failed to prune retired generations: %v", err)
	}

	logging.Index("Collection %q now at generation %d (%d chunks)", collection, gen, len(docs))
	return nil
}

// pruneRetired deletes chunks and rows of retired generations.
func (x *Index) pruneRetired(collection string) error {
	if _, err := x.db.Exec(
		"DELETE FROM chunks WHERE generation IN (SELECT id FROM generations WHERE collection = ? AND state = 'retired')",
		collection,
	); err != nil {
		return err
	}
	_, err := x.db.Exec("DELETE FROM generations WHERE collection = ? AND state = 'retired'", collection)
	return err
}

// Load verifies the collection exists and returns its metadata. Returns
// ErrCollectionNotFound when the collection was never built.
func (x *Index) Load(collection string) (*CollectionInfo, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.loadLocked(collection)
}

func (x *Index) loadLocked(collection string) (*CollectionInfo, error) {
	var gen sql.NullInt64
	err := x.db.QueryRow("SELECT active_generation FROM collections WHERE name = ?", collection).Scan(&gen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %q: %w", collection, err)
	}
	if !gen.Valid {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	info := &CollectionInfo{Name: collection, Generation: gen.Int64}
	err = x.db.QueryRow("SELECT COALESCE(engine, ''), COALESCE(dimensions, 0) FROM generations WHERE id = ?", gen.Int64).
		Scan(&info.Engine, &info.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to load generation %d: %w", gen.Int64, err)
	}
	if err := x.db.QueryRow("SELECT COUNT(*) FROM chunks WHERE generation = ?", gen.Int64).Scan(&info.ChunkCount); err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	return info, nil
}

// Query embeds the question and returns the k most similar chunks from the
// collection's active generation, ranked by cosine similarity. An empty
// collection yields no hits and no error.
func (x *Index) Query(ctx context.Context, collection, question string, k int) ([]Hit, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "Query")
	defer timer.Stop()

	x.mu.RLock()
	defer x.mu.RUnlock()

	info, err := x.loadLocked(collection)
	if err != nil {
		return nil, err
	}
	if info.ChunkCount == 0 {
		logging.IndexDebug("Collection %q is empty", collection)
		return nil, nil
	}

	queryVec, err := x.engine.Embed(ctx, question)
	if err != nil {
		logging.IndexError("Query embed failed: %v", err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := x.db.Query(
		"SELECT case_id, seq, content, COALESCE(fault_ratio, ''), embedding FROM chunks WHERE generation = ? ORDER BY id",
		info.Generation,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	var vectors [][]float32
	for rows.Next() {
		var h Hit
		var embJSON string
		if err := rows.Scan(&h.CaseID, &h.Seq, &h.Text, &h.FaultRatio, &embJSON); err != nil {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(embJSON), &vec); err != nil {
			continue
		}
		hits = append(hits, h)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan chunks: %w", err)
	}

	ranked, err := embedding.FindTopK(queryVec, vectors, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	results := make([]Hit, 0, len(ranked))
	for _, r := range ranked {
		hit := hits[r.Index]
		hit.Similarity = r.Similarity
		results = append(results, hit)
	}

	logging.IndexDebug("Query returned %d hits from collection %q (k=%d)", len(results), collection, k)
	return results, nil
}

// Stats returns per-collection chunk counts for diagnostics.
func (x *Index) Stats() (map[string]int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	rows, err := x.db.Query(`
		SELECT c.name, COUNT(ch.id)
		FROM collections c
		LEFT JOIN chunks ch ON ch.generation = c.active_generation
		WHERE c.active_generation IS NOT NULL
		GROUP BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to read index stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			continue
		}
		stats[name] = count
	}
	return stats, rows.Err()
}

// VectorExtensionAvailable reports whether sqlite-vec was loaded.
func (x *Index) VectorExtensionAvailable() bool {
	return x.vectorExt
}

// Close closes the database connection.
func (x *Index) Close() error {
	logging.Index("Closing index database")
	return x.db.Close()
}
