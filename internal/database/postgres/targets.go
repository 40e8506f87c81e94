package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/pose-match/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// TargetRepository provides PostgreSQL-backed target storage with optional in-memory HNSW index
type TargetRepository struct {
	pool          *Pool
	hnswIndex     *database.HNSWIndex
	hnswEnabled   bool
	hnswIndexPath string
	hnswMu        sync.RWMutex
}

// NewTargetRepository creates a new PostgreSQL target repository
func NewTargetRepository(pool *Pool) *TargetRepository {
	return &TargetRepository{pool: pool}
}

const targetColumns = `id, name, players, target_index, image_path, pose_path, source_width, source_height, created_at`

const personColumns = `p.id, p.target_id, t.name, p.slot, p.keypoints, p.vector, p.score`

func scanTarget(scanner interface{ Scan(...any) error }) (database.StoredTarget, error) {
	var t database.StoredTarget
	err := scanner.Scan(&t.ID, &t.Name, &t.Players, &t.Index, &t.ImagePath, &t.PosePath,
		&t.SourceWidth, &t.SourceHeight, &t.CreatedAt)
	return t, err //nolint:wrapcheck // callers wrap
}

func scanPerson(scanner interface{ Scan(...any) error }, extraDest ...any) (database.TargetPerson, error) {
	var p database.TargetPerson
	var keypoints []byte
	var vec pgvector.Vector

	dest := append([]any{&p.ID, &p.TargetID, &p.TargetName, &p.Slot, &keypoints, &vec, &p.Score}, extraDest...)
	if err := scanner.Scan(dest...); err != nil {
		return p, fmt.Errorf("scan target person: %w", err)
	}
	if err := json.Unmarshal(keypoints, &p.Keypoints); err != nil {
		return p, fmt.Errorf("decode keypoints of person %d: %w", p.ID, err)
	}
	p.Vector = vec.Slice()
	return p, nil
}

// GetTarget retrieves a target with its people by name, returns nil if not found
func (r *TargetRepository) GetTarget(ctx context.Context, name string) (*database.StoredTarget, error) {
	t, err := scanTarget(r.pool.QueryRow(ctx, "SELECT "+targetColumns+" FROM targets WHERE name = $1", name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query target: %w", err)
	}

	people, err := r.peopleByTargets(ctx, []int64{t.ID})
	if err != nil {
		return nil, err
	}
	t.People = people[t.ID]
	return &t, nil
}

// ListTargets returns targets for a player count ordered by index; players <= 0 lists all
func (r *TargetRepository) ListTargets(ctx context.Context, players int) ([]database.StoredTarget, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+targetColumns+`
		FROM targets
		WHERE $1 <= 0 OR players = $1
		ORDER BY players, target_index
	`, players)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	var targets []database.StoredTarget
	var ids []int64
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		targets = append(targets, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate targets: %w", err)
	}

	people, err := r.peopleByTargets(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range targets {
		targets[i].People = people[targets[i].ID]
	}
	return targets, nil
}

func (r *TargetRepository) peopleByTargets(ctx context.Context, ids []int64) (map[int64][]database.TargetPerson, error) {
	out := make(map[int64][]database.TargetPerson, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+personColumns+`
		FROM target_people p
		JOIN targets t ON t.id = p.target_id
		WHERE p.target_id = ANY($1)
		ORDER BY p.target_id, p.slot
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query target people: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out[p.TargetID] = append(out[p.TargetID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate target people: %w", err)
	}
	return out, nil
}

// CountTargets returns the total number of targets stored
func (r *TargetRepository) CountTargets(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM targets").Scan(&count); err != nil {
		return 0, fmt.Errorf("count targets: %w", err)
	}
	return count, nil
}

// SaveTarget stores a target and its people, replacing any target with the same name.
func (r *TargetRepository) SaveTarget(ctx context.Context, t *database.StoredTarget) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	oldIDs, err := personIDsByName(ctx, tx, t.Name)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM targets WHERE name = $1", t.Name); err != nil {
		return fmt.Errorf("delete existing target: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO targets (name, players, target_index, image_path, pose_path, source_width, source_height)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, t.Name, t.Players, t.Index, t.ImagePath, t.PosePath, t.SourceWidth, t.SourceHeight).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert target %s: %w", t.Name, err)
	}

	for i := range t.People {
		p := &t.People[i]
		keypoints, err := json.Marshal(p.Keypoints)
		if err != nil {
			return fmt.Errorf("encode keypoints of slot %d: %w", p.Slot, err)
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO target_people (target_id, slot, keypoints, vector, score)
			VALUES ($1, $2, $3, $4::vector, $5)
			RETURNING id
		`, t.ID, p.Slot, keypoints, pgvector.NewVector(p.Vector), p.Score).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("insert person %d of %s: %w", p.Slot, t.Name, err)
		}
		p.TargetID = t.ID
		p.TargetName = t.Name
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.updateHNSW(oldIDs, t.People)
	return nil
}

// DeleteTarget removes a target and its people
func (r *TargetRepository) DeleteTarget(ctx context.Context, name string) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	oldIDs, err := personIDsByName(ctx, tx, name)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM targets WHERE name = $1", name); err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.updateHNSW(oldIDs, nil)
	return nil
}

func personIDsByName(ctx context.Context, tx *sql.Tx, name string) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT p.id FROM target_people p JOIN targets t ON t.id = p.target_id WHERE t.name = $1
	`, name)
	if err != nil {
		return nil, fmt.Errorf("query person ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan person id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate person ids: %w", err)
	}
	return ids, nil
}

// updateHNSW removes old person IDs and adds new people to the HNSW index.
func (r *TargetRepository) updateHNSW(oldIDs []int64, people []database.TargetPerson) {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if !r.hnswEnabled || r.hnswIndex == nil {
		return
	}
	for _, id := range oldIDs {
		r.hnswIndex.Delete(id)
	}
	for i := range people {
		p := people[i]
		r.hnswIndex.Add(&p)
	}
}

// FindSimilarPeople finds target people with similar pose vectors.
// Uses in-memory HNSW index if enabled, otherwise falls back to PostgreSQL.
func (r *TargetRepository) FindSimilarPeople(
	ctx context.Context, vector []float32, limit int,
) ([]database.TargetPerson, []float64, error) {
	r.hnswMu.RLock()
	idx := r.hnswIndex
	enabled := r.hnswEnabled && idx != nil
	r.hnswMu.RUnlock()

	if enabled {
		people, distances, err := idx.Search(vector, limit)
		if err != nil {
			return nil, nil, fmt.Errorf("HNSW search: %w", err)
		}
		return people, distances, nil
	}
	return r.findSimilarPostgres(ctx, vector, limit)
}

func (r *TargetRepository) findSimilarPostgres(
	ctx context.Context, vector []float32, limit int,
) ([]database.TargetPerson, []float64, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", database.HNSWEfSearch)); err != nil {
		return nil, nil, fmt.Errorf("set ef_search: %w", err)
	}

	// pgvector yields NaN for a zero vector; the live scorer treats it as
	// orthogonal (distance 1).
	rows, err := tx.QueryContext(ctx, `
		SELECT `+personColumns+`, COALESCE(NULLIF(p.vector <=> $1::vector, 'NaN'::float8), 1) AS distance
		FROM target_people p
		JOIN targets t ON t.id = p.target_id
		ORDER BY p.vector <=> $1::vector
		LIMIT $2
	`, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar people: %w", err)
	}
	defer rows.Close()

	var people []database.TargetPerson
	var distances []float64
	for rows.Next() {
		var distance float64
		p, err := scanPerson(rows, &distance)
		if err != nil {
			return nil, nil, err
		}
		people = append(people, p)
		distances = append(distances, distance)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate similar people: %w", err)
	}
	return people, distances, nil
}

func (r *TargetRepository) allPeople(ctx context.Context) ([]database.TargetPerson, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+personColumns+`
		FROM target_people p
		JOIN targets t ON t.id = p.target_id
		ORDER BY p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query all target people: %w", err)
	}
	defer rows.Close()

	var people []database.TargetPerson
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate target people: %w", err)
	}
	return people, nil
}

// tryLoadIndex loads the index from disk when its metadata matches the database.
func (r *TargetRepository) tryLoadIndex(indexPath string, count, maxID int64) bool {
	metadata, err := database.LoadHNSWMetadata(indexPath)
	if err != nil {
		fmt.Printf("Target index: metadata file error: %v (will rebuild)\n", err)
		return false
	}
	if metadata.PersonCount != count || metadata.MaxPersonID != maxID {
		fmt.Printf("Target index: stale (db: count=%d max_id=%d, cached: count=%d max_id=%d) (will rebuild)\n",
			count, maxID, metadata.PersonCount, metadata.MaxPersonID)
		return false
	}

	idx := database.NewHNSWIndex()
	if err := idx.Load(indexPath); err != nil {
		fmt.Printf("Target index: failed to load: %v (will rebuild)\n", err)
		return false
	}
	if idx.IsEmpty() {
		fmt.Printf("Target index: loaded graph is empty (will rebuild)\n")
		return false
	}
	r.hnswIndex = idx
	fmt.Printf("Target index: loaded from disk (fresh)\n")
	return true
}

// EnableHNSW loads or builds an in-memory HNSW index over target people.
// If indexPath is provided, it will try to load from disk first and save after building.
func (r *TargetRepository) EnableHNSW(ctx context.Context, indexPath string) error {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()

	r.hnswIndexPath = indexPath

	var count, maxID int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*), COALESCE(MAX(id), 0) FROM target_people").Scan(&count, &maxID)
	if err != nil {
		return fmt.Errorf("failed to get target people stats: %w", err)
	}

	if indexPath != "" && r.tryLoadIndex(indexPath, count, maxID) {
		r.hnswEnabled = true
		return nil
	}

	people, err := r.allPeople(ctx)
	if err != nil {
		return fmt.Errorf("failed to load target people: %w", err)
	}

	r.hnswIndex = database.NewHNSWIndex()
	r.hnswIndex.Build(people)

	if indexPath != "" && len(people) > 0 {
		metadata := database.HNSWIndexMetadata{PersonCount: count, MaxPersonID: maxID, BuildTime: time.Now()}
		if err := r.hnswIndex.Save(indexPath, metadata); err != nil {
			fmt.Printf("Warning: failed to save HNSW index to disk: %v\n", err)
		}
	}

	r.hnswEnabled = true
	return nil
}

// DisableHNSW disables the in-memory HNSW index, falling back to PostgreSQL queries.
func (r *TargetRepository) DisableHNSW() {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()
	r.hnswEnabled = false
	r.hnswIndex = nil
}

// IsHNSWEnabled returns whether the in-memory HNSW index is enabled.
func (r *TargetRepository) IsHNSWEnabled() bool {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	return r.hnswEnabled && r.hnswIndex != nil
}

// HNSWCount returns the number of people in the HNSW index.
func (r *TargetRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Count()
}

// RebuildHNSW rebuilds the HNSW index from PostgreSQL data.
func (r *TargetRepository) RebuildHNSW(ctx context.Context) error {
	r.hnswMu.RLock()
	indexPath := r.hnswIndexPath
	r.hnswMu.RUnlock()
	return r.EnableHNSW(ctx, indexPath)
}

// SaveHNSWIndex saves the current HNSW index to disk (if path configured).
func (r *TargetRepository) SaveHNSWIndex() error {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndexPath == "" || r.hnswIndex == nil {
		return nil
	}

	var count, maxID int64
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*), COALESCE(MAX(id), 0) FROM target_people").Scan(&count, &maxID)
	if err != nil {
		return fmt.Errorf("failed to get target people stats: %w", err)
	}

	metadata := database.HNSWIndexMetadata{PersonCount: count, MaxPersonID: maxID, BuildTime: time.Now()}
	if err := r.hnswIndex.Save(r.hnswIndexPath, metadata); err != nil {
		return fmt.Errorf("saving target index: %w", err)
	}
	return nil
}
