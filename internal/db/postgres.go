package db

import (
	"context"
	_ "embed"
	"log"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/rawblock/shapley-engine/internal/shapley"
	"github.com/rawblock/shapley-engine/pkg/models"
)

// schemaSQL is compiled into the binary at build time.
// This ensures schema init works inside the Docker runtime image which
// does not copy internal/db/schema.sql into the final stage.
//
//go:embed schema.sql
var schemaSQL string

// ErrLesionNotFound is returned when a game has no recorded outcome for a lesion.
var ErrLesionNotFound = errors.New("lesion outcome not recorded")

// PostgresStore keeps precomputed lesion outcomes: for each game, the
// measured performance with a given set of players lesioned.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// GameSummary describes one stored lesion table.
type GameSummary struct {
	GameID    string    `json:"gameId"`
	Lesions   int       `json:"lesions"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to database")
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping failed")
	}

	log.Println("Successfully connected to PostgreSQL lesion store")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return errors.Wrap(err, "failed to execute schema migrations")
	}

	log.Println("Lesion store schema initialized")
	return nil
}

// SaveLesionValues upserts a batch of lesion outcomes for a game in one
// transaction.
func (s *PostgresStore) SaveLesionValues(ctx context.Context, gameID string, values []models.LesionValue) error {
	if gameID == "" {
		return errors.New("game id is required")
	}
	keys := make([][]string, len(values))
	for i, v := range values {
		key, err := NormalizeLesion(v.Lesioned)
		if err != nil {
			return errors.Wrapf(err, "value %d", i)
		}
		keys[i] = key
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	upsertSQL := `
		INSERT INTO lesion_values (game_id, lesioned, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (game_id, lesioned) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW();
	`
	batch := &pgx.Batch{}
	for i, v := range values {
		batch.Queue(upsertSQL, gameID, keys[i], v.Value)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "failed to upsert lesion_values")
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Printf("[LesionStore] Stored %d lesion outcomes for game %s", len(values), gameID)
	return nil
}

// LookupLesion returns the recorded outcome of lesioning exactly the given
// players. Order of the input does not matter.
func (s *PostgresStore) LookupLesion(ctx context.Context, gameID string, lesioned []string) (float64, error) {
	key, err := NormalizeLesion(lesioned)
	if err != nil {
		return 0, err
	}

	var v float64
	err = s.pool.QueryRow(ctx,
		`SELECT value FROM lesion_values WHERE game_id = $1 AND lesioned = $2`,
		gameID, key,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errors.Wrapf(ErrLesionNotFound, "game %s, lesioned %v", gameID, key)
	}
	if err != nil {
		return 0, errors.Wrap(err, "lesion lookup")
	}
	return v, nil
}

// ListGames returns every game that has at least one stored outcome.
func (s *PostgresStore) ListGames(ctx context.Context) ([]GameSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT game_id, COUNT(*), MAX(updated_at)
		FROM lesion_values
		GROUP BY game_id
		ORDER BY game_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := []GameSummary{}
	for rows.Next() {
		var g GameSummary
		if err := rows.Scan(&g.GameID, &g.Lesions, &g.UpdatedAt); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// LesionSource resolves a lesion to its recorded outcome.
type LesionSource interface {
	LookupLesion(ctx context.Context, gameID string, lesioned []string) (float64, error)
}

// LesionObjective evaluates coalitions by looking up their lesion outcome.
// A missing row fails the run.
func LesionObjective(src LesionSource, gameID string) shapley.Objective[string] {
	return func(ctx context.Context, lesioned []string) (float64, error) {
		return src.LookupLesion(ctx, gameID, lesioned)
	}
}

// NormalizeLesion returns the canonical storage key for a lesion: the player
// labels sorted ascending. Empty labels and repeats are rejected.
func NormalizeLesion(lesioned []string) ([]string, error) {
	key := make([]string, len(lesioned))
	copy(key, lesioned)
	sort.Strings(key)
	for i, p := range key {
		if p == "" {
			return nil, errors.New("lesion contains an empty player label")
		}
		if i > 0 && key[i-1] == p {
			return nil, errors.Errorf("lesion lists player %q twice", p)
		}
	}
	return key, nil
}
