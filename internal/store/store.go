package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/claude/liftcoach/internal/models"
)

// Fixed record keys. Each slot holds at most one value; there is no history.
const (
	KeyDraft         = "session_draft"
	KeyActiveSession = "active_session"
	KeyActivePlanID  = "active_plan_id"
	KeyCurrentPlan   = "current_plan"
)

// Store is the local durable state of the client: a handful of independently
// readable and writable JSON records in a SQLite key/value table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite state database at dir/state.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "state.db"))
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kv table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the state database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get decodes the record at key into v. It reports false when no record exists.
func (s *Store) Get(key string, v any) (bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

// Put replaces the record at key with the JSON encoding of v.
func (s *Store) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		key, string(data),
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes the record at key. Deleting a missing record is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// ActiveSession returns the persisted active session, or nil when none is set.
func (s *Store) ActiveSession() (*models.Session, error) {
	var sess models.Session
	ok, err := s.Get(KeyActiveSession, &sess)
	if err != nil || !ok {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) SetActiveSession(sess *models.Session) error {
	return s.Put(KeyActiveSession, sess)
}

func (s *Store) ClearActiveSession() error {
	return s.Delete(KeyActiveSession)
}

// ActivePlanID returns the remembered plan id, or 0 when none is set.
func (s *Store) ActivePlanID() (int64, error) {
	var id int64
	if _, err := s.Get(KeyActivePlanID, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) SetActivePlanID(id int64) error {
	return s.Put(KeyActivePlanID, id)
}

// CurrentPlan returns the cached normalized plan, or nil when none is cached.
func (s *Store) CurrentPlan() (*models.Plan, error) {
	var p models.Plan
	ok, err := s.Get(KeyCurrentPlan, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// SetCurrentPlan replaces the cached plan wholesale.
func (s *Store) SetCurrentPlan(p *models.Plan) error {
	return s.Put(KeyCurrentPlan, p)
}

func startingWeightsKey(planID int64) string {
	return fmt.Sprintf("starting_weights:%d", planID)
}

// StartingWeights returns the weights entered for a plan's slots. A plan
// without entries yields an empty set.
func (s *Store) StartingWeights(planID int64) (models.StartingWeights, error) {
	weights := models.StartingWeights{}
	if _, err := s.Get(startingWeightsKey(planID), &weights); err != nil {
		return nil, err
	}
	return weights, nil
}

// SetStartingWeight records the weight entered for one slot of a plan.
func (s *Store) SetStartingWeight(planID int64, dayIndex, sequence int, weight float64) error {
	weights, err := s.StartingWeights(planID)
	if err != nil {
		return err
	}
	weights[models.SlotKey(dayIndex, sequence)] = weight
	return s.Put(startingWeightsKey(planID), weights)
}

// ClearStartingWeight forgets the weight of one slot, as after a swap.
func (s *Store) ClearStartingWeight(planID int64, dayIndex, sequence int) error {
	weights, err := s.StartingWeights(planID)
	if err != nil {
		return err
	}
	key := models.SlotKey(dayIndex, sequence)
	if _, ok := weights[key]; !ok {
		return nil
	}
	delete(weights, key)
	return s.Put(startingWeightsKey(planID), weights)
}
