// Package draft keeps the durable snapshot of unsaved set input so a session
// survives a crash or restart mid-logging.
package draft

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/claude/liftcoach/internal/models"
	"github.com/claude/liftcoach/internal/store"
)

// Records is the slice of the local store the draft needs.
type Records interface {
	Get(key string, v any) (bool, error)
	Put(key string, v any) error
	Delete(key string) error
}

var _ Records = (*store.Store)(nil)

// Store is the only writer of the draft record. There is one slot: a new
// session's snapshot silently replaces whatever was there.
type Store struct {
	records Records
	log     *slog.Logger
}

func New(records Records, log *slog.Logger) *Store {
	return &Store{records: records, log: log}
}

// Key returns the draft map key for an exercise id.
func Key(exerciseID int64) string {
	return strconv.FormatInt(exerciseID, 10)
}

// Build captures the full grid for a session. Cards without an exercise id
// are left out because they can never be logged.
func Build(sess *models.Session, cards []models.ExerciseCard) *models.Draft {
	d := &models.Draft{
		SessionID: sess.ID,
		Exercises: make(map[string][]models.SetRow, len(cards)),
	}
	for _, c := range cards {
		if c.Exercise.ExerciseID == nil {
			continue
		}
		rows := make([]models.SetRow, len(c.Rows))
		for i, r := range c.Rows {
			rows[i] = copyRow(r)
		}
		d.Exercises[Key(*c.Exercise.ExerciseID)] = rows
	}
	return d
}

// Snapshot writes the whole grid as the current draft. Read-only sessions are
// never snapshotted.
func (s *Store) Snapshot(sess *models.Session, cards []models.ExerciseCard) error {
	if sess == nil || sess.ReadOnly {
		return nil
	}
	if err := s.records.Put(store.KeyDraft, Build(sess, cards)); err != nil {
		return fmt.Errorf("snapshot draft: %w", err)
	}
	return nil
}

// Load returns the stored draft when it belongs to sess. A draft for another
// session is left in place and nil is returned.
func (s *Store) Load(sess *models.Session) (*models.Draft, error) {
	if sess == nil {
		return nil, nil
	}
	var d models.Draft
	ok, err := s.records.Get(store.KeyDraft, &d)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if !ok {
		return nil, nil
	}
	if d.SessionID != sess.ID {
		s.log.Debug("ignoring draft from another session", "draft_session", d.SessionID, "session", sess.ID)
		return nil, nil
	}
	return &d, nil
}

// Clear removes the draft.
func (s *Store) Clear() error {
	if err := s.records.Delete(store.KeyDraft); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}

func copyRow(r models.SetRow) models.SetRow {
	return models.SetRow{
		Weight:          copyFloat(r.Weight),
		Reps:            copyFloat(r.Reps),
		RPE:             copyFloat(r.RPE),
		RestSeconds:     copyFloat(r.RestSeconds),
		ManualAudit:     r.ManualAudit,
		SetComplete:     r.SetComplete,
		WeightDefaulted: r.WeightDefaulted,
	}
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
