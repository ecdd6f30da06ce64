package session

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/liftcoach/internal/logbook"
	"github.com/claude/liftcoach/internal/models"
)

// SaveResult describes a persisted session.
type SaveResult struct {
	SessionID string
	RecordID  int64
	Status    models.CompletionStatus
	Sets      int
}

// Save validates, classifies and submits the session. Checks run in order:
// read-only, in-flight save, missing exercise ids, skip path, nothing logged,
// set validation. A call while another save is outstanding returns (nil, nil).
// On failure the grid and draft are kept so the user can retry.
func (c *Controller) Save(ctx context.Context) (*SaveResult, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, ErrNoSession
	}
	if c.session.ReadOnly {
		c.mu.Unlock()
		return nil, ErrReadOnly
	}
	if c.saving {
		c.mu.Unlock()
		return nil, nil
	}
	if c.st != StateReady {
		st := c.st
		c.mu.Unlock()
		return nil, fmt.Errorf("%w (state %s)", ErrNotReady, st)
	}

	payload, err := c.buildPayload()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	c.saving = true
	c.st = StateSaving
	sess := *c.session
	c.mu.Unlock()
	c.notify(Event{Kind: EventStateChanged, SessionID: sess.ID, State: StateSaving})

	recordID, err := c.backend.SaveSession(ctx, *payload)

	c.mu.Lock()
	c.saving = false
	if c.session == nil || c.session.ID != sess.ID {
		c.mu.Unlock()
		c.log.Info("save finished for inactive session", "session_id", sess.ID, "error", err)
		return nil, ErrStaleSession
	}
	if err != nil {
		c.st = StateReady
		c.mu.Unlock()
		c.log.Warn("session not persisted", "session_id", sess.ID, "error", err)
		c.notify(Event{Kind: EventSaveFailed, SessionID: sess.ID, State: StateSaveFailed, Err: err})
		c.notify(Event{Kind: EventStateChanged, SessionID: sess.ID, State: StateReady})
		return nil, fmt.Errorf("saving session: %w", err)
	}
	c.session = nil
	c.cards = nil
	c.recs = nil
	c.skip = false
	c.st = StateSaved
	c.mu.Unlock()

	if err := c.drafts.Clear(); err != nil {
		c.log.Warn("clearing draft after save failed", "session_id", sess.ID, "error", err)
	}
	if err := c.state.ClearActiveSession(); err != nil {
		c.log.Warn("clearing active session after save failed", "session_id", sess.ID, "error", err)
	}

	res := &SaveResult{
		SessionID: sess.ID,
		RecordID:  recordID,
		Status:    payload.CompletionStatus,
		Sets:      len(payload.SetLogs),
	}
	c.log.Info("session persisted", "session_id", sess.ID, "record_id", recordID,
		"status", res.Status, "sets", res.Sets)
	c.notify(Event{Kind: EventSaved, SessionID: sess.ID, State: StateSaved, Status: res.Status, RecordID: recordID})
	return res, nil
}

// buildPayload runs every pre-submit check. Callers hold c.mu.
func (c *Controller) buildPayload() (*models.SessionPayload, error) {
	if c.recs != nil && len(c.recs.Missing) > 0 {
		return nil, &DataIntegrityError{Sequences: append([]int(nil), c.recs.Missing...)}
	}
	var missing []int
	for _, card := range c.cards {
		if card.Exercise.ExerciseID == nil {
			missing = append(missing, card.Exercise.Sequence)
		}
	}
	if len(missing) > 0 {
		return nil, &DataIntegrityError{Sequences: missing}
	}

	payload := &models.SessionPayload{
		UserID:      c.userID,
		PerformedAt: c.now().UTC().Format(time.RFC3339),
		TemplateID:  c.session.TemplateID,
		PlanID:      c.session.PlanID,
		DayIndex:    c.session.DayIndex,
	}

	if c.skip {
		payload.CompletionStatus = models.StatusSkipped
		payload.SetLogs = []models.SetLogEntry{}
		return payload, nil
	}

	col := logbook.Collect(c.cards)
	if len(col.Entries) == 0 {
		return nil, logbook.ErrNothingLogged
	}
	if err := logbook.Validate(col.Entries); err != nil {
		return nil, err
	}
	status, err := logbook.Classify(col.Logged, false)
	if err != nil {
		return nil, err
	}
	payload.CompletionStatus = status
	payload.SetLogs = col.Entries
	payload.ManualAuditFlag = col.ManualAudit
	return payload, nil
}
