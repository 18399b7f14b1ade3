package stacks

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Draft state machine. A draft is open until it is saved; saving requires
// exactly 8 records and a name, and is terminal.

// Saved reports whether the draft has been finalized.
func (d *Draft) Saved() bool {
	return d.Status == draftStatusSaved
}

// Full reports whether the draft holds the maximum number of records.
func (d *Draft) Full() bool {
	return len(d.Records) >= maxStackSize
}

func (d *Draft) contains(recordID string) bool {
	for _, r := range d.Records {
		if r.ID == recordID {
			return true
		}
	}
	return false
}

func (d *Draft) recordIDs() []string {
	ids := make([]string, len(d.Records))
	for i, r := range d.Records {
		ids[i] = r.ID
	}
	return ids
}

// validateAdd rejects adds against a saved draft, duplicate adds (a user
// error, not an idempotent no-op), and adds to a full draft.
func (d *Draft) validateAdd(recordID string) error {
	if d.Saved() {
		return errValidation("stack is already saved")
	}
	if d.contains(recordID) {
		return errValidation("record is already in the stack")
	}
	if d.Full() {
		return errValidation("stack already holds 8 records")
	}
	return nil
}

func (d *Draft) validateRemove(recordID string) error {
	if d.Saved() {
		return errValidation("stack is already saved")
	}
	if !d.contains(recordID) {
		return errNotFound("record is not in the stack")
	}
	return nil
}

func (d *Draft) validateSave(name string) error {
	if d.Saved() {
		return errValidation("stack is already saved")
	}
	if name == "" || len(name) > maxStackNameLen {
		return errValidation("name must be between 1 and 100 characters")
	}
	if len(d.Records) != maxStackSize {
		return errValidation("stack must contain exactly 8 records")
	}
	return nil
}

// DraftStore persists custom stacks under construction.
type DraftStore interface {
	Create(ctx context.Context, userID string) (*Draft, error)
	Get(ctx context.Context, userID, draftID string) (*Draft, error)
	// Resume returns the most recently created open draft. Older open drafts
	// are left alone; they are neither resumed nor deleted.
	Resume(ctx context.Context, userID string) (*Draft, error)
	AddRecord(ctx context.Context, userID, draftID, recordID string) (*Draft, error)
	RemoveRecord(ctx context.Context, userID, draftID, recordID string) (*Draft, error)
	Save(ctx context.Context, userID, draftID, name string) (*Draft, error)
}

type PostgresDraftStore struct {
	db DB
}

func NewPostgresDraftStore(db DB) *PostgresDraftStore {
	return &PostgresDraftStore{db: db}
}

func (s *PostgresDraftStore) Create(ctx context.Context, userID string) (*Draft, error) {
	d := Draft{UserID: userID, Status: draftStatusOpen, Records: []Record{}}
	err := s.db.QueryRow(ctx, `
		INSERT INTO custom_stacks (user_id) VALUES ($1)
		RETURNING id, created_at
	`, userID).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresDraftStore) Get(ctx context.Context, userID, draftID string) (*Draft, error) {
	var d Draft
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, name, status, created_at
		FROM custom_stacks
		WHERE id = $1 AND user_id = $2
	`, draftID, userID).Scan(&d.ID, &d.UserID, &d.Name, &d.Status, &d.CreatedAt)
	if err != nil {
		return nil, mapDraftReadErr(err)
	}
	if err := s.loadRecords(ctx, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresDraftStore) Resume(ctx context.Context, userID string) (*Draft, error) {
	var d Draft
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, name, status, created_at
		FROM custom_stacks
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, draftStatusOpen).Scan(&d.ID, &d.UserID, &d.Name, &d.Status, &d.CreatedAt)
	if err != nil {
		return nil, mapDraftReadErr(err)
	}
	if err := s.loadRecords(ctx, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresDraftStore) AddRecord(ctx context.Context, userID, draftID, recordID string) (*Draft, error) {
	d, err := s.Get(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	if err := d.validateAdd(recordID); err != nil {
		return nil, err
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM records WHERE id = $1 AND user_id = $2)
	`, recordID, userID).Scan(&exists); err != nil {
		return nil, mapDraftReadErr(err)
	}
	if !exists {
		return nil, errNotFound("record not found")
	}

	if _, err := s.db.Exec(ctx, `
		INSERT INTO custom_stack_items (stack_id, record_id, position)
		VALUES ($1, $2, $3)
	`, draftID, recordID, len(d.Records)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, errValidation("record is already in the stack")
		}
		return nil, err
	}

	return s.Get(ctx, userID, draftID)
}

func (s *PostgresDraftStore) RemoveRecord(ctx context.Context, userID, draftID, recordID string) (*Draft, error) {
	d, err := s.Get(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	if err := d.validateRemove(recordID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM custom_stack_items
		WHERE stack_id = $1 AND record_id = $2
	`, draftID, recordID); err != nil {
		return nil, err
	}

	// Close the gap: remaining positions stay contiguous from 0.
	if _, err := tx.Exec(ctx, `
		UPDATE custom_stack_items AS i
		SET position = n.rn - 1
		FROM (
			SELECT record_id, ROW_NUMBER() OVER (ORDER BY position) AS rn
			FROM custom_stack_items
			WHERE stack_id = $1
		) AS n
		WHERE i.stack_id = $1 AND i.record_id = n.record_id
	`, draftID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return s.Get(ctx, userID, draftID)
}

func (s *PostgresDraftStore) Save(ctx context.Context, userID, draftID, name string) (*Draft, error) {
	d, err := s.Get(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := d.validateSave(name); err != nil {
		return nil, err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE custom_stacks
		SET name = $1, status = $2
		WHERE id = $3 AND user_id = $4 AND status = $5
	`, name, draftStatusSaved, draftID, userID, draftStatusOpen)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, errValidation("stack is already saved")
	}

	return s.Get(ctx, userID, draftID)
}

func (s *PostgresDraftStore) loadRecords(ctx context.Context, d *Draft) error {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.release_id, r.title, r.artist, r.year, r.label, r.art_url,
		       r.genres, r.styles, r.play_count, r.liked, r.last_played_at, r.added_at
		FROM custom_stack_items i
		JOIN records r ON r.id = i.record_id
		WHERE i.stack_id = $1
		ORDER BY i.position ASC
	`, d.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return err
	}
	d.Records = records
	return nil
}

// mapDraftReadErr turns missing rows and malformed uuid ids into not-found.
func mapDraftReadErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errNotFound("stack not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return errNotFound("stack not found")
	}
	return err
}
