package stacks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Order is the sort applied by a catalog query. Callers wanting random order
// fetch with OrderNone and shuffle the result themselves, so that "different
// each refresh" behavior never depends on store-level randomization.
type Order int

const (
	OrderNone Order = iota
	OrderAddedDesc
	OrderYearAsc
	OrderYearDesc
)

// Query describes a filtered, ordered read against one user's collection.
// Zero-valued fields are ignored.
type Query struct {
	Genre        string
	StylesAny    []string
	MaxPlayCount *int
	Liked        *bool
	YearBefore   *int // exclusive, records without a year excluded
	YearFrom     *int // inclusive, records without a year excluded
	AddedAfter   *time.Time
	Order        Order
	Limit        int
}

// Catalog is the accessor for the user's record collection.
type Catalog interface {
	QueryRecords(ctx context.Context, userID string, q Query) ([]Record, error)
	RecordsByIDs(ctx context.Context, userID string, ids []string) ([]Record, error)
	CountByTag(ctx context.Context, userID, tagField string, limit int) ([]TagCount, error)
	RecordEngagement(ctx context.Context, userID, recordID, kind string) error
}

type PostgresCatalog struct {
	db DB
}

func NewPostgresCatalog(db DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

const recordColumns = `id, release_id, title, artist, year, label, art_url,
       genres, styles, play_count, liked, last_played_at, added_at`

func (c *PostgresCatalog) QueryRecords(ctx context.Context, userID string, q Query) ([]Record, error) {
	sql := `SELECT ` + recordColumns + ` FROM records WHERE user_id = $1`
	args := []any{userID}

	where := func(clause string, v any) {
		args = append(args, v)
		sql += fmt.Sprintf(clause, len(args))
	}

	if q.Genre != "" {
		where(` AND $%d = ANY(genres)`, q.Genre)
	}
	if len(q.StylesAny) > 0 {
		where(` AND styles && $%d::text[]`, q.StylesAny)
	}
	if q.MaxPlayCount != nil {
		where(` AND play_count <= $%d`, *q.MaxPlayCount)
	}
	if q.Liked != nil {
		where(` AND liked = $%d`, *q.Liked)
	}
	if q.YearBefore != nil {
		where(` AND year IS NOT NULL AND year < $%d`, *q.YearBefore)
	}
	if q.YearFrom != nil {
		where(` AND year IS NOT NULL AND year >= $%d`, *q.YearFrom)
	}
	if q.AddedAfter != nil {
		where(` AND added_at > $%d`, *q.AddedAfter)
	}

	switch q.Order {
	case OrderAddedDesc:
		sql += ` ORDER BY added_at DESC`
	case OrderYearAsc:
		sql += ` ORDER BY year ASC NULLS LAST`
	case OrderYearDesc:
		sql += ` ORDER BY year DESC NULLS LAST`
	}

	if q.Limit > 0 {
		where(` LIMIT $%d`, q.Limit)
	}

	rows, err := c.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (c *PostgresCatalog) RecordsByIDs(ctx context.Context, userID string, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return []Record{}, nil
	}
	rows, err := c.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE user_id = $1 AND id = ANY($2::uuid[])
	`, userID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (c *PostgresCatalog) CountByTag(ctx context.Context, userID, tagField string, limit int) ([]TagCount, error) {
	var col string
	switch tagField {
	case "genres":
		col = "genres"
	case "styles":
		col = "styles"
	default:
		return nil, fmt.Errorf("unsupported tag field %q", tagField)
	}

	rows, err := c.db.Query(ctx, `
		SELECT tag, COUNT(*) AS c
		FROM records, unnest(`+col+`) AS tag
		WHERE user_id = $1
		GROUP BY tag
		ORDER BY c DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Value, &tc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// RecordEngagement writes a play/skip/like back through to the collection.
// Plays and skips are appended to play_history; plays additionally bump the
// record's play count and last-played timestamp.
func (c *PostgresCatalog) RecordEngagement(ctx context.Context, userID, recordID, kind string) error {
	switch kind {
	case EngagementPlayed:
		if _, err := c.db.Exec(ctx, `
			INSERT INTO play_history (user_id, record_id, was_skipped)
			VALUES ($1, $2, FALSE)
		`, userID, recordID); err != nil {
			return mapRecordWriteErr(err)
		}
		tag, err := c.db.Exec(ctx, `
			UPDATE records
			SET play_count = play_count + 1, last_played_at = now()
			WHERE id = $1 AND user_id = $2
		`, recordID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errNotFound("record not found")
		}
		return nil

	case EngagementSkipped:
		_, err := c.db.Exec(ctx, `
			INSERT INTO play_history (user_id, record_id, was_skipped)
			VALUES ($1, $2, TRUE)
		`, userID, recordID)
		return mapRecordWriteErr(err)

	case EngagementLiked:
		tag, err := c.db.Exec(ctx, `
			UPDATE records SET liked = TRUE WHERE id = $1 AND user_id = $2
		`, recordID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errNotFound("record not found")
		}
		return nil

	default:
		return errValidation("unsupported engagement kind")
	}
}

// mapRecordWriteErr turns FK violations and malformed uuids from engagement
// inserts into a user-facing not-found.
func mapRecordWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "23503" || pgErr.Code == "22P02") {
		return errNotFound("record not found")
	}
	return err
}

func scanRecords(rows pgx.Rows) ([]Record, error) {
	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.ID,
			&r.ReleaseID,
			&r.Title,
			&r.Artist,
			&r.Year,
			&r.Label,
			&r.ArtURL,
			&r.Genres,
			&r.Styles,
			&r.PlayCount,
			&r.Liked,
			&r.LastPlayedAt,
			&r.AddedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
