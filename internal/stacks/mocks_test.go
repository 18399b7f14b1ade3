package stacks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// MockDB implements DB for testing.
type MockDB struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTxFunc  func(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

func (m *MockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.ExecFunc != nil {
		return m.ExecFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func (m *MockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, sql, args...)
	}
	return &MockRows{Idx: -1}, nil
}

func (m *MockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.QueryRowFunc != nil {
		return m.QueryRowFunc(ctx, sql, args...)
	}
	return &MockRow{}
}

func (m *MockDB) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	if m.BeginTxFunc != nil {
		return m.BeginTxFunc(ctx, txOptions)
	}
	return &MockTx{}, nil
}

// MockRow implements pgx.Row.
type MockRow struct {
	ScanFunc func(dest ...any) error
}

func (m *MockRow) Scan(dest ...any) error {
	if m.ScanFunc != nil {
		return m.ScanFunc(dest...)
	}
	return nil
}

// MockTx implements pgx.Tx.
type MockTx struct {
	pgx.Tx // Embed to satisfy interface; unchecked methods panic if called

	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	QueryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (m *MockTx) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTx) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

func (m *MockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.ExecFunc != nil {
		return m.ExecFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.QueryRowFunc != nil {
		return m.QueryRowFunc(ctx, sql, args...)
	}
	return &MockRow{}
}

func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, sql, args...)
	}
	return &MockRows{Idx: -1}, nil
}

// MockRows helper for list queries.
type MockRows struct {
	pgx.Rows
	Data [][]any
	Idx  int
}

func (m *MockRows) Next() bool {
	m.Idx++
	return m.Idx < len(m.Data)
}

func (m *MockRows) Scan(dest ...any) error {
	row := m.Data[m.Idx]
	if len(dest) != len(row) {
		return errors.New("column count mismatch")
	}
	for i, v := range row {
		if dest[i] == nil {
			continue
		}
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *time.Time:
			*d = v.(time.Time)
		case *bool:
			*d = v.(bool)
		case *int:
			*d = v.(int)
		case *[]byte:
			*d = v.([]byte)
		case *[]string:
			if v == nil {
				*d = nil
			} else {
				*d = v.([]string)
			}
		case **int:
			if v == nil {
				*d = nil
			} else {
				*d = v.(*int)
			}
		case **time.Time:
			if v == nil {
				*d = nil
			} else {
				*d = v.(*time.Time)
			}
		case **string:
			if v == nil {
				*d = nil
			} else {
				*d = v.(*string)
			}
		}
	}
	return nil
}

func (m *MockRows) Close()                                       {}
func (m *MockRows) Err() error                                   { return nil }
func (m *MockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *MockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *MockRows) Values() ([]any, error)                       { return nil, nil }
func (m *MockRows) RawValues() [][]byte                          { return nil }
func (m *MockRows) Conn() *pgx.Conn                              { return nil }

// recordRow flattens a Record into a MockRows row matching recordColumns.
func recordRow(r Record) []any {
	var year any
	if r.Year != nil {
		year = r.Year
	}
	var lastPlayed any
	if r.LastPlayedAt != nil {
		lastPlayed = r.LastPlayedAt
	}
	return []any{
		r.ID, r.ReleaseID, r.Title, r.Artist, year, r.Label, r.ArtURL,
		r.Genres, r.Styles, r.PlayCount, r.Liked, lastPlayed, r.AddedAt,
	}
}

// mockRedis is an in-memory RedisClient for fast-tier tests.
type mockRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration

	getErr error
	setErr error
	delErr error
}

func newMockRedis() *mockRedis {
	return &mockRedis{
		data: map[string]string{},
		ttls: map[string]time.Duration{},
	}
}

func (m *mockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return redis.NewStatusResult("", m.setErr)
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	default:
		m.data[key] = fmt.Sprint(v)
	}
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *mockRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return redis.NewIntResult(0, m.delErr)
	}
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			delete(m.ttls, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// memCatalog is an in-memory Catalog used by generator and scorer tests. Its
// filtering mirrors the SQL the Postgres catalog builds.
type memCatalog struct {
	mu      sync.Mutex
	records map[string][]Record
	err     error

	engagements []string // "userID/recordID/kind"
}

func newMemCatalog(userID string, records ...Record) *memCatalog {
	return &memCatalog{records: map[string][]Record{userID: records}}
}

func (m *memCatalog) QueryRecords(ctx context.Context, userID string, q Query) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	out := []Record{}
	for _, r := range m.records[userID] {
		if q.Genre != "" && !containsString(r.Genres, q.Genre) {
			continue
		}
		if len(q.StylesAny) > 0 && !overlaps(r.Styles, q.StylesAny) {
			continue
		}
		if q.MaxPlayCount != nil && r.PlayCount > *q.MaxPlayCount {
			continue
		}
		if q.Liked != nil && r.Liked != *q.Liked {
			continue
		}
		if q.YearBefore != nil && (r.Year == nil || *r.Year >= *q.YearBefore) {
			continue
		}
		if q.YearFrom != nil && (r.Year == nil || *r.Year < *q.YearFrom) {
			continue
		}
		if q.AddedAfter != nil && !r.AddedAt.After(*q.AddedAfter) {
			continue
		}
		out = append(out, r)
	}

	switch q.Order {
	case OrderAddedDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	case OrderYearAsc:
		sort.SliceStable(out, func(i, j int) bool { return yearOf(out[i]) < yearOf(out[j]) })
	case OrderYearDesc:
		sort.SliceStable(out, func(i, j int) bool { return yearOf(out[i]) > yearOf(out[j]) })
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memCatalog) RecordsByIDs(ctx context.Context, userID string, ids []string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []Record{}
	for _, r := range m.records[userID] {
		if want[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memCatalog) CountByTag(ctx context.Context, userID, tagField string, limit int) ([]TagCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	counts := map[string]int{}
	for _, r := range m.records[userID] {
		tags := r.Genres
		if tagField == "styles" {
			tags = r.Styles
		}
		for _, t := range tags {
			counts[t]++
		}
	}
	out := []TagCount{}
	for v, c := range counts {
		out = append(out, TagCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memCatalog) RecordEngagement(ctx context.Context, userID, recordID, kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	found := false
	for _, r := range m.records[userID] {
		if r.ID == recordID {
			found = true
			break
		}
	}
	if !found {
		return errNotFound("record not found")
	}
	m.engagements = append(m.engagements, userID+"/"+recordID+"/"+kind)
	return nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		if containsString(b, x) {
			return true
		}
	}
	return false
}

func yearOf(r Record) int {
	if r.Year == nil {
		return 1 << 30 // NULLS LAST
	}
	return *r.Year
}

// memDraftStore is an in-memory DraftStore reusing the draft state machine.
type memDraftStore struct {
	mu      sync.Mutex
	catalog *memCatalog
	drafts  map[string]*Draft
	seq     int
}

func newMemDraftStore(catalog *memCatalog) *memDraftStore {
	return &memDraftStore{catalog: catalog, drafts: map[string]*Draft{}}
}

func (m *memDraftStore) Create(ctx context.Context, userID string) (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	d := &Draft{
		ID:        fmt.Sprintf("draft-%d", m.seq),
		UserID:    userID,
		Status:    draftStatusOpen,
		Records:   []Record{},
		CreatedAt: time.Unix(int64(m.seq), 0),
	}
	m.drafts[d.ID] = d
	return copyDraft(d), nil
}

func (m *memDraftStore) Get(ctx context.Context, userID, draftID string) (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(userID, draftID)
}

func (m *memDraftStore) get(userID, draftID string) (*Draft, error) {
	d, ok := m.drafts[draftID]
	if !ok || d.UserID != userID {
		return nil, errNotFound("stack not found")
	}
	return copyDraft(d), nil
}

func (m *memDraftStore) Resume(ctx context.Context, userID string) (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *Draft
	for _, d := range m.drafts {
		if d.UserID != userID || d.Saved() {
			continue
		}
		if latest == nil || d.CreatedAt.After(latest.CreatedAt) {
			latest = d
		}
	}
	if latest == nil {
		return nil, errNotFound("stack not found")
	}
	return copyDraft(latest), nil
}

func (m *memDraftStore) AddRecord(ctx context.Context, userID, draftID, recordID string) (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[draftID]
	if !ok || d.UserID != userID {
		return nil, errNotFound("stack not found")
	}
	if err := d.validateAdd(recordID); err != nil {
		return nil, err
	}
	recs, _ := m.catalog.RecordsByIDs(ctx, userID, []string{recordID})
	if len(recs) == 0 {
		return nil, errNotFound("record not found")
	}
	d.Records = append(d.Records, recs[0])
	return copyDraft(d), nil
}

func (m *memDraftStore) RemoveRecord(ctx context.Context, userID, draftID, recordID string) (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[draftID]
	if !ok || d.UserID != userID {
		return nil, errNotFound("stack not found")
	}
	if err := d.validateRemove(recordID); err != nil {
		return nil, err
	}
	kept := d.Records[:0]
	for _, r := range d.Records {
		if r.ID != recordID {
			kept = append(kept, r)
		}
	}
	d.Records = kept
	return copyDraft(d), nil
}

func (m *memDraftStore) Save(ctx context.Context, userID, draftID, name string) (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[draftID]
	if !ok || d.UserID != userID {
		return nil, errNotFound("stack not found")
	}
	trimmed := strings.TrimSpace(name)
	if err := d.validateSave(trimmed); err != nil {
		return nil, err
	}
	d.Name = &trimmed
	d.Status = draftStatusSaved
	return copyDraft(d), nil
}

func copyDraft(d *Draft) *Draft {
	out := *d
	out.Records = append([]Record{}, d.Records...)
	return &out
}
