package stacks

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// selectorOversampleLimit bounds the ordered selectors: they pull twice a
// stack's worth so the dedup pass still fills 8 slots when the collection
// carries duplicate pressings of the same release. Random draws never carry
// a SQL limit: the store returns rows in an arbitrary but stable order, so a
// limited fetch would pin the draw to the same window of the catalog on
// every refresh. They fetch the whole matching set and shuffle in-process.
const selectorOversampleLimit = 2 * maxStackSize

const (
	maxGenreSelectors = 4
	maxStyleStacks    = 6
	maxWeeklyStacks   = 16
)

const defaultQueryTimeout = 10 * time.Second

// Generator produces daily, weekly and style-cluster stacks from the catalog.
// The selector list and style cluster table are loaded at construction and
// never mutated, so one Generator is safe to share across requests.
type Generator struct {
	catalog      Catalog
	clusters     []StyleCluster
	selectors    []WeeklySelector
	queryTimeout time.Duration
	now          func() time.Time
	newRand      func() *rand.Rand
}

func NewGenerator(catalog Catalog) *Generator {
	return &Generator{
		catalog:      catalog,
		clusters:     defaultStyleClusters,
		selectors:    defaultWeeklySelectors,
		queryTimeout: defaultQueryTimeout,
		now:          time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// query bounds a single catalog read with the generator's timeout. A timeout
// fails the whole generation call; partial stacks are never returned.
func (g *Generator) query(ctx context.Context, userID string, q Query) ([]Record, error) {
	if g.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.queryTimeout)
		defer cancel()
	}
	return g.catalog.QueryRecords(ctx, userID, q)
}

// dedupTruncate keeps the first record seen for each release identity, in
// candidate order, up to max entries.
func dedupTruncate(records []Record, max int) []Record {
	seen := make(map[string]bool, len(records))
	out := make([]Record, 0, max)
	for _, r := range records {
		key := r.dedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
		if len(out) == max {
			break
		}
	}
	return out
}

func shuffleRecords(records []Record, rng *rand.Rand) {
	rng.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})
}

// DailyStack shuffles the whole collection and dedups it down to 8 unique
// releases. There is no minimum floor: a small collection yields a small
// stack, and an empty collection yields an empty one.
func (g *Generator) DailyStack(ctx context.Context, userID string) (Stack, error) {
	records, err := g.query(ctx, userID, Query{})
	if err != nil {
		return Stack{}, err
	}
	shuffleRecords(records, g.newRand())
	return Stack{
		ID:          string(ScopeDaily),
		Name:        "Today's Setlist",
		Records:     dedupTruncate(records, maxStackSize),
		GeneratedAt: g.now(),
	}, nil
}

// StyleStacks builds one stack per style cluster whose intersection with the
// collection yields at least 4 unique releases. Within a cluster, records
// matching more of the cluster's styles rank first, then records spanning
// more genres, then random. Clusters are returned largest first, capped at 6.
func (g *Generator) StyleStacks(ctx context.Context, userID string) ([]Stack, error) {
	results := make([]*Stack, len(g.clusters))

	eg, gctx := errgroup.WithContext(ctx)
	for i, cluster := range g.clusters {
		i, cluster := i, cluster
		eg.Go(func() error {
			records, err := g.query(gctx, userID, Query{StylesAny: cluster.Styles})
			if err != nil {
				return err
			}
			rankClusterRecords(records, cluster.Styles, g.newRand())
			unique := dedupTruncate(records, maxStackSize)
			if len(unique) < minStackSize {
				return nil
			}
			results[i] = &Stack{
				ID:          "style:" + cluster.ID,
				Name:        cluster.Name,
				Records:     unique,
				GeneratedAt: g.now(),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	stacks := []Stack{}
	for _, st := range results {
		if st != nil {
			stacks = append(stacks, *st)
		}
	}
	sort.SliceStable(stacks, func(i, j int) bool {
		return len(stacks[i].Records) > len(stacks[j].Records)
	})
	if len(stacks) > maxStyleStacks {
		stacks = stacks[:maxStyleStacks]
	}
	return stacks, nil
}

// rankClusterRecords orders candidates for a style cluster in place:
// matching-style count descending, then genre count descending, then random.
func rankClusterRecords(records []Record, clusterStyles []string, rng *rand.Rand) {
	want := make(map[string]bool, len(clusterStyles))
	for _, s := range clusterStyles {
		want[strings.ToLower(s)] = true
	}
	matches := func(r Record) int {
		n := 0
		for _, s := range r.Styles {
			if want[strings.ToLower(s)] {
				n++
			}
		}
		return n
	}
	shuffleRecords(records, rng)
	sort.SliceStable(records, func(i, j int) bool {
		mi, mj := matches(records[i]), matches(records[j])
		if mi != mj {
			return mi > mj
		}
		return len(records[i].Genres) > len(records[j].Genres)
	})
}

// WeeklyStacks runs the style clusters, the fixed selector list, and up to
// four genre selectors derived from the user's top genres. Selectors yielding
// fewer than 4 unique releases are dropped. Output order is style clusters,
// fixed selectors, genre selectors; total is capped at 16 stacks. When no
// selector qualifies at all, a single random mix (4-record floor) is the
// fallback.
func (g *Generator) WeeklyStacks(ctx context.Context, userID string) ([]Stack, error) {
	now := g.now()

	styleStacks, err := g.StyleStacks(ctx, userID)
	if err != nil {
		return nil, err
	}

	fixed := make([]*Stack, len(g.selectors))
	eg, gctx := errgroup.WithContext(ctx)
	for i, sel := range g.selectors {
		i, sel := i, sel
		eg.Go(func() error {
			records, err := g.query(gctx, userID, sel.Query(now))
			if err != nil {
				return err
			}
			if sel.Random {
				shuffleRecords(records, g.newRand())
			}
			unique := dedupTruncate(records, maxStackSize)
			if len(unique) < minStackSize {
				return nil
			}
			fixed[i] = &Stack{
				ID:          "weekly:" + sel.ID,
				Name:        sel.Name,
				Records:     unique,
				GeneratedAt: g.now(),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	genreStacks, err := g.genreStacks(ctx, userID)
	if err != nil {
		return nil, err
	}

	stacks := append([]Stack{}, styleStacks...)
	for _, st := range fixed {
		if st != nil {
			stacks = append(stacks, *st)
		}
	}
	stacks = append(stacks, genreStacks...)
	if len(stacks) > maxWeeklyStacks {
		stacks = stacks[:maxWeeklyStacks]
	}

	if len(stacks) == 0 {
		records, err := g.query(ctx, userID, Query{})
		if err != nil {
			return nil, err
		}
		shuffleRecords(records, g.newRand())
		unique := dedupTruncate(records, maxStackSize)
		if len(unique) >= minStackSize {
			stacks = append(stacks, Stack{
				ID:          "weekly:random-mix",
				Name:        "Random Mix",
				Records:     unique,
				GeneratedAt: g.now(),
			})
		}
	}

	return stacks, nil
}

func (g *Generator) genreStacks(ctx context.Context, userID string) ([]Stack, error) {
	tctx := ctx
	if g.queryTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, g.queryTimeout)
		defer cancel()
	}
	genres, err := g.catalog.CountByTag(tctx, userID, "genres", maxGenreSelectors)
	if err != nil {
		return nil, err
	}

	results := make([]*Stack, len(genres))
	eg, gctx := errgroup.WithContext(ctx)
	for i, genre := range genres {
		i, genre := i, genre
		eg.Go(func() error {
			records, err := g.query(gctx, userID, Query{Genre: genre.Value})
			if err != nil {
				return err
			}
			shuffleRecords(records, g.newRand())
			unique := dedupTruncate(records, maxStackSize)
			if len(unique) < minStackSize {
				return nil
			}
			results[i] = &Stack{
				ID:          "weekly:genre:" + slug(genre.Value),
				Name:        "Genre: " + genre.Value,
				Records:     unique,
				GeneratedAt: g.now(),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	stacks := []Stack{}
	for _, st := range results {
		if st != nil {
			stacks = append(stacks, *st)
		}
	}
	return stacks, nil
}

// Suggestions loads the reference records, fetches the rest of the catalog as
// the candidate pool, and ranks the pool by similarity. An empty reference
// set is a valid call and returns no suggestions.
func (g *Generator) Suggestions(ctx context.Context, userID string, refIDs []string, limit int) ([]ScoredRecord, error) {
	if len(refIDs) == 0 {
		return []ScoredRecord{}, nil
	}
	tctx := ctx
	if g.queryTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, g.queryTimeout)
		defer cancel()
	}
	refs, err := g.catalog.RecordsByIDs(tctx, userID, refIDs)
	if err != nil {
		return nil, err
	}
	return g.SuggestionsFor(ctx, userID, refs, limit)
}

// SuggestionsFor is Suggestions for callers that already hold the reference
// records (the stack builder re-scores after every mutation).
func (g *Generator) SuggestionsFor(ctx context.Context, userID string, refs []Record, limit int) ([]ScoredRecord, error) {
	if len(refs) == 0 {
		return []ScoredRecord{}, nil
	}
	pool, err := g.query(ctx, userID, Query{})
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}
	return similarRecords(refs, pool, limit, g.newRand()), nil
}

// slug collapses a genre name to a stable stack-id fragment.
func slug(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}
