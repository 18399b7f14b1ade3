package stacks

import (
	"math/rand"
	"sort"
	"strings"
)

// Similarity weights. A candidate collects points per matching genre and
// style, a flat bonus for a shared artist, and one point for landing within
// ten years of the reference set's mean release year.
const (
	genreMatchPoints  = 3
	styleMatchPoints  = 2
	artistMatchPoints = 5
	eraMatchPoints    = 1
	eraRangeYears     = 10
)

const defaultSuggestionLimit = 12

// ScoredRecord is a suggestion candidate with its similarity score.
type ScoredRecord struct {
	Record
	Score int `json:"similarityScore"`
}

// profile is what the scorer derives from the records already chosen:
// lower-cased tag and artist sets plus the mean release year.
type profile struct {
	genres  map[string]bool
	styles  map[string]bool
	artists map[string]bool
	avgYear *int
}

func buildProfile(refs []Record) profile {
	p := profile{
		genres:  map[string]bool{},
		styles:  map[string]bool{},
		artists: map[string]bool{},
	}
	yearSum, yearCount := 0, 0
	for _, r := range refs {
		for _, g := range r.Genres {
			p.genres[strings.ToLower(g)] = true
		}
		for _, s := range r.Styles {
			p.styles[strings.ToLower(s)] = true
		}
		if r.Artist != "" {
			p.artists[strings.ToLower(r.Artist)] = true
		}
		if r.Year != nil {
			yearSum += *r.Year
			yearCount++
		}
	}
	if yearCount > 0 {
		// Round half up to the nearest year.
		avg := (yearSum + yearCount/2) / yearCount
		p.avgYear = &avg
	}
	return p
}

func (p profile) score(r Record) int {
	score := 0
	for _, g := range r.Genres {
		if p.genres[strings.ToLower(g)] {
			score += genreMatchPoints
		}
	}
	for _, s := range r.Styles {
		if p.styles[strings.ToLower(s)] {
			score += styleMatchPoints
		}
	}
	if r.Artist != "" && p.artists[strings.ToLower(r.Artist)] {
		score += artistMatchPoints
	}
	if p.avgYear != nil && r.Year != nil {
		diff := *r.Year - *p.avgYear
		if diff < 0 {
			diff = -diff
		}
		if diff <= eraRangeYears {
			score += eraMatchPoints
		}
	}
	return score
}

// similarRecords ranks the candidate pool against the reference set, highest
// score first. Candidates scoring zero are excluded; candidates already in
// the reference set are excluded. Ties break randomly so an unchanged draft
// still gets fresh suggestions. An empty reference set yields no results.
func similarRecords(refs []Record, pool []Record, limit int, rng *rand.Rand) []ScoredRecord {
	if len(refs) == 0 {
		return []ScoredRecord{}
	}
	p := buildProfile(refs)

	selected := make(map[string]bool, len(refs))
	for _, r := range refs {
		selected[r.ID] = true
	}

	scored := []ScoredRecord{}
	for _, c := range pool {
		if selected[c.ID] {
			continue
		}
		if s := p.score(c); s > 0 {
			scored = append(scored, ScoredRecord{Record: c, Score: s})
		}
	}

	// Shuffle first, then stable-sort on score: equal scores keep shuffled order.
	rng.Shuffle(len(scored), func(i, j int) {
		scored[i], scored[j] = scored[j], scored[i]
	})
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
