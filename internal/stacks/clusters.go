package stacks

import "time"

// StyleCluster groups related styles into one mood. Clusters may overlap; a
// record can surface in several of them.
type StyleCluster struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Styles []string `json:"styles"`
}

// defaultStyleClusters is the curated cluster table. Loaded into the
// generator at startup and treated as read-only from then on.
var defaultStyleClusters = []StyleCluster{
	{
		ID:     "atmospheric",
		Name:   "Atmospheric",
		Styles: []string{"Shoegaze", "Ambient", "Ethereal", "Dream Pop", "Post-Rock", "Space Rock", "Downtempo", "Drone", "Dark Ambient"},
	},
	{
		ID:     "heavy",
		Name:   "Heavy",
		Styles: []string{"Doom Metal", "Progressive Metal", "Stoner Rock", "Sludge Metal", "Hardcore", "Noise", "Industrial", "Post-Metal", "Black Metal", "Death Metal"},
	},
	{
		ID:     "groovy",
		Name:   "Groovy",
		Styles: []string{"Funk", "Disco", "Nu-Disco", "French House", "Boogie", "Soul", "Rhythm & Blues", "Deep House", "Acid Jazz"},
	},
	{
		ID:     "chill",
		Name:   "Chill",
		Styles: []string{"Downtempo", "Chillwave", "Lo-Fi", "Easy Listening", "Lounge", "Trip Hop", "Ambient", "New Age", "Balearic"},
	},
	{
		ID:     "experimental",
		Name:   "Experimental",
		Styles: []string{"Avantgarde", "Experimental", "Noise", "Musique Concrète", "Free Jazz", "Free Improvisation", "Art Rock", "No Wave", "Leftfield"},
	},
	{
		ID:     "electronic-dance",
		Name:   "Electronic Dance",
		Styles: []string{"Techno", "House", "Minimal Techno", "Acid House", "Electro", "Trance", "Breakbeat", "Drum n Bass", "UK Garage"},
	},
	{
		ID:     "melancholic",
		Name:   "Melancholic",
		Styles: []string{"Slowcore", "Sadcore", "Gothic Rock", "Goth Rock", "Darkwave", "Cold Wave", "Post-Punk", "Ethereal"},
	},
	{
		ID:     "psychedelic",
		Name:   "Psychedelic",
		Styles: []string{"Psychedelic Rock", "Psychedelic", "Neo-Psychedelia", "Space Rock", "Acid Rock", "Krautrock", "Stoner Rock"},
	},
	{
		ID:     "hip-hop-beats",
		Name:   "Hip-Hop & Beats",
		Styles: []string{"Jazzy Hip-Hop", "Abstract", "Instrumental Hip-Hop", "Boom Bap", "Trip Hop", "Turntablism", "Beat Music", "Lo-Fi"},
	},
	{
		ID:     "synth-wave",
		Name:   "Synth & Wave",
		Styles: []string{"Synth-pop", "New Wave", "Coldwave", "Darkwave", "Italo-Disco", "Electropop", "Synthwave", "Minimal Synth"},
	},
}

// WeeklySelector is one named slice of the collection used for weekly stack
// generation: a catalog predicate plus its ordering. Random selectors fetch
// every matching record, unordered and unlimited, and are shuffled
// in-process; only the ordered selectors take a SQL limit.
type WeeklySelector struct {
	ID     string
	Name   string
	Random bool
	Query  func(now time.Time) Query
}

var defaultWeeklySelectors = []WeeklySelector{
	{
		ID:   "recent-additions",
		Name: "Recent Additions",
		Query: func(now time.Time) Query {
			since := now.Add(-90 * 24 * time.Hour)
			return Query{AddedAfter: &since, Order: OrderAddedDesc, Limit: selectorOversampleLimit}
		},
	},
	{
		ID:     "unplayed",
		Name:   "Unplayed Gems",
		Random: true,
		Query: func(time.Time) Query {
			zero := 0
			return Query{MaxPlayCount: &zero}
		},
	},
	{
		ID:     "rarely-played",
		Name:   "Rarely Played",
		Random: true,
		Query: func(time.Time) Query {
			two := 2
			return Query{MaxPlayCount: &two}
		},
	},
	{
		ID:   "classics",
		Name: "Classics",
		Query: func(time.Time) Query {
			y := 1990
			return Query{YearBefore: &y, Order: OrderYearAsc, Limit: selectorOversampleLimit}
		},
	},
	{
		ID:   "modern",
		Name: "Modern Mix",
		Query: func(time.Time) Query {
			y := 2000
			return Query{YearFrom: &y, Order: OrderYearDesc, Limit: selectorOversampleLimit}
		},
	},
	{
		ID:     "favorites",
		Name:   "Favorites",
		Random: true,
		Query: func(time.Time) Query {
			liked := true
			return Query{Liked: &liked}
		},
	},
}
