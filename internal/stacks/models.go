package stacks

import (
	"net/http"
	"time"
)

// Record is a single item in the user's collection. The collection itself is
// owned by the catalog tables; this service only reads records and writes
// engagement updates back through the catalog.
type Record struct {
	ID           string     `json:"id"`
	ReleaseID    string     `json:"releaseId,omitempty"` // external release identity, used for dedup
	Title        string     `json:"title"`
	Artist       string     `json:"artist"`
	Year         *int       `json:"year,omitempty"`
	Label        string     `json:"label,omitempty"`
	ArtURL       string     `json:"artUrl,omitempty"`
	Genres       []string   `json:"genres,omitempty"`
	Styles       []string   `json:"styles,omitempty"`
	PlayCount    int        `json:"playCount"`
	Liked        bool       `json:"liked"`
	LastPlayedAt *time.Time `json:"lastPlayedAt,omitempty"`
	AddedAt      time.Time  `json:"addedAt"`
}

// dedupKey is the release identity used to collapse duplicate pressings of the
// same release. Falls back to the record id when no external id is known.
func (r Record) dedupKey() string {
	if r.ReleaseID != "" {
		return r.ReleaseID
	}
	return r.ID
}

// Stack is an ordered, release-deduplicated set of up to 8 records presented
// as one listening session.
type Stack struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Records     []Record  `json:"records"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// TagCount is one row of a grouped tag count (e.g. genre -> number of records).
type TagCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Draft is a custom stack under construction. Records are ordered by position.
type Draft struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      *string   `json:"name,omitempty"`
	Status    string    `json:"status"`
	Records   []Record  `json:"records"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	draftStatusOpen  = "draft"
	draftStatusSaved = "saved"
)

const (
	maxStackSize    = 8
	minStackSize    = 4
	maxStackNameLen = 100
)

// Engagement kinds accepted by the catalog write-through.
const (
	EngagementPlayed  = "played"
	EngagementSkipped = "skipped"
	EngagementLiked   = "liked"
)

// stackError carries the HTTP status a failure should surface as.
type stackError struct {
	status int
	msg    string
}

func (e *stackError) Error() string {
	return e.msg
}

func errNotFound(msg string) error {
	return &stackError{status: http.StatusNotFound, msg: msg}
}

func errValidation(msg string) error {
	return &stackError{status: http.StatusBadRequest, msg: msg}
}
