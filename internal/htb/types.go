package htb

import (
	"errors"
	"fmt"
)

// TransientError marks origin failures (network, non-2xx) that the watcher
// retries on its next cycle instead of escalating.
type TransientError struct {
	Op     string
	Status int // 0 for network failures
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("htb: %s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("htb: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retry-next-cycle origin failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Machine is one entry of the unreleased machines feed.
type Machine struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	OS             string    `json:"os"`
	DifficultyText string    `json:"difficulty_text"`
	Release        string    `json:"release"`
	Avatar         string    `json:"avatar"`
	FirstCreator   []Creator `json:"firstCreator"`
	Retiring       *Retiring `json:"retiring"`
}

type Creator struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Retiring describes the machine being rotated out when this one releases.
type Retiring struct {
	Name           string `json:"name"`
	OS             string `json:"os"`
	DifficultyText string `json:"difficulty_text"`
}

// Challenge is one entry of the unreleased challenges feed.
type Challenge struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	CategoryName string `json:"category_name"`
	Difficulty   string `json:"difficulty"`
	ReleaseDate  string `json:"release_date"`
	Avatar       string `json:"avatar"`
}

// ChallengeDetails is the enrichment payload for one challenge.
type ChallengeDetails struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	CategoryName string `json:"category_name"`
	Difficulty   string `json:"difficulty"`
	Points       int    `json:"points"`
	Solves       int    `json:"solves"`
	ReleaseDate  string `json:"release_date"`
	CreatorID    int64  `json:"creator_id"`
	CreatorName  string `json:"creator_name"`
	Creator2Name string `json:"creator2_name"`
}

// Notice is one entry of the operational notices feed.
type Notice struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"` // error | warning | success | info
	Message string `json:"message"`
	URL     string `json:"url"`
}
