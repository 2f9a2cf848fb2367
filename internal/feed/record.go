// Package feed implements the poll→diff→dispatch→sleep watcher and the
// per-feed sources it polls. Feed-specific differences (required fields,
// poll cadence, delivery steps) are configuration data; the control flow is
// shared.
package feed

import (
	"fmt"
	"strings"
	"time"

	"htbwatch/internal/storage"
)

// Record is the canonical superset of fields a source can return. Which
// fields are required is per-feed configuration; the rest stay optional.
type Record struct {
	ID         int64
	Name       string
	Kind       string // machine OS, challenge category, or notice type
	Difficulty string
	ReleaseAt  time.Time

	// Optional presentation fields.
	AvatarPath string // origin-relative path, may be empty
	Creator    string
	Retiring   string // preformatted "Name (Difficulty) - OS"

	// Notice-only fields.
	Message string
	URL     string
}

// Seen converts the record to its durable audit form.
func (r Record) Seen() storage.SeenRecord {
	return storage.SeenRecord{
		ID:         r.ID,
		Name:       r.Name,
		Kind:       r.Kind,
		Difficulty: r.Difficulty,
		ReleaseAt:  r.ReleaseAt,
	}
}

// MissingFields returns the names of required fields that are empty.
// Field names: "id", "name", "kind", "difficulty", "release", "message".
func (r Record) MissingFields(required []string) []string {
	var missing []string
	for _, f := range required {
		switch strings.ToLower(f) {
		case "id":
			if r.ID == 0 {
				missing = append(missing, f)
			}
		case "name":
			if strings.TrimSpace(r.Name) == "" {
				missing = append(missing, f)
			}
		case "kind":
			if strings.TrimSpace(r.Kind) == "" {
				missing = append(missing, f)
			}
		case "difficulty":
			if strings.TrimSpace(r.Difficulty) == "" {
				missing = append(missing, f)
			}
		case "release":
			if r.ReleaseAt.IsZero() {
				missing = append(missing, f)
			}
		case "message":
			if strings.TrimSpace(r.Message) == "" {
				missing = append(missing, f)
			}
		default:
			missing = append(missing, fmt.Sprintf("unknown(%s)", f))
		}
	}
	return missing
}

// RequiredFields returns the per-feed required field set, mirroring what the
// origin guarantees for each feed kind.
func RequiredFields(f storage.Feed) []string {
	switch f {
	case storage.FeedMachines:
		return []string{"id", "name", "kind", "difficulty", "release"}
	case storage.FeedChallenges:
		return []string{"id", "name", "kind", "difficulty", "release"}
	case storage.FeedNotices:
		return []string{"id", "message"}
	default:
		return []string{"id"}
	}
}
