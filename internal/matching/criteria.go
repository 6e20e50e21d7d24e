// Package matching decides which subscriptions an event or request triggers
// and which open triggerings an event stops.
//
// Matches and MatchesStop are the reference rules. The in-memory store
// evaluates them directly; the postgres store compiles the same rules into
// a single query per call.
package matching

import (
	"time"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

// AssetCriterion is an asset or asset group the event concerns.
type AssetCriterion struct {
	Type domain.AssetType
	GUID string
}

// Criteria describes an event. Empty collections and a nil Sender mean the
// corresponding criterion does not apply.
type Criteria struct {
	Areas []domain.Area
	// AreasReported makes the area criterion apply even when Areas is empty,
	// i.e. the event position lies outside every known area.
	AreasReported bool

	Assets          []AssetCriterion
	StartActivities []domain.Activity
	Sender          *domain.Sender
	ValidAt         time.Time
	TriggerTypes    []domain.TriggerType
}

// AssetGUIDs returns the GUIDs of the criteria assets of type t.
func (c Criteria) AssetGUIDs(t domain.AssetType) []string {
	var out []string
	for _, a := range c.Assets {
		if a.Type == t {
			out = append(out, a.GUID)
		}
	}
	return out
}

// StopCriteria describes an event that may end open triggerings of one asset.
type StopCriteria struct {
	ConnectID string

	// AreasReported is set when the event carried a position; CurrentAreas
	// then lists every area the asset is in (possibly none).
	AreasReported bool
	CurrentAreas  []domain.Area

	// Activities reported by the event.
	Activities []domain.Activity
}
