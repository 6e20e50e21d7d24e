package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

var (
	validFrom = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	validTo   = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	at        = time.Date(2020, 5, 5, 12, 0, 0, 0, time.UTC)

	eezBEL  = domain.Area{Type: domain.AreaTypeEEZ, GID: "BEL"}
	eezNLD  = domain.Area{Type: domain.AreaTypeEEZ, GID: "NLD"}
	rfmoBEL = domain.Area{Type: domain.AreaTypeRFMO, GID: "BEL"}

	departure = domain.Activity{Type: "FISHING_ACTIVITY", Value: "DEPARTURE"}
	arrival   = domain.Activity{Type: "FISHING_ACTIVITY", Value: "ARRIVAL"}

	flux = domain.Sender{Organisation: "BEL", Endpoint: "BEL-EP", Channel: "FLUX"}
)

func baseSubscription() domain.Subscription {
	return domain.Subscription{
		ID:        1,
		Name:      "sub",
		Active:    true,
		StartDate: validFrom,
		EndDate:   validTo,
		Execution: domain.ExecutionConfig{TriggerType: domain.TriggerTypeIncFAReport},
	}
}

func TestMatches_ActiveAndValidity(t *testing.T) {
	sub := baseSubscription()
	assert.True(t, Matches(sub, Criteria{ValidAt: at}))
	assert.True(t, Matches(sub, Criteria{ValidAt: validFrom}))
	assert.False(t, Matches(sub, Criteria{ValidAt: validTo}))
	assert.False(t, Matches(sub, Criteria{ValidAt: validFrom.Add(-time.Second)}))

	sub.Active = false
	assert.False(t, Matches(sub, Criteria{ValidAt: at}))
}

func TestMatches_Areas(t *testing.T) {
	withArea := baseSubscription()
	withArea.Areas = []domain.Area{eezBEL}

	noAreaAllowed := baseSubscription()
	noAreaAllowed.AllowWithNoArea = true

	noAreaDenied := baseSubscription()

	tests := []struct {
		name  string
		sub   domain.Subscription
		areas []domain.Area
		want  bool
	}{
		{"configured area matches", withArea, []domain.Area{eezNLD, eezBEL}, true},
		{"same gid different type", withArea, []domain.Area{rfmoBEL}, false},
		{"configured area no overlap", withArea, []domain.Area{eezNLD}, false},
		{"criterion absent", withArea, nil, true},
		{"no areas, allowed", noAreaAllowed, []domain.Area{eezNLD}, true},
		{"no areas, not allowed", noAreaDenied, []domain.Area{eezNLD}, false},
		{"no areas, not allowed, criterion absent", noAreaDenied, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.sub, Criteria{Areas: tt.areas, ValidAt: at}))
		})
	}
}

// TestMatches_NoAreaEscapeHatch checks that a subscription without areas
// matches any non-empty area criterion exactly when AllowWithNoArea is set.
func TestMatches_NoAreaEscapeHatch(t *testing.T) {
	areaSets := [][]domain.Area{{eezBEL}, {eezNLD}, {eezBEL, rfmoBEL}, {{Type: domain.AreaTypePort, GID: "BEOST"}}}
	for _, allow := range []bool{true, false} {
		sub := baseSubscription()
		sub.AllowWithNoArea = allow
		for _, areas := range areaSets {
			assert.Equal(t, allow, Matches(sub, Criteria{Areas: areas, ValidAt: at}), "allow=%v areas=%v", allow, areas)
		}
	}
}

func TestMatches_AreasReportedWithoutAreas(t *testing.T) {
	withArea := baseSubscription()
	withArea.Areas = []domain.Area{eezBEL}
	assert.False(t, Matches(withArea, Criteria{AreasReported: true, ValidAt: at}))
	assert.True(t, Matches(withArea, Criteria{ValidAt: at}))

	noAreaAllowed := baseSubscription()
	noAreaAllowed.AllowWithNoArea = true
	assert.True(t, Matches(noAreaAllowed, Criteria{AreasReported: true, ValidAt: at}))
}

func TestMatches_Assets(t *testing.T) {
	byAsset := baseSubscription()
	byAsset.Assets = []domain.AssetRef{{GUID: "asset-1"}}

	byGroup := baseSubscription()
	byGroup.AssetGroups = []domain.AssetRef{{GUID: "group-1"}}

	noAssetsAllowed := baseSubscription()
	noAssetsAllowed.AllowWithNoAsset = true

	assetOnly := []AssetCriterion{{Type: domain.AssetTypeAsset, GUID: "asset-1"}}
	groupOnly := []AssetCriterion{{Type: domain.AssetTypeAssetGroup, GUID: "group-1"}}
	both := append(append([]AssetCriterion{}, assetOnly...), groupOnly...)
	other := []AssetCriterion{{Type: domain.AssetTypeAsset, GUID: "asset-2"}}
	groupGUIDAsAsset := []AssetCriterion{{Type: domain.AssetTypeAsset, GUID: "group-1"}}

	tests := []struct {
		name   string
		sub    domain.Subscription
		assets []AssetCriterion
		want   bool
	}{
		{"individual asset", byAsset, assetOnly, true},
		{"individual asset via combined criteria", byAsset, both, true},
		{"individual asset mismatch", byAsset, other, false},
		{"group membership", byGroup, groupOnly, true},
		{"group membership via combined criteria", byGroup, both, true},
		{"group guid supplied as asset", byGroup, groupGUIDAsAsset, false},
		{"no assets, allowed", noAssetsAllowed, other, true},
		{"no assets, not allowed", baseSubscription(), other, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.sub, Criteria{Assets: tt.assets, ValidAt: at}))
		})
	}
}

func TestMatches_StartActivities(t *testing.T) {
	sub := baseSubscription()
	sub.StartActivities = []domain.Activity{departure}

	assert.True(t, Matches(sub, Criteria{StartActivities: []domain.Activity{arrival, departure}, ValidAt: at}))
	assert.False(t, Matches(sub, Criteria{StartActivities: []domain.Activity{arrival}, ValidAt: at}))

	empty := baseSubscription()
	assert.False(t, Matches(empty, Criteria{StartActivities: []domain.Activity{arrival}, ValidAt: at}))
	empty.AllowWithNoStartActivity = true
	assert.True(t, Matches(empty, Criteria{StartActivities: []domain.Activity{arrival}, ValidAt: at}))
}

func TestMatches_Sender(t *testing.T) {
	sub := baseSubscription()
	sub.Senders = []domain.Sender{flux}

	other := domain.Sender{Organisation: "NLD", Endpoint: "NLD-EP", Channel: "FLUX"}
	assert.True(t, Matches(sub, Criteria{Sender: &flux, ValidAt: at}))
	assert.False(t, Matches(sub, Criteria{Sender: &other, ValidAt: at}))
	assert.True(t, Matches(sub, Criteria{ValidAt: at}))

	noSenders := baseSubscription()
	assert.False(t, Matches(noSenders, Criteria{Sender: &other, ValidAt: at}))
	noSenders.AllowWithNoSenders = true
	assert.True(t, Matches(noSenders, Criteria{Sender: &other, ValidAt: at}))

	// The escape hatch only covers subscriptions without any sender configured.
	sub.AllowWithNoSenders = true
	assert.False(t, Matches(sub, Criteria{Sender: &other, ValidAt: at}))
}

func TestMatches_TriggerTypes(t *testing.T) {
	sub := baseSubscription()
	assert.True(t, Matches(sub, Criteria{TriggerTypes: []domain.TriggerType{domain.TriggerTypeManual, domain.TriggerTypeIncFAReport}, ValidAt: at}))
	assert.False(t, Matches(sub, Criteria{TriggerTypes: []domain.TriggerType{domain.TriggerTypeScheduler}, ValidAt: at}))
}

func TestMatches_CriteriaAreANDed(t *testing.T) {
	sub := baseSubscription()
	sub.Areas = []domain.Area{eezBEL}
	sub.Assets = []domain.AssetRef{{GUID: "asset-1"}}

	c := Criteria{
		Areas:   []domain.Area{eezBEL},
		Assets:  []AssetCriterion{{Type: domain.AssetTypeAsset, GUID: "asset-1"}},
		ValidAt: at,
	}
	assert.True(t, Matches(sub, c))

	c.Assets = []AssetCriterion{{Type: domain.AssetTypeAsset, GUID: "asset-2"}}
	assert.False(t, Matches(sub, c))
}

func activeTriggering(connectID string) domain.TriggeredSubscription {
	return domain.TriggeredSubscription{
		SubscriptionID: 1,
		Status:         domain.TriggeredStatusActive,
		Data:           map[string]string{domain.DataKeyConnectID: connectID},
	}
}

func TestMatchesStop_AreaExit(t *testing.T) {
	sub := baseSubscription()
	sub.Areas = []domain.Area{eezBEL}
	sub.StopWhenQuitArea = true
	ts := activeTriggering("asset-1")

	left := StopCriteria{ConnectID: "asset-1", AreasReported: true, CurrentAreas: []domain.Area{eezNLD}}
	still := StopCriteria{ConnectID: "asset-1", AreasReported: true, CurrentAreas: []domain.Area{eezNLD, eezBEL}}
	nowhere := StopCriteria{ConnectID: "asset-1", AreasReported: true}
	unknown := StopCriteria{ConnectID: "asset-1"}

	assert.True(t, MatchesStop(ts, sub, left))
	assert.False(t, MatchesStop(ts, sub, still))
	assert.True(t, MatchesStop(ts, sub, nowhere))
	assert.False(t, MatchesStop(ts, sub, unknown))

	sub.StopWhenQuitArea = false
	assert.False(t, MatchesStop(ts, sub, left))
}

func TestMatchesStop_Activity(t *testing.T) {
	sub := baseSubscription()
	sub.StopActivities = []domain.Activity{arrival}
	ts := activeTriggering("asset-1")

	assert.True(t, MatchesStop(ts, sub, StopCriteria{ConnectID: "asset-1", Activities: []domain.Activity{arrival}}))
	assert.False(t, MatchesStop(ts, sub, StopCriteria{ConnectID: "asset-1", Activities: []domain.Activity{departure}}))
	assert.False(t, MatchesStop(ts, sub, StopCriteria{ConnectID: "asset-2", Activities: []domain.Activity{arrival}}))

	ts.Status = domain.TriggeredStatusStopped
	assert.False(t, MatchesStop(ts, sub, StopCriteria{ConnectID: "asset-1", Activities: []domain.Activity{arrival}}))
}
