package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/matching"
)

var validAt = time.Date(2020, 5, 6, 13, 0, 0, 0, time.UTC)

func TestBuildFindSubscriptions_ValidityOnly(t *testing.T) {
	query, args := buildFindSubscriptions(matching.Criteria{ValidAt: validAt})

	assert.Contains(t, query, "s.active")
	assert.Contains(t, query, "s.start_date <= $1")
	assert.Contains(t, query, "$1 < s.end_date")
	assert.NotContains(t, query, "subscription_areas")
	assert.NotContains(t, query, "subscription_assets")
	assert.NotContains(t, query, "subscription_senders")
	assert.True(t, strings.HasSuffix(query, "ORDER BY s.id"))
	require.Len(t, args, 1)
	assert.Equal(t, validAt, args[0])
}

func TestBuildFindSubscriptions_AllCriteria(t *testing.T) {
	c := matching.Criteria{
		Areas: []domain.Area{{Type: domain.AreaTypeEEZ, GID: "12"}},
		Assets: []matching.AssetCriterion{
			{Type: domain.AssetTypeAsset, GUID: "asset-1"},
			{Type: domain.AssetTypeAssetGroup, GUID: "group-1"},
		},
		StartActivities: []domain.Activity{{Type: "FISHING_ACTIVITY", Value: "DEPARTURE"}},
		Sender:          &domain.Sender{Organisation: "BEL", Endpoint: "BEL-EP", Channel: "FLUX"},
		ValidAt:         validAt,
		TriggerTypes:    []domain.TriggerType{domain.TriggerTypeIncFAReport},
	}

	query, args := buildFindSubscriptions(c)

	assert.Contains(t, query, "s.allow_with_no_area")
	assert.Contains(t, query, "unnest($2::text[], $3::text[])")
	assert.Contains(t, query, "s.allow_with_no_asset")
	assert.Contains(t, query, "x.guid = ANY($4)")
	assert.Contains(t, query, "x.guid = ANY($5)")
	assert.Contains(t, query, "s.allow_with_no_start_activity")
	assert.Contains(t, query, "x.kind = 'START'")
	assert.Contains(t, query, "x.organisation = $8")
	assert.Contains(t, query, "x.channel = $10")
	assert.Contains(t, query, "s.trigger_type = ANY($11)")

	require.Len(t, args, 11)
	assert.Equal(t, pq.Array([]string{"EEZ"}), args[1])
	assert.Equal(t, pq.Array([]string{"12"}), args[2])
	assert.Equal(t, pq.Array([]string{"asset-1"}), args[3])
	assert.Equal(t, pq.Array([]string{"group-1"}), args[4])
	assert.Equal(t, pq.Array([]string{"FISHING_ACTIVITY"}), args[5])
	assert.Equal(t, pq.Array([]string{"DEPARTURE"}), args[6])
	assert.Equal(t, "BEL", args[7])
	assert.Equal(t, pq.Array([]string{"INC_FA_REPORT"}), args[10])
}

func TestBuildFindSubscriptions_AreasReportedWithoutAreas(t *testing.T) {
	query, args := buildFindSubscriptions(matching.Criteria{AreasReported: true, ValidAt: validAt})

	assert.Contains(t, query, "s.allow_with_no_area")
	require.Len(t, args, 3)
	assert.Equal(t, pq.Array([]string{}), args[1], "empty arrays are bound, never NULL")
}

func TestBuildFindSubscriptions_AssetsOfOneKind(t *testing.T) {
	_, args := buildFindSubscriptions(matching.Criteria{
		Assets:  []matching.AssetCriterion{{Type: domain.AssetTypeAsset, GUID: "asset-1"}},
		ValidAt: validAt,
	})

	require.Len(t, args, 3)
	assert.Equal(t, pq.Array([]string{}), args[2])
}

func TestBuildFindByStopCondition(t *testing.T) {
	tests := []struct {
		name     string
		criteria matching.StopCriteria
		wantOK   bool
		contains []string
		excludes []string
		wantArgs int
	}{
		{
			name:     "no connect id",
			criteria: matching.StopCriteria{AreasReported: true},
		},
		{
			name:     "nothing that can stop",
			criteria: matching.StopCriteria{ConnectID: "asset-1"},
		},
		{
			name:     "area exit",
			criteria: matching.StopCriteria{ConnectID: "asset-1", AreasReported: true},
			wantOK:   true,
			contains: []string{"s.stop_when_quit_area", "NOT EXISTS"},
			excludes: []string{"x.kind = 'STOP'"},
			wantArgs: 4,
		},
		{
			name: "terminating activity",
			criteria: matching.StopCriteria{
				ConnectID:  "asset-1",
				Activities: []domain.Activity{{Type: "FISHING_ACTIVITY", Value: "ARRIVAL"}},
			},
			wantOK:   true,
			contains: []string{"x.kind = 'STOP'"},
			excludes: []string{"s.stop_when_quit_area"},
			wantArgs: 4,
		},
		{
			name: "both",
			criteria: matching.StopCriteria{
				ConnectID:     "asset-1",
				AreasReported: true,
				CurrentAreas:  []domain.Area{{Type: domain.AreaTypePort, GID: "BEZEE"}},
				Activities:    []domain.Activity{{Type: "FISHING_ACTIVITY", Value: "ARRIVAL"}},
			},
			wantOK:   true,
			contains: []string{"s.stop_when_quit_area", "x.kind = 'STOP'", "\n    OR "},
			wantArgs: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, ok := buildFindByStopCondition(tt.criteria)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Contains(t, query, "t.status = 'ACTIVE'")
			assert.Contains(t, query, "d.key = $1")
			assert.Contains(t, query, "d.value = $2")
			for _, s := range tt.contains {
				assert.Contains(t, query, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, query, s)
			}
			require.Len(t, args, tt.wantArgs)
			assert.Equal(t, domain.DataKeyConnectID, args[0])
			assert.Equal(t, "asset-1", args[1])
		})
	}
}

func TestSplitData_SortedParallelArrays(t *testing.T) {
	keys, values := splitData(map[string]string{"reportId_1": "R-1", "connectId": "asset-1", "CFR": "BEL000123"})

	assert.Equal(t, []string{"CFR", "connectId", "reportId_1"}, keys)
	assert.Equal(t, []string{"BEL000123", "asset-1", "R-1"}, values)

	keys, values = splitData(nil)
	assert.NotNil(t, keys)
	assert.NotNil(t, values)
	assert.Empty(t, keys)
}
