package postgres

import (
	"slices"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/matching"
)

// argList collects positional parameters while a statement is assembled.
type argList struct {
	args []any
}

func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return "$" + strconv.Itoa(len(a.args))
}

// buildFindSubscriptions compiles matching.Matches into one statement that
// selects the ids of the matching subscriptions.
func buildFindSubscriptions(c matching.Criteria) (string, []any) {
	var a argList
	validAt := a.add(c.ValidAt)

	where := []string{
		"s.active",
		"s.start_date <= " + validAt,
		validAt + " < s.end_date",
	}

	if len(c.Areas) > 0 || c.AreasReported {
		types, gids := splitAreas(c.Areas)
		where = append(where, `((s.allow_with_no_area AND NOT EXISTS (
		SELECT 1 FROM subscription_areas a WHERE a.subscription_id = s.id))
	OR EXISTS (
		SELECT 1 FROM subscription_areas a
		JOIN unnest(`+a.add(pq.Array(types))+`::text[], `+a.add(pq.Array(gids))+`::text[]) AS c(area_type, gid)
		  ON a.area_type = c.area_type AND a.gid = c.gid
		WHERE a.subscription_id = s.id))`)
	}

	if len(c.Assets) > 0 {
		assets := nonNil(c.AssetGUIDs(domain.AssetTypeAsset))
		groups := nonNil(c.AssetGUIDs(domain.AssetTypeAssetGroup))
		where = append(where, `((s.allow_with_no_asset AND NOT EXISTS (
		SELECT 1 FROM subscription_assets x WHERE x.subscription_id = s.id))
	OR EXISTS (
		SELECT 1 FROM subscription_assets x
		WHERE x.subscription_id = s.id
		  AND ((x.asset_type = 'ASSET' AND x.guid = ANY(`+a.add(pq.Array(assets))+`))
		    OR (x.asset_type = 'ASSET_GROUP' AND x.guid = ANY(`+a.add(pq.Array(groups))+`)))))`)
	}

	if len(c.StartActivities) > 0 {
		types, values := splitActivities(c.StartActivities)
		where = append(where, `((s.allow_with_no_start_activity AND NOT EXISTS (
		SELECT 1 FROM subscription_activities x WHERE x.subscription_id = s.id AND x.kind = 'START'))
	OR EXISTS (
		SELECT 1 FROM subscription_activities x
		JOIN unnest(`+a.add(pq.Array(types))+`::text[], `+a.add(pq.Array(values))+`::text[]) AS c(type, value)
		  ON x.type = c.type AND x.value = c.value
		WHERE x.subscription_id = s.id AND x.kind = 'START'))`)
	}

	if c.Sender != nil {
		where = append(where, `((s.allow_with_no_senders AND NOT EXISTS (
		SELECT 1 FROM subscription_senders x WHERE x.subscription_id = s.id))
	OR EXISTS (
		SELECT 1 FROM subscription_senders x
		WHERE x.subscription_id = s.id
		  AND x.organisation = `+a.add(c.Sender.Organisation)+`
		  AND x.endpoint = `+a.add(c.Sender.Endpoint)+`
		  AND x.channel = `+a.add(c.Sender.Channel)+`))`)
	}

	if len(c.TriggerTypes) > 0 {
		types := make([]string, len(c.TriggerTypes))
		for i, t := range c.TriggerTypes {
			types[i] = string(t)
		}
		where = append(where, "s.trigger_type = ANY("+a.add(pq.Array(types))+")")
	}

	query := "SELECT s.id FROM subscriptions s\nWHERE " + strings.Join(where, "\n  AND ") + "\nORDER BY s.id"
	return query, a.args
}

// buildFindByStopCondition compiles matching.MatchesStop. ok is false when
// the criteria cannot stop anything.
func buildFindByStopCondition(c matching.StopCriteria) (query string, args []any, ok bool) {
	if c.ConnectID == "" {
		return "", nil, false
	}

	var a argList
	connectKey := a.add(domain.DataKeyConnectID)
	connectID := a.add(c.ConnectID)

	var reasons []string
	if c.AreasReported {
		types, gids := splitAreas(c.CurrentAreas)
		reasons = append(reasons, `(s.stop_when_quit_area
		AND EXISTS (SELECT 1 FROM subscription_areas a WHERE a.subscription_id = s.id)
		AND NOT EXISTS (
			SELECT 1 FROM subscription_areas a
			JOIN unnest(`+a.add(pq.Array(types))+`::text[], `+a.add(pq.Array(gids))+`::text[]) AS c(area_type, gid)
			  ON a.area_type = c.area_type AND a.gid = c.gid
			WHERE a.subscription_id = s.id))`)
	}
	if len(c.Activities) > 0 {
		types, values := splitActivities(c.Activities)
		reasons = append(reasons, `EXISTS (
		SELECT 1 FROM subscription_activities x
		JOIN unnest(`+a.add(pq.Array(types))+`::text[], `+a.add(pq.Array(values))+`::text[]) AS c(type, value)
		  ON x.type = c.type AND x.value = c.value
		WHERE x.subscription_id = s.id AND x.kind = 'STOP')`)
	}
	if len(reasons) == 0 {
		return "", nil, false
	}

	query = `SELECT t.id
FROM triggered_subscriptions t
JOIN subscriptions s ON s.id = t.subscription_id
JOIN triggered_subscription_data d ON d.triggered_subscription_id = t.id
WHERE t.status = 'ACTIVE'
  AND d.key = ` + connectKey + `
  AND d.value = ` + connectID + `
  AND (` + strings.Join(reasons, "\n    OR ") + `)
ORDER BY t.id`
	return query, a.args, true
}

func splitAreas(areas []domain.Area) (types, gids []string) {
	types = make([]string, 0, len(areas))
	gids = make([]string, 0, len(areas))
	for _, area := range areas {
		types = append(types, string(area.Type))
		gids = append(gids, area.GID)
	}
	return types, gids
}

func splitActivities(activities []domain.Activity) (types, values []string) {
	types = make([]string, 0, len(activities))
	values = make([]string, 0, len(activities))
	for _, act := range activities {
		types = append(types, act.Type)
		values = append(values, act.Value)
	}
	return types, values
}

// splitData flattens data into parallel key/value arrays in key order.
func splitData(data map[string]string) (keys, values []string) {
	keys = make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	values = make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, data[k])
	}
	return keys, values
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
