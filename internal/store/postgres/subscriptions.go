package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

// Activity kinds in subscription_activities.
const (
	activityStart = "START"
	activityStop  = "STOP"
)

// loadSubscriptions reads the subscriptions with the given ids and their
// criteria rows. The result is ordered by id; unknown ids are skipped.
func loadSubscriptions(ctx context.Context, q querier, ids []int64) ([]domain.Subscription, error) {
	rows, err := q.QueryContext(ctx, querySubscriptionsByIDs, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Subscription
	index := make(map[int64]int)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		index[sub.ID] = len(result)
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}

	if err := eachRow(ctx, q, queryAreasBySubscriptionIDs, ids, func(r *sql.Rows) error {
		var id int64
		var a domain.Area
		var areaType string
		if err := r.Scan(&id, &areaType, &a.GID); err != nil {
			return err
		}
		a.Type = domain.AreaType(areaType)
		if i, ok := index[id]; ok {
			result[i].Areas = append(result[i].Areas, a)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := eachRow(ctx, q, queryAssetsBySubscriptionIDs, ids, func(r *sql.Rows) error {
		var id int64
		var assetType string
		var ref domain.AssetRef
		if err := r.Scan(&id, &assetType, &ref.GUID, &ref.Name); err != nil {
			return err
		}
		i, ok := index[id]
		if !ok {
			return nil
		}
		if domain.AssetType(assetType) == domain.AssetTypeAssetGroup {
			result[i].AssetGroups = append(result[i].AssetGroups, ref)
		} else {
			result[i].Assets = append(result[i].Assets, ref)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := eachRow(ctx, q, queryActivitiesBySubscriptionIDs, ids, func(r *sql.Rows) error {
		var id int64
		var kind string
		var act domain.Activity
		if err := r.Scan(&id, &kind, &act.Type, &act.Value); err != nil {
			return err
		}
		i, ok := index[id]
		if !ok {
			return nil
		}
		if kind == activityStop {
			result[i].StopActivities = append(result[i].StopActivities, act)
		} else {
			result[i].StartActivities = append(result[i].StartActivities, act)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := eachRow(ctx, q, querySendersBySubscriptionIDs, ids, func(r *sql.Rows) error {
		var id int64
		var snd domain.Sender
		if err := r.Scan(&id, &snd.Organisation, &snd.Endpoint, &snd.Channel); err != nil {
			return err
		}
		if i, ok := index[id]; ok {
			result[i].Senders = append(result[i].Senders, snd)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

func eachRow(ctx context.Context, q querier, query string, ids []int64, fn func(*sql.Rows) error) error {
	rows, err := q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanSubscription(rows *sql.Rows) (domain.Subscription, error) {
	var sub domain.Subscription
	var (
		messageType, historyUnit            string
		triggerType, frequencyUnit          string
		org, endpoint, channel              sql.NullString
		queryStart, queryEnd, nextExecution sql.NullTime
	)

	err := rows.Scan(
		&sub.ID,
		&sub.Name,
		&sub.Description,
		&sub.Active,
		&sub.StartDate,
		&sub.EndDate,
		&messageType,
		&org,
		&endpoint,
		&channel,
		&sub.Output.Email,
		pq.Array(&sub.Output.VesselIDs),
		&queryStart,
		&queryEnd,
		&sub.Output.History,
		&historyUnit,
		&triggerType,
		&sub.Execution.Frequency,
		&frequencyUnit,
		&sub.Execution.TimeExpression,
		&nextExecution,
		&sub.AllowWithNoArea,
		&sub.AllowWithNoAsset,
		&sub.AllowWithNoStartActivity,
		&sub.AllowWithNoSenders,
		&sub.StopWhenQuitArea,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return domain.Subscription{}, err
	}

	sub.StartDate = sub.StartDate.UTC()
	sub.EndDate = sub.EndDate.UTC()
	sub.Output.MessageType = domain.OutgoingMessageType(messageType)
	sub.Output.HistoryUnit = domain.TimeUnit(historyUnit)
	sub.Output.QueryStart = timePtr(queryStart)
	sub.Output.QueryEnd = timePtr(queryEnd)
	if org.Valid || endpoint.Valid || channel.Valid {
		sub.Output.Subscriber = &domain.Subscriber{
			Organisation: org.String,
			Endpoint:     endpoint.String,
			Channel:      channel.String,
		}
	}
	sub.Execution.TriggerType = domain.TriggerType(triggerType)
	sub.Execution.FrequencyUnit = domain.TimeUnit(frequencyUnit)
	sub.Execution.NextScheduledExecution = timePtr(nextExecution)
	return sub, nil
}
