package postgres

const subscriptionColumns = `
	s.id, s.name, s.description, s.active, s.start_date, s.end_date,
	s.message_type, s.subscriber_organisation, s.subscriber_endpoint, s.subscriber_channel,
	s.email, s.vessel_ids, s.query_start, s.query_end, s.history, s.history_unit,
	s.trigger_type, s.frequency, s.frequency_unit, s.time_expression, s.next_scheduled_execution,
	s.allow_with_no_area, s.allow_with_no_asset, s.allow_with_no_start_activity, s.allow_with_no_senders,
	s.stop_when_quit_area, s.created_at, s.updated_at`

const (
	queryInsertSubscription = `
INSERT INTO subscriptions (
	name, description, active, start_date, end_date,
	message_type, subscriber_organisation, subscriber_endpoint, subscriber_channel,
	email, vessel_ids, query_start, query_end, history, history_unit,
	trigger_type, frequency, frequency_unit, time_expression, next_scheduled_execution,
	allow_with_no_area, allow_with_no_asset, allow_with_no_start_activity, allow_with_no_senders,
	stop_when_quit_area, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
	$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $26
)
RETURNING id`

	queryInsertSubscriptionArea = `
INSERT INTO subscription_areas (subscription_id, area_type, gid) VALUES ($1, $2, $3)`

	queryInsertSubscriptionAsset = `
INSERT INTO subscription_assets (subscription_id, asset_type, guid, name) VALUES ($1, $2, $3, $4)`

	queryInsertSubscriptionActivity = `
INSERT INTO subscription_activities (subscription_id, kind, type, value) VALUES ($1, $2, $3, $4)`

	queryInsertSubscriptionSender = `
INSERT INTO subscription_senders (subscription_id, organisation, endpoint, channel) VALUES ($1, $2, $3, $4)`

	querySubscriptionsByIDs = `
SELECT` + subscriptionColumns + `
FROM subscriptions s
WHERE s.id = ANY($1)
ORDER BY s.id`

	queryAreasBySubscriptionIDs = `
SELECT subscription_id, area_type, gid
FROM subscription_areas
WHERE subscription_id = ANY($1)
ORDER BY subscription_id, area_type, gid`

	queryAssetsBySubscriptionIDs = `
SELECT subscription_id, asset_type, guid, name
FROM subscription_assets
WHERE subscription_id = ANY($1)
ORDER BY subscription_id, asset_type, guid`

	queryActivitiesBySubscriptionIDs = `
SELECT subscription_id, kind, type, value
FROM subscription_activities
WHERE subscription_id = ANY($1)
ORDER BY subscription_id, kind, type, value`

	querySendersBySubscriptionIDs = `
SELECT subscription_id, organisation, endpoint, channel
FROM subscription_senders
WHERE subscription_id = ANY($1)
ORDER BY subscription_id, organisation, endpoint, channel`

	queryDueScheduledSubscriptionIDs = `
SELECT id
FROM subscriptions
WHERE trigger_type = 'SCHEDULER'
  AND active
  AND next_scheduled_execution IS NOT NULL
  AND next_scheduled_execution <= $1
  AND id > $2
ORDER BY id
LIMIT $3`

	queryLockSubscription = `
SELECT id FROM subscriptions WHERE id = $1 FOR UPDATE`

	queryUpdateNextScheduledExecution = `
UPDATE subscriptions
SET next_scheduled_execution = $2, updated_at = $3
WHERE id = $1`

	// queryActiveTriggeredHolding selects ACTIVE triggerings of a subscription
	// whose data holds every (key, value) pair of the parallel arrays $2, $3.
	queryActiveTriggeredHolding = `
SELECT t.id
FROM triggered_subscriptions t
WHERE t.subscription_id = $1
  AND t.status = 'ACTIVE'
  AND (
	SELECT count(*)
	FROM triggered_subscription_data d
	JOIN unnest($2::text[], $3::text[]) AS w(key, value)
	  ON d.key = w.key AND d.value = w.value
	WHERE d.triggered_subscription_id = t.id
  ) = cardinality($2::text[])
ORDER BY t.id`

	queryTriggeredByIDs = `
SELECT id, subscription_id, source, created_at, effective_from, status
FROM triggered_subscriptions
WHERE id = ANY($1)
ORDER BY id`

	queryTriggeredBySubscription = `
SELECT id, subscription_id, source, created_at, effective_from, status
FROM triggered_subscriptions
WHERE subscription_id = $1
ORDER BY id`

	queryTriggeredDataByIDs = `
SELECT triggered_subscription_id, key, value
FROM triggered_subscription_data
WHERE triggered_subscription_id = ANY($1)`

	queryInsertTriggered = `
INSERT INTO triggered_subscriptions (subscription_id, source, created_at, effective_from, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`

	queryInsertTriggeredData = `
INSERT INTO triggered_subscription_data (triggered_subscription_id, key, value)
SELECT $1, k, v FROM unnest($2::text[], $3::text[]) AS d(k, v)
ON CONFLICT (triggered_subscription_id, key) DO NOTHING`

	queryInsertExecution = `
INSERT INTO subscription_executions (triggered_subscription_id, requested_time, status)
VALUES ($1, $2, $3)`

	queryUpdateTriggeredStatus = `
UPDATE triggered_subscriptions SET status = $2 WHERE id = $1`

	queryLockTriggered = `
SELECT id FROM triggered_subscriptions WHERE id = $1 FOR UPDATE`

	queryTriggeredData = `
SELECT key, value FROM triggered_subscription_data WHERE triggered_subscription_id = $1`

	querySubscriptionExists = `
SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id = $1)`

	// queryClaimDueExecutions moves due PENDING executions of ACTIVE
	// triggerings to QUEUED. SKIP LOCKED lets concurrent claimers take
	// disjoint batches.
	queryClaimDueExecutions = `
UPDATE subscription_executions e
SET status = 'QUEUED', queued_time = $1
WHERE e.id IN (
	SELECT x.id
	FROM subscription_executions x
	JOIN triggered_subscriptions t ON t.id = x.triggered_subscription_id
	WHERE x.status = 'PENDING' AND x.requested_time <= $1 AND t.status = 'ACTIVE'
	ORDER BY x.id
	LIMIT $2
	FOR UPDATE OF x SKIP LOCKED
)
RETURNING e.id, e.triggered_subscription_id, e.requested_time, e.queued_time, e.execution_time, e.status`

	queryRequeueExecution = `
UPDATE subscription_executions
SET status = 'PENDING', queued_time = NULL
WHERE id = $1 AND status = 'QUEUED'`

	queryExecutionExists = `
SELECT EXISTS (SELECT 1 FROM subscription_executions WHERE id = $1)`

	queryExecutionsByTriggered = `
SELECT id, triggered_subscription_id, requested_time, queued_time, execution_time, status
FROM subscription_executions
WHERE triggered_subscription_id = $1
ORDER BY id`
)
