package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/matching"
)

// Store implements every store interface of the engine on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL store with the given database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSubscription validates and inserts sub with its criteria rows in a transaction.
func (s *Store) CreateSubscription(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	if err := sub.Validate(); err != nil {
		return domain.Subscription{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Subscription{}, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = sub.CreatedAt

	var org, endpoint, channel sql.NullString
	if sb := sub.Output.Subscriber; sb != nil {
		org = sql.NullString{String: sb.Organisation, Valid: true}
		endpoint = sql.NullString{String: sb.Endpoint, Valid: true}
		channel = sql.NullString{String: sb.Channel, Valid: true}
	}
	vesselIDs := sub.Output.VesselIDs
	if vesselIDs == nil {
		vesselIDs = []string{}
	}

	err = tx.QueryRowContext(ctx, queryInsertSubscription,
		sub.Name,
		sub.Description,
		sub.Active,
		sub.StartDate,
		sub.EndDate,
		string(sub.Output.MessageType),
		org,
		endpoint,
		channel,
		sub.Output.Email,
		pq.Array(vesselIDs),
		nullTime(sub.Output.QueryStart),
		nullTime(sub.Output.QueryEnd),
		sub.Output.History,
		string(sub.Output.HistoryUnit),
		string(sub.Execution.TriggerType),
		sub.Execution.Frequency,
		string(sub.Execution.FrequencyUnit),
		sub.Execution.TimeExpression,
		nullTime(sub.Execution.NextScheduledExecution),
		sub.AllowWithNoArea,
		sub.AllowWithNoAsset,
		sub.AllowWithNoStartActivity,
		sub.AllowWithNoSenders,
		sub.StopWhenQuitArea,
		sub.CreatedAt,
	).Scan(&sub.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return domain.Subscription{}, fmt.Errorf("subscription name %q already in use", sub.Name)
		}
		return domain.Subscription{}, err
	}

	for _, a := range sub.Areas {
		if _, err := tx.ExecContext(ctx, queryInsertSubscriptionArea, sub.ID, string(a.Type), a.GID); err != nil {
			return domain.Subscription{}, fmt.Errorf("insert area %s: %w", a, err)
		}
	}
	for _, ref := range sub.Assets {
		if _, err := tx.ExecContext(ctx, queryInsertSubscriptionAsset, sub.ID, string(domain.AssetTypeAsset), ref.GUID, ref.Name); err != nil {
			return domain.Subscription{}, fmt.Errorf("insert asset %s: %w", ref.GUID, err)
		}
	}
	for _, ref := range sub.AssetGroups {
		if _, err := tx.ExecContext(ctx, queryInsertSubscriptionAsset, sub.ID, string(domain.AssetTypeAssetGroup), ref.GUID, ref.Name); err != nil {
			return domain.Subscription{}, fmt.Errorf("insert asset group %s: %w", ref.GUID, err)
		}
	}
	for _, act := range sub.StartActivities {
		if _, err := tx.ExecContext(ctx, queryInsertSubscriptionActivity, sub.ID, activityStart, act.Type, act.Value); err != nil {
			return domain.Subscription{}, fmt.Errorf("insert start activity: %w", err)
		}
	}
	for _, act := range sub.StopActivities {
		if _, err := tx.ExecContext(ctx, queryInsertSubscriptionActivity, sub.ID, activityStop, act.Type, act.Value); err != nil {
			return domain.Subscription{}, fmt.Errorf("insert stop activity: %w", err)
		}
	}
	for _, snd := range sub.Senders {
		if _, err := tx.ExecContext(ctx, queryInsertSubscriptionSender, sub.ID, snd.Organisation, snd.Endpoint, snd.Channel); err != nil {
			return domain.Subscription{}, fmt.Errorf("insert sender: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Subscription{}, err
	}
	return sub, nil
}

func (s *Store) FindSubscriptionByID(ctx context.Context, id int64) (domain.Subscription, error) {
	return findSubscriptionByID(ctx, s.db, id)
}

func findSubscriptionByID(ctx context.Context, q querier, id int64) (domain.Subscription, error) {
	subs, err := loadSubscriptions(ctx, q, []int64{id})
	if err != nil {
		return domain.Subscription{}, err
	}
	if len(subs) == 0 {
		return domain.Subscription{}, domain.NotFound("subscription", id)
	}
	return subs[0], nil
}

// FindSubscriptions returns every subscription matching c, ordered by id.
func (s *Store) FindSubscriptions(ctx context.Context, c matching.Criteria) ([]domain.Subscription, error) {
	query, args := buildFindSubscriptions(c)
	ids, err := queryIDs(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("match subscriptions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return loadSubscriptions(ctx, s.db, ids)
}

func (s *Store) FindDueScheduledSubscriptionIDs(ctx context.Context, now time.Time, afterID int64, limit int) ([]int64, error) {
	return queryIDs(ctx, s.db, queryDueScheduledSubscriptionIDs, now, afterID, limit)
}

// UpdateScheduledSubscription row-locks subscription id, passes it to fn and
// stores the next execution fn returns. An error from fn rolls back.
func (s *Store) UpdateScheduledSubscription(ctx context.Context, id int64, fn func(domain.Subscription) (*time.Time, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var locked int64
	err = tx.QueryRowContext(ctx, queryLockSubscription, id).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound("subscription", id)
	}
	if err != nil {
		return fmt.Errorf("lock subscription %d: %w", id, err)
	}

	sub, err := findSubscriptionByID(ctx, tx, id)
	if err != nil {
		return err
	}

	next, err := fn(sub)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, queryUpdateNextScheduledExecution, id, nullTime(next), time.Now().UTC()); err != nil {
		return fmt.Errorf("update next execution of subscription %d: %w", id, err)
	}
	return tx.Commit()
}

func (s *Store) IsDuplicate(ctx context.Context, subscriptionID int64, data map[string]string) (bool, error) {
	ids, err := s.activeHolding(ctx, subscriptionID, data)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (s *Store) FindAlreadyActivated(ctx context.Context, subscriptionID int64, data map[string]string) ([]domain.TriggeredSubscription, error) {
	ids, err := s.activeHolding(ctx, subscriptionID, data)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return loadTriggered(ctx, s.db, queryTriggeredByIDs, pq.Array(ids))
}

func (s *Store) activeHolding(ctx context.Context, subscriptionID int64, data map[string]string) ([]int64, error) {
	keys, values := splitData(data)
	ids, err := queryIDs(ctx, s.db, queryActiveTriggeredHolding, subscriptionID, pq.Array(keys), pq.Array(values))
	if err != nil {
		return nil, fmt.Errorf("find active triggerings of subscription %d: %w", subscriptionID, err)
	}
	return ids, nil
}

// SaveTriggered inserts ts, its data rows and exec in one transaction.
func (s *Store) SaveTriggered(ctx context.Context, ts domain.TriggeredSubscription, exec domain.SubscriptionExecution) (domain.TriggeredSubscription, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.TriggeredSubscription{}, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, querySubscriptionExists, ts.SubscriptionID).Scan(&exists); err != nil {
		return domain.TriggeredSubscription{}, err
	}
	if !exists {
		return domain.TriggeredSubscription{}, domain.NotFound("subscription", ts.SubscriptionID)
	}

	err = tx.QueryRowContext(ctx, queryInsertTriggered,
		ts.SubscriptionID,
		ts.Source,
		ts.CreatedAt,
		ts.EffectiveFrom,
		string(ts.Status),
	).Scan(&ts.ID)
	if err != nil {
		return domain.TriggeredSubscription{}, fmt.Errorf("insert triggered subscription: %w", err)
	}

	if err := insertData(ctx, tx, ts.ID, ts.Data); err != nil {
		return domain.TriggeredSubscription{}, err
	}

	if _, err := tx.ExecContext(ctx, queryInsertExecution, ts.ID, exec.RequestedTime, string(exec.Status)); err != nil {
		return domain.TriggeredSubscription{}, fmt.Errorf("insert execution: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.TriggeredSubscription{}, err
	}
	if ts.Data == nil {
		ts.Data = map[string]string{}
	}
	return ts, nil
}

// MergeTriggeredData locks the triggered row, reads its data and inserts the
// entries merge returns in one transaction. Concurrent merges into the same
// triggering serialize on the row lock, so numbered keys never collide.
func (s *Store) MergeTriggeredData(ctx context.Context, triggeredID int64, merge func(data map[string]string) map[string]string) (map[string]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, queryLockTriggered, triggeredID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("triggered subscription", triggeredID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock triggered subscription %d: %w", triggeredID, err)
	}

	data, err := loadData(ctx, tx, triggeredID)
	if err != nil {
		return nil, err
	}

	added := make(map[string]string)
	for k, v := range merge(data) {
		if _, exists := data[k]; !exists {
			added[k] = v
		}
	}
	if err := insertData(ctx, tx, triggeredID, added); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return added, nil
}

func loadData(ctx context.Context, q querier, triggeredID int64) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, queryTriggeredData, triggeredID)
	if err != nil {
		return nil, fmt.Errorf("load data of triggered subscription %d: %w", triggeredID, err)
	}
	defer rows.Close()

	data := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		data[k] = v
	}
	return data, rows.Err()
}

func insertData(ctx context.Context, q querier, triggeredID int64, data map[string]string) error {
	if len(data) == 0 {
		return nil
	}
	keys, values := splitData(data)
	if _, err := q.ExecContext(ctx, queryInsertTriggeredData, triggeredID, pq.Array(keys), pq.Array(values)); err != nil {
		return fmt.Errorf("insert data of triggered subscription %d: %w", triggeredID, err)
	}
	return nil
}

func (s *Store) FindByStopConditionCriteria(ctx context.Context, c matching.StopCriteria) ([]domain.TriggeredSubscription, error) {
	query, args, ok := buildFindByStopCondition(c)
	if !ok {
		return nil, nil
	}
	ids, err := queryIDs(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("match stop conditions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return loadTriggered(ctx, s.db, queryTriggeredByIDs, pq.Array(ids))
}

func (s *Store) UpdateTriggeredStatus(ctx context.Context, triggeredID int64, status domain.TriggeredStatus) error {
	res, err := s.db.ExecContext(ctx, queryUpdateTriggeredStatus, triggeredID, string(status))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound("triggered subscription", triggeredID)
	}
	return nil
}

// ListTriggered returns the triggerings of subscriptionID ordered by id.
func (s *Store) ListTriggered(ctx context.Context, subscriptionID int64) ([]domain.TriggeredSubscription, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, querySubscriptionExists, subscriptionID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NotFound("subscription", subscriptionID)
	}
	out, err := loadTriggered(ctx, s.db, queryTriggeredBySubscription, subscriptionID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.TriggeredSubscription{}
	}
	return out, nil
}

// ClaimDueExecutions moves up to limit PENDING executions requested at or
// before now to QUEUED and returns them ordered by id.
func (s *Store) ClaimDueExecutions(ctx context.Context, now time.Time, limit int) ([]domain.SubscriptionExecution, error) {
	rows, err := s.db.QueryContext(ctx, queryClaimDueExecutions, now, limit)
	if err != nil {
		return nil, err
	}
	out, err := scanExecutions(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RequeueExecution returns a QUEUED execution to PENDING.
func (s *Store) RequeueExecution(ctx context.Context, executionID int64) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, queryExecutionExists, executionID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.NotFound("execution", executionID)
	}
	_, err := s.db.ExecContext(ctx, queryRequeueExecution, executionID)
	return err
}

// Executions returns the executions of triggeredID ordered by id.
func (s *Store) Executions(ctx context.Context, triggeredID int64) ([]domain.SubscriptionExecution, error) {
	rows, err := s.db.QueryContext(ctx, queryExecutionsByTriggered, triggeredID)
	if err != nil {
		return nil, err
	}
	return scanExecutions(rows)
}

func scanExecutions(rows *sql.Rows) ([]domain.SubscriptionExecution, error) {
	defer rows.Close()

	var result []domain.SubscriptionExecution
	for rows.Next() {
		var e domain.SubscriptionExecution
		var queued, executed sql.NullTime
		var status string
		if err := rows.Scan(&e.ID, &e.TriggeredSubscriptionID, &e.RequestedTime, &queued, &executed, &status); err != nil {
			return nil, err
		}
		e.QueuedTime = timePtr(queued)
		e.ExecutionTime = timePtr(executed)
		e.Status = domain.ExecutionStatus(status)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func queryIDs(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// loadTriggered runs query, which must select triggered_subscriptions
// columns, and attaches the data rows of every result.
func loadTriggered(ctx context.Context, q querier, query string, args ...any) ([]domain.TriggeredSubscription, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TriggeredSubscription
	index := make(map[int64]int)
	for rows.Next() {
		var ts domain.TriggeredSubscription
		var status string
		if err := rows.Scan(&ts.ID, &ts.SubscriptionID, &ts.Source, &ts.CreatedAt, &ts.EffectiveFrom, &status); err != nil {
			return nil, err
		}
		ts.Status = domain.TriggeredStatus(status)
		ts.Data = map[string]string{}
		index[ts.ID] = len(result)
		result = append(result, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(result))
	for _, ts := range result {
		ids = append(ids, ts.ID)
	}
	dataRows, err := q.QueryContext(ctx, queryTriggeredDataByIDs, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer dataRows.Close()

	for dataRows.Next() {
		var d domain.TriggeredSubscriptionData
		if err := dataRows.Scan(&d.TriggeredSubscriptionID, &d.Key, &d.Value); err != nil {
			return nil, err
		}
		if i, ok := index[d.TriggeredSubscriptionID]; ok {
			result[i].Data[d.Key] = d.Value
		}
	}
	if err := dataRows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// isDuplicateKeyError reports whether err is a PostgreSQL unique violation.
func isDuplicateKeyError(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
