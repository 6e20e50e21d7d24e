// Package leaderelection makes sure only one instance runs the scheduled
// triggering service and the execution enqueuer.
//
// Leadership is a PostgreSQL session-scoped advisory lock held on a
// dedicated connection. There is no TTL: the lock lives as long as the
// connection, and the server releases it when the session ends. The
// heartbeat ping only detects a dead local connection so duties stop
// promptly; it does not renew anything.
package leaderelection

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"
)

// Session is one attempt at holding the lock.
type Session interface {
	TryLock(ctx context.Context) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

type Locker interface {
	Open(ctx context.Context) (Session, error)
}

// MetricsSink records leadership changes. Methods must not block.
type MetricsSink interface {
	LeaderStatusChanged(isLeader bool)
}

// Elector runs duties while this instance holds the lock.
type Elector struct {
	locker            Locker
	retryInterval     time.Duration
	heartbeatInterval time.Duration
	metrics           MetricsSink
}

func New(locker Locker, retryInterval, heartbeatInterval time.Duration) *Elector {
	return &Elector{
		locker:            locker,
		retryInterval:     retryInterval,
		heartbeatInterval: heartbeatInterval,
	}
}

func (e *Elector) WithMetrics(sink MetricsSink) *Elector {
	e.metrics = sink
	return e
}

// Run competes for leadership until ctx is cancelled. While leader, duties
// runs with a context that is cancelled when leadership is lost; Run waits
// for duties to return before competing again.
func (e *Elector) Run(ctx context.Context, duties func(ctx context.Context)) {
	log.Printf("leader: starting election loop (retry=%s, heartbeat=%s)", e.retryInterval, e.heartbeatInterval)

	for {
		reason := e.runOnce(ctx, duties)

		if ctx.Err() != nil {
			log.Println("leader: election loop stopped")
			return
		}
		if reason != "" {
			log.Printf("leader: lost leadership (reason=%s), will retry in %s", reason, e.retryInterval)
		}

		select {
		case <-ctx.Done():
			log.Println("leader: election loop stopped")
			return
		case <-time.After(e.retryInterval):
		}
	}
}

// runOnce tries to take the lock and, on success, holds it while duties run.
// Returns the reason leadership ended, or "" when the lock was not taken.
func (e *Elector) runOnce(ctx context.Context, duties func(ctx context.Context)) string {
	session, err := e.locker.Open(ctx)
	if err != nil {
		log.Printf("leader: failed to open lock session: %v", err)
		return ""
	}
	defer session.Close()

	acquired, err := session.TryLock(ctx)
	if err != nil {
		log.Printf("leader: lock attempt failed: %v", err)
		return ""
	}
	if !acquired {
		return ""
	}

	log.Println("leader: acquired leadership")
	e.setStatus(true)

	leaderCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		duties(leaderCtx)
	}()

	reason := e.hold(ctx, session)

	cancel()
	wg.Wait()
	e.setStatus(false)
	log.Println("leader: duties stopped")
	return reason
}

func (e *Elector) hold(ctx context.Context, session Session) string {
	ticker := time.NewTicker(e.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "shutdown"
		case <-ticker.C:
			if err := session.Ping(ctx); err != nil {
				if ctx.Err() != nil {
					return "shutdown"
				}
				log.Printf("leader: lock session ping failed: %v", err)
				return "conn_lost"
			}
		}
	}
}

func (e *Elector) setStatus(leader bool) {
	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(leader)
	}
}

// PostgresLocker takes pg_try_advisory_lock(key) on a dedicated connection.
type PostgresLocker struct {
	db  *sql.DB
	key int64
}

func NewPostgresLocker(db *sql.DB, key int64) *PostgresLocker {
	return &PostgresLocker{db: db, key: key}
}

func (l *PostgresLocker) Open(ctx context.Context) (Session, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &pgSession{conn: conn, key: l.key}, nil
}

type pgSession struct {
	conn *sql.Conn
	key  int64
}

func (s *pgSession) TryLock(ctx context.Context) (bool, error) {
	var acquired bool
	err := s.conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", s.key).Scan(&acquired)
	return acquired, err
}

func (s *pgSession) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close returns the connection to the pool after unlocking, so a pooled
// session never keeps the lock.
func (s *pgSession) Close() error {
	_, _ = s.conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock_all()")
	return s.conn.Close()
}
