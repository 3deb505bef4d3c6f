// Package data records episode transitions to SQLite and summarizes them.
package data

import (
	"context"
	"database/sql"
	_ "embed"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/services/episode"
	"github.com/turtlelab/localize/utils"
)

// schema.sql creates the episodes and transitions tables.
//
//go:embed schema.sql
var schemaSQL string

const queueSize = 64

type row struct {
	episodeID string
	tr        episode.Transition
	at        time.Time
	// barrier, when set, is closed once every earlier row is written.
	barrier chan struct{}
}

// Recorder appends transitions to a SQLite database. Writes happen on a background goroutine so
// recording never stalls the control loop.
type Recorder struct {
	db     *sql.DB
	queue  chan row
	writer errgroup.Group
	logger logging.Logger
}

// NewRecorder opens (creating if needed) the database at path.
func NewRecorder(path string, logger logging.Logger) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "creating schema"), db.Close())
	}
	r := &Recorder{db: db, queue: make(chan row, queueSize), logger: logger}
	r.writer.Go(r.write)
	logger.Debugw("recorder opened", "path", path)
	return r, nil
}

// StartEpisode registers a new episode and returns its id.
func (r *Recorder) StartEpisode(ctx context.Context, notes string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO episodes (episode_id, started_at, notes) VALUES (?, ?, ?)`,
		id, time.Now().UnixNano(), notes)
	if err != nil {
		return "", errors.Wrap(err, "failed to start episode")
	}
	return id, nil
}

// Record queues one transition of episodeID.
func (r *Recorder) Record(ctx context.Context, episodeID string, tr episode.Transition) error {
	select {
	case r.queue <- row{episodeID: episodeID, tr: tr, at: time.Now()}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) write() error {
	var errs error
	for rw := range r.queue {
		if rw.barrier != nil {
			close(rw.barrier)
			continue
		}
		tr := rw.tr
		_, err := r.db.Exec(`
			INSERT INTO transitions
				(episode_id, step, action, reward, error, entropy, done, collision, elapsed_ns, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rw.episodeID, tr.State.Step, tr.Action.String(),
			finite(tr.Reward), finite(tr.State.Error), finite(tr.State.Entropy),
			tr.Done, tr.State.Collision, tr.Elapsed.Nanoseconds(), rw.at.UnixNano())
		if err != nil {
			r.logger.Warnw("transition not recorded", "episode", rw.episodeID, "step", tr.State.Step, "error", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// finite stores non-finite values as NULL.
func finite(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: utils.IsFinite(v)}
}

// Flush waits until every transition queued so far is written.
func (r *Recorder) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	select {
	case r.queue <- row{barrier: barrier}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes the queued transitions and closes the database.
func (r *Recorder) Close() error {
	close(r.queue)
	return multierr.Combine(r.writer.Wait(), r.db.Close())
}

// Summary describes the rewards of one episode.
type Summary struct {
	EpisodeID  string
	Steps      int
	Done       bool
	Collisions int
	Total      float64
	Mean       float64
	StdDev     float64
	Min        float64
	Max        float64
	FinalError float64
}

// summarizer accumulates the transitions of one episode.
type summarizer struct {
	s       Summary
	rewards stats.Float64Data
}

func (sm *summarizer) add(reward, estErr float64, done, collision bool) {
	sm.s.Steps++
	if utils.IsFinite(reward) {
		sm.rewards = append(sm.rewards, reward)
	}
	if utils.IsFinite(estErr) {
		sm.s.FinalError = estErr
	}
	if collision {
		sm.s.Collisions++
	}
	sm.s.Done = sm.s.Done || done
}

func (sm *summarizer) summary() Summary {
	s := sm.s
	if len(sm.rewards) == 0 {
		return s
	}
	// The stats functions only fail on empty input.
	s.Total, _ = sm.rewards.Sum()
	s.Mean, _ = sm.rewards.Mean()
	s.StdDev, _ = sm.rewards.StandardDeviation()
	s.Min, _ = sm.rewards.Min()
	s.Max, _ = sm.rewards.Max()
	return s
}

// Summarize reads back the transitions of episodeID. Only transitions already written are
// included.
func Summarize(ctx context.Context, db *sql.DB, episodeID string) (Summary, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT reward, error, done, collision FROM transitions WHERE episode_id = ? ORDER BY step`, episodeID)
	if err != nil {
		return Summary{}, err
	}
	defer goutils.UncheckedErrorFunc(rows.Close)

	sm := summarizer{s: Summary{EpisodeID: episodeID, FinalError: math.Inf(1)}}
	for rows.Next() {
		var reward, estErr sql.NullFloat64
		var done, collision bool
		if err := rows.Scan(&reward, &estErr, &done, &collision); err != nil {
			return Summary{}, err
		}
		sm.add(nullToInf(reward), nullToInf(estErr), done, collision)
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}
	if sm.s.Steps == 0 {
		return sm.s, errors.Errorf("no transitions for episode %s", episodeID)
	}
	return sm.summary(), nil
}

// SummarizeTransitions summarizes transitions kept in memory.
func SummarizeTransitions(episodeID string, transitions []episode.Transition) Summary {
	sm := summarizer{s: Summary{EpisodeID: episodeID, FinalError: math.Inf(1)}}
	for _, tr := range transitions {
		sm.add(tr.Reward, tr.State.Error, tr.Done, tr.State.Collision)
	}
	return sm.summary()
}

func nullToInf(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.Inf(1)
	}
	return v.Float64
}

// Summary flushes the queue and summarizes episodeID.
func (r *Recorder) Summary(ctx context.Context, episodeID string) (Summary, error) {
	if err := r.Flush(ctx); err != nil {
		return Summary{}, err
	}
	return Summarize(ctx, r.db, episodeID)
}
