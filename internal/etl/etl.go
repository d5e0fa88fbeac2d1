// Package etl holds the pipeline steps of the song-play lake:
//
//	ProcessCatalog: song catalog -> songs, artist
//	ProcessLogs:    activity log -> users, time (and the NextSong events)
//	BuildSongPlays: NextSong events x catalog -> songplays
//
// The catalog phase and the log phase share nothing but the session and run
// concurrently (see Run). Inside a phase every step is sequential; data
// parallelism lives in the table engine.
package etl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sparkify/internal/engine"
	"sparkify/internal/metrics"
)

// Output table names.
const (
	SongsTable     = "songs"
	ArtistTable    = "artist"
	UsersTable     = "users"
	TimeTable      = "time"
	SongPlaysTable = "songplays"
)

// Run executes both phases concurrently and returns the first error. The
// other phase is canceled through ctx when one fails.
func Run(ctx context.Context, sess *engine.Session) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ProcessCatalog(gctx, sess)
	})
	g.Go(func() error {
		events, err := ProcessLogs(gctx, sess)
		if err != nil {
			return err
		}
		return BuildSongPlays(gctx, sess, events)
	})
	return g.Wait()
}

// timed runs fn as a named step: duration and outcome go to metrics and the
// debug log.
func timed(sess *engine.Session, step string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	metrics.RecordStep(sess.Job(), step, err, elapsed)
	sess.Log().Debug("etl: step done",
		zap.String("step", step),
		zap.Duration("elapsed", elapsed.Truncate(time.Millisecond)),
		zap.Error(err),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	return nil
}
