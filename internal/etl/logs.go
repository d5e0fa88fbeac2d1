package etl

import (
	"context"

	"sparkify/internal/calendar"
	"sparkify/internal/engine"
	"sparkify/internal/metrics"
	"sparkify/internal/schema"
	"sparkify/internal/table"
)

// NextSongPage marks an event that is a song play.
const NextSongPage = "NextSong"

// timeColumns are appended to the events by ProcessLogs.
var timeColumns = []table.Column{
	{Name: "start_time", Type: schema.Long},
	{Name: "hour", Type: schema.Integer},
	{Name: "day", Type: schema.Integer},
	{Name: "week", Type: schema.Integer},
	{Name: "month", Type: schema.Integer},
	{Name: "year", Type: schema.Integer},
	{Name: "weekday", Type: schema.String},
}

var (
	userFields = []table.Field{
		table.Col("userId").As("user_id"),
		table.Col("firstName").As("first_name"),
		table.Col("lastName").As("last_name"),
		table.Col("gender"),
		table.Col("level"),
	}
	timeFields = []table.Field{
		table.Col("start_time"),
		table.Col("hour"),
		table.Col("day"),
		table.Col("week"),
		table.Col("month"),
		table.Col("year"),
		table.Col("weekday"),
	}
)

// ProcessLogs reads the activity log, keeps the NextSong events, and writes
// the users table and the time table (partitioned by year and month). It
// returns the NextSong events with the time columns appended, for
// BuildSongPlays.
func ProcessLogs(ctx context.Context, sess *engine.Session) (*table.Table, error) {
	events, err := sess.ReadRecords(ctx, schema.Log)
	if err != nil {
		return nil, err
	}

	var plays *table.Table
	err = timed(sess, "filter_next_song", func() error {
		page := events.Index("page")
		var err error
		plays, err = events.Filter(ctx, func(row []any) bool {
			p, ok := row[page].(string)
			return ok && p == NextSongPage
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordRow(sess.Job(), "next_song", int64(plays.Len()))

	users, err := plays.Select(userFields...)
	if err != nil {
		return nil, err
	}
	if err := sess.Write(ctx, users, UsersTable); err != nil {
		return nil, err
	}

	var augmented, times *table.Table
	err = timed(sess, "build_time", func() error {
		var err error
		augmented, err = withTimeColumns(ctx, plays, sess)
		if err != nil {
			return err
		}
		times, err = augmented.Select(timeFields...)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := sess.Write(ctx, times, TimeTable, "year", "month"); err != nil {
		return nil, err
	}
	return augmented, nil
}

// withTimeColumns derives start_time and its calendar breakdown from ts
// (epoch milliseconds). A null ts gives null time columns.
func withTimeColumns(ctx context.Context, events *table.Table, sess *engine.Session) (*table.Table, error) {
	ts := events.Index("ts")
	loc := sess.Location()
	return events.WithColumns(ctx, timeColumns, func(row []any) []any {
		ms, ok := row[ts].(int64)
		if !ok {
			return make([]any, len(timeColumns))
		}
		sec := calendar.EpochSeconds(ms)
		f := calendar.Derive(sec, loc)
		return []any{sec, f.Hour, f.Day, f.Week, f.Month, f.Year, f.Weekday}
	})
}
