package etl

import (
	"context"

	"sparkify/internal/engine"
	"sparkify/internal/metrics"
	"sparkify/internal/schema"
	"sparkify/internal/table"
)

// songJoin matches an event to catalog rows: same artist name, same title,
// same duration. Comparison is exact and null never matches.
var songJoin = []table.On{
	{Left: "artist", Right: "artist_name"},
	{Left: "song", Right: "title"},
	{Left: "length", Right: "duration"},
}

var songPlayFields = []table.Field{
	table.Col("songplay_id"),
	table.Col("start_time"),
	table.Col("userId").As("user_id"),
	table.Col("level"),
	table.Col("song_id"),
	table.Col("artist_id"),
	table.Col("sessionId").As("session_id"),
	table.Col("location"),
	table.Col("userAgent").As("user_agent"),
	table.Col("month"),
	table.Col("year"),
}

// BuildSongPlays joins the NextSong events (as returned by ProcessLogs)
// with the song catalog and writes the songplays table, partitioned by year
// and month. An event matching k catalog rows yields k plays; one matching
// none yields nothing. The catalog is read again through the session, so the
// log phase does not depend on the catalog phase.
func BuildSongPlays(ctx context.Context, sess *engine.Session, events *table.Table) error {
	catalog, err := sess.ReadRecords(ctx, schema.Catalog)
	if err != nil {
		return err
	}

	var plays *table.Table
	err = timed(sess, "build_songplays", func() error {
		joined, err := events.Join(ctx, catalog, songJoin, "song")
		if err != nil {
			return err
		}
		metrics.RecordRow(sess.Job(), "joined", int64(joined.Len()))
		withID, err := joined.WithMonotonicID(ctx, "songplay_id")
		if err != nil {
			return err
		}
		plays, err = withID.Select(songPlayFields...)
		return err
	})
	if err != nil {
		return err
	}
	return sess.Write(ctx, plays, SongPlaysTable, "year", "month")
}
