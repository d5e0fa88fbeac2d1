package etl

import (
	"context"

	"sparkify/internal/engine"
	"sparkify/internal/schema"
	"sparkify/internal/table"
)

// Dimension projections of the catalog.
var (
	songFields = []table.Field{
		table.Col("song_id"),
		table.Col("title"),
		table.Col("artist_id"),
		table.Col("year"),
		table.Col("duration"),
	}
	artistFields = []table.Field{
		table.Col("artist_id"),
		table.Col("artist_name").As("name"),
		table.Col("artist_location").As("location"),
		table.Col("artist_latitude").As("latitude"),
		table.Col("artist_longitude").As("longitude"),
	}
)

// ProcessCatalog reads the song catalog and writes the songs table,
// partitioned by year and artist_id, and the artist table. Rows are
// projected as is: duplicates in the catalog stay duplicated.
func ProcessCatalog(ctx context.Context, sess *engine.Session) error {
	catalog, err := sess.ReadRecords(ctx, schema.Catalog)
	if err != nil {
		return err
	}

	var songs, artists *table.Table
	err = timed(sess, "build_catalog_dimensions", func() error {
		var err error
		if songs, err = catalog.Select(songFields...); err != nil {
			return err
		}
		artists, err = catalog.Select(artistFields...)
		return err
	})
	if err != nil {
		return err
	}

	if err := sess.Write(ctx, songs, SongsTable, "year", "artist_id"); err != nil {
		return err
	}
	return sess.Write(ctx, artists, ArtistTable)
}
