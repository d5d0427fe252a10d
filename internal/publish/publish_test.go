package publish

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gtfsprep/internal/adapter"
	"github.com/leapstack-labs/gtfsprep/internal/config"
	"github.com/leapstack-labs/gtfsprep/internal/testutil"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		host    string
		wantErr error
	}{
		{name: "url", dsn: "postgres://u:p@db.example.com:5433/gtfs", host: "db.example.com"},
		{name: "key value", dsn: "host=localhost dbname=gtfs sslmode=disable", host: "localhost"},
		{name: "empty", dsn: "  ", wantErr: ErrNoDSN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseDSN(tt.dsn)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, cfg.Host)
		})
	}

	_, err := ParseDSN("postgres://u:p@host:notaport/db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid postgres dsn")
}

func TestCreateTableSQL(t *testing.T) {
	cols := []adapter.Column{
		{Name: "trip_id", Type: "VARCHAR"},
		{Name: "stop_sequence", Type: "BIGINT"},
		{Name: "stop_meters", Type: "DOUBLE"},
		{Name: "tags", Type: "VARCHAR[]"},
	}
	assert.Equal(t,
		`CREATE TABLE "public"."stop_times" ("trip_id" text, "stop_sequence" bigint, "stop_meters" double precision, "tags" text)`,
		createTableSQL("public", "stop_times", cols))

	assert.Equal(t,
		`SELECT "trip_id", "stop_sequence", "stop_meters", "tags"::VARCHAR AS "tags" FROM read_parquet('/tmp/x.parquet')`,
		selectSQL(cols, "/tmp/x.parquet"))
}

func TestRowSource(t *testing.T) {
	db := testutil.NewDuckDB(t)
	rows, err := db.Query(context.Background(), "SELECT * FROM (VALUES ('a', 1::BIGINT), ('b', NULL)) t(k, v) ORDER BY k")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	src := newRowSource(rows, 2)
	var got [][]any
	for src.Next() {
		values, err := src.Values()
		require.NoError(t, err)
		got = append(got, append([]any(nil), values...))
	}
	require.NoError(t, src.Err())
	assert.Equal(t, [][]any{{"a", int64(1)}, {"b", nil}}, got)
}

func TestPublish_Errors(t *testing.T) {
	db := testutil.NewDuckDB(t)
	dir := t.TempDir()

	_, err := Publish(context.Background(), db, Options{Dir: dir, Date: testutil.FixtureDate})
	require.ErrorIs(t, err, ErrNoDSN)

	_, err = Publish(context.Background(), db, Options{DSN: "postgres://localhost/gtfs", Dir: dir, Date: testutil.FixtureDate})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sample tables")

	_, err = Publish(context.Background(), db, Options{DSN: "postgres://localhost/gtfs", Tables: []string{"routes"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown table "routes"`)
}

// Runs against a real database when GTFSPREP_TEST_POSTGRES_DSN is set.
func TestPublish_Postgres(t *testing.T) {
	dsn := os.Getenv("GTFSPREP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GTFSPREP_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	db := testutil.NewDuckDB(t)
	dir := t.TempDir()
	testutil.WriteFixtures(t, db, dir, config.TableStops, config.TableVP)

	results, err := Publish(ctx, db, Options{
		DSN: dsn, Schema: "gtfsprep_test", Dir: dir, Date: testutil.FixtureDate,
		Logger: testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{Table: config.TableStops, Target: "gtfsprep_test.stops", Rows: 6},
		{Table: config.TableVP, Target: "gtfsprep_test.vp", Rows: 6},
	}, results)

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	defer func() { _ = conn.Close(ctx) }()

	var n int64
	require.NoError(t, conn.QueryRow(ctx, `SELECT COUNT(*) FROM gtfsprep_test.vp WHERE location_timestamp_local IS NOT NULL`).Scan(&n))
	assert.Equal(t, int64(6), n)
	_, err = conn.Exec(ctx, "DROP SCHEMA gtfsprep_test CASCADE")
	require.NoError(t, err)
}
