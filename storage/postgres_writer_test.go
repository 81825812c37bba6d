package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
	"github.com/I-Bumblebee/jobs-ge-scraper/utils"
)

// recordingDB is an in-memory stand-in for the jobs table. Upserts whose
// id equals reject fail the way a constraint violation would.
type recordingDB struct {
	reject string

	mu   sync.Mutex
	rows map[string]int
}

var (
	recordingMu  sync.Mutex
	recordingDBs = map[string]*recordingDB{}
)

func init() {
	sql.Register("recording", recordingDriver{})
}

type recordingDriver struct{}

func (recordingDriver) Open(name string) (driver.Conn, error) {
	recordingMu.Lock()
	defer recordingMu.Unlock()
	db, ok := recordingDBs[name]
	if !ok {
		return nil, fmt.Errorf("no recording database %q", name)
	}
	return &recordingConn{db: db}, nil
}

type recordingConn struct{ db *recordingDB }

func (c *recordingConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (c *recordingConn) Close() error              { return nil }
func (c *recordingConn) Begin() (driver.Tx, error) { return nil, errors.New("tx not supported") }

func (c *recordingConn) ExecContext(_ context.Context, _ string, args []driver.NamedValue) (driver.Result, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	for i := 0; i+1 < len(args); i += pgJobColumns {
		if id, _ := args[i+1].Value.(string); id == c.db.reject {
			return nil, fmt.Errorf("violates check constraint for id %s", id)
		}
	}
	for i := 0; i+1 < len(args); i += pgJobColumns {
		c.db.rows[fmt.Sprintf("%v/%v", args[i].Value, args[i+1].Value)]++
	}
	return driver.RowsAffected(len(args) / pgJobColumns), nil
}

func openRecordingWriter(t *testing.T, reject string) (*PostgresWriter, *recordingDB) {
	t.Helper()
	state := &recordingDB{reject: reject, rows: make(map[string]int)}
	recordingMu.Lock()
	recordingDBs[t.Name()] = state
	recordingMu.Unlock()

	db, err := sql.Open("recording", t.Name())
	require.NoError(t, err)
	pw := newPostgresWriter(db, utils.NewTestLogger())
	t.Cleanup(func() { _ = pw.Close() })
	return pw, state
}

func TestPostgresWriterBadRowFailsAlone(t *testing.T) {
	pw, state := openRecordingWriter(t, "13")
	ctx := context.Background()

	var failed int
	for i := 0; i < 100; i++ {
		job := &models.MergedJob{ID: fmt.Sprint(i), Platform: models.PlatformJobsGe, Title: "Job"}
		if err := pw.SaveMerged(ctx, job); err != nil {
			failed++
			assert.ErrorContains(t, err, "upsert job 13")
		}
	}
	assert.Equal(t, 1, failed)

	summary, err := pw.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 99, summary.Written)
	assert.Len(t, state.rows, 99)
	assert.NotContains(t, state.rows, "jobs_ge/13")
}

func TestPostgresWriterSuccessMeansStored(t *testing.T) {
	pw, state := openRecordingWriter(t, "")
	ctx := context.Background()

	job := &models.MergedJob{ID: "1", Platform: models.PlatformCvGe, Title: "Courier"}
	require.NoError(t, pw.SaveMerged(ctx, job))
	assert.Equal(t, 1, state.rows["cv_ge/1"], "stored before Finalize")

	require.NoError(t, pw.SaveMerged(ctx, job))
	assert.Equal(t, 2, state.rows["cv_ge/1"])

	summary, err := pw.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Written)

	summary, err = pw.Finalize(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Written)
}
