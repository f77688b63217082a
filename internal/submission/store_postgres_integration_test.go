//go:build integration

package submission

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"scholar/pkg/testutil/containers"
)

type JournalStoreSuite struct {
	suite.Suite
	ctx    context.Context
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func TestJournalStoreSuite(t *testing.T) {
	suite.Run(t, new(JournalStoreSuite))
}

func (s *JournalStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	pg := containers.NewPostgresContainer(s.T())
	pool, err := pgxpool.New(s.ctx, pg.URL)
	s.Require().NoError(err)
	s.T().Cleanup(pool.Close)
	s.pool = pool
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *JournalStoreSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, `DROP TABLE IF EXISTS submission_records`)
	s.Require().NoError(err)
}

func (s *JournalStoreSuite) TestRestoreAfterRestart() {
	store, err := NewJournalStore(s.ctx, s.pool, s.logger)
	s.Require().NoError(err)

	first := newTestRecord()
	first.Version = 1
	s.Require().NoError(store.Save(s.ctx, first))

	second := newTestRecord()
	second.ID = "rec-2"
	second.Timestamp = first.Timestamp.Add(1)
	second.Version = 1
	s.Require().NoError(store.Save(s.ctx, second))

	first.Version = 2
	first.Status = StatusVerified
	first.TrustScore = 72
	s.Require().NoError(store.Save(s.ctx, first))

	restored, err := NewJournalStore(s.ctx, s.pool, s.logger)
	s.Require().NoError(err)
	records, err := restored.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal("rec-2", records[0].ID)
	s.Equal(StatusVerified, records[1].Status)
	s.Equal(72, records[1].TrustScore)
}

func (s *JournalStoreSuite) TestStaleVersionNotJournaled() {
	store, err := NewJournalStore(s.ctx, s.pool, s.logger)
	s.Require().NoError(err)

	rec := newTestRecord()
	rec.Version = 5
	rec.Status = StatusPayoutSent
	s.Require().NoError(store.Save(s.ctx, rec))

	stale := rec
	stale.Version = 4
	stale.Status = StatusScanning
	s.Require().NoError(store.Save(s.ctx, stale))

	var status string
	s.Require().NoError(s.pool.QueryRow(s.ctx, `SELECT status FROM submission_records WHERE id = $1`, rec.ID).Scan(&status))
	s.Equal(string(StatusPayoutSent), status)
}
