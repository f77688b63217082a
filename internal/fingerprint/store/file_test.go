package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

type FileStoreSuite struct {
	suite.Suite
	dir   string
	store *FileStore
	ctx   context.Context
}

func TestFileStoreSuite(t *testing.T) {
	suite.Run(t, new(FileStoreSuite))
}

func (s *FileStoreSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.store = NewFileStore(filepath.Join(s.dir, "funded_hashes.json"))
	s.ctx = context.Background()
}

func (s *FileStoreSuite) TestLoad() {
	s.Run("missing file is empty", func() {
		hashes, err := s.store.Load(s.ctx)
		s.Require().NoError(err)
		s.Empty(hashes)
	})

	s.Run("corrupt file is an error", func() {
		path := filepath.Join(s.dir, "corrupt.json")
		s.Require().NoError(os.WriteFile(path, []byte("{not json"), 0o600))
		_, err := NewFileStore(path).Load(s.ctx)
		s.Error(err)
	})

	s.Run("empty file is empty", func() {
		path := filepath.Join(s.dir, "empty.json")
		s.Require().NoError(os.WriteFile(path, nil, 0o600))
		hashes, err := NewFileStore(path).Load(s.ctx)
		s.Require().NoError(err)
		s.Empty(hashes)
	})
}

func (s *FileStoreSuite) TestPersistRoundTrip() {
	s.Require().NoError(s.store.Persist(s.ctx, "a", []string{"a"}))
	s.Require().NoError(s.store.Persist(s.ctx, "b", []string{"a", "b"}))

	hashes, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"a", "b"}, hashes)

	entries, err := os.ReadDir(s.dir)
	s.Require().NoError(err)
	s.Len(entries, 1, "temp files are cleaned up")
}

func (s *FileStoreSuite) TestPersistCreatesDirectory() {
	store := NewFileStore(filepath.Join(s.dir, "nested", "state", "funded.json"))
	s.Require().NoError(store.Persist(s.ctx, "a", []string{"a"}))

	hashes, err := store.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"a"}, hashes)
}
