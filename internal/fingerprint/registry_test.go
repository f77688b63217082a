package fingerprint

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type memoryStore struct {
	mu         sync.Mutex
	loaded     []string
	loadErr    error
	persistErr error
	persisted  []string
	snapshots  [][]string
}

func (m *memoryStore) Load(context.Context) ([]string, error) {
	return m.loaded, m.loadErr
}

func (m *memoryStore) Persist(_ context.Context, hash string, all []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.persistErr != nil {
		return m.persistErr
	}
	m.persisted = append(m.persisted, hash)
	m.snapshots = append(m.snapshots, all)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFingerprint(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, Fingerprint([]byte("Novel CRISPR screen")), Fingerprint([]byte("Novel CRISPR screen")))
	})

	t.Run("whitespace insensitive", func(t *testing.T) {
		a := Fingerprint([]byte("Novel CRISPR screen\nin vivo"))
		b := Fingerprint([]byte("  novel\tcrispr   SCREEN in\r\nvivo "))
		assert.Equal(t, a, b)
	})

	t.Run("punctuation insensitive", func(t *testing.T) {
		assert.Equal(t, Fingerprint([]byte("p-value < 0.05!")), Fingerprint([]byte("pvalue 005")))
	})

	t.Run("underscore is kept", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint([]byte("gene_a")), Fingerprint([]byte("genea")))
	})

	t.Run("different content differs", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint([]byte("alpha")), Fingerprint([]byte("beta")))
	})

	t.Run("hex sha256", func(t *testing.T) {
		assert.Len(t, Fingerprint([]byte("x")), 64)
	})
}

type RegistrySuite struct {
	suite.Suite
	ctx   context.Context
	store *memoryStore
	reg   *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = &memoryStore{}
	reg, err := New(s.ctx, s.store, WithLogger(discardLogger()))
	s.Require().NoError(err)
	s.reg = reg
}

func (s *RegistrySuite) TestNew() {
	s.Run("nil store rejected", func() {
		_, err := New(s.ctx, nil)
		s.Error(err)
	})

	s.Run("unreadable store degrades to empty", func() {
		reg, err := New(s.ctx, &memoryStore{loadErr: errors.New("corrupt json")}, WithLogger(discardLogger()))
		s.Require().NoError(err)
		s.Equal(0, reg.Len())
	})

	s.Run("loaded hashes are deduplicated", func() {
		h := Fingerprint([]byte("paper"))
		reg, err := New(s.ctx, &memoryStore{loaded: []string{h, h, " "}}, WithLogger(discardLogger()))
		s.Require().NoError(err)
		s.Equal(1, reg.Len())
		s.True(reg.IsDuplicate([]byte("PAPER")))
	})
}

func (s *RegistrySuite) TestRegisterSuccess() {
	content := []byte("Senolytic cohort study")
	s.False(s.reg.IsDuplicate(content))

	s.Require().NoError(s.reg.RegisterSuccess(s.ctx, content))
	s.True(s.reg.IsDuplicate(content))
	s.True(s.reg.IsDuplicate([]byte("senolytic  COHORT  study")))

	s.Require().NoError(s.reg.RegisterSuccess(s.ctx, content))
	s.Len(s.store.persisted, 1, "re-registering is a no-op")
	s.Equal([]string{Fingerprint(content)}, s.store.snapshots[0])
}

func (s *RegistrySuite) TestRegisterSuccessPersistFailure() {
	s.store.persistErr = errors.New("disk full")
	content := []byte("paid but not saved")

	err := s.reg.RegisterSuccess(s.ctx, content)
	s.Error(err)
	s.True(s.reg.IsDuplicate(content), "in-memory set still blocks a second payout")
}

func (s *RegistrySuite) TestSettle() {
	s.Run("funded settlement registers", func() {
		content := []byte("settle funded")
		err := s.reg.Settle(s.ctx, content, func(context.Context) (bool, error) { return true, nil })
		s.Require().NoError(err)
		s.True(s.reg.IsDuplicate(content))
	})

	s.Run("unfunded settlement does not register", func() {
		content := []byte("settle unfunded")
		err := s.reg.Settle(s.ctx, content, func(context.Context) (bool, error) { return false, nil })
		s.Require().NoError(err)
		s.False(s.reg.IsDuplicate(content))
	})

	s.Run("callback error does not register", func() {
		content := []byte("settle error")
		boom := errors.New("ledger down")
		err := s.reg.Settle(s.ctx, content, func(context.Context) (bool, error) { return true, boom })
		s.ErrorIs(err, boom)
		s.False(s.reg.IsDuplicate(content))
	})

	s.Run("already funded skips callback", func() {
		content := []byte("settle funded")
		called := false
		err := s.reg.Settle(s.ctx, content, func(context.Context) (bool, error) {
			called = true
			return true, nil
		})
		s.ErrorIs(err, ErrDuplicate)
		s.False(called)
	})

	s.Equal(0, s.reg.locks.size(), "locks are released")
}

func TestSettleFundsOnceUnderConcurrency(t *testing.T) {
	reg, err := New(context.Background(), &memoryStore{}, WithLogger(discardLogger()))
	require.NoError(t, err)

	const workers = 16
	var (
		payouts    atomic.Int32
		duplicates atomic.Int32
		wg         sync.WaitGroup
		start      = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := reg.Settle(context.Background(), []byte("identical normalized content"), func(context.Context) (bool, error) {
				payouts.Add(1)
				time.Sleep(time.Millisecond)
				return true, nil
			})
			if errors.Is(err, ErrDuplicate) {
				duplicates.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), payouts.Load())
	assert.Equal(t, int32(workers-1), duplicates.Load())
	assert.Equal(t, 1, reg.Len())
}
