package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/cartosante/internal/domain/providers"
)

type MockScopeSyncer struct {
	mock.Mock
}

func (m *MockScopeSyncer) Sync(ctx context.Context, scope providers.SyncScope) (*SyncReport, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SyncReport), args.Error(1)
}

func TestNewSyncScheduler_RejectsBadSpec(t *testing.T) {
	_, err := NewSyncScheduler(new(MockScopeSyncer), "every tuesday", []string{"Estuaire"})
	assert.Error(t, err)
}

func TestSyncScheduler_RunContinuesAfterFailure(t *testing.T) {
	syncer := new(MockScopeSyncer)
	syncer.On("Sync", mock.Anything, providers.SyncScope{Province: "Estuaire", Persist: true}).
		Return(nil, errors.New("function timed out"))
	syncer.On("Sync", mock.Anything, providers.SyncScope{Province: "Woleu-Ntem", Persist: true}).
		Return(&SyncReport{Imported: 42}, nil)

	s, err := NewSyncScheduler(syncer, "@daily", []string{"Estuaire", "Woleu-Ntem"})
	require.NoError(t, err)

	s.run(context.Background())
	syncer.AssertExpectations(t)
}

func TestSyncScheduler_StartStop(t *testing.T) {
	s, err := NewSyncScheduler(new(MockScopeSyncer), "@every 1h", []string{"Nyanga"})
	require.NoError(t, err)
	s.Start()
	s.Stop()
}
