package chat

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BizLink/entity"
	"BizLink/internal/config"
	repository "BizLink/internal/database"
)

type fakeMaintenance struct {
	groups [][]entity.Conversation
	merged []repository.MergePlan
}

func (f *fakeMaintenance) FindDuplicateBusinessConversations(context.Context) ([][]entity.Conversation, error) {
	return f.groups, nil
}

func (f *fakeMaintenance) MergeConversations(_ context.Context, plan repository.MergePlan) error {
	f.merged = append(f.merged, plan)
	return nil
}

type fakeStamps struct {
	last   time.Time
	marked int
}

func (f *fakeStamps) LastSweep(context.Context) (time.Time, error) { return f.last, nil }

func (f *fakeStamps) MarkSweep(_ context.Context, at time.Time) error {
	f.last = at
	f.marked++
	return nil
}

func newTestSweeper(store MaintenanceStore, stamps SweepStamps) *Sweeper {
	conf := &config.Config{}
	conf.Chat.SweepCron = "0 3 * * *"
	conf.Chat.SweepInterval = 24 * time.Hour
	return NewSweeper(store, stamps, conf, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSweepMergesDuplicateGroups(t *testing.T) {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	group := []entity.Conversation{
		{ID: "keep", Participants: []string{"alice", "bob"}, BusinessID: "b1", CreatedAt: base},
		{ID: "drop", Participants: []string{"alice", "bob"}, BusinessID: "b1", CreatedAt: base.Add(time.Hour)},
	}

	store := &fakeMaintenance{groups: [][]entity.Conversation{group}}
	stamps := &fakeStamps{}
	sweeper := newTestSweeper(store, stamps)

	merged, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, merged)

	require.Len(t, store.merged, 1)
	assert.Equal(t, "keep", store.merged[0].KeepID)
	assert.Equal(t, []string{"drop"}, store.merged[0].DropIDs)
	assert.Equal(t, 1, stamps.marked)
}

func TestSweepSkipsWhenRanRecently(t *testing.T) {
	store := &fakeMaintenance{groups: [][]entity.Conversation{{{ID: "a"}, {ID: "b"}}}}
	stamps := &fakeStamps{last: time.Now().Add(-time.Hour)}
	sweeper := newTestSweeper(store, stamps)

	merged, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, merged)
	assert.Empty(t, store.merged)
}

func TestSweepRunsWithoutStamps(t *testing.T) {
	store := &fakeMaintenance{}
	sweeper := newTestSweeper(store, nil)

	merged, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, merged)
}
