package retention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acswi/programchat/store"
	"github.com/acswi/programchat/store/teststore"
)

func TestWarningWindowDays(t *testing.T) {
	tests := []struct {
		retentionDays int32
		want          int32
	}{
		{10, 3},
		{30, 3},
		{31, 3},
		{40, 4},
		{100, 10},
		{365, 36},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, warningWindowDays(tt.retentionDays), "retention %d", tt.retentionDays)
	}
}

func newRetentionFixture(t *testing.T, retentionDays *int32) (*Runner, *store.Store) {
	t.Helper()
	st := teststore.NewStore(teststore.New())
	_, err := st.CreateProgram(context.Background(), &store.Program{
		Code:          "FIN",
		Name:          "Finance Fundamentals",
		Content:       "content",
		Active:        true,
		RetentionDays: retentionDays,
	})
	require.NoError(t, err)
	return NewRunner(st), st
}

func seedTurn(t *testing.T, st *store.Store, createdTs int64, visible bool) *store.ConversationTurn {
	t.Helper()
	turn, err := st.CreateConversationTurn(context.Background(), &store.ConversationTurn{
		UID:         fmt.Sprintf("uid-%d-%t", createdTs, visible),
		UserID:      1,
		ProgramCode: "FIN",
		Question:    "q",
		Answer:      "a",
		CreatedTs:   createdTs,
		Visible:     visible,
	})
	require.NoError(t, err)
	return turn
}

func listAll(t *testing.T, st *store.Store) []*store.ConversationTurn {
	t.Helper()
	turns, err := st.ListConversationTurns(context.Background(), &store.FindConversationTurn{})
	require.NoError(t, err)
	return turns
}

func TestRunOnceNotifiesAndDeletes(t *testing.T) {
	retention := int32(30) // warning window 3 days
	runner, st := newRetentionFixture(t, &retention)

	// Not the first of the month, so no stamp purge interferes.
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	expired := seedTurn(t, st, now.Add(-31*day).Unix(), true)
	warned := seedTurn(t, st, now.Add(-28*day).Unix(), true)
	fresh := seedTurn(t, st, now.Add(-5*day).Unix(), true)

	runner.RunOnce(context.Background(), now)

	turns := listAll(t, st)
	require.Len(t, turns, 2)

	byUID := make(map[string]*store.ConversationTurn, len(turns))
	for _, turn := range turns {
		byUID[turn.UID] = turn
	}
	require.NotContains(t, byUID, expired.UID)

	require.NotNil(t, byUID[warned.UID].NotifiedTs)
	require.Equal(t, now.Unix(), *byUID[warned.UID].NotifiedTs)
	require.Nil(t, byUID[fresh.UID].NotifiedTs)

	// A second pass is idempotent: the stamp is not refreshed.
	later := now.Add(time.Hour)
	runner.RunOnce(context.Background(), later)
	turns = listAll(t, st)
	require.Len(t, turns, 2)
	for _, turn := range turns {
		if turn.UID == warned.UID {
			require.Equal(t, now.Unix(), *turn.NotifiedTs)
		}
	}
}

func TestRunOnceSkipsHiddenTurns(t *testing.T) {
	retention := int32(30)
	runner, st := newRetentionFixture(t, &retention)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	// Cleared history is out of the sweep's reach.
	hidden := seedTurn(t, st, now.Add(-60*24*time.Hour).Unix(), false)

	runner.RunOnce(context.Background(), now)

	turns := listAll(t, st)
	require.Len(t, turns, 1)
	require.Equal(t, hidden.UID, turns[0].UID)
	require.Nil(t, turns[0].NotifiedTs)
}

func TestRunOnceNoRetentionConfigured(t *testing.T) {
	runner, st := newRetentionFixture(t, nil)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	seedTurn(t, st, now.Add(-400*24*time.Hour).Unix(), true)

	runner.RunOnce(context.Background(), now)
	require.Len(t, listAll(t, st), 1)
}

func TestRunOnceSkipsInactivePrograms(t *testing.T) {
	retention := int32(30)
	runner, st := newRetentionFixture(t, &retention)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	program, err := st.GetProgram(context.Background(), &store.FindProgram{})
	require.NoError(t, err)
	inactive := false
	_, err = st.UpdateProgram(context.Background(), &store.UpdateProgram{ID: program.ID, Active: &inactive})
	require.NoError(t, err)

	seedTurn(t, st, now.Add(-60*24*time.Hour).Unix(), true)

	runner.RunOnce(context.Background(), now)
	require.Len(t, listAll(t, st), 1)
}

func TestStampPurgeRunsOnFirstOfMonth(t *testing.T) {
	retention := int32(400) // keep the stamped turn clear of deletion
	runner, st := newRetentionFixture(t, &retention)

	// The turn itself stays clear of the 400-day deletion cutoff; only its
	// warning stamp is over a year old.
	turn := seedTurn(t, st, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC).Unix(), true)
	stamp := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC).Unix()
	_, err := st.SweepConversationTurns(context.Background(), &store.SweepConversationTurns{
		ProgramCode:  "FIN",
		DeleteBefore: 0,
		WarnBefore:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC).Unix(),
		NotifyTs:     stamp,
	})
	require.NoError(t, err)

	// Mid-month run leaves the year-old stamp alone.
	runner.RunOnce(context.Background(), time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC))
	turns := listAll(t, st)
	require.Len(t, turns, 1)
	require.NotNil(t, turns[0].NotifiedTs)

	// First of the month: stamps older than a year are cleared.
	runner.RunOnce(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	turns = listAll(t, st)
	require.Len(t, turns, 1)
	require.Nil(t, turns[0].NotifiedTs)
	require.Equal(t, turn.UID, turns[0].UID)
}
