package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roamingroutes/undercover-backend/internal/engine"
)

type nopPublisher struct{}

func (nopPublisher) Publish(roomID, event string, payload any) {}
func (nopPublisher) PublishAll(event string, payload any)      {}

func testRules() engine.Rules {
	return engine.Rules{
		MinPlayers:    3,
		MaxPlayers:    10,
		DiscussionSec: 300,
		VotingSec:     60,
		ResultsSec:    15,
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(testRules(), nopPublisher{}, time.Hour, time.Minute, zap.NewNop())
}

func TestCreateAndGet(t *testing.T) {
	g := newTestRegistry(t)

	rm, st, err := g.Create("Alice")
	require.NoError(t, err)
	require.NotNil(t, rm)
	assert.Equal(t, engine.StatusWaiting, st.Status)
	require.Len(t, st.Players, 1)
	assert.True(t, st.Players[0].IsHost)
	assert.Equal(t, "Alice", st.Players[0].Name)
	assert.Equal(t, st.HostID, st.Players[0].ID)

	got, err := g.Get(st.ID)
	require.NoError(t, err)
	assert.Same(t, rm, got)
}

func TestCreateBlankNicknameRejected(t *testing.T) {
	g := newTestRegistry(t)

	_, _, err := g.Create("   ")
	require.ErrorIs(t, err, engine.ErrInvalidInput)
	assert.Empty(t, g.ListJoinable(), "no room may be registered on failure")
}

func TestGetUnknownGame(t *testing.T) {
	g := newTestRegistry(t)
	_, err := g.Get("no-such-game")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListJoinable_OrderAndFilter(t *testing.T) {
	g := newTestRegistry(t)

	_, first, err := g.Create("Alice")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond) // distinct createdAt
	_, second, err := g.Create("Bob")
	require.NoError(t, err)

	list := g.ListJoinable()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].GameID, "most recent first")
	assert.Equal(t, first.ID, list[1].GameID)

	// a started room disappears from the list
	rm, err := g.Get(first.ID)
	require.NoError(t, err)
	for i, name := range []string{"Cara", "Dan"} {
		_, err = rm.Do(engine.Command{
			Type: engine.CmdJoin, PlayerID: fmt.Sprintf("p%d", i), Nickname: name, Now: time.Now(),
		})
		require.NoError(t, err)
	}
	_, err = rm.Do(engine.Command{
		Type: engine.CmdStartGame, PlayerID: first.HostID,
		CivilianWord: "Coffee", UndercoverWord: "Tea", Now: time.Now(),
	})
	require.NoError(t, err)

	list = g.ListJoinable()
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].GameID)
}

func TestListJoinable_ExcludesFullRooms(t *testing.T) {
	g := New(engine.Rules{MinPlayers: 3, MaxPlayers: 3, DiscussionSec: 300, VotingSec: 60, ResultsSec: 15},
		nopPublisher{}, time.Hour, time.Minute, zap.NewNop())

	rm, st, err := g.Create("Alice")
	require.NoError(t, err)
	for i, name := range []string{"Bob", "Cara"} {
		_, err = rm.Do(engine.Command{
			Type: engine.CmdJoin, PlayerID: fmt.Sprintf("p%d", i), Nickname: name, Now: time.Now(),
		})
		require.NoError(t, err)
	}

	list := g.ListJoinable()
	for _, gs := range list {
		assert.NotEqual(t, st.ID, gs.GameID, "full room must not be listed")
	}
}

// Parallel joins against one room must never exceed maxPlayers or hand out
// duplicate seats.
func TestConcurrentJoins(t *testing.T) {
	g := New(engine.Rules{MinPlayers: 3, MaxPlayers: 6, DiscussionSec: 300, VotingSec: 60, ResultsSec: 15},
		nopPublisher{}, time.Hour, time.Minute, zap.NewNop())

	rm, st, err := g.Create("Host")
	require.NoError(t, err)

	const attempts = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := rm.Do(engine.Command{
				Type:     engine.CmdJoin,
				PlayerID: fmt.Sprintf("p%d", i),
				Nickname: fmt.Sprintf("player-%d", i),
				Now:      time.Now(),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, engine.ErrGameFull)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)

	view, err := rm.Snapshot()
	require.NoError(t, err)
	require.Len(t, view.State.Players, 6)
	ids := map[string]bool{}
	for _, p := range view.State.Players {
		assert.False(t, ids[p.ID])
		ids[p.ID] = true
	}
	assert.Equal(t, st.HostID, view.State.HostID)
}

func TestRemove(t *testing.T) {
	g := newTestRegistry(t)
	_, st, err := g.Create("Alice")
	require.NoError(t, err)

	g.Remove(st.ID)
	_, err = g.Get(st.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReaperRemovesIdleRooms(t *testing.T) {
	g := New(testRules(), nopPublisher{}, 50*time.Millisecond, 20*time.Millisecond, zap.NewNop())

	_, st, err := g.Create("Alice")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Start(ctx)

	require.Eventually(t, func() bool {
		_, err := g.Get(st.ID)
		return err == ErrNotFound
	}, time.Second, 10*time.Millisecond)
}
