// Package registry owns the process-wide set of live game rooms. Lookups and
// insertions go through a sync.Map so unrelated rooms never contend on a
// shared lock; all per-room state changes are serialized by the room actor
// itself. Rooms are in-memory only and reaped after a period of inactivity.
package registry

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roamingroutes/undercover-backend/internal/engine"
	"github.com/roamingroutes/undercover-backend/internal/room"
	"github.com/roamingroutes/undercover-backend/pkg/types"
)

var ErrNotFound = errors.New("game not found")

type Registry struct {
	rooms  sync.Map // game id -> *room.Room
	rules  engine.Rules
	pub    room.Publisher
	logger *zap.Logger

	ttl      time.Duration
	interval time.Duration
}

// New builds a registry. TTL bounds how long an idle room may live; the
// reaper only runs once Start is called.
func New(rules engine.Rules, pub room.Publisher, ttl, reapInterval time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		rules:    rules,
		pub:      pub,
		logger:   logger,
		ttl:      ttl,
		interval: reapInterval,
	}
}

// Create allocates a new room with the creator as host and sole player.
func (g *Registry) Create(hostNickname string) (*room.Room, engine.State, error) {
	name := strings.TrimSpace(hostNickname)
	if name == "" {
		return nil, engine.State{}, engine.ErrInvalidInput
	}

	st := engine.NewState(uuid.NewString(), uuid.NewString(), name, time.Now(), g.rules)
	r := room.New(st, g.pub, g.logger)
	g.rooms.Store(st.ID, r)

	g.logger.Info("game created",
		zap.String("game_id", st.ID), zap.String("host", name))
	return r, st, nil
}

// Get looks a room up by id.
func (g *Registry) Get(gameID string) (*room.Room, error) {
	v, ok := g.rooms.Load(gameID)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*room.Room), nil
}

// Remove tears a room down and forgets it.
func (g *Registry) Remove(gameID string) {
	if v, ok := g.rooms.LoadAndDelete(gameID); ok {
		v.(*room.Room).Close()
	}
}

// ListJoinable snapshots every room still waiting for players with a free
// seat, most recently created first. Recomputed on every call.
func (g *Registry) ListJoinable() []types.GameState {
	var out []types.GameState
	g.rooms.Range(func(_, v any) bool {
		view, err := v.(*room.Room).Snapshot()
		if err != nil {
			return true
		}
		s := view.State
		if s.Status == engine.StatusWaiting && len(s.Players) < s.Rules.MaxPlayers {
			out = append(out, engine.Project(s))
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Start runs the idle-room reaper until ctx is cancelled.
func (g *Registry) Start(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			g.closeAll()
			return
		case <-ticker.C:
			g.reap()
		}
	}
}

func (g *Registry) reap() {
	cutoff := time.Now().Add(-g.ttl)
	g.rooms.Range(func(k, v any) bool {
		r := v.(*room.Room)
		view, err := r.Snapshot()
		if err != nil || view.LastActive.Before(cutoff) {
			g.rooms.Delete(k)
			r.Close()
			g.logger.Info("reaped idle game", zap.String("game_id", k.(string)))
		}
		return true
	})
}

func (g *Registry) closeAll() {
	g.rooms.Range(func(k, v any) bool {
		g.rooms.Delete(k)
		v.(*room.Room).Close()
		return true
	})
}
