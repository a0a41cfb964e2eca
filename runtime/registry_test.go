package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"medhub/domain"
	"medhub/domain/event"
)

type stubSink struct{}

func (s stubSink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func session(userID, username string) domain.Session {
	return domain.Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		Username:    username,
		ConnectedAt: time.Now().UTC(),
	}
}

func TestRegistry_Join_One_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	s := session("u1", "alice")
	sink := stubSink{}

	// Given no session is connected
	req.Empty(registry.Snapshot())

	// When a session joins
	registry.Join(s, sink)

	// Then the session is present and reachable
	req.Len(registry.Snapshot(), 1)
	req.Len(registry.Sinks(""), 1)
	got, ok := registry.Sink(s.ID)
	req.True(ok)
	req.Equal(sink, got)
}

func TestRegistry_Join_Is_Idempotent_Per_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	s := session("u1", "alice")

	// When the same session joins twice
	req.True(registry.Join(s, stubSink{}))
	req.False(registry.Join(s, stubSink{}))

	// Then presence is not duplicated
	req.Len(registry.Snapshot(), 1)
}

func TestRegistry_Rejoin_As_Other_User_Cleans_Old_Mapping(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	s := session("u1", "alice")
	registry.Join(s, stubSink{})

	// When the same session id rejoins under another user
	renamed := s
	renamed.UserID = "u2"
	renamed.Username = "bob"
	req.False(registry.Join(renamed, stubSink{}))

	// Then u1 has no presence left behind
	req.Empty(registry.ListActive("u2"))

	// And a later tab of u1 is correctly tracked as the user's last one
	tab := session("u1", "alice")
	registry.Join(tab, stubSink{})
	_, ok, lastOfUser := registry.Leave(tab.ID)
	req.True(ok)
	req.True(lastOfUser)

	// And leaving the renamed session reports u2's last session
	left, ok, lastOfUser := registry.Leave(s.ID)
	req.True(ok)
	req.True(lastOfUser)
	req.Equal("u2", left.UserID)
}

func TestRegistry_Leave_Last_Session_Of_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	s := session("u1", "alice")
	registry.Join(s, stubSink{})

	// When the user's only session leaves
	left, ok, lastOfUser := registry.Leave(s.ID)

	// Then the registry reports it was the last one
	req.True(ok)
	req.True(lastOfUser)
	req.Equal(s.ID, left.ID)
	req.Empty(registry.Snapshot())
}

func TestRegistry_Leave_Unknown_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())

	_, ok, lastOfUser := registry.Leave(uuid.NewString())

	req.False(ok)
	req.False(lastOfUser)
}

func TestRegistry_Two_Tabs_Same_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	tab1 := session("u1", "alice")
	tab2 := session("u1", "alice")

	// Given the same user joins from two tabs
	registry.Join(tab1, stubSink{})
	registry.Join(tab2, stubSink{})
	req.Len(registry.Snapshot(), 2)

	// When one tab disconnects
	_, ok, lastOfUser := registry.Leave(tab1.ID)

	// Then the other tab's presence is intact and the user is not gone
	req.True(ok)
	req.False(lastOfUser)
	req.Len(registry.Snapshot(), 1)

	// When the second tab disconnects too
	_, ok, lastOfUser = registry.Leave(tab2.ID)

	// Then the user's last session is reported
	req.True(ok)
	req.True(lastOfUser)
}

func TestRegistry_ListActive_Never_Includes_Caller(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	mine := session("u1", "alice")
	other := session("u2", "bob")
	registry.Join(mine, stubSink{})
	registry.Join(other, stubSink{})

	active := registry.ListActive("u1")

	req.Len(active, 1)
	req.Equal("u2", active[0].UserID)
}

func TestRegistry_ListActive_Excludes_All_Tabs_Of_Caller(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	registry.Join(session("u1", "alice"), stubSink{})
	registry.Join(session("u1", "alice"), stubSink{})
	registry.Join(session("u2", "bob"), stubSink{})

	active := registry.ListActive("u1")

	req.Len(active, 1)
	req.Equal("u2", active[0].UserID)
}

func TestRegistry_UpdatePage(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	s := session("u1", "alice")
	registry.Join(s, stubSink{})

	// When the session changes page
	req.True(registry.UpdatePage(s.ID, "/purchases"))

	// Then the presence snapshot reflects it
	req.Equal("/purchases", registry.Snapshot()[0].CurrentPage)

	// And updating an unknown session reports false
	req.False(registry.UpdatePage(uuid.NewString(), "/sales"))
}

func TestRegistry_Sinks_Excludes_Origin(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	origin := session("u1", "alice")
	other := session("u2", "bob")
	registry.Join(origin, stubSink{})
	registry.Join(other, stubSink{})

	req.Len(registry.Sinks(origin.ID), 1)
	req.Len(registry.Sinks(""), 2)
}
