package runtime

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"medhub/contract"
	"medhub/domain"
	"medhub/domain/event"
	"medhub/observability"
)

func newTestHub() *Hub {
	log := slog.Default()
	return NewHub(log, NewRegistry(log), NewLockManager(log, 0), observability.NewStatsManager(), 64)
}

// drain empties the hub's broadcast channel into a slice.
func drain(h *Hub) []contract.Outbound {
	var out []contract.Outbound
	for {
		select {
		case env := <-h.Events():
			out = append(out, env)
		default:
			return out
		}
	}
}

func kinds(outbound []contract.Outbound) []event.Kind {
	var ks []event.Kind
	for _, o := range outbound {
		ks = append(ks, o.Event.Kind())
	}
	return ks
}

func TestHub_Join_Announces_And_Seeds(t *testing.T) {
	req := require.New(t)
	hub := newTestHub()
	first := session("u1", "alice")
	second := session("u2", "bob")

	// Given alice is already connected
	hub.Join(first, stubSink{})
	drain(hub)

	// When bob joins
	active := hub.Join(second, stubSink{})

	// Then bob is seeded with alice only
	req.Len(active, 1)
	req.Equal("u1", active[0].UserID)

	// And a user:joined announcement excludes bob's own session
	outbound := drain(hub)
	req.Equal([]event.Kind{event.KindUserJoined}, kinds(outbound))
	req.Equal(second.ID, outbound[0].OriginSessionID)
}

func TestHub_Leave_Announces_User_Left(t *testing.T) {
	req := require.New(t)
	hub := newTestHub()
	s := session("u1", "alice")
	hub.Join(s, stubSink{})
	drain(hub)

	hub.Leave(s.ID)

	outbound := drain(hub)
	req.Equal([]event.Kind{event.KindUserLeft}, kinds(outbound))
	left := outbound[0].Event.(event.UserLeft)
	req.Equal(s.ID, left.SessionID)
	req.Equal("u1", left.UserID)
}

func TestHub_Rejoin_Does_Not_Inflate_Session_Count(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	stats := observability.NewStatsManager()
	hub := NewHub(log, NewRegistry(log), NewLockManager(log, 0), stats, 64)
	s := session("u1", "alice")

	// When the same session joins twice and then leaves once
	hub.Join(s, stubSink{})
	hub.Join(s, stubSink{})
	hub.Leave(s.ID)

	// Then the active-session counter is back to zero
	stats.Collect(0, 0)
	req.Zero(stats.GetLatest().ActiveSessions)
}

func TestHub_Leave_Unknown_Session_Is_Noop(t *testing.T) {
	req := require.New(t)
	hub := newTestHub()

	hub.Leave(uuid.NewString())

	req.Empty(drain(hub))
}

func TestHub_Holder_Disconnect_Frees_Lock(t *testing.T) {
	req := require.New(t)
	hub := newTestHub()
	a := session("userA", "alice")
	b := session("userB", "bob")
	hub.Join(a, stubSink{})
	hub.Join(b, stubSink{})
	drain(hub)

	// Given user A holds purchase-42
	result := hub.AcquireLock(a.ID, "purchase-42", domain.DocumentPurchase, "userA")
	req.True(result.Granted)

	// When user B attempts the same document
	result = hub.AcquireLock(b.ID, "purchase-42", domain.DocumentPurchase, "userB")

	// Then B is denied and told who holds it
	req.False(result.Granted)
	req.Equal("userA", result.HeldBy)

	// When A disconnects
	drain(hub)
	hub.Leave(a.ID)

	// Then the release is announced before user:left is processed
	outbound := drain(hub)
	req.Equal([]event.Kind{event.KindEditReleased, event.KindUserLeft}, kinds(outbound))

	// And B's retry succeeds
	result = hub.AcquireLock(b.ID, "purchase-42", domain.DocumentPurchase, "userB")
	req.True(result.Granted)
}

func TestHub_Closing_One_Tab_Keeps_User_Locks(t *testing.T) {
	req := require.New(t)
	hub := newTestHub()
	tab1 := session("u1", "alice")
	tab2 := session("u1", "alice")
	hub.Join(tab1, stubSink{})
	hub.Join(tab2, stubSink{})

	// Given the user locked a purchase from tab1
	req.True(hub.AcquireLock(tab1.ID, "purchase-42", domain.DocumentPurchase, "u1").Granted)
	drain(hub)

	// When tab1 disconnects
	hub.Leave(tab1.ID)

	// Then the lock survives: locks are keyed by user, not session
	outbound := drain(hub)
	req.Equal([]event.Kind{event.KindUserLeft}, kinds(outbound))
	result := hub.AcquireLock(session("u2", "bob").ID, "purchase-42", domain.DocumentPurchase, "u2")
	req.False(result.Granted)
	req.Equal("u1", result.HeldBy)

	// When the last tab disconnects
	drain(hub)
	hub.Leave(tab2.ID)

	// Then the lock is released
	outbound = drain(hub)
	req.Contains(kinds(outbound), event.KindEditReleased)
}

func TestHub_Unauthorized_Release_Is_Not_Announced(t *testing.T) {
	req := require.New(t)
	hub := newTestHub()
	a := session("u1", "alice")
	hub.Join(a, stubSink{})
	req.True(hub.AcquireLock(a.ID, "invoice-7", domain.DocumentInvoice, "u1").Granted)
	drain(hub)

	// When another user releases a lock they don't hold
	released := hub.ReleaseLock(uuid.NewString(), "invoice-7", "u2")

	// Then it's a silent no-op
	req.False(released)
	req.Empty(drain(hub))
}

func TestHub_Publish_With_Zero_Sessions_Does_Not_Block(t *testing.T) {
	req := require.New(t)
	hub := newTestHub()

	done := make(chan struct{})
	go func() {
		hub.Publish(event.SaleCompleted{SaleID: 1, InvoiceNo: "INV-1"}, "")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Publish blocked with no sessions connected")
	}
}

func TestHub_Publish_Drops_When_Channel_Full(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	stats := observability.NewStatsManager()
	hub := NewHub(log, NewRegistry(log), NewLockManager(log, 0), stats, 1)

	// Given the channel is full and nothing drains it
	hub.Publish(event.SaleCompleted{SaleID: 1}, "")

	done := make(chan struct{})
	go func() {
		hub.Publish(event.SaleCompleted{SaleID: 2}, "")
		close(done)
	}()

	select {
	case <-done:
		// Then the second publish dropped instead of blocking
	case <-time.After(time.Second):
		req.Fail("Publish blocked on a full channel")
	}
}

func TestHub_SweepLocks_Announces_Expired(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	hub := NewHub(log, NewRegistry(log), NewLockManager(log, time.Millisecond), observability.NewStatsManager(), 64)
	a := session("u1", "alice")
	hub.Join(a, stubSink{})
	req.True(hub.AcquireLock(a.ID, "purchase-42", domain.DocumentPurchase, "u1").Granted)
	drain(hub)

	expired := hub.SweepLocks(time.Now().UTC().Add(time.Minute))

	req.Equal(1, expired)
	req.Equal([]event.Kind{event.KindEditReleased}, kinds(drain(hub)))
}
