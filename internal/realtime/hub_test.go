package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

type fakePresenceStore struct {
	markConnectedFn    func(ctx context.Context, userID string) error
	markDisconnectedFn func(ctx context.Context, userID string) error
	isPresentFn        func(ctx context.Context, userID string) (bool, error)
}

func (f *fakePresenceStore) MarkConnected(ctx context.Context, userID string) error {
	if f.markConnectedFn != nil {
		return f.markConnectedFn(ctx, userID)
	}
	return nil
}

func (f *fakePresenceStore) MarkDisconnected(ctx context.Context, userID string) error {
	if f.markDisconnectedFn != nil {
		return f.markDisconnectedFn(ctx, userID)
	}
	return nil
}

func (f *fakePresenceStore) IsPresent(ctx context.Context, userID string) (bool, error) {
	if f.isPresentFn != nil {
		return f.isPresentFn(ctx, userID)
	}
	return false, nil
}

func TestHubRegisterMarksPresence(t *testing.T) {
	t.Parallel()

	var marked []string
	store := &fakePresenceStore{
		markConnectedFn: func(ctx context.Context, userID string) error {
			marked = append(marked, userID)
			return nil
		},
	}
	hub := NewHub(store, nil, zap.NewNop())

	if err := hub.Register(context.Background(), "user-1", &websocket.Conn{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if !hub.IsConnectedLocally("user-1") {
		t.Fatal("user should be connected locally after register")
	}
	if len(marked) != 1 || marked[0] != "user-1" {
		t.Fatalf("presence marks = %v", marked)
	}
}

func TestHubRegisterRejectsNilConnection(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil, nil, zap.NewNop())
	if err := hub.Register(context.Background(), "user-1", nil); err == nil {
		t.Fatal("expected error for nil connection")
	}
}

func TestHubUnregisterClearsPresenceOnLastConnection(t *testing.T) {
	t.Parallel()

	var cleared int
	store := &fakePresenceStore{
		markDisconnectedFn: func(ctx context.Context, userID string) error {
			cleared++
			return nil
		},
	}
	hub := NewHub(store, nil, zap.NewNop())

	first := &websocket.Conn{}
	second := &websocket.Conn{}
	ctx := context.Background()
	if err := hub.Register(ctx, "user-1", first); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := hub.Register(ctx, "user-1", second); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	hub.Unregister(ctx, "user-1", first)
	if cleared != 0 {
		t.Fatal("presence must stay while another connection is open")
	}
	if !hub.IsConnectedLocally("user-1") {
		t.Fatal("user should still be connected locally")
	}

	hub.Unregister(ctx, "user-1", second)
	if cleared != 1 {
		t.Fatalf("presence clears = %d, want 1 after the last connection closes", cleared)
	}
	if hub.IsConnectedLocally("user-1") {
		t.Fatal("user should be disconnected locally")
	}
}

func TestHubConnectedUsersCountsDistinctUsers(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil, nil, zap.NewNop())
	ctx := context.Background()

	_ = hub.Register(ctx, "user-1", &websocket.Conn{})
	_ = hub.Register(ctx, "user-1", &websocket.Conn{})
	_ = hub.Register(ctx, "user-2", &websocket.Conn{})

	if got := hub.ConnectedUsers(); got != 2 {
		t.Fatalf("ConnectedUsers() = %d, want 2", got)
	}
}

func TestHubPushWithoutConnections(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil, nil, zap.NewNop())
	delivered, err := hub.Push(context.Background(), "user-1", map[string]string{"type": "notification"})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if delivered {
		t.Fatal("Push() should report false without connections")
	}
}

func TestHubRegistryPrefersLocalHub(t *testing.T) {
	t.Parallel()

	store := &fakePresenceStore{
		isPresentFn: func(ctx context.Context, userID string) (bool, error) {
			t.Error("store should not be consulted when the local hub has the connection")
			return false, nil
		},
	}
	hub := NewHub(nil, nil, zap.NewNop())
	_ = hub.Register(context.Background(), "user-1", &websocket.Conn{})

	registry, err := NewHubRegistry(hub, store)
	if err != nil {
		t.Fatalf("NewHubRegistry() error = %v", err)
	}

	connected, err := registry.IsConnected(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IsConnected() error = %v", err)
	}
	if !connected {
		t.Fatal("locally registered user should be connected")
	}
}

func TestHubRegistryFallsBackToStore(t *testing.T) {
	t.Parallel()

	store := &fakePresenceStore{
		isPresentFn: func(ctx context.Context, userID string) (bool, error) {
			return userID == "user-2", nil
		},
	}
	registry, err := NewHubRegistry(NewHub(nil, nil, zap.NewNop()), store)
	if err != nil {
		t.Fatalf("NewHubRegistry() error = %v", err)
	}

	connected, err := registry.IsConnected(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("IsConnected() error = %v", err)
	}
	if !connected {
		t.Fatal("store presence should count as connected")
	}

	connected, err = registry.IsConnected(context.Background(), "user-3")
	if err != nil {
		t.Fatalf("IsConnected() error = %v", err)
	}
	if connected {
		t.Fatal("unknown user should be disconnected")
	}
}

func TestHubRegistryStoreError(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("redis down")
	store := &fakePresenceStore{
		isPresentFn: func(ctx context.Context, userID string) (bool, error) {
			return false, storeErr
		},
	}
	registry, err := NewHubRegistry(NewHub(nil, nil, zap.NewNop()), store)
	if err != nil {
		t.Fatalf("NewHubRegistry() error = %v", err)
	}

	if _, err := registry.IsConnected(context.Background(), "user-1"); !errors.Is(err, storeErr) {
		t.Fatalf("IsConnected() error = %v, want the store error", err)
	}
}

type fakeFrameRelay struct {
	subscribeFn   func(ctx context.Context, userID string) error
	unsubscribeFn func(ctx context.Context, userID string) error
	publishFn     func(ctx context.Context, userID string, frame []byte) (int64, error)
}

func (f *fakeFrameRelay) Subscribe(ctx context.Context, userID string) error {
	if f.subscribeFn != nil {
		return f.subscribeFn(ctx, userID)
	}
	return nil
}

func (f *fakeFrameRelay) Unsubscribe(ctx context.Context, userID string) error {
	if f.unsubscribeFn != nil {
		return f.unsubscribeFn(ctx, userID)
	}
	return nil
}

func (f *fakeFrameRelay) Publish(ctx context.Context, userID string, frame []byte) (int64, error) {
	if f.publishFn != nil {
		return f.publishFn(ctx, userID, frame)
	}
	return 0, nil
}

func TestHubRelaySubscriptionFollowsConnectionCount(t *testing.T) {
	t.Parallel()

	var subscribed, unsubscribed []string
	relay := &fakeFrameRelay{
		subscribeFn: func(ctx context.Context, userID string) error {
			subscribed = append(subscribed, userID)
			return nil
		},
		unsubscribeFn: func(ctx context.Context, userID string) error {
			unsubscribed = append(unsubscribed, userID)
			return nil
		},
	}
	hub := NewHub(nil, relay, zap.NewNop())

	first := &websocket.Conn{}
	second := &websocket.Conn{}
	ctx := context.Background()
	_ = hub.Register(ctx, "user-1", first)
	_ = hub.Register(ctx, "user-1", second)

	// One subscription per user, taken on the first connection only.
	if len(subscribed) != 1 || subscribed[0] != "user-1" {
		t.Fatalf("subscriptions = %v, want one for user-1", subscribed)
	}

	hub.Unregister(ctx, "user-1", first)
	if len(unsubscribed) != 0 {
		t.Fatal("subscription must stay while another connection is open")
	}

	hub.Unregister(ctx, "user-1", second)
	if len(unsubscribed) != 1 || unsubscribed[0] != "user-1" {
		t.Fatalf("unsubscriptions = %v, want one for user-1 after the last connection closes", unsubscribed)
	}
}

func TestHubPushRelaysToPeerInstance(t *testing.T) {
	t.Parallel()

	var gotUserID string
	var gotFrame []byte
	relay := &fakeFrameRelay{
		publishFn: func(ctx context.Context, userID string, frame []byte) (int64, error) {
			gotUserID = userID
			gotFrame = frame
			return 1, nil
		},
	}
	hub := NewHub(nil, relay, zap.NewNop())

	delivered, err := hub.Push(context.Background(), "user-1", map[string]string{"type": "notification"})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if !delivered {
		t.Fatal("a frame received by a peer instance counts as delivered")
	}
	if gotUserID != "user-1" {
		t.Fatalf("relayed userID = %q", gotUserID)
	}
	if string(gotFrame) != `{"type":"notification"}` {
		t.Fatalf("relayed frame = %s", gotFrame)
	}
}

func TestHubPushWithoutPeerReceivers(t *testing.T) {
	t.Parallel()

	relay := &fakeFrameRelay{
		publishFn: func(ctx context.Context, userID string, frame []byte) (int64, error) {
			return 0, nil
		},
	}
	hub := NewHub(nil, relay, zap.NewNop())

	delivered, err := hub.Push(context.Background(), "user-1", map[string]string{"type": "notification"})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if delivered {
		t.Fatal("Push() should report false when no instance holds the user")
	}
}

func TestHubPushRelayPublishError(t *testing.T) {
	t.Parallel()

	publishErr := errors.New("redis down")
	relay := &fakeFrameRelay{
		publishFn: func(ctx context.Context, userID string, frame []byte) (int64, error) {
			return 0, publishErr
		},
	}
	hub := NewHub(nil, relay, zap.NewNop())

	if _, err := hub.Push(context.Background(), "user-1", map[string]string{}); !errors.Is(err, publishErr) {
		t.Fatalf("Push() error = %v, want the publish error", err)
	}
}

// A user whose sockets live on a peer instance is reported connected through
// the shared presence mark; the push must then reach that peer instead of
// failing as not-connected.
func TestPeerHeldConnectionIsDeliverable(t *testing.T) {
	t.Parallel()

	store := &fakePresenceStore{
		isPresentFn: func(ctx context.Context, userID string) (bool, error) { return true, nil },
	}
	relay := &fakeFrameRelay{
		publishFn: func(ctx context.Context, userID string, frame []byte) (int64, error) {
			return 1, nil
		},
	}
	hub := NewHub(store, relay, zap.NewNop())
	registry, err := NewHubRegistry(hub, store)
	if err != nil {
		t.Fatalf("NewHubRegistry() error = %v", err)
	}

	connected, err := registry.IsConnected(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IsConnected() error = %v", err)
	}
	if !connected {
		t.Fatal("peer-held connection should report connected")
	}

	delivered, err := hub.Push(context.Background(), "user-1", map[string]string{"type": "notification"})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if !delivered {
		t.Fatal("a connected user must be deliverable, even from another instance")
	}
}
