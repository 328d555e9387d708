package broadcast

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PatternFlow/internal/domain/models"
)

// fakeConn records deliveries; failErr makes Deliver fail.
type fakeConn struct {
	id      string
	mu      sync.Mutex
	batches map[string][][]*models.PatternEvent
	failErr error
	closed  bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, batches: make(map[string][][]*models.PatternEvent)}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Deliver(topic string, events []*models.PatternEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return c.failErr
	}
	c.batches[topic] = append(c.batches[topic], events)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) delivered(topic string) [][]*models.PatternEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches[topic]
}

func TestRegistryJoinIdempotent(t *testing.T) {
	r := NewRegistry(0)
	c := newFakeConn("c1")

	require.NoError(t, r.Join(c, "a"))
	require.NoError(t, r.Join(c, "a"))

	assert.Len(t, r.MembersOf("a"), 1)
	assert.Equal(t, 1, r.Rooms())
	assert.Equal(t, 1, r.Connections())
}

func TestRegistryLeaveDropsEmptyRoom(t *testing.T) {
	r := NewRegistry(0)
	c := newFakeConn("c1")
	require.NoError(t, r.Join(c, "a"))
	require.NoError(t, r.Join(c, "b"))

	r.Leave("c1", "a")
	assert.Empty(t, r.MembersOf("a"))
	assert.Equal(t, 1, r.Rooms())
	assert.Equal(t, 1, r.Connections())

	r.Leave("c1", "b")
	assert.Equal(t, 0, r.Rooms())
	assert.Equal(t, 0, r.Connections())
}

func TestRegistryRoomLimit(t *testing.T) {
	r := NewRegistry(2)
	c := newFakeConn("c1")
	require.NoError(t, r.Join(c, "a"))
	require.NoError(t, r.Join(c, "b"))

	err := r.Join(c, "c")
	assert.ErrorIs(t, err, ErrRoomLimit)

	// Existing rooms still accept members at the cap.
	c2 := newFakeConn("c2")
	require.NoError(t, r.Join(c2, "a"))
}

func TestRegistryPurgeIsTerminal(t *testing.T) {
	r := NewRegistry(0)
	c := newFakeConn("c1")
	require.NoError(t, r.Join(c, "a"))
	require.NoError(t, r.Join(c, "b"))

	r.Purge("c1")
	assert.Empty(t, r.MembersOf("a"))
	assert.Empty(t, r.MembersOf("b"))
	assert.Equal(t, 0, r.Connections())

	// A join racing with the purge must not resurrect the connection.
	require.NoError(t, r.Join(c, "a"))
	assert.Empty(t, r.MembersOf("a"))
}

func TestRegistryPurgeJoinRace(t *testing.T) {
	r := NewRegistry(0)
	c := newFakeConn("c1")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = r.Join(c, "a")
		}
	}()
	go func() {
		defer wg.Done()
		r.Purge("c1")
	}()
	wg.Wait()

	r.Purge("c1")
	assert.Empty(t, r.MembersOf("a"))
	assert.Equal(t, 0, r.Connections())
}

func TestRegistryMembersOfIsSnapshot(t *testing.T) {
	r := NewRegistry(0)
	c1 := newFakeConn("c1")
	c2 := newFakeConn("c2")
	require.NoError(t, r.Join(c1, "a"))
	require.NoError(t, r.Join(c2, "a"))

	members := r.MembersOf("a")
	require.Len(t, members, 2)

	r.Leave("c2", "a")
	// The earlier snapshot is unaffected by the leave.
	assert.Len(t, members, 2)
	assert.Len(t, r.MembersOf("a"), 1)
}

func TestRegistryTopics(t *testing.T) {
	r := NewRegistry(0)
	c := newFakeConn("c1")
	require.NoError(t, r.Join(c, "a"))
	require.NoError(t, r.Join(c, "b"))

	topics := r.Topics("c1")
	assert.ElementsMatch(t, []string{"a", "b"}, topics)
	assert.Empty(t, r.Topics("nope"))
}
