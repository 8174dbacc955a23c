package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSnapshot struct {
	Available bool
	Value     int
}

func fakeEqual(a, b fakeSnapshot) bool { return a == b }

func TestStationConnectNotifiesOnceWithCurrentSnapshot(t *testing.T) {
	s := NewStation(fakeSnapshot{Available: true, Value: 7}, fakeEqual)

	var got []fakeSnapshot
	s.Connect(func(snap fakeSnapshot) { got = append(got, snap) })

	assert.Equal(t, []fakeSnapshot{{Available: true, Value: 7}}, got)
}

func TestStationPublishSuppressesEqualSnapshots(t *testing.T) {
	s := NewStation(fakeSnapshot{}, fakeEqual)

	calls := 0
	s.Connect(func(fakeSnapshot) { calls++ })
	assert.Equal(t, 1, calls) // initial synchronous notify

	assert.True(t, s.Publish(fakeSnapshot{Value: 1}))
	assert.False(t, s.Publish(fakeSnapshot{Value: 1}))
	assert.True(t, s.Publish(fakeSnapshot{Value: 2}))

	assert.Equal(t, 3, calls, "exactly one dispatch per distinct snapshot")
}

func TestStationDisconnectStopsDelivery(t *testing.T) {
	s := NewStation(fakeSnapshot{}, fakeEqual)

	calls := 0
	id := s.Connect(func(fakeSnapshot) { calls++ })
	s.Disconnect(id)
	s.Publish(fakeSnapshot{Value: 3})

	assert.Equal(t, 1, calls)
	assert.Zero(t, s.Subscribers())
}

func TestStationSnapshotReflectsLastPublish(t *testing.T) {
	s := NewStation(fakeSnapshot{}, fakeEqual)
	s.Publish(fakeSnapshot{Available: true, Value: 9})

	assert.Equal(t, fakeSnapshot{Available: true, Value: 9}, s.Snapshot())
}
