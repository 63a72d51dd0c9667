package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sribagavath/sbb-server/internal/model"
)

func userTx(userID uint64) model.Transaction {
	return model.Transaction{ID: "t1", Owner: model.Owner{UserID: userID}}
}

func deviceTx(deviceID string) model.Transaction {
	return model.Transaction{ID: "t2", Owner: model.Owner{DeviceID: deviceID}}
}

func TestNotifyReachesMatchingSubscribers(t *testing.T) {
	h := NewHub()
	all := h.Subscribe(nil)
	mine := h.Subscribe(OwnedBy(model.Owner{UserID: 7}))
	theirs := h.Subscribe(OwnedBy(model.Owner{UserID: 8}))
	defer all.Close()
	defer mine.Close()
	defer theirs.Close()

	h.Notify(userTx(7))

	assert.Len(t, all.C, 1)
	assert.Len(t, mine.C, 1)
	assert.Empty(t, theirs.C)
}

func TestDeviceOwnerFilter(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe(OwnedBy(model.Owner{DeviceID: "dev-a"}))
	defer sub.Close()

	h.Notify(deviceTx("dev-b"))
	assert.Empty(t, sub.C)

	h.Notify(deviceTx("dev-a"))
	assert.Len(t, sub.C, 1)
}

func TestNotificationsCoalesce(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe(nil)
	defer sub.Close()

	for i := 0; i < 10; i++ {
		h.Notify(userTx(1))
	}
	// Pending notifications collapse into one; the subscriber re-reads
	// the store and sees all ten changes at once.
	assert.Len(t, sub.C, 1)

	<-sub.C
	h.Notify(userTx(1))
	assert.Len(t, sub.C, 1)
}

func TestCloseUnregistersAndIsIdempotent(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe(nil)
	assert.Equal(t, 1, h.Len())

	sub.Close()
	sub.Close() // double close must not panic
	assert.Zero(t, h.Len())

	// Channel is closed after unregistering.
	_, open := <-sub.C
	assert.False(t, open)

	// Notifying with no subscribers is a no-op.
	h.Notify(userTx(1))
}
