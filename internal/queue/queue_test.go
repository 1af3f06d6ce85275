package queue

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAcknowledger records which disposition call the wrapper made,
// letting the three Delivery methods below be tested without a live
// broker connection.
type fakeAcknowledger struct {
	acked         bool
	ackMultiple   bool
	nacked        bool
	nackMultiple  bool
	nackRequeue   bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = true
	f.ackMultiple = multiple
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = true
	f.nackMultiple = multiple
	f.nackRequeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return nil
}

func newTestDelivery(ack *fakeAcknowledger) Delivery {
	return Delivery{amqp.Delivery{Acknowledger: ack}}
}

func TestDelivery_Ack(t *testing.T) {
	ack := &fakeAcknowledger{}
	d := newTestDelivery(ack)

	require.NoError(t, d.Ack())
	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
}

func TestDelivery_RejectNoRequeue(t *testing.T) {
	ack := &fakeAcknowledger{}
	d := newTestDelivery(ack)

	require.NoError(t, d.RejectNoRequeue())
	assert.True(t, ack.nacked)
	assert.False(t, ack.nackRequeue)
	assert.False(t, ack.nackMultiple)
}

func TestDelivery_NackRequeue(t *testing.T) {
	ack := &fakeAcknowledger{}
	d := newTestDelivery(ack)

	require.NoError(t, d.NackRequeue())
	assert.True(t, ack.nacked)
	assert.True(t, ack.nackRequeue)
}

func TestTopology_DeadLetterExchangeDefaultsFromExchangeName(t *testing.T) {
	topo := Topology{Exchange: "typo3", Queue: "download.http", RoutingKey: "download.http", DeadLetter: true}

	assert.Equal(t, "typo3.deadletter", deadLetterExchangeName(topo))
}

func TestTopology_DeadLetterExchangeHonorsOverride(t *testing.T) {
	topo := Topology{Exchange: "typo3", DeadLetter: true, DLXExchange: "typo3.poison"}

	assert.Equal(t, "typo3.poison", deadLetterExchangeName(topo))
}
