package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(ctx, exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func TestPublishEnrichUsesEnrichRoute(t *testing.T) {
	pub := new(MockPublisher)
	var sent amqp.Publishing
	pub.On("PublishWithContext", mock.Anything, ExchangeName, EnrichRoute.RoutingKey, false, false, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(5).(amqp.Publishing) }).
		Return(nil)

	p := NewProducer(pub)
	err := p.PublishEnrich(context.Background(), EnrichTask{TaskID: "t1", LeadID: "lead-1"})
	require.NoError(t, err)

	assert.Equal(t, "t1", sent.MessageId)
	assert.Equal(t, amqp.Persistent, sent.DeliveryMode)
	assert.Equal(t, "application/json", sent.ContentType)

	var decoded EnrichTask
	require.NoError(t, json.Unmarshal(sent.Body, &decoded))
	assert.Equal(t, "lead-1", decoded.LeadID)
	pub.AssertExpectations(t)
}

func TestPublishCampaignWrapsBrokerError(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishWithContext", mock.Anything, ExchangeName, CampaignRoute.RoutingKey, false, false, mock.Anything).
		Return(errors.New("channel closed"))

	err := NewProducer(pub).PublishCampaign(context.Background(), CampaignTask{TaskID: "t2", CampaignID: "c1"})
	assert.ErrorContains(t, err, "campaign")
	assert.ErrorContains(t, err, "channel closed")
}
