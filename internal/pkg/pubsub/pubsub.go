package pubsub

import (
	"context"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/utils"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

type Publishable interface {
	GetEventTopicName() string
}

// SubscriptionHandler binds a message callback to an existing subscription.
// The callback acks or nacks on its own.
type SubscriptionHandler struct {
	SubscriptionId string
	Handler        func(ctx context.Context, message *pubsub.Message)
}

type Client struct {
	client *pubsub.Client

	topicsMutex sync.Mutex
	topics      map[string]*pubsub.Topic
	pending     sync.WaitGroup
}

func NewClient(ctx context.Context, projectId string, opts ...option.ClientOption) (*Client, error) {
	client, err := pubsub.NewClient(ctx, projectId, opts...)
	if err != nil {
		return nil, err
	}
	log.Info().Str("project_id", projectId).Msg("Successful pubsub init")
	return &Client{
		client: client,
		topics: map[string]*pubsub.Topic{},
	}, nil
}

// Subscribe blocks receiving messages until ctx is done.
func (c *Client) Subscribe(ctx context.Context, subscriptionHandler SubscriptionHandler) error {
	sub := c.client.Subscription(subscriptionHandler.SubscriptionId)
	err := sub.Receive(ctx, subscriptionHandler.Handler)
	if err != nil {
		log.Error().Err(err).Str("subscription", subscriptionHandler.SubscriptionId).Msg("Subscriber error")
	}
	return err
}

// Publish hands message to the topic it names. Delivery is confirmed in the
// background and failures are only logged.
func (c *Client) Publish(ctx context.Context, message Publishable) {
	data, err := utils.JsonEncode(message)
	if err != nil {
		log.Warn().Err(err).Msg("Cannot encode pubsub message")
		return
	}

	t, err := c.getTopic(ctx, message.GetEventTopicName())
	if err != nil {
		log.Error().Err(err).Str("topic", message.GetEventTopicName()).Msg("Cannot resolve topic")
		return
	}

	result := t.Publish(ctx, &pubsub.Message{Data: data})

	c.pending.Add(1)
	go func(res *pubsub.PublishResult) {
		defer c.pending.Done()
		if _, err := res.Get(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Str("topic", message.GetEventTopicName()).Msg("Failed to publish message")
		}
	}(result)
}

// Flush waits until every message handed to Publish has been acknowledged
// or has failed.
func (c *Client) Flush() {
	c.pending.Wait()
}

func (c *Client) Close() error {
	c.Flush()
	c.topicsMutex.Lock()
	for _, t := range c.topics {
		t.Stop()
	}
	c.topics = map[string]*pubsub.Topic{}
	c.topicsMutex.Unlock()
	return c.client.Close()
}

func (c *Client) getTopic(ctx context.Context, topicName string) (*pubsub.Topic, error) {
	c.topicsMutex.Lock()
	defer c.topicsMutex.Unlock()

	if t, ok := c.topics[topicName]; ok {
		return t, nil
	}

	t := c.client.Topic(topicName)
	exists, err := t.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		log.Info().Str("topic", topicName).Msg("Topic does not exist. Creating new")
		t, err = c.client.CreateTopic(ctx, topicName)
		if err != nil {
			return nil, err
		}
	}
	c.topics[topicName] = t
	return t, nil
}
