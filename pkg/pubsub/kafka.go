package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"

	"github.com/HichuYamichu/goelearn-sub000/pkg/log"
)

// HeaderChannel carries the logical channel name on every Kafka message.
const HeaderChannel = "channel"

const defaultKafkaTopic = "meeting-signals"

const kafkaMetadataTimeoutMs = 10000

// channelKey returns the partition key for a channel: the class id, so
// that every message of one meeting lands on one partition and keeps its
// publish order.
//
//	"meeting:CLASS"       -> "CLASS"
//	"meeting:CLASS.USER"  -> "CLASS"
func channelKey(channel string) string {
	key := strings.TrimPrefix(channel, ChannelPrefix)
	if i := strings.Index(key, DirectedSeparator); i >= 0 {
		key = key[:i]
	}
	return key
}

// KafkaPubSub implements PubSub on a single Kafka topic. Every subscription
// runs its own consumer, assigned to every partition at the current end
// offsets, so that each one sees every message published after it was
// created, which is the fan-out behaviour Redis pub/sub provides.
type KafkaPubSub struct {
	producer *kafka.Producer
	config   KafkaConfig
	topic    string
	doneCh   chan struct{}

	mu   sync.Mutex
	subs map[*kafkaSubscription]struct{}
}

// NewKafkaPubSub creates a new Kafka-based PubSub instance.
func NewKafkaPubSub(cfg KafkaConfig) (*KafkaPubSub, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	topic := cfg.Topic
	if topic == "" {
		topic = defaultKafkaTopic
	}

	kps := &KafkaPubSub{
		producer: p,
		config:   cfg,
		topic:    topic,
		doneCh:   make(chan struct{}),
		subs:     make(map[*kafkaSubscription]struct{}),
	}

	go kps.deliveryReportHandler()

	if err := kps.ensureTopic(); err != nil {
		l := log.L()
		l.Warn().Err(err).Str("topic", topic).Msg("failed to ensure kafka topic (may already exist)")
	}

	return kps, nil
}

func (k *KafkaPubSub) ensureTopic() error {
	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	partitions := k.config.Partitions
	if partitions <= 0 {
		partitions = 4
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             k.topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	}})
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}

	for _, r := range results {
		if r.Error.Code() != kafka.ErrNoError && r.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Error)
		}
	}
	return nil
}

func (k *KafkaPubSub) deliveryReportHandler() {
	for e := range k.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			l := log.L()
			l.Warn().Err(m.TopicPartition.Error).Msg("kafka pubsub delivery failed")
		}
	}
	close(k.doneCh)
}

// Publish produces the event keyed by class id, with the channel name in
// a header.
func (k *KafkaPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &k.topic,
			Partition: kafka.PartitionAny,
		},
		Key:     []byte(channelKey(channel)),
		Value:   data,
		Headers: []kafka.Header{{Key: HeaderChannel, Value: []byte(channel)}},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// Subscribe consumes the topic and keeps messages whose channel is one of
// channels.
func (k *KafkaPubSub) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	return k.subscribe(ctx, channels, false)
}

// PSubscribe consumes the topic and keeps messages whose channel matches
// one of patterns.
func (k *KafkaPubSub) PSubscribe(ctx context.Context, patterns ...string) (Subscription, error) {
	return k.subscribe(ctx, patterns, true)
}

func (k *KafkaPubSub) subscribe(ctx context.Context, names []string, glob bool) (Subscription, error) {
	groupID := k.config.GroupID
	if groupID == "" {
		groupID = "meeting-relay"
	}

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  k.config.Brokers,
		"group.id":           groupID + "-" + uuid.NewString(),
		"auto.offset.reset":  "latest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	if err := k.assignFromEnd(c); err != nil {
		c.Close()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &kafkaSubscription{
		consumer: c,
		names:    names,
		glob:     glob,
		events:   make(chan *Event, subscriptionBuffer),
		cancel:   cancel,
		done:     make(chan struct{}),
		parent:   k,
	}

	k.mu.Lock()
	k.subs[sub] = struct{}{}
	k.mu.Unlock()

	go sub.run(subCtx)
	return sub, nil
}

// assignFromEnd pins c to every partition of the topic, starting at the
// offset the next published message will get, so nothing published after
// subscribe returns is skipped.
func (k *KafkaPubSub) assignFromEnd(c *kafka.Consumer) error {
	md, err := c.GetMetadata(&k.topic, false, kafkaMetadataTimeoutMs)
	if err != nil {
		return fmt.Errorf("failed to read metadata for topic %s: %w", k.topic, err)
	}
	tm, ok := md.Topics[k.topic]
	if !ok || tm.Error.Code() != kafka.ErrNoError {
		return fmt.Errorf("topic %s unavailable: %v", k.topic, tm.Error)
	}
	if len(tm.Partitions) == 0 {
		return fmt.Errorf("topic %s has no partitions", k.topic)
	}

	assignment := make([]kafka.TopicPartition, 0, len(tm.Partitions))
	for _, p := range tm.Partitions {
		_, high, err := c.QueryWatermarkOffsets(k.topic, p.ID, kafkaMetadataTimeoutMs)
		if err != nil {
			return fmt.Errorf("failed to query offsets for %s[%d]: %w", k.topic, p.ID, err)
		}
		assignment = append(assignment, kafka.TopicPartition{
			Topic:     &k.topic,
			Partition: p.ID,
			Offset:    kafka.Offset(high),
		})
	}

	if err := c.Assign(assignment); err != nil {
		return fmt.Errorf("failed to assign partitions of %s: %w", k.topic, err)
	}
	return nil
}

// Close closes all subscriptions and the producer.
func (k *KafkaPubSub) Close() error {
	k.mu.Lock()
	subs := make([]*kafkaSubscription, 0, len(k.subs))
	for s := range k.subs {
		subs = append(subs, s)
	}
	k.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}

	k.producer.Flush(5000)
	k.producer.Close()
	<-k.doneCh
	return nil
}

type kafkaSubscription struct {
	consumer *kafka.Consumer
	names    []string
	glob     bool
	events   chan *Event
	cancel   context.CancelFunc
	done     chan struct{}
	parent   *KafkaPubSub

	mu  sync.Mutex
	err error
}

func (s *kafkaSubscription) Events() <-chan *Event { return s.events }

func (s *kafkaSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *kafkaSubscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *kafkaSubscription) match(channel string) (string, bool) {
	for _, n := range s.names {
		if s.glob {
			if MatchPattern(n, channel) {
				return n, true
			}
		} else if n == channel {
			return "", true
		}
	}
	return "", false
}

func (s *kafkaSubscription) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)
	defer s.consumer.Close()
	defer func() {
		s.parent.mu.Lock()
		delete(s.parent.subs, s)
		s.parent.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := s.consumer.Poll(500)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			channel := headerValue(e.Headers, HeaderChannel)
			pattern, ok := s.match(channel)
			if !ok {
				continue
			}

			var event Event
			if err := json.Unmarshal(e.Value, &event); err != nil {
				l := log.L()
				l.Warn().Err(err).Str(log.FieldChannel, channel).Msg("dropping undecodable bus message")
				continue
			}
			event.Channel = channel
			event.Pattern = pattern

			select {
			case s.events <- &event:
			case <-ctx.Done():
				return
			}

		case kafka.Error:
			l := log.L()
			l.Error().Err(e).Int("code", int(e.Code())).Bool("fatal", e.IsFatal()).Msg("kafka pubsub error")
			if e.IsFatal() {
				s.mu.Lock()
				s.err = e
				s.mu.Unlock()
				return
			}
		}
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
