package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBridge fans frames out to other server instances over a pub/sub
// channel. Frames published by this instance are ignored on receipt.
type RedisBridge struct {
	rdb        *redis.Client
	channel    string
	instanceID string
	hub        *Hub
}

func NewRedisBridge(rdb *redis.Client, channel string, hub *Hub) *RedisBridge {
	return &RedisBridge{rdb: rdb, channel: channel, instanceID: uuid.NewString(), hub: hub}
}

func (b *RedisBridge) InstanceID() string { return b.instanceID }

func (b *RedisBridge) Publish(ctx context.Context, env Envelope) error {
	env.Origin = b.instanceID
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, data).Err()
}

// Start subscribes and attaches the bridge to the hub. Delivery stops when ctx ends.
func (b *RedisBridge) Start(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return err
	}
	b.hub.SetBridge(b)
	go b.loop(ctx, sub)
	log.Printf("[relay] bridge %s subscribed to %s", b.instanceID, b.channel)
	return nil
}

func (b *RedisBridge) loop(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("[relay] bridge: bad envelope: %v", err)
				continue
			}
			if env.Origin == b.instanceID {
				continue
			}
			b.hub.DeliverRemote(env)
		}
	}
}
