package service

import (
	"context"
	"encoding/json"

	"resonance-field-be/internal/constant"
	"resonance-field-be/internal/dto"
	"resonance-field-be/internal/entity"
	"resonance-field-be/internal/pkg/logger"
	"resonance-field-be/pkg/events"
	pktNats "resonance-field-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// FieldDelivery pushes serialized event frames to connected clients.
// Implemented by the websocket hub.
type FieldDelivery interface {
	// Broadcast delivers to every client except the named session. The
	// feed never echoes a session's own events back at it.
	Broadcast(excludeSessionId string, frame []byte)

	// Send delivers to a single session's connection, if present locally.
	Send(sessionId string, frame []byte)
}

// IPresenceFeed is the event stream between the field services and the
// connected clients: session added/changed/removed, the live participant
// count, resonance deltas, and the group lifecycle. Publish methods are
// called by the services after each store mutation; Run consumes the bus
// and forwards frames to the delivery layer (and, best-effort, to NATS).
type IPresenceFeed interface {
	SessionAdded(ctx context.Context, session *entity.Session) error
	SessionChanged(ctx context.Context, session *entity.Session) error
	SessionRemoved(ctx context.Context, id string) error
	CountChanged(ctx context.Context, count int) error
	ResonanceChanged(ctx context.Context, delta dto.ResonanceDeltaEvent) error
	GroupCreated(ctx context.Context, origin string, group *entity.Group) error
	GroupUpdated(ctx context.Context, origin string, group *entity.Group) error
	GroupRemoved(ctx context.Context, origin, id string) error
	InviteSent(ctx context.Context, target string, invite dto.GroupInviteEvent) error

	// Run blocks consuming the bus until ctx is cancelled.
	Run(ctx context.Context) error
}

type presenceFeed struct {
	bus      message.Publisher
	sub      message.Subscriber
	delivery FieldDelivery
	nats     *pktNats.Publisher
	logger   logger.ILogger
}

func NewPresenceFeed(bus message.Publisher, sub message.Subscriber, delivery FieldDelivery, natsPub *pktNats.Publisher, log logger.ILogger) IPresenceFeed {
	return &presenceFeed{
		bus:      bus,
		sub:      sub,
		delivery: delivery,
		nats:     natsPub,
		logger:   log,
	}
}

func (f *presenceFeed) publish(topic, eventType, origin, target string, data interface{}) error {
	frame, err := json.Marshal(dto.Event{Type: eventType, Data: data})
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), frame)
	msg.Metadata.Set("event_type", eventType)
	if origin != "" {
		msg.Metadata.Set(constant.MetaOriginSession, origin)
	}
	if target != "" {
		msg.Metadata.Set("target_session", target)
	}
	return f.bus.Publish(topic, msg)
}

func (f *presenceFeed) SessionAdded(ctx context.Context, session *entity.Session) error {
	return f.publish(constant.TopicSessions, dto.EventSessionAdded, session.Id,
		"", dto.SessionEvent{Id: session.Id, Session: session})
}

func (f *presenceFeed) SessionChanged(ctx context.Context, session *entity.Session) error {
	return f.publish(constant.TopicSessions, dto.EventSessionChanged, session.Id,
		"", dto.SessionEvent{Id: session.Id, Session: session})
}

func (f *presenceFeed) SessionRemoved(ctx context.Context, id string) error {
	return f.publish(constant.TopicSessions, dto.EventSessionRemoved, id,
		"", dto.SessionRemovedEvent{Id: id})
}

func (f *presenceFeed) CountChanged(ctx context.Context, count int) error {
	return f.publish(constant.TopicFieldCount, dto.EventFieldCount, "",
		"", dto.FieldCountEvent{Count: count})
}

func (f *presenceFeed) ResonanceChanged(ctx context.Context, delta dto.ResonanceDeltaEvent) error {
	return f.publish(constant.TopicResonance, dto.EventResonance, "", "", delta)
}

func (f *presenceFeed) GroupCreated(ctx context.Context, origin string, group *entity.Group) error {
	return f.publish(constant.TopicGroups, dto.EventGroupCreated, origin,
		"", dto.GroupEvent{Id: group.Id, Group: group})
}

func (f *presenceFeed) GroupUpdated(ctx context.Context, origin string, group *entity.Group) error {
	return f.publish(constant.TopicGroups, dto.EventGroupUpdated, origin,
		"", dto.GroupEvent{Id: group.Id, Group: group})
}

func (f *presenceFeed) GroupRemoved(ctx context.Context, origin, id string) error {
	return f.publish(constant.TopicGroups, dto.EventGroupRemoved, origin,
		"", dto.GroupRemovedEvent{Id: id})
}

func (f *presenceFeed) InviteSent(ctx context.Context, target string, invite dto.GroupInviteEvent) error {
	return f.publish(constant.TopicGroupInvite, dto.EventGroupInvite, "", target, invite)
}

// Run consumes every feed topic and forwards frames to the delivery
// layer. Group events intentionally reach the originating session too: a
// group mutation is multi-party state, every member re-renders from it.
// Session events are suppressed for their origin (self-events are handled
// locally by the client that caused them).
func (f *presenceFeed) Run(ctx context.Context) error {
	topics := []string{
		constant.TopicSessions,
		constant.TopicFieldCount,
		constant.TopicResonance,
		constant.TopicGroups,
		constant.TopicGroupInvite,
	}
	for _, topic := range topics {
		msgs, err := f.sub.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		go f.consume(ctx, topic, msgs)
	}
	<-ctx.Done()
	return nil
}

func (f *presenceFeed) consume(ctx context.Context, topic string, msgs <-chan *message.Message) {
	for msg := range msgs {
		if target := msg.Metadata.Get("target_session"); target != "" {
			f.delivery.Send(target, msg.Payload)
		} else if topic == constant.TopicSessions {
			f.delivery.Broadcast(msg.Metadata.Get(constant.MetaOriginSession), msg.Payload)
		} else {
			f.delivery.Broadcast("", msg.Payload)
		}

		// Ack as soon as the frame is handed off: the publisher blocks on
		// it, and the mirror must not stretch that window.
		msg.Ack()
		f.mirror(ctx, msg)
	}
}

// mirror forwards the event to NATS for external consumers. Failures are
// logged and dropped: the bus is an observer, never a dependency.
func (f *presenceFeed) mirror(ctx context.Context, msg *message.Message) {
	if f.nats == nil {
		return
	}
	eventType := msg.Metadata.Get("event_type")
	if err := f.nats.Publish(ctx, events.NewFieldEvent(eventType, json.RawMessage(msg.Payload))); err != nil {
		f.logger.Warn("PresenceFeed", "Failed to mirror event to NATS", map[string]interface{}{
			"event_type": eventType,
			"error":      err.Error(),
		})
	}
}
