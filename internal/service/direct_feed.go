package service

import (
	"context"
	"encoding/json"

	"resonance-field-be/internal/dto"
	"resonance-field-be/internal/entity"
	"resonance-field-be/internal/pkg/logger"
)

// directFeed delivers frames synchronously, without the bus. Used by the
// simulation driver and anywhere else the async hop is unwanted; the
// serialized frames are identical to the bus-backed feed's.
type directFeed struct {
	delivery FieldDelivery
	logger   logger.ILogger
}

func NewDirectFeed(delivery FieldDelivery, log logger.ILogger) IPresenceFeed {
	return &directFeed{delivery: delivery, logger: log}
}

func (f *directFeed) emit(eventType, origin, target string, data interface{}) error {
	frame, err := json.Marshal(dto.Event{Type: eventType, Data: data})
	if err != nil {
		return err
	}
	if target != "" {
		f.delivery.Send(target, frame)
		return nil
	}
	f.delivery.Broadcast(origin, frame)
	return nil
}

func (f *directFeed) SessionAdded(_ context.Context, session *entity.Session) error {
	return f.emit(dto.EventSessionAdded, session.Id, "", dto.SessionEvent{Id: session.Id, Session: session})
}

func (f *directFeed) SessionChanged(_ context.Context, session *entity.Session) error {
	return f.emit(dto.EventSessionChanged, session.Id, "", dto.SessionEvent{Id: session.Id, Session: session})
}

func (f *directFeed) SessionRemoved(_ context.Context, id string) error {
	return f.emit(dto.EventSessionRemoved, id, "", dto.SessionRemovedEvent{Id: id})
}

func (f *directFeed) CountChanged(_ context.Context, count int) error {
	return f.emit(dto.EventFieldCount, "", "", dto.FieldCountEvent{Count: count})
}

func (f *directFeed) ResonanceChanged(_ context.Context, delta dto.ResonanceDeltaEvent) error {
	return f.emit(dto.EventResonance, "", "", delta)
}

func (f *directFeed) GroupCreated(_ context.Context, origin string, group *entity.Group) error {
	return f.emit(dto.EventGroupCreated, "", "", dto.GroupEvent{Id: group.Id, Group: group})
}

func (f *directFeed) GroupUpdated(_ context.Context, origin string, group *entity.Group) error {
	return f.emit(dto.EventGroupUpdated, "", "", dto.GroupEvent{Id: group.Id, Group: group})
}

func (f *directFeed) GroupRemoved(_ context.Context, origin, id string) error {
	return f.emit(dto.EventGroupRemoved, "", "", dto.GroupRemovedEvent{Id: id})
}

func (f *directFeed) InviteSent(_ context.Context, target string, invite dto.GroupInviteEvent) error {
	return f.emit(dto.EventGroupInvite, "", target, invite)
}

func (f *directFeed) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
