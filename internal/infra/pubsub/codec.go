package pubsub

import (
	"encoding/json"
	"strings"
	"time"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrMalformedChange marks payloads that can never be applied; they are acknowledged and dropped.
var ErrMalformedChange = errors.New("malformed change payload")

// wireChange is the JSON shape of a row change on the bus.
type wireChange struct {
	Type      string          `json:"type"`
	Table     string          `json:"table"`
	Record    json.RawMessage `json:"record,omitempty"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

type wireKey struct {
	ID uuid.UUID `json:"id"`
}

func newRecord(kind entity.Kind) entity.Record {
	switch kind {
	case entity.KindCheckIn:
		return &entity.CheckIn{}
	case entity.KindGoingIntention:
		return &entity.GoingIntention{}
	case entity.KindLivePost:
		return &entity.LivePost{}
	case entity.KindPromotion:
		return &entity.Promotion{}
	case entity.KindPromotionClaim:
		return &entity.PromotionClaim{}
	case entity.KindMatch:
		return &entity.Match{}
	case entity.KindMessage:
		return &entity.Message{}
	default:
		return nil
	}
}

// DecodeChange maps a wire payload to a typed ChangeEvent.
func DecodeChange(data []byte, receivedAt time.Time) (*service.ChangeEvent, error) {
	var wire wireChange
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, errors.Wrap(ErrMalformedChange, err.Error())
	}

	kind, ok := entity.ParseKind(wire.Table)
	if !ok {
		return nil, errors.Wrapf(ErrMalformedChange, "unknown table %q", wire.Table)
	}

	event := &service.ChangeEvent{Relation: kind, ReceivedAt: receivedAt}
	switch op := service.ChangeOp(strings.ToUpper(wire.Type)); op {
	case service.OpInsert, service.OpUpdate:
		event.Op = op
		if len(wire.Record) == 0 {
			return nil, errors.Wrapf(ErrMalformedChange, "%s on %s without record", op, kind)
		}
		record := newRecord(kind)
		if err := json.Unmarshal(wire.Record, record); err != nil {
			return nil, errors.Wrapf(ErrMalformedChange, "decode %s record: %v", kind, err)
		}
		event.Record = record
		event.ID = record.RecordID()
	case service.OpDelete:
		event.Op = op
		raw := wire.OldRecord
		if len(raw) == 0 {
			raw = wire.Record
		}
		var key wireKey
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &key); err != nil {
				return nil, errors.Wrapf(ErrMalformedChange, "decode %s key: %v", kind, err)
			}
		}
		event.ID = key.ID
	default:
		return nil, errors.Wrapf(ErrMalformedChange, "unknown change type %q", wire.Type)
	}

	if event.ID == uuid.Nil {
		return nil, errors.Wrapf(ErrMalformedChange, "%s on %s without id", event.Op, kind)
	}

	return event, nil
}

// EncodeChange renders event in the wire format.
func EncodeChange(event *service.ChangeEvent) ([]byte, error) {
	wire := wireChange{Type: string(event.Op), Table: string(event.Relation)}
	if event.Record != nil {
		record, err := json.Marshal(event.Record)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		wire.Record = record
	}
	if event.Op == service.OpDelete {
		key, err := json.Marshal(wireKey{ID: event.ID})
		if err != nil {
			return nil, errors.WithStack(err)
		}
		wire.OldRecord = key
	}

	data, err := json.Marshal(wire)

	return data, errors.WithStack(err)
}
