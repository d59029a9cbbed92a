package registry

import (
	"encoding/json"
	"testing"

	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventFulfillmentFailed, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"details":"buyer unreachable"}`)
	output, err := reg.Decode(enums.EventFulfillmentFailed, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["details"] != "buyer unreachable" {
		t.Fatalf("unexpected output %+v", output)
	}

	if _, err := reg.Decode(enums.EventFulfillmentFailed, 2, input); err == nil {
		t.Fatal("expected unknown version to fail")
	}
}

func TestDecoderRegistryRegisterJSON(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.RegisterJSON(enums.EventNotificationRequested, 1, func() any { return &payloads.NotificationRequestedEvent{} })

	userID := uuid.New()
	raw := json.RawMessage(`{"user_id":"` + userID.String() + `","type":"order_update","title":"t","message":"m"}`)
	out, err := reg.Decode(enums.EventNotificationRequested, 1, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	payload, ok := out.(*payloads.NotificationRequestedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", out)
	}
	if payload.UserID != userID || payload.Type != enums.NotificationTypeOrderUpdate {
		t.Fatalf("payload mismatch %+v", payload)
	}

	if _, err := reg.Decode(enums.EventNotificationRequested, 1, json.RawMessage(`{"user_id":5}`)); err == nil {
		t.Fatal("expected malformed payload to fail")
	}
}
