package models

import (
	"encoding/json"
	"fmt"
)

// alertJSON mirrors Alert with the payload held raw so the concrete type can
// be chosen from the channel discriminant on decode.
type alertJSON struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Channel   ChannelKind     `json:"channel"`
	Message   string          `json:"message"`
	Status    AlertStatus     `json:"status"`
	CreatedAt json.RawMessage `json:"created_at"`
	Location  Location        `json:"location"`
	Payload   json.RawMessage `json:"payload"`
}

func (a *Alert) UnmarshalJSON(data []byte) error {
	var raw alertJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.ID = raw.ID
	a.UserID = raw.UserID
	a.Channel = raw.Channel
	a.Message = raw.Message
	a.Status = raw.Status
	a.Location = raw.Location
	if len(raw.CreatedAt) > 0 {
		if err := json.Unmarshal(raw.CreatedAt, &a.CreatedAt); err != nil {
			return err
		}
	}

	if len(raw.Payload) == 0 {
		a.Payload = nil
		return nil
	}

	switch raw.Channel {
	case ChannelSMS:
		var p SMSPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		a.Payload = p
	case ChannelEmail:
		var p EmailPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		a.Payload = p
	case ChannelAuthority:
		var p AuthorityPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		a.Payload = p
	case ChannelPush:
		var p PushPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		a.Payload = p
	default:
		return fmt.Errorf("unknown channel kind %q", raw.Channel)
	}
	return nil
}
