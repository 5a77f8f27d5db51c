package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPayload is returned by the alert constructors when the payload
// does not match the declared channel kind or a required field is missing.
var ErrInvalidPayload = errors.New("invalid alert payload")

type ChannelKind string

const (
	ChannelSMS       ChannelKind = "SMS"
	ChannelEmail     ChannelKind = "Email"
	ChannelAuthority ChannelKind = "Authority"
	ChannelPush      ChannelKind = "Push"
)

type AlertStatus string

const (
	StatusPending    AlertStatus = "pending"
	StatusSent       AlertStatus = "sent"
	StatusDispatched AlertStatus = "dispatched"
	StatusDelivered  AlertStatus = "delivered"
	StatusFailed     AlertStatus = "failed"
)

type AuthorityKind string

const (
	AuthorityPolice  AuthorityKind = "police"
	AuthorityFire    AuthorityKind = "fire"
	AuthorityMedical AuthorityKind = "medical"
)

const (
	MinSeverity = 1
	MaxSeverity = 5
)

// All authority kinds route to the single emergency dispatch number.
const defaultEmergencyNumber = "911"

// Payload carries the channel-specific part of an Alert. The concrete type
// must agree with the Alert's ChannelKind.
type Payload interface {
	Kind() ChannelKind
}

type SMSPayload struct {
	PhoneNumbers []string `json:"phone_numbers"`
}

func (SMSPayload) Kind() ChannelKind { return ChannelSMS }

type EmailPayload struct {
	Addresses []string `json:"addresses"`
	Subject   string   `json:"subject"`
}

func (EmailPayload) Kind() ChannelKind { return ChannelEmail }

type AuthorityPayload struct {
	Authority       AuthorityKind `json:"authority"`
	EmergencyNumber string        `json:"emergency_number"`
	Severity        int           `json:"severity"`
}

func (AuthorityPayload) Kind() ChannelKind { return ChannelAuthority }

type PushPayload struct {
	DeviceTokens []string `json:"device_tokens"`
	Title        string   `json:"title"`
}

func (PushPayload) Kind() ChannelKind { return ChannelPush }

// Alert is one channel-targeted notification derived from an incident.
// The ID is assigned at construction and never changes; the status only
// moves forward (pending is never re-entered).
type Alert struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Channel   ChannelKind `json:"channel"`
	Message   string      `json:"message"`
	Status    AlertStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	Location  Location    `json:"location"`
	Payload   Payload     `json:"payload"`
}

func newAlert(userID, message string, loc Location, payload Payload) (*Alert, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidPayload)
	}
	if message == "" {
		return nil, fmt.Errorf("%w: missing message", ErrInvalidPayload)
	}
	now := time.Now()
	return &Alert{
		ID:        fmt.Sprintf("%d_%s", now.Unix(), userID),
		UserID:    userID,
		Channel:   payload.Kind(),
		Message:   message,
		Status:    StatusPending,
		CreatedAt: now,
		Location:  loc,
		Payload:   payload,
	}, nil
}

func NewSMSAlert(userID, message string, loc Location, phones []string) (*Alert, error) {
	return newAlert(userID, message, loc, SMSPayload{PhoneNumbers: phones})
}

func NewEmailAlert(userID, message string, loc Location, addresses []string, subject string) (*Alert, error) {
	if subject == "" {
		subject = "EMERGENCY ALERT"
	}
	return newAlert(userID, message, loc, EmailPayload{Addresses: addresses, Subject: subject})
}

func NewAuthorityAlert(userID, message string, loc Location, authority AuthorityKind) (*Alert, error) {
	switch authority {
	case AuthorityPolice, AuthorityFire, AuthorityMedical:
	default:
		return nil, fmt.Errorf("%w: unknown authority kind %q", ErrInvalidPayload, authority)
	}
	return newAlert(userID, message, loc, AuthorityPayload{
		Authority:       authority,
		EmergencyNumber: defaultEmergencyNumber,
		Severity:        MaxSeverity,
	})
}

func NewPushAlert(userID, message string, loc Location, tokens []string, title string) (*Alert, error) {
	if title == "" {
		title = "EMERGENCY"
	}
	return newAlert(userID, message, loc, PushPayload{DeviceTokens: tokens, Title: title})
}

// SetSeverity sets the authority severity, clamping out-of-range values to
// the maximum. The clamp is silent; legacy callers depend on it. Alerts on
// other channels ignore the call.
func (a *Alert) SetSeverity(severity int) {
	p, ok := a.Payload.(AuthorityPayload)
	if !ok {
		return
	}
	if severity < MinSeverity || severity > MaxSeverity {
		severity = MaxSeverity
	}
	p.Severity = severity
	a.Payload = p
}

// Advance moves the status forward. Returning to pending is refused; any
// other transition is allowed so a re-dispatched alert can pick up a new
// terminal state. Reports whether the status changed.
func (a *Alert) Advance(next AlertStatus) bool {
	if next == StatusPending || next == a.Status {
		return false
	}
	a.Status = next
	return true
}

// Describe returns a channel-appropriate summary of the alert. The wording
// follows the current status, so call it after dispatch for past-tense
// phrasing; before dispatch it describes the intended action.
func (a *Alert) Describe() string {
	switch p := a.Payload.(type) {
	case SMSPayload:
		return fmt.Sprintf("SMS Alert %s %d contacts", describeVerb(a.Status), len(p.PhoneNumbers))
	case EmailPayload:
		return fmt.Sprintf("Email Alert %s %d recipients", describeVerb(a.Status), len(p.Addresses))
	case AuthorityPayload:
		if a.Status == StatusFailed {
			return fmt.Sprintf("Authority Alert - %s services dispatch failed (Severity: %d/5)", p.Authority, p.Severity)
		}
		return fmt.Sprintf("Authority Alert - %s services dispatched (Severity: %d/5)", p.Authority, p.Severity)
	case PushPayload:
		return fmt.Sprintf("Push Notification %s %d devices", describeVerb(a.Status), len(p.DeviceTokens))
	default:
		return fmt.Sprintf("%s Alert (%s)", a.Channel, a.Status)
	}
}

func describeVerb(s AlertStatus) string {
	switch s {
	case StatusPending:
		return "pending for"
	case StatusFailed:
		return "failed for"
	default:
		return "sent to"
	}
}
