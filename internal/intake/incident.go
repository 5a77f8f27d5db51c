package intake

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/beaconops/emergency-dispatch/internal/models"
	"github.com/beaconops/emergency-dispatch/internal/repository"
)

// Incident is one emergency event as reported by a user. The intake layer
// fans it out into one alert per target channel before dispatch.
type Incident struct {
	ID        string               `json:"id"`
	UserID    string               `json:"user_id" binding:"required"`
	Message   string               `json:"message" binding:"required"`
	Severity  int                  `json:"severity"`
	Authority models.AuthorityKind `json:"authority,omitempty"`
	Location  models.Location      `json:"location"`
	// Channels limits the fan-out; empty means every channel the user's
	// contact list can reach, plus Authority when an authority kind is set.
	Channels []models.ChannelKind `json:"channels,omitempty"`
}

// NewIncident assigns a request ID if the caller did not.
func NewIncident(userID, message string, loc models.Location) Incident {
	return Incident{
		ID:       uuid.NewString(),
		UserID:   userID,
		Message:  message,
		Location: loc,
	}
}

func (inc Incident) wantsChannel(kind models.ChannelKind) bool {
	if len(inc.Channels) == 0 {
		return true
	}
	for _, c := range inc.Channels {
		if c == kind {
			return true
		}
	}
	return false
}

// BuildAlerts turns an incident into its per-channel alert set using the
// user's contact list for recipients. Recipient lists may come back empty;
// dispatching those is a successful no-op by contract.
func BuildAlerts(ctx context.Context, book repository.ContactBook, inc Incident) ([]*models.Alert, error) {
	contacts, err := book.ListContacts(ctx, inc.UserID)
	if err != nil {
		return nil, fmt.Errorf("list contacts for user %s: %w", inc.UserID, err)
	}

	var phones, emails, tokens []string
	for _, c := range contacts {
		if c.Phone != "" {
			phones = append(phones, c.Phone)
		}
		if c.Email != "" {
			emails = append(emails, c.Email)
		}
		if c.DeviceToken != "" {
			tokens = append(tokens, c.DeviceToken)
		}
	}

	var alerts []*models.Alert

	if inc.wantsChannel(models.ChannelSMS) {
		a, err := models.NewSMSAlert(inc.UserID, inc.Message, inc.Location, phones)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	if inc.wantsChannel(models.ChannelEmail) {
		a, err := models.NewEmailAlert(inc.UserID, inc.Message, inc.Location, emails, "")
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	if inc.wantsChannel(models.ChannelPush) {
		a, err := models.NewPushAlert(inc.UserID, inc.Message, inc.Location, tokens, "")
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	if inc.Authority != "" && inc.wantsChannel(models.ChannelAuthority) {
		a, err := models.NewAuthorityAlert(inc.UserID, inc.Message, inc.Location, inc.Authority)
		if err != nil {
			return nil, err
		}
		if inc.Severity != 0 {
			a.SetSeverity(inc.Severity)
		}
		alerts = append(alerts, a)
	}

	if len(alerts) == 0 {
		return nil, fmt.Errorf("incident %s targets no channels", inc.ID)
	}
	return alerts, nil
}
