package booking

import (
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"
)

// Outbox collects the notifications produced by one operation so that
// several messages to the same client collapse into a single intent.
type Outbox struct {
	doc     *models.Document
	newID   domain.IDGenerator
	now     time.Time
	clients map[string][]models.Notification
	order   []string
	admin   []models.Notification
}

// NewOutbox starts an outbox over a document snapshot.
func NewOutbox(doc *models.Document, newID domain.IDGenerator, now time.Time) *Outbox {
	return &Outbox{doc: doc, newID: newID, now: now, clients: make(map[string][]models.Notification)}
}

func (o *Outbox) notification(msg string, typ models.NotificationType) models.Notification {
	return models.Notification{
		ID:        o.newID(),
		Message:   msg,
		Timestamp: o.now,
		Read:      false,
		Type:      typ,
	}
}

// Client queues a notification for a client. Unknown clients are skipped.
func (o *Outbox) Client(clientID, msg string, typ models.NotificationType) {
	list, ok := o.clients[clientID]
	if !ok {
		c := o.doc.FindClient(clientID)
		if c == nil {
			return
		}
		list = append([]models.Notification(nil), c.Notifications...)
		o.order = append(o.order, clientID)
	}
	o.clients[clientID] = append([]models.Notification{o.notification(msg, typ)}, list...)
}

// Admin queues a notification for the admin feed.
func (o *Outbox) Admin(msg string, typ models.NotificationType) {
	o.admin = append(o.admin, o.notification(msg, typ))
}

// Intents returns the queued notifications as mutation intents.
func (o *Outbox) Intents() []domain.Intent {
	var out []domain.Intent
	for _, n := range o.admin {
		out = append(out, domain.PushAdminNotification{Notification: n})
	}
	for _, id := range o.order {
		out = append(out, domain.UpdateClientNotifications{ClientID: id, Notifications: o.clients[id]})
	}
	return out
}
