package state

import "salonbook/internal/models"

// Identity is who the local replica acts for. It is never persisted.
type Identity struct {
	Role     models.Role
	ClientID string
}

// IsAdmin reports whether the replica is the admin's.
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// Reconcile merges a freshly pulled remote document into the local one.
//
// Shared records (appointments, clients, notifications, waiting list) always
// come from remote. The admin replica owns configuration (services,
// employees, products, business hours, date overrides) and keeps its local
// copy; client replicas adopt the remote configuration. A client replica
// keeps its own client record when remote does not have it yet.
func Reconcile(local, remote *models.Document, id Identity) *models.Document {
	merged := remote.Clone()
	merged.FillDefaults()

	if local == nil {
		return merged
	}

	if id.IsAdmin() {
		cfg := local.Clone()
		merged.Services = cfg.Services
		merged.Employees = cfg.Employees
		merged.Products = cfg.Products
		merged.BusinessHours = cfg.BusinessHours
		merged.DateOverrides = cfg.DateOverrides
		merged.FillDefaults()
		return merged
	}

	if id.ClientID != "" && merged.FindClient(id.ClientID) == nil {
		if own := local.Clone().FindClient(id.ClientID); own != nil {
			merged.Clients = append(merged.Clients, *own)
		}
	}
	return merged
}
