package models

// Document is the shared application state persisted as a single blob.
type Document struct {
	Services           []Service            `json:"services"`
	Appointments       []Appointment        `json:"appointments"`
	Clients            []Client             `json:"clients"`
	Employees          []Employee           `json:"employees"`
	Products           []Product            `json:"products"`
	WaitingList        []WaitingEntry       `json:"waitingList"`
	AdminNotifications []Notification       `json:"adminNotifications"`
	BusinessHours      map[int]DayConfig    `json:"businessHours"`
	DateOverrides      map[string]DayConfig `json:"dateOverrides"`

	// Version is maintained by stores that support compare-and-swap.
	Version int64 `json:"version,omitempty"`
}

// FindAppointment returns the appointment with id or nil.
func (d *Document) FindAppointment(id string) *Appointment {
	for i := range d.Appointments {
		if d.Appointments[i].ID == id {
			return &d.Appointments[i]
		}
	}
	return nil
}

// FindClient returns the client with id or nil.
func (d *Document) FindClient(id string) *Client {
	for i := range d.Clients {
		if d.Clients[i].ID == id {
			return &d.Clients[i]
		}
	}
	return nil
}

// FindClientByPhone returns the client registered with phone or nil.
func (d *Document) FindClientByPhone(phone string) *Client {
	for i := range d.Clients {
		if d.Clients[i].Phone == phone {
			return &d.Clients[i]
		}
	}
	return nil
}

// FindService returns the service with id or nil.
func (d *Document) FindService(id string) *Service {
	for i := range d.Services {
		if d.Services[i].ID == id {
			return &d.Services[i]
		}
	}
	return nil
}

// FindEmployee returns the employee with id or nil.
func (d *Document) FindEmployee(id string) *Employee {
	for i := range d.Employees {
		if d.Employees[i].ID == id {
			return &d.Employees[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can work on an immutable snapshot.
// Nil collections stay nil so FillDefaults can still tell them apart from
// empty ones.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Services:           cloneSlice(d.Services),
		Appointments:       cloneSlice(d.Appointments),
		Clients:            cloneSlice(d.Clients),
		Employees:          cloneSlice(d.Employees),
		Products:           cloneSlice(d.Products),
		WaitingList:        cloneSlice(d.WaitingList),
		AdminNotifications: cloneSlice(d.AdminNotifications),
		BusinessHours:      cloneMap(d.BusinessHours),
		DateOverrides:      cloneMap(d.DateOverrides),
		Version:            d.Version,
	}
	for i := range out.Appointments {
		a := &out.Appointments[i]
		if a.ChangeProposal != nil {
			cp := *a.ChangeProposal
			a.ChangeProposal = &cp
		}
		if a.IncomingSwapRequest != nil {
			sr := *a.IncomingSwapRequest
			a.IncomingSwapRequest = &sr
		}
	}
	for i := range out.Clients {
		c := &out.Clients[i]
		c.Notes = cloneSlice(c.Notes)
		c.Notifications = cloneSlice(c.Notifications)
		if c.LastVisit != nil {
			lv := *c.LastVisit
			c.LastVisit = &lv
		}
	}
	for i := range out.Employees {
		out.Employees[i].Services = cloneSlice(out.Employees[i].Services)
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	if in == nil {
		return nil
	}
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
