package models

import "time"

// DefaultEmployeeID identifies the synthetic "general staff" employee used
// when the roster is empty.
const DefaultEmployeeID = "default"

// Role of the replica holding a document.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleClient Role = "CLIENT"
)

// AppointmentStatus is the lifecycle status of an appointment.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Active reports whether the status still holds a slot.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// ServiceCategory groups services in the catalog.
type ServiceCategory string

const (
	CategoryNail   ServiceCategory = "nail"
	CategoryLaser  ServiceCategory = "laser"
	CategoryFacial ServiceCategory = "facial"
)

// NotificationType drives how a notification is rendered.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationAlert   NotificationType = "alert"
)

// DayConfig describes opening hours for a weekday or a specific date.
// Start and End are ignored when IsOpen is false.
type DayConfig struct {
	IsOpen bool   `json:"isOpen" yaml:"is_open"`
	Start  string `json:"start" yaml:"start"` // "09:00"
	End    string `json:"end" yaml:"end"`     // "17:00"
}

// Service is a bookable treatment.
type Service struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Duration int             `json:"duration"` // minutes
	Price    float64         `json:"price"`
	Color    string          `json:"color"`
	Category ServiceCategory `json:"category"`
}

// DurationTime returns the service length as a time.Duration.
func (s Service) DurationTime() time.Duration {
	return time.Duration(s.Duration) * time.Minute
}

// Employee is a staff member and the services they perform.
type Employee struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Services []string `json:"services"`
}

// Serves reports whether the employee is assigned to the service.
func (e Employee) Serves(serviceID string) bool {
	for _, id := range e.Services {
		if id == serviceID {
			return true
		}
	}
	return false
}

// DefaultEmployee is substituted when no employees exist.
func DefaultEmployee() Employee {
	return Employee{ID: DefaultEmployeeID, Name: "General staff"}
}

// ChangeProposal is an admin-suggested new time and price awaiting client approval.
type ChangeProposal struct {
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	PriceAtBooking float64   `json:"priceAtBooking"`
}

// SwapRequest is attached to an appointment whose slot another client wants.
type SwapRequest struct {
	FromAppointmentID  string `json:"fromAppointmentId"`
	RequestingClientID string `json:"requestingClientId"`
}

// Appointment is a booked treatment. Appointments are never deleted;
// cancellation is terminal.
type Appointment struct {
	ID                  string            `json:"id"`
	ClientID            string            `json:"clientId"`
	ServiceID           string            `json:"serviceId"`
	EmployeeID          string            `json:"employeeId"`
	StartTime           time.Time         `json:"startTime"`
	EndTime             time.Time         `json:"endTime"`
	Status              AppointmentStatus `json:"status"`
	ConfirmedByClient   bool              `json:"confirmedByClient"`
	PriceAtBooking      float64           `json:"priceAtBooking"`
	Notes               string            `json:"notes,omitempty"`
	ReceiptImage        string            `json:"receiptImage,omitempty"`
	ReceiptRequested    bool              `json:"receiptRequested,omitempty"`
	ChangeProposal      *ChangeProposal   `json:"changeProposal,omitempty"`
	IncomingSwapRequest *SwapRequest      `json:"incomingSwapRequest,omitempty"`
}

// Notification is a message shown to the admin or a client.
type Notification struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
	Type      NotificationType `json:"type"`
}

// Client is a registered customer.
type Client struct {
	ID                      string         `json:"id"`
	Name                    string         `json:"name"`
	Phone                   string         `json:"phone"`
	Password                string         `json:"password,omitempty"`
	HealthDeclarationSigned bool           `json:"healthDeclarationSigned"`
	LastVisit               *time.Time     `json:"lastVisit,omitempty"`
	Notes                   []string       `json:"notes"`
	Notifications           []Notification `json:"notifications"`
	CanRescheduleConfirmed  bool           `json:"canRescheduleConfirmed,omitempty"`
}

// UnreadCount returns the number of unread notifications.
func (c *Client) UnreadCount() int {
	n := 0
	for _, notif := range c.Notifications {
		if !notif.Read {
			n++
		}
	}
	return n
}

// Product is a retail item shown in the catalog.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	Description string  `json:"description"`
}

// WaitingEntry records a client's interest in a fully booked date.
type WaitingEntry struct {
	ClientID      string `json:"clientId"`
	ServiceID     string `json:"serviceId"`
	PreferredDate string `json:"preferredDate"`
}
