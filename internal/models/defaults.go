package models

// DefaultBusinessHours is the weekly schedule a fresh salon starts with.
// Keys are weekdays, Sunday = 0.
func DefaultBusinessHours() map[int]DayConfig {
	return map[int]DayConfig{
		0: {IsOpen: true, Start: "09:00", End: "17:00"},
		1: {IsOpen: true, Start: "09:00", End: "20:00"},
		2: {IsOpen: true, Start: "09:00", End: "20:00"},
		3: {IsOpen: true, Start: "09:00", End: "20:00"},
		4: {IsOpen: true, Start: "09:00", End: "20:00"},
		5: {IsOpen: false, Start: "09:00", End: "13:00"},
		6: {IsOpen: false, Start: "20:00", End: "23:00"},
	}
}

// ClosedDay is used when a weekday has no configuration and for new date overrides.
func ClosedDay() DayConfig {
	return DayConfig{IsOpen: false, Start: "09:00", End: "17:00"}
}

// InitialServices seeds the catalog.
func InitialServices() []Service {
	return []Service{
		{ID: "1", Name: "Gel manicure", Duration: 60, Price: 150, Color: "#fca5a5", Category: CategoryNail},
		{ID: "2", Name: "Medical pedicure", Duration: 90, Price: 200, Color: "#93c5fd", Category: CategoryNail},
		{ID: "3", Name: "Classic facial", Duration: 75, Price: 350, Color: "#d8b4fe", Category: CategoryFacial},
		{ID: "4", Name: "Full-body laser", Duration: 120, Price: 500, Color: "#86efac", Category: CategoryLaser},
	}
}

// InitialEmployees seeds the roster.
func InitialEmployees() []Employee {
	return []Employee{
		{ID: "e1", Name: "Orly (owner)", Services: []string{"1", "2", "3", "4"}},
		{ID: "e2", Name: "Roni", Services: []string{"1", "2"}},
	}
}

// InitialProducts seeds the retail catalog.
func InitialProducts() []Product {
	return []Product{
		{ID: "p1", Name: "Nail nourishing oil", Price: 45, Description: "Natural oil that strengthens nails"},
		{ID: "p2", Name: "Luxury hand cream", Price: 80, Description: "Intensive moisture with vanilla scent"},
		{ID: "p3", Name: "Home filing kit", Price: 30, Description: "Everything needed for upkeep at home"},
	}
}

// NewDocument returns the seed state used when no stored document exists.
func NewDocument() *Document {
	return &Document{
		Services:           InitialServices(),
		Appointments:       []Appointment{},
		Clients:            []Client{},
		Employees:          InitialEmployees(),
		Products:           InitialProducts(),
		WaitingList:        []WaitingEntry{},
		AdminNotifications: []Notification{},
		BusinessHours:      DefaultBusinessHours(),
		DateOverrides:      map[string]DayConfig{},
	}
}

// FillDefaults replaces missing collections with seed values so a partially
// written remote document is still usable.
func (d *Document) FillDefaults() {
	seed := NewDocument()
	if d.Services == nil {
		d.Services = seed.Services
	}
	if d.Appointments == nil {
		d.Appointments = seed.Appointments
	}
	if d.Clients == nil {
		d.Clients = seed.Clients
	}
	if d.Employees == nil {
		d.Employees = seed.Employees
	}
	if d.Products == nil {
		d.Products = seed.Products
	}
	if d.WaitingList == nil {
		d.WaitingList = seed.WaitingList
	}
	if d.AdminNotifications == nil {
		d.AdminNotifications = seed.AdminNotifications
	}
	if d.BusinessHours == nil {
		d.BusinessHours = seed.BusinessHours
	}
	if d.DateOverrides == nil {
		d.DateOverrides = seed.DateOverrides
	}
}
