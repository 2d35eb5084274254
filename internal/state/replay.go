package state

import (
	"salonbook/internal/collision"
	"salonbook/internal/domain"
	"salonbook/internal/models"
)

// Replay re-applies unsaved local intents on top of a newer remote document.
// New appointments whose slot is now taken are dropped and returned; intents
// whose targets vanished are skipped. kept lists what was applied.
func Replay(doc *models.Document, intents []domain.Intent) (kept []domain.Intent, dropped []models.Appointment) {
	for _, in := range intents {
		if add, ok := in.(domain.AddAppointment); ok {
			a := add.Appointment
			if doc.FindAppointment(a.ID) != nil {
				continue
			}
			if collision.NewDetector(doc.Appointments).IsOccupied(a.EmployeeID, a.StartTime, a.EndTime) {
				dropped = append(dropped, a)
				continue
			}
		}
		if err := domain.Apply(doc, in); err != nil {
			continue
		}
		kept = append(kept, in)
	}
	return kept, dropped
}
