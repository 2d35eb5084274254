package booking

import (
	"fmt"
	"sync"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/collision"
	"salonbook/internal/models"
)

// Step is a position in the stepwise booking flow.
type Step string

const (
	StepIdle     Step = "idle"
	StepService  Step = "service"
	StepEmployee Step = "employee"
	StepDate     Step = "date"
	StepTime     Step = "time"
	StepConfirm  Step = "confirm"
	StepComplete Step = "complete"
	StepCanceled Step = "canceled"
)

// Selection holds the choices collected so far.
type Selection struct {
	ServiceID  string `json:"serviceId,omitempty"`
	EmployeeID string `json:"employeeId,omitempty"`
	Date       string `json:"date,omitempty"`
	Time       string `json:"time,omitempty"`
}

// Session is one client's booking flow.
type Session struct {
	ClientID  string
	Step      Step
	Selection Selection
	StartedAt time.Time
	UpdatedAt time.Time
	mu        sync.Mutex
}

// NewSession starts a flow at service selection.
func NewSession(clientID string) *Session {
	now := time.Now()
	return &Session{
		ClientID:  clientID,
		Step:      StepService,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// SetStep updates the session step.
func (s *Session) SetStep(step Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Step = step
	s.UpdatedAt = time.Now()
}

// GetStep returns the current step.
func (s *Session) GetStep() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Step
}

// IsExpired checks if the session has been idle longer than timeout.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.UpdatedAt) > timeout
}

// SessionStore keeps flow sessions per client.
type SessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	timeout  time.Duration
}

// NewSessionStore creates a session store.
func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		timeout:  timeout,
	}
}

// Get returns the client's session, or nil.
func (ss *SessionStore) Get(clientID string) *Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.sessions[clientID]
}

// GetOrCreate returns a live session or starts a new one.
func (ss *SessionStore) GetOrCreate(clientID string) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	session, ok := ss.sessions[clientID]
	if ok && !session.IsExpired(ss.timeout) {
		return session
	}

	session = NewSession(clientID)
	ss.sessions[clientID] = session
	return session
}

// Reset replaces the client's session with a fresh one.
func (ss *SessionStore) Reset(clientID string) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	session := NewSession(clientID)
	ss.sessions[clientID] = session
	return session
}

// Delete removes a session.
func (ss *SessionStore) Delete(clientID string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, clientID)
}

// Cleanup removes expired sessions.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for id, session := range ss.sessions {
		if session.IsExpired(ss.timeout) {
			delete(ss.sessions, id)
			removed++
		}
	}
	return removed
}

// FSM holds the allowed step transitions.
type FSM struct {
	transitions map[Step][]Step
}

// NewFSM creates the booking flow transitions, including back navigation.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[Step][]Step{
			StepIdle:     {StepService},
			StepService:  {StepEmployee, StepCanceled},
			StepEmployee: {StepDate, StepService, StepCanceled},
			StepDate:     {StepTime, StepEmployee, StepCanceled},
			StepTime:     {StepConfirm, StepDate, StepCanceled},
			StepConfirm:  {StepComplete, StepTime, StepCanceled},
			StepComplete: {StepIdle},
			StepCanceled: {StepIdle},
		},
	}
}

// CanTransition checks if a transition is allowed.
func (f *FSM) CanTransition(from, to Step) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the session if the transition is allowed.
func (f *FSM) Transition(session *Session, to Step) bool {
	if f.CanTransition(session.GetStep(), to) {
		session.SetStep(to)
		return true
	}
	return false
}

var previousStep = map[Step]Step{
	StepEmployee: StepService,
	StepDate:     StepEmployee,
	StepTime:     StepDate,
	StepConfirm:  StepTime,
}

// Flow actions.
const (
	ActionSelect  = "select"
	ActionBack    = "back"
	ActionCancel  = "cancel"
	ActionConfirm = "confirm"
	ActionRestart = "restart"
)

// Input is one user action in the flow.
type Input struct {
	Action string `json:"action"`
	Value  string `json:"value,omitempty"`
}

// View describes the flow after an input: where the client is and what can
// be chosen next.
type View struct {
	Step        Step                `json:"step"`
	Selection   Selection           `json:"selection"`
	Options     []string            `json:"options,omitempty"`
	Appointment *models.Appointment `json:"appointment,omitempty"`
}

// Flow drives per-client sessions against a document snapshot.
type Flow struct {
	engine   *Engine
	fsm      *FSM
	sessions *SessionStore
}

// NewFlow creates a flow over the engine.
func NewFlow(engine *Engine, sessions *SessionStore) *Flow {
	return &Flow{engine: engine, fsm: NewFSM(), sessions: sessions}
}

// Handle applies an input to the client's session. When the flow completes,
// the booking result is returned along with the view.
func (f *Flow) Handle(doc *models.Document, clientID string, in Input, now time.Time) (*View, *Result, error) {
	session := f.sessions.GetOrCreate(clientID)

	switch in.Action {
	case ActionRestart:
		session = f.sessions.Reset(clientID)
	case ActionCancel:
		f.fsm.Transition(session, StepCanceled)
		view := &View{Step: StepCanceled, Selection: session.Selection}
		f.sessions.Delete(clientID)
		return view, nil, nil
	case ActionBack:
		step := session.GetStep()
		prev, ok := previousStep[step]
		if !ok || !f.fsm.Transition(session, prev) {
			return nil, nil, fmt.Errorf("cannot go back from %s", step)
		}
		clearFrom(&session.Selection, prev)
	case ActionSelect:
		if err := f.selectValue(doc, session, in.Value, now); err != nil {
			return nil, nil, err
		}
	case ActionConfirm:
		if session.GetStep() != StepConfirm {
			return nil, nil, fmt.Errorf("nothing to confirm at %s", session.GetStep())
		}
		sel := session.Selection
		res, err := f.engine.Book(doc, Request{
			ClientID:   clientID,
			ServiceID:  sel.ServiceID,
			EmployeeID: sel.EmployeeID,
			Date:       sel.Date,
			Time:       sel.Time,
		}, now)
		if err != nil {
			if r, ok := IsRejection(err); ok && r.Reason == ReasonSlotOccupied {
				f.fsm.Transition(session, StepTime)
				session.Selection.Time = ""
			}
			return nil, nil, err
		}
		f.fsm.Transition(session, StepComplete)
		f.sessions.Delete(clientID)
		return &View{Step: StepComplete, Selection: sel, Appointment: &res.Appointment}, res, nil
	default:
		return nil, nil, fmt.Errorf("unknown action %q", in.Action)
	}

	return f.view(doc, session, now)
}

func (f *Flow) selectValue(doc *models.Document, session *Session, value string, now time.Time) error {
	options, err := f.options(doc, session, now)
	if err != nil {
		return err
	}
	if !contains(options, value) {
		return Reject(ReasonInvalidSlot, "%q is not available", value)
	}

	sel := &session.Selection
	switch session.GetStep() {
	case StepService:
		sel.ServiceID = value
		f.fsm.Transition(session, StepEmployee)
	case StepEmployee:
		sel.EmployeeID = value
		f.fsm.Transition(session, StepDate)
	case StepDate:
		sel.Date = value
		f.fsm.Transition(session, StepTime)
	case StepTime:
		sel.Time = value
		f.fsm.Transition(session, StepConfirm)
	default:
		return fmt.Errorf("nothing to select at %s", session.GetStep())
	}
	return nil
}

func (f *Flow) view(doc *models.Document, session *Session, now time.Time) (*View, *Result, error) {
	options, err := f.options(doc, session, now)
	if err != nil {
		return nil, nil, err
	}
	return &View{Step: session.GetStep(), Selection: session.Selection, Options: options}, nil, nil
}

// options lists the valid values for the session's current step.
func (f *Flow) options(doc *models.Document, session *Session, now time.Time) ([]string, error) {
	sel := session.Selection
	switch session.GetStep() {
	case StepService:
		out := make([]string, 0, len(doc.Services))
		for _, s := range doc.Services {
			out = append(out, s.ID)
		}
		return out, nil
	case StepEmployee:
		var out []string
		for _, e := range EmployeesForService(doc, sel.ServiceID) {
			out = append(out, e.ID)
		}
		return out, nil
	case StepDate:
		dates := availability.ScheduleOf(doc).OpenDates(now, f.engine.cfg.HorizonDays)
		out := make([]string, 0, len(dates))
		for _, d := range dates {
			out = append(out, availability.DateKey(d))
		}
		return out, nil
	case StepTime:
		service := doc.FindService(sel.ServiceID)
		if service == nil {
			return nil, NotFound("service", sel.ServiceID)
		}
		day, err := availability.ParseDate(sel.Date)
		if err != nil {
			return nil, err
		}
		gen := availability.NewGenerator(collision.NewDetector(doc.Appointments), f.engine.cfg.SlotStep)
		slots, err := gen.Generate(availability.ScheduleOf(doc), day, sel.EmployeeID, service.DurationTime())
		if err != nil {
			return nil, err
		}
		var out []string
		for _, s := range availability.AvailableOnly(slots) {
			out = append(out, s.Label)
		}
		return out, nil
	}
	return nil, nil
}

func clearFrom(sel *Selection, step Step) {
	switch step {
	case StepService:
		sel.ServiceID = ""
		fallthrough
	case StepEmployee:
		sel.EmployeeID = ""
		fallthrough
	case StepDate:
		sel.Date = ""
		fallthrough
	case StepTime:
		sel.Time = ""
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
