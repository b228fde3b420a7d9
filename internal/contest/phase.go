// Package contest derives the event phase from the configured schedule and
// gates actions on it.
package contest

import (
	"fmt"
	"slices"
	"time"
)

type Phase string

const (
	PhaseNotStarted         Phase = "NOT_STARTED"
	PhaseRegistration       Phase = "REGISTRATION"
	PhaseRegistrationClosed Phase = "REGISTRATION_CLOSED"
	PhaseStarted            Phase = "STARTED"
	PhaseEnded              Phase = "ENDED"
)

// Schedule holds the phase boundaries. Every interval is half-open: a start
// bound belongs to its phase, an end bound to the next one.
type Schedule struct {
	RegistrationStart time.Time     `json:"registrationStart"`
	RegistrationEnd   time.Time     `json:"registrationEnd"`
	ContestStart      time.Time     `json:"contestStart"`
	Duration          time.Duration `json:"-"`
}

func (s Schedule) ContestEnd() time.Time {
	return s.ContestStart.Add(s.Duration)
}

func (s Schedule) Validate() error {
	switch {
	case s.Duration <= 0:
		return fmt.Errorf("contest duration must be positive, got %s", s.Duration)
	case s.RegistrationEnd.Before(s.RegistrationStart):
		return fmt.Errorf("registration ends before it starts")
	case s.ContestStart.Before(s.RegistrationEnd):
		return fmt.Errorf("contest starts before registration ends")
	}
	return nil
}

func (s Schedule) PhaseAt(now time.Time) Phase {
	switch {
	case now.Before(s.RegistrationStart):
		return PhaseNotStarted
	case now.Before(s.RegistrationEnd):
		return PhaseRegistration
	case now.Before(s.ContestStart):
		return PhaseRegistrationClosed
	case now.Before(s.ContestEnd()):
		return PhaseStarted
	default:
		return PhaseEnded
	}
}

// PhaseError is returned when an action is attempted outside its allowed phases.
type PhaseError struct {
	Current Phase
	Allowed []Phase
}

func (e *PhaseError) Error() string {
	switch e.Current {
	case PhaseNotStarted:
		return "This action is not available. Registration has not started yet."
	case PhaseRegistration:
		return "This action is not available during registration period."
	case PhaseRegistrationClosed:
		if slices.Contains(e.Allowed, PhaseStarted) {
			return "The contest has not started yet."
		}
		return "Registration has closed. This action is no longer available."
	case PhaseStarted:
		return "Contest has started. This action is no longer available."
	case PhaseEnded:
		return "The contest has ended. This action is no longer available."
	}
	return "This action is not available at this time."
}

// Gate returns nil when current is one of allowed, a *PhaseError otherwise.
func Gate(current Phase, allowed ...Phase) error {
	if slices.Contains(allowed, current) {
		return nil
	}
	return &PhaseError{Current: current, Allowed: allowed}
}

// Clock reports phases for a schedule against a time source.
type Clock struct {
	schedule Schedule
	now      func() time.Time
}

func NewClock(schedule Schedule) *Clock {
	return &Clock{schedule: schedule, now: time.Now}
}

// WithNow replaces the time source. Used by tests.
func (c *Clock) WithNow(now func() time.Time) *Clock {
	c.now = now
	return c
}

func (c *Clock) Now() time.Time {
	return c.now()
}

func (c *Clock) Phase() Phase {
	return c.schedule.PhaseAt(c.now())
}

func (c *Clock) Schedule() Schedule {
	return c.schedule
}

// Require gates the current phase.
func (c *Clock) Require(allowed ...Phase) error {
	return Gate(c.Phase(), allowed...)
}
