package contest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchedule() Schedule {
	base := time.Date(2025, 5, 19, 0, 0, 0, 0, time.UTC)
	return Schedule{
		RegistrationStart: base,
		RegistrationEnd:   base.Add(11 * 24 * time.Hour),
		ContestStart:      base.Add(11*24*time.Hour + 19*time.Hour),
		Duration:          10 * time.Hour,
	}
}

func TestSchedule_PhaseAt(t *testing.T) {
	s := testSchedule()

	tests := []struct {
		name     string
		now      time.Time
		expected Phase
	}{
		{name: "long before registration", now: s.RegistrationStart.Add(-48 * time.Hour), expected: PhaseNotStarted},
		{name: "just before registration", now: s.RegistrationStart.Add(-time.Nanosecond), expected: PhaseNotStarted},
		{name: "registration start is inside", now: s.RegistrationStart, expected: PhaseRegistration},
		{name: "during registration", now: s.RegistrationStart.Add(time.Hour), expected: PhaseRegistration},
		{name: "registration end is outside", now: s.RegistrationEnd, expected: PhaseRegistrationClosed},
		{name: "between registration and contest", now: s.ContestStart.Add(-time.Minute), expected: PhaseRegistrationClosed},
		{name: "contest start is inside", now: s.ContestStart, expected: PhaseStarted},
		{name: "contest running", now: s.ContestStart.Add(5 * time.Hour), expected: PhaseStarted},
		{name: "contest end is outside", now: s.ContestEnd(), expected: PhaseEnded},
		{name: "long after", now: s.ContestEnd().Add(30 * 24 * time.Hour), expected: PhaseEnded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.PhaseAt(tt.now))
		})
	}
}

func TestSchedule_PhaseAt_CollapsedBoundaries(t *testing.T) {
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Schedule{RegistrationStart: at, RegistrationEnd: at, ContestStart: at, Duration: time.Hour}

	assert.Equal(t, PhaseNotStarted, s.PhaseAt(at.Add(-time.Second)))
	assert.Equal(t, PhaseStarted, s.PhaseAt(at))
	assert.Equal(t, PhaseEnded, s.PhaseAt(at.Add(time.Hour)))
}

func TestSchedule_Validate(t *testing.T) {
	good := testSchedule()
	require.NoError(t, good.Validate())

	noDuration := good
	noDuration.Duration = 0
	assert.Error(t, noDuration.Validate())

	reversedRegistration := good
	reversedRegistration.RegistrationEnd = good.RegistrationStart.Add(-time.Hour)
	assert.Error(t, reversedRegistration.Validate())

	earlyContest := good
	earlyContest.ContestStart = good.RegistrationEnd.Add(-time.Hour)
	assert.Error(t, earlyContest.Validate())
}

func TestGate(t *testing.T) {
	require.NoError(t, Gate(PhaseStarted, PhaseStarted))
	require.NoError(t, Gate(PhaseRegistration, PhaseRegistration, PhaseStarted))

	err := Gate(PhaseNotStarted, PhaseRegistration)
	require.Error(t, err)

	var phaseErr *PhaseError
	require.ErrorAs(t, err, &phaseErr)
	assert.Equal(t, PhaseNotStarted, phaseErr.Current)
	assert.Equal(t, "This action is not available. Registration has not started yet.", err.Error())

	assert.Equal(t, "Registration has closed. This action is no longer available.",
		Gate(PhaseRegistrationClosed, PhaseRegistration).Error())
	assert.Equal(t, "The contest has not started yet.",
		Gate(PhaseRegistrationClosed, PhaseStarted).Error())
	assert.Equal(t, "Contest has started. This action is no longer available.",
		Gate(PhaseStarted, PhaseRegistration).Error())
}

func TestClock(t *testing.T) {
	s := testSchedule()
	now := s.ContestStart.Add(time.Minute)

	c := NewClock(s).WithNow(func() time.Time { return now })

	assert.Equal(t, PhaseStarted, c.Phase())
	assert.Equal(t, now, c.Now())
	assert.NoError(t, c.Require(PhaseStarted))
	assert.Error(t, c.Require(PhaseRegistration))
	assert.Equal(t, s, c.Schedule())
}
