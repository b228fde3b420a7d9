package service

import (
	"time"

	"github.com/yakoovad/ctf-platform/internal/contest"
	"github.com/yakoovad/ctf-platform/internal/model"
)

var testSchedule = contest.Schedule{
	RegistrationStart: time.Date(2025, 5, 19, 0, 0, 0, 0, time.UTC),
	RegistrationEnd:   time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC),
	ContestStart:      time.Date(2025, 5, 30, 13, 30, 0, 0, time.UTC),
	Duration:          10 * time.Hour,
}

// clockAt returns a clock frozen inside the given phase.
func clockAt(phase contest.Phase) *contest.Clock {
	var now time.Time
	switch phase {
	case contest.PhaseNotStarted:
		now = testSchedule.RegistrationStart.Add(-time.Hour)
	case contest.PhaseRegistration:
		now = testSchedule.RegistrationStart.Add(time.Hour)
	case contest.PhaseRegistrationClosed:
		now = testSchedule.RegistrationEnd.Add(time.Hour)
	case contest.PhaseStarted:
		now = testSchedule.ContestStart.Add(time.Hour)
	case contest.PhaseEnded:
		now = testSchedule.ContestEnd().Add(time.Hour)
	}
	return contest.NewClock(testSchedule).WithNow(func() time.Time { return now })
}

func identityFor(teamID, memberID int64, leader bool) *model.Identity {
	return &model.Identity{
		Team:   &model.Team{ID: teamID, Name: "pwners"},
		Member: &model.Member{ID: memberID, Name: "alice", IsLeader: leader},
	}
}
