package model

import (
	"strings"
	"time"
)

type Team struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ContactNo string    `json:"contactNo"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
	Members   []*Member `json:"members,omitempty"`
}

type Member struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsLeader bool   `json:"isLeader"`
}

// Identity is an authenticated team member.
type Identity struct {
	Team   *Team   `json:"team"`
	Member *Member `json:"member"`
}

type RegisterTeam struct {
	Name      string       `json:"name" validate:"required,min=2,max=16"`
	ContactNo string       `json:"contactNo" validate:"required,phone"`
	Password  string       `json:"password" validate:"required,min=8,max=128"`
	Members   []*NewMember `json:"members" validate:"required,min=2,max=4,dive,required"`
}

// Normalize trims every field and lower-cases member emails.
func (r *RegisterTeam) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.ContactNo = strings.TrimSpace(r.ContactNo)
	for _, m := range r.Members {
		if m == nil {
			continue
		}
		m.Name = strings.TrimSpace(m.Name)
		m.Email = NormalizeEmail(m.Email)
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type NewMember struct {
	Name  string `json:"name" validate:"required,min=2,max=24"`
	Email string `json:"email" validate:"required,email,institutional_email"`
}

type Login struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (l *Login) Normalize() {
	l.Email = NormalizeEmail(l.Email)
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	TeamID    int64     `json:"teamId"`
	MemberID  int64     `json:"memberId"`
}

type TeamUpdate struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,min=2,max=16"`
	CurrentPassword string  `json:"currentPassword,omitempty"`
	NewPassword     string  `json:"newPassword,omitempty" validate:"omitempty,min=8,max=128"`
}

func (u *TeamUpdate) Normalize() {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		u.Name = &name
	}
}

// Empty reports whether the update changes nothing.
func (u *TeamUpdate) Empty() bool {
	return u.Name == nil && u.CurrentPassword == "" && u.NewPassword == ""
}

type TeamStats struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Score      int        `json:"score"`
	CreatedAt  time.Time  `json:"createdAt"`
	SolveCount int        `json:"solveCount"`
	LastSolve  *LastSolve `json:"lastSolve"`
}

type LastSolve struct {
	Time      time.Time `json:"time"`
	Challenge string    `json:"challenge"`
	Points    int       `json:"points"`
}
