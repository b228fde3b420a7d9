package model

import "time"

// Challenge is the client-facing view of a challenge. It never carries the flag.
type Challenge struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Points      int       `json:"points"`
	Files       []string  `json:"files"`
	Solves      int       `json:"solves"`
	IsSolved    bool      `json:"isSolved"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ChallengeList struct {
	Categories           []string                `json:"categories"`
	ChallengesByCategory map[string][]*Challenge `json:"challengesByCategory"`
}

type SubmitFlag struct {
	Flag string `json:"flag" validate:"required,max=512"`
}

type SubmitResult struct {
	Points  int    `json:"points"`
	Message string `json:"message"`
}
