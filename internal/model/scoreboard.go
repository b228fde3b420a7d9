package model

import "time"

type LeaderboardEntry struct {
	Rank      int       `json:"rank"`
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

type Activity struct {
	TeamName       string    `json:"teamName"`
	ChallengeTitle string    `json:"challengeTitle"`
	Points         int       `json:"points"`
	Timestamp      time.Time `json:"timestamp"`
}
