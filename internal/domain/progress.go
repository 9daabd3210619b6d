package domain

import "time"

// Difficulty buckets for solved-problem statistics
type Difficulty string

const (
	DifficultyEasy    Difficulty = "Easy"
	DifficultyMedium  Difficulty = "Medium"
	DifficultyHard    Difficulty = "Hard"
	DifficultyUnknown Difficulty = "Unknown"
)

// Status represents the outcome of a problem attempt
type Status string

const (
	StatusSolved    Status = "Solved"
	StatusAttempted Status = "Attempted"
	StatusFailed    Status = "Failed"
)

// ProblemRecord is one deduplicated problem activity entry. Identity is
// ProblemID, or Title when the ID is absent or synthetic.
type ProblemRecord struct {
	ProblemID        string     `json:"problem_id"`
	Title            string     `json:"title"`
	Difficulty       Difficulty `json:"difficulty"`
	Tags             []string   `json:"tags,omitempty"`
	URL              string     `json:"url,omitempty"`
	Status           Status     `json:"status"`
	AttemptedAt      time.Time  `json:"attempted_at"`
	SolvedAt         *time.Time `json:"solved_at,omitempty"`
	TimeTakenMinutes *int       `json:"time_taken_minutes,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

// DayActivity is one day of the current calendar week
type DayActivity struct {
	Date  string `json:"date"` // 2006-01-02
	Count int    `json:"count"`
}

// MonthActivity is the activity count for one month, keyed "YYYY-M"
type MonthActivity struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// TagCount is one entry of the top-tags list
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// ProgressStats is always recomputed in full from the problems list,
// never mutated independently
type ProgressStats struct {
	TotalSolved     int             `json:"total_solved"`
	EasySolved      int             `json:"easy_solved"`
	MediumSolved    int             `json:"medium_solved"`
	HardSolved      int             `json:"hard_solved"`
	SuccessRate     float64         `json:"success_rate"`
	WeeklyActivity  []DayActivity   `json:"weekly_activity"`
	MonthlyActivity []MonthActivity `json:"monthly_activity"`
	TopTags         []TagCount      `json:"top_tags"`
}

// Progress is the accumulated problem-solving history for one user on one
// platform
type Progress struct {
	UserID      string          `json:"user_id"`
	Platform    Platform        `json:"platform"`
	Problems    []ProblemRecord `json:"problems"`
	Stats       ProgressStats   `json:"stats"`
	LastUpdated time.Time       `json:"last_updated"`
}

// SyncFailure records a platform that failed during a batch sync
type SyncFailure struct {
	Platform Platform `json:"platform"`
	Error    string   `json:"error"`
}

// SyncReport is the structured result of syncing every configured platform
// for one user
type SyncReport struct {
	Succeeded []Platform    `json:"succeeded"`
	Failed    []SyncFailure `json:"failed"`
}
