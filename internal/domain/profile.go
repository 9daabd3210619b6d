package domain

import "time"

// User represents a registered account
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastLogin   time.Time `json:"last_login"`
}

// PlatformHandle links a user to their username on one external platform.
// At most one handle per (user, platform).
type PlatformHandle struct {
	UserID         string     `json:"user_id"`
	Platform       Platform   `json:"platform"`
	Handle         string     `json:"handle"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	SyncInProgress bool       `json:"sync_in_progress"`
	LastSyncError  string     `json:"last_sync_error,omitempty"`
}

// RawSubmission is a single submission as reported by a platform,
// before verdict mapping
type RawSubmission struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug,omitempty"`
	URL         string    `json:"url,omitempty"`
	Verdict     string    `json:"verdict,omitempty"`
	Language    string    `json:"language,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ContestResult is one entry of a platform's contest rating history
type ContestResult struct {
	ContestID string    `json:"contest_id"`
	Name      string    `json:"name"`
	Rank      int       `json:"rank"`
	Rating    int       `json:"rating"`
	At        time.Time `json:"at,omitempty"`
}

// RawRecord is the source-specific extraction result for one handle.
// Fields holds the flat key/value bag the normalizer maps from; keys are
// platform-specific and absent keys mean the selector yielded nothing.
type RawRecord struct {
	Platform       Platform               `json:"platform"`
	Username       string                 `json:"username"`
	Name           string                 `json:"name,omitempty"`
	AvatarURL      string                 `json:"avatar_url,omitempty"`
	ProfileURL     string                 `json:"profile_url,omitempty"`
	Country        string                 `json:"country,omitempty"`
	Institution    string                 `json:"institution,omitempty"`
	Organization   string                 `json:"organization,omitempty"`
	SkillTags      []string               `json:"skill_tags,omitempty"`
	Fields         map[string]interface{} `json:"fields,omitempty"`
	Submissions    []RawSubmission        `json:"submissions,omitempty"`
	ContestHistory []ContestResult        `json:"contest_history,omitempty"`
}

// CanonicalProfile is the normalized per-platform snapshot of a user's
// standing. It is replaced wholesale on every successful sync; upstream
// totals are already cumulative so there is nothing to merge.
type CanonicalProfile struct {
	UserID       string                 `json:"user_id"`
	Platform     Platform               `json:"platform"`
	Username     string                 `json:"username"`
	ProfileURL   string                 `json:"profile_url,omitempty"`
	LastSyncedAt time.Time              `json:"last_synced_at"`
	Stats        map[string]interface{} `json:"stats"`
	SkillTags    []string               `json:"skill_tags,omitempty"`
	Country      string                 `json:"country,omitempty"`
	Institution  string                 `json:"institution,omitempty"`
	Organization string                 `json:"organization,omitempty"`
	RawData      *RawRecord             `json:"raw_data,omitempty"`
}
