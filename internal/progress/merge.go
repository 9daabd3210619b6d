// Package progress folds newly-extracted problem activity into a user's
// accumulated progress record and recomputes its derived statistics.
package progress

import (
	"log/slog"
	"sort"
	"time"

	"github.com/codetrack-engine/internal/domain"
)

// Merger is the progress merge engine
type Merger struct {
	logger *slog.Logger
}

// NewMerger creates a progress merge engine
func NewMerger(logger *slog.Logger) *Merger {
	return &Merger{logger: logger}
}

// Merge folds newActivity into existing (or a fresh record when existing is
// nil) and recomputes stats in full. Records matching an existing entry by
// identity replace it in place so the later metadata wins; everything else
// appends in arrival order. Malformed records are skipped and counted, not
// fatal. The operation is idempotent.
func (m *Merger) Merge(existing *domain.Progress, userID string, platform domain.Platform, newActivity []domain.ProblemRecord) domain.Progress {
	var result domain.Progress
	if existing != nil {
		result = *existing
		result.Problems = append([]domain.ProblemRecord(nil), existing.Problems...)
	} else {
		result = domain.Progress{
			UserID:   userID,
			Platform: platform,
		}
	}

	skipped := 0
	for _, rec := range newActivity {
		if rec.Title == "" && rec.ProblemID == "" {
			skipped++
			continue
		}
		if rec.Difficulty == "" {
			rec.Difficulty = domain.DifficultyUnknown
		}
		if rec.Status == "" {
			rec.Status = domain.StatusAttempted
		}

		idx := findMatch(result.Problems, rec)
		if idx >= 0 {
			result.Problems[idx] = enrich(result.Problems[idx], rec)
		} else {
			result.Problems = append(result.Problems, rec)
		}
	}
	if skipped > 0 {
		m.logger.Warn("skipped malformed activity records",
			"platform", platform,
			"user_id", userID,
			"skipped", skipped,
		)
	}

	result.Stats = ComputeStats(result.Problems, time.Now().UTC())
	result.LastUpdated = time.Now().UTC()
	return result
}

// findMatch returns the index of the problem sharing identity with rec:
// the problem ID when present, the title otherwise
func findMatch(problems []domain.ProblemRecord, rec domain.ProblemRecord) int {
	for i, p := range problems {
		if rec.ProblemID != "" && p.ProblemID == rec.ProblemID {
			return i
		}
		if rec.Title != "" && p.Title == rec.Title {
			return i
		}
	}
	return -1
}

// enrich overlays the incoming record on the existing one, keeping the
// richest available metadata from either side
func enrich(old, incoming domain.ProblemRecord) domain.ProblemRecord {
	merged := incoming
	if merged.ProblemID == "" {
		merged.ProblemID = old.ProblemID
	}
	if merged.Title == "" {
		merged.Title = old.Title
	}
	if merged.Difficulty == domain.DifficultyUnknown && old.Difficulty != "" && old.Difficulty != domain.DifficultyUnknown {
		merged.Difficulty = old.Difficulty
	}
	if len(merged.Tags) == 0 {
		merged.Tags = old.Tags
	}
	if merged.URL == "" {
		merged.URL = old.URL
	}
	if merged.SolvedAt == nil {
		merged.SolvedAt = old.SolvedAt
	}
	if merged.TimeTakenMinutes == nil {
		merged.TimeTakenMinutes = old.TimeTakenMinutes
	}
	if merged.Notes == "" {
		merged.Notes = old.Notes
	}
	return merged
}

// ComputeStats derives the full statistics block from a problems list.
// Weekly and monthly buckets and top tags are always rebuilt from scratch;
// nothing is adjusted incrementally.
func ComputeStats(problems []domain.ProblemRecord, now time.Time) domain.ProgressStats {
	stats := domain.ProgressStats{}

	solved := 0
	for _, p := range problems {
		if p.Status != domain.StatusSolved {
			continue
		}
		solved++
		switch p.Difficulty {
		case domain.DifficultyEasy:
			stats.EasySolved++
		case domain.DifficultyMedium:
			stats.MediumSolved++
		case domain.DifficultyHard:
			stats.HardSolved++
		}
	}
	stats.TotalSolved = solved
	if len(problems) > 0 {
		stats.SuccessRate = float64(solved) / float64(len(problems)) * 100
	}

	stats.WeeklyActivity = weeklyActivity(problems, now)
	stats.MonthlyActivity = monthlyActivity(problems)
	stats.TopTags = topTags(problems)
	return stats
}

// weeklyActivity builds exactly seven entries for the current calendar
// week, Sunday through Saturday
func weeklyActivity(problems []domain.ProblemRecord, now time.Time) []domain.DayActivity {
	weekStart := now.AddDate(0, 0, -int(now.Weekday()))

	week := make([]domain.DayActivity, 7)
	for i := 0; i < 7; i++ {
		day := weekStart.AddDate(0, 0, i)
		date := day.Format("2006-01-02")
		count := 0
		for _, p := range problems {
			if p.AttemptedAt.UTC().Format("2006-01-02") == date {
				count++
			}
		}
		week[i] = domain.DayActivity{Date: date, Count: count}
	}
	return week
}

// monthlyActivity builds the sparse month list in first-seen order,
// keyed "YYYY-M" without zero padding
func monthlyActivity(problems []domain.ProblemRecord) []domain.MonthActivity {
	counts := map[string]int{}
	var order []string
	for _, p := range problems {
		at := p.AttemptedAt.UTC()
		key := at.Format("2006") + "-" + at.Format("1")
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	months := make([]domain.MonthActivity, 0, len(order))
	for _, key := range order {
		months = append(months, domain.MonthActivity{Month: key, Count: counts[key]})
	}
	return months
}

// topTags returns up to ten tags by frequency, descending; ties keep
// first-seen order
func topTags(problems []domain.ProblemRecord) []domain.TagCount {
	counts := map[string]int{}
	var order []string
	for _, p := range problems {
		for _, tag := range p.Tags {
			if _, seen := counts[tag]; !seen {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}

	tags := make([]domain.TagCount, 0, len(order))
	for _, tag := range order {
		tags = append(tags, domain.TagCount{Tag: tag, Count: counts[tag]})
	}
	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].Count > tags[j].Count
	})
	if len(tags) > 10 {
		tags = tags[:10]
	}
	return tags
}
