package progress

import (
	"fmt"
	"strings"

	"github.com/codetrack-engine/internal/domain"
)

// DeriveActivity converts the raw submissions retained on a canonical
// profile into problem records ready for merging. Problem IDs are
// platform-qualified so identities never collide across platforms.
func DeriveActivity(profile *domain.CanonicalProfile) []domain.ProblemRecord {
	if profile == nil || profile.RawData == nil {
		return nil
	}

	var records []domain.ProblemRecord
	for _, sub := range profile.RawData.Submissions {
		if sub.Title == "" {
			continue
		}
		rec := domain.ProblemRecord{
			ProblemID:   qualifyProblemID(profile.Platform, sub),
			Title:       sub.Title,
			Difficulty:  domain.DifficultyUnknown,
			Tags:        sub.Tags,
			URL:         sub.URL,
			Status:      mapVerdict(profile.Platform, sub.Verdict),
			AttemptedAt: sub.SubmittedAt,
		}
		if rec.Status == domain.StatusSolved {
			solvedAt := sub.SubmittedAt
			rec.SolvedAt = &solvedAt
		}
		records = append(records, rec)
	}
	return records
}

// qualifyProblemID builds a stable, platform-prefixed identity for a
// submission, synthesizing one from the slug or title when the source
// reported no usable ID
func qualifyProblemID(platform domain.Platform, sub domain.RawSubmission) string {
	prefix := strings.ToLower(string(platform))
	switch {
	case sub.ID != "":
		return fmt.Sprintf("%s-%s", prefix, sub.ID)
	case sub.Slug != "":
		return fmt.Sprintf("%s-%s", prefix, sub.Slug)
	default:
		return fmt.Sprintf("%s-%s", prefix, slugify(sub.Title))
	}
}

// mapVerdict translates a platform's verdict or status label into the
// canonical attempt status
func mapVerdict(platform domain.Platform, verdict string) domain.Status {
	v := strings.ToLower(strings.TrimSpace(verdict))
	switch platform {
	case domain.PlatformCodeforces:
		if v == "ok" {
			return domain.StatusSolved
		}
		return domain.StatusAttempted
	case domain.PlatformLeetCode:
		// Only accepted submissions are exposed by the API
		return domain.StatusSolved
	case domain.PlatformCodeChef:
		if strings.Contains(v, "partially") {
			return domain.StatusAttempted
		}
		return domain.StatusSolved
	}
	if v == "" || v == "solved" || v == "accepted" || v == "ok" {
		return domain.StatusSolved
	}
	return domain.StatusAttempted
}

// slugify collapses a title into a lowercase dashed identifier
func slugify(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "-"))
}
