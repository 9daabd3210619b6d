// Package normalizer maps source-specific raw records onto the canonical
// profile shape. The mapping is a fixed table per platform so coverage of
// all four sources is checkable at a glance; absent raw fields become the
// declared default, never an error.
package normalizer

import (
	"time"

	"github.com/codetrack-engine/internal/domain"
)

// Fragment is the normalized portion of a canonical profile produced from
// one raw record
type Fragment struct {
	Stats        map[string]interface{}
	SkillTags    []string
	Country      string
	Institution  string
	Organization string
}

// fieldMapping declares one raw-field to canonical-stat translation
type fieldMapping struct {
	raw       string
	canonical string
	def       interface{}
}

// mappings is the per-platform field table. Raw keys match what the
// extractors emit; canonical keys are what the rest of the system reads.
var mappings = map[domain.Platform][]fieldMapping{
	domain.PlatformLeetCode: {
		{"totalSolved", "totalSolved", 0},
		{"easySolved", "easySolved", 0},
		{"mediumSolved", "mediumSolved", 0},
		{"hardSolved", "hardSolved", 0},
		{"ranking", "ranking", 0},
	},
	domain.PlatformCodeChef: {
		{"rating", "rating", 0},
		{"highestRating", "maxRating", 0},
		{"stars", "stars", ""},
		{"globalRank", "globalRank", 0},
		{"countryRank", "countryRank", 0},
		{"totalSolved", "totalSolved", 0},
		{"fullySolved", "fullySolved", 0},
		{"partiallySolved", "partiallySolved", 0},
	},
	domain.PlatformGeeksforGeeks: {
		{"codingScore", "codingScore", 0},
		{"contestRating", "rating", 0},
		{"totalSolved", "totalSolved", 0},
		{"schoolSolved", "schoolSolved", 0},
		{"basicSolved", "basicSolved", 0},
		{"easySolved", "easySolved", 0},
		{"mediumSolved", "mediumSolved", 0},
		{"hardSolved", "hardSolved", 0},
		{"streak", "streak", 0},
	},
	domain.PlatformCodeforces: {
		{"rating", "rating", 0},
		{"maxRating", "maxRating", 0},
		{"rank", "rank", ""},
		{"maxRank", "maxRank", ""},
		{"contribution", "contribution", 0},
		{"problemsSolved", "totalSolved", 0},
	},
}

// Normalize maps a raw record into a canonical profile fragment. It is a
// pure function and never fails; missing data is absence, not error.
func Normalize(platform domain.Platform, raw *domain.RawRecord) Fragment {
	frag := Fragment{
		Stats: make(map[string]interface{}),
	}
	if raw == nil {
		for _, m := range mappings[platform] {
			frag.Stats[m.canonical] = m.def
		}
		return frag
	}

	for _, m := range mappings[platform] {
		val, ok := raw.Fields[m.raw]
		if !ok || val == nil {
			frag.Stats[m.canonical] = m.def
			continue
		}
		frag.Stats[m.canonical] = val
	}

	frag.SkillTags = raw.SkillTags
	frag.Country = raw.Country
	frag.Institution = raw.Institution
	frag.Organization = raw.Organization
	return frag
}

// BuildProfile assembles the full canonical profile for a successful sync.
// The raw record is retained verbatim for traceability and reprocessing.
func BuildProfile(userID string, platform domain.Platform, raw *domain.RawRecord, syncedAt time.Time) domain.CanonicalProfile {
	frag := Normalize(platform, raw)
	profile := domain.CanonicalProfile{
		UserID:       userID,
		Platform:     platform,
		LastSyncedAt: syncedAt,
		Stats:        frag.Stats,
		SkillTags:    frag.SkillTags,
		Country:      frag.Country,
		Institution:  frag.Institution,
		Organization: frag.Organization,
		RawData:      raw,
	}
	if raw != nil {
		profile.Username = raw.Username
		profile.ProfileURL = raw.ProfileURL
	}
	return profile
}
