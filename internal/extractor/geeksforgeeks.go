package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/codetrack-engine/internal/domain"
)

var gfgDifficultyRe = regexp.MustCompile(`(?i)(SCHOOL|BASIC|EASY|MEDIUM|HARD)\s*\(\s*(\d+)\s*\)`)

// GeeksforGeeks extracts profile data from the user page. There is no
// public API; every field comes from class-mangled markup that changes
// between deploys, so each one has fallback selectors and defaults.
type GeeksforGeeks struct {
	client *Client
	logger *slog.Logger
}

// NewGeeksforGeeks creates a GeeksforGeeks extractor
func NewGeeksforGeeks(client *Client, logger *slog.Logger) *GeeksforGeeks {
	return &GeeksforGeeks{client: client, logger: logger}
}

func (e *GeeksforGeeks) Platform() domain.Platform {
	return domain.PlatformGeeksforGeeks
}

func (e *GeeksforGeeks) Fetch(ctx context.Context, handle string) (*domain.RawRecord, error) {
	return runStrategies(ctx, e.Platform(), handle, e.logger, []strategy{
		{name: "html", run: e.fetchHTML},
	})
}

func (e *GeeksforGeeks) fetchHTML(ctx context.Context, handle string) (*domain.RawRecord, error) {
	body, err := e.client.Get(ctx, e.Platform(), e.Platform().ProfileURL(handle))
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing profile page: %v", domain.ErrUnavailable, err)
	}

	title := doc.Find("title").Text()
	if strings.Contains(title, "Page not found") || strings.Contains(title, "404") {
		return nil, domain.ErrHandleNotFound
	}

	username := firstText(doc,
		".profilePicSection_head_userHandle__oOfFy",
		"[class*='userHandle']",
	)
	if username == "" {
		// No identifying anchor; the strategy runner treats this as a miss
		return nil, nil
	}

	fields := map[string]interface{}{
		"codingScore":   intFromText(firstText(doc, `.scoreCard_head__nxXR8:contains("Coding Score") .scoreCard_head_left--score__oSi_x`)),
		"contestRating": gfgContestRating(doc),
		"streak":        gfgStreak(doc),
	}

	total := intFromText(firstText(doc, `.scoreCard_head__nxXR8:contains("Problem Solved") .scoreCard_head_left--score__oSi_x`))
	byDifficulty := e.problemsByDifficulty(doc)

	calculated := 0
	for key, count := range byDifficulty {
		fields[key+"Solved"] = count
		calculated += count
	}
	if total == 0 {
		total = calculated
	}
	fields["totalSolved"] = total

	return &domain.RawRecord{
		Username:    username,
		AvatarURL:   firstAttr(doc, "src", ".profilePicSection_head_img__1GLm0 img"),
		Institution: firstText(doc, ".educationDetails_head_left--text__tgi9I"),
		Fields:      fields,
	}, nil
}

// problemsByDifficulty reads the "EASY (42)" navbar entries
func (e *GeeksforGeeks) problemsByDifficulty(doc *goquery.Document) map[string]int {
	counts := map[string]int{}
	selectors := []string{
		".problemNavbar_head_nav--text__UaGCx",
		"[class*='problemNavbar_head_nav--text']",
	}
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			m := gfgDifficultyRe.FindStringSubmatch(strings.TrimSpace(s.Text()))
			if m != nil {
				counts[strings.ToLower(m[1])] = intFromText(m[2])
			}
		})
		if len(counts) > 0 {
			break
		}
	}
	return counts
}

func gfgContestRating(doc *goquery.Document) int {
	text := firstText(doc, `.scoreCard_head__nxXR8:contains("Contest Rating") .scoreCard_head_left--score__oSi_x`)
	if text == "__" {
		return 0
	}
	return intFromText(text)
}

func gfgStreak(doc *goquery.Document) int {
	text := firstText(doc, ".circularProgressBar_head_mid_streakCnt__MFOF1")
	// Rendered as "current/max"
	if idx := strings.Index(text, "/"); idx >= 0 {
		text = text[:idx]
	}
	return intFromText(text)
}
