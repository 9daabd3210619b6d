package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/codetrack-engine/internal/domain"
)

var ccCountRe = regexp.MustCompile(`\((\d+)\)`)

// CodeChef extracts profile data from the user page. Contest history is
// embedded in a Drupal settings script block with loosely quoted JSON.
type CodeChef struct {
	client *Client
	logger *slog.Logger
}

// NewCodeChef creates a CodeChef extractor
func NewCodeChef(client *Client, logger *slog.Logger) *CodeChef {
	return &CodeChef{client: client, logger: logger}
}

func (e *CodeChef) Platform() domain.Platform {
	return domain.PlatformCodeChef
}

func (e *CodeChef) Fetch(ctx context.Context, handle string) (*domain.RawRecord, error) {
	return runStrategies(ctx, e.Platform(), handle, e.logger, []strategy{
		{name: "html", run: e.fetchHTML},
	})
}

func (e *CodeChef) fetchHTML(ctx context.Context, handle string) (*domain.RawRecord, error) {
	body, err := e.client.Get(ctx, e.Platform(), e.Platform().ProfileURL(handle))
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing profile page: %v", domain.ErrUnavailable, err)
	}

	name := firstText(doc, ".m-username", ".user-details-container .m-username--link")
	ratingText := firstText(doc, ".rating-number")
	if name == "" && ratingText == "" {
		// Neither the username block nor the rating widget resolved
		return nil, nil
	}
	if name == "" {
		name = handle
	}

	fields := map[string]interface{}{
		"rating":      intFromText(ratingText),
		"stars":       firstText(doc, ".rating-star"),
		"globalRank":  intFromText(doc.Find(".rating-ranks strong").Eq(0).Text()),
		"countryRank": intFromText(doc.Find(".rating-ranks strong").Eq(1).Text()),
	}

	fully, partially := e.solvedCounts(doc)
	fields["fullySolved"] = fully
	fields["partiallySolved"] = partially
	fields["totalSolved"] = fully + partially

	rec := &domain.RawRecord{
		Username:    handle,
		Name:        name,
		AvatarURL:   firstAttr(doc, "src", ".user-details-container img"),
		Country:     firstText(doc, ".user-country-name"),
		Fields:      fields,
		Submissions: e.recentProblems(doc),
	}

	rec.ContestHistory = e.contestHistory(scriptText(doc))
	e.applyContestRatings(rec)
	return rec, nil
}

// solvedCounts reads the "Fully Solved (n)" / "Partially Solved (n)" headers
func (e *CodeChef) solvedCounts(doc *goquery.Document) (fully, partially int) {
	doc.Find(".problems-solved h5").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		m := ccCountRe.FindStringSubmatch(text)
		if m == nil {
			return
		}
		switch {
		case strings.Contains(text, "Fully Solved"):
			fully = intFromText(m[1])
		case strings.Contains(text, "Partially Solved"):
			partially = intFromText(m[1])
		}
	})
	return fully, partially
}

// recentProblems walks an ordered list of table locations; layouts move the
// recent-activity block around between redesigns
func (e *CodeChef) recentProblems(doc *goquery.Document) []domain.RawSubmission {
	selectors := []string{
		`.rating-data-section:contains("Recent Activity") table tbody tr`,
		"#content-regions .content-container table tbody tr",
		".problems-solved + div table tbody tr",
		".user-profile-data table tbody tr",
	}

	var subs []domain.RawSubmission
	for _, sel := range selectors {
		doc.Find(sel).EachWithBreak(func(i int, row *goquery.Selection) bool {
			if i >= 10 {
				return false
			}
			title := strings.TrimSpace(row.Find("td").Eq(0).Text())
			if title == "" || strings.Contains(title, "Contest") || strings.Contains(title, "Challenge") {
				return true
			}
			link, _ := row.Find("td").Eq(0).Find("a").Attr("href")
			if link != "" && !strings.HasPrefix(link, "http") {
				link = "https://www.codechef.com" + link
			}
			code := ""
			if parts := strings.Split(strings.TrimRight(link, "/"), "/"); len(parts) > 0 {
				code = parts[len(parts)-1]
			}
			verdict := strings.TrimSpace(row.Find("td").Eq(2).Text())
			if verdict == "" {
				verdict = "Solved"
			}

			for _, existing := range subs {
				if existing.Title == title {
					return true
				}
			}
			subs = append(subs, domain.RawSubmission{
				ID:          code,
				Title:       title,
				URL:         link,
				Verdict:     verdict,
				SubmittedAt: parseCodeChefDate(strings.TrimSpace(row.Find("td").Eq(1).Text())),
			})
			return true
		})
		if len(subs) > 0 {
			break
		}
	}
	if len(subs) > 5 {
		subs = subs[:5]
	}
	return subs
}

// contestHistory parses the date_versus_rating payload out of the Drupal
// settings script. A malformed payload degrades to no history.
func (e *CodeChef) contestHistory(scripts string) []domain.ContestResult {
	var settings struct {
		DateVersusRating struct {
			All []struct {
				Code     string      `json:"code"`
				Name     string      `json:"name"`
				Rating   interface{} `json:"rating"`
				Rank     interface{} `json:"rank"`
				GetYear  string      `json:"getyear"`
				GetMonth string      `json:"getmonth"`
				GetDay   string      `json:"getday"`
			} `json:"all"`
		} `json:"date_versus_rating"`
	}
	if !ExtractScriptValue(scripts, "Drupal.settings", &settings) {
		return nil
	}

	var history []domain.ContestResult
	for _, contest := range settings.DateVersusRating.All {
		at, _ := time.Parse("2006-1-2",
			fmt.Sprintf("%s-%s-%s", contest.GetYear, contest.GetMonth, contest.GetDay))
		history = append(history, domain.ContestResult{
			ContestID: contest.Code,
			Name:      contest.Name,
			Rank:      looseInt(contest.Rank),
			Rating:    looseInt(contest.Rating),
			At:        at,
		})
	}
	return history
}

// applyContestRatings derives highestRating and fills a missing headline
// rating from the most recent contest. The page's own rating widget stays
// authoritative when present.
func (e *CodeChef) applyContestRatings(rec *domain.RawRecord) {
	if len(rec.ContestHistory) == 0 {
		return
	}
	highest := 0
	latest := rec.ContestHistory[0]
	for _, c := range rec.ContestHistory {
		if c.Rating > highest {
			highest = c.Rating
		}
		if c.At.After(latest.At) {
			latest = c
		}
	}
	rec.Fields["highestRating"] = highest
	if rating, _ := rec.Fields["rating"].(int); rating == 0 {
		rec.Fields["rating"] = latest.Rating
	}
}

// looseInt coerces the string-or-number values the Drupal payload uses
func looseInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		return intFromText(n)
	}
	return 0
}

// parseCodeChefDate tolerates the handful of date shapes the activity
// tables use; unknown shapes fall back to now
func parseCodeChefDate(s string) time.Time {
	for _, layout := range []string{"02 Jan 2006", "2006-01-02", "01/02/06"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
