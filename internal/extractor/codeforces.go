package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/codetrack-engine/internal/domain"
)

// Codeforces extracts profile data API-first, falling back to the profile
// page when the API is unavailable. Rating history only lives in a script
// payload on the page.
type Codeforces struct {
	client *Client
	logger *slog.Logger
}

// NewCodeforces creates a Codeforces extractor
func NewCodeforces(client *Client, logger *slog.Logger) *Codeforces {
	return &Codeforces{client: client, logger: logger}
}

func (e *Codeforces) Platform() domain.Platform {
	return domain.PlatformCodeforces
}

func (e *Codeforces) Fetch(ctx context.Context, handle string) (*domain.RawRecord, error) {
	return runStrategies(ctx, e.Platform(), handle, e.logger, []strategy{
		{name: "api", run: e.fetchAPI},
		{name: "html", run: e.fetchHTML},
	})
}

type cfUserInfo struct {
	Handle                  string `json:"handle"`
	FirstName               string `json:"firstName"`
	LastName                string `json:"lastName"`
	Country                 string `json:"country"`
	City                    string `json:"city"`
	Organization            string `json:"organization"`
	Rank                    string `json:"rank"`
	MaxRank                 string `json:"maxRank"`
	Rating                  int    `json:"rating"`
	MaxRating               int    `json:"maxRating"`
	Contribution            int    `json:"contribution"`
	TitlePhoto              string `json:"titlePhoto"`
	RegistrationTimeSeconds int64  `json:"registrationTimeSeconds"`
}

type cfSubmission struct {
	ID                  int64  `json:"id"`
	ContestID           int    `json:"contestId"`
	CreationTimeSeconds int64  `json:"creationTimeSeconds"`
	Verdict             string `json:"verdict"`
	ProgrammingLanguage string `json:"programmingLanguage"`
	Problem             struct {
		ContestID int      `json:"contestId"`
		Index     string   `json:"index"`
		Name      string   `json:"name"`
		Tags      []string `json:"tags"`
	} `json:"problem"`
}

type cfRatingEntry struct {
	ContestID               int    `json:"contestId"`
	ContestName             string `json:"contestName"`
	Rank                    int    `json:"rank"`
	OldRating               int    `json:"oldRating"`
	NewRating               int    `json:"newRating"`
	RatingUpdateTimeSeconds int64  `json:"ratingUpdateTimeSeconds"`
}

// fetchAPI uses the documented JSON API: user.info for the profile, then
// user.status for recent submissions, then the profile page for rating
// history. The page and submissions are best-effort extras.
func (e *Codeforces) fetchAPI(ctx context.Context, handle string) (*domain.RawRecord, error) {
	infoURL := fmt.Sprintf("https://codeforces.com/api/user.info?handles=%s", handle)
	data, err := e.client.Get(ctx, e.Platform(), infoURL)
	if err != nil {
		return nil, err
	}

	var infoResp struct {
		Status  string       `json:"status"`
		Comment string       `json:"comment"`
		Result  []cfUserInfo `json:"result"`
	}
	if err := json.Unmarshal(data, &infoResp); err != nil {
		return nil, fmt.Errorf("%w: decoding user.info: %v", domain.ErrUnavailable, err)
	}
	if infoResp.Status != "OK" || len(infoResp.Result) == 0 {
		if strings.Contains(strings.ToLower(infoResp.Comment), "not found") {
			return nil, domain.ErrHandleNotFound
		}
		return nil, fmt.Errorf("%w: user.info returned %q", domain.ErrUnavailable, infoResp.Comment)
	}
	info := infoResp.Result[0]

	rec := &domain.RawRecord{
		Username:     info.Handle,
		Name:         strings.TrimSpace(info.FirstName + " " + info.LastName),
		AvatarURL:    absoluteCFURL(info.TitlePhoto),
		Country:      info.Country,
		Organization: info.Organization,
		Fields: map[string]interface{}{
			"rating":       info.Rating,
			"maxRating":    info.MaxRating,
			"rank":         info.Rank,
			"maxRank":      info.MaxRank,
			"contribution": info.Contribution,
		},
	}

	// Dependent call; keep a polite gap
	e.client.Pause(ctx)
	rec.Submissions = e.fetchSubmissions(ctx, handle)

	e.client.Pause(ctx)
	e.enrichFromPage(ctx, handle, rec)

	e.applyRatingFallback(rec)
	return rec, nil
}

// fetchSubmissions pulls recent submissions; failures degrade to none
func (e *Codeforces) fetchSubmissions(ctx context.Context, handle string) []domain.RawSubmission {
	statusURL := fmt.Sprintf("https://codeforces.com/api/user.status?handle=%s&from=1&count=20", handle)
	data, err := e.client.Get(ctx, e.Platform(), statusURL)
	if err != nil {
		e.logger.Warn("codeforces submissions fetch failed", "handle", handle, "error", err)
		return nil
	}

	var statusResp struct {
		Status string         `json:"status"`
		Result []cfSubmission `json:"result"`
	}
	if err := json.Unmarshal(data, &statusResp); err != nil || statusResp.Status != "OK" {
		return nil
	}

	var subs []domain.RawSubmission
	for _, s := range statusResp.Result {
		if s.Problem.Name == "" {
			continue
		}
		subs = append(subs, domain.RawSubmission{
			ID:          strconv.Itoa(s.Problem.ContestID) + s.Problem.Index,
			Title:       s.Problem.Name,
			URL:         fmt.Sprintf("https://codeforces.com/contest/%d/submission/%d", s.ContestID, s.ID),
			Verdict:     s.Verdict,
			Language:    s.ProgrammingLanguage,
			Tags:        s.Problem.Tags,
			SubmittedAt: time.Unix(s.CreationTimeSeconds, 0).UTC(),
		})
	}
	return subs
}

// enrichFromPage scrapes the profile page for data the API does not expose:
// the rating graph script payload and the solved-problem counter
func (e *Codeforces) enrichFromPage(ctx context.Context, handle string, rec *domain.RawRecord) {
	body, err := e.client.Get(ctx, e.Platform(), e.Platform().ProfileURL(handle))
	if err != nil {
		e.logger.Warn("codeforces page enrichment failed", "handle", handle, "error", err)
		return
	}
	doc, err := parseDocument(body)
	if err != nil {
		return
	}

	rec.ContestHistory = e.ratingHistory(scriptText(doc))

	solvedText := firstText(doc,
		"div._UserActivityFrame_counterValue",
		`.personal-sidebar li:contains("Solved problems") span`,
	)
	if n := intFromText(solvedText); n > 0 {
		rec.Fields["problemsSolved"] = n
	}
}

// fetchHTML extracts everything from the profile page when the API fails
func (e *Codeforces) fetchHTML(ctx context.Context, handle string) (*domain.RawRecord, error) {
	body, err := e.client.Get(ctx, e.Platform(), e.Platform().ProfileURL(handle))
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing profile page: %v", domain.ErrUnavailable, err)
	}

	// The rank badge is the platform-identifying anchor on this layout
	username := firstText(doc, "div.main-info h1", ".user-rank")
	if username == "" {
		return nil, nil
	}
	if idx := strings.Index(username, "("); idx > 0 {
		username = strings.TrimSpace(username[:idx])
	}

	rec := &domain.RawRecord{
		Username:  handle,
		Name:      username,
		AvatarURL: absoluteCFURL(firstAttr(doc, "src", "div.title-photo img")),
		Fields: map[string]interface{}{
			"rating":       intFromText(firstText(doc, `.info li:contains("Contest rating") span`)),
			"maxRating":    intFromText(firstText(doc, `.info li:contains("max.") span`)),
			"rank":         firstText(doc, ".user-rank span"),
			"contribution": intFromText(firstText(doc, `.info li:contains("Contribution") span`)),
		},
	}

	solvedText := firstText(doc,
		"div._UserActivityFrame_counterValue",
		`.personal-sidebar li:contains("Solved problems") span`,
	)
	if n := intFromText(solvedText); n > 0 {
		rec.Fields["problemsSolved"] = n
	}

	rec.ContestHistory = e.ratingHistory(scriptText(doc))
	e.applyRatingFallback(rec)
	return rec, nil
}

// ratingHistory parses the rating graph data embedded in a page script
func (e *Codeforces) ratingHistory(scripts string) []domain.ContestResult {
	var entries []cfRatingEntry
	if !ExtractScriptValue(scripts, "Codeforces.getRatingGraphData", &entries) {
		return nil
	}
	history := make([]domain.ContestResult, 0, len(entries))
	for _, entry := range entries {
		history = append(history, domain.ContestResult{
			ContestID: strconv.Itoa(entry.ContestID),
			Name:      entry.ContestName,
			Rank:      entry.Rank,
			Rating:    entry.NewRating,
			At:        time.Unix(entry.RatingUpdateTimeSeconds, 0).UTC(),
		})
	}
	return history
}

// applyRatingFallback fills a missing headline rating from the most recent
// contest result. The platform's own reported rating stays authoritative.
func (e *Codeforces) applyRatingFallback(rec *domain.RawRecord) {
	rating, _ := rec.Fields["rating"].(int)
	if rating != 0 || len(rec.ContestHistory) == 0 {
		return
	}
	latest := rec.ContestHistory[0]
	for _, c := range rec.ContestHistory[1:] {
		if c.At.After(latest.At) {
			latest = c
		}
	}
	rec.Fields["rating"] = latest.Rating
}

func absoluteCFURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http") {
		return u
	}
	return "https:" + u
}
