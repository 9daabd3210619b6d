package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/codetrack-engine/internal/domain"
)

const leetcodeGraphQLURL = "https://leetcode.com/graphql"

const leetcodeQuery = `query getFullUserData($username: String!) {
  userProfile: matchedUser(username: $username) {
    username
    profile { realName ranking userAvatar skillTags }
    submitStatsGlobal { acSubmissionNum { difficulty count } }
  }
  recentSubmissions: recentAcSubmissionList(username: $username) {
    id title titleSlug timestamp
  }
}`

// LeetCode extracts profile data through the public GraphQL API
type LeetCode struct {
	client *Client
	logger *slog.Logger
}

// NewLeetCode creates a LeetCode extractor
func NewLeetCode(client *Client, logger *slog.Logger) *LeetCode {
	return &LeetCode{client: client, logger: logger}
}

func (e *LeetCode) Platform() domain.Platform {
	return domain.PlatformLeetCode
}

func (e *LeetCode) Fetch(ctx context.Context, handle string) (*domain.RawRecord, error) {
	return runStrategies(ctx, e.Platform(), handle, e.logger, []strategy{
		{name: "graphql", run: e.fetchGraphQL},
	})
}

type leetcodeResponse struct {
	Data struct {
		UserProfile *struct {
			Username string `json:"username"`
			Profile  struct {
				RealName   string   `json:"realName"`
				Ranking    int      `json:"ranking"`
				UserAvatar string   `json:"userAvatar"`
				SkillTags  []string `json:"skillTags"`
			} `json:"profile"`
			SubmitStatsGlobal struct {
				AcSubmissionNum []struct {
					Difficulty string `json:"difficulty"`
					Count      int    `json:"count"`
				} `json:"acSubmissionNum"`
			} `json:"submitStatsGlobal"`
		} `json:"userProfile"`
		RecentSubmissions []struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			TitleSlug string `json:"titleSlug"`
			Timestamp string `json:"timestamp"`
		} `json:"recentSubmissions"`
	} `json:"data"`
}

func (e *LeetCode) fetchGraphQL(ctx context.Context, handle string) (*domain.RawRecord, error) {
	body := map[string]interface{}{
		"query":     leetcodeQuery,
		"variables": map[string]string{"username": handle},
	}
	data, err := e.client.PostJSON(ctx, e.Platform(), leetcodeGraphQLURL, body)
	if err != nil {
		return nil, err
	}

	var resp leetcodeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding graphql response: %v", domain.ErrUnavailable, err)
	}
	user := resp.Data.UserProfile
	if user == nil {
		return nil, domain.ErrHandleNotFound
	}

	fields := map[string]interface{}{}
	for _, item := range user.SubmitStatsGlobal.AcSubmissionNum {
		switch item.Difficulty {
		case "All":
			fields["totalSolved"] = item.Count
		case "Easy":
			fields["easySolved"] = item.Count
		case "Medium":
			fields["mediumSolved"] = item.Count
		case "Hard":
			fields["hardSolved"] = item.Count
		}
	}
	fields["ranking"] = user.Profile.Ranking

	rec := &domain.RawRecord{
		Username:  user.Username,
		Name:      user.Profile.RealName,
		AvatarURL: user.Profile.UserAvatar,
		SkillTags: user.Profile.SkillTags,
		Fields:    fields,
	}

	for _, sub := range resp.Data.RecentSubmissions {
		ts, err := strconv.ParseInt(sub.Timestamp, 10, 64)
		if err != nil {
			continue
		}
		rec.Submissions = append(rec.Submissions, domain.RawSubmission{
			ID:          sub.ID,
			Title:       sub.Title,
			Slug:        sub.TitleSlug,
			URL:         fmt.Sprintf("https://leetcode.com/problems/%s/", sub.TitleSlug),
			Verdict:     "Accepted",
			SubmittedAt: time.Unix(ts, 0).UTC(),
		})
	}

	return rec, nil
}
