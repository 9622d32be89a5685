package serpapi

import (
	"encoding/json"
	"strings"
)

// Pagination is the serpapi_pagination block shared by every engine.
type Pagination struct {
	Current       int    `json:"current"`
	Next          string `json:"next"`
	NextPageToken string `json:"next_page_token"`
}

type response struct {
	Error      string            `json:"error"`
	Reviews    []json.RawMessage `json:"reviews"`
	Pagination *Pagination       `json:"serpapi_pagination"`
}

// AppleReview is one item of the apple_reviews engine.
type AppleReview struct {
	ID              string          `json:"id"`
	Rating          float64         `json:"rating"`
	Title           string          `json:"title"`
	Text            string          `json:"text"`
	Author          json.RawMessage `json:"author"`
	ReviewDate      string          `json:"review_date"`
	ReviewedVersion string          `json:"reviewed_version"`
}

// PlayReview is one item of the google_play_product engine.
type PlayReview struct {
	ID      string  `json:"id"`
	Rating  float64 `json:"rating"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Date    string  `json:"date"`
	Likes   int     `json:"likes"`
}

// TrustpilotReview is one item of the trustpilot engine.
type TrustpilotReview struct {
	Rating   float64         `json:"rating"`
	Title    string          `json:"title"`
	Text     string          `json:"text"`
	Author   json.RawMessage `json:"author"`
	Date     string          `json:"date"`
	Location string          `json:"location"`
}

// authorName accepts both {"name": "..."} and a bare string.
func authorName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}
