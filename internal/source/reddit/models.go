package reddit

import "encoding/json"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Listing is the envelope of /search.
type Listing struct {
	Data struct {
		After    string  `json:"after"`
		Children []Child `json:"children"`
	} `json:"data"`
}

type Child struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type Post struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Author     string  `json:"author"`
	Subreddit  string  `json:"subreddit"`
	CreatedUTC float64 `json:"created_utc"`
	URL        string  `json:"url"`
	Permalink  string  `json:"permalink"`
	IsSelf     bool    `json:"is_self"`
	Score      int     `json:"score"`
}
