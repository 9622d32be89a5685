package dataforseo

import "encoding/json"

// StatusTaskCreated is the status_code of an accepted task_post.
const StatusTaskCreated = 20100

type taskPostRequest struct {
	Domain   string `json:"domain"`
	Depth    int    `json:"depth"`
	SortBy   string `json:"sort_by"`
	Priority int    `json:"priority"`
	Tag      string `json:"tag"`
}

// Envelope is the common response shape; results differ per endpoint.
type Envelope[T any] struct {
	StatusCode    int       `json:"status_code"`
	StatusMessage string    `json:"status_message"`
	Tasks         []Task[T] `json:"tasks"`
}

type Task[T any] struct {
	ID            string `json:"id"`
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Result        []T    `json:"result"`
}

// ReadyTask is a child entry of tasks_ready. Ready ids live here, nested
// under a container task, never at the top level.
type ReadyTask struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
	Tag      string `json:"tag"`
}

type ReviewResult struct {
	Domain     string            `json:"domain"`
	ItemsCount int               `json:"items_count"`
	Items      []json.RawMessage `json:"items"`
}

type Review struct {
	URL         string       `json:"url"`
	Rating      *Rating      `json:"rating"`
	Language    string       `json:"language"`
	Timestamp   string       `json:"timestamp"`
	Title       string       `json:"title"`
	ReviewText  string       `json:"review_text"`
	Verified    bool         `json:"verified"`
	UserProfile *UserProfile `json:"user_profile"`
}

type Rating struct {
	RatingType string  `json:"rating_type"`
	Value      float64 `json:"value"`
	RatingMax  int     `json:"rating_max"`
}

type UserProfile struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}
