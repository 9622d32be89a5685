package dataforseo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"mention_collector/internal/domain"
	"mention_collector/internal/source"
)

const taskID = "10041208-1535-0404-0000-b2e7b6c0f1a9"

type DataForSEOTestSuite struct {
	suite.Suite

	mux       *http.ServeMux
	handler   http.Handler
	srv       *httptest.Server
	polls     atomic.Int32
	readyAt   int32
	taskPosts []taskPostRequest
	mu        sync.Mutex

	states []TaskState
}

func TestDataForSEOTestSuite(t *testing.T) {
	suite.Run(t, new(DataForSEOTestSuite))
}

func (s *DataForSEOTestSuite) SetupTest() {
	s.polls.Store(0)
	s.readyAt = 0
	s.taskPosts = nil
	s.states = nil

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/task_post", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		s.True(ok)
		s.Equal("me@example.com", user)
		s.Equal("pw", pass)

		var body []taskPostRequest
		s.NoError(json.NewDecoder(r.Body).Decode(&body))
		s.mu.Lock()
		s.taskPosts = append(s.taskPosts, body...)
		s.mu.Unlock()

		_, _ = io.WriteString(w, `{"status_code":20000,"tasks":[{"id":"`+taskID+`","status_code":20100,"status_message":"Task Created."}]}`)
	})
	s.mux.HandleFunc("/tasks_ready", func(w http.ResponseWriter, r *http.Request) {
		n := s.polls.Add(1)
		if s.readyAt > 0 && n >= s.readyAt {
			// ready ids are children of a container entry
			_, _ = io.WriteString(w, `{"tasks":[{"id":"container","result":[
				{"id":"someone-else","endpoint":"/x"},
				{"id":"`+taskID+`","endpoint":"/task_get/`+taskID+`"}
			]}]}`)
			return
		}
		// the task id at top level does not mean ready
		_, _ = io.WriteString(w, `{"tasks":[{"id":"`+taskID+`","result":[]}]}`)
	})
	s.mux.HandleFunc("/task_get/"+taskID, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"tasks":[{"id":"`+taskID+`","result":[{"domain":"www.zara.com","items":[
			{"url":"https://www.trustpilot.com/reviews/1","rating":{"value":5},"language":"es","timestamp":"2019-11-15 12:57:46 +00:00","title":"Excellent","review_text":"Great service","user_profile":{"name":"John D.","location":"US"}},
			{"rating":"bad"},
			{"rating":{"value":2.9},"timestamp":"garbage","title":"Meh","review_text":"slow","user_profile":{"name":"Ana"}}
		]}]}]}`)
	})
	s.handler = s.mux
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handler.ServeHTTP(w, r)
	}))
}

func (s *DataForSEOTestSuite) TearDownTest() {
	s.srv.Close()
}

func (s *DataForSEOTestSuite) newSource(maxAttempts int) *Source {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := source.NewClient(source.Config{MaxAttempts: 2, InitialBackoff: time.Millisecond}, logger)
	src, err := New(client, Config{
		BaseURL:         s.srv.URL,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: maxAttempts,
	}, domain.Credentials{"login": "me@example.com", "password": "pw"}, logger)
	s.Require().NoError(err)
	src.OnState = func(_ string, st TaskState) { s.states = append(s.states, st) }
	return src
}

func (s *DataForSEOTestSuite) TestFetch_ReadyAfterPolling() {
	s.readyAt = 3
	src := s.newSource(15)
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return fixed }

	records, err := src.Fetch(context.Background(), domain.Query{Origin: "www.zara.com", Limit: 45, Brand: "zara"})
	s.Require().NoError(err)

	s.Equal(int32(3), s.polls.Load())
	s.Equal([]TaskState{StateSubmitted, StatePolling, StateReady, StateFetched}, s.states)
	s.Require().Len(s.taskPosts, 1)
	s.Equal(60, s.taskPosts[0].Depth)
	s.Equal("www.zara.com", s.taskPosts[0].Domain)

	s.Require().Len(records, 2)
	first := records[0]
	s.Equal(domain.KindBusinessReview, first.Kind)
	s.Equal(5, first.Rating)
	s.Equal("es", first.Language)
	s.Equal("US", *first.Country)
	s.Equal("John D.", *first.AuthorHint)
	s.Equal(time.Date(2019, 11, 15, 12, 57, 46, 0, time.UTC), first.CreatedAt)
	s.Equal(domain.StableID("www.zara.com", "John D.", "Excellent", "2019-11-15 12:57:46 +00:00"), first.ID)

	s.Equal(fixed, records[1].CreatedAt)
	s.Equal(2, records[1].Rating)
	s.Equal("https://www.trustpilot.com/review/www.zara.com", records[1].Backlink)
}

func (s *DataForSEOTestSuite) TestFetch_PollTimeoutAfterExactlyMaxAttempts() {
	src := s.newSource(4)

	_, err := src.Fetch(context.Background(), domain.Query{Origin: "www.zara.com", Limit: 20, Brand: "zara"})

	s.Require().Error(err)
	s.True(errors.Is(err, domain.ErrPollTimeout))
	s.Equal(int32(4), s.polls.Load())
	s.Equal([]TaskState{StateSubmitted, StatePolling, StateTimedOut}, s.states)
}

func (s *DataForSEOTestSuite) TestFetch_FailedPollsCountAsAttempts() {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.Handle("/task_post", s.mux)
	mux.HandleFunc("/tasks_ready", func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	s.handler = mux

	_, err := s.newSource(3).Fetch(context.Background(), domain.Query{Origin: "www.zara.com", Limit: 20, Brand: "zara"})

	s.True(errors.Is(err, domain.ErrPollTimeout))
	s.Equal(int32(3), polls.Load())
}

func (s *DataForSEOTestSuite) TestFetch_TaskRejected() {
	mux := http.NewServeMux()
	mux.HandleFunc("/task_post", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"tasks":[{"id":"t1","status_code":40200,"status_message":"Payment Required."}]}`)
	})
	s.handler = mux

	_, err := s.newSource(3).Fetch(context.Background(), domain.Query{Origin: "www.zara.com", Limit: 20, Brand: "zara"})

	s.True(errors.Is(err, domain.ErrSourceUnavailable))
	s.Contains(err.Error(), "Payment Required")
	s.Equal(int32(0), s.polls.Load())
}

func TestDepth(t *testing.T) {
	assert.Equal(t, 20, Depth(1))
	assert.Equal(t, 20, Depth(20))
	assert.Equal(t, 60, Depth(45))
	assert.Equal(t, 500, Depth(500))
	assert.Equal(t, 5000, Depth(9000))
}

func TestContainsReady_OnlyNested(t *testing.T) {
	top := Envelope[ReadyTask]{Tasks: []Task[ReadyTask]{{ID: "abc"}}}
	assert.False(t, containsReady(top, "abc"))

	nested := Envelope[ReadyTask]{Tasks: []Task[ReadyTask]{{ID: "c", Result: []ReadyTask{{ID: "abc"}}}}}
	assert.True(t, containsReady(nested, "abc"))
}

func TestNew_RequiresLoginAndPassword(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := New(source.NewClient(source.Config{}, logger), Config{}, domain.Credentials{"login": "x"}, logger)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCredentialsNotFound))
}
