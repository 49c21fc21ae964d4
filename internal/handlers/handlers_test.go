package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/reelrank/internal/kernel"
	"github.com/zfogg/reelrank/internal/models"
	"github.com/zfogg/reelrank/internal/recommendations"
	"gorm.io/datatypes"
)

// HandlersTestSuite runs the API against an in-memory sqlite kernel
type HandlersTestSuite struct {
	suite.Suite
	kernel   *kernel.MockKernel
	router   *gin.Engine
	handlers *Handlers

	python  models.Post
	golang  models.Post
	cooking models.Post
}

func (s *HandlersTestSuite) SetupTest() {
	k, err := kernel.NewMock(nil)
	s.Require().NoError(err)
	s.kernel = k
	s.handlers = NewHandlers(k.Kernel)

	gin.SetMode(gin.TestMode)
	s.router = gin.New()
	s.router.GET("/health", s.handlers.Health)
	s.handlers.RegisterRoutes(s.router.Group("/api/v1"), nil)

	now := time.Now().UTC()
	s.python = s.seedPost(models.Post{
		Title:       "Intro to Python",
		Slug:        "python-intro-abcdef",
		Tags:        datatypes.JSON(`["Python", "programming"]`),
		ViewCount:   120,
		UpvoteCount: 12,
		ProjectCode: "edu",
		Category:    &models.Category{Name: "Education"},
		CreatedAt:   now.Add(-2 * time.Hour),
	})
	s.golang = s.seedPost(models.Post{
		Title:       "Go for Pythonistas",
		Slug:        "go-for-python",
		Tags:        datatypes.JSON(`"programming, python, go"`),
		ViewCount:   80,
		ProjectCode: "edu",
		Category:    &models.Category{Name: "Education"},
		CreatedAt:   now.Add(-time.Hour),
	})
	s.cooking = s.seedPost(models.Post{
		Title:       "Pasta at home",
		Slug:        "pasta-at-home",
		Tags:        datatypes.JSON(`["cooking"]`),
		ViewCount:   300,
		ProjectCode: "food",
		Category:    &models.Category{Name: "Food"},
		CreatedAt:   now.Add(-3 * time.Hour),
	})
}

func (s *HandlersTestSuite) TearDownTest() {
	s.Require().NoError(s.kernel.Clean(context.Background()))
}

func (s *HandlersTestSuite) seedPost(p models.Post) models.Post {
	p.IsAvailableInPublicFeed = true
	s.Require().NoError(s.kernel.DB().Create(&p).Error)
	return p
}

func (s *HandlersTestSuite) do(method, target string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlersTestSuite) feed(target string) FeedResponse {
	w := s.do(http.MethodGet, target, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp FeedResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("success", resp.Status)
	return resp
}

func (s *HandlersTestSuite) errorCode(w *httptest.ResponseRecorder) string {
	var body map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	code, _ := body["code"].(string)
	return code
}

func (s *HandlersTestSuite) TestFeedValidation() {
	cases := []string{
		"/api/v1/feed",
		"/api/v1/feed?username=%20%20",
		"/api/v1/feed?username=alice&page=0",
		"/api/v1/feed?username=alice&page=abc",
		"/api/v1/feed?username=alice&page_size=101",
		"/api/v1/feed?username=alice&page_size=0",
	}
	for _, target := range cases {
		w := s.do(http.MethodGet, target, nil)
		s.Equal(http.StatusUnprocessableEntity, w.Code, target)
		s.Equal("VALIDATION_ERROR", s.errorCode(w), target)
	}
}

func (s *HandlersTestSuite) TestFeedColdStartForNewUser() {
	resp := s.feed("/api/v1/feed?username=newuser")

	s.Equal(recommendations.AlgorithmColdStart, resp.AlgorithmUsed)
	s.Equal(3, resp.TotalCount)
	s.Equal(1, resp.Page)
	s.Equal(20, resp.PageSize)
	s.Require().NotEmpty(resp.Posts)

	for _, item := range resp.Posts {
		if item.ID != s.python.ID {
			continue
		}
		s.Equal("python-", item.Identifier)
		s.Equal([]string{"programming", "python"}, item.Tags)
		s.Equal(s.python.CreatedAt.UnixMilli(), item.CreatedAt)
		s.Equal("edu", item.ProjectCode)
		s.Require().NotNil(item.Category)
		s.Equal("Education", item.Category.Name)
	}
}

func (s *HandlersTestSuite) TestFeedPagination() {
	first := s.feed("/api/v1/feed?username=newuser&page=1&page_size=2")
	second := s.feed("/api/v1/feed?username=newuser&page=2&page_size=2")

	s.Len(first.Posts, 2)
	s.Len(second.Posts, 1)
	s.Equal(3, second.TotalCount)
	s.NotEqual(first.Posts[0].ID, second.Posts[0].ID)
	s.NotEqual(first.Posts[1].ID, second.Posts[0].ID)
}

func (s *HandlersTestSuite) TestCategoryFeed() {
	w := s.do(http.MethodGet, "/api/v1/feed/category?username=alice", nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	resp := s.feed("/api/v1/feed/category?username=alice&project_code=edu")
	s.Equal(recommendations.AlgorithmColdStart, resp.AlgorithmUsed)
	s.Equal(2, resp.TotalCount)
	for _, item := range resp.Posts {
		s.Equal("edu", item.ProjectCode)
	}

	for _, post := range []models.Post{s.python, s.golang, s.cooking} {
		for _, kind := range []string{"view", "like"} {
			w := s.do(http.MethodPost, "/api/v1/interaction", gin.H{
				"username":         "alice",
				"post_id":          post.ID,
				"interaction_type": kind,
			})
			s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
		}
	}

	resp = s.feed("/api/v1/feed/category?username=alice&project_code=edu")
	s.Equal(recommendations.AlgorithmCategory, resp.AlgorithmUsed)
	s.Equal(2, resp.TotalCount)
}

func (s *HandlersTestSuite) TestTrending() {
	resp := s.feed("/api/v1/trending")
	s.Equal(recommendations.AlgorithmTrending, resp.AlgorithmUsed)
	s.Equal(3, resp.TotalCount)

	resp = s.feed("/api/v1/trending?category=food")
	s.Require().Len(resp.Posts, 1)
	s.Equal(s.cooking.ID, resp.Posts[0].ID)
}

func (s *HandlersTestSuite) TestSimilarPosts() {
	w := s.do(http.MethodGet, "/api/v1/similar/abc", nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodGet, "/api/v1/similar/99999", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("NOT_FOUND", s.errorCode(w))

	resp := s.feed("/api/v1/similar/" + itoa(s.python.ID))
	s.Equal(recommendations.AlgorithmSimilar, resp.AlgorithmUsed)
	s.Equal(len(resp.Posts), len(resp.ConfidenceScores))
	for i, item := range resp.Posts {
		s.NotEqual(s.python.ID, item.ID, "reference post is excluded")
		s.GreaterOrEqual(resp.ConfidenceScores[i], 0.3)
	}
}

func (s *HandlersTestSuite) TestRecordInteraction() {
	w := s.do(http.MethodPost, "/api/v1/interaction", gin.H{
		"username":          "alice",
		"post_id":           s.python.ID,
		"interaction_type":  "rate",
		"interaction_value": 4.5,
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.JSONEq(`{"status":"success"}`, w.Body.String())

	var interaction models.Interaction
	s.Require().NoError(s.kernel.DB().Where("post_id = ?", s.python.ID).First(&interaction).Error)
	s.Equal("rate", interaction.InteractionType)
	s.Require().NotNil(interaction.InteractionValue)
	s.Equal(4.5, *interaction.InteractionValue)

	var post models.Post
	s.Require().NoError(s.kernel.DB().First(&post, s.python.ID).Error)
	s.Equal(s.python.ViewCount, post.ViewCount, "recording never touches counters")
}

func (s *HandlersTestSuite) TestRecordInteractionErrors() {
	w := s.do(http.MethodPost, "/api/v1/interaction", gin.H{
		"username": "alice", "post_id": s.python.ID, "interaction_type": "teleport",
	})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/api/v1/interaction", gin.H{
		"username": "alice", "post_id": 424242, "interaction_type": "like",
	})
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/v1/interaction", gin.H{
		"username": "alice", "post_id": "abc", "interaction_type": "like",
	})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/api/v1/interaction", gin.H{
		"username": " ", "post_id": s.python.ID, "interaction_type": "like",
	})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *HandlersTestSuite) TestUserProfileAndPreferences() {
	w := s.do(http.MethodGet, "/api/v1/users/ghost/profile", nil)
	s.Equal(http.StatusNotFound, w.Code)

	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/interaction", gin.H{
		"username": "alice", "post_id": s.python.ID, "interaction_type": "like",
	}).Code)

	w = s.do(http.MethodPut, "/api/v1/users/alice/preferences", gin.H{
		"categories": []string{"Education"},
		"mood":       "focused",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/users/alice/profile", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Status  string `json:"status"`
		Profile struct {
			Engagement struct {
				TotalInteractions int `json:"total_interactions"`
			} `json:"engagement"`
			TagProfile  []recommendations.TagWeight `json:"tag_profile"`
			Preferences *models.UserPreferences     `json:"preferences"`
		} `json:"profile"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("success", body.Status)
	s.Equal(1, body.Profile.Engagement.TotalInteractions)
	s.NotEmpty(body.Profile.TagProfile)
	s.Require().NotNil(body.Profile.Preferences)
	s.Equal("focused", body.Profile.Preferences.Mood)
}

func (s *HandlersTestSuite) TestInteractionStatsAndLogs() {
	for _, username := range []string{"alice", "bob"} {
		s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/interaction", gin.H{
			"username": username, "post_id": s.golang.ID, "interaction_type": "view",
		}).Code)
	}
	s.feed("/api/v1/feed?username=alice")
	s.kernel.Engine().Wait()

	w := s.do(http.MethodGet, "/api/v1/interactions/stats", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var stats struct {
		Stats recommendations.InteractionStats `json:"stats"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &stats))
	s.Equal(int64(2), stats.Stats.TotalInteractions)
	s.Equal(int64(2), stats.Stats.TotalUsers)
	s.Equal(int64(3), stats.Stats.TotalPosts)

	w = s.do(http.MethodGet, "/api/v1/recommendations/logs?limit=0", nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodGet, "/api/v1/recommendations/logs?limit=5", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var logs struct {
		Logs  []recommendations.LogEntry `json:"logs"`
		Count int                        `json:"count"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &logs))
	s.Require().Equal(1, logs.Count)
	s.Equal("alice", logs.Logs[0].Username)
}

func (s *HandlersTestSuite) TestRebuildCollaborative() {
	for _, username := range []string{"alice", "bob", "carol"} {
		s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/interaction", gin.H{
			"username": username, "post_id": s.python.ID, "interaction_type": "like",
		}).Code)
	}

	w := s.do(http.MethodPost, "/api/v1/recommendations/rebuild", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Status string `json:"status"`
		Users  int    `json:"users"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("success", body.Status)
	s.Equal(3, body.Users)
}

func (s *HandlersTestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("healthy", body.Status)
	s.Equal("ok", body.Checks["database"])
	s.Equal("disabled", body.Checks["redis"])
	s.Equal("disabled", body.Checks["model_scorer"])
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
