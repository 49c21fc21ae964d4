package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// RecommendationLog is an append-only audit of a served recommendation.
// The ranking pipeline writes it and never reads it back.
type RecommendationLog struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UserID           uint           `gorm:"not null;index:idx_recommendation_logs_user_time,priority:1" json:"user_id"`
	RecommendedPosts datatypes.JSON `gorm:"not null" json:"recommended_posts"`
	AlgorithmUsed    string         `gorm:"not null;size:64;index" json:"algorithm_used"`
	ConfidenceScores datatypes.JSON `json:"confidence_scores"`
	RequestParams    datatypes.JSON `json:"request_params,omitempty"`
	Timestamp        time.Time      `gorm:"not null;index:idx_recommendation_logs_user_time,priority:2" json:"timestamp"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// RecommendationLogParams collects the fields needed to build a log row.
type RecommendationLogParams struct {
	UserID        uint
	PostIDs       []uint
	Algorithm     string
	Scores        []float64
	RequestParams map[string]string
	Timestamp     time.Time
}

// NewRecommendationLog builds a log row, encoding the list payloads as JSON.
func NewRecommendationLog(params RecommendationLogParams) (*RecommendationLog, error) {
	postIDs := params.PostIDs
	if postIDs == nil {
		postIDs = []uint{}
	}
	posts, err := json.Marshal(postIDs)
	if err != nil {
		return nil, err
	}

	scores := params.Scores
	if scores == nil {
		scores = []float64{}
	}
	confidence, err := json.Marshal(scores)
	if err != nil {
		return nil, err
	}

	var reqParams datatypes.JSON
	if len(params.RequestParams) > 0 {
		raw, err := json.Marshal(params.RequestParams)
		if err != nil {
			return nil, err
		}
		reqParams = datatypes.JSON(raw)
	}

	ts := params.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return &RecommendationLog{
		UserID:           params.UserID,
		RecommendedPosts: datatypes.JSON(posts),
		AlgorithmUsed:    params.Algorithm,
		ConfidenceScores: datatypes.JSON(confidence),
		RequestParams:    reqParams,
		Timestamp:        ts,
	}, nil
}

// AverageConfidence returns the mean of the logged scores, 0 when empty or unreadable.
func (l *RecommendationLog) AverageConfidence() float64 {
	var scores []float64
	if err := json.Unmarshal(l.ConfidenceScores, &scores); err != nil || len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// PostCount returns how many posts were recommended.
func (l *RecommendationLog) PostCount() int {
	var ids []uint
	if err := json.Unmarshal(l.RecommendedPosts, &ids); err != nil {
		return 0
	}
	return len(ids)
}
