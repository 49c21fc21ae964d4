package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show service-wide interaction statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStats()
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the most recent recommendation logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return showLogs(limit)
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild-cf",
	Short: "Force the server to rebuild its collaborative filtering matrix",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := call(http.MethodPost, "/api/v1/recommendations/rebuild", nil, nil)
		if err != nil {
			return err
		}
		var resp struct {
			Users int `json:"users"`
		}
		return render(body, &resp, func() {
			fmt.Printf("✓ Collaborative matrix rebuilt with %d users\n", resp.Users)
		})
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := call(http.MethodGet, "/health", nil, nil)
		if err != nil {
			return err
		}
		var health struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		return render(body, &health, func() {
			fmt.Printf("Status: %s\n", health.Status)
			for name, state := range health.Checks {
				fmt.Printf("  %-14s %s\n", name, state)
			}
		})
	},
}

func init() {
	logsCmd.Flags().IntP("limit", "l", 10, "Number of logs (1-50)")
}

type statsResponse struct {
	Stats struct {
		TotalInteractions int64 `json:"total_interactions"`
		TotalUsers        int64 `json:"total_users"`
		TotalPosts        int64 `json:"total_posts"`
		ByType            []struct {
			Type  string `json:"type"`
			Count int64  `json:"count"`
		} `json:"interactions_by_type"`
		MostActiveUsers []struct {
			Username         string `json:"username"`
			InteractionCount int64  `json:"interaction_count"`
		} `json:"most_active_users"`
		MostInteractedPosts []struct {
			PostID           uint   `json:"post_id"`
			Title            string `json:"title"`
			InteractionCount int64  `json:"interaction_count"`
		} `json:"most_interacted_posts"`
	} `json:"stats"`
}

func showStats() error {
	body, err := call(http.MethodGet, "/api/v1/interactions/stats", nil, nil)
	if err != nil {
		return err
	}

	var resp statsResponse
	return render(body, &resp, func() {
		s := resp.Stats
		fmt.Printf("\n📊 %d interactions, %d users, %d posts\n", s.TotalInteractions, s.TotalUsers, s.TotalPosts)
		fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		for _, t := range s.ByType {
			fmt.Printf("  %-10s %d\n", t.Type, t.Count)
		}
		if len(s.MostActiveUsers) > 0 {
			fmt.Println("Most active users:")
			for _, u := range s.MostActiveUsers {
				fmt.Printf("  %-20s %d\n", u.Username, u.InteractionCount)
			}
		}
		if len(s.MostInteractedPosts) > 0 {
			fmt.Println("Most interacted posts:")
			for _, p := range s.MostInteractedPosts {
				fmt.Printf("  [%d] %-40s %d\n", p.PostID, p.Title, p.InteractionCount)
			}
		}
		fmt.Println()
	})
}

func showLogs(limit int) error {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	body, err := call(http.MethodGet, "/api/v1/recommendations/logs", params, nil)
	if err != nil {
		return err
	}

	var resp struct {
		Logs []struct {
			ID                uint      `json:"id"`
			Username          string    `json:"username"`
			Algorithm         string    `json:"algorithm_used"`
			PostCount         int       `json:"post_count"`
			AverageConfidence float64   `json:"average_confidence"`
			Timestamp         time.Time `json:"timestamp"`
		} `json:"logs"`
		Count int `json:"count"`
	}
	return render(body, &resp, func() {
		if resp.Count == 0 {
			fmt.Println("No recommendation logs yet")
			return
		}
		for _, l := range resp.Logs {
			fmt.Printf("%s  %-16s %-22s %3d posts  avg %.3f\n",
				l.Timestamp.Local().Format(time.DateTime), l.Username, l.Algorithm, l.PostCount, l.AverageConfidence)
		}
	})
}
