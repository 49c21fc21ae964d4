package main

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Inspect and configure users",
}

var userProfileCmd = &cobra.Command{
	Use:   "profile <username>",
	Short: "Show engagement, tag profile and preferences for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showProfile(args[0])
	},
}

var userPrefsCmd = &cobra.Command{
	Use:   "set-preferences <username>",
	Short: "Set explicit preferences for a user",
	Long: `Set explicit preferences for a user. The user is created if needed.

Examples:
  reelrank user set-preferences alice --categories education,food --mood focused`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		categories, _ := cmd.Flags().GetStringSlice("categories")
		topics, _ := cmd.Flags().GetStringSlice("topics")
		contentTypes, _ := cmd.Flags().GetStringSlice("content-types")
		mood, _ := cmd.Flags().GetString("mood")
		return setPreferences(args[0], map[string]interface{}{
			"categories":    categories,
			"topics":        topics,
			"content_types": contentTypes,
			"mood":          mood,
		})
	},
}

func init() {
	userCmd.AddCommand(userProfileCmd)
	userCmd.AddCommand(userPrefsCmd)

	userPrefsCmd.Flags().StringSlice("categories", nil, "Preferred categories (comma-separated or repeated)")
	userPrefsCmd.Flags().StringSlice("topics", nil, "Preferred topics")
	userPrefsCmd.Flags().StringSlice("content-types", nil, "Preferred content types")
	userPrefsCmd.Flags().String("mood", "", "Mood")
}

type profileResponse struct {
	Profile struct {
		User struct {
			ID       uint   `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
		Engagement struct {
			Breakdown       map[string]int `json:"interaction_breakdown"`
			Total           int            `json:"total_interactions"`
			EngagementScore float64        `json:"engagement_score"`
			TopCategories   []struct {
				Category string `json:"category"`
				Count    int    `json:"count"`
			} `json:"top_categories"`
		} `json:"engagement"`
		TagProfile []struct {
			Tag    string  `json:"tag"`
			Weight float64 `json:"weight"`
		} `json:"tag_profile"`
		Preferences *struct {
			Categories []string `json:"categories"`
			Mood       string   `json:"mood"`
		} `json:"preferences"`
		RecommendationsServed int64 `json:"recommendations_served"`
	} `json:"profile"`
}

func showProfile(username string) error {
	body, err := call(http.MethodGet, "/api/v1/users/"+url.PathEscape(username)+"/profile", nil, nil)
	if err != nil {
		return err
	}

	var resp profileResponse
	return render(body, &resp, func() {
		p := resp.Profile
		fmt.Printf("\n📋 Profile: %s (id %d)\n", p.User.Username, p.User.ID)
		fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		fmt.Printf("Interactions: %d (engagement score %.2f)\n", p.Engagement.Total, p.Engagement.EngagementScore)

		types := make([]string, 0, len(p.Engagement.Breakdown))
		for t := range p.Engagement.Breakdown {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Printf("  %-10s %d\n", t, p.Engagement.Breakdown[t])
		}

		if len(p.Engagement.TopCategories) > 0 {
			fmt.Println("Top categories:")
			for _, c := range p.Engagement.TopCategories {
				fmt.Printf("  %-16s %d\n", c.Category, c.Count)
			}
		}
		if len(p.TagProfile) > 0 {
			fmt.Println("Tag profile:")
			for _, t := range p.TagProfile {
				fmt.Printf("  %-16s %.2f\n", t.Tag, t.Weight)
			}
		}
		if p.Preferences != nil {
			fmt.Printf("Preferences: categories=%s mood=%s\n", strings.Join(p.Preferences.Categories, ","), p.Preferences.Mood)
		}
		fmt.Printf("Recommendations served: %d\n\n", p.RecommendationsServed)
	})
}

func setPreferences(username string, prefs map[string]interface{}) error {
	body, err := call(http.MethodPut, "/api/v1/users/"+url.PathEscape(username)+"/preferences", nil, prefs)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	return render(body, &result, func() {
		fmt.Printf("✓ Preferences updated for %s\n", username)
	})
}
