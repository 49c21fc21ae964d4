package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type feedPost struct {
	ID         uint     `json:"id"`
	Title      string   `json:"title"`
	Identifier string   `json:"identifier"`
	Score      float64  `json:"score"`
	Tags       []string `json:"tags"`
	ViewCount  int      `json:"view_count"`
	Category   *struct {
		Name string `json:"name"`
	} `json:"category"`
}

type feedResponse struct {
	Posts         []feedPost `json:"post"`
	AlgorithmUsed string     `json:"algorithm_used"`
	TotalCount    int        `json:"total_count"`
	Page          int        `json:"page"`
	PageSize      int        `json:"page_size"`
}

var feedCmd = &cobra.Command{
	Use:   "feed <username>",
	Short: "Get the personalized feed for a user",
	Long: `Get the personalized feed for a user.

Examples:
  reelrank feed alice
  reelrank feed alice --project edu --page 2
  reelrank feed alice --category education --tag python`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := pageParams(cmd)
		params.Set("username", args[0])
		setIfNotEmpty(cmd, params, "category", "category")
		setIfNotEmpty(cmd, params, "tag", "tag")
		setIfNotEmpty(cmd, params, "mood", "mood")

		path := "/api/v1/feed"
		if project, _ := cmd.Flags().GetString("project"); project != "" {
			path = "/api/v1/feed/category"
			params.Set("project_code", project)
		}
		return showFeed(path, params)
	},
}

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Get trending posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		params := pageParams(cmd)
		setIfNotEmpty(cmd, params, "category", "category")
		setIfNotEmpty(cmd, params, "user", "username")
		return showFeed("/api/v1/trending", params)
	},
}

var similarCmd = &cobra.Command{
	Use:   "similar <post_id>",
	Short: "Get posts similar to a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
			return fmt.Errorf("post_id must be a positive integer")
		}
		params := pageParams(cmd)
		setIfNotEmpty(cmd, params, "user", "username")
		return showFeed("/api/v1/similar/"+args[0], params)
	},
}

var interactCmd = &cobra.Command{
	Use:   "interact <username> <post_id> <type>",
	Short: "Record an interaction (view, like, bookmark, share, rate, comment, inspire)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil || postID == 0 {
			return fmt.Errorf("post_id must be a positive integer")
		}
		payload := map[string]interface{}{
			"username":         args[0],
			"post_id":          postID,
			"interaction_type": strings.ToLower(args[2]),
		}
		if cmd.Flags().Changed("value") {
			value, _ := cmd.Flags().GetFloat64("value")
			payload["interaction_value"] = value
		}

		body, err := call(http.MethodPost, "/api/v1/interaction", nil, payload)
		if err != nil {
			return err
		}
		var result map[string]interface{}
		return render(body, &result, func() {
			fmt.Printf("✓ Recorded %s on post %d for %s\n", args[2], postID, args[0])
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{feedCmd, trendingCmd, similarCmd} {
		cmd.Flags().IntP("page", "p", 1, "Page number")
		cmd.Flags().IntP("page-size", "n", 20, "Results per page")
	}

	feedCmd.Flags().String("project", "", "Restrict to a project code (category feed)")
	feedCmd.Flags().String("category", "", "Category filter")
	feedCmd.Flags().String("tag", "", "Tag filter")
	feedCmd.Flags().String("mood", "", "Mood hint")

	trendingCmd.Flags().String("category", "", "Category filter")
	trendingCmd.Flags().String("user", "", "Username, to exclude posts they already saw")

	similarCmd.Flags().String("user", "", "Username, to exclude posts they already saw")

	interactCmd.Flags().Float64("value", 0, "Interaction value (rating 1-5 for rate)")
}

func pageParams(cmd *cobra.Command) url.Values {
	page, _ := cmd.Flags().GetInt("page")
	pageSize, _ := cmd.Flags().GetInt("page-size")
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))
	return params
}

func setIfNotEmpty(cmd *cobra.Command, params url.Values, flag, key string) {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		params.Set(key, v)
	}
}

func showFeed(path string, params url.Values) error {
	body, err := call(http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}

	var feed feedResponse
	return render(body, &feed, func() {
		fmt.Printf("\n🎬 %d posts (page %d, algorithm %s)\n", feed.TotalCount, feed.Page, feed.AlgorithmUsed)
		fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		if len(feed.Posts) == 0 {
			fmt.Println("No posts found")
			return
		}
		for i, p := range feed.Posts {
			category := "-"
			if p.Category != nil && p.Category.Name != "" {
				category = p.Category.Name
			}
			fmt.Printf("%3d. [%d] %s\n", (feed.Page-1)*feed.PageSize+i+1, p.ID, p.Title)
			fmt.Printf("     %s | %s | %d views | score %.3f", p.Identifier, category, p.ViewCount, p.Score)
			if len(p.Tags) > 0 {
				fmt.Printf(" | #%s", strings.Join(p.Tags, " #"))
			}
			fmt.Println()
		}
		fmt.Println()
	})
}
