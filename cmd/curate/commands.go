package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/curate/internal/api"
	"github.com/kalambet/curate/internal/config"
)

// Response shapes of the review API, decoded loosely so the CLI does not
// depend on server-side view types.
type sourceRef struct {
	SourceID     int64  `json:"source_id"`
	SourceName   string `json:"source_name"`
	WeeklyTarget int    `json:"weekly_target"`
	Completed    int    `json:"completed"`
}

type nextResponse struct {
	Mode    string    `json:"mode"`
	Source  sourceRef `json:"source"`
	Article struct {
		ID          int64      `json:"id"`
		SourceID    int64      `json:"source_id"`
		Title       string     `json:"title"`
		URL         string     `json:"url"`
		Content     string     `json:"content"`
		PublishedAt *time.Time `json:"published_at"`
	} `json:"article"`
	IsNeverClassified bool `json:"is_never_classified"`
}

type stateResponse struct {
	ArticleID          int64    `json:"article_id"`
	Reaction           string   `json:"reaction"`
	ClassificationTags []string `json:"classification_tags"`
}

type noteResponse struct {
	ID        int64     `json:"id"`
	ArticleID int64     `json:"article_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type summaryResponse struct {
	Mode      string    `json:"mode"`
	WeekStart time.Time `json:"week_start"`
	Sources   []struct {
		SourceID   int64  `json:"source_id"`
		SourceName string `json:"source_name"`
		Completed  int    `json:"completed"`
		Target     int    `json:"target"`
	} `json:"sources"`
	Progress struct {
		Completed int `json:"completed"`
		Target    int `json:"target"`
	} `json:"progress"`
}

func modeArg(args []string) (string, error) {
	if len(args) == 0 {
		return "cleaning", nil
	}
	switch m := strings.ToLower(args[0]); m {
	case "cleaning", "classifying":
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (want cleaning or classifying)", args[0])
}

func articleIDArg(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid article id %q", s)
	}
	return id, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// --- review ---

var sourceCmd = &cobra.Command{
	Use:   "source [cleaning|classifying]",
	Short: "Show the source currently being reviewed",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := modeArg(args)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runSource(cmd.Context(), client, mode)
	},
}

func runSource(ctx context.Context, client *apiClient, mode string) error {
	resp, err := client.get(ctx, "/review/"+mode+"/source")
	if err != nil {
		return err
	}
	var ref sourceRef
	if err := decodeJSON(resp, &ref); err != nil {
		if errors.Is(err, errNothingToReview) {
			printSuccess("All %s quotas met for this week", mode)
			return nil
		}
		return err
	}
	fmt.Printf("%s %s %d/%d\n", colorize(colorBold, ref.SourceName), progressBar(ref.Completed, ref.WeeklyTarget, 20), ref.Completed, ref.WeeklyTarget)
	return nil
}

var nextCmd = &cobra.Command{
	Use:   "next [cleaning|classifying]",
	Short: "Draw the next article to review",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := modeArg(args)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runNext(cmd.Context(), client, mode, asJSON)
	},
}

func runNext(ctx context.Context, client *apiClient, mode string, asJSON bool) error {
	resp, err := client.get(ctx, "/review/"+mode+"/next")
	if err != nil {
		return err
	}
	var next nextResponse
	if err := decodeJSON(resp, &next); err != nil {
		if errors.Is(err, errNothingToReview) {
			printSuccess("Nothing to review")
			return nil
		}
		return err
	}
	if asJSON {
		return printJSON(os.Stdout, next)
	}

	fmt.Printf("%s #%d %s\n", colorize(colorBold, next.Source.SourceName), next.Article.ID, colorize(colorBold, next.Article.Title))
	if next.Article.URL != "" {
		fmt.Printf("  %s\n", next.Article.URL)
	}
	if next.Article.PublishedAt != nil {
		fmt.Printf("  published %s\n", next.Article.PublishedAt.Format(time.DateOnly))
	}
	if next.IsNeverClassified {
		fmt.Printf("  %s\n", colorize(colorYellow, "reaction not yet confirmed in classifying"))
	}
	if next.Article.Content != "" {
		fmt.Printf("\n%s\n", next.Article.Content)
	}
	fmt.Printf("\n%d/%d this week\n", next.Source.Completed, next.Source.WeeklyTarget)
	return nil
}

var reactCmd = &cobra.Command{
	Use:   "react <article-id> <like|dislike|unsure>",
	Short: "Record a reaction to an article",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := articleIDArg(args[0])
		if err != nil {
			return err
		}
		mode, _ := cmd.Flags().GetString("mode")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runReact(cmd.Context(), client, id, strings.ToLower(args[1]), mode)
	},
}

func runReact(ctx context.Context, client *apiClient, articleID int64, reaction, mode string) error {
	body := map[string]any{"article_id": articleID, "reaction": reaction}
	if mode != "" {
		body["mode"] = mode
	}
	resp, err := client.post(ctx, "/review/reactions", body)
	if err != nil {
		return err
	}
	var st stateResponse
	if err := decodeJSON(resp, &st); err != nil {
		return err
	}
	printSuccess("Article %d: %s", st.ArticleID, st.Reaction)
	return nil
}

var classifyCmd = &cobra.Command{
	Use:   "classify <article-id>",
	Short: "Assign classification tags to a liked article",
	Long: `Assign classification tags to a liked article.

At least one category and one country tag are required, plus an industry
tag or a free-text industry via --extra.

Examples:
  curate classify 1042 --tags cat-tech,cty-de,ind-auto
  curate classify 1042 --tags cat-tech,cty-de --extra "Space launch"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := articleIDArg(args[0])
		if err != nil {
			return err
		}
		tagsStr, _ := cmd.Flags().GetString("tags")
		extras, _ := cmd.Flags().GetStringArray("extra")
		tags := splitList(tagsStr)
		if len(tags) == 0 && len(extras) == 0 {
			return fmt.Errorf("--tags is required")
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runClassify(cmd.Context(), client, id, tags, extras)
	},
}

func runClassify(ctx context.Context, client *apiClient, articleID int64, tags, extras []string) error {
	body := map[string]any{"article_id": articleID, "tag_ids": tags}
	if len(extras) > 0 {
		body["extras"] = extras
	}
	resp, err := client.post(ctx, "/review/classifications", body)
	if err != nil {
		return err
	}
	var st stateResponse
	if err := decodeJSON(resp, &st); err != nil {
		return err
	}
	printSuccess("Article %d classified: %s", st.ArticleID, strings.Join(st.ClassificationTags, ", "))
	return nil
}

var noteCmd = &cobra.Command{
	Use:   "note <article-id> <text>",
	Short: "Append a note to an article",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := articleIDArg(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/review/notes", map[string]any{
			"article_id": id,
			"text":       strings.Join(args[1:], " "),
		})
		if err != nil {
			return err
		}
		var n noteResponse
		if err := decodeJSON(resp, &n); err != nil {
			return err
		}
		printSuccess("Note %d added to article %d", n.ID, n.ArticleID)
		return nil
	},
}

var notesCmd = &cobra.Command{
	Use:   "notes <article-id>",
	Short: "List your notes on an article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := articleIDArg(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/review/articles/%d/notes", id))
		if err != nil {
			return err
		}
		var notes []noteResponse
		if err := decodeJSON(resp, &notes); err != nil {
			return err
		}
		if len(notes) == 0 {
			fmt.Println("No notes.")
			return nil
		}
		for _, n := range notes {
			fmt.Printf("%s  %s\n", colorize(colorCyan, n.CreatedAt.Local().Format(time.DateTime)), n.Text)
		}
		return nil
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress [cleaning|classifying]",
	Short: "Show this week's progress against quotas",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := modeArg(args)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runProgress(cmd.Context(), client, mode)
	},
}

func runProgress(ctx context.Context, client *apiClient, mode string) error {
	resp, err := client.get(ctx, "/review/"+mode+"/progress")
	if err != nil {
		return err
	}
	var s summaryResponse
	if err := decodeJSON(resp, &s); err != nil {
		return err
	}
	if len(s.Sources) == 0 {
		fmt.Printf("No %s quotas assigned.\n", mode)
		return nil
	}
	fmt.Printf("%s since %s\n", colorize(colorBold, mode), s.WeekStart.Local().Format(time.DateTime))
	for _, src := range s.Sources {
		fmt.Printf("  %-24s %s %d/%d\n", src.SourceName, progressBar(src.Completed, src.Target, 20), src.Completed, src.Target)
	}
	fmt.Printf("  %-24s %s %d/%d\n", "total", progressBar(s.Progress.Completed, s.Progress.Target, 20), s.Progress.Completed, s.Progress.Target)
	return nil
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List classification tags by family",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/tags")
		if err != nil {
			return err
		}
		var grouped map[string][]struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		}
		if err := decodeJSON(resp, &grouped); err != nil {
			return err
		}
		for _, family := range []string{"category", "industry", "country", "tag"} {
			fmt.Println(colorize(colorBold, family))
			for _, t := range grouped[family] {
				fmt.Printf("  %-20s %s\n", t.ID, t.Label)
			}
		}
		return nil
	},
}

func init() {
	nextCmd.Flags().Bool("json", false, "print the raw JSON response")
	reactCmd.Flags().String("mode", "", "mode the reaction is given from (cleaning or classifying)")
	classifyCmd.Flags().String("tags", "", "comma-separated catalog tag ids")
	classifyCmd.Flags().StringArray("extra", nil, "free-text industry value (repeatable)")
}

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage reviewer tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <reviewer-id>",
	Short: "Sign a reviewer token with the local secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		secret := cfg.Auth.JWTSecret
		if secret == "" {
			if secret, err = config.EnsureSecret("auth.jwt_secret"); err != nil {
				return err
			}
		}
		ttl := cfg.Auth.TokenTTL
		if cmd.Flags().Changed("ttl") {
			ttl, _ = cmd.Flags().GetDuration("ttl")
		}

		token, err := api.IssueReviewerToken([]byte(secret), cfg.Auth.Issuer, args[0], ttl, time.Now())
		if err != nil {
			return err
		}

		if save, _ := cmd.Flags().GetBool("save"); save {
			if err := config.SetSecret("client.token", token); err != nil {
				return err
			}
			printSuccess("Token for %s saved as client.token", args[0])
			return nil
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().Duration("ttl", 0, "token lifetime (default auth.token_ttl; 0 never expires)")
	tokenIssueCmd.Flags().Bool("save", false, "store the token as this machine's client.token")
	tokenCmd.AddCommand(tokenIssueCmd)
}

// --- quota ---

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Manage weekly review quotas",
}

var quotaSetCmd = &cobra.Command{
	Use:   "set <reviewer-id> <cleaning|classifying> <source-id> <weekly-target>",
	Short: "Create or update a weekly quota",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := modeArg(args[1:2])
		if err != nil {
			return err
		}
		sourceID, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid source id %q", args[2])
		}
		target, err := strconv.Atoi(args[3])
		if err != nil || target < 0 {
			return fmt.Errorf("invalid weekly target %q", args[3])
		}
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		return runQuotaSet(cmd.Context(), client, args[0], mode, sourceID, target)
	},
}

func runQuotaSet(ctx context.Context, client *apiClient, reviewer, mode string, sourceID int64, target int) error {
	resp, err := client.put(ctx, "/admin/quotas", map[string]any{
		"reviewer_id":   reviewer,
		"mode":          mode,
		"source_id":     sourceID,
		"weekly_target": target,
	})
	if err != nil {
		return err
	}
	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}
	printSuccess("%s %s source %d: %d per week", reviewer, mode, sourceID, target)
	return nil
}

var quotaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List weekly quotas",
	RunE: func(cmd *cobra.Command, args []string) error {
		reviewer, _ := cmd.Flags().GetString("reviewer")
		mode, _ := cmd.Flags().GetString("mode")
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		return runQuotaList(cmd.Context(), client, reviewer, mode)
	},
}

func runQuotaList(ctx context.Context, client *apiClient, reviewer, mode string) error {
	q := url.Values{}
	if reviewer != "" {
		q.Set("reviewer_id", reviewer)
	}
	if mode != "" {
		q.Set("mode", mode)
	}
	path := "/admin/quotas"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := client.get(ctx, path)
	if err != nil {
		return err
	}
	var quotas []struct {
		ReviewerID   string `json:"reviewer_id"`
		Mode         string `json:"mode"`
		SourceID     int64  `json:"source_id"`
		SourceName   string `json:"source_name"`
		WeeklyTarget int    `json:"weekly_target"`
	}
	if err := decodeJSON(resp, &quotas); err != nil {
		return err
	}
	if len(quotas) == 0 {
		fmt.Println("No quotas.")
		return nil
	}
	for _, qt := range quotas {
		fmt.Printf("  %-16s %-12s %4d %-24s %d/week\n", qt.ReviewerID, qt.Mode, qt.SourceID, qt.SourceName, qt.WeeklyTarget)
	}
	return nil
}

var quotaDeleteCmd = &cobra.Command{
	Use:   "delete <reviewer-id> <cleaning|classifying> <source-id>",
	Short: "Remove a weekly quota",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := modeArg(args[1:2])
		if err != nil {
			return err
		}
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		q := url.Values{"reviewer_id": {args[0]}, "mode": {mode}, "source_id": {args[2]}}
		resp, err := client.delete(cmd.Context(), "/admin/quotas?"+q.Encode())
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Quota removed")
		return nil
	},
}

func init() {
	quotaListCmd.Flags().String("reviewer", "", "only quotas of this reviewer")
	quotaListCmd.Flags().String("mode", "", "only quotas of this mode")
	quotaCmd.AddCommand(quotaSetCmd)
	quotaCmd.AddCommand(quotaListCmd)
	quotaCmd.AddCommand(quotaDeleteCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
