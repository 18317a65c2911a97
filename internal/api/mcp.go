package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/curate/internal/review"
	"github.com/kalambet/curate/internal/storage"
	"github.com/kalambet/curate/internal/taxonomy"
)

// MCPDeps holds dependencies for the MCP server. Every tool acts as
// ReviewerID; the stdio transport carries no identity of its own.
type MCPDeps struct {
	Engine     *review.Engine
	Tags       *taxonomy.Catalog
	ReviewerID string
}

// NewMCPServer creates an MCP server with the review tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"curate",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("curate: review queue for article cleaning and classification."),
		server.WithRecovery(),
	)

	modeArg := mcp.WithString("mode",
		mcp.Description("Review mode"),
		mcp.Enum(string(storage.ModeCleaning), string(storage.ModeClassifying)),
		mcp.Required(),
	)

	s.AddTool(
		mcp.NewTool("active_source",
			mcp.WithDescription("Show which source the reviewer is currently drawing from, or report that every weekly quota is met."),
			modeArg,
		),
		mcpActiveSource(deps),
	)

	s.AddTool(
		mcp.NewTool("next_article",
			mcp.WithDescription("Draw the next unreviewed article for the reviewer."),
			modeArg,
		),
		mcpNextArticle(deps),
	)

	s.AddTool(
		mcp.NewTool("submit_reaction",
			mcp.WithDescription("Record like, dislike or unsure for an article."),
			mcp.WithNumber("article_id", mcp.Description("Article id"), mcp.Required()),
			mcp.WithString("reaction", mcp.Description("like, dislike or unsure"), mcp.Enum("like", "dislike", "unsure"), mcp.Required()),
			mcp.WithString("mode", mcp.Description("Mode the reaction was given from (default cleaning)")),
		),
		mcpSubmitReaction(deps),
	)

	s.AddTool(
		mcp.NewTool("submit_classification",
			mcp.WithDescription("Assign classification tags to a liked article."),
			mcp.WithNumber("article_id", mcp.Description("Article id"), mcp.Required()),
			mcp.WithArray("tag_ids", mcp.Description("Catalog tag ids"), mcp.Required()),
			mcp.WithArray("extras", mcp.Description("Free-text industry values not in the catalog")),
		),
		mcpSubmitClassification(deps),
	)

	s.AddTool(
		mcp.NewTool("add_note",
			mcp.WithDescription("Append a free-text note to an article."),
			mcp.WithNumber("article_id", mcp.Description("Article id"), mcp.Required()),
			mcp.WithString("text", mcp.Description("Note text"), mcp.Required()),
		),
		mcpAddNote(deps),
	)

	s.AddTool(
		mcp.NewTool("list_notes",
			mcp.WithDescription("List the reviewer's notes on an article, oldest first."),
			mcp.WithNumber("article_id", mcp.Description("Article id"), mcp.Required()),
		),
		mcpListNotes(deps),
	)

	s.AddTool(
		mcp.NewTool("weekly_progress",
			mcp.WithDescription("Show completed versus target for the current week."),
			modeArg,
		),
		mcpWeeklyProgress(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"curate://tags",
			"Tag Catalog",
			mcp.WithResourceDescription("Classification tags grouped by family"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTags(deps),
	)

	return s
}

func mcpMode(req mcp.CallToolRequest) (storage.Mode, *mcp.CallToolResult) {
	s, err := req.RequireString("mode")
	if err != nil {
		return "", mcpError("mode is required")
	}
	mode, err := storage.ParseMode(s)
	if err != nil {
		return "", mcpError(err.Error())
	}
	return mode, nil
}

func mcpArticleID(req mcp.CallToolRequest) (int64, *mcp.CallToolResult) {
	id := req.GetInt("article_id", 0)
	if id <= 0 {
		return 0, mcpError("article_id must be a positive integer")
	}
	return int64(id), nil
}

func mcpActiveSource(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		mode, errResult := mcpMode(req)
		if errResult != nil {
			return errResult, nil
		}
		ref, err := deps.Engine.ActiveSource(ctx, deps.ReviewerID, mode)
		if err != nil {
			return mcpEngineError(err), nil
		}
		if ref == nil {
			return mcpText("Nothing to review: every weekly quota is met."), nil
		}
		return mcpJSON(ref)
	}
}

func mcpNextArticle(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		mode, errResult := mcpMode(req)
		if errResult != nil {
			return errResult, nil
		}
		next, err := deps.Engine.GetNextArticle(ctx, deps.ReviewerID, mode)
		if err != nil {
			return mcpEngineError(err), nil
		}
		if next == nil {
			return mcpText("Nothing to review."), nil
		}
		return mcpJSON(nextView{
			Mode:              mode,
			Source:            next.Source,
			Article:           toArticleView(next.Article),
			IsNeverClassified: next.IsNeverClassified,
		})
	}
}

func mcpSubmitReaction(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		articleID, errResult := mcpArticleID(req)
		if errResult != nil {
			return errResult, nil
		}
		s, err := req.RequireString("reaction")
		if err != nil {
			return mcpError("reaction is required"), nil
		}
		reaction, err := storage.ParseReaction(s)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		st, err := deps.Engine.SubmitReaction(ctx, review.ReactionInput{
			ReviewerID: deps.ReviewerID,
			ArticleID:  articleID,
			Reaction:   reaction,
			Mode:       storage.Mode(req.GetString("mode", "")),
		})
		if err != nil {
			return mcpEngineError(err), nil
		}
		return mcpText(fmt.Sprintf("Recorded %s for article %d", st.Reaction, st.ArticleID)), nil
	}
}

func mcpSubmitClassification(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		articleID, errResult := mcpArticleID(req)
		if errResult != nil {
			return errResult, nil
		}
		ids := req.GetStringSlice("tag_ids", nil)
		extras := req.GetStringSlice("extras", nil)
		st, err := deps.Engine.SubmitClassification(ctx, review.ClassificationInput{
			ReviewerID: deps.ReviewerID,
			ArticleID:  articleID,
			TagIDs:     ids,
			Extras:     extras,
			Policy:     classificationPolicy(deps.Tags),
		})
		if err != nil {
			return mcpEngineError(err), nil
		}
		return mcpText(fmt.Sprintf("Classified article %d as %s", st.ArticleID, *st.ClassificationTags)), nil
	}
}

func mcpAddNote(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		articleID, errResult := mcpArticleID(req)
		if errResult != nil {
			return errResult, nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		n, err := deps.Engine.SubmitNote(ctx, deps.ReviewerID, articleID, text)
		if err != nil {
			return mcpEngineError(err), nil
		}
		return mcpText(fmt.Sprintf("Added note %d to article %d", n.ID, n.ArticleID)), nil
	}
}

func mcpListNotes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		articleID, errResult := mcpArticleID(req)
		if errResult != nil {
			return errResult, nil
		}
		notes, err := deps.Engine.Notes(ctx, deps.ReviewerID, articleID)
		if err != nil {
			return mcpEngineError(err), nil
		}
		out := make([]noteView, len(notes))
		for i, n := range notes {
			out[i] = toNoteView(n)
		}
		return mcpJSON(out)
	}
}

func mcpWeeklyProgress(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		mode, errResult := mcpMode(req)
		if errResult != nil {
			return errResult, nil
		}
		summary, err := deps.Engine.GetWeeklyProgress(ctx, deps.ReviewerID, mode)
		if err != nil {
			return mcpEngineError(err), nil
		}
		return mcpJSON(summary)
	}
}

func mcpResourceTags(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		tags, err := deps.Tags.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tags: %w", err)
		}
		b, err := json.Marshal(groupTags(tags, taxonomy.Families))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tags: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpEngineError(err error) *mcp.CallToolResult {
	var verr *review.ValidationError
	switch {
	case errors.Is(err, review.ErrUnauthorized):
		return mcpError("no reviewer configured: set mcp.reviewer_id")
	case errors.As(err, &verr):
		return mcpError(fmt.Sprintf("invalid input: %v", verr))
	case errors.Is(err, review.ErrInvalidState):
		return mcpError(err.Error())
	case review.IsRetryable(err):
		return mcpError(fmt.Sprintf("temporarily unavailable, retry: %v", err))
	}
	return mcpError(err.Error())
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
