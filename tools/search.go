package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tidwall/gjson"

	"github.com/athapong/kgraph-mcp/services"
	"github.com/athapong/kgraph-mcp/util"
)

const (
	tavilyEndpoint   = "https://api.tavily.com/search"
	maxSearchResults = 3
	maxContentChars  = 2000
)

// RegisterSearchTool registers the Tavily-backed web search tool.
func RegisterSearchTool(s *server.MCPServer) {
	tool := mcp.NewTool("web_search",
		mcp.WithDescription("Searches the web for information using Tavily. "+
			"Use this to gather facts before saving them to the knowledge graph. "+
			"Returns the top results with source URLs."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query"),
		),
	)
	s.AddTool(tool, util.ErrorGuard(webSearchHandler))
}

func webSearchHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := util.StringArg(request.Params.Arguments, "query")
	if query == "" {
		return mcp.NewToolResultError("query must be a non-empty string"), nil
	}

	apiKey := os.Getenv("TAVILY_API_KEY")
	if apiKey == "" {
		return mcp.NewToolResultError("TAVILY_API_KEY is not set"), nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"api_key":             apiKey,
		"query":               query,
		"search_depth":        "advanced",
		"max_results":         maxSearchResults,
		"include_raw_content": false,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode search request: %v", err)), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyEndpoint, bytes.NewReader(payload))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("build search request: %v", err)), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := services.DefaultHttpClient().Do(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read search response: %v", err)), nil
	}
	if resp.StatusCode != http.StatusOK {
		return mcp.NewToolResultError(fmt.Sprintf("search returned %s: %s", resp.Status, body)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- Search Results for %q ---\n", query)
	for _, result := range gjson.GetBytes(body, "results").Array() {
		content := result.Get("content").String()
		if len(content) > maxContentChars {
			content = content[:maxContentChars]
		}
		fmt.Fprintf(&sb, "Source: %s (%s)\n", result.Get("title").String(), result.Get("url").String())
		fmt.Fprintf(&sb, "Content: %s\n", content)
		sb.WriteString(strings.Repeat("-", 20) + "\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}
