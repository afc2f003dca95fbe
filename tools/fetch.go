package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/athapong/kgraph-mcp/services"
	"github.com/athapong/kgraph-mcp/util"
)

// maxFetchBytes caps how much of a response body is read; pages larger than
// this are truncated rather than rejected.
const maxFetchBytes = 2 << 20

// RegisterFetchTool registers the web content fetching tool.
func RegisterFetchTool(s *server.MCPServer) {
	tool := mcp.NewTool("get_web_content",
		mcp.WithDescription("Fetches content from a given HTTP/HTTPS URL. "+
			"HTML pages are converted to Markdown; other text content is returned as-is."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The complete HTTP/HTTPS URL to fetch content from (e.g., https://example.com)"),
		),
	)
	s.AddTool(tool, util.ErrorGuard(fetchHandler))
}

func fetchHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := util.StringArg(request.Params.Arguments, "url")
	if url == "" {
		return mcp.NewToolResultError("url must be a non-empty string"), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid URL: %v", err)), nil
	}

	resp, err := services.DefaultHttpClient().Do(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch URL: %v", err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read response body: %v", err)), nil
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") {
		mdContent, err := htmltomarkdown.ConvertString(string(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to convert HTML to Markdown: %v", err)), nil
		}
		return mcp.NewToolResultText(mdContent), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}
