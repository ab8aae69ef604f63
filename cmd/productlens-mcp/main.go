package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/productlens/models"
)

func main() {
	apiURL := os.Getenv("PRODUCTLENS_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PRODUCTLENS_API_KEY")

	s := server.NewMCPServer(
		"productlens",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	crawlTool := mcp.NewTool("crawl_product_page",
		mcp.WithDescription("Extract a product page: detected language, normalized category, title, description and the validated product images."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The absolute http(s) URL of the product page"),
		),
		mcp.WithBoolean("include_images",
			mcp.Description("Attach the validated image payloads to the result (default: true)"),
		),
	)
	s.AddTool(crawlTool, handleCrawlProductPage(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the productlens API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(apiURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func handleCrawlProductPage(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		includeImages := request.GetBool("include_images", true)

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/crawl", models.CrawlRequest{URL: url})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("crawl request failed: %v", err)), nil
		}

		var resp models.CrawlResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		// NO_IMAGES_FOUND still carries language and category.
		if !resp.Success && resp.Result == nil {
			errMsg := "crawl failed"
			if resp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return buildToolResult(resp, includeImages), nil
	}
}

// buildToolResult renders a summary text block followed by one image block
// per validated image.
func buildToolResult(resp models.CrawlResponse, includeImages bool) *mcp.CallToolResult {
	r := resp.Result

	var sb strings.Builder
	fmt.Fprintf(&sb, "URL: %s\n", r.URL)
	if r.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", r.Title)
	}
	fmt.Fprintf(&sb, "Language: %s\n", r.Language)
	category := r.Category
	if category == "" {
		category = "(undetermined)"
	}
	fmt.Fprintf(&sb, "Category: %s\n", category)
	if r.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", r.Description)
	}
	fmt.Fprintf(&sb, "Source: %s\n", r.Source)
	if resp.Error != nil {
		fmt.Fprintf(&sb, "Warning: [%s] %s\n", resp.Error.Code, resp.Error.Message)
	}
	fmt.Fprintf(&sb, "\nImages (%d):\n", len(r.Images))
	for i, img := range r.Images {
		fmt.Fprintf(&sb, "  %d. %s (%s, %dx%d)\n", i+1, img.SourceURL, img.MediaType, img.Width, img.Height)
	}
	if r.Markdown != "" {
		sb.WriteString("\n---\n")
		sb.WriteString(r.Markdown)
	}

	content := []mcp.Content{mcp.NewTextContent(sb.String())}
	if includeImages {
		for _, img := range r.Images {
			if len(img.Payload) == 0 {
				continue
			}
			content = append(content, mcp.NewImageContent(base64.StdEncoding.EncodeToString(img.Payload), img.MediaType))
		}
	}
	return &mcp.CallToolResult{Content: content}
}
