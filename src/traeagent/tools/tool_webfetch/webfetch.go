package tool_webfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/traeagent/toolsutil"
)

// Tool name constant
const Name = "web_fetch"

const (
	defaultTimeout = 30 * time.Second
	maxTimeout     = 120 * time.Second
	maxBodySize    = 5 << 20
	// maxOutput bounds what is returned to the model.
	maxOutput = 64 << 10
)

const webFetchPrompt = `Fetch a URL over HTTP(S) and return its content.
* format "markdown" converts HTML pages to markdown, "text" strips tags, "html" returns the raw body.
* Non-HTML bodies are returned as they are.
* Bodies are read up to 5MB and the result is truncated to 64KB.
* Use it to read documentation or issue pages referenced by the task.`

// WebFetchInput represents the parameters for web_fetch
type WebFetchInput struct {
	URL     string `json:"url" required:"true" description:"The http or https URL to fetch"`
	Format  string `json:"format,omitempty" enum:"markdown,text,html" description:"Output format, markdown by default"`
	Timeout int    `json:"timeout,omitempty" description:"Timeout in seconds (default 30, max 120)"`
}

// Tool returns the web_fetch tool. A nil client uses http.DefaultClient's
// transport.
func Tool(client *http.Client) (agent.Tool, error) {
	if client == nil {
		client = &http.Client{}
	}
	return agent.NewGenericTool(Name, webFetchPrompt, makeWebFetchHandler(client),
		agent.WithDescriber(func(in WebFetchInput) string { return "fetch " + in.URL }),
	)
}

func makeWebFetchHandler(client *http.Client) agent.GenericToolHandler[WebFetchInput] {
	return func(ctx context.Context, input WebFetchInput) (string, error) {
		logger := toolsutil.GetLogger()
		if err := toolsutil.CheckCancelled(ctx); err != nil {
			return "", err
		}
		if !strings.HasPrefix(input.URL, "http://") && !strings.HasPrefix(input.URL, "https://") {
			return "", errors.New("URL must start with http:// or https://")
		}
		format := strings.ToLower(input.Format)
		if format == "" {
			format = "markdown"
		}
		if format != "markdown" && format != "text" && format != "html" {
			return "", fmt.Errorf("format must be one of: markdown, text, html")
		}
		timeout := defaultTimeout
		if input.Timeout > 0 {
			timeout = min(time.Duration(input.Timeout)*time.Second, maxTimeout)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", "gotrae/1.0")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("failed to fetch URL: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("request failed with status code: %d", resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return "", fmt.Errorf("failed to read response: %w", err)
		}

		content := string(body)
		if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
			switch format {
			case "text":
				content, err = htmlToText(content)
			case "markdown":
				content, err = htmlToMarkdown(content)
			}
			if err != nil {
				logger.Warn("failed to convert html, returning raw body", "url", input.URL, "error", err)
				content = string(body)
			}
		}

		logger.Info("fetched url", "url", input.URL, "status", resp.StatusCode, "bytes", len(body), "format", format)
		return toolsutil.Truncate(content, maxOutput), nil
	}
}

// htmlToText returns the visible text of a page, one non-empty line each.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func htmlToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	out, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	out = strings.TrimSpace(out)
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return out, nil
}
