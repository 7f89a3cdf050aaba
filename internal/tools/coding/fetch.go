package coding

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/chibi-cli/chibi/internal/tools"
)

const fetchUserAgent = "chibi/1.0 (+https://github.com/chibi-cli/chibi)"

// FetchURL performs a GET against urlStr, capping the body at maxBytes and
// the whole call at timeout. Grounded on the teacher's WebFetchTool, adapted
// to read via io.LimitReader instead of io.ReadAll so an oversized response
// never buffers past maxBytes in memory.
func FetchURL(ctx context.Context, urlStr string, maxBytes int64, timeout time.Duration) *tools.Result {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("fetch_url: invalid URL: %v", err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return tools.ErrorResult("fetch_url: only http/https URLs are allowed")
	}
	if parsed.Host == "" {
		return tools.ErrorResult("fetch_url: missing domain in URL")
	}
	if maxBytes <= 0 {
		maxBytes = 200_000
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(runCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("fetch_url: %v", err))
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("fetch_url: %v", err))
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("fetch_url: reading body: %v", err))
	}

	truncated := int64(len(body)) > maxBytes
	if truncated {
		body = body[:maxBytes]
	}

	contentType := resp.Header.Get("Content-Type")
	text := string(body)
	if strings.Contains(contentType, "text/html") {
		text = stripHTML(text)
	}

	return tools.OK(fmt.Sprintf(
		"status=%d truncated=%v bytes=%d\n%s",
		resp.StatusCode, truncated, len(text), text,
	))
}

var (
	reScript = regexp.MustCompile(`(?is)<script.*?</script>`)
	reStyle  = regexp.MustCompile(`(?is)<style.*?</style>`)
	reTag    = regexp.MustCompile(`<[^>]+>`)
	reBlank  = regexp.MustCompile(`\n{3,}`)
)

func stripHTML(html string) string {
	out := reScript.ReplaceAllString(html, "")
	out = reStyle.ReplaceAllString(out, "")
	out = reTag.ReplaceAllString(out, "")
	out = reBlank.ReplaceAllString(out, "\n\n")

	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, "\n")
}
