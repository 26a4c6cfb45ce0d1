package webfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/kirillkom/chat-rag/internal/core/ports"
	"github.com/kirillkom/chat-rag/internal/infrastructure/resilience"
)

const defaultMaxBodyBytes = 2 << 20

// Fetcher retrieves a web page and reduces it to readable text. It backs
// the corrective pipeline's external fallback source.
type Fetcher struct {
	httpClient   *http.Client
	userAgent    string
	maxBodyBytes int64
	executor     *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	UserAgent          string
	MaxBodyBytes       int64
	ResilienceExecutor *resilience.Executor
}

func New(opts Options) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "chat-rag/1.0"
	}
	return &Fetcher{
		httpClient:   &http.Client{Timeout: timeout},
		userAgent:    userAgent,
		maxBodyBytes: maxBody,
		executor:     opts.ResilienceExecutor,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (ports.WebPage, error) {
	if f.executor == nil {
		return f.fetch(ctx, url)
	}

	var page ports.WebPage
	err := f.executor.Execute(ctx, "web_fetch", func(ctx context.Context) error {
		var callErr error
		page, callErr = f.fetch(ctx, url)
		return callErr
	}, classifyFetchError)
	if err != nil {
		return ports.WebPage{}, err
	}
	return page, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) (ports.WebPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ports.WebPage{}, fmt.Errorf("create fetch request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return ports.WebPage{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return ports.WebPage{}, &statusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	root, err := html.Parse(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return ports.WebPage{}, fmt.Errorf("parse %s: %w", url, err)
	}

	page := ports.WebPage{
		Title: pageTitle(root),
		Text:  pageText(root),
	}
	return page, nil
}

func pageTitle(root *html.Node) string {
	var title string
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			title = strings.TrimSpace(textContent(n))
			return false
		}
		return true
	})
	return title
}

// pageText collects visible text, one line per block element, with
// script/style/head subtrees dropped.
func pageText(root *html.Node) string {
	var lines []string
	var current strings.Builder

	flush := func() {
		if line := strings.TrimSpace(current.String()); line != "" {
			lines = append(lines, collapseSpaces(line))
		}
		current.Reset()
	}

	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skippedElement(n.Data) {
				return
			}
			if blockElement(n.Data) {
				flush()
			}
		case html.TextNode:
			current.WriteString(n.Data)
			current.WriteString(" ")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
		if n.Type == html.ElementNode && blockElement(n.Data) {
			flush()
		}
	}
	visit(root)
	flush()

	return strings.Join(lines, "\n")
}

func skippedElement(name string) bool {
	switch name {
	case "script", "style", "noscript", "head", "svg", "iframe", "nav":
		return true
	default:
		return false
	}
}

func blockElement(name string) bool {
	switch name {
	case "p", "div", "br", "hr", "h1", "h2", "h3", "h4", "h5", "h6",
		"li", "tr", "blockquote", "pre", "table", "section", "article":
		return true
	default:
		return false
	}
}

func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if !walk(child, fn) {
			return false
		}
	}
	return true
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			sb.WriteString(child.Data)
		}
	}
	return sb.String()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
