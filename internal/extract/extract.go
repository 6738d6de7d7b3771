// Package extract reduces fetched documents to the comment text civil
// classifies. HTML is detected by content sniffing; plain text passes
// through unchanged.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-shiori/go-readability"
)

// ErrUnsupportedContent is returned for content that is neither HTML nor text.
var ErrUnsupportedContent = errors.New("unsupported content type")

// Options controls extraction.
type Options struct {
	// Selector limits HTML extraction to matching elements. Empty selects the
	// main content via readability.
	Selector string
	// BaseURL gives readability context for relative links (may be nil).
	BaseURL *url.URL
}

// ToText returns the readable text of content.
//
// Parameters:
//   - content: raw document bytes (HTML or plain text)
//   - opts: CSS selector and base URL for HTML documents
//
// Returns:
//   - string: extracted text; plain text is returned as is
//   - error: ErrUnsupportedContent for binary input, or an extraction failure
func ToText(content io.Reader, opts Options) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}

	mtype := mimetype.Detect(data)
	slog.Debug("Content sniffed", "mime", mtype.String(), "bytes", len(data))

	switch {
	case isHTML(mtype):
		if opts.Selector != "" {
			return extractWithSelector(data, opts.Selector)
		}
		return extractMainContent(data, opts.BaseURL)
	case isText(mtype):
		if opts.Selector != "" {
			slog.Debug("Selector ignored for plain text input", "selector", opts.Selector)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContent, mtype.String())
	}
}

func isHTML(m *mimetype.MIME) bool {
	return m.Is("text/html") || m.Is("application/xhtml+xml")
}

// isText reports whether m is text/plain or one of its descendants (csv, json, ...)
func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// extractMainContent uses go-readability to find the main article content
func extractMainContent(data []byte, baseURL *url.URL) (string, error) {
	if baseURL == nil {
		baseURL = &url.URL{}
	}

	article, err := readability.FromReader(bytes.NewReader(data), baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract main content: %w", err)
	}
	if strings.TrimSpace(article.Content) == "" {
		// short fragments may not look like an article; fall back to the whole page
		return htmlToText(string(data))
	}
	return htmlToText(article.Content)
}

// extractWithSelector keeps only elements matching selector
func extractWithSelector(data []byte, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	selection := doc.Find(selector)
	if selection.Length() == 0 {
		return "", fmt.Errorf("no elements found matching selector: %s", selector)
	}

	// each match becomes its own paragraph so separate comments stay apart
	var parts []string
	var convErr error
	selection.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		html, err := goquery.OuterHtml(s)
		if err != nil {
			return true
		}
		text, err := htmlToText(html)
		if err != nil {
			convErr = err
			return false
		}
		if text != "" {
			parts = append(parts, text)
		}
		return true
	})
	if convErr != nil {
		return "", convErr
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("failed to extract HTML from selection")
	}

	slog.Debug("Selector matched", "selector", selector, "elements", selection.Length(), "kept", len(parts))
	return strings.Join(parts, "\n\n"), nil
}

// htmlToText renders HTML as markdown-flavored text, keeping link and image
// text but dropping URLs that would otherwise leak into the vocabulary
func htmlToText(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.AddRules(
		md.Rule{
			Filter: []string{"a"},
			Replacement: func(content string, _ *goquery.Selection, _ *md.Options) *string {
				return md.String(content)
			},
		},
		md.Rule{
			Filter: []string{"img"},
			Replacement: func(_ string, s *goquery.Selection, _ *md.Options) *string {
				alt, _ := s.Attr("alt")
				return md.String(alt)
			},
		},
		md.Rule{
			Filter: []string{"script", "style", "noscript"},
			Replacement: func(_ string, _ *goquery.Selection, _ *md.Options) *string {
				return md.String("")
			},
		},
	)

	text, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to text: %w", err)
	}

	text = strings.TrimSpace(text)
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return text, nil
}
