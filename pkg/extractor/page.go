package extractor

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// PageInfo holds the bits of a game page the importers care about
type PageInfo struct {
	Title       string
	OGImage     string
	Description string
	Iframes     []string // iframe src attributes in document order
	Links       []string // anchor hrefs in document order
}

// titleSuffix matches the " - Site Name" tail portals append to titles
var titleSuffix = regexp.MustCompile(`\s*[-–—|]\s+.*$`)

// ExtractPage parses an HTML document and collects its metadata
func ExtractPage(content []byte) (*PageInfo, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	info := &PageInfo{}
	walk(doc, info)
	return info, nil
}

// CleanTitle strips a trailing " - Portal" suffix from a page title
func CleanTitle(title string) string {
	title = strings.TrimSpace(title)
	cleaned := strings.TrimSpace(titleSuffix.ReplaceAllString(title, ""))
	if cleaned == "" {
		return title
	}
	return cleaned
}

func walk(n *html.Node, info *PageInfo) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if info.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				info.Title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		case "meta":
			property := strings.ToLower(attr(n, "property"))
			if property == "" {
				property = strings.ToLower(attr(n, "name"))
			}
			switch property {
			case "og:image":
				if info.OGImage == "" {
					info.OGImage = strings.TrimSpace(attr(n, "content"))
				}
			case "description", "og:description":
				if info.Description == "" {
					info.Description = strings.TrimSpace(attr(n, "content"))
				}
			}
		case "iframe":
			if src := strings.TrimSpace(attr(n, "src")); src != "" {
				info.Iframes = append(info.Iframes, src)
			}
		case "a":
			if href := strings.TrimSpace(attr(n, "href")); href != "" {
				info.Links = append(info.Links, href)
			}
		case "script", "style", "noscript":
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, info)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
