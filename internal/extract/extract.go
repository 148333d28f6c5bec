// Package extract turns HTML documents into normalized plain text.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NonContentSelector lists the elements removed before text extraction.
const NonContentSelector = "script, style, header, footer, nav, noscript"

// Text parses an HTML document, removes non-content elements and returns the
// whitespace-normalized text.
func Text(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return SelectionText(doc.Selection), nil
}

// SelectionText strips non-content elements from sel in place and returns the
// normalized text of what remains.
func SelectionText(sel *goquery.Selection) string {
	sel.Find(NonContentSelector).Remove()
	return Normalize(sel.Text())
}

// Normalize trims every line, drops blank ones and joins the rest with "\n".
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
