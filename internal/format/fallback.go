package format

import (
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Fallback degrades a failed formatting pass to something deliverable:
// the raw response as a single segment. For the web channel, HTML the
// model may have produced is converted to Markdown first so browsers and
// plain-text clients both render something readable.
func Fallback(text string, channel Channel) []string {
	if channel == ChannelWeb {
		if md, err := htmltomarkdown.ConvertString(text); err == nil && md != "" {
			return []string{md}
		}
	}
	return []string{text}
}
