// Package report renders crawl sessions, dedup plans and history.
//
// This package contains writers for different output formats:
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: Markdown for sharing, built with nao1215/markdown
//   - JSONWriter: structured JSON for tool integration
//
// Writers implement the Writer interface and can be combined with
// MultiWriter to print to the terminal and a file at once.
package report
