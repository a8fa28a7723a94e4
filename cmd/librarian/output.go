package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kailas-cloud/librarian/internal/domain/search/result"
)

// Constants for human-readable output.
const (
	summaryWrapWidth = 72
	summaryMaxLen    = 280
)

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BookResult is a ranked document in search and ask output.
type BookResult struct {
	Rank        int      `json:"rank"`
	ID          string   `json:"id"`
	Score       float64  `json:"score"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Category    string   `json:"category"`
	Year        *int     `json:"year,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	Description string   `json:"description,omitempty"`
}

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(err error) {
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	} else {
		_ = outputJSON(ErrorResponse{Error: err.Error()})
	}
	os.Exit(1)
}

func bookResults(rs []result.Ranked) []BookResult {
	out := make([]BookResult, len(rs))
	for i := range rs {
		b := rs[i].Book()
		br := BookResult{
			Rank:        i + 1,
			ID:          rs[i].ID(),
			Score:       rs[i].Score(),
			Title:       b.Title(),
			Author:      b.Author(),
			Category:    b.Category(),
			Description: b.Description(),
		}
		if y, ok := b.Year(); ok {
			br.Year = &y
		}
		if v, ok := b.Rating(); ok {
			br.Rating = &v
		}
		out[i] = br
	}
	return out
}

// printBooksHuman prints ranked books one block per result.
func printBooksHuman(w io.Writer, books []BookResult) {
	for _, b := range books {
		fmt.Fprintf(w, "%d. [%.3f] %s\n", b.Rank, b.Score, b.Title)
		fmt.Fprintf(w, "   %s | %s", b.Author, b.Category)
		if b.Year != nil {
			fmt.Fprintf(w, " | %d", *b.Year)
		}
		if b.Rating != nil {
			fmt.Fprintf(w, " | %.1f", *b.Rating)
		}
		fmt.Fprintln(w)
		if b.Description != "" {
			for _, line := range wrapText(truncateString(b.Description, summaryMaxLen), summaryWrapWidth) {
				fmt.Fprintf(w, "   %s\n", line)
			}
		}
		fmt.Fprintln(w)
	}
}

// truncateString shortens s to at most maxLen runes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= maxLen {
		return string(r)
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// wrapText breaks text into lines no longer than width, splitting on spaces.
func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	return append(lines, line)
}
