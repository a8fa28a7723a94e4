// Package rag turns retrieved documents into a grounded prompt and asks the language model for an answer.
package rag

import (
	"strings"

	"github.com/kailas-cloud/librarian/internal/domain/book"
)

// RecordSeparator terminates every document record in a context block.
const RecordSeparator = "---\n"

// DefaultPersona is the assistant persona used when none is configured.
const DefaultPersona = "You are an expert librarian specialised in manga, webtoons and books."

const groundingInstruction = "Use only the information in the provided context to answer. " +
	"If the answer is not in the context, say so clearly."

// ComposeContext renders docs in input order as a delimited block,
// with a separator after each record.
func ComposeContext(docs []book.Book) string {
	var sb strings.Builder
	for i := range docs {
		d := &docs[i]
		description := d.Description()
		if strings.TrimSpace(description) == "" {
			description = book.NotAvailable
		}
		sb.WriteString("Title: " + d.Title() + "\n")
		sb.WriteString("Author: " + d.Author() + "\n")
		sb.WriteString("Category: " + d.Category() + "\n")
		sb.WriteString("Summary: " + description + "\n")
		sb.WriteString(RecordSeparator)
	}
	return sb.String()
}

// PromptOptions customise the system message.
type PromptOptions struct {
	Persona  string
	Language string // empty leaves the answer language to the model
}

// BuildPrompt returns the system and user messages for a grounded completion.
func BuildPrompt(query, contextBlock string, opts PromptOptions) (system, user string) {
	persona := strings.TrimSpace(opts.Persona)
	if persona == "" {
		persona = DefaultPersona
	}

	system = persona + " " + groundingInstruction
	if lang := strings.TrimSpace(opts.Language); lang != "" {
		system += " Answer in " + lang + "."
	}

	user = "Context:\n" + contextBlock + "\n\nUser question:\n" + query + "\n"
	return system, user
}
