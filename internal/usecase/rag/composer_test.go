package rag

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/librarian/internal/domain/book"
)

func TestComposeContext(t *testing.T) {
	docs := []book.Book{
		manga("1", "Pluto", "Naoki Urasawa", "Seinen", "Robots are being murdered."),
		manga("2", "", "", "", ""),
	}

	got := ComposeContext(docs)
	want := "Title: Pluto\nAuthor: Naoki Urasawa\nCategory: Seinen\nSummary: Robots are being murdered.\n---\n" +
		"Title: Unknown title\nAuthor: Unknown author\nCategory: N/A\nSummary: N/A\n---\n"
	if got != want {
		t.Errorf("ComposeContext() =\n%q\nwant\n%q", got, want)
	}
}

func TestComposeContext_Empty(t *testing.T) {
	if got := ComposeContext(nil); got != "" {
		t.Errorf("expected empty context, got %q", got)
	}
}

func TestComposeContext_KeepsInputOrder(t *testing.T) {
	docs := []book.Book{manga("b", "B", "x", "y", "z"), manga("a", "A", "x", "y", "z")}

	got := ComposeContext(docs)
	if strings.Index(got, "Title: B") > strings.Index(got, "Title: A") {
		t.Errorf("records out of input order:\n%s", got)
	}
	if strings.Count(got, RecordSeparator) != 2 {
		t.Errorf("expected a separator per record:\n%s", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	system, user := BuildPrompt("Robot stories?", "CTX", PromptOptions{})

	if !strings.HasPrefix(system, DefaultPersona) {
		t.Errorf("system should start with persona: %q", system)
	}
	if !strings.Contains(system, "Use only the information in the provided context") ||
		!strings.Contains(system, "say so clearly") {
		t.Errorf("system lacks grounding instruction: %q", system)
	}
	if strings.Contains(system, "Answer in") {
		t.Errorf("no language configured, got %q", system)
	}
	if user != "Context:\nCTX\n\nUser question:\nRobot stories?\n" {
		t.Errorf("unexpected user message: %q", user)
	}
}

func TestBuildPrompt_LanguageAndPersona(t *testing.T) {
	system, _ := BuildPrompt("q", "c", PromptOptions{Persona: "You are a manga expert.", Language: "French"})

	if !strings.HasPrefix(system, "You are a manga expert. ") {
		t.Errorf("custom persona not used: %q", system)
	}
	if !strings.HasSuffix(system, "Answer in French.") {
		t.Errorf("expected language instruction, got %q", system)
	}
}
