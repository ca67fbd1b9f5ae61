package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSummarizeIdentityWhenWithinTarget(t *testing.T) {
	text := "Short content that already fits."
	require.Equal(t, text, Summarize(text, 1000))
}

func TestSummarizeNeverExceedsTarget(t *testing.T) {
	paragraphs := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		paragraphs = append(paragraphs, fmt.Sprintf(
			"Paragraph %d covers a distinct topic. It has several sentences. Each one adds a little more detail about the subject matter at hand.", i))
	}
	text := strings.Join(paragraphs, "\n\n")

	for _, target := range []int{5000, 2000, 500, 100, 60} {
		result := Summarize(text, target)
		require.LessOrEqual(t, len(result), target, "target %d", target)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	got := collapseWhitespace("line one\n\n\n\n\nline two\t\t  with   gaps", 0)
	require.Equal(t, "line one\n\nline two with gaps", got)
}

func TestStripBoilerplate(t *testing.T) {
	text := strings.Join([]string{
		"Real content stays.",
		"Copyright 2024 Acme Corp. All rights reserved.",
		"Page 3 of 12",
		"Table of Contents",
		"Visit https://example.com/guide or mail help@example.com for info.",
	}, "\n")

	got := stripBoilerplate(text, 0)
	require.Contains(t, got, "Real content stays.")
	require.NotContains(t, got, "All rights reserved")
	require.NotContains(t, got, "Page 3")
	require.NotContains(t, got, "Table of Contents")
	require.NotContains(t, got, "https://example.com")
	require.NotContains(t, got, "help@example.com")
	require.Contains(t, got, "for info.")
}

func TestDedupeParagraphs(t *testing.T) {
	text := strings.Join([]string{
		"Budgets are financial plans for a period.",
		"Something else entirely.",
		// Same paragraph up to case, digits and punctuation.
		"Budgets are financial plans, for a period!!! (2024)",
	}, "\n\n")

	got := dedupeParagraphs(text, 0)
	require.Equal(t, "Budgets are financial plans for a period.\n\nSomething else entirely.", got)
}

func TestDedupeKeepsTinyParagraphs(t *testing.T) {
	text := "---\n\ncontent here\n\n---"
	require.Equal(t, text, dedupeParagraphs(text, 0))
}

func TestTrimTrailingSections(t *testing.T) {
	text := strings.Join([]string{
		"Main body paragraph one.",
		"Main body paragraph two.",
		"Main body paragraph three.",
		"References",
		"Smith, J. (2019). A long bibliography entry.",
	}, "\n\n")

	got := trimTrailingSections(text, 0)
	require.NotContains(t, got, "bibliography entry")
	require.Contains(t, got, "paragraph three")
	require.True(t, strings.HasSuffix(got, supplementaryNotice))
}

func TestTrimTrailingSectionsIgnoresEarlyMention(t *testing.T) {
	// An appendix heading in the first half is left alone.
	text := strings.Join([]string{
		"Appendix overview comes first here.",
		"Body one.",
		"Body two.",
		"Body three.",
	}, "\n\n")
	require.Equal(t, text, trimTrailingSections(text, 0))
}

func TestReplacePedagogicalBlocks(t *testing.T) {
	text := strings.Join([]string{
		"Activity 3: Build a monthly budget using the template and discuss results with your group for twenty minutes.",
		"Learning objectives: understand budgeting, explain variance, present a forecast.",
		"Materials needed: flip chart, markers, handouts.",
		"A normal paragraph survives untouched.",
	}, "\n\n")

	got := replacePedagogicalBlocks(text, 0)
	require.Contains(t, got, "Activity 3: [activity details omitted]")
	require.Contains(t, got, "[Learning objectives omitted]")
	require.Contains(t, got, "[Materials list omitted]")
	require.Contains(t, got, "A normal paragraph survives untouched.")
	require.NotContains(t, got, "flip chart")
}

func TestStructuralReductionKeepsEdgesAndHeaders(t *testing.T) {
	paragraphs := make([]string, 0, 30)
	paragraphs = append(paragraphs, "Opening paragraph with the introduction to the material.")
	for i := 0; i < 28; i++ {
		if i == 14 {
			paragraphs = append(paragraphs, "CORE PRINCIPLES")
		}
		paragraphs = append(paragraphs, fmt.Sprintf(
			"Filler paragraph %d with a fair amount of explanatory prose that repeats the same kind of detail over and over again.", i))
	}
	paragraphs = append(paragraphs, "Closing paragraph with the wrap-up of the material.")
	text := strings.Join(paragraphs, "\n\n")

	got := structuralReduction(text, len(text)/3)
	require.Less(t, len(got), len(text))
	require.Contains(t, got, "Opening paragraph")
	require.Contains(t, got, "Closing paragraph")
	require.Contains(t, got, "CORE PRINCIPLES")
	require.Contains(t, got, summarizedMarker)
}

func TestHardTruncateEndsWithNotice(t *testing.T) {
	text := strings.Repeat("Sentences pile up here. ", 100)
	target := 300

	got := hardTruncate(text, target)
	require.LessOrEqual(t, len(got), target)
	require.True(t, strings.HasSuffix(got, truncationNotice))

	// The cut lands on a sentence boundary when one is close enough.
	body := strings.TrimSuffix(got, truncationNotice)
	require.True(t, strings.HasSuffix(body, "."))
}

func TestHardTruncateTinyTarget(t *testing.T) {
	// Target smaller than the notice itself: plain cut, still bounded.
	got := hardTruncate("abcdefghij", 5)
	require.Equal(t, "abcde", got)
}

func TestLastSentenceBoundary(t *testing.T) {
	paragraph := "First sentence. Second sentence. Third"
	require.Equal(t, "First sentence. Second sentence.", lastSentenceBoundary(paragraph, 35))
	require.Equal(t, paragraph, lastSentenceBoundary(paragraph, 100))
}
