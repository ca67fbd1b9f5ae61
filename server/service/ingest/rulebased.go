package ingest

import (
	"crypto/md5"
	"regexp"
	"strings"
)

// Rule-based summarizer. Deterministic fallback when the LLM summary is
// unavailable or still over budget. Stages run in order and stop as soon
// as the text fits the target; only the final hard truncation guarantees
// the bound.

const (
	truncationNotice    = "\n\n[Content truncated to fit within character limit]"
	supplementaryNotice = "[Content truncated: supplementary sections removed]"
	summarizedMarker    = "[...content summarized...]"

	// structuralReductionRatio triggers stage 6 only for texts well over
	// target, where paragraph trimming alone cannot close the gap.
	structuralReductionRatio = 1.5

	// minParagraphTarget floors per-paragraph truncation.
	minParagraphTarget = 50
)

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	multiSpace   = regexp.MustCompile(`[ \t]{2,}`)

	// Boilerplate line families stripped in stage 2.
	boilerplatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^.*\b(confidential|proprietary|all rights reserved|copyright|©)\b.*$`),
		regexp.MustCompile(`(?i)^\s*table of contents\s*$`),
		regexp.MustCompile(`(?i)^\s*(page|slide)\s+\d+(\s+of\s+\d+)?\s*$`),
		regexp.MustCompile(`(?i)^.*\b(disclaimer|terms of use|legal notice)\b.*$`),
		regexp.MustCompile(`(?i)^\s*(facilitator|trainer|instructor)\s+(note|instruction)s?\b.*$`),
		regexp.MustCompile(`^\s*\d+\.\d+(\.\d+)+\s*$`),
		regexp.MustCompile(`(?i)^\s*(header|footer)\s*[:|-].*$`),
	}

	// Inline noise removed within lines.
	inlinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`https?://\S+`),
		regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.]+\b`),
		regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`),
	}

	trailingSectionPattern = regexp.MustCompile(`(?i)^\s*(appendix|references|bibliography|notes|footnotes|attachment|exhibit)\b`)

	activityPattern  = regexp.MustCompile(`(?i)^(activity|exercise)\s+\d+\s*:`)
	objectivePattern = regexp.MustCompile(`(?i)^\s*(learning\s+)?objectives?\s*:`)
	materialsPattern = regexp.MustCompile(`(?i)^\s*materials?(\s+needed)?\s*:`)

	keyConceptPattern = regexp.MustCompile(`(?i)\b(key point|important|essential|concept|principle|definition|remember|critical)\b`)

	sentenceEnd = regexp.MustCompile(`[.!?]["')\]]?\s`)
)

// Summarize shrinks text toward target deterministically. The result is
// always at most target characters.
func Summarize(text string, target int) string {
	if target < 1 {
		target = 1
	}
	if len(text) <= target {
		return text
	}

	stages := []func(string, int) string{
		collapseWhitespace,
		stripBoilerplate,
		dedupeParagraphs,
		trimTrailingSections,
		replacePedagogicalBlocks,
		structuralReduction,
		proportionalTruncation,
	}
	for _, stage := range stages {
		text = stage(text, target)
		if len(text) <= target {
			return text
		}
	}
	return hardTruncate(text, target)
}

// Stage 1: collapse runs of blank lines and horizontal whitespace.
func collapseWhitespace(text string, _ int) string {
	text = multiNewline.ReplaceAllString(text, "\n\n")
	text = multiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Stage 2: drop boilerplate lines and strip inline URLs/emails/phones.
func stripBoilerplate(text string, _ int) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
lineLoop:
	for _, line := range lines {
		for _, pattern := range boilerplatePatterns {
			if pattern.MatchString(line) {
				continue lineLoop
			}
		}
		for _, pattern := range inlinePatterns {
			line = pattern.ReplaceAllString(line, "")
		}
		kept = append(kept, line)
	}
	return collapseWhitespace(strings.Join(kept, "\n"), 0)
}

// Stage 3: remove duplicate paragraphs by a digit/punctuation-stripped
// fingerprint. Paragraphs under 5 chars are never treated as duplicates.
func dedupeParagraphs(text string, _ int) string {
	paragraphs := splitParagraphs(text)
	seen := make(map[[16]byte]bool, len(paragraphs))
	kept := make([]string, 0, len(paragraphs))
	for _, paragraph := range paragraphs {
		if len(paragraph) < 5 {
			kept = append(kept, paragraph)
			continue
		}
		fingerprint := md5.Sum([]byte(normalizeForDedupe(paragraph)))
		if seen[fingerprint] {
			continue
		}
		seen[fingerprint] = true
		kept = append(kept, paragraph)
	}
	return joinParagraphs(kept)
}

func normalizeForDedupe(paragraph string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(paragraph) {
		if r >= 'a' && r <= 'z' || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Stage 4: cut trailing supplementary sections (appendices, references and
// the like) found in the latter half of the document.
func trimTrailingSections(text string, _ int) string {
	paragraphs := splitParagraphs(text)
	cut := -1
	for i := len(paragraphs) / 2; i < len(paragraphs); i++ {
		if trailingSectionPattern.MatchString(paragraphs[i]) {
			cut = i
			break
		}
	}
	if cut < 0 {
		return text
	}
	kept := append(paragraphs[:cut:cut], supplementaryNotice)
	return joinParagraphs(kept)
}

// Stage 5: replace repetitive pedagogical blocks with short placeholders.
func replacePedagogicalBlocks(text string, _ int) string {
	paragraphs := splitParagraphs(text)
	for i, paragraph := range paragraphs {
		switch {
		case activityPattern.MatchString(paragraph):
			heading := paragraph
			if idx := strings.Index(paragraph, ":"); idx >= 0 {
				heading = paragraph[:idx+1]
			}
			paragraphs[i] = heading + " [activity details omitted]"
		case objectivePattern.MatchString(paragraph):
			paragraphs[i] = "[Learning objectives omitted]"
		case materialsPattern.MatchString(paragraph):
			paragraphs[i] = "[Materials list omitted]"
		}
	}
	return joinParagraphs(paragraphs)
}

func isHeaderLike(paragraph string) bool {
	if len(paragraph) >= 50 || strings.Contains(paragraph, "\n") {
		return false
	}
	if paragraph == strings.ToUpper(paragraph) && strings.ContainsAny(paragraph, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		return true
	}
	words := strings.Fields(paragraph)
	if len(words) == 0 {
		return false
	}
	titleCased := 0
	for _, word := range words {
		if word[0] >= 'A' && word[0] <= 'Z' {
			titleCased++
		}
	}
	return titleCased*2 > len(words)
}

// Stage 6: structural reduction for texts far over target. Keeps the first
// and last 10% of paragraphs intact; from the middle keeps headers and
// key-concept paragraphs, then evenly-spaced filler up to the target.
func structuralReduction(text string, target int) string {
	if float64(len(text)) <= structuralReductionRatio*float64(target) {
		return text
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) < 10 {
		return text
	}

	edge := len(paragraphs) / 10
	if edge < 1 {
		edge = 1
	}
	head, middle, tail := paragraphs[:edge], paragraphs[edge:len(paragraphs)-edge], paragraphs[len(paragraphs)-edge:]

	keep := make(map[int]bool, len(middle))
	size := 0
	for _, paragraph := range head {
		size += len(paragraph) + 2
	}
	for _, paragraph := range tail {
		size += len(paragraph) + 2
	}
	for i, paragraph := range middle {
		if isHeaderLike(paragraph) || keyConceptPattern.MatchString(paragraph) {
			keep[i] = true
			size += len(paragraph) + 2
		}
	}

	// Fill remaining budget with evenly-spaced middle paragraphs.
	for step := len(middle) / 4; step >= 1 && size < target; step /= 2 {
		for i := 0; i < len(middle) && size < target; i += step {
			if keep[i] {
				continue
			}
			if size+len(middle[i])+2 > target {
				continue
			}
			keep[i] = true
			size += len(middle[i]) + 2
		}
	}

	kept := make([]string, 0, len(paragraphs))
	kept = append(kept, head...)
	gap := false
	for i, paragraph := range middle {
		if keep[i] {
			if gap {
				kept = append(kept, summarizedMarker)
				gap = false
			}
			kept = append(kept, paragraph)
		} else {
			gap = true
		}
	}
	if gap {
		kept = append(kept, summarizedMarker)
	}
	kept = append(kept, tail...)
	return joinParagraphs(kept)
}

// Stage 7: trim each middle paragraph to a proportional share of the
// target, cutting at the last complete sentence that fits.
func proportionalTruncation(text string, target int) string {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) < 3 {
		return text
	}

	total := len(text)
	trimmed := 0
	out := make([]string, 0, len(paragraphs))
	out = append(out, paragraphs[0])
	for _, paragraph := range paragraphs[1 : len(paragraphs)-1] {
		paragraphTarget := len(paragraph) * target / total * 9 / 10
		if paragraphTarget < minParagraphTarget {
			paragraphTarget = minParagraphTarget
		}
		if len(paragraph) <= paragraphTarget {
			out = append(out, paragraph)
			continue
		}
		cut := lastSentenceBoundary(paragraph, paragraphTarget)
		trimmed++
		if trimmed%3 == 0 {
			cut += " [...]"
		}
		out = append(out, cut)
	}
	last := paragraphs[len(paragraphs)-1]
	candidate := joinParagraphs(append(out[:len(out):len(out)], last))
	if len(candidate) <= target {
		return candidate
	}
	return joinParagraphs(out)
}

// Stage 8: hard truncation with a visible notice. Prefers cutting at a
// sentence boundary in the trailing 30% of the allowance.
func hardTruncate(text string, target int) string {
	limit := target - len(truncationNotice)
	if limit < 1 {
		if len(text) > target {
			return text[:target]
		}
		return text
	}
	if len(text) <= limit {
		return text + truncationNotice
	}

	cut := text[:limit]
	if idx := lastSentenceEnd(cut); idx > limit*7/10 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " \n") + truncationNotice
}

// lastSentenceBoundary returns the prefix of paragraph ending at the last
// sentence boundary within max chars, or a plain cut when none exists.
func lastSentenceBoundary(paragraph string, max int) string {
	if max >= len(paragraph) {
		return paragraph
	}
	prefix := paragraph[:max]
	if idx := lastSentenceEnd(prefix); idx > 0 {
		return strings.TrimSpace(prefix[:idx])
	}
	return strings.TrimSpace(prefix)
}

// lastSentenceEnd returns the index just past the final sentence-ending
// punctuation in s, or -1.
func lastSentenceEnd(s string) int {
	locs := sentenceEnd.FindAllStringIndex(s+" ", -1)
	if len(locs) == 0 {
		return -1
	}
	last := locs[len(locs)-1]
	end := last[1] - 1
	if end > len(s) {
		end = len(s)
	}
	return end
}

func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	paragraphs := make([]string, 0, len(raw))
	for _, paragraph := range raw {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph != "" {
			paragraphs = append(paragraphs, paragraph)
		}
	}
	return paragraphs
}

func joinParagraphs(paragraphs []string) string {
	return strings.Join(paragraphs, "\n\n")
}
