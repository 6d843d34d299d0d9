// Package segment splits captions into ordered sentence units.
//
// Source captions are split after every period; translated (target) captions
// are split on the reserved "/" separator that the translation prompts ask the
// model to emit between sentences.
package segment

import (
	"regexp"
	"strings"
)

// Side selects the segmentation rule for a caption.
type Side int

const (
	// Source is the caption as written for training (sentences end with '.').
	Source Side = iota
	// Target is the translated caption (sentences separated by '/').
	Target
)

const (
	// TargetSeparator is the reserved sentence separator of translated captions.
	TargetSeparator = "/"
	// TargetJoiner is used when flattening target sentences.
	TargetJoiner = " / "
	// SourceJoiner is used when flattening source sentences.
	SourceJoiner = " "
)

var separatorRe = regexp.MustCompile(`\s*/\s*`)

func (s Side) String() string {
	if s == Target {
		return "target"
	}
	return "source"
}

// Split segments text into trimmed, non-empty sentences for the given side.
// A sentence that itself contains the raw separator is split as well.
func Split(text string, side Side) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if side == Target {
		return splitTarget(text)
	}
	return splitSource(text)
}

// Join flattens sentences back into a caption string for the given side.
func Join(units []string, side Side) string {
	joiner := SourceJoiner
	if side == Target {
		joiner = TargetJoiner
	}
	parts := make([]string, 0, len(units))
	for _, u := range units {
		if u = strings.TrimSpace(u); u != "" {
			parts = append(parts, u)
		}
	}
	return strings.Join(parts, joiner)
}

// StripSeparators removes target separators a translation engine echoed back
// into a source-language sentence.
func StripSeparators(s string) string {
	s = separatorRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, TargetSeparator)
	return strings.TrimSpace(s)
}

func splitTarget(text string) []string {
	var out []string
	for _, part := range strings.Split(text, TargetSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitSource cuts after each '.', keeping the period with its sentence.
func splitSource(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '.' {
			continue
		}
		if part := strings.TrimSpace(text[start : i+1]); part != "" {
			out = append(out, part)
		}
		start = i + 1
	}
	if part := strings.TrimSpace(text[start:]); part != "" {
		out = append(out, part)
	}
	return out
}
