package loader

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	slashTaskComment = regexp.MustCompile(`(?m)//\s*(TODO|FIXME|HACK).*$`)
	hashTaskComment  = regexp.MustCompile(`(?m)#\s*(TODO|FIXME|HACK).*$`)
	blockComment     = regexp.MustCompile(`(?s)/\*.*?\*/`)
	brokenWord       = regexp.MustCompile(`([a-zA-Z])-?\n([a-zA-Z])`)
	hyphenBreak      = regexp.MustCompile(`(\w+)-\s*\n(\w+)`)
	kgUnit           = regexp.MustCompile(`(?i)\bkg\b`)
	tonUnit          = regexp.MustCompile(`(?i)\bton\b`)
)

// termReplacements standardizes domain terminology. Ordered so compound
// terms are covered by their stem.
var termReplacements = [][2]string{
	{"仓库", "仓储"},
}

// Cleaner normalizes loaded text: strips task-marker comments from code,
// repairs words broken across lines, standardizes terminology and units,
// and applies NFKC Unicode normalization.
type Cleaner struct{}

// NewCleaner creates a Cleaner.
func NewCleaner() *Cleaner {
	return &Cleaner{}
}

// Clean normalizes text according to its source language. Line-break
// repair only applies to prose; joining lines in code would fuse
// identifiers.
func (c *Cleaner) Clean(text, language string) string {
	text = c.removeTaskComments(text, language)
	if language == "markdown" || language == "pdf" {
		text = c.fixLineBreaks(text)
	}
	text = c.standardizeTerms(text)
	text = c.standardizeUnits(text)
	return norm.NFKC.String(text)
}

func (c *Cleaner) removeTaskComments(text, language string) string {
	switch language {
	case "java", "go":
		text = slashTaskComment.ReplaceAllString(text, "")
		text = blockComment.ReplaceAllString(text, "")
	case "python":
		text = hashTaskComment.ReplaceAllString(text, "")
	}
	return text
}

func (c *Cleaner) fixLineBreaks(text string) string {
	text = brokenWord.ReplaceAllString(text, "$1$2")
	text = hyphenBreak.ReplaceAllString(text, "$1$2")
	return text
}

func (c *Cleaner) standardizeTerms(text string) string {
	for _, r := range termReplacements {
		text = strings.ReplaceAll(text, r[0], r[1])
	}
	return text
}

func (c *Cleaner) standardizeUnits(text string) string {
	text = kgUnit.ReplaceAllString(text, "公斤")
	text = tonUnit.ReplaceAllString(text, "吨")
	return text
}
