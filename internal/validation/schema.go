package validation

import (
	"fmt"
	"strings"
)

// Questions table columns, in canonical order.
const (
	ColQuestionID    = "Question ID"
	ColQuestion      = "Question"
	ColDate          = "Date"
	ColAnswer        = "Answer"
	ColSectionTarget = "Section Target"
	ColResolution    = "Resolution Status"
	ColStatusSimple  = "Status"
)

// FullQuestionsHeader is the canonical six-column questions table.
var FullQuestionsHeader = []string{ColQuestionID, ColQuestion, ColDate, ColAnswer, ColSectionTarget, ColResolution}

// SimpleQuestionsHeader is the five-column variant used by some templates.
// Its rows target the section that encloses the table.
var SimpleQuestionsHeader = []string{ColQuestionID, ColQuestion, ColDate, ColAnswer, ColStatusSimple}

// SchemaVariant selects which questions table header a document may use.
type SchemaVariant string

const (
	SchemaAuto   SchemaVariant = "auto"
	SchemaFull   SchemaVariant = "full"
	SchemaSimple SchemaVariant = "simple"
)

// ParseSchemaVariant parses a config value. Empty means auto.
func ParseSchemaVariant(s string) (SchemaVariant, error) {
	switch v := SchemaVariant(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return SchemaAuto, nil
	case SchemaAuto, SchemaFull, SchemaSimple:
		return v, nil
	}
	return "", fmt.Errorf("unknown questions schema %q (valid: auto, full, simple)", s)
}

// Headers returns the accepted headers, preferred first.
func (v SchemaVariant) Headers() [][]string {
	switch v {
	case SchemaFull:
		return [][]string{FullQuestionsHeader}
	case SchemaSimple:
		return [][]string{SimpleQuestionsHeader}
	}
	return [][]string{FullQuestionsHeader, SimpleQuestionsHeader}
}

// IsSimpleHeader reports whether header is the five-column variant.
func IsSimpleHeader(header []string) bool {
	return equalColumns(header, SimpleQuestionsHeader)
}

// ColumnIndex returns the index of name in header, or -1.
func ColumnIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func statusColumn(header []string) int {
	if i := ColumnIndex(header, ColResolution); i >= 0 {
		return i
	}
	return ColumnIndex(header, ColStatusSimple)
}
