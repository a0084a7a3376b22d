// Package a1 converts spreadsheet A1 notation into zero-based, half-open grid
// bounds and back.
package a1

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// maxColumnLetters bounds column names so the base-26 accumulation cannot overflow.
const maxColumnLetters = 10

var (
	rangePattern     = regexp.MustCompile(`^([A-Z]+)([0-9]+)(?::([A-Z]+)([0-9]+)?)?$`)
	cellRangePattern = regexp.MustCompile(`^[A-Z]+[0-9]+(:[A-Z]+[0-9]+)?$`)
)

// Range is a zero-based, half-open block of cells. End bounds are exclusive.
type Range struct {
	StartRow    int64 `json:"startRowIndex"`
	EndRow      int64 `json:"endRowIndex"`
	StartColumn int64 `json:"startColumnIndex"`
	EndColumn   int64 `json:"endColumnIndex"`
}

// ParseError reports range text that is not valid A1 notation.
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid range format %q", e.Text)
	}
	return fmt.Sprintf("invalid range format %q: %s", e.Text, e.Reason)
}

// Parse converts text of the form COL ROW [ ":" COL [ROW] ] into a Range.
// Sheet-qualified text is rejected; see Unqualified. When the end column or
// end row is omitted the corresponding end bound is start+1.
func Parse(text string) (Range, error) {
	ref := strings.TrimSpace(text)

	match := rangePattern.FindStringSubmatch(ref)
	if match == nil {
		return Range{}, &ParseError{Text: text}
	}

	startColumn, err := ColumnIndex(match[1])
	if err != nil {
		return Range{}, &ParseError{Text: text, Reason: err.Error()}
	}
	startRow, err := rowIndex(match[2])
	if err != nil {
		return Range{}, &ParseError{Text: text, Reason: err.Error()}
	}

	r := Range{
		StartRow:    startRow,
		EndRow:      startRow + 1,
		StartColumn: startColumn,
		EndColumn:   startColumn + 1,
	}

	if match[3] != "" {
		endColumn, err := ColumnIndex(match[3])
		if err != nil {
			return Range{}, &ParseError{Text: text, Reason: err.Error()}
		}
		r.EndColumn = endColumn + 1
	}
	if match[4] != "" {
		endRow, err := rowIndex(match[4])
		if err != nil {
			return Range{}, &ParseError{Text: text, Reason: err.Error()}
		}
		r.EndRow = endRow + 1
	}

	if r.EndColumn <= r.StartColumn || r.EndRow <= r.StartRow {
		return Range{}, &ParseError{Text: text, Reason: "end precedes start"}
	}

	return r, nil
}

// IsCellRange reports whether text is a bare cell or cell-to-cell range such as
// "A1" or "B2:D5", with no sheet qualifier and no open-ended bounds.
func IsCellRange(text string) bool {
	return cellRangePattern.MatchString(text)
}

// ColumnIndex converts column letters to a zero-based index: A=0, Z=25, AA=26.
func ColumnIndex(letters string) (int64, error) {
	if letters == "" {
		return 0, fmt.Errorf("empty column")
	}
	if len(letters) > maxColumnLetters {
		return 0, fmt.Errorf("column %q is too long", letters)
	}

	var index int64
	for _, ch := range letters {
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("column %q must be uppercase letters", letters)
		}
		index = index*26 + int64(ch-'A'+1)
	}
	return index - 1, nil
}

// ColumnLetters is the inverse of ColumnIndex.
func ColumnLetters(index int64) string {
	if index < 0 {
		return ""
	}

	var buf []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		buf = append(buf, byte('A'+(n-1)%26))
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// String renders the range back to A1 notation. Single cells render as "A1".
func (r Range) String() string {
	start := ColumnLetters(r.StartColumn) + strconv.FormatInt(r.StartRow+1, 10)
	if r.EndColumn == r.StartColumn+1 && r.EndRow == r.StartRow+1 {
		return start
	}
	return start + ":" + ColumnLetters(r.EndColumn-1) + strconv.FormatInt(r.EndRow, 10)
}

// Qualified prefixes the range with a quoted sheet name, e.g. 'Sheet1'!A1:B2.
func Qualified(sheetName, ref string) string {
	return "'" + strings.ReplaceAll(sheetName, "'", "''") + "'!" + ref
}

func rowIndex(digits string) (int64, error) {
	row, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("row %q is not a number", digits)
	}
	if row < 1 {
		return 0, fmt.Errorf("row %q must be at least 1", digits)
	}
	return row - 1, nil
}

// Unqualified drops a leading sheet qualifier ("Sheet1!" or "'My Sheet'!")
// such as the one the provider puts on updated ranges.
func Unqualified(text string) string {
	if i := strings.LastIndex(text, "!"); i >= 0 {
		return text[i+1:]
	}
	return text
}
