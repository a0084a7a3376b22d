package a1

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSingleCell(t *testing.T) {
	r, err := Parse("A1")
	require.NoError(t, err)
	require.Equal(t, Range{StartColumn: 0, EndColumn: 1, StartRow: 0, EndRow: 1}, r)
}

func TestParseBlock(t *testing.T) {
	r, err := Parse("B2:D5")
	require.NoError(t, err)
	require.Equal(t, Range{StartColumn: 1, EndColumn: 4, StartRow: 1, EndRow: 5}, r)
}

func TestParseOpenEndRowDefaultsToSingleRow(t *testing.T) {
	r, err := Parse("C3:E")
	require.NoError(t, err)
	require.Equal(t, Range{StartColumn: 2, EndColumn: 5, StartRow: 2, EndRow: 3}, r)
}

func TestParseRejectsSheetQualifier(t *testing.T) {
	for _, text := range []string{"'Data 1'!A5:B6", "Sheet1!AA10", "Data!A1:B1"} {
		t.Run(text, func(t *testing.T) {
			_, err := Parse(text)
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "expected ParseError for %q, got %v", text, err)
		})
	}
}

func TestUnqualified(t *testing.T) {
	require.Equal(t, "A5:B6", Unqualified("'Data 1'!A5:B6"))
	require.Equal(t, "AA10", Unqualified("Sheet1!AA10"))
	require.Equal(t, "B2:C3", Unqualified("B2:C3"))

	r, err := Parse(Unqualified("'Data'!A2:B3"))
	require.NoError(t, err)
	require.Equal(t, Range{StartColumn: 0, EndColumn: 2, StartRow: 1, EndRow: 3}, r)
}

func TestParseRejectsMalformedText(t *testing.T) {
	for _, text := range []string{"", "1A", "a1", "A", "A0", "A1:", "A1:2", "A1-B2", "B2:A1", "A1:B2:C3"} {
		t.Run(text, func(t *testing.T) {
			_, err := Parse(text)
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "expected ParseError for %q, got %v", text, err)
		})
	}
}

func TestColumnIndex(t *testing.T) {
	cases := map[string]int64{"A": 0, "B": 1, "Z": 25, "AA": 26, "AZ": 51, "BA": 52, "ZZ": 701, "AAA": 702}
	for letters, want := range cases {
		got, err := ColumnIndex(letters)
		require.NoError(t, err)
		require.Equal(t, want, got, letters)
		require.Equal(t, letters, ColumnLetters(want))
	}
}

func TestColumnIndexIsOrderPreserving(t *testing.T) {
	prev := int64(-1)
	for i := int64(0); i < 2000; i++ {
		letters := ColumnLetters(i)
		got, err := ColumnIndex(letters)
		require.NoError(t, err)
		require.Equal(t, i, got)
		require.Greater(t, got, prev)
		prev = got
	}
}

func TestColumnIndexRejectsLowercase(t *testing.T) {
	_, err := ColumnIndex("ab")
	require.Error(t, err)
}

func TestStringRoundTrip(t *testing.T) {
	for _, text := range []string{"A1", "B2:D5", "Z9:AB12", "AA100"} {
		r, err := Parse(text)
		require.NoError(t, err)
		require.Equal(t, text, r.String())

		again, err := Parse(r.String())
		require.NoError(t, err)
		require.Equal(t, r, again)
	}
}

func TestIsCellRange(t *testing.T) {
	require.True(t, IsCellRange("A1"))
	require.True(t, IsCellRange("A1:B2"))
	require.False(t, IsCellRange("A1:B"))
	require.False(t, IsCellRange("Sheet1!A1"))
	require.False(t, IsCellRange("a1"))
}

func TestQualifiedQuotesSheetName(t *testing.T) {
	require.Equal(t, "'Sheet1'!A1:Z", Qualified("Sheet1", "A1:Z"))
	require.Equal(t, "'Bob''s'!A1", Qualified("Bob's", "A1"))
}
