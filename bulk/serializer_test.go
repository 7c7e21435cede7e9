package bulk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalRecords_EmptyInput(t *testing.T) {
	t.Parallel()

	out, err := MarshalRecords(nil)
	require.NoError(t, err)
	require.Equal(t, "", out)

	out, err = MarshalRecords([]Record{})
	require.NoError(t, err)
	require.Equal(t, "", out)
}

func TestMarshalRecords_HeaderIsSortedUnionWithIdFirst(t *testing.T) {
	t.Parallel()

	records := []Record{
		{"Name": "Acme Corp", "Industry": "Technology"},
		{"Id": "001xx01", "Name": "Global Inc", "Phone": "555-1234"},
	}

	out, err := MarshalRecords(records)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Id,Industry,Name,Phone", lines[0])
	require.Equal(t, ",Technology,Acme Corp,", lines[1])
	require.Equal(t, "001xx01,,Global Inc,555-1234", lines[2])
}

func TestMarshalRecords_UsesLFOnly(t *testing.T) {
	t.Parallel()

	out, err := MarshalRecords([]Record{{"Name": "Acme"}})
	require.NoError(t, err)
	require.NotContains(t, out, "\r")
	require.True(t, strings.HasSuffix(out, "\n"))
}

func TestMarshalRecords_PreservesCasingAndNumericStrings(t *testing.T) {
	t.Parallel()

	out, err := MarshalRecords([]Record{{"AnnualRevenue": "0050", "OwnerId": "005xx"}})
	require.NoError(t, err)
	require.Equal(t, "AnnualRevenue,OwnerId\n0050,005xx\n", out)
}

func TestUnmarshalRecords_BlankInput(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "   ", "\n\n", " \t\n"} {
		records, err := UnmarshalRecords(input)
		require.NoError(t, err)
		require.Empty(t, records)
	}
}

func TestUnmarshalRecords_DropsEmptyCellsAndEmptyRecords(t *testing.T) {
	t.Parallel()

	data := "Name,Industry,Phone\nAcme,,555\n,,\nGlobal,Retail,\n"

	records, err := UnmarshalRecords(data)
	require.NoError(t, err)
	require.Equal(t, []Record{
		{"Name": "Acme", "Phone": "555"},
		{"Name": "Global", "Industry": "Retail"},
	}, records)
}

func TestUnmarshalRecords_RaggedRowIsDecodeError(t *testing.T) {
	t.Parallel()

	_, err := UnmarshalRecords("A,B\n1,2,3\n")
	require.Error(t, err)
}

func TestRecords_RoundTrip(t *testing.T) {
	t.Parallel()

	records := []Record{
		{"Id": "001xx01", "Name": "Acme Corp", "Industry": "Technology"},
		{"Id": "001xx02", "Name": "Global Inc"},
	}

	out, err := MarshalRecords(records)
	require.NoError(t, err)

	back, err := UnmarshalRecords(out)
	require.NoError(t, err)

	// Every field present and non-empty survives; empty cells are
	// intentionally dropped on the way back.
	require.Equal(t, records, back)
}

func TestMarshalIDs(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Id\na\nb\n", MarshalIDs([]string{"a", "b"}))
	require.Equal(t, "", MarshalIDs(nil))
}

func TestValidCSV(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		want  bool
	}{
		{"header and data row", "Id\n001xx\n", true},
		{"blank", "", false},
		{"whitespace only", "  \n ", false},
		{"header only", "Id,Name\n", false},
		{"multiple data rows", "Id,Name\n1,a\n2,b\n", true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ValidCSV(tc.input))
		})
	}
}
