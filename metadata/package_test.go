package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManifest_XMLUsesWildcardForBareTypes(t *testing.T) {
	t.Parallel()

	m := NewManifest("v60.0", "CustomObject", "ApexClass")

	out, err := m.XML()
	require.NoError(t, err)

	require.Contains(t, out, "<members>*</members>")
	require.Contains(t, out, "<name>ApexClass</name>")
	require.Contains(t, out, "<name>CustomObject</name>")
	require.Contains(t, out, "<version>60.0</version>")
	// type order is stable regardless of insertion order
	require.Less(t, strings.Index(out, "ApexClass"), strings.Index(out, "CustomObject"))
}

func TestManifest_SpecificMembersReplaceWildcard(t *testing.T) {
	t.Parallel()

	m := NewManifest("v60.0")
	m.Add("CustomObject", "Account", "Invoice__c")

	out, err := m.XML()
	require.NoError(t, err)

	require.Contains(t, out, "<members>Account</members>")
	require.Contains(t, out, "<members>Invoice__c</members>")
	require.NotContains(t, out, "<members>*</members>")
}

func TestParseManifest_RoundTrip(t *testing.T) {
	t.Parallel()

	m := NewManifest("v60.0", "CustomObject")
	m.Add("CustomField", "Account.Tier__c")

	out, err := m.XML()
	require.NoError(t, err)

	parsed, err := ParseManifest([]byte(out))
	require.NoError(t, err)
	require.Equal(t, "60.0", parsed.Version)
	require.Nil(t, parsed.Members["CustomObject"], "wildcard collapses back to nil")
	require.Equal(t, []string{"Account.Tier__c"}, parsed.Members["CustomField"])
}

func TestParseManifest_RejectsNamelessType(t *testing.T) {
	t.Parallel()

	data := `<?xml version="1.0"?>
<Package xmlns="http://soap.sforce.com/2006/04/metadata">
    <types>
        <members>*</members>
    </types>
    <version>60.0</version>
</Package>`

	_, err := ParseManifest([]byte(data))
	require.Error(t, err)
}
