package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

const invoiceObject = `<?xml version="1.0"?>
<CustomObject xmlns="http://soap.sforce.com/2006/04/metadata">
    <fullName>Invoice__c</fullName>
    <label>Invoice</label>
</CustomObject>`

const tierField = `<?xml version="1.0"?>
<CustomField xmlns="http://soap.sforce.com/2006/04/metadata">
    <fullName>Tier__c</fullName>
    <label>Tier</label>
    <type>Text</type>
    <length>50</length>
</CustomField>`

func TestCompareTrees_IdenticalTreesHaveNoChanges(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"objects/Invoice__c/Invoice__c.object-meta.xml":    invoiceObject,
		"objects/Invoice__c/fields/Tier__c.field-meta.xml": tierField,
	}

	source := t.TempDir()
	target := t.TempDir()
	writeTree(t, source, files)
	writeTree(t, target, files)

	diff, err := CompareTrees(source, target)
	require.NoError(t, err)

	require.False(t, diff.HasChanges())
	require.Len(t, diff.Unchanged, 2)
	require.Contains(t, diff.Unchanged, "CustomObject:Invoice__c")
	require.Contains(t, diff.Unchanged, "CustomField:Invoice__c.Tier__c")
}

func TestCompareTrees_WhitespaceOnlyDifferenceIsUnchanged(t *testing.T) {
	t.Parallel()

	source := t.TempDir()
	target := t.TempDir()
	writeTree(t, source, map[string]string{
		"Invoice__c.object-meta.xml": invoiceObject,
	})
	writeTree(t, target, map[string]string{
		"Invoice__c.object-meta.xml": "  " + invoiceObject + "\n\n",
	})

	diff, err := CompareTrees(source, target)
	require.NoError(t, err)
	require.False(t, diff.HasChanges())
}

func TestCompareTrees_ClassifiesAddedModifiedDeleted(t *testing.T) {
	t.Parallel()

	source := t.TempDir()
	target := t.TempDir()

	writeTree(t, source, map[string]string{
		"Invoice__c.object-meta.xml":               invoiceObject,
		"Invoice__c/fields/Tier__c.field-meta.xml": tierField,
	})
	// Tier__c changed, Invoice__c gone, Due__c new
	changed := `<?xml version="1.0"?>
<CustomField xmlns="http://soap.sforce.com/2006/04/metadata">
    <fullName>Tier__c</fullName>
    <label>Customer Tier</label>
    <type>Text</type>
    <length>80</length>
</CustomField>`
	writeTree(t, target, map[string]string{
		"Invoice__c/fields/Tier__c.field-meta.xml": changed,
		"Invoice__c/fields/Due__c.field-meta.xml":  tierField,
	})

	diff, err := CompareTrees(source, target)
	require.NoError(t, err)

	require.True(t, diff.HasChanges())
	require.Len(t, diff.Added, 1)
	require.Equal(t, "CustomField:Invoice__c.Due__c", diff.Added[0].Key())
	require.Len(t, diff.Modified, 1)
	require.Equal(t, "CustomField:Invoice__c.Tier__c", diff.Modified[0].Key())
	require.Len(t, diff.Deleted, 1)
	require.Equal(t, "CustomObject:Invoice__c", diff.Deleted[0].Key())

	require.Equal(t, map[string]int{
		"added": 1, "modified": 1, "deleted": 1, "unchanged": 0,
	}, diff.Summary())
}

func TestCompareTrees_MissingDirectoryIsEmptyTree(t *testing.T) {
	t.Parallel()

	source := t.TempDir()
	writeTree(t, source, map[string]string{
		"Invoice__c.object-meta.xml": invoiceObject,
	})

	diff, err := CompareTrees(source, filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	require.Len(t, diff.Deleted, 1)
	require.Empty(t, diff.Added)
}

func TestCompareTrees_IgnoresNonMetadataFiles(t *testing.T) {
	t.Parallel()

	source := t.TempDir()
	target := t.TempDir()
	writeTree(t, source, map[string]string{
		"README.md":   "notes",
		"package.xml": "<Package/>",
	})

	diff, err := CompareTrees(source, target)
	require.NoError(t, err)
	require.False(t, diff.HasChanges())
	require.Empty(t, diff.Unchanged)
}
