package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCustomField_TextXMLAppliesDefaultLength(t *testing.T) {
	t.Parallel()

	f := CustomField{
		Object: "Account",
		Name:   "Customer_Tier__c",
		Type:   FieldText,
		Label:  "Customer Tier",
	}

	out, err := f.XML()
	require.NoError(t, err)

	require.Contains(t, out, "<fullName>Customer_Tier__c</fullName>")
	require.Contains(t, out, "<type>Text</type>")
	require.Contains(t, out, "<length>255</length>")
	require.Contains(t, out, "<required>false</required>")
	require.Contains(t, out, `xmlns="http://soap.sforce.com/2006/04/metadata"`)
}

func TestCustomField_PicklistXML(t *testing.T) {
	t.Parallel()

	f := CustomField{
		Object:   "Account",
		Name:     "Tier__c",
		Type:     FieldPicklist,
		Label:    "Tier",
		Required: true,
		PicklistValues: []PicklistValue{
			{FullName: "Bronze"},
			{FullName: "Gold", Default: true},
		},
	}

	out, err := f.XML()
	require.NoError(t, err)

	require.Contains(t, out, "<restricted>true</restricted>")
	require.Contains(t, out, "<fullName>Bronze</fullName>")
	require.Contains(t, out, "<default>true</default>")
}

func TestCustomField_LookupAutoGeneratesRelationshipName(t *testing.T) {
	t.Parallel()

	f := CustomField{
		Object:      "Invoice__c",
		Name:        "Customer__c",
		Type:        FieldLookup,
		Label:       "Customer",
		ReferenceTo: "Account",
	}

	out, err := f.XML()
	require.NoError(t, err)

	require.Contains(t, out, "<referenceTo>Account</referenceTo>")
	require.Contains(t, out, "<relationshipName>Customer__r</relationshipName>")
}

func TestCustomField_ValidationRejectsBadShapes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		field CustomField
	}{
		{"name without suffix", CustomField{Object: "Account", Name: "Tier", Type: FieldText, Label: "Tier"}},
		{"unknown type", CustomField{Object: "Account", Name: "Tier__c", Type: "Blob", Label: "Tier"}},
		{"picklist without values", CustomField{Object: "Account", Name: "Tier__c", Type: FieldPicklist, Label: "Tier"}},
		{"lookup without target", CustomField{Object: "Account", Name: "Owner__c", Type: FieldLookup, Label: "Owner"}},
		{"formula without expression", CustomField{Object: "Account", Name: "Score__c", Type: FieldFormula, Label: "Score"}},
		{"no object", CustomField{Name: "Tier__c", Type: FieldText, Label: "Tier"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Error(t, tc.field.Validate())
		})
	}
}

func TestParseCustomField_RoundTrip(t *testing.T) {
	t.Parallel()

	original := CustomField{
		Object:     "Account",
		Name:       "Score__c",
		Type:       FieldNumber,
		Label:      "Score",
		Precision:  5,
		Scale:      2,
		Unique:     true,
		ExternalID: true,
	}

	out, err := original.XML()
	require.NoError(t, err)

	parsed, err := ParseCustomField([]byte(out), "Account")
	require.NoError(t, err)
	require.Equal(t, original.Name, parsed.Name)
	require.Equal(t, FieldNumber, parsed.Type)
	require.Equal(t, 5, parsed.Precision)
	require.Equal(t, 2, parsed.Scale)
	require.True(t, parsed.Unique)
	require.True(t, parsed.ExternalID)
}

func TestParseCustomField_UnknownTypeIsError(t *testing.T) {
	t.Parallel()

	data := `<?xml version="1.0"?>
<CustomField xmlns="http://soap.sforce.com/2006/04/metadata">
    <fullName>Tier__c</fullName>
    <label>Tier</label>
    <type>Hologram</type>
</CustomField>`

	_, err := ParseCustomField([]byte(data), "Account")
	require.Error(t, err)
}

func TestCustomObject_XML(t *testing.T) {
	t.Parallel()

	obj := NewCustomObject("Invoice__c", "Invoice", "Invoices")
	obj.SharingModel = SharingReadOnly

	out, err := obj.XML()
	require.NoError(t, err)

	require.Contains(t, out, "<fullName>Invoice__c</fullName>")
	require.Contains(t, out, "<pluralLabel>Invoices</pluralLabel>")
	require.Contains(t, out, "<sharingModel>ReadOnly</sharingModel>")
	require.Contains(t, out, "<deploymentStatus>Deployed</deploymentStatus>")
	require.Contains(t, out, "<enableBulkApi>true</enableBulkApi>")
}

func TestCustomObject_ValidateRejectsForeignFields(t *testing.T) {
	t.Parallel()

	obj := NewCustomObject("Invoice__c", "Invoice", "Invoices")
	obj.Fields = append(obj.Fields, CustomField{
		Object: "Account",
		Name:   "Tier__c",
		Type:   FieldText,
		Label:  "Tier",
	})

	require.Error(t, obj.Validate())

	obj2 := NewCustomObject("Invoice", "Invoice", "Invoices")
	require.Error(t, obj2.Validate(), "object name must end with __c")
}
