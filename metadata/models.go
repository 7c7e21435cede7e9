package metadata

import (
	"encoding/xml"
	"fmt"
	"strings"

	"kinetic/session"
)

// FieldType is a custom field data type. The set is closed; the
// platform rejects anything outside it.
type FieldType string

const (
	FieldAutoNumber    FieldType = "AutoNumber"
	FieldCheckbox      FieldType = "Checkbox"
	FieldCurrency      FieldType = "Currency"
	FieldDate          FieldType = "Date"
	FieldDateTime      FieldType = "DateTime"
	FieldEmail         FieldType = "Email"
	FieldLookup        FieldType = "Lookup"
	FieldMasterDetail  FieldType = "MasterDetail"
	FieldNumber        FieldType = "Number"
	FieldPercent       FieldType = "Percent"
	FieldPhone         FieldType = "Phone"
	FieldPicklist      FieldType = "Picklist"
	FieldMultiPicklist FieldType = "MultiselectPicklist"
	FieldText          FieldType = "Text"
	FieldTextArea      FieldType = "TextArea"
	FieldLongTextArea  FieldType = "LongTextArea"
	FieldURL           FieldType = "Url"
	FieldFormula       FieldType = "Formula"
)

var fieldTypes = map[FieldType]bool{
	FieldAutoNumber: true, FieldCheckbox: true, FieldCurrency: true,
	FieldDate: true, FieldDateTime: true, FieldEmail: true,
	FieldLookup: true, FieldMasterDetail: true, FieldNumber: true,
	FieldPercent: true, FieldPhone: true, FieldPicklist: true,
	FieldMultiPicklist: true, FieldText: true, FieldTextArea: true,
	FieldLongTextArea: true, FieldURL: true, FieldFormula: true,
}

func ParseFieldType(s string) (FieldType, error) {
	ft := FieldType(s)
	if !fieldTypes[ft] {
		return "", fmt.Errorf("unknown field type %q", s)
	}

	return ft, nil
}

// SharingModel controls record visibility on a custom object.
type SharingModel string

const (
	SharingPrivate            SharingModel = "Private"
	SharingReadOnly           SharingModel = "ReadOnly"
	SharingReadWrite          SharingModel = "ReadWrite"
	SharingControlledByParent SharingModel = "ControlledByParent"
)

// PicklistValue is one entry of a picklist field.
type PicklistValue struct {
	FullName string
	Default  bool
	Label    string
	Color    string
}

// CustomField describes a custom field on an object. Zero values for
// Length, Precision and Scale fall back to platform defaults when the
// type needs them.
type CustomField struct {
	Object string
	Name   string
	Type   FieldType
	Label  string

	Description string
	HelpText    string
	Required    bool
	Unique      bool
	ExternalID  bool

	Length    int
	Precision int
	Scale     int

	PicklistValues []PicklistValue

	ReferenceTo      string
	RelationshipName string
	DeleteConstraint string

	Formula              string
	FormulaTreatBlanksAs string

	DefaultValue string
}

// Validate applies the platform's structural rules before anything is
// sent over the wire.
func (f *CustomField) Validate() error {
	if f.Object == "" {
		return fmt.Errorf("custom field %s requires an object", f.Name)
	}
	if !strings.HasSuffix(f.Name, "__c") {
		return fmt.Errorf("custom field name must end with __c: %s", f.Name)
	}
	if _, err := ParseFieldType(string(f.Type)); err != nil {
		return err
	}

	switch f.Type {
	case FieldLookup, FieldMasterDetail:
		if f.ReferenceTo == "" {
			return fmt.Errorf("%s field %s requires a target object", f.Type, f.Name)
		}
	case FieldPicklist, FieldMultiPicklist:
		if len(f.PicklistValues) == 0 {
			return fmt.Errorf("picklist field %s requires at least one value", f.Name)
		}
	case FieldFormula:
		if f.Formula == "" {
			return fmt.Errorf("formula field %s requires a formula expression", f.Name)
		}
	}

	return nil
}

type picklistValueXML struct {
	FullName string `xml:"fullName"`
	Default  bool   `xml:"default"`
	Label    string `xml:"label,omitempty"`
	Color    string `xml:"color,omitempty"`
}

type valueSetXML struct {
	Restricted bool               `xml:"restricted"`
	Values     []picklistValueXML `xml:"value"`
}

type customFieldXML struct {
	XMLName xml.Name `xml:"CustomField"`
	XMLNS   string   `xml:"xmlns,attr"`

	FullName       string `xml:"fullName"`
	Label          string `xml:"label"`
	Description    string `xml:"description,omitempty"`
	InlineHelpText string `xml:"inlineHelpText,omitempty"`
	Type           string `xml:"type"`
	Required       bool   `xml:"required"`
	Unique         bool   `xml:"unique"`
	ExternalID     bool   `xml:"externalId"`

	Length       *int `xml:"length,omitempty"`
	VisibleLines *int `xml:"visibleLines,omitempty"`
	Precision    *int `xml:"precision,omitempty"`
	Scale        *int `xml:"scale,omitempty"`

	ValueSet *valueSetXML `xml:"valueSet,omitempty"`

	ReferenceTo       string `xml:"referenceTo,omitempty"`
	RelationshipLabel string `xml:"relationshipLabel,omitempty"`
	RelationshipName  string `xml:"relationshipName,omitempty"`
	DeleteConstraint  string `xml:"deleteConstraint,omitempty"`

	Formula              string `xml:"formula,omitempty"`
	FormulaTreatBlanksAs string `xml:"formulaTreatBlanksAs,omitempty"`

	DefaultValue string `xml:"defaultValue,omitempty"`
}

func intPtr(v int) *int { return &v }

// XML renders the field in the Metadata API's CustomField schema.
func (f *CustomField) XML() (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}

	payload := customFieldXML{
		XMLNS:          metadataNS,
		FullName:       f.Name,
		Label:          f.Label,
		Description:    f.Description,
		InlineHelpText: f.HelpText,
		Type:           string(f.Type),
		Required:       f.Required,
		Unique:         f.Unique,
		ExternalID:     f.ExternalID,
		DefaultValue:   f.DefaultValue,
	}

	switch f.Type {
	case FieldText:
		length := f.Length
		if length == 0 {
			length = 255
		}
		payload.Length = intPtr(length)
	case FieldLongTextArea:
		length := f.Length
		if length == 0 {
			length = 32000
		}
		payload.Length = intPtr(length)
		payload.VisibleLines = intPtr(3)
	case FieldNumber, FieldCurrency, FieldPercent:
		precision := f.Precision
		if precision == 0 {
			precision = 18
		}
		payload.Precision = intPtr(precision)
		payload.Scale = intPtr(f.Scale)
	case FieldPicklist, FieldMultiPicklist:
		valueSet := &valueSetXML{Restricted: true}
		for _, pv := range f.PicklistValues {
			value := picklistValueXML{FullName: pv.FullName, Default: pv.Default, Color: pv.Color}
			if pv.Label != "" && pv.Label != pv.FullName {
				value.Label = pv.Label
			}
			valueSet.Values = append(valueSet.Values, value)
		}
		payload.ValueSet = valueSet
	case FieldLookup, FieldMasterDetail:
		relationship := f.RelationshipName
		if relationship == "" {
			relationship = strings.TrimSuffix(f.Name, "__c") + "__r"
		}
		payload.ReferenceTo = f.ReferenceTo
		payload.RelationshipLabel = f.Label
		payload.RelationshipName = relationship
		if f.Type == FieldMasterDetail {
			payload.DeleteConstraint = f.DeleteConstraint
		}
	case FieldFormula:
		payload.Formula = f.Formula
		payload.FormulaTreatBlanksAs = f.FormulaTreatBlanksAs
	}

	return renderComponent(payload, "CustomField")
}

// ParseCustomField reads a field-meta.xml document back into a
// CustomField. Unknown field types are an error, not a fallback.
func ParseCustomField(data []byte, object string) (*CustomField, error) {
	var payload customFieldXML
	if err := xml.Unmarshal(data, &payload); err != nil {
		return nil, &session.DecodeError{What: "field metadata", Err: err}
	}

	ft, err := ParseFieldType(payload.Type)
	if err != nil {
		return nil, &session.DecodeError{What: "field metadata", Err: err}
	}

	f := &CustomField{
		Object:               object,
		Name:                 payload.FullName,
		Type:                 ft,
		Label:                payload.Label,
		Description:          payload.Description,
		HelpText:             payload.InlineHelpText,
		Required:             payload.Required,
		Unique:               payload.Unique,
		ExternalID:           payload.ExternalID,
		ReferenceTo:          payload.ReferenceTo,
		RelationshipName:     payload.RelationshipName,
		DeleteConstraint:     payload.DeleteConstraint,
		Formula:              payload.Formula,
		FormulaTreatBlanksAs: payload.FormulaTreatBlanksAs,
		DefaultValue:         payload.DefaultValue,
	}

	if payload.Length != nil {
		f.Length = *payload.Length
	}
	if payload.Precision != nil {
		f.Precision = *payload.Precision
	}
	if payload.Scale != nil {
		f.Scale = *payload.Scale
	}
	if payload.ValueSet != nil {
		for _, v := range payload.ValueSet.Values {
			f.PicklistValues = append(f.PicklistValues, PicklistValue{
				FullName: v.FullName,
				Default:  v.Default,
				Label:    v.Label,
				Color:    v.Color,
			})
		}
	}

	return f, nil
}

// CustomObject describes a custom object and its name field.
type CustomObject struct {
	Name        string
	Label       string
	PluralLabel string
	Description string

	SharingModel SharingModel

	NameFieldLabel string
	NameFieldType  string

	EnableActivities bool
	EnableReports    bool
	EnableSearch     bool
	EnableBulkAPI    bool
	EnableSharing    bool
	EnableFeeds      bool

	Fields []CustomField
}

// NewCustomObject fills in the defaults the platform expects for a
// plain object: read/write sharing, reporting, search and bulk access
// on, a text Name field.
func NewCustomObject(name, label, pluralLabel string) *CustomObject {
	return &CustomObject{
		Name:           name,
		Label:          label,
		PluralLabel:    pluralLabel,
		SharingModel:   SharingReadWrite,
		NameFieldLabel: "Name",
		NameFieldType:  "Text",
		EnableReports:  true,
		EnableSearch:   true,
		EnableBulkAPI:  true,
		EnableSharing:  true,
	}
}

func (o *CustomObject) Validate() error {
	if !strings.HasSuffix(o.Name, "__c") {
		return fmt.Errorf("custom object name must end with __c: %s", o.Name)
	}

	for i := range o.Fields {
		f := &o.Fields[i]
		if f.Object != o.Name {
			return fmt.Errorf("field %s belongs to %s, not %s", f.Name, f.Object, o.Name)
		}
		if err := f.Validate(); err != nil {
			return err
		}
	}

	return nil
}

type nameFieldXML struct {
	Label string `xml:"label"`
	Type  string `xml:"type"`
}

type customObjectXML struct {
	XMLName xml.Name `xml:"CustomObject"`
	XMLNS   string   `xml:"xmlns,attr"`

	FullName    string `xml:"fullName"`
	Label       string `xml:"label"`
	PluralLabel string `xml:"pluralLabel"`
	Description string `xml:"description,omitempty"`

	NameField    nameFieldXML `xml:"nameField"`
	SharingModel string       `xml:"sharingModel"`

	EnableActivities bool `xml:"enableActivities"`
	EnableBulkAPI    bool `xml:"enableBulkApi"`
	EnableReports    bool `xml:"enableReports"`
	EnableSearch     bool `xml:"enableSearch"`
	EnableSharing    bool `xml:"enableSharing"`
	EnableFeeds      bool `xml:"enableFeeds"`

	DeploymentStatus string `xml:"deploymentStatus"`
}

// XML renders the object in the Metadata API's CustomObject schema.
// Fields deploy as separate components; they are not inlined here.
func (o *CustomObject) XML() (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}

	payload := customObjectXML{
		XMLNS:            metadataNS,
		FullName:         o.Name,
		Label:            o.Label,
		PluralLabel:      o.PluralLabel,
		Description:      o.Description,
		NameField:        nameFieldXML{Label: o.NameFieldLabel, Type: o.NameFieldType},
		SharingModel:     string(o.SharingModel),
		EnableActivities: o.EnableActivities,
		EnableBulkAPI:    o.EnableBulkAPI,
		EnableReports:    o.EnableReports,
		EnableSearch:     o.EnableSearch,
		EnableSharing:    o.EnableSharing,
		EnableFeeds:      o.EnableFeeds,
		DeploymentStatus: "Deployed",
	}

	return renderComponent(payload, "CustomObject")
}

func renderComponent(payload any, what string) (string, error) {
	out, err := xml.MarshalIndent(payload, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", what, err)
	}

	return xml.Header + string(out) + "\n", nil
}
