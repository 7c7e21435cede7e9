package metadata

import (
	"encoding/xml"
	"fmt"
	"sort"

	"kinetic/session"
)

const metadataNS = "http://soap.sforce.com/2006/04/metadata"

// Manifest is the component wish list a retrieve sends as package.xml.
// Types with no explicit members mean "everything of that type".
type Manifest struct {
	Version string
	// Members maps component type to requested member names. An empty
	// or nil slice stands for the "*" wildcard.
	Members map[string][]string
}

func NewManifest(version string, componentTypes ...string) *Manifest {
	m := &Manifest{Version: bareVersion(version), Members: map[string][]string{}}
	for _, t := range componentTypes {
		m.Members[t] = nil
	}

	return m
}

// Add requests specific members of a component type, replacing the
// wildcard for that type.
func (m *Manifest) Add(componentType string, members ...string) {
	m.Members[componentType] = append(m.Members[componentType], members...)
}

type packageTypes struct {
	Members []string `xml:"members"`
	Name    string   `xml:"name"`
}

type packagePayload struct {
	XMLName xml.Name       `xml:"Package"`
	XMLNS   string         `xml:"xmlns,attr"`
	Types   []packageTypes `xml:"types"`
	Version string         `xml:"version"`
}

// XML renders the manifest as package.xml. Type order is alphabetical
// so the output is stable.
func (m *Manifest) XML() (string, error) {
	types := make([]string, 0, len(m.Members))
	for t := range m.Members {
		types = append(types, t)
	}
	sort.Strings(types)

	payload := packagePayload{XMLNS: metadataNS, Version: m.Version}
	for _, t := range types {
		members := m.Members[t]
		if len(members) == 0 {
			members = []string{"*"}
		}
		payload.Types = append(payload.Types, packageTypes{Members: members, Name: t})
	}

	out, err := xml.MarshalIndent(payload, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal package.xml: %w", err)
	}

	return xml.Header + string(out) + "\n", nil
}

// ParseManifest reads a package.xml back into a Manifest. A lone "*"
// member collapses to the wildcard form.
func ParseManifest(data []byte) (*Manifest, error) {
	var payload packagePayload
	if err := xml.Unmarshal(data, &payload); err != nil {
		return nil, &session.DecodeError{What: "package.xml", Err: err}
	}

	m := &Manifest{Version: payload.Version, Members: map[string][]string{}}
	for _, t := range payload.Types {
		if t.Name == "" {
			return nil, &session.DecodeError{What: "package.xml", Err: fmt.Errorf("types entry missing name")}
		}
		if len(t.Members) == 1 && t.Members[0] == "*" {
			m.Members[t.Name] = nil
			continue
		}
		m.Members[t.Name] = t.Members
	}

	return m, nil
}
