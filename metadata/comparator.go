package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Component identifies one metadata component found in a tree.
type Component struct {
	Type string
	Name string
	Path string
}

func (c Component) Key() string { return c.Type + ":" + c.Name }

// Diff is the outcome of comparing two metadata trees. Added means
// present only in the target, Deleted present only in the source.
type Diff struct {
	Added     []Component
	Modified  []Component
	Deleted   []Component
	Unchanged []string
}

func (d *Diff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Modified) > 0 || len(d.Deleted) > 0
}

func (d *Diff) Summary() map[string]int {
	return map[string]int{
		"added":     len(d.Added),
		"modified":  len(d.Modified),
		"deleted":   len(d.Deleted),
		"unchanged": len(d.Unchanged),
	}
}

// component file suffixes, mapped to their metadata type
var metaSuffixes = []struct {
	suffix   string
	compType string
	// nested components take their parent directory as a qualifier
	nested bool
}{
	{".object-meta.xml", "CustomObject", false},
	{".field-meta.xml", "CustomField", true},
	{".validationRule-meta.xml", "ValidationRule", true},
	{".workflow-meta.xml", "WorkflowRule", true},
}

// CompareTrees diffs the metadata components of two local directories.
// Modification is textual inequality after whitespace normalization,
// so formatting-only differences do not count as changes.
func CompareTrees(sourceDir, targetDir string) (*Diff, error) {
	source, err := scanTree(sourceDir)
	if err != nil {
		return nil, err
	}
	target, err := scanTree(targetDir)
	if err != nil {
		return nil, err
	}

	keys := map[string]bool{}
	for k := range source {
		keys[k] = true
	}
	for k := range target {
		keys[k] = true
	}

	ordered := make([]string, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	diff := &Diff{}
	for _, key := range ordered {
		src, inSource := source[key]
		tgt, inTarget := target[key]

		switch {
		case inSource && !inTarget:
			diff.Deleted = append(diff.Deleted, src)
		case inTarget && !inSource:
			diff.Added = append(diff.Added, tgt)
		default:
			same, err := filesEqual(src.Path, tgt.Path)
			if err != nil {
				return nil, err
			}
			if same {
				diff.Unchanged = append(diff.Unchanged, key)
			} else {
				diff.Modified = append(diff.Modified, tgt)
			}
		}
	}

	return diff, nil
}

// scanTree indexes the component files of a metadata directory by
// Type:Name key. A missing directory is an empty tree, not an error.
func scanTree(dir string) (map[string]Component, error) {
	components := map[string]Component{}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return components, nil
	}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		if comp, ok := classify(path); ok {
			components[comp.Key()] = comp
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	return components, nil
}

func classify(path string) (Component, bool) {
	base := filepath.Base(path)

	for _, s := range metaSuffixes {
		if !strings.HasSuffix(base, s.suffix) {
			continue
		}

		name := strings.TrimSuffix(base, s.suffix)
		if s.nested {
			parent := filepath.Dir(path)
			// skip the conventional grouping folder, e.g. objects/Invoice__c/fields/
			if filepath.Base(parent) == "fields" {
				parent = filepath.Dir(parent)
			}
			name = filepath.Base(parent) + "." + name
		}

		return Component{Type: s.compType, Name: name, Path: path}, true
	}

	return Component{}, false
}

func filesEqual(a, b string) (bool, error) {
	ca, err := os.ReadFile(a)
	if err != nil {
		return false, err
	}
	cb, err := os.ReadFile(b)
	if err != nil {
		return false, err
	}

	return normalizeSpace(string(ca)) == normalizeSpace(string(cb)), nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
