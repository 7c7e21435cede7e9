package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitForEvent(t *testing.T, events <-chan Event, path string) Event {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Path == path {
				return event
			}
		case <-deadline:
			t.Fatalf("no event for %s", path)
		}
	}
}

func TestWatcher_EmitsWriteEvents(t *testing.T) {
	dir := t.TempDir()

	w, err := New(16)
	require.NoError(t, err)
	require.NoError(t, w.Watch(dir))
	defer w.Stop()

	target := filepath.Join(dir, "Invoice__c.object-meta.xml")
	require.NoError(t, os.WriteFile(target, []byte("<CustomObject/>"), 0o644))

	event := waitForEvent(t, w.Events(), target)
	require.False(t, event.Timestamp.IsZero())
}

func TestWatcher_FollowsCreatedDirectories(t *testing.T) {
	dir := t.TempDir()

	w, err := New(16)
	require.NoError(t, err)
	require.NoError(t, w.Watch(dir))
	defer w.Stop()

	sub := filepath.Join(dir, "fields")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// the create event for the directory itself arrives first
	waitForEvent(t, w.Events(), sub)

	target := filepath.Join(sub, "Tier__c.field-meta.xml")
	require.NoError(t, os.WriteFile(target, []byte("<CustomField/>"), 0o644))

	waitForEvent(t, w.Events(), target)
}

func TestWatcher_RejectsMissingDirectory(t *testing.T) {
	w, err := New(16)
	require.NoError(t, err)
	defer w.Stop()

	require.Error(t, w.Watch(filepath.Join(t.TempDir(), "nope")))
}
