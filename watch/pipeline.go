package watch

import (
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Debounce collapses bursts of events on the same path into one,
// emitted after the path has been quiet for delay.
func Debounce(inCh <-chan Event, delay time.Duration) <-chan Event {
	outCh := make(chan Event, cap(inCh))

	go func() {
		var mu sync.Mutex
		var inflight sync.WaitGroup
		timers := make(map[string]*time.Timer)
		events := make(map[string]Event)

		for event := range inCh {
			path := event.Path

			mu.Lock()
			if t, ok := timers[path]; ok && t.Stop() {
				inflight.Done()
			}
			events[path] = event

			inflight.Add(1)
			timers[path] = time.AfterFunc(delay, func() {
				defer inflight.Done()

				mu.Lock()
				pending, ok := events[path]
				delete(timers, path)
				delete(events, path)
				mu.Unlock()

				if ok {
					outCh <- pending
				}
			})
			mu.Unlock()
		}

		// input is closed: flush the timers that have not fired yet,
		// wait out the callbacks already in flight, then close
		mu.Lock()
		var pending []Event
		for path, t := range timers {
			if t.Stop() {
				pending = append(pending, events[path])
				inflight.Done()
			}
		}
		mu.Unlock()

		for _, event := range pending {
			outCh <- event
		}

		inflight.Wait()
		close(outCh)
	}()

	return outCh
}

// FilterMetadata drops events on files that are not metadata
// components or the package manifest.
func FilterMetadata(inCh <-chan Event) <-chan Event {
	outCh := make(chan Event, cap(inCh))

	go func() {
		defer close(outCh)

		for event := range inCh {
			if isMetadataFile(event.Path) {
				outCh <- event
			}
		}
	}()

	return outCh
}

func isMetadataFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, "-meta.xml") || base == "package.xml"
}
