package logger

import "sync"

// Per-component warn/error tallies, kept so long-running ingest jobs
// can report how noisy each stage has been.
var (
	statsMu sync.Mutex
	warns   = map[string]int64{}
	errors  = map[string]int64{}
)

func recordWarn(component string) {
	statsMu.Lock()
	warns[component]++
	statsMu.Unlock()
}

func recordError(component string) {
	statsMu.Lock()
	errors[component]++
	statsMu.Unlock()
}

// Counts returns the warn and error totals recorded for a component.
func Counts(component string) (warnCount, errorCount int64) {
	statsMu.Lock()
	defer statsMu.Unlock()
	return warns[component], errors[component]
}
