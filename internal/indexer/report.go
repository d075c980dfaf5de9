package indexer

import "time"

// Report summarizes one index run for the caller. Per-file problems land in
// Warnings/Failures instead of aborting the run.
type Report struct {
	FilesProcessed int               `json:"files_processed"`
	FilesSkipped   int               `json:"files_skipped"`
	Created        int               `json:"created"`
	Updated        int               `json:"updated"`
	Deleted        int               `json:"deleted"`
	Warnings       []string          `json:"warnings,omitempty"`
	Failures       map[string]string `json:"failures,omitempty"`
	Duration       time.Duration     `json:"duration"`
}

func (r *Report) addWarning(path, msg string) {
	r.Warnings = append(r.Warnings, path+": "+msg)
}

func (r *Report) addFailure(path string, err error) {
	if r.Failures == nil {
		r.Failures = make(map[string]string)
	}
	r.Failures[path] = err.Error()
}
