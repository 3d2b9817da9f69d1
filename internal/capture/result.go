package capture

import "time"

// Result describes the outcome of one capture attempt. A successful
// result always carries a path; a failed one always carries an error
// string. Build results only through Succeeded and Failed so every
// code path returns a fully-formed value.
type Result struct {
	Success   bool           `json:"success"`
	Path      string         `json:"path,omitempty"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp float64        `json:"timestamp"`
}

// Succeeded returns a successful result for the written file.
func Succeeded(path string, metadata map[string]any) Result {
	return Result{
		Success:   true,
		Path:      path,
		Metadata:  metadata,
		Timestamp: nowUnix(),
	}
}

// Failed returns a failed result carrying the reason.
func Failed(reason string) Result {
	return Result{
		Success:   false,
		Error:     reason,
		Timestamp: nowUnix(),
	}
}

// FailedErr returns a failed result from an error value.
func FailedErr(err error) Result {
	return Failed(err.Error())
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
