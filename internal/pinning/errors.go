package pinning

import (
	"fmt"
	"sort"
	"strings"
)

type PinErrorKind int

const (
	UploadFailed PinErrorKind = iota + 1
)

// PinError aborts a pipeline run. Uploads that already finished are not rolled back.
type PinError struct {
	Kind  PinErrorKind
	Asset AssetKind
	Cause error
}

func (e *PinError) Error() string {
	return fmt.Sprintf("upload of %s failed: %v", e.Asset, e.Cause)
}

func (e *PinError) Unwrap() error { return e.Cause }

// ValidationError means the content was rejected before any upload started.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid mint content: " + strings.Join(parts, ", ")
}
