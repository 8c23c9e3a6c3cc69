package indexer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/shoroku/internal/models"
)

// StageError reports which pipeline stage failed and which documents were involved.
type StageError struct {
	Stage       State
	DocumentIDs []string
	Err         error
}

func (e *StageError) Error() string {
	if len(e.DocumentIDs) == 0 {
		return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s failed for documents [%s]: %v", e.Stage, strings.Join(e.DocumentIDs, ", "), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Retriable reports whether a failed run may succeed when started again unchanged.
func Retriable(err error) bool {
	return errors.Is(err, models.ErrProviderUnavailable)
}

// FailedStage returns the stage named by err, or "" when err is not a StageError.
func FailedStage(err error) State {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// documentIDs lists the distinct document ids of chunks in first-seen order.
func documentIDs(chunks []*models.Chunk) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, c := range chunks {
		if _, ok := seen[c.DocumentID]; ok {
			continue
		}
		seen[c.DocumentID] = struct{}{}
		ids = append(ids, c.DocumentID)
	}
	return ids
}
