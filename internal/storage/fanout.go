package storage

import (
	"context"
	"errors"

	"github.com/ejanovitz/Rehearse/internal/interview"
)

// Fanout writes a record to every configured sink. All sinks are
// attempted even when an earlier one fails.
type Fanout []interview.RecordSink

func (f Fanout) Save(ctx context.Context, rec *interview.Record) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Save(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
