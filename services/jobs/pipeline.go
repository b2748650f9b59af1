// Package jobs scrapes junior-friendly job postings, pushes them
// through a normalization pipeline and stores the survivors in the
// club mirror.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"clubops-backend/lib/telemetry"

	"go.opentelemetry.io/otel/attribute"
)

var tracer = telemetry.Tracer("services/jobs")

// Posting is the pipeline's unit of work.
type Posting struct {
	ID              string
	Title           string
	Link            string
	CompanyName     string
	CompanyLink     string
	LocationsRaw    []string
	Locations       []string
	EmploymentTypes []string
	PostedAt        time.Time
	DescriptionHTML string
	DescriptionText string
	Remote          bool
	Source          string
}

// Stage is one step of the pipeline. Returning a DropError vetoes the
// posting; any other error is logged and the posting is skipped, one
// broken posting must not kill the whole batch.
type Stage interface {
	Name() string
	Process(ctx context.Context, posting Posting) (Posting, error)
}

// DropError is a deliberate veto with a diagnostic, as opposed to a
// stage malfunction.
type DropError struct {
	Reason string
}

func (e DropError) Error() string {
	return "dropped: " + e.Reason
}

func Drop(format string, args ...any) error {
	return DropError{Reason: fmt.Sprintf(format, args...)}
}

// Run pushes every posting through the stages. It returns the ones
// that made it all the way, plus the ones a malfunctioning stage
// skipped, so the caller can arrange for those to be retried. Vetoed
// postings are gone for good.
func Run(ctx context.Context, postings []Posting, stages []Stage) (kept, skipped []Posting) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	dropped := 0

	for _, posting := range postings {
		processed := posting
		verdict := "kept"
		for _, stage := range stages {
			next, err := stage.Process(ctx, processed)
			var dropErr DropError
			if errors.As(err, &dropErr) {
				slog.InfoContext(ctx, "dropping posting",
					"stage", stage.Name(), "title", processed.Title, "reason", dropErr.Reason)
				dropped++
				verdict = "dropped"
				break
			}
			if err != nil {
				slog.ErrorContext(ctx, "stage failed, skipping posting",
					"stage", stage.Name(), "title", processed.Title, "err", err)
				verdict = "skipped"
				break
			}
			processed = next
		}
		switch verdict {
		case "kept":
			kept = append(kept, processed)
		case "skipped":
			skipped = append(skipped, posting)
		}
	}

	span.SetAttributes(
		attribute.Int("in", len(postings)),
		attribute.Int("out", len(kept)),
		attribute.Int("dropped", dropped),
		attribute.Int("skipped", len(skipped)),
	)
	return kept, skipped
}
