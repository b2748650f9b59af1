package jobs

import (
	"context"
	"log/slog"

	"clubops-backend/lib/timezone"
	"clubops-backend/services/club"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Service struct {
	store  club.Store
	board  *BoardClient
	stages []Stage
	// seen is optional; without it every run processes everything.
	seen *SeenSet
}

func NewService(store club.Store, board *BoardClient, stages []Stage, seen *SeenSet) Service {
	return Service{store: store, board: board, stages: stages, seen: seen}
}

// DefaultStages wires the standard pipeline order: veto first so the
// expensive stages never see blocked postings.
func DefaultStages(geocoder Geocoder) []Stage {
	return []Stage{
		BlocklistStage{Rules: DefaultBlocklist},
		EmploymentTypesStage{},
		LocationsStage{Geocoder: geocoder},
	}
}

// Sync scrapes the board, runs the pipeline and stores the survivors.
func (s Service) Sync(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Sync")
	defer span.End()

	scraped, err := s.board.Scrape(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to scrape job board")
		return err
	}

	fresh := scraped
	if s.seen != nil {
		fresh = fresh[:0]
		for _, posting := range scraped {
			already, err := s.seen.Seen(ctx, posting.ID)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "seen set failed")
				return err
			}
			if already {
				continue
			}
			fresh = append(fresh, posting)
		}
	}

	processed, broken := Run(ctx, fresh, s.stages)
	if err := s.persist(ctx, processed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store postings")
		return err
	}

	// postings a malfunctioning stage skipped get another chance on
	// the next run
	if s.seen != nil {
		for _, posting := range broken {
			if err := s.seen.Forget(ctx, posting.ID); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "seen set failed")
				return err
			}
		}
	}

	span.SetAttributes(
		attribute.Int("scraped", len(scraped)),
		attribute.Int("fresh", len(fresh)),
		attribute.Int("stored", len(processed)),
	)
	slog.InfoContext(ctx, "jobs synced",
		"scraped", len(scraped), "fresh", len(fresh), "stored", len(processed))
	return nil
}

// SubmitIntake coerces manual submissions and pushes the approved ones
// through the same pipeline as scraped postings.
func (s Service) SubmitIntake(ctx context.Context, records []map[string]string) error {
	ctx, span := tracer.Start(ctx, "SubmitIntake")
	defer span.End()

	var postings []Posting
	for _, record := range records {
		submission, err := CoerceRecord(record)
		if err != nil {
			slog.ErrorContext(ctx, "skipping broken submission", "err", err)
			continue
		}
		if !submission.IsApproved {
			continue
		}
		postings = append(postings, submission.Posting())
	}

	processed, _ := Run(ctx, postings, s.stages)
	if err := s.persist(ctx, processed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store postings")
		return err
	}
	span.SetAttributes(attribute.Int("stored", len(processed)))
	return nil
}

func (s Service) persist(ctx context.Context, postings []Posting) error {
	now := timezone.Now()
	for _, posting := range postings {
		err := s.store.UpsertPosting(ctx, club.Posting{
			ID:              posting.ID,
			Title:           posting.Title,
			URL:             posting.Link,
			CompanyName:     posting.CompanyName,
			CompanyURL:      posting.CompanyLink,
			LocationsRaw:    posting.LocationsRaw,
			Locations:       posting.Locations,
			EmploymentTypes: posting.EmploymentTypes,
			PostedAt:        posting.PostedAt,
			DescriptionHTML: posting.DescriptionHTML,
			DescriptionText: posting.DescriptionText,
			Remote:          posting.Remote,
			Source:          posting.Source,
			FirstSeenOn:     now,
			LastSeenOn:      now,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
