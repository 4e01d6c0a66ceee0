package mailclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/emersion/go-imap"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mailpeek/models"
	"mailpeek/utils"
)

// FetchResult carries the summaries of one fetch, most recent first.
// Warnings counts messages that came back as ParseFailed placeholders;
// Total is the mailbox size at select time, which may exceed len(Summaries).
type FetchResult struct {
	Summaries []models.MessageSummary `json:"summaries"`
	Warnings  int                     `json:"warnings"`
	Total     int                     `json:"total"`
	TraceID   string                  `json:"trace_id"`
}

type parseJob struct {
	rank int
	msg  *imap.Message
}

// fetchSummaries retrieves the most recent limit summaries over one wire
// FETCH, fanning parsing out to at most ceiling workers. Results are keyed
// by recency rank while in flight, so output order never depends on which
// parse finishes first.
func fetchSummaries(ctx context.Context, s *Session, limit, ceiling int) (*FetchResult, error) {
	if limit <= 0 {
		return nil, &ArgumentError{Name: "limit", Reason: "must be positive"}
	}
	if ceiling < 1 {
		ceiling = defaultFetchConcurrency
	}
	if err := ctx.Err(); err != nil {
		return nil, &TimeoutError{Op: "fetch", Cause: err}
	}

	traceID := uuid.NewString()
	log := utils.Log.WithField("trace_id", traceID)

	count, err := s.reselect(ctx)
	if err != nil {
		var te *TimeoutError
		if errors.As(err, &te) {
			return nil, err
		}
		var se *StateError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &FetchError{Cause: err}
	}
	if count == 0 {
		return &FetchResult{Summaries: []models.MessageSummary{}, TraceID: traceID}, nil
	}
	total := int(count)

	from := uint32(1)
	if count > uint32(limit) {
		from = count - uint32(limit) + 1
	}
	n := int(count - from + 1)

	section := &imap.BodySectionName{Peek: true}
	messages, done, err := s.fetchWindow(from, count, section)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.MessageSummary, n)
	filled := make([]bool, n)
	jobs := make(chan parseJob)
	var wg sync.WaitGroup
	var warnings int32
	for i := 0; i < ceiling; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				sum := parseSummary(job.msg)
				if sum.ParseFailed {
					atomic.AddInt32(&warnings, 1)
				}
				// each rank is dispatched at most once, so no two
				// workers share a slot
				summaries[job.rank] = sum
				filled[job.rank] = true
			}
		}()
	}

	timedOut := false
consume:
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				break consume
			}
			rank := int(count) - int(msg.SeqNum)
			if rank < 0 || rank >= n {
				continue
			}
			select {
			case jobs <- parseJob{rank: rank, msg: msg}:
			case <-ctx.Done():
				timedOut = true
				break consume
			}
		case <-ctx.Done():
			timedOut = true
			break consume
		}
	}
	close(jobs)
	wg.Wait()

	if timedOut {
		// drain so the wire goroutine finishes cleanly and the conn
		// stays usable for the next operation
		go func() {
			for range messages {
			}
			if err := <-done; err != nil {
				log.WithError(err).Debug("abandoned fetch stream finished")
			}
		}()
		return nil, &TimeoutError{Op: "fetch", Cause: ctx.Err()}
	}

	wireErr := <-done

	out := make([]models.MessageSummary, 0, n)
	for rank, ok := range filled {
		if ok {
			out = append(out, summaries[rank])
		}
	}
	result := &FetchResult{Summaries: out, Warnings: int(warnings), Total: total, TraceID: traceID}
	if wireErr != nil {
		return result, &FetchError{Succeeded: len(out), Warnings: result.Warnings, Cause: wireErr}
	}

	log.WithFields(logrus.Fields{
		"count":    len(out),
		"warnings": result.Warnings,
	}).Info("fetched message summaries")
	return result, nil
}
