// Package runner executes extraction jobs on a single worker and bridges
// their progress into the chat front-end
package runner

import (
	"context"
	"log/slog"
	"time"

	"tubefetch/internal/progress"
	"tubefetch/internal/ytdlp"
)

// defaultPollInterval is how often the supervising loop checks the
// reporter's mailbox. It must stay above the reporter's render debounce
// so ticks never race duplicate renders; missed ticks are lossy, the
// newest render always wins.
const defaultPollInterval = 3 * time.Second

// Request is one extraction job with its progress plumbing.
type Request struct {
	Options  ytdlp.Options
	Reporter *progress.Reporter
	Sink     ProgressSink
}

// Runner serializes all extraction work onto one worker goroutine. The
// admission gate bounds requests per chat; the single worker bounds
// actual parallelism to one job process-wide.
type Runner struct {
	extractor    Extractor
	logger       *slog.Logger
	jobs         chan func()
	pollInterval time.Duration
}

// New creates a runner backed by the given extraction engine. Start must
// be called before Run.
func New(extractor Extractor) *Runner {
	return &Runner{
		extractor:    extractor,
		logger:       slog.Default(),
		jobs:         make(chan func()),
		pollInterval: defaultPollInterval,
	}
}

// Start drains the job queue until the context is cancelled. Exactly one
// Start loop should run; it is the sole executor of extraction work.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("Starting extraction worker")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Extraction worker shutting down")
			return
		case job := <-r.jobs:
			job()
		}
	}
}

// Run submits the extraction to the worker and blocks until it finishes,
// supervising a polling loop that republishes fresh progress renders to
// the request's sink. The poller is stopped and joined before Run
// returns, so no render can land after the caller observes completion.
func (r *Runner) Run(ctx context.Context, req Request) (*ytdlp.Result, error) {
	pollCtx, stopPoll := context.WithCancel(context.Background())
	pollDone := make(chan struct{})
	go r.poll(pollCtx, req, pollDone)

	defer func() {
		stopPoll()
		<-pollDone
	}()

	type outcome struct {
		res *ytdlp.Result
		err error
	}
	results := make(chan outcome, 1)

	job := func() {
		res, err := r.extractor.Download(ctx, req.Options, req.Reporter.Observe)
		results <- outcome{res: res, err: err}
	}

	select {
	case r.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case out := <-results:
		return out.res, out.err
	case <-ctx.Done():
		// The engine call shares ctx and will unwind on its own; the
		// buffered channel keeps the worker from blocking on the send.
		return nil, ctx.Err()
	}
}

func (r *Runner) poll(ctx context.Context, req Request, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if text, ok := req.Reporter.Consume(); ok {
				req.Sink.PublishProgress(text)
			}
		}
	}
}
