package runner

import (
	"context"

	"tubefetch/internal/progress"
	"tubefetch/internal/ytdlp"
)

// Extractor defines the extraction engine operations used by the runner
//
//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks
type Extractor interface {
	Download(ctx context.Context, opts ytdlp.Options, hook func(progress.Event)) (*ytdlp.Result, error)
}

// ProgressSink receives rendered progress text for delivery to the user,
// typically by editing the chat status message.
type ProgressSink interface {
	PublishProgress(text string)
}
