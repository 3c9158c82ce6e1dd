// Package ytdlp wraps the yt-dlp command line tool for metadata lookups
// and supervised media downloads
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"tubefetch/internal/progress"

	"github.com/goccy/go-json"
)

const defaultBinary = "yt-dlp"

// Mode selects what the engine should produce.
type Mode string

const (
	ModeAudio Mode = "audio"
	ModeVideo Mode = "video"
)

// Video quality keys understood by FormatSelector.
const (
	Quality480  = "480p"
	Quality720  = "720p"
	Quality1080 = "1080p"
)

// Metadata is the subset of yt-dlp's --dump-json output the bot needs.
type Metadata struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Uploader string  `json:"uploader"`
	URL      string  `json:"webpage_url"`
}

// Options describes one download job.
type Options struct {
	URL     string
	Mode    Mode
	Quality string // video only, one of the Quality constants
	Dir     string // output directory
	JobID   string // unique prefix for the output template
}

// Result is a finished download: the artifact on disk and its title.
type Result struct {
	FilePath string
	Title    string
}

// ExtractionError is an engine-reported failure with the trailing stderr
// output attached for the user-facing error text.
type ExtractionError struct {
	URL    string
	Output string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("extraction of %s failed: %v: %s", e.URL, e.Err, e.Output)
	}
	return fmt.Sprintf("extraction of %s failed: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Client invokes the yt-dlp binary. One Client is shared by all jobs;
// serialization happens in the job runner, not here.
type Client struct {
	binary string
	logger *slog.Logger
}

// New creates a yt-dlp client.
func New() *Client {
	return &Client{
		binary: defaultBinary,
		logger: slog.Default(),
	}
}

// CheckBinary verifies that yt-dlp is on PATH.
func (c *Client) CheckBinary() error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return fmt.Errorf("%s not found: %w", c.binary, err)
	}
	return nil
}

// FetchMetadata fetches video metadata without downloading anything.
func (c *Client) FetchMetadata(ctx context.Context, url string) (*Metadata, error) {
	cmd := exec.CommandContext(ctx, c.binary,
		"--dump-json",
		"--no-playlist",
		"--no-warnings",
		url,
	)

	output, err := cmd.Output()
	if err != nil {
		var stderr string
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = tailLines(string(exitErr.Stderr), 3)
		}
		return nil, &ExtractionError{URL: url, Output: stderr, Err: err}
	}

	var meta Metadata
	if err := json.Unmarshal(output, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &meta, nil
}

// Download runs the blocking extraction. hook is invoked synchronously
// from this goroutine for every progress line yt-dlp prints, plus a final
// finished event before post-processing output is located.
func (c *Client) Download(ctx context.Context, opts Options, hook func(progress.Event)) (*Result, error) {
	template := filepath.Join(opts.Dir, opts.JobID+"_%(title)s.%(ext)s")

	args := []string{
		"--newline",
		"--progress",
		"--no-playlist",
		"--no-warnings",
		"--socket-timeout", "60",
		"--retries", "5",
		"--fragment-retries", "5",
		"--file-access-retries", "3",
		"-o", template,
	}
	args = append(args, formatArgs(opts.Mode, opts.Quality)...)
	args = append(args, opts.URL)

	cmd := exec.CommandContext(ctx, c.binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, &ExtractionError{URL: opts.URL, Err: err}
	}

	var stderrBuf bytes.Buffer
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		io.Copy(&stderrBuf, stderrPipe) //nolint:errcheck // best effort capture
	}()

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if ev, ok := ParseProgressLine(line); ok && hook != nil {
			hook(ev)
		}
	}

	<-stderrDone
	if err := cmd.Wait(); err != nil {
		return nil, &ExtractionError{
			URL:    opts.URL,
			Output: tailLines(stderrBuf.String(), 3),
			Err:    err,
		}
	}

	if hook != nil {
		hook(progress.Event{Status: progress.StatusFinished})
	}

	path, err := c.locateArtifact(opts)
	if err != nil {
		return nil, err
	}

	return &Result{
		FilePath: path,
		Title:    titleFromArtifact(path, opts.JobID),
	}, nil
}

// locateArtifact finds the produced file by the job id prefix. The final
// extension is decided by the engine's merge/transcode step, so the
// template extension cannot be trusted.
func (c *Client) locateArtifact(opts Options) (string, error) {
	matches, err := filepath.Glob(filepath.Join(opts.Dir, opts.JobID+"_*"))
	if err != nil {
		return "", fmt.Errorf("failed to search for artifact: %w", err)
	}
	if len(matches) == 0 {
		return "", &ExtractionError{URL: opts.URL, Err: fmt.Errorf("no output file produced")}
	}
	if len(matches) > 1 {
		c.logger.Warn("Multiple artifacts for job, using first", "job_id", opts.JobID, "count", len(matches))
	}
	return matches[0], nil
}

// formatArgs builds the engine's format selection arguments. The selector
// chain lets the engine fall back to the closest available quality.
func formatArgs(mode Mode, quality string) []string {
	if mode == ModeAudio {
		return []string{
			"-f", "bestaudio/best",
			"-x",
			"--audio-format", "mp3",
			"--audio-quality", "192K",
		}
	}
	return []string{
		"-f", FormatSelector(quality),
		"--merge-output-format", "mp4",
	}
}

// FormatSelector maps a quality key to a yt-dlp format selector.
func FormatSelector(quality string) string {
	heights := map[string]int{
		Quality480:  480,
		Quality720:  720,
		Quality1080: 1080,
	}
	h, ok := heights[quality]
	if !ok {
		h = 720
	}
	return fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", h, h)
}

// ParseProgressLine parses one yt-dlp stdout line into a progress event.
// Lines look like
//
//	[download]  42.5% of ~  10.00MiB at    1.20MiB/s ETA 00:05
//
// with the size possibly estimated (~ prefix) and speed/ETA sometimes
// reported as Unknown. Anything that is not a download progress line is
// rejected.
func ParseProgressLine(line string) (progress.Event, bool) {
	line = progress.StripANSI(line)
	if !strings.HasPrefix(line, "[download]") || !strings.Contains(line, "%") {
		return progress.Event{}, false
	}

	ev := progress.Event{Status: progress.StatusDownloading}
	fields := strings.Fields(line)
	for i, f := range fields {
		switch {
		case strings.HasSuffix(f, "%"):
			ev.PercentStr = f
		case f == "of" && i+1 < len(fields):
			size := fields[i+1]
			if size == "~" && i+2 < len(fields) {
				size = fields[i+2]
			}
			ev.TotalBytes = parseByteSize(size)
		case f == "at" && i+1 < len(fields):
			ev.SpeedStr = fields[i+1]
		case f == "ETA" && i+1 < len(fields):
			ev.ETAStr = fields[i+1]
		}
	}

	if ev.PercentStr == "" {
		return progress.Event{}, false
	}
	if ev.TotalBytes > 0 {
		pct := progress.ParsePercent(ev.PercentStr)
		ev.DownloadedBytes = int64(pct / 100 * float64(ev.TotalBytes))
	}
	return ev, true
}

// parseByteSize converts yt-dlp size strings such as "10.00MiB" to bytes.
// Unknown or malformed sizes yield 0.
func parseByteSize(s string) int64 {
	s = strings.TrimPrefix(strings.TrimSpace(s), "~")

	units := []struct {
		suffix string
		factor float64
	}{
		{"GiB", 1 << 30},
		{"MiB", 1 << 20},
		{"KiB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(s, u.suffix) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, u.suffix), 64)
		if err != nil {
			return 0
		}
		return int64(v * u.factor)
	}
	return 0
}

// titleFromArtifact recovers the display title from the artifact name by
// dropping the job id prefix and the extension.
func titleFromArtifact(path, jobID string) string {
	base := filepath.Base(path)
	base = strings.TrimPrefix(base, jobID+"_")
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// tailLines keeps the last n non-empty lines of engine output for error
// messages; full yt-dlp stderr is far too long for a chat message.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	var kept []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, strings.TrimSpace(l))
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "\n")
}
