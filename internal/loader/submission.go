package loader

import (
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

// ErrUnsupportedSubmission is returned for files that are not plain text
// or not one of the accepted extensions.
var ErrUnsupportedSubmission = errors.New("unsupported submission type")

// DefaultMaxSubmissionBytes caps a single submission file.
const DefaultMaxSubmissionBytes int64 = 2 << 20

var supportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".py":   true,
	".js":   true,
	".css":  true,
	".html": true,
}

// Submission is one student submission keyed by its file name.
type Submission struct {
	ID   string
	Text string
}

// SubmissionLoader extracts plain text from submission files.
type SubmissionLoader struct {
	sanitizer *bluemonday.Policy
	maxSize   int64
	logger    zerolog.Logger
}

// NewSubmissionLoader constructs a loader. maxSize <= 0 selects DefaultMaxSubmissionBytes.
func NewSubmissionLoader(maxSize int64, logger zerolog.Logger) *SubmissionLoader {
	if maxSize <= 0 {
		maxSize = DefaultMaxSubmissionBytes
	}
	return &SubmissionLoader{
		sanitizer: bluemonday.StrictPolicy(),
		maxSize:   maxSize,
		logger:    logger.With().Str("component", "submission_loader").Logger(),
	}
}

// Supported reports whether name has an accepted extension.
func Supported(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// LoadDir loads every supported regular file in dir, sorted by name.
// Unsupported files are skipped with a warning.
func (l *SubmissionLoader) LoadDir(dir string) ([]Submission, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read submissions dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	submissions := make([]Submission, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !Supported(name) {
			l.logger.Warn().Str("file", name).Msg("skipping unsupported file")
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read submission %s: %w", name, err)
		}

		text, err := l.Extract(name, data)
		if errors.Is(err, ErrUnsupportedSubmission) {
			l.logger.Warn().Err(err).Str("file", name).Msg("skipping unsupported file")
			continue
		}
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, Submission{ID: name, Text: text})
	}

	l.logger.Info().Str("dir", dir).Int("count", len(submissions)).Msg("submissions loaded")
	return submissions, nil
}

// Extract returns the text content of a submission file. The content must be
// detected as text; HTML is reduced to its visible text.
func (l *SubmissionLoader) Extract(name string, data []byte) (string, error) {
	if !Supported(name) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSubmission, filepath.Ext(name))
	}
	if int64(len(data)) > l.maxSize {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrUnsupportedSubmission, name, l.maxSize)
	}

	mime := mimetype.Detect(data)
	if !isText(mime) {
		return "", fmt.Errorf("%w: %s detected as %s", ErrUnsupportedSubmission, name, mime.String())
	}

	if strings.EqualFold(filepath.Ext(name), ".html") {
		return l.StripHTML(string(data)), nil
	}
	return string(data), nil
}

// StripHTML removes markup and collapses whitespace.
func (l *SubmissionLoader) StripHTML(markup string) string {
	text := html.UnescapeString(l.sanitizer.Sanitize(markup))
	return strings.Join(strings.Fields(text), " ")
}

func isText(mime *mimetype.MIME) bool {
	for m := mime; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
