// Package docsource reads legal document files from the repository they are
// authored in. Content identities are git blob SHAs regardless of backend.
package docsource

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound marks a folder or file that does not exist in the source.
var ErrNotFound = errors.New("docsource: not found")

// File is one entry of a folder listing.
type File struct {
	Name   string
	Path   string
	IsFile bool
}

// FileContent is the text of a file together with its content identity.
type FileContent struct {
	Text            string
	ContentIdentity string
}

// Source is the read-only contract the sync engine consumes.
type Source interface {
	ListFiles(ctx context.Context, folder string) ([]File, error)
	FetchFile(ctx context.Context, path string) (*FileContent, error)
	// LatestContentIdentity returns "" when the file does not exist.
	LatestContentIdentity(ctx context.Context, path string) (string, error)
	// CommitMessage returns the message of the latest change to path, "" when unknown.
	CommitMessage(ctx context.Context, path string) (string, error)
}

// RateLimitError reports that the source refuses further calls until Reset.
type RateLimitError struct {
	Reset time.Time
	Err   error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("docsource: rate limited until %s: %v", e.Reset.UTC().Format(time.RFC3339), e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err signals a missing folder or file.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// AsRateLimit extracts a RateLimitError from err.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

func notFound(path string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, path)
}
