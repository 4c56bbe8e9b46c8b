package docsource

import (
	"context"
	"crypto/sha1" //nolint:gosec // git object ids are sha1
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemSource reads documents from a local checkout of the legal repository.
type FilesystemSource struct {
	baseDir string
}

// NewFilesystemSource verifies that baseDir exists and returns a handle.
func NewFilesystemSource(baseDir string) (*FilesystemSource, error) {
	if baseDir == "" {
		baseDir = "./legal"
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve source directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source directory %s is not a directory", abs)
	}
	return &FilesystemSource{baseDir: abs}, nil
}

// ListFiles lists the entries of folder relative to the base directory.
func (s *FilesystemSource) ListFiles(ctx context.Context, folder string) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.resolve(folder)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(folder)
		}
		return nil, fmt.Errorf("list folder %s: %w", folder, err)
	}
	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		files = append(files, File{
			Name:   entry.Name(),
			Path:   joinSlash(folder, entry.Name()),
			IsFile: entry.Type().IsRegular(),
		})
	}
	return files, nil
}

// FetchFile reads a file and computes its git blob identity.
func (s *FilesystemSource) FetchFile(ctx context.Context, path string) (*FileContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return &FileContent{Text: string(data), ContentIdentity: BlobSHA(data)}, nil
}

// LatestContentIdentity returns the git blob identity of path, "" when absent.
func (s *FilesystemSource) LatestContentIdentity(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := s.read(path)
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return BlobSHA(data), nil
}

// CommitMessage is unknown for a plain checkout.
func (s *FilesystemSource) CommitMessage(context.Context, string) (string, error) {
	return "", nil
}

// BlobSHA computes the git object id of a blob, the same value GitHub reports as a file sha.
func BlobSHA(data []byte) string {
	h := sha1.New() //nolint:gosec
	fmt.Fprintf(h, "blob %d\x00", len(data))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *FilesystemSource) read(path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, notFound(path)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (s *FilesystemSource) resolve(rel string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(s.baseDir, filepath.FromSlash(cleanPath(rel))))
	if cleaned != s.baseDir && !strings.HasPrefix(cleaned, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the source directory", rel)
	}
	return cleaned, nil
}

func joinSlash(folder, name string) string {
	folder = cleanPath(folder)
	if folder == "" {
		return name
	}
	return folder + "/" + name
}
