package mail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/types"
)

// DirSource reads .eml files from a directory.
// Files carry no flags, so ModeUnread returns every file.
type DirSource struct {
	dir       string
	logger    *zap.Logger
	connected bool
}

// NewDirSource creates a source over dir
func NewDirSource(dir string, logger *zap.Logger) *DirSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirSource{dir: dir, logger: logger}
}

// Connect checks that the directory exists
func (s *DirSource) Connect(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return &FetchError{Message: fmt.Sprintf("cannot open %s", s.dir), Cause: err}
	}
	if !info.IsDir() {
		return &FetchError{Message: fmt.Sprintf("%s is not a directory", s.dir)}
	}
	s.connected = true
	return nil
}

// Fetch parses every *.eml file and applies the query window, keyword filter and cap
func (s *DirSource) Fetch(ctx context.Context, q FetchQuery) ([]types.Message, error) {
	if !s.connected {
		return nil, &FetchError{Message: "not connected"}
	}

	paths, err := filepath.Glob(filepath.Join(s.dir, "*.eml"))
	if err != nil {
		return nil, &FetchError{Message: "failed to list messages", Cause: err}
	}
	sort.Strings(paths)

	folder := filepath.Base(s.dir)
	since := q.Since()
	var out []types.Message
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := s.readFile(path)
		if err != nil {
			s.logger.Warn("skipping undecodable message", zap.String("path", path), zap.Error(err))
			continue
		}
		if m.ID == "" {
			m.ID = folder + ":" + strings.TrimSuffix(filepath.Base(path), ".eml")
		}
		m.Folder = folder

		if q.Mode == ModeRecent && !m.Date.IsZero() && m.Date.Before(since) {
			continue
		}
		if !matchesKeywords(m, q.Keywords) {
			continue
		}
		out = append(out, m)
	}

	return newest(Dedupe(out), q.MaxMessages), nil
}

func (s *DirSource) readFile(path string) (types.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Message{}, err
	}
	defer f.Close()
	return ParseMessage(f)
}

// Disconnect is a no-op
func (s *DirSource) Disconnect() error {
	s.connected = false
	return nil
}

// matchesKeywords reports whether any keyword appears in the subject or body (case-insensitive)
func matchesKeywords(m types.Message, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(m.Subject + "\n" + m.Body)
	filtered := false
	for _, k := range keywords {
		if k == "" {
			continue
		}
		filtered = true
		if strings.Contains(haystack, strings.ToLower(k)) {
			return true
		}
	}
	return !filtered
}
