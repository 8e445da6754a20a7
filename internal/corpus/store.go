package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrCorpusUnavailable means the corpus payload is missing or structurally
// invalid. Requests that need retrieval cannot proceed without it.
var ErrCorpusUnavailable = errors.New("corpus unavailable")

// Entry is one pre-embedded chunk of the knowledge base.
type Entry struct {
	ID         string    `json:"id"`
	SourceFile string    `json:"sourceFile"`
	RangeStart int       `json:"rangeStart"`
	RangeEnd   int       `json:"rangeEnd"`
	Embedding  []float32 `json:"embedding"`
}

// Corpus is the full embedded chunk set, resident for the process lifetime.
type Corpus struct {
	Dimension int     `json:"dimension"`
	Entries   []Entry `json:"entries"`
}

// Store loads the corpus exactly once and hands the same in-memory
// reference to every caller. The load-once guard is explicit so tests can
// inject a fresh store per test instead of relying on a package global.
type Store struct {
	path string
	url  string

	httpClient *http.Client

	once   sync.Once
	corpus *Corpus
	err    error
}

func NewStore(path, url string) *Store {
	return &Store{
		path: path,
		url:  url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Load returns the memoized corpus, reading it on the first call. A local
// file takes priority over the network fetch.
func (s *Store) Load(ctx context.Context) (*Corpus, error) {
	s.once.Do(func() {
		start := time.Now()
		s.corpus, s.err = s.read(ctx)
		if s.err != nil {
			return
		}
		log.Info().
			Int("entries", len(s.corpus.Entries)).
			Int("dimension", s.corpus.Dimension).
			Dur("duration", time.Since(start)).
			Msg("Corpus loaded")
	})
	return s.corpus, s.err
}

func (s *Store) read(ctx context.Context) (*Corpus, error) {
	var data []byte
	var err error

	if s.path != "" {
		if data, err = os.ReadFile(s.path); err != nil && s.url == "" {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrCorpusUnavailable, s.path, err)
		}
	}

	if data == nil {
		if s.url == "" {
			return nil, fmt.Errorf("%w: no corpus path or url configured", ErrCorpusUnavailable)
		}
		if data, err = s.fetch(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorpusUnavailable, err)
		}
	}

	var c Corpus
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: unmarshal payload: %v", ErrCorpusUnavailable, err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// fetch pulls the corpus over HTTP with caching disabled so a re-published
// corpus is observable on the next process start.
func (s *Store) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching corpus: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("corpus fetch returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (c *Corpus) validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: non-positive dimension %d", ErrCorpusUnavailable, c.Dimension)
	}
	if len(c.Entries) == 0 {
		return fmt.Errorf("%w: empty entry set", ErrCorpusUnavailable)
	}
	for _, e := range c.Entries {
		if len(e.Embedding) != c.Dimension {
			return fmt.Errorf("%w: entry %s has dimension %d, corpus dimension is %d",
				ErrCorpusUnavailable, e.ID, len(e.Embedding), c.Dimension)
		}
		if e.RangeStart > e.RangeEnd {
			return fmt.Errorf("%w: entry %s has inverted range [%d,%d]",
				ErrCorpusUnavailable, e.ID, e.RangeStart, e.RangeEnd)
		}
	}
	return nil
}
