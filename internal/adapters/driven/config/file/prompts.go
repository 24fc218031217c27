package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads summariser prompts from user-editable files on disk.
// Prompts are loaded from a configurable directory with fallback to embedded defaults.
//
// The store uses lazy initialisation - files are only created when first accessed,
// not in the constructor. This makes testing easier and avoids unexpected I/O.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts contains embedded default prompts.
// These are used when user files don't exist and as the initial content for new files.
//
// All templates take two %s placeholders: the service type and the transcript.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptSummaryDefault: `Summarise this %s transcript. Capture the main scripture references,
the central message, and any practical applications. Keep it under four paragraphs.

Transcript:
%s`,

	driven.PromptSummarySunday: `Summarise this %s sermon transcript. Open with the main scripture passage,
then the central message in two or three paragraphs, then a short list of practical applications.

Transcript:
%s`,

	driven.PromptSummaryBibleStudy: `Summarise this %s session. Focus on the passages studied, the questions
raised, and the conclusions the group reached. Use short paragraphs.

Transcript:
%s`,

	driven.PromptSummaryMidweek: `Summarise this %s service transcript in two or three paragraphs. Lead with
the theme, then the key points and any scripture references.

Transcript:
%s`,

	driven.PromptSummaryConference: `Summarise this %s talk. Name the speaker's main thesis, the supporting
points in order, and the closing charge to the audience.

Transcript:
%s`,

	driven.PromptSummaryGuest: `Summarise this %s message. Note the speaker's background if mentioned, the
core message, and the scriptures used.

Transcript:
%s`,

	driven.PromptSummaryYouth: `Summarise this %s message in plain, direct language. Lead with the big idea,
then the illustrations used, then the takeaway challenge.

Transcript:
%s`,
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.tabletnotes/prompts/.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".tabletnotes", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// On first call, initialises the prompt directory and creates default files.
// Returns cached value if available, otherwise loads from file.
// Falls back to embedded default if file doesn't exist.
func (s *PromptStore) Load(name string) (string, error) {
	// Ensure directory and defaults exist (lazy init)
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		// Fall back to embedded defaults if init failed
		if prompt, ok := defaultPrompts[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	// Check cache first (read lock)
	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	// Load from file (no lock held during I/O)
	prompt, err := s.loadFromFile(name)
	if err != nil {
		// Fall back to embedded default
		if defaultPrompt, ok := defaultPrompts[name]; ok {
			return defaultPrompt, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	// Cache the result (write lock)
	// Use double-check pattern to avoid overwriting concurrent loads
	s.mu.Lock()
	if _, ok := s.cache[name]; !ok {
		s.cache[name] = prompt
	} else {
		// Another goroutine loaded it first, use their value
		prompt = s.cache[name]
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and default files.
// Called once via sync.Once on first Load().
func (s *PromptStore) initialise() {
	// Create directory
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	// Create default prompt files (only if they don't exist)
	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	// Create README
	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	path := filepath.Join(s.promptDir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# TabletNotes Summary Prompts

This directory contains customisable prompts used when generating sermon summaries.

## Files

One ` + "`.txt`" + ` file per service type. The file name matches the service type the
app records (e.g. ` + "`summary_sunday_service.txt`" + `, ` + "`summary_bible_study.txt`" + `).
` + "`summary_default.txt`" + ` covers anything without a dedicated template.

## Customisation

Edit any file to change the tone or structure of generated summaries.
Changes take effect on the next summary request.

## Format Placeholders

Each template uses two Go fmt placeholders, in order:
- ` + "`%s`" + ` - The service type
- ` + "`%s`" + ` - The transcript text

Ensure customised prompts keep both placeholders.
`
	return os.WriteFile(path, []byte(content), 0600)
}
