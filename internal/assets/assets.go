// Package assets loads the bot's static resources: prompt templates,
// canned messages, and images, all keyed by a short name.
//
// The key vocabulary is fixed by the dispatcher, so a missing asset is a
// deployment problem, not something to recover from at runtime. The entry
// point verifies the full key set at startup via Verify.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a named asset does not exist
var ErrNotFound = errors.New("asset not found")

// Library reads assets from a root directory with the layout:
//
//	prompts/<name>.txt
//	messages/<name>.txt
//	images/<name>.jpg
type Library struct {
	root string
}

// New creates a library over the given root directory
func New(root string) *Library {
	return &Library{root: root}
}

// Prompt returns the prompt template with the given name
func (l *Library) Prompt(name string) (string, error) {
	return l.readText(filepath.Join("prompts", name+".txt"))
}

// Message returns the canned message with the given name
func (l *Library) Message(name string) (string, error) {
	return l.readText(filepath.Join("messages", name+".txt"))
}

// Image returns the raw bytes of the image with the given name
func (l *Library) Image(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.root, "images", name+".jpg"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: image %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read image %q: %w", name, err)
	}
	return data, nil
}

func (l *Library) readText(rel string) (string, error) {
	data, err := os.ReadFile(filepath.Join(l.root, rel))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return "", fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// Verify checks that every listed prompt and message exists.
// Image keys are not verified: a missing image degrades to a skipped send.
func (l *Library) Verify(prompts, messages []string) error {
	for _, name := range prompts {
		if _, err := l.Prompt(name); err != nil {
			return err
		}
	}
	for _, name := range messages {
		if _, err := l.Message(name); err != nil {
			return err
		}
	}
	return nil
}
