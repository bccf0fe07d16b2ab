// Package clipboard copies answers to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
)

// ErrNothingToCopy is returned for blank text
var ErrNothingToCopy = errors.New("nothing to copy")

// writeAll is the system clipboard writer; tests swap it
var writeAll = clipboard.WriteAll

// Unsupported reports whether no clipboard utility is available
func Unsupported() bool {
	return clipboard.Unsupported
}

// Copy writes text to the clipboard
func Copy(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrNothingToCopy
	}
	if err := writeAll(text); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return nil
}
