// Package clipboard wraps the system clipboard and bounds how long a
// copied secret stays on it.
package clipboard

import "github.com/atotto/clipboard"

// Clipboard is the minimal clipboard surface the vault needs.
type Clipboard interface {
	WriteText(text string) error
	ReadText() (string, error)
	Clear() error
}

// System is the desktop clipboard.
type System struct{}

// WriteText places text on the system clipboard.
func (System) WriteText(text string) error {
	return clipboard.WriteAll(text)
}

// ReadText returns the current clipboard contents.
func (System) ReadText() (string, error) {
	return clipboard.ReadAll()
}

// Clear empties the clipboard.
func (System) Clear() error {
	return clipboard.WriteAll("")
}
