// Package dotdir locates the dechat state directory and keeps the chat
// client's session file in it.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the state directory looked up in the working directory and
// then in the user's home.
const DirName = ".dechat"

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target resolves the state directory and makes sure it exists. An
// explicit dir wins; otherwise ./.dechat is used when present and
// $HOME/.dechat is used (and created) in every other case.
// The returned path is absolute.
func (m *Manager) Target(dir string) (string, error) {
	if dir == "" {
		var err error
		if dir, err = m.discover(); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating state directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// discover returns ./.dechat if it is a directory, else $HOME/.dechat.
func (m *Manager) discover() (string, error) {
	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, DirName)
		if info, err := os.Stat(local); err == nil && info.IsDir() {
			return local, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// path joins name onto the resolved state directory.
func (m *Manager) path(dir, name string) (string, error) {
	target, err := m.Target(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(target, name), nil
}
