package moderation

import (
	"bufio"
	"bytes"
	"chat-relay/errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// CensoredData carries the result of the loading process including metadata for logging.
type CensoredData struct {
	Words []string
	Files []string
}

// CensoredLoader reads blacklisted words, one per line, from a file system.
type CensoredLoader struct {
	fs fs.FS
}

func NewCensoredLoader(f fs.FS) *CensoredLoader {
	return &CensoredLoader{fs: f}
}

// LoadPath loads a single dictionary file or every file of a directory from disk.
func LoadPath(path string) (*CensoredData, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return NewCensoredLoader(os.DirFS(path)).LoadAll(".")
	}
	return NewCensoredLoader(os.DirFS(filepath.Dir(path))).LoadFiles(filepath.Base(path))
}

// LoadAll parses every regular file of the directory, subdirectories are skipped.
func (l *CensoredLoader) LoadAll(dir string) (*CensoredData, error) {
	entries, err := fs.ReadDir(l.fs, dir)
	if err != nil {
		return nil, err
	}
	files := lo.FilterMap(entries, func(entry fs.DirEntry, _ int) (string, bool) {
		return filepath.ToSlash(filepath.Join(dir, entry.Name())), !entry.IsDir()
	})
	return l.LoadFiles(files...)
}

// LoadFiles parses the given files into a unique, sorted list of words.
func (l *CensoredLoader) LoadFiles(names ...string) (*CensoredData, error) {
	uniqueWords := make(map[string]struct{})

	for _, name := range names {
		data, err := fs.ReadFile(l.fs, name)
		if err != nil {
			return nil, err
		}

		// Use a scanner to handle different line endings (\n vs \r\n) correctly
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if strings.ContainsRune(line, '\x00') {
				return nil, fmt.Errorf("%w: %s", errors.ErrInvalidWords, name)
			}
			uniqueWords[line] = struct{}{}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(uniqueWords) == 0 {
		return nil, errors.ErrEmptyWords
	}

	words := lo.Keys(uniqueWords)
	slices.Sort(words)
	return &CensoredData{Words: words, Files: names}, nil
}
