// Package script locates and loads unit-script source files from a
// directory, using case-insensitive extension matching so script trees
// assembled on any platform load the same way.
package script

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// ScriptExt is the file extension a Loader looks for, matched
// case-insensitively.
const ScriptExt = ".us"

// EncodingShiftJIS selects the optional Shift-JIS transcode path in Loader,
// for legacy script archives authored on Japanese Windows toolchains.
const EncodingShiftJIS = "shift_jis"

// Script is a single loaded unit-script source file.
type Script struct {
	FileName string // base name, e.g. "tower.us"
	Content  string // UTF-8 source text
	Size     int64  // file size in bytes, as reported by the file system
}

// Loader discovers and reads unit-script files under a directory.
type Loader struct {
	basePath string

	// Encoding selects a transcode step applied to every file before it is
	// handed to the lexer. Empty (the default) means the file is already
	// UTF-8/ASCII and is read verbatim, the common case. Set to
	// EncodingShiftJIS to transcode legacy Shift-JIS-authored scripts; kept
	// opt-in so the ordinary path pays no conversion cost.
	Encoding string
}

// NewLoader creates a Loader rooted at basePath.
func NewLoader(basePath string) *Loader {
	return &Loader{basePath: basePath}
}

// LoadAllScripts reads every ScriptExt file found under the loader's base
// path and returns them in directory-walk order.
func (l *Loader) LoadAllScripts() ([]Script, error) {
	scriptFiles, err := l.findScriptFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to find script files: %w", err)
	}

	if len(scriptFiles) == 0 {
		return nil, fmt.Errorf("no script files found in %s", l.basePath)
	}

	var scripts []Script
	for _, filePath := range scriptFiles {
		script, err := l.loadScript(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load script %s: %w", filePath, err)
		}
		scripts = append(scripts, *script)
	}

	return scripts, nil
}

// findScriptFiles walks basePath for ScriptExt files, matched
// case-insensitively, and returns their paths relative to basePath.
func (l *Loader) findScriptFiles() ([]string, error) {
	var scriptFiles []string

	err := filepath.Walk(l.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ScriptExt) {
			relPath, err := filepath.Rel(l.basePath, path)
			if err != nil {
				return err
			}
			scriptFiles = append(scriptFiles, relPath)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return scriptFiles, nil
}

// loadScript reads and, if Encoding is set, transcodes a single script file,
// given by its path relative to the loader's base path.
func (l *Loader) loadScript(relPath string) (*Script, error) {
	path := filepath.Join(l.basePath, relPath)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	content := string(data)
	if l.Encoding == EncodingShiftJIS {
		content, err = convertShiftJISToUTF8(data)
		if err != nil {
			return nil, fmt.Errorf("failed to convert encoding: %w", err)
		}
	}

	return &Script{
		FileName: filepath.Base(path),
		Content:  content,
		Size:     info.Size(),
	}, nil
}

// convertShiftJISToUTF8 decodes Shift-JIS bytes into a UTF-8 string.
func convertShiftJISToUTF8(data []byte) (string, error) {
	decoder := japanese.ShiftJIS.NewDecoder()
	reader := transform.NewReader(strings.NewReader(string(data)), decoder)

	utf8Data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to decode Shift-JIS: %w", err)
	}

	return string(utf8Data), nil
}
