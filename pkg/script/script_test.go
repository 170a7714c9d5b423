package script

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/test/path")
	if loader == nil {
		t.Fatal("NewLoader returned nil")
	}
	if loader.basePath != "/test/path" {
		t.Errorf("expected basePath '/test/path', got %q", loader.basePath)
	}
	if loader.Encoding != "" {
		t.Errorf("expected no default encoding, got %q", loader.Encoding)
	}
}

func TestFindScriptFiles_CaseInsensitive(t *testing.T) {
	tmpDir := t.TempDir()

	testFiles := []string{
		"tower.us",
		"archer.US",
		"wall.Us",
		"other.txt", // should not be detected
	}
	for _, filename := range testFiles {
		filePath := filepath.Join(tmpDir, filename)
		if err := os.WriteFile(filePath, []byte("x = 1\n"), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
	}

	loader := NewLoader(tmpDir)
	scriptFiles, err := loader.findScriptFiles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(scriptFiles) != 3 {
		t.Errorf("expected 3 script files, got %d", len(scriptFiles))
	}
	for _, file := range scriptFiles {
		if filepath.Base(file) == "other.txt" {
			t.Error("other.txt should not be detected as a script file")
		}
	}
}

func TestLoadScript_UTF8NoTranscode(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "tower.us")
	testContent := "health = 100\ndamage = 10\n"

	if err := os.WriteFile(testFile, []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	loader := NewLoader(tmpDir)
	s, err := loader.loadScript("tower.us")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.FileName != "tower.us" {
		t.Errorf("expected filename 'tower.us', got %q", s.FileName)
	}
	if s.Content != testContent {
		t.Errorf("content mismatch:\nexpected: %q\ngot: %q", testContent, s.Content)
	}
	if s.Size == 0 {
		t.Error("script size should not be 0")
	}
}

func TestLoadScript_ShiftJISOptIn(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "note.us")
	testContent := "# これはコメントです\nx = 1\n"

	encoder := japanese.ShiftJIS.NewEncoder()
	shiftJISContent, _, err := transform.String(encoder, testContent)
	if err != nil {
		t.Fatalf("failed to encode to Shift-JIS: %v", err)
	}
	if err := os.WriteFile(testFile, []byte(shiftJISContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	loader := NewLoader(tmpDir)
	loader.Encoding = EncodingShiftJIS
	s, err := loader.loadScript("note.us")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Content != testContent {
		t.Errorf("content mismatch:\nexpected: %q\ngot: %q", testContent, s.Content)
	}
}

func TestLoadScript_ShiftJISBytesLeftRawWithoutOptIn(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "note.us")
	testContent := "x = 1\n"

	if err := os.WriteFile(testFile, []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	loader := NewLoader(tmpDir)
	s, err := loader.loadScript("note.us")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Content != testContent {
		t.Errorf("ASCII content should pass through unchanged, got %q", s.Content)
	}
}

func TestLoadAllScripts(t *testing.T) {
	tmpDir := t.TempDir()

	testFiles := map[string]string{
		"main.us":   "x = 1\n",
		"sub.US":    "y = 2\n",
		"helper.Us": "z = 3\n",
	}
	for filename, content := range testFiles {
		filePath := filepath.Join(tmpDir, filename)
		if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
	}

	loader := NewLoader(tmpDir)
	scripts, err := loader.LoadAllScripts()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(scripts) != 3 {
		t.Errorf("expected 3 scripts, got %d", len(scripts))
	}

	foundFiles := make(map[string]bool)
	for _, s := range scripts {
		foundFiles[s.FileName] = true
	}
	for filename := range testFiles {
		if !foundFiles[filename] {
			t.Errorf("script file %q was not loaded", filename)
		}
	}
}

func TestLoadAllScripts_NoScripts(t *testing.T) {
	tmpDir := t.TempDir()

	loader := NewLoader(tmpDir)
	_, err := loader.LoadAllScripts()
	if err == nil {
		t.Error("expected error when no script files found, got nil")
	}
}

func TestLoadAllScripts_NonExistentDirectory(t *testing.T) {
	loader := NewLoader("/nonexistent/path")
	_, err := loader.LoadAllScripts()
	if err == nil {
		t.Error("expected error for nonexistent directory, got nil")
	}
}

func TestConvertShiftJISToUTF8(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "japanese text", input: "こんにちは世界", wantErr: false},
		{name: "ascii", input: "Hello World 123", wantErr: false},
		{name: "mixed", input: "Hello こんにちは 123", wantErr: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoder := japanese.ShiftJIS.NewEncoder()
			shiftJISData, _, err := transform.String(encoder, tc.input)
			if err != nil {
				t.Fatalf("failed to encode to Shift-JIS: %v", err)
			}

			result, err := convertShiftJISToUTF8([]byte(shiftJISData))
			if (err != nil) != tc.wantErr {
				t.Errorf("convertShiftJISToUTF8() error = %v, wantErr %v", err, tc.wantErr)
				return
			}
			if !tc.wantErr && result != tc.input {
				t.Errorf("convertShiftJISToUTF8() = %q, want %q", result, tc.input)
			}
		})
	}
}
