package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// SaveContentTo writes content into fpath, creating its directory if needed.
func SaveContentTo(fpath, content string) error {
	if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
		return errors.Wrapf(err, "failed to create the directory of %v", fpath)
	}
	return errors.Wrapf(os.WriteFile(fpath, []byte(content), 0644), "failed to write %v", fpath)
}

// FileExists reports whether fpath exists and whether it is a directory.
func FileExists(fpath string) (exist, isDir bool) {
	info, err := os.Stat(fpath)
	if err != nil {
		return false, false
	}
	return true, info.IsDir()
}

// SQLFile is a statement stored in its own file, like `q1.sql`.
type SQLFile struct {
	Name string // file name without the .sql suffix
	Text string
}

// ReadSQLFiles reads every *.sql file of dir as one statement, ordered by file name.
func ReadSQLFiles(dir string) ([]SQLFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %v", dir)
	}
	var files []SQLFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %v", entry.Name())
		}
		files = append(files, SQLFile{
			Name: strings.TrimSuffix(entry.Name(), ".sql"),
			Text: strings.TrimSpace(string(content)),
		})
	}
	return files, nil
}

// ReadSQLStatements reads the `;` separated statements of a file.
// Lines starting with `--` are comments.
func ReadSQLStatements(fpath string) ([]string, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %v", fpath)
	}
	var sb strings.Builder
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	var stmts []string
	for _, stmt := range strings.Split(sb.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}
