package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DecodeStream reads newline-delimited JSON compilation units, the wire
// format the parser subprocess emits. Blank lines are skipped; a malformed
// line aborts the decode with its line number.
func DecodeStream(r io.Reader) ([]CompilationUnit, error) {
	var units []CompilationUnit

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var unit CompilationUnit
		if err := json.Unmarshal([]byte(line), &unit); err != nil {
			return nil, fmt.Errorf("decode compilation unit at line %d: %w", lineNum, err)
		}
		if unit.FilePath == "" {
			return nil, fmt.Errorf("compilation unit at line %d has no file_path", lineNum)
		}
		units = append(units, unit)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read parse stream: %w", err)
	}
	return units, nil
}
