// Package dataset reads model outputs and test sets stored as JSON Lines.
package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// maxLineSize bounds a single JSONL record. Generated scripts can be long.
const maxLineSize = 16 << 20

// viewSuffixLen is the length of the per-view image suffix, e.g. "_0.png".
const viewSuffixLen = 6

// Record is one model output from merge.jsonl.
type Record struct {
	Text              string `json:"text"`
	QuestionID        int    `json:"question_id"`
	QuestionTokens    int    `json:"question_token_count"`
	GroundTruthTokens int    `json:"ground_truth_token_count"`
	OutputTokens      int    `json:"output_token_count"`
}

// ID returns the question id as a file stem.
func (r Record) ID() string {
	return fmt.Sprint(r.QuestionID)
}

// TestEntry is one question of a test set.
type TestEntry struct {
	QuestionID int    `json:"question_id"`
	Image      string `json:"image"`
}

// TestSet maps question ids to test entries.
type TestSet struct {
	Name    string
	Entries []TestEntry
	byID    map[int]TestEntry
}

// OriginalID returns the ground-truth part id for a question: its image
// name without the view suffix. The first entry wins when a question id
// repeats.
func (ts *TestSet) OriginalID(questionID int) (string, bool) {
	e, ok := ts.byID[questionID]
	if !ok || len(e.Image) <= viewSuffixLen {
		return "", false
	}
	return e.Image[:len(e.Image)-viewSuffixLen], true
}

// Len returns the number of entries.
func (ts *TestSet) Len() int {
	return len(ts.Entries)
}

// ReadRecords reads model outputs from a JSONL file.
func ReadRecords(path string) ([]Record, error) {
	var out []Record
	err := readFile(path, func(line []byte) error {
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// ReadTestSet reads a test set from a JSONL file. The set is named after
// the file stem.
func ReadTestSet(path string) (*TestSet, error) {
	base := path[strings.LastIndexAny(path, `/\`)+1:]
	ts := &TestSet{
		Name: strings.TrimSuffix(base, ".jsonl"),
		byID: make(map[int]TestEntry),
	}
	err := readFile(path, func(line []byte) error {
		var e TestEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		ts.Entries = append(ts.Entries, e)
		if _, dup := ts.byID[e.QuestionID]; !dup {
			ts.byID[e.QuestionID] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ts, nil
}

func readFile(path string, fn func([]byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()
	if err := readLines(f, fn); err != nil {
		return fmt.Errorf("dataset: %s: %w", path, err)
	}
	return nil
}

// readLines calls fn for every non-blank line of r.
func readLines(r io.Reader, fn func([]byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return sc.Err()
}

var fencePattern = regexp.MustCompile("```[a-zA-Z]*\n|```")

// StripCodeFences removes markdown code fences around generated code.
func StripCodeFences(code string) string {
	if !strings.Contains(code, "```") {
		return code
	}
	return fencePattern.ReplaceAllString(code, "")
}
