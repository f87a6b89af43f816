// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package roster defines the processed exam-data document: the fixed set of
// students, the question sheet, and every student's answers. The document is
// produced by the ingestion adapter and is immutable once loaded.
package roster

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// Answer is one student's answer to one question.
type Answer struct {
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
	CharCount int    `json:"char_count"`
	IsEmpty   bool   `json:"is_empty"`
}

// Student is an immutable roster identity plus the student's paper.
type Student struct {
	Name    string            `json:"name"`
	Email   string            `json:"email"`
	Answers map[string]Answer `json:"answers"`
}

// Question is one exam question with its score ceiling.
type Question struct {
	Content  string `json:"content"`
	MaxScore int    `json:"max_score"`
}

// ExamData is the processed exam document.
type ExamData struct {
	Students  map[string]Student  `json:"students"`
	Questions map[string]Question `json:"questions"`
}

// Load reads an exam document from path.
func Load(path string) (*ExamData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read exam data")
	}
	var doc ExamData
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse exam data")
	}
	if len(doc.Students) == 0 {
		return nil, errors.New("exam data: no students")
	}
	if len(doc.Questions) == 0 {
		return nil, errors.New("exam data: no questions")
	}
	return &doc, nil
}

// StudentIDs returns the student ids in sorted order.
func (d *ExamData) StudentIDs() []string {
	ids := make([]string, 0, len(d.Students))
	for id := range d.Students {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// QuestionIDs returns the question ids in sorted order.
func (d *ExamData) QuestionIDs() []string {
	ids := make([]string, 0, len(d.Questions))
	for id := range d.Questions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
