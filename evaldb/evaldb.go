// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package evaldb is the durable store for tokens, submissions, audit logs
// and students. It is the single source of truth; writes are serialized
// through one connection and write transactions begin immediate, so no two
// transactions can both observe a token as pending and both mark it used.
package evaldb

import (
	"database/sql"
	"encoding/json"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/peereval/peereval/token"
)

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a token with the same string already exists.
	ErrConflict = errors.New("token already exists")
	// ErrAlreadyUsed means the token was consumed by an earlier submission.
	ErrAlreadyUsed = errors.New("token already used")
)

// Store wraps the sqlite database.
type Store struct {
	path  string
	db    *sql.DB
	stmts *stmtCache
}

// New creates or opens the database at the given path.
func New(path string) (*Store, error) {
	return open("file:" + path + "?_busy_timeout=5000&_journal_mode=wal&_txlock=immediate&_foreign_keys=1")
}

// NewMem creates a database in ram.
func NewMem() (*Store, error) {
	return open("file::memory:?_txlock=immediate&_foreign_keys=1")
}

func open(dsn string) (store *Store, err error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	defer func() {
		if store == nil {
			db.Close()
		}
	}()
	// single writer per database file
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(tokenTableSchema + submissionTableSchema + logTableSchema + studentTableSchema); err != nil {
		return nil, err
	}
	return &Store{
		path:  dsn,
		db:    db,
		stmts: newStmtCache(db),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.stmts.Clear()
	return s.db.Close()
}

// Path returns the DSN the store was opened with.
func (s *Store) Path() string { return s.path }

// isBusy reports whether err is a transient lock contention error.
func isBusy(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
	}
	return false
}

// writeRetry runs fn, retrying once on transient lock contention.
func writeRetry(fn func() error) error {
	err := fn()
	if isBusy(err) {
		err = fn()
	}
	return err
}

func isConstraint(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return false
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const timeLayout = time.RFC3339Nano

func encodeTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func decodeTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

//// tokens

const insertTokenQuery = `INSERT INTO tokens
	(token, evaluator_id, target_id, questions, created_at, expires_at, status, is_used, used_at, ip_address, user_agent)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertToken(tx *sql.Tx, t *token.Token) error {
	questions, err := json.Marshal(t.Questions)
	if err != nil {
		return err
	}
	var usedAt any
	if t.UsedAt != nil {
		usedAt = encodeTime(*t.UsedAt)
	}
	_, err = tx.Exec(insertTokenQuery,
		t.ID, t.EvaluatorID, t.TargetID, string(questions),
		encodeTime(t.CreatedAt), encodeTime(t.ExpiresAt),
		string(t.Status), t.IsUsed, usedAt, t.IPAddress, t.UserAgent)
	if isConstraint(err) {
		return ErrConflict
	}
	return err
}

// SaveToken inserts a token. The token string is unique.
func (s *Store) SaveToken(t *token.Token) error {
	return writeRetry(func() error {
		return s.inTx(func(tx *sql.Tx) error {
			if err := insertToken(tx, t); err != nil {
				return err
			}
			metricTokensSaved().Add(1)
			return nil
		})
	})
}

// SaveTokensBatch inserts tokens all-or-nothing. The first conflict aborts
// the whole batch.
func (s *Store) SaveTokensBatch(tokens []*token.Token) error {
	return writeRetry(func() error {
		return s.inTx(func(tx *sql.Tx) error {
			for _, t := range tokens {
				if err := insertToken(tx, t); err != nil {
					return errors.WithMessagef(err, "token for (%v, %v)", t.EvaluatorID, t.TargetID)
				}
			}
			metricTokensSaved().Add(int64(len(tokens)))
			return nil
		})
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*token.Token, error) {
	var (
		t         token.Token
		questions string
		createdAt string
		expiresAt string
		status    string
		usedAt    sql.NullString
		ip, ua    sql.NullString
	)
	if err := row.Scan(&t.ID, &t.EvaluatorID, &t.TargetID, &questions,
		&createdAt, &expiresAt, &status, &t.IsUsed, &usedAt, &ip, &ua); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(questions), &t.Questions); err != nil {
		return nil, errors.Wrap(err, "decode questions")
	}
	var err error
	if t.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if t.ExpiresAt, err = decodeTime(expiresAt); err != nil {
		return nil, err
	}
	t.Status = token.Status(status)
	if usedAt.Valid {
		at, err := decodeTime(usedAt.String)
		if err != nil {
			return nil, err
		}
		t.UsedAt = &at
	}
	t.IPAddress = ip.String
	t.UserAgent = ua.String
	return &t, nil
}

const selectTokenCols = `SELECT token, evaluator_id, target_id, questions, created_at, expires_at, status, is_used, used_at, ip_address, user_agent FROM tokens`

// GetToken looks up a token by its string.
func (s *Store) GetToken(id string) (*token.Token, error) {
	stmt, err := s.stmts.Prepare(selectTokenCols + ` WHERE token = ?`)
	if err != nil {
		return nil, err
	}
	t, err := scanToken(stmt.QueryRow(id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

// ValidateToken checks existence, consumption, status and expiry. It is a
// pure read and never mutates state. The reason string is empty when valid.
func (s *Store) ValidateToken(id string, now time.Time) (bool, *token.Token, string) {
	t, err := s.GetToken(id)
	if err == ErrNotFound {
		return false, nil, "token not found"
	}
	if err != nil {
		return false, nil, "storage failure"
	}
	if t.IsUsed {
		return false, t, "already used"
	}
	if t.Status != token.StatusPending {
		return false, t, "invalid status: " + string(t.Status)
	}
	if t.Expired(now) {
		return false, t, "expired"
	}
	return true, t, ""
}

const markUsedQuery = `UPDATE tokens
	SET is_used = 1, status = ?, used_at = ?, ip_address = ?, user_agent = ?
	WHERE token = ? AND is_used = 0`

func markUsed(tx *sql.Tx, id, ip, ua string, now time.Time) error {
	res, err := tx.Exec(markUsedQuery, string(token.StatusSubmitted), encodeTime(now), ip, ua, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRow(`SELECT count(*) FROM tokens WHERE token = ?`, id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrAlreadyUsed
	}
	return nil
}

// MarkTokenUsed atomically transitions a pending token to submitted.
func (s *Store) MarkTokenUsed(id, ip, ua string, now time.Time) error {
	return writeRetry(func() error {
		return s.inTx(func(tx *sql.Tx) error {
			return markUsed(tx, id, ip, ua, now)
		})
	})
}

func (s *Store) queryTokens(query string, args ...any) ([]*token.Token, error) {
	stmt, err := s.stmts.Prepare(query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*token.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// TokensByEvaluator returns all tokens minted for one reviewer.
func (s *Store) TokensByEvaluator(evaluatorID string) ([]*token.Token, error) {
	return s.queryTokens(selectTokenCols+` WHERE evaluator_id = ? ORDER BY token`, evaluatorID)
}

// AllTokens returns every token, optionally filtered by status.
func (s *Store) AllTokens(status token.Status) ([]*token.Token, error) {
	if status == "" {
		return s.queryTokens(selectTokenCols + ` ORDER BY token`)
	}
	return s.queryTokens(selectTokenCols+` WHERE status = ? ORDER BY token`, string(status))
}

//// submissions

const insertSubmissionQuery = `INSERT INTO submissions
	(token, evaluator_id, target_id, question_id, score, comment, submitted_at, ip_address, user_agent)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertSubmission(tx *sql.Tx, sub *Submission) (int64, error) {
	res, err := tx.Exec(insertSubmissionQuery,
		sub.Token, sub.EvaluatorID, sub.TargetID, sub.QuestionID,
		sub.Score, sub.Comment, encodeTime(sub.SubmittedAt), sub.IPAddress, sub.UserAgent)
	if isConstraint(err) {
		return 0, errors.WithMessage(ErrNotFound, "submission references unknown token")
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SaveSubmission appends one submission row.
func (s *Store) SaveSubmission(sub *Submission) (int64, error) {
	var id int64
	err := writeRetry(func() error {
		return s.inTx(func(tx *sql.Tx) error {
			var err error
			id, err = insertSubmission(tx, sub)
			return err
		})
	})
	return id, err
}

// AcceptSubmission consumes a pending token and appends all its per-question
// rows in a single transaction. Either the token is marked used and every row
// is inserted, or nothing happens.
func (s *Store) AcceptSubmission(tokenID string, subs []*Submission, ip, ua string, now time.Time) ([]int64, error) {
	var ids []int64
	err := writeRetry(func() error {
		ids = ids[:0]
		return s.inTx(func(tx *sql.Tx) error {
			// claiming the token row first is what serializes racing submitters
			if err := markUsed(tx, tokenID, ip, ua, now); err != nil {
				return err
			}
			for _, sub := range subs {
				id, err := insertSubmission(tx, sub)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	metricSubmissionsAccepted().Add(int64(len(ids)))
	return ids, nil
}

func scanSubmission(row rowScanner) (*Submission, error) {
	var (
		sub         Submission
		submittedAt string
		comment     sql.NullString
		ip, ua      sql.NullString
	)
	if err := row.Scan(&sub.ID, &sub.Token, &sub.EvaluatorID, &sub.TargetID,
		&sub.QuestionID, &sub.Score, &comment, &submittedAt, &ip, &ua); err != nil {
		return nil, err
	}
	var err error
	if sub.SubmittedAt, err = decodeTime(submittedAt); err != nil {
		return nil, err
	}
	sub.Comment = comment.String
	sub.IPAddress = ip.String
	sub.UserAgent = ua.String
	return &sub, nil
}

const selectSubmissionCols = `SELECT id, token, evaluator_id, target_id, question_id, score, comment, submitted_at, ip_address, user_agent FROM submissions`

func (s *Store) querySubmissions(query string, args ...any) ([]*Submission, error) {
	stmt, err := s.stmts.Prepare(query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// SubmissionsByToken returns the rows accepted for one token.
func (s *Store) SubmissionsByToken(tokenID string) ([]*Submission, error) {
	return s.querySubmissions(selectSubmissionCols+` WHERE token = ? ORDER BY id`, tokenID)
}

// SubmissionsByEvaluator returns everything one reviewer submitted.
func (s *Store) SubmissionsByEvaluator(evaluatorID string) ([]*Submission, error) {
	return s.querySubmissions(selectSubmissionCols+` WHERE evaluator_id = ? ORDER BY id`, evaluatorID)
}

// SubmissionsByTarget returns every score given to one paper.
func (s *Store) SubmissionsByTarget(targetID string) ([]*Submission, error) {
	return s.querySubmissions(selectSubmissionCols+` WHERE target_id = ? ORDER BY id`, targetID)
}

// AllSubmissions returns every accepted submission.
func (s *Store) AllSubmissions() ([]*Submission, error) {
	return s.querySubmissions(selectSubmissionCols + ` ORDER BY id`)
}

//// audit log

// LogAction appends an audit record. It is best-effort: failures are counted
// but never propagated, so a lost log write cannot fail a submission.
func (s *Store) LogAction(tokenID, action, details, ip, ua string) {
	err := writeRetry(func() error {
		_, err := s.db.Exec(
			`INSERT INTO submission_logs (token, action, details, ip_address, user_agent, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
			tokenID, action, details, ip, ua, encodeTime(time.Now()))
		return err
	})
	if err != nil {
		metricLogWriteFailures().Add(1)
	}
}

// Logs returns audit records, newest first. tokenID may be empty for all.
func (s *Store) Logs(tokenID string, limit int) ([]*LogEntry, error) {
	query := `SELECT id, token, action, details, ip_address, user_agent, timestamp FROM submission_logs`
	var args []any
	if tokenID != "" {
		query += ` WHERE token = ?`
		args = append(args, tokenID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		var (
			e           LogEntry
			tok         sql.NullString
			details     sql.NullString
			ip, ua      sql.NullString
			timestampTs string
		)
		if err := rows.Scan(&e.ID, &tok, &e.Action, &details, &ip, &ua, &timestampTs); err != nil {
			return nil, err
		}
		if e.Timestamp, err = decodeTime(timestampTs); err != nil {
			return nil, err
		}
		e.Token = tok.String
		e.Details = details.String
		e.IPAddress = ip.String
		e.UserAgent = ua.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

//// students

// SaveStudent upserts one roster row.
func (s *Store) SaveStudent(st *Student) error {
	return writeRetry(func() error {
		_, err := s.db.Exec(
			`INSERT OR REPLACE INTO students (student_id, student_name, email, created_at) VALUES (?, ?, ?, ?)`,
			st.ID, st.Name, st.Email, encodeTime(st.CreatedAt))
		return err
	})
}

// SaveStudentsBatch upserts the roster all-or-nothing.
func (s *Store) SaveStudentsBatch(students []*Student) error {
	return writeRetry(func() error {
		return s.inTx(func(tx *sql.Tx) error {
			for _, st := range students {
				if _, err := tx.Exec(
					`INSERT OR REPLACE INTO students (student_id, student_name, email, created_at) VALUES (?, ?, ?, ?)`,
					st.ID, st.Name, st.Email, encodeTime(st.CreatedAt)); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// GetStudent looks up one student.
func (s *Store) GetStudent(id string) (*Student, error) {
	var (
		st        Student
		createdAt string
	)
	err := s.db.QueryRow(
		`SELECT student_id, student_name, email, created_at FROM students WHERE student_id = ?`, id).
		Scan(&st.ID, &st.Name, &st.Email, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if st.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	return &st, nil
}

// AllStudents returns the roster sorted by id.
func (s *Store) AllStudents() ([]*Student, error) {
	rows, err := s.db.Query(`SELECT student_id, student_name, email, created_at FROM students ORDER BY student_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []*Student
	for rows.Next() {
		var (
			st        Student
			createdAt string
		)
		if err := rows.Scan(&st.ID, &st.Name, &st.Email, &createdAt); err != nil {
			return nil, err
		}
		if st.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, err
		}
		students = append(students, &st)
	}
	return students, rows.Err()
}

//// aggregates

// EvaluatorProgress reports per-reviewer completion, sorted by reviewer id.
func (s *Store) EvaluatorProgress() ([]*Progress, error) {
	rows, err := s.db.Query(
		`SELECT evaluator_id, count(*), sum(is_used) FROM tokens GROUP BY evaluator_id ORDER BY evaluator_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var progress []*Progress
	for rows.Next() {
		var p Progress
		if err := rows.Scan(&p.EvaluatorID, &p.Assigned, &p.Submitted); err != nil {
			return nil, err
		}
		progress = append(progress, &p)
	}
	return progress, rows.Err()
}

// Stats summarizes the database.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{TokensByStatus: make(map[string]int)}

	rows, err := s.db.Query(`SELECT status, count(*) FROM tokens GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.TokensByStatus[status] = count
		stats.TokensTotal += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var mean sql.NullFloat64
	if err := s.db.QueryRow(`SELECT count(*), avg(score) FROM submissions`).
		Scan(&stats.SubmissionsTotal, &mean); err != nil {
		return nil, err
	}
	stats.MeanScore = mean.Float64
	return stats, nil
}
