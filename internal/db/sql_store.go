package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xcyber/portal/internal/api"
	"github.com/xcyber/portal/internal/models"
	"github.com/xcyber/portal/internal/services"
)

// SQLStore implements api.Store over database/sql. Cascades come from the
// schema's ON DELETE CASCADE foreign keys.
type SQLStore struct {
	db     *sql.DB
	driver Driver
	// mu serializes writes that assign positions or check uniqueness.
	mu sync.Mutex
}

var _ api.Store = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB, driver Driver) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if driver != DriverPostgres {
		pragmas := []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
		}
		for _, stmt := range pragmas {
			if _, err := db.Exec(stmt); err != nil {
				return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
			}
		}
	}
	return &SQLStore{db: db, driver: driver}, nil
}

func contextBg() context.Context { return context.Background() }

func (s *SQLStore) logErr(prefix string, err error) {
	if err != nil {
		log.Printf("sql store: %s: %v", prefix, err)
	}
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) exec(x execer, q string, args ...any) (sql.Result, error) {
	return x.ExecContext(contextBg(), s.rebind(q), args...)
}

func (s *SQLStore) query(x execer, q string, args ...any) (*sql.Rows, error) {
	return x.QueryContext(contextBg(), s.rebind(q), args...)
}

func (s *SQLStore) queryRow(x execer, q string, args ...any) *sql.Row {
	return x.QueryRowContext(contextBg(), s.rebind(q), args...)
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func (s *SQLStore) withTx(name string, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(contextBg(), nil)
	if err != nil {
		return fmt.Errorf("%s begin: %w", name, err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
				s.logErr(name+" rollback", rerr)
			}
			return
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("%s commit: %w", name, err)
		}
	}()
	return fn(tx)
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func encodeOptions(opts []string) string {
	if len(opts) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(opts)
	return string(b)
}

func decodeOptions(raw string) []string {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Printf("sql store: decode options: %v", err)
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// --- lifecycle ---

// Init replaces all contents with seed. Responses that point at unknown
// questions, or at a question outside their section, are dropped.
func (s *SQLStore) Init(seed *models.Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withTx("Init", func(tx *sql.Tx) error {
		for _, table := range []string{"responses", "questions", "sections", "users", "providers", "audit_log"} {
			if _, err := s.exec(tx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		if seed == nil {
			return nil
		}
		providers := map[string]bool{}
		for _, p := range seed.Providers {
			if err := s.insertProvider(tx, p); err != nil {
				return err
			}
			providers[p.ID] = true
		}
		sectionOf := map[string]string{}
		for _, sec := range seed.Sections {
			if !providers[sec.ProviderID] {
				continue
			}
			if err := s.insertSection(tx, sec, sec.Order); err != nil {
				return err
			}
			sectionOf[sec.ID] = sec.ProviderID
		}
		questionSection := map[string]string{}
		for _, q := range seed.Questions {
			if _, ok := sectionOf[q.SectionID]; !ok {
				continue
			}
			if err := s.insertQuestion(tx, q, q.Order); err != nil {
				return err
			}
			questionSection[q.ID] = q.SectionID
		}
		emails := map[string]bool{}
		for _, u := range seed.Users {
			if emails[u.Email] {
				return fmt.Errorf("seed: %w: %s", services.ErrEmailExists, u.Email)
			}
			emails[u.Email] = true
			if err := s.insertUser(tx, u); err != nil {
				return err
			}
		}
		for _, r := range seed.Responses {
			if questionSection[r.QuestionID] != r.SectionID {
				continue
			}
			if err := s.upsertResponse(tx, r, r.IsSubmitted); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) Reset() error {
	return s.Init(nil)
}

// --- providers ---

func (s *SQLStore) insertProvider(x execer, p *models.Provider) error {
	_, err := s.exec(x, `INSERT INTO providers (id, name, logo_url, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, p.LogoURL, toUnix(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert provider %s: %w", p.ID, err)
	}
	return nil
}

func scanProvider(sc interface{ Scan(...any) error }) (*models.Provider, error) {
	var p models.Provider
	var created int64
	if err := sc.Scan(&p.ID, &p.Name, &p.LogoURL, &created); err != nil {
		return nil, err
	}
	p.CreatedAt = fromUnix(created)
	return &p, nil
}

func (s *SQLStore) ListProviders() ([]*models.Provider, error) {
	rows, err := s.query(s.db, `SELECT id, name, logo_url, created_at FROM providers ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()
	out := []*models.Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetProvider(id string) (*models.Provider, error) {
	p, err := scanProvider(s.queryRow(s.db, `SELECT id, name, logo_url, created_at FROM providers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return p, nil
}

// --- sections ---

const sectionCols = `id, provider_id, title, position, created_at`

func (s *SQLStore) insertSection(x execer, sec *models.Section, order int) error {
	_, err := s.exec(x, `INSERT INTO sections (`+sectionCols+`) VALUES (?, ?, ?, ?, ?)`,
		sec.ID, sec.ProviderID, sec.Title, order, toUnix(sec.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert section %s: %w", sec.ID, err)
	}
	return nil
}

func scanSection(sc interface{ Scan(...any) error }) (*models.Section, error) {
	var sec models.Section
	var created int64
	if err := sc.Scan(&sec.ID, &sec.ProviderID, &sec.Title, &sec.Order, &created); err != nil {
		return nil, err
	}
	sec.CreatedAt = fromUnix(created)
	return &sec, nil
}

// InsertSection assigns Order = number of the provider's sections + 1.
func (s *SQLStore) InsertSection(sec *models.Section) (*models.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *sec
	err := s.withTx("InsertSection", func(tx *sql.Tx) error {
		var exists int
		err := s.queryRow(tx, `SELECT COUNT(*) FROM providers WHERE id = ?`, sec.ProviderID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return services.NewNotFoundError("provider not found")
		}
		var n int
		if err := s.queryRow(tx, `SELECT COUNT(*) FROM sections WHERE provider_id = ?`, sec.ProviderID).Scan(&n); err != nil {
			return err
		}
		out.Order = n + 1
		return s.insertSection(tx, &out, out.Order)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SQLStore) GetSection(id string) (*models.Section, error) {
	sec, err := scanSection(s.queryRow(s.db, `SELECT `+sectionCols+` FROM sections WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get section: %w", err)
	}
	return sec, nil
}

func (s *SQLStore) ListSections(providerID string) ([]*models.Section, error) {
	rows, err := s.query(s.db, `SELECT `+sectionCols+` FROM sections WHERE provider_id = ? ORDER BY position, created_at, id`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()
	out := []*models.Section{}
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteSection(id string) (bool, error) {
	res, err := s.exec(s.db, `DELETE FROM sections WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete section: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// --- questions ---

const questionCols = `id, section_id, question_text, question_type, options_json, required, position, created_at`

func (s *SQLStore) insertQuestion(x execer, q *models.Question, order int) error {
	_, err := s.exec(x, `INSERT INTO questions (`+questionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.SectionID, q.QuestionText, string(q.QuestionType), encodeOptions(q.Options), boolToInt64(q.Required), order, toUnix(q.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert question %s: %w", q.ID, err)
	}
	return nil
}

func scanQuestion(sc interface{ Scan(...any) error }) (*models.Question, error) {
	var q models.Question
	var qtype, opts string
	var required, created int64
	if err := sc.Scan(&q.ID, &q.SectionID, &q.QuestionText, &qtype, &opts, &required, &q.Order, &created); err != nil {
		return nil, err
	}
	q.QuestionType = models.QuestionType(qtype)
	q.Options = decodeOptions(opts)
	q.Required = required != 0
	q.CreatedAt = fromUnix(created)
	return &q, nil
}

// InsertQuestions appends the batch atomically; every target section must exist.
func (s *SQLStore) InsertQuestions(qs []*models.Question) ([]*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Question, 0, len(qs))
	err := s.withTx("InsertQuestions", func(tx *sql.Tx) error {
		counts := map[string]int{}
		for _, q := range qs {
			if _, seen := counts[q.SectionID]; seen {
				continue
			}
			var exists int
			if err := s.queryRow(tx, `SELECT COUNT(*) FROM sections WHERE id = ?`, q.SectionID).Scan(&exists); err != nil {
				return err
			}
			if exists == 0 {
				return services.NewNotFoundError("section not found")
			}
			var n int
			if err := s.queryRow(tx, `SELECT COUNT(*) FROM questions WHERE section_id = ?`, q.SectionID).Scan(&n); err != nil {
				return err
			}
			counts[q.SectionID] = n
		}
		for _, q := range qs {
			counts[q.SectionID]++
			cp := *q
			cp.Order = counts[q.SectionID]
			if err := s.insertQuestion(tx, &cp, cp.Order); err != nil {
				return err
			}
			out = append(out, &cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) GetQuestion(id string) (*models.Question, error) {
	q, err := scanQuestion(s.queryRow(s.db, `SELECT `+questionCols+` FROM questions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

// UpdateQuestion replaces content fields; section and position are kept.
func (s *SQLStore) UpdateQuestion(q *models.Question) (bool, error) {
	res, err := s.exec(s.db, `UPDATE questions SET question_text = ?, question_type = ?, options_json = ?, required = ? WHERE id = ?`,
		q.QuestionText, string(q.QuestionType), encodeOptions(q.Options), boolToInt64(q.Required), q.ID)
	if err != nil {
		return false, fmt.Errorf("update question: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLStore) ListQuestions(sectionID string) ([]*models.Question, error) {
	rows, err := s.query(s.db, `SELECT `+questionCols+` FROM questions WHERE section_id = ? ORDER BY position, created_at, id`, sectionID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	out := []*models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteQuestion(id string) (bool, error) {
	res, err := s.exec(s.db, `DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete question: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// --- responses ---

const responseCols = `id, user_id, provider_id, section_id, question_id, answer_json, is_submitted, created_at, updated_at`

func scanResponse(sc interface{ Scan(...any) error }) (*models.Response, error) {
	var r models.Response
	var answer string
	var submitted, created, updated int64
	if err := sc.Scan(&r.ID, &r.UserID, &r.ProviderID, &r.SectionID, &r.QuestionID, &answer, &submitted, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(answer), &r.Answer); err != nil {
		return nil, fmt.Errorf("decode answer of %s: %w", r.ID, err)
	}
	r.IsSubmitted = submitted != 0
	r.CreatedAt = fromUnix(created)
	r.UpdatedAt = fromUnix(updated)
	return &r, nil
}

func (s *SQLStore) upsertResponse(x execer, r *models.Response, submitted bool) error {
	answer, err := json.Marshal(r.Answer)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	_, err = s.exec(x, `INSERT INTO responses (`+responseCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, question_id) DO UPDATE SET
		  answer_json = excluded.answer_json,
		  provider_id = excluded.provider_id,
		  section_id = excluded.section_id,
		  updated_at = excluded.updated_at`,
		r.ID, r.UserID, r.ProviderID, r.SectionID, r.QuestionID, string(answer), boolToInt64(submitted), toUnix(r.CreatedAt), toUnix(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert response: %w", err)
	}
	return nil
}

// UpsertResponse replaces the answer of the (user, question) response or appends a new draft.
func (s *SQLStore) UpsertResponse(r *models.Response) (*models.Response, error) {
	var out *models.Response
	err := s.withTx("UpsertResponse", func(tx *sql.Tx) error {
		var n int
		if err := s.queryRow(tx, `SELECT COUNT(*) FROM questions WHERE id = ? AND section_id = ?`, r.QuestionID, r.SectionID).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return services.NewNotFoundError("question not found")
		}
		if err := s.upsertResponse(tx, r, false); err != nil {
			return err
		}
		got, err := scanResponse(s.queryRow(tx, `SELECT `+responseCols+` FROM responses WHERE user_id = ? AND question_id = ?`, r.UserID, r.QuestionID))
		if err != nil {
			return fmt.Errorf("reload response: %w", err)
		}
		out = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) MarkSubmitted(userID, providerID string, at time.Time) (int, error) {
	res, err := s.exec(s.db, `UPDATE responses SET is_submitted = 1, updated_at = ? WHERE user_id = ? AND provider_id = ?`,
		toUnix(at), userID, providerID)
	if err != nil {
		return 0, fmt.Errorf("mark submitted: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLStore) listResponses(where string, args ...any) ([]*models.Response, error) {
	q := `SELECT ` + responseCols + ` FROM responses`
	if where != "" {
		q += " WHERE " + where
	}
	rows, err := s.query(s.db, q+" ORDER BY created_at, id", args...)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()
	out := []*models.Response{}
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListResponses() ([]*models.Response, error) {
	return s.listResponses("")
}

// ListResponsesByUser lists the user's responses; an empty providerID means all providers.
func (s *SQLStore) ListResponsesByUser(userID, providerID string) ([]*models.Response, error) {
	if providerID == "" {
		return s.listResponses("user_id = ?", userID)
	}
	return s.listResponses("user_id = ? AND provider_id = ?", userID, providerID)
}

func (s *SQLStore) ListResponsesByProvider(providerID string) ([]*models.Response, error) {
	return s.listResponses("provider_id = ?", providerID)
}

// --- users ---

const userCols = `id, email, pass_hash, name, phone, role, insurance_provider_id, created_at`

func (s *SQLStore) insertUser(x execer, u *models.User) error {
	_, err := s.exec(x, `INSERT INTO users (`+userCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, string(u.PassHash), u.Name, u.Phone, string(u.Role), u.InsuranceProviderID, toUnix(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert user %s: %w", u.ID, err)
	}
	return nil
}

func scanUser(sc interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var hash, role string
	var created int64
	if err := sc.Scan(&u.ID, &u.Email, &hash, &u.Name, &u.Phone, &role, &u.InsuranceProviderID, &created); err != nil {
		return nil, err
	}
	u.PassHash = []byte(hash)
	u.Role = models.Role(role)
	u.CreatedAt = fromUnix(created)
	return &u, nil
}

// AddUser rejects an exact duplicate email with services.ErrEmailExists.
func (s *SQLStore) AddUser(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withTx("AddUser", func(tx *sql.Tx) error {
		var n int
		if err := s.queryRow(tx, `SELECT COUNT(*) FROM users WHERE email = ?`, u.Email).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return services.ErrEmailExists
		}
		return s.insertUser(tx, u)
	})
}

func (s *SQLStore) getUserWhere(where string, arg string) (*models.User, error) {
	u, err := scanUser(s.queryRow(s.db, `SELECT `+userCols+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLStore) FindUserByEmail(email string) (*models.User, error) {
	return s.getUserWhere("email = ?", email)
}

func (s *SQLStore) GetUser(id string) (*models.User, error) {
	return s.getUserWhere("id = ?", id)
}

func (s *SQLStore) ListUsers() ([]*models.User, error) {
	rows, err := s.query(s.db, `SELECT `+userCols+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	out := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// --- audit ---

func (s *SQLStore) AddAudit(e models.AuditEntry) {
	_, err := s.exec(s.db, `INSERT INTO audit_log (at, actor, action, target, note) VALUES (?, ?, ?, ?, ?)`,
		toUnix(e.Time), e.Actor, e.Action, e.Target, e.Note)
	s.logErr("AddAudit", err)
}

func (s *SQLStore) ListAudit() []models.AuditEntry {
	rows, err := s.query(s.db, `SELECT at, actor, action, target, note FROM audit_log ORDER BY id`)
	if err != nil {
		s.logErr("ListAudit", err)
		return nil
	}
	defer rows.Close()
	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var at int64
		if err := rows.Scan(&at, &e.Actor, &e.Action, &e.Target, &e.Note); err != nil {
			s.logErr("ListAudit scan", err)
			return out
		}
		e.Time = fromUnix(at)
		out = append(out, e)
	}
	s.logErr("ListAudit rows", rows.Err())
	return out
}
