package services

import (
	"bytes"
	"encoding/csv"
)

type LongRow struct {
	UserID       string
	UserName     string
	UserEmail    string
	SectionTitle string
	QuestionID   string
	QuestionText string
	Answer       string
	Status       string
	UpdatedAt    string // RFC3339
}

// ExportLongCSV renders one row per answered question.
func ExportLongCSV(rows []LongRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"user_id", "user_name", "user_email", "section", "question_id", "question", "answer", "status", "updated_at"})
	for _, r := range rows {
		rec := []string{
			r.UserID,
			r.UserName,
			r.UserEmail,
			r.SectionTitle,
			r.QuestionID,
			r.QuestionText,
			r.Answer,
			r.Status,
			r.UpdatedAt,
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// WideColumn names one question column of a wide export.
type WideColumn struct {
	QuestionID string
	Header     string
}

// WideRow is one user with answers keyed by question id.
type WideRow struct {
	UserID    string
	UserName  string
	UserEmail string
	Status    string
	Answers   map[string]string
}

// ExportWideCSV renders one row per user and one column per question, in the given column order.
func ExportWideCSV(columns []WideColumn, rows []WideRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"user_id", "user_name", "user_email", "status"}
	for _, c := range columns {
		header = append(header, c.Header)
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := make([]string, 0, len(header))
		rec = append(rec, r.UserID, r.UserName, r.UserEmail, r.Status)
		for _, c := range columns {
			rec = append(rec, r.Answers[c.QuestionID])
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
