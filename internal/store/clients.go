package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Age bounds accepted for a client record.
const (
	MinClientAge = 1
	MaxClientAge = 150
)

var (
	// ErrClientNotFound is returned when no client has the requested id.
	ErrClientNotFound = errors.New("store: client not found")

	// ErrInvalidClient is wrapped by every *ValidationError.
	ErrInvalidClient = errors.New("store: invalid client")
)

// Client is a single legal client record.
type Client struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Age        int    `json:"age"`
	LegalIssue string `json:"legal_issue"`
}

// NewClient is the validated input for AddClient.
type NewClient struct {
	Name       string `json:"name" validate:"required"`
	Age        int    `json:"age" validate:"gte=1,lte=150"`
	LegalIssue string `json:"legal_issue" validate:"required"`
}

// FieldProblem describes one rejected field of a NewClient.
type FieldProblem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a NewClient. It unwraps to
// ErrInvalidClient.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Message)
	}
	return "store: invalid client: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidClient
}

// ClientFilter selects clients. Zero-value fields are ignored and the
// remaining predicates are combined with AND.
type ClientFilter struct {
	// NameContains matches a case-insensitive substring of the name.
	NameContains string
	// MinAge and MaxAge are inclusive bounds.
	MinAge *int
	MaxAge *int
	// LegalIssue matches the legal area exactly, ignoring case.
	LegalIssue string
	// LegalIssueContains matches a case-insensitive substring of the legal area.
	LegalIssueContains string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalize trims surrounding whitespace from the text fields.
func (c NewClient) Normalize() NewClient {
	c.Name = strings.TrimSpace(c.Name)
	c.LegalIssue = strings.TrimSpace(c.LegalIssue)
	return c
}

// Validate checks the normalized input and returns a *ValidationError
// describing every failing field, or nil.
func (c NewClient) Validate() error {
	err := validate.Struct(c.Normalize())
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("store: validate client: %w", err)
	}
	ve := &ValidationError{}
	for _, fe := range verrs {
		ve.Problems = append(ve.Problems, FieldProblem{
			Field:   fe.Field(),
			Message: problemMessage(fe),
		})
	}
	return ve
}

func problemMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte", "lte":
		return fmt.Sprintf("must be between %d and %d", MinClientAge, MaxClientAge)
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// AddClient validates c and inserts it, returning the assigned id. Invalid
// input never reaches the database.
func (s *Store) AddClient(ctx context.Context, c NewClient) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	c = c.Normalize()

	result, err := s.writer.ExecContext(ctx,
		"INSERT INTO clients (name, age, legal_issue) VALUES (?, ?, ?)",
		c.Name, c.Age, c.LegalIssue,
	)
	if err != nil {
		return 0, fmt.Errorf("store: add client: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: add client last insert id: %w", err)
	}
	return id, nil
}

// GetClient returns the client with the given id, or ErrClientNotFound.
func (s *Store) GetClient(ctx context.Context, id int64) (*Client, error) {
	c := &Client{}
	err := s.reader.QueryRowContext(ctx,
		"SELECT id, name, age, legal_issue FROM clients WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.Age, &c.LegalIssue)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: get client %d: %w", id, ErrClientNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get client %d: %w", id, err)
	}
	return c, nil
}

// ListClients returns the clients matching f, ordered by id.
func (s *Store) ListClients(ctx context.Context, f ClientFilter) ([]Client, error) {
	query, args := f.sql()
	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list clients: %w", err)
	}
	defer rows.Close()

	clients := []Client{}
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Age, &c.LegalIssue); err != nil {
			return nil, fmt.Errorf("store: scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list clients rows: %w", err)
	}
	return clients, nil
}

func (f ClientFilter) sql() (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.NameContains != "" {
		where = append(where, "instr(lower(name), lower(?)) > 0")
		args = append(args, f.NameContains)
	}
	if f.MinAge != nil {
		where = append(where, "age >= ?")
		args = append(args, *f.MinAge)
	}
	if f.MaxAge != nil {
		where = append(where, "age <= ?")
		args = append(args, *f.MaxAge)
	}
	if f.LegalIssue != "" {
		where = append(where, "lower(legal_issue) = lower(?)")
		args = append(args, f.LegalIssue)
	}
	if f.LegalIssueContains != "" {
		where = append(where, "instr(lower(legal_issue), lower(?)) > 0")
		args = append(args, f.LegalIssueContains)
	}

	query := "SELECT id, name, age, legal_issue FROM clients"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query + " ORDER BY id ASC", args
}

// CountClients returns the number of stored clients.
func (s *Store) CountClients(ctx context.Context) (int, error) {
	var n int
	if err := s.reader.QueryRowContext(ctx, "SELECT COUNT(*) FROM clients").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count clients: %w", err)
	}
	return n, nil
}

// LegalIssues returns the distinct legal areas in alphabetical order.
func (s *Store) LegalIssues(ctx context.Context) ([]string, error) {
	rows, err := s.reader.QueryContext(ctx,
		"SELECT DISTINCT legal_issue FROM clients ORDER BY legal_issue ASC")
	if err != nil {
		return nil, fmt.Errorf("store: legal issues: %w", err)
	}
	defer rows.Close()

	issues := []string{}
	for rows.Next() {
		var issue string
		if err := rows.Scan(&issue); err != nil {
			return nil, fmt.Errorf("store: scan legal issue: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: legal issues rows: %w", err)
	}
	return issues, nil
}

// DeleteClient removes the client with the given id. A missing id yields
// ErrClientNotFound and changes nothing.
func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	result, err := s.writer.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete client %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete client %d rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("store: delete client %d: %w", id, ErrClientNotFound)
	}
	return nil
}
