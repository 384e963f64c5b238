package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/labflow/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store", "backend", "sqlite"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := formatTime(*t)
	return &v
}

func parseTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t := parseTime(*s)
	return &t
}

func checkAffected(result sql.Result, entity, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

// whereBuilder accumulates optional filter clauses.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) eq(column, value string) {
	if value == "" {
		return
	}
	w.clauses = append(w.clauses, column+" = ?")
	w.args = append(w.args, value)
}

func (w *whereBuilder) search(column, value string) {
	if value == "" {
		return
	}
	w.clauses = append(w.clauses, "LOWER("+column+") LIKE ?")
	w.args = append(w.args, "%"+strings.ToLower(value)+"%")
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// count runs SELECT COUNT(*) for the table and filters.
func (s *SQLiteStore) count(ctx context.Context, table string, w *whereBuilder) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+w.sql(), w.args...).Scan(&total)
	return total, err
}

// --- Project CRUD ---

const projectColumns = `id, title, description, objective, start_date, status, created_at, updated_at`

func (s *SQLiteStore) CreateProject(ctx context.Context, p *model.Project) error {
	s.logger.Debug("sql", "op", "insert", "table", "projects", "id", p.ID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Description, p.Objective, p.StartDate, string(p.Status),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	return err
}

func scanProject(row interface{ Scan(...any) error }) (*model.Project, error) {
	var p model.Project
	var status, createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Objective, &p.StartDate,
		&status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Status = model.ProjectStatus(status)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	s.logger.Debug("sql", "op", "select", "table", "projects", "id", id)

	p, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *SQLiteStore) ListProjects(ctx context.Context, opts model.ListOptions) ([]*model.Project, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "projects", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var w whereBuilder
	w.eq("status", opts.Status)
	w.search("title", opts.Search)

	total, err := s.count(ctx, "projects", &w)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects`+w.sql()+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(w.args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, p)
	}
	return projects, total, rows.Err()
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p *model.Project) error {
	s.logger.Debug("sql", "op", "update", "table", "projects", "id", p.ID)

	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET title=?, description=?, objective=?, start_date=?, status=?, updated_at=? WHERE id=?`,
		p.Title, p.Description, p.Objective, p.StartDate, string(p.Status), formatTime(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(result, "project", p.ID)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "projects", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result, "project", id)
}

// --- Workflow CRUD ---

const workflowColumns = `id, project_id, title, description, hypothesis, category, difficulty,
	estimated_total_time, status, created_by, created_at, updated_at`

func (s *SQLiteStore) CreateWorkflow(ctx context.Context, wf *model.Workflow) error {
	s.logger.Debug("sql", "op", "insert", "table", "workflows", "id", wf.ID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workflows (`+workflowColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wf.ID, wf.ProjectID, wf.Title, wf.Description, wf.Hypothesis, wf.Category,
		string(wf.Difficulty), wf.EstimatedTotalTime, string(wf.Status), wf.CreatedBy,
		formatTime(wf.CreatedAt), formatTime(wf.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if err := writeWorkflowGraph(ctx, tx, wf); err != nil {
		return err
	}
	return tx.Commit()
}

// writeWorkflowGraph replaces the assay links and dependency edges of wf.
func writeWorkflowGraph(ctx context.Context, tx *sql.Tx, wf *model.Workflow) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_assays WHERE workflow_id = ?`, wf.ID); err != nil {
		return fmt.Errorf("clear workflow assays: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM assay_dependencies WHERE workflow_id = ?`, wf.ID); err != nil {
		return fmt.Errorf("clear assay dependencies: %w", err)
	}
	for i, assayID := range wf.AssayIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO workflow_assays (workflow_id, assay_id, position) VALUES (?, ?, ?)`,
			wf.ID, assayID, i); err != nil {
			return fmt.Errorf("insert workflow assay %s: %w", assayID, err)
		}
	}
	for i, dep := range wf.Dependencies {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO assay_dependencies (workflow_id, from_assay_id, to_assay_id, position) VALUES (?, ?, ?, ?)`,
			wf.ID, dep.FromAssayID, dep.ToAssayID, i); err != nil {
			return fmt.Errorf("insert assay dependency %s -> %s: %w", dep.FromAssayID, dep.ToAssayID, err)
		}
	}
	return nil
}

func scanWorkflow(row interface{ Scan(...any) error }) (*model.Workflow, error) {
	var wf model.Workflow
	var difficulty, status, createdAt, updatedAt string
	if err := row.Scan(&wf.ID, &wf.ProjectID, &wf.Title, &wf.Description, &wf.Hypothesis,
		&wf.Category, &difficulty, &wf.EstimatedTotalTime, &status, &wf.CreatedBy,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	wf.Difficulty = model.Difficulty(difficulty)
	wf.Status = model.PublishStatus(status)
	wf.CreatedAt = parseTime(createdAt)
	wf.UpdatedAt = parseTime(updatedAt)
	wf.AssayIDs = []string{}
	wf.Dependencies = []model.AssayDependency{}
	return &wf, nil
}

// loadWorkflowGraph fills AssayIDs and Dependencies from the link tables.
func (s *SQLiteStore) loadWorkflowGraph(ctx context.Context, wf *model.Workflow) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT assay_id FROM workflow_assays WHERE workflow_id = ? ORDER BY position`, wf.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		wf.AssayIDs = append(wf.AssayIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT from_assay_id, to_assay_id FROM assay_dependencies WHERE workflow_id = ? ORDER BY position`, wf.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var dep model.AssayDependency
		if err := rows.Scan(&dep.FromAssayID, &dep.ToAssayID); err != nil {
			return err
		}
		wf.Dependencies = append(wf.Dependencies, dep)
	}
	return rows.Err()
}

func (s *SQLiteStore) GetWorkflow(ctx context.Context, id string) (*model.Workflow, error) {
	s.logger.Debug("sql", "op", "select", "table", "workflows", "id", id)

	wf, err := scanWorkflow(s.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadWorkflowGraph(ctx, wf); err != nil {
		return nil, fmt.Errorf("load workflow graph: %w", err)
	}
	return wf, nil
}

func (s *SQLiteStore) ListWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.Workflow, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "workflows", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var w whereBuilder
	w.eq("project_id", opts.ProjectID)
	w.eq("status", opts.Status)
	w.search("title", opts.Search)

	total, err := s.count(ctx, "workflows", &w)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows`+w.sql()+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(w.args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}

	var workflows []*model.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		workflows = append(workflows, wf)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for _, wf := range workflows {
		if err := s.loadWorkflowGraph(ctx, wf); err != nil {
			return nil, 0, fmt.Errorf("load workflow graph %s: %w", wf.ID, err)
		}
	}
	return workflows, total, nil
}

func (s *SQLiteStore) UpdateWorkflow(ctx context.Context, wf *model.Workflow) error {
	s.logger.Debug("sql", "op", "update", "table", "workflows", "id", wf.ID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE workflows SET project_id=?, title=?, description=?, hypothesis=?, category=?,
		 difficulty=?, estimated_total_time=?, status=?, updated_at=? WHERE id=?`,
		wf.ProjectID, wf.Title, wf.Description, wf.Hypothesis, wf.Category,
		string(wf.Difficulty), wf.EstimatedTotalTime, string(wf.Status), formatTime(wf.UpdatedAt), wf.ID,
	)
	if err != nil {
		return err
	}
	if err := checkAffected(result, "workflow", wf.ID); err != nil {
		return err
	}
	if err := writeWorkflowGraph(ctx, tx, wf); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteWorkflow(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "workflows", "id", id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM workflow_assays WHERE workflow_id = ?`,
		`DELETE FROM assay_dependencies WHERE workflow_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := checkAffected(result, "workflow", id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Assay CRUD ---

const assayColumns = `id, workflow_id, title, description, protocol, materials, parameters,
	estimated_time, created_at, updated_at`

func (s *SQLiteStore) CreateAssay(ctx context.Context, a *model.Assay) error {
	s.logger.Debug("sql", "op", "insert", "table", "assays", "id", a.ID)

	materialsJSON, parametersJSON, err := marshalAssayLists(a)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assays (`+assayColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.WorkflowID, a.Title, a.Description, a.Protocol,
		materialsJSON, parametersJSON, a.EstimatedTime,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	return err
}

func marshalAssayLists(a *model.Assay) (string, string, error) {
	materials := a.Materials
	if materials == nil {
		materials = []model.AssayMaterial{}
	}
	parameters := a.Parameters
	if parameters == nil {
		parameters = []model.AssayParameter{}
	}
	materialsJSON, err := json.Marshal(materials)
	if err != nil {
		return "", "", fmt.Errorf("marshal materials: %w", err)
	}
	parametersJSON, err := json.Marshal(parameters)
	if err != nil {
		return "", "", fmt.Errorf("marshal parameters: %w", err)
	}
	return string(materialsJSON), string(parametersJSON), nil
}

func scanAssay(row interface{ Scan(...any) error }) (*model.Assay, error) {
	var a model.Assay
	var materialsJSON, parametersJSON, createdAt, updatedAt string
	if err := row.Scan(&a.ID, &a.WorkflowID, &a.Title, &a.Description, &a.Protocol,
		&materialsJSON, &parametersJSON, &a.EstimatedTime, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(materialsJSON), &a.Materials); err != nil {
		return nil, fmt.Errorf("unmarshal materials: %w", err)
	}
	if err := json.Unmarshal([]byte(parametersJSON), &a.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

func (s *SQLiteStore) GetAssay(ctx context.Context, id string) (*model.Assay, error) {
	s.logger.Debug("sql", "op", "select", "table", "assays", "id", id)

	a, err := scanAssay(s.db.QueryRowContext(ctx,
		`SELECT `+assayColumns+` FROM assays WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// ListAssays filters by WorkflowID either through the assay's own
// workflow_id or through the workflow's assay links, so assays shared
// between workflows appear under each of them.
func (s *SQLiteStore) ListAssays(ctx context.Context, opts model.ListOptions) ([]*model.Assay, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "assays", "workflow_id", opts.WorkflowID)
	opts.Clamp()

	var w whereBuilder
	if opts.WorkflowID != "" {
		w.clauses = append(w.clauses,
			`(workflow_id = ? OR id IN (SELECT assay_id FROM workflow_assays WHERE workflow_id = ?))`)
		w.args = append(w.args, opts.WorkflowID, opts.WorkflowID)
	}
	w.search("title", opts.Search)

	total, err := s.count(ctx, "assays", &w)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assayColumns+` FROM assays`+w.sql()+` ORDER BY created_at, id LIMIT ? OFFSET ?`,
		append(w.args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var assays []*model.Assay
	for rows.Next() {
		a, err := scanAssay(rows)
		if err != nil {
			return nil, 0, err
		}
		assays = append(assays, a)
	}
	return assays, total, rows.Err()
}

func (s *SQLiteStore) UpdateAssay(ctx context.Context, a *model.Assay) error {
	s.logger.Debug("sql", "op", "update", "table", "assays", "id", a.ID)

	materialsJSON, parametersJSON, err := marshalAssayLists(a)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE assays SET workflow_id=?, title=?, description=?, protocol=?, materials=?, parameters=?,
		 estimated_time=?, updated_at=? WHERE id=?`,
		a.WorkflowID, a.Title, a.Description, a.Protocol, materialsJSON, parametersJSON,
		a.EstimatedTime, formatTime(a.UpdatedAt), a.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(result, "assay", a.ID)
}

func (s *SQLiteStore) DeleteAssay(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "assays", "id", id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM assays WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := checkAffected(result, "assay", id); err != nil {
		return err
	}
	for _, stmt := range []string{
		`DELETE FROM steps WHERE assay_id = ?`,
		`DELETE FROM workflow_assays WHERE assay_id = ?`,
		`DELETE FROM assay_dependencies WHERE from_assay_id = ?1 OR to_assay_id = ?1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- Step CRUD ---

const stepColumns = `id, assay_id, title, description, estimated_time, warning, notes,
	order_index, calculation_dependencies, calculation_formula, created_at`

func (s *SQLiteStore) CreateStep(ctx context.Context, st *model.Step) error {
	s.logger.Debug("sql", "op", "insert", "table", "steps", "id", st.ID)

	depsJSON, err := marshalStrings(st.CalculationDependencies)
	if err != nil {
		return fmt.Errorf("marshal calculation_dependencies: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO steps (`+stepColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.AssayID, st.Title, st.Description, st.EstimatedTime, st.Warning, st.Notes,
		st.Order, depsJSON, st.CalculationFormula, formatTime(st.CreatedAt),
	)
	return err
}

func marshalStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func scanStep(row interface{ Scan(...any) error }) (*model.Step, error) {
	var st model.Step
	var depsJSON, createdAt string
	if err := row.Scan(&st.ID, &st.AssayID, &st.Title, &st.Description, &st.EstimatedTime,
		&st.Warning, &st.Notes, &st.Order, &depsJSON, &st.CalculationFormula, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(depsJSON), &st.CalculationDependencies); err != nil {
		return nil, fmt.Errorf("unmarshal calculation_dependencies: %w", err)
	}
	if len(st.CalculationDependencies) == 0 {
		st.CalculationDependencies = nil
	}
	st.CreatedAt = parseTime(createdAt)
	return &st, nil
}

func (s *SQLiteStore) GetStep(ctx context.Context, id string) (*model.Step, error) {
	s.logger.Debug("sql", "op", "select", "table", "steps", "id", id)

	st, err := scanStep(s.db.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return st, err
}

func (s *SQLiteStore) ListSteps(ctx context.Context, assayID string) ([]*model.Step, error) {
	s.logger.Debug("sql", "op", "list", "table", "steps", "assay_id", assayID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE assay_id = ? ORDER BY order_index, created_at`, assayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*model.Step
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func (s *SQLiteStore) UpdateStep(ctx context.Context, st *model.Step) error {
	s.logger.Debug("sql", "op", "update", "table", "steps", "id", st.ID)

	depsJSON, err := marshalStrings(st.CalculationDependencies)
	if err != nil {
		return fmt.Errorf("marshal calculation_dependencies: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE steps SET assay_id=?, title=?, description=?, estimated_time=?, warning=?, notes=?,
		 order_index=?, calculation_dependencies=?, calculation_formula=? WHERE id=?`,
		st.AssayID, st.Title, st.Description, st.EstimatedTime, st.Warning, st.Notes,
		st.Order, depsJSON, st.CalculationFormula, st.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(result, "step", st.ID)
}

func (s *SQLiteStore) DeleteStep(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "steps", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM steps WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result, "step", id)
}

// --- UserWorkflow CRUD ---

const runColumns = `id, project_id, workflow_id, user_id, started_at, completed_at,
	current_assay_id, current_step_id, parameters, status, notes`

func (s *SQLiteStore) CreateUserWorkflow(ctx context.Context, uw *model.UserWorkflow) error {
	s.logger.Debug("sql", "op", "insert", "table", "user_workflows", "id", uw.ID)

	paramsJSON, err := marshalParams(uw.Parameters)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_workflows (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uw.ID, uw.ProjectID, uw.WorkflowID, uw.UserID, formatTime(uw.StartedAt), formatTimePtr(uw.CompletedAt),
		uw.CurrentAssayID, uw.CurrentStepID, paramsJSON, string(uw.Status), uw.Notes,
	)
	return err
}

func marshalParams(params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal parameters: %w", err)
	}
	return string(b), nil
}

func scanUserWorkflow(row interface{ Scan(...any) error }) (*model.UserWorkflow, error) {
	var uw model.UserWorkflow
	var startedAt, paramsJSON, status string
	var completedAt *string
	if err := row.Scan(&uw.ID, &uw.ProjectID, &uw.WorkflowID, &uw.UserID, &startedAt, &completedAt,
		&uw.CurrentAssayID, &uw.CurrentStepID, &paramsJSON, &status, &uw.Notes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(paramsJSON), &uw.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	uw.StartedAt = parseTime(startedAt)
	uw.CompletedAt = parseTimePtr(completedAt)
	uw.Status = model.RunStatus(status)
	return &uw, nil
}

func (s *SQLiteStore) GetUserWorkflow(ctx context.Context, id string) (*model.UserWorkflow, error) {
	s.logger.Debug("sql", "op", "select", "table", "user_workflows", "id", id)

	uw, err := scanUserWorkflow(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM user_workflows WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return uw, err
}

func (s *SQLiteStore) ListUserWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.UserWorkflow, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "user_workflows", "user_id", opts.UserID, "project_id", opts.ProjectID)
	opts.Clamp()

	var w whereBuilder
	w.eq("user_id", opts.UserID)
	w.eq("project_id", opts.ProjectID)
	w.eq("workflow_id", opts.WorkflowID)
	w.eq("status", opts.Status)

	total, err := s.count(ctx, "user_workflows", &w)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM user_workflows`+w.sql()+` ORDER BY started_at DESC, id LIMIT ? OFFSET ?`,
		append(w.args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.UserWorkflow
	for rows.Next() {
		uw, err := scanUserWorkflow(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, uw)
	}
	return runs, total, rows.Err()
}

func (s *SQLiteStore) UpdateUserWorkflow(ctx context.Context, uw *model.UserWorkflow) error {
	s.logger.Debug("sql", "op", "update", "table", "user_workflows", "id", uw.ID)

	paramsJSON, err := marshalParams(uw.Parameters)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE user_workflows SET completed_at=?, current_assay_id=?, current_step_id=?, parameters=?,
		 status=?, notes=? WHERE id=?`,
		formatTimePtr(uw.CompletedAt), uw.CurrentAssayID, uw.CurrentStepID, paramsJSON,
		string(uw.Status), uw.Notes, uw.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(result, "run", uw.ID)
}

func (s *SQLiteStore) DeleteUserWorkflow(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "user_workflows", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM user_workflows WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result, "run", id)
}

// --- Users ---

const userColumns = `id, email, display_name, role, password_hash, created_at`

func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) error {
	s.logger.Debug("sql", "op", "insert", "table", "users", "id", u.ID)

	existing, err := s.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(u.Email), u.DisplayName, string(u.Role), u.PasswordHash, formatTime(u.CreatedAt),
	)
	return err
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var role, createdAt string
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &role, &u.PasswordHash, &createdAt); err != nil {
		return nil, err
	}
	u.Role = model.UserRole(role)
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	s.logger.Debug("sql", "op", "select", "table", "users", "id", id)

	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.logger.Debug("sql", "op", "select_by_email", "table", "users")

	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.logger.Debug("sql", "op", "list", "table", "users")

	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u *model.User) error {
	s.logger.Debug("sql", "op", "update", "table", "users", "id", u.ID)

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET display_name=?, role=?, password_hash=? WHERE id=?`,
		u.DisplayName, string(u.Role), u.PasswordHash, u.ID)
	if err != nil {
		return err
	}
	return checkAffected(result, "user", u.ID)
}

// --- Sessions ---

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.Session) error {
	s.logger.Debug("sql", "op", "insert", "table", "sessions", "user_id", sess.UserID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, email, role, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Email, string(sess.Role), sess.CreatedAt.Unix(), sess.ExpiresAt.Unix())
	return err
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	var role string
	var createdAt, expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, email, role, created_at, expires_at FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.Email, &role, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess.Role = model.UserRole(role)
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.ExpiresAt = time.Unix(expiresAt, 0)
	return &sess, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if n > 0 {
		s.logger.Debug("sql", "op", "delete_expired", "table", "sessions", "count", n)
	}
	return n, err
}
