// Package ui serves the LabFlow web interface.
package ui

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/me/labflow/internal/auth"
	"github.com/me/labflow/internal/catalog"
	"github.com/me/labflow/internal/formula"
	"github.com/me/labflow/pkg/model"
)

// UI handles the web user interface.
type UI struct {
	catalog   *catalog.Catalog
	accounts  *auth.Accounts
	sessions  *auth.SessionManager
	evaluator *formula.Evaluator
	logger    *slog.Logger
	startTime time.Time
	secure    bool // Use secure cookies (HTTPS)
}

// Config holds UI configuration.
type Config struct {
	Secure         bool // Use secure cookies for HTTPS
	FormulaTimeout time.Duration
}

// New creates a new UI handler.
func New(cat *catalog.Catalog, acc *auth.Accounts, logger *slog.Logger, cfg Config) *UI {
	return &UI{
		catalog:   cat,
		accounts:  acc,
		sessions:  acc.Sessions(),
		evaluator: formula.NewEvaluator(cfg.FormulaTimeout),
		logger:    logger.With("component", "ui"),
		startTime: time.Now(),
		secure:    cfg.Secure,
	}
}

type navLink struct {
	Href  string
	Label string
}

// page returns the data every template expects: title, session, and nav.
func (ui *UI) page(r *http.Request, title, active string) map[string]any {
	sess := SessionFromContext(r.Context())
	nav := []navLink{{"/", "Home"}, {"/workflows", "Workflows"}, {"/assays", "Assays"}}
	if sess != nil {
		nav = append(nav, navLink{"/dashboard", "Dashboard"})
		if sess.IsAdmin() {
			nav = append(nav, navLink{"/admin", "Admin"})
		}
	}
	return map[string]any{
		"Title":   title + " - LabFlow",
		"Session": sess,
		"Nav":     nav,
		"Active":  active,
		"Year":    time.Now().Year(),
		"Errors":  map[string]string{},
	}
}

func (ui *UI) parseListOptions(r *http.Request) model.ListOptions {
	opts := model.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 && n <= 100 {
			opts.Limit = n
		}
	}

	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil && n >= 0 {
			opts.Offset = n
		}
	}

	opts.Search = r.URL.Query().Get("q")
	return opts
}

func (ui *UI) buildPagination(opts model.ListOptions, total int) map[string]any {
	return map[string]any{
		"Total":      total,
		"Limit":      opts.Limit,
		"Offset":     opts.Offset,
		"HasMore":    opts.Offset+opts.Limit < total,
		"HasPrev":    opts.Offset > 0,
		"NextOffset": opts.Offset + opts.Limit,
		"PrevOffset": max(0, opts.Offset-opts.Limit),
	}
}

// fieldErrors flattens a validation error into a field -> message map.
// It returns nil for any other error.
func fieldErrors(err error) map[string]string {
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve.Fields))
	for _, f := range ve.Fields {
		if _, ok := out[f.Field]; !ok {
			out[f.Field] = f.Message
		}
	}
	return out
}

func (ui *UI) render(w http.ResponseWriter, template string, data map[string]any) {
	ui.renderStatus(w, http.StatusOK, template, data)
}

func (ui *UI) renderStatus(w http.ResponseWriter, status int, template string, data map[string]any) {
	var buf bytes.Buffer
	if err := renderTemplate(&buf, template, data); err != nil {
		ui.logger.Error("template render failed", "template", template, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (ui *UI) renderError(w http.ResponseWriter, r *http.Request, message string, err error) {
	ui.logger.Error(message, "error", err)
	data := ui.page(r, "Error", "")
	data["Message"] = message
	ui.renderStatus(w, http.StatusInternalServerError, "error", data)
}

func (ui *UI) renderNotFound(w http.ResponseWriter, r *http.Request, message string) {
	data := ui.page(r, "Not Found", "")
	data["Message"] = message
	ui.renderStatus(w, http.StatusNotFound, "error", data)
}
