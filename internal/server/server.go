// Package server serves batch reports and the review queue over HTTP.
package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/condrater/internal/condition"
	"github.com/TobiSchelling/condrater/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Server is the HTTP server for reports and reviews.
type Server struct {
	db    *database.DB
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// recordRow is one line of the batch records table.
type recordRow struct {
	Record     database.Record
	Assessment *database.Assessment
	Categories []string
}

// New creates a new Server.
func New(db *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":    renderMarkdown,
		"formatBatch": database.FormatBatchDisplay,
		"verdictClass": func(v string) string {
			return strings.ToLower(strings.ReplaceAll(v, " ", "-"))
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of the base so the pages' "content"
	// and "title" blocks don't collide.
	pageNames := []string{"index.html", "batch.html", "review.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/batch/", s.handleBatch)
	s.mux.HandleFunc("/review", s.handleReview)
	s.mux.HandleFunc("/review/", s.handleResolve)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	batches, err := s.db.GetAllBatches()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	reports, err := s.db.GetAllReports()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	byBatch := make(map[string]database.Report, len(reports))
	for _, rep := range reports {
		byBatch[rep.BatchID] = rep
	}
	stats, _ := s.db.GetStats()

	s.render(w, "index.html", map[string]any{
		"Batches": batches,
		"Reports": byBatch,
		"Stats":   stats,
	})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	batchID := strings.TrimPrefix(r.URL.Path, "/batch/")
	if batchID == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	batch, err := s.db.GetBatch(batchID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if batch == nil {
		http.NotFound(w, r)
		return
	}

	rows, err := s.recordRows(batchID)
	if err != nil {
		log.Printf("Error loading records for %s: %v", batchID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	report, _ := s.db.GetReport(batchID)

	var areas []string
	if len(rows) > 0 {
		rec := rows[0].Record
		areas = append(areas, rec.Primary.Name)
		for _, a := range rec.Areas {
			areas = append(areas, a.Name)
		}
	}

	s.render(w, "batch.html", map[string]any{
		"Batch":  batch,
		"Report": report,
		"Fields": areas,
		"Rows":   rows,
	})
}

func (s *Server) recordRows(batchID string) ([]recordRow, error) {
	records, err := s.db.GetRecordsForBatch(batchID)
	if err != nil {
		return nil, err
	}
	classes, err := s.db.GetClassificationsForBatch(batchID)
	if err != nil {
		return nil, err
	}
	assessments, err := s.db.GetAssessmentsForBatch(batchID)
	if err != nil {
		return nil, err
	}

	rows := make([]recordRow, 0, len(records))
	for _, rec := range records {
		row := recordRow{Record: rec, Categories: make([]string, rec.Slots())}
		for _, cl := range classes[rec.ID] {
			if cl.Slot < len(row.Categories) {
				row.Categories[cl.Slot] = cl.Category
			}
		}
		if a, ok := assessments[rec.ID]; ok {
			row.Assessment = &a
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	batchID := r.URL.Query().Get("batch")
	showAll := r.URL.Query().Get("all") == "1"

	items, err := s.db.GetFlaggedRecords(batchID, !showAll)
	if err != nil {
		log.Printf("Error loading review queue: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "review.html", map[string]any{
		"Items":      items,
		"BatchID":    batchID,
		"ShowAll":    showAll,
		"Categories": condition.Categories,
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/review", http.StatusFound)
		return
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/review/"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	a, err := s.db.GetAssessment(id)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if a == nil {
		http.NotFound(w, r)
		return
	}

	if r.FormValue("action") == "clear" {
		if err := s.db.DeleteReview(id); err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	} else {
		if a.Verdict != string(condition.Flagged) {
			http.Error(w, fmt.Sprintf("record %d is not flagged", id), http.StatusBadRequest)
			return
		}
		resolution := condition.Normalize(r.FormValue("resolution"))
		if !resolution.Known() {
			http.Error(w, fmt.Sprintf("unknown category %q", resolution), http.StatusBadRequest)
			return
		}
		var note *string
		if n := strings.TrimSpace(r.FormValue("note")); n != "" {
			note = &n
		}
		if err := s.db.UpsertReview(id, string(resolution), note); err != nil {
			log.Printf("Error storing review for record %d: %v", id, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	next := "/review"
	if q := r.FormValue("return"); strings.HasPrefix(q, "/review") {
		next = q
	}
	http.Redirect(w, r, next, http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int) error {
	srv, err := New(db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
