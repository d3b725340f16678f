package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/esgmap/internal/config"
	"github.com/JonMunkholm/esgmap/internal/core"
	"github.com/JonMunkholm/esgmap/internal/logging"
)

// PrimaryField is the multipart field carrying the primary table.
const PrimaryField = config.PrimarySource

// multipartMemory is how much of a form is buffered in memory before spilling
// files to disk.
const multipartMemory = 32 << 20

// handleReconcile runs a reconciliation and returns the filled file.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runFromForm(w, r)
	if !ok {
		return
	}

	summary, err := json.Marshal(res.Summary())
	if err != nil {
		s.respondError(w, r, fmt.Errorf("encode summary: %w", err), http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", res.ContentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.OutputName}))
	h.Set("Content-Length", strconv.Itoa(len(res.Output)))
	h.Set("X-Run-Id", res.RunID.String())
	h.Set("X-Total-Rows", strconv.Itoa(res.TotalRows))
	h.Set("X-Reconcile-Summary", string(summary))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(res.Output); err != nil {
		logging.FromContext(r.Context()).Warn("write output failed", "run_id", res.RunID.String(), "error", err)
	}
}

// handlePreview runs a reconciliation and returns only the diagnostics.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runFromForm(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res.Summary())
}

// runFromForm parses the multipart upload and runs it. On failure it has
// already written the error response.
func (s *Server) runFromForm(w http.ResponseWriter, r *http.Request) (*core.RunResult, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxRequestSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.respondError(w, r, fmt.Errorf("%w: request exceeds %d bytes", core.ErrFileTooLarge, maxBytes.Limit), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", core.ErrNoFile, err), http.StatusBadRequest)
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	in, closeAll, err := s.formInput(r.MultipartForm)
	defer closeAll()
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return nil, false
	}

	ctx := WithRequestMetadata(r.Context(), r)
	res, err := s.service.Run(ctx, in)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return nil, false
	}
	return res, true
}

// formInput opens every uploaded file. Field "primary" is the primary table;
// every other file field is a source key. closeAll is always safe to call.
func (s *Server) formInput(form *multipart.Form) (core.RunInput, func(), error) {
	var files []multipart.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	open := func(fh *multipart.FileHeader) (core.Upload, error) {
		if fh.Size > s.cfg.Upload.MaxFileSize {
			return core.Upload{}, fmt.Errorf("%w: %s is %d bytes, limit %d", core.ErrFileTooLarge, fh.Filename, fh.Size, s.cfg.Upload.MaxFileSize)
		}
		f, err := fh.Open()
		if err != nil {
			return core.Upload{}, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		files = append(files, f)
		return core.Upload{Name: fh.Filename, Reader: f}, nil
	}

	in := core.RunInput{Sources: make(map[string][]core.Upload)}

	for field, headers := range form.File {
		if field == PrimaryField {
			if len(headers) > 1 {
				return in, closeAll, &core.MissingInputError{Inputs: []string{fmt.Sprintf("a single primary table (got %d)", len(headers))}}
			}
			u, err := open(headers[0])
			if err != nil {
				return in, closeAll, err
			}
			in.Primary = &u
			continue
		}
		for _, fh := range headers {
			u, err := open(fh)
			if err != nil {
				return in, closeAll, err
			}
			in.Sources[field] = append(in.Sources[field], u)
		}
	}

	return in, closeAll, nil
}

// mappingView is the JSON form of the effective mapping.
type mappingView struct {
	IdentityField            string                `json:"identity_field"`
	Placeholders             []string              `json:"placeholders"`
	PlaceholderCaseSensitive bool                  `json:"placeholder_case_sensitive"`
	HeaderCaseSensitive      bool                  `json:"header_case_sensitive"`
	FillValue                string                `json:"fill_value"`
	OverwritePolicy          string                `json:"overwrite_policy"`
	PrimaryHeaderRow         int                   `json:"primary_header_row"`
	OutputSuffix             string                `json:"output_suffix"`
	Targets                  []config.TargetConfig `json:"targets"`
}

func newMappingView(m config.MappingConfig) mappingView {
	placeholders := m.Placeholders
	if placeholders == nil {
		placeholders = []string{}
	}
	return mappingView{
		IdentityField:            m.IdentityField,
		Placeholders:             placeholders,
		PlaceholderCaseSensitive: m.PlaceholderCaseSensitive,
		HeaderCaseSensitive:      m.HeaderCaseSensitive,
		FillValue:                m.FillValue,
		OverwritePolicy:          m.OverwritePolicy,
		PrimaryHeaderRow:         m.PrimaryHeaderRow,
		OutputSuffix:             m.OutputSuffix,
		Targets:                  m.Targets(),
	}
}

func (s *Server) handleMapping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newMappingView(s.service.Mapping()))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, r, core.ErrHistoryDisabled, http.StatusNotFound)
		return
	}

	limit := parseIntParam(r, "limit", s.cfg.Database.HistoryLimit)
	if limit > s.cfg.Database.HistoryLimit {
		limit = s.cfg.Database.HistoryLimit
	}

	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	if runs == nil {
		runs = []core.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// pinger is implemented by history backends with a connection to check.
type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	resp := map[string]any{
		"status": "ok",
		"runs":   s.service.LimiterStatus(),
	}

	switch h := s.history.(type) {
	case nil:
		resp["history"] = "disabled"
	case pinger:
		if err := h.Ping(r.Context()); err != nil {
			logging.FromContext(r.Context()).Warn("history ping failed", "error", err)
			resp["status"] = "degraded"
			resp["history"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp["history"] = "ok"
		}
	default:
		resp["history"] = "memory"
	}

	writeJSON(w, status, resp)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
