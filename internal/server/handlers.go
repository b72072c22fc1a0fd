package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kyleking/ae-columns/internal/analytics"
	"github.com/kyleking/ae-columns/internal/errors"
	"github.com/kyleking/ae-columns/internal/logging"
	"github.com/kyleking/ae-columns/internal/mapping"
	"github.com/kyleking/ae-columns/internal/query"
	"github.com/kyleking/ae-columns/internal/schema"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error       string   `json:"error"`
	Type        string   `json:"type"`
	Suggestions []string `json:"suggestions,omitempty"`
	RequestID   string   `json:"request_id,omitempty"`
}

type mappingsResponse struct {
	Dataset  string             `json:"dataset"`
	Mappings mapping.Collection `json:"mappings"`
}

type pasteRequest struct {
	Column string `json:"column"`
	Text   string `json:"text"`
}

type pasteResponse struct {
	Handled  bool               `json:"handled"`
	Mappings mapping.Collection `json:"mappings"`
}

type setMappingRequest struct {
	FriendlyName string `json:"friendly_name"`
	Description  string `json:"description"`
}

type queryRequest struct {
	Query    string         `json:"query"`
	Params   map[string]any `json:"params"`
	Dataset  string         `json:"dataset,omitempty"`
	Friendly bool           `json:"friendly,omitempty"`
}

type schemaColumn struct {
	Name         string `json:"name"`
	FriendlyName string `json:"friendly_name,omitempty"`
}

type schemaCategory struct {
	Type    schema.ColumnType `json:"type"`
	Columns []schemaColumn    `json:"columns"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.WithError(err).Warn("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)

	resp := errorResponse{
		Error:     err.Error(),
		Type:      string(errors.GetType(err)),
		RequestID: RequestIDFromContext(r.Context()),
	}

	var structErr *errors.Error
	if errors.As(err, &structErr) {
		resp.Error = structErr.Message
		resp.Suggestions = structErr.Suggestions
	}

	if status >= http.StatusInternalServerError {
		logging.WithError(err).WithField("request_id", resp.RequestID).Error("request failed")
	}

	writeJSON(w, status, resp)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()

	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, errors.ErrTypeValidation, "invalid JSON body")
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	var coll mapping.Collection

	if dataset := r.URL.Query().Get("dataset"); dataset != "" {
		st, err := s.store(r.Context(), dataset)
		if err != nil {
			writeError(w, r, err)
			return
		}

		coll = st.Snapshot()
	}

	categories := make([]schemaCategory, 0, len(s.provider.Categories()))

	for _, category := range s.provider.Categories() {
		columns := s.provider.ColumnsByCategory(category)
		entry := schemaCategory{Type: category, Columns: make([]schemaColumn, 0, len(columns))}

		for _, col := range columns {
			sc := schemaColumn{Name: col}
			if m, ok := coll.Get(col); ok {
				sc.FriendlyName = m.FriendlyName
			}

			entry.Columns = append(entry.Columns, sc)
		}

		categories = append(categories, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := s.repo.ListDatasets(r.Context())
	if err != nil {
		writeError(w, r, errors.Wrap(err, errors.ErrTypeDatabase, "failed to list datasets"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"datasets": datasets})
}

func (s *Server) handleListMappings(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")

	st, err := s.store(r.Context(), dataset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mappingsResponse{Dataset: dataset, Mappings: st.Snapshot()})
}

func (s *Server) handleSetMapping(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")
	column := chi.URLParam(r, "column")

	if _, known := s.provider.LookupType(column); !known {
		writeError(w, r, errors.Newf(errors.ErrTypeNotFound, "unknown column %q", column))
		return
	}

	var req setMappingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	st, err := s.store(r.Context(), dataset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	coll, _, err := st.Set(r.Context(), s.provider, column, req.FriendlyName, req.Description)
	if err != nil {
		writeError(w, r, errors.Wrap(err, errors.ErrTypeDatabase, "failed to save mapping"))
		return
	}

	writeJSON(w, http.StatusOK, mappingsResponse{Dataset: dataset, Mappings: coll})
}

func (s *Server) handleRemoveMapping(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")
	column := chi.URLParam(r, "column")

	st, err := s.store(r.Context(), dataset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	coll, changed, err := st.Remove(r.Context(), column)
	if err != nil {
		writeError(w, r, errors.Wrap(err, errors.ErrTypeDatabase, "failed to remove mapping"))
		return
	}

	if !changed {
		writeError(w, r, errors.Newf(errors.ErrTypeNotFound, "column %q is not mapped", column))
		return
	}

	writeJSON(w, http.StatusOK, mappingsResponse{Dataset: dataset, Mappings: coll})
}

func (s *Server) handleClearMappings(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")

	st, err := s.store(r.Context(), dataset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	coll, _, err := st.Update(r.Context(), func(c mapping.Collection) (mapping.Collection, bool) {
		return mapping.Collection{}, c.Len() > 0
	})
	if err != nil {
		writeError(w, r, errors.Wrap(err, errors.ErrTypeDatabase, "failed to clear mappings"))
		return
	}

	writeJSON(w, http.StatusOK, mappingsResponse{Dataset: dataset, Mappings: coll})
}

func (s *Server) handlePaste(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")

	var req pasteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	st, err := s.store(r.Context(), dataset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	handled, err := s.distributor.HandlePaste(r.Context(), st, mapping.PasteEvent{Column: req.Column, Text: req.Text})
	if err != nil {
		writeError(w, r, errors.Wrap(err, errors.ErrTypeDatabase, "failed to save pasted mappings"))
		return
	}

	writeJSON(w, http.StatusOK, pasteResponse{Handled: handled, Mappings: st.Snapshot()})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, errors.New(errors.ErrTypeValidation, "query must not be empty"))
		return
	}

	creds, err := analytics.ResolveCredentials(r.Header, s.creds)
	if err != nil {
		writeError(w, r, err)
		return
	}

	params, err := query.ParamsFromJSON(req.Params)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if missing := query.Missing(req.Query, params); len(missing) > 0 {
		w.Header().Set("X-Unresolved-Params", strings.Join(missing, ","))
	}

	result, err := s.executor.Execute(r.Context(), creds, query.Substitute(req.Query, params))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.Friendly && req.Dataset != "" {
		st, err := s.store(r.Context(), req.Dataset)
		if err != nil {
			writeError(w, r, err)
			return
		}

		result = result.Relabel(st.Snapshot())
	}

	writeJSON(w, http.StatusOK, result)
}
