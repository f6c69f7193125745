package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/matzehuels/curator/pkg/buildinfo"
	"github.com/matzehuels/curator/pkg/catalog"
	"github.com/matzehuels/curator/pkg/errors"
	"github.com/matzehuels/curator/pkg/manifest"
	"github.com/matzehuels/curator/pkg/search"
)

type errorBody struct {
	Code  errors.Code `json:"code"`
	Error string      `json:"error"`
}

type tableBody struct {
	Records []catalog.Record       `json:"records"`
	Counts  map[catalog.Status]int `json:"counts"`
}

// searchBody is a search snapshot with its failure, if any, spelled out.
type searchBody struct {
	search.Session
	Error string `json:"error,omitempty"`
}

func newSearchBody(sess search.Session) searchBody {
	b := searchBody{Session: sess}
	if sess.Err != nil {
		b.Error = errors.UserMessage(sess.Err)
	}
	return b
}

type addRequest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type addResponse struct {
	Record catalog.Record `json:"record"`
	Added  bool           `json:"added"`
}

type importResponse struct {
	File    string           `json:"file"`
	Entries int              `json:"entries"`
	Added   int              `json:"added"`
	Records []catalog.Record `json:"records"`
	Failed  []catalog.Entry  `json:"failed"`
}

// =============================================================================
// Service
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.Len()})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}

// =============================================================================
// Sessions
// =============================================================================

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.New()
	cur := s.factory()

	s.mu.Lock()
	s.sessions[id] = cur
	s.mu.Unlock()

	s.logger.Info("session created", "id", id)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, _ := uuid.Parse(chi.URLParam(r, "id"))

	s.mu.Lock()
	cur := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if cur != nil {
		cur.Close()
	}
	s.logger.Info("session closed", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Search
// =============================================================================

func (s *Server) handleGetSearch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSearchBody(sessionFrom(r).Search()))
}

func (s *Server) handleCommitSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSearchBody(sessionFrom(r).CommitQuery(req.Query)))
}

func (s *Server) handleSearchInput(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sessionFrom(r).Input(req.Text)
	w.WriteHeader(http.StatusAccepted)
}

// =============================================================================
// Working set
// =============================================================================

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	cur := sessionFrom(r)
	writeJSON(w, http.StatusOK, tableBody{Records: cur.Table(), Counts: cur.Counts()})
}

func (s *Server) handleAddSelected(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "name is required"))
		return
	}

	rec, added, err := sessionFrom(r).AddSelected(r.Context(), req.Name, req.Version)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, addResponse{Record: rec, Added: added})
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "package name"))
		return
	}

	cur := sessionFrom(r)
	switch action := chi.URLParam(r, "action"); action {
	case "accept":
		err = cur.Accept(name)
	case "reject":
		err = cur.Reject(name)
	default:
		writeError(w, errors.New(errors.ErrCodeNotFound, "unknown action %q", action))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	for _, rec := range cur.Table() {
		if rec.Name == name {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Import
// =============================================================================

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.readDocument(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := sessionFrom(r).Import(r.Context(), doc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{
		File:    doc.Name,
		Entries: len(res.Entries),
		Added:   res.Added,
		Records: res.Records,
		Failed:  res.Failed,
	})
}

// readDocument accepts either a multipart form with a "file" part or the
// manifest as the raw request body. The declared content type travels with
// the document; ?name= names a raw upload.
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request) (manifest.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(s.maxUpload); err != nil {
			return manifest.Document{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "read upload")
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return manifest.Document{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "form field \"file\"")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return manifest.Document{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "read upload")
		}
		return manifest.Document{Name: hdr.Filename, MediaType: hdr.Header.Get("Content-Type"), Data: data}, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return manifest.Document{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "read body")
	}
	return manifest.Document{Name: r.URL.Query().Get("name"), MediaType: r.Header.Get("Content-Type"), Data: data}, nil
}

// =============================================================================
// Encoding
// =============================================================================

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, errors.HTTPStatus(code), errorBody{Code: code, Error: errors.UserMessage(err)})
}
