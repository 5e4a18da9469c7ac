package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/JonMunkholm/catalogimport/internal/logging"
	"github.com/JonMunkholm/catalogimport/internal/store"
	"github.com/JonMunkholm/catalogimport/internal/web/views"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleImport runs one import. The file comes from the multipart field
// "file" or, for other content types, from the raw body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	s.runImport(w, r, false)
}

// handleValidate runs the pipeline without writing.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	s.runImport(w, r, true)
}

func (s *Server) runImport(w http.ResponseWriter, r *http.Request, validateOnly bool) {
	kind := store.Collection(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		s.respondError(w, r, fmt.Errorf("import %q: %w", kind, store.ErrUnknownCollection))
		return
	}

	file, err := s.readFile(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	opts := parseOptions(r, kind)
	if validateOnly {
		opts.ValidateOnly = true
	}

	log := logging.WithFields(r.Context(), "kind", kind, "file", file.Name)

	// Validate-only runs never write, so they do not take the gate.
	if !opts.ValidateOnly {
		release, err := s.gate.Acquire(r.Context(), kind)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		defer release()
	}

	log.Info("import requested",
		"update_existing", opts.UpdateExisting,
		"skip_duplicates", opts.SkipDuplicates,
		"validate_only", opts.ValidateOnly,
	)

	opts.Logger = logging.FromContext(r.Context())
	result := s.importer.ImportWithValidation(r.Context(), file, opts)

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := views.ImportReport(file.Name, result).Render(r.Context(), w); err != nil {
			log.Error("render report", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) readFile(w http.ResponseWriter, r *http.Request) (core.File, error) {
	maxSize := s.cfg.Import.MaxFileSize
	// Allow for multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<16)

	var (
		src  io.Reader
		name string
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxSize); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return core.File{}, fmt.Errorf("read upload: %w", core.ErrFileTooLarge)
			}
			return core.File{}, fmt.Errorf("%w: %v", errInvalidForm, err)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			return core.File{}, errNoFile
		}
		defer f.Close()
		src, name = f, filepath.Base(header.Filename)
	} else {
		src, name = r.Body, r.URL.Query().Get("filename")
	}
	if name == "" {
		name = "upload.csv"
	}

	text, err := core.ReadInput(src, maxSize)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.File{}, fmt.Errorf("read upload: %w", core.ErrFileTooLarge)
		}
		return core.File{}, fmt.Errorf("read upload: %w", err)
	}
	return core.File{Name: name, Content: text}, nil
}

// parseOptions reads policy flags from the form or query string. Missing
// flags keep their defaults, which skip exact duplicates.
func parseOptions(r *http.Request, kind store.Collection) core.Options {
	opts := core.DefaultOptions(kind)
	flag := func(key string, dst *bool) {
		v := r.FormValue(key)
		if v == "" {
			return
		}
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		} else if b, ok := core.ParseBool(v); ok {
			*dst = b
		}
	}
	flag("updateExisting", &opts.UpdateExisting)
	flag("skipDuplicates", &opts.SkipDuplicates)
	flag("validateOnly", &opts.ValidateOnly)
	return opts
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	kind := store.Collection(chi.URLParam(r, "kind"))
	def, err := core.DefinitionFor(kind)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	text, err := def.Template()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_template.csv"`, kind))
	_, _ = io.WriteString(w, text)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	logs, err := s.store.RecentLogs(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if logs == nil {
		logs = []store.ImportLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
