package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/darshan-rambhia/opticdeck/internal/model"
	"github.com/darshan-rambhia/opticdeck/internal/report"
	"github.com/darshan-rambhia/opticdeck/internal/workbook"
)

const (
	pptxContentType  = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	defaultListLimit = 50
	maxListLimit     = 1000
)

// writeJSON marshals v into a buffer first so that marshalling errors can
// still become a proper 500.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding JSON response", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Debug("writing JSON response", "path", r.URL.Path, "error", err)
	}
}

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error string `json:"error"`
}

type reportList struct {
	Reports []model.ReportRun `json:"reports"`
	Count   int               `json:"count"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	History   bool   `json:"history"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

// handleConvert accepts a workbook, either as the "workbook" field of a
// multipart form or as the raw request body, and responds with the deck.
//
// @Summary Convert a workbook into a deck
// @Description Accepts a survey workbook as the multipart field "workbook" or as the raw request body and responds with the generated presentation.
// @Accept multipart/form-data
// @Accept application/octet-stream
// @Produce application/vnd.openxmlformats-officedocument.presentationml.presentation
// @Param workbook formData file false "Workbook (.xlsx)"
// @Success 200 {file} file "Generated deck"
// @Header 200 {string} X-Report-ID "Recorded run id, when history is enabled"
// @Header 200 {integer} X-Report-Slides "Number of slides"
// @Header 200 {integer} X-Report-Insights "Number of insight narratives"
// @Failure 400 {object} errorResponse "No workbook in the request"
// @Failure 413 {object} errorResponse "Workbook exceeds max_upload_mb"
// @Failure 422 {object} errorResponse "Not a readable workbook"
// @Failure 500 {object} errorResponse "Deck could not be written"
// @Router /api/reports [post]
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	dir, err := os.MkdirTemp("", "opticdeck-upload-*")
	if err != nil {
		slog.Error("creating upload directory", "error", err)
		writeError(w, r, http.StatusInternalServerError, "cannot stage upload")
		return
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "workbook.xlsx")
	name, err := saveUpload(r, inPath)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("workbook exceeds %d bytes", s.maxUpload))
		case errors.Is(err, errNoWorkbook):
			writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			slog.Warn("reading upload", "error", err)
			writeError(w, r, http.StatusBadRequest, "cannot read upload")
		}
		return
	}

	run, deckPath, err := s.conv.RunUpload(r.Context(), inPath, name)
	if err != nil {
		switch {
		case errors.Is(err, workbook.ErrUnreadable):
			writeError(w, r, http.StatusUnprocessableEntity, "not a readable workbook")
		case errors.Is(err, report.ErrWriteFailure):
			writeError(w, r, http.StatusInternalServerError, "deck could not be written")
		default:
			writeError(w, r, http.StatusInternalServerError, err.Error())
		}
		return
	}

	f, err := os.Open(deckPath)
	if err != nil {
		slog.Error("opening generated deck", "path", deckPath, "error", err)
		writeError(w, r, http.StatusInternalServerError, "deck could not be read back")
		return
	}
	defer f.Close()

	h := w.Header()
	h.Set("Content-Type", pptxContentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filepath.Base(deckPath)}))
	if run.ID != "" {
		h.Set("X-Report-ID", run.ID)
	}
	h.Set("X-Report-Slides", strconv.Itoa(run.Slides))
	h.Set("X-Report-Insights", strconv.Itoa(run.Insights))
	if _, err := io.Copy(w, f); err != nil {
		slog.Debug("writing deck response", "error", err)
	}
}

var errNoWorkbook = errors.New(`no workbook: send a multipart "workbook" field or the file as the request body`)

// saveUpload copies the workbook to path and returns the client's file name
// for it, which is empty for a raw body without a filename parameter.
func saveUpload(r *http.Request, path string) (string, error) {
	var (
		src  io.Reader = r.Body
		name string
	)
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		mr, err := r.MultipartReader()
		if err != nil {
			return "", err
		}
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return "", errNoWorkbook
			}
			if err != nil {
				return "", err
			}
			if part.FormName() == "workbook" {
				src, name = part, part.FileName()
				break
			}
			part.Close()
		}
	} else if _, params, err := mime.ParseMediaType(r.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = filepath.Base(params["filename"])
	}

	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", errNoWorkbook
	}
	return name, nil
}

// @Summary List generated reports
// @Description Returns recorded runs, newest first
// @Produce json
// @Param limit query int false "Maximum number of runs (1-1000)" default(50)
// @Success 200 {object} reportList
// @Failure 400 {object} errorResponse "Invalid limit"
// @Failure 503 {object} errorResponse "History is disabled"
// @Router /api/reports [get]
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, http.StatusServiceUnavailable, "run history is disabled (no db_path)")
		return
	}
	limit := defaultListLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := s.history.ListReports(limit)
	if err != nil {
		slog.Error("listing reports", "error", err)
		writeError(w, r, http.StatusInternalServerError, "cannot list reports")
		return
	}
	if runs == nil {
		runs = []model.ReportRun{}
	}
	writeJSON(w, r, http.StatusOK, reportList{Reports: runs, Count: len(runs)})
}

// @Summary Health check
// @Description Returns service status and whether run history is available
// @Produce json
// @Success 200 {object} healthResponse
// @Router /healthz [get]
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().Unix(),
		History:   s.history != nil,
	})
}
