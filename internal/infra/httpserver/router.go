package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appai "github.com/printsafeai/printsafe-api/internal/application/ai"
	appanalysis "github.com/printsafeai/printsafe-api/internal/application/analysis"
	domai "github.com/printsafeai/printsafe-api/internal/domain/ai"
	domain "github.com/printsafeai/printsafe-api/internal/domain/analysis"
	"github.com/printsafeai/printsafe-api/internal/domain/employees"
	"github.com/printsafeai/printsafe-api/internal/middleware"
)

type Router struct {
	svc   *appanalysis.Service
	aiSvc *appai.Service
}

func NewRouter(svc *appanalysis.Service, aiSvc *appai.Service, health http.HandlerFunc) http.Handler {
	r := &Router{svc: svc, aiSvc: aiSvc}
	mux := chi.NewRouter()

	if health == nil {
		health = func(w http.ResponseWriter, req *http.Request) {
			w.Write([]byte("ok"))
		}
	}
	mux.Get("/health", health)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/employees", r.wrap(r.handleListEmployees))
		rt.Post("/sessions", r.wrap(r.handleOpenSession))
		rt.Get("/sessions/{id}", r.wrap(r.handleGetSession))
		rt.Post("/sessions/{id}/save", r.wrap(r.handleSaveSession))
		rt.Post("/sessions/{id}/images/{index}/review", r.wrap(r.handleReview))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap is the single place where taxonomy errors turn into status codes.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, domain.ErrValidation):
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err)
		case errors.Is(err, domain.ErrDecode):
			writeError(w, http.StatusBadRequest, "DECODE_ERROR", err)
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", err)
		case errors.Is(err, domain.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", err)
		case errors.Is(err, domain.ErrConstraint):
			writeError(w, http.StatusConflict, "CONSTRAINT_VIOLATION", err)
		case errors.Is(err, domai.ErrQuotaExceeded):
			writeError(w, http.StatusTooManyRequests, "AI_QUOTA_EXCEEDED", err)
		case errors.Is(err, domai.ErrDisabled):
			writeError(w, http.StatusNotImplemented, "AI_REVIEW_DISABLED", err)
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err)
		}
	}
}

// POST /v1/analyze (multipart: images)
// Normal analysis mode: verdicts only, nothing staged, nothing persisted.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	uploads, err := readUploads(req)
	if err != nil {
		return err
	}

	results, err := r.svc.Analyze(req.Context(), uploads)
	if err != nil {
		return err
	}
	countImages(results)

	return writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// GET /v1/employees
func (r *Router) handleListEmployees(w http.ResponseWriter, req *http.Request) error {
	list, err := r.svc.ListEmployees(req.Context())
	if err != nil {
		return err
	}

	type item struct {
		employees.Employee
		DisplayName string `json:"nombre_completo"`
	}
	items := make([]item, 0, len(list))
	for _, e := range list {
		items = append(items, item{Employee: e, DisplayName: e.DisplayName()})
	}
	return writeJSON(w, http.StatusOK, map[string]any{"employees": items})
}

// POST /v1/sessions (multipart: images)
// Client analysis mode: results are staged until the save action.
func (r *Router) handleOpenSession(w http.ResponseWriter, req *http.Request) error {
	uploads, err := readUploads(req)
	if err != nil {
		return err
	}

	view, err := r.svc.OpenSession(req.Context(), uploads)
	if err != nil {
		return err
	}
	countImages(view.Results)

	return writeJSON(w, http.StatusCreated, view)
}

// GET /v1/sessions/{id}
func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) error {
	view, err := r.svc.Session(chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, view)
}

// POST /v1/sessions/{id}/save
// Body: client fields + responsible employee. One client row and one analysis
// row per staged image, all-or-nothing.
func (r *Router) handleSaveSession(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Nombres    string `json:"nombres"`
		Apellidos  string `json:"apellidos"`
		DniRuc     string `json:"dni_ruc"`
		Celular    string `json:"celular"`
		Empresa    string `json:"empresa"`
		IDEmpleado int64  `json:"id_empleado"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err)
	}

	cmd := appanalysis.SaveCommand{
		SessionID:  chi.URLParam(req, "id"),
		EmployeeID: body.IDEmpleado,
	}
	cmd.Client.FirstName = middleware.SanitizeString(body.Nombres)
	cmd.Client.LastName = middleware.SanitizeString(body.Apellidos)
	cmd.Client.NationalID = middleware.SanitizeString(body.DniRuc)
	cmd.Client.Phone = middleware.SanitizeString(body.Celular)
	cmd.Client.Company = middleware.SanitizeString(body.Empresa)

	if err := middleware.ValidatePhone(cmd.Client.Phone); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := middleware.ValidateNationalID(cmd.Client.NationalID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	res, err := r.svc.Save(req.Context(), cmd)
	if err != nil {
		// operator input errors are not store failures
		if !errors.Is(err, domain.ErrValidation) && !errors.Is(err, domain.ErrNotFound) {
			middleware.IncrementSavesFailed()
		}
		return err
	}
	middleware.IncrementBatchesSaved()

	return writeJSON(w, http.StatusCreated, res)
}

// POST /v1/sessions/{id}/images/{index}/review
// Optional second opinion from a vision model; display-only, never persisted.
func (r *Router) handleReview(w http.ResponseWriter, req *http.Request) error {
	index, err := strconv.Atoi(chi.URLParam(req, "index"))
	if err != nil {
		return fmt.Errorf("%w: invalid image index", domain.ErrValidation)
	}

	staged, err := r.svc.StagedImage(chi.URLParam(req, "id"), index)
	if err != nil {
		return err
	}

	result, err := r.aiSvc.Review(req.Context(), staged.FileName, staged.Data)
	if err != nil {
		return err
	}

	review := json.RawMessage(result)
	if !json.Valid(review) {
		quoted, _ := json.Marshal(result)
		review = quoted
	}

	return writeJSON(w, http.StatusOK, map[string]any{
		"file_name": staged.FileName,
		"review":    review,
	})
}

// readUploads pulls image files out of a multipart form. Both "images" and the
// singular "image" field names are accepted.
func readUploads(req *http.Request) ([]appanalysis.Upload, error) {
	if err := req.ParseMultipartForm(middleware.MaxUploadBytes); err != nil {
		return nil, fmt.Errorf("%w: parse multipart form: %v", domain.ErrValidation, err)
	}

	files := req.MultipartForm.File["images"]
	if len(files) == 0 {
		files = req.MultipartForm.File["image"]
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no image files provided (use the \"images\" form field)", domain.ErrValidation)
	}

	uploads := make([]appanalysis.Upload, 0, len(files))
	for _, fh := range files {
		if err := middleware.ValidateImageFile(fh.Filename); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open upload %q: %v", domain.ErrDecode, fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read upload %q: %v", domain.ErrDecode, fh.Filename, err)
		}
		uploads = append(uploads, appanalysis.Upload{FileName: fh.Filename, Data: data})
	}
	return uploads, nil
}

func countImages(results []appanalysis.ImageVerdict) {
	flagged := 0
	for _, r := range results {
		if r.Label == domain.LabelInfractor {
			flagged++
		}
	}
	middleware.IncrementImagesAnalyzed(len(results))
	middleware.IncrementImagesFlagged(flagged)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": err.Error(),
		},
	})
}
