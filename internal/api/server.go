// Package api serves the remote dataset store: the JSON endpoints the editor
// synchronises against, a stub training service, and debug charts.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/banshee-data/pixelset/internal/dataset"
	"github.com/banshee-data/pixelset/internal/db"
	"github.com/banshee-data/pixelset/internal/httputil"
	"github.com/banshee-data/pixelset/internal/monitoring"
	"github.com/banshee-data/pixelset/internal/network"
	"github.com/banshee-data/pixelset/internal/remotesync"
)

// StubStatus is reported for every training request; no model is fitted.
const StubStatus = "stub"

type Server struct {
	db           *db.DB
	insecureCSRF bool
}

// Options tune the server.
type Options struct {
	// InsecureCSRF disables the anti-forgery check for scripted clients.
	InsecureCSRF bool
}

func NewServer(database *db.DB, opts Options) *Server {
	return &Server{db: database, insecureCSRF: opts.InsecureCSRF}
}

// ServeMux returns the /api/ routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/", s.protect(s.apiMux()))
	return mux
}

func (s *Server) apiMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(remotesync.PathCategories, s.listCategories)
	mux.HandleFunc(remotesync.PathDeleteCategory, s.deleteCategory)
	mux.HandleFunc(remotesync.PathDeleteImage, s.deleteImage)
	mux.HandleFunc(remotesync.PathSaveImage, s.saveImage)
	mux.HandleFunc(remotesync.PathSaveCategories, s.saveCategories)
	mux.HandleFunc(remotesync.PathTrainNetwork, s.trainNetwork)
	mux.HandleFunc(remotesync.PathModels, s.listModels)
	mux.HandleFunc(remotesync.PathPredict, s.predict)
	return mux
}

func (s *Server) protect(h http.Handler) http.Handler {
	if s.insecureCSRF {
		return h
	}
	return CSRFMiddleware(h)
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	httputil.MethodNotAllowed(w)
	return false
}

// writeStoreError maps db errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, dataset.ErrValidationFailed):
		httputil.BadRequest(w, err.Error())
	default:
		monitoring.Logf("api: store error: %v", err)
		httputil.InternalServerError(w, "internal error")
	}
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	cats, err := s.db.ListCategories(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]remotesync.RemoteCategory, 0, len(cats))
	for _, c := range cats {
		rc := remotesync.RemoteCategory{Name: c.Name, Images: make([]remotesync.RemoteImage, 0, len(c.Images))}
		for _, img := range c.Images {
			rc.Images = append(rc.Images, remotesync.RemoteImage{Name: img.Name, Data: img.Data})
		}
		out = append(out, rc)
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodDelete, http.MethodPost) {
		return
	}
	var req remotesync.DeleteCategoryRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := requireName("category", req.Category); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := s.db.DeleteCategory(r.Context(), req.Category); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "deleted"})
}

func (s *Server) deleteImage(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodDelete, http.MethodPost) {
		return
	}
	var req remotesync.DeleteImageRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := errors.Join(requireName("category", req.Category), requireName("image", req.Name)); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := s.db.DeleteImage(r.Context(), req.Category, req.Name); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "deleted"})
}

func (s *Server) saveImage(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req remotesync.SaveImageRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	data, err := validImage(req.Category, req.Name, req.Data)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := s.db.SaveImage(r.Context(), req.Category, req.Name, data); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"status": "saved"})
}

func (s *Server) saveCategories(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req remotesync.SaveCategoriesRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	cats := make([]db.Category, 0, len(req.Categories))
	for _, rc := range req.Categories {
		if err := requireName("category", rc.Name); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		c := db.Category{Name: rc.Name}
		for _, img := range rc.Images {
			data, err := validImage(rc.Name, img.Name, img.Data)
			if err != nil {
				httputil.BadRequest(w, err.Error())
				return
			}
			c.Images = append(c.Images, db.Image{Name: img.Name, Data: data})
		}
		cats = append(cats, c)
	}
	if err := s.db.SaveCategories(r.Context(), cats); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "saved"})
}

func (s *Server) trainNetwork(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req network.TrainRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	config, err := json.Marshal(struct {
		Layers     []network.Layer    `json:"layers"`
		Parameters network.Parameters `json:"parameters"`
		Categories []string           `json:"categories"`
	}{req.Layers, req.Parameters, req.Categories})
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	m := &db.Model{
		Name:       req.Name,
		Status:     StubStatus,
		InputSize:  req.Layers[0].Neurons,
		OutputSize: req.Layers[len(req.Layers)-1].Neurons,
		Config:     string(config),
	}
	if err := s.db.InsertModel(r.Context(), m); err != nil {
		writeStoreError(w, err)
		return
	}
	monitoring.Logf("api: recorded model %s %q (%d -> %d)", m.ID, m.Name, m.InputSize, m.OutputSize)
	httputil.WriteJSONOK(w, network.TrainResult{Accuracy: m.Accuracy, Loss: m.Loss, Status: m.Status})
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	models, err := s.db.ListModels(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]network.Model, 0, len(models))
	for _, m := range models {
		out = append(out, network.Model{ID: m.ID, Name: m.Name, Accuracy: m.Accuracy})
	}
	httputil.WriteJSONOK(w, out)
}

// predict answers with a uniform distribution over the latest model's
// outputs.
func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req remotesync.PredictRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	m, err := s.db.LatestModel(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if len(req.Input) != m.InputSize {
		httputil.BadRequest(w, fmt.Sprintf("input has %d values, model %q expects %d", len(req.Input), m.Name, m.InputSize))
		return
	}
	out := make([]float64, m.OutputSize)
	for i := range out {
		out[i] = 1 / float64(m.OutputSize)
	}
	httputil.WriteJSONOK(w, remotesync.PredictResponse{Prediction: out})
}

func requireName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %s name is empty", dataset.ErrValidationFailed, kind)
	}
	return nil
}

// validImage checks the names and the encoded grid, returning the data in
// canonical row-array form.
func validImage(category, name, data string) (string, error) {
	if err := errors.Join(requireName("category", category), requireName("image", name)); err != nil {
		return "", err
	}
	m, err := dataset.DecodeGrid(data)
	if err != nil {
		return "", fmt.Errorf("image %q: %w", name, err)
	}
	return dataset.EncodeGrid(m)
}
