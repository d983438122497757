package remotesync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/banshee-data/pixelset/internal/dataset"
	"github.com/banshee-data/pixelset/internal/httputil"
	"github.com/banshee-data/pixelset/internal/network"
)

// Anti-forgery token exchange: the server sets the cookie, mutating requests
// echo it in the header.
const (
	CSRFCookieName = "csrftoken"
	CSRFHeaderName = "X-CSRFToken"
)

// API paths of the remote store.
const (
	PathCategories     = "/api/categories/"
	PathDeleteCategory = "/api/delete-category/"
	PathDeleteImage    = "/api/delete-image/"
	PathSaveImage      = "/api/save-image/"
	PathSaveCategories = "/api/save-categories/"
	PathTrainNetwork   = "/api/train_network/"
	PathModels         = "/api/models/"
	PathPredict        = "/api/predict/"
)

// RemoteImage is an image as listed by the remote store. Data holds the
// encoded grid (see dataset.EncodeGrid).
type RemoteImage struct {
	Name string `json:"name"`
	Data string `json:"data,omitempty"`
}

// RemoteCategory is a category as listed by the remote store.
type RemoteCategory struct {
	Name   string        `json:"name"`
	Images []RemoteImage `json:"images"`
}

// Request bodies of the mutating endpoints.
type (
	DeleteCategoryRequest struct {
		Category string `json:"category"`
	}
	DeleteImageRequest struct {
		Category string `json:"category"`
		Name     string `json:"name"`
	}
	SaveImageRequest struct {
		Name     string `json:"name"`
		Category string `json:"category"`
		Data     string `json:"data"`
	}
	SaveCategoriesRequest struct {
		Categories []RemoteCategory `json:"categories"`
	}
	PredictRequest struct {
		Input []float64 `json:"input"`
	}
	PredictResponse struct {
		Prediction []float64 `json:"prediction"`
	}
)

// Remote is the authoritative store plus the opaque training service.
type Remote interface {
	ListCategories(ctx context.Context) ([]RemoteCategory, error)
	DeleteCategory(ctx context.Context, category string) error
	DeleteImage(ctx context.Context, category, name string) error
	SaveImage(ctx context.Context, category string, img dataset.Image) error
	SaveCategories(ctx context.Context, categories []dataset.Category) error
	TrainNetwork(ctx context.Context, req network.TrainRequest) (network.TrainResult, error)
	ListModels(ctx context.Context) ([]network.Model, error)
	Predict(ctx context.Context, input []float64) ([]float64, error)
}

// Client talks to the remote store over JSON/HTTP. It keeps its own cookie
// jar so the CSRF token survives across requests whatever HTTPClient is used.
type Client struct {
	base *url.URL
	http httputil.HTTPClient
	jar  http.CookieJar
}

// NewClient returns a client for the service rooted at baseURL. A nil hc uses
// http.DefaultClient.
func NewClient(baseURL string, hc httputil.HTTPClient) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("remote url %q needs a scheme and host", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: base, http: hc, jar: jar}, nil
}

// Handshake fetches the category listing only to obtain the CSRF cookie.
func (c *Client) Handshake(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, PathCategories, nil, nil)
}

// CSRFToken returns the token currently held in the jar.
func (c *Client) CSRFToken() string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == CSRFCookieName {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) ListCategories(ctx context.Context) ([]RemoteCategory, error) {
	var out []RemoteCategory
	if err := c.do(ctx, http.MethodGet, PathCategories, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteCategory(ctx context.Context, category string) error {
	return c.do(ctx, http.MethodDelete, PathDeleteCategory, DeleteCategoryRequest{Category: category}, nil)
}

func (c *Client) DeleteImage(ctx context.Context, category, name string) error {
	return c.do(ctx, http.MethodDelete, PathDeleteImage, DeleteImageRequest{Category: category, Name: name}, nil)
}

func (c *Client) SaveImage(ctx context.Context, category string, img dataset.Image) error {
	data, err := dataset.EncodeGrid(img.Grid)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, PathSaveImage, SaveImageRequest{Name: img.Name, Category: category, Data: data}, nil)
}

func (c *Client) SaveCategories(ctx context.Context, categories []dataset.Category) error {
	body := SaveCategoriesRequest{Categories: make([]RemoteCategory, 0, len(categories))}
	for _, cat := range categories {
		rc := RemoteCategory{Name: cat.Name, Images: make([]RemoteImage, 0, len(cat.Images))}
		for _, img := range cat.Images {
			data, err := dataset.EncodeGrid(img.Grid)
			if err != nil {
				return fmt.Errorf("image %q in %q: %w", img.Name, cat.Name, err)
			}
			rc.Images = append(rc.Images, RemoteImage{Name: img.Name, Data: data})
		}
		body.Categories = append(body.Categories, rc)
	}
	return c.do(ctx, http.MethodPost, PathSaveCategories, body, nil)
}

func (c *Client) TrainNetwork(ctx context.Context, req network.TrainRequest) (network.TrainResult, error) {
	var out network.TrainResult
	err := c.do(ctx, http.MethodPost, PathTrainNetwork, req, &out)
	return out, err
}

func (c *Client) ListModels(ctx context.Context) ([]network.Model, error) {
	var out []network.Model
	if err := c.do(ctx, http.MethodGet, PathModels, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Predict(ctx context.Context, input []float64) ([]float64, error) {
	var out PredictResponse
	if err := c.do(ctx, http.MethodPost, PathPredict, PredictRequest{Input: input}, &out); err != nil {
		return nil, err
	}
	return out.Prediction, nil
}

// do sends one request. Every failure, transport or status, is reported as
// dataset.ErrRemoteRequestFailed.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	u := c.base.ResolveReference(&url.URL{Path: path})
	req, err := httputil.NewJSONRequest(ctx, method, u.String(), in)
	if err != nil {
		return err
	}
	for _, ck := range c.jar.Cookies(u) {
		req.AddCookie(ck)
	}
	if method != http.MethodGet && method != http.MethodHead {
		if token := c.CSRFToken(); token != "" {
			req.Header.Set(CSRFHeaderName, token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", dataset.ErrRemoteRequestFailed, method, path, err)
	}
	if cookies := resp.Cookies(); len(cookies) > 0 {
		c.jar.SetCookies(u, cookies)
	}
	if err := httputil.CheckResponse(resp); err != nil {
		resp.Body.Close()
		return fmt.Errorf("%w: %w", dataset.ErrRemoteRequestFailed, err)
	}
	if err := httputil.DecodeJSON(resp, out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", dataset.ErrRemoteRequestFailed, method, path, err)
	}
	return nil
}
