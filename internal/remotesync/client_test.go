package remotesync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pixelset/internal/dataset"
	"github.com/banshee-data/pixelset/internal/grid"
	"github.com/banshee-data/pixelset/internal/httputil"
	"github.com/banshee-data/pixelset/internal/network"
)

func newTestClient(t *testing.T) (*Client, *httputil.MockHTTPClient) {
	t.Helper()
	mock := httputil.NewMockHTTPClient()
	c, err := NewClient("http://pixelset.test", mock)
	require.NoError(t, err)
	return c, mock
}

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	t.Parallel()
	_, err := NewClient("/api", nil)
	assert.Error(t, err)
	_, err = NewClient("://bad", nil)
	assert.Error(t, err)
}

func TestClient_ListCategories(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)
	mock.AddJSONResponse([]RemoteCategory{
		{Name: "A", Images: []RemoteImage{{Name: "a1"}, {Name: "a2"}}},
		{Name: "B", Images: []RemoteImage{}},
	})

	got, err := c.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Name)
	assert.Equal(t, map[string][]string{"A": {"a1", "a2"}, "B": {}}, Index(got))

	req := mock.GetRequest(0)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "http://pixelset.test/api/categories/", req.URL.String())
	assert.Empty(t, req.Header.Get(CSRFHeaderName))
}

func TestClient_CSRFTokenEchoedOnMutations(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)
	mock.AddCookieResponse(&http.Cookie{Name: CSRFCookieName, Value: "tok-123", Path: "/"})
	mock.AddResponse(http.StatusOK, "")

	require.NoError(t, c.Handshake(context.Background()))
	assert.Equal(t, "tok-123", c.CSRFToken())

	require.NoError(t, c.DeleteCategory(context.Background(), "A"))
	req := mock.GetRequest(1)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/api/delete-category/", req.URL.Path)
	assert.Equal(t, "tok-123", req.Header.Get(CSRFHeaderName))
	ck, err := req.Cookie(CSRFCookieName)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", ck.Value)

	var body DeleteCategoryRequest
	require.NoError(t, json.Unmarshal([]byte(mock.GetBody(1)), &body))
	assert.Equal(t, "A", body.Category)
}

func TestClient_SaveImageEncodesGrid(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)

	m := grid.NewMatrix(2, 2)
	m[1][1] = grid.Red
	require.NoError(t, c.SaveImage(context.Background(), "A", dataset.Image{Name: "a1", Grid: m}))

	var body SaveImageRequest
	require.NoError(t, json.Unmarshal([]byte(mock.GetBody(0)), &body))
	assert.Equal(t, "a1", body.Name)
	assert.Equal(t, "A", body.Category)

	decoded, err := dataset.DecodeGrid(body.Data)
	require.NoError(t, err)
	assert.True(t, decoded.Equal(m))
}

func TestClient_SaveCategories(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)
	cats := []dataset.Category{
		{Name: "A", Images: []dataset.Image{{Name: "a1", Grid: grid.NewMatrix(2, 2)}}},
		{Name: "B", Images: []dataset.Image{}},
	}
	require.NoError(t, c.SaveCategories(context.Background(), cats))

	var body SaveCategoriesRequest
	require.NoError(t, json.Unmarshal([]byte(mock.GetBody(0)), &body))
	require.Len(t, body.Categories, 2)
	assert.Equal(t, "a1", body.Categories[0].Images[0].Name)
	assert.NotEmpty(t, body.Categories[0].Images[0].Data)
	assert.Empty(t, body.Categories[1].Images)
}

func TestClient_FailuresAreRemoteRequestFailed(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)
	mock.AddResponse(http.StatusInternalServerError, `{"error":"boom"}`)
	mock.AddErrorResponse(errors.New("connection refused"))
	mock.AddResponse(http.StatusOK, "not json")

	err := c.DeleteImage(context.Background(), "A", "a1")
	assert.ErrorIs(t, err, dataset.ErrRemoteRequestFailed)
	var se *httputil.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "boom", se.Message)

	_, err = c.ListCategories(context.Background())
	assert.ErrorIs(t, err, dataset.ErrRemoteRequestFailed)

	_, err = c.ListCategories(context.Background())
	assert.ErrorIs(t, err, dataset.ErrRemoteRequestFailed)
}

func TestClient_TrainModelsPredict(t *testing.T) {
	t.Parallel()
	c, mock := newTestClient(t)
	mock.AddJSONResponse(network.TrainResult{Accuracy: 0.9, Loss: 0.1, Status: "trained"})
	mock.AddJSONResponse([]network.Model{{ID: "m1", Name: "digits", Accuracy: 0.9}})
	mock.AddJSONResponse(PredictResponse{Prediction: []float64{0.2, 0.8}})

	n := network.New(4, 0)
	req, err := n.NewTrainRequest("digits", []string{"A", "B"})
	require.NoError(t, err)

	res, err := c.TrainNetwork(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "trained", res.Status)

	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "digits", models[0].Name)

	pred, err := c.Predict(context.Background(), []float64{0, 1, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 0.8}, pred)

	assert.Equal(t, PathTrainNetwork, mock.GetRequest(0).URL.Path)
	assert.Equal(t, PathModels, mock.GetRequest(1).URL.Path)
	assert.Equal(t, PathPredict, mock.GetRequest(2).URL.Path)
}
