package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONRequest(t *testing.T) {
	req, err := NewJSONRequest(context.Background(), http.MethodPost, "http://example.com/api/save-image/",
		map[string]string{"name": "Square"})
	require.NoError(t, err)

	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	body, _ := io.ReadAll(req.Body)
	assert.JSONEq(t, `{"name":"Square"}`, string(body))

	req, err = NewJSONRequest(context.Background(), http.MethodGet, "http://example.com/api/categories/", nil)
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
}

func TestCheckResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			WriteJSONOK(w, map[string]string{"status": "ok"})
		case "/missing":
			NotFound(w, "category not found")
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/ok")
	require.NoError(t, err)
	require.NoError(t, CheckResponse(resp))
	var ok map[string]string
	require.NoError(t, DecodeJSON(resp, &ok))
	assert.Equal(t, "ok", ok["status"])

	resp, err = srv.Client().Get(srv.URL + "/missing")
	require.NoError(t, err)
	err = CheckResponse(resp)
	resp.Body.Close()
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "category not found", se.Message)
	assert.Contains(t, se.Error(), "status 404")

	resp, err = srv.Client().Get(srv.URL + "/other")
	require.NoError(t, err)
	err = CheckResponse(resp)
	resp.Body.Close()
	require.True(t, errors.As(err, &se))
	assert.Empty(t, se.Message)
}

func TestMockHTTPClient_QueuedResponses(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "first")
	mock.AddJSONResponse([]string{"a"})
	mock.AddErrorResponse(errors.New("connection refused"))

	get := func(path string) (*http.Response, error) {
		req, _ := http.NewRequest(http.MethodGet, "http://example.com"+path, nil)
		return mock.Do(req)
	}

	resp, err := get("/1")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "first", string(body))

	resp, err = get("/2")
	require.NoError(t, err)
	var got []string
	require.NoError(t, DecodeJSON(resp, &got))
	assert.Equal(t, []string{"a"}, got)

	_, err = get("/3")
	assert.EqualError(t, err, "connection refused")

	resp, err = get("/4")
	require.NoError(t, err, "falls back to empty 200")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 4, mock.RequestCount())
	assert.Contains(t, mock.GetRequest(1).URL.Path, "/2")
	assert.Nil(t, mock.GetRequest(99))
	assert.Nil(t, mock.GetRequest(-1))
}

func TestMockHTTPClient_RecordsBodies(t *testing.T) {
	mock := NewMockHTTPClient()
	req, err := NewJSONRequest(context.Background(), http.MethodDelete, "http://example.com/api/delete-category/",
		map[string]string{"category": "Shapes"})
	require.NoError(t, err)

	_, err = mock.Do(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"Shapes"}`, mock.GetBody(0))

	// the request body stays readable for later inspection
	body, _ := io.ReadAll(mock.GetRequest(0).Body)
	assert.JSONEq(t, `{"category":"Shapes"}`, string(body))
}

func TestMockHTTPClient_CookieAndOverrides(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddCookieResponse(&http.Cookie{Name: "csrftoken", Value: "abc"})

	req, _ := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	resp, err := mock.Do(req)
	require.NoError(t, err)
	require.Len(t, resp.Cookies(), 1)
	assert.Equal(t, "abc", resp.Cookies()[0].Value)

	mock.DefaultError = errors.New("network error")
	_, err = mock.Do(req)
	assert.EqualError(t, err, "network error")

	mock.Reset()
	mock.DoFunc = func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusTeapot, Body: io.NopCloser(strings.NewReader("")), Request: r}, nil
	}
	resp, err = mock.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, 1, mock.RequestCount())
}
