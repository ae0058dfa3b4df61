package audit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romangod6/html-audit/internal/models"
)

const nuResponse = `{
  "url": "",
  "messages": [
    {"type": "error", "lastLine": 3, "firstColumn": 1, "lastColumn": 10, "message": "Element “blink” not allowed.", "extract": "<blink>"},
    {"type": "info", "subType": "warning", "lastLine": 1, "message": "Consider adding a “lang” attribute."},
    {"type": "error", "firstLine": 5, "lastLine": 6, "message": "End tag “div” seen."}
  ]
}`

func newValidatorServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte("Nu Html Checker"))
			return
		}
		assert.Equal(t, "json", r.URL.Query().Get("out"))
		assert.Equal(t, "text/html; charset=utf-8", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "valid-page") {
			w.Write([]byte(`{"messages":[]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(nuResponse))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTML5ValidatorReportsMessages(t *testing.T) {
	srv := newValidatorServer(t)
	files := htmlFiles(t, "a.html")

	v := NewHTML5Validator(HTML5Options{
		Client:  srv.Client(),
		Service: srv.URL + "/",
		Logger:  log.New(io.Discard),
	})
	res, err := v.Audit(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Counts[files[0]])
	byFile := res.Report.(map[string]interface{})["html5"].(map[string][]models.ValidatorMessage)
	msgs := byFile[files[0]]
	require.Len(t, msgs, 3)
	assert.Equal(t, 3, msgs[0].FirstLine, "firstLine defaults to lastLine")
	assert.Equal(t, "warning", msgs[1].SubType)
	assert.Equal(t, files[0], msgs[2].Filename)
}

func TestHTML5ValidatorErrorsOnly(t *testing.T) {
	srv := newValidatorServer(t)
	files := htmlFiles(t, "a.html")

	v := NewHTML5Validator(HTML5Options{
		Client:     srv.Client(),
		Service:    srv.URL,
		ErrorsOnly: true,
		Logger:     log.New(io.Discard),
	})
	res, err := v.Audit(context.Background(), files)
	require.NoError(t, err)

	byFile := res.Report.(map[string]interface{})["html5"].(map[string][]models.ValidatorMessage)
	for _, m := range byFile[files[0]] {
		assert.Equal(t, "error", m.Type)
	}
	assert.Len(t, byFile[files[0]], 2)
}

func TestHTML5ValidatorOmitsCleanFiles(t *testing.T) {
	srv := newValidatorServer(t)
	files := htmlFiles(t, "a.html")
	clean := filepath.Join(filepath.Dir(files[0]), "b.html")
	require.NoError(t, os.WriteFile(clean, []byte(`<!DOCTYPE html><html lang="en"><title>valid-page</title></html>`), 0644))
	files = append(files, clean)

	v := NewHTML5Validator(HTML5Options{Client: srv.Client(), Service: srv.URL, Logger: log.New(io.Discard)})
	res, err := v.Audit(context.Background(), files)
	require.NoError(t, err)

	assert.Empty(t, res.Errors)
	assert.Equal(t, 0, res.Counts[clean])
	byFile := res.Report.(map[string]interface{})["html5"].(map[string][]models.ValidatorMessage)
	assert.NotContains(t, byFile, clean)
	assert.Contains(t, byFile, files[0])
}

func TestSelectServiceUsesFirstAnsweringInOrder(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	upA := newValidatorServer(t)
	upB := newValidatorServer(t)

	v := NewHTML5Validator(HTML5Options{
		Services: []string{down.URL, upA.URL, upB.URL},
		Logger:   log.New(io.Discard),
	})
	service, err := v.SelectService(context.Background())
	require.NoError(t, err)
	assert.Equal(t, upA.URL, service)
}

func TestSelectServiceNoneAvailable(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	defer down.Close()

	v := NewHTML5Validator(HTML5Options{Services: []string{down.URL}, Logger: log.New(io.Discard)})
	_, err := v.SelectService(context.Background())
	assert.ErrorIs(t, err, ErrNoValidator)

	_, err = v.Audit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoValidator)
}

func TestHTML5ValidatorServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			http.Error(w, "overloaded", http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()
	files := htmlFiles(t, "a.html")

	v := NewHTML5Validator(HTML5Options{Client: srv.Client(), Service: srv.URL, Logger: log.New(io.Discard)})
	res, err := v.Audit(context.Background(), files)
	require.NoError(t, err)
	assert.Contains(t, res.Errors[files[0]], "429")
}
