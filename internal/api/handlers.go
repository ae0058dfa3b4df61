package api

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/romangod6/html-audit/internal/crawler"
	"github.com/romangod6/html-audit/internal/report"
	"github.com/romangod6/html-audit/internal/storage"
)

// FetchFunc runs one fetch pipeline to completion.
type FetchFunc func(ctx context.Context, opts crawler.PipelineOptions) error

type Handler struct {
	store      storage.Store
	mapPath    string
	reportDir  string
	pagesDir   string
	fetch      FetchFunc
	background func(func(ctx context.Context))
	logger     *log.Logger
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type PaginationResponse struct {
	Data  interface{} `json:"data"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// StartRunRequest is the body of POST /api/runs. Dir is relative to the
// configured pages directory; results always merge into the configured map.
type StartRunRequest struct {
	URI          string `json:"uri" binding:"required"`
	Dir          string `json:"dir" binding:"required"`
	LastMod      string `json:"lastmod"`
	OnlyModified bool   `json:"onlyModified"`
}

func NewHandler(cfg Config, background func(func(ctx context.Context))) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		store:      cfg.Store,
		mapPath:    cfg.MapPath,
		reportDir:  cfg.ReportDir,
		pagesDir:   cfg.PagesDir,
		fetch:      cfg.Fetch,
		background: background,
		logger:     logger,
	}
}

func (h *Handler) requireStore(c *gin.Context) bool {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "History store is not configured"})
		return false
	}
	return true
}

func (h *Handler) ListRuns(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	page, limit := getPaginationParams(c)
	offset := (page - 1) * limit

	runs, err := h.store.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list runs", "err", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch runs"})
		return
	}

	c.JSON(http.StatusOK, PaginationResponse{
		Data:  runs,
		Page:  page,
		Limit: limit,
	})
}

func (h *Handler) GetRun(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid run ID"})
		return
	}

	run, err := h.store.GetRun(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to fetch run", "run", id, "err", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch run"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Run not found"})
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *Handler) ListDownloads(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid run ID"})
		return
	}

	run, err := h.store.GetRun(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch run"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Run not found"})
		return
	}

	downloads, err := h.store.ListDownloads(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to list downloads", "run", id, "err", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch downloads"})
		return
	}

	c.JSON(http.StatusOK, downloads)
}

// StartRun validates the request and starts a fetch run in the background.
func (h *Handler) StartRun(c *gin.Context) {
	if h.fetch == nil || h.pagesDir == "" || h.mapPath == "" {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Fetching is not enabled"})
		return
	}

	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload"})
		return
	}
	if err := validateRemoteSitemap(req.URI); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if !filepath.IsLocal(req.Dir) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "dir must be a relative path inside the pages directory"})
		return
	}

	opts := crawler.PipelineOptions{
		RunID:        uuid.New(),
		SitemapURI:   req.URI,
		TargetDir:    filepath.Join(h.pagesDir, req.Dir),
		MapPath:      h.mapPath,
		OnlyModified: req.OnlyModified,
	}
	if req.LastMod != "" {
		t, err := crawler.ParseTimestamp(req.LastMod)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		opts.Threshold = &t
	}

	h.background(func(ctx context.Context) {
		if err := h.fetch(ctx, opts); err != nil {
			h.logger.Error("fetch run failed", "run", opts.RunID, "err", err)
		}
	})

	c.JSON(http.StatusAccepted, gin.H{
		"id":        opts.RunID,
		"startedAt": time.Now(),
	})
}

func (h *Handler) ListAudits(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	page, limit := getPaginationParams(c)
	offset := (page - 1) * limit

	audits, err := h.store.ListAuditRuns(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list audits", "err", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch audits"})
		return
	}

	c.JSON(http.StatusOK, PaginationResponse{
		Data:  audits,
		Page:  page,
		Limit: limit,
	})
}

func (h *Handler) GetMap(c *gin.Context) {
	if h.mapPath == "" {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "No map file configured"})
		return
	}

	m, err := storage.LoadMap(h.mapPath)
	if err != nil {
		h.logger.Error("failed to load map", "path", h.mapPath, "err", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load map file"})
		return
	}

	c.JSON(http.StatusOK, m)
}

func (h *Handler) GetReport(c *gin.Context) {
	name := c.Param("name")
	if !strings.HasSuffix(name, ".json") {
		name += "-report.json"
	}
	if h.reportDir == "" || !report.Known(name) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Report not found"})
		return
	}

	raw, err := report.Read(h.reportDir, name)
	if errors.Is(err, fs.ErrNotExist) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Report not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to read report", "name", name, "err", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to read report"})
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// validateRemoteSitemap accepts only http(s) sitemap URLs; the API never
// reads sitemaps from the server's filesystem.
func validateRemoteSitemap(uri string) error {
	if err := crawler.ValidateSitemapURI(uri); err != nil {
		return err
	}
	u, err := url.Parse(uri)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("uri must be an http or https URL")
	}
	return nil
}

func getPaginationParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	return page, limit
}
