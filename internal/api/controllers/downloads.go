package controllers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/averol/gohls/internal/app"
	"github.com/averol/gohls/internal/domain"
	"github.com/labstack/echo/v5"
)

type DownloadController struct {
	App *app.Context
}

func (ctrl *DownloadController) Info(c *echo.Context) error {
	return c.JSON(http.StatusOK, InfoResponse{
		Name:    "gohls",
		Version: "1.0.0",
		Status:  "running",
	})
}

// Variants lists the quality options behind a manifest URL, highest
// bandwidth first.
func (ctrl *DownloadController) Variants(c *echo.Context) error {
	manifestURL := c.QueryParam("url")
	if manifestURL == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing url parameter"})
	}

	variants, err := ctrl.App.Resolver.Variants(c.Request().Context(), manifestURL)
	if err != nil {
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, variants)
}

// Start launches a download session for a manifest URL.
func (ctrl *DownloadController) Start(c *echo.Context) error {
	var req StartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.ManifestURL == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "manifest_url is required"})
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = ctrl.App.Config.Download.OutDir
	}
	filename := req.Filename
	if filename == "" {
		filename = sanitizeFilename(req.Title)
	}
	if !strings.HasSuffix(filename, ".mp4") {
		filename += ".mp4"
	}

	dl, err := ctrl.App.Downloads.Start(domain.DownloadRequest{
		ManifestURL: req.ManifestURL,
		OutputPath:  filepath.Join(outputPath, filename),
		Title:       req.Title,
		Quality:     req.Quality,
		Workers:     req.Threads,
	})
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, StartResponse{
		DownloadID: dl.ID,
		Status:     string(dl.Status),
		Message:    "download started",
	})
}

func (ctrl *DownloadController) Progress(c *echo.Context) error {
	dl, ok := ctrl.App.Downloads.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "download not found"})
	}

	resp := ProgressResponse{
		DownloadID: dl.ID,
		Status:     string(dl.Status),
		OutputPath: dl.OutputPath,
		Error:      dl.Error,
	}
	if dl.Progress != nil {
		resp.Progress = *dl.Progress
	}
	return c.JSON(http.StatusOK, resp)
}

func (ctrl *DownloadController) List(c *echo.Context) error {
	return c.JSON(http.StatusOK, ctrl.App.Downloads.List())
}

func (ctrl *DownloadController) Cancel(c *echo.Context) error {
	id := c.Param("id")
	if !ctrl.App.Downloads.Cancel(id) {
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "download is not running"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cancelling"})
}

func (ctrl *DownloadController) Delete(c *echo.Context) error {
	if err := ctrl.App.Downloads.Delete(c.Param("id")); err != nil {
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// sanitizeFilename strips characters that are unsafe on common filesystems.
func sanitizeFilename(name string) string {
	if name == "" {
		return "download"
	}
	replacer := strings.NewReplacer(
		"<", "", ">", "", ":", "", `"`, "", "/", "",
		`\`, "", "|", "", "?", "", "*", "",
	)
	cleaned := strings.TrimSpace(replacer.Replace(name))
	if cleaned == "" {
		return "download"
	}
	return cleaned
}
