package controllers

import "github.com/averol/gohls/internal/domain"

type InfoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

type StartRequest struct {
	ManifestURL string `json:"manifest_url"`
	OutputPath  string `json:"output_path"`
	Filename    string `json:"filename"`
	Title       string `json:"title"`
	Quality     string `json:"quality"`
	Threads     int    `json:"threads"`
}

type StartResponse struct {
	DownloadID string `json:"download_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

type ProgressResponse struct {
	DownloadID string `json:"download_id"`
	Status     string `json:"status"`
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
	domain.Progress
}

type ErrorResponse struct {
	Error string `json:"error"`
}
