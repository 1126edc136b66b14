package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cozy-creator/hf-mirror/internal/app"
	"github.com/cozy-creator/hf-mirror/internal/services/history"
	"github.com/cozy-creator/hf-mirror/internal/services/mirror"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type DownloadResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// DownloadRequest mirrors the CLI download flags.
type DownloadRequest struct {
	Model               string `json:"model" codec:"model"`
	SaveDir             string `json:"save_dir" codec:"save_dir"`
	Flat                bool   `json:"flat" codec:"flat"`
	Token               string `json:"token" codec:"token"`
	RepoType            string `json:"repo_type" codec:"repo_type"`
	Revision            string `json:"revision" codec:"revision"`
	NoHFTransfer        bool   `json:"no_hf_transfer" codec:"no_hf_transfer"`
	MaterializeSymlinks bool   `json:"materialize_symlinks" codec:"materialize_symlinks"`
	VerifyCopies        bool   `json:"verify_copies" codec:"verify_copies"`
	Publish             bool   `json:"publish" codec:"publish"`
	WebhookURL          string `json:"webhook_url" codec:"webhook_url"`
}

func (r DownloadRequest) toMirrorRequest() mirror.Request {
	return mirror.Request{
		Model:               r.Model,
		SaveDir:             r.SaveDir,
		Flat:                r.Flat,
		Token:               r.Token,
		RepoType:            r.RepoType,
		Revision:            r.Revision,
		Accelerate:          !r.NoHFTransfer,
		MaterializeSymlinks: r.MaterializeSymlinks,
		VerifyCopies:        r.VerifyCopies,
		Publish:             r.Publish,
	}
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func CreateDownload(c *gin.Context) {
	var params DownloadRequest
	contentType := c.ContentType()
	if contentType == "" {
		contentType = "application/json" // Default to JSON
	}

	switch contentType {
	case "application/msgpack":
		if err := c.ShouldBindWith(&params, binding.MsgPack); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "failed to parse msgpack request body"})
			return
		}
	case "application/json":
		if err := c.ShouldBindWith(&params, binding.JSON); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "failed to parse json request body"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"message": "unsupported content type: " + contentType})
		return
	}

	app := c.MustGet("app").(*app.App)
	if params.WebhookURL != "" {
		if u, err := url.Parse(params.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			c.JSON(http.StatusBadRequest, gin.H{"message": "webhook_url must be an http(s) URL"})
			return
		}
	}

	id, err := app.Submit(params.toMirrorRequest(), params.WebhookURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, DownloadResponse{ID: id.String(), Status: "queued"})
}

func ListDownloads(c *gin.Context) {
	app := c.MustGet("app").(*app.App)
	if app.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "run history is not available"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a positive integer"})
		return
	}

	runs, err := app.History.Recent(c.Request.Context(), limit)
	if err != nil {
		app.Logger.Error("failed to list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func GetDownload(c *gin.Context) {
	app := c.MustGet("app").(*app.App)
	if app.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "run history is not available"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid run id"})
		return
	}

	details, err := app.History.Get(c.Request.Context(), id)
	if errors.Is(err, history.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	if err != nil {
		app.Logger.Error("failed to get run", zap.String("run_id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to get run"})
		return
	}

	c.JSON(http.StatusOK, details)
}
