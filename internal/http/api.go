package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"playlist-downloader/internal/downloader"
	"playlist-downloader/internal/metadata"
	"playlist-downloader/internal/playlist"
	"playlist-downloader/internal/repository"
	"playlist-downloader/internal/service"
	"playlist-downloader/internal/storage"
)

// StorageOptions locates the batch report archive. An empty Bucket disables the report routes.
type StorageOptions struct {
	Bucket    string
	KeyPrefix string
	URLExpiry time.Duration
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	playlists service.PlaylistService
	history   service.HistoryService
	manager   downloader.Manager
	storage   storage.Service
	storeOpts StorageOptions
	events    *eventBroker
	logger    *logrus.Logger

	unsubscribe func()
}

func NewHandler(playlists service.PlaylistService, history service.HistoryService, manager downloader.Manager, store storage.Service, storeOpts StorageOptions, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	h := &Handler{
		playlists: playlists,
		history:   history,
		manager:   manager,
		storage:   store,
		storeOpts: storeOpts,
		events:    newEventBroker(64, logger),
		logger:    logger,
	}
	h.unsubscribe = manager.Subscribe(h.events.publish)
	return h
}

// Close detaches the handler from the orchestrator and ends open event streams.
func (h *Handler) Close() {
	h.unsubscribe()
	h.events.close()
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/fetch-playlist", h.fetchPlaylist)
		api.GET("/tracks", h.listTracks)

		api.POST("/downloads", h.downloadAll)
		api.POST("/downloads/tracks/:id", h.downloadTrack)
		api.POST("/downloads/zip", h.exportZip)
		api.GET("/downloads/state", h.downloadState)
		api.GET("/events", h.streamEvents)

		api.GET("/batches", h.listBatches)
		api.GET("/batches/:id", h.getBatch)
		api.DELETE("/batches/:id", h.deleteBatch)

		api.GET("/reports", h.listReports)
		api.GET("/reports/url", h.reportURL)

		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

type fetchPlaylistRequest struct {
	URL string `json:"url"`
}

type downloadAllRequest struct {
	TrackIDs []string `json:"track_ids"`
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) fetchPlaylist(c *gin.Context) {
	var req fetchPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	details, err := h.playlists.Fetch(c.Request.Context(), req.URL)
	switch {
	case errors.Is(err, playlist.ErrInvalidPlaylistURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Spotify playlist URL"})
		return
	case errors.Is(err, metadata.ErrMetadataFetchFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, playlistToResponse(details.Playlist, details.Tracks))
}

func (h *Handler) listTracks(c *gin.Context) {
	p, tracks, ok := h.playlists.Current()
	if !ok {
		c.JSON(http.StatusOK, PlaylistDetailsResponse{Tracks: []TrackResponse{}})
		return
	}
	c.JSON(http.StatusOK, playlistToResponse(p, tracks))
}

func (h *Handler) downloadTrack(c *gin.Context) {
	track, err := h.playlists.Track(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	task, err := h.manager.StartOne(track)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, taskToResponse(*task))
}

func (h *Handler) downloadAll(c *gin.Context) {
	var req downloadAllRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tracks, err := h.playlists.Tracks(req.TrackIDs)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if len(tracks) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no tracks loaded, fetch a playlist first"})
		return
	}

	batch, err := h.manager.StartAll(tracks)
	if errors.Is(err, downloader.ErrOrchestratorBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, batchToResponse(*batch))
}

func (h *Handler) exportZip(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "ZIP export is not available yet"})
}

func (h *Handler) downloadState(c *gin.Context) {
	c.JSON(http.StatusOK, stateToResponse(h.manager.State()))
}

func (h *Handler) streamEvents(c *gin.Context) {
	events, cancel := h.events.subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("state", stateToResponse(h.manager.State()))
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(e.Type), eventToResponse(e))
			return true
		}
	})
}

func (h *Handler) listBatches(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	batches, err := h.history.ListBatches(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]BatchResponse, len(batches))
	for i := range batches {
		resp[i] = batchToResponse(batches[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getBatch(c *gin.Context) {
	batch, err := h.history.GetBatch(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, batchToResponse(*batch))
}

func (h *Handler) deleteBatch(c *gin.Context) {
	id := c.Param("id")
	deleteRemote, err := strconv.ParseBool(c.DefaultQuery("delete_remote", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flag delete_remote"})
		return
	}

	if _, err := h.history.GetBatch(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var warnings []string
	if deleteRemote {
		if !h.storageConfigured() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "storage service not configured"})
			return
		}
		remoteCtx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		key := storage.ReportKey(h.storeOpts.KeyPrefix, id)
		if err := h.storage.DeletePrefix(remoteCtx, h.storeOpts.Bucket, key); err != nil {
			warnings = append(warnings, "delete remote report: "+err.Error())
		}
	}

	if err := h.history.DeleteBatch(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"deleted": id}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listReports(c *gin.Context) {
	if !h.storageConfigured() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage service not configured"})
		return
	}

	prefix := c.DefaultQuery("prefix", h.storeOpts.KeyPrefix)
	objects, err := h.storage.ListObjects(c.Request.Context(), h.storeOpts.Bucket, prefix)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) reportURL(c *gin.Context) {
	if !h.storageConfigured() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage service not configured"})
		return
	}
	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	url, err := h.storage.GetObjectURL(c.Request.Context(), h.storeOpts.Bucket, key, h.storeOpts.URLExpiry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "url": url})
}

func (h *Handler) storageConfigured() bool {
	return h.storage != nil && h.storeOpts.Bucket != ""
}
