package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"media-translator/internal/domain"
)

// maxUploadMemory is the multipart size kept in memory before spilling to disk.
const maxUploadMemory = 32 << 20

type submitRequest struct {
	MediaURL       string `json:"media_url"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

type shareRequest struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}

func (h *handlers) submitJob(c *gin.Context) {
	var body submitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	state, err := h.ctrl.SubmitJob(domain.JobRequest{
		MediaURL:       body.MediaURL,
		SourceLanguage: body.SourceLanguage,
		TargetLanguage: body.TargetLanguage,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, state)
}

func (h *handlers) uploadJob(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
		return
	}
	fileHeader, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "open uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	state, err := h.ctrl.UploadAndSubmit(c.Request.Context(), fileHeader.Filename, file, domain.JobRequest{
		SourceLanguage: c.PostForm("source_language"),
		TargetLanguage: c.PostForm("target_language"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, state)
}

func (h *handlers) currentJob(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.CurrentJob())
}

func (h *handlers) cancelJob(c *gin.Context) {
	if err := h.ctrl.CancelJob(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.CurrentJob())
}

func (h *handlers) resumeJob(c *gin.Context) {
	state, err := h.ctrl.ResumeJob(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, state)
}

func (h *handlers) probeArtifacts(c *gin.Context) {
	items, err := h.ctrl.ProbeArtifacts(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"artifacts": items})
}

func (h *handlers) createShareLink(c *gin.Context) {
	var body shareRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}
	link, err := h.ctrl.CreateShareLink(c.Param("id"), body.TTLSeconds)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

func (h *handlers) listArtifacts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"artifacts": h.ctrl.ListArtifacts()})
}

func (h *handlers) downloadArtifact(c *gin.Context) {
	descriptor, err := h.ctrl.DownloadArtifact(c.Param("kind"))
	if err != nil {
		writeArtifactError(c, descriptor, err)
		return
	}
	c.JSON(http.StatusOK, descriptor)
}

func (h *handlers) retryArtifact(c *gin.Context) {
	descriptor, err := h.ctrl.RetryArtifact(c.Param("kind"))
	if err != nil {
		writeArtifactError(c, descriptor, err)
		return
	}
	c.JSON(http.StatusOK, descriptor)
}

func (h *handlers) listHistory(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	entries, err := h.ctrl.ListHistory(c.Query("status"), c.Query("order"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *handlers) historyStats(c *gin.Context) {
	stats, err := h.ctrl.HistoryStats()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handlers) getHistoryEntry(c *gin.Context) {
	entry, err := h.ctrl.GetHistoryEntry(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *handlers) removeHistoryEntry(c *gin.Context) {
	if err := h.ctrl.RemoveHistoryEntry(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) clearHistory(c *gin.Context) {
	if err := h.ctrl.ClearHistory(); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) remoteHistory(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	tasks, err := h.ctrl.RemoteHistory(limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *handlers) remoteStats(c *gin.Context) {
	stats, err := h.ctrl.ServiceStats()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handlers) deleteRemoteTask(c *gin.Context) {
	if err := h.ctrl.DeleteRemoteTask(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) getPreferences(c *gin.Context) {
	prefs, err := h.ctrl.GetPreferences()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *handlers) savePreferences(c *gin.Context) {
	var prefs domain.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	saved, err := h.ctrl.SavePreferences(prefs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *handlers) languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": h.ctrl.Languages()})
}

func (h *handlers) getDiagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.GetDiagnostics())
}

func (h *handlers) refreshDiagnostics(c *gin.Context) {
	report, err := h.ctrl.RefreshDiagnostics()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handlers) fixDiagnostic(c *gin.Context) {
	report, err := h.ctrl.InstallOrFixDiagnostic(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}

// streamEvents pushes job events as server-sent events until the client leaves.
func (h *handlers) streamEvents(c *gin.Context) {
	since, ok := queryInt(c, "since")
	if !ok {
		return
	}
	seq := int64(since)

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		changed := h.ctrl.EventsChanged()
		events := h.ctrl.JobEvents(seq)
		for _, event := range events {
			c.SSEvent("job", event)
			seq = event.Seq
		}
		if len(events) > 0 {
			return true
		}

		select {
		case <-changed:
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return value, true
}
