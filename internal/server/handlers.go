package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	texbot "github.com/alnah/go-texbot"
	"github.com/alnah/go-texbot/internal/fileutil"
)

type renderRequest struct {
	Markup string `json:"markup"`
	Mode   string `json:"mode"`
}

type renderResponse struct {
	Key      string `json:"key"`
	CacheHit bool   `json:"cache_hit,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// image serves {key}.png from the work directory. Anything else is a 404,
// so callers cannot walk the filesystem.
func (s *Server) image(c *gin.Context) {
	key, ok := strings.CutSuffix(c.Param("file"), ".png")
	if !ok || !texbot.ValidKey(key) {
		c.Status(http.StatusNotFound)
		return
	}
	path := s.opts.Cache.Paths(texbot.CacheKey(key)).Image
	if !fileutil.NonEmptyFile(path) {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.File(path)
}

// render runs one request. Render failures are 422 with the same text a
// chat user would see.
func (s *Server) render(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody)

	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	mode, err := texbot.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := texbot.WithRequestID(c.Request.Context(), uuid.NewString())
	out := s.opts.Renderer.Render(ctx, texbot.Request{Markup: req.Markup, Mode: mode})
	resp := renderResponse{Key: out.Key.String(), CacheHit: out.CacheHit}

	if !out.Delivered() {
		resp.Error = texbot.GenericMessage
		if out.Report != nil {
			resp.Error = out.Report.Message()
		}
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}

	link, err := s.opts.Publisher.Publish(ctx, texbot.ArtifactSet{Key: out.Key, Image: out.Image})
	if err != nil {
		s.log.WithError(err).WithField("key", out.Key.String()).Error("publish failed")
		resp.Error = texbot.GenericMessage
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	resp.ImageURL = link
	c.JSON(http.StatusOK, resp)
}
