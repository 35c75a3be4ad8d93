package http

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ansifier-server/internal/apperr"
	"ansifier-server/internal/auth"
	"ansifier-server/internal/domain"
	"ansifier-server/internal/ingest"
	"ansifier-server/internal/store"
)

const (
	headerPublicUID  = "X-Artifact-Id"
	headerPrivateUID = "X-Private-Artifact-Id"

	defaultGalleryLimit = 3
	maxGalleryLimit     = 50
)

// Handler wires HTTP routes to the ingestion pipeline and gallery store.
type Handler struct {
	pipeline  *ingest.Pipeline
	gallery   store.Gallery
	jwtSecret []byte
	tokenTTL  time.Duration
	debug     bool
	logger    *logrus.Logger
}

func NewHandler(pipeline *ingest.Pipeline, gallery store.Gallery, jwtSecret []byte, tokenTTL time.Duration, debug bool, logger *logrus.Logger) *Handler {
	return &Handler{
		pipeline:  pipeline,
		gallery:   gallery,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		debug:     debug,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/ansify", h.optionalAuth(), h.ansify)
		api.GET("/gallery", h.listGallery)
		api.GET("/gallery/mine", h.requireAuth(), h.listOwnGallery)
		api.GET("/gallery/:uid", h.getArtifact)
		api.DELETE("/gallery/:uid", h.optionalAuth(), h.deleteArtifact)
		api.POST("/signup", h.signup)
		api.POST("/login", h.login)
		api.DELETE("/users/me", h.requireAuth(), h.deleteAccount)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", headerPublicUID+", "+headerPrivateUID)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// optionalAuth records the caller's username when a valid bearer token is
// present but lets anonymous requests through.
func (h *Handler) optionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if username, ok := h.bearerUsername(c); ok {
			c.Set("username", username)
		}
		c.Next()
	}
}

func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := h.bearerUsername(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		c.Set("username", username)
		c.Next()
	}
}

func (h *Handler) bearerUsername(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	username, err := auth.UsernameFromToken(strings.TrimPrefix(header, "Bearer "), h.jwtSecret)
	if err != nil {
		return "", false
	}
	return username, true
}

func (h *Handler) ansify(c *gin.Context) {
	req, err := h.parseAnsifyRequest(c)
	if err != nil {
		h.renderError(c, err)
		return
	}

	if req.Private && req.Username == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "private gallery submission requires login"})
		return
	}

	result, err := h.pipeline.Run(c.Request.Context(), req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	if result.PublicUID != "" {
		c.Header(headerPublicUID, result.PublicUID)
	}
	if result.PrivateUID != "" {
		c.Header(headerPrivateUID, result.PrivateUID)
	}

	c.Data(http.StatusOK, contentTypeFor(result.Format), []byte(result.Output))
}

func (h *Handler) parseAnsifyRequest(c *gin.Context) (ingest.Request, error) {
	req := ingest.Request{
		URL:        c.PostForm("url"),
		Format:     c.PostForm("format"),
		Characters: c.PostForm("characters"),
	}

	if file, err := c.FormFile("file"); err == nil && file != nil {
		f, err := file.Open()
		if err != nil {
			return req, apperr.Wrap(apperr.KindClientInput, err, "unable to read uploaded file")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return req, apperr.Wrap(apperr.KindClientInput, err, "unable to read uploaded file")
		}
		req.FileData = data
	}

	var err error
	if req.Width, err = parseDimension(c.PostForm("width")); err != nil {
		return req, err
	}
	if req.Height, err = parseDimension(c.PostForm("height")); err != nil {
		return req, err
	}
	if req.Public, err = parseFlag(c.PostForm("public")); err != nil {
		return req, err
	}
	if req.Private, err = parseFlag(c.PostForm("private")); err != nil {
		return req, err
	}

	if username, ok := c.Get("username"); ok {
		name := username.(string)
		req.Username = &name
	}
	return req, nil
}

func parseDimension(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	dim, err := strconv.Atoi(raw)
	if err != nil || dim < 0 {
		return 0, apperr.New(apperr.KindClientInput, "dimensions must be non-negative integers")
	}
	return dim, nil
}

func parseFlag(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.New(apperr.KindClientInput, "visibility flags must be boolean")
	}
	return value, nil
}

func (h *Handler) listGallery(c *gin.Context) {
	limit := defaultGalleryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxGalleryLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	artifacts, err := h.gallery.ListRecentArtifacts(c.Request.Context(), limit)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, artifactsToResponse(artifacts))
}

func (h *Handler) listOwnGallery(c *gin.Context) {
	username := c.GetString("username")
	artifacts, err := h.gallery.ListArtifactsByOwner(c.Request.Context(), username, maxGalleryLimit)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, artifactsToResponse(artifacts))
}

func (h *Handler) getArtifact(c *gin.Context) {
	artifact, err := h.gallery.GetArtifact(c.Request.Context(), c.Param("uid"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, artifactToResponse(*artifact))
}

func (h *Handler) deleteArtifact(c *gin.Context) {
	uid := c.Param("uid")

	artifact, err := h.gallery.GetArtifact(c.Request.Context(), uid)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			// absent rows delete as a no-op
			c.JSON(http.StatusOK, gin.H{"deleted": uid})
			return
		}
		h.renderError(c, err)
		return
	}

	if artifact.Owner != nil && c.GetString("username") != *artifact.Owner {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner may delete this artifact"})
		return
	}

	if err := h.gallery.DeleteArtifact(c.Request.Context(), uid); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": uid})
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.gallery.CreateUser(c.Request.Context(), req.Username, req.Password); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"username": req.Username})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok, err := h.gallery.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := auth.GenerateToken(req.Username, h.jwtSecret, h.tokenTTL)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) deleteAccount(c *gin.Context) {
	username := c.GetString("username")
	deleted, err := h.gallery.DeleteUser(c.Request.Context(), username)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": username})
}

func (h *Handler) renderError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError || status == http.StatusBadGateway {
		h.logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": apperr.UserMessage(err, h.debug)})
}

type ArtifactResponse struct {
	UID       string  `json:"uid"`
	Content   string  `json:"content"`
	Format    string  `json:"format"`
	CreatedAt string  `json:"created_at"`
	Owner     *string `json:"owner,omitempty"`
}

func artifactToResponse(artifact domain.Artifact) ArtifactResponse {
	return ArtifactResponse{
		UID:       artifact.UID,
		Content:   artifact.Content,
		Format:    string(artifact.Format),
		CreatedAt: artifact.CreatedAt.Format(time.RFC3339),
		Owner:     artifact.Owner,
	}
}

func artifactsToResponse(artifacts []domain.Artifact) []ArtifactResponse {
	resp := make([]ArtifactResponse, len(artifacts))
	for i := range artifacts {
		resp[i] = artifactToResponse(artifacts[i])
	}
	return resp
}

func contentTypeFor(format domain.ArtifactFormat) string {
	if format == domain.FormatHTMLCSS {
		return "text/html; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}
