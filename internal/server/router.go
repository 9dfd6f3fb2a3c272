package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/allanon74/kor35-app-sub002/internal/auth"
	"github.com/allanon74/kor35-app-sub002/internal/catalog"
	"github.com/allanon74/kor35-app-sub002/internal/relation"
	"github.com/allanon74/kor35-app-sub002/internal/users"
	"github.com/allanon74/kor35-app-sub002/internal/widget"
	"github.com/allanon74/kor35-app-sub002/internal/wiki"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const editorContextKey = "kor35_editor"

var (
	errMissingTokenValidator = errors.New("token validator dependency required")
	errMissingEditorResolver = errors.New("editor resolver dependency required")
	errMissingPageStore      = errors.New("page store dependency required")
	errMissingCatalogStore   = errors.New("catalog store dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// TokenValidator validates bearer tokens into session claims.
type TokenValidator interface {
	ValidateToken(token string) (auth.SessionClaims, error)
}

// EditorResolver maps session claims onto a persisted editor.
type EditorResolver interface {
	ResolveEditor(claims auth.SessionClaims) (users.Editor, error)
}

// Dependencies collects the collaborators wired into the HTTP handler.
type Dependencies struct {
	Tokens     TokenValidator
	Editors    EditorResolver
	Pages      *wiki.Store
	Catalog    *catalog.Store
	Dispatcher *ChangeDispatcher
	Logger     *zap.Logger
}

// NewHTTPHandler builds the gin router for the kor35 API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Tokens == nil {
		return nil, errMissingTokenValidator
	}
	if deps.Editors == nil {
		return nil, errMissingEditorResolver
	}
	if deps.Pages == nil {
		return nil, errMissingPageStore
	}
	if deps.Catalog == nil {
		return nil, errMissingCatalogStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = NewChangeDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:     deps.Tokens,
		editors:    deps.Editors,
		pages:      deps.Pages,
		catalog:    deps.Catalog,
		dispatcher: dispatcher,
		logger:     logger,
	}

	public := router.Group("/")
	public.Use(handler.resolveOptionalEditor)
	public.GET("/pages", handler.handleListPages)
	public.GET("/pages/tree", handler.handlePageTree)
	public.GET("/pages/search", handler.handleSearchPages)
	public.GET("/pages/:slug", handler.handleGetPage)
	public.GET("/catalog/tiers", handler.handleListTiers)
	public.GET("/catalog/abilities", handler.handleListAbilities)
	public.GET("/catalog/images", handler.handleListImages)
	public.GET("/catalog/buttons", handler.handleListButtonWidgets)
	public.GET("/widgets/:kind", handler.handleListWidgetTargets)
	public.GET("/tiers/:id/abilities", handler.handleListTierLinks)

	staff := router.Group("/")
	staff.Use(handler.resolveOptionalEditor, handler.requireStaff)
	staff.POST("/pages", handler.handleCreatePage)
	staff.PUT("/pages/:id", handler.handleUpdatePage)
	staff.PUT("/tiers/:id/abilities", handler.handleReplaceTierLinks)

	return router, nil
}

type httpHandler struct {
	tokens     TokenValidator
	editors    EditorResolver
	pages      *wiki.Store
	catalog    *catalog.Store
	dispatcher *ChangeDispatcher
	logger     *zap.Logger
}

// resolveOptionalEditor validates the bearer token when one is supplied. A
// missing header leaves the request anonymous; a present but invalid token is
// a hard 401 so a broken session never degrades silently to public access.
func (h *httpHandler) resolveOptionalEditor(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.Next()
		return
	}
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	editor, err := h.editors.ResolveEditor(claims)
	if err != nil {
		h.logger.Warn("editor resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(editorContextKey, editor)
	c.Next()
}

func (h *httpHandler) requireStaff(c *gin.Context) {
	editor, ok := currentEditor(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if !editor.IsStaff {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff_required"})
		return
	}
	c.Next()
}

func currentEditor(c *gin.Context) (users.Editor, bool) {
	value, exists := c.Get(editorContextKey)
	if !exists {
		return users.Editor{}, false
	}
	editor, ok := value.(users.Editor)
	return editor, ok
}

// visiblePages filters the flat set by the caller's capability: anonymous
// callers see public non-staff pages, signed-in editors see everything that
// is not staff-only, staff see all.
func visiblePages(pages []wiki.Page, editor users.Editor, authenticated bool) []wiki.Page {
	visible := make([]wiki.Page, 0, len(pages))
	for _, page := range pages {
		if page.StaffOnly && !(authenticated && editor.IsStaff) {
			continue
		}
		if !page.IsPublic && !authenticated {
			continue
		}
		visible = append(visible, page)
	}
	return visible
}

func (h *httpHandler) visibleFor(c *gin.Context) ([]wiki.Page, error) {
	pages, err := h.pages.ListPages(c.Request.Context())
	if err != nil {
		return nil, err
	}
	editor, authenticated := currentEditor(c)
	return visiblePages(pages, editor, authenticated), nil
}

func (h *httpHandler) handleListPages(c *gin.Context) {
	visible, err := h.visibleFor(c)
	if err != nil {
		h.logger.Error("failed to list pages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": visible})
}

type treeNodePayload struct {
	Page     wiki.Page         `json:"page"`
	Children []treeNodePayload `json:"children"`
}

func toTreePayload(nodes []*wiki.TreeNode) []treeNodePayload {
	payload := make([]treeNodePayload, 0, len(nodes))
	for _, node := range nodes {
		payload = append(payload, treeNodePayload{
			Page:     node.Page,
			Children: toTreePayload(node.Children),
		})
	}
	return payload
}

func (h *httpHandler) handlePageTree(c *gin.Context) {
	visible, err := h.visibleFor(c)
	if err != nil {
		h.logger.Error("failed to derive page tree", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tree_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"roots": toTreePayload(wiki.BuildTree(visible))})
}

type searchResultPayload struct {
	Page       wiki.Page `json:"page"`
	Breadcrumb string    `json:"breadcrumb"`
}

func (h *httpHandler) handleSearchPages(c *gin.Context) {
	visible, err := h.visibleFor(c)
	if err != nil {
		h.logger.Error("failed to search pages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search_failed"})
		return
	}
	matches := wiki.Search(visible, c.Query("q"))
	results := make([]searchResultPayload, 0, len(matches))
	for _, match := range matches {
		results = append(results, searchResultPayload{
			Page:       match,
			Breadcrumb: wiki.Breadcrumb(visible, match),
		})
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *httpHandler) handleGetPage(c *gin.Context) {
	page, err := h.pages.GetPageBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, wiki.ErrPageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error("failed to load page", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load_failed"})
		return
	}
	editor, authenticated := currentEditor(c)
	if len(visiblePages([]wiki.Page{page}, editor, authenticated)) == 0 {
		// A page the caller may not see is indistinguishable from a missing one.
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page, "widgets": widget.Scan(page.Content)})
}

type pageRequestPayload struct {
	ParentID             *int64  `json:"parent_id"`
	Slug                 string  `json:"slug"`
	Title                string  `json:"title"`
	DisplayOrder         *int    `json:"order"`
	Content              string  `json:"content"`
	IsPublic             bool    `json:"is_public"`
	StaffOnly            bool    `json:"staff_only"`
	BannerImageRef       *string `json:"banner_image_ref"`
	BannerVerticalOffset *int    `json:"banner_vertical_offset"`
}

func (p pageRequestPayload) toFields() wiki.PageFields {
	return wiki.PageFields{
		ParentID:             p.ParentID,
		Slug:                 p.Slug,
		Title:                p.Title,
		DisplayOrder:         p.DisplayOrder,
		Content:              p.Content,
		IsPublic:             p.IsPublic,
		StaffOnly:            p.StaffOnly,
		BannerImageRef:       p.BannerImageRef,
		BannerVerticalOffset: p.BannerVerticalOffset,
	}
}

func (h *httpHandler) handleCreatePage(c *gin.Context) {
	editor, _ := currentEditor(c)
	var request pageRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	page, err := h.pages.CreatePage(c.Request.Context(), editor.UserID, request.toFields())
	if err != nil {
		if errors.Is(err, wiki.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed"})
			return
		}
		h.logger.Error("failed to create page", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	h.dispatcher.Publish(ChangeEvent{
		Topic:     TopicPages,
		EventType: EventPageChanged,
		EntityIDs: []int64{page.ID},
		Timestamp: time.Now().UTC(),
	})
	c.JSON(http.StatusCreated, gin.H{"page": page})
}

func (h *httpHandler) handleUpdatePage(c *gin.Context) {
	editor, _ := currentEditor(c)
	pageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	var request pageRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	page, err := h.pages.UpdatePage(c.Request.Context(), editor.UserID, pageID, request.toFields())
	if err != nil {
		switch {
		case errors.Is(err, wiki.ErrPageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		case errors.Is(err, wiki.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed"})
		default:
			h.logger.Error("failed to update page", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		}
		return
	}
	h.dispatcher.Publish(ChangeEvent{
		Topic:     TopicPages,
		EventType: EventPageChanged,
		EntityIDs: []int64{page.ID},
		Timestamp: time.Now().UTC(),
	})
	c.JSON(http.StatusOK, gin.H{"page": page})
}

func (h *httpHandler) handleListTiers(c *gin.Context) {
	tiers, err := h.catalog.ListTiers(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list tiers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}

func (h *httpHandler) handleListAbilities(c *gin.Context) {
	abilities, err := h.catalog.ListAbilities(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list abilities", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"abilities": abilities})
}

func (h *httpHandler) handleListImages(c *gin.Context) {
	images, err := h.catalog.ListImages(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list images", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

func (h *httpHandler) handleListButtonWidgets(c *gin.Context) {
	buttons, err := h.catalog.ListButtonWidgets(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list button widgets", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"buttons": buttons})
}

func (h *httpHandler) handleListWidgetTargets(c *gin.Context) {
	kind, err := widget.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_kind"})
		return
	}
	entries, err := h.catalog.List(c.Request.Context(), kind)
	if err != nil {
		h.logger.Error("failed to list widget targets", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *httpHandler) handleListTierLinks(c *gin.Context) {
	tierID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	links, err := h.catalog.ListTierLinks(c.Request.Context(), tierID)
	if err != nil {
		h.logger.Error("failed to list tier links", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}

type tierLinksRequestPayload struct {
	Links []relation.LinkPayload `json:"links"`
}

func (h *httpHandler) handleReplaceTierLinks(c *gin.Context) {
	tierID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	var request tierLinksRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.catalog.ReplaceTierLinks(c.Request.Context(), tierID, request.Links); err != nil {
		switch {
		case errors.Is(err, catalog.ErrTierNotFound), errors.Is(err, catalog.ErrAbilityNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		case errors.Is(err, catalog.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed"})
		default:
			h.logger.Error("failed to replace tier links", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		}
		return
	}
	h.dispatcher.Publish(ChangeEvent{
		Topic:     TopicTiers,
		EventType: EventTierLinksChanged,
		EntityIDs: []int64{tierID},
		Timestamp: time.Now().UTC(),
	})
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}
