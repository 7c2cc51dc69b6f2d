package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/everafterhq/everafter/internal/auth"
	"github.com/everafterhq/everafter/internal/enquiry"
	"github.com/everafterhq/everafter/internal/invite"
	"github.com/everafterhq/everafter/internal/media"
	"github.com/everafterhq/everafter/internal/rsvp"
)

const (
	userIDContextKey = "everafter_user_id"
	rolesContextKey  = "everafter_user_roles"

	maxUploadBytes = 10 << 20
)

var (
	errMissingSessionVerifier = errors.New("session verifier dependency required")
	errMissingTokenManager    = errors.New("token manager dependency required")
	errMissingInviteService   = errors.New("invite service dependency required")
	errMissingRsvpService     = errors.New("rsvp service dependency required")
	errMissingEnquiryService  = errors.New("enquiry service dependency required")
	errMissingMediaStore      = errors.New("media store dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
)

// SessionVerifier validates the external auth provider's session cookie.
type SessionVerifier interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// DashboardTokenManager issues and validates the backend's own Bearer tokens.
type DashboardTokenManager interface {
	IssueDashboardToken(ctx context.Context, subject string, roles []string) (string, int64, error)
	ValidateToken(token string) (string, []string, error)
}

// IdentityResolver records provider identities and yields canonical user ids.
type IdentityResolver interface {
	ResolveCanonicalUserID(claims auth.SessionClaims) (string, error)
}

// Dependencies wires the route layer to its collaborators.
type Dependencies struct {
	SessionVerifier SessionVerifier
	TokenManager    DashboardTokenManager
	Identities      IdentityResolver
	InviteService   *invite.Service
	RsvpService     *rsvp.Service
	EnquiryService  *enquiry.Service
	MediaStore      media.Store
	MediaDirectory  string
	MediaBasePath   string
	DefaultWedding  string
	Logger          *zap.Logger
}

// NewHTTPHandler builds the gin handler serving the public site and the dashboard.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionVerifier == nil {
		return nil, errMissingSessionVerifier
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.InviteService == nil {
		return nil, errMissingInviteService
	}
	if deps.RsvpService == nil {
		return nil, errMissingRsvpService
	}
	if deps.EnquiryService == nil {
		return nil, errMissingEnquiryService
	}
	if deps.MediaStore == nil {
		return nil, errMissingMediaStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	defaultWedding := deps.DefaultWedding
	if defaultWedding == "" {
		defaultWedding = invite.DefaultWeddingID
	}

	handler := &httpHandler{
		verifier:       deps.SessionVerifier,
		tokens:         deps.TokenManager,
		identities:     deps.Identities,
		invites:        deps.InviteService,
		rsvps:          deps.RsvpService,
		enquiries:      deps.EnquiryService,
		media:          deps.MediaStore,
		defaultWedding: defaultWedding,
		logger:         logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.POST("/auth/session", handler.handleSessionExchange)
	router.GET("/invite/:id", handler.handleGetInvite)
	router.POST("/invite/:id/rsvp", handler.handleCreateRsvp)
	router.POST("/enquiries/:kind", handler.handleCreateEnquiry)
	if deps.MediaDirectory != "" {
		basePath := deps.MediaBasePath
		if basePath == "" {
			basePath = "/media"
		}
		router.Static(basePath, deps.MediaDirectory)
	}

	protected := router.Group("/")
	protected.Use(handler.authorizeAdmin)
	protected.POST("/invite", handler.handleCreateInvite)
	protected.PUT("/invite/:id", handler.handleUpdateInvite)
	protected.DELETE("/invite/:id", handler.handleDeleteInvite)
	protected.GET("/invite/:id/responses", handler.handleListResponses)
	protected.PATCH("/invite/:id/responses", handler.handleUpdateRsvpStatus)
	protected.PATCH("/invite/:id/responses/:rsvpId", handler.handleUpdateRsvpStatusByPath)
	protected.GET("/enquiries/:kind", handler.handleListEnquiries)
	protected.PATCH("/enquiries/:kind/:enquiryId", handler.handleUpdateEnquiryStatus)
	protected.DELETE("/enquiries/:kind/:enquiryId", handler.handleDeleteEnquiry)

	return router, nil
}

type httpHandler struct {
	verifier       SessionVerifier
	tokens         DashboardTokenManager
	identities     IdentityResolver
	invites        *invite.Service
	rsvps          *rsvp.Service
	enquiries      *enquiry.Service
	media          media.Store
	defaultWedding string
	logger         *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	respondData(c, http.StatusOK, gin.H{"status": "ok"})
}

type sessionResponsePayload struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
	TokenType   string `json:"tokenType"`
}

func (h *httpHandler) handleSessionExchange(c *gin.Context) {
	claims, err := h.verifier.ValidateRequest(c.Request)
	if err != nil {
		h.logger.Warn("session cookie verification failed", zap.Error(err))
		respondError(c, http.StatusUnauthorized, "unauthorized", "session cookie missing or invalid")
		return
	}

	subject := claims.UserID
	if h.identities != nil {
		canonical, err := h.identities.ResolveCanonicalUserID(claims)
		if err != nil {
			h.logger.Error("identity resolution failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "upstream_failure", "could not resolve user identity")
			return
		}
		subject = canonical
	}

	token, expiresIn, err := h.tokens.IssueDashboardToken(c.Request.Context(), subject, claims.UserRoles)
	if err != nil {
		h.logger.Error("failed to issue dashboard token", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "upstream_failure", "could not issue token")
		return
	}

	respondData(c, http.StatusOK, sessionResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) authorizeAdmin(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		abortError(c, http.StatusUnauthorized, "unauthorized", errInvalidAuthorization.Error())
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		abortError(c, http.StatusUnauthorized, "unauthorized", errInvalidAuthorization.Error())
		return
	}
	subject, roles, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		abortError(c, http.StatusUnauthorized, "unauthorized", "token invalid or expired")
		return
	}
	if !hasRole(roles, auth.RoleAdmin) {
		abortError(c, http.StatusForbidden, "forbidden", "admin role required")
		return
	}
	c.Set(userIDContextKey, subject)
	c.Set(rolesContextKey, roles)
	c.Next()
}

func hasRole(roles []string, role string) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}

type invitePayload struct {
	ID        string         `json:"id"`
	Document  map[string]any `json:"document"`
	IsEnabled bool           `json:"isEnabled"`
}

func inviteToPayload(record *invite.Record) invitePayload {
	return invitePayload{
		ID:        record.ID,
		Document:  record.Document,
		IsEnabled: record.IsEnabled,
	}
}

func (h *httpHandler) handleGetInvite(c *gin.Context) {
	id, err := invite.NewWeddingID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "invalid wedding identifier")
		return
	}

	forceRefresh := strings.EqualFold(c.Query("refresh"), "true")
	record, err := h.invites.GetByID(c.Request.Context(), id, forceRefresh)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	if record == nil {
		respondError(c, http.StatusNotFound, "not_found", "wedding not found")
		return
	}
	respondData(c, http.StatusOK, inviteToPayload(record))
}

// handleCreateInvite accepts a multipart form: a required `document` JSON field
// plus any number of image parts whose field names are dot-paths into the
// document where the uploaded file's URL is placed (e.g. invite.imageOne).
func (h *httpHandler) handleCreateInvite(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "multipart form required")
		return
	}

	documentValues := form.Value["document"]
	if len(documentValues) == 0 || strings.TrimSpace(documentValues[0]) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "document field is required")
		return
	}

	var document invite.Document
	if err := json.Unmarshal([]byte(documentValues[0]), &document); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "document field is not valid JSON")
		return
	}
	documentMap, err := document.ToMap()
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "document field is not valid JSON")
		return
	}

	id := invite.WeddingID(h.defaultWedding)
	if values := form.Value["id"]; len(values) > 0 {
		id, err = invite.NewWeddingID(values[0])
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_request", "invalid wedding identifier")
			return
		}
	}

	for field, files := range form.File {
		for _, file := range files {
			url, err := h.uploadFormFile(c.Request.Context(), file)
			if err != nil {
				if errors.Is(err, media.ErrUnsupportedContentType) || errors.Is(err, media.ErrEmptyUpload) {
					respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
					return
				}
				h.logger.Error("invite image upload failed", zap.String("field", field), zap.Error(err))
				respondError(c, http.StatusInternalServerError, "upstream_failure", "image upload failed")
				return
			}
			invite.SetField(documentMap, field, url)
		}
	}

	record, err := h.invites.CreateByID(c.Request.Context(), id, documentMap)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, inviteToPayload(record))
}

func (h *httpHandler) uploadFormFile(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if file.Size > maxUploadBytes {
		return "", media.ErrUnsupportedContentType
	}
	opened, err := file.Open()
	if err != nil {
		return "", err
	}
	defer opened.Close()

	data, err := io.ReadAll(opened)
	if err != nil {
		return "", err
	}
	return h.media.Save(ctx, data, file.Header.Get("Content-Type"))
}

func (h *httpHandler) handleUpdateInvite(c *gin.Context) {
	id, err := invite.NewWeddingID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "invalid wedding identifier")
		return
	}

	partial := map[string]any{}
	if err := c.ShouldBindJSON(&partial); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "request body is not a JSON object")
		return
	}

	record, err := h.invites.UpdateByID(c.Request.Context(), id, partial)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, inviteToPayload(record))
}

func (h *httpHandler) handleDeleteInvite(c *gin.Context) {
	id, err := invite.NewWeddingID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "invalid wedding identifier")
		return
	}

	if err := h.invites.DeleteByID(c.Request.Context(), id); err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"id": id.String()})
}

type rsvpPayload struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Status    string         `json:"status"`
	Guest     map[string]any `json:"guest"`
	CreatedAt string         `json:"createdAt"`
	UpdatedAt string         `json:"updatedAt"`
}

func rsvpToPayload(response *rsvp.Response) rsvpPayload {
	guest := map[string]any{}
	if response.GuestJSON != "" {
		// A decode failure leaves the guest object empty rather than failing the
		// request; the fixed fields are still authoritative.
		_ = json.Unmarshal([]byte(response.GuestJSON), &guest)
	}
	return rsvpPayload{
		ID:        response.ID,
		UserID:    response.WeddingID,
		Status:    response.Status.String(),
		Guest:     guest,
		CreatedAt: response.CreatedAt,
		UpdatedAt: response.UpdatedAt,
	}
}

func (h *httpHandler) handleCreateRsvp(c *gin.Context) {
	weddingID := strings.TrimSpace(c.Param("id"))
	if weddingID == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "invalid wedding identifier")
		return
	}

	guestFields := map[string]any{}
	if err := c.ShouldBindJSON(&guestFields); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "request body is not a JSON object")
		return
	}

	response, err := h.rsvps.Create(c.Request.Context(), weddingID, guestFields)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, rsvpToPayload(response))
}

func (h *httpHandler) handleListResponses(c *gin.Context) {
	weddingID := strings.TrimSpace(c.Param("id"))
	if weddingID == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "invalid wedding identifier")
		return
	}

	responses, err := h.rsvps.ListByWedding(c.Request.Context(), weddingID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	payloads := make([]rsvpPayload, 0, len(responses))
	for index := range responses {
		payloads = append(payloads, rsvpToPayload(&responses[index]))
	}
	respondData(c, http.StatusOK, payloads)
}

type rsvpStatusRequestPayload struct {
	RsvpID string `json:"rsvpId"`
	Status string `json:"status"`
}

func (h *httpHandler) handleUpdateRsvpStatus(c *gin.Context) {
	var request rsvpStatusRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "request body is not a JSON object")
		return
	}
	if strings.TrimSpace(request.RsvpID) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "rsvpId is required")
		return
	}
	h.updateRsvpStatus(c, request.RsvpID, request.Status)
}

func (h *httpHandler) handleUpdateRsvpStatusByPath(c *gin.Context) {
	var request rsvpStatusRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "request body is not a JSON object")
		return
	}
	h.updateRsvpStatus(c, c.Param("rsvpId"), request.Status)
}

func (h *httpHandler) updateRsvpStatus(c *gin.Context, rsvpID, rawStatus string) {
	if strings.TrimSpace(rawStatus) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "status is required")
		return
	}
	status, err := rsvp.ParseStatus(rawStatus)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	response, err := h.rsvps.UpdateStatus(c.Request.Context(), rsvpID, status)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, rsvpToPayload(response))
}

type enquiryPayload struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Status     string         `json:"status"`
	Submission map[string]any `json:"submission"`
	CreatedAt  string         `json:"createdAt"`
	UpdatedAt  string         `json:"updatedAt"`
}

func enquiryToPayload(record *enquiry.Enquiry) enquiryPayload {
	submission := map[string]any{}
	if record.SubmissionJSON != "" {
		_ = json.Unmarshal([]byte(record.SubmissionJSON), &submission)
	}
	return enquiryPayload{
		ID:         record.ID,
		Kind:       record.Kind.String(),
		Status:     record.Status.String(),
		Submission: submission,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}

func (h *httpHandler) handleCreateEnquiry(c *gin.Context) {
	kind, err := enquiry.ParseKind(c.Param("kind"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	submission := map[string]any{}
	if err := c.ShouldBindJSON(&submission); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "request body is not a JSON object")
		return
	}

	record, err := h.enquiries.Create(c.Request.Context(), kind, submission)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, enquiryToPayload(record))
}

func (h *httpHandler) handleListEnquiries(c *gin.Context) {
	kind, err := enquiry.ParseKind(c.Param("kind"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	records, err := h.enquiries.ListByKind(c.Request.Context(), kind)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	payloads := make([]enquiryPayload, 0, len(records))
	for index := range records {
		payloads = append(payloads, enquiryToPayload(&records[index]))
	}
	respondData(c, http.StatusOK, payloads)
}

type enquiryStatusRequestPayload struct {
	Status string `json:"status"`
}

func (h *httpHandler) handleUpdateEnquiryStatus(c *gin.Context) {
	if _, err := enquiry.ParseKind(c.Param("kind")); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var request enquiryStatusRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Status) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "status is required")
		return
	}
	status, err := enquiry.ParseStatus(request.Status)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	record, err := h.enquiries.UpdateStatus(c.Request.Context(), c.Param("enquiryId"), status)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, enquiryToPayload(record))
}

func (h *httpHandler) handleDeleteEnquiry(c *gin.Context) {
	if _, err := enquiry.ParseKind(c.Param("kind")); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	enquiryID := c.Param("enquiryId")
	if err := h.enquiries.Delete(c.Request.Context(), enquiryID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"id": enquiryID})
}

// respondServiceError maps the tagged service errors onto HTTP statuses. The
// closed taxonomy (not found, invalid argument, upstream) is switched on with
// errors.Is, never by comparing message text.
func (h *httpHandler) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, invite.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", "wedding not found")
	case errors.Is(err, rsvp.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", "rsvp not found")
	case errors.Is(err, enquiry.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", "enquiry not found")
	case errors.Is(err, rsvp.ErrInvalidStatus),
		errors.Is(err, enquiry.ErrInvalidStatus),
		errors.Is(err, enquiry.ErrInvalidKind),
		errors.Is(err, invite.ErrInvalidWeddingID):
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "upstream_failure", "the request could not be completed")
	}
}
