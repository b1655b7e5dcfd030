package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/submitflow/submitflow/store"
	"github.com/submitflow/submitflow/types"
)

// DirectoryHandler serves directory CRUD.
type DirectoryHandler struct {
	store  store.Store
	logger *zap.Logger
}

// DirectoryRequest is the create/update payload.
type DirectoryRequest struct {
	Name           string `json:"name"`
	SubmissionURL  string `json:"submission_url"`
	RequiresLogin  bool   `json:"requires_login,omitempty"`
	CredentialsKey string `json:"credentials_key,omitempty"`
}

func (r *DirectoryRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return types.NewError(types.ErrInvalidRequest, "name is required")
	}
	if strings.TrimSpace(r.SubmissionURL) == "" {
		return types.NewError(types.ErrInvalidRequest, "submission_url is required")
	}
	if !strings.HasPrefix(r.SubmissionURL, "http://") && !strings.HasPrefix(r.SubmissionURL, "https://") {
		return types.NewError(types.ErrInvalidRequest, "submission_url must be an absolute http(s) URL")
	}
	if r.RequiresLogin && strings.TrimSpace(r.CredentialsKey) == "" {
		return types.NewError(types.ErrInvalidRequest, "credentials_key is required when requires_login is set")
	}
	return nil
}

// NewDirectoryHandler creates a DirectoryHandler.
func NewDirectoryHandler(st store.Store, logger *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{store: st, logger: logger}
}

func (h *DirectoryHandler) HandleCreateDirectory(w http.ResponseWriter, r *http.Request) {
	var req DirectoryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := req.validate(); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	directory := &types.Directory{
		Name:           req.Name,
		SubmissionURL:  req.SubmissionURL,
		RequiresLogin:  req.RequiresLogin,
		CredentialsKey: req.CredentialsKey,
	}
	if err := h.store.CreateDirectory(r.Context(), directory); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteCreated(w, directory)
}

func (h *DirectoryHandler) HandleListDirectories(w http.ResponseWriter, r *http.Request) {
	directories, err := h.store.ListDirectories(r.Context())
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, directories)
}

func (h *DirectoryHandler) HandleGetDirectory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}
	directory, err := h.store.GetDirectory(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, directory)
}

func (h *DirectoryHandler) HandleUpdateDirectory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}
	var req DirectoryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := req.validate(); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	directory, err := h.store.GetDirectory(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	directory.Name = req.Name
	directory.SubmissionURL = req.SubmissionURL
	directory.RequiresLogin = req.RequiresLogin
	directory.CredentialsKey = req.CredentialsKey
	if err := h.store.UpdateDirectory(r.Context(), directory); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, directory)
}

func (h *DirectoryHandler) HandleDeleteDirectory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}
	if _, err := h.store.GetDirectory(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if err := h.store.DeleteDirectory(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"deleted": id.String()})
}
