package rooms

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pastejet/pastejet/internal/auth"
	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/events"
	"github.com/pastejet/pastejet/internal/infrastructure/json"
	"github.com/pastejet/pastejet/internal/lab"
	roomsvc "github.com/pastejet/pastejet/internal/rooms"
	"github.com/pastejet/pastejet/internal/runner"
	"github.com/pastejet/pastejet/internal/store"
)

const defaultAuditLimit = 50

type Handler struct {
	rooms  *roomsvc.Service
	store  store.Store
	runner *runner.Client
	audit  *events.AuditPublisher
	// auditLog is nil when the deployment runs without MongoDB-backed
	// audit storage.
	auditLog domain.RoomAuditRepository
}

func NewHandler(rooms *roomsvc.Service, st store.Store, run *runner.Client, audit *events.AuditPublisher, auditLog domain.RoomAuditRepository) *Handler {
	return &Handler{
		rooms:    rooms,
		store:    st,
		runner:   run,
		audit:    audit,
		auditLog: auditLog,
	}
}

func toRoomResponse(r *domain.Room) roomResponse {
	muted := r.MutedUsers
	if muted == nil {
		muted = []string{}
	}
	return roomResponse{
		ID:         r.ID,
		Name:       r.Name,
		Language:   r.Language,
		Content:    r.Content,
		Active:     r.Active,
		Private:    r.Private,
		MutedUsers: muted,
		CreatedBy:  r.CreatedBy,
		CreatedAt:  r.CreatedAt,
	}
}

// writeRoomError maps the domain errors shared by most room operations.
func writeRoomError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		json.WriteError(w, http.StatusNotFound, err, err.Error())
	case errors.Is(err, domain.ErrRoomInactive):
		json.WriteError(w, http.StatusGone, err, err.Error())
	case errors.Is(err, domain.ErrWrongPassword):
		json.WriteError(w, http.StatusForbidden, err, err.Error())
	case errors.Is(err, domain.ErrNotOwner), errors.Is(err, domain.ErrNotMember):
		json.WriteError(w, http.StatusForbidden, err, err.Error())
	case errors.Is(err, domain.ErrMemberNotFound):
		json.WriteError(w, http.StatusNotFound, err, err.Error())
	default:
		json.WriteInternalError(w, err)
	}
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		json.WriteError(w, http.StatusUnauthorized, nil, "authentication required")
	}
	return identity, ok
}

func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createRoomRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	room, err := h.rooms.Create(r.Context(), req.Name, req.Language, identity.UserID, req.Private, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrRoomCodeExhausted) {
			json.WriteInternalError(w, err)
			return
		}
		json.WriteValidationError(w, err)
		return
	}

	h.audit.RoomCreated(r.Context(), room.ID, identity.UserID)
	json.Write(w, http.StatusCreated, toRoomResponse(room))
}

func (h *Handler) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	rooms, err := h.rooms.List(r.Context(), identity.UserID)
	if err != nil {
		json.WriteInternalError(w, err)
		return
	}

	resp := roomListResponse{Rooms: make([]roomResponse, 0, len(rooms))}
	for _, room := range rooms {
		resp.Rooms = append(resp.Rooms, toRoomResponse(room))
	}

	json.Write(w, http.StatusOK, resp)
}

func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.Get(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		writeRoomError(w, err)
		return
	}

	json.Write(w, http.StatusOK, toRoomResponse(room))
}

func (h *Handler) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req joinRoomRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	roomID := chi.URLParam(r, "roomID")
	room, err := h.rooms.Join(r.Context(), roomID, identity.UserID, req.Password)
	if err != nil {
		writeRoomError(w, err)
		return
	}

	h.audit.MemberJoined(r.Context(), roomID, identity.UserID)
	json.Write(w, http.StatusOK, toRoomResponse(room))
}

func (h *Handler) LeaveRoomHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	roomID := chi.URLParam(r, "roomID")
	if err := h.rooms.Leave(r.Context(), roomID, identity.UserID); err != nil {
		writeRoomError(w, err)
		return
	}

	h.audit.MemberLeft(r.Context(), roomID, identity.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MembersHandler(w http.ResponseWriter, r *http.Request) {
	members, err := h.rooms.Members(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		writeRoomError(w, err)
		return
	}

	resp := memberListResponse{Members: make([]memberResponse, 0, len(members))}
	for _, m := range members {
		resp.Members = append(resp.Members, memberResponse{
			UserID:   m.UserID,
			Role:     string(m.Role),
			JoinedAt: m.JoinedAt,
		})
	}

	json.Write(w, http.StatusOK, resp)
}

func (h *Handler) AddMemberHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req addMemberRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	roomID := chi.URLParam(r, "roomID")
	if err := h.rooms.AddMember(r.Context(), roomID, identity.UserID, req.UserID); err != nil {
		writeRoomError(w, err)
		return
	}

	h.audit.MemberJoined(r.Context(), roomID, req.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveMemberHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	roomID := chi.URLParam(r, "roomID")
	target := chi.URLParam(r, "userID")
	if err := h.rooms.RemoveMember(r.Context(), roomID, identity.UserID, target); err != nil {
		writeRoomError(w, err)
		return
	}

	h.audit.MemberRemoved(r.Context(), roomID, identity.UserID, target)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateSettingsRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	roomID := chi.URLParam(r, "roomID")
	if err := h.rooms.UpdateSettings(r.Context(), roomID, identity.UserID, req.Private, req.Password); err != nil {
		writeRoomError(w, err)
		return
	}

	h.audit.SettingsChanged(r.Context(), roomID, identity.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CloseRoomHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	roomID := chi.URLParam(r, "roomID")
	if err := h.rooms.Close(r.Context(), roomID, identity.UserID); err != nil {
		writeRoomError(w, err)
		return
	}

	h.audit.RoomClosed(r.Context(), roomID, identity.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// ToggleMuteHandler flips the target's entry in the room's mute list.
func (h *Handler) ToggleMuteHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	roomID := chi.URLParam(r, "roomID")
	target := chi.URLParam(r, "userID")

	room, err := h.rooms.Get(r.Context(), roomID)
	if err != nil {
		writeRoomError(w, err)
		return
	}
	wasMuted := room.IsMuted(target)

	mod := lab.NewModerator(h.store, roomID)
	if err := mod.ToggleMuteUser(r.Context(), identity.UserID, target); err != nil {
		writeRoomError(w, err)
		return
	}

	if wasMuted {
		h.audit.MemberUnmuted(r.Context(), roomID, identity.UserID, target)
	} else {
		h.audit.MemberMuted(r.Context(), roomID, identity.UserID, target)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MuteAllHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	roomID := chi.URLParam(r, "roomID")
	mod := lab.NewModerator(h.store, roomID)
	if err := mod.MuteAll(r.Context(), identity.UserID); err != nil {
		writeRoomError(w, err)
		return
	}

	h.audit.MemberMuted(r.Context(), roomID, identity.UserID, "*")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UnmuteAllHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	roomID := chi.URLParam(r, "roomID")
	mod := lab.NewModerator(h.store, roomID)
	if err := mod.UnmuteAll(r.Context(), identity.UserID); err != nil {
		writeRoomError(w, err)
		return
	}

	h.audit.MemberUnmuted(r.Context(), roomID, identity.UserID, "*")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SaveVersionHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	roomID := chi.URLParam(r, "roomID")
	version, err := h.rooms.SaveVersion(r.Context(), roomID, identity.UserID)
	if err != nil {
		writeRoomError(w, err)
		return
	}

	h.audit.VersionSaved(r.Context(), roomID, identity.UserID, version.ID)
	json.Write(w, http.StatusCreated, versionResponse{
		ID:        version.ID,
		Content:   version.Content,
		SavedBy:   version.SavedBy,
		Timestamp: version.Timestamp,
	})
}

func (h *Handler) ListVersionsHandler(w http.ResponseWriter, r *http.Request) {
	versions, err := h.rooms.ListVersions(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		writeRoomError(w, err)
		return
	}

	resp := versionListResponse{Versions: make([]versionResponse, 0, len(versions))}
	for _, v := range versions {
		resp.Versions = append(resp.Versions, versionResponse{
			ID:        v.ID,
			Content:   v.Content,
			SavedBy:   v.SavedBy,
			Timestamp: v.Timestamp,
		})
	}

	json.Write(w, http.StatusOK, resp)
}

func (h *Handler) RestoreVersionHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	roomID := chi.URLParam(r, "roomID")
	versionID := chi.URLParam(r, "versionID")
	if err := h.rooms.RestoreVersion(r.Context(), roomID, identity.UserID, versionID); err != nil {
		writeRoomError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	messages, err := h.rooms.Messages(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		writeRoomError(w, err)
		return
	}

	resp := messageListResponse{Messages: make([]messageResponse, 0, len(messages))}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, messageResponse{
			ID:          m.ID,
			Content:     m.Content,
			UserID:      m.Sender,
			DisplayName: m.DisplayName,
			Timestamp:   m.Timestamp,
		})
	}

	json.Write(w, http.StatusOK, resp)
}

func (h *Handler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	roomID := chi.URLParam(r, "roomID")
	msg, err := h.rooms.SendMessage(r.Context(), roomID, identity.UserID, identity.DisplayName, req.Content)
	if err != nil {
		writeRoomError(w, err)
		return
	}

	json.Write(w, http.StatusCreated, messageResponse{
		ID:          msg.ID,
		Content:     msg.Content,
		UserID:      msg.Sender,
		DisplayName: msg.DisplayName,
		Timestamp:   msg.Timestamp,
	})
}

// ExecuteHandler runs the room's language against the submitted code and
// records the result for every participant to see.
func (h *Handler) ExecuteHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req executeRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	roomID := chi.URLParam(r, "roomID")
	room, err := h.rooms.Get(r.Context(), roomID)
	if err != nil {
		writeRoomError(w, err)
		return
	}

	result, err := h.runner.ExecuteForRoom(r.Context(), h.store, roomID, identity.UserID, runner.Request{
		Language: room.Language,
		Code:     req.Code,
		Input:    req.Input,
	})
	if err != nil {
		if errors.Is(err, domain.ErrExecutionUnsupported) {
			json.WriteError(w, http.StatusUnprocessableEntity, err, err.Error())
			return
		}
		json.WriteError(w, http.StatusBadGateway, err, "execution backend failed")
		return
	}

	h.audit.CodeExecuted(r.Context(), roomID, identity.UserID, room.Language)
	json.Write(w, http.StatusOK, executeResponse{
		Stdout: result.Stdout,
		Stderr: result.Stderr,
		Output: result.Output,
	})
}

// PlaygroundExecuteHandler runs code outside any room. Nothing is recorded.
func (h *Handler) PlaygroundExecuteHandler(w http.ResponseWriter, r *http.Request) {
	var req playgroundExecuteRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	result, err := h.runner.Execute(r.Context(), runner.Request{
		Language: req.Language,
		Code:     req.Code,
		Input:    req.Input,
	})
	if err != nil {
		if errors.Is(err, domain.ErrExecutionUnsupported) {
			json.WriteError(w, http.StatusUnprocessableEntity, err, err.Error())
			return
		}
		json.WriteError(w, http.StatusBadGateway, err, "execution backend failed")
		return
	}

	json.Write(w, http.StatusOK, executeResponse{
		Stdout: result.Stdout,
		Stderr: result.Stderr,
		Output: result.Output,
	})
}

func (h *Handler) AuditLogHandler(w http.ResponseWriter, r *http.Request) {
	if h.auditLog == nil {
		json.WriteError(w, http.StatusNotImplemented, nil, "audit log storage is not enabled")
		return
	}

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.auditLog.GetByRoomID(r.Context(), chi.URLParam(r, "roomID"), limit)
	if err != nil {
		json.WriteInternalError(w, err)
		return
	}

	resp := auditListResponse{Entries: make([]auditEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, auditEntryResponse{
			ID:        e.ID,
			EventType: string(e.EventType),
			Timestamp: e.Timestamp,
			Metadata:  e.Metadata,
		})
	}

	json.Write(w, http.StatusOK, resp)
}
