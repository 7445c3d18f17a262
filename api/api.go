package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/GetStream/teamchat/api/validator"
	"github.com/GetStream/teamchat/chat"
	"golang.org/x/sync/errgroup"
)

// API provides the REST endpoints for the application.
type API struct {
	Logger        *slog.Logger
	Auth          Authenticator
	Sessions      *Sessions
	Accounts      *chat.Accounts
	Memberships   *chat.Memberships
	Conversations *chat.Conversations
	Reactions     *chat.Reactions
	Val           *validator.Validator
	// MessageLimit is the default window for message listings.
	MessageLimit int

	once sync.Once
	mux  *http.ServeMux
}

// maxSummaryFetches bounds concurrent reaction lookups per listing.
const maxSummaryFetches = 8

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /session", a.authenticated(a.signIn))
	mux.HandleFunc("DELETE /session", a.authenticated(a.signOut))
	mux.HandleFunc("GET /users", a.authenticated(a.listUsers))

	mux.HandleFunc("GET /channels", a.authenticated(a.listChannels))
	mux.HandleFunc("GET /channels/browse", a.authenticated(a.browseChannels))
	mux.HandleFunc("POST /channels", a.authenticated(a.createChannel))
	mux.HandleFunc("POST /channels/{channelID}/members", a.authenticated(a.joinChannel))
	mux.HandleFunc("GET /channels/{channelID}/messages", a.authenticated(a.listChannelMessages))
	mux.HandleFunc("POST /channels/{channelID}/messages", a.authenticated(a.createChannelMessage))

	mux.HandleFunc("GET /dms/{userID}/messages", a.authenticated(a.listDirectMessages))
	mux.HandleFunc("POST /dms/{userID}/messages", a.authenticated(a.createDirectMessage))

	mux.HandleFunc("GET /messages/{messageID}/reactions", a.authenticated(a.listReactions))
	mux.HandleFunc("POST /messages/{messageID}/reactions", a.authenticated(a.createReaction))
	mux.HandleFunc("DELETE /messages/{messageID}/reactions/{emoji}", a.authenticated(a.deleteReaction))

	a.mux = mux
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path)
	a.mux.ServeHTTP(w, r)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, id chat.AuthIdentity, sess *chat.Session)

func (a *API) authenticated(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Auth.Authenticate(r)
		if err != nil {
			a.respondError(w, http.StatusUnauthorized, err, "Unauthorized")
			return
		}
		h(w, r, id, a.Sessions.Get(id.UserID))
	}
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.Logger.Error("Error", "error", err.Error())
	a.respond(w, status, response{Error: msg})
}

type validationResponse struct {
	Errors []validator.ValidationError `json:"errors"`
}

func (a *API) validateBody(w http.ResponseWriter, s interface{}) bool {
	errs := a.Val.ValidateStruct(s)
	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &validationResponse{
			Errors: errs,
		})
		return false
	}
	return true
}

func (a *API) validateParam(w http.ResponseWriter, name, value, tag string) bool {
	errs := a.Val.Validate(value, tag)
	if len(errs) > 0 {
		for i := range errs {
			errs[i].Field = name
		}
		a.respond(w, http.StatusBadRequest, &validationResponse{
			Errors: errs,
		})
		return false
	}
	return true
}

// respondWriteError reports a failed user-initiated write. Validation
// failures are the caller's fault; anything else is ours.
func (a *API) respondWriteError(w http.ResponseWriter, err error, msg string) {
	var ve *chat.ValidationError
	if errors.As(err, &ve) {
		a.respond(w, http.StatusBadRequest, &validationResponse{
			Errors: []validator.ValidationError{{Field: ve.Field, Message: ve.Message}},
		})
		return
	}
	a.respondError(w, http.StatusInternalServerError, err, msg)
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, body any) bool {
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return false
	}
	if err := r.Body.Close(); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not close request body")
		return false
	}
	return true
}

func (a *API) limit(r *http.Request) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		return n
	}
	if a.MessageLimit > 0 {
		return a.MessageLimit
	}
	return chat.DefaultLimit
}

func (a *API) signIn(w http.ResponseWriter, r *http.Request, id chat.AuthIdentity, _ *chat.Session) {
	type response struct {
		Profile chat.UserProfile `json:"profile"`
	}
	p, err := a.Accounts.SignIn(r.Context(), id)
	if err != nil {
		a.respondWriteError(w, err, "Could not sign in")
		return
	}
	a.respond(w, http.StatusOK, response{Profile: p})
}

func (a *API) signOut(w http.ResponseWriter, _ *http.Request, id chat.AuthIdentity, _ *chat.Session) {
	a.Sessions.End(id.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request, id chat.AuthIdentity, _ *chat.Session) {
	type response struct {
		Users    []chat.UserProfile `json:"users"`
		Degraded bool               `json:"degraded"`
	}
	users, err := a.Accounts.Directory(r.Context(), id.UserID)
	a.respond(w, http.StatusOK, response{Users: users, Degraded: err != nil})
}

func (a *API) listChannels(w http.ResponseWriter, r *http.Request, id chat.AuthIdentity, _ *chat.Session) {
	type response struct {
		Channels []chat.Channel `json:"channels"`
		Degraded bool           `json:"degraded"`
	}
	chs, err := a.Memberships.ListMemberships(r.Context(), id.UserID)
	a.respond(w, http.StatusOK, response{Channels: chs, Degraded: err != nil})
}

func (a *API) browseChannels(w http.ResponseWriter, r *http.Request, id chat.AuthIdentity, _ *chat.Session) {
	type response struct {
		Channels []chat.Channel `json:"channels"`
		Degraded bool           `json:"degraded"`
	}
	chs, err := a.Memberships.BrowseChannels(r.Context(), id.UserID)
	if err != nil {
		a.Logger.Error("Could not browse channels", "error", err.Error())
	}
	a.respond(w, http.StatusOK, response{Channels: chs, Degraded: err != nil})
}

func (a *API) createChannel(w http.ResponseWriter, r *http.Request, id chat.AuthIdentity, _ *chat.Session) {
	type request struct {
		WorkspaceID string `json:"workspace_id" validate:"required"`
		Name        string `json:"name" validate:"required,notblank"`
		Description string `json:"description"`
		IsPrivate   bool   `json:"is_private"`
	}
	var body request
	if !a.decode(w, r, &body) || !a.validateBody(w, &body) {
		return
	}

	ch, err := a.Memberships.CreateChannel(r.Context(), id.UserID, body.WorkspaceID, body.Name, body.Description, body.IsPrivate)
	if errors.Is(err, chat.ErrDuplicate) {
		a.respondError(w, http.StatusConflict, err, "Channel already exists")
		return
	}
	if err != nil {
		a.respondWriteError(w, err, "Could not create channel")
		return
	}
	a.respond(w, http.StatusCreated, ch)
}

func (a *API) joinChannel(w http.ResponseWriter, r *http.Request, id chat.AuthIdentity, _ *chat.Session) {
	channelID := r.PathValue("channelID")
	if err := a.Memberships.Join(r.Context(), id.UserID, channelID); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not join channel")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type messagesResponse struct {
	Messages []Message `json:"messages"`
	Degraded bool      `json:"degraded"`
}

func (a *API) listChannelMessages(w http.ResponseWriter, r *http.Request, id chat.AuthIdentity, sess *chat.Session) {
	views, err := a.Conversations.ListChannelMessages(r.Context(), sess, r.PathValue("channelID"), a.limit(r))
	msgs := a.withReactions(r.Context(), views, id.UserID)
	a.respond(w, http.StatusOK, messagesResponse{Messages: msgs, Degraded: err != nil})
}

func (a *API) listDirectMessages(w http.ResponseWriter, r *http.Request, id chat.AuthIdentity, sess *chat.Session) {
	other := r.PathValue("userID")
	views, err := a.Conversations.ListDirectMessages(r.Context(), sess, other, a.limit(r))

	var msgs []Message
	if sess.Demo.Handles(other) {
		// Reactions are not modeled on demo conversations.
		msgs = make([]Message, len(views))
		for i, v := range views {
			msgs[i] = Message{MessageView: v, Reactions: map[string]chat.EmojiSummary{}}
		}
	} else {
		msgs = a.withReactions(r.Context(), views, id.UserID)
	}
	a.respond(w, http.StatusOK, messagesResponse{Messages: msgs, Degraded: err != nil})
}

// withReactions attaches reaction summaries to each message. Summary lookups
// run concurrently; a failed lookup leaves that message without reactions.
func (a *API) withReactions(ctx context.Context, views []chat.MessageView, actingUserID string) []Message {
	out := make([]Message, len(views))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSummaryFetches)
	for i, v := range views {
		out[i].MessageView = v
		g.Go(func() error {
			s, _ := a.Reactions.Summaries(gctx, v.ID, actingUserID)
			out[i].Reactions = s
			return nil
		})
	}
	_ = g.Wait()
	return out
}

type postMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

func (a *API) createChannelMessage(w http.ResponseWriter, r *http.Request, _ chat.AuthIdentity, sess *chat.Session) {
	var body postMessageRequest
	if !a.decode(w, r, &body) || !a.validateBody(w, &body) {
		return
	}
	msg, err := a.Conversations.PostChannelMessage(r.Context(), sess, r.PathValue("channelID"), body.Content)
	if err != nil {
		a.respondWriteError(w, err, "Could not insert message")
		return
	}
	a.respond(w, http.StatusCreated, msg)
}

func (a *API) createDirectMessage(w http.ResponseWriter, r *http.Request, _ chat.AuthIdentity, sess *chat.Session) {
	var body postMessageRequest
	if !a.decode(w, r, &body) || !a.validateBody(w, &body) {
		return
	}
	msg, err := a.Conversations.PostDirectMessage(r.Context(), sess, r.PathValue("userID"), body.Content)
	if err != nil {
		a.respondWriteError(w, err, "Could not insert message")
		return
	}
	a.respond(w, http.StatusCreated, msg)
}

type reactionsResponse struct {
	Reactions map[string]Reaction `json:"reactions"`
	Degraded  bool                `json:"degraded"`
}

func (a *API) listReactions(w http.ResponseWriter, r *http.Request, id chat.AuthIdentity, _ *chat.Session) {
	s, err := a.Reactions.Summaries(r.Context(), r.PathValue("messageID"), id.UserID)
	a.respond(w, http.StatusOK, reactionsResponse{Reactions: s, Degraded: err != nil})
}

func (a *API) createReaction(w http.ResponseWriter, r *http.Request, id chat.AuthIdentity, _ *chat.Session) {
	type request struct {
		Emoji string `json:"emoji" validate:"required,notblank"`
	}
	messageID := r.PathValue("messageID")
	var body request
	if !a.decode(w, r, &body) || !a.validateBody(w, &body) {
		return
	}
	if err := a.Reactions.Add(r.Context(), messageID, id.UserID, body.Emoji); err != nil {
		a.respondWriteError(w, err, "Could not create reaction for message with id "+messageID)
		return
	}
	a.respondSummaries(w, r, messageID, id.UserID, http.StatusCreated)
}

func (a *API) deleteReaction(w http.ResponseWriter, r *http.Request, id chat.AuthIdentity, _ *chat.Session) {
	messageID, emoji := r.PathValue("messageID"), r.PathValue("emoji")
	if !a.validateParam(w, "emoji", emoji, "notblank") {
		return
	}
	if err := a.Reactions.Remove(r.Context(), messageID, id.UserID, emoji); err != nil {
		a.respondWriteError(w, err, "Could not delete reaction for message with id "+messageID)
		return
	}
	a.respondSummaries(w, r, messageID, id.UserID, http.StatusOK)
}

func (a *API) respondSummaries(w http.ResponseWriter, r *http.Request, messageID, userID string, status int) {
	s, err := a.Reactions.Summaries(r.Context(), messageID, userID)
	a.respond(w, status, reactionsResponse{Reactions: s, Degraded: err != nil})
}
