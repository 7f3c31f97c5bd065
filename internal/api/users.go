package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"example.com/menta/internal/auth"
	"example.com/menta/internal/domain"
)

func (h *Handler) createProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeProfileWrite)
	if !ok {
		return
	}

	var req CreateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	email := req.Email
	if claims.Email != "" {
		email = claims.Email
	}
	if email == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "email is required")
		return
	}

	user, err := h.users.CreateProfile(r.Context(), domain.CreateProfileInput{
		ID:             claims.Subject,
		Email:          email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		DOB:            req.DOB,
		Interests:      req.Interests,
		ProfilePicture: req.ProfilePicture,
		Location:       req.Location,
		Bio:            req.Bio,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserView(*user))
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeProfileRead, auth.ScopeProfileWrite)
	if !ok {
		return
	}
	h.writeUser(w, r, claims.Subject)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeProfileRead, auth.ScopeProfileWrite); !ok {
		return
	}
	h.writeUser(w, r, chi.URLParam(r, "userID"))
}

func (h *Handler) writeUser(w http.ResponseWriter, r *http.Request, id string) {
	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(*user))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeProfileWrite)
	if !ok {
		return
	}

	id := chi.URLParam(r, "userID")
	if id != claims.Subject {
		writeError(w, http.StatusForbidden, "forbidden", "profiles can only be edited by their owner")
		return
	}

	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), id, req.toUpdate())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(*user))
}

func (h *Handler) follow(w http.ResponseWriter, r *http.Request) {
	h.setFollow(w, r, true)
}

func (h *Handler) unfollow(w http.ResponseWriter, r *http.Request) {
	h.setFollow(w, r, false)
}

func (h *Handler) setFollow(w http.ResponseWriter, r *http.Request, follow bool) {
	claims, ok := requireScope(w, r, auth.ScopeProfileWrite)
	if !ok {
		return
	}

	target := chi.URLParam(r, "userID")
	var err error
	if follow {
		err = h.users.Follow(r.Context(), claims.Subject, target)
	} else {
		err = h.users.Unfollow(r.Context(), claims.Subject, target)
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
