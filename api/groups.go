package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/zkpresence/zkpresence/storage/groups"
	"github.com/zkpresence/zkpresence/types"
)

func (a *API) newGroup(w http.ResponseWriter, r *http.Request) {
	var req NewGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if req.Anchor == "" || strings.ContainsRune(req.Anchor, '/') {
		ErrMalformedAnchor.Withf("%q", req.Anchor).Write(w)
		return
	}
	if req.Depth < 0 || req.Depth > types.MaxTreeDepth {
		ErrInvalidDepth.Withf("%d", req.Depth).Write(w)
		return
	}
	ref, err := a.storage.Groups().New(req.Anchor, req.Name, req.Geofence, req.Depth)
	if err != nil {
		if errors.Is(err, groups.ErrGroupAlreadyExists) {
			ErrGroupAlreadyExists.Withf("%s", req.Anchor).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &groups.GroupSummary{
		GroupID:     ref.GroupID,
		Anchor:      ref.Anchor,
		Name:        ref.Name,
		Geofence:    ref.Geofence,
		Depth:       ref.Depth,
		MemberCount: ref.Size(),
		Root:        ref.Root(),
		CreatedAt:   ref.CreatedAt,
	})
}

func (a *API) listGroups(w http.ResponseWriter, r *http.Request) {
	list, err := a.storage.Groups().List()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &GroupList{Groups: list, Count: len(list)})
}

func (a *API) groupInfo(w http.ResponseWriter, r *http.Request) {
	anchor := chi.URLParam(r, AnchorURLParam)
	if anchor == "" {
		ErrMalformedAnchor.Write(w)
		return
	}
	ref, err := a.storage.Groups().Load(anchor)
	if err != nil {
		if errors.Is(err, groups.ErrGroupNotFound) {
			ErrGroupNotFound.Withf("%s", anchor).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &groups.GroupSummary{
		GroupID:     ref.GroupID,
		Anchor:      ref.Anchor,
		Name:        ref.Name,
		Geofence:    ref.Geofence,
		Depth:       ref.Depth,
		MemberCount: ref.Size(),
		Root:        ref.Root(),
		CreatedAt:   ref.CreatedAt,
	})
}
