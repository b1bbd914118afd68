package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/zkpresence/zkpresence/processor"
	"github.com/zkpresence/zkpresence/storage"
	"github.com/zkpresence/zkpresence/types"
)

func (a *API) submitProof(w http.ResponseWriter, r *http.Request) {
	var req SubmitProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		submissionsCounter.WithLabelValues("malformed_body").Inc()
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	receipt, err := a.processor.Submit(r.Context(), &processor.Submission{
		IdentityCommitment: req.IdentityCommitment,
		Location:           req.Location,
		Timestamp:          req.Timestamp,
		ProofBlob:          req.Proof,
		Nullifier:          req.Nullifier,
		MerkleRoot:         req.MerkleRoot,
		Signal:             req.Signal,
		Demographics:       req.Demographics,
	})
	submissionsCounter.WithLabelValues(processor.Kind(err)).Inc()
	if err != nil {
		pipelineError(err).Write(w)
		return
	}
	httpWriteJSON(w, &SubmitProofResponse{
		ProofID:     receipt.Record.ID(),
		Verified:    true,
		GroupID:     receipt.GroupID,
		MerkleRoot:  receipt.Root,
		MemberAdded: receipt.MemberAdded,
	})
}

func (a *API) listProofs(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	recs, err := a.storage.ListProofs(limit)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, proofList(recs))
}

func (a *API) proofsByAnchor(w http.ResponseWriter, r *http.Request) {
	anchor := chi.URLParam(r, AnchorURLParam)
	if anchor == "" {
		ErrMalformedAnchor.Write(w)
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	exists, err := a.storage.Groups().Exists(anchor)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if !exists {
		ErrGroupNotFound.Withf("%s", anchor).Write(w)
		return
	}
	recs, err := a.storage.ProofsByAnchor(anchor, limit)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, proofList(recs))
}

// parseLimit reads the optional ?limit= query parameter, capped at
// types.MaxProofListLimit. Zero means the default cap.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return types.MaxProofListLimit, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 0 {
		ErrMalformedBody.Withf("invalid limit %q", limitStr).Write(w)
		return 0, false
	}
	if limit == 0 || limit > types.MaxProofListLimit {
		limit = types.MaxProofListLimit
	}
	return limit, true
}

func proofList(recs []*storage.ProofRecord) *ProofList {
	out := make([]*ProofInfo, len(recs))
	for i, rec := range recs {
		out[i] = &ProofInfo{
			ProofID:            rec.ID(),
			IdentityCommitment: rec.IdentityCommitment,
			Location:           rec.Location,
			Timestamp:          rec.Timestamp,
			Nullifier:          rec.Nullifier,
			MerkleRoot:         rec.MerkleRoot,
			GroupAnchor:        rec.GroupAnchor,
			Demographics:       rec.Demographics,
			Verified:           rec.Verified,
			CreatedAt:          rec.CreatedAt,
		}
	}
	return &ProofList{Proofs: out, Count: len(out)}
}

// pipelineError maps a pipeline rejection to its transport error.
func pipelineError(err error) Error {
	switch {
	case errors.Is(err, processor.ErrInvalidRequest):
		return ErrInvalidRequest.WithErr(err)
	case errors.Is(err, processor.ErrDuplicateNullifier):
		return ErrDuplicateNullifier
	case errors.Is(err, processor.ErrGroupNotFound):
		return ErrGroupNotFound.WithErr(err)
	case errors.Is(err, processor.ErrInvalidProof):
		return ErrInvalidProof.WithErr(err)
	case errors.Is(err, processor.ErrOutsideGeofence):
		return ErrOutsideGeofence.WithErr(err)
	case errors.Is(err, processor.ErrGroupFull):
		return ErrGroupFull.WithErr(err)
	default:
		return ErrGenericInternalServerError.WithErr(err)
	}
}
