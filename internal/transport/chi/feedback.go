package chi

import (
	"net/http"

	domfb "github.com/kailas-cloud/circare/internal/domain/feedback"
	"github.com/kailas-cloud/circare/internal/usecase/navigator"
)

// Vote handles PUT /sessions/{session_id}/votes/{image_id}. Votes are
// batched; the submission goes out once the debounce delay passes quietly.
func (s *Server) Vote(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var imageID string
	if err := pathParam(r, "image_id", &imageID); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	var req VoteRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	v, err := domfb.ParseVote(req.Vote)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if err := sess.Vote(imageID, v); err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.persist(r.Context(), sess)
	writeJSON(w, http.StatusOK, votesResponse(sess))
}

// FlushVotes handles POST /sessions/{session_id}/votes/flush: submit the
// pending batch now instead of waiting for the debounce.
func (s *Server) FlushVotes(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Feedback().Flush()
	writeJSON(w, http.StatusOK, votesResponse(sess))
}

func votesResponse(sess *navigator.Session) VotesResponse {
	fb := sess.Feedback()
	votes := fb.Votes()
	if votes == nil {
		votes = domfb.Votes{}
	}
	return VotesResponse{QueryID: fb.QueryID(), State: fb.State(), Votes: votes}
}
