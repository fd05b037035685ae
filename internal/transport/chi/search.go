package chi

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/circare/internal/domain/search"
	logpkg "github.com/kailas-cloud/circare/internal/logger"
	"github.com/kailas-cloud/circare/internal/usecase/navigator"
)

// SearchFile handles POST /sessions/{session_id}/search/file with a
// multipart "file" part. The study phase picks the upstream endpoint.
func (s *Server) SearchFile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid multipart body: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "file part is required")
		return
	}
	defer f.Close()
	if hdr.Size > s.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "upload too large")
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "read upload: "+err.Error())
		return
	}

	resp, err := sess.SearchFile(r.Context(), hdr.Filename, data)
	s.searchDone(w, r, sess, resp, err)
}

// SearchURL handles POST /sessions/{session_id}/search/url.
func (s *Server) SearchURL(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req SearchURLRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := sess.SearchURL(r.Context(), req.URL)
	s.searchDone(w, r, sess, resp, err)
}

// SearchImage handles POST /sessions/{session_id}/search/image.
func (s *Server) SearchImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req SearchImageRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := sess.SearchImage(r.Context(), req.ImageID)
	s.searchDone(w, r, sess, resp, err)
}

// RefreshSearch handles POST /sessions/{session_id}/search/refresh.
func (s *Server) RefreshSearch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	resp, err := sess.Refresh(r.Context())
	s.searchDone(w, r, sess, resp, err)
}

// GetResults handles GET /sessions/{session_id}/results.
func (s *Server) GetResults(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	out := ResultsResponse{Loading: sess.Loading()}
	if resp, ok := sess.Results(); ok {
		out.Response = &resp
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) searchDone(
	w http.ResponseWriter, r *http.Request, sess *navigator.Session, resp search.Response, err error,
) {
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	logpkg.FromContext(r.Context()).Debug("Search served",
		zap.String("session_id", sess.ID()),
		zap.String("query_id", resp.QueryID),
		zap.Int("results", len(resp.Items)),
	)
	s.persist(r.Context(), sess)
	writeJSON(w, http.StatusOK, resp)
}
