package navigator

import (
	"time"

	domfb "github.com/kailas-cloud/circare/internal/domain/feedback"
	"github.com/kailas-cloud/circare/internal/domain/search"
	"github.com/kailas-cloud/circare/internal/domain/weights"
	"github.com/kailas-cloud/circare/internal/usecase/feedback"
	"github.com/kailas-cloud/circare/internal/usecase/lens"
	"github.com/kailas-cloud/circare/internal/usecase/notify"
)

// View is a read-only picture of a session for presentation.
type View struct {
	ID            string                `json:"session_id"`
	Query         string                `json:"query"`
	Phase         search.Phase          `json:"phase"`
	Weights       weights.Weights       `json:"weights"`
	Raw           weights.Raw           `json:"raw"`
	Percent       weights.Percent       `json:"percent"`
	Filters       search.Filters        `json:"filters"`
	Rerank        search.Rerank         `json:"rerank"`
	PlanMode      bool                  `json:"plan_mode"`
	TopK          int                   `json:"top_k"`
	Reference     ReferenceView         `json:"reference"`
	LensIDs       []string              `json:"lens_ids"`
	LensProject   string                `json:"lens_project,omitempty"`
	Project       string                `json:"selected_project,omitempty"`
	PointsStatus  lens.Status           `json:"points_status"`
	Loading       bool                  `json:"loading"`
	Results       *search.Response      `json:"results,omitempty"`
	Votes         domfb.Votes           `json:"votes"`
	FeedbackState feedback.State        `json:"feedback_state"`
	Notifications []notify.Notification `json:"notifications"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// ReferenceView describes the active reference without its bytes.
type ReferenceView struct {
	Kind     search.ReferenceKind `json:"kind,omitempty"`
	Filename string               `json:"filename,omitempty"`
	URL      string               `json:"url,omitempty"`
	ImageID  string               `json:"image_id,omitempty"`
	Endpoint search.Endpoint      `json:"endpoint,omitempty"`
}

// View assembles the current presentation state.
func (s *Session) View() View {
	s.mu.Lock()
	v := View{
		ID:       s.id,
		Phase:    s.phase,
		Filters:  s.filters,
		Rerank:   s.rerank,
		PlanMode: s.planMode,
		TopK:     s.topK,
		Reference: ReferenceView{
			Kind:     s.ref.Kind(),
			Filename: s.ref.Filename(),
			URL:      s.ref.URL(),
			ImageID:  s.ref.ImageID(),
			Endpoint: s.endpoint,
		},
		Loading:   s.loading,
		UpdatedAt: s.updatedAt,
	}
	if s.last != nil {
		r := *s.last
		v.Results = &r
	}
	s.mu.Unlock()

	l := s.lens.Lens()
	v.Query = s.loc.Encode()
	v.Weights = s.weights.Weights()
	v.Raw = s.weights.Raw()
	v.Percent = v.Weights.Percent()
	v.LensIDs = l.ImageIDs()
	v.LensProject = l.ProjectID()
	v.Project = s.lens.SelectedProject()
	v.PointsStatus = s.lens.Status()
	v.Votes = s.feedback.Votes()
	v.FeedbackState = s.feedback.State()
	v.Notifications = s.notes.Active()
	return v
}
