package session

import (
	"time"

	domfb "github.com/kailas-cloud/circare/internal/domain/feedback"
	"github.com/kailas-cloud/circare/internal/domain/latent"
	"github.com/kailas-cloud/circare/internal/domain/search"
	domsess "github.com/kailas-cloud/circare/internal/domain/session"
)

// snapshotRow is the JSON document stored per session.
type snapshotRow struct {
	ID         string            `json:"id"`
	Query      string            `json:"query,omitempty"`
	Filters    search.Filters    `json:"filters"`
	Rerank     search.Rerank     `json:"rerank"`
	PlanMode   bool              `json:"plan_mode,omitempty"`
	TopK       int               `json:"top_k,omitempty"`
	LensIDs    []string          `json:"lens_ids,omitempty"`
	LensSource string            `json:"lens_source,omitempty"`
	LensProj   string            `json:"lens_project,omitempty"`
	Project    string            `json:"project,omitempty"`
	RefURL     string            `json:"ref_url,omitempty"`
	RefImageID string            `json:"ref_image_id,omitempty"`
	QueryID    string            `json:"query_id,omitempty"`
	Votes      map[string]string `json:"votes,omitempty"`
	CreatedAt  int64             `json:"created_at"`
	UpdatedAt  int64             `json:"updated_at"`
}

func toRow(s domsess.Snapshot) snapshotRow {
	row := snapshotRow{
		ID:         s.ID,
		Query:      s.Query,
		Filters:    s.Filters,
		Rerank:     s.Rerank,
		PlanMode:   s.PlanMode,
		TopK:       s.TopK,
		LensIDs:    s.Lens.ImageIDs(),
		LensSource: string(s.Lens.Source()),
		LensProj:   s.Lens.ProjectID(),
		Project:    s.Project,
		RefURL:     s.RefURL,
		RefImageID: s.RefImageID,
		QueryID:    s.QueryID,
		CreatedAt:  s.CreatedAt.UnixMilli(),
		UpdatedAt:  s.UpdatedAt.UnixMilli(),
	}
	if len(s.Votes) > 0 {
		row.Votes = make(map[string]string, len(s.Votes))
		for id, v := range s.Votes {
			row.Votes[id] = string(v)
		}
	}
	return row
}

func fromRow(row snapshotRow) domsess.Snapshot {
	var lens latent.Lens
	switch {
	case row.LensProj != "":
		lens = latent.NewProjectLens(row.LensProj, row.LensIDs)
	case len(row.LensIDs) > 0:
		lens = latent.NewLens(latent.LensSource(row.LensSource), row.LensIDs)
	}

	votes := domfb.Votes{}
	for id, v := range row.Votes {
		if vote, err := domfb.ParseVote(v); err == nil {
			votes.Set(id, vote)
		}
	}

	return domsess.Snapshot{
		ID:         row.ID,
		Query:      row.Query,
		Filters:    row.Filters,
		Rerank:     row.Rerank,
		PlanMode:   row.PlanMode,
		TopK:       row.TopK,
		Lens:       lens,
		Project:    row.Project,
		RefURL:     row.RefURL,
		RefImageID: row.RefImageID,
		QueryID:    row.QueryID,
		Votes:      votes,
		CreatedAt:  time.UnixMilli(row.CreatedAt),
		UpdatedAt:  time.UnixMilli(row.UpdatedAt),
	}
}
