// Package feedback holds relevance votes on search results and the payloads
// exchanged with the feedback endpoint.
package feedback

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/circare/internal/domain"
	"github.com/kailas-cloud/circare/internal/domain/weights"
)

// Vote is the user's judgement on one result image.
type Vote string

// Votes. VoteNone clears a previous vote.
const (
	VoteNone     Vote = ""
	VoteLiked    Vote = "liked"
	VoteDisliked Vote = "disliked"
)

// ParseVote accepts liked/like, disliked/dislike and clear/none/"".
func ParseVote(s string) (Vote, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "liked", "like", "up":
		return VoteLiked, nil
	case "disliked", "dislike", "down":
		return VoteDisliked, nil
	case "", "none", "clear":
		return VoteNone, nil
	}
	return VoteNone, fmt.Errorf("%w: unknown vote %q", domain.ErrInvalidRequest, s)
}

// Votes maps image ids to votes. Cleared images are absent.
type Votes map[string]Vote

// Set records v for imageID; VoteNone removes the entry.
func (vs Votes) Set(imageID string, v Vote) {
	if v == VoteNone {
		delete(vs, imageID)
		return
	}
	vs[imageID] = v
}

// Partition splits the votes into sorted liked and disliked id lists.
func (vs Votes) Partition() (liked, disliked []string) {
	liked, disliked = []string{}, []string{}
	for id, v := range vs {
		switch v {
		case VoteLiked:
			liked = append(liked, id)
		case VoteDisliked:
			disliked = append(disliked, id)
		}
	}
	sort.Strings(liked)
	sort.Strings(disliked)
	return liked, disliked
}

// Clone copies the map.
func (vs Votes) Clone() Votes {
	out := make(Votes, len(vs))
	for k, v := range vs {
		out[k] = v
	}
	return out
}

// Submission is one batched feedback request.
type Submission struct {
	SessionID     string          `json:"session_id"`
	QueryID       string          `json:"query_id"`
	Liked         []string        `json:"liked"`
	Disliked      []string        `json:"disliked"`
	WeightsBefore weights.Weights `json:"weights_before"`
}

// IsEmpty reports a submission with no votes; such submissions are never sent.
func (s Submission) IsEmpty() bool {
	return len(s.Liked) == 0 && len(s.Disliked) == 0
}

// Result is the server's answer to a submission.
type Result struct {
	SessionID    string            `json:"session_id"`
	QueryID      string            `json:"query_id"`
	WeightsAfter *weights.Weights  `json:"weights_after,omitempty"`
	Nudges       map[string]string `json:"nudges,omitempty"`
}
