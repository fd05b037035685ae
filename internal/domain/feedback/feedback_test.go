package feedback

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/circare/internal/domain"
)

func TestParseVote(t *testing.T) {
	tests := []struct {
		in   string
		want Vote
	}{
		{"liked", VoteLiked},
		{" Like ", VoteLiked},
		{"dislike", VoteDisliked},
		{"clear", VoteNone},
		{"", VoteNone},
	}
	for _, tc := range tests {
		got, err := ParseVote(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseVote(%q) = %q, %v", tc.in, got, err)
		}
	}
	if _, err := ParseVote("meh"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestVotes_Partition(t *testing.T) {
	vs := Votes{}
	vs.Set("c", VoteLiked)
	vs.Set("a", VoteLiked)
	vs.Set("b", VoteDisliked)
	vs.Set("d", VoteLiked)
	vs.Set("d", VoteNone)

	liked, disliked := vs.Partition()
	if !reflect.DeepEqual(liked, []string{"a", "c"}) {
		t.Errorf("liked = %v", liked)
	}
	if !reflect.DeepEqual(disliked, []string{"b"}) {
		t.Errorf("disliked = %v", disliked)
	}

	liked, disliked = Votes{}.Partition()
	if liked == nil || disliked == nil || len(liked)+len(disliked) != 0 {
		t.Errorf("empty partition = %v, %v", liked, disliked)
	}
	if !(Submission{Liked: liked, Disliked: disliked}).IsEmpty() {
		t.Error("submission without votes should be empty")
	}
}
