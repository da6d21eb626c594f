package core

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownSourceKind = errors.New("unknown source reference type")
	ErrMissingReference  = errors.New("source reference is missing its target")
	ErrInvalidIndex      = errors.New("group position index has to be at least 1")
)

type SourceKind string

const (
	SourceTeam        SourceKind = "team"
	SourceGroupPos    SourceKind = "group.pos"
	SourceMatchWinner SourceKind = "match.winner"
	SourceMatchLoser  SourceKind = "match.loser"
)

// A SourceRef is a symbolic placeholder for a match participant.
//
// It represents one of 4 things:
//   - A fixed team
//   - The team at a 1-based position of a group's standings
//   - The winner of another match
//   - The loser of another match
//
// The reference resolves to a team id once its prerequisite
// (group standing or match result) is known.
type SourceRef struct {
	Kind    SourceKind
	TeamID  string
	GroupID string
	MatchID string
	// 1-based rank position in the group
	Index int
}

func TeamSource(teamID string) *SourceRef {
	return &SourceRef{Kind: SourceTeam, TeamID: teamID}
}

func GroupPosition(groupID string, index int) *SourceRef {
	return &SourceRef{Kind: SourceGroupPos, GroupID: groupID, Index: index}
}

func WinnerOf(matchID string) *SourceRef {
	return &SourceRef{Kind: SourceMatchWinner, MatchID: matchID}
}

func LoserOf(matchID string) *SourceRef {
	return &SourceRef{Kind: SourceMatchLoser, MatchID: matchID}
}

// Returns true when the reference points at the result of another match
func (r *SourceRef) IsMatchResult() bool {
	return r.Kind == SourceMatchWinner || r.Kind == SourceMatchLoser
}

func (r *SourceRef) Validate() error {
	switch r.Kind {
	case SourceTeam:
		if r.TeamID == "" {
			return ErrMissingReference
		}
	case SourceGroupPos:
		if r.GroupID == "" {
			return ErrMissingReference
		}
		if r.Index < 1 {
			return ErrInvalidIndex
		}
	case SourceMatchWinner, SourceMatchLoser:
		if r.MatchID == "" {
			return ErrMissingReference
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSourceKind, r.Kind)
	}
	return nil
}

func (r *SourceRef) Clone() *SourceRef {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func (r *SourceRef) Equal(other *SourceRef) bool {
	if r == nil || other == nil {
		return r == other
	}
	return *r == *other
}

func (r *SourceRef) String() string {
	switch r.Kind {
	case SourceTeam:
		return r.TeamID
	case SourceGroupPos:
		return fmt.Sprintf("#%d of %s", r.Index, r.GroupID)
	case SourceMatchWinner:
		return fmt.Sprintf("Winner of %s", r.MatchID)
	case SourceMatchLoser:
		return fmt.Sprintf("Loser of %s", r.MatchID)
	}
	return string(r.Kind)
}

type sourceRefJSON struct {
	Type    SourceKind `json:"type"`
	TeamID  string     `json:"teamId,omitempty"`
	GroupID string     `json:"groupId,omitempty"`
	MatchID string     `json:"matchId,omitempty"`
	Index   int        `json:"index,omitempty"`

	// Legacy keys
	ID  string `json:"id,omitempty"`
	Pos int    `json:"pos,omitempty"`
}

func (r *SourceRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(sourceRefJSON{
		Type:    r.Kind,
		TeamID:  r.TeamID,
		GroupID: r.GroupID,
		MatchID: r.MatchID,
		Index:   r.Index,
	})
}

func (r *SourceRef) UnmarshalJSON(data []byte) error {
	var raw sourceRefJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ref := SourceRef{
		Kind:    raw.Type,
		TeamID:  raw.TeamID,
		GroupID: raw.GroupID,
		MatchID: raw.MatchID,
		Index:   raw.Index,
	}

	if raw.ID != "" {
		switch ref.Kind {
		case SourceTeam:
			ref.TeamID = cmp.Or(ref.TeamID, raw.ID)
		case SourceGroupPos:
			ref.GroupID = cmp.Or(ref.GroupID, raw.ID)
		case SourceMatchWinner, SourceMatchLoser:
			ref.MatchID = cmp.Or(ref.MatchID, raw.ID)
		}
	}
	if ref.Index == 0 {
		ref.Index = raw.Pos
	}

	*r = ref
	return nil
}

// Decodes a stored source reference. Empty input and the
// JSON null value decode to a nil reference.
func ParseSourceRef(data []byte) (*SourceRef, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	ref := &SourceRef{}
	if err := json.Unmarshal(data, ref); err != nil {
		return nil, fmt.Errorf("decode source reference: %w", err)
	}
	return ref, nil
}

