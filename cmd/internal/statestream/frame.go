package statestream

import (
	"time"

	"keel/cmd/identity"
	"keel/cmd/internal/auth/state"
)

// Frame is the wire shape of one state snapshot.
type Frame struct {
	Type      string          `json:"type"`
	Current   *FrameIdentity  `json:"current"`
	Loading   bool            `json:"loading"`
	Phase     string          `json:"phase"`
	Directory []FrameIdentity `json:"directory,omitempty"`
	TS        time.Time       `json:"ts"`
}

type FrameIdentity struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	Name     string  `json:"name"`
	Role     string  `json:"role"`
	Username *string `json:"username,omitempty"`
	TeamID   *string `json:"team_id,omitempty"`
}

const frameTypeState = "identity.state"

func newFrame(snap state.Snapshot) Frame {
	f := Frame{
		Type:    frameTypeState,
		Loading: snap.Loading,
		Phase:   snap.Phase.String(),
		TS:      time.Now().UTC(),
	}
	if snap.Current != nil {
		w := wireIdentity(*snap.Current)
		f.Current = &w
	}
	if len(snap.Directory) > 0 {
		f.Directory = make([]FrameIdentity, 0, len(snap.Directory))
		for _, id := range snap.Directory {
			f.Directory = append(f.Directory, wireIdentity(id))
		}
	}
	return f
}

func wireIdentity(id identity.Identity) FrameIdentity {
	return FrameIdentity{
		ID:       id.ID,
		Email:    id.Email,
		Name:     id.Name,
		Role:     string(id.Role),
		Username: id.Username,
		TeamID:   id.TeamID,
	}
}
