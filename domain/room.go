package domain

type RoomID string

// Room is the view of a chat room returned to clients. Creator is always
// resolved; Members holds user ids; Messages is populated only on join and
// in the subscription snapshot, never in list views.
type Room struct {
	ID       RoomID    `json:"id"`
	Caption  string    `json:"caption"`
	Creator  User      `json:"creator"`
	Avatar   string    `json:"avatar,omitempty"`
	Members  []string  `json:"members,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// Summary strips message payloads and membership for list views.
func (r Room) Summary() Room {
	r.Messages = nil
	r.Members = nil
	return r
}
