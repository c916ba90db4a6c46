package events

const (
	TypeOnlineUsers = "online_users"
	TypePresence    = "presence"

	StatusOnline  = "online"
	StatusOffline = "offline"
)

// OnlineUsers is the snapshot a new connection receives first.
type OnlineUsers struct {
	Type    string `json:"type"`
	UserIDs []uint `json:"user_ids"`
}

func (e OnlineUsers) EventType() string { return e.Type }

func OnlineUsersEvent(ids []uint) OnlineUsers {
	if ids == nil {
		ids = []uint{}
	}
	return OnlineUsers{Type: TypeOnlineUsers, UserIDs: ids}
}

type Presence struct {
	Type   string `json:"type"`
	UserID uint   `json:"user_id"`
	Status string `json:"status"`
}

func (e Presence) EventType() string { return e.Type }

func PresenceEvent(userID uint, online bool) Presence {
	status := StatusOffline
	if online {
		status = StatusOnline
	}
	return Presence{Type: TypePresence, UserID: userID, Status: status}
}
