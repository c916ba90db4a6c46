package domain

type UserID = uint
type MessageID = uint

type Role string

const (
	RoleFreelancer Role = "freelancer"
	RoleClient     Role = "client"
	RoleBoth       Role = "both"
)

func (r Role) Valid() bool {
	switch r {
	case RoleFreelancer, RoleClient, RoleBoth:
		return true
	}
	return false
}
