// Package policy decides what a user may do with a link. A link is visible
// and mutable only for its owner; there is no sharing and no admin override.
package policy

import (
	"github.com/Rogue-Bear-Innovations/linker-back/internal/db"
)

func CanView(user *db.User, link *db.Link) bool {
	return owns(user, link)
}

func CanEdit(user *db.User, link *db.Link) bool {
	return owns(user, link)
}

func CanDelete(user *db.User, link *db.Link) bool {
	return owns(user, link)
}

func owns(user *db.User, link *db.Link) bool {
	if user == nil || link == nil || user.ID == 0 {
		return false
	}
	return link.UserID == user.ID
}
