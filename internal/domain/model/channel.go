package model

import "time"

type Channel struct {
	ID         string
	Name       string
	GuildID    string
	CategoryID string
}

type Message struct {
	ID            string
	AuthorID      string
	AuthorName    string
	AuthorBot     bool
	AuthorRoleIDs []string
	Content       string
	CreatedAt     time.Time
}

func (m Message) AuthorHasRole(roleID string) bool {
	for _, id := range m.AuthorRoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}
