package storage

import (
	"cmp"
	"slices"

	"github.com/mcoot/cubegame/internal/model"
)

// Backends return lists in these orders so passes are deterministic.

// SortConnections orders by network id, then handle
func SortConnections(conns []*model.Connection) {
	slices.SortFunc(conns, func(a, b *model.Connection) int {
		return cmp.Or(cmp.Compare(a.NetworkID, b.NetworkID), cmp.Compare(a.Handle, b.Handle))
	})
}

// SortJoinRequests orders by creation time, then id
func SortJoinRequests(reqs []*model.JoinRequest) {
	slices.SortFunc(reqs, func(a, b *model.JoinRequest) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
}

// SortPlayers orders by owner, then id
func SortPlayers(players []*model.PlayerRecord) {
	slices.SortFunc(players, func(a, b *model.PlayerRecord) int {
		return cmp.Or(cmp.Compare(a.Owner, b.Owner), cmp.Compare(a.ID, b.ID))
	})
}
