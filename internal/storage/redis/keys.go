package redis

import (
	"fmt"

	"github.com/mcoot/cubegame/internal/model"
)

// keyspace generates Redis keys under a common prefix
type keyspace struct {
	prefix string
}

// connection returns the key for a Connection
func (k keyspace) connection(handle model.ConnectionHandle) string {
	return fmt.Sprintf("%s:connection:%s", k.prefix, handle)
}

// connections returns the SET of all connection handles
func (k keyspace) connections() string {
	return fmt.Sprintf("%s:idx:connections", k.prefix)
}

// awaiting returns the SET of handles with an identity that are not in game
func (k keyspace) awaiting() string {
	return fmt.Sprintf("%s:idx:awaiting", k.prefix)
}

// joinRequest returns the key for a JoinRequest
func (k keyspace) joinRequest(id model.JoinRequestID) string {
	return fmt.Sprintf("%s:join_request:%s", k.prefix, id)
}

// joinRequests returns the SET of request ids in one direction
func (k keyspace) joinRequests(direction model.Direction) string {
	return fmt.Sprintf("%s:idx:join_requests:%s", k.prefix, direction)
}

// player returns the key for a PlayerRecord
func (k keyspace) player(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", k.prefix, id)
}

// players returns the SET of all player ids
func (k keyspace) players() string {
	return fmt.Sprintf("%s:idx:players", k.prefix)
}

// owned returns the SET of players destroyed with the connection
func (k keyspace) owned(handle model.ConnectionHandle) string {
	return fmt.Sprintf("%s:owned:%s", k.prefix, handle)
}
