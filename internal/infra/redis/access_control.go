package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// AccessControl reads conversation admins from Redis sets:
//
//	SADD conversation:{id}:admins {userID}
//	SADD quiz:admins {userID}   (admins of every conversation)
type AccessControl struct {
	client *redis.Client
}

func NewAccessControl(client *redis.Client) *AccessControl {
	return &AccessControl{client: client}
}

func (a *AccessControl) IsAdmin(ctx context.Context, conversationID, userID string) (bool, error) {
	pipe := a.client.Pipeline()
	global := pipe.SIsMember(ctx, globalAdminsKey, userID)
	local := pipe.SIsMember(ctx, adminsKey(conversationID), userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return global.Val() || local.Val(), nil
}

// Grant adds userID to the conversation's admin set.
func (a *AccessControl) Grant(ctx context.Context, conversationID, userID string) error {
	return a.client.SAdd(ctx, adminsKey(conversationID), userID).Err()
}

// GrantGlobal makes userID an admin of every conversation.
func (a *AccessControl) GrantGlobal(ctx context.Context, userID string) error {
	return a.client.SAdd(ctx, globalAdminsKey, userID).Err()
}

const globalAdminsKey = "quiz:admins"

func adminsKey(conversationID string) string {
	return "conversation:" + conversationID + ":admins"
}
