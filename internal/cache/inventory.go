package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix      = "user:%d"
	PostKeyPrefix      = "post:%d"
	PostsListKeyPrefix = "posts:list:%s"
)

const (
	UserTTL = 5 * time.Minute
	PostTTL = 30 * time.Minute
	ListTTL = 30 * time.Second
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// PostsListKey keys the front-page post listing by sort order.
func PostsListKey(sort string) string {
	return fmt.Sprintf(PostsListKeyPrefix, sort)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}

// InvalidatePostsList drops every cached listing variant. Called on any post
// or vote mutation so list readers never see counters older than ListTTL.
func InvalidatePostsList(ctx context.Context) {
	Invalidate(ctx, PostsListKey("newest"))
	Invalidate(ctx, PostsListKey("oldest"))
}
