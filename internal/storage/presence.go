package storage

import (
	"context"
	"fmt"
	"sort"

	"crmchat/backend/internal/config"
)

// SetOnline adds identity to the Redis online set. It is a no-op without Redis.
func (s *Service) SetOnline(ctx context.Context, identity string) error {
	if s.Redis == nil {
		return nil
	}
	if err := s.Redis.SAdd(ctx, config.OnlineSetKey, identity).Err(); err != nil {
		return fmt.Errorf("mark %s online: %w", identity, err)
	}
	return nil
}

// SetOffline removes identity from the Redis online set. It is a no-op without Redis.
func (s *Service) SetOffline(ctx context.Context, identity string) error {
	if s.Redis == nil {
		return nil
	}
	if err := s.Redis.SRem(ctx, config.OnlineSetKey, identity).Err(); err != nil {
		return fmt.Errorf("mark %s offline: %w", identity, err)
	}
	return nil
}

// OnlineUsers returns the sorted members of the online set, or ErrNoRedis.
func (s *Service) OnlineUsers(ctx context.Context) ([]string, error) {
	if s.Redis == nil {
		return nil, ErrNoRedis
	}
	members, err := s.Redis.SMembers(ctx, config.OnlineSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list online users: %w", err)
	}
	sort.Strings(members)
	return members, nil
}
