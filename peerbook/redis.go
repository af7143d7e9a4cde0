// This file is part of gnunet-go, a GNUnet-implementation in Golang.
// Copyright (C) 2019, 2020 Bernd Fix  >Y<
//
// gnunet-go is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// gnunet-go is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

package peerbook

import (
	"context"
	"strconv"
	"strings"

	redis "github.com/go-redis/redis/v8"
)

// RedisBook is a Book backed by a Redis sorted set, so that several
// co-located processes propose into and draw from the same ranked
// candidate pool.
type RedisBook struct {
	client *redis.Client
	key    string
}

// openRedis parses a "redis+addr+passwd+db" spec and connects,
// mirroring the teacher's KvsRedis connection-spec parsing in
// util.OpenKVStore.
func openRedis(spec string) (*RedisBook, error) {
	parts := strings.Split(spec, "+")
	if len(parts) < 4 || parts[0] != "redis" {
		return nil, ErrBookUnavailable
	}
	db, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, ErrBookUnavailable
	}
	client := redis.NewClient(&redis.Options{
		Addr:     parts[1],
		Password: parts[2],
		DB:       db,
	})
	if client == nil {
		return nil, ErrBookUnavailable
	}
	return &RedisBook{client: client, key: "ringnet:peerbook"}, nil
}

// Propose implements Book.
func (b *RedisBook) Propose(ta string, score float64) error {
	ctx := context.Background()
	cur, err := b.client.ZScore(ctx, b.key, ta).Result()
	if err == nil && cur >= score {
		return nil
	}
	return b.client.ZAdd(ctx, b.key, &redis.Z{Score: score, Member: ta}).Err()
}

// Top implements Book.
func (b *RedisBook) Top(n int) ([]string, error) {
	if n <= 0 {
		n = -1
	} else {
		n--
	}
	return b.client.ZRevRange(context.Background(), b.key, 0, int64(n)).Result()
}

// Forget implements Book.
func (b *RedisBook) Forget(ta string) error {
	return b.client.ZRem(context.Background(), b.key, ta).Err()
}
