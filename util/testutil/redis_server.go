package testutil

import (
	"time"

	"github.com/alicebob/miniredis/v2"
)

type RedisServer struct {
	server *miniredis.Miniredis
}

func NewRedisServer() *RedisServer {
	server, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	return &RedisServer{
		server: server,
	}
}

func (s *RedisServer) Addr() string {
	return s.server.Addr()
}

// FastForward advances the fake server's clock so tests can see TTLs
// expire without sleeping.
func (s *RedisServer) FastForward(d time.Duration) {
	s.server.FastForward(d)
}

func (s *RedisServer) Close() {
	s.server.Close()
}
