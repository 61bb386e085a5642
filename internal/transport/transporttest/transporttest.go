// Package transporttest runs the HTTP API on a loopback port for tests of
// code that talks to it over the network.
package transporttest

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/config"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/db/dbtest"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/repository"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/service"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/transport"
)

// New starts a server backed by a fresh in-memory database and returns its
// base URL. The server is shut down when the test ends. mutate adjusts the
// config before the server is built.
func New(t testing.TB, mutate ...func(*config.Config)) string {
	t.Helper()

	cfg := &config.Config{
		BcryptCost:  bcrypt.MinCost,
		CORSOrigins: "*",
		BodyLimit:   1 << 20,
	}
	for _, m := range mutate {
		m(cfg)
	}
	gdb := dbtest.New(t)
	repo := repository.New(gdb)
	l := zap.NewNop().Sugar()
	srv := transport.New(cfg, service.NewAuth(repo, service.NopSessionCache{}, cfg, l), service.NewBoard(repo, l), gdb, l)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = srv.App().Listener(ln)
	}()
	t.Cleanup(func() {
		_ = srv.App().Shutdown()
	})

	return fmt.Sprintf("http://%s", ln.Addr().String())
}
