package main

import (
	"go.uber.org/fx"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/config"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/db"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/logger"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/proto"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/repository"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/service"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/session"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/transport"
)

func main() {
	fx.New(options()).Run()
}

func options() fx.Option {
	return fx.Options(
		fx.Provide(config.NewConfig),
		logger.Module,
		db.Module,
		repository.Module,
		session.Module,
		service.Module,
		transport.Module,
		proto.Module,
		fx.Invoke(func(*transport.HTTPServer, *proto.BoardServer) {}),
	)
}
