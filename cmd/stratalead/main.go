// cmd/stratalead/main.go
package main

import (
	"context"

	"github.com/dalemusser/stratalead/internal/app/bootstrap"
	"github.com/dalemusser/waffle/app"
	"go.uber.org/zap"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		logger, _ := zap.NewProduction()
		logger.Fatal("stratalead exited", zap.Error(err))
	}
}
