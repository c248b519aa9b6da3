// cmd/fulfillment-service/main.go
package main

import (
	"flag"
	"net/http"

	"nexus-fulfillment/internal/pkg/auth"
	"nexus-fulfillment/internal/pkg/bootstrap"
	"nexus-fulfillment/internal/pkg/logger"
)

// main 函数是应用的"组装根"：读取配置、组装依赖，然后交给 bootstrap 管理生命周期。
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path of the YAML config file")
	seedPath := flag.String("seed", "", "optional YAML file with products, coupons and balances to load at startup")
	flag.Parse()

	err := bootstrap.StartService(bootstrap.AppInfo{
		ConfigPath: *configPath,
		RegisterHandlers: func(app bootstrap.AppCtx) error {
			return wire(app, *seedPath)
		},
		Middleware: func(next http.Handler) http.Handler {
			return auth.NewVerifier(bootstrap.GetCurrentConfig().Auth.JWTSecret).Middleware(next)
		},
	})
	if err != nil {
		logger.L().Fatal().Err(err).Msgf("%+v", err)
	}
}
