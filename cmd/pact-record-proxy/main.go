package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/form3tech-oss/pact-record-proxy/internal/app/configuration"
	log "github.com/sirupsen/logrus"
)

func main() {
	config, err := configuration.NewFromEnv()
	if err != nil {
		log.Fatal(err)
	}

	addresses := config.Proxies
	if config.ServerAddress.Host != "" {
		addresses = append(addresses, config.ServerAddress)
	}
	if len(addresses) == 0 {
		log.Fatal("no listen address configured, set SERVER_ADDRESS or PROXIES")
	}

	for _, address := range addresses {
		log.Infof("setting up record/replay proxy on %s for %s", address.String(), config.Target.String())
		proxyConfig := config
		proxyConfig.ServerAddress = address
		if err := configuration.ConfigureProxy(proxyConfig); err != nil {
			log.Fatal(err)
		}
	}

	adminPort, err := strconv.Atoi(os.Getenv("ADMIN_PORT"))
	if err != nil {
		adminPort = 8080
	}
	adminServer := configuration.ServeAdminAPI(adminPort)

	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	if err := adminServer.Close(); err != nil {
		log.Error(err)
	}
	configuration.ShutdownAllServers(context.Background())
}
