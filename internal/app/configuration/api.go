package configuration

import (
	"context"
	"fmt"
	"net/http"

	"github.com/form3tech-oss/pact-record-proxy/internal/app/httpresponse"
	"github.com/form3tech-oss/pact-record-proxy/internal/app/pactrecord"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

func ServeAdminAPI(port int) *echo.Echo {
	adminServer := echo.New()
	adminServer.HideBanner = true

	adminServer.DELETE("/proxies", deleteProxiesHandler)
	adminServer.POST("/proxies", postProxiesHandler)

	go func() {
		address := fmt.Sprintf(":%d", port)
		if err := adminServer.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	return adminServer
}

func deleteProxiesHandler(c echo.Context) error {
	log.Infof("closing all proxies")
	ShutdownAllServers(context.Background())
	return c.NoContent(http.StatusNoContent)
}

func postProxiesHandler(c echo.Context) error {
	proxyConfig := pactrecord.Config{}
	err := c.Bind(&proxyConfig)
	if err != nil {
		return c.JSON(
			http.StatusBadRequest,
			httpresponse.Errorf("unable to parse proxy configuration from data. %s", err.Error()),
		)
	}

	log.Infof("setting up proxy from %s to %s", proxyConfig.ServerAddress.String(), proxyConfig.Target.String())

	err = ConfigureProxy(proxyConfig)
	if err != nil {
		return c.JSON(
			http.StatusInternalServerError,
			httpresponse.Errorf("unable to create proxy from configuration. %s", err.Error()),
		)
	}

	return c.NoContent(http.StatusNoContent)
}
