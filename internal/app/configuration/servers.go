package configuration

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"

	"github.com/form3tech-oss/pact-record-proxy/internal/app/pactrecord"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

var (
	servers     sync.Map
	controllers sync.Map
)

// StartServer brings up one record/replay proxy on the given address. Only
// one server may listen per address.
func StartServer(url *url.URL, config *pactrecord.Config) error {
	if _, loaded := servers.Load(url.Host); loaded {
		return fmt.Errorf("proxy already running at %s", url.String())
	}

	server, controller, err := newServer(url, config)
	if err != nil {
		return err
	}
	servers.Store(url.Host, server)
	controllers.Store(url.Host, controller)

	go func() {
		var err error
		if config.TLSCertFile != "" && config.TLSKeyFile != "" {
			err = server.ListenAndServeTLS(config.TLSCertFile, config.TLSKeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Error(err)
		}
	}()
	return nil
}

// ShutdownAllServers stops every proxy server and drains pending pact
// writes.
func ShutdownAllServers(ctx context.Context) {
	servers.Range(func(key, _ interface{}) bool {
		server, loaded := servers.LoadAndDelete(key)
		if loaded {
			if err := server.(*http.Server).Shutdown(ctx); err != nil {
				log.Error(err)
			}
		}
		return true
	})

	controllers.Range(func(key, value interface{}) bool {
		controllers.Delete(key)
		if adapter, ok := value.(*pactrecord.Controller).Adapter().(*pactrecord.FileAdapter); ok {
			adapter.Close()
		}
		return true
	})
}

func newServer(url *url.URL, config *pactrecord.Config) (*http.Server, *pactrecord.Controller, error) {
	e := echo.New()
	e.HideBanner = true

	controller, err := pactrecord.SetupRoutes(e, config)
	if err != nil {
		return nil, nil, err
	}

	s := &http.Server{
		Addr:    url.Host,
		Handler: e,
	}

	if config.TLSCAFile != "" {
		if config.TLSCertFile == "" || config.TLSKeyFile == "" {
			log.Fatalf("cannot run in mTLS mode without TLS cert and key")
		}

		caCertFile, err := os.ReadFile(config.TLSCAFile)
		if err != nil {
			log.Fatalf("error reading CA certificate: %v", err)
		}
		certPool := x509.NewCertPool()
		certPool.AppendCertsFromPEM(caCertFile)
		s.TLSConfig = &tls.Config{
			ClientAuth: tls.RequireAndVerifyClientCert,
			ClientCAs:  certPool,
			MinVersion: tls.VersionTLS12,
		}
	}

	return s, controller, nil
}
