package main

import (
	"database/sql"
	"os"

	"github.com/samber/do"

	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/status-im/dapp-connector/kvstore"
	"github.com/status-im/dapp-connector/params"
	"github.com/status-im/dapp-connector/services/connector"
	"github.com/status-im/dapp-connector/sqlite"
)

// database closes the sqlite handle when the container shuts down.
type database struct {
	*sql.DB
}

func (d *database) Shutdown() error {
	return d.Close()
}

// connectorService stops the gateways and adapters on shutdown. The
// session record is kept so the next start resumes it.
type connectorService struct {
	*connector.Service
}

func (s *connectorService) Shutdown() error {
	return s.Stop()
}

type rpcServer struct {
	*gethrpc.Server
}

func (s *rpcServer) Shutdown() error {
	s.Stop()
	return nil
}

func NewContainer(config *params.ConnectorConfig) *do.Injector {
	injector := do.New()

	do.ProvideValue(injector, config)

	do.Provide(injector, func(i *do.Injector) (*database, error) {
		config := do.MustInvoke[*params.ConnectorConfig](i)
		if err := os.MkdirAll(config.DataDir, 0700); err != nil {
			return nil, err
		}

		var (
			db  *sql.DB
			err error
		)
		if config.DatabaseKey != "" {
			db, err = sqlite.OpenDBWithKey(config.DatabasePath(), config.DatabaseKey)
		} else {
			db, err = sqlite.OpenUnencryptedDB(config.DatabasePath())
		}
		if err != nil {
			return nil, err
		}
		return &database{DB: db}, nil
	})

	do.Provide(injector, func(i *do.Injector) (kvstore.Store, error) {
		db, err := do.Invoke[*database](i)
		if err != nil {
			return nil, err
		}
		return kvstore.NewSQLStore(db.DB)
	})

	do.Provide(injector, func(i *do.Injector) (*connectorService, error) {
		store, err := do.Invoke[kvstore.Store](i)
		if err != nil {
			return nil, err
		}
		service, err := connector.NewService(do.MustInvoke[*params.ConnectorConfig](i), store)
		if err != nil {
			return nil, err
		}
		return &connectorService{Service: service}, nil
	})

	do.Provide(injector, func(i *do.Injector) (*rpcServer, error) {
		service, err := do.Invoke[*connectorService](i)
		if err != nil {
			return nil, err
		}
		server := gethrpc.NewServer()
		for _, api := range service.APIs() {
			if err := server.RegisterName(api.Namespace, api.Service); err != nil {
				server.Stop()
				return nil, err
			}
		}
		return &rpcServer{Server: server}, nil
	})

	return injector
}
