package client

import (
	"io"

	"github.com/jrsteele09/go-moto-client/internal/config"
	"github.com/jrsteele09/go-moto-client/session"
	"github.com/jrsteele09/go-moto-client/session/filerepo"
	"github.com/jrsteele09/go-moto-client/session/repofake"
	"github.com/jrsteele09/go-moto-client/session/sqlrepo"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// openRepo opens the configured token store. The closer is nil for stores without resources.
func openRepo(cfg config.StorageConfig, fs afero.Fs) (session.Repo, io.Closer, error) {
	switch kind := cfg.GetTokenStoreKind(); kind {
	case config.StorageMemory:
		return repofake.New(), nil, nil
	case config.StorageFile:
		repo, err := filerepo.New(fs, cfg.GetTokenStorePath(), []byte(cfg.GetTokenStoreSecret()))
		if err != nil {
			return nil, nil, errors.Wrap(err, "[client.openRepo] file store")
		}
		return repo, nil, nil
	case config.StorageSQLite:
		repo, err := sqlrepo.Open(cfg.GetTokenStorePath())
		if err != nil {
			return nil, nil, errors.Wrap(err, "[client.openRepo] sqlite store")
		}
		return repo, repo, nil
	default:
		return nil, nil, errors.Errorf("[client.openRepo] unknown storage kind %q", kind)
	}
}
