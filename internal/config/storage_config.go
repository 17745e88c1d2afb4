package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const (
	storageKindKey   = "storage.kind"
	storagePathKey   = "storage.path"
	storageSecretKey = "storage.secret"

	appDirName = "go-moto-client"
)

// Token store kinds.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

type StorageConfig interface {
	GetTokenStoreKind() string
	GetTokenStorePath() string
	GetTokenStoreSecret() string
}

type Storage struct {
	v *viper.Viper
}

var _ StorageConfig = Storage{}

func setStorageDefaults(v *viper.Viper) {
	v.SetDefault(storageKindKey, StorageSQLite)
}

func (s Storage) GetTokenStoreKind() string {
	return s.v.GetString(storageKindKey)
}

// GetTokenStorePath returns the configured path, or a default under the XDG data directory.
func (s Storage) GetTokenStorePath() string {
	if p := s.v.GetString(storagePathKey); p != "" {
		return p
	}
	name := "session.db"
	if s.GetTokenStoreKind() == StorageFile {
		name = "session.bin"
	}
	return filepath.Join(xdg.DataHome, appDirName, name)
}

// GetTokenStoreSecret returns the key material used to encrypt the file token store.
func (s Storage) GetTokenStoreSecret() string {
	return s.v.GetString(storageSecretKey)
}
