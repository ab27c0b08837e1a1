package config

import (
	"sync"
)

var (
	storageOnce   sync.Once
	storageConfig *StorageConfig
)

type StorageConfig struct {
	// Type selects the object-storage backend: "minio" or "s3".
	Type string
}

func GetStorageConfig() *StorageConfig {
	storageOnce.Do(func() {
		loadEnv()
		storageConfig = &StorageConfig{
			Type: getEnv("STORAGE_TYPE", "minio"),
		}
	})
	return storageConfig
}
