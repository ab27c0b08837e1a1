package config

import (
	"sync"
)

var (
	s3Once   sync.Once
	s3Config *S3Config
)

type S3Config struct {
	BucketName string
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
}

func GetS3Config() *S3Config {
	s3Once.Do(func() {
		loadEnv()
		s3Config = &S3Config{
			BucketName: getEnv("AWS_S3_BUCKET_NAME", "corpus-documents"),
			Region:     getEnv("AWS_REGION", "us-east-1"),
			Endpoint:   getEnv("AWS_ENDPOINT", ""),
			AccessKey:  getEnv("AWS_ACCESS_KEY", ""),
			SecretKey:  getEnv("AWS_SECRET_KEY", ""),
		}
	})
	return s3Config
}
