package archive

import "time"

// Config holds S3 archive settings loaded from the environment
type Config struct {
	Enabled        bool          `env:"QUEUE_ARCHIVE_ENABLED" envDefault:"false"`
	Bucket         string        `env:"QUEUE_ARCHIVE_BUCKET"`
	Region         string        `env:"QUEUE_ARCHIVE_REGION" envDefault:"us-east-1"`
	Prefix         string        `env:"QUEUE_ARCHIVE_PREFIX" envDefault:"failed-jobs"`
	AccessKeyID    string        `env:"QUEUE_ARCHIVE_ACCESS_KEY_ID"`
	SecretKey      string        `env:"QUEUE_ARCHIVE_SECRET_KEY"`
	Endpoint       string        `env:"QUEUE_ARCHIVE_ENDPOINT"`
	ForcePathStyle bool          `env:"QUEUE_ARCHIVE_FORCE_PATH_STYLE" envDefault:"false"`
	UploadTimeout  time.Duration `env:"QUEUE_ARCHIVE_UPLOAD_TIMEOUT" envDefault:"30s"`
}

// S3Config converts the environment settings to the archiver configuration
func (c Config) S3Config() S3Config {
	return S3Config{
		Bucket:         c.Bucket,
		Region:         c.Region,
		Prefix:         c.Prefix,
		AccessKeyID:    c.AccessKeyID,
		SecretKey:      c.SecretKey,
		Endpoint:       c.Endpoint,
		ForcePathStyle: c.ForcePathStyle,
	}
}
