package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	JWTSecret            string `env:"JWT_SECRET,required"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	StorageBackend  string `env:"STORAGE_BACKEND" envDefault:"local"`
	StorageDir      string `env:"STORAGE_DIR" envDefault:"storage"`
	TempDir         string `env:"TEMP_DIR" envDefault:"storage/temp"`
	S3Region        string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3AccessKey     string `env:"S3_ACCESS_KEY"`
	S3SecretKey     string `env:"S3_SECRET_KEY"`
	MaxUploadSizeMB int64  `env:"MAX_UPLOAD_SIZE_MB" envDefault:"50"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	CompanyName     string `env:"COMPANY_NAME" envDefault:"CAMPS Santos"`
	DefaultLocation string `env:"DEFAULT_LOCATION" envDefault:"Santos, SP"`
	IDPrefix        string `env:"ID_PREFIX" envDefault:"CAMPS"`

	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@camps.com"`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"admin123"`

	BatchWorkers int `env:"BATCH_WORKERS" envDefault:"3"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
