package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides
const EnvPrefix = "GREENTWIN"

// Loader resolves configuration from defaults, file, env, and bound flags.
type Loader struct {
	configPath string
	viper      *viper.Viper
}

// NewLoader creates a loader for an optional YAML file path.
func NewLoader(configPath string) *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	l := &Loader{configPath: configPath, viper: v}
	l.setDefaults()
	return l
}

// Viper exposes the underlying instance so commands can bind flags.
func (l *Loader) Viper() *viper.Viper {
	return l.viper
}

// Load reads all sources and validates the result.
func (l *Loader) Load() (*Config, error) {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	if l.configPath != "" {
		l.viper.SetConfigFile(l.configPath)
		l.viper.SetConfigType("yaml")
		if err := l.viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	cfg := l.unmarshalConfig()

	if errs := cfg.Validate(); len(errs) > 0 {
		var msgs []string
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		return nil, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
	}

	return cfg, nil
}

// setDefaults registers every key so env overrides resolve through AutomaticEnv.
func (l *Loader) setDefaults() {
	d := DefaultConfig()
	v := l.viper

	v.SetDefault("source.type", d.Source.Type)
	v.SetDefault("source.mqtt.broker", d.Source.MQTT.Broker)
	v.SetDefault("source.mqtt.topic", d.Source.MQTT.Topic)
	v.SetDefault("source.mqtt.client_id", d.Source.MQTT.ClientID)
	v.SetDefault("source.mqtt.qos", d.Source.MQTT.QoS)
	v.SetDefault("source.mqtt.username", d.Source.MQTT.Username)
	v.SetDefault("source.mqtt.password", d.Source.MQTT.Password)
	v.SetDefault("source.amqp.url", d.Source.AMQP.URL)
	v.SetDefault("source.amqp.exchange", d.Source.AMQP.Exchange)
	v.SetDefault("source.amqp.routing_key", d.Source.AMQP.RoutingKey)
	v.SetDefault("source.amqp.queue", d.Source.AMQP.Queue)
	v.SetDefault("source.file.path", d.Source.File.Path)

	v.SetDefault("sink.type", d.Sink.Type)
	v.SetDefault("sink.queue_size", d.Sink.QueueSize)
	v.SetDefault("sink.write_timeout", d.Sink.WriteTimeout)
	v.SetDefault("sink.influxdb.url", d.Sink.InfluxDB.URL)
	v.SetDefault("sink.influxdb.token", d.Sink.InfluxDB.Token)
	v.SetDefault("sink.influxdb.org", d.Sink.InfluxDB.Org)
	v.SetDefault("sink.influxdb.bucket", d.Sink.InfluxDB.Bucket)
	v.SetDefault("sink.postgres.dsn", d.Sink.Postgres.DSN)
	v.SetDefault("sink.sqlite.path", d.Sink.SQLite.Path)

	v.SetDefault("model.store", d.Model.Store)
	v.SetDefault("model.path", d.Model.Path)
	v.SetDefault("model.training_size", d.Model.TrainingSize)
	v.SetDefault("model.contamination", d.Model.Contamination)
	v.SetDefault("model.seed", d.Model.Seed)
	v.SetDefault("model.trees", d.Model.Trees)
	v.SetDefault("model.features", d.Model.Features)
	v.SetDefault("model.save_timeout", d.Model.SaveTimeout)
	v.SetDefault("model.s3.endpoint", d.Model.S3.Endpoint)
	v.SetDefault("model.s3.access_key", d.Model.S3.AccessKey)
	v.SetDefault("model.s3.secret_key", d.Model.S3.SecretKey)
	v.SetDefault("model.s3.bucket", d.Model.S3.Bucket)
	v.SetDefault("model.s3.use_ssl", d.Model.S3.UseSSL)
	v.SetDefault("model.s3.prefix", d.Model.S3.Prefix)
	v.SetDefault("model.redis.addr", d.Model.Redis.Addr)
	v.SetDefault("model.redis.password", d.Model.Redis.Password)
	v.SetDefault("model.redis.db", d.Model.Redis.DB)
	v.SetDefault("model.redis.key_prefix", d.Model.Redis.KeyPrefix)

	v.SetDefault("derive.emission_factor", d.Derive.EmissionFactor)
	v.SetDefault("derive.unit_price", d.Derive.UnitPrice)

	v.SetDefault("pipeline.max_machines", d.Pipeline.MaxMachines)
	v.SetDefault("pipeline.machine_queue", d.Pipeline.MachineQueue)

	v.SetDefault("server.enabled", d.Server.Enabled)
	v.SetDefault("server.addr", d.Server.Addr)

	v.SetDefault("report.schedule", d.Report.Schedule)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial_delay", d.Retry.InitialDelay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("retry.multiplier", d.Retry.BackoffMultiplier)
	v.SetDefault("retry.jitter", d.Retry.Jitter)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)
	v.SetDefault("logging.compress", d.Logging.Compress)
}

// unmarshalConfig copies viper values into a Config struct.
func (l *Loader) unmarshalConfig() *Config {
	v := l.viper
	cfg := &Config{}

	// Source
	cfg.Source.Type = strings.ToLower(v.GetString("source.type"))
	cfg.Source.MQTT.Broker = v.GetString("source.mqtt.broker")
	cfg.Source.MQTT.Topic = v.GetString("source.mqtt.topic")
	cfg.Source.MQTT.ClientID = v.GetString("source.mqtt.client_id")
	cfg.Source.MQTT.QoS = v.GetInt("source.mqtt.qos")
	cfg.Source.MQTT.Username = v.GetString("source.mqtt.username")
	cfg.Source.MQTT.Password = v.GetString("source.mqtt.password")
	cfg.Source.AMQP.URL = v.GetString("source.amqp.url")
	cfg.Source.AMQP.Exchange = v.GetString("source.amqp.exchange")
	cfg.Source.AMQP.RoutingKey = v.GetString("source.amqp.routing_key")
	cfg.Source.AMQP.Queue = v.GetString("source.amqp.queue")
	cfg.Source.File.Path = v.GetString("source.file.path")

	// Sink
	cfg.Sink.Type = strings.ToLower(v.GetString("sink.type"))
	cfg.Sink.QueueSize = v.GetInt("sink.queue_size")
	cfg.Sink.WriteTimeout = v.GetDuration("sink.write_timeout")
	cfg.Sink.InfluxDB.URL = v.GetString("sink.influxdb.url")
	cfg.Sink.InfluxDB.Token = v.GetString("sink.influxdb.token")
	cfg.Sink.InfluxDB.Org = v.GetString("sink.influxdb.org")
	cfg.Sink.InfluxDB.Bucket = v.GetString("sink.influxdb.bucket")
	cfg.Sink.Postgres.DSN = v.GetString("sink.postgres.dsn")
	cfg.Sink.SQLite.Path = v.GetString("sink.sqlite.path")

	// Model
	cfg.Model.Store = strings.ToLower(v.GetString("model.store"))
	cfg.Model.Path = v.GetString("model.path")
	cfg.Model.TrainingSize = v.GetInt("model.training_size")
	cfg.Model.Contamination = v.GetFloat64("model.contamination")
	cfg.Model.Seed = v.GetInt64("model.seed")
	cfg.Model.Trees = v.GetInt("model.trees")
	cfg.Model.Features = v.GetStringSlice("model.features")
	cfg.Model.SaveTimeout = v.GetDuration("model.save_timeout")
	cfg.Model.S3.Endpoint = v.GetString("model.s3.endpoint")
	cfg.Model.S3.AccessKey = v.GetString("model.s3.access_key")
	cfg.Model.S3.SecretKey = v.GetString("model.s3.secret_key")
	cfg.Model.S3.Bucket = v.GetString("model.s3.bucket")
	cfg.Model.S3.UseSSL = v.GetBool("model.s3.use_ssl")
	cfg.Model.S3.Prefix = v.GetString("model.s3.prefix")
	cfg.Model.Redis.Addr = v.GetString("model.redis.addr")
	cfg.Model.Redis.Password = v.GetString("model.redis.password")
	cfg.Model.Redis.DB = v.GetInt("model.redis.db")
	cfg.Model.Redis.KeyPrefix = v.GetString("model.redis.key_prefix")

	cfg.Derive.EmissionFactor = v.GetFloat64("derive.emission_factor")
	cfg.Derive.UnitPrice = v.GetFloat64("derive.unit_price")

	cfg.Pipeline.MaxMachines = v.GetInt("pipeline.max_machines")
	cfg.Pipeline.MachineQueue = v.GetInt("pipeline.machine_queue")

	cfg.Server.Enabled = v.GetBool("server.enabled")
	cfg.Server.Addr = v.GetString("server.addr")

	cfg.Report.Schedule = v.GetString("report.schedule")

	cfg.Retry.MaxAttempts = v.GetInt("retry.max_attempts")
	cfg.Retry.InitialDelay = v.GetDuration("retry.initial_delay")
	cfg.Retry.MaxDelay = v.GetDuration("retry.max_delay")
	cfg.Retry.BackoffMultiplier = v.GetFloat64("retry.multiplier")
	cfg.Retry.Jitter = v.GetBool("retry.jitter")

	cfg.Logging.Level = strings.ToLower(v.GetString("logging.level"))
	cfg.Logging.Format = strings.ToLower(v.GetString("logging.format"))
	cfg.Logging.File = v.GetString("logging.file")
	cfg.Logging.MaxSize = v.GetInt("logging.max_size")
	cfg.Logging.MaxBackups = v.GetInt("logging.max_backups")
	cfg.Logging.MaxAge = v.GetInt("logging.max_age")
	cfg.Logging.Compress = v.GetBool("logging.compress")

	return cfg
}
