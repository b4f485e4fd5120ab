package types

type ConfigManager interface {
	Load() error
	GetConfig() *ServiceConfig
}

type ServiceConfig struct {
	Name         string                    `yaml:"name" json:"name" validate:"required"`
	Version      string                    `yaml:"version" json:"version" validate:"required"`
	Server       *ServerConfig             `yaml:"server" json:"server"`
	Logger       *LoggerConfig             `yaml:"logger" json:"logger"`
	Cache        *CacheConfig              `yaml:"cache" json:"cache"`
	Policies     []*PolicyConfig           `yaml:"policies" json:"policies" validate:"dive"`
	Invalidation []*InvalidationRuleConfig `yaml:"invalidation" json:"invalidation" validate:"dive"`
	Middlewares  *MiddlewaresConfig        `yaml:"middlewares" json:"middlewares"`
	Metrics      *MetricsConfig            `yaml:"metrics" json:"metrics"`
	Health       *HealthConfig             `yaml:"health" json:"health"`
	Maintenance  *MaintenanceConfig        `yaml:"maintenance" json:"maintenance"`
}

type ServerConfig struct {
	HTTP *HTTPConfig `yaml:"http" json:"http"`
}

type HTTPConfig struct {
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     int    `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    int    `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     int    `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout int    `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

type LoggerConfig struct {
	Level  string      `yaml:"level" json:"level"`
	Config interface{} `yaml:"config" json:"config"`
}

type CacheConfig struct {
	Enabled          bool                 `yaml:"enabled" json:"enabled"`
	Namespace        string               `yaml:"namespace" json:"namespace"`
	DefaultTTL       Duration             `yaml:"default_ttl" json:"default_ttl" validate:"min=0"`
	MaxPayloadBytes  int                  `yaml:"max_payload_bytes" json:"max_payload_bytes" validate:"min=0"`
	OperationTimeout Duration             `yaml:"operation_timeout" json:"operation_timeout" validate:"min=0"`
	Primary          *PrimaryStoreConfig  `yaml:"primary" json:"primary"`
	Fallback         *FallbackStoreConfig `yaml:"fallback" json:"fallback"`
}

type PrimaryStoreConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled"`
	Config  interface{} `yaml:"config" json:"config"`
}

type FallbackStoreConfig struct {
	MaxEntries int `yaml:"max_entries" json:"max_entries" validate:"min=0"`
}

type PolicyConfig struct {
	Category string   `yaml:"category" json:"category" validate:"required"`
	TTL      Duration `yaml:"ttl" json:"ttl" validate:"required"`
	Tags     []string `yaml:"tags" json:"tags"`
}

type InvalidationRuleConfig struct {
	Category string   `yaml:"category" json:"category" validate:"required"`
	Patterns []string `yaml:"patterns" json:"patterns" validate:"required,min=1,dive,min=1"`
}

type MiddlewaresConfig struct {
	Enabled  bool                  `yaml:"enabled" json:"enabled"`
	Recovery *MiddlewareItemConfig `yaml:"recovery" json:"recovery"`
	Logging  *MiddlewareItemConfig `yaml:"logging" json:"logging"`
	Cache    *MiddlewareItemConfig `yaml:"cache" json:"cache"`
}

type MiddlewareItemConfig struct {
	Enabled bool                   `yaml:"enabled" json:"enabled"`
	Weight  int                    `yaml:"weight" json:"weight" validate:"min=0"`
	Params  map[string]interface{} `yaml:"params" json:"params"`
}

type MetricsConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled"`
	Config  interface{} `yaml:"config" json:"config"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

type MaintenanceConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	Timezone      string `yaml:"timezone" json:"timezone"`
	SweepSchedule string `yaml:"sweep_schedule" json:"sweep_schedule"`
	StatsSchedule string `yaml:"stats_schedule" json:"stats_schedule"`
}
