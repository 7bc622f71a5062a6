package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"sigs.k8s.io/yaml"
)

const (
	// DefaultConfigFile is the default path to the balancer's configuration file
	DefaultConfigFile = "/etc/vmfs-balancer/config.yaml"
	// DefaultInterval is the default pause between two balancing cycles
	DefaultInterval = 10 * time.Minute
	// DefaultMinUsage is the usage in percent a move target must stay below
	DefaultMinUsage = 60
	// DefaultMaxUsage is the usage in percent a move source must be above
	DefaultMaxUsage = 0
	// DefaultMinFreeSpaceGiB is the free space a move target has to retain
	DefaultMinFreeSpaceGiB = 2500
	// DefaultAutopilotRange is the corridor in percent around the average usage
	DefaultAutopilotRange = 5
	// DefaultMaxMoveVMs is the cap on proposed moves per balancing pass
	DefaultMaxMoveVMs = 5
	// DefaultPrintMax is the number of largest shadow vms reported per datastore
	DefaultPrintMax = 10
	// DefaultVolumeMaxSizeGiB bounds the size of a single moved shadow vm
	DefaultVolumeMaxSizeGiB = 2500
	// DefaultServerPort is the port of the health/metrics endpoint
	DefaultServerPort = 8080
)

// StorageMedium selects which class of datastores gets balanced. The two
// classes are backed by disjoint pools and are never balanced against each
// other.
type StorageMedium string

const (
	MediumSSD StorageMedium = "ssd"
	MediumHDD StorageMedium = "hdd"
)

// Duration wraps time.Duration so config files can use values like "10m".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration: %v", v)
	}
	return nil
}

type Config struct {
	// VCenter is the virtualization management plane to read vms and datastores from
	VCenter VCenter `json:"vcenter"`
	// Netapp holds the credentials shared by all storage controllers of the region
	Netapp Netapp `json:"netapp"`
	// Region is the deployment region, used to derive storage controller hostnames
	Region string `json:"region"`

	// DryRun suppresses the emission of migration commands
	DryRun bool `json:"dry-run,omitempty" envconfig:"VMFS_BALANCER_DRY_RUN"`
	// Interval is the pause between two balancing cycles
	Interval Duration `json:"interval,omitempty"`

	// MinUsage is the usage in percent a move target must stay below
	MinUsage float64 `json:"min-usage,omitempty"`
	// MaxUsage is the usage in percent a move source must be above
	MaxUsage float64 `json:"max-usage,omitempty"`
	// MinFreeSpaceGiB is the free space in GiB a move target has to retain
	MinFreeSpaceGiB int64 `json:"min-free-space-gib,omitempty"`
	// Autopilot derives the usage corridor from the fleet average instead of
	// the fixed min/max thresholds
	Autopilot bool `json:"autopilot,omitempty"`
	// AutopilotRange is the corridor in percent around the average usage
	AutopilotRange float64 `json:"autopilot-range,omitempty"`
	// MaxMoveVMs is the cap on proposed moves per balancing pass
	MaxMoveVMs int `json:"max-move-vms,omitempty"`
	// PrintMax is the number of largest shadow vms reported per datastore
	PrintMax int `json:"print-max,omitempty"`
	// DSDenyList names datastores that are never balancing targets
	DSDenyList []string `json:"ds-denylist,omitempty"`

	// AggrVolumeMinSizeGiB/AggrVolumeMaxSizeGiB bound the size of a shadow vm
	// moved by the aggregate balancing pass
	AggrVolumeMinSizeGiB int64 `json:"aggr-volume-min-size-gib,omitempty"`
	AggrVolumeMaxSizeGiB int64 `json:"aggr-volume-max-size-gib,omitempty"`
	// FlexvolVolumeMinSizeGiB/FlexvolVolumeMaxSizeGiB bound the size of a
	// shadow vm moved by the datastore balancing pass
	FlexvolVolumeMinSizeGiB int64 `json:"flexvol-volume-min-size-gib,omitempty"`
	FlexvolVolumeMaxSizeGiB int64 `json:"flexvol-volume-max-size-gib,omitempty"`

	// StorageMedium selects ssd or hdd backed datastores for balancing
	StorageMedium StorageMedium `json:"storage-medium,omitempty"`

	// ServerPort is the port of the health/metrics endpoint
	ServerPort int `json:"server-port,omitempty"`
	// LogLevel is the zap level name: "debug", "info", "warn", "error", ...
	LogLevel string `json:"log-level,omitempty"`
}

type VCenter struct {
	Host     string `json:"host" envconfig:"VMFS_BALANCER_VCENTER_HOST"`
	Username string `json:"username" envconfig:"VMFS_BALANCER_VCENTER_USERNAME"`
	Password string `json:"password" envconfig:"VMFS_BALANCER_VCENTER_PASSWORD"`
	Insecure bool   `json:"insecure,omitempty"`
}

type Netapp struct {
	Username string `json:"username" envconfig:"VMFS_BALANCER_NETAPP_USERNAME"`
	Password string `json:"password" envconfig:"VMFS_BALANCER_NETAPP_PASSWORD"`
}

func NewDefault() *Config {
	return &Config{
		Interval:                Duration{Duration: DefaultInterval},
		MinUsage:                DefaultMinUsage,
		MaxUsage:                DefaultMaxUsage,
		MinFreeSpaceGiB:         DefaultMinFreeSpaceGiB,
		AutopilotRange:          DefaultAutopilotRange,
		MaxMoveVMs:              DefaultMaxMoveVMs,
		PrintMax:                DefaultPrintMax,
		AggrVolumeMaxSizeGiB:    DefaultVolumeMaxSizeGiB,
		FlexvolVolumeMaxSizeGiB: DefaultVolumeMaxSizeGiB,
		StorageMedium:           MediumSSD,
		ServerPort:              DefaultServerPort,
		LogLevel:                "info",
	}
}

// ParseConfigFile reads the config file and unmarshals it into the Config
// struct. Environment variables override values from the file.
func (cfg *Config) ParseConfigFile(cfgFile string) error {
	contents, err := os.ReadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config file: %w", err)
	}
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to process environment overrides: %w", err)
	}
	return nil
}

func (cfg *Config) Validate() error {
	requiredFields := []struct {
		value string
		name  string
	}{
		{cfg.VCenter.Host, "vcenter.host"},
		{cfg.VCenter.Username, "vcenter.username"},
		{cfg.VCenter.Password, "vcenter.password"},
		{cfg.Netapp.Username, "netapp.username"},
		{cfg.Netapp.Password, "netapp.password"},
		{cfg.Region, "region"},
	}
	for _, field := range requiredFields {
		if field.value == "" {
			return fmt.Errorf("%s is required", field.name)
		}
	}

	if cfg.StorageMedium != MediumSSD && cfg.StorageMedium != MediumHDD {
		return fmt.Errorf("storage-medium must be %q or %q, got %q", MediumSSD, MediumHDD, cfg.StorageMedium)
	}
	if cfg.AggrVolumeMinSizeGiB > cfg.AggrVolumeMaxSizeGiB {
		return fmt.Errorf("aggr-volume-min-size-gib exceeds aggr-volume-max-size-gib")
	}
	if cfg.FlexvolVolumeMinSizeGiB > cfg.FlexvolVolumeMaxSizeGiB {
		return fmt.Errorf("flexvol-volume-min-size-gib exceeds flexvol-volume-max-size-gib")
	}
	if cfg.Interval.Duration <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	return nil
}

// String renders the config for logging. Credentials are redacted.
func (cfg *Config) String() string {
	clone := *cfg
	clone.VCenter.Password = "[REDACTED]"
	clone.Netapp.Password = "[REDACTED]"
	contents, err := json.Marshal(&clone)
	if err != nil {
		return "<error>"
	}
	return string(contents)
}
