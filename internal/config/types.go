package config

import (
	"encoding/json"
	"errors"
	"log/slog"

	cfgtypes "github.com/metrics-ops/ssh-log-exporter/internal/config/types"
)

// ErrEmptyConfigFile is returned when -config points at a file with no
// readable content (valid YAML, just empty).
var ErrEmptyConfigFile = errors.New("configuration file is empty")

// Config is the fully resolved, flag-and-file-merged process
// configuration. Its shape mirrors the YAML document described in
// spec.md §6.
type Config struct {
	ConfigFile   string `json:"config" yaml:"-"`
	VerifyConfig bool   `json:"-"      yaml:"-"`

	Global Global `json:"global" yaml:"global"`
	SSH    SSH    `json:"ssh"    yaml:"ssh"`
	Script string `json:"script" yaml:"script"`

	ReloadInterval int `json:"reloadInterval" yaml:"reload_interval"`

	Log   Log   `json:"log"   yaml:"log"`
	Web   Web   `json:"web"   yaml:"web"`
	Debug Debug `json:"debug" yaml:"debug"`
}

// Global holds the metric-registry-wide settings: TTL, the metric name
// prefix, the named histogram buckets, and the ordered column schema.
type Global struct {
	TTL        int                             `json:"ttl"        yaml:"ttl"`
	Prefix     string                          `json:"prefix"     yaml:"prefix"`
	Histograms map[string]cfgtypes.Float64Slice `json:"histograms" yaml:"histograms"`
	Format     []RawFormatEntry                `json:"format"     yaml:"format"`
}

// RawFormatEntry is the as-decoded shape of one `global.format` list
// item: a single-key `{column_name: type_expr}` mapping, or nil for a
// YAML null (-> skip this column). A nil map decodes naturally from a
// YAML null without any custom unmarshaler. BuildReaders turns each
// entry into a validated FormatEntry, rejecting anything with more
// than one key.
type RawFormatEntry map[string]string

// FormatEntry is a validated, single-column schema entry, produced
// from a RawFormatEntry by BuildReaders.
type FormatEntry struct {
	Name     string
	TypeExpr string
	Skip     bool
}

// SSH holds the SSH-level defaults and the per-environment overrides
// and host lists.
type SSH struct {
	File           string                `json:"file"           yaml:"file"`
	User           string                `json:"user"           yaml:"user"`
	Password       string                `json:"password"       yaml:"password"`
	PrivateKey     string                `json:"pkey"           yaml:"pkey"`
	ConnectTimeout int                   `json:"connectTimeout" yaml:"connect_timeout"`
	Environments   map[string]Environment `json:"environments"   yaml:"environments"`
}

// Environment is one `ssh.environments.<name>` entry: a host list plus
// optional per-environment overrides of the SSH-level defaults.
type Environment struct {
	Hosts          cfgtypes.StringSlice `json:"hosts"          yaml:"hosts"`
	File           string               `json:"file"           yaml:"file"`
	User           string               `json:"user"           yaml:"user"`
	Password       string               `json:"password"       yaml:"password"`
	PrivateKey     string               `json:"pkey"           yaml:"pkey"`
	ConnectTimeout int                  `json:"connectTimeout" yaml:"connect_timeout"`
}

// ResolvedTarget is the SSH field set applicable to one (environment,
// host) pair, after per-environment overrides have been applied over
// the SSH-level defaults (spec.md §4.4 "Field resolution").
type ResolvedTarget struct {
	Environment    string
	Host           string
	File           string
	User           string
	Password       string
	PrivateKey     string
	ConnectTimeout int
}

// ID is the target_id the supervisor reconciles against: "ssh://<host>/<file>".
func (t ResolvedTarget) ID() string {
	return "ssh://" + t.Host + "/" + t.File
}

// Log configures the slog handler the way the teacher's cmd entrypoint
// does (format + level).
type Log struct {
	Format string     `json:"format" yaml:"format"`
	Level  slog.Level `json:"level"  yaml:"level"`
}

// Web configures the /metrics HTTP listener.
type Web struct {
	ListenAddress string `json:"listenAddress" yaml:"listenAddress"`
	ConfigFile    string `json:"configFile"    yaml:"configFile"`
}

// Debug toggles the pprof tree mounted alongside /metrics.
type Debug struct {
	Enable bool `json:"enable" yaml:"enable"`
}

//goland:noinspection GoMixedReceiverTypes
func (c Config) String() string {
	jsonString, err := json.Marshal(c)
	if err != nil {
		panic(err)
	}

	return string(jsonString)
}
