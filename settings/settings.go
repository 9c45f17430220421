// Package settings loads the vaultsync configuration from a yaml file,
// VAULTSYNC_* environment variables and command-line flags.
package settings

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	vsync "github.com/ghyeongl/vaultsync/sync"
)

// EnvPrefix prefixes environment overrides, e.g. VAULTSYNC_PASSWORD.
const EnvPrefix = "VAULTSYNC"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid settings")

// Settings is the effective configuration.
type Settings struct {
	URL      string `yaml:"url" mapstructure:"url"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	// VaultPath is the remote prefix the vault is mirrored under.
	VaultPath string `yaml:"vault_path" mapstructure:"vault_path"`
	Notify    bool   `yaml:"notify" mapstructure:"notify"`
	LoadSync  bool   `yaml:"load_sync" mapstructure:"load_sync"`

	Vault       string        `yaml:"vault" mapstructure:"vault"`
	VaultName   string        `yaml:"vault_name,omitempty" mapstructure:"vault_name"`
	SystemTrash bool          `yaml:"system_trash" mapstructure:"system_trash"`
	KnownHosts  string        `yaml:"known_hosts,omitempty" mapstructure:"known_hosts"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	LogDir      string        `yaml:"log_dir,omitempty" mapstructure:"log_dir"`
	HistoryDB   string        `yaml:"history_db" mapstructure:"history_db"`
	Listen      string        `yaml:"listen" mapstructure:"listen"`
	Watch       bool          `yaml:"watch" mapstructure:"watch"`
	IgnoreFile  string        `yaml:"ignore_file" mapstructure:"ignore_file"`
	// ControlToken signs bearer tokens for the control API.
	ControlToken string `yaml:"control_token,omitempty" mapstructure:"control_token"`
}

// Defaults returns the built-in configuration.
func Defaults() Settings {
	return Settings{
		Port:        22,
		VaultPath:   "./obsidian/",
		Notify:      true,
		LoadSync:    false,
		Vault:       ".",
		SystemTrash: true,
		Timeout:     30 * time.Second,
		HistoryDB:   "~/.vaultsync/history.db",
		Listen:      "127.0.0.1:8787",
		IgnoreFile:  ".syncignore",
	}
}

// DefaultConfigPath is ~/.vaultsync/config.yaml.
func DefaultConfigPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join(".vaultsync", "config.yaml")
	}
	return filepath.Join(home, ".vaultsync", "config.yaml")
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"url":           "url",
	"port":          "port",
	"username":      "username",
	"password":      "password",
	"vault-path":    "vault_path",
	"notify":        "notify",
	"load-sync":     "load_sync",
	"vault":         "vault",
	"vault-name":    "vault_name",
	"system-trash":  "system_trash",
	"known-hosts":   "known_hosts",
	"timeout":       "timeout",
	"log-dir":       "log_dir",
	"history-db":    "history_db",
	"listen":        "listen",
	"watch":         "watch",
	"ignore-file":   "ignore_file",
	"control-token": "control_token",
}

// RegisterFlags adds one flag per configuration key to fs. Flag defaults
// are informational; a flag only overrides the file when it is set.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("url", d.URL, "SFTP host")
	fs.Int("port", d.Port, "SFTP port")
	fs.String("username", d.Username, "SFTP username")
	fs.String("password", d.Password, "SFTP password")
	fs.String("vault-path", d.VaultPath, "remote prefix the vault is mirrored under")
	fs.Bool("notify", d.Notify, "print a notice per completed action")
	fs.Bool("load-sync", d.LoadSync, "download once when the daemon starts")
	fs.String("vault", d.Vault, "local vault directory")
	fs.String("vault-name", d.VaultName, "remote vault name (default: base name of --vault)")
	fs.Bool("system-trash", d.SystemTrash, "trash into the system trash instead of <vault>/.trash")
	fs.String("known-hosts", d.KnownHosts, "known_hosts file for host key checking")
	fs.Duration("timeout", d.Timeout, "SSH dial and handshake timeout")
	fs.String("log-dir", d.LogDir, "directory for rotating log files")
	fs.String("history-db", d.HistoryDB, "run history database (empty disables history)")
	fs.String("listen", d.Listen, "daemon HTTP control address")
	fs.Bool("watch", d.Watch, "daemon uploads after local changes settle")
	fs.String("ignore-file", d.IgnoreFile, "ignore file relative to the vault")
	fs.String("control-token", d.ControlToken, "secret for control API bearer tokens (empty disables auth)")
}

// Load reads configFile (or the default location when empty) into v and
// returns the merged settings. A missing config file is not an error.
// Precedence: flags set on fs, then environment, then file, then defaults.
func Load(v *viper.Viper, configFile string, fs *pflag.FlagSet) (*Settings, error) {
	d := Defaults()
	v.SetDefault("url", d.URL)
	v.SetDefault("port", d.Port)
	v.SetDefault("username", d.Username)
	v.SetDefault("password", d.Password)
	v.SetDefault("vault_path", d.VaultPath)
	v.SetDefault("notify", d.Notify)
	v.SetDefault("load_sync", d.LoadSync)
	v.SetDefault("vault", d.Vault)
	v.SetDefault("vault_name", d.VaultName)
	v.SetDefault("system_trash", d.SystemTrash)
	v.SetDefault("known_hosts", d.KnownHosts)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("history_db", d.HistoryDB)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("watch", d.Watch)
	v.SetDefault("control_token", d.ControlToken)
	v.SetDefault("ignore_file", d.IgnoreFile)

	if configFile == "" {
		configFile = DefaultConfigPath()
	}
	configFile, err := homedir.Expand(configFile)
	if err != nil {
		return nil, fmt.Errorf("expand config path: %w", err)
	}
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.expand(); err != nil {
		return nil, err
	}
	return &s, nil
}

// expand resolves "~" in every local path.
func (s *Settings) expand() error {
	for _, p := range []*string{&s.Vault, &s.KnownHosts, &s.LogDir, &s.HistoryDB} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the values that would otherwise fail late.
func (s *Settings) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, s.Port)
	}
	if s.Vault == "" {
		return fmt.Errorf("%w: vault is required", ErrInvalid)
	}
	if strings.Contains(s.VaultName, "/") {
		return fmt.Errorf("%w: vault_name %q must not contain '/'", ErrInvalid, s.VaultName)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalid)
	}
	if s.Listen != "" {
		if _, _, err := net.SplitHostPort(s.Listen); err != nil {
			return fmt.Errorf("%w: listen %q: %v", ErrInvalid, s.Listen, err)
		}
	}
	if s.URL != "" && s.Username == "" {
		return fmt.Errorf("%w: username is required when url is set", ErrInvalid)
	}
	return nil
}

// Name is the vault name used on the remote side.
func (s *Settings) Name() string {
	if s.VaultName != "" {
		return s.VaultName
	}
	abs, err := filepath.Abs(s.Vault)
	if err != nil {
		return filepath.Base(s.Vault)
	}
	return filepath.Base(abs)
}

// RemoteRoot is vault_path followed by the vault name, e.g.
// "./obsidian/MyVault". A vault_path of "/" yields "/MyVault".
func (s *Settings) RemoteRoot() string {
	prefix := strings.TrimRight(s.VaultPath, "/")
	if prefix == "" && strings.HasPrefix(s.VaultPath, "/") {
		return "/" + s.Name()
	}
	if prefix == "" {
		return s.Name()
	}
	return prefix + "/" + s.Name()
}

// Credentials returns the SFTP account.
func (s *Settings) Credentials() vsync.Credentials {
	return vsync.Credentials{Host: s.URL, Port: s.Port, Username: s.Username, Password: s.Password}
}

// SyncOptions builds the engine options. ignore may be nil.
func (s *Settings) SyncOptions(ignore *vsync.SyncIgnore) vsync.Options {
	return vsync.Options{
		Credentials:    s.Credentials(),
		RemoteRoot:     s.RemoteRoot(),
		Notify:         s.Notify,
		UseSystemTrash: s.SystemTrash,
		Ignore:         ignore,
	}
}

// Masked returns a copy safe for display.
func (s Settings) Masked() Settings {
	if s.Password != "" {
		s.Password = "********"
	}
	if s.ControlToken != "" {
		s.ControlToken = "********"
	}
	return s
}

// Marshal renders the settings as yaml.
func (s Settings) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Save writes the settings as yaml to path, creating its directory. The
// file holds the password and is written owner-only.
func (s Settings) Save(path string) error {
	path, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("expand config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := s.Marshal()
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
