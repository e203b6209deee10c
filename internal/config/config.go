package config

import (
	"fmt"
	"log/slog"

	"github.com/BurntSushi/toml"
)

// ConfigStruct is the glue for all configuration sections
type ConfigStruct struct {
	Common   Common   `toml:"common"`
	Database Database `toml:"database"`
	Limits   Limits   `toml:"limits"`
	Feeds    Feeds    `toml:"feeds"`
}

// Common is the data required for all services
type Common struct {
	ListenAddr string `toml:"listen_addr"`
	LogDir     string `toml:"log_dir"`
	Debug      bool   `toml:"debug"`
}

// Database is the data required to establish a PostgreSQL connection
type Database struct {
	DBname  string `toml:"dbname"`
	Host    string `toml:"host"`
	SSLmode string `toml:"sslmode"`
	User    string `toml:"user"`

	MigrateOnStart bool `toml:"migrate_on_start"`
}

// DSN returns a connection string with all information from the struct
func (d Database) DSN() string {
	return fmt.Sprintf("sslmode=%s host=%s user=%s dbname=%s", d.SSLmode, d.Host, d.User, d.DBname)
}

// Limits holds the content length limits, counted in grapheme clusters
type Limits struct {
	MaxPostLength    int `toml:"max_post_length"`
	MaxCommentLength int `toml:"max_comment_length"`
}

// Feeds holds home feed behavior knobs
type Feeds struct {
	// DefaultHomeFeedMode is used when a caller doesn't pick a propagation
	// mode. One of "friends-only", "classic", "friends-all-activity".
	DefaultHomeFeedMode string `toml:"default_home_feed_mode"`
}

// C represents the loaded config
var C = ConfigStruct{
	Common: Common{
		ListenAddr: "localhost:8070",
		LogDir:     "/var/log/eddy",
	},
	Database: Database{
		DBname:  "eddy",
		Host:    "localhost",
		SSLmode: "disable",
		User:    "eddy",
	},
	Limits: Limits{
		MaxPostLength:    3000,
		MaxCommentLength: 3000,
	},
	Feeds: Feeds{
		DefaultHomeFeedMode: "classic",
	},
}

func Load(path string) error {
	md, err := toml.DecodeFile(path, &C)
	if len(md.Undecoded()) > 0 {
		slog.Warn("Undecoded configuration keys", slog.Any("keys", md.Undecoded()))
	}
	return err
}
