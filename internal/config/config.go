// Package config provides functionality for managing configuration options
// for the application using command-line flags, an optional JSON file and
// environment variables, applied in that order.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kelseyhightower/envconfig"
)

// Store drivers.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `json:"addr" envconfig:"SERVER_ADDRESS"`

	// Port is the bare port some hosting platforms provide; it is only used
	// when Addr was not given through the environment.
	Port string `json:"port" envconfig:"PORT"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" envconfig:"LOG_LEVEL"`

	// StoreDriver selects the record store: mongo, postgres or memory.
	StoreDriver string `json:"store_driver" envconfig:"STORE_DRIVER"`

	// MongoURI is the MongoDB connection string.
	MongoURI string `json:"mongodb_uri" envconfig:"MONGODB_URI"`

	// MongoDatabase is the MongoDB database name.
	MongoDatabase string `json:"mongodb_database" envconfig:"MONGODB_DATABASE"`

	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string `json:"database_dsn" envconfig:"DATABASE_DSN"`

	// MaxUploadMB bounds the in-memory part of multipart requests.
	MaxUploadMB int64 `json:"max_upload_mb" envconfig:"MAX_UPLOAD_MB"`

	// Google holds the OAuth client and the long-lived refresh token.
	Google Google `json:"google" envconfig:"GOOGLE_OAUTH"`

	// Drive holds the upload destinations and sharing defaults.
	Drive Drive `json:"drive" envconfig:"DRIVE"`

	// Config is the path to the Config file.
	Config string `json:"-" ignored:"true"`
}

// Google holds OAuth credentials for the Drive account.
type Google struct {
	ClientID     string `json:"client_id" envconfig:"CLIENT_ID"`
	ClientSecret string `json:"client_secret" envconfig:"CLIENT_SECRET"`
	RefreshToken string `json:"refresh_token" envconfig:"REFRESH_TOKEN"`
}

// Drive holds default destination folders and share permissions.
type Drive struct {
	ParentFolderID    string `json:"parent_folder_id" envconfig:"PARENT_FOLDER_ID"`
	ReportFolderID    string `json:"report_folder_id" envconfig:"FOLDER_INF"`
	FormatFolderID    string `json:"format_folder_id" envconfig:"FOLDER_FOR"`
	CertificateFolder string `json:"certificate_folder_id" envconfig:"FOLDER_CERT"`
	ShareType         string `json:"share_type" envconfig:"SHARE_TYPE"`
	ShareRole         string `json:"share_role" envconfig:"SHARE_ROLE"`
	ShareDomain       string `json:"share_domain" envconfig:"DOMAIN"`
}

// Default returns Options populated with built-in defaults.
func Default() *Options {
	return &Options{
		Addr:          ":4000",
		LogLevel:      "info",
		StoreDriver:   StoreMongo,
		MongoDatabase: "certtrack",
		MaxUploadMB:   32,
		Drive: Drive{
			ShareType: "anyone",
			ShareRole: "reader",
		},
	}
}

// options holds the current configuration values.
var options = Default()

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Addr, "a", options.Addr, "run on ip:port server")
	flag.StringVar(&options.StoreDriver, "s", options.StoreDriver, "record store driver (mongo, postgres, memory)")
	flag.StringVar(&options.MongoURI, "m", "", "mongodb connection string")
	flag.StringVar(&options.DatabaseDSN, "d", "", "postgres address")
	flag.StringVar(&options.LogLevel, "l", options.LogLevel, "log level")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct containing
// the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	if err := Load(options); err != nil {
		log.Fatalf("error while loading configuration: %v", err)
	}
	return options
}

// Load overlays the JSON config file (if it exists) and then the environment
// onto o.
func Load(o *Options) error {
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		o.Config = configPath
	}

	if o.Config != "" {
		if _, err := os.Stat(o.Config); err == nil {
			data, err := os.ReadFile(o.Config)
			if err != nil {
				return fmt.Errorf("read config file: %w", err)
			}
			if err := json.Unmarshal(data, o); err != nil {
				return fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	_, addrFromEnv := os.LookupEnv("SERVER_ADDRESS")
	if err := envconfig.Process("", o); err != nil {
		return fmt.Errorf("process environment: %w", err)
	}
	if !addrFromEnv && o.Port != "" {
		o.Addr = ":" + o.Port
	}

	return o.validate()
}

func (o *Options) validate() error {
	switch o.StoreDriver {
	case StoreMongo:
		if o.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required for the %s store", StoreMongo)
		}
	case StorePostgres:
		if o.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for the %s store", StorePostgres)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store driver %q", o.StoreDriver)
	}
	if o.MaxUploadMB <= 0 {
		o.MaxUploadMB = 32
	}
	return nil
}
