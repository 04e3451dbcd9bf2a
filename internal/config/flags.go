package config

import (
	"errors"
	"flag"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/avelichko/clip-keeper/models"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a dev server address in format [host]:[port]
//	-d local database DSN (file path for sqlite, postgres:// URI for pgx)
//	-driver local database driver (sqlite3 or pgx)
//	-remote-url object-store base URL
//	-remote-path object-store base path
//	-remote-token bearer token for the object store
//	-device-id device identifier
//	-sync-password payload encryption password
//	-sync-interval background sync period (e.g., "5m")
//	-cache-dir attachment cache directory
//	-log-file client log file path
//	-only-favorites restrict sync to favorite items
//	-c/-config json file path with configs
func ParseFlags() *StructuredConfig {
	var serverAddress NetAddress
	var databaseDSN string
	var databaseDriver string
	var remoteURL string
	var remotePath string
	var remoteToken string
	var deviceID string
	var syncPassword string
	var syncInterval time.Duration
	var cacheDir string
	var logFile string
	var onlyFavorites bool
	var jsonConfigPath string

	flag.Var(&serverAddress, "a", "Net address host:port")
	flag.StringVar(&databaseDSN, "d", "", "Local database DSN")
	flag.StringVar(&databaseDriver, "driver", "", "Local database driver (sqlite3 or pgx)")
	flag.StringVar(&remoteURL, "remote-url", "", "Object store base URL")
	flag.StringVar(&remotePath, "remote-path", "", "Object store base path")
	flag.StringVar(&remoteToken, "remote-token", "", "Object store bearer token")
	flag.StringVar(&deviceID, "device-id", "", "Device identifier")
	flag.StringVar(&syncPassword, "sync-password", "", "Payload encryption password")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Background sync period (e.g., 5m)")
	flag.StringVar(&cacheDir, "cache-dir", "", "Attachment cache directory")
	flag.StringVar(&logFile, "log-file", "", "Client log file path")
	flag.BoolVar(&onlyFavorites, "only-favorites", false, "Sync favorite items only")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")

	flag.Parse()

	return &StructuredConfig{
		App: App{
			DeviceID:     deviceID,
			SyncPassword: syncPassword,
			LogFile:      logFile,
		},
		Storage: Storage{
			DB: DB{
				Driver: databaseDriver,
				DSN:    databaseDSN,
			},
			CacheDir: cacheDir,
		},
		Remote: Remote{
			BaseURL:  remoteURL,
			BasePath: remotePath,
			Token:    remoteToken,
		},
		Sync: Sync{
			Interval: syncInterval,
			Mode:     models.SyncMode{OnlyFavorites: onlyFavorites},
		},
		Server: Server{
			HTTPAddress: serverAddress.String(),
		},
		JSONFilePath: jsonConfigPath,
	}
}

// String returns a canonical host:port string for a NetAddress.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the
// NetAddress. It validates the port range, checks IP correctness unless
// host is "localhost", and returns an error if the format or values are
// invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 {
		return errors.New("port number is a positive integer")
	}

	if host != "localhost" {
		ip := net.ParseIP(hostAndPort[0])
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
