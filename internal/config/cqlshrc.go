package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/axonops/cqlmapper/internal/logger"
)

// iniEntry is one key/value pair of a cqlshrc-style file
type iniEntry struct {
	section string
	key     string
	value   string
}

// readINI parses the section/key/value structure shared by cqlshrc and the
// credentials file. Sections are lower-cased; surrounding quotes are stripped.
func readINI(path string) ([]iniEntry, error) {
	file, err := os.Open(path) // #nosec G304 - Config file path is validated
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []iniEntry
	section := ""
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.Trim(line, "[]"))
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}
		entries = append(entries, iniEntry{section: section, key: strings.TrimSpace(key), value: value})
	}
	return entries, scanner.Err()
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		return filepath.Join(os.Getenv("HOME"), path[1:])
	}
	return path
}

// loadCQLSHRC applies the [connection], [authentication], [auth_provider] and [ssl]
// sections of a cqlshrc file
func loadCQLSHRC(path string, config *Config) error {
	entries, err := readINI(path)
	if err != nil {
		return err
	}

	var credentialsPath string
	for _, e := range entries {
		switch e.section {
		case "connection":
			switch e.key {
			case "hostname":
				config.Host = e.value
			case "port":
				if port, err := strconv.Atoi(e.value); err == nil {
					config.Port = port
				}
			case "ssl":
				if e.value == "true" || e.value == "1" {
					sslConfig(config).Enabled = true
				}
			case "connect_timeout":
				if n, err := strconv.Atoi(e.value); err == nil {
					config.ConnectTimeout = n
				}
			case "request_timeout":
				if n, err := strconv.Atoi(e.value); err == nil {
					config.RequestTimeout = n
				}
			}
		case "authentication":
			switch e.key {
			case "credentials":
				credentialsPath = e.value
			case "keyspace":
				config.Keyspace = e.value
			case "username":
				config.Username = e.value
			case "password":
				config.Password = e.value
			}
		case "auth_provider":
			switch e.key {
			case "username":
				config.Username = e.value
			case "password":
				config.Password = e.value
			}
		case "ssl":
			ssl := sslConfig(config)
			ssl.Enabled = true
			switch e.key {
			case "certfile":
				ssl.CAPath = expandHome(e.value)
			case "userkey":
				ssl.KeyPath = expandHome(e.value)
			case "usercert":
				ssl.CertPath = expandHome(e.value)
			case "validate":
				if e.value == "false" || e.value == "0" {
					ssl.InsecureSkipVerify = true
					ssl.HostVerification = false
				} else {
					ssl.HostVerification = true
				}
			}
		}
	}

	if credentialsPath != "" {
		if err := loadCredentialsFile(credentialsPath, config); err != nil {
			logger.DebugfToFile("CQLSHRC", "Failed to load credentials file: %v", err)
		}
	}
	return nil
}

// loadCredentialsFile reads username/password from any section whose name
// contains "auth", e.g. [PlainTextAuthProvider]
func loadCredentialsFile(path string, config *Config) error {
	entries, err := readINI(expandHome(path))
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !strings.Contains(e.section, "auth") {
			continue
		}
		switch e.key {
		case "username":
			config.Username = e.value
		case "password":
			config.Password = e.value
		}
	}
	return nil
}

func sslConfig(config *Config) *SSLConfig {
	if config.SSL == nil {
		config.SSL = &SSLConfig{}
	}
	return config.SSL
}
