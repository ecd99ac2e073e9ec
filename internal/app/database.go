package app

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// databaseTarget describes a DSN without its credentials.
type databaseTarget struct {
	Type        string
	Host        string
	Port        int
	User        string
	Name        string
	SSLMode     string
	Path        string
	PasswordSet bool
}

func (t databaseTarget) fields() log.Fields {
	if t.Type == "sqlite" {
		return log.Fields{"database": t.Type, "path": t.Path}
	}
	return log.Fields{
		"database": t.Type,
		"host":     t.Host,
		"port":     t.Port,
		"user":     t.User,
		"name":     t.Name,
		"sslmode":  t.SSLMode,
	}
}

func describeDatabase(dsn string) (databaseTarget, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return databaseTarget{}, fmt.Errorf("empty dsn")
	}

	lowered := strings.ToLower(trimmed)
	for _, prefix := range []string{"file:", "sqlite://", "sqlite:"} {
		if !strings.HasPrefix(lowered, prefix) {
			continue
		}
		pathPart := trimmed[len(prefix):]
		pathPart, _, _ = strings.Cut(pathPart, "?")
		return databaseTarget{Type: "sqlite", Path: strings.TrimSpace(pathPart)}, nil
	}

	u, errParse := url.Parse(trimmed)
	if errParse != nil {
		return databaseTarget{}, fmt.Errorf("parse dsn: %w", errParse)
	}

	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "postgres", "postgresql":
		port := 5432
		if rawPort := strings.TrimSpace(u.Port()); rawPort != "" {
			parsedPort, errPort := strconv.Atoi(rawPort)
			if errPort != nil {
				return databaseTarget{}, fmt.Errorf("parse port: %w", errPort)
			}
			port = parsedPort
		}

		username := ""
		passwordSet := false
		if u.User != nil {
			username = strings.TrimSpace(u.User.Username())
			_, passwordSet = u.User.Password()
		}

		sslMode := strings.TrimSpace(u.Query().Get("sslmode"))
		if sslMode == "" {
			sslMode = "disable"
		}

		return databaseTarget{
			Type:        "postgres",
			Host:        strings.TrimSpace(u.Hostname()),
			Port:        port,
			User:        username,
			Name:        strings.TrimSpace(strings.TrimPrefix(u.Path, "/")),
			SSLMode:     sslMode,
			PasswordSet: passwordSet,
		}, nil
	case "":
		return databaseTarget{Type: "sqlite", Path: trimmed}, nil
	default:
		return databaseTarget{}, fmt.Errorf("unsupported dsn scheme")
	}
}
