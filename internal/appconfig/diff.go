package appconfig

import (
	"fmt"
	"sort"
)

// Diff lists human-readable changes from old to cur, one per field.
// A nil old yields nil.
func Diff(old, cur *Config) []string {
	if old == nil || cur == nil {
		return nil
	}

	var out []string
	change := func(field string, a, b any) {
		if a != b {
			out = append(out, fmt.Sprintf("%s: %v -> %v", field, a, b))
		}
	}

	change("app_name", old.AppName, cur.AppName)
	change("version", old.Version, cur.Version)
	change("environment", old.Environment, cur.Environment)

	switch {
	case old.Server == nil && cur.Server != nil:
		out = append(out, "server: added")
	case old.Server != nil && cur.Server == nil:
		out = append(out, "server: removed")
	case old.Server != nil:
		change("server.host", old.Server.Host, cur.Server.Host)
		change("server.port", old.Server.Port, cur.Server.Port)
		change("server.enable_ssl", old.Server.EnableSSL, cur.Server.EnableSSL)
	}

	switch {
	case old.Database == nil && cur.Database != nil:
		out = append(out, "database: added")
	case old.Database != nil && cur.Database == nil:
		out = append(out, "database: removed")
	case old.Database != nil:
		if old.Database.ConnectionString != cur.Database.ConnectionString {
			out = append(out, "database.connection_string: changed")
		}
		change("database.pool_size", old.Database.PoolSize, cur.Database.PoolSize)
		change("database.timeout_seconds", old.Database.TimeoutSeconds, cur.Database.TimeoutSeconds)
	}

	keys := make(map[string]struct{}, len(old.Features)+len(cur.Features))
	for k := range old.Features {
		keys[k] = struct{}{}
	}
	for k := range cur.Features {
		keys[k] = struct{}{}
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		a, inOld := old.Features[k]
		b, inCur := cur.Features[k]
		switch {
		case !inOld:
			out = append(out, fmt.Sprintf("features.%s: added (%t)", k, b))
		case !inCur:
			out = append(out, fmt.Sprintf("features.%s: removed", k))
		default:
			change("features."+k, a, b)
		}
	}

	return out
}
