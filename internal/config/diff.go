package config

import (
	"encoding/json"
	"reflect"
)

// Reloadable reports sections that take effect without a restart.
var Reloadable = map[string]bool{
	"logging": true,
	"numbers": true,
	"status":  true,
	"limits":  true,
	"backup":  true,
}

// ChangedSections lists the top-level sections that differ between two
// configs, in declaration order. A nil old config reports every section.
func ChangedSections(oldCfg, newCfg *Config) []string {
	if newCfg == nil {
		return nil
	}
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	ov, nv := reflect.ValueOf(*oldCfg), reflect.ValueOf(*newCfg)
	t := ov.Type()
	var out []string
	for i := 0; i < t.NumField(); i++ {
		if !reflect.DeepEqual(ov.Field(i).Interface(), nv.Field(i).Interface()) {
			out = append(out, jsonName(t.Field(i)))
		}
	}
	return out
}

// RestartRequired returns changed sections that only apply after a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		if !Reloadable[s] {
			out = append(out, s)
		}
	}
	return out
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			tag = tag[:i]
			break
		}
	}
	if tag == "" {
		return f.Name
	}
	return tag
}

// Redacted returns a JSON rendering with secrets masked, for logs.
func (c *Config) Redacted() string {
	cp := *c
	if cp.Telegram.Token != "" {
		cp.Telegram.Token = "***"
	}
	if cp.Storage.Redis.Password != "" {
		cp.Storage.Redis.Password = "***"
	}
	if cp.Storage.Postgres.DSN != "" {
		cp.Storage.Postgres.DSN = "***"
	}
	b, _ := json.Marshal(cp)
	return string(b)
}
