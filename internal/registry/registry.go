// Package registry resolves environment/backup pairs to their validation rules.
// A Registry is built once from configuration and never mutated, so it is
// safe for concurrent use.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/imedwei/s3-backup-checker/internal/config"
)

// ErrNotConfigured is returned for environment/backup pairs missing from the configuration.
var ErrNotConfigured = errors.New("not configured")

// Rule governs how one backup stream is validated.
type Rule struct {
	Environment string
	Name        string
	Bucket      string
	Prefix      string
	Suffix      string
	MaxAge      time.Duration
	MinSizeKB   int64  // 0 disables the size check
	Token       string // empty when no token is required
}

// Key identifies a rule.
type Key struct {
	Environment string
	Backup      string
}

// Registry maps environment/backup pairs to rules.
type Registry struct {
	rules        map[Key]Rule
	environments map[string]struct{}
}

// New builds a registry from a validated configuration.
func New(cfg *config.Config) (*Registry, error) {
	r := &Registry{
		rules:        make(map[Key]Rule),
		environments: make(map[string]struct{}, len(cfg.Environments)),
	}

	for envName, env := range cfg.Environments {
		r.environments[envName] = struct{}{}

		for backupName, backup := range env.Backups {
			maxAge, err := backup.Age.Duration()
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", envName, backupName, err)
			}

			token := backup.Token
			if token == "" {
				token = cfg.Token
			}

			r.rules[Key{Environment: envName, Backup: backupName}] = Rule{
				Environment: envName,
				Name:        backupName,
				Bucket:      env.BucketName,
				Prefix:      NormalizePrefix(backup.Prefix),
				Suffix:      backup.Suffix,
				MaxAge:      maxAge,
				MinSizeKB:   backup.MinSize,
				Token:       token,
			}
		}
	}

	return r, nil
}

// Resolve returns the rule for an environment/backup pair.
func (r *Registry) Resolve(environment, backup string) (Rule, error) {
	if _, ok := r.environments[environment]; !ok {
		return Rule{}, fmt.Errorf("environment %q: %w", environment, ErrNotConfigured)
	}

	rule, ok := r.rules[Key{Environment: environment, Backup: backup}]
	if !ok {
		return Rule{}, fmt.Errorf("backup %q in environment %q: %w", backup, environment, ErrNotConfigured)
	}

	return rule, nil
}

// Rules returns every rule sorted by environment then backup name.
func (r *Registry) Rules() []Rule {
	rules := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Environment != rules[j].Environment {
			return rules[i].Environment < rules[j].Environment
		}
		return rules[i].Name < rules[j].Name
	})
	return rules
}

// Environments returns the configured environment names in sorted order.
func (r *Registry) Environments() []string {
	names := make([]string, 0, len(r.environments))
	for name := range r.environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of rules.
func (r *Registry) Len() int {
	return len(r.rules)
}

// NormalizePrefix turns a configured prefix into an S3 key prefix. Keys never
// start with a slash, so "/" and "" both mean the bucket root; any other
// prefix is treated as a directory and gets a trailing slash.
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimLeft(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}
