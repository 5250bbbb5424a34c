// Package auth implements key-based login for the API.
//
// Access keys are configured out of band, either as AUTH_KEY_<n> environment
// variables or in a YAML file. A client authenticates by presenting a key as
// a bearer token, or by logging in with "remember me" and then sending the
// resulting session cookie.
package auth

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MasterUser is the account that always has administrative rights.
const MasterUser = "antoi"

// Permissions granted by a key.
type Permissions struct {
	Admin  bool `json:"admin"`
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Delete bool `json:"delete"`
}

// ParsePermissions reads a comma separated list such as "read,write".
// Unknown names are ignored.
func ParsePermissions(list []string) Permissions {
	var p Permissions
	for _, name := range list {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "admin":
			p.Admin = true
		case "read":
			p.Read = true
		case "write":
			p.Write = true
		case "delete":
			p.Delete = true
		}
	}
	return p
}

// Names lists the granted permissions in a stable order.
func (p Permissions) Names() []string {
	var out []string
	if p.Admin {
		out = append(out, "admin")
	}
	if p.Read {
		out = append(out, "read")
	}
	if p.Write {
		out = append(out, "write")
	}
	if p.Delete {
		out = append(out, "delete")
	}
	return out
}

// Key is a configured access key.
type Key struct {
	ID           int
	Secret       string
	Name         string
	CreatedBy    string
	CreatedAt    time.Time
	Active       bool
	AllowedUsers []string
	Permissions  Permissions
}

// KeyInfo is the public view of a key; it never includes the secret.
type KeyInfo struct {
	ID           int         `json:"id"`
	Name         string      `json:"name"`
	CreatedBy    string      `json:"createdBy"`
	CreatedAt    time.Time   `json:"createdAt"`
	IsActive     bool        `json:"isActive"`
	AllowedUsers []string    `json:"allowedUsers"`
	Permissions  Permissions `json:"permissions"`
}

func (k Key) Info() KeyInfo {
	return KeyInfo{
		ID:           k.ID,
		Name:         k.Name,
		CreatedBy:    k.CreatedBy,
		CreatedAt:    k.CreatedAt,
		IsActive:     k.Active,
		AllowedUsers: append([]string(nil), k.AllowedUsers...),
		Permissions:  k.Permissions,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadKeysFromEnv reads AUTH_KEY_1, AUTH_KEY_2, ... until the first gap.
// Each key may carry _NAME, _USERS and _PERMISSIONS companions.
func LoadKeysFromEnv(getenv func(string) string, now time.Time) []Key {
	var keys []Key
	for i := 1; ; i++ {
		prefix := "AUTH_KEY_" + strconv.Itoa(i)
		secret := getenv(prefix)
		if secret == "" {
			break
		}

		name := getenv(prefix + "_NAME")
		if name == "" {
			name = fmt.Sprintf("Key %d", i)
		}
		users := splitList(getenv(prefix + "_USERS"))
		if len(users) == 0 {
			users = []string{MasterUser}
		}
		perms := splitList(getenv(prefix + "_PERMISSIONS"))
		if len(perms) == 0 {
			perms = []string{"read"}
		}

		keys = append(keys, Key{
			ID:           i,
			Secret:       secret,
			Name:         name,
			CreatedBy:    "system",
			CreatedAt:    now,
			Active:       true,
			AllowedUsers: users,
			Permissions:  ParsePermissions(perms),
		})
	}
	return keys
}

type keysFile struct {
	Keys []struct {
		Key         string   `yaml:"key"`
		Name        string   `yaml:"name"`
		CreatedBy   string   `yaml:"created_by"`
		Users       []string `yaml:"users"`
		Permissions []string `yaml:"permissions"`
		Active      *bool    `yaml:"active"`
	} `yaml:"keys"`
}

// LoadKeysFile reads keys from a YAML file. IDs are assigned from firstID
// so they can follow the environment keys.
func LoadKeysFile(path string, firstID int, now time.Time) ([]Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keys file: %w", err)
	}

	var f keysFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse keys file %s: %w", path, err)
	}

	keys := make([]Key, 0, len(f.Keys))
	for i, k := range f.Keys {
		if strings.TrimSpace(k.Key) == "" {
			return nil, fmt.Errorf("keys file %s: entry %d has no key", path, i+1)
		}
		id := firstID + i
		name := k.Name
		if name == "" {
			name = fmt.Sprintf("Key %d", id)
		}
		createdBy := k.CreatedBy
		if createdBy == "" {
			createdBy = "system"
		}
		users := k.Users
		if len(users) == 0 {
			users = []string{MasterUser}
		}
		perms := k.Permissions
		if len(perms) == 0 {
			perms = []string{"read"}
		}
		keys = append(keys, Key{
			ID:           id,
			Secret:       k.Key,
			Name:         name,
			CreatedBy:    createdBy,
			CreatedAt:    now,
			Active:       k.Active == nil || *k.Active,
			AllowedUsers: users,
			Permissions:  ParsePermissions(perms),
		})
	}
	return keys, nil
}

// LoadKeys combines environment keys with the optional YAML file.
func LoadKeys(getenv func(string) string, file string, now time.Time) ([]Key, error) {
	keys := LoadKeysFromEnv(getenv, now)
	if file == "" {
		return keys, nil
	}
	fromFile, err := LoadKeysFile(file, len(keys)+1, now)
	if err != nil {
		return nil, err
	}
	return append(keys, fromFile...), nil
}

// Username derives the account a key logs in as: keys created by or named
// for the master user map to it, otherwise miinéki when allowed, otherwise
// the first allowed user.
func (k Key) Username() string {
	name := strings.ToLower(k.Name)
	if k.CreatedBy == MasterUser || strings.Contains(name, "master") || strings.Contains(name, "principal") {
		return MasterUser
	}
	for _, u := range k.AllowedUsers {
		if u == "miinéki" {
			return u
		}
	}
	if len(k.AllowedUsers) > 0 {
		return k.AllowedUsers[0]
	}
	return ""
}
