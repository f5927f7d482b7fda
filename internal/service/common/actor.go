//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/oshokin/opcua-alarms/internal/domain/alarm"
)

var errNoUsername = errors.New("no username available")

// actorSource provides the lookups used to identify the operator.
type actorSource struct {
	hostname func() (string, error)
	account  func() (*user.User, error)
	getenv   func(string) string
}

// DetectActor identifies the operator of this workstation for ClientUserId.
func DetectActor() (*alarm.Actor, error) {
	return actorSource{
		hostname: os.Hostname,
		account:  user.Current,
		getenv:   os.Getenv,
	}.detect()
}

func (s actorSource) detect() (*alarm.Actor, error) {
	host, err := s.hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	name, err := s.username()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &alarm.Actor{
		Hostname: strings.TrimSpace(host),
		Username: name,
	}, nil
}

// username prefers the account database and falls back to the login environment.
// Windows account names lose their DOMAIN\ prefix.
func (s actorSource) username() (string, error) {
	var name string

	account, err := s.account()
	if err == nil {
		name = account.Username
	}

	for _, key := range []string{"USER", "USERNAME"} {
		if strings.TrimSpace(name) != "" {
			break
		}

		name = s.getenv(key)
	}

	if _, short, ok := strings.Cut(name, `\`); ok {
		name = short
	}

	name = strings.TrimSpace(name)
	if name != "" {
		return name, nil
	}

	if err != nil {
		return "", err
	}

	return "", errNoUsername
}
