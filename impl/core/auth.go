package core

import (
	"fmt"

	"TableWatch/entity"
)

const adminUsername = "admin"

// AuthenticateByToken resolves an admin api token to its owner.
// The configured key is accepted as is; other keys are looked up in the database.
func (c *Core) AuthenticateByToken(token string) (*entity.UserAuth, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	if c.authKey != "" && token == c.authKey {
		return &entity.UserAuth{Username: adminUsername, Token: token}, nil
	}

	c.mu.RLock()
	username, ok := c.keys[token]
	c.mu.RUnlock()
	if ok {
		return &entity.UserAuth{Username: username, Token: token}, nil
	}

	if c.repo == nil {
		return nil, fmt.Errorf("not found user")
	}
	username, err := c.repo.CheckApiKey(token)
	if err != nil {
		return nil, fmt.Errorf("check api key: %w", err)
	}

	c.mu.Lock()
	c.keys[token] = username
	c.mu.Unlock()
	return &entity.UserAuth{Username: username, Token: token}, nil
}

// ValidateToken authenticates websocket clients.
func (c *Core) ValidateToken(token string) (string, error) {
	user, err := c.AuthenticateByToken(token)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}
