package tgclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gotd/td/session"
)

// telethonVersion prefixes Telethon StringSession values. Tokens produced
// here are base64 of a JSON document and always start with "ey".
const telethonVersion = "1"

// newTokenStorage seeds gotd's in-memory storage from a session string.
func newTokenStorage(token string) (*session.StorageMemory, error) {
	data, err := DecodeToken(token)
	if err != nil {
		return nil, err
	}

	storage := new(session.StorageMemory)
	if len(data) > 0 {
		if err := storage.StoreSession(context.Background(), data); err != nil {
			return nil, err
		}
	}
	return storage, nil
}

// exportToken renders the current contents of storage, or "" when the
// connection has not produced a session yet.
func exportToken(storage *session.StorageMemory) (string, error) {
	data, err := storage.Bytes(nil)
	if errors.Is(err, session.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return EncodeToken(data), nil
}

// EncodeToken renders raw session data as a URL-safe session string.
func EncodeToken(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeToken parses a session string into gotd session data. Telethon
// StringSession values are converted. The empty string decodes to no data,
// which starts an anonymous session.
func DecodeToken(token string) ([]byte, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	if strings.HasPrefix(token, telethonVersion) {
		return decodeTelethon(token)
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: not a session document", ErrInvalidToken)
	}
	return data, nil
}

func decodeTelethon(token string) ([]byte, error) {
	data, err := session.TelethonSession(token)
	if err != nil {
		return nil, fmt.Errorf("%w: telethon session: %v", ErrInvalidToken, err)
	}

	var storage session.StorageMemory
	loader := session.Loader{Storage: &storage}
	if err := loader.Save(context.Background(), data); err != nil {
		return nil, fmt.Errorf("%w: telethon session: %v", ErrInvalidToken, err)
	}
	return storage.Bytes(nil)
}
