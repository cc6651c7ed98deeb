// Package secretstore реализует защищённое файловое хранилище секретов клиента
// (токен авторизации). Значения шифруются nacl/secretbox, ключ выводится из
// парольной фразы через argon2id; соль хранится рядом с записями.
package secretstore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

var (
	// ErrDecrypt возвращается, если запись не расшифровывается (другая парольная фраза или порча файла).
	ErrDecrypt = errors.New("secret store: failed to decrypt entry")
	// ErrEmptyPassphrase возвращается при попытке открыть хранилище без парольной фразы.
	ErrEmptyPassphrase = errors.New("secret store: passphrase is empty")
)

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

type fileFormat struct {
	Salt    string            `json:"salt"`
	Entries map[string]string `json:"entries"`
}

// FileStore хранит зашифрованные значения в одном JSON-файле.
// Безопасен для конкурентного использования в пределах процесса.
type FileStore struct {
	mu      sync.Mutex
	path    string
	key     [keySize]byte
	salt    []byte
	entries map[string]string
}

// Open открывает хранилище по пути path. Если файла нет, он будет создан при первой записи.
func Open(path, passphrase string) (*FileStore, error) {
	const op = "secretstore.Open"
	if passphrase == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyPassphrase)
	}

	s := &FileStore{
		path:    path,
		entries: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, s.salt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	default:
		var f fileFormat
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.salt, err = base64.StdEncoding.DecodeString(f.Salt)
		if err != nil || len(s.salt) != saltSize {
			return nil, fmt.Errorf("%s: invalid salt", op)
		}
		if f.Entries != nil {
			s.entries = f.Entries
		}
	}

	derived := argon2.IDKey([]byte(passphrase), s.salt, argonTime, argonMemory, argonThreads, keySize)
	copy(s.key[:], derived)
	return s, nil
}

// Save шифрует и сохраняет значение под ключом key.
func (s *FileStore) Save(key, value string) error {
	const op = "secretstore.Save"
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.entries[key]
	s.entries[key] = base64.StdEncoding.EncodeToString(sealed)
	if err := s.flush(); err != nil {
		if had {
			s.entries[key] = prev
		} else {
			delete(s.entries, key)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Load возвращает расшифрованное значение и признак его наличия.
func (s *FileStore) Load(key string) (string, bool, error) {
	const op = "secretstore.Load"
	s.mu.Lock()
	encoded, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return "", false, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(sealed) < nonceSize {
		return "", false, fmt.Errorf("%s: %w", op, ErrDecrypt)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", false, fmt.Errorf("%s: %w", op, ErrDecrypt)
	}
	return string(plain), true, nil
}

// Delete удаляет значение. Удаление отсутствующего ключа не является ошибкой.
func (s *FileStore) Delete(key string) error {
	const op = "secretstore.Delete"
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.entries[key]
	if !had {
		return nil
	}
	delete(s.entries, key)
	if err := s.flush(); err != nil {
		s.entries[key] = prev
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// flush атомарно перезаписывает файл. Вызывается под s.mu.
func (s *FileStore) flush() error {
	data, err := json.Marshal(fileFormat{
		Salt:    base64.StdEncoding.EncodeToString(s.salt),
		Entries: s.entries,
	})
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".secrets-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}
