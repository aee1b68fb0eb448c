package app

import (
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const (
	fileScheme = "file"
	envScheme  = "env"
)

// FileLoader loads the contents referenced by a URL
type FileLoader func(u *url.URL) ([]byte, error)

var (
	loadersMu sync.RWMutex
	loaders   = map[string]FileLoader{
		fileScheme: loadLocalFile,
		envScheme:  loadEnvFile,
	}
)

// RegisterFileLoader adds a FileLoader for scheme. It panics if the scheme
// already has one.
func RegisterFileLoader(scheme string, loader FileLoader) {
	loadersMu.Lock()
	defer loadersMu.Unlock()

	if _, exists := loaders[scheme]; exists {
		panic("file loader already registered for scheme " + scheme)
	}
	loaders[scheme] = loader
}

// LoadFile loads the contents at fileURL with the loader registered for its
// scheme. Plain paths are read from the local file system, and env://NAME
// reads the value of environment variable NAME, which lets certificates be
// injected without a volume.
func LoadFile(fileURL string) ([]byte, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid file url %s", fileURL)
	}

	scheme := u.Scheme
	if scheme == "" {
		scheme = fileScheme
	}

	loadersMu.RLock()
	loader, ok := loaders[scheme]
	loadersMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("no file loader for scheme %s", scheme)
	}

	return loader(u)
}

func loadLocalFile(u *url.URL) ([]byte, error) {
	// file://certs/tls.pem parses "certs" as the host
	path := u.Host + u.Path
	if path == "" {
		path = u.Opaque
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return data, nil
}

func loadEnvFile(u *url.URL) ([]byte, error) {
	name := strings.TrimPrefix(u.Host+u.Path, "/")
	if name == "" {
		name = u.Opaque
	}

	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil, errors.Errorf("environment variable %s is not set", name)
	}
	return []byte(value), nil
}
