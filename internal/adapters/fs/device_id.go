package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const deviceIDFileName = "device-id"

// DeviceID returns the installation identifier stored in dir, creating a
// random UUID on first use. The identifier is sent with every pre-request.
func DeviceID(dir string) (string, error) {
	path := filepath.Join(dir, deviceIDFileName)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		id, perr := uuid.Parse(strings.TrimSpace(string(data)))
		if perr != nil {
			return "", fmt.Errorf("device id in %s: %w", path, perr)
		}
		return id.String(), nil
	case !os.IsNotExist(err):
		return "", fmt.Errorf("read device id: %w", err)
	}

	id := uuid.NewString()
	if err := writeAtomic(dir, deviceIDFileName, []byte(id+"\n")); err != nil {
		return "", fmt.Errorf("save device id: %w", err)
	}
	return id, nil
}

// writeAtomic writes to a temp file, then renames it over the target.
func writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
