package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileOverwrite 先写同目录下的临时文件再改名覆盖 filePath，读者不会看到写了一半的文件
func WriteFileOverwrite(filePath string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*")
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("failed to write to file %s: %w", filePath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write to file %s: %w", filePath, err)
	}
	if err := os.Chmod(tmp, perm); err != nil {
		return fmt.Errorf("failed to chmod file %s: %w", filePath, err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		return fmt.Errorf("failed to replace file %s: %w", filePath, err)
	}
	return nil
}
