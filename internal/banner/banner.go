// Package banner prints the startup banner of widgetd.
package banner

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// LocalPath overrides the embedded banner when present. It sits in a subdirectory
// because the config directory source only accepts config file formats.
const LocalPath = "configs/banner/banner.txt"

//go:embed banner.txt
var bannerFS embed.FS

// Print writes the banner followed by the version line. A local banner file
// takes precedence over the embedded one.
func Print(w io.Writer, localPath, version string) error {
	data, err := load(localPath)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return fmt.Errorf("failed to display banner: %w", err)
	}
	_, err = fmt.Fprintf(w, " :: widgetd :: (%s)\n\n", version)
	return err
}

func load(localPath string) ([]byte, error) {
	if localPath != "" {
		if data, err := os.ReadFile(localPath); err == nil {
			return data, nil
		}
	}
	data, err := fs.ReadFile(bannerFS, "banner.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded banner: %w", err)
	}
	return data, nil
}
