package templates

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# hf-mirror configuration
environment: production
endpoint: https://hf-mirror.com
cache_dir: ~/.cache/huggingface/hub

downloader:
  binary: huggingface-cli
  python: python3
  attempts: 3
  retry_delay: 5s
  downgrade_pause: 5s
  probe_acceleration: true

locks:
  timeout: 30s
  poll_interval: 1s

db:
  dsn: ""

filesystem_type: local
publish_dir: ~/.hf-mirror/published

s3:
  endpoint_url: ""
  region_name: ""
  bucket_name: ""
  folder: "models"
  public_url: ""
`

const envTemplate = `# Values here are loaded before the config file.
# HF_TOKEN=hf_xxx
# HFMIRROR_ENDPOINT=https://hf-mirror.com
# HFMIRROR_S3_ACCESS_KEY=
# HFMIRROR_S3_SECRET_KEY=
`

// WriteExampleTemplates writes config.example.yaml and .env.example into home
// unless they already exist.
func WriteExampleTemplates(home string) error {
	files := map[string]string{
		filepath.Join(home, "config.example.yaml"): configTemplate,
		filepath.Join(home, ".env.example"):        envTemplate,
	}

	for path, content := range files {
		if err := writeIfMissing(path, content); err != nil {
			return err
		}
	}

	return nil
}

func writeIfMissing(path string, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString(content)
	return err
}
