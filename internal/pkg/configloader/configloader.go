package configloader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig 从 yaml 文件加载配置到 cfg（必须传指针）
func LoadConfig(path string, cfg interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
