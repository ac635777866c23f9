// Package caption 管理通知文案模板，支持文件热更新。
package caption

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"optwatch/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// FileConfig 映射模板文件。
type FileConfig struct {
	Templates map[string]string `yaml:"templates"`
}

// Snapshot 公开的模板快照。
type Snapshot struct {
	Version   int64
	LoadedAt  time.Time
	Source    string
	Templates map[Name]string
}

// Registry 管理通知文案；文件中的模板覆盖内置默认值。
type Registry struct {
	path     string
	defaults map[Name]string
	file     *viper.Viper

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewRegistry 加载内置模板；path 非空且文件存在时叠加文件内容并监听更新。
func NewRegistry(path string) (*Registry, error) {
	defaults, err := parseTemplates(defaultsYAML)
	if err != nil {
		return nil, fmt.Errorf("parse builtin templates failed: %w", err)
	}
	r := &Registry{path: strings.TrimSpace(path), defaults: defaults}
	if r.path == "" {
		r.install(nil, "builtin")
		return r, nil
	}
	if _, err := os.Stat(r.path); errors.Is(err, fs.ErrNotExist) {
		logger.Infof("caption registry: %s not found, using builtin templates", r.path)
		r.install(nil, "builtin")
		return r, nil
	}
	r.file = newTemplateFile(r.path)
	if err := r.file.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read caption templates failed: %w", err)
	}
	if err := r.installFrom(r.file); err != nil {
		return nil, err
	}
	// 回调运行在 viper 的监听协程里，文件已被重新读取
	r.file.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.installFrom(r.file); err != nil {
			logger.Errorf("caption templates reload failed (%s): %v", evt.Name, err)
		}
	})
	r.file.WatchConfig()
	return r, nil
}

// Snapshot 返回当前模板集。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Template 返回指定模板原文。
func (r *Registry) Template(name Name) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.snapshot.Templates[name]
	return tpl, ok
}

// Render 填充占位符；未知模板返回空串。
func (r *Registry) Render(name Name, f Fields) string {
	tpl, ok := r.Template(name)
	if !ok {
		logger.Warnf("caption registry: unknown template %s", name)
		return ""
	}
	return f.replacer().Replace(tpl)
}

// Reload 立即从文件重新加载；使用独立的 viper 实例，不与监听协程共享状态。
func (r *Registry) Reload() error {
	if r.file == nil {
		return nil
	}
	v := newTemplateFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read caption templates failed: %w", err)
	}
	return r.installFrom(v)
}

func newTemplateFile(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	return v
}

// installFrom 只接受顶层 templates 键。
func (r *Registry) installFrom(v *viper.Viper) error {
	for key := range v.AllSettings() {
		if key != "templates" {
			return fmt.Errorf("parse caption templates failed: unknown key %q", key)
		}
	}
	overrides := make(map[Name]string)
	for key, tpl := range v.GetStringMapString("templates") {
		overrides[Name(strings.TrimSpace(key))] = tpl
	}
	r.install(overrides, filepath.Base(r.path))
	return nil
}

func (r *Registry) install(overrides map[Name]string, source string) {
	merged := make(map[Name]string, len(r.defaults)+len(overrides))
	for name, tpl := range r.defaults {
		merged[name] = tpl
	}
	for name, tpl := range overrides {
		if strings.TrimSpace(tpl) == "" {
			continue
		}
		merged[name] = tpl
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:   r.snapshot.Version + 1,
		LoadedAt:  time.Now(),
		Source:    source,
		Templates: merged,
	}
	r.mu.Unlock()
	logger.Infof("caption registry loaded %d templates from %s", len(merged), source)
}

func parseTemplates(raw []byte) (map[Name]string, error) {
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	out := make(map[Name]string, len(cfg.Templates))
	for key, tpl := range cfg.Templates {
		out[Name(strings.TrimSpace(key))] = tpl
	}
	return out, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := src
	dst.Templates = make(map[Name]string, len(src.Templates))
	for name, tpl := range src.Templates {
		dst.Templates[name] = tpl
	}
	return dst
}
