package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/John-Robertt/siteaudit/internal/infra/fsx"
)

const (
	// ErrCodeNotFound 表示 --config 显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// DefaultConfigName 是站点根目录下的可选配置文件名。
	DefaultConfigName = "siteaudit.yaml"

	// StdoutOut 作为 --json-out 的值表示写 stdout。
	StdoutOut = "-"

	DefaultConcurrency      = 8
	DefaultVideoConcurrency = 4
	DefaultVideoRate        = 5.0
	DefaultVideoTimeout     = 15 * time.Second
	DefaultVideoMaxRetries  = 3
	DefaultVideoBaseBackoff = 500 * time.Millisecond
	DefaultVideoMaxBackoff  = 8 * time.Second
	DefaultMaxLineLength    = 1000
	DefaultMaxInlineStyles  = 10
	DefaultMaxHeadScripts   = 3
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "console"

	// DefaultVideoEndpoint 是 oEmbed 查询模板；{id} 会被替换为视频 id（唯一外发的数据）。
	DefaultVideoEndpoint = "https://www.youtube.com/oembed?format=json&url=https%3A%2F%2Fwww.youtube.com%2Fwatch%3Fv%3D{id}"
)

// DefaultExclude 是默认排除的路径子串（相对根目录，'/' 分隔）。
var DefaultExclude = []string{".git/", "node_modules/"}

// DefaultOrphanExempt 是默认的孤儿豁免规则（gitignore 语法）。
// 哪些文件算“入口”是站点策略而非算法的一部分，因此放在配置里而不是写死在检测逻辑中。
var DefaultOrphanExempt = []string{
	"index.html",
	"404.html",
	"robots.txt",
	"sitemap*.xml",
	"manifest.json",
	"*.webmanifest",
	"favicon.ico",
	"apple-touch-icon*.png",
	"CNAME",
	".nojekyll",
	".gitignore",
	".auditignore",
	DefaultConfigName,
	"*.md",
	"*.py",
	"*.sh",
	"package.json",
	"package-lock.json",
	"scripts/",
	"admin/",
	"docs/",
}

// CLIArgs 是 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --skip-video-check=false 必须能覆盖 video.skip=true。
type CLIArgs struct {
	Root       string
	ConfigFile string

	SkipVideoCheck    bool
	SkipVideoCheckSet bool

	MaxVideos    int
	MaxVideosSet bool

	Concurrency    int
	ConcurrencySet bool

	LogLevel  string
	LogFormat string

	JSONOut string
	XLSXOut string
}

// FileConfig 对应 siteaudit.yaml 的解析结构。
type FileConfig struct {
	Exclude      []string    `mapstructure:"exclude"`
	Ignore       []string    `mapstructure:"ignore"`
	OrphanExempt []string    `mapstructure:"orphan_exempt"`
	Concurrency  int         `mapstructure:"concurrency"`
	LogLevel     string      `mapstructure:"log_level"`
	LogFormat    string      `mapstructure:"log_format"`
	TaxonomyFile string      `mapstructure:"taxonomy_file"`
	Lint         LintConfig  `mapstructure:"lint"`
	Video        VideoConfig `mapstructure:"video"`
}

// LintConfig 是 lint/edge-case 检查的阈值。
type LintConfig struct {
	MaxLineLength   int `mapstructure:"max_line_length"`
	MaxInlineStyles int `mapstructure:"max_inline_styles"`
	MaxHeadScripts  int `mapstructure:"max_head_scripts"`
}

// VideoConfig 控制视频元数据校验阶段。
type VideoConfig struct {
	Skip          bool          `mapstructure:"skip"`
	Endpoint      string        `mapstructure:"endpoint"`
	Concurrency   int           `mapstructure:"concurrency"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	BaseBackoff   time.Duration `mapstructure:"base_backoff"`
	MaxBackoff    time.Duration `mapstructure:"max_backoff"`
	MaxVideos     int           `mapstructure:"max_videos"`
	CacheDir      string        `mapstructure:"cache_dir"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
// 加载后只读。
type EffectiveConfig struct {
	Root           string
	ConfigFileUsed string

	Exclude      []string
	Ignore       []string
	OrphanExempt []string

	Concurrency int
	LogLevel    string
	LogFormat   string

	Lint  LintConfig
	Video VideoConfig

	Taxonomy *Taxonomy

	JSONOut string
	XLSXOut string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Code == ErrCodeNotFound {
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	}
	return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试读取 <root>/siteaudit.yaml（可选）
//
// 覆盖优先级（固定）：CLI 显式指定 > 配置文件 > 内置默认值。
// 不读取环境变量。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	rootArg := strings.TrimSpace(cli.Root)
	if rootArg == "" {
		rootArg = "."
	}
	root := absCleanFrom(cwdAbs, rootArg)

	cfgPath := filepath.Join(root, DefaultConfigName)
	required := false
	if strings.TrimSpace(cli.ConfigFile) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigFile)
		required = true
	}

	fc, used, err := readFileConfig(cfgPath, required)
	if err != nil {
		return EffectiveConfig{}, err
	}

	eff, err := merge(cwdAbs, root, cli, fc, cfgPath)
	if err != nil {
		return EffectiveConfig{}, err
	}
	eff.ConfigFileUsed = used
	return eff, nil
}

func merge(cwdAbs, root string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) error { return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err} }

	concurrency := fc.Concurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	}

	video := fc.Video
	if cli.SkipVideoCheckSet {
		video.Skip = cli.SkipVideoCheck
	}
	if cli.MaxVideosSet {
		video.MaxVideos = cli.MaxVideos
	}
	if video.MaxVideos < 0 {
		return EffectiveConfig{}, invalid(fmt.Errorf("max_videos 不能为负数：%d", video.MaxVideos))
	}
	video.Concurrency = clamp(video.Concurrency, 1, 16)
	video.MaxRetries = max(video.MaxRetries, 0)
	video.RatePerSecond = orDefault(video.RatePerSecond, DefaultVideoRate)
	video.Timeout = orDefault(video.Timeout, DefaultVideoTimeout)
	video.BaseBackoff = orDefault(video.BaseBackoff, DefaultVideoBaseBackoff)
	video.MaxBackoff = max(video.MaxBackoff, video.BaseBackoff)
	video.Endpoint = strings.TrimSpace(video.Endpoint)
	if err := validateEndpoint(video.Endpoint); err != nil {
		return EffectiveConfig{}, invalid(err)
	}
	// 与 taxonomy_file 一致：相对路径以配置文件所在目录为基准。
	if strings.TrimSpace(video.CacheDir) != "" {
		video.CacheDir = absCleanFrom(filepath.Dir(cfgPath), video.CacheDir)
		if err := fsx.GuardOutside(root, video.CacheDir); err != nil {
			return EffectiveConfig{}, invalid(fmt.Errorf("video.cache_dir: %w", err))
		}
	}

	logLevel, err := choice("log_level", fc.LogLevel, cli.LogLevel, "debug", "info", "warn", "error")
	if err != nil {
		return EffectiveConfig{}, invalid(err)
	}
	logFormat, err := choice("log_format", fc.LogFormat, cli.LogFormat, "console", "structured")
	if err != nil {
		return EffectiveConfig{}, invalid(err)
	}

	lint := LintConfig{
		MaxLineLength:   orDefault(fc.Lint.MaxLineLength, DefaultMaxLineLength),
		MaxInlineStyles: orDefault(fc.Lint.MaxInlineStyles, DefaultMaxInlineStyles),
		MaxHeadScripts:  orDefault(fc.Lint.MaxHeadScripts, DefaultMaxHeadScripts),
	}

	taxPath := ""
	if strings.TrimSpace(fc.TaxonomyFile) != "" {
		taxPath = absCleanFrom(filepath.Dir(cfgPath), fc.TaxonomyFile)
	}
	tax, err := LoadTaxonomy(taxPath)
	if err != nil {
		return EffectiveConfig{}, invalid(err)
	}

	jsonOut, err := outputPath(cwdAbs, root, cli.JSONOut, true)
	if err != nil {
		return EffectiveConfig{}, invalid(err)
	}
	xlsxOut, err := outputPath(cwdAbs, root, cli.XLSXOut, false)
	if err != nil {
		return EffectiveConfig{}, invalid(err)
	}

	return EffectiveConfig{
		Root:         root,
		Exclude:      cleanList(fc.Exclude),
		Ignore:       cleanList(fc.Ignore),
		OrphanExempt: cleanList(fc.OrphanExempt),
		// 范围建议 [1, 64]；超出截断。
		Concurrency: clamp(concurrency, 1, 64),
		LogLevel:    logLevel,
		LogFormat:   logFormat,
		Lint:        lint,
		Video:       video,
		Taxonomy:    tax,
		JSONOut:     jsonOut,
		XLSXOut:     xlsxOut,
	}, nil
}

// choice 取 CLI 值（非空时）或配置文件值，小写后必须落在 allowed 中。
func choice(key, fileVal, cliVal string, allowed ...string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(fileVal))
	if c := strings.ToLower(strings.TrimSpace(cliVal)); c != "" {
		v = c
	}
	if slices.Contains(allowed, v) {
		return v, nil
	}
	return "", fmt.Errorf("%s 只能是 %s，实际是 %q", key, strings.Join(allowed, "/"), v)
}

func orDefault[T int | float64 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// outputPath 把报告路径解析为绝对路径，并拒绝落在站点目录内的路径（审计不写站点）。
// allowStdout 时 "-" 原样返回。
func outputPath(cwdAbs, root, p string, allowStdout bool) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" || (allowStdout && p == StdoutOut) {
		return p, nil
	}
	abs := absCleanFrom(cwdAbs, p)
	if err := fsx.GuardOutside(root, abs); err != nil {
		return "", err
	}
	return abs, nil
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("video.endpoint 不能为空")
	}
	if !strings.Contains(endpoint, "{id}") {
		return fmt.Errorf("video.endpoint 必须包含 {id} 占位符：%q", endpoint)
	}
	u, err := url.Parse(strings.ReplaceAll(endpoint, "{id}", "x"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("video.endpoint 无效：%q", endpoint)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("video.endpoint 必须是 http/https：%q", endpoint)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("exclude", DefaultExclude)
	v.SetDefault("ignore", []string{})
	v.SetDefault("orphan_exempt", DefaultOrphanExempt)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)
	v.SetDefault("taxonomy_file", "")

	v.SetDefault("lint.max_line_length", DefaultMaxLineLength)
	v.SetDefault("lint.max_inline_styles", DefaultMaxInlineStyles)
	v.SetDefault("lint.max_head_scripts", DefaultMaxHeadScripts)

	v.SetDefault("video.skip", false)
	v.SetDefault("video.endpoint", DefaultVideoEndpoint)
	v.SetDefault("video.concurrency", DefaultVideoConcurrency)
	v.SetDefault("video.rate_per_second", DefaultVideoRate)
	v.SetDefault("video.timeout", DefaultVideoTimeout)
	v.SetDefault("video.max_retries", DefaultVideoMaxRetries)
	v.SetDefault("video.base_backoff", DefaultVideoBaseBackoff)
	v.SetDefault("video.max_backoff", DefaultVideoMaxBackoff)
	v.SetDefault("video.max_videos", 0)
	v.SetDefault("video.cache_dir", "")
	return v
}

// readFileConfig 读取并解析 YAML 配置文件（叠加内置默认值）。
// 返回值 used 是实际读取的文件路径；文件不存在且非必需时为空串。
func readFileConfig(path string, required bool) (fc FileConfig, used string, err error) {
	v := newViper()

	fi, statErr := os.Stat(path)
	switch {
	case statErr == nil && fi.IsDir():
		return FileConfig{}, "", &Error{Code: ErrCodeInvalid, Path: path, Err: fmt.Errorf("配置路径是目录")}
	case statErr == nil:
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return FileConfig{}, "", &Error{Code: ErrCodeInvalid, Path: path, Err: err}
		}
		used = path
	case os.IsNotExist(statErr):
		if required {
			return FileConfig{}, "", &Error{Code: ErrCodeNotFound, Path: path, Err: os.ErrNotExist}
		}
	default:
		return FileConfig{}, "", &Error{Code: ErrCodeInvalid, Path: path, Err: statErr}
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&fc, hook); err != nil {
		return FileConfig{}, "", &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	return fc, used, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

func cleanList(xs []string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if x = strings.TrimSpace(x); x != "" {
			out = append(out, x)
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
