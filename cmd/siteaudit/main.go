package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/John-Robertt/siteaudit/internal/app/audit"
	"github.com/John-Robertt/siteaudit/internal/config"
	"github.com/John-Robertt/siteaudit/internal/logging"
	"github.com/John-Robertt/siteaudit/internal/report"
	"github.com/John-Robertt/siteaudit/internal/scan"
)

// 退出码。
const (
	exitOK       = 0
	exitFindings = 1
	exitFatal    = 2
)

const (
	flagRoot           = "root"
	flagConfig         = "config"
	flagSkipVideoCheck = "skip-video-check"
	flagMaxVideos      = "max-videos"
	flagJSONOut        = "json-out"
	flagXLSXOut        = "xlsx-out"
	flagConcurrency    = "concurrency"
	flagLogLevel       = "log-level"
	flagLogFormat      = "log-format"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run 是可测试的入口：返回退出码，不直接调用 os.Exit。
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	code := exitOK
	root := newRootCommand(stdout, stderr, &code)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "错误：%v\n", err)
		return exitFatal
	}
	return code
}

func newRootCommand(stdout, stderr io.Writer, code *int) *cobra.Command {
	root := &cobra.Command{
		Use:           "siteaudit",
		Short:         "静态站点完整性审计",
		Long:          "siteaudit 扫描静态站点目录，报告失效的内部链接、孤儿文件、结构问题与不匹配的嵌入视频。不会修改站点内的任何文件。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newAuditCommand(stdout, stderr, code))
	return root
}

func newAuditCommand(stdout, stderr io.Writer, code *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "audit [root]",
		Short:   "审计站点并输出报告",
		Example: "siteaudit audit ./public --json-out report.json --skip-video-check",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := cliArgs(cmd.Flags(), args)
			if err != nil {
				return err
			}
			*code = runAudit(cmd.Context(), cli, stdout, stderr)
			return nil
		},
	}
	bindAuditFlags(cmd.Flags())
	return cmd
}

func bindAuditFlags(fs *pflag.FlagSet) {
	fs.String(flagRoot, "", "站点根目录（默认当前目录；也可作为位置参数）")
	fs.String(flagConfig, "", "配置文件路径（默认 <root>/"+config.DefaultConfigName+"）")
	fs.Bool(flagSkipVideoCheck, false, "跳过视频元数据校验（不发起任何网络请求）")
	fs.Int(flagMaxVideos, 0, "最多查询的不同视频数；0 表示不限制")
	fs.String(flagJSONOut, "", "完整 JSON 报告路径；\"-\" 表示写 stdout")
	fs.String(flagXLSXOut, "", "XLSX 报告路径")
	fs.Int(flagConcurrency, config.DefaultConcurrency, "文件分析并发数（1..64）")
	fs.String(flagLogLevel, "", "日志级别：debug/info/warn/error")
	fs.String(flagLogFormat, "", "日志格式：console/structured")
}

// cliArgs 把 flag 转成 config.CLIArgs；只有显式指定的 flag 才覆盖配置文件。
func cliArgs(fs *pflag.FlagSet, args []string) (config.CLIArgs, error) {
	var a config.CLIArgs
	var err error
	if a.Root, err = fs.GetString(flagRoot); err != nil {
		return a, err
	}
	if len(args) == 1 {
		if fs.Changed(flagRoot) && a.Root != args[0] {
			return a, fmt.Errorf("重复的 root：%q 与 %q", a.Root, args[0])
		}
		a.Root = args[0]
	}
	if a.ConfigFile, err = fs.GetString(flagConfig); err != nil {
		return a, err
	}
	if a.SkipVideoCheck, err = fs.GetBool(flagSkipVideoCheck); err != nil {
		return a, err
	}
	a.SkipVideoCheckSet = fs.Changed(flagSkipVideoCheck)
	if a.MaxVideos, err = fs.GetInt(flagMaxVideos); err != nil {
		return a, err
	}
	a.MaxVideosSet = fs.Changed(flagMaxVideos)
	if a.Concurrency, err = fs.GetInt(flagConcurrency); err != nil {
		return a, err
	}
	a.ConcurrencySet = fs.Changed(flagConcurrency)
	if a.JSONOut, err = fs.GetString(flagJSONOut); err != nil {
		return a, err
	}
	if a.XLSXOut, err = fs.GetString(flagXLSXOut); err != nil {
		return a, err
	}
	if a.LogLevel, err = fs.GetString(flagLogLevel); err != nil {
		return a, err
	}
	if a.LogFormat, err = fs.GetString(flagLogFormat); err != nil {
		return a, err
	}
	return a, nil
}

func runAudit(ctx context.Context, cli config.CLIArgs, stdout, stderr io.Writer) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return exitFatal
	}

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		fmt.Fprintf(stderr, "配置错误（%s）：%v\n", config.Code(err), err)
		return exitFatal
	}

	log, err := logging.NewLogger(eff.LogLevel, eff.LogFormat)
	if err != nil {
		fmt.Fprintf(stderr, "初始化日志失败：%v\n", err)
		return exitFatal
	}
	defer func() { _ = log.Sync() }()
	if eff.ConfigFileUsed != "" {
		log.Debug("使用配置文件", zap.String("path", eff.ConfigFileUsed))
	}

	var obs audit.Observer
	var ui *progressUI
	if w, ok := pickProgressWriter(stderr); ok {
		ui = newProgressUI(w)
		obs = ui
	}

	r, err := audit.Execute(ctx, eff, audit.Deps{Log: log, Observer: obs})
	if ui != nil {
		ui.Stop()
	}
	if err != nil {
		var re *scan.RootError
		if errors.As(err, &re) {
			fmt.Fprintf(stderr, "站点根目录不可用：%v\n", err)
		} else {
			fmt.Fprintf(stderr, "审计失败：%v\n", err)
		}
		return exitFatal
	}

	// --json-out - 时 stdout 只输出 JSON，摘要改写到 stderr。
	summaryW := stdout
	if eff.JSONOut == report.StdoutPath {
		summaryW = stderr
	}
	if err := report.RenderConsole(summaryW, r, report.ConsoleOptions{}); err != nil {
		log.Warn("输出摘要失败", zap.Error(err))
	}

	if eff.JSONOut != "" {
		if err := report.WriteJSON(eff.JSONOut, stdout, r); err != nil {
			fmt.Fprintf(stderr, "写入 JSON 报告失败：%v\n", err)
			return exitFatal
		}
	}
	if eff.XLSXOut != "" {
		if err := report.WriteXLSX(eff.XLSXOut, r); err != nil {
			fmt.Fprintf(stderr, "写入 XLSX 报告失败：%v\n", err)
			return exitFatal
		}
	}
	if ui != nil {
		emitLocations(ui.w, eff)
	}

	if r.Failed() {
		return exitFindings
	}
	return exitOK
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// pickProgressWriter：进度输出只在 stderr 是交互终端时启用。
func pickProgressWriter(stderr io.Writer) (io.Writer, bool) {
	f, ok := stderr.(*os.File)
	if !ok || !isTTY(f) {
		return nil, false
	}
	return f, true
}

// emitLocations 告诉用户报告写到了哪里（只在交互终端输出）。
func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	var outs []string
	if eff.JSONOut != "" && eff.JSONOut != report.StdoutPath {
		outs = append(outs, "json="+eff.JSONOut)
	}
	if eff.XLSXOut != "" {
		outs = append(outs, "xlsx="+eff.XLSXOut)
	}
	if len(outs) > 0 {
		fmt.Fprintf(w, "报告：%s\n", strings.Join(outs, " "))
	}
}
