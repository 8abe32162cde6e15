package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"go.uber.org/zap"

	"github.com/John-Robertt/wormruler/internal/app/run"
	"github.com/John-Robertt/wormruler/internal/config"
	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/infra/ffmpeg"
	"github.com/John-Robertt/wormruler/internal/infra/fsx"
	"github.com/John-Robertt/wormruler/internal/infra/logx"
	"github.com/John-Robertt/wormruler/internal/infra/metrics"
	"github.com/John-Robertt/wormruler/internal/naming"
	"github.com/John-Robertt/wormruler/internal/roi"
)

// flags are the options every sub-command accepts. Numeric values are strings so that an
// absent flag can be told apart from an explicit zero.
type flags struct {
	root        *string
	gamma       *string
	framerate   *string
	pulseStart  *string
	override    *bool
	roi         *string
	logLevel    *string
	metricsFile *string
}

func addFlags(c *argparse.Command) *flags {
	return &flags{
		root:        c.String("r", "root", &argparse.Options{Help: "Root directory holding one folder per condition (default: current directory)"}),
		gamma:       c.String("g", "gamma", &argparse.Options{Help: "Threshold scale for background correction, roughly 0.7 to 1.3"}),
		framerate:   c.String("f", "framerate", &argparse.Options{Help: "Frames per second of the recordings (default 30)"}),
		pulseStart:  c.String("p", "pulse-start", &argparse.Options{Help: "Pulse start in seconds; frames before it form the baseline"}),
		override:    c.Flag("o", "override", &argparse.Options{Help: "Skeletonize every sample again, even when its raw lengths are complete"}),
		roi:         c.String("", "roi", &argparse.Options{Help: "Region of interest x,y,w,h used when none is stored yet"}),
		logLevel:    c.String("", "log-level", &argparse.Options{Help: "debug, info, warn or error"}),
		metricsFile: c.String("", "metrics-file", &argparse.Options{Help: "Write Prometheus metrics to this file after the run"}),
	}
}

// command is one sub-command and the stages it runs.
type command struct {
	cmd    *argparse.Command
	flags  *flags
	stages []domain.Stage
}

func main() {
	os.Exit(realMain(os.Args))
}

func realMain(args []string) int {
	parser := argparse.NewParser("wormruler", "Measure relative body length of worms from assay recordings")

	cmds := []command{
		newCommand(parser, "all", "Correct, select the ROI, skeletonize, normalize and aggregate", run.StagesAll...),
		newCommand(parser, "correct", "Write <sample>_bw.gif binary videos (needs --gamma)", domain.StageCorrect),
		newCommand(parser, "roi", "Select and store the region of interest of the root", domain.StageROI),
		newCommand(parser, "skeletonize", "Write <sample>_raw_lengths.txt and <sample>_skel.gif", domain.StageSkeletonize),
		newCommand(parser, "normalize", "Write <sample>_data.txt (needs --pulse-start)", domain.StageNormalize),
		newCommand(parser, "aggregate", "Write <condition>_results.xlsx per condition", domain.StageAggregate),
	}
	roiCmd := cmds[2].cmd
	reset := roiCmd.Flag("", "reset", &argparse.Options{Help: "Delete the stored region of interest before selecting a new one"})

	if err := parser.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		return 2
	}

	var sel *command
	for i := range cmds {
		if cmds[i].cmd.Happened() {
			sel = &cmds[i]
			break
		}
	}
	if sel == nil {
		fmt.Fprint(os.Stderr, parser.Usage(nil))
		return 2
	}

	cli, err := cliArgs(sel.flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid argument: %v\n\n", err)
		fmt.Fprint(os.Stderr, sel.cmd.Usage(nil))
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read current directory: %v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, nil, cli)
	if err != nil {
		emitReport(reportForConfigError(cwdAbs, err))
		return 1
	}

	logger, err := logx.New(eff.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if sel.cmd == roiCmd && *reset {
		if err := roi.New(eff.Root).Reset(); err != nil {
			logger.Error("reset roi", zap.Error(err))
			return 1
		}
		logger.Info("stored roi deleted", zap.String("path", naming.ROIPath(eff.Root)))
	}

	picker, err := pickerFor(*sel.flags.roi, eff.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid argument: %v\n", err)
		return 2
	}

	progressW, interactive := pickProgressWriter()
	m := metrics.New()
	deps := run.Deps{
		Raw:     ffmpeg.NewSource(eff.FFmpeg, eff.FFprobe, logger),
		Picker:  picker,
		Logger:  logger,
		Metrics: m,
	}
	if interactive {
		deps.Observer = newProgressUI(progressW)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rr, runErr := run.Execute(ctx, eff, deps, sel.stages...)

	code := 0
	if runErr != nil || rr.Summary.Failed > 0 {
		code = 1
	}
	// A rejected configuration leaves the tree untouched; the report only goes to stdout.
	if !rejected(runErr) {
		if err := writeReportFile(eff.Root, rr); err != nil {
			logger.Error("write run report", zap.Error(err))
			code = 1
		}
		if eff.MetricsFile != "" {
			if err := m.WriteTextfile(eff.MetricsFile); err != nil {
				logger.Error("write metrics", zap.String("path", eff.MetricsFile), zap.Error(err))
				code = 1
			}
		}
	}

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff)
	}
	return code
}

func newCommand(p *argparse.Parser, name, help string, stages ...domain.Stage) command {
	c := p.NewCommand(name, help)
	return command{cmd: c, flags: addFlags(c), stages: stages}
}

// cliArgs converts the parsed flags. An empty string means the flag was not given.
func cliArgs(f *flags) (config.CLIArgs, error) {
	cli := config.CLIArgs{
		Root:        *f.root,
		Override:    *f.override,
		OverrideSet: *f.override,
		LogLevel:    *f.logLevel,
		MetricsFile: *f.metricsFile,
	}
	if s := strings.TrimSpace(*f.gamma); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return config.CLIArgs{}, fmt.Errorf("--gamma %q is not a number", s)
		}
		cli.Gamma, cli.GammaSet = v, true
	}
	if s := strings.TrimSpace(*f.framerate); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return config.CLIArgs{}, fmt.Errorf("--framerate %q is not an integer", s)
		}
		cli.Framerate, cli.FramerateSet = v, true
	}
	if s := strings.TrimSpace(*f.pulseStart); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return config.CLIArgs{}, fmt.Errorf("--pulse-start %q is not an integer number of seconds", s)
		}
		cli.PulseStart, cli.PulseStartSet = v, true
	}
	return cli, nil
}

// pickerFor returns a fixed rectangle for --roi, the terminal prompt when stdin is a
// terminal, and nil otherwise (the run then needs a stored ROI).
func pickerFor(flag, root string) (roi.Picker, error) {
	if s := strings.TrimSpace(flag); s != "" {
		r, err := roi.ParseFlag(s)
		if err != nil {
			return nil, err
		}
		return roi.Fixed(r), nil
	}
	if isTTY(os.Stdin) {
		return &terminalPicker{in: os.Stdin, out: os.Stderr, dir: root}, nil
	}
	return nil, nil
}

func emitReport(rr domain.RunReport) {
	summary := fmt.Sprintf("done: processed=%d skipped=%d failed=%d",
		rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed,
	)
	if isTTY(os.Stdout) {
		fmt.Fprintln(os.Stdout, summary)
		for _, st := range rr.Stages {
			for _, it := range st.Items {
				if it.Status != domain.StatusFailed {
					continue
				}
				fmt.Fprintf(os.Stderr, "%s %s %s: %s\n", st.Stage, it.Unit, it.ErrorCode, it.ErrorMsg)
			}
			if st.Error != "" {
				fmt.Fprintf(os.Stderr, "%s stopped: %s\n", st.Stage, st.Error)
			}
		}
		return
	}

	// stdout is not a terminal: it carries exactly one RunReport JSON.
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(os.Stderr, summary)
}

func reportForConfigError(cwdAbs string, err error) domain.RunReport {
	now := time.Now().UTC()
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr := domain.RunReport{
		Root:       cwdAbs,
		StartedAt:  now,
		FinishedAt: now,
		Stages: []domain.StageReport{{
			Stage: "config",
			Error: err.Error(),
			Items: []domain.ItemResult{{
				Unit:      "config",
				Status:    domain.StatusFailed,
				ErrorCode: code,
				ErrorMsg:  err.Error(),
			}},
		}},
	}
	rr.Finalize()
	return rr
}

// rejected reports whether the run stopped at configuration validation, before any stage.
func rejected(runErr error) bool {
	return runErr != nil && config.Code(runErr) != ""
}

// writeReportFile stores the report as <root>/<rootname>_report.json.
func writeReportFile(root string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(naming.ReportPath(root), b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// Progress only on a terminal, preferably stderr so stdout keeps the JSON contract.
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "report: %s\n", naming.ReportPath(eff.Root))
	fmt.Fprintf(w, "roi: %s\n", naming.ROIPath(eff.Root))
}
