// Command yak is the operator shell for a fleet of long-running data
// service processes: one configuration file describes every managed
// process, yak starts, stops, inspects and attaches to them.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/exxeleron/yak/internal/manager"
	"github.com/exxeleron/yak/internal/osutil"
	"github.com/exxeleron/yak/internal/status"
	"github.com/exxeleron/yak/pkg/cmdline"
)

const defaultInfoFormat = "uid:18#pid:5#port:6#status:11#started:19#stopped:19#lastOperation:10"

// errFailed marks a batch in which at least one component failed; the
// details were already printed, only the exit code is left to set.
var errFailed = errors.New("operation failed")

type options struct {
	config           string
	status           string
	logFile          string
	viewer           string
	delimiter        string
	format           string
	filter           string
	arguments        string
	ignoreEmptyFiles bool
}

type app struct {
	opts  options
	log   *zap.Logger
	store *status.Store
	mgr   *manager.Manager
}

// open wires the manager lazily so flag parsing errors never touch the
// status database.
func (a *app) open() error {
	a.log = newLogger(a.opts.logFile)

	store, err := status.Open(a.opts.status, a.log)
	if err != nil {
		return err
	}
	a.store = store

	mgr, err := manager.New(a.opts.config, store, osutil.New(), a.log)
	if err != nil {
		return err
	}
	a.mgr = mgr
	return nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.log != nil {
		a.log.Sync()
	}
}

// newLogger builds the operations log: rotated file output with the
// invoking user stamped on every entry.
func newLogger(path string) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   time.Now().Format(path),
		MaxSize:    10, // MB
		MaxBackups: 10,
	})
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, zap.InfoLevel)

	return zap.New(core).With(
		zap.Int("pid", os.Getpid()),
		zap.String("user", osutil.New().Username()),
	)
}

func main() {
	// Ctrl-C is for the supervised processes, never for an in-flight batch:
	// half-performed start/stop sequences leave the fleet in a state the
	// operator did not ask for.
	signal.Ignore(os.Interrupt)

	a := &app{}

	root := &cobra.Command{
		Use:           "yak [command] [component|group ...]",
		Short:         "process supervisor and operator shell",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.opts.config, "config", "c", "yak.cfg", "components configuration file")
	pf.StringVarP(&a.opts.status, "status", "s", "yak.status", "components status file")
	pf.StringVarP(&a.opts.logFile, "log", "l", "yak-2006.01.02.log", "operations log (Go time layout)")
	pf.StringVarP(&a.opts.viewer, "viewer", "v", "", "external file viewer")
	pf.StringVarP(&a.opts.delimiter, "delimiter", "d", " ", "column delimiter for the info command")
	pf.StringVarP(&a.opts.format, "format", "f", defaultInfoFormat, "display format for the info command")
	pf.BoolVar(&a.opts.ignoreEmptyFiles, "ignore-empty-files", false,
		"ignore empty/non-existing files in summary for out/err/log commands")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		bindEnv(cmd.Flags())
		return nil
	}

	root.AddCommand(
		a.infoCmd(), a.detailsCmd(),
		a.startCmd(), a.stopCmd(), a.killCmd(), a.restartCmd(), a.interruptCmd(),
		a.consoleCmd(),
		a.fileCmd("out", "show component stdout", func(uid string) string { return a.mgr.Process(uid).Record().Stdout }),
		a.fileCmd("err", "show component stderr", func(uid string) string { return a.mgr.Process(uid).Record().Stderr }),
		a.fileCmd("log", "show component logfile", func(uid string) string { return a.mgr.Process(uid).LogFile() }),
	)

	// YAK_OPTS carries standing options, same as putting them before the
	// command on every invocation.
	args := append(splitOpts(os.Getenv("YAK_OPTS")), os.Args[1:]...)
	root.SetArgs(args)

	err := root.Execute()
	a.close()
	if err != nil {
		if errors.Is(err, errFailed) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		printErrChain(err)
		os.Exit(1)
	}
}

// bindEnv lets YAK_CONFIG, YAK_STATUS, ... stand in for flags the user did
// not pass explicitly.
func bindEnv(flags *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix("yak")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = f.Value.Set(v.GetString(f.Name))
		}
	})
}

// splitOpts tokenises YAK_OPTS and strips one level of quoting, so quoted
// values survive the round trip through the environment.
func splitOpts(s string) []string {
	tokens := cmdline.Split(s)
	for i, t := range tokens {
		if len(t) >= 2 && ((t[0] == '"' && t[len(t)-1] == '"') || (t[0] == '\'' && t[len(t)-1] == '\'')) {
			tokens[i] = t[1 : len(t)-1]
		}
	}
	return tokens
}
