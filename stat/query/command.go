package query

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/afdtools/afdstats/stat"
)

// Command is the shared query front end of afdstat and afdistat. The flag
// grammar allows an optional numeric value after the axis flags (-d, -h,
// -m, -M, -y), which the flag package cannot express, so arguments are
// parsed by hand.
type Command struct {
	Stdout io.Writer
	Stderr io.Writer

	// Input selects the input (directory) store instead of the output
	// (host) store.
	Input bool

	// Name is the program name used in usage output.
	Name string

	// Version is printed for --version; the release process stamps it.
	Version string
}

// NewCommand returns a query command writing to the standard streams.
func NewCommand(name string, input bool) *Command {
	return &Command{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Input:   input,
		Name:    name,
		Version: "unknown",
	}
}

// Run parses the arguments and executes one query.
func (cmd *Command) Run(args ...string) error {
	opts := Options{
		Input: cmd.Input,
		Axis:  AxisYear,
		Arg:   -1,
		Out:   cmd.Stdout,
		Now:   time.Now,
	}
	var outPath string

	i := 0
	next := func(flag string) (string, error) {
		i++
		if i >= len(args) {
			return "", fmt.Errorf("%s requires a value", flag)
		}
		return args[i], nil
	}
	// optArg consumes the following argument when it is numeric.
	optArg := func() int {
		if i+1 < len(args) {
			if n, err := strconv.Atoi(args[i+1]); err == nil && n >= 0 {
				i++
				return n
			}
		}
		return -1
	}

	for ; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-w":
			v, err := next(arg)
			if err != nil {
				return err
			}
			opts.WorkDir = v
		case "-f":
			v, err := next(arg)
			if err != nil {
				return err
			}
			opts.FilePath = v
		case "-o":
			v, err := next(arg)
			if err != nil {
				return err
			}
			outPath = v
		case "-d":
			opts.Axis, opts.Arg = AxisDay, optArg()
		case "-D":
			opts.Axis, opts.Arg = AxisDaySummary, -1
		case "-h":
			opts.Axis, opts.Arg = AxisHour, optArg()
		case "-H":
			opts.Axis, opts.Arg = AxisHourSummary, -1
		case "-m":
			opts.Axis, opts.Arg = AxisMinute, optArg()
		case "-mr":
			v, err := next(arg)
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("-mr requires a positive minute count, got %q", v)
			}
			opts.Axis, opts.Arg = AxisMinuteRange, n
		case "-M":
			opts.Axis, opts.Arg = AxisMinuteSummary, optArg()
		case "-y":
			opts.Axis, opts.Arg = AxisYear, optArg()
		case "-t":
			opts.Stamp = StampHuman
		case "-tu":
			opts.Stamp = StampEpoch
		case "-C":
			opts.Mode = ModeCSV
		case "-T":
			opts.Mode = ModeTotalsOnly
		case "-N":
			opts.ShowName = true
		case "-n":
			opts.ShowBoth = true
		case "-R":
			opts.RemoteOnly = true
		case "-help", "--help":
			cmd.printUsage()
			return nil
		case "-version", "--version":
			fmt.Fprintf(cmd.Stdout, "%s version %s\n", cmd.Name, cmd.Version)
			return nil
		default:
			if len(arg) > 0 && arg[0] == '-' {
				return fmt.Errorf("unknown option %q", arg)
			}
			opts.Aliases = append(opts.Aliases, arg)
		}
	}

	if !cmd.Input && (opts.ShowName || opts.ShowBoth || opts.RemoteOnly) {
		return fmt.Errorf("-N, -n and -R apply to directory statistics only")
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.Getenv("AFD_WORK_DIR")
	}
	if opts.WorkDir == "" && opts.FilePath == "" {
		return fmt.Errorf("no working directory; use -w or set AFD_WORK_DIR")
	}
	if cmd.Input && opts.WorkDir != "" {
		opts.DirArea = stat.DirAreaPath(opts.WorkDir)
	}

	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		opts.Out = f
	}

	return Run(opts)
}

func (cmd *Command) printUsage() {
	fmt.Fprintf(cmd.Stdout, `Usage: %s [options] [alias ...]

Shows transfer statistics. Without an axis option the totals of the
current year are shown per row.

Options:
  -w <dir>    working directory (default $AFD_WORK_DIR)
  -f <path>   read this statistics file instead of the current year's
  -o <path>   write the report to this file instead of stdout
  -d [N]      day statistics, current day or N days ago
  -D          per-day summary over the year so far
  -h [N]      hour statistics, last 24 hours or N hours ago
  -H          per-hour summary over the last 24 hours
  -m [N]      minute statistics, last hour or N minutes ago
  -mr N       sum of the last N minutes (max 60)
  -M [N]      per-minute summary, last hour or last N minutes
  -y [N]      year statistics, current year or N years back (archive)
  -t          print a human readable timestamp header
  -tu         print an epoch timestamp header
  -C          CSV output, semicolon separated
  -T          print bare totals only
  -N          show the full directory name instead of the alias
  -n          show both alias and directory name
  -R          only remote directories
`, cmd.Name)
}
