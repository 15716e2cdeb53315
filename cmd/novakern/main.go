// Command novakern boots the kernel simulation and drives one of
// spec.md §8's concrete scenarios to completion, printing whatever
// the scenario's process wrote to its console fd. Grounded on
// lazydocker's main.go for the flaggy flag-parsing shape; novakern has
// no interactive UI to launch, so there is no tview/gocui app loop to
// adapt, only the boot-and-run sequence.
package main

import (
	"fmt"
	"os"

	"github.com/integrii/flaggy"
	"github.com/sirupsen/logrus"

	"novakern/internal/kernel"
	"novakern/internal/proc"
	"novakern/internal/syscall"
)

var (
	scenario = 1
	debug    = false
)

func main() {
	flaggy.SetName("novakern")
	flaggy.SetDescription("A simulated single-CPU teaching kernel")
	flaggy.Int(&scenario, "s", "scenario", "Which spec.md §8 scenario to run (1-6)")
	flaggy.Bool(&debug, "d", "debug", "Enable debug-level kernel logging")
	flaggy.Parse()

	cfg := kernel.DefaultConfig()
	if debug {
		cfg.LogLevel = logrus.DebugLevel
	}

	sys := kernel.New(cfg, kernel.DefaultImage())
	sys.K.Reg.Add("/bin/pwd", pwdProgram)

	prog, name, err := scenarioProgram(scenario)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	pid, wait, serr := sys.Spawn(name, prog)
	if serr != 0 {
		sys.Log.WithField("errno", serr).Fatal("spawn failed")
	}
	console := sys.K.Table(pid).Fds[1].File.Ops
	wait()
	sys.Shutdown(pid)

	fmt.Print(string(syscall.ConsoleOutputFrom(console)))
}

func scenarioProgram(n int) (proc.Program, string, error) {
	switch n {
	case 1:
		return shellProgram("/bin/pwd"), "/sbin/init", nil
	case 2:
		return helloPipeParent, "/sbin/init", nil
	case 3:
		return etcListProgram, "/sbin/init", nil
	case 4:
		return statCatProgram, "/sbin/init", nil
	case 5:
		return mailboxSelfProgram, "/sbin/init", nil
	case 6:
		return faultParentProgram, "/sbin/init", nil
	default:
		return nil, "", fmt.Errorf("unknown scenario %d (want 1-6)", n)
	}
}
