package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/eaglevm/eaglevm/internal/compiler"
	"github.com/eaglevm/eaglevm/internal/disasm"
	"github.com/eaglevm/eaglevm/internal/ir"
	"github.com/eaglevm/eaglevm/internal/lift"
	"github.com/eaglevm/eaglevm/internal/logging"
)

// version is the CLI's own version string; there is no release process to
// thread a build-time value through yet, so it is a plain constant.
const version = "0.1.0-dev"

func main() {
	os.Exit(doMain(os.Stdout, os.Stderr))
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut, stdErr io.Writer) int {
	flag.CommandLine.SetOutput(stdErr)

	var help bool
	flag.BoolVar(&help, "h", false, "Prints usage.")
	flag.Parse()

	if help || flag.NArg() == 0 {
		printUsage(stdErr)
		return 0
	}

	switch flag.Arg(0) {
	case "compile":
		return doCompile(flag.Args()[1:], stdOut, stdErr)
	case "dump-ir":
		return doDumpIR(flag.Args()[1:], stdOut, stdErr)
	case "version":
		fmt.Fprintln(stdOut, version)
		return 0
	default:
		fmt.Fprintln(stdErr, "invalid command")
		printUsage(stdErr)
		return 1
	}
}

type commonFlags struct {
	entryRVA  uint64
	binaryRVA uint64
	verbose   bool
}

func bindCommonFlags(flags *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	flags.Var(hexVar{&c.entryRVA}, "entry", "RVA of the compilation entry point.")
	flags.Var(hexVar{&c.binaryRVA}, "base", "RVA the input bytes are loaded at.")
	flags.BoolVar(&c.verbose, "v", false, "Enables verbose logging.")
	return c
}

// hexVar parses 0x-prefixed or plain decimal flag values into a uint64,
// the way an RVA is most naturally typed on a command line.
type hexVar struct{ dst *uint64 }

func (h hexVar) String() string {
	if h.dst == nil {
		return "0"
	}
	return fmt.Sprintf("%#x", *h.dst)
}

func (h hexVar) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return err
	}
	*h.dst = v
	return nil
}

func doCompile(args []string, stdOut, stdErr io.Writer) int {
	flags := flag.NewFlagSet("compile", flag.ExitOnError)
	flags.SetOutput(stdErr)
	common := bindCommonFlags(flags)

	var seed int64
	var numVMs int
	var outPath string
	flags.Int64Var(&seed, "seed", 1, "Seed driving VM assignment and register scattering.")
	flags.IntVar(&numVMs, "vms", 1, "Number of independently laid out VM instances.")
	flags.StringVar(&outPath, "o", "", "Output path prefix; each VM is written to <prefix>.vm<N>.bin.")

	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to input binary")
		printCompileUsage(stdErr, flags)
		return 1
	}

	code, err := os.ReadFile(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(stdErr, "reading input: %v\n", err)
		return 1
	}

	out, err := compiler.Compile(compiler.Input{
		Code:      code,
		BinaryRVA: common.binaryRVA,
		BinaryEnd: common.binaryRVA + uint64(len(code)),
		EntryRVA:  common.entryRVA,
		Seed:      seed,
		NumVMs:    numVMs,
		Logger:    logging.New(stdErr, common.verbose),
	})
	if err != nil {
		fmt.Fprintf(stdErr, "compile: %v\n", err)
		return 1
	}

	for _, vm := range out.VMs {
		fmt.Fprintf(stdOut, "vm %d: %d bytes, entry %#x\n", vm.ID, len(vm.Code), vm.Entry)
		if outPath == "" {
			continue
		}
		path := fmt.Sprintf("%s.vm%d.bin", outPath, vm.ID)
		if err := os.WriteFile(path, vm.Code, 0o644); err != nil {
			fmt.Fprintf(stdErr, "writing %s: %v\n", path, err)
			return 1
		}
	}
	return 0
}

func doDumpIR(args []string, stdOut, stdErr io.Writer) int {
	flags := flag.NewFlagSet("dump-ir", flag.ExitOnError)
	flags.SetOutput(stdErr)
	common := bindCommonFlags(flags)

	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to input binary")
		printDumpIRUsage(stdErr, flags)
		return 1
	}

	code, err := os.ReadFile(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(stdErr, "reading input: %v\n", err)
		return 1
	}

	d := disasm.New(code, common.binaryRVA, common.binaryRVA+uint64(len(code)))
	if _, err := d.GenerateBlocks(common.entryRVA); err != nil {
		fmt.Fprintf(stdErr, "disassemble: %v\n", err)
		return 1
	}

	g := ir.NewGraph()
	entry, err := lift.New(d.Graph(), g).LiftAll(common.entryRVA)
	if err != nil {
		fmt.Fprintf(stdErr, "lift: %v\n", err)
		return 1
	}

	for _, b := range g.Blocks() {
		marker := ""
		if b == entry {
			marker = " (entry)"
		}
		fmt.Fprintf(stdOut, "block %d%s:\n", b.ID, marker)
		for _, cmd := range b.Commands {
			fmt.Fprintf(stdOut, "  %s\n", describeCommand(cmd))
		}
		fmt.Fprintf(stdOut, "  exit: %s\n", describeExit(b.Exit))
	}
	return 0
}

func describeCommand(c ir.Command) string {
	switch c.Kind {
	case ir.KindPushImm:
		return fmt.Sprintf("push_imm.%d %#x", c.Width, c.Imm)
	case ir.KindPushReg:
		return fmt.Sprintf("push_reg.%d %d", c.Width, c.Reg)
	case ir.KindPopReg:
		return fmt.Sprintf("pop_reg.%d %d", c.Width, c.Reg)
	case ir.KindMemRead:
		return fmt.Sprintf("mem_read.%d", c.Width)
	case ir.KindMemWrite:
		return fmt.Sprintf("mem_write.%d", c.Width)
	case ir.KindArithmetic:
		return fmt.Sprintf("arith.%d op=%d", c.Width, c.Op)
	case ir.KindCompare:
		return fmt.Sprintf("compare.%d", c.Width)
	case ir.KindFlagsUpdate:
		return fmt.Sprintf("flags_update defined=%#x", c.Defined)
	case ir.KindVMExit:
		return "vm_exit"
	default:
		return c.Kind.String()
	}
}

func describeExit(e ir.Exit) string {
	switch e.Class {
	case ir.ExitFallThrough:
		return fmt.Sprintf("fall_through -> %s", targetStr(e, 0))
	case ir.ExitDirectBranch:
		return fmt.Sprintf("branch -> %s", targetStr(e, 0))
	case ir.ExitConditionalPair:
		return fmt.Sprintf("branch_cond[%s] -> %s, %s", e.FlagExpr.Cond, targetStr(e, 0), targetStr(e, 1))
	case ir.ExitIndirect:
		return "indirect"
	case ir.ExitReturn:
		return "return"
	default:
		return "?"
	}
}

func targetStr(e ir.Exit, i int) string {
	if i >= len(e.Targets) {
		return "?"
	}
	if e.Targets[i] != nil {
		return fmt.Sprintf("block %d", e.Targets[i].ID)
	}
	return fmt.Sprintf("external %#x", e.ExternalRVAs[i])
}

func printUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "eaglevm CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  eaglevm <command>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Commands:")
	fmt.Fprintln(stdErr, "  compile\tCompiles an input binary into one or more VM-obfuscated code blobs")
	fmt.Fprintln(stdErr, "  dump-ir\tPrints the lifted IR for an input binary without compiling it")
	fmt.Fprintln(stdErr, "  version\tDisplays the version of the eaglevm CLI")
}

func printCompileUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "Usage:\n  eaglevm compile <options> <path to input binary>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}

func printDumpIRUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "Usage:\n  eaglevm dump-ir <options> <path to input binary>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}
