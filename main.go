package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	cvere "cvere/vm"
)

var (
	monitorMode = flag.Bool("monitor", false, "Drop into the interactive monitor instead of running")
	maxCycles   = flag.Uint64("cycles", 1_000_000, "Cycle budget for run mode")
	loadBase    = flag.Uint64("base", 0, "Load address for the program image")
	traceRun    = flag.Bool("trace", false, "Print a trace record per executed instruction")
)

func main() {
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Println("Usage: cvere [-monitor] [-trace] [-cycles n] [-base addr] <image 1> ... [image N]")
		return
	}

	words, err := cvere.ParseHexFiles(files...)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	vm := cvere.NewVirtualMachine()
	vm.InstallDefaultSyscalls(os.Stdin, os.Stdout)

	if err := vm.LoadProgram(words, cvere.Word(*loadBase)); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if *monitorMode {
		runMonitor(vm)
		return
	}

	var sink func(cvere.TraceRecord)
	if *traceRun {
		sink = printTraceRecord
	}

	cycles, err := vm.Trace(*maxCycles, sink)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Printf("halted after %d cycles\n", cycles)
}

func printTraceRecord(rec cvere.TraceRecord) {
	fmt.Printf("%8d  0x%04x  %04x  %-24s sr=%04b\n", rec.Cycle, rec.PC, rec.Word, rec.Instr, rec.SR)
}

// runMonitor is the interactive single-step front end: next/run/break
// plus register and memory inspection.
func runMonitor(vm *cvere.VM) {
	fmt.Print("Commands:\n\tn or next: execute next instruction\n\tr or run [n]: run (with optional cycle budget)\n\tb or break <addr>: toggle breakpoint\n\tregs: dump machine state\n\tmem <addr> [n]: dump memory words\n\tq or quit\n\n")
	fmt.Print(vm.DumpState())

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	breakpoints := make(map[cvere.Word]struct{})

	for {
		input, err := line.Prompt("-> ")
		if err != nil {
			return
		}
		input = strings.ToLower(strings.TrimSpace(input))
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		cmd, arg, _ := strings.Cut(input, " ")
		switch cmd {
		case "q", "quit":
			return

		case "n", "next":
			if _, err := vm.Step(); err != nil {
				fmt.Println(err)
			}
			fmt.Print(vm.DumpState())

		case "r", "run":
			budget := uint64(1_000_000)
			if arg != "" {
				if budget, err = strconv.ParseUint(arg, 0, 64); err != nil {
					fmt.Println("bad cycle budget:", arg)
					continue
				}
			}
			runToBreakpoint(vm, budget, breakpoints)
			fmt.Print(vm.DumpState())

		case "b", "break":
			addr, err := strconv.ParseUint(arg, 0, 16)
			if err != nil {
				fmt.Println("bad breakpoint address:", arg)
				continue
			}
			a := cvere.Word(addr)
			if _, ok := breakpoints[a]; ok {
				delete(breakpoints, a)
				fmt.Printf("breakpoint cleared at 0x%04x\n", a)
			} else {
				breakpoints[a] = struct{}{}
				fmt.Printf("breakpoint set at 0x%04x\n", a)
			}

		case "regs":
			fmt.Print(vm.DumpState())

		case "mem":
			addrStr, cntStr, _ := strings.Cut(arg, " ")
			addr, err := strconv.ParseUint(addrStr, 0, 16)
			if err != nil {
				fmt.Println("bad address:", addrStr)
				continue
			}
			count := uint64(8)
			if cntStr != "" {
				if count, err = strconv.ParseUint(cntStr, 0, 16); err != nil {
					fmt.Println("bad count:", cntStr)
					continue
				}
			}
			for i := uint64(0); i < count; i++ {
				a := cvere.Word(addr + i)
				fmt.Printf("0x%04x: 0x%04x\n", a, vm.Peek(a))
			}

		default:
			fmt.Println("unknown command:", cmd)
		}
	}
}

func runToBreakpoint(vm *cvere.VM, budget uint64, breakpoints map[cvere.Word]struct{}) {
	for n := uint64(0); n < budget; n++ {
		res, err := vm.Step()
		if err != nil {
			fmt.Println(err)
			return
		}
		if res == cvere.Halted {
			return
		}
		if _, ok := breakpoints[vm.PC()]; ok {
			fmt.Printf("breakpoint at 0x%04x\n", vm.PC())
			return
		}
	}

	fmt.Printf("cycle budget exhausted at pc=0x%04x\n", vm.PC())
}
