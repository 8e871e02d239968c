// recdump walks the records of an unformatted sequential file and prints
// each record's number, file offset, and payload length. With -verify it
// only checks the framing, printing nothing but the final count. Corrupt
// framing (a length header that disagrees with its trailing footer, or a
// truncated record) is reported with a non-zero exit status.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pmccormick/f18/pkg/config"
	fio "github.com/pmccormick/f18/pkg/io"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: recdump [-verify] [-config file.yml] path")
}

func run(args []string) int {
	verify := false
	configPath := ""
	path := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--help", "-h":
			printUsage()
			return 0
		case "-verify", "--verify":
			verify = true
		case "-config", "--config":
			i++
			if i >= len(args) {
				printUsage()
				return 1
			}
			configPath = args[i]
		default:
			if path != "" {
				printUsage()
				return 1
			}
			path = args[i]
		}
	}
	if path == "" {
		printUsage()
		return 1
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	cfg, err := config.FromEnv(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := config.Apply(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	unit := fio.NewUnitNumber()
	open := fio.BeginOpenUnit(unit, "recdump", 0)
	open.EnableHandlers(true, false, false, false, false)
	open.SetFile(path)
	open.SetStatus(fio.OpenStatusOld)
	open.SetAccess(fio.AccessSequential)
	open.SetUnformatted(true)
	if stat := open.EndIoStatement(); stat != fio.IostatOk {
		fmt.Fprintf(os.Stderr, "recdump: %s: %s\n", path, stat)
		return 1
	}
	defer closeUnit(unit)

	connected := fio.LookUpUnit(unit)
	records := 0
	for {
		read := fio.BeginExternalUnformattedInput(unit, "recdump", 0)
		read.EnableHandlers(true, false, true, false, true)
		offset := connected.OffsetInFile
		number := connected.CurrentRecordNumber
		// reading zero bytes still frames the record, exposing its length
		read.Receive(nil)
		length := connected.RecordLength.Or(0)
		msg := strings.TrimRight(read.GetIoErrorHandler().GetIoMsg(256), " ")
		stat := read.EndIoStatement()
		switch {
		case stat == fio.IostatEnd:
			if verify {
				fmt.Printf("%d records ok\n", records)
			}
			return 0
		case stat != fio.IostatOk:
			fmt.Fprintf(os.Stderr, "recdump: %s: %s\n", path, msg)
			return 2
		}
		records++
		if !verify {
			fmt.Printf("record %6d  offset %10d  length %d\n",
				number, offset, length)
		}
	}
}

func closeUnit(unit int) {
	cl := fio.BeginCloseUnit(unit, "recdump", 0)
	cl.EnableHandlers(true, false, false, false, false)
	cl.EndIoStatement()
}
